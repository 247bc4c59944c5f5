// Package engine provides the HTTP client for the external simulation engine.
// All parameters cross the wire in decimal form; percent-form conversion happens
// in the backtest module before a request is built. Transport failures surface
// immediately - there is no retry or backoff, a failed run is rerun by the caller.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dcalab/backtester/internal/clientdata"
	"github.com/dcalab/backtester/internal/domain"
)

// Client for the simulation engine API.
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new engine client.
// cacheRepo is optional - if nil, health probe caching is disabled.
// Portfolio simulations over multi-year windows can take minutes, hence the
// generous timeout.
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Minute},
		log:       log.With().Str("client", "engine").Logger(),
		cacheRepo: cacheRepo,
	}
}

// envelope is the engine's response wrapper. Every endpoint returns it.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

// DCABacktestRequest is a single-stock simulation request.
type DCABacktestRequest struct {
	Symbol         string                 `json:"symbol"`
	StartDate      string                 `json:"startDate"`
	EndDate        string                 `json:"endDate"`
	InitialCapital float64                `json:"initialCapital"`
	Parameters     *domain.StrategyParams `json:"parameters,omitempty"`
}

// ParameterCombination is one point of a batch sweep's parameter grid.
type ParameterCombination struct {
	GridSpacing        float64 `json:"gridSpacing"`
	ProfitTarget       float64 `json:"profitTarget"`
	EnableMomentumSell bool    `json:"enableMomentumSell"`
}

// BatchBacktestRequest runs one simulation per parameter combination for one symbol.
type BatchBacktestRequest struct {
	Symbol                string                 `json:"symbol"`
	StartDate             string                 `json:"startDate"`
	EndDate               string                 `json:"endDate"`
	InitialCapital        float64                `json:"initialCapital"`
	ParameterCombinations []ParameterCombination `json:"parameterCombinations"`
}

// BetaRequest asks the engine to compute beta for a symbol against an index.
type BetaRequest struct {
	Symbol      string `json:"symbol"`
	IndexSymbol string `json:"indexSymbol"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
}

// BetaResult is the engine's beta calculation output.
type BetaResult struct {
	Symbol      string  `json:"symbol"`
	IndexSymbol string  `json:"indexSymbol"`
	Beta        float64 `json:"beta"`
	Correlation float64 `json:"correlation"`
	DataPoints  int     `json:"dataPoints"`
}

// HealthStatus is the engine's health probe response.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// RunDCABacktest runs a single-stock simulation.
func (c *Client) RunDCABacktest(ctx context.Context, req *DCABacktestRequest) (*domain.DCABacktestResult, error) {
	var result domain.DCABacktestResult
	if err := c.post(ctx, "/api/backtest/dca", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunPortfolioBacktest runs a multi-stock portfolio simulation.
// Parameters must already be in decimal form.
func (c *Client) RunPortfolioBacktest(ctx context.Context, params *domain.PortfolioBacktestParams) (*domain.PortfolioBacktestResult, error) {
	var result domain.PortfolioBacktestResult
	if err := c.post(ctx, "/api/backtest/portfolio", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunBatchBacktest runs one simulation per parameter combination.
func (c *Client) RunBatchBacktest(ctx context.Context, req *BatchBacktestRequest) ([]domain.BatchResult, error) {
	var data struct {
		Results []domain.BatchResult `json:"results"`
	}
	if err := c.post(ctx, "/api/backtest/batch", req, &data); err != nil {
		return nil, err
	}
	return data.Results, nil
}

// CalculateBeta asks the engine for a beta calculation.
// Results are cached for a day - beta over a year of closes barely moves intraday.
func (c *Client) CalculateBeta(ctx context.Context, req *BetaRequest) (*BetaResult, error) {
	cacheKey := req.Symbol + ":" + req.IndexSymbol

	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("beta_calculations", cacheKey)
		if err == nil && data != nil {
			var cached BetaResult
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("symbol", req.Symbol).Msg("Beta cache hit")
				return &cached, nil
			}
		}
	}

	var result BetaResult
	if err := c.post(ctx, "/api/beta/calculate", req, &result); err != nil {
		return nil, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("beta_calculations", cacheKey, result, clientdata.TTLBetaCalculation); err != nil {
			c.log.Warn().Err(err).Str("symbol", req.Symbol).Msg("Failed to cache beta result")
		}
	}

	return &result, nil
}

// Health probes the engine's health endpoint. Probes are cached briefly so
// batch operations don't hammer the endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("engine_health", "/api/health")
		if err == nil && data != nil {
			var cached HealthStatus
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine health request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to parse engine health response: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("engine unhealthy: %s", env.Error)
	}

	var status HealthStatus
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &status); err != nil {
			return nil, fmt.Errorf("failed to parse engine health data: %w", err)
		}
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("engine_health", "/api/health", status, clientdata.TTLEngineHealth); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache engine health")
		}
	}

	return &status, nil
}

// post sends a JSON payload and decodes the envelope's data field into out.
// The three failure classes are kept distinct: transport errors, engine-reported
// errors (success=false), and missing result data.
func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug().Str("path", path).Msg("Calling engine")
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to parse engine response from %s: %w", path, err)
	}

	if !env.Success {
		if env.Error == "" {
			env.Error = fmt.Sprintf("engine returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("engine error from %s: %s", path, env.Error)
	}

	if len(env.Data) == 0 {
		return fmt.Errorf("engine response from %s contained no data", path)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse engine result from %s: %w", path, err)
	}

	c.log.Info().
		Str("path", path).
		Dur("duration", time.Since(start)).
		Msg("Engine call completed")

	return nil
}
