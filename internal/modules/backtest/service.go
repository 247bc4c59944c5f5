// Package backtest orchestrates simulation runs: it converts UI-form
// parameters to the engine's decimal form, executes runs through the engine
// client, and enriches raw engine output with the daily trade report and
// parameter sweep rankings.
package backtest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dcalab/backtester/internal/clients/engine"
	"github.com/dcalab/backtester/internal/domain"
	"github.com/dcalab/backtester/internal/modules/dailytrades"
	"github.com/dcalab/backtester/internal/modules/ranking"
)

// Service orchestrates backtest execution and result enrichment.
type Service struct {
	engine  *engine.Client
	configs *ConfigLoader
	log     zerolog.Logger
}

// NewService creates a new backtest service.
func NewService(engineClient *engine.Client, configs *ConfigLoader, log zerolog.Logger) *Service {
	return &Service{
		engine:  engineClient,
		configs: configs,
		log:     log.With().Str("service", "backtest").Logger(),
	}
}

// PortfolioResponse is a portfolio result enriched with the daily trade report.
type PortfolioResponse struct {
	*domain.PortfolioBacktestResult
	DailyTrades []dailytrades.DailyAggregate `json:"dailyTrades,omitempty"`
}

// DCAResponse is a single-stock result enriched with the daily trade report.
type DCAResponse struct {
	*domain.DCABacktestResult
	DailyTrades []dailytrades.DailyAggregate `json:"dailyTrades,omitempty"`
}

// BatchResponse ranks a parameter sweep's outcomes.
type BatchResponse struct {
	Results []domain.BatchResult `json:"results"`
	Best    *domain.BatchResult  `json:"best,omitempty"`
	Top5    []domain.BatchResult `json:"top5,omitempty"`
}

// RunPortfolio executes a portfolio backtest from UI-form (percent) parameters.
// The percent-to-decimal conversion happens exactly once, here.
func (s *Service) RunPortfolio(ctx context.Context, params *domain.PortfolioBacktestParams) (*PortfolioResponse, error) {
	decimal := params.ToDecimalForm()
	if err := decimal.ValidateAllocations(); err != nil {
		return nil, err
	}
	return s.runPortfolio(ctx, decimal)
}

// RunPortfolioDecimal executes a portfolio backtest from parameters already
// in decimal form (API clients that speak the engine's native form).
func (s *Service) RunPortfolioDecimal(ctx context.Context, params *domain.PortfolioBacktestParams) (*PortfolioResponse, error) {
	if err := params.ValidateAllocations(); err != nil {
		return nil, err
	}
	return s.runPortfolio(ctx, params)
}

// RunPortfolioConfig executes a portfolio backtest from a named server-side
// config. Config values are already decimal-form, so no conversion happens.
func (s *Service) RunPortfolioConfig(ctx context.Context, name string) (*PortfolioResponse, error) {
	params, err := s.configs.Load(name)
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, fmt.Errorf("unknown portfolio config: %s", name)
	}

	s.log.Info().Str("config", name).Int("stocks", len(params.Stocks)).Msg("Running config backtest")
	return s.runPortfolio(ctx, params)
}

// GetPortfolioConfig returns a named config converted to percent form for UI
// editing. Returns nil when the config does not exist.
func (s *Service) GetPortfolioConfig(name string) (*domain.PortfolioBacktestParams, error) {
	params, err := s.configs.Load(name)
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, nil
	}
	return params.ToPercentForm(), nil
}

// ListPortfolioConfigs returns all available config names.
func (s *Service) ListPortfolioConfigs() ([]string, error) {
	return s.configs.List()
}

func (s *Service) runPortfolio(ctx context.Context, decimal *domain.PortfolioBacktestParams) (*PortfolioResponse, error) {
	result, err := s.engine.RunPortfolioBacktest(ctx, decimal)
	if err != nil {
		return nil, err
	}

	resp := &PortfolioResponse{PortfolioBacktestResult: result}

	// Missing result data yields an explicit empty report, never a panic.
	if len(result.StockResults) > 0 {
		resp.DailyTrades = dailytrades.Aggregate(
			result.StockResults, decimal.InitialCapital, dailytrades.FilterAll, dailytrades.SortAsc)
	}

	return resp, nil
}

// RunDCA executes a single-stock backtest. DCA parameters arrive decimal-form
// on this path (the API predates the percent-form UI).
func (s *Service) RunDCA(ctx context.Context, req *engine.DCABacktestRequest) (*DCAResponse, error) {
	result, err := s.engine.RunDCABacktest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &DCAResponse{DCABacktestResult: result}

	if len(result.Transactions) > 0 {
		stockResult := []domain.StockResult{{Symbol: result.Symbol, Transactions: result.Transactions}}
		resp.DailyTrades = dailytrades.Aggregate(
			stockResult, req.InitialCapital, dailytrades.FilterAll, dailytrades.SortAsc)
	}

	return resp, nil
}

// RunBatch executes a parameter sweep and ranks the outcomes by total return.
func (s *Service) RunBatch(ctx context.Context, req *engine.BatchBacktestRequest) (*BatchResponse, error) {
	results, err := s.engine.RunBatchBacktest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &BatchResponse{Results: results}
	if len(results) == 0 {
		resp.Results = []domain.BatchResult{}
		return resp, nil
	}

	ranked := ranking.TopN(toRankable(results), len(results))
	sorted := fromRankable(ranked)

	resp.Results = sorted
	resp.Best = &sorted[0]
	top5 := fromRankable(ranking.TopN(ranked, 5))
	resp.Top5 = top5

	s.log.Info().
		Str("symbol", req.Symbol).
		Int("combinations", len(results)).
		Float64("best_return", resp.Best.TotalReturn).
		Msg("Batch sweep completed")

	return resp, nil
}

// SweepRequest runs the same parameter sweep over several symbols.
type SweepRequest struct {
	Symbols               []string                      `json:"symbols"`
	StartDate             string                        `json:"startDate"`
	EndDate               string                        `json:"endDate"`
	InitialCapital        float64                       `json:"initialCapital"`
	ParameterCombinations []engine.ParameterCombination `json:"parameterCombinations"`
	PerSymbol             int                           `json:"perSymbol,omitempty"`
}

// SweepResponse carries the merged cross-symbol leaderboard.
type SweepResponse struct {
	Results []domain.BatchResult `json:"results"`
	Best    *domain.BatchResult  `json:"best,omitempty"`
}

const defaultSweepPerSymbol = 5

// RunSweep runs the batch sweep for each requested symbol, keeps the top
// perSymbol combinations of each, and re-merges them into one list ordered
// by total return.
func (s *Service) RunSweep(ctx context.Context, req *SweepRequest) (*SweepResponse, error) {
	if len(req.Symbols) == 0 {
		return nil, fmt.Errorf("symbols is required")
	}
	perSymbol := req.PerSymbol
	if perSymbol <= 0 {
		perSymbol = defaultSweepPerSymbol
	}

	var pool []ranking.Result
	for _, symbol := range req.Symbols {
		batch, err := s.RunBatch(ctx, &engine.BatchBacktestRequest{
			Symbol:                symbol,
			StartDate:             req.StartDate,
			EndDate:               req.EndDate,
			InitialCapital:        req.InitialCapital,
			ParameterCombinations: req.ParameterCombinations,
		})
		if err != nil {
			return nil, fmt.Errorf("sweep failed for %s: %w", symbol, err)
		}
		for _, r := range batch.Results {
			r.Symbol = symbol
			pool = append(pool, ranking.Result{Symbol: symbol, TotalReturn: r.TotalReturn, Payload: r})
		}
	}

	merged := fromRankable(ranking.TopNPerSymbol(pool, perSymbol))
	resp := &SweepResponse{Results: merged}
	if len(merged) == 0 {
		resp.Results = []domain.BatchResult{}
		return resp, nil
	}
	resp.Best = &merged[0]

	s.log.Info().
		Int("symbols", len(req.Symbols)).
		Int("per_symbol", perSymbol).
		Int("kept", len(merged)).
		Msg("Multi-symbol sweep completed")

	return resp, nil
}

func toRankable(results []domain.BatchResult) []ranking.Result {
	out := make([]ranking.Result, len(results))
	for i, r := range results {
		out[i] = ranking.Result{Symbol: r.Symbol, TotalReturn: r.TotalReturn, Payload: r}
	}
	return out
}

func fromRankable(ranked []ranking.Result) []domain.BatchResult {
	out := make([]domain.BatchResult, len(ranked))
	for i, r := range ranked {
		out[i] = r.Payload.(domain.BatchResult)
	}
	return out
}
