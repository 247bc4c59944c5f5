// Package yahoo fetches current intraday prices from Yahoo Finance and
// assembles them into a synthetic daily OHLC bar: open of the first intraday
// bar, max high, min low, latest close, summed volume. adjusted_close equals
// close for the current day.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dcalab/backtester/internal/clientdata"
	"github.com/dcalab/backtester/internal/domain"
)

// Client for the Yahoo Finance chart API.
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new Yahoo Finance client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   "https://query1.finance.yahoo.com/v8/finance/chart",
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "yahoo").Logger(),
		cacheRepo: cacheRepo,
	}
}

// chartResponse is the subset of the Yahoo chart payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetCurrentPrice fetches today's intraday data and returns a synthetic daily
// bar. If the API fails, returns stale cached data if available.
// Returns nil, nil when no intraday data exists (market closed, unknown symbol).
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (*domain.PriceBar, error) {
	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("current_prices", symbol)
		if err == nil && data != nil {
			var cached domain.PriceBar
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("symbol", symbol).Msg("Price cache hit")
				return &cached, nil
			}
		}
	}

	url := fmt.Sprintf("%s/%s?interval=1m&range=1d", c.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", symbol, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0") // Yahoo rejects default Go UA

	resp, err := c.client.Do(req)
	if err != nil {
		if stale, ok := c.getStaleFromCache(symbol); ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("API failed, using stale cached price")
			return stale, nil
		}
		return nil, fmt.Errorf("yahoo request for %s failed: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if stale, ok := c.getStaleFromCache(symbol); ok {
			c.log.Warn().Int("status", resp.StatusCode).Str("symbol", symbol).Msg("API error, using stale cached price")
			return stale, nil
		}
		return nil, fmt.Errorf("yahoo returned status %d for %s", resp.StatusCode, symbol)
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		if stale, ok := c.getStaleFromCache(symbol); ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to parse response, using stale cached price")
			return stale, nil
		}
		return nil, fmt.Errorf("failed to parse yahoo response for %s: %w", symbol, err)
	}

	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error for %s: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, nil
	}

	bar := buildSyntheticBar(&chart)
	if bar == nil {
		return nil, nil
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("current_prices", symbol, bar, clientdata.TTLCurrentPrice); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache current price")
		}
	}

	c.log.Info().
		Str("symbol", symbol).
		Float64("close", bar.Close).
		Msg("Fetched current price")

	return bar, nil
}

// buildSyntheticBar collapses the intraday quote arrays into one daily bar.
// Nil entries (halted minutes, pre-market gaps) are skipped.
func buildSyntheticBar(chart *chartResponse) *domain.PriceBar {
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Timestamp) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]

	bar := &domain.PriceBar{IsCurrentIntraday: true}
	var haveOpen bool

	for i := range result.Timestamp {
		if i < len(quote.Open) && quote.Open[i] != nil && !haveOpen {
			bar.Open = *quote.Open[i]
			haveOpen = true
		}
		if i < len(quote.High) && quote.High[i] != nil {
			if bar.High == 0 || *quote.High[i] > bar.High {
				bar.High = *quote.High[i]
			}
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			if bar.Low == 0 || *quote.Low[i] < bar.Low {
				bar.Low = *quote.Low[i]
			}
		}
		if i < len(quote.Close) && quote.Close[i] != nil {
			bar.Close = *quote.Close[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume += *quote.Volume[i]
		}
	}

	if !haveOpen {
		return nil
	}

	bar.AdjustedClose = bar.Close
	bar.Date = time.Unix(result.Timestamp[0], 0).UTC().Format("2006-01-02")

	return bar
}

// getStaleFromCache retrieves a cached bar even if expired.
func (c *Client) getStaleFromCache(symbol string) (*domain.PriceBar, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	data, err := c.cacheRepo.Get("current_prices", symbol)
	if err != nil || data == nil {
		return nil, false
	}

	var cached domain.PriceBar
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}

	return &cached, true
}
