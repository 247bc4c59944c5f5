package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcalab/backtester/internal/clients/engine"
	"github.com/dcalab/backtester/internal/domain"
)

func newService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewService(engine.NewClient(srv.URL, nil, zerolog.Nop()), zerolog.Nop())
}

// sweepEngine answers each run with metrics keyed by the submitted grid spacing.
func sweepEngine(t *testing.T, bySpacing map[float64]map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		spacing := body["parameters"].(map[string]interface{})["gridSpacing"].(float64)

		data, ok := bySpacing[spacing]
		require.True(t, ok, "unexpected grid spacing %v", spacing)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": data})
	}
}

func TestCompareStrategies_BestBySharpe(t *testing.T) {
	service := newService(t, sweepEngine(t, map[float64]map[string]interface{}{
		0.05: {"symbol": "AAPL", "totalReturn": 18.0, "maxDrawdown": 12.0, "sharpeRatio": 0.9, "numTrades": 40, "finalCapital": 11800.0},
		0.10: {"symbol": "AAPL", "totalReturn": 12.0, "maxDrawdown": 6.0, "sharpeRatio": 1.4, "numTrades": 22, "finalCapital": 11200.0},
		0.15: {"symbol": "AAPL", "totalReturn": 25.0, "maxDrawdown": 30.0, "sharpeRatio": 0.7, "numTrades": 15, "finalCapital": 12500.0},
	}))

	comparison, err := service.CompareStrategies(context.Background(), &CompareRequest{
		Symbol:    "AAPL",
		StartDate: "2023-01-01",
		EndDate:   "2023-12-31",
		Strategies: []StrategyConfig{
			{Name: "tight", GridSpacing: 0.05, ProfitTarget: 0.05},
			{Name: "medium", GridSpacing: 0.10, ProfitTarget: 0.05},
			{Name: "wide", GridSpacing: 0.15, ProfitTarget: 0.05},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, comparison.StrategiesCompared)
	assert.Equal(t, "2023-01-01 to 2023-12-31", comparison.Period)
	require.Len(t, comparison.ComparisonTable, 3)
	assert.Equal(t, "tight", comparison.ComparisonTable[0].StrategyName)
	assert.Equal(t, 0.9, comparison.ComparisonTable[0].Metrics.SharpeRatio)

	// "medium" wins despite "wide" having the higher raw return
	assert.Equal(t, "medium", comparison.Recommendation.BestStrategy)
	assert.Equal(t, "Highest Sharpe ratio (1.400)", comparison.Recommendation.Reason)
	assert.Equal(t, 12.0, comparison.Recommendation.TotalReturn)
	assert.Equal(t, 6.0, comparison.Recommendation.MaxDrawdown)
}

func TestCompareStrategies_Validation(t *testing.T) {
	service := newService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("engine must not be called for invalid requests")
	})

	valid := []StrategyConfig{
		{Name: "a", GridSpacing: 0.05, ProfitTarget: 0.05},
		{Name: "b", GridSpacing: 0.10, ProfitTarget: 0.05},
	}

	_, err := service.CompareStrategies(context.Background(), &CompareRequest{Strategies: valid})
	assert.ErrorContains(t, err, "symbol is required")

	_, err = service.CompareStrategies(context.Background(), &CompareRequest{
		Symbol:     "AAPL",
		Strategies: valid[:1],
	})
	assert.ErrorContains(t, err, "between 2 and 5")

	_, err = service.CompareStrategies(context.Background(), &CompareRequest{
		Symbol: "AAPL",
		Strategies: []StrategyConfig{
			{Name: "a", GridSpacing: 5, ProfitTarget: 0.05}, // percent form slipped through
			{Name: "b", GridSpacing: 0.10, ProfitTarget: 0.05},
		},
	})
	assert.ErrorContains(t, err, "must be a ratio")
}

func TestCompareStrategies_EngineFailureNamesStrategy(t *testing.T) {
	service := newService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "no data"})
	})

	_, err := service.CompareStrategies(context.Background(), &CompareRequest{
		Symbol: "AAPL",
		Strategies: []StrategyConfig{
			{Name: "first", GridSpacing: 0.05, ProfitTarget: 0.05},
			{Name: "second", GridSpacing: 0.10, ProfitTarget: 0.05},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backtest failed for first")
}

func TestSuitabilityScore(t *testing.T) {
	var gotBody map[string]interface{}
	service := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"symbol": "KO", "dcaSuitabilityScore": 62.5},
		})
	})

	report, err := service.SuitabilityScore(context.Background(), &SuitabilityRequest{
		Symbol:    "KO",
		StartDate: "2023-01-01",
		EndDate:   "2023-12-31",
	})
	require.NoError(t, err)

	assert.Equal(t, 62.5, report.OverallScore)
	assert.Equal(t, "Good candidate", report.Interpretation)
	assert.Contains(t, report.Recommendation, "KO is a good candidate")

	// Probe uses the default parameter point
	params := gotBody["parameters"].(map[string]interface{})
	assert.Equal(t, 0.10, params["gridSpacing"])
	assert.Equal(t, 0.05, params["profitTarget"])
	assert.Equal(t, 10000.0, gotBody["initialCapital"])
}

func TestInterpretSuitability_Bands(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0, "Poor candidate"},
		{29.9, "Poor candidate"},
		{30, "Fair candidate"},
		{49.9, "Fair candidate"},
		{50, "Good candidate"},
		{69.9, "Good candidate"},
		{70, "Excellent candidate"},
		{100, "Excellent candidate"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, InterpretSuitability(tt.score), "score %v", tt.score)
	}
}

func TestDailyTradesReport(t *testing.T) {
	service := NewService(nil, zerolog.Nop())

	sell := 150.0
	req := &DailyTradesRequest{
		StartingCapital: 10000,
		StockResults: []domain.StockResult{
			{
				Symbol: "AAPL",
				Transactions: []domain.Transaction{
					{Date: "2023-02-01", Type: "BUY", Price: 100, Shares: 10, Value: 1000},
					{Date: "2023-02-02", Type: "SELL", Price: 115, Shares: 10, Value: 1150, RealizedPNLFromTrade: &sell},
				},
			},
		},
		Filter: "sells",
		Order:  "desc",
	}

	days, totals, err := service.DailyTradesReport(req)
	require.NoError(t, err)

	// Buy-only day is hidden by the sells filter but still moves cash
	require.Len(t, days, 1)
	assert.Equal(t, "2023-02-02", days[0].Date)
	assert.Equal(t, 9000.0, days[0].CashBefore)
	assert.Equal(t, 10150.0, days[0].CashAfter)
	assert.Equal(t, 1, days[0].SellCount)
	assert.Equal(t, 1, totals.TradeCount)
	assert.Equal(t, 150.0, totals.TotalRealizedPNL)
}

func TestDailyTradesReport_InvalidFilter(t *testing.T) {
	service := NewService(nil, zerolog.Nop())

	_, _, err := service.DailyTradesReport(&DailyTradesRequest{Filter: "shorts"})
	assert.ErrorContains(t, err, "invalid filter")

	_, _, err = service.DailyTradesReport(&DailyTradesRequest{Order: "sideways"})
	assert.ErrorContains(t, err, "invalid order")
}
