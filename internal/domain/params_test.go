package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyParamsRoundTrip_Long(t *testing.T) {
	params := NewLongParams("TSLA", LongStrategyParams{
		GridSpacing:             0.10,
		ProfitTarget:            0.05,
		EnableMomentumSell:      true,
		MomentumLookbackPeriod:  20,
		EnableTrailingStopBuy:   true,
		TrailingStopBuyDistance: 0.05,
	})

	data, err := json.Marshal(params)
	require.NoError(t, err)

	// Wire shape is flat with a strategyMode discriminant
	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "TSLA", flat["symbol"])
	assert.Equal(t, "long", flat["strategyMode"])
	assert.Equal(t, 0.10, flat["gridSpacing"])
	assert.NotContains(t, flat, "coverTarget")

	var decoded StrategyParams
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, StrategyModeLong, decoded.Mode)
	require.NotNil(t, decoded.Long)
	assert.Nil(t, decoded.Short)
	assert.Equal(t, *params.Long, *decoded.Long)
}

func TestStrategyParamsRoundTrip_Short(t *testing.T) {
	params := NewShortParams("NVDA", ShortStrategyParams{
		GridSpacing:              0.08,
		CoverTarget:              0.04,
		EnableTrailingStopSell:   true,
		TrailingStopSellDistance: 0.03,
	})

	data, err := json.Marshal(params)
	require.NoError(t, err)

	var decoded StrategyParams
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, StrategyModeShort, decoded.Mode)
	require.NotNil(t, decoded.Short)
	assert.Nil(t, decoded.Long)
	assert.Equal(t, *params.Short, *decoded.Short)
}

func TestStrategyParamsUnmarshal_MissingModeDefaultsToLong(t *testing.T) {
	// Payloads that predate short mode have no discriminant
	var decoded StrategyParams
	err := json.Unmarshal([]byte(`{"symbol":"AAPL","gridSpacing":0.1,"profitTarget":0.05}`), &decoded)
	require.NoError(t, err)

	assert.Equal(t, StrategyModeLong, decoded.Mode)
	require.NotNil(t, decoded.Long)
	assert.Equal(t, 0.10, decoded.Long.GridSpacing)
	assert.Equal(t, 0.05, decoded.Long.ProfitTarget)
}

func TestPercentDecimalConversion(t *testing.T) {
	assert.Equal(t, 0.10, PercentToDecimal(10))
	assert.Equal(t, 10.0, DecimalToPercent(0.10))

	// Round trip is exact for typical strategy values
	assert.Equal(t, 5.0, DecimalToPercent(PercentToDecimal(5)))
}

func TestStrategyParamsToDecimalForm(t *testing.T) {
	// UI form: 10 means 10%
	ui := NewLongParams("AAPL", LongStrategyParams{
		GridSpacing:             10,
		ProfitTarget:            5,
		MomentumLookbackPeriod:  20,
		TrailingStopBuyDistance: 5,
	})

	engine := ui.ToDecimalForm()
	assert.InDelta(t, 0.10, engine.Long.GridSpacing, 1e-12)
	assert.InDelta(t, 0.05, engine.Long.ProfitTarget, 1e-12)
	assert.InDelta(t, 0.05, engine.Long.TrailingStopBuyDistance, 1e-12)

	// Non-ratio fields pass through unchanged
	assert.Equal(t, 20, engine.Long.MomentumLookbackPeriod)

	// Original is not mutated
	assert.Equal(t, 10.0, ui.Long.GridSpacing)

	// Inverse restores the UI form
	back := engine.ToPercentForm()
	assert.InDelta(t, 10, back.Long.GridSpacing, 1e-9)
	assert.InDelta(t, 5, back.Long.ProfitTarget, 1e-9)
}

func TestPortfolioParamsToDecimalForm(t *testing.T) {
	ui := &PortfolioBacktestParams{
		Stocks: []StockAllocation{
			{Symbol: "AAPL", Allocation: 30},
			{Symbol: "GOOGL", Allocation: 30},
			{Symbol: "MSFT", Allocation: 40},
		},
		StartDate:      "2020-01-01",
		EndDate:        "2024-12-31",
		InitialCapital: 50000,
		GridSpacing:    10,
		ProfitTarget:   5,
		Overrides: map[string]*StrategyParams{
			"AAPL": NewLongParams("AAPL", LongStrategyParams{GridSpacing: 8, ProfitTarget: 4}),
		},
	}

	engine := ui.ToDecimalForm()
	assert.InDelta(t, 0.30, engine.Stocks[0].Allocation, 1e-12)
	assert.InDelta(t, 0.40, engine.Stocks[2].Allocation, 1e-12)
	assert.InDelta(t, 0.10, engine.GridSpacing, 1e-12)
	assert.InDelta(t, 0.08, engine.Overrides["AAPL"].Long.GridSpacing, 1e-12)

	// Capital and dates are not ratios
	assert.Equal(t, 50000.0, engine.InitialCapital)
	assert.Equal(t, "2020-01-01", engine.StartDate)
}

func TestPortfolioParamsMarkPreScaled(t *testing.T) {
	p := &PortfolioBacktestParams{
		EnableBetaScaling:           true,
		EnableBetaCapitalAllocation: true,
	}

	p.MarkPreScaled()
	assert.False(t, p.EnableBetaScaling)
	assert.False(t, p.EnableBetaCapitalAllocation)
}

func TestValidateAllocations(t *testing.T) {
	ok := &PortfolioBacktestParams{Stocks: []StockAllocation{
		{Symbol: "AAPL", Allocation: 0.5},
		{Symbol: "MSFT", Allocation: 0.5},
	}}
	assert.NoError(t, ok.ValidateAllocations())

	short := &PortfolioBacktestParams{Stocks: []StockAllocation{
		{Symbol: "AAPL", Allocation: 0.5},
	}}
	assert.Error(t, short.ValidateAllocations())

	empty := &PortfolioBacktestParams{}
	assert.Error(t, empty.ValidateAllocations())
}
