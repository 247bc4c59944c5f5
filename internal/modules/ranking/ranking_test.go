package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopNPerSymbol_ConcreteScenario(t *testing.T) {
	// AAPL results pre-sorted best-first (10, 8, 5), MSFT (20, 3)
	results := []Result{
		{Symbol: "AAPL", TotalReturn: 10},
		{Symbol: "AAPL", TotalReturn: 8},
		{Symbol: "AAPL", TotalReturn: 5},
		{Symbol: "MSFT", TotalReturn: 20},
		{Symbol: "MSFT", TotalReturn: 3},
	}

	top := TopNPerSymbol(results, 1)
	require.Len(t, top, 2)
	assert.Equal(t, "MSFT", top[0].Symbol)
	assert.Equal(t, 20.0, top[0].TotalReturn)
	assert.Equal(t, "AAPL", top[1].Symbol)
	assert.Equal(t, 10.0, top[1].TotalReturn)
}

func TestTopNPerSymbol_SlicesWithoutResorting(t *testing.T) {
	// The per-group step trusts the engine's pre-sort and slices the first
	// N per group even if a later entry has a higher figure.
	results := []Result{
		{Symbol: "AAPL", TotalReturn: 5},
		{Symbol: "AAPL", TotalReturn: 12},
	}

	top := TopNPerSymbol(results, 1)
	require.Len(t, top, 1)
	assert.Equal(t, 5.0, top[0].TotalReturn)
}

func TestTopN_Global(t *testing.T) {
	results := []Result{
		{Symbol: "AAPL", TotalReturn: 10},
		{Symbol: "MSFT", TotalReturn: 20},
		{Symbol: "GOOG", TotalReturn: 15},
	}

	top := TopN(results, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "MSFT", top[0].Symbol)
	assert.Equal(t, "GOOG", top[1].Symbol)

	// n larger than the list returns everything, sorted
	all := TopN(results, 10)
	assert.Len(t, all, 3)
	assert.Equal(t, 20.0, all[0].TotalReturn)
}

func TestTieBreak_SymbolThenOriginalIndex(t *testing.T) {
	results := []Result{
		{Symbol: "MSFT", TotalReturn: 10, Payload: "msft-0"},
		{Symbol: "AAPL", TotalReturn: 10, Payload: "aapl-0"},
		{Symbol: "AAPL", TotalReturn: 10, Payload: "aapl-1"},
	}

	top := TopNPerSymbol(results, 2)
	require.Len(t, top, 3)

	// Equal figures: symbol ascending, then original position
	assert.Equal(t, "aapl-0", top[0].Payload)
	assert.Equal(t, "aapl-1", top[1].Payload)
	assert.Equal(t, "msft-0", top[2].Payload)
}

func TestMissingFigureRanksAsZero(t *testing.T) {
	results := []Result{
		{Symbol: "AAPL"}, // no figure
		{Symbol: "MSFT", TotalReturn: -5},
		{Symbol: "GOOG", TotalReturn: 3},
	}

	top := TopN(results, 3)
	assert.Equal(t, "GOOG", top[0].Symbol)
	assert.Equal(t, "AAPL", top[1].Symbol) // 0 beats -5
	assert.Equal(t, "MSFT", top[2].Symbol)
}

func TestEmptyAndDegenerateInputs(t *testing.T) {
	assert.Empty(t, TopN(nil, 5))
	assert.Empty(t, TopNPerSymbol(nil, 5))
	assert.Empty(t, TopN([]Result{{Symbol: "AAPL", TotalReturn: 1}}, 0))
	assert.Empty(t, TopNPerSymbol([]Result{{Symbol: "AAPL", TotalReturn: 1}}, -1))
}

func TestInputNotMutated(t *testing.T) {
	results := []Result{
		{Symbol: "AAPL", TotalReturn: 1},
		{Symbol: "MSFT", TotalReturn: 2},
	}

	_ = TopN(results, 2)
	assert.Equal(t, "AAPL", results[0].Symbol)
	assert.Equal(t, 1.0, results[0].TotalReturn)
}
