package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateRSI calculates the Relative Strength Index over the given period
// (typically 14). Returns nil if there is insufficient data.
//
// RSI = 100 - (100 / (1 + RS)), RS = Average Gain / Average Loss over N periods
func CalculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)

	if len(rsi) > 0 && !isNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}

	return nil
}

// Momentum calculates the rate of change of the close series over the
// lookback period, as a percentage. Returns nil if there is insufficient data.
// This mirrors the momentum signal the engine's momentum-sell rule uses.
func Momentum(closes []float64, lookback int) *float64 {
	if lookback < 1 || len(closes) < lookback+1 {
		return nil
	}

	roc := talib.Roc(closes, lookback)

	if len(roc) > 0 && !isNaN(roc[len(roc)-1]) {
		result := roc[len(roc)-1]
		return &result
	}

	return nil
}

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return f != f
}
