package formulas

import (
	"math"
	"time"
)

// CAGR back-calculates the compound annual growth rate from a total return
// percentage (e.g. 12.5 = +12.5%) over the given date range.
// Formula: (1 + totalReturn/100)^(365.25/days) - 1, expressed as a percentage.
// Returns 0 for an empty or inverted date range, or a total loss beyond -100%.
func CAGR(totalReturnPct float64, startDate, endDate string) float64 {
	start, err1 := time.Parse("2006-01-02", startDate)
	end, err2 := time.Parse("2006-01-02", endDate)
	if err1 != nil || err2 != nil {
		return 0
	}

	days := end.Sub(start).Hours() / 24
	if days <= 0 {
		return 0
	}

	growth := 1 + totalReturnPct/100
	if growth <= 0 {
		return 0
	}

	years := days / 365.25
	return (math.Pow(growth, 1/years) - 1) * 100
}

// MaxDrawdown calculates the maximum peak-to-trough decline of an equity
// series, returned as a positive percentage (10 = 10% drawdown).
func MaxDrawdown(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}

	peak := equity[0]
	maxDD := 0.0

	for _, v := range equity[1:] {
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD * 100
}

// SharpeRatio calculates the annualized Sharpe ratio from daily returns.
// riskFreeRate is annual (0.02 = 2%). Returns 0 when volatility is zero.
func SharpeRatio(dailyReturns []float64, riskFreeRate float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}

	stdDev := StdDev(dailyReturns)
	if stdDev == 0 {
		return 0
	}

	dailyRiskFree := riskFreeRate / 252
	excess := Mean(dailyReturns) - dailyRiskFree

	return excess / stdDev * math.Sqrt(252)
}
