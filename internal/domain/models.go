// Package domain contains the core data model shared by all modules.
// Field names (JSON tags) mirror the simulation engine's wire format and are a
// de facto schema contract - renaming them breaks every consumer downstream.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Transaction is one executed (or attempted) trade produced by the engine.
// Immutable once decoded - aggregation never mutates transactions.
type Transaction struct {
	Date   string  `json:"date"` // Calendar day, YYYY-MM-DD
	Type   string  `json:"type"` // BUY/SELL variant, possibly with an ABORTED qualifier
	Price  float64 `json:"price"`
	Shares float64 `json:"shares"`
	Value  float64 `json:"value"` // price * shares

	// Present only on SELL transactions. nil contributes 0 to daily P&L.
	RealizedPNLFromTrade *float64 `json:"realizedPNLFromTrade,omitempty"`
}

// IsBuy reports whether the transaction is a BUY variant (aborted or not).
func (t *Transaction) IsBuy() bool {
	return strings.Contains(strings.ToUpper(t.Type), "BUY")
}

// IsSell reports whether the transaction is a SELL variant (aborted or not).
func (t *Transaction) IsSell() bool {
	return strings.Contains(strings.ToUpper(t.Type), "SELL")
}

// IsAborted reports whether the transaction was attempted but not executed.
// Aborted transactions must not affect counts, totals, cash or P&L.
func (t *Transaction) IsAborted() bool {
	return strings.Contains(strings.ToUpper(t.Type), "ABORTED")
}

// RealizedPNL returns the realized P&L, treating a missing value as 0.
func (t *Transaction) RealizedPNL() float64 {
	if t.RealizedPNLFromTrade == nil {
		return 0
	}
	return *t.RealizedPNLFromTrade
}

// UnmarshalJSON normalizes engine payload quirks at the ingestion boundary:
// some engine versions emit "quantity" instead of "shares", and dates may
// carry a time component. Grouping downstream is by raw string equality, so
// dates are normalized to YYYY-MM-DD here, once.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type alias Transaction
	aux := struct {
		*alias
		Quantity *float64 `json:"quantity"`
	}{alias: (*alias)(t)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if t.Shares == 0 && aux.Quantity != nil {
		t.Shares = *aux.Quantity
	}
	t.Date = NormalizeDate(t.Date)

	return nil
}

// NormalizeDate reduces a date string to its YYYY-MM-DD prefix when the value
// parses as an ISO date or datetime. Unparseable values pass through verbatim -
// inconsistent formats then create separate buckets, which is the documented
// behavior, not an error.
func NormalizeDate(date string) string {
	if len(date) < 10 {
		return date
	}
	prefix := date[:10]
	if _, err := time.Parse("2006-01-02", prefix); err != nil {
		return date
	}
	return prefix
}

// StockSummary holds per-stock aggregates computed by the engine.
type StockSummary struct {
	TotalReturn         float64 `json:"totalReturn"` // Percent form, e.g. 12.5 = +12.5%
	TotalRealizedPnl    float64 `json:"totalRealizedPnl"`
	MaxDrawdown         float64 `json:"maxDrawdown"`
	SharpeRatio         float64 `json:"sharpeRatio"`
	NumTrades           int     `json:"numTrades"`
	FinalCapital        float64 `json:"finalCapital"`
	DcaSuitabilityScore float64 `json:"dcaSuitabilityScore"`
	TotalBuys           int     `json:"totalBuys"`
	TotalSells          int     `json:"totalSells"`
	AvgBuyPrice         float64 `json:"avgBuyPrice"`
	AvgSellPrice        float64 `json:"avgSellPrice"`
}

// StockResult is one stock's full simulation output. The capital fields are
// only present on portfolio runs, where the engine reports how capital was
// split across stocks.
type StockResult struct {
	Symbol           string          `json:"symbol,omitempty"`
	Parameters       *StrategyParams `json:"parameters,omitempty"`
	Summary          *StockSummary   `json:"summary,omitempty"`
	Transactions     []Transaction   `json:"transactions,omitempty"`
	Return           *float64        `json:"return,omitempty"`
	CapitalAllocated float64         `json:"capitalAllocated,omitempty"`
	FinalValue       float64         `json:"finalValue,omitempty"`
	NumTrades        int             `json:"numTrades,omitempty"`
}

// ResolvedSymbol returns the stock's symbol, falling back to parameters.symbol
// when the top-level field is absent (older engine payloads).
func (r *StockResult) ResolvedSymbol() string {
	if r.Symbol != "" {
		return r.Symbol
	}
	if r.Parameters != nil {
		return r.Parameters.Symbol
	}
	return ""
}

// PortfolioSummary holds portfolio-level aggregates.
type PortfolioSummary struct {
	StartingCapital      float64 `json:"startingCapital"`
	FinalCapital         float64 `json:"finalCapital"`
	TotalRealizedPnl     float64 `json:"totalRealizedPnl"`
	TotalRoi             float64 `json:"totalRoi"` // Percent form
	PortfolioReturn      float64 `json:"portfolioReturn"`
	PortfolioMaxDrawdown float64 `json:"portfolioMaxDrawdown"`
	PortfolioSharpeRatio float64 `json:"portfolioSharpeRatio"`
}

// TimeSeriesPoint is one sample of a portfolio time series.
type TimeSeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// RejectedOrder is a buy signal the engine could not execute due to
// insufficient available capital.
type RejectedOrder struct {
	Date             string  `json:"date"`
	Symbol           string  `json:"symbol"`
	Type             string  `json:"type"`
	Price            float64 `json:"price"`
	Shares           float64 `json:"shares"`
	Value            float64 `json:"value"`
	Reason           string  `json:"reason"`
	AvailableCapital float64 `json:"availableCapital"`
}

// PortfolioBacktestResult is the full portfolio simulation output.
type PortfolioBacktestResult struct {
	PortfolioSummary  *PortfolioSummary `json:"portfolioSummary,omitempty"`
	StockResults      []StockResult     `json:"stockResults,omitempty"`
	CompositionSeries []TimeSeriesPoint `json:"compositionSeries,omitempty"`
	UtilizationSeries []TimeSeriesPoint `json:"utilizationSeries,omitempty"`
	DeploymentSeries  []TimeSeriesPoint `json:"deploymentSeries,omitempty"`
	RejectedOrders    []RejectedOrder   `json:"rejectedOrders,omitempty"`
}

// DCABacktestResult is a single-stock simulation output (flat engine shape).
type DCABacktestResult struct {
	Symbol              string        `json:"symbol"`
	TotalReturn         float64       `json:"totalReturn"`
	MaxDrawdown         float64       `json:"maxDrawdown"`
	SharpeRatio         float64       `json:"sharpeRatio"`
	NumTrades           int           `json:"numTrades"`
	FinalCapital        float64       `json:"finalCapital"`
	DcaSuitabilityScore float64       `json:"dcaSuitabilityScore"`
	TotalBuys           int           `json:"totalBuys"`
	TotalSells          int           `json:"totalSells"`
	AvgBuyPrice         float64       `json:"avgBuyPrice"`
	AvgSellPrice        float64       `json:"avgSellPrice"`
	Transactions        []Transaction `json:"transactions,omitempty"`
}

// BatchResult is one parameter combination's outcome in a batch sweep.
type BatchResult struct {
	Parameters  *StrategyParams `json:"parameters,omitempty"`
	Symbol      string          `json:"symbol,omitempty"`
	TotalReturn float64         `json:"totalReturn"`
	MaxDrawdown float64         `json:"maxDrawdown"`
	SharpeRatio float64         `json:"sharpeRatio"`
	NumTrades   int             `json:"numTrades"`
}

// PriceBar is one daily OHLC bar. For the current trading day the bar is
// synthetic, assembled from intraday data, and flagged as such.
type PriceBar struct {
	Date              string  `json:"date"`
	Open              float64 `json:"open"`
	High              float64 `json:"high"`
	Low               float64 `json:"low"`
	Close             float64 `json:"close"`
	Volume            int64   `json:"volume"`
	AdjustedClose     float64 `json:"adjusted_close"`
	IsCurrentIntraday bool    `json:"is_current_intraday,omitempty"`
}
