package analysis

import "github.com/dcalab/backtester/internal/domain"

// StrategyConfig is one named strategy variant in a comparison.
type StrategyConfig struct {
	Name                  string  `json:"name"`
	GridSpacing           float64 `json:"gridSpacing"`
	ProfitTarget          float64 `json:"profitTarget"`
	EnableMomentumSell    bool    `json:"enableMomentumSell"`
	EnableTrailingStopBuy bool    `json:"enableTrailingStopBuy"`
}

// CompareRequest runs several strategy variants on one symbol and period.
type CompareRequest struct {
	Symbol         string           `json:"symbol"`
	Strategies     []StrategyConfig `json:"strategies"`
	StartDate      string           `json:"startDate"`
	EndDate        string           `json:"endDate"`
	InitialCapital float64          `json:"initialCapital"`
}

// StrategyMetrics are the comparable outcome figures of one variant.
type StrategyMetrics struct {
	TotalReturnPct float64 `json:"totalReturnPct"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`
	SharpeRatio    float64 `json:"sharpeRatio"`
	NumTrades      int     `json:"numTrades"`
	FinalCapital   float64 `json:"finalCapital"`
}

// StrategyOutcome pairs a variant with its backtest metrics.
type StrategyOutcome struct {
	StrategyName string          `json:"strategyName"`
	Parameters   StrategyConfig  `json:"parameters"`
	Metrics      StrategyMetrics `json:"metrics"`
}

// Recommendation names the winning variant and why.
type Recommendation struct {
	BestStrategy string  `json:"bestStrategy"`
	Reason       string  `json:"reason"`
	TotalReturn  float64 `json:"totalReturn"`
	MaxDrawdown  float64 `json:"maxDrawdown"`
}

// Comparison is the full side-by-side result.
type Comparison struct {
	Symbol             string            `json:"symbol"`
	Period             string            `json:"period"`
	StrategiesCompared int               `json:"strategiesCompared"`
	ComparisonTable    []StrategyOutcome `json:"comparisonTable"`
	Recommendation     Recommendation    `json:"recommendation"`
}

// SuitabilityRequest asks how well a symbol fits the strategy.
type SuitabilityRequest struct {
	Symbol    string `json:"symbol"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// SuitabilityReport is the scored answer with its interpretation band.
type SuitabilityReport struct {
	Symbol         string  `json:"symbol"`
	OverallScore   float64 `json:"overallScore"`
	Interpretation string  `json:"interpretation"`
	Recommendation string  `json:"recommendation"`
}

// DailyTradesRequest builds a daily trade report from a results payload.
type DailyTradesRequest struct {
	StockResults    []domain.StockResult `json:"stockResults"`
	StartingCapital float64              `json:"startingCapital"`
	Filter          string               `json:"filter"` // all | buys | sells
	Order           string               `json:"order"`  // asc | desc
}
