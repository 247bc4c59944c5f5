package domain

import (
	"encoding/json"
	"fmt"
)

// StrategyMode discriminates the two parameter shapes the engine accepts.
type StrategyMode string

const (
	// StrategyModeLong - grid buys below cost basis, profit-target sells above
	StrategyModeLong StrategyMode = "long"
	// StrategyModeShort - grid shorts above entry, cover-target buys below
	StrategyModeShort StrategyMode = "short"
)

// LongStrategyParams are the long-mode strategy knobs.
// Ratio fields are held in whichever form the surrounding context says:
// percent form at the UI/query-string boundary (10 = 10%), decimal form on the
// engine wire (0.10). ToDecimalForm/ToPercentForm convert between the two.
type LongStrategyParams struct {
	GridSpacing             float64 `json:"gridSpacing"`
	ProfitTarget            float64 `json:"profitTarget"`
	EnableMomentumSell      bool    `json:"enableMomentumSell"`
	MomentumLookbackPeriod  int     `json:"momentumLookbackPeriod,omitempty"`
	EnableTrailingStopBuy   bool    `json:"enableTrailingStopBuy"`
	TrailingStopBuyDistance float64 `json:"trailingStopBuyDistance,omitempty"`
}

// ShortStrategyParams are the short-mode strategy knobs.
type ShortStrategyParams struct {
	GridSpacing              float64 `json:"gridSpacing"`
	CoverTarget              float64 `json:"coverTarget"`
	EnableTrailingStopSell   bool    `json:"enableTrailingStopSell"`
	TrailingStopSellDistance float64 `json:"trailingStopSellDistance,omitempty"`
}

// StrategyParams is a tagged union of the long and short parameter shapes.
// Exactly one of Long/Short is non-nil, selected by Mode. On the wire the
// union flattens to a single object with a strategyMode discriminant, which is
// what the engine and the UI both expect.
type StrategyParams struct {
	Symbol string
	Mode   StrategyMode
	Long   *LongStrategyParams
	Short  *ShortStrategyParams
}

// NewLongParams builds long-mode params with the given ratio fields.
func NewLongParams(symbol string, p LongStrategyParams) *StrategyParams {
	return &StrategyParams{Symbol: symbol, Mode: StrategyModeLong, Long: &p}
}

// NewShortParams builds short-mode params with the given ratio fields.
func NewShortParams(symbol string, p ShortStrategyParams) *StrategyParams {
	return &StrategyParams{Symbol: symbol, Mode: StrategyModeShort, Short: &p}
}

// flatParams is the wire shape: all fields of both branches, flattened.
type flatParams struct {
	Symbol string       `json:"symbol,omitempty"`
	Mode   StrategyMode `json:"strategyMode,omitempty"`

	GridSpacing             float64 `json:"gridSpacing"`
	ProfitTarget            float64 `json:"profitTarget,omitempty"`
	EnableMomentumSell      bool    `json:"enableMomentumSell,omitempty"`
	MomentumLookbackPeriod  int     `json:"momentumLookbackPeriod,omitempty"`
	EnableTrailingStopBuy   bool    `json:"enableTrailingStopBuy,omitempty"`
	TrailingStopBuyDistance float64 `json:"trailingStopBuyDistance,omitempty"`

	CoverTarget              float64 `json:"coverTarget,omitempty"`
	EnableTrailingStopSell   bool    `json:"enableTrailingStopSell,omitempty"`
	TrailingStopSellDistance float64 `json:"trailingStopSellDistance,omitempty"`
}

// MarshalJSON flattens the active branch into the wire shape.
func (p StrategyParams) MarshalJSON() ([]byte, error) {
	flat := flatParams{Symbol: p.Symbol, Mode: p.Mode}

	switch p.Mode {
	case StrategyModeShort:
		if p.Short == nil {
			return nil, fmt.Errorf("short strategy params missing for %s", p.Symbol)
		}
		flat.GridSpacing = p.Short.GridSpacing
		flat.CoverTarget = p.Short.CoverTarget
		flat.EnableTrailingStopSell = p.Short.EnableTrailingStopSell
		flat.TrailingStopSellDistance = p.Short.TrailingStopSellDistance
	default:
		if p.Long == nil {
			return nil, fmt.Errorf("long strategy params missing for %s", p.Symbol)
		}
		flat.GridSpacing = p.Long.GridSpacing
		flat.ProfitTarget = p.Long.ProfitTarget
		flat.EnableMomentumSell = p.Long.EnableMomentumSell
		flat.MomentumLookbackPeriod = p.Long.MomentumLookbackPeriod
		flat.EnableTrailingStopBuy = p.Long.EnableTrailingStopBuy
		flat.TrailingStopBuyDistance = p.Long.TrailingStopBuyDistance
	}

	return json.Marshal(flat)
}

// UnmarshalJSON rebuilds the union from the flat wire shape. A missing
// strategyMode means long - the original payloads predate short mode.
func (p *StrategyParams) UnmarshalJSON(data []byte) error {
	var flat flatParams
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	p.Symbol = flat.Symbol
	p.Long = nil
	p.Short = nil

	switch flat.Mode {
	case StrategyModeShort:
		p.Mode = StrategyModeShort
		p.Short = &ShortStrategyParams{
			GridSpacing:              flat.GridSpacing,
			CoverTarget:              flat.CoverTarget,
			EnableTrailingStopSell:   flat.EnableTrailingStopSell,
			TrailingStopSellDistance: flat.TrailingStopSellDistance,
		}
	default:
		p.Mode = StrategyModeLong
		p.Long = &LongStrategyParams{
			GridSpacing:             flat.GridSpacing,
			ProfitTarget:            flat.ProfitTarget,
			EnableMomentumSell:      flat.EnableMomentumSell,
			MomentumLookbackPeriod:  flat.MomentumLookbackPeriod,
			EnableTrailingStopBuy:   flat.EnableTrailingStopBuy,
			TrailingStopBuyDistance: flat.TrailingStopBuyDistance,
		}
	}

	return nil
}

// PercentToDecimal converts a human percentage (10 = 10%) to the fractional
// decimal form the engine expects (0.10). This conversion is load-bearing:
// a value scaled twice produces a strategy 100x too tight.
func PercentToDecimal(v float64) float64 {
	return v * 0.01
}

// DecimalToPercent is the inverse conversion, applied when loading
// engine-form values for UI editing.
func DecimalToPercent(v float64) float64 {
	return v * 100
}

// ToDecimalForm returns a copy with all ratio fields converted from percent
// form to decimal form. Boolean and lookback fields pass through unchanged.
func (p *StrategyParams) ToDecimalForm() *StrategyParams {
	return p.convertRatios(PercentToDecimal)
}

// ToPercentForm returns a copy with all ratio fields converted from decimal
// form to percent form.
func (p *StrategyParams) ToPercentForm() *StrategyParams {
	return p.convertRatios(DecimalToPercent)
}

func (p *StrategyParams) convertRatios(convert func(float64) float64) *StrategyParams {
	out := &StrategyParams{Symbol: p.Symbol, Mode: p.Mode}

	if p.Long != nil {
		long := *p.Long
		long.GridSpacing = convert(long.GridSpacing)
		long.ProfitTarget = convert(long.ProfitTarget)
		long.TrailingStopBuyDistance = convert(long.TrailingStopBuyDistance)
		out.Long = &long
	}
	if p.Short != nil {
		short := *p.Short
		short.GridSpacing = convert(short.GridSpacing)
		short.CoverTarget = convert(short.CoverTarget)
		short.TrailingStopSellDistance = convert(short.TrailingStopSellDistance)
		out.Short = &short
	}

	return out
}

// StockAllocation assigns a slice of portfolio capital to one symbol.
// Allocation is decimal form on the wire (0.30 = 30%).
type StockAllocation struct {
	Symbol     string  `json:"symbol"`
	Allocation float64 `json:"allocation"`
}

// PortfolioBacktestParams is the nested portfolio request shape.
// Ratio fields follow the form of the surrounding context, like StrategyParams.
type PortfolioBacktestParams struct {
	Stocks         []StockAllocation          `json:"stocks"`
	StartDate      string                     `json:"startDate"`
	EndDate        string                     `json:"endDate"`
	InitialCapital float64                    `json:"initialCapital"`
	GridSpacing    float64                    `json:"gridSpacing"`
	ProfitTarget   float64                    `json:"profitTarget"`
	Overrides      map[string]*StrategyParams `json:"overrides,omitempty"` // per-symbol parameter overrides

	// Beta scaling toggles. Must be forced false when parameters arrive
	// already in decimal form (named config files), otherwise the engine
	// double-scales per-stock spacing.
	EnableBetaCapitalAllocation bool `json:"enableBetaCapitalAllocation"`
	EnableBetaScaling           bool `json:"enableBetaScaling"`
}

// ToDecimalForm converts a percent-form portfolio request (as edited in the
// UI) to the decimal form submitted to the engine. Allocations are treated as
// percentages too (30 = 30%).
func (p *PortfolioBacktestParams) ToDecimalForm() *PortfolioBacktestParams {
	out := *p
	out.GridSpacing = PercentToDecimal(p.GridSpacing)
	out.ProfitTarget = PercentToDecimal(p.ProfitTarget)

	out.Stocks = make([]StockAllocation, len(p.Stocks))
	for i, s := range p.Stocks {
		out.Stocks[i] = StockAllocation{Symbol: s.Symbol, Allocation: PercentToDecimal(s.Allocation)}
	}

	if p.Overrides != nil {
		out.Overrides = make(map[string]*StrategyParams, len(p.Overrides))
		for sym, ov := range p.Overrides {
			out.Overrides[sym] = ov.ToDecimalForm()
		}
	}

	return &out
}

// ToPercentForm converts a decimal-form portfolio request (as stored in named
// config files) to the percent form the UI edits.
func (p *PortfolioBacktestParams) ToPercentForm() *PortfolioBacktestParams {
	out := *p
	out.GridSpacing = DecimalToPercent(p.GridSpacing)
	out.ProfitTarget = DecimalToPercent(p.ProfitTarget)

	out.Stocks = make([]StockAllocation, len(p.Stocks))
	for i, s := range p.Stocks {
		out.Stocks[i] = StockAllocation{Symbol: s.Symbol, Allocation: DecimalToPercent(s.Allocation)}
	}

	if p.Overrides != nil {
		out.Overrides = make(map[string]*StrategyParams, len(p.Overrides))
		for sym, ov := range p.Overrides {
			out.Overrides[sym] = ov.ToPercentForm()
		}
	}

	return &out
}

// MarkPreScaled is applied to parameter sets loaded from named config files,
// which are stored in decimal form with per-stock spacing already scaled.
// Re-enabling beta scaling on top of those values would double-scale them.
func (p *PortfolioBacktestParams) MarkPreScaled() {
	p.EnableBetaScaling = false
	p.EnableBetaCapitalAllocation = false
}

// ValidateAllocations checks that stock allocations sum to 100% (decimal 1.0)
// within a small tolerance.
func (p *PortfolioBacktestParams) ValidateAllocations() error {
	if len(p.Stocks) == 0 {
		return fmt.Errorf("portfolio must contain at least one stock")
	}

	var total float64
	for _, s := range p.Stocks {
		total += s.Allocation
	}
	if total < 0.999 || total > 1.001 {
		return fmt.Errorf("stock allocations must sum to 100%% (got %.1f%%)", total*100)
	}
	return nil
}
