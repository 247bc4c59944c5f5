// Package analysis compares strategy variants, scores symbols for
// strategy fit, and serves ad-hoc daily trade reports.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dcalab/backtester/internal/clients/engine"
	"github.com/dcalab/backtester/internal/domain"
	"github.com/dcalab/backtester/internal/modules/dailytrades"
)

const (
	minStrategies = 2
	maxStrategies = 5

	defaultInitialCapital = 10000

	// Default sweep point used to probe a symbol's suitability.
	suitabilityGridSpacing  = 0.10
	suitabilityProfitTarget = 0.05
)

// Service runs strategy comparisons and suitability probes.
type Service struct {
	engine *engine.Client
	log    zerolog.Logger
}

// NewService creates a new analysis service.
func NewService(engineClient *engine.Client, log zerolog.Logger) *Service {
	return &Service{
		engine: engineClient,
		log:    log.With().Str("service", "analysis").Logger(),
	}
}

// CompareStrategies runs each variant as a single-stock backtest and ranks
// the outcomes by Sharpe ratio. Parameters are decimal-form ratios.
func (s *Service) CompareStrategies(ctx context.Context, req *CompareRequest) (*Comparison, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if len(req.Strategies) < minStrategies || len(req.Strategies) > maxStrategies {
		return nil, fmt.Errorf("strategies must contain between %d and %d entries", minStrategies, maxStrategies)
	}
	capital := req.InitialCapital
	if capital <= 0 {
		capital = defaultInitialCapital
	}

	outcomes := make([]StrategyOutcome, 0, len(req.Strategies))
	for _, strategy := range req.Strategies {
		if strategy.GridSpacing <= 0 || strategy.GridSpacing > 1 {
			return nil, fmt.Errorf("strategy %q: gridSpacing must be a ratio in (0, 1]", strategy.Name)
		}
		if strategy.ProfitTarget <= 0 || strategy.ProfitTarget > 1 {
			return nil, fmt.Errorf("strategy %q: profitTarget must be a ratio in (0, 1]", strategy.Name)
		}

		result, err := s.engine.RunDCABacktest(ctx, &engine.DCABacktestRequest{
			Symbol:         req.Symbol,
			StartDate:      req.StartDate,
			EndDate:        req.EndDate,
			InitialCapital: capital,
			Parameters: domain.NewLongParams(req.Symbol, domain.LongStrategyParams{
				GridSpacing:           strategy.GridSpacing,
				ProfitTarget:          strategy.ProfitTarget,
				EnableMomentumSell:    strategy.EnableMomentumSell,
				EnableTrailingStopBuy: strategy.EnableTrailingStopBuy,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("backtest failed for %s: %w", strategy.Name, err)
		}

		outcomes = append(outcomes, StrategyOutcome{
			StrategyName: strategy.Name,
			Parameters:   strategy,
			Metrics: StrategyMetrics{
				TotalReturnPct: result.TotalReturn,
				MaxDrawdownPct: result.MaxDrawdown,
				SharpeRatio:    result.SharpeRatio,
				NumTrades:      result.NumTrades,
				FinalCapital:   result.FinalCapital,
			},
		})
	}

	best := outcomes[0]
	for _, o := range outcomes[1:] {
		if o.Metrics.SharpeRatio > best.Metrics.SharpeRatio {
			best = o
		}
	}

	return &Comparison{
		Symbol:             req.Symbol,
		Period:             fmt.Sprintf("%s to %s", req.StartDate, req.EndDate),
		StrategiesCompared: len(outcomes),
		ComparisonTable:    outcomes,
		Recommendation: Recommendation{
			BestStrategy: best.StrategyName,
			Reason:       fmt.Sprintf("Highest Sharpe ratio (%.3f)", best.Metrics.SharpeRatio),
			TotalReturn:  best.Metrics.TotalReturnPct,
			MaxDrawdown:  best.Metrics.MaxDrawdownPct,
		},
	}, nil
}

// SuitabilityScore probes a symbol with a default parameter set and
// interprets the resulting suitability score.
func (s *Service) SuitabilityScore(ctx context.Context, req *SuitabilityRequest) (*SuitabilityReport, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	result, err := s.engine.RunDCABacktest(ctx, &engine.DCABacktestRequest{
		Symbol:         req.Symbol,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		InitialCapital: defaultInitialCapital,
		Parameters: domain.NewLongParams(req.Symbol, domain.LongStrategyParams{
			GridSpacing:  suitabilityGridSpacing,
			ProfitTarget: suitabilityProfitTarget,
		}),
	})
	if err != nil {
		return nil, err
	}

	score := result.DcaSuitabilityScore
	interpretation := InterpretSuitability(score)

	return &SuitabilityReport{
		Symbol:         req.Symbol,
		OverallScore:   score,
		Interpretation: interpretation,
		Recommendation: fmt.Sprintf(
			"%s is a %s for DCA strategy based on historical trade activity, mean reversion, and capital efficiency.",
			req.Symbol, strings.ToLower(interpretation)),
	}, nil
}

// InterpretSuitability maps a 0-100 score to its candidate band.
func InterpretSuitability(score float64) string {
	switch {
	case score < 30:
		return "Poor candidate"
	case score < 50:
		return "Fair candidate"
	case score < 70:
		return "Good candidate"
	default:
		return "Excellent candidate"
	}
}

// DailyTradesReport aggregates an ad-hoc results payload into the daily
// trade report, with optional filter and presentation order.
func (s *Service) DailyTradesReport(req *DailyTradesRequest) ([]dailytrades.DailyAggregate, dailytrades.Totals, error) {
	filter, err := parseFilter(req.Filter)
	if err != nil {
		return nil, dailytrades.Totals{}, err
	}
	order, err := parseOrder(req.Order)
	if err != nil {
		return nil, dailytrades.Totals{}, err
	}

	days := dailytrades.Aggregate(req.StockResults, req.StartingCapital, filter, order)
	return days, dailytrades.Summarize(days), nil
}

func parseFilter(v string) (dailytrades.FilterType, error) {
	switch v {
	case "", string(dailytrades.FilterAll):
		return dailytrades.FilterAll, nil
	case string(dailytrades.FilterBuys):
		return dailytrades.FilterBuys, nil
	case string(dailytrades.FilterSells):
		return dailytrades.FilterSells, nil
	default:
		return "", fmt.Errorf("invalid filter %q", v)
	}
}

func parseOrder(v string) (dailytrades.SortOrder, error) {
	switch v {
	case "", string(dailytrades.SortAsc):
		return dailytrades.SortAsc, nil
	case string(dailytrades.SortDesc):
		return dailytrades.SortDesc, nil
	default:
		return "", fmt.Errorf("invalid order %q", v)
	}
}
