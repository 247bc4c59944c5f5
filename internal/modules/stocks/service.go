package stocks

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dcalab/backtester/pkg/formulas"
)

// Service provides stock metadata and beta calculations.
type Service struct {
	repo        *Repository
	indexSymbol string // market index used as the beta benchmark, e.g. SPY
	log         zerolog.Logger
}

// NewService creates a new stocks service.
func NewService(repo *Repository, indexSymbol string, log zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		indexSymbol: indexSymbol,
		log:         log.With().Str("service", "stocks").Logger(),
	}
}

// List returns a page of symbols and the total count.
func (s *Service) List(limit, offset int) ([]string, int, error) {
	return s.repo.List(limit, offset)
}

// GetInfo returns full security metadata, nil if the symbol is unknown.
func (s *Service) GetInfo(symbol string) (*Security, error) {
	return s.repo.GetBySymbol(symbol)
}

// GetBeta returns the effective beta for a symbol.
func (s *Service) GetBeta(symbol string) (*BetaInfo, error) {
	sec, err := s.repo.GetBySymbol(symbol)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, nil
	}

	info := &BetaInfo{
		Symbol:     sec.Symbol,
		Beta:       sec.EffectiveBeta(),
		Overridden: sec.BetaOverride != nil,
	}
	switch {
	case sec.BetaOverride != nil:
		info.Source = "manual"
	case sec.Beta != nil:
		info.Source = "calculated"
	default:
		info.Source = "none"
	}
	return info, nil
}

// SetBetaOverride sets (or clears, when beta is nil) the manual beta override.
func (s *Service) SetBetaOverride(symbol string, beta *float64) (*BetaInfo, error) {
	if beta != nil && (*beta <= 0 || *beta > 10) {
		return nil, fmt.Errorf("beta override out of range: %g", *beta)
	}

	if err := s.repo.SetBetaOverride(symbol, beta); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("symbol", symbol).
		Interface("beta", beta).
		Msg("Beta override updated")

	return s.GetBeta(symbol)
}

// CalculateBeta computes beta and correlation for a symbol against the market
// index over the most recent period trading days, using stored daily closes.
// The computed beta is persisted on the security row.
func (s *Service) CalculateBeta(symbol string, period int) (*BetaCalculation, error) {
	if period <= 1 {
		period = 252
	}

	// One extra close per series: N returns need N+1 prices
	assetCloses, err := s.repo.GetDailyCloses(symbol, period+1)
	if err != nil {
		return nil, err
	}
	indexCloses, err := s.repo.GetDailyCloses(s.indexSymbol, period+1)
	if err != nil {
		return nil, err
	}

	assetPrices, indexPrices, dates := alignByDate(assetCloses, indexCloses)
	if len(dates) < 30 {
		return nil, fmt.Errorf("insufficient overlapping price history for %s vs %s (%d days)",
			symbol, s.indexSymbol, len(dates))
	}

	assetReturns := formulas.CalculateReturns(assetPrices)
	indexReturns := formulas.CalculateReturns(indexPrices)

	calc := &BetaCalculation{
		Symbol:      symbol,
		IndexSymbol: s.indexSymbol,
		Beta:        formulas.Beta(assetReturns, indexReturns),
		Correlation: formulas.Correlation(assetReturns, indexReturns),
		StartDate:   dates[0],
		EndDate:     dates[len(dates)-1],
		DataPoints:  len(assetReturns),
	}

	if err := s.repo.SetCalculatedBeta(symbol, calc.Beta); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to persist calculated beta")
	}

	s.log.Info().
		Str("symbol", symbol).
		Float64("beta", calc.Beta).
		Int("data_points", calc.DataPoints).
		Msg("Calculated beta")

	return calc, nil
}

// GetIndicators computes technical and risk indicators for a symbol from the
// most recent period trading days of stored closes. Nil when the symbol is
// unknown.
func (s *Service) GetIndicators(symbol string, period int) (*Indicators, error) {
	if period <= 1 {
		period = 252
	}

	sec, err := s.repo.GetBySymbol(symbol)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, nil
	}

	closes, err := s.repo.GetDailyCloses(symbol, period+1)
	if err != nil {
		return nil, err
	}
	if len(closes) < 30 {
		return nil, fmt.Errorf("insufficient price history for %s (%d days)", symbol, len(closes))
	}

	prices := make([]float64, len(closes))
	for i, c := range closes {
		prices[i] = c.Close
	}
	returns := formulas.CalculateReturns(prices)
	totalReturnPct := (prices[len(prices)-1]/prices[0] - 1) * 100

	ind := &Indicators{
		Symbol:               sec.Symbol,
		RSI:                  formulas.CalculateRSI(prices, 14),
		Momentum:             formulas.Momentum(prices, 30),
		AnnualizedVolatility: formulas.AnnualizedVolatility(returns),
		MaxDrawdown:          formulas.MaxDrawdown(prices),
		SharpeRatio:          formulas.SharpeRatio(returns, 0),
		CAGR:                 formulas.CAGR(totalReturnPct, closes[0].Date, closes[len(closes)-1].Date),
		StartDate:            closes[0].Date,
		EndDate:              closes[len(closes)-1].Date,
		DataPoints:           len(returns),
	}
	return ind, nil
}

// alignByDate intersects two close series on their dates, preserving
// ascending order. Trading calendars differ per listing, so beta must be
// computed over the common dates only.
func alignByDate(asset, index []DailyClose) (assetPrices, indexPrices []float64, dates []string) {
	indexByDate := make(map[string]float64, len(index))
	for _, c := range index {
		indexByDate[c.Date] = c.Close
	}

	for _, c := range asset {
		if idxClose, ok := indexByDate[c.Date]; ok {
			assetPrices = append(assetPrices, c.Close)
			indexPrices = append(indexPrices, idxClose)
			dates = append(dates, c.Date)
		}
	}
	return assetPrices, indexPrices, dates
}
