// Package handlers provides HTTP handlers for stock metadata and beta operations.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dcalab/backtester/internal/domain"
	"github.com/dcalab/backtester/internal/modules/stocks"
)

// PriceFetcher supplies the current intraday price bar for a symbol.
type PriceFetcher interface {
	GetCurrentPrice(ctx context.Context, symbol string) (*domain.PriceBar, error)
}

// Handler handles stock HTTP requests.
type Handler struct {
	service *stocks.Service
	prices  PriceFetcher
	log     zerolog.Logger
}

// NewHandler creates a new stocks handler.
func NewHandler(service *stocks.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "stocks").Logger(),
	}
}

// SetPriceFetcher wires the current-price client. Without one the price
// endpoint answers 503.
func (h *Handler) SetPriceFetcher(prices PriceFetcher) {
	h.prices = prices
}

// HandleGetPrice handles GET /api/stocks/{symbol}/price
func (h *Handler) HandleGetPrice(w http.ResponseWriter, r *http.Request, symbol string) {
	if h.prices == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Price feed not configured")
		return
	}

	bar, err := h.prices.GetCurrentPrice(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to fetch current price")
		h.writeError(w, http.StatusBadGateway, "Failed to fetch current price")
		return
	}
	if bar == nil {
		h.writeError(w, http.StatusNotFound, "No price data for symbol: "+symbol)
		return
	}

	h.writeSuccess(w, bar)
}

// HandleList handles GET /api/stocks?limit=&offset=
// The response shape ({stocks, totalCount} at the top level) predates the
// success envelope and is kept for compatibility.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	symbols, total, err := h.service.List(limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list stocks")
		h.writeError(w, http.StatusInternalServerError, "Failed to list stocks")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"stocks":     symbols,
		"totalCount": total,
	})
}

// HandleGetInfo handles GET /api/stocks/{symbol}
func (h *Handler) HandleGetInfo(w http.ResponseWriter, r *http.Request, symbol string) {
	sec, err := h.service.GetInfo(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get stock info")
		h.writeError(w, http.StatusInternalServerError, "Failed to get stock info")
		return
	}
	if sec == nil {
		h.writeError(w, http.StatusNotFound, "Stock not found: "+symbol)
		return
	}

	h.writeSuccess(w, sec)
}

// HandleGetBeta handles GET /api/stocks/{symbol}/beta
func (h *Handler) HandleGetBeta(w http.ResponseWriter, r *http.Request, symbol string) {
	info, err := h.service.GetBeta(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get beta")
		h.writeError(w, http.StatusInternalServerError, "Failed to get beta")
		return
	}
	if info == nil {
		h.writeError(w, http.StatusNotFound, "Stock not found: "+symbol)
		return
	}

	h.writeSuccess(w, info)
}

// HandleGetIndicators handles GET /api/stocks/{symbol}/indicators
// Optional query param: period (trading days of history, default 252).
func (h *Handler) HandleGetIndicators(w http.ResponseWriter, r *http.Request, symbol string) {
	period := 0
	if raw := r.URL.Query().Get("period"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid period: "+raw)
			return
		}
		period = n
	}

	ind, err := h.service.GetIndicators(symbol, period)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Indicator calculation failed")
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if ind == nil {
		h.writeError(w, http.StatusNotFound, "Stock not found: "+symbol)
		return
	}

	h.writeSuccess(w, ind)
}

// HandlePutBeta handles PUT /api/stocks/{symbol}/beta
// Body: {"beta": 1.25} to set an override, {"beta": null} to clear it.
func (h *Handler) HandlePutBeta(w http.ResponseWriter, r *http.Request, symbol string) {
	var body struct {
		Beta *float64 `json:"beta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	info, err := h.service.SetBetaOverride(symbol, body.Beta)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to set beta override")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeSuccess(w, info)
}

// HandleCalculateBeta handles POST /api/beta/calculate
// Body: {"symbol": "AAPL", "period": 252}
func (h *Handler) HandleCalculateBeta(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbol string `json:"symbol"`
		Period int    `json:"period"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Symbol == "" {
		h.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	calc, err := h.service.CalculateBeta(body.Symbol, body.Period)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", body.Symbol).Msg("Beta calculation failed")
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.writeSuccess(w, calc)
}

func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
