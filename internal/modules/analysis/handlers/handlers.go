// Package handlers provides HTTP handlers for strategy analysis.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dcalab/backtester/internal/modules/analysis"
)

// Handler handles analysis HTTP requests.
type Handler struct {
	service *analysis.Service
	log     zerolog.Logger
}

// NewHandler creates a new analysis handler.
func NewHandler(service *analysis.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "analysis").Logger(),
	}
}

// HandleCompare handles POST /api/analysis/compare
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var req analysis.CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	comparison, err := h.service.CompareStrategies(r.Context(), &req)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", req.Symbol).Msg("Strategy comparison failed")
		h.writeError(w, analysisStatus(err), err.Error())
		return
	}

	h.writeSuccess(w, comparison)
}

// HandleSuitability handles POST /api/analysis/suitability
func (h *Handler) HandleSuitability(w http.ResponseWriter, r *http.Request) {
	var req analysis.SuitabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	report, err := h.service.SuitabilityScore(r.Context(), &req)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", req.Symbol).Msg("Suitability probe failed")
		h.writeError(w, analysisStatus(err), err.Error())
		return
	}

	h.writeSuccess(w, report)
}

// HandleDailyTrades handles POST /api/analysis/daily-trades
func (h *Handler) HandleDailyTrades(w http.ResponseWriter, r *http.Request) {
	var req analysis.DailyTradesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	days, totals, err := h.service.DailyTradesReport(&req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"dailyTrades": days,
		"totals":      totals,
	})
}

// analysisStatus maps service errors to HTTP status codes. Validation
// failures are the caller's fault; everything else is an engine problem.
func analysisStatus(err error) int {
	msg := err.Error()
	if strings.Contains(msg, "required") ||
		strings.Contains(msg, "must contain") ||
		strings.Contains(msg, "must be a ratio") {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
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
