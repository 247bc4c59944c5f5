// Package handlers exposes the grid-level sequence generator over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dcalab/backtester/internal/modules/sequences"
)

// Handler handles sequence HTTP requests.
type Handler struct {
	log zerolog.Logger
}

// NewHandler creates a new sequences handler.
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{log: log.With().Str("handler", "sequences").Logger()}
}

// RegisterRoutes registers all sequence routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sequences", h.HandleGenerate)
}

// HandleGenerate handles GET /api/sequences?n=&start=&end=&firstDelta=&index=
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	n, err := strconv.Atoi(q.Get("n"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "n is required and must be an integer")
		return
	}

	start := parseFloatDefault(q.Get("start"), 0.0)
	end := parseFloatDefault(q.Get("end"), 0.7)

	var firstDelta *float64
	if v := q.Get("firstDelta"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "firstDelta must be a number")
			return
		}
		firstDelta = &parsed
	}

	if v := q.Get("index"); v != "" {
		index, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "index must be an integer")
			return
		}
		point, err := sequences.At(n, start, end, firstDelta, index)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeSuccess(w, point)
		return
	}

	seq, err := sequences.Generate(n, start, end, firstDelta)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeSuccess(w, map[string]interface{}{"sequence": seq})
}

func parseFloatDefault(v string, fallback float64) float64 {
	if v == "" {
		return fallback
	}
	if parsed, err := strconv.ParseFloat(v, 64); err == nil {
		return parsed
	}
	return fallback
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
