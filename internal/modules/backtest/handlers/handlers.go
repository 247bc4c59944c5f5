// Package handlers provides HTTP handlers for backtest execution.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dcalab/backtester/internal/clients/engine"
	"github.com/dcalab/backtester/internal/domain"
	"github.com/dcalab/backtester/internal/modules/backtest"
)

// Handler handles backtest HTTP requests.
type Handler struct {
	service *backtest.Service
	log     zerolog.Logger
}

// NewHandler creates a new backtest handler.
func NewHandler(service *backtest.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "backtest").Logger(),
	}
}

// HandlePortfolioBacktest handles POST /api/portfolio-backtest
// Parameters arrive in UI percent form and are converted exactly once.
func (h *Handler) HandlePortfolioBacktest(w http.ResponseWriter, r *http.Request) {
	var params domain.PortfolioBacktestParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.RunPortfolio(r.Context(), &params)
	if err != nil {
		h.log.Error().Err(err).Msg("Portfolio backtest failed")
		h.writeError(w, backtestStatus(err), err.Error())
		return
	}

	h.writeSuccess(w, resp)
}

// HandleEnginePortfolio handles POST /api/backtest/portfolio
// This is the engine-form endpoint: parameters are already decimal.
func (h *Handler) HandleEnginePortfolio(w http.ResponseWriter, r *http.Request) {
	var params domain.PortfolioBacktestParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.RunPortfolioDecimal(r.Context(), &params)
	if err != nil {
		h.log.Error().Err(err).Msg("Portfolio backtest failed")
		h.writeError(w, backtestStatus(err), err.Error())
		return
	}

	h.writeSuccess(w, resp)
}

// HandleConfigBacktest handles POST /api/backtest/portfolio/config
// Body: {"configFile": "<name>"} - executes a named server-side config.
func (h *Handler) HandleConfigBacktest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ConfigFile string `json:"configFile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.ConfigFile == "" {
		h.writeError(w, http.StatusBadRequest, "configFile is required")
		return
	}

	resp, err := h.service.RunPortfolioConfig(r.Context(), body.ConfigFile)
	if err != nil {
		h.log.Error().Err(err).Str("config", body.ConfigFile).Msg("Config backtest failed")
		h.writeError(w, backtestStatus(err), err.Error())
		return
	}

	h.writeSuccess(w, resp)
}

// HandleGetConfig handles GET /api/backtest/portfolio/config/{name}
// Returns the named config in percent form for UI editing.
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request, name string) {
	params, err := h.service.GetPortfolioConfig(name)
	if err != nil {
		h.log.Error().Err(err).Str("config", name).Msg("Failed to load config")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if params == nil {
		h.writeError(w, http.StatusNotFound, "Config not found: "+name)
		return
	}

	h.writeSuccess(w, params)
}

// HandleListConfigs handles GET /api/backtest/portfolio/configs
func (h *Handler) HandleListConfigs(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.ListPortfolioConfigs()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list configs")
		h.writeError(w, http.StatusInternalServerError, "Failed to list configs")
		return
	}

	h.writeSuccess(w, map[string]interface{}{"configs": names})
}

// HandleDCABacktest handles POST /api/backtest/dca
func (h *Handler) HandleDCABacktest(w http.ResponseWriter, r *http.Request) {
	var req engine.DCABacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Symbol == "" {
		h.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	resp, err := h.service.RunDCA(r.Context(), &req)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", req.Symbol).Msg("DCA backtest failed")
		h.writeError(w, backtestStatus(err), err.Error())
		return
	}

	h.writeSuccess(w, resp)
}

// HandleBatchBacktest handles POST /api/backtest/batch
func (h *Handler) HandleBatchBacktest(w http.ResponseWriter, r *http.Request) {
	var req engine.BatchBacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Symbol == "" {
		h.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if len(req.ParameterCombinations) == 0 {
		h.writeError(w, http.StatusBadRequest, "parameterCombinations is required")
		return
	}

	resp, err := h.service.RunBatch(r.Context(), &req)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", req.Symbol).Msg("Batch backtest failed")
		h.writeError(w, backtestStatus(err), err.Error())
		return
	}

	h.writeSuccess(w, resp)
}

// HandleSweep handles POST /api/backtest/sweep
func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	var req backtest.SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}
	if len(req.ParameterCombinations) == 0 {
		h.writeError(w, http.StatusBadRequest, "parameterCombinations is required")
		return
	}

	resp, err := h.service.RunSweep(r.Context(), &req)
	if err != nil {
		h.log.Error().Err(err).Int("symbols", len(req.Symbols)).Msg("Sweep failed")
		h.writeError(w, backtestStatus(err), err.Error())
		return
	}

	h.writeSuccess(w, resp)
}

// backtestStatus maps a failed run to an HTTP status: validation problems are
// the caller's fault, engine/transport failures are upstream.
func backtestStatus(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "allocations"),
		strings.Contains(msg, "unknown portfolio config"),
		strings.Contains(msg, "invalid config"):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
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
