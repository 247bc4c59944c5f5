// Package handlers provides HTTP handlers for automated test runs and
// their archives.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dcalab/backtester/internal/modules/archives"
)

// Handler handles archive HTTP requests.
type Handler struct {
	service  *archives.Service
	progress *archives.Broadcaster
	log      zerolog.Logger
}

// NewHandler creates a new archives handler.
func NewHandler(service *archives.Service, progress *archives.Broadcaster, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		progress: progress,
		log:      log.With().Str("handler", "archives").Logger(),
	}
}

// HandleList handles GET /api/test/archives?limit=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	list, err := h.service.List(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list archives")
		h.writeError(w, http.StatusInternalServerError, "Failed to list archives")
		return
	}

	h.writeSuccess(w, list)
}

// HandleGet handles GET /api/test/archives/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request, id string) {
	archive, err := h.service.Get(id)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to load archive")
		h.writeError(w, http.StatusInternalServerError, "Failed to load archive")
		return
	}
	if archive == nil {
		h.writeError(w, http.StatusNotFound, "Archive not found: "+id)
		return
	}

	h.writeSuccess(w, archive)
}

// HandleGetResponse handles GET /api/test/archives/{id}/response
func (h *Handler) HandleGetResponse(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := h.service.GetResponse(id)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to load archived response")
		h.writeError(w, http.StatusInternalServerError, "Failed to load archived response")
		return
	}
	if doc == nil {
		h.writeError(w, http.StatusNotFound, "No stored response for archive: "+id)
		return
	}

	h.writeSuccess(w, doc)
}

// HandleRunAutomated handles POST /api/test/automated
func (h *Handler) HandleRunAutomated(w http.ResponseWriter, r *http.Request) {
	var req archives.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Run(r.Context(), req)
	if err != nil {
		msg := err.Error()
		status := http.StatusBadGateway
		if strings.Contains(msg, "required") || strings.Contains(msg, "unknown portfolio config") {
			status = http.StatusBadRequest
		}
		h.log.Error().Err(err).Str("config", req.ConfigFile).Msg("Automated test failed")
		h.writeError(w, status, msg)
		return
	}

	h.writeSuccess(w, result)
}

// HandleProgress handles GET /api/test/progress (websocket).
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	h.progress.ServeHTTP(w, r)
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
