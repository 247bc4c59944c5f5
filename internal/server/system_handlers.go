package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/dcalab/backtester/internal/clients/engine"
	"github.com/dcalab/backtester/internal/database"
	"github.com/dcalab/backtester/internal/version"
)

// SystemHandlers serves the health and system status endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	engine      *engine.Client
	databases   map[string]*database.DB
	startupTime time.Time
}

// NewSystemHandlers creates system handlers over the given databases.
func NewSystemHandlers(log zerolog.Logger, engineClient *engine.Client, databases map[string]*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		engine:      engineClient,
		databases:   databases,
		startupTime: time.Now(),
	}
}

// HandleLiveness handles GET /health - a bare liveness probe.
func (h *SystemHandlers) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleHealth handles GET /api/health - the full status report with
// database checks, engine reachability and host resource usage.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := true

	dbStatus := map[string]string{}
	for name, db := range h.databases {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(ctx); err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Database health check failed")
			dbStatus[name] = "error"
			healthy = false
			continue
		}
		dbStatus[name] = "ok"
	}

	engineStatus := map[string]interface{}{"status": "unconfigured"}
	if h.engine != nil {
		if status, err := h.engine.Health(ctx); err != nil {
			engineStatus = map[string]interface{}{"status": "unreachable", "error": err.Error()}
			healthy = false
		} else {
			engineStatus = map[string]interface{}{"status": status.Status}
		}
	}

	cpuPercent, memPercent := h.systemUsage()

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": healthy,
		"data": map[string]interface{}{
			"version":   version.Version,
			"uptime":    time.Since(h.startupTime).Round(time.Second).String(),
			"databases": dbStatus,
			"engine":    engineStatus,
			"system": map[string]float64{
				"cpuPercent":    cpuPercent,
				"memoryPercent": memPercent,
			},
		},
	})
}

// systemUsage samples host CPU and memory. Failures degrade to zeros
// rather than failing the health report.
func (h *SystemHandlers) systemUsage() (float64, float64) {
	cpuAvg := 0.0
	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		cpuAvg = percents[0]
	} else if err != nil {
		h.log.Warn().Err(err).Msg("Failed to sample CPU usage")
	}

	memPercent := 0.0
	if stat, err := mem.VirtualMemory(); err == nil {
		memPercent = stat.UsedPercent
	} else {
		h.log.Warn().Err(err).Msg("Failed to read memory statistics")
	}

	return cpuAvg, memPercent
}
