// Package server provides the HTTP server and routing for the backtest
// results service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/dcalab/backtester/internal/clients/engine"
	"github.com/dcalab/backtester/internal/config"
	"github.com/dcalab/backtester/internal/database"
	analysishandlers "github.com/dcalab/backtester/internal/modules/analysis/handlers"
	archiveshandlers "github.com/dcalab/backtester/internal/modules/archives/handlers"
	backtesthandlers "github.com/dcalab/backtester/internal/modules/backtest/handlers"
	sequenceshandlers "github.com/dcalab/backtester/internal/modules/sequences/handlers"
	settingshandlers "github.com/dcalab/backtester/internal/modules/settings/handlers"
	stockshandlers "github.com/dcalab/backtester/internal/modules/stocks/handlers"
)

// Config holds server configuration.
type Config struct {
	Log     zerolog.Logger
	Cfg     *config.Config
	Port    int
	DevMode bool

	StocksDB     *database.DB
	ConfigDB     *database.DB
	ArchivesDB   *database.DB
	ClientDataDB *database.DB

	Engine *engine.Client

	StocksHandlers    *stockshandlers.Handler
	BacktestHandlers  *backtesthandlers.Handler
	ArchivesHandlers  *archiveshandlers.Handler
	AnalysisHandlers  *analysishandlers.Handler
	SequencesHandlers *sequenceshandlers.Handler
	SettingsHandlers  *settingshandlers.Handler
}

// Server is the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	system *SystemHandlers
	cfg    Config
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.system = NewSystemHandlers(cfg.Log, cfg.Engine, map[string]*database.DB{
		"stocks":      cfg.StocksDB,
		"config":      cfg.ConfigDB,
		"archives":    cfg.ArchivesDB,
		"client_data": cfg.ClientDataDB,
	})

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router returns the chi router, for tests that serve it directly.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	// Liveness probe, outside the /api tree
	s.router.Get("/health", s.system.HandleLiveness)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.system.HandleHealth)

		if s.cfg.StocksHandlers != nil {
			s.cfg.StocksHandlers.RegisterRoutes(r)
		}
		if s.cfg.BacktestHandlers != nil {
			s.cfg.BacktestHandlers.RegisterRoutes(r)
		}
		if s.cfg.ArchivesHandlers != nil {
			s.cfg.ArchivesHandlers.RegisterRoutes(r)
		}
		if s.cfg.AnalysisHandlers != nil {
			s.cfg.AnalysisHandlers.RegisterRoutes(r)
		}
		if s.cfg.SequencesHandlers != nil {
			s.cfg.SequencesHandlers.RegisterRoutes(r)
		}
		if s.cfg.SettingsHandlers != nil {
			s.cfg.SettingsHandlers.RegisterRoutes(r)
		}
	})
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
