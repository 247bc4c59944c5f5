// Package main is the entry point for the backtest results service: it
// wires the sqlite databases, the simulation engine client, the module
// services and the background jobs, then serves the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dcalab/backtester/internal/clients/engine"
	"github.com/dcalab/backtester/internal/clients/yahoo"
	"github.com/dcalab/backtester/internal/clientdata"
	"github.com/dcalab/backtester/internal/config"
	"github.com/dcalab/backtester/internal/database"
	"github.com/dcalab/backtester/internal/modules/analysis"
	analysishandlers "github.com/dcalab/backtester/internal/modules/analysis/handlers"
	"github.com/dcalab/backtester/internal/modules/archives"
	archiveshandlers "github.com/dcalab/backtester/internal/modules/archives/handlers"
	"github.com/dcalab/backtester/internal/modules/backtest"
	backtesthandlers "github.com/dcalab/backtester/internal/modules/backtest/handlers"
	sequenceshandlers "github.com/dcalab/backtester/internal/modules/sequences/handlers"
	"github.com/dcalab/backtester/internal/modules/settings"
	settingshandlers "github.com/dcalab/backtester/internal/modules/settings/handlers"
	"github.com/dcalab/backtester/internal/modules/stocks"
	stockshandlers "github.com/dcalab/backtester/internal/modules/stocks/handlers"
	"github.com/dcalab/backtester/internal/reliability"
	"github.com/dcalab/backtester/internal/scheduler"
	"github.com/dcalab/backtester/internal/server"
	"github.com/dcalab/backtester/internal/version"
	"github.com/dcalab/backtester/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Str("version", version.Version).Msg("Starting backtester service")

	// Databases
	openDB := func(name string, profile database.DatabaseProfile) *database.DB {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, name+".db"),
			Profile: profile,
			Name:    name,
		})
		if err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to open database")
		}
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to migrate database")
		}
		return db
	}

	stocksDB := openDB("stocks", database.ProfileStandard)
	defer stocksDB.Close()
	configDB := openDB("config", database.ProfileStandard)
	defer configDB.Close()
	archivesDB := openDB("archives", database.ProfileStandard)
	defer archivesDB.Close()
	clientDataDB := openDB("client_data", database.ProfileCache)
	defer clientDataDB.Close()

	// Settings overrides from config.db take precedence over .env
	settingsRepo := settings.NewRepository(configDB.Conn(), log)
	if err := cfg.UpdateFromSettings(settingsRepo); err != nil {
		log.Warn().Err(err).Msg("Failed to apply settings overrides")
	}

	// Clients
	cacheRepo := clientdata.NewRepository(clientDataDB.Conn())
	engineClient := engine.NewClient(cfg.EngineURL, cacheRepo, log)
	yahooClient := yahoo.NewClient(cacheRepo, log)

	// Services
	stocksRepo := stocks.NewRepository(stocksDB.Conn(), log)
	stocksService := stocks.NewService(stocksRepo, cfg.MarketIndexSymbol, log)

	configLoader := backtest.NewConfigLoader(cfg.ConfigsDir, log)
	backtestService := backtest.NewService(engineClient, configLoader, log)

	progress := archives.NewBroadcaster(log)
	archivesRepo := archives.NewRepository(archivesDB.Conn(), log)
	archivesService := archives.NewService(
		archivesRepo, backtestService, progress,
		cfg.ArchivesDir, cfg.ConfigsDir, cfg.FrontendURL, apiBaseURL(cfg), log)

	analysisService := analysis.NewService(engineClient, log)

	stocksHandlers := stockshandlers.NewHandler(stocksService, log)
	stocksHandlers.SetPriceFetcher(yahooClient)

	// HTTP server
	srv := server.New(server.Config{
		Log:          log,
		Cfg:          cfg,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		StocksDB:     stocksDB,
		ConfigDB:     configDB,
		ArchivesDB:   archivesDB,
		ClientDataDB: clientDataDB,
		Engine:       engineClient,

		StocksHandlers:    stocksHandlers,
		BacktestHandlers:  backtesthandlers.NewHandler(backtestService, log),
		ArchivesHandlers:  archiveshandlers.NewHandler(archivesService, progress, log),
		AnalysisHandlers:  analysishandlers.NewHandler(analysisService, log),
		SequencesHandlers: sequenceshandlers.NewHandler(log),
		SettingsHandlers:  settingshandlers.NewHandler(settingsRepo, log),
	})

	// Background jobs
	sched := scheduler.New(log)

	cleanupJob := clientdata.NewCleanupJob(cacheRepo, log)
	if err := sched.AddJob("@hourly", cleanupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache cleanup job")
	}

	if cfg.ArchiveRetentionDays > 0 {
		retention := time.Duration(cfg.ArchiveRetentionDays) * 24 * time.Hour
		archiveCleanup := archives.NewCleanupJob(archivesService, retention, log)
		if err := sched.AddJob("@daily", archiveCleanup); err != nil {
			log.Fatal().Err(err).Msg("Failed to register archive cleanup job")
		}
	}

	if cfg.Backup.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		store, err := reliability.NewS3Client(ctx,
			cfg.Backup.Endpoint, cfg.Backup.Region,
			cfg.Backup.AccessKeyID, cfg.Backup.SecretAccessKey,
			cfg.Backup.Bucket, log)
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize backup store, backups disabled")
		} else {
			backupService := reliability.NewBackupService(store, cfg.ArchivesDir, cfg.DataDir, log)
			backupJob := reliability.NewBackupJob(backupService, cfg.Backup.RetentionDays, log)
			if err := sched.AddJob("@daily", backupJob); err != nil {
				log.Fatal().Err(err).Msg("Failed to register backup job")
			}
		}
	} else {
		log.Info().Msg("Offsite backup not configured, skipping")
	}

	sched.Start()
	defer sched.Stop()

	// Serve until interrupted
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server stopped unexpectedly")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}

// apiBaseURL is the address the archive artifacts point their curl
// commands at.
func apiBaseURL(cfg *config.Config) string {
	return "http://localhost:" + strconv.Itoa(cfg.Port)
}
