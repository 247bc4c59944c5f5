// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/dcalab/backtester/internal/modules/settings"
)

// Config holds application configuration
type Config struct {
	DataDir     string // Base directory for all databases (always absolute)
	ArchivesDir string // Directory for test-run archive folders (defaults to <DataDir>/test-results)
	ConfigsDir  string // Directory holding named portfolio configs (<name>.json)

	EngineURL   string // Base URL of the external simulation engine
	FrontendURL string // Base URL of the results UI, used in archive artifacts

	MarketIndexSymbol string // Benchmark symbol for beta calculation

	LogLevel string
	Port     int
	DevMode  bool

	ArchiveRetentionDays int // Archives older than this are pruned (0 = keep forever)

	Backup *BackupConfig
}

// BackupConfig holds offsite archive backup configuration.
// Backup is disabled unless endpoint, bucket and credentials are all set.
type BackupConfig struct {
	Endpoint        string // S3-compatible endpoint URL
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	RetentionDays   int // Remote backups older than this are rotated out (0 = keep forever)
}

// Enabled reports whether offsite backup is fully configured.
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Endpoint != "" && b.Bucket != "" &&
		b.AccessKeyID != "" && b.SecretAccessKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic:
	// 1. Check BACKTESTER_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path and ensure it exists
	dataDir := getEnv("BACKTESTER_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	archivesDir := getEnv("ARCHIVES_DIR", filepath.Join(absDataDir, "test-results"))
	if err := os.MkdirAll(archivesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archives directory: %w", err)
	}

	cfg := &Config{
		DataDir:              absDataDir,
		ArchivesDir:          archivesDir,
		ConfigsDir:           getEnv("CONFIGS_DIR", "configs/portfolios"),
		EngineURL:            getEnv("ENGINE_URL", "http://localhost:3001"),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:3000"),
		MarketIndexSymbol:    getEnv("MARKET_INDEX_SYMBOL", "SPY"),
		Port:                 getEnvAsInt("PORT", 8001),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		ArchiveRetentionDays: getEnvAsInt("ARCHIVE_RETENTION_DAYS", 90),
		Backup:               loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateFromSettings updates configuration from the settings database.
// This should be called after the config database is initialized.
// Settings DB values take precedence over environment variables.
func (c *Config) UpdateFromSettings(settingsRepo *settings.Repository) error {
	engineURL, err := settingsRepo.Get("engine_url")
	if err != nil {
		return fmt.Errorf("failed to get engine_url from settings: %w", err)
	}
	if engineURL != nil && *engineURL != "" {
		c.EngineURL = *engineURL
	}

	frontendURL, err := settingsRepo.Get("frontend_url")
	if err != nil {
		return fmt.Errorf("failed to get frontend_url from settings: %w", err)
	}
	if frontendURL != nil && *frontendURL != "" {
		c.FrontendURL = *frontendURL
	}

	// Backup credentials live in the settings DB rather than .env so they can
	// be rotated at runtime without a restart.
	accessKey, err := settingsRepo.Get("backup_access_key_id")
	if err != nil {
		return fmt.Errorf("failed to get backup_access_key_id from settings: %w", err)
	}
	if accessKey != nil && *accessKey != "" {
		c.Backup.AccessKeyID = *accessKey
	}

	secretKey, err := settingsRepo.Get("backup_secret_access_key")
	if err != nil {
		return fmt.Errorf("failed to get backup_secret_access_key from settings: %w", err)
	}
	if secretKey != nil && *secretKey != "" {
		c.Backup.SecretAccessKey = *secretKey
	}

	return nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.EngineURL == "" {
		return fmt.Errorf("ENGINE_URL must not be empty")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// loadBackupConfig loads offsite backup configuration from environment variables
func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
		Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
		AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
		Region:          getEnv("BACKUP_S3_REGION", "auto"),
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}
}
