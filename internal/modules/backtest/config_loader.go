package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dcalab/backtester/internal/domain"
)

// ConfigLoader reads named portfolio configurations from
// <configsDir>/portfolios/<name>.json. Config files store parameters in
// decimal form with per-stock spacing already scaled, so every loaded config
// is marked pre-scaled before use.
type ConfigLoader struct {
	configsDir string
	log        zerolog.Logger
}

// NewConfigLoader creates a config loader rooted at configsDir.
func NewConfigLoader(configsDir string, log zerolog.Logger) *ConfigLoader {
	return &ConfigLoader{
		configsDir: configsDir,
		log:        log.With().Str("component", "config_loader").Logger(),
	}
}

// Load reads and validates a named portfolio config.
// Returns nil, nil when the config does not exist.
func (l *ConfigLoader) Load(name string) (*domain.PortfolioBacktestParams, error) {
	if err := validateConfigName(name); err != nil {
		return nil, err
	}

	path := filepath.Join(l.configsDir, "portfolios", name+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", name, err)
	}

	var params domain.PortfolioBacktestParams
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", name, err)
	}

	// Config files are stored decimal-form and pre-scaled. Re-applying beta
	// scaling on top would double-scale the per-stock spacing.
	params.MarkPreScaled()

	if err := params.ValidateAllocations(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", name, err)
	}

	return &params, nil
}

// List returns the names of all available portfolio configs, sorted.
func (l *ConfigLoader) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(l.configsDir, "portfolios"))
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)

	return names, nil
}

// validateConfigName rejects anything that could escape the configs directory.
func validateConfigName(name string) error {
	if name == "" {
		return fmt.Errorf("config name is required")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid config name: %s", name)
	}
	return nil
}
