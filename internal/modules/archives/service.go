// Package archives records automated test runs: each run is executed
// through the backtest service, written to a timestamped folder of
// reproduction artifacts, and indexed in archives.db.
package archives

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dcalab/backtester/internal/modules/backtest"
)

const maxSlugLen = 50

// Service executes automated test runs and archives their artifacts.
type Service struct {
	repo        *Repository
	backtests   *backtest.Service
	progress    *Broadcaster
	archivesDir string
	configsDir  string
	frontendURL string
	apiURL      string
	log         zerolog.Logger
}

// NewService creates a new archives service.
func NewService(repo *Repository, backtests *backtest.Service, progress *Broadcaster,
	archivesDir, configsDir, frontendURL, apiURL string, log zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		backtests:   backtests,
		progress:    progress,
		archivesDir: archivesDir,
		configsDir:  configsDir,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		apiURL:      strings.TrimRight(apiURL, "/"),
		log:         log.With().Str("service", "archives").Logger(),
	}
}

// List returns recorded runs, newest first.
func (s *Service) List(limit int) ([]Archive, error) {
	return s.repo.List(limit)
}

// Get returns one recorded run. Returns nil when not found.
func (s *Service) Get(id string) (*Archive, error) {
	return s.repo.Get(id)
}

// GetResponse returns the stored engine response for a run as a generic
// document. Returns nil when the run has no stored response.
func (s *Service) GetResponse(id string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	found, err := s.repo.GetResponse(id, &doc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return doc, nil
}

// Run executes a named portfolio config through the engine and archives the
// result. Config lookup failures are returned as errors; engine failures are
// archived with success=false and reported in the result.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.Description == "" {
		return nil, fmt.Errorf("description is required")
	}
	if req.ConfigFile == "" {
		return nil, fmt.Errorf("configFile is required")
	}

	startedAt := time.Now()
	folder := startedAt.Format("2006-01-02_150405") + "_" + slugify(req.Description)

	s.publish(ProgressEvent{Stage: StageRunning, Description: req.Description, Folder: folder})

	result, runErr := s.backtests.RunPortfolioConfig(ctx, req.ConfigFile)
	if runErr != nil && strings.Contains(runErr.Error(), "unknown portfolio config") {
		s.publish(ProgressEvent{Stage: StageFailed, Description: req.Description, Error: runErr.Error()})
		return nil, runErr
	}

	duration := time.Since(startedAt)
	success := runErr == nil

	stockCount := 0
	if success {
		stockCount = len(result.StockResults)
	}

	archive := &Archive{
		Timestamp:   startedAt.Format(time.RFC3339),
		TestType:    "portfolio",
		Description: req.Description,
		ConfigFile:  req.ConfigFile,
		Folder:      folder,
		Success:     success,
		DurationMS:  duration.Milliseconds(),
		StockCount:  stockCount,
	}

	s.publish(ProgressEvent{Stage: StageArchiving, Description: req.Description, Folder: folder})

	if err := s.writeArtifacts(archive, result, runErr); err != nil {
		return nil, fmt.Errorf("failed to write archive artifacts: %w", err)
	}

	var stored interface{}
	if success {
		stored = result
	}
	if _, err := s.repo.Create(archive, stored); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("folder", folder).
		Bool("success", success).
		Dur("duration", duration).
		Msg("Archived automated test run")

	stage := StageComplete
	errMsg := ""
	if !success {
		stage = StageFailed
		errMsg = runErr.Error()
	}
	s.publish(ProgressEvent{Stage: stage, Description: req.Description, Folder: folder, Error: errMsg})

	return &RunResult{
		ArchiveID:   archive.ID,
		ArchivePath: filepath.Join(s.archivesDir, folder),
		Duration:    duration.Seconds(),
		FrontendURL: s.frontendURL + "/portfolio-backtest?config=" + req.ConfigFile,
		Success:     success,
	}, nil
}

// CleanupOlderThan removes runs past the retention window, both the index
// rows and the artifact folders. Returns the number of runs removed.
func (s *Service) CleanupOlderThan(retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	folders, err := s.repo.DeleteOlderThan(cutoff)
	if err != nil {
		return 0, err
	}

	for _, folder := range folders {
		path := filepath.Join(s.archivesDir, folder)
		if err := os.RemoveAll(path); err != nil {
			s.log.Warn().Err(err).Str("folder", folder).Msg("Failed to remove archive folder")
		}
	}

	return len(folders), nil
}

func (s *Service) writeArtifacts(archive *Archive, result *backtest.PortfolioResponse, runErr error) error {
	dir := filepath.Join(s.archivesDir, archive.Folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	frontendURL := s.frontendURL + "/portfolio-backtest?config=" + archive.ConfigFile
	apiURL := s.apiURL + "/api/backtest/portfolio/config"

	// Verbatim copy of the config that was run, for exact reproduction.
	configPath := filepath.Join(s.configsDir, "portfolios", archive.ConfigFile+".json")
	if raw, err := os.ReadFile(configPath); err == nil {
		if err := os.WriteFile(filepath.Join(dir, "config.json"), raw, 0o644); err != nil {
			return err
		}
	}

	if result != nil {
		raw, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "api-response.json"), raw, 0o644); err != nil {
			return err
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "frontend-url.txt"), []byte(frontendURL+"\n"), 0o644); err != nil {
		return err
	}

	curl := fmt.Sprintf("#!/bin/bash\ncurl -X POST %s \\\n  -H 'Content-Type: application/json' \\\n  -d '{\"configFile\": %q}'\n",
		apiURL, archive.ConfigFile)
	if err := os.WriteFile(filepath.Join(dir, "curl-command.sh"), []byte(curl), 0o755); err != nil {
		return err
	}

	readme := s.buildReadme(archive, frontendURL, runErr)
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(readme), 0o644); err != nil {
		return err
	}

	meta := Metadata{
		TestType:    archive.TestType,
		Description: archive.Description,
		ConfigFile:  archive.ConfigFile,
		Timestamp:   archive.Timestamp,
		Success:     archive.Success,
		FrontendURL: frontendURL,
		APIURL:      apiURL,
		StockCount:  archive.StockCount,
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "metadata.json"), raw, 0o644)
}

func (s *Service) buildReadme(archive *Archive, frontendURL string, runErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", archive.Description)
	fmt.Fprintf(&b, "- **Type:** %s\n", archive.TestType)
	fmt.Fprintf(&b, "- **Config:** %s\n", archive.ConfigFile)
	fmt.Fprintf(&b, "- **Run at:** %s\n", archive.Timestamp)
	fmt.Fprintf(&b, "- **Success:** %t\n", archive.Success)
	if runErr != nil {
		fmt.Fprintf(&b, "- **Error:** %s\n", runErr.Error())
	}
	b.WriteString("\n## Reproduce\n\n")
	fmt.Fprintf(&b, "View in the frontend: %s\n\n", frontendURL)
	b.WriteString("Or re-run against the API:\n\n```bash\n./curl-command.sh\n```\n")
	return b.String()
}

func (s *Service) publish(ev ProgressEvent) {
	if s.progress != nil {
		s.progress.Publish(ev)
	}
}

// slugify turns a free-text description into a filesystem-safe folder
// suffix: lowercase, spaces to dashes, alphanumerics and dashes only.
func slugify(description string) string {
	s := strings.ToLower(strings.TrimSpace(description))
	s = strings.ReplaceAll(s, " ", "-")

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	out = strings.Trim(out, "-")
	if len(out) > maxSlugLen {
		out = out[:maxSlugLen]
	}
	if out == "" {
		out = "test"
	}
	return out
}
