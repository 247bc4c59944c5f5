package archives

import (
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob removes archived runs past the retention window.
type CleanupJob struct {
	service   *Service
	retention time.Duration
	log       zerolog.Logger
}

// NewCleanupJob creates a cleanup job with the given retention window.
func NewCleanupJob(service *Service, retention time.Duration, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		service:   service,
		retention: retention,
		log:       log.With().Str("job", "archive_cleanup").Logger(),
	}
}

// Name implements the scheduler Job interface.
func (j *CleanupJob) Name() string {
	return "archive_cleanup"
}

// Run removes expired runs and their artifact folders.
func (j *CleanupJob) Run() error {
	removed, err := j.service.CleanupOlderThan(j.retention)
	if err != nil {
		j.log.Error().Err(err).Msg("Archive cleanup failed")
		return err
	}

	if removed > 0 {
		j.log.Info().Int("removed", removed).Msg("Removed expired archives")
	}
	return nil
}
