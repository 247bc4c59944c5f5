package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const backupJobTimeout = 15 * time.Minute

// BackupJob uploads a fresh archive backup and rotates old ones.
type BackupJob struct {
	service       *BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates a backup job with the given remote retention.
func NewBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "archive_backup").Logger(),
	}
}

// Name implements the scheduler Job interface.
func (j *BackupJob) Name() string {
	return "archive_backup"
}

// Run creates and uploads a backup, then applies the retention policy.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupJobTimeout)
	defer cancel()

	if err := j.service.CreateAndUploadBackup(ctx); err != nil {
		j.log.Error().Err(err).Msg("Backup upload failed")
		return err
	}

	if err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Error().Err(err).Msg("Backup rotation failed")
		return err
	}

	return nil
}
