package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	backupPrefix        = "backtester-backup-"
	backupTimeLayout    = "2006-01-02-150405"
	minBackupsToKeep    = 3
	backupMetadataName  = "backup-metadata.json"
	backupStagingFolder = "backup-staging"
)

// BackupService bundles the test archives directory into tar.gz backups
// and manages their lifecycle in an object store.
type BackupService struct {
	store       ObjectStore
	archivesDir string
	stagingDir  string
	log         zerolog.Logger
}

// BackupMetadata describes the contents of one backup bundle.
type BackupMetadata struct {
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Files     []FileMetadata `json:"files"`
}

// FileMetadata describes one archived file.
type FileMetadata struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo describes one backup stored remotely.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"sizeBytes"`
	AgeHours  int64     `json:"ageHours"`
}

// NewBackupService creates a backup service over an object store.
func NewBackupService(store ObjectStore, archivesDir, dataDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		store:       store,
		archivesDir: archivesDir,
		stagingDir:  filepath.Join(dataDir, backupStagingFolder),
		log:         log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUploadBackup bundles the archives directory and uploads the
// result. An empty archives directory still produces a (metadata-only)
// backup so the remote history stays continuous.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	startedAt := time.Now()
	s.log.Info().Msg("Starting archive backup")

	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(s.stagingDir)

	files, err := s.collectFiles()
	if err != nil {
		return err
	}

	metadata := BackupMetadata{
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
		Files:     files,
	}
	metadataPath := filepath.Join(s.stagingDir, backupMetadataName)
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	archiveName := backupPrefix + startedAt.Format(backupTimeLayout) + ".tar.gz"
	archivePath := filepath.Join(s.stagingDir, archiveName)
	if err := s.createArchive(archivePath, metadataPath, files); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.store.Upload(ctx, archiveName, archiveFile); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	info, _ := os.Stat(archivePath)
	var sizeBytes int64
	if info != nil {
		sizeBytes = info.Size()
	}

	s.log.Info().
		Str("archive", archiveName).
		Int("files", len(files)).
		Int64("size_bytes", sizeBytes).
		Dur("duration", time.Since(startedAt)).
		Msg("Archive backup completed")

	return nil
}

// ListBackups returns remote backups, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	now := time.Now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, backupPrefix) || !strings.HasSuffix(obj.Key, ".tar.gz") {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(obj.Key, backupPrefix), ".tar.gz")
		timestamp, err := time.Parse(backupTimeLayout, stamp)
		if err != nil {
			s.log.Warn().Str("key", obj.Key).Msg("Skipping backup with unparseable timestamp")
			continue
		}

		backups = append(backups, BackupInfo{
			Filename:  obj.Key,
			Timestamp: timestamp,
			SizeBytes: obj.Size,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes backups older than the retention period.
// The newest three are kept regardless of age; retentionDays 0 keeps
// everything.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= minBackupsToKeep || retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, backup := range backups {
		if i < minBackupsToKeep || !backup.Timestamp.Before(cutoff) {
			continue
		}

		if err := s.store.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			continue
		}
		deleted++
		s.log.Info().Str("filename", backup.Filename).Msg("Deleted old backup")
	}

	if deleted > 0 {
		s.log.Info().
			Int("deleted", deleted).
			Int("remaining", len(backups)-deleted).
			Msg("Backup rotation completed")
	}

	return nil
}

// collectFiles walks the archives directory and checksums every file.
// Paths in the metadata (and the bundle) are relative to the archives dir.
func (s *BackupService) collectFiles() ([]FileMetadata, error) {
	files := []FileMetadata{}

	err := filepath.Walk(s.archivesDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.archivesDir, path)
		if err != nil {
			return err
		}

		checksum, err := checksumFile(path)
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", rel, err)
		}

		files = append(files, FileMetadata{
			Path:      rel,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to walk archives directory: %w", err)
	}

	return files, nil
}

func (s *BackupService) createArchive(archivePath, metadataPath string, files []FileMetadata) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	if err := addFileToArchive(tarWriter, metadataPath, backupMetadataName); err != nil {
		return err
	}

	for _, f := range files {
		src := filepath.Join(s.archivesDir, f.Path)
		if err := addFileToArchive(tarWriter, src, f.Path); err != nil {
			return fmt.Errorf("failed to add %s: %w", f.Path, err)
		}
	}

	return nil
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    filepath.ToSlash(nameInArchive),
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}

func checksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}
