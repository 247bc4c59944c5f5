package archives

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository persists the archive index and the raw engine responses.
// The response blob is msgpack-encoded so later retrieval does not need
// a re-run against the engine.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new archives repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "archives").Logger(),
	}
}

// Create inserts an archive record and its raw engine response. A nil
// response stores the index row only. The generated archive ID is set on
// the record and returned.
func (r *Repository) Create(archive *Archive, response interface{}) (string, error) {
	if archive.ID == "" {
		archive.ID = uuid.New().String()
	}
	if archive.CreatedAt.IsZero() {
		archive.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO archives
		(id, timestamp, test_type, description, config_file, folder, success, duration_ms, stock_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		archive.ID,
		archive.Timestamp,
		archive.TestType,
		archive.Description,
		archive.ConfigFile,
		archive.Folder,
		archive.Success,
		archive.DurationMS,
		archive.StockCount,
		archive.CreatedAt.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert archive: %w", err)
	}

	if response != nil {
		blob, err := msgpack.Marshal(response)
		if err != nil {
			return "", fmt.Errorf("failed to encode response: %w", err)
		}
		_, err = tx.Exec(`INSERT INTO archive_responses (archive_id, response) VALUES (?, ?)`,
			archive.ID, blob)
		if err != nil {
			return "", fmt.Errorf("failed to insert response blob: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit archive: %w", err)
	}

	return archive.ID, nil
}

// List returns archives newest-first, capped at limit.
func (r *Repository) List(limit int) ([]Archive, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(`
		SELECT id, timestamp, test_type, description, config_file, folder, success, duration_ms, stock_count, created_at
		FROM archives
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}
	defer rows.Close()

	archives := []Archive{}
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		archives = append(archives, *a)
	}

	return archives, rows.Err()
}

// Get returns one archive by ID. Returns nil when not found.
func (r *Repository) Get(id string) (*Archive, error) {
	row := r.db.QueryRow(`
		SELECT id, timestamp, test_type, description, config_file, folder, success, duration_ms, stock_count, created_at
		FROM archives
		WHERE id = ?
	`, id)

	a, err := scanArchive(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetResponse decodes the stored engine response for an archive into dest.
// Returns false when no response blob exists for the ID.
func (r *Repository) GetResponse(id string, dest interface{}) (bool, error) {
	var blob []byte
	err := r.db.QueryRow(`SELECT response FROM archive_responses WHERE archive_id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load response blob: %w", err)
	}

	if err := msgpack.Unmarshal(blob, dest); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return true, nil
}

// DeleteOlderThan removes archive records created before the cutoff and
// returns the folder names of the deleted rows so the caller can remove
// the matching directories.
func (r *Repository) DeleteOlderThan(cutoff time.Time) ([]string, error) {
	rows, err := r.db.Query(`SELECT folder FROM archives WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to select expired archives: %w", err)
	}
	defer rows.Close()

	folders := []string{}
	for rows.Next() {
		var folder string
		if err := rows.Scan(&folder); err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Blobs are removed explicitly so cleanup does not depend on the
	// foreign_keys pragma being enabled on the connection.
	_, err = r.db.Exec(`DELETE FROM archive_responses WHERE archive_id IN (SELECT id FROM archives WHERE created_at < ?)`, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired response blobs: %w", err)
	}
	_, err = r.db.Exec(`DELETE FROM archives WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired archives: %w", err)
	}

	return folders, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArchive(row rowScanner) (*Archive, error) {
	var a Archive
	var configFile sql.NullString
	var createdAt int64

	err := row.Scan(&a.ID, &a.Timestamp, &a.TestType, &a.Description, &configFile,
		&a.Folder, &a.Success, &a.DurationMS, &a.StockCount, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan archive: %w", err)
	}

	if configFile.Valid {
		a.ConfigFile = configFile.String
	}
	a.CreatedAt = time.Unix(createdAt, 0)
	return &a, nil
}
