package clientdata

import (
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupJob_Run(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	now := time.Now()
	expiredAt := now.Add(-time.Hour).Unix()
	freshAt := now.Add(time.Hour).Unix()

	_, err := db.Exec("INSERT INTO current_prices (symbol, data, expires_at) VALUES (?, ?, ?)", "AAPL", `{}`, expiredAt)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO current_prices (symbol, data, expires_at) VALUES (?, ?, ?)", "MSFT", `{}`, freshAt)
	require.NoError(t, err)

	job := NewCleanupJob(repo, zerolog.Nop())
	require.NoError(t, job.Run())

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM current_prices").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCleanupJob_Name(t *testing.T) {
	job := NewCleanupJob(NewRepository(setupTestDB(t)), zerolog.Nop())
	assert.Equal(t, "client_data_cleanup", job.Name())
}
