package clientdata

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSchema creates all tables needed for testing
const testSchema = `
CREATE TABLE current_prices (symbol TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE beta_calculations (symbol TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE engine_health (endpoint TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);

CREATE INDEX idx_prices_expires ON current_prices(expires_at);
CREATE INDEX idx_beta_expires ON beta_calculations(expires_at);
CREATE INDEX idx_engine_health_expires ON engine_health(expires_at);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

func TestStore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	data := map[string]interface{}{
		"symbol": "AAPL",
		"close":  187.42,
	}

	err := repo.Store("current_prices", "AAPL", data, TTLCurrentPrice)
	require.NoError(t, err)

	var storedData string
	var expiresAt int64
	err = db.QueryRow("SELECT data, expires_at FROM current_prices WHERE symbol = ?", "AAPL").Scan(&storedData, &expiresAt)
	require.NoError(t, err)

	var parsed map[string]interface{}
	err = json.Unmarshal([]byte(storedData), &parsed)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", parsed["symbol"])
	assert.Equal(t, 187.42, parsed["close"])

	expectedExpires := time.Now().Add(TTLCurrentPrice).Unix()
	assert.InDelta(t, expectedExpires, expiresAt, 5)
}

func TestStoreUpsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store("current_prices", "AAPL", map[string]string{"version": "1"}, time.Hour))
	require.NoError(t, repo.Store("current_prices", "AAPL", map[string]string{"version": "2"}, time.Hour))

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM current_prices WHERE symbol = ?", "AAPL").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	result, err := repo.GetIfFresh("current_prices", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, result)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal(result, &parsed))
	assert.Equal(t, "2", parsed["version"])
}

func TestGetIfFresh_Expired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	expiredAt := time.Now().Add(-time.Hour).Unix()
	_, err := db.Exec(
		"INSERT INTO beta_calculations (symbol, data, expires_at) VALUES (?, ?, ?)",
		"MSFT",
		`{"beta":1.12}`,
		expiredAt,
	)
	require.NoError(t, err)

	result, err := repo.GetIfFresh("beta_calculations", "MSFT")
	require.NoError(t, err)
	assert.Nil(t, result, "Expected nil for expired data")
}

func TestGet_ReturnsStaleData(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	expiredAt := time.Now().Add(-time.Hour).Unix()
	_, err := db.Exec(
		"INSERT INTO current_prices (symbol, data, expires_at) VALUES (?, ?, ?)",
		"AAPL",
		`{"close":180.0}`,
		expiredAt,
	)
	require.NoError(t, err)

	result, err := repo.GetIfFresh("current_prices", "AAPL")
	require.NoError(t, err)
	assert.Nil(t, result, "GetIfFresh should return nil for expired data")

	// Get should return the stale data (useful when the upstream API fails)
	result, err = repo.Get("current_prices", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, result)

	var parsed map[string]float64
	require.NoError(t, json.Unmarshal(result, &parsed))
	assert.Equal(t, 180.0, parsed["close"])
}

func TestGet_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	result, err := repo.Get("current_prices", "NONEXISTENT")
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = repo.GetIfFresh("current_prices", "NONEXISTENT")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store("beta_calculations", "MSFT", map[string]float64{"beta": 1.1}, time.Hour))
	require.NoError(t, repo.Delete("beta_calculations", "MSFT"))

	result, err := repo.GetIfFresh("beta_calculations", "MSFT")
	require.NoError(t, err)
	assert.Nil(t, result)

	// Deleting a non-existent key should not error
	require.NoError(t, repo.Delete("beta_calculations", "NONEXISTENT"))
}

func TestDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	now := time.Now()
	expiredAt := now.Add(-time.Hour).Unix()
	freshAt := now.Add(time.Hour).Unix()

	for _, row := range []struct {
		symbol    string
		expiresAt int64
	}{
		{"AAPL", expiredAt},
		{"MSFT", expiredAt},
		{"GOOG", expiredAt},
		{"NVDA", freshAt},
		{"TSLA", freshAt},
	} {
		_, err := db.Exec("INSERT INTO current_prices (symbol, data, expires_at) VALUES (?, ?, ?)", row.symbol, `{}`, row.expiresAt)
		require.NoError(t, err)
	}

	deleted, err := repo.DeleteExpired("current_prices")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM current_prices").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDeleteAllExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	now := time.Now()
	expiredAt := now.Add(-time.Hour).Unix()
	freshAt := now.Add(time.Hour).Unix()

	_, err := db.Exec("INSERT INTO current_prices (symbol, data, expires_at) VALUES (?, ?, ?)", "AAPL", `{}`, expiredAt)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO current_prices (symbol, data, expires_at) VALUES (?, ?, ?)", "MSFT", `{}`, freshAt)
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO beta_calculations (symbol, data, expires_at) VALUES (?, ?, ?)", "AAPL", `{}`, expiredAt)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO beta_calculations (symbol, data, expires_at) VALUES (?, ?, ?)", "GOOG", `{}`, expiredAt)
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO engine_health (endpoint, data, expires_at) VALUES (?, ?, ?)", "/api/health", `{}`, freshAt)
	require.NoError(t, err)

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)

	assert.Equal(t, int64(1), results["current_prices"])
	assert.Equal(t, int64(2), results["beta_calculations"])
	assert.Equal(t, int64(0), results["engine_health"])
}

func TestInvalidTableName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	t.Run("Store", func(t *testing.T) {
		err := repo.Store("invalid_table; DROP TABLE current_prices;--", "key", map[string]string{}, time.Hour)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid table name")
	})

	t.Run("GetIfFresh", func(t *testing.T) {
		_, err := repo.GetIfFresh("users", "key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid table name")
	})

	t.Run("Get", func(t *testing.T) {
		_, err := repo.Get("passwords", "key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid table name")
	})

	t.Run("Delete", func(t *testing.T) {
		err := repo.Delete("secrets", "key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid table name")
	})
}

func TestGetKeyColumn(t *testing.T) {
	assert.Equal(t, "symbol", getKeyColumn("current_prices"))
	assert.Equal(t, "symbol", getKeyColumn("beta_calculations"))
	assert.Equal(t, "endpoint", getKeyColumn("engine_health"))
}
