package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcalab/backtester/internal/modules/stocks"
)

const testSchema = `
CREATE TABLE securities (
    symbol        TEXT PRIMARY KEY,
    company_name  TEXT,
    sector        TEXT,
    market_cap    REAL,
    beta          REAL,
    beta_override REAL,
    beta_source   TEXT,
    first_date    TEXT,
    last_date     TEXT,
    total_days    INTEGER DEFAULT 0,
    has_daily_prices BOOLEAN DEFAULT 0,
    has_fundamentals BOOLEAN DEFAULT 0,
    updated_at    INTEGER
);

CREATE TABLE daily_prices (
    symbol         TEXT NOT NULL,
    date           TEXT NOT NULL,
    open           REAL,
    high           REAL,
    low            REAL,
    close          REAL NOT NULL,
    volume         INTEGER,
    adjusted_close REAL,
    PRIMARY KEY (symbol, date)
);
`

func setupRouter(t *testing.T) (*chi.Mux, *stocks.Repository) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	repo := stocks.NewRepository(db, zerolog.Nop())
	service := stocks.NewService(repo, "SPY", zerolog.Nop())
	handler := NewHandler(service, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", handler.RegisterRoutes)

	return router, repo
}

func seed(t *testing.T, repo *stocks.Repository, symbol string) {
	t.Helper()
	require.NoError(t, repo.Upsert(&stocks.Security{
		Symbol:         symbol,
		CompanyName:    symbol + " Inc",
		Sector:         "Technology",
		FirstDate:      "2020-01-02",
		LastDate:       "2024-03-15",
		TotalDays:      1058,
		HasDailyPrices: true,
	}))
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleList(t *testing.T) {
	router, repo := setupRouter(t)
	seed(t, repo, "AAPL")
	seed(t, repo, "MSFT")
	seed(t, repo, "GOOG")

	rec := doRequest(t, router, http.MethodGet, "/api/stocks?limit=2&offset=0", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Stocks     []string `json:"stocks"`
		TotalCount int      `json:"totalCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.TotalCount)
	assert.Equal(t, []string{"AAPL", "GOOG"}, body.Stocks)
}

func TestHandleGetInfo(t *testing.T) {
	router, repo := setupRouter(t)
	seed(t, repo, "AAPL")

	rec := doRequest(t, router, http.MethodGet, "/api/stocks/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Symbol         string `json:"symbol"`
			CompanyName    string `json:"companyName"`
			TotalDays      int    `json:"totalDays"`
			HasDailyPrices bool   `json:"hasDailyPrices"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "AAPL Inc", body.Data.CompanyName)
	assert.Equal(t, 1058, body.Data.TotalDays)
	assert.True(t, body.Data.HasDailyPrices)
}

func TestHandleGetInfo_NotFound(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/stocks/UNKNOWN", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "UNKNOWN")
}

func TestHandlePutBeta_RoundTrip(t *testing.T) {
	router, repo := setupRouter(t)
	seed(t, repo, "AAPL")

	rec := doRequest(t, router, http.MethodPut, "/api/stocks/AAPL/beta", `{"beta": 1.35}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/stocks/AAPL/beta", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Beta       *float64 `json:"beta"`
			Source     string   `json:"source"`
			Overridden bool     `json:"overridden"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Data.Beta)
	assert.Equal(t, 1.35, *body.Data.Beta)
	assert.Equal(t, "manual", body.Data.Source)
	assert.True(t, body.Data.Overridden)

	// Clear the override
	rec = doRequest(t, router, http.MethodPut, "/api/stocks/AAPL/beta", `{"beta": null}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/stocks/AAPL/beta", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Data.Overridden)
}

func TestHandleCalculateBeta_BadRequest(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/beta/calculate", `{"period": 252}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "symbol")
}
