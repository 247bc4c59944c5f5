package stocks

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles securities and daily price database operations.
type Repository struct {
	db  *sql.DB // stocks.db - securities + daily_prices tables
	log zerolog.Logger
}

// NewRepository creates a new stocks repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "stocks").Logger(),
	}
}

const securitiesColumns = `symbol, company_name, sector, market_cap, beta, beta_override,
beta_source, first_date, last_date, total_days, has_daily_prices, has_fundamentals, updated_at`

// GetBySymbol returns a security by symbol, nil if not found.
func (r *Repository) GetBySymbol(symbol string) (*Security, error) {
	query := "SELECT " + securitiesColumns + " FROM securities WHERE symbol = ?"

	row := r.db.QueryRow(query, normalizeSymbol(symbol))
	sec, err := scanSecurity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query security %s: %w", symbol, err)
	}
	return sec, nil
}

// List returns a page of symbols ordered alphabetically, plus the total count.
func (r *Repository) List(limit, offset int) ([]string, int, error) {
	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM securities").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count securities: %w", err)
	}

	rows, err := r.db.Query("SELECT symbol FROM securities ORDER BY symbol LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list securities: %w", err)
	}
	defer rows.Close()

	symbols := []string{}
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, 0, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating securities: %w", err)
	}

	return symbols, total, nil
}

// Upsert inserts or updates a security row.
func (r *Repository) Upsert(sec *Security) error {
	_, err := r.db.Exec(`
		INSERT INTO securities (`+securitiesColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			company_name = excluded.company_name,
			sector = excluded.sector,
			market_cap = excluded.market_cap,
			beta = excluded.beta,
			beta_override = excluded.beta_override,
			beta_source = excluded.beta_source,
			first_date = excluded.first_date,
			last_date = excluded.last_date,
			total_days = excluded.total_days,
			has_daily_prices = excluded.has_daily_prices,
			has_fundamentals = excluded.has_fundamentals,
			updated_at = excluded.updated_at
	`,
		normalizeSymbol(sec.Symbol), sec.CompanyName, sec.Sector, sec.MarketCap,
		sec.Beta, sec.BetaOverride, nullableString(sec.BetaSource),
		nullableString(sec.FirstDate), nullableString(sec.LastDate),
		sec.TotalDays, sec.HasDailyPrices, sec.HasFundamentals, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert security %s: %w", sec.Symbol, err)
	}
	return nil
}

// SetCalculatedBeta stores a computed beta without touching a manual override.
func (r *Repository) SetCalculatedBeta(symbol string, beta float64) error {
	_, err := r.db.Exec(`
		UPDATE securities SET beta = ?, beta_source = 'calculated', updated_at = ?
		WHERE symbol = ?
	`, beta, time.Now().Unix(), normalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("failed to store calculated beta for %s: %w", symbol, err)
	}
	return nil
}

// SetBetaOverride sets or clears (nil) the manual beta override.
func (r *Repository) SetBetaOverride(symbol string, beta *float64) error {
	source := "manual"
	if beta == nil {
		source = "calculated"
	}

	result, err := r.db.Exec(`
		UPDATE securities SET beta_override = ?, beta_source = ?, updated_at = ?
		WHERE symbol = ?
	`, beta, source, time.Now().Unix(), normalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("failed to set beta override for %s: %w", symbol, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check beta override for %s: %w", symbol, err)
	}
	if affected == 0 {
		return fmt.Errorf("unknown symbol %s", symbol)
	}
	return nil
}

// GetDailyCloses returns up to limit most recent (date, adjusted close)
// samples for a symbol, in ascending date order. Falls back to close when
// adjusted_close is missing.
func (r *Repository) GetDailyCloses(symbol string, limit int) ([]DailyClose, error) {
	rows, err := r.db.Query(`
		SELECT date, COALESCE(adjusted_close, close)
		FROM daily_prices
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?
	`, normalizeSymbol(symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily closes for %s: %w", symbol, err)
	}
	defer rows.Close()

	var closes []DailyClose
	for rows.Next() {
		var c DailyClose
		if err := rows.Scan(&c.Date, &c.Close); err != nil {
			return nil, fmt.Errorf("failed to scan daily close: %w", err)
		}
		closes = append(closes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily closes: %w", err)
	}

	// Query returns newest-first for the LIMIT, reverse back to ascending
	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}

	return closes, nil
}

// InsertDailyPrice inserts one daily bar, replacing any existing bar for the
// same symbol and date.
func (r *Repository) InsertDailyPrice(symbol, date string, open, high, low, closePrice float64, volume int64, adjustedClose float64) error {
	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO daily_prices (symbol, date, open, high, low, close, volume, adjusted_close)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, normalizeSymbol(symbol), date, open, high, low, closePrice, volume, adjustedClose)
	if err != nil {
		return fmt.Errorf("failed to insert daily price for %s: %w", symbol, err)
	}
	return nil
}

func scanSecurity(row *sql.Row) (*Security, error) {
	var sec Security
	var companyName, sector, betaSource, firstDate, lastDate sql.NullString
	var marketCap, beta, betaOverride sql.NullFloat64
	var updatedAt sql.NullInt64

	err := row.Scan(
		&sec.Symbol, &companyName, &sector, &marketCap, &beta, &betaOverride,
		&betaSource, &firstDate, &lastDate, &sec.TotalDays,
		&sec.HasDailyPrices, &sec.HasFundamentals, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	sec.CompanyName = companyName.String
	sec.Sector = sector.String
	sec.BetaSource = betaSource.String
	sec.FirstDate = firstDate.String
	sec.LastDate = lastDate.String
	sec.UpdatedAt = updatedAt.Int64
	if marketCap.Valid {
		sec.MarketCap = &marketCap.Float64
	}
	if beta.Valid {
		sec.Beta = &beta.Float64
	}
	if betaOverride.Valid {
		sec.BetaOverride = &betaOverride.Float64
	}

	return &sec, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
