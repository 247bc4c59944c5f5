package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Current price snapshots go stale quickly during market hours.
	TTLCurrentPrice = 10 * time.Minute

	// Beta calculations depend on a year of daily closes, so a day of
	// staleness is acceptable.
	TTLBetaCalculation = 24 * time.Hour

	// Engine health probes are only meaningful for a short window.
	TTLEngineHealth = time.Minute
)
