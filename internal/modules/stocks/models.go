// Package stocks manages securities metadata: company info, available price
// date ranges, data-quality flags, and beta (calculated or manually overridden).
package stocks

// Security is one row of the securities table.
// JSON tags follow the API's camelCase contract.
type Security struct {
	Symbol          string   `json:"symbol"`
	CompanyName     string   `json:"companyName"`
	Sector          string   `json:"sector"`
	MarketCap       *float64 `json:"marketCap,omitempty"`
	Beta            *float64 `json:"beta,omitempty"`
	BetaOverride    *float64 `json:"betaOverride,omitempty"`
	BetaSource      string   `json:"betaSource,omitempty"` // "calculated" or "manual"
	FirstDate       string   `json:"firstDate,omitempty"`
	LastDate        string   `json:"lastDate,omitempty"`
	TotalDays       int      `json:"totalDays"`
	HasDailyPrices  bool     `json:"hasDailyPrices"`
	HasFundamentals bool     `json:"hasFundamentals"`
	UpdatedAt       int64    `json:"-"`
}

// EffectiveBeta returns the beta the rest of the system should use:
// the manual override when set, otherwise the calculated value.
func (s *Security) EffectiveBeta() *float64 {
	if s.BetaOverride != nil {
		return s.BetaOverride
	}
	return s.Beta
}

// BetaInfo is the GET/PUT /api/stocks/{symbol}/beta payload.
type BetaInfo struct {
	Symbol     string   `json:"symbol"`
	Beta       *float64 `json:"beta"`
	Source     string   `json:"source"` // "calculated", "manual" or "none"
	Overridden bool     `json:"overridden"`
}

// BetaCalculation is the result of a local beta computation against the
// market index.
type BetaCalculation struct {
	Symbol      string  `json:"symbol"`
	IndexSymbol string  `json:"indexSymbol"`
	Beta        float64 `json:"beta"`
	Correlation float64 `json:"correlation"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
	DataPoints  int     `json:"dataPoints"`
}

// Indicators is the GET /api/stocks/{symbol}/indicators payload: technical
// and risk figures computed locally from stored daily closes.
type Indicators struct {
	Symbol               string   `json:"symbol"`
	RSI                  *float64 `json:"rsi,omitempty"`
	Momentum             *float64 `json:"momentum,omitempty"`
	AnnualizedVolatility float64  `json:"annualizedVolatility"`
	MaxDrawdown          float64  `json:"maxDrawdown"`
	SharpeRatio          float64  `json:"sharpeRatio"`
	CAGR                 float64  `json:"cagr"`
	StartDate            string   `json:"startDate"`
	EndDate              string   `json:"endDate"`
	DataPoints           int      `json:"dataPoints"`
}

// DailyClose is one (date, adjusted close) sample used for return series.
type DailyClose struct {
	Date  string
	Close float64
}
