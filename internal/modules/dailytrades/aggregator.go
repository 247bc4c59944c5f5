// Package dailytrades builds the daily activity report: per-day trade
// aggregates across all stocks with a running cash balance reconstructed from
// the transaction history.
package dailytrades

import (
	"sort"

	"github.com/dcalab/backtester/internal/domain"
)

// FilterType restricts which transactions are visible in the report.
// Cash accounting always reflects all real activity regardless of filter.
type FilterType string

const (
	// FilterAll shows every executed transaction
	FilterAll FilterType = "all"
	// FilterBuys shows only BUY transactions
	FilterBuys FilterType = "buys"
	// FilterSells shows only SELL transactions
	FilterSells FilterType = "sells"
)

// SortOrder controls the presentation order of the final report.
type SortOrder string

const (
	// SortAsc - oldest day first
	SortAsc SortOrder = "asc"
	// SortDesc - newest day first
	SortDesc SortOrder = "desc"
)

// TaggedTransaction is a transaction annotated with its originating symbol.
type TaggedTransaction struct {
	domain.Transaction
	Symbol string `json:"symbol"`
}

// DailyAggregate is one calendar day of trading activity.
// Counts and the Transactions list reflect the requested filter; the money
// totals and cash fields always reflect the full unfiltered day.
type DailyAggregate struct {
	Date         string              `json:"date"`
	Transactions []TaggedTransaction `json:"transactions"`

	TradeCount int `json:"tradeCount"`
	BuyCount   int `json:"buyCount"`
	SellCount  int `json:"sellCount"`

	TotalBuyAmount   float64 `json:"totalBuyAmount"`
	TotalSellAmount  float64 `json:"totalSellAmount"`
	NetCashFlow      float64 `json:"netCashFlow"` // sells - buys
	DailyRealizedPNL float64 `json:"dailyRealizedPNL"`

	CashBefore float64 `json:"cashBefore"`
	CashAfter  float64 `json:"cashAfter"`
	CashChange float64 `json:"cashChange"`
}

// Aggregate builds the daily trade report. It is a pure function of its
// inputs: no caching, no hidden state, a fresh result on every call.
//
// The cash walk is order-sensitive: days are always walked oldest-first with
// the unfiltered net cash flow, no matter what filter or sort order the
// caller asked for. The display filter and sort are applied afterwards and
// never touch the cash fields.
func Aggregate(stockResults []domain.StockResult, startingCapital float64, filter FilterType, order SortOrder) []DailyAggregate {
	if filter == "" {
		filter = FilterAll
	}
	if order == "" {
		order = SortAsc
	}

	// Step 1: flatten all transactions, tagged with their symbol.
	// Aborted transactions are attempted-but-not-executed actions and are
	// dropped before anything is counted.
	var flat []TaggedTransaction
	for _, result := range stockResults {
		symbol := result.ResolvedSymbol()
		for _, tx := range result.Transactions {
			if tx.IsAborted() {
				continue
			}
			flat = append(flat, TaggedTransaction{Transaction: tx, Symbol: symbol})
		}
	}

	// Step 2: group by the raw date string. No timezone normalization here -
	// dates were normalized once at the ingestion boundary, and string
	// equality is the grouping contract.
	buckets := make(map[string][]TaggedTransaction)
	for _, tx := range flat {
		buckets[tx.Date] = append(buckets[tx.Date], tx)
	}

	days := make([]DailyAggregate, 0, len(buckets))
	for date, dayTxs := range buckets {
		day := DailyAggregate{Date: date}

		// Step 4: money totals always come from the unfiltered day.
		for _, tx := range dayTxs {
			if tx.IsBuy() {
				day.TotalBuyAmount += tx.Value
			} else if tx.IsSell() {
				day.TotalSellAmount += tx.Value
				day.DailyRealizedPNL += tx.RealizedPNL()
			}
		}
		day.NetCashFlow = day.TotalSellAmount - day.TotalBuyAmount

		// Step 3: the visible transaction set and counts honor the filter.
		for _, tx := range dayTxs {
			if !matchesFilter(&tx.Transaction, filter) {
				continue
			}
			day.Transactions = append(day.Transactions, tx)
			day.TradeCount++
			if tx.IsBuy() {
				day.BuyCount++
			} else if tx.IsSell() {
				day.SellCount++
			}
		}

		days = append(days, day)
	}

	// Step 5: ascending date order for the cash walk, independent of the
	// caller's requested order.
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })

	// Step 6: single chronological pass over ALL days. Hidden days still
	// move cash - their flow is folded into every later day's CashBefore.
	runningCash := startingCapital
	for i := range days {
		days[i].CashBefore = runningCash
		days[i].CashAfter = runningCash + days[i].NetCashFlow
		days[i].CashChange = days[i].NetCashFlow
		runningCash = days[i].CashAfter
	}

	// Step 7: drop days with nothing visible under the filter.
	visible := days[:0]
	for _, day := range days {
		if day.TradeCount > 0 {
			visible = append(visible, day)
		}
	}
	days = visible

	// Step 8: presentation order. Cash fields were fixed in step 6 and are
	// only carried through the reorder.
	if order == SortDesc {
		sort.Slice(days, func(i, j int) bool { return days[i].Date > days[j].Date })
	}

	return days
}

func matchesFilter(tx *domain.Transaction, filter FilterType) bool {
	switch filter {
	case FilterBuys:
		return tx.IsBuy()
	case FilterSells:
		return tx.IsSell()
	default:
		return true
	}
}

// Totals summarizes a report for display headers.
type Totals struct {
	TradeCount       int     `json:"tradeCount"`
	TotalBuyAmount   float64 `json:"totalBuyAmount"`
	TotalSellAmount  float64 `json:"totalSellAmount"`
	TotalRealizedPNL float64 `json:"totalRealizedPNL"`
}

// Summarize computes report-wide totals over the visible days.
func Summarize(days []DailyAggregate) Totals {
	var t Totals
	for _, day := range days {
		t.TradeCount += day.TradeCount
		t.TotalBuyAmount += day.TotalBuyAmount
		t.TotalSellAmount += day.TotalSellAmount
		t.TotalRealizedPNL += day.DailyRealizedPNL
	}
	return t
}
