// Package ranking filters parameter-sweep results down to the best performers,
// either globally or per symbol.
package ranking

import "sort"

// Result is the minimal shape the ranking filter needs: a grouping symbol and
// a performance figure. Callers adapt richer result types into this.
type Result struct {
	Symbol      string      `json:"symbol"`
	TotalReturn float64     `json:"totalReturn"`
	Payload     interface{} `json:"payload,omitempty"` // Opaque original record, carried through
}

// TopN returns the global top n results by total return, descending.
// A missing (zero) figure ranks as 0. n <= 0 returns an empty slice.
func TopN(results []Result, n int) []Result {
	if n <= 0 || len(results) == 0 {
		return []Result{}
	}

	sorted := sortDescending(results)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// TopNPerSymbol keeps the first n results of each distinct symbol, then
// re-merges and re-sorts the survivors descending by total return so the
// cross-group list has a globally meaningful order again.
//
// Input is trusted to be pre-sorted within each symbol (the engine emits
// sweep results best-first), so groups are sliced, not re-sorted.
func TopNPerSymbol(results []Result, n int) []Result {
	if n <= 0 || len(results) == 0 {
		return []Result{}
	}

	counts := make(map[string]int)
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if counts[r.Symbol] >= n {
			continue
		}
		counts[r.Symbol]++
		kept = append(kept, r)
	}

	return sortDescending(kept)
}

// sortDescending orders by total return descending with a deterministic
// tie-break: symbol ascending, then original position. Relying on the
// runtime's sort stability alone would make test expectations fragile.
func sortDescending(results []Result) []Result {
	out := make([]Result, len(results))
	copy(out, results)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalReturn != out[j].TotalReturn {
			return out[i].TotalReturn > out[j].TotalReturn
		}
		return out[i].Symbol < out[j].Symbol
	})

	return out
}
