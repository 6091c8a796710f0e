// Package matcher re-keys fee rows onto the trade that incurred them.
//
// Fees such as stock borrow charges post on a billing date that usually
// trails the trade. The TradeIndex built from trading rows records, per
// symbol, the sorted set of trade dates so a fee can be joined to the latest
// trade on or before its billing date.
package matcher

import (
	"sort"
	"time"

	"broker-fee-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

// TradeIndex holds trading rows grouped by symbol and calendar day.
type TradeIndex struct {
	// DateIndex maps symbol to date key (YYYY-MM-DD) to the entries traded
	// that day, in insertion order
	DateIndex map[string]map[string][]models.TradeIndexEntry

	// SortedDates maps symbol to its distinct trade days, ascending
	SortedDates map[string][]time.Time

	totalEntries int
	dirty        bool
}

// DaySummary is the per-day fold of a symbol's trade entries.
type DaySummary struct {
	Date     time.Time
	Quantity decimal.Decimal
	Value    decimal.Decimal
	Amount   decimal.Decimal
	Entries  int
}

// NewTradeIndex creates an empty index.
func NewTradeIndex() *TradeIndex {
	return &TradeIndex{
		DateIndex:   make(map[string]map[string][]models.TradeIndexEntry),
		SortedDates: make(map[string][]time.Time),
	}
}

// BuildTradeIndex creates an index from entries grouped by symbol.
func BuildTradeIndex(entries map[string][]models.TradeIndexEntry) *TradeIndex {
	ti := NewTradeIndex()
	for symbol, list := range entries {
		for _, e := range list {
			ti.Add(symbol, e)
		}
	}
	ti.buildIndexes()
	return ti
}

// Add records one trade entry. The entry date is truncated to a calendar day.
func (ti *TradeIndex) Add(symbol string, entry models.TradeIndexEntry) {
	entry.Date = models.Day(entry.Date)
	dateKey := entry.Date.Format(models.DateLayout)

	days, ok := ti.DateIndex[symbol]
	if !ok {
		days = make(map[string][]models.TradeIndexEntry)
		ti.DateIndex[symbol] = days
	}
	if _, seen := days[dateKey]; !seen {
		ti.SortedDates[symbol] = append(ti.SortedDates[symbol], entry.Date)
		ti.dirty = true
	}
	days[dateKey] = append(days[dateKey], entry)
	ti.totalEntries++
}

// buildIndexes sorts the per-symbol date lists.
func (ti *TradeIndex) buildIndexes() {
	if !ti.dirty {
		return
	}
	for _, dates := range ti.SortedDates {
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	}
	ti.dirty = false
}

// Align returns the latest trade date for symbol that is on or before
// billing. When the symbol has no such trade the billing day itself is
// returned with matched=false.
func (ti *TradeIndex) Align(symbol string, billing time.Time) (aligned time.Time, matched bool) {
	ti.buildIndexes()

	billing = models.Day(billing)
	dates := ti.SortedDates[symbol]

	// first index strictly after billing
	idx := sort.Search(len(dates), func(i int) bool {
		return dates[i].After(billing)
	})
	if idx == 0 {
		return billing, false
	}
	return dates[idx-1], true
}

// GetByDate returns the entries for symbol on the given day.
func (ti *TradeIndex) GetByDate(symbol string, date time.Time) []models.TradeIndexEntry {
	days := ti.DateIndex[symbol]
	if days == nil {
		return nil
	}
	return days[date.Format(models.DateLayout)]
}

// Lookup folds the entries for symbol on the given day.
func (ti *TradeIndex) Lookup(symbol string, date time.Time) (DaySummary, bool) {
	entries := ti.GetByDate(symbol, date)
	if len(entries) == 0 {
		return DaySummary{Date: models.Day(date)}, false
	}

	sum := DaySummary{Date: models.Day(date), Entries: len(entries)}
	for _, e := range entries {
		sum.Quantity = sum.Quantity.Add(e.Quantity)
		sum.Value = sum.Value.Add(e.Value)
		sum.Amount = sum.Amount.Add(e.Amount)
	}
	return sum, true
}

// GetByDateRange returns the symbol's entries between start and end
// inclusive, in date order.
func (ti *TradeIndex) GetByDateRange(symbol string, start, end time.Time) []models.TradeIndexEntry {
	ti.buildIndexes()

	start, end = models.Day(start), models.Day(end)
	dates := ti.SortedDates[symbol]
	from := sort.Search(len(dates), func(i int) bool {
		return !dates[i].Before(start)
	})

	var result []models.TradeIndexEntry
	for i := from; i < len(dates) && !dates[i].After(end); i++ {
		result = append(result, ti.GetByDate(symbol, dates[i])...)
	}
	return result
}

// Dates returns the symbol's distinct trade days in ascending order.
func (ti *TradeIndex) Dates(symbol string) []time.Time {
	ti.buildIndexes()
	return ti.SortedDates[symbol]
}

// Symbols returns the indexed symbols, sorted.
func (ti *TradeIndex) Symbols() []string {
	symbols := make([]string, 0, len(ti.DateIndex))
	for s := range ti.DateIndex {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// IndexStats reports index size.
type IndexStats struct {
	TotalEntries int
	Symbols      int
	TradeDays    int
}

// GetIndexStats returns statistics about the index
func (ti *TradeIndex) GetIndexStats() IndexStats {
	stats := IndexStats{
		TotalEntries: ti.totalEntries,
		Symbols:      len(ti.DateIndex),
	}
	for _, dates := range ti.SortedDates {
		stats.TradeDays += len(dates)
	}
	return stats
}
