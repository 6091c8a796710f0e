package matcher

import (
	"testing"
	"time"

	"broker-fee-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func createTestIndex() *TradeIndex {
	return BuildTradeIndex(map[string][]models.TradeIndexEntry{
		"GV": {
			{Date: day(2024, 10, 14), Quantity: decimal.NewFromInt(50), Value: decimal.NewFromInt(6), Side: "S"},
			{Date: day(2024, 10, 10), Quantity: decimal.NewFromInt(100), Value: decimal.NewFromInt(5), Side: "B"},
			{Date: day(2024, 10, 10).Add(3 * time.Hour), Quantity: decimal.NewFromInt(20), Value: decimal.NewFromInt(5), Side: "B"},
		},
		"TSLA": {
			{Date: day(2024, 10, 2), Quantity: decimal.NewFromInt(10), Value: decimal.NewFromInt(250), Side: "S"},
		},
	})
}

func TestBuildTradeIndex(t *testing.T) {
	index := createTestIndex()

	stats := index.GetIndexStats()
	if stats.TotalEntries != 4 {
		t.Errorf("Expected 4 entries, got %d", stats.TotalEntries)
	}
	if stats.Symbols != 2 {
		t.Errorf("Expected 2 symbols, got %d", stats.Symbols)
	}
	if stats.TradeDays != 3 {
		t.Errorf("Expected 3 distinct trade days, got %d", stats.TradeDays)
	}

	dates := index.Dates("GV")
	if len(dates) != 2 || !dates[0].Equal(day(2024, 10, 10)) || !dates[1].Equal(day(2024, 10, 14)) {
		t.Errorf("Expected GV dates sorted ascending, got %v", dates)
	}

	symbols := index.Symbols()
	if len(symbols) != 2 || symbols[0] != "GV" || symbols[1] != "TSLA" {
		t.Errorf("Expected sorted symbols, got %v", symbols)
	}
}

func TestAlign(t *testing.T) {
	index := createTestIndex()

	tests := []struct {
		name        string
		symbol      string
		billing     time.Time
		wantDate    time.Time
		wantMatched bool
	}{
		{"three days after a trade", "GV", day(2024, 10, 13), day(2024, 10, 10), true},
		{"same day as a trade", "GV", day(2024, 10, 14), day(2024, 10, 14), true},
		{"after the last trade", "GV", day(2024, 10, 31), day(2024, 10, 14), true},
		{"before the first trade", "GV", day(2024, 10, 9), day(2024, 10, 9), false},
		{"billing time of day is ignored", "GV", day(2024, 10, 10).Add(23 * time.Hour), day(2024, 10, 10), true},
		{"unknown symbol", "CASH", day(2024, 10, 13), day(2024, 10, 13), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := index.Align(tt.symbol, tt.billing)
			if matched != tt.wantMatched {
				t.Errorf("Expected matched=%v, got %v", tt.wantMatched, matched)
			}
			if !got.Equal(tt.wantDate) {
				t.Errorf("Expected %s, got %s", tt.wantDate.Format(models.DateLayout), got.Format(models.DateLayout))
			}
		})
	}
}

func TestAlignAfterIncrementalAdd(t *testing.T) {
	index := NewTradeIndex()
	index.Add("GV", models.TradeIndexEntry{Date: day(2024, 10, 20)})
	index.Add("GV", models.TradeIndexEntry{Date: day(2024, 10, 5)})

	if got, _ := index.Align("GV", day(2024, 10, 10)); !got.Equal(day(2024, 10, 5)) {
		t.Errorf("Expected out-of-order adds to be sorted before alignment, got %s", got)
	}

	index.Add("GV", models.TradeIndexEntry{Date: day(2024, 10, 8)})
	if got, _ := index.Align("GV", day(2024, 10, 10)); !got.Equal(day(2024, 10, 8)) {
		t.Errorf("Expected index to re-sort after a later add, got %s", got)
	}
}

func TestLookup(t *testing.T) {
	index := createTestIndex()

	sum, ok := index.Lookup("GV", day(2024, 10, 10))
	if !ok {
		t.Fatal("Expected entries for GV on 2024-10-10")
	}
	if sum.Entries != 2 {
		t.Errorf("Expected 2 entries, got %d", sum.Entries)
	}
	if !sum.Quantity.Equal(decimal.NewFromInt(120)) {
		t.Errorf("Expected summed quantity 120, got %s", sum.Quantity)
	}
	if !sum.Value.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected summed value 10, got %s", sum.Value)
	}

	if _, ok := index.Lookup("GV", day(2024, 10, 11)); ok {
		t.Error("Expected no entries on a non-trade day")
	}
	if _, ok := index.Lookup("AMD", day(2024, 10, 10)); ok {
		t.Error("Expected no entries for an unknown symbol")
	}
}

func TestGetByDateRange(t *testing.T) {
	index := createTestIndex()

	entries := index.GetByDateRange("GV", day(2024, 10, 10), day(2024, 10, 13))
	if len(entries) != 2 {
		t.Errorf("Expected 2 entries in range, got %d", len(entries))
	}

	entries = index.GetByDateRange("GV", day(2024, 10, 1), day(2024, 10, 31))
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries in range, got %d", len(entries))
	}
	if entries[2].Side != "S" {
		t.Errorf("Expected entries in date order, last side %s", entries[2].Side)
	}

	if entries := index.GetByDateRange("GV", day(2024, 11, 1), day(2024, 11, 30)); len(entries) != 0 {
		t.Errorf("Expected no entries outside the traded range, got %d", len(entries))
	}
}
