package analytics

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"broker-fee-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func samplePositions() []*models.Position {
	return []*models.Position{
		{Symbol: "GV", Date: day(10, 1), OvernightFee: dec("10"), LocateCost: dec("2"),
			PnL: decimal.NewNullDecimal(dec("100")), TransactionType: models.CategoryTrading},
		{Symbol: "AMD", Date: day(10, 2), OvernightFee: dec("4"), Commissions: dec("1"),
			TransactionType: models.CategoryOvernight},
		{Symbol: "GV", Date: day(10, 3), LocateCost: dec("3"), MiscFees: dec("0.05"),
			TransactionType: models.CategoryLocate},
		{Symbol: "TSLA", Date: day(10, 3), MarketDataFee: dec("10"), InterestFee: dec("2"),
			TransactionType: models.CategoryMarketData},
	}
}

func symbols(positions []*models.Position) string {
	var out []string
	for _, p := range positions {
		out = append(out, p.Symbol+"@"+p.DateKey())
	}
	return strings.Join(out, ",")
}

func TestFilterApply(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"zero filter", Filter{}, "GV@2024-10-01,AMD@2024-10-02,GV@2024-10-03,TSLA@2024-10-03"},
		{"inclusive range", Filter{Start: day(10, 2), End: day(10, 3)}, "AMD@2024-10-02,GV@2024-10-03,TSLA@2024-10-03"},
		{"open end", Filter{Start: day(10, 3)}, "GV@2024-10-03,TSLA@2024-10-03"},
		{"open start", Filter{End: day(10, 1)}, "GV@2024-10-01"},
		{"tickers", Filter{Tickers: []string{"gv", " TSLA "}}, "GV@2024-10-01,GV@2024-10-03,TSLA@2024-10-03"},
		{"range and tickers", Filter{Start: day(10, 2), Tickers: []string{"GV"}}, "GV@2024-10-03"},
		{"no match", Filter{Tickers: []string{"NVDA"}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := symbols(tt.filter.Apply(samplePositions())); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFilterStatementRecomputesSummary(t *testing.T) {
	stmt := &models.Statement{Positions: samplePositions()}

	view := FilterStatement(stmt, Filter{Tickers: []string{"GV"}})

	if len(view.Positions) != 2 {
		t.Fatalf("Expected 2 GV positions, got %d", len(view.Positions))
	}
	if !view.Summary.TotalFees.Equal(dec("15.05")) {
		t.Errorf("Expected filtered total fees 15.05, got %s", view.Summary.TotalFees)
	}
	if view.Summary.DaysAnalyzed != 2 || view.Summary.TotalPositions != 2 {
		t.Errorf("Expected 2 days and 2 positions, got %+v", view.Summary)
	}
	if !view.Totals.LocateCosts.Equal(dec("5")) {
		t.Errorf("Expected filtered locate total 5, got %s", view.Totals.LocateCosts)
	}
	if len(stmt.Positions) != 4 {
		t.Error("Expected the statement to be left untouched")
	}

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"totalFees":15.05`) {
		t.Errorf("Expected summary in JSON, got %s", data)
	}
}

func TestTickers(t *testing.T) {
	got := strings.Join(Tickers(samplePositions()), ",")
	if got != "AMD,GV,TSLA" {
		t.Errorf("Expected sorted distinct tickers, got %s", got)
	}
}

func TestDailySeries(t *testing.T) {
	series := DailySeries(samplePositions())

	if len(series) != 3 {
		t.Fatalf("Expected 3 days, got %d", len(series))
	}

	want := []struct {
		date      string
		overnight string
		locate    string
		total     string
	}{
		{"2024-10-01", "10", "2", "12"},
		{"2024-10-02", "4", "0", "4"},
		{"2024-10-03", "0", "3", "3"},
	}
	for i, w := range want {
		got := series[i]
		if got.Date.Format(models.DateLayout) != w.date {
			t.Errorf("day %d: expected %s, got %s", i, w.date, got.Date.Format(models.DateLayout))
		}
		if !got.Overnight.Equal(dec(w.overnight)) || !got.Locate.Equal(dec(w.locate)) || !got.Total.Equal(dec(w.total)) {
			t.Errorf("day %s: expected %s/%s/%s, got %s/%s/%s", w.date,
				w.overnight, w.locate, w.total, got.Overnight, got.Locate, got.Total)
		}
	}
}

func TestBreakdown(t *testing.T) {
	items := Breakdown(models.Totals{
		OvernightFees: dec("30"),
		LocateCosts:   dec("10"),
		InterestFees:  dec("0"),
		OtherFees:     dec("0.001"),
	})

	if len(items) != 2 {
		t.Fatalf("Expected 2 non-zero categories, got %d: %+v", len(items), items)
	}
	if items[0].Name != "Overnight Fees" || !items[0].Share.Equal(dec("75")) {
		t.Errorf("Expected overnight at 75%%, got %s at %s", items[0].Name, items[0].Share)
	}
	if items[1].Name != "Locate Costs" || !items[1].Share.Equal(dec("25")) {
		t.Errorf("Expected locate at 25%%, got %s at %s", items[1].Name, items[1].Share)
	}

	if len(Breakdown(models.Totals{})) != 0 {
		t.Error("Expected empty breakdown for zero totals")
	}
}

func TestTopExpensive(t *testing.T) {
	ranked := TopExpensive(samplePositions(), 0)

	if len(ranked) != 3 {
		t.Fatalf("Expected 3 symbols, got %d", len(ranked))
	}
	if ranked[0].Symbol != "GV" || !ranked[0].TotalFee.Equal(dec("15.05")) {
		t.Errorf("Expected GV first at 15.05, got %s at %s", ranked[0].Symbol, ranked[0].TotalFee)
	}
	if ranked[0].Count != 2 || ranked[0].TradingCount != 1 {
		t.Errorf("Expected 2 entries with 1 trade, got %d/%d", ranked[0].Count, ranked[0].TradingCount)
	}
	if !ranked[0].Entries[0].Date.Equal(day(10, 3)) {
		t.Errorf("Expected newest entry first, got %s", ranked[0].Entries[0].Date)
	}
	if ranked[1].Symbol != "AMD" || ranked[2].Symbol != "TSLA" {
		t.Errorf("Expected AMD then TSLA, got %s then %s", ranked[1].Symbol, ranked[2].Symbol)
	}
	if !ranked[2].TotalFee.IsZero() {
		t.Errorf("Expected market data to be excluded from the ranking fee, got %s", ranked[2].TotalFee)
	}
}

func TestTopExpensiveTies(t *testing.T) {
	positions := []*models.Position{
		{Symbol: "BBB", Date: day(10, 1), OvernightFee: dec("5.00"), PnL: decimal.NewNullDecimal(dec("10"))},
		{Symbol: "AAA", Date: day(10, 1), OvernightFee: dec("5.01"), PnL: decimal.NewNullDecimal(dec("-50"))},
		{Symbol: "CCC", Date: day(10, 1), OvernightFee: dec("5.00"), PnL: decimal.NewNullDecimal(dec("10"))},
		{Symbol: "DDD", Date: day(10, 1), OvernightFee: dec("9.00")},
	}

	ranked := TopExpensive(positions, 3)

	var got []string
	for _, r := range ranked {
		got = append(got, r.Symbol)
	}
	if strings.Join(got, ",") != "DDD,AAA,BBB" {
		t.Errorf("Expected DDD,AAA,BBB, got %v", got)
	}
}
