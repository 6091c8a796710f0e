// Package analytics derives views over a statement's positions: filtered
// subsets with a recomputed summary, the daily fee series, the fee
// breakdown by category and the ranking of the most expensive symbols.
//
// Every function is pure and leaves its input untouched.
package analytics

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"broker-fee-reconciler/internal/models"
	"broker-fee-reconciler/internal/reconciler"

	"github.com/shopspring/decimal"
)

// DefaultTopN is the ranking size used when none is given.
const DefaultTopN = 10

var (
	hundred = decimal.NewFromInt(100)
	oneCent = decimal.New(1, -2)
)

// Filter selects positions by inclusive date range and ticker set. Zero
// bounds and an empty ticker list match everything.
type Filter struct {
	Start   time.Time
	End     time.Time
	Tickers []string
}

// IsZero reports whether the filter matches every position.
func (f Filter) IsZero() bool {
	return f.Start.IsZero() && f.End.IsZero() && len(f.Tickers) == 0
}

func (f Filter) tickerSet() map[string]bool {
	if len(f.Tickers) == 0 {
		return nil
	}
	set := make(map[string]bool, len(f.Tickers))
	for _, t := range f.Tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			set[t] = true
		}
	}
	return set
}

// Apply returns the matching positions in their original order.
func (f Filter) Apply(positions []*models.Position) []*models.Position {
	tickers := f.tickerSet()
	start, end := models.Day(f.Start), models.Day(f.End)

	out := make([]*models.Position, 0, len(positions))
	for _, p := range positions {
		if !f.Start.IsZero() && p.Date.Before(start) {
			continue
		}
		if !f.End.IsZero() && p.Date.After(end) {
			continue
		}
		if tickers != nil && !tickers[p.Symbol] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// View is a subset of positions with totals and summary computed over the
// subset alone.
type View struct {
	Positions []*models.Position
	Totals    models.Totals
	Summary   models.StatementSummary
}

// NewView computes totals and summary for positions.
func NewView(positions []*models.Position) *View {
	return &View{
		Positions: positions,
		Totals:    reconciler.ComputeTotals(positions),
		Summary:   reconciler.Summarize(positions),
	}
}

// FilterStatement applies f to the statement's positions.
func FilterStatement(stmt *models.Statement, f Filter) *View {
	return NewView(f.Apply(stmt.Positions))
}

// MarshalJSON writes the view with the positions, totals and summary.
func (v View) MarshalJSON() ([]byte, error) {
	positions := v.Positions
	if positions == nil {
		positions = []*models.Position{}
	}
	return json.Marshal(struct {
		Positions []*models.Position      `json:"positions"`
		Totals    models.Totals           `json:"totals"`
		Summary   models.StatementSummary `json:"summary"`
	}{positions, v.Totals, v.Summary})
}

// Tickers returns the distinct symbols, sorted.
func Tickers(positions []*models.Position) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range positions {
		if !seen[p.Symbol] {
			seen[p.Symbol] = true
			out = append(out, p.Symbol)
		}
	}
	sort.Strings(out)
	return out
}

// DailyFee is the borrow cost of one calendar day.
type DailyFee struct {
	Date      time.Time
	Overnight decimal.Decimal
	Locate    decimal.Decimal
	Total     decimal.Decimal
}

// MarshalJSON writes amounts as JSON numbers with cent precision.
func (d DailyFee) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date      string      `json:"date"`
		Overnight json.Number `json:"overnightFee"`
		Locate    json.Number `json:"locateCost"`
		Total     json.Number `json:"total"`
	}{d.Date.Format(models.DateLayout), models.Money(d.Overnight), models.Money(d.Locate), models.Money(d.Total)})
}

// DailySeries sums overnight and locate fees per date, sorted by date.
func DailySeries(positions []*models.Position) []DailyFee {
	byDate := make(map[string]*DailyFee)
	for _, p := range positions {
		day, ok := byDate[p.DateKey()]
		if !ok {
			day = &DailyFee{Date: models.Day(p.Date)}
			byDate[p.DateKey()] = day
		}
		day.Overnight = day.Overnight.Add(p.OvernightFee)
		day.Locate = day.Locate.Add(p.LocateCost)
	}

	out := make([]DailyFee, 0, len(byDate))
	for _, day := range byDate {
		out = append(out, DailyFee{
			Date:      day.Date,
			Overnight: models.RoundCents(day.Overnight),
			Locate:    models.RoundCents(day.Locate),
			Total:     models.RoundCents(day.Overnight.Add(day.Locate)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// BreakdownItem is one fee category's share of the statement total.
type BreakdownItem struct {
	Name   string
	Amount decimal.Decimal
	// Share is the percentage of the breakdown total, one decimal place.
	Share decimal.Decimal
}

// MarshalJSON writes amounts as JSON numbers.
func (b BreakdownItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name   string      `json:"name"`
		Amount json.Number `json:"amount"`
		Share  json.Number `json:"share"`
	}{b.Name, models.Money(b.Amount), json.Number(b.Share.StringFixed(1))})
}

// Breakdown lists the non-zero fee categories of totals with their share.
// Interest is listed as a category even though it is income.
func Breakdown(totals models.Totals) []BreakdownItem {
	candidates := []BreakdownItem{
		{Name: "Overnight Fees", Amount: totals.OvernightFees},
		{Name: "Locate Costs", Amount: totals.LocateCosts},
		{Name: "Commissions", Amount: totals.Commissions},
		{Name: "Misc Fees", Amount: totals.MiscFees},
		{Name: "Market Data", Amount: totals.MarketDataFees},
		{Name: "Interest", Amount: totals.InterestFees},
		{Name: "Other Fees", Amount: totals.OtherFees},
	}

	var items []BreakdownItem
	total := decimal.Zero
	for _, c := range candidates {
		c.Amount = models.RoundCents(c.Amount)
		if !c.Amount.IsPositive() {
			continue
		}
		items = append(items, c)
		total = total.Add(c.Amount)
	}

	for i := range items {
		items[i].Share = items[i].Amount.Div(total).Mul(hundred).Round(1)
	}
	return items
}

// SymbolEntry is one position in a symbol's ranking detail.
type SymbolEntry struct {
	Date            time.Time
	OvernightFee    decimal.Decimal
	LocateCost      decimal.Decimal
	Commissions     decimal.Decimal
	Rebates         decimal.Decimal
	MiscFees        decimal.Decimal
	TotalFee        decimal.Decimal
	PnL             decimal.NullDecimal
	TransactionType models.Category
	BuySell         string
	Price           decimal.NullDecimal
}

// SymbolCost aggregates a symbol's positions for the ranking.
type SymbolCost struct {
	Symbol       string
	TotalFee     decimal.Decimal
	TotalPnL     decimal.Decimal
	OvernightFee decimal.Decimal
	LocateCost   decimal.Decimal
	Commissions  decimal.Decimal
	Rebates      decimal.Decimal
	MiscFees     decimal.Decimal
	Count        int
	TradingCount int
	// Entries are sorted newest first.
	Entries []SymbolEntry
}

// TopExpensive ranks symbols by borrow and trading fee (overnight, locate,
// commissions and misc). Fees within one cent of each other are tied and
// ordered by absolute P&L, then by symbol. n <= 0 means DefaultTopN.
func TopExpensive(positions []*models.Position, n int) []SymbolCost {
	if n <= 0 {
		n = DefaultTopN
	}

	bySymbol := make(map[string]*SymbolCost)
	var order []string
	for _, p := range positions {
		sc, ok := bySymbol[p.Symbol]
		if !ok {
			sc = &SymbolCost{Symbol: p.Symbol}
			bySymbol[p.Symbol] = sc
			order = append(order, p.Symbol)
		}

		fee := p.BorrowAndTradingFee()
		sc.TotalFee = sc.TotalFee.Add(fee)
		sc.TotalPnL = sc.TotalPnL.Add(p.PnLOrZero())
		sc.OvernightFee = sc.OvernightFee.Add(p.OvernightFee)
		sc.LocateCost = sc.LocateCost.Add(p.LocateCost)
		sc.Commissions = sc.Commissions.Add(p.Commissions)
		sc.Rebates = sc.Rebates.Add(p.Rebates)
		sc.MiscFees = sc.MiscFees.Add(p.MiscFees)
		sc.Count++
		if p.TransactionType == models.CategoryTrading {
			sc.TradingCount++
		}
		sc.Entries = append(sc.Entries, SymbolEntry{
			Date:            p.Date,
			OvernightFee:    models.RoundCents(p.OvernightFee),
			LocateCost:      models.RoundCents(p.LocateCost),
			Commissions:     models.RoundCents(p.Commissions),
			Rebates:         models.RoundCents(p.Rebates),
			MiscFees:        models.RoundCents(p.MiscFees),
			TotalFee:        models.RoundCents(fee),
			PnL:             p.PnL,
			TransactionType: p.TransactionType,
			BuySell:         p.BuySell,
			Price:           p.Price,
		})
	}

	ranked := make([]SymbolCost, 0, len(order))
	for _, symbol := range order {
		sc := bySymbol[symbol]
		sc.TotalFee = models.RoundCents(sc.TotalFee)
		sc.TotalPnL = models.RoundCents(sc.TotalPnL)
		sc.OvernightFee = models.RoundCents(sc.OvernightFee)
		sc.LocateCost = models.RoundCents(sc.LocateCost)
		sc.Commissions = models.RoundCents(sc.Commissions)
		sc.Rebates = models.RoundCents(sc.Rebates)
		sc.MiscFees = models.RoundCents(sc.MiscFees)
		sort.SliceStable(sc.Entries, func(i, j int) bool { return sc.Entries[i].Date.After(sc.Entries[j].Date) })
		ranked = append(ranked, *sc)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.TotalFee.Sub(b.TotalFee).Abs().GreaterThan(oneCent) {
			return a.TotalFee.GreaterThan(b.TotalFee)
		}
		if !a.TotalPnL.Abs().Equal(b.TotalPnL.Abs()) {
			return a.TotalPnL.Abs().GreaterThan(b.TotalPnL.Abs())
		}
		return a.Symbol < b.Symbol
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func nullMoney(d decimal.NullDecimal) *json.Number {
	if !d.Valid {
		return nil
	}
	n := models.Money(d.Decimal)
	return &n
}

// MarshalJSON writes amounts as JSON numbers with cent precision.
func (e SymbolEntry) MarshalJSON() ([]byte, error) {
	var price *json.Number
	if e.Price.Valid {
		n := json.Number(e.Price.Decimal.String())
		price = &n
	}
	return json.Marshal(struct {
		Date            string          `json:"date"`
		OvernightFee    json.Number     `json:"overnightFee"`
		LocateCost      json.Number     `json:"locateCost"`
		Commissions     json.Number     `json:"commissions"`
		Rebates         json.Number     `json:"rebates"`
		MiscFees        json.Number     `json:"miscFees"`
		TotalFee        json.Number     `json:"totalFee"`
		PnL             *json.Number    `json:"pnl,omitempty"`
		TransactionType models.Category `json:"transactionType"`
		BuySell         string          `json:"buySell,omitempty"`
		Price           *json.Number    `json:"price,omitempty"`
	}{
		Date:            e.Date.Format(models.DateLayout),
		OvernightFee:    models.Money(e.OvernightFee),
		LocateCost:      models.Money(e.LocateCost),
		Commissions:     models.Money(e.Commissions),
		Rebates:         models.Money(e.Rebates),
		MiscFees:        models.Money(e.MiscFees),
		TotalFee:        models.Money(e.TotalFee),
		PnL:             nullMoney(e.PnL),
		TransactionType: e.TransactionType,
		BuySell:         e.BuySell,
		Price:           price,
	})
}

// MarshalJSON writes amounts as JSON numbers with cent precision.
func (s SymbolCost) MarshalJSON() ([]byte, error) {
	entries := s.Entries
	if entries == nil {
		entries = []SymbolEntry{}
	}
	return json.Marshal(struct {
		Symbol       string        `json:"symbol"`
		TotalFee     json.Number   `json:"totalFee"`
		TotalPnL     json.Number   `json:"totalPnL"`
		OvernightFee json.Number   `json:"overnightFee"`
		LocateCost   json.Number   `json:"locateCost"`
		Commissions  json.Number   `json:"commissions"`
		Rebates      json.Number   `json:"rebates"`
		MiscFees     json.Number   `json:"miscFees"`
		Count        int           `json:"count"`
		TradingCount int           `json:"tradingCount"`
		Entries      []SymbolEntry `json:"entries"`
	}{
		Symbol:       s.Symbol,
		TotalFee:     models.Money(s.TotalFee),
		TotalPnL:     models.Money(s.TotalPnL),
		OvernightFee: models.Money(s.OvernightFee),
		LocateCost:   models.Money(s.LocateCost),
		Commissions:  models.Money(s.Commissions),
		Rebates:      models.Money(s.Rebates),
		MiscFees:     models.Money(s.MiscFees),
		Count:        s.Count,
		TradingCount: s.TradingCount,
		Entries:      entries,
	})
}
