package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO calendar-day form used for position keys and output.
const DateLayout = "2006-01-02"

// Category is the transaction category a statement row is classified into.
type Category string

const (
	CategoryOvernight  Category = "overnight"
	CategoryLocate     Category = "locate"
	CategoryMarketData Category = "marketData"
	CategoryInterest   Category = "interest"
	CategoryTrading    Category = "trading"
)

// String returns the string representation of Category
func (c Category) String() string {
	return string(c)
}

// IsValid checks if the category is one of the five known categories
func (c Category) IsValid() bool {
	switch c {
	case CategoryOvernight, CategoryLocate, CategoryMarketData, CategoryInterest, CategoryTrading:
		return true
	default:
		return false
	}
}

// IsFee reports whether rows of this category are billed fees (or interest)
// that must be re-keyed onto a trade date.
func (c Category) IsFee() bool {
	return c == CategoryOvernight || c == CategoryLocate || c == CategoryMarketData || c == CategoryInterest
}

// RawRow is one source line of a statement: the sheet's header list and the
// row's cell values in header order. Cells beyond the header list are kept.
type RawRow struct {
	Index   int
	Headers []string
	Values  []string
}

// At returns the trimmed value at a 0-based position, or "" when the row is
// shorter than that.
func (r RawRow) At(position int) string {
	if position < 0 || position >= len(r.Values) {
		return ""
	}
	return strings.TrimSpace(r.Values[position])
}

// Named returns the trimmed value of the first column whose header equals
// name. Empty cells count as absent.
func (r RawRow) Named(name string) (string, bool) {
	for i, h := range r.Headers {
		if strings.TrimSpace(h) != name {
			continue
		}
		v := r.At(i)
		if v == "" {
			return "", false
		}
		return v, true
	}
	return "", false
}

// IsEmpty reports whether every cell is blank.
func (r RawRow) IsEmpty() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Position is the aggregated record for one (symbol, date) pair.
type Position struct {
	Symbol string
	Date   time.Time

	OvernightFee  decimal.Decimal
	LocateCost    decimal.Decimal
	MarketDataFee decimal.Decimal
	InterestFee   decimal.Decimal
	OtherFees     decimal.Decimal
	Commissions   decimal.Decimal
	Rebates       decimal.Decimal
	MiscFees      decimal.Decimal

	Quantity   decimal.Decimal
	Value      decimal.Decimal
	BorrowRate decimal.Decimal

	PnL             decimal.NullDecimal
	TransactionType Category
	BuySell         string
	Price           decimal.NullDecimal
}

// Key returns the aggregation key "SYMBOL-YYYY-MM-DD".
func (p *Position) Key() string {
	return PositionKey(p.Symbol, p.Date)
}

// DateKey returns the position date in ISO form.
func (p *Position) DateKey() string {
	return p.Date.Format(DateLayout)
}

// TotalFee returns the sum of all cost categories. Interest and rebates are
// income and are excluded.
func (p *Position) TotalFee() decimal.Decimal {
	return p.OvernightFee.
		Add(p.LocateCost).
		Add(p.MarketDataFee).
		Add(p.OtherFees).
		Add(p.Commissions).
		Add(p.MiscFees)
}

// BorrowAndTradingFee is the per-entry fee shown in the expensive-symbol
// ranking: borrow, locate, commissions and regulatory fees.
func (p *Position) BorrowAndTradingFee() decimal.Decimal {
	return p.OvernightFee.Add(p.LocateCost).Add(p.Commissions).Add(p.MiscFees)
}

// PnLOrZero returns the attached P&L, or zero when unset.
func (p *Position) PnLOrZero() decimal.Decimal {
	if p.PnL.Valid {
		return p.PnL.Decimal
	}
	return decimal.Zero
}

// Clone returns a copy of the position.
func (p *Position) Clone() *Position {
	c := *p
	return &c
}

// String returns a string representation of the Position
func (p *Position) String() string {
	return fmt.Sprintf("Position{%s %s type=%s fees=%s}",
		p.Symbol, p.DateKey(), p.TransactionType, p.TotalFee().StringFixed(2))
}

type positionJSON struct {
	Symbol          string       `json:"symbol"`
	Date            string       `json:"date"`
	Quantity        json.Number  `json:"quantity"`
	OvernightFee    json.Number  `json:"overnightFee"`
	LocateCost      json.Number  `json:"locateCost"`
	MarketDataFee   json.Number  `json:"marketDataFee"`
	InterestFee     json.Number  `json:"interestFee"`
	OtherFees       json.Number  `json:"otherFees"`
	Commissions     json.Number  `json:"commissions"`
	Rebates         json.Number  `json:"rebates"`
	MiscFees        json.Number  `json:"miscFees"`
	BorrowRate      json.Number  `json:"borrowRate"`
	Value           json.Number  `json:"value"`
	PnL             *json.Number `json:"pnl,omitempty"`
	TransactionType Category     `json:"transactionType"`
	BuySell         string       `json:"buySell,omitempty"`
	Price           *json.Number `json:"price,omitempty"`
}

// MarshalJSON writes amounts as JSON numbers with cent precision.
func (p Position) MarshalJSON() ([]byte, error) {
	out := positionJSON{
		Symbol:          p.Symbol,
		Date:            p.DateKey(),
		Quantity:        json.Number(p.Quantity.String()),
		OvernightFee:    Money(p.OvernightFee),
		LocateCost:      Money(p.LocateCost),
		MarketDataFee:   Money(p.MarketDataFee),
		InterestFee:     Money(p.InterestFee),
		OtherFees:       Money(p.OtherFees),
		Commissions:     Money(p.Commissions),
		Rebates:         Money(p.Rebates),
		MiscFees:        Money(p.MiscFees),
		BorrowRate:      json.Number(p.BorrowRate.String()),
		Value:           Money(p.Value),
		TransactionType: p.TransactionType,
		BuySell:         p.BuySell,
	}
	if p.PnL.Valid {
		n := Money(p.PnL.Decimal)
		out.PnL = &n
	}
	if p.Price.Valid {
		n := json.Number(p.Price.Decimal.String())
		out.Price = &n
	}
	return json.Marshal(out)
}

// TradeIndexEntry is one trading row recorded in pass 1. Amount is the
// signed ledger amount; Value is the extracted trade value.
type TradeIndexEntry struct {
	Date     time.Time
	Amount   decimal.Decimal
	Quantity decimal.Decimal
	Value    decimal.Decimal
	Price    decimal.Decimal
	Side     string
}

// StatementSummary holds portfolio-level statistics derived from positions.
type StatementSummary struct {
	TotalFees             decimal.Decimal
	AvgDailyOvernightCost decimal.Decimal
	MostExpensiveSymbol   string
	MostExpensiveFee      decimal.Decimal
	TotalPnL              decimal.Decimal
	NetPnL                decimal.Decimal
	FeeToProfitRatio      decimal.Decimal
	DaysAnalyzed          int
	TotalPositions        int
}

// MarshalJSON writes amounts as JSON numbers with cent precision.
func (s StatementSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TotalFees             json.Number `json:"totalFees"`
		AvgDailyOvernightCost json.Number `json:"avgDailyOvernightCost"`
		MostExpensiveSymbol   string      `json:"mostExpensiveSymbol"`
		MostExpensiveFee      json.Number `json:"mostExpensiveFee"`
		TotalPnL              json.Number `json:"totalPnL"`
		NetPnL                json.Number `json:"netPnL"`
		FeeToProfitRatio      json.Number `json:"feeToProfitRatio"`
		DaysAnalyzed          int         `json:"daysAnalyzed"`
		TotalPositions        int         `json:"totalPositions"`
	}{
		TotalFees:             Money(s.TotalFees),
		AvgDailyOvernightCost: Money(s.AvgDailyOvernightCost),
		MostExpensiveSymbol:   s.MostExpensiveSymbol,
		MostExpensiveFee:      Money(s.MostExpensiveFee),
		TotalPnL:              Money(s.TotalPnL),
		NetPnL:                Money(s.NetPnL),
		FeeToProfitRatio:      Money(s.FeeToProfitRatio),
		DaysAnalyzed:          s.DaysAnalyzed,
		TotalPositions:        s.TotalPositions,
	})
}

// Totals holds the eight statement-level fee totals.
type Totals struct {
	OvernightFees  decimal.Decimal
	LocateCosts    decimal.Decimal
	MarketDataFees decimal.Decimal
	InterestFees   decimal.Decimal
	OtherFees      decimal.Decimal
	Commissions    decimal.Decimal
	Rebates        decimal.Decimal
	MiscFees       decimal.Decimal
}

// MarshalJSON writes the totals as JSON numbers with cent precision.
func (t Totals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		OvernightFees  json.Number `json:"overnightFees"`
		LocateCosts    json.Number `json:"locateCosts"`
		MarketDataFees json.Number `json:"marketDataFees"`
		InterestFees   json.Number `json:"interestFees"`
		OtherFees      json.Number `json:"otherFees"`
		Commissions    json.Number `json:"commissions"`
		Rebates        json.Number `json:"rebates"`
		MiscFees       json.Number `json:"miscFees"`
	}{
		OvernightFees:  Money(t.OvernightFees),
		LocateCosts:    Money(t.LocateCosts),
		MarketDataFees: Money(t.MarketDataFees),
		InterestFees:   Money(t.InterestFees),
		OtherFees:      Money(t.OtherFees),
		Commissions:    Money(t.Commissions),
		Rebates:        Money(t.Rebates),
		MiscFees:       Money(t.MiscFees),
	})
}

// Statement is the normalized record produced for one uploaded file.
type Statement struct {
	ID         string
	FileName   string
	UploadDate time.Time
	Period     string
	Totals     Totals
	Positions  []*Position
	Summary    StatementSummary
}

// MarshalJSON flattens the totals the way the report consumers expect.
func (s Statement) MarshalJSON() ([]byte, error) {
	positions := s.Positions
	if positions == nil {
		positions = []*Position{}
	}
	return json.Marshal(struct {
		ID                  string           `json:"id,omitempty"`
		FileName            string           `json:"fileName"`
		UploadDate          string           `json:"uploadDate"`
		Period              string           `json:"period"`
		TotalOvernightFees  json.Number      `json:"totalOvernightFees"`
		TotalLocateCosts    json.Number      `json:"totalLocateCosts"`
		TotalMarketDataFees json.Number      `json:"totalMarketDataFees"`
		TotalInterestFees   json.Number      `json:"totalInterestFees"`
		TotalOtherFees      json.Number      `json:"totalOtherFees"`
		TotalCommissions    json.Number      `json:"totalCommissions"`
		TotalRebates        json.Number      `json:"totalRebates"`
		TotalMiscFees       json.Number      `json:"totalMiscFees"`
		Positions           []*Position      `json:"positions"`
		Summary             StatementSummary `json:"summary"`
	}{
		ID:                  s.ID,
		FileName:            s.FileName,
		UploadDate:          s.UploadDate.UTC().Format(time.RFC3339),
		Period:              s.Period,
		TotalOvernightFees:  Money(s.Totals.OvernightFees),
		TotalLocateCosts:    Money(s.Totals.LocateCosts),
		TotalMarketDataFees: Money(s.Totals.MarketDataFees),
		TotalInterestFees:   Money(s.Totals.InterestFees),
		TotalOtherFees:      Money(s.Totals.OtherFees),
		TotalCommissions:    Money(s.Totals.Commissions),
		TotalRebates:        Money(s.Totals.Rebates),
		TotalMiscFees:       Money(s.Totals.MiscFees),
		Positions:           positions,
		Summary:             s.Summary,
	})
}

// PositionKey builds the aggregation key for a symbol and calendar day.
func PositionKey(symbol string, date time.Time) string {
	return symbol + "-" + date.Format(DateLayout)
}

// Money renders an amount as a JSON number rounded to cents.
func Money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// RoundCents rounds half away from zero to two decimal places.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
