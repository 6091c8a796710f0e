package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"broker-fee-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

// Fixed column positions of the broker's activity template (0-based).
const (
	PosDate         = 0
	PosSide         = 1
	PosQuantity     = 2
	PosSymbol       = 3
	PosDescription  = 4
	PosPrice        = 5
	PosRebate       = 8
	PosTAF          = 10
	PosCAT          = 12
	PosLedgerAmount = 13
	PosType         = 14
	PosCommission   = 15
)

// InterestSymbol keys interest rows that carry no ticker.
const InterestSymbol = "CASH"

// DateSource records which strategy produced a row's date.
type DateSource string

const (
	DateFromColumn      DateSource = "column"
	DateFromPosition    DateSource = "position"
	DateFromDescription DateSource = "description"
	DateFromReference   DateSource = "reference"
)

var descriptionDatePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)

// Fields holds everything extracted from one row.
type Fields struct {
	Description string
	Symbol      string
	Side        string

	Quantity decimal.Decimal
	Price    decimal.Decimal
	Value    decimal.Decimal

	// Amount is the signed fee/trade amount used by the validity gate.
	Amount decimal.Decimal
	// LedgerAmount is the signed settlement amount replayed for P&L.
	LedgerAmount    decimal.Decimal
	HasLedgerAmount bool

	Commission decimal.Decimal
	Rebate     decimal.Decimal
	MiscFees   decimal.Decimal

	Date       time.Time
	DateSource DateSource

	// PositionalType is the type column at position 14, present only for
	// rows wider than 14 columns. NamedType is the column headed "Type".
	PositionalType    string
	HasPositionalType bool
	NamedType         string
}

// Extractor applies the field cascades. The reference clock resolves
// year-less description dates and is the last-resort row date.
type Extractor struct {
	now func() time.Time

	description TextChain
	symbol      TextChain
	side        TextChain
	namedType   TextChain
	posType     TextChain
	dateCells   TextChain
	dateCell0   TextChain

	quantity     NumberChain
	price        NumberChain
	value        NumberChain
	amount       NumberChain
	ledgerAmount NumberChain
	commission   NumberChain
	rebate       NumberChain
	taf          NumberChain
	cat          NumberChain
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the reference clock.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds an Extractor with the default cascades.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		now: time.Now,

		description: TextChain{
			Named("Description", "Desc", "Description/Details", "Details", "Transaction", "Transaction Type"),
			HeaderContains("desc", "detail"),
			AtPosition(PosDescription),
		},
		symbol: TextChain{
			Symbol(AtPosition(PosSymbol)),
			Symbol(Named("Symbol", "Ticker", "Stock", "Security")),
			Symbol(AtPosition(PosDate)),
		},
		side:      TextChain{AtPosition(PosSide)},
		namedType: TextChain{Named("Type")},
		posType:   TextChain{AtPositionIfWide(PosType)},
		dateCells: TextChain{
			Named("Date", "Trade Date", "Settlement Date", "Transaction Date", "Trade Date/Time", "Settlement"),
		},
		dateCell0: TextChain{AtPosition(PosDate)},

		quantity: NumberChain{
			NumberAt(PosQuantity, Positive),
			NamedNumber(Positive, "Quantity", "Qty", "Shares", "Size", "Volume", "Amount"),
			Scan(PositiveBounded),
		},
		price: NumberChain{
			NumberAt(PosPrice, Positive),
		},
		value: NumberChain{
			NumberAt(PosPrice, Positive),
			NamedNumber(Positive, "Value", "Market Value", "Notional", "Amount", "Price", "Total Value"),
			Abs(Scan(Bounded)),
		},
		amount: NumberChain{
			NamedNumber(NonZero, "Amount", "Fee", "Debit", "Credit", "Charge", "Cost",
				"Net Amount", "Total", "Value", "Price", "Fee Amount"),
			Scan(Bounded),
		},
		ledgerAmount: NumberChain{
			NumberAt(PosLedgerAmount, NonZero),
			NamedNumber(NonZero, "Amount"),
		},
		commission: NumberChain{
			Abs(NumberAt(PosCommission, NonZero)),
			Abs(NamedNumber(NonZero, "Commission", "Comm")),
		},
		rebate: NumberChain{
			Abs(NumberAt(PosRebate, NonZero)),
			Abs(NamedNumber(NonZero, "ECNMaker", "ECN Maker", "Rebate")),
		},
		taf: NumberChain{
			Abs(NumberAt(PosTAF, NonZero)),
			Abs(NamedNumber(NonZero, "TAFFee", "TAF Fee", "TAF")),
		},
		cat: NumberChain{
			Abs(NumberAt(PosCAT, NonZero)),
			Abs(NamedNumber(NonZero, "CATFee", "CAT Fee", "CAT")),
		},
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads every field of a row.
func (e *Extractor) Extract(row models.RawRow) Fields {
	f := Fields{}
	f.Description = e.Description(row)
	f.Symbol = e.Symbol(row, f.Description)
	f.Side = e.Side(row)
	f.Quantity, _ = e.quantity.Extract(row)
	f.Price, _ = e.price.Extract(row)
	f.Value, _ = e.value.Extract(row)
	f.Amount, _ = e.amount.Extract(row)
	f.LedgerAmount, f.HasLedgerAmount = e.ledgerAmount.Extract(row)
	f.Commission, _ = e.commission.Extract(row)
	f.Rebate, _ = e.rebate.Extract(row)
	f.MiscFees = e.MiscFees(row)
	f.Date, f.DateSource = e.Date(row, f.Description)
	f.PositionalType, f.HasPositionalType = e.posType.Extract(row)
	f.NamedType, _ = e.namedType.Extract(row)
	return f
}

// Description returns the row's free-text description, or "".
func (e *Extractor) Description(row models.RawRow) string {
	v, _ := e.description.Extract(row)
	return strings.TrimSpace(v)
}

// Symbol returns a valid ticker from the symbol columns or, failing that,
// the last word of the description. Returns "" when none is valid.
func (e *Extractor) Symbol(row models.RawRow, description string) string {
	if v, ok := e.symbol.Extract(row); ok {
		return v
	}
	return SymbolFromDescription(description)
}

// Side returns the buy/sell marker, upper-cased.
func (e *Extractor) Side(row models.RawRow) string {
	v, _ := e.side.Extract(row)
	return strings.ToUpper(v)
}

// MiscFees returns TAF plus CAT regulatory fees.
func (e *Extractor) MiscFees(row models.RawRow) decimal.Decimal {
	taf, _ := e.taf.Extract(row)
	cat, _ := e.cat.Extract(row)
	return taf.Add(cat)
}

// Date resolves the row date: a named date column, the first column when it
// parses as a date, an MM/DD prefix on the description, or the reference
// day.
func (e *Extractor) Date(row models.RawRow, description string) (time.Time, DateSource) {
	if v, ok := e.dateCells.Extract(row); ok {
		if t, err := models.ParseDate(v); err == nil {
			return t, DateFromColumn
		}
	}
	if v, ok := e.dateCell0.Extract(row); ok {
		if t, err := models.ParseDate(v); err == nil {
			return t, DateFromPosition
		}
	}
	if t, ok := DateFromDescriptionPrefix(description, e.now()); ok {
		return t, DateFromDescription
	}
	return models.Day(e.now()), DateFromReference
}

// Reference returns the reference day.
func (e *Extractor) Reference() time.Time {
	return models.Day(e.now())
}

// SymbolFromDescription returns the last word of a description when it is a
// valid ticker, e.g. "10/13 C STOCK BORROW FEE GV" yields "GV".
func SymbolFromDescription(description string) string {
	parts := strings.Fields(description)
	if len(parts) == 0 {
		return ""
	}
	last := parts[len(parts)-1]
	if IsSymbol(last) {
		return last
	}
	return ""
}

// DateFromDescriptionPrefix reads a leading "MM/DD" token. The year is the
// reference year, or the year before when that date would be in the future.
func DateFromDescriptionPrefix(description string, now time.Time) (time.Time, bool) {
	parts := strings.Fields(description)
	if len(parts) == 0 {
		return time.Time{}, false
	}
	m := descriptionDatePattern.FindStringSubmatch(parts[0])
	if m == nil {
		return time.Time{}, false
	}

	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	today := models.Day(now)
	t := time.Date(today.Year(), time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.After(today) {
		t = time.Date(today.Year()-1, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	}
	return t, true
}
