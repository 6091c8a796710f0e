package reconciler

import (
	"time"

	"broker-fee-reconciler/internal/classifier"
	"broker-fee-reconciler/internal/extract"
	"broker-fee-reconciler/internal/matcher"
	"broker-fee-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

// ReasonMissingSymbol marks kept rows that carry no usable ticker.
const ReasonMissingSymbol = "missing_symbol"

// Engine folds statement rows into positions. An Engine holds no state
// between runs and may be reused.
type Engine struct {
	extractor  *extract.Extractor
	classifier *classifier.Classifier
	observer   Observer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithExtractor replaces the field extractor.
func WithExtractor(x *extract.Extractor) EngineOption {
	return func(e *Engine) { e.extractor = x }
}

// WithClassifier replaces the row classifier.
func WithClassifier(c *classifier.Classifier) EngineOption {
	return func(e *Engine) { e.classifier = c }
}

// WithObserver installs a row trace sink.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an engine with the default extractor and classifier.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		extractor:  extract.New(),
		classifier: classifier.New(),
		observer:   NopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunStats counts what happened to the rows of one run.
type RunStats struct {
	Rows           int
	Indexed        int
	Aggregated     int
	Aligned        int
	Discarded      int
	DiscardReasons map[string]int
}

// Result is the output of one run.
type Result struct {
	Positions []*models.Position
	Index     *matcher.TradeIndex
	Stats     RunStats
}

// preparedRow caches what pass 1 learned about a row.
type preparedRow struct {
	row      models.RawRow
	fields   extract.Fields
	decision classifier.Decision
}

// Run executes both passes and the P&L replay over rows in their original
// order.
func (e *Engine) Run(rows []models.RawRow) *Result {
	stats := RunStats{Rows: len(rows), DiscardReasons: make(map[string]int)}

	prepared, index := e.buildIndex(rows, &stats)
	table := newPositionTable()

	for _, p := range prepared {
		e.aggregate(p, index, table, &stats)
	}

	replayPnL(prepared, table)

	return &Result{
		Positions: table.Positions(),
		Index:     index,
		Stats:     stats,
	}
}

// buildIndex is pass 1: classify every row and index the trades.
func (e *Engine) buildIndex(rows []models.RawRow, stats *RunStats) ([]preparedRow, *matcher.TradeIndex) {
	index := matcher.NewTradeIndex()
	prepared := make([]preparedRow, 0, len(rows))

	for i, row := range rows {
		if row.IsEmpty() {
			continue
		}
		row.Index = i

		fields := e.extractor.Extract(row)
		decision := e.classifier.Classify(classifier.Input{
			Description:    fields.Description,
			PositionalType: fields.PositionalType,
			NamedType:      fields.NamedType,
		})
		prepared = append(prepared, preparedRow{row: row, fields: fields, decision: decision})

		if decision.Discard || decision.Category != models.CategoryTrading || fields.Symbol == "" {
			continue
		}
		if fields.Quantity.IsZero() && fields.Value.IsZero() {
			continue
		}
		index.Add(fields.Symbol, models.TradeIndexEntry{
			Date:     fields.Date,
			Amount:   fields.LedgerAmount,
			Quantity: fields.Quantity,
			Value:    fields.Value,
			Price:    fields.Price,
			Side:     fields.Side,
		})
		stats.Indexed++
	}

	return prepared, index
}

// aggregate is pass 2 for one row.
func (e *Engine) aggregate(p preparedRow, index *matcher.TradeIndex, table *positionTable, stats *RunStats) {
	f := p.fields
	event := RowEvent{
		Index:    p.row.Index,
		Category: p.decision.Category,
		Symbol:   f.Symbol,
		Date:     f.Date,
		Amount:   f.Amount,
	}

	decision := classifier.Gate(p.decision, f.Amount)
	if decision.Discard {
		e.discard(event, decision.Reason, stats)
		return
	}

	symbol := f.Symbol
	if symbol == "" && decision.Category == models.CategoryInterest {
		symbol = extract.InterestSymbol
	}
	if symbol == "" {
		e.discard(event, ReasonMissingSymbol, stats)
		return
	}
	event.Symbol = symbol

	aligned := models.Day(f.Date)
	if decision.Category.IsFee() {
		var matched bool
		aligned, matched = index.Align(symbol, f.Date)
		if matched && !aligned.Equal(models.Day(f.Date)) {
			stats.Aligned++
		}
	}
	event.AlignedDate = aligned

	fee := f.Amount.Abs()
	pos, created := table.GetOrCreate(symbol, aligned, func() *models.Position {
		return newPosition(symbol, aligned, decision.Category, f)
	})

	addCategoryFee(pos, decision.Category, fee)
	if !created {
		pos.Commissions = pos.Commissions.Add(f.Commission)
		pos.Rebates = pos.Rebates.Add(f.Rebate)
		pos.MiscFees = pos.MiscFees.Add(f.MiscFees)
	}

	if pos.Quantity.IsZero() || pos.Value.IsZero() {
		if day, ok := index.Lookup(symbol, aligned); ok {
			if pos.Quantity.IsZero() {
				pos.Quantity = day.Quantity
			}
			if pos.Value.IsZero() {
				pos.Value = day.Value
			}
		}
	}

	stats.Aggregated++
	e.observer.OnRow(event)
}

func (e *Engine) discard(event RowEvent, reason string, stats *RunStats) {
	event.Discarded = true
	event.Reason = reason
	stats.Discarded++
	stats.DiscardReasons[reason]++
	e.observer.OnRow(event)
}

// newPosition seeds a position from the row that creates it. The
// category fee itself is added by the caller.
func newPosition(symbol string, date time.Time, category models.Category, f extract.Fields) *models.Position {
	pos := &models.Position{
		Symbol:          symbol,
		Date:            date,
		Commissions:     f.Commission,
		Rebates:         f.Rebate,
		MiscFees:        f.MiscFees,
		PnL:             decimal.NewNullDecimal(decimal.Zero),
		TransactionType: category,
	}
	if category == models.CategoryTrading {
		pos.BuySell = f.Side
		if f.Price.IsPositive() {
			pos.Price = decimal.NewNullDecimal(f.Price)
		}
	}
	return pos
}

func addCategoryFee(pos *models.Position, category models.Category, fee decimal.Decimal) {
	switch category {
	case models.CategoryOvernight:
		pos.OvernightFee = pos.OvernightFee.Add(fee)
	case models.CategoryLocate:
		pos.LocateCost = pos.LocateCost.Add(fee)
	case models.CategoryMarketData:
		pos.MarketDataFee = pos.MarketDataFee.Add(fee)
	case models.CategoryInterest:
		pos.InterestFee = pos.InterestFee.Add(fee)
	}
}

// positionTable is the ordered key to Position map owned by one run.
type positionTable struct {
	order []string
	byKey map[string]*models.Position
}

func newPositionTable() *positionTable {
	return &positionTable{byKey: make(map[string]*models.Position)}
}

// GetOrCreate returns the position for (symbol, date), creating it with
// create when absent.
func (t *positionTable) GetOrCreate(symbol string, date time.Time, create func() *models.Position) (*models.Position, bool) {
	key := models.PositionKey(symbol, date)
	if pos, ok := t.byKey[key]; ok {
		return pos, false
	}
	pos := create()
	t.byKey[key] = pos
	t.order = append(t.order, key)
	return pos, true
}

// EarliestFor returns the chronologically earliest position for symbol.
// Positions on the same day resolve to the first inserted.
func (t *positionTable) EarliestFor(symbol string) *models.Position {
	var earliest *models.Position
	for _, key := range t.order {
		pos := t.byKey[key]
		if pos.Symbol != symbol {
			continue
		}
		if earliest == nil || pos.Date.Before(earliest.Date) {
			earliest = pos
		}
	}
	return earliest
}

// Positions returns the positions in first-insertion order.
func (t *positionTable) Positions() []*models.Position {
	out := make([]*models.Position, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.byKey[key])
	}
	return out
}
