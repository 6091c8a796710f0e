package reconciler

import (
	"sort"
	"time"

	"broker-fee-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

type ledgerLine struct {
	date   time.Time
	amount decimal.Decimal
}

// replayPnL nets the signed ledger amounts of every trade per symbol and
// attaches the total to the symbol's earliest position. A symbol that never
// closes flat within the statement reports its open cost as P&L.
func replayPnL(rows []preparedRow, table *positionTable) {
	bySymbol := make(map[string][]ledgerLine)
	var order []string

	for _, p := range rows {
		f := p.fields
		if p.decision.Discard || p.decision.Category != models.CategoryTrading {
			continue
		}
		if f.Symbol == "" || !f.Quantity.IsPositive() || !f.Price.IsPositive() || !f.HasLedgerAmount {
			continue
		}
		if _, seen := bySymbol[f.Symbol]; !seen {
			order = append(order, f.Symbol)
		}
		bySymbol[f.Symbol] = append(bySymbol[f.Symbol], ledgerLine{date: f.Date, amount: f.LedgerAmount})
	}

	for _, symbol := range order {
		lines := bySymbol[symbol]
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].date.Before(lines[j].date) })

		total := decimal.Zero
		for _, l := range lines {
			total = total.Add(l.amount)
		}

		if pos := table.EarliestFor(symbol); pos != nil {
			pos.PnL = decimal.NewNullDecimal(models.RoundCents(total))
		}
	}
}
