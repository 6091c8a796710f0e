// Package classifier assigns statement rows to a transaction category from
// their free-text description and the broker's type column.
package classifier

import (
	"strings"

	"broker-fee-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

// Discard reasons reported by Classify and Gate.
const (
	ReasonEmptyDescription    = "empty_description"
	ReasonNonDataRow          = "non_data_row"
	ReasonMarkToMarket        = "mark_to_market"
	ReasonCashMovement        = "cash_movement"
	ReasonACHTransfer         = "ach_transfer"
	ReasonZeroAmount          = "zero_amount"
	ReasonNegativeTradeAmount = "negative_trade_amount"
)

// CashType is the type-column value marking cash movements.
const CashType = "Cash"

// Input carries the row fields the rules look at. PositionalType is the
// type column read by position and is empty for rows too short to have
// one; NamedType is the column headed "Type".
type Input struct {
	Description    string
	PositionalType string
	NamedType      string
}

// Decision is the outcome for one row.
type Decision struct {
	Category models.Category
	Discard  bool
	Reason   string
}

// Keep reports whether the row survives.
func (d Decision) Keep() bool {
	return !d.Discard
}

// Rule is one entry of the ordered decision list.
type Rule struct {
	Name     string
	Matches  func(in Input) bool
	Decision func(in Input) Decision
}

func discard(reason string) func(Input) Decision {
	return func(Input) Decision { return Decision{Discard: true, Reason: reason} }
}

func category(c models.Category) func(Input) Decision {
	return func(Input) Decision { return Decision{Category: c} }
}

// IsInterest reports whether a description reads like a margin interest
// accrual, e.g. "INTEREST 5.25% 30 DAYS BAL $10,000".
func IsInterest(description string) bool {
	return strings.Contains(description, "%") &&
		strings.Contains(description, "DAYS") &&
		strings.Contains(description, "BAL")
}

// DefaultRules is the decision order. The first matching rule wins; a row
// matching none is a trade.
var DefaultRules = []Rule{
	{
		Name:     "empty",
		Matches:  func(in Input) bool { return in.Description == "" },
		Decision: discard(ReasonEmptyDescription),
	},
	{
		Name: "non-data",
		Matches: func(in Input) bool {
			return strings.Contains(in.Description, "Total") || strings.Contains(in.Description, "Summary")
		},
		Decision: discard(ReasonNonDataRow),
	},
	{
		Name:     "mark-to-market",
		Matches:  func(in Input) bool { return strings.Contains(in.Description, "MARK TO MARKET") },
		Decision: discard(ReasonMarkToMarket),
	},
	{
		Name:     "interest",
		Matches:  func(in Input) bool { return IsInterest(in.Description) },
		Decision: category(models.CategoryInterest),
	},
	{
		Name:     "cash",
		Matches:  func(in Input) bool { return in.PositionalType == CashType },
		Decision: discard(ReasonCashMovement),
	},
	{
		Name: "ach",
		Matches: func(in Input) bool {
			return strings.Contains(in.Description, "ACH") && in.NamedType == CashType
		},
		Decision: discard(ReasonACHTransfer),
	},
	{
		Name:    "stock-borrow",
		Matches: func(in Input) bool { return strings.Contains(in.Description, "STOCK BORROW FEE") },
		Decision: func(in Input) Decision {
			if strings.Contains(in.Description, "C STOCK BORROW FEE") {
				return Decision{Category: models.CategoryLocate}
			}
			return Decision{Category: models.CategoryOvernight}
		},
	},
	{
		Name:     "market-data",
		Matches:  func(in Input) bool { return strings.Contains(in.Description, "MARKET DATA") },
		Decision: category(models.CategoryMarketData),
	},
}

// Classifier applies an ordered rule list.
type Classifier struct {
	rules []Rule
}

// New creates a classifier. With no rules the default order is used.
func New(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify runs the description rules. It does not look at the amount.
func (c *Classifier) Classify(in Input) Decision {
	in.Description = strings.TrimSpace(in.Description)
	in.PositionalType = strings.TrimSpace(in.PositionalType)
	in.NamedType = strings.TrimSpace(in.NamedType)

	for _, r := range c.rules {
		if r.Matches(in) {
			return r.Decision(in)
		}
	}
	return Decision{Category: models.CategoryTrading}
}

// Gate applies the amount validity check to a kept decision: zero amounts
// are dropped, and so are trades with a negative amount.
func Gate(d Decision, amount decimal.Decimal) Decision {
	if d.Discard {
		return d
	}
	if amount.IsZero() {
		return Decision{Category: d.Category, Discard: true, Reason: ReasonZeroAmount}
	}
	if d.Category == models.CategoryTrading && amount.IsNegative() {
		return Decision{Category: d.Category, Discard: true, Reason: ReasonNegativeTradeAmount}
	}
	return d
}

// Classify runs the default rules.
func Classify(in Input) Decision {
	return defaultClassifier.Classify(in)
}

var defaultClassifier = New()
