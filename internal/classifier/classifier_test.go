package classifier

import (
	"testing"

	"broker-fee-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		input     Input
		category  models.Category
		discarded bool
		reason    string
	}{
		{"empty description", Input{Description: "   "}, "", true, ReasonEmptyDescription},
		{"total row", Input{Description: "Total Fees"}, "", true, ReasonNonDataRow},
		{"summary row", Input{Description: "Account Summary"}, "", true, ReasonNonDataRow},
		{"mark to market", Input{Description: "MARK TO MARKET ADJ GV"}, "", true, ReasonMarkToMarket},
		{"interest", Input{Description: "INTEREST 5.25% 30 DAYS BAL 10000"}, models.CategoryInterest, false, ""},
		{"interest overrides cash", Input{Description: "CREDIT 4.5% 31 DAYS BAL 2500", PositionalType: "Cash"}, models.CategoryInterest, false, ""},
		{"cash type", Input{Description: "WIRE IN", PositionalType: "Cash"}, "", true, ReasonCashMovement},
		{"ach with named cash type", Input{Description: "ACH DEPOSIT", NamedType: "Cash"}, "", true, ReasonACHTransfer},
		{"ach without cash type is a trade", Input{Description: "ACH DEPOSIT", NamedType: "Margin"}, models.CategoryTrading, false, ""},
		{"overnight borrow", Input{Description: "10/13 STOCK BORROW FEE GV"}, models.CategoryOvernight, false, ""},
		{"locate borrow", Input{Description: "10/13 C STOCK BORROW FEE GV"}, models.CategoryLocate, false, ""},
		{"market data", Input{Description: "MARKET DATA NASDAQ L2"}, models.CategoryMarketData, false, ""},
		{"trade", Input{Description: "BUY GV", PositionalType: "Margin"}, models.CategoryTrading, false, ""},
		{"lowercase keywords are trades", Input{Description: "stock borrow fee"}, models.CategoryTrading, false, ""},
		{"interest needs all three markers", Input{Description: "5% 30 DAYS"}, models.CategoryTrading, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.input)
			if d.Discard != tt.discarded {
				t.Fatalf("expected discard=%v, got %+v", tt.discarded, d)
			}
			if d.Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, d.Reason)
			}
			if !tt.discarded {
				if d.Category != tt.category {
					t.Errorf("expected category %s, got %s", tt.category, d.Category)
				}
				if !d.Category.IsValid() {
					t.Errorf("expected a valid category, got %q", d.Category)
				}
			}
		})
	}
}

func TestGate(t *testing.T) {
	trade := Decision{Category: models.CategoryTrading}
	fee := Decision{Category: models.CategoryOvernight}

	tests := []struct {
		name      string
		decision  Decision
		amount    string
		discarded bool
		reason    string
	}{
		{"fee debit kept", fee, "-15.00", false, ""},
		{"fee zero dropped", fee, "0", true, ReasonZeroAmount},
		{"trade credit kept", trade, "750", false, ""},
		{"trade debit dropped", trade, "-500", true, ReasonNegativeTradeAmount},
		{"trade zero dropped", trade, "0", true, ReasonZeroAmount},
		{"discard passes through", Decision{Discard: true, Reason: ReasonMarkToMarket}, "10", true, ReasonMarkToMarket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Gate(tt.decision, decimal.RequireFromString(tt.amount))
			if d.Discard != tt.discarded || d.Reason != tt.reason {
				t.Errorf("expected discard=%v reason=%q, got %+v", tt.discarded, tt.reason, d)
			}
			if !d.Discard && d.Category != tt.decision.Category {
				t.Errorf("expected category to be preserved, got %s", d.Category)
			}
		})
	}
}

func TestCustomRules(t *testing.T) {
	c := New(Rule{
		Name:     "dividend",
		Matches:  func(in Input) bool { return in.Description == "DIVIDEND" },
		Decision: func(Input) Decision { return Decision{Discard: true, Reason: "dividend"} },
	})

	if d := c.Classify(Input{Description: "DIVIDEND"}); !d.Discard || d.Reason != "dividend" {
		t.Errorf("expected custom rule to discard, got %+v", d)
	}
	if d := c.Classify(Input{Description: "MARKET DATA"}); d.Category != models.CategoryTrading {
		t.Errorf("expected fallthrough to trading with custom rules only, got %+v", d)
	}
}
