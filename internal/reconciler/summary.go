package reconciler

import (
	"broker-fee-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeTotals sums each fee field over positions, rounded to cents.
func ComputeTotals(positions []*models.Position) models.Totals {
	var t models.Totals
	for _, p := range positions {
		t.OvernightFees = t.OvernightFees.Add(p.OvernightFee)
		t.LocateCosts = t.LocateCosts.Add(p.LocateCost)
		t.MarketDataFees = t.MarketDataFees.Add(p.MarketDataFee)
		t.InterestFees = t.InterestFees.Add(p.InterestFee)
		t.OtherFees = t.OtherFees.Add(p.OtherFees)
		t.Commissions = t.Commissions.Add(p.Commissions)
		t.Rebates = t.Rebates.Add(p.Rebates)
		t.MiscFees = t.MiscFees.Add(p.MiscFees)
	}

	return models.Totals{
		OvernightFees:  models.RoundCents(t.OvernightFees),
		LocateCosts:    models.RoundCents(t.LocateCosts),
		MarketDataFees: models.RoundCents(t.MarketDataFees),
		InterestFees:   models.RoundCents(t.InterestFees),
		OtherFees:      models.RoundCents(t.OtherFees),
		Commissions:    models.RoundCents(t.Commissions),
		Rebates:        models.RoundCents(t.Rebates),
		MiscFees:       models.RoundCents(t.MiscFees),
	}
}

// Summarize derives portfolio statistics from positions. Interest and
// rebates are income and reduce the net fee load rather than adding to it.
func Summarize(positions []*models.Position) models.StatementSummary {
	var (
		totalFees = decimal.Zero
		overnight = decimal.Zero
		rebates   = decimal.Zero
		interest  = decimal.Zero
		totalPnL  = decimal.Zero
	)

	dates := make(map[string]struct{})
	symbolFees := make(map[string]decimal.Decimal)
	var symbols []string

	for _, p := range positions {
		fee := p.TotalFee()
		totalFees = totalFees.Add(fee)
		overnight = overnight.Add(p.OvernightFee)
		rebates = rebates.Add(p.Rebates)
		interest = interest.Add(p.InterestFee)
		totalPnL = totalPnL.Add(p.PnLOrZero())

		dates[p.DateKey()] = struct{}{}

		if _, seen := symbolFees[p.Symbol]; !seen {
			symbols = append(symbols, p.Symbol)
		}
		symbolFees[p.Symbol] = symbolFees[p.Symbol].Add(fee)
	}

	days := len(dates)
	denominator := int64(days)
	if denominator < 1 {
		denominator = 1
	}

	mostExpensive := ""
	mostExpensiveFee := decimal.Zero
	for _, s := range symbols {
		fee := models.RoundCents(symbolFees[s])
		if fee.GreaterThan(mostExpensiveFee) {
			mostExpensive = s
			mostExpensiveFee = fee
		}
	}

	netFees := totalFees.Sub(rebates).Sub(interest)
	ratio := decimal.Zero
	if totalPnL.IsPositive() {
		ratio = netFees.Div(totalPnL).Mul(hundred)
	}

	return models.StatementSummary{
		TotalFees:             models.RoundCents(totalFees),
		AvgDailyOvernightCost: models.RoundCents(overnight.Div(decimal.NewFromInt(denominator))),
		MostExpensiveSymbol:   mostExpensive,
		MostExpensiveFee:      mostExpensiveFee,
		TotalPnL:              models.RoundCents(totalPnL),
		NetPnL:                models.RoundCents(totalPnL.Sub(netFees)),
		FeeToProfitRatio:      models.RoundCents(ratio),
		DaysAnalyzed:          days,
		TotalPositions:        len(positions),
	}
}
