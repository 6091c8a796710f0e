package history

import (
	"encoding/json"

	"broker-fee-reconciler/internal/models"
)

// MarshalJSON writes amounts as JSON numbers with cent precision.
func (p PeriodStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID            string      `json:"id,omitempty"`
		Period        string      `json:"period"`
		FileName      string      `json:"fileName"`
		TotalFees     json.Number `json:"totalFees"`
		OvernightFees json.Number `json:"overnightFees"`
		LocateCosts   json.Number `json:"locateCosts"`
		AvgDaily      json.Number `json:"avgDaily"`
	}{
		ID:            p.ID,
		Period:        p.Period,
		FileName:      p.FileName,
		TotalFees:     models.Money(p.TotalFees),
		OvernightFees: models.Money(p.OvernightFees),
		LocateCosts:   models.Money(p.LocateCosts),
		AvgDaily:      models.Money(p.AvgDaily),
	})
}

// MarshalJSON writes the comparison with the statement count.
func (c Comparison) MarshalJSON() ([]byte, error) {
	periods := c.Periods
	if periods == nil {
		periods = []PeriodStats{}
	}
	return json.Marshal(struct {
		Statements   int           `json:"statements"`
		Periods      []PeriodStats `json:"periods"`
		FeeChangePct json.Number   `json:"feeChangePct"`
	}{len(periods), periods, json.Number(c.FeeChangePct.StringFixed(1))})
}
