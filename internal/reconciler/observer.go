package reconciler

import (
	"time"

	"broker-fee-reconciler/internal/models"
	"broker-fee-reconciler/pkg/logger"

	"github.com/shopspring/decimal"
)

// RowEvent describes the fate of one row in the aggregation pass.
type RowEvent struct {
	Index       int
	Category    models.Category
	Discarded   bool
	Reason      string
	Symbol      string
	Date        time.Time
	AlignedDate time.Time
	Amount      decimal.Decimal
}

// Observer receives row events. Implementations must not retain the
// engine's positions.
type Observer interface {
	OnRow(event RowEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(event RowEvent)

// OnRow calls f.
func (f ObserverFunc) OnRow(event RowEvent) { f(event) }

// NopObserver drops every event.
type NopObserver struct{}

// OnRow does nothing.
func (NopObserver) OnRow(RowEvent) {}

// LogObserver writes row events to a logger at debug level.
type LogObserver struct {
	Logger logger.Logger
}

// NewLogObserver returns an observer logging through log. It returns a
// NopObserver when log is nil or debug output is disabled.
func NewLogObserver(log logger.Logger) Observer {
	if log == nil || !log.IsDebugEnabled() {
		return NopObserver{}
	}
	return &LogObserver{Logger: log.WithComponent("engine")}
}

// OnRow logs the event.
func (o *LogObserver) OnRow(event RowEvent) {
	fields := logger.Fields{
		"row":      event.Index,
		"category": event.Category.String(),
		"symbol":   event.Symbol,
		"amount":   event.Amount.String(),
	}
	if !event.Date.IsZero() {
		fields["date"] = event.Date.Format(models.DateLayout)
	}

	if event.Discarded {
		fields["reason"] = event.Reason
		o.Logger.WithFields(fields).Debug("row discarded")
		return
	}

	fields["aligned_date"] = event.AlignedDate.Format(models.DateLayout)
	o.Logger.WithFields(fields).Debug("row aggregated")
}

// RecordingObserver keeps every event, in order.
type RecordingObserver struct {
	Events []RowEvent
}

// OnRow appends the event.
func (r *RecordingObserver) OnRow(event RowEvent) {
	r.Events = append(r.Events, event)
}
