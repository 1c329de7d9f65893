package realtime

import (
	"time"

	"github.com/payforge/console/internal/paysession"
)

// StepEmitter bridges payment sessions to the hub: every step change becomes a
// payment_status event for the session's invoice. Broadcast never blocks, so
// this is safe to call from inside the session's transition path.
type StepEmitter struct {
	hub *Hub
}

// NewStepEmitter creates an emitter backed by the hub.
func NewStepEmitter(hub *Hub) *StepEmitter {
	return &StepEmitter{hub: hub}
}

// EmitStep implements paysession.EventEmitter.
func (e *StepEmitter) EmitStep(invoiceID string, step paysession.Step, remainingSeconds int64) {
	e.hub.Broadcast(&Event{
		Type:      EventPaymentStatus,
		InvoiceID: invoiceID,
		Timestamp: time.Now(),
		Data: map[string]any{
			"step":             step,
			"remainingSeconds": remainingSeconds,
		},
	})
}

// EmitCountdown implements paysession.EventEmitter.
func (e *StepEmitter) EmitCountdown(invoiceID string, remainingSeconds int64) {
	e.hub.Broadcast(&Event{
		Type:      EventCountdown,
		InvoiceID: invoiceID,
		Timestamp: time.Now(),
		Data: map[string]any{
			"remainingSeconds": remainingSeconds,
		},
	})
}
