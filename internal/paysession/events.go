package paysession

// EventEmitter receives notifications from payment sessions. The server wires
// this to the realtime hub so payment pages update without polling.
// Implementations must not block.
type EventEmitter interface {
	// EmitStep fires on every step change.
	EmitStep(invoiceID string, step Step, remainingSeconds int64)
	// EmitCountdown fires on every countdown tick while awaiting payment.
	EmitCountdown(invoiceID string, remainingSeconds int64)
}

// nopEmitter is used when no emitter is configured.
type nopEmitter struct{}

func (nopEmitter) EmitStep(string, Step, int64) {}
func (nopEmitter) EmitCountdown(string, int64)  {}
