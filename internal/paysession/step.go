package paysession

// Step is the payer-facing state of a payment session.
type Step string

const (
	StepLoading         Step = "loading"
	StepSelectCurrency  Step = "select_currency"
	StepAwaitingPayment Step = "awaiting_payment"
	StepConfirming      Step = "confirming"
	StepSuccess         Step = "success"
	StepExpired         Step = "expired"
	StepError           Step = "error"
)

// Terminal reports whether the session accepts no further transitions
// without an explicit Reset + Initialize.
func (s Step) Terminal() bool {
	switch s {
	case StepSuccess, StepExpired, StepError:
		return true
	case StepLoading, StepSelectCurrency, StepAwaitingPayment, StepConfirming:
		return false
	}
	return false
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	switch s {
	case StepLoading, StepSelectCurrency, StepAwaitingPayment,
		StepConfirming, StepSuccess, StepExpired, StepError:
		return true
	}
	return false
}
