// Package paysession models a payer's progress through the payment page as an
// explicit state machine: loading → currency selection → address generation →
// countdown → confirmation, success, expiry, or error.
//
// Backend-observed invoice status is the source of truth on (re)entry; local
// transitions apply thereafter. Sessions live only in memory; nothing is
// persisted, and a fresh page visit rebuilds everything from the backend.
package paysession

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/payforge/console/internal/gatewayapi"
	"github.com/payforge/console/internal/invoice"
	"github.com/payforge/console/internal/metrics"
)

var (
	// ErrInvalidStep is returned when an action is not valid in the current step.
	ErrInvalidStep = errors.New("action not valid in current step")
	// ErrNoSelection is returned by GenerateAddress before a currency is chosen.
	ErrNoSelection = errors.New("no currency selected")
	// ErrUnknownCurrency is returned when a selection is not in the catalog.
	ErrUnknownCurrency = errors.New("currency not offered by this store")
	// ErrActionInFlight guards against re-entrant address generation.
	ErrActionInFlight = errors.New("address generation already in progress")
)

// Backend is the slice of the gateway API the session needs.
// *gatewayapi.Client satisfies it; tests use fakes.
type Backend interface {
	GetInvoice(ctx context.Context, invoiceID string) (*invoice.Invoice, error)
	GetStoreCurrencies(ctx context.Context, storeID string) ([]invoice.StoreCurrency, error)
	GenerateAddress(ctx context.Context, invoiceID, token, network string) (*invoice.Invoice, error)
}

// Session is one payer's in-memory payment state. All access is serialized
// through the internal mutex: HTTP handlers, the countdown goroutine, and the
// status watcher all interleave on it.
type Session struct {
	invoiceID string

	mu              sync.Mutex
	step            Step
	inv             *invoice.Invoice
	catalog         invoice.Catalog
	selectedNetwork string
	selected        *invoice.StoreCurrency
	rate            *invoice.Rate
	remaining       int64
	errMsg          string // terminal Error reason
	actionErr       string // inline, recoverable (address generation failure)
	generating      bool
	closed          bool
	lastActive      time.Time

	countdown    *countdown
	tickInterval time.Duration

	backend Backend
	logger  *slog.Logger
	emitter EventEmitter
	now     func() time.Time
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithClock injects a time source (for testing).
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithEmitter sets the step-change emitter.
func WithEmitter(e EventEmitter) SessionOption {
	return func(s *Session) { s.emitter = e }
}

// WithTickInterval overrides the 1s countdown tick (for testing).
func WithTickInterval(d time.Duration) SessionOption {
	return func(s *Session) { s.tickInterval = d }
}

// NewSession creates a session for one invoice. The caller owns it exclusively;
// sessions are never shared across payment flows.
func NewSession(invoiceID string, backend Backend, opts ...SessionOption) *Session {
	s := &Session{
		invoiceID:    invoiceID,
		step:         StepLoading,
		backend:      backend,
		logger:       slog.Default(),
		emitter:      nopEmitter{},
		now:          time.Now,
		tickInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastActive = s.now()
	return s
}

// InvoiceID returns the invoice this session tracks.
func (s *Session) InvoiceID() string { return s.invoiceID }

// Step returns the current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// LastActive returns the time of the last user-driven call.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Snapshot is an immutable view of session state for rendering.
type Snapshot struct {
	InvoiceID        string                 `json:"invoiceId"`
	Step             Step                   `json:"step"`
	Invoice          *invoice.Invoice       `json:"invoice,omitempty"`
	Networks         []string               `json:"networks,omitempty"`
	Currencies       []invoice.StoreCurrency `json:"currencies,omitempty"`
	SelectedNetwork  string                 `json:"selectedNetwork,omitempty"`
	SelectedCurrency *invoice.StoreCurrency `json:"selectedCurrency,omitempty"`
	Rate             *invoice.Rate          `json:"rate,omitempty"`
	RemainingSeconds int64                  `json:"remainingSeconds"`
	ErrorMessage     string                 `json:"errorMessage,omitempty"`
	ActionError      string                 `json:"actionError,omitempty"`
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		InvoiceID:        s.invoiceID,
		Step:             s.step,
		Invoice:          s.inv,
		Networks:         s.catalog.AvailableNetworks(),
		Currencies:       s.catalog.FilterByNetwork(s.selectedNetwork),
		SelectedNetwork:  s.selectedNetwork,
		SelectedCurrency: s.selected,
		Rate:             s.rate,
		RemainingSeconds: s.remaining,
		ErrorMessage:     s.errMsg,
		ActionError:      s.actionErr,
	}
}

// Initialize fetches the invoice and derives the entry step from its status.
// Fetch failures are terminal for the session; the failure reason is retained
// for display and the caller must Reset before trying again.
func (s *Session) Initialize(ctx context.Context) Snapshot {
	inv, err := s.backend.GetInvoice(ctx, s.invoiceID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if s.closed {
		return s.snapshotLocked()
	}
	if err != nil {
		s.failLocked(err)
		return s.snapshotLocked()
	}

	s.inv = inv

	switch {
	case inv.Status == invoice.StatusPaid:
		s.setStepLocked(StepSuccess)

	case inv.Status.Terminal():
		// expired, cancelled, refunded: nothing left to pay
		s.setStepLocked(StepExpired)

	case inv.Status == invoice.StatusConfirming:
		s.setStepLocked(StepConfirming)

	case inv.Status == invoice.StatusAwaitingPayment && inv.HasAddress():
		s.enterCountdownLocked()

	default:
		// No address yet: offer currency selection from the store's
		// enabled configurations.
		s.mu.Unlock()
		configs, cerr := s.backend.GetStoreCurrencies(ctx, inv.StoreID)
		s.mu.Lock()

		if s.closed {
			return s.snapshotLocked()
		}
		if cerr != nil {
			s.failLocked(cerr)
			return s.snapshotLocked()
		}
		s.catalog = invoice.NewCatalog(configs)
		s.setStepLocked(StepSelectCurrency)
	}

	return s.snapshotLocked()
}

// SelectNetwork records the payer's network choice and clears any previous
// currency selection. Valid only while selecting a currency.
func (s *Session) SelectNetwork(network string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if s.step != StepSelectCurrency {
		return ErrInvalidStep
	}
	s.selectedNetwork = network
	s.selected = nil
	s.rate = nil
	s.actionErr = ""
	return nil
}

// SelectCurrency records the selection and binds the locked exchange rate for
// the (currency, network) pair, if one exists. The step does not change.
func (s *Session) SelectCurrency(symbol, network string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if s.step != StepSelectCurrency {
		return ErrInvalidStep
	}
	sc, ok := s.catalog.Find(symbol, network)
	if !ok {
		return ErrUnknownCurrency
	}

	s.selectedNetwork = network
	s.selected = &sc
	s.actionErr = ""

	// Absence of a locked rate is valid, not a failure.
	if rate, ok := invoice.MatchRate(s.inv, sc); ok {
		s.rate = &rate
	} else {
		s.rate = nil
	}
	return nil
}

// GenerateAddress asks the backend to mint a deposit address for the selected
// currency. On success the invoice is replaced with the backend's version and
// the session enters the countdown. On failure the session stays in currency
// selection with an inline message: this action is recoverable and the payer
// retries it explicitly; no automatic retry happens here.
func (s *Session) GenerateAddress(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	s.touchLocked()

	if s.step != StepSelectCurrency {
		s.mu.Unlock()
		return Snapshot{}, ErrInvalidStep
	}
	if s.selected == nil {
		s.mu.Unlock()
		return Snapshot{}, ErrNoSelection
	}
	if s.generating {
		s.mu.Unlock()
		return Snapshot{}, ErrActionInFlight
	}
	s.generating = true
	token, network := s.selected.Symbol, s.selected.NetworkID
	s.mu.Unlock()

	inv, err := s.backend.GenerateAddress(ctx, s.invoiceID, token, network)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false

	// The session may have been reset or torn down while the call was in
	// flight; discard the late result rather than mutate a moved-on session.
	if s.closed || s.step != StepSelectCurrency {
		return s.snapshotLocked(), nil
	}

	if err != nil {
		s.actionErr = userMessage(err)
		s.logger.Warn("address generation failed",
			"invoice", s.invoiceID,
			"token", token,
			"network", network,
			"error", err,
		)
		return s.snapshotLocked(), nil
	}

	s.inv = inv
	s.actionErr = ""
	metrics.AddressesGenerated.Inc()
	s.logger.Info("deposit address generated",
		"invoice", s.invoiceID,
		"network", network,
		"address", inv.PaymentAddress,
	)
	s.enterCountdownLocked()
	return s.snapshotLocked(), nil
}

// ApplyBackendStatus folds a freshly fetched invoice into the session. Used by
// the status watcher to surface backend-observed transitions (payment seen,
// confirmed, expired) while the payer waits.
func (s *Session) ApplyBackendStatus(inv *invoice.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.step.Terminal() || inv == nil {
		return
	}

	switch inv.Status {
	case invoice.StatusPaid:
		s.inv = inv
		s.stopCountdownLocked()
		s.setStepLocked(StepSuccess)
	case invoice.StatusConfirming:
		s.inv = inv
		s.stopCountdownLocked()
		s.setStepLocked(StepConfirming)
	case invoice.StatusExpired, invoice.StatusCancelled, invoice.StatusRefunded:
		s.inv = inv
		s.expireLocked()
	case invoice.StatusPending, invoice.StatusAwaitingPayment:
		// No step change; keep the newer invoice snapshot.
		s.inv = inv
	}
}

// BackToSelection is a soft reset: clears the selection and rate and returns
// to currency selection without re-fetching anything.
func (s *Session) BackToSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	s.stopCountdownLocked()
	s.selected = nil
	s.rate = nil
	s.actionErr = ""
	s.setStepLocked(StepSelectCurrency)
}

// Reset is a hard clear: all state back to Loading, ready for a fresh
// Initialize. Selected currency, rate, and timer state are fully dropped so
// nothing leaks into the next attempt.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	s.stopCountdownLocked()
	s.inv = nil
	s.catalog = invoice.NewCatalog(nil)
	s.selectedNetwork = ""
	s.selected = nil
	s.rate = nil
	s.remaining = 0
	s.errMsg = ""
	s.actionErr = ""
	s.step = StepLoading
}

// Close tears the session down: the countdown is cancelled and late results
// of in-flight calls are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.stopCountdownLocked()
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// -----------------------------------------------------------------------------
// Internal transitions (mutex held)
// -----------------------------------------------------------------------------

// enterCountdownLocked derives the remaining time from the invoice expiration
// and enters either AwaitingPayment (with a running countdown) or Expired when
// the expiration already passed.
func (s *Session) enterCountdownLocked() {
	s.remaining = remainingSeconds(s.inv.ExpiresAt, s.now())
	if s.remaining == 0 {
		s.expireLocked()
		return
	}
	s.setStepLocked(StepAwaitingPayment)
	s.startCountdownLocked()
}

// expireLocked performs the one-shot expiry transition. Safe to call from
// repeated zero-ticks: once the step is Expired nothing re-fires.
func (s *Session) expireLocked() {
	if s.step == StepExpired {
		return
	}
	s.remaining = 0
	s.stopCountdownLocked()
	s.setStepLocked(StepExpired)
}

// failLocked enters the terminal Error step, retaining the reason for display.
func (s *Session) failLocked(err error) {
	s.errMsg = userMessage(err)
	s.stopCountdownLocked()
	s.setStepLocked(StepError)
	s.logger.Warn("payment session failed", "invoice", s.invoiceID, "error", err)
}

// setStepLocked transitions the step, records terminal outcomes, and notifies
// the emitter.
func (s *Session) setStepLocked(step Step) {
	if s.step == step {
		return
	}
	s.step = step

	switch step {
	case StepSuccess:
		metrics.PaymentSessionsByOutcome.WithLabelValues("success").Inc()
	case StepExpired:
		metrics.PaymentSessionsByOutcome.WithLabelValues("expired").Inc()
	case StepError:
		metrics.PaymentSessionsByOutcome.WithLabelValues("error").Inc()
	case StepLoading, StepSelectCurrency, StepAwaitingPayment, StepConfirming:
	}

	s.emitter.EmitStep(s.invoiceID, step, s.remaining)
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

// userMessage extracts a human-readable message from a backend error, falling
// back to a generic one.
func userMessage(err error) string {
	var apiErr *gatewayapi.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Something went wrong. Please try again."
}

// remainingSeconds computes max(0, floor((expiration - now) / 1s)).
// A nil expiration counts as already expired.
func remainingSeconds(expiresAt *time.Time, now time.Time) int64 {
	if expiresAt == nil {
		return 0
	}
	d := expiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}
