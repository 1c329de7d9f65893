package paysession

import (
	"log/slog"
	"sync"
	"time"

	"github.com/payforge/console/internal/metrics"
)

// Manager owns the live payment sessions, one per invoice. It is constructed
// at server start and passed down explicitly; session state is never held in
// package-level singletons.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	backend Backend
	logger  *slog.Logger
	emitter EventEmitter
	ttl     time.Duration
	now     func() time.Time

	sessionOpts []SessionOption
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithTTL sets how long an idle session survives before the sweeper closes it.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = ttl }
}

// WithManagerClock injects a time source (for testing).
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
		m.sessionOpts = append(m.sessionOpts, WithClock(now))
	}
}

// WithManagerEmitter sets the step-change emitter passed to every session.
func WithManagerEmitter(e EventEmitter) ManagerOption {
	return func(m *Manager) {
		m.emitter = e
		m.sessionOpts = append(m.sessionOpts, WithEmitter(e))
	}
}

// WithSessionOptions appends extra options applied to every new session.
func WithSessionOptions(opts ...SessionOption) ManagerOption {
	return func(m *Manager) { m.sessionOpts = append(m.sessionOpts, opts...) }
}

// NewManager creates a session manager.
func NewManager(backend Backend, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		backend:  backend,
		logger:   logger,
		emitter:  nopEmitter{},
		ttl:      30 * time.Minute,
		now:      time.Now,
	}
	m.sessionOpts = append(m.sessionOpts, WithSessionLogger(logger))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the live session for an invoice, if any.
func (m *Manager) Get(invoiceID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[invoiceID]
	return s, ok
}

// GetOrCreate returns the session for an invoice, creating one on first visit.
func (m *Manager) GetOrCreate(invoiceID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[invoiceID]; ok {
		return s
	}

	s := NewSession(invoiceID, m.backend, m.sessionOpts...)
	m.sessions[invoiceID] = s
	metrics.PaymentSessionsStarted.Inc()
	metrics.ActivePaymentSessions.Set(float64(len(m.sessions)))
	m.logger.Debug("payment session created", "invoice", invoiceID)
	return s
}

// Remove closes and drops a session.
func (m *Manager) Remove(invoiceID string) {
	m.mu.Lock()
	s, ok := m.sessions[invoiceID]
	if ok {
		delete(m.sessions, invoiceID)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if ok {
		s.Close()
		metrics.ActivePaymentSessions.Set(float64(n))
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Active returns sessions currently waiting on backend-observed transitions.
// The status watcher polls these.
func (m *Manager) Active() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		switch s.Step() {
		case StepAwaitingPayment, StepConfirming:
			out = append(out, s)
		case StepLoading, StepSelectCurrency, StepSuccess, StepExpired, StepError:
		}
	}
	return out
}

// SweepIdle closes sessions with no user activity for longer than the TTL.
// Returns the number of sessions closed.
func (m *Manager) SweepIdle() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
		m.logger.Info("swept idle payment session", "invoice", s.InvoiceID())
	}
	if len(idle) > 0 {
		metrics.ActivePaymentSessions.Set(float64(n))
	}
	return len(idle)
}

// CloseAll tears down every session (server shutdown).
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	metrics.ActivePaymentSessions.Set(0)
}
