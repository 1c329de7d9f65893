package paysession

import (
	"sync"
	"sync/atomic"
	"time"
)

// countdown re-derives the remaining seconds from the invoice expiration once
// per tick while the session awaits payment. It is a scoped resource: started
// on entering AwaitingPayment, guaranteed stopped on leaving that step or on
// session teardown. A session never has two countdowns running at once, and a
// countdown never outlives the step that spawned it; a stray tick could
// otherwise fire a stale expiry after the payer has moved on.
type countdown struct {
	session  *Session
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

func newCountdown(s *Session, interval time.Duration) *countdown {
	return &countdown{
		session:  s,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the tick loop in its own goroutine.
func (c *countdown) Start() {
	go c.loop()
}

// Stop signals the loop to exit. Idempotent and non-blocking, so it is safe
// to call with the session mutex held while a tick waits on that same mutex.
func (c *countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Running reports whether the tick loop is active.
func (c *countdown) Running() bool {
	return c.running.Load()
}

func (c *countdown) loop() {
	c.running.Store(true)
	defer c.running.Store(false)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.session.tick() {
				return
			}
		}
	}
}

// tick advances the countdown once. Returns false when the loop should exit:
// the session left AwaitingPayment, was torn down, or just expired.
func (s *Session) tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.step != StepAwaitingPayment {
		return false
	}

	// Recompute from the absolute expiration rather than decrementing, so a
	// delayed tick cannot drift the countdown. Remaining is monotonically
	// non-increasing for a fixed expiration.
	s.remaining = remainingSeconds(s.inv.ExpiresAt, s.now())
	if s.remaining == 0 {
		s.expireLocked()
		return false
	}
	s.emitter.EmitCountdown(s.invoiceID, s.remaining)
	return true
}

// startCountdownLocked starts a fresh countdown for the current step.
// Any previous countdown is stopped first.
func (s *Session) startCountdownLocked() {
	s.stopCountdownLocked()
	s.countdown = newCountdown(s, s.tickInterval)
	s.countdown.Start()
}

// stopCountdownLocked cancels the active countdown, if any.
func (s *Session) stopCountdownLocked() {
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
}
