package paysession

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, backend Backend, clock *fakeClock, opts ...ManagerOption) *Manager {
	t.Helper()
	all := append([]ManagerOption{
		WithManagerClock(clock.Now),
		WithSessionOptions(WithTickInterval(time.Hour)),
	}, opts...)
	m := NewManager(backend, slog.Default(), all...)
	t.Cleanup(m.CloseAll)
	return m
}

func TestManagerGetOrCreateReturnsSameSession(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{invoice: pendingInvoice(clock), currencies: storeCurrencies()}
	m := newTestManager(t, backend, clock)

	s1 := m.GetOrCreate("inv_1")
	s2 := m.GetOrCreate("inv_1")
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, m.Len())

	s3 := m.GetOrCreate("inv_2")
	assert.NotSame(t, s1, s3)
	assert.Equal(t, 2, m.Len())
}

func TestManagerRemoveClosesSession(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{invoice: pendingInvoice(clock), currencies: storeCurrencies()}
	m := newTestManager(t, backend, clock)

	s := m.GetOrCreate("inv_1")
	m.Remove("inv_1")

	assert.True(t, s.Closed())
	assert.Equal(t, 0, m.Len())

	_, ok := m.Get("inv_1")
	assert.False(t, ok)
}

func TestManagerActiveFiltersByStep(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{invoice: awaitingInvoice(clock, 15*time.Minute)}
	m := newTestManager(t, backend, clock)

	waiting := m.GetOrCreate("inv_1")
	waiting.Initialize(context.Background())
	require.Equal(t, StepAwaitingPayment, waiting.Step())

	m.GetOrCreate("inv_2") // still Loading

	active := m.Active()
	require.Len(t, active, 1)
	assert.Same(t, waiting, active[0])
}

func TestManagerSweepIdle(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{invoice: pendingInvoice(clock), currencies: storeCurrencies()}
	m := newTestManager(t, backend, clock, WithTTL(10*time.Minute))

	stale := m.GetOrCreate("inv_old")

	clock.Advance(11 * time.Minute)
	fresh := m.GetOrCreate("inv_new")

	removed := m.SweepIdle()
	assert.Equal(t, 1, removed)
	assert.True(t, stale.Closed())
	assert.False(t, fresh.Closed())
	assert.Equal(t, 1, m.Len())
}

func TestManagerSweepKeepsActiveSessions(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{invoice: pendingInvoice(clock), currencies: storeCurrencies()}
	m := newTestManager(t, backend, clock, WithTTL(10*time.Minute))

	s := m.GetOrCreate("inv_1")
	clock.Advance(9 * time.Minute)

	// A user action refreshes the idle deadline.
	s.Initialize(context.Background())
	clock.Advance(2 * time.Minute)

	assert.Equal(t, 0, m.SweepIdle())
	assert.False(t, s.Closed())
}

func TestManagerCloseAll(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{invoice: pendingInvoice(clock), currencies: storeCurrencies()}
	m := newTestManager(t, backend, clock)

	s1 := m.GetOrCreate("inv_1")
	s2 := m.GetOrCreate("inv_2")

	m.CloseAll()

	assert.True(t, s1.Closed())
	assert.True(t, s2.Closed())
	assert.Equal(t, 0, m.Len())
}

func TestSweeperStartStop(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{invoice: pendingInvoice(clock), currencies: storeCurrencies()}
	m := newTestManager(t, backend, clock, WithTTL(time.Minute))

	sw := NewSweeper(m, 10*time.Millisecond, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		sw.Start(ctx)
		close(done)
	}()

	m.GetOrCreate("inv_1")
	clock.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)

	sw.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.False(t, sw.Running())
}
