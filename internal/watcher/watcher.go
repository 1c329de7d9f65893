// Package watcher polls the gateway for invoice status while payers wait on
// the payment page. The countdown is purely local; payment detection,
// confirmation, and backend-side expiry all arrive through this poll loop and
// are folded into the session.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/payforge/console/internal/gatewayapi"
	"github.com/payforge/console/internal/invoice"
	"github.com/payforge/console/internal/paysession"
	"github.com/payforge/console/internal/retry"
)

// InvoiceFetcher fetches a single invoice. *gatewayapi.Client satisfies it.
type InvoiceFetcher interface {
	GetInvoice(ctx context.Context, invoiceID string) (*invoice.Invoice, error)
}

// SessionSource yields the sessions worth polling. *paysession.Manager
// satisfies it.
type SessionSource interface {
	Active() []*paysession.Session
}

// Watcher polls active payment sessions on a fixed interval.
type Watcher struct {
	fetcher  InvoiceFetcher
	sessions SessionSource
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// New creates a status watcher.
func New(fetcher InvoiceFetcher, sessions SessionSource, interval time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		fetcher:  fetcher,
		sessions: sessions,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}, 1),
	}
}

// Running reports whether the poll loop is active.
func (w *Watcher) Running() bool {
	return w.running.Load()
}

// Start begins the poll loop. Call in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.running.Store(true)
	defer w.running.Store(false)

	w.logger.Info("invoice status watcher started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.safePoll(ctx)
		}
	}
}

// Stop signals the watcher to stop.
func (w *Watcher) Stop() {
	select {
	case w.stop <- struct{}{}:
	default:
	}
}

func (w *Watcher) safePoll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic in status watcher", "panic", fmt.Sprint(r))
		}
	}()
	w.poll(ctx)
}

// poll fetches each waiting session's invoice and applies the result. Fetches
// retry on transient failures; a session whose invoice cannot be fetched this
// round is simply tried again next round.
func (w *Watcher) poll(ctx context.Context) {
	for _, s := range w.sessions.Active() {
		inv, err := w.fetch(ctx, s.InvoiceID())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("invoice status fetch failed", "invoice", s.InvoiceID(), "error", err)
			continue
		}
		s.ApplyBackendStatus(inv)
	}
}

func (w *Watcher) fetch(ctx context.Context, invoiceID string) (*invoice.Invoice, error) {
	var inv *invoice.Invoice
	err := retry.Do(ctx, 3, 200*time.Millisecond, func() error {
		var ferr error
		inv, ferr = w.fetcher.GetInvoice(ctx, invoiceID)
		if ferr == nil {
			return nil
		}
		// Client-side rejections won't heal on retry.
		var apiErr *gatewayapi.APIError
		if errors.As(ferr, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return retry.Permanent(ferr)
		}
		return ferr
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}
