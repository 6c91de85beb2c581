package main

import (
	"context"
	"errors"
	"sync"

	"github.com/aman-zulfiqar/flash-swap/internal/swap"
)

var errQuoteFailed = errors.New("no quote available for this pair and amount (run with --verbose for details)")

// session follows an orchestrator through OnChange and lets the CLI block until
// a quote arrives or the transaction settles.
type session struct {
	orch *swap.Orchestrator

	// onStatus is called for every transaction status change, in order.
	onStatus func(swap.Snapshot)

	mu         sync.Mutex
	latest     swap.Snapshot
	lastStatus swap.Status
	sawLoading bool
	changed    chan struct{}
}

func newSession() *session {
	return &session{changed: make(chan struct{}, 1), lastStatus: swap.StatusIdle}
}

// observe is the orchestrator's OnChange hook.
func (s *session) observe(snap swap.Snapshot) {
	s.mu.Lock()
	s.latest = snap
	if snap.Input.QuoteLoading {
		s.sawLoading = true
	}
	statusChanged := snap.Transaction.Status != s.lastStatus
	s.lastStatus = snap.Transaction.Status
	onStatus := s.onStatus
	s.mu.Unlock()

	if statusChanged && onStatus != nil {
		onStatus(snap)
	}
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *session) setOnStatus(fn func(swap.Snapshot)) {
	s.mu.Lock()
	s.onStatus = fn
	s.mu.Unlock()
}

// waitQuote blocks until the pending quote request resolves.
func (s *session) waitQuote(ctx context.Context) (swap.Snapshot, error) {
	return s.waitFor(ctx, func(snap swap.Snapshot, sawLoading bool) (bool, error) {
		if snap.Input.Quote != nil {
			return true, nil
		}
		if sawLoading && !snap.Input.QuoteLoading {
			return true, errQuoteFailed
		}
		return false, nil
	})
}

// waitSettled blocks until the transaction is confirmed or failed.
func (s *session) waitSettled(ctx context.Context) (swap.Snapshot, error) {
	return s.waitFor(ctx, func(snap swap.Snapshot, _ bool) (bool, error) {
		return snap.Transaction.Status.Terminal(), nil
	})
}

func (s *session) waitFor(ctx context.Context, done func(swap.Snapshot, bool) (bool, error)) (swap.Snapshot, error) {
	for {
		s.mu.Lock()
		snap, sawLoading := s.latest, s.sawLoading
		s.mu.Unlock()

		if ok, err := done(snap, sawLoading); ok {
			return snap, err
		}
		select {
		case <-s.changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}
