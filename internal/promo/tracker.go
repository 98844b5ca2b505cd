package promo

import (
	"context"
	"sync"
)

// Tracker enforces last-request-wins for asynchronous lookups: starting a lookup cancels the one in
// flight, and only the latest sequence number is reported as current.
type Tracker struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Begin supersedes any earlier lookup and returns the context and sequence number of the new one.
func (t *Tracker) Begin(ctx context.Context) (context.Context, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	ctx, t.cancel = context.WithCancel(ctx)
	t.seq++

	return ctx, t.seq
}

func (t *Tracker) Current(seq uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return seq == t.seq
}

// Cancel aborts the lookup in flight, if any, and invalidates its sequence number.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}

	t.seq++
}
