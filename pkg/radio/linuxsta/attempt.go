package linuxsta

import (
	"context"
	"sync"
)

// attempts tracks connect attempts against the link state. A pending
// attempt is resolved exactly once: by an address, a DHCP failure, an
// association timeout or the link going down. Results from an attempt that
// is no longer pending are dropped.
type attempts struct {
	mu sync.Mutex

	linkUp bool

	// current is the pending attempt, zero when none is.
	current uint64
	last    uint64

	// acquiring is the attempt whose DHCP exchange is running, zero when
	// none is.
	acquiring uint64
	cancel    context.CancelFunc
}

// begin starts a new attempt and reports whether the link is already up.
func (a *attempts) begin() (attempt uint64, up bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last++
	a.current = a.last
	return a.current, a.linkUp
}

// pending returns the pending attempt.
func (a *attempts) pending() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// expire resolves attempt if the link never came up for it.
func (a *attempts) expire(attempt uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != attempt || a.linkUp {
		return false
	}
	a.current = 0
	return true
}

// setLink records the link state and returns the previous one. Losing the
// link cancels a running DHCP exchange and resolves the pending attempt,
// since the link-down disconnect reports its failure.
func (a *attempts) setLink(up bool) (was bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	was = a.linkUp
	a.linkUp = up
	if !up && was {
		a.current = 0
		a.stopAcquire()
	}
	return was
}

// startAcquire reserves the DHCP exchange for attempt and returns the
// context it runs under. ok is false if attempt is no longer pending or an
// exchange is already running.
func (a *attempts) startAcquire(parent context.Context, attempt uint64) (ctx context.Context, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if attempt == 0 || a.current != attempt || a.acquiring != 0 {
		return nil, false
	}
	ctx, a.cancel = context.WithCancel(parent)
	a.acquiring = attempt
	return ctx, true
}

// finishAcquire ends the exchange for attempt and reports whether its result
// should be posted. It resolves the attempt when it is still pending.
func (a *attempts) finishAcquire(attempt uint64) (report bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.acquiring == attempt {
		a.stopAcquire()
	}
	if a.current != attempt {
		return false
	}
	a.current = 0
	return true
}

// stopAcquire must be called with mu held.
func (a *attempts) stopAcquire() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.acquiring = 0
}
