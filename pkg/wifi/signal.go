package wifi

import (
	"context"
	"sync"
	"time"
)

// Bits is a set of terminal signal flags.
type Bits uint32

const (
	// BitConnected is set once the station acquired an address.
	BitConnected Bits = 1 << iota

	// BitFailed is set once the retry budget is exhausted.
	BitFailed
)

// Has reports whether all bits of b2 are set in b.
func (b Bits) Has(b2 Bits) bool {
	return b&b2 == b2 && b2 != 0
}

// eventGroup holds level-set terminal bits. Setting bits before anyone waits
// is safe: the waiter observes them immediately.
type eventGroup struct {
	mu   sync.Mutex
	bits Bits

	// set is closed by the first Set call.
	set     chan struct{}
	setOnce sync.Once
}

func newEventGroup() *eventGroup {
	return &eventGroup{set: make(chan struct{})}
}

// Set ors b into the group and wakes waiters. Setting a bit twice is harmless.
func (g *eventGroup) Set(b Bits) {
	if b == 0 {
		return
	}
	g.mu.Lock()
	g.bits |= b
	g.mu.Unlock()
	g.setOnce.Do(func() { close(g.set) })
}

// Bits returns the bits set so far.
func (g *eventGroup) Bits() Bits {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bits
}

// Wait blocks until a bit is set, the timeout elapses (timeout > 0) or ctx
// is done. It returns the bits set at wake, which may be zero, and
// errWaitTimeout or ctx.Err() when no bit woke it.
func (g *eventGroup) Wait(ctx context.Context, timeout time.Duration) (Bits, error) {
	var timeoutC <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timeoutC = t.C
	}

	select {
	case <-g.set:
		return g.Bits(), nil
	case <-timeoutC:
		return g.Bits(), errWaitTimeout
	case <-ctx.Done():
		return g.Bits(), ctx.Err()
	}
}
