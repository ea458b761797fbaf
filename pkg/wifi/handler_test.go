package wifi

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderoni/tenderoni-go/pkg/log"
)

// connectCounter is a Stack that only counts Connect calls.
type connectCounter struct {
	Stack

	mu       sync.Mutex
	connects int
	err      error
}

func (s *connectCounter) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	return s.err
}

func (s *connectCounter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// captureLogger collects events in memory.
type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *captureLogger) Log(e log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *captureLogger) states() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.events {
		if e.StateChange != nil {
			out = append(out, e.StateChange.NewState)
		}
	}
	return out
}

func newTestCycle(stack Stack, maxRetries int, backoff BackoffConfig) (*cycle, *captureLogger) {
	events := &captureLogger{}
	return &cycle{
		id:         "test-cycle",
		ssid:       "lab",
		stack:      stack,
		group:      newEventGroup(),
		maxRetries: maxRetries,
		backoff:    NewBackoff(backoff),
		logger:     discardLogger(),
		events:     events,
	}, events
}

var (
	evStart      = Event{Base: WifiEvent, ID: EventStaStart}
	evDisconnect = Event{Base: WifiEvent, ID: EventStaDisconnected, Data: Disconnected{SSID: "lab", Reason: ReasonAuthFail}}
	evConnected  = Event{Base: WifiEvent, ID: EventStaConnected}
	testAddr     = netip.MustParseAddr("192.168.1.50")
	evGotIP      = Event{Base: IPEvent, ID: EventStaGotIP, Data: GotIP{IP: testAddr}}
)

func TestCycle(t *testing.T) {
	t.Run("StartConnects", func(t *testing.T) {
		stack := &connectCounter{}
		c, events := newTestCycle(stack, 5, BackoffConfig{})

		c.handle(evStart)

		assert.Equal(t, 1, stack.count())
		assert.Zero(t, c.group.Bits())
		assert.Equal(t, []string{"CONNECTING"}, events.states())
	})

	// Two rejections, then an address.
	t.Run("ConnectAfterRetries", func(t *testing.T) {
		stack := &connectCounter{}
		c, events := newTestCycle(stack, 5, BackoffConfig{})

		c.handle(evStart)
		c.handle(evDisconnect)
		c.handle(evDisconnect)
		retries, _, _ := c.snapshot()
		assert.Equal(t, 2, retries)

		c.handle(evConnected)
		c.handle(evGotIP)

		retries, reconnects, addr := c.snapshot()
		assert.Equal(t, 3, stack.count())
		assert.Zero(t, retries)
		assert.Equal(t, 2, reconnects)
		assert.Equal(t, testAddr, addr)
		assert.Equal(t, BitConnected, c.group.Bits())
		assert.Equal(t, []string{"CONNECTING", "RETRYING", "CONNECTED"}, events.states())
	})

	// Every attempt rejected.
	t.Run("FailAfterMaxRetries", func(t *testing.T) {
		stack := &connectCounter{}
		c, events := newTestCycle(stack, 2, BackoffConfig{})

		c.handle(evStart)
		c.handle(evDisconnect)
		c.handle(evDisconnect)
		assert.Zero(t, c.group.Bits())

		c.handle(evDisconnect)

		assert.Equal(t, 3, stack.count(), "initial connect plus two reconnects")
		assert.Equal(t, BitFailed, c.group.Bits())
		assert.Equal(t, []string{"CONNECTING", "RETRYING", "FAILED"}, events.states())
	})

	t.Run("RetryBound", func(t *testing.T) {
		for maxRetries := 0; maxRetries <= 4; maxRetries++ {
			for n := 0; n <= 6; n++ {
				stack := &connectCounter{}
				c, _ := newTestCycle(stack, maxRetries, BackoffConfig{})

				c.handle(evStart)
				for i := 0; i < n; i++ {
					c.handle(evDisconnect)
				}

				assert.Equal(t, 1+min(n, maxRetries), stack.count(), "max=%d n=%d", maxRetries, n)
				assert.Equal(t, n > maxRetries, c.group.Bits().Has(BitFailed), "max=%d n=%d", maxRetries, n)
				retries, _, _ := c.snapshot()
				assert.LessOrEqual(t, retries, maxRetries)
			}
		}
	})

	t.Run("ZeroRetriesFailsOnFirstDisconnect", func(t *testing.T) {
		stack := &connectCounter{}
		c, _ := newTestCycle(stack, 0, BackoffConfig{})

		c.handle(evStart)
		c.handle(evDisconnect)

		assert.Equal(t, 1, stack.count())
		assert.Equal(t, BitFailed, c.group.Bits())
	})

	t.Run("AddressResetsBudget", func(t *testing.T) {
		stack := &connectCounter{}
		c, _ := newTestCycle(stack, 2, BackoffConfig{})

		c.handle(evStart)
		c.handle(evDisconnect)
		c.handle(evDisconnect)
		c.handle(evGotIP)

		// Link lost after connecting: the full budget is available again.
		c.handle(evDisconnect)
		c.handle(evDisconnect)
		assert.False(t, c.group.Bits().Has(BitFailed))
		assert.Equal(t, 5, stack.count())

		c.handle(evDisconnect)
		assert.Equal(t, BitConnected|BitFailed, c.group.Bits())
	})

	t.Run("OtherEventsIgnored", func(t *testing.T) {
		stack := &connectCounter{}
		c, events := newTestCycle(stack, 5, BackoffConfig{})

		c.handle(evConnected)
		c.handle(Event{Base: WifiEvent, ID: EventStaStop})
		c.handle(Event{Base: IPEvent, ID: 42})

		assert.Zero(t, stack.count())
		assert.Zero(t, c.group.Bits())
		assert.Empty(t, events.states())
	})

	t.Run("ConnectErrorDoesNotStopCycle", func(t *testing.T) {
		stack := &connectCounter{err: assert.AnError}
		c, events := newTestCycle(stack, 1, BackoffConfig{})

		c.handle(evStart)
		c.handle(evDisconnect)
		c.handle(evDisconnect)

		assert.Equal(t, 2, stack.count())
		assert.Equal(t, BitFailed, c.group.Bits())

		events.mu.Lock()
		defer events.mu.Unlock()
		var errs int
		for _, e := range events.events {
			if e.Error != nil {
				errs++
				assert.Equal(t, "connect", e.Error.Step)
				assert.True(t, e.Error.Recovered)
			}
		}
		assert.Equal(t, 2, errs)
	})

	t.Run("ClosedIgnoresEvents", func(t *testing.T) {
		stack := &connectCounter{}
		c, _ := newTestCycle(stack, 5, BackoffConfig{})

		c.close()
		c.handle(evStart)
		c.handle(evDisconnect)
		c.handle(evGotIP)

		assert.Zero(t, stack.count())
		assert.Zero(t, c.group.Bits())
	})

	t.Run("DelayedReconnect", func(t *testing.T) {
		stack := &connectCounter{}
		c, _ := newTestCycle(stack, 5, BackoffConfig{Initial: 20 * time.Millisecond})

		c.handle(evStart)
		c.handle(evDisconnect)

		retries, _, _ := c.snapshot()
		assert.Equal(t, 1, retries, "retry is counted when scheduled")
		assert.Equal(t, 1, stack.count())

		require.Eventually(t, func() bool { return stack.count() == 2 }, time.Second, 5*time.Millisecond)
		c.close()
	})

	t.Run("CloseCancelsPendingReconnect", func(t *testing.T) {
		stack := &connectCounter{}
		c, _ := newTestCycle(stack, 5, BackoffConfig{Initial: 50 * time.Millisecond})

		c.handle(evStart)
		c.handle(evDisconnect)
		c.close()

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 1, stack.count())
	})

	t.Run("AddressResetsBackoff", func(t *testing.T) {
		stack := &connectCounter{}
		c, _ := newTestCycle(stack, 5, BackoffConfig{Initial: time.Millisecond, Max: time.Second})

		c.handle(evStart)
		c.handle(evDisconnect)
		c.handle(evDisconnect)
		assert.Equal(t, 4*time.Millisecond, c.backoff.Current())

		c.handle(evGotIP)
		assert.Equal(t, time.Millisecond, c.backoff.Current())
		c.close()
	})
}
