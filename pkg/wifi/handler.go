package wifi

import (
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/tenderoni/tenderoni-go/pkg/log"
)

// cycle is the connection state of one Initialize call: the retry counter,
// the terminal signal and the retry policy. Its handle method is what the
// manager registers with the stack.
type cycle struct {
	id         string
	ssid       string
	stack      Stack
	group      *eventGroup
	maxRetries int
	backoff    *Backoff
	logger     *slog.Logger
	events     log.Logger

	mu         sync.Mutex
	state      State
	retries    int
	reconnects int
	address    netip.Addr
	pending    *time.Timer
	closed     bool

	// inflight tracks reconnects issued outside mu.
	inflight sync.WaitGroup
}

// handle is the stack event callback. It runs on the stack's event
// goroutine and never blocks.
func (c *cycle) handle(ev Event) {
	switch {
	case ev.Base == WifiEvent && ev.ID == EventStaStart:
		c.onStart(ev)
	case ev.Base == WifiEvent && ev.ID == EventStaDisconnected:
		c.onDisconnected(ev)
	case ev.Base == IPEvent && ev.ID == EventStaGotIP:
		c.onGotIP(ev)
	default:
		c.logger.Debug("station event ignored", "event", ev.String())
	}
}

func (c *cycle) onStart(ev Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	old := c.transition(StateConnecting)
	retries := c.retries
	c.inflight.Add(1)
	c.mu.Unlock()

	c.logState(old, StateConnecting, "interface started")
	c.emitRadio(ev, log.ActionConnect, retries, "", "", 0)
	c.connect()
}

func (c *cycle) onDisconnected(ev Event) {
	reason := ""
	if d, ok := ev.Data.(Disconnected); ok {
		reason = d.Reason.String()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if c.retries >= c.maxRetries {
		old := c.transition(StateFailed)
		retries := c.retries
		c.mu.Unlock()

		c.group.Set(BitFailed)
		c.logger.Info("connect to the AP failed", "retries", retries, "reason", reason)
		if old != StateFailed {
			c.logState(old, StateFailed, "retries exhausted")
		}
		c.emitRadio(ev, log.ActionSignalFailed, retries, reason, "", 0)
		return
	}

	c.retries++
	c.reconnects++
	retries := c.retries
	old := c.transition(StateRetrying)
	delay := c.backoff.Next()
	if delay > 0 {
		c.pending = time.AfterFunc(delay, c.reconnectLater)
	} else {
		c.inflight.Add(1)
	}
	c.mu.Unlock()

	c.logger.Info("retry to connect to the AP",
		"retry", retries, "max_retries", c.maxRetries, "reason", reason, "delay", delay)
	if old != StateRetrying {
		c.logState(old, StateRetrying, reason)
	}
	c.emitRadio(ev, log.ActionReconnect, retries, reason, "", delay)

	if delay == 0 {
		c.connect()
	}
}

func (c *cycle) onGotIP(ev Event) {
	var addr netip.Addr
	if ip, ok := ev.Data.(GotIP); ok {
		addr = ip.IP
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.retries = 0
	c.backoff.Reset()
	c.address = addr
	old := c.transition(StateConnected)
	c.mu.Unlock()

	c.group.Set(BitConnected)
	c.logger.Info("got ip", "ip", addr.String())
	c.logState(old, StateConnected, "address acquired")
	c.emitRadio(ev, log.ActionSignalConnected, 0, "", addr.String(), 0)
}

// reconnectLater runs on a timer goroutine after a backoff delay.
func (c *cycle) reconnectLater() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.inflight.Add(1)
	c.mu.Unlock()

	c.connect()
}

// connect issues a connect attempt. The caller has added to inflight.
func (c *cycle) connect() {
	defer c.inflight.Done()
	if err := c.stack.Connect(); err != nil {
		c.logger.Warn("connect request rejected by stack", "error", err)
		c.emitError("connect", err, true)
	}
}

// close stops the cycle. No connect is issued after close returns.
func (c *cycle) close() {
	c.mu.Lock()
	c.closed = true
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.mu.Unlock()

	c.inflight.Wait()
}

// snapshot returns the retry counter, reconnect total and address.
func (c *cycle) snapshot() (retries, reconnects int, addr netip.Addr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries, c.reconnects, c.address
}

// transition sets the state and returns the previous one. Caller holds mu.
func (c *cycle) transition(s State) State {
	old := c.state
	c.state = s
	return old
}

func (c *cycle) logState(old, next State, reason string) {
	c.events.Log(log.Event{
		Timestamp: time.Now(),
		CycleID:   c.id,
		Category:  log.CategoryState,
		SSID:      c.ssid,
		StateChange: &log.StateChangeEvent{
			OldState: old.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

func (c *cycle) emitRadio(ev Event, action log.Action, retry int, reason, addr string, delay time.Duration) {
	c.events.Log(log.Event{
		Timestamp: time.Now(),
		CycleID:   c.id,
		Category:  log.CategoryRadio,
		SSID:      c.ssid,
		Radio: &log.RadioEvent{
			Event:      ev.String(),
			Action:     action,
			Retry:      retry,
			MaxRetries: c.maxRetries,
			Reason:     reason,
			Address:    addr,
			Delay:      delay,
		},
	})
}

func (c *cycle) emitError(step string, err error, recovered bool) {
	c.events.Log(log.Event{
		Timestamp: time.Now(),
		CycleID:   c.id,
		Category:  log.CategoryError,
		SSID:      c.ssid,
		Error: &log.ErrorEventData{
			Step:      step,
			Message:   err.Error(),
			Recovered: recovered,
		},
	})
}
