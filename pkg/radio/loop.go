package radio

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tenderoni/tenderoni-go/pkg/wifi"
)

// Loop errors.
var (
	ErrLoopClosed     = errors.New("event loop closed")
	ErrUnknownHandler = errors.New("handler not registered")
	ErrNilHandler     = errors.New("nil handler")
)

// handlerKey selects the handlers of one event. id may be wifi.EventAnyID.
type handlerKey struct {
	base wifi.EventBase
	id   wifi.EventID
}

type registration struct {
	inst wifi.HandlerInstance
	fn   wifi.HandlerFunc
}

// Loop is the default event loop of a stack. Posted events are delivered in
// order, one at a time, on the loop's own goroutine.
//
// Post never blocks, so a handler may post further events. A handler must
// not call Unregister or Close: both wait for the running delivery.
type Loop struct {
	// hmu guards handlers. Delivery holds it for reading, so Unregister
	// returns only once no delivery to the removed handler is running.
	hmu      sync.RWMutex
	handlers map[handlerKey][]registration
	nextInst uint64

	// qmu guards the queue.
	qmu    sync.Mutex
	cond   *sync.Cond
	queue  []wifi.Event
	closed bool

	delivered atomic.Uint64
	done      chan struct{}

	logger *slog.Logger
}

// NewLoop creates a loop and starts its delivery goroutine.
// If logger is nil, logging is disabled.
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l := &Loop{
		handlers: make(map[handlerKey][]registration),
		done:     make(chan struct{}),
		logger:   logger,
	}
	l.cond = sync.NewCond(&l.qmu)
	go l.run()
	return l
}

// Register subscribes fn to events of base with the given id, or to every
// event of base when id is wifi.EventAnyID.
func (l *Loop) Register(base wifi.EventBase, id wifi.EventID, fn wifi.HandlerFunc) (wifi.HandlerInstance, error) {
	if fn == nil {
		return 0, ErrNilHandler
	}
	if l.isClosed() {
		return 0, ErrLoopClosed
	}

	l.hmu.Lock()
	defer l.hmu.Unlock()

	l.nextInst++
	inst := wifi.HandlerInstance(l.nextInst)
	key := handlerKey{base: base, id: id}
	l.handlers[key] = append(l.handlers[key], registration{inst: inst, fn: fn})

	return inst, nil
}

// Unregister removes a registration made with the same base and id. When it
// returns, the handler is not running and will not be called again.
func (l *Loop) Unregister(base wifi.EventBase, id wifi.EventID, inst wifi.HandlerInstance) error {
	l.hmu.Lock()
	defer l.hmu.Unlock()

	key := handlerKey{base: base, id: id}
	regs := l.handlers[key]
	for i, r := range regs {
		if r.inst != inst {
			continue
		}
		regs = append(regs[:i:i], regs[i+1:]...)
		if len(regs) == 0 {
			delete(l.handlers, key)
		} else {
			l.handlers[key] = regs
		}
		return nil
	}
	return ErrUnknownHandler
}

// Post queues an event for delivery.
func (l *Loop) Post(ev wifi.Event) error {
	l.qmu.Lock()
	defer l.qmu.Unlock()

	if l.closed {
		return ErrLoopClosed
	}
	l.queue = append(l.queue, ev)
	l.cond.Signal()
	return nil
}

// Delivered returns the number of events processed so far, including
// events no handler was registered for.
func (l *Loop) Delivered() uint64 {
	return l.delivered.Load()
}

// Close stops accepting events, delivers the ones already queued and waits
// for the delivery goroutine to exit.
func (l *Loop) Close() error {
	l.qmu.Lock()
	if l.closed {
		l.qmu.Unlock()
		return ErrLoopClosed
	}
	l.closed = true
	l.cond.Broadcast()
	l.qmu.Unlock()

	<-l.done
	return nil
}

func (l *Loop) isClosed() bool {
	l.qmu.Lock()
	defer l.qmu.Unlock()
	return l.closed
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		l.qmu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.qmu.Unlock()
			return
		}
		ev := l.queue[0]
		l.queue[0] = wifi.Event{}
		l.queue = l.queue[1:]
		l.qmu.Unlock()

		l.dispatch(ev)
	}
}

func (l *Loop) dispatch(ev wifi.Event) {
	l.hmu.RLock()
	defer l.hmu.RUnlock()

	exact := l.handlers[handlerKey{base: ev.Base, id: ev.ID}]
	wildcard := l.handlers[handlerKey{base: ev.Base, id: wifi.EventAnyID}]

	if len(exact)+len(wildcard) == 0 {
		l.logger.Debug("event dropped, no handler", "event", ev.String())
	}
	for _, r := range exact {
		r.fn(ev)
	}
	for _, r := range wildcard {
		r.fn(ev)
	}
	l.delivered.Add(1)
}
