package log

// Logger receives connection events. Pass nil or NoopLogger to disable
// capture.
type Logger interface {
	// Log records an event. Implementations must be safe for concurrent
	// use: events arrive from the radio's event goroutine as well as from
	// the goroutine running the connection manager. Log must not block.
	Log(event Event)
}

// NoopLogger discards all events. It is usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}
