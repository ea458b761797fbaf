package wifi

import (
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/tenderoni/tenderoni-go/pkg/log"
)

// Manager errors.
var (
	ErrInvalidConfig = errors.New("invalid station configuration")
	ErrInitFailed    = errors.New("station initialization failed")

	errWaitTimeout = errors.New("wait for connection outcome timed out")
)

// State is the conceptual connection state of a cycle.
type State uint8

const (
	// StateIdle - handlers registered, radio not started yet.
	StateIdle State = iota

	// StateConnecting - the initial connect was issued.
	StateConnecting

	// StateRetrying - a reconnect was issued after a disconnect.
	StateRetrying

	// StateConnected - an address was acquired.
	StateConnected

	// StateFailed - the retry budget is exhausted.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateRetrying:
		return "RETRYING"
	case StateConnected:
		return "CONNECTED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Outcome is how a connection cycle ended.
type Outcome uint8

const (
	// OutcomeUnknown - the wait ended without a terminal signal.
	OutcomeUnknown Outcome = iota

	// OutcomeConnected - the station acquired an address.
	OutcomeConnected

	// OutcomeFailed - every reconnect attempt was used up.
	OutcomeFailed

	// OutcomeTimeout - the configured wait timeout elapsed first.
	OutcomeTimeout
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnknown:
		return "UNKNOWN"
	case OutcomeConnected:
		return "CONNECTED"
	case OutcomeFailed:
		return "FAILED"
	case OutcomeTimeout:
		return "TIMEOUT"
	default:
		return "INVALID"
	}
}

// Result describes a finished connection cycle.
type Result struct {
	// CycleID identifies the cycle in the event log.
	CycleID string

	// Outcome is the terminal outcome. Connected wins if both bits are set.
	Outcome Outcome

	// Bits are the terminal bits observed at wake.
	Bits Bits

	// Reconnects is the number of reconnect attempts issued in the cycle.
	Reconnects int

	// RetryCount is the retry counter at wake. It is reset to zero by every
	// address acquisition.
	RetryCount int

	// Address is the acquired address when connected.
	Address netip.Addr

	// Duration is the time spent waiting for the outcome.
	Duration time.Duration
}

// Config configures a Manager.
type Config struct {
	// Settings is the static station configuration.
	Settings Settings

	// Logger is the optional operational logger.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// EventLogger optionally captures the connection cycle as events.
	EventLogger log.Logger
}

// DefaultConfig returns a Config with DefaultSettings.
func DefaultConfig() Config {
	return Config{
		Settings: DefaultSettings(),
	}
}
