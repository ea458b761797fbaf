package log

import (
	"time"
)

// Event is one entry of a connection cycle's trace.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// CycleID identifies the connection cycle (UUID).
	CycleID string `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// SSID is the network the cycle connects to.
	SSID string `cbor:"4,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"`
	Radio       *RadioEvent       `cbor:"11,keyasint,omitempty"`
	Outcome     *OutcomeEvent     `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a connection state change.
	CategoryState Category = 0
	// CategoryRadio indicates an event delivered by the radio stack.
	CategoryRadio Category = 1
	// CategoryOutcome indicates the terminal outcome of a cycle.
	CategoryOutcome Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryRadio:
		return "RADIO"
	case CategoryOutcome:
		return "OUTCOME"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory maps a category name to its value.
func ParseCategory(s string) (Category, bool) {
	for _, c := range []Category{CategoryState, CategoryRadio, CategoryOutcome, CategoryError} {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// StateChangeEvent captures a transition of the connection state machine.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// RadioEvent captures an event delivered by the radio stack and what the
// handler did about it.
type RadioEvent struct {
	// Event is the event name, e.g. STA_DISCONNECTED.
	Event string `cbor:"1,keyasint"`

	// Action is what the handler did in response.
	Action Action `cbor:"2,keyasint"`

	// Retry is the retry count after handling the event.
	Retry int `cbor:"3,keyasint"`

	// MaxRetries is the configured retry bound.
	MaxRetries int `cbor:"4,keyasint"`

	// Reason is the disconnect reason, if any.
	Reason string `cbor:"5,keyasint,omitempty"`

	// Address is the acquired address, if any.
	Address string `cbor:"6,keyasint,omitempty"`

	// Delay is the reconnect delay, if the reconnect was scheduled.
	Delay time.Duration `cbor:"7,keyasint,omitempty"`
}

// Action is the handler's response to a radio event.
type Action uint8

const (
	// ActionNone means the event required no action.
	ActionNone Action = 0
	// ActionConnect means the initial connect was issued.
	ActionConnect Action = 1
	// ActionReconnect means a reconnect was issued or scheduled.
	ActionReconnect Action = 2
	// ActionSignalConnected means the Connected signal was set.
	ActionSignalConnected Action = 3
	// ActionSignalFailed means the Failed signal was set.
	ActionSignalFailed Action = 4
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "NONE"
	case ActionConnect:
		return "CONNECT"
	case ActionReconnect:
		return "RECONNECT"
	case ActionSignalConnected:
		return "SIGNAL_CONNECTED"
	case ActionSignalFailed:
		return "SIGNAL_FAILED"
	default:
		return "UNKNOWN"
	}
}

// OutcomeEvent captures how a cycle ended.
type OutcomeEvent struct {
	// Outcome is the terminal outcome name.
	Outcome string `cbor:"1,keyasint"`

	// Retries is the number of reconnect attempts issued.
	Retries int `cbor:"2,keyasint"`

	// Address is the acquired address, if connected.
	Address string `cbor:"3,keyasint,omitempty"`

	// Duration is how long the wait for the outcome took.
	Duration time.Duration `cbor:"4,keyasint"`
}

// ErrorEventData captures a failure during bring-up.
type ErrorEventData struct {
	// Step is the bring-up step that failed.
	Step string `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Recovered is set when the failure was handled locally.
	Recovered bool `cbor:"3,keyasint,omitempty"`
}
