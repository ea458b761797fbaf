package wifi

import (
	"fmt"
	"net/netip"
)

// EventBase identifies an event source of the network stack.
type EventBase uint8

const (
	// WifiEvent carries link-layer events of the radio.
	WifiEvent EventBase = iota + 1

	// IPEvent carries address-layer events of the network interface.
	IPEvent
)

// String returns the event base name.
func (b EventBase) String() string {
	switch b {
	case WifiEvent:
		return "WIFI_EVENT"
	case IPEvent:
		return "IP_EVENT"
	default:
		return "UNKNOWN"
	}
}

// EventID identifies an event kind within an EventBase.
type EventID int32

const (
	// EventAnyID matches every event of a base when registering a handler.
	EventAnyID EventID = -1

	// EventStaStart is posted by WifiEvent when the station interface started.
	EventStaStart EventID = 2

	// EventStaStop is posted by WifiEvent when the station interface stopped.
	EventStaStop EventID = 3

	// EventStaConnected is posted by WifiEvent when the station associated.
	EventStaConnected EventID = 4

	// EventStaDisconnected is posted by WifiEvent when association failed or
	// was lost.
	EventStaDisconnected EventID = 5

	// EventStaGotIP is posted by IPEvent when the station acquired an address.
	EventStaGotIP EventID = 0
)

// EventName returns a readable name for a base/id pair.
func EventName(base EventBase, id EventID) string {
	switch base {
	case WifiEvent:
		switch id {
		case EventAnyID:
			return "WIFI_EVENT_ANY"
		case EventStaStart:
			return "STA_START"
		case EventStaStop:
			return "STA_STOP"
		case EventStaConnected:
			return "STA_CONNECTED"
		case EventStaDisconnected:
			return "STA_DISCONNECTED"
		}
	case IPEvent:
		switch id {
		case EventAnyID:
			return "IP_EVENT_ANY"
		case EventStaGotIP:
			return "STA_GOT_IP"
		}
	}
	return fmt.Sprintf("%s(%d)", base, id)
}

// Event is a single notification delivered by the stack's event loop.
type Event struct {
	Base EventBase
	ID   EventID

	// Data is the event payload: GotIP for EventStaGotIP, Disconnected for
	// EventStaDisconnected, nil otherwise.
	Data any
}

// String returns the event name.
func (e Event) String() string {
	return EventName(e.Base, e.ID)
}

// GotIP is the payload of EventStaGotIP. It is informational only.
type GotIP struct {
	IP      netip.Addr
	Netmask netip.Addr
	Gateway netip.Addr
}

// Disconnected is the payload of EventStaDisconnected.
type Disconnected struct {
	SSID   string
	BSSID  MAC
	Reason Reason
}

// Reason is a disconnect reason code.
type Reason uint8

const (
	ReasonUnspecified      Reason = 1
	ReasonAuthExpire       Reason = 2
	ReasonAssocFail        Reason = 202
	ReasonBeaconTimeout    Reason = 200
	ReasonNoAPFound        Reason = 201
	ReasonAuthFail         Reason = 203
	ReasonHandshakeTimeout Reason = 204
	ReasonConnectionFail   Reason = 205
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonUnspecified:
		return "UNSPECIFIED"
	case ReasonAuthExpire:
		return "AUTH_EXPIRE"
	case ReasonAssocFail:
		return "ASSOC_FAIL"
	case ReasonBeaconTimeout:
		return "BEACON_TIMEOUT"
	case ReasonNoAPFound:
		return "NO_AP_FOUND"
	case ReasonAuthFail:
		return "AUTH_FAIL"
	case ReasonHandshakeTimeout:
		return "HANDSHAKE_TIMEOUT"
	case ReasonConnectionFail:
		return "CONNECTION_FAIL"
	default:
		return fmt.Sprintf("REASON(%d)", uint8(r))
	}
}

// ParseReason maps a reason name (case-sensitive, as returned by String)
// back to its code.
func ParseReason(s string) (Reason, bool) {
	for _, r := range []Reason{
		ReasonUnspecified, ReasonAuthExpire, ReasonAssocFail, ReasonBeaconTimeout,
		ReasonNoAPFound, ReasonAuthFail, ReasonHandshakeTimeout, ReasonConnectionFail,
	} {
		if r.String() == s {
			return r, true
		}
	}
	return 0, false
}

// HandlerFunc receives events from the stack's event loop. It runs on the
// loop's goroutine and must not block.
type HandlerFunc func(Event)

// HandlerInstance identifies a handler registration.
type HandlerInstance uint64
