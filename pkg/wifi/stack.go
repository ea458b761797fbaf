package wifi

// Mode is the radio operating mode.
type Mode uint8

const (
	ModeNull Mode = iota
	ModeStation
	ModeAP
	ModeAPStation
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeNull:
		return "NULL"
	case ModeStation:
		return "STA"
	case ModeAP:
		return "AP"
	case ModeAPStation:
		return "APSTA"
	default:
		return "UNKNOWN"
	}
}

// Interface selects which radio interface a configuration applies to.
type Interface uint8

const (
	InterfaceStation Interface = iota
	InterfaceAP
)

// InitConfig carries radio driver tuning. DefaultInitConfig is what the
// manager uses.
type InitConfig struct {
	StaticRxBuffers  int
	DynamicRxBuffers int
	DynamicTxBuffers int
	AMPDURx          bool
	AMPDUTx          bool
}

// DefaultInitConfig returns the default driver tuning.
func DefaultInitConfig() InitConfig {
	return InitConfig{
		StaticRxBuffers:  10,
		DynamicRxBuffers: 32,
		DynamicTxBuffers: 32,
		AMPDURx:          true,
		AMPDUTx:          true,
	}
}

// Storage is the persistent storage the network stack keeps its
// calibration and driver state in.
type Storage interface {
	// Init opens the storage. It returns nvs.ErrNoFreePages or
	// nvs.ErrNewVersionFound when the storage must be erased first.
	Init() error

	// Erase wipes the storage.
	Erase() error
}

// Stack is the radio and network stack a Manager drives. Implementations
// deliver events asynchronously, from their own goroutine, to the handlers
// registered with RegisterHandler.
type Stack interface {
	// NetifInit initializes the network interface subsystem.
	NetifInit() error

	// CreateDefaultEventLoop creates the loop events are delivered on.
	CreateDefaultEventLoop() error

	// CreateDefaultStation creates the default station interface.
	CreateDefaultStation() error

	// Init initializes the radio driver.
	Init(cfg InitConfig) error

	// RegisterHandler subscribes fn to events of base with the given id, or
	// to all events of base when id is EventAnyID.
	RegisterHandler(base EventBase, id EventID, fn HandlerFunc) (HandlerInstance, error)

	// UnregisterHandler removes a registration. No event is delivered to
	// the handler after it returns.
	UnregisterHandler(base EventBase, id EventID, inst HandlerInstance) error

	// SetMode sets the radio operating mode.
	SetMode(mode Mode) error

	// SetConfig applies the configuration of an interface.
	SetConfig(iface Interface, cfg StationConfig) error

	// Start starts the radio. The stack posts EventStaStart once running.
	Start() error

	// Connect starts an association attempt. The outcome is reported as
	// EventStaDisconnected or EventStaConnected followed by EventStaGotIP.
	Connect() error
}
