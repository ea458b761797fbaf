package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/tenderoni/tenderoni-go/pkg/radio"
	"github.com/tenderoni/tenderoni-go/pkg/wifi"
)

// Stack errors.
var (
	ErrInvalidState  = errors.New("sim: invalid state")
	ErrPoolExhausted = errors.New("sim: address pool exhausted")
)

// DefaultPool is the address pool used when Script.Pool is not set.
var DefaultPool = netip.MustParsePrefix("192.168.4.0/24")

// AccessPoint is a simulated access point.
type AccessPoint struct {
	SSID       string
	BSSID      wifi.MAC
	Channel    uint8
	Passphrase string
	Auth       wifi.AuthMode
}

// Script controls how the simulated radio answers connect attempts.
type Script struct {
	// FailAttempts makes the first N connect attempts fail with FailReason.
	FailAttempts int

	// FailReason is the reason reported by scripted failures.
	// Defaults to wifi.ReasonAuthFail.
	FailReason wifi.Reason

	// AssocDelay delays the outcome of every connect attempt.
	AssocDelay time.Duration

	// Pool hands out station addresses. Defaults to DefaultPool.
	Pool netip.Prefix

	// Manual only records connect attempts. Outcomes are injected with
	// Disconnect and GotIP.
	Manual bool
}

// Calls counts the stack operations made so far.
type Calls struct {
	NetifInit              int
	CreateDefaultEventLoop int
	CreateDefaultStation   int
	Init                   int
	RegisterHandler        int
	UnregisterHandler      int
	SetMode                int
	SetConfig              int
	Start                  int
	Connect                int
}

// Stack is a simulated radio stack implementing wifi.Stack.
type Stack struct {
	mu sync.Mutex

	aps    []AccessPoint
	script Script
	logger *slog.Logger

	loop    *radio.Loop
	netif   bool
	station bool
	inited  bool
	mode    wifi.Mode
	config  *wifi.StationConfig
	started bool

	attempts int
	nextHost netip.Addr
	address  netip.Addr
	calls    Calls
}

// New creates a simulated stack with the given access points in range.
// If logger is nil, logging is disabled.
func New(logger *slog.Logger, script Script, aps ...AccessPoint) *Stack {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if script.FailReason == 0 {
		script.FailReason = wifi.ReasonAuthFail
	}
	if !script.Pool.IsValid() {
		script.Pool = DefaultPool
	}
	script.Pool = script.Pool.Masked()

	return &Stack{
		aps:      aps,
		script:   script,
		logger:   logger,
		nextHost: script.Pool.Addr().Next().Next(),
	}
}

// NetifInit initializes the network interface layer.
func (s *Stack) NetifInit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.NetifInit++
	s.netif = true
	return nil
}

// CreateDefaultEventLoop creates the event loop. It fails if one exists.
func (s *Stack) CreateDefaultEventLoop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.CreateDefaultEventLoop++
	if s.loop != nil {
		return fmt.Errorf("%w: event loop already created", ErrInvalidState)
	}
	s.loop = radio.NewLoop(s.logger)
	return nil
}

// CreateDefaultStation creates the station interface.
func (s *Stack) CreateDefaultStation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.CreateDefaultStation++
	if !s.netif || s.loop == nil {
		return fmt.Errorf("%w: station needs netif and event loop", ErrInvalidState)
	}
	s.station = true
	return nil
}

// Init initializes the simulated driver.
func (s *Stack) Init(cfg wifi.InitConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Init++
	if !s.station {
		return fmt.Errorf("%w: no station interface", ErrInvalidState)
	}
	s.inited = true
	return nil
}

// RegisterHandler subscribes fn on the event loop.
func (s *Stack) RegisterHandler(base wifi.EventBase, id wifi.EventID, fn wifi.HandlerFunc) (wifi.HandlerInstance, error) {
	loop, err := s.eventLoop(func(c *Calls) { c.RegisterHandler++ })
	if err != nil {
		return 0, err
	}
	return loop.Register(base, id, fn)
}

// UnregisterHandler removes a registration from the event loop.
func (s *Stack) UnregisterHandler(base wifi.EventBase, id wifi.EventID, inst wifi.HandlerInstance) error {
	loop, err := s.eventLoop(func(c *Calls) { c.UnregisterHandler++ })
	if err != nil {
		return err
	}
	return loop.Unregister(base, id, inst)
}

// SetMode sets the radio mode.
func (s *Stack) SetMode(mode wifi.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.SetMode++
	if !s.inited {
		return fmt.Errorf("%w: driver not initialized", ErrInvalidState)
	}
	s.mode = mode
	return nil
}

// SetConfig applies the station configuration.
func (s *Stack) SetConfig(iface wifi.Interface, cfg wifi.StationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.SetConfig++
	if iface != wifi.InterfaceStation || s.mode != wifi.ModeStation {
		return fmt.Errorf("%w: station config needs station mode", ErrInvalidState)
	}
	s.config = &cfg
	return nil
}

// Start starts the radio and posts STA_START.
func (s *Stack) Start() error {
	s.mu.Lock()
	s.calls.Start++
	if s.config == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: no station config", ErrInvalidState)
	}
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("%w: already started", ErrInvalidState)
	}
	s.started = true
	loop := s.loop
	s.mu.Unlock()

	s.logger.Debug("sim radio started")
	return loop.Post(wifi.Event{Base: wifi.WifiEvent, ID: wifi.EventStaStart})
}

// Connect starts an association attempt. The outcome is posted to the event
// loop, after Script.AssocDelay if set. In manual mode nothing is posted.
func (s *Stack) Connect() error {
	s.mu.Lock()
	s.calls.Connect++
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("%w: radio not started", ErrInvalidState)
	}
	s.attempts++
	attempt := s.attempts
	cfg := *s.config
	script := s.script
	s.mu.Unlock()

	s.logger.Debug("sim connect", "attempt", attempt, "ssid", cfg.SSID)

	if script.Manual {
		return nil
	}
	if script.AssocDelay > 0 {
		time.AfterFunc(script.AssocDelay, func() { s.associate(attempt, cfg) })
		return nil
	}
	s.associate(attempt, cfg)
	return nil
}

// associate decides the outcome of one connect attempt and posts it.
func (s *Stack) associate(attempt int, cfg wifi.StationConfig) {
	if attempt <= s.script.FailAttempts {
		s.post(disconnected(cfg, wifi.MAC{}, s.script.FailReason))
		return
	}

	ap, reason, ok := s.selectAP(cfg)
	if !ok {
		s.post(disconnected(cfg, ap.BSSID, reason))
		return
	}

	addr, err := s.lease()
	if err != nil {
		s.logger.Warn("sim dhcp failed", "error", err)
		s.post(disconnected(cfg, ap.BSSID, wifi.ReasonConnectionFail))
		return
	}

	s.post(wifi.Event{Base: wifi.WifiEvent, ID: wifi.EventStaConnected})
	s.post(gotIP(addr, s.script.Pool))
}

// selectAP finds the access point the configuration joins.
func (s *Stack) selectAP(cfg wifi.StationConfig) (AccessPoint, wifi.Reason, bool) {
	for _, ap := range s.aps {
		if ap.SSID != cfg.SSID {
			continue
		}
		if cfg.BSSIDSet && ap.BSSID != cfg.BSSID {
			continue
		}
		if cfg.Channel != 0 && ap.Channel != cfg.Channel {
			continue
		}
		if ap.Auth < cfg.Threshold.AuthMode {
			return ap, wifi.ReasonAuthFail, false
		}
		if !bytes.Equal(wifi.DerivePMK(ap.SSID, ap.Passphrase), cfg.PMK()) {
			return ap, wifi.ReasonAuthFail, false
		}
		return ap, 0, true
	}
	return AccessPoint{}, wifi.ReasonNoAPFound, false
}

func (s *Stack) lease() (netip.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.address.IsValid() {
		return s.address, nil
	}
	addr := s.nextHost
	if !s.script.Pool.Contains(addr) || !s.script.Pool.Contains(addr.Next()) {
		return netip.Addr{}, ErrPoolExhausted
	}
	s.nextHost = addr.Next()
	s.address = addr
	return addr, nil
}

// Disconnect injects a STA_DISCONNECTED event.
func (s *Stack) Disconnect(reason wifi.Reason) error {
	s.mu.Lock()
	cfg := wifi.StationConfig{}
	if s.config != nil {
		cfg = *s.config
	}
	s.address = netip.Addr{}
	s.mu.Unlock()

	return s.postErr(disconnected(cfg, wifi.MAC{}, reason))
}

// GotIP injects a STA_CONNECTED event followed by STA_GOT_IP for addr.
func (s *Stack) GotIP(addr netip.Addr) error {
	s.mu.Lock()
	s.address = addr
	s.mu.Unlock()

	if err := s.postErr(wifi.Event{Base: wifi.WifiEvent, ID: wifi.EventStaConnected}); err != nil {
		return err
	}
	return s.postErr(gotIP(addr, s.script.Pool))
}

// Calls returns the operation counters.
func (s *Stack) Calls() Calls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Attempts returns the number of connect attempts made.
func (s *Stack) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Address returns the address currently leased to the station.
func (s *Stack) Address() netip.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// Close stops the event loop.
func (s *Stack) Close() error {
	s.mu.Lock()
	loop := s.loop
	s.mu.Unlock()
	if loop == nil {
		return nil
	}
	return loop.Close()
}

func (s *Stack) eventLoop(count func(*Calls)) (*radio.Loop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count(&s.calls)
	if s.loop == nil {
		return nil, fmt.Errorf("%w: no event loop", ErrInvalidState)
	}
	return s.loop, nil
}

func (s *Stack) post(ev wifi.Event) {
	if err := s.postErr(ev); err != nil {
		s.logger.Debug("sim event not posted", "event", ev.String(), "error", err)
	}
}

func (s *Stack) postErr(ev wifi.Event) error {
	s.mu.Lock()
	loop := s.loop
	s.mu.Unlock()
	if loop == nil {
		return fmt.Errorf("%w: no event loop", ErrInvalidState)
	}
	return loop.Post(ev)
}

func disconnected(cfg wifi.StationConfig, bssid wifi.MAC, reason wifi.Reason) wifi.Event {
	return wifi.Event{
		Base: wifi.WifiEvent,
		ID:   wifi.EventStaDisconnected,
		Data: wifi.Disconnected{SSID: cfg.SSID, BSSID: bssid, Reason: reason},
	}
}

func gotIP(addr netip.Addr, pool netip.Prefix) wifi.Event {
	return wifi.Event{
		Base: wifi.IPEvent,
		ID:   wifi.EventStaGotIP,
		Data: wifi.GotIP{
			IP:      addr,
			Netmask: prefixMask(pool),
			Gateway: pool.Addr().Next(),
		},
	}
}

func prefixMask(p netip.Prefix) netip.Addr {
	if !p.Addr().Is4() {
		return netip.Addr{}
	}
	var b [4]byte
	for i := 0; i < p.Bits(); i++ {
		b[i/8] |= 0x80 >> (i % 8)
	}
	return netip.AddrFrom4(b)
}

var _ wifi.Stack = (*Stack)(nil)
