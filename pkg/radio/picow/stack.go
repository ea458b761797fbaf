//go:build rp2040 || rp2350

package picow

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/seqs/eth/dhcp"
	"github.com/soypat/seqs/stacks"

	"github.com/tenderoni/tenderoni-go/pkg/radio"
	"github.com/tenderoni/tenderoni-go/pkg/wifi"
)

const mtu = cyw43439.MTU

// Defaults for Config.
const (
	DefaultDHCPTimeout = 8 * time.Second
	dhcpPollInterval   = 500 * time.Millisecond
)

// Stack errors.
var (
	ErrInvalidState = errors.New("picow: invalid state")
	ErrUnsupported  = errors.New("picow: unsupported")
)

// Config configures a Stack.
type Config struct {
	// Hostname is sent in DHCP requests.
	Hostname string

	// DHCPTimeout bounds the wait for a DHCP lease after joining.
	DHCPTimeout time.Duration

	// Logger is the optional operational logger.
	Logger *slog.Logger
}

// Stack drives the CYW43439 radio of a Pico W or Pico 2 W.
type Stack struct {
	mu sync.Mutex

	cfg    Config
	logger *slog.Logger

	dev    *cyw43439.Device
	loop   *radio.Loop
	mode   wifi.Mode
	config *wifi.StationConfig

	inited  bool
	started bool
	joining bool

	// Created on the first successful join.
	ports *stacks.PortStack
	dhcpc *stacks.DHCPClient
}

// New creates a stack for the on-board radio.
func New(cfg Config) *Stack {
	if cfg.DHCPTimeout <= 0 {
		cfg.DHCPTimeout = DefaultDHCPTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return &Stack{cfg: cfg, logger: logger}
}

// LED switches the on-board LED, which is wired to the radio.
func (s *Stack) LED(on bool) {
	s.mu.Lock()
	dev := s.dev
	s.mu.Unlock()
	if dev != nil {
		dev.GPIOSet(0, on)
	}
}

// NetifInit creates the device handle.
func (s *Stack) NetifInit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		s.dev = cyw43439.NewPicoWDevice()
	}
	return nil
}

// CreateDefaultEventLoop creates the event loop.
func (s *Stack) CreateDefaultEventLoop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop != nil {
		return fmt.Errorf("%w: event loop already created", ErrInvalidState)
	}
	s.loop = radio.NewLoop(s.logger)
	return nil
}

// CreateDefaultStation checks the device and loop exist.
func (s *Stack) CreateDefaultStation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil || s.loop == nil {
		return fmt.Errorf("%w: station needs netif and event loop", ErrInvalidState)
	}
	return nil
}

// Init loads the radio firmware.
func (s *Stack) Init(wifi.InitConfig) error {
	s.mu.Lock()
	dev := s.dev
	s.mu.Unlock()
	if dev == nil {
		return fmt.Errorf("%w: no device", ErrInvalidState)
	}

	wcfg := cyw43439.DefaultWifiConfig()
	wcfg.Logger = s.logger
	start := time.Now()
	if err := dev.Init(wcfg); err != nil {
		return fmt.Errorf("picow: cyw43439 init: %w", err)
	}
	s.logger.Info("cyw43439:Init", slog.Duration("duration", time.Since(start)))

	s.mu.Lock()
	s.inited = true
	s.mu.Unlock()
	return nil
}

// RegisterHandler subscribes fn on the event loop.
func (s *Stack) RegisterHandler(base wifi.EventBase, id wifi.EventID, fn wifi.HandlerFunc) (wifi.HandlerInstance, error) {
	loop, err := s.eventLoop()
	if err != nil {
		return 0, err
	}
	return loop.Register(base, id, fn)
}

// UnregisterHandler removes a registration from the event loop.
func (s *Stack) UnregisterHandler(base wifi.EventBase, id wifi.EventID, inst wifi.HandlerInstance) error {
	loop, err := s.eventLoop()
	if err != nil {
		return err
	}
	return loop.Unregister(base, id, inst)
}

// SetMode accepts station mode only.
func (s *Stack) SetMode(mode wifi.Mode) error {
	if mode != wifi.ModeStation {
		return fmt.Errorf("%w: mode %s", ErrUnsupported, mode)
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return nil
}

// SetConfig records the station configuration. The radio driver picks the
// access point itself, so BSSID and channel are not applied.
func (s *Stack) SetConfig(iface wifi.Interface, cfg wifi.StationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if iface != wifi.InterfaceStation || s.mode != wifi.ModeStation || !s.inited {
		return fmt.Errorf("%w: station config needs an initialized radio in station mode", ErrInvalidState)
	}
	if cfg.BSSIDSet || cfg.Channel != 0 {
		s.logger.Warn("bssid and channel pinning not supported by driver, ignored")
	}
	s.config = &cfg
	return nil
}

// Start posts STA_START. The radio is already running after Init.
func (s *Stack) Start() error {
	s.mu.Lock()
	if s.config == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: no station config", ErrInvalidState)
	}
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("%w: already started", ErrInvalidState)
	}
	s.started = true
	s.mu.Unlock()

	return s.post(wifi.Event{Base: wifi.WifiEvent, ID: wifi.EventStaStart})
}

// Connect joins the network on a separate goroutine. A join or DHCP
// failure is reported as STA_DISCONNECTED.
func (s *Stack) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return fmt.Errorf("%w: radio not started", ErrInvalidState)
	}
	if s.joining {
		return fmt.Errorf("%w: join in progress", ErrInvalidState)
	}
	s.joining = true
	cfg := *s.config

	go s.join(cfg)
	return nil
}

func (s *Stack) join(cfg wifi.StationConfig) {
	ev := s.attempt(cfg)

	// The outcome may trigger the next Connect right away.
	s.mu.Lock()
	s.joining = false
	s.mu.Unlock()

	_ = s.post(ev)
}

// attempt joins the network and requests a lease. It returns the event
// reporting the outcome.
func (s *Stack) attempt(cfg wifi.StationConfig) wifi.Event {
	if cfg.Password == "" {
		s.logger.Info("joining open network", slog.String("ssid", cfg.SSID))
	} else {
		s.logger.Info("joining WPA secure network", slog.String("ssid", cfg.SSID), slog.Int("passlen", len(cfg.Password)))
	}

	if err := s.dev.JoinWPA2(cfg.SSID, cfg.Password); err != nil {
		s.logger.Error("wifi join failed", slog.String("err", err.Error()))
		return disconnected(cfg.SSID, wifi.ReasonAuthFail)
	}
	_ = s.post(wifi.Event{Base: wifi.WifiEvent, ID: wifi.EventStaConnected})

	info, err := s.requestLease()
	if err != nil {
		s.logger.Error("dhcp failed", slog.String("err", err.Error()))
		return disconnected(cfg.SSID, wifi.ReasonConnectionFail)
	}
	return wifi.Event{Base: wifi.IPEvent, ID: wifi.EventStaGotIP, Data: info}
}

// requestLease sets up the port stack on first use and runs DHCP.
func (s *Stack) requestLease() (wifi.GotIP, error) {
	if s.ports == nil {
		mac, err := s.dev.HardwareAddr6()
		if err != nil {
			return wifi.GotIP{}, err
		}
		s.ports = stacks.NewPortStack(stacks.PortStackConfig{
			MAC:             mac,
			MaxOpenPortsUDP: 1,
			MaxOpenPortsTCP: 1,
			MTU:             mtu,
			Logger:          s.logger,
		})
		s.dev.RecvEthHandle(s.ports.RecvEth)
		go nicLoop(s.dev, s.ports)
		s.dhcpc = stacks.NewDHCPClient(s.ports, dhcp.DefaultClientPort)
	}

	err := s.dhcpc.BeginRequest(stacks.DHCPRequestConfig{
		Xid:      uint32(time.Now().Nanosecond()),
		Hostname: s.cfg.Hostname,
	})
	if err != nil {
		return wifi.GotIP{}, err
	}

	deadline := time.Now().Add(s.cfg.DHCPTimeout)
	for s.dhcpc.State() != dhcp.StateBound {
		if time.Now().After(deadline) {
			return wifi.GotIP{}, errors.New("dhcp did not complete")
		}
		time.Sleep(dhcpPollInterval)
	}

	ip := s.dhcpc.Offer()
	s.ports.SetAddr(ip)

	info := wifi.GotIP{IP: ip, Gateway: s.dhcpc.Router()}
	if p, err := ip.Prefix(int(s.dhcpc.CIDRBits())); err == nil {
		info.Netmask = prefixMask(p)
	}
	s.logger.Info("DHCP complete",
		slog.Uint64("cidrbits", uint64(s.dhcpc.CIDRBits())),
		slog.String("ourIP", ip.String()),
		slog.String("router", s.dhcpc.Router().String()),
		slog.Duration("lease", s.dhcpc.IPLeaseTime()),
	)
	return info, nil
}

func disconnected(ssid string, reason wifi.Reason) wifi.Event {
	return wifi.Event{
		Base: wifi.WifiEvent,
		ID:   wifi.EventStaDisconnected,
		Data: wifi.Disconnected{SSID: ssid, Reason: reason},
	}
}

func (s *Stack) eventLoop() (*radio.Loop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop == nil {
		return nil, fmt.Errorf("%w: no event loop", ErrInvalidState)
	}
	return s.loop, nil
}

func (s *Stack) post(ev wifi.Event) error {
	loop, err := s.eventLoop()
	if err != nil {
		return err
	}
	return loop.Post(ev)
}

func prefixMask(p netip.Prefix) netip.Addr {
	var b [4]byte
	for i := 0; i < p.Bits() && i < 32; i++ {
		b[i/8] |= 0x80 >> (i % 8)
	}
	return netip.AddrFrom4(b)
}

// nicLoop moves frames between the radio and the port stack.
func nicLoop(dev *cyw43439.Device, ports *stacks.PortStack) {
	const (
		queueSize  = 3
		maxRetries = 3
	)
	var queue [queueSize][mtu]byte
	var lenBuf [queueSize]int
	var retries [queueSize]int

	for {
		stallRx := true
		gotPacket, err := dev.PollOne()
		if err != nil {
			println("poll error:", err.Error())
		}
		if gotPacket {
			stallRx = false
		}

		for i := range queue {
			if retries[i] != 0 {
				continue
			}
			lenBuf[i], err = ports.HandleEth(queue[i][:])
			if err != nil {
				lenBuf[i] = 0
				continue
			}
			if lenBuf[i] == 0 {
				break
			}
		}
		if lenBuf == [queueSize]int{} {
			if stallRx {
				time.Sleep(51 * time.Millisecond)
			}
			continue
		}

		for i := range queue {
			n := lenBuf[i]
			if n <= 0 {
				continue
			}
			if err := dev.SendEth(queue[i][:n]); err != nil {
				retries[i]++
				if retries[i] <= maxRetries {
					continue
				}
				println("dropped outgoing packet:", err.Error())
			}
			lenBuf[i] = 0
			retries[i] = 0
		}
	}
}

var _ wifi.Stack = (*Stack)(nil)
