//go:build linux

package linuxsta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4/nclient4"
	"github.com/vishvananda/netlink"

	"github.com/tenderoni/tenderoni-go/pkg/radio"
	"github.com/tenderoni/tenderoni-go/pkg/wifi"
)

// Defaults for Config.
const (
	DefaultAssocTimeout = 15 * time.Second
	DefaultDHCPTimeout  = 10 * time.Second
)

// Stack errors.
var (
	ErrInvalidState = errors.New("linuxsta: invalid state")
	ErrUnsupported  = errors.New("linuxsta: unsupported")
)

// Config configures a Stack.
type Config struct {
	// Interface is the wireless interface name, e.g. wlan0.
	Interface string

	// AssocTimeout bounds the wait for the link to come up after Connect.
	AssocTimeout time.Duration

	// DHCPTimeout bounds each DHCP exchange.
	DHCPTimeout time.Duration

	// Logger is the optional operational logger.
	Logger *slog.Logger
}

// Stack drives a Linux wireless interface whose association is managed by
// the system supplicant. It watches the link with netlink and acquires an
// address with DHCPv4.
type Stack struct {
	mu sync.Mutex

	cfg    Config
	logger *slog.Logger

	loop   *radio.Loop
	link   netlink.Link
	mode   wifi.Mode
	config *wifi.StationConfig

	started  bool
	attempts attempts

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stack for cfg.Interface.
func New(cfg Config) *Stack {
	if cfg.AssocTimeout <= 0 {
		cfg.AssocTimeout = DefaultAssocTimeout
	}
	if cfg.DHCPTimeout <= 0 {
		cfg.DHCPTimeout = DefaultDHCPTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Stack{
		cfg:    cfg,
		logger: logger.With("iface", cfg.Interface),
		ctx:    ctx,
		cancel: cancel,
	}
}

// NetifInit looks up the interface.
func (s *Stack) NetifInit() error {
	link, err := netlink.LinkByName(s.cfg.Interface)
	if err != nil {
		return fmt.Errorf("linuxsta: link %s: %w", s.cfg.Interface, err)
	}
	s.mu.Lock()
	s.link = link
	s.mu.Unlock()
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

// CreateDefaultStation checks that the interface was found.
func (s *Stack) CreateDefaultStation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.link == nil || s.loop == nil {
		return fmt.Errorf("%w: station needs netif and event loop", ErrInvalidState)
	}
	return nil
}

// Init has nothing to do: the kernel driver is already loaded.
func (s *Stack) Init(wifi.InitConfig) error {
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

// SetConfig records the station configuration. Credentials are applied by
// the supplicant, so only the SSID is checked against what it joins.
func (s *Stack) SetConfig(iface wifi.Interface, cfg wifi.StationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if iface != wifi.InterfaceStation || s.mode != wifi.ModeStation {
		return fmt.Errorf("%w: station config needs station mode", ErrInvalidState)
	}
	s.config = &cfg
	s.logger.Info("association is managed by the system supplicant", "ssid", cfg.SSID)
	return nil
}

// Start brings the link up, starts watching it and posts STA_START.
func (s *Stack) Start() error {
	s.mu.Lock()
	if s.config == nil || s.link == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: not configured", ErrInvalidState)
	}
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("%w: already started", ErrInvalidState)
	}
	link := s.link
	s.mu.Unlock()

	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("linuxsta: link up: %w", err)
	}

	updates := make(chan netlink.LinkUpdate, 16)
	if err := netlink.LinkSubscribe(updates, s.ctx.Done()); err != nil {
		return fmt.Errorf("linuxsta: subscribe: %w", err)
	}

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	s.attempts.setLink(link.Attrs().OperState == netlink.OperUp)

	s.wg.Add(1)
	go s.watch(link.Attrs().Index, updates)

	return s.post(wifi.Event{Base: wifi.WifiEvent, ID: wifi.EventStaStart})
}

// Connect starts a connect attempt. If the link is already up an address
// is requested right away; otherwise the attempt waits for the supplicant
// to bring the link up, for at most AssocTimeout.
func (s *Stack) Connect() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("%w: radio not started", ErrInvalidState)
	}
	s.mu.Unlock()
	attempt, up := s.attempts.begin()

	s.logger.Debug("connect", "attempt", attempt, "link_up", up)

	if up {
		s.beginAcquire(attempt)
		return nil
	}

	time.AfterFunc(s.cfg.AssocTimeout, func() {
		if s.attempts.expire(attempt) {
			s.logger.Debug("link did not come up", "attempt", attempt)
			s.postDisconnected(wifi.ReasonNoAPFound)
		}
	})
	return nil
}

// Close stops watching the link and closes the event loop.
func (s *Stack) Close() error {
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	loop := s.loop
	s.mu.Unlock()
	if loop == nil {
		return nil
	}
	return loop.Close()
}

func (s *Stack) watch(index int, updates <-chan netlink.LinkUpdate) {
	defer s.wg.Done()

	for {
		var u netlink.LinkUpdate
		select {
		case <-s.ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			u = upd
		}
		if u.Attrs().Index != index {
			continue
		}
		up := u.Attrs().OperState == netlink.OperUp
		was := s.attempts.setLink(up)

		switch {
		case up && !was:
			s.logger.Debug("link up")
			if attempt := s.attempts.pending(); attempt != 0 {
				s.beginAcquire(attempt)
			}
		case !up && was:
			s.logger.Debug("link down", "oper_state", u.Attrs().OperState.String())
			s.postDisconnected(wifi.ReasonBeaconTimeout)
		}
	}
}

// beginAcquire posts STA_CONNECTED and runs a DHCP exchange for attempt.
// The exchange is cancelled if the link goes down, and its result is only
// posted while attempt is still pending.
func (s *Stack) beginAcquire(attempt uint64) {
	ctx, ok := s.attempts.startAcquire(s.ctx, attempt)
	if !ok {
		return
	}

	_ = s.post(wifi.Event{Base: wifi.WifiEvent, ID: wifi.EventStaConnected})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		info, err := s.acquire(ctx)

		if !s.attempts.finishAcquire(attempt) {
			s.logger.Debug("dropping result of stale attempt", "attempt", attempt, "error", err)
			return
		}
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("dhcp failed", "attempt", attempt, "error", err)
			s.postDisconnected(wifi.ReasonConnectionFail)
			return
		}
		s.logger.Info("address acquired", "ip", info.IP.String(), "gateway", info.Gateway.String())
		_ = s.post(wifi.Event{Base: wifi.IPEvent, ID: wifi.EventStaGotIP, Data: info})
	}()
}

func (s *Stack) acquire(ctx context.Context) (wifi.GotIP, error) {
	client, err := nclient4.New(s.cfg.Interface, nclient4.WithTimeout(s.cfg.DHCPTimeout))
	if err != nil {
		return wifi.GotIP{}, fmt.Errorf("dhcp client: %w", err)
	}
	defer client.Close()

	lease, err := client.Request(ctx)
	if err != nil {
		return wifi.GotIP{}, fmt.Errorf("dhcp request: %w", err)
	}

	info, ipnet, err := leaseInfo(lease.ACK)
	if err != nil {
		return wifi.GotIP{}, err
	}

	s.mu.Lock()
	link := s.link
	s.mu.Unlock()
	if err := netlink.AddrReplace(link, &netlink.Addr{IPNet: ipnet}); err != nil {
		return wifi.GotIP{}, fmt.Errorf("install address: %w", err)
	}
	return info, nil
}

func (s *Stack) postDisconnected(reason wifi.Reason) {
	s.mu.Lock()
	ssid := ""
	if s.config != nil {
		ssid = s.config.SSID
	}
	s.mu.Unlock()

	_ = s.post(wifi.Event{
		Base: wifi.WifiEvent,
		ID:   wifi.EventStaDisconnected,
		Data: wifi.Disconnected{SSID: ssid, Reason: reason},
	})
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
	if err := loop.Post(ev); err != nil {
		s.logger.Debug("event not posted", "event", ev.String(), "error", err)
		return err
	}
	return nil
}

var _ wifi.Stack = (*Stack)(nil)
