package wifi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tenderoni/tenderoni-go/pkg/log"
	"github.com/tenderoni/tenderoni-go/pkg/nvs"
)

// Manager brings up the station interface and blocks until it has either
// acquired an address or given up.
type Manager struct {
	// mu serializes Initialize calls.
	mu sync.Mutex

	stack   Stack
	storage Storage
	config  Config

	logger *slog.Logger
	events log.Logger

	initialized atomic.Bool
	result      Result
}

// NewManager creates a manager driving stack with storage as the stack's
// persistent storage.
func NewManager(stack Stack, storage Storage, config Config) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = discardLogger()
	}
	events := config.EventLogger
	if events == nil {
		events = log.NoopLogger{}
	}
	if config.Settings.MaxRetries < 0 {
		config.Settings.MaxRetries = 0
	}

	return &Manager{
		stack:   stack,
		storage: storage,
		config:  config,
		logger:  logger,
		events:  events,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(127),
	}))
}

// Initialized reports whether Initialize has completed.
func (m *Manager) Initialized() bool {
	return m.initialized.Load()
}

// Initialize brings up the station and waits for a terminal outcome.
//
// Only the first call does anything. Later calls return the first call's
// Result and nil without touching the storage or the stack, so a failed
// connection stays failed for the life of the process.
//
// A non-nil error other than ctx.Err() wraps ErrInitFailed: the storage or
// the stack could not be brought up and the caller should halt. If ctx is
// done before an outcome arrives, the radio is left running, the handlers
// are removed and ctx.Err() is returned with an OutcomeUnknown result.
// Once an outcome is reached the manager counts as initialized, even when
// removing the handlers fails and an ErrInitFailed error is returned.
func (m *Manager) Initialize(ctx context.Context) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized.Load() {
		return m.result, nil
	}

	settings := m.config.Settings
	id := uuid.NewString()
	logger := m.logger.With("cycle_id", id)

	if settings.SSID == "" {
		logger.Warn("no SSID configured")
	}

	c := &cycle{
		id:         id,
		ssid:       settings.SSID,
		stack:      m.stack,
		group:      newEventGroup(),
		maxRetries: settings.MaxRetries,
		backoff:    NewBackoff(settings.RetryBackoff),
		logger:     logger,
		events:     m.events,
	}

	if err := m.initStorage(c); err != nil {
		return Result{CycleID: id}, err
	}

	logger.Info("station mode")

	if err := m.stack.NetifInit(); err != nil {
		return Result{CycleID: id}, m.fatal(c, "netif init", err)
	}
	if err := m.stack.CreateDefaultEventLoop(); err != nil {
		return Result{CycleID: id}, m.fatal(c, "event loop create", err)
	}
	if err := m.stack.CreateDefaultStation(); err != nil {
		return Result{CycleID: id}, m.fatal(c, "station netif create", err)
	}
	if err := m.stack.Init(DefaultInitConfig()); err != nil {
		return Result{CycleID: id}, m.fatal(c, "wifi init", err)
	}

	// Handlers go in before Start so STA_START cannot be missed.
	anyID, err := m.stack.RegisterHandler(WifiEvent, EventAnyID, c.handle)
	if err != nil {
		return Result{CycleID: id}, m.fatal(c, "register wifi handler", err)
	}
	gotIP, err := m.stack.RegisterHandler(IPEvent, EventStaGotIP, c.handle)
	if err != nil {
		_ = m.stack.UnregisterHandler(WifiEvent, EventAnyID, anyID)
		return Result{CycleID: id}, m.fatal(c, "register ip handler", err)
	}

	unregister := func() error {
		errIP := m.stack.UnregisterHandler(IPEvent, EventStaGotIP, gotIP)
		errWifi := m.stack.UnregisterHandler(WifiEvent, EventAnyID, anyID)
		c.close()
		return errors.Join(errIP, errWifi)
	}

	staCfg := NewStationConfig(settings)
	logger.Debug("station config",
		"ssid", staCfg.SSID,
		"bssid_set", staCfg.BSSIDSet,
		"bssid", staCfg.BSSID.String(),
		"channel", staCfg.Channel,
		"scan", staCfg.ScanMethod.String(),
		"sort", staCfg.SortMethod.String(),
		"auth_threshold", staCfg.Threshold.AuthMode.String(),
	)

	if err := m.startRadio(staCfg); err != nil {
		_ = unregister()
		return Result{CycleID: id}, m.fatal(c, "wifi start", err)
	}

	logger.Info("wifi_init_sta finished")

	start := time.Now()
	bits, waitErr := c.group.Wait(ctx, settings.WaitTimeout)
	waited := time.Since(start)

	retries, reconnects, addr := c.snapshot()
	res := Result{
		CycleID:    id,
		Bits:       bits,
		Reconnects: reconnects,
		RetryCount: retries,
		Duration:   waited,
	}

	switch {
	case bits.Has(BitConnected):
		res.Outcome = OutcomeConnected
		res.Address = addr
		logger.Info("connected to AP", "ssid", settings.SSID, "passlen", len(settings.Password), "ip", addr.String())
	case bits.Has(BitFailed):
		res.Outcome = OutcomeFailed
		logger.Info("failed to connect to AP", "ssid", settings.SSID, "passlen", len(settings.Password))
	case errors.Is(waitErr, errWaitTimeout):
		res.Outcome = OutcomeTimeout
		logger.Warn("no connection outcome before timeout", "timeout", settings.WaitTimeout)
	default:
		res.Outcome = OutcomeUnknown
		logger.Error("unexpected event", "bits", uint32(bits), "error", waitErr)
	}
	m.emitOutcome(c, res)

	// Recorded before teardown, so a failed teardown does not make the
	// next call bring the stack up again.
	m.result = res
	m.initialized.Store(true)

	if err := unregister(); err != nil {
		return res, m.fatal(c, "unregister handlers", err)
	}

	if waitErr != nil && !errors.Is(waitErr, errWaitTimeout) && res.Outcome == OutcomeUnknown {
		return res, waitErr
	}
	return res, nil
}

// initStorage initializes the stack's storage, erasing it once when it
// reports a recoverable condition.
func (m *Manager) initStorage(c *cycle) error {
	err := m.storage.Init()
	if nvs.NeedsErase(err) {
		c.logger.Warn("storage needs erase", "error", err)
		c.emitError("storage init", err, true)
		if err := m.storage.Erase(); err != nil {
			return m.fatal(c, "storage erase", err)
		}
		err = m.storage.Init()
	}
	if err != nil {
		return m.fatal(c, "storage init", err)
	}
	return nil
}

func (m *Manager) startRadio(cfg StationConfig) error {
	if err := m.stack.SetMode(ModeStation); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	if err := m.stack.SetConfig(InterfaceStation, cfg); err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	if err := m.stack.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return nil
}

// fatal records an unrecoverable bring-up error and wraps it in ErrInitFailed.
func (m *Manager) fatal(c *cycle, step string, err error) error {
	c.logger.Error("station bring-up failed", "step", step, "error", err)
	c.emitError(step, err, false)
	return fmt.Errorf("%w: %s: %w", ErrInitFailed, step, err)
}

func (m *Manager) emitOutcome(c *cycle, res Result) {
	addr := ""
	if res.Address.IsValid() {
		addr = res.Address.String()
	}
	m.events.Log(log.Event{
		Timestamp: time.Now(),
		CycleID:   c.id,
		Category:  log.CategoryOutcome,
		SSID:      c.ssid,
		Outcome: &log.OutcomeEvent{
			Outcome:  res.Outcome.String(),
			Retries:  res.Reconnects,
			Address:  addr,
			Duration: res.Duration,
		},
	})
}
