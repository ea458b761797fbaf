//go:build rp2040 || rp2350

// Command tenderoni-picow brings up the Wi-Fi station of a Pico W or
// Pico 2 W once, blinks the outcome on the LED and resets the board after a
// countdown.
//
// Credentials are set at build time:
//
//	tinygo flash -target=pico-w -ldflags="-X main.ssid=home -X main.password=secret123" ./cmd/tenderoni-picow
package main

import (
	"context"
	"log/slog"
	"machine"
	"strconv"
	"time"

	tlog "github.com/tenderoni/tenderoni-go/pkg/log"
	"github.com/tenderoni/tenderoni-go/pkg/nvs"
	"github.com/tenderoni/tenderoni-go/pkg/radio/picow"
	"github.com/tenderoni/tenderoni-go/pkg/wifi"
)

// Set with -ldflags "-X main.name=value".
var (
	ssid       string
	password   string
	bssid      string
	channel    string
	maxRetries string
	hostname   = "tenderoni"
)

const (
	logLevel         = slog.LevelInfo
	countdownSeconds = 10
)

func main() {
	// Give the serial console a moment to attach.
	time.Sleep(2 * time.Second)

	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: logLevel}))

	println("Tenderoni Station Bring-up")
	println("==========================")

	stack := picow.New(picow.Config{
		Hostname: hostname,
		Logger:   logger,
	})

	cfg := wifi.DefaultConfig()
	cfg.Settings = settings(logger)
	cfg.Logger = logger
	cfg.EventLogger = tlog.NewSlogAdapter(logger)

	// No filesystem on the board: the partition lives in RAM.
	mgr := wifi.NewManager(stack, nvs.NewMemory(), cfg)

	result, err := mgr.Initialize(context.Background())
	if err != nil {
		logger.Error("station bring-up failed", slog.String("err", err.Error()))
		halt(stack)
	}

	logger.Info("station bring-up finished",
		slog.String("outcome", result.Outcome.String()),
		slog.String("address", result.Address.String()),
		slog.Int("reconnects", result.Reconnects),
		slog.Duration("waited", result.Duration),
	)
	stack.LED(result.Outcome == wifi.OutcomeConnected)

	for i := countdownSeconds; i > 0; i-- {
		println("Restarting in", i, "seconds...")
		time.Sleep(time.Second)
	}
	println("Restarting now.")
	reset()
}

// settings builds the station settings from the link-time variables.
func settings(logger *slog.Logger) wifi.Settings {
	s := wifi.DefaultSettings()
	s.SSID = ssid
	s.Password = password
	s.BSSID = bssid
	if channel != "" {
		s.Channel, _ = strconv.Atoi(channel)
	}
	if maxRetries != "" {
		if n, err := strconv.Atoi(maxRetries); err == nil {
			s.MaxRetries = n
		}
	}
	if err := s.Validate(); err != nil {
		logger.Warn("invalid station settings", slog.String("err", err.Error()))
	}
	return s
}

// halt blinks the LED forever. A bring-up error needs a power cycle.
func halt(stack *picow.Stack) {
	for {
		stack.LED(true)
		time.Sleep(100 * time.Millisecond)
		stack.LED(false)
		time.Sleep(900 * time.Millisecond)
	}
}

// reset lets the watchdog expire.
func reset() {
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
	machine.Watchdog.Start()
	for {
	}
}
