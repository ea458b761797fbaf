// Command tenderoni brings up a Wi-Fi station once, reports the outcome and
// restarts itself after a countdown.
//
// Usage:
//
//	tenderoni [flags]
//
// Flags:
//
//	-config string      Configuration file path (YAML)
//	-backend string     Radio backend: sim, linux (default "sim")
//	-iface string       Wireless interface for the linux backend (default "wlan0")
//	-ssid string        Network name
//	-password string    WPA2 passphrase
//	-bssid string       Access point to pin (aa:bb:cc:dd:ee:ff)
//	-channel int        Channel to pin (1-13, anything else scans all)
//	-max-retries int    Reconnect attempts before giving up (default 5)
//	-timeout duration   Wait at most this long for an outcome (0 waits forever)
//	-event-log string   File path for connection event logging (CBOR format)
//	-countdown int      Seconds before restarting (default 10)
//	-restart            Restart after the countdown (default true)
//	-interactive        Drive the simulated radio from a shell
//
// Examples:
//
//	# Simulated network that rejects the first two attempts
//	tenderoni -ssid home -password secret123 -sim-fail 2
//
//	# Real interface, association done by wpa_supplicant
//	tenderoni -backend linux -iface wlan0 -ssid home -password secret123
//
//	# Inject events by hand
//	tenderoni -ssid home -password secret123 -interactive
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tenderoni/tenderoni-go/cmd/tenderoni/interactive"
	tlog "github.com/tenderoni/tenderoni-go/pkg/log"
	"github.com/tenderoni/tenderoni-go/pkg/nvs"
	"github.com/tenderoni/tenderoni-go/pkg/radio/sim"
	"github.com/tenderoni/tenderoni-go/pkg/wifi"
)

var config = defaultConfig()

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar((*string)(&config.Backend), "backend", string(config.Backend), "Radio backend: sim, linux")
	flag.StringVar(&config.Interface, "iface", config.Interface, "Wireless interface for the linux backend")
	flag.StringVar(&config.NVSPath, "nvs", config.NVSPath, "Storage partition file")
	flag.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level: debug, info, warn, error")
	flag.StringVar(&config.EventLog, "event-log", "", "File path for connection event logging (CBOR format)")
	flag.IntVar(&config.Countdown, "countdown", config.Countdown, "Seconds before restarting")
	flag.BoolVar(&config.Restart, "restart", config.Restart, "Restart after the countdown")
	flag.BoolVar(&config.Interactive, "interactive", false, "Drive the simulated radio from a shell")

	flag.StringVar(&config.Station.SSID, "ssid", "", "Network name")
	flag.StringVar(&config.Station.Password, "password", "", "WPA2 passphrase")
	flag.StringVar(&config.Station.BSSID, "bssid", "", "Access point to pin (aa:bb:cc:dd:ee:ff)")
	flag.IntVar(&config.Station.Channel, "channel", 0, "Channel to pin (1-13, anything else scans all)")
	flag.IntVar(&config.Station.MaxRetries, "max-retries", config.Station.MaxRetries, "Reconnect attempts before giving up")
	flag.DurationVar(&config.Station.WaitTimeout, "timeout", 0, "Wait at most this long for an outcome (0 waits forever)")
	flag.DurationVar(&config.Station.RetryBackoff.Initial, "backoff", 0, "Initial delay between reconnects (0 reconnects at once)")

	flag.IntVar(&config.Sim.FailAttempts, "sim-fail", 0, "Simulated radio: fail the first N connect attempts")
	flag.StringVar(&config.Sim.FailReason, "sim-fail-reason", "", "Simulated radio: reason for scripted failures")
	flag.DurationVar(&config.Sim.AssocDelay, "sim-delay", 0, "Simulated radio: delay before each connect outcome")
}

func main() {
	flag.Parse()
	if config.ConfigFile != "" {
		if err := LoadConfigFile(config.ConfigFile, &config); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		// Flags given on the command line take precedence over the file.
		flag.Parse()
	}

	if err := validateConfig(&config); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.SetFlags(log.Ltime | log.Lmicroseconds)
	printBanner()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := run(ctx, os.Stderr)
	switch {
	case errors.Is(err, wifi.ErrInitFailed):
		log.Fatalf("Station bring-up failed: %v", err)
	case ctx.Err() != nil:
		log.Println("Interrupted")
		os.Exit(1)
	case err != nil && !errors.Is(err, context.Canceled):
		log.Fatalf("Error: %v", err)
	}

	printResult(result)

	if !countdown(ctx, config.Countdown) {
		log.Println("Interrupted")
		os.Exit(1)
	}
	if !config.Restart {
		log.Println("Goodbye!")
		return
	}

	log.Println("Restarting now.")
	if err := restart(); err != nil {
		log.Fatalf("Restart failed: %v", err)
	}
}

// run performs one connection cycle with the configured backend.
func run(ctx context.Context, logOut io.Writer) (wifi.Result, error) {
	var shell *interactive.Shell
	var simStack *sim.Stack

	if config.Interactive {
		script, _ := config.Sim.script()
		script.Manual = true
		simStack = sim.New(nil, script, config.Sim.accessPoints(config.Station)...)
		// Log output goes through readline so the prompt survives it.
		s, err := interactive.New(simStack)
		if err != nil {
			return wifi.Result{}, err
		}
		shell = s
		logOut = s.Stderr()
	}

	level, _ := parseLevel(config.LogLevel)
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	events, closeEvents, err := setupEventLog(logger)
	if err != nil {
		return wifi.Result{}, err
	}
	defer closeEvents()

	var stack closableStack
	switch {
	case simStack != nil:
		stack = simStack
	case config.Backend == BackendSim:
		script, _ := config.Sim.script()
		stack = sim.New(logger.With("component", "sim"), script, config.Sim.accessPoints(config.Station)...)
	default:
		stack, err = newLinuxStack(config.Interface, logger)
		if err != nil {
			return wifi.Result{}, err
		}
	}
	defer stack.Close()

	mcfg := wifi.DefaultConfig()
	mcfg.Settings = config.Station
	mcfg.Logger = logger
	mcfg.EventLogger = events
	mgr := wifi.NewManager(stack, nvs.NewPartition(config.NVSPath), mcfg)

	if shell == nil {
		return mgr.Initialize(ctx)
	}
	shell.SetManager(mgr)
	return runInteractive(ctx, shell, mgr)
}

// runInteractive runs the cycle while the shell drives the simulated radio.
// Leaving the shell before the cycle ends abandons the wait.
func runInteractive(ctx context.Context, shell *interactive.Shell, mgr *wifi.Manager) (wifi.Result, error) {
	type outcome struct {
		result wifi.Result
		err    error
	}

	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		r, err := mgr.Initialize(cycleCtx)
		fmt.Fprintf(shell.Stdout(), "Cycle finished: %s\n", r.Outcome)
		done <- outcome{r, err}
	}()

	shell.Run(ctx)
	cancel()

	o := <-done
	return o.result, o.err
}

// closableStack is a radio stack that owns goroutines.
type closableStack interface {
	wifi.Stack
	Close() error
}

func setupEventLog(logger *slog.Logger) (tlog.Logger, func(), error) {
	adapter := tlog.NewSlogAdapter(logger)
	if config.EventLog == "" {
		return adapter, func() {}, nil
	}

	fileLogger, err := tlog.NewFileLogger(config.EventLog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create event logger: %w", err)
	}
	log.Printf("Event logging to: %s", config.EventLog)

	closeFn := func() {
		if err := fileLogger.Close(); err != nil {
			log.Printf("Error closing event log: %v", err)
		}
	}
	return tlog.NewMultiLogger(fileLogger, adapter), closeFn, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// countdown logs the seconds left before a restart. It returns false if
// ctx is done first.
func countdown(ctx context.Context, seconds int) bool {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for i := seconds; i > 0; i-- {
		log.Printf("Restarting in %d seconds...", i)
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

func printBanner() {
	log.Println("Tenderoni Station Bring-up")
	log.Println("==========================")
	log.Printf("Backend: %s", config.Backend)
	if config.Backend == BackendLinux {
		log.Printf("Interface: %s", config.Interface)
	}
	log.Printf("SSID: %s", config.Station.SSID)
	log.Printf("Max retries: %d", config.Station.MaxRetries)
	if config.Station.WaitTimeout > 0 {
		log.Printf("Timeout: %s", config.Station.WaitTimeout)
	}
	log.Println()
}

func printResult(r wifi.Result) {
	log.Println(strings.Repeat("-", 40))
	log.Printf("Outcome:    %s", r.Outcome)
	if r.Address.IsValid() {
		log.Printf("Address:    %s", r.Address)
	}
	log.Printf("Reconnects: %d", r.Reconnects)
	log.Printf("Waited:     %s", r.Duration.Round(time.Millisecond))
	log.Printf("Cycle:      %s", r.CycleID)
	log.Println(strings.Repeat("-", 40))
}
