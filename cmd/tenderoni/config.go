package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tenderoni/tenderoni-go/pkg/radio/sim"
	"github.com/tenderoni/tenderoni-go/pkg/wifi"
)

// Backend selects the radio stack.
type Backend string

const (
	BackendSim   Backend = "sim"
	BackendLinux Backend = "linux"
)

// Config holds the sequencer configuration. Fields are filled from the
// config file first and from command line flags second.
type Config struct {
	ConfigFile  string `yaml:"-"`
	Interactive bool   `yaml:"-"`

	Backend   Backend `yaml:"backend"`
	Interface string  `yaml:"interface"`
	NVSPath   string  `yaml:"nvs"`
	LogLevel  string  `yaml:"log_level"`
	EventLog  string  `yaml:"event_log"`
	Countdown int     `yaml:"countdown"`
	Restart   bool    `yaml:"restart"`

	Station wifi.Settings `yaml:"station"`
	Sim     SimConfig     `yaml:"sim"`
}

// SimConfig configures the simulated radio.
type SimConfig struct {
	// AccessPoints in range. When empty, a single WPA2 access point
	// matching the station settings is simulated.
	AccessPoints []SimAccessPoint `yaml:"access_points"`

	FailAttempts int           `yaml:"fail_attempts"`
	FailReason   string        `yaml:"fail_reason"`
	AssocDelay   time.Duration `yaml:"assoc_delay"`
	Pool         string        `yaml:"pool"`
}

// SimAccessPoint describes one simulated access point.
type SimAccessPoint struct {
	SSID       string `yaml:"ssid"`
	BSSID      string `yaml:"bssid"`
	Channel    int    `yaml:"channel"`
	Passphrase string `yaml:"passphrase"`
}

// LoadError provides details about a config file loading error.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return e.File + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.File + ": " + e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// defaultConfig returns the configuration used when neither file nor flags
// say otherwise.
func defaultConfig() Config {
	return Config{
		Backend:   BackendSim,
		Interface: "wlan0",
		NVSPath:   "tenderoni.nvs",
		LogLevel:  "info",
		Countdown: 10,
		Restart:   true,
		Station:   wifi.DefaultSettings(),
	}
}

// LoadConfigFile reads a YAML config file into cfg. Keys missing from the
// file leave the corresponding fields untouched.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{
			File:    path,
			Message: "failed to read file",
			Cause:   err,
		}
	}

	if err := ParseConfig(data, cfg); err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return le
		}
		return &LoadError{
			File:    path,
			Message: err.Error(),
		}
	}
	return nil
}

// ParseConfig decodes YAML config data into cfg. Unknown keys are rejected.
func ParseConfig(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return &LoadError{
			Message: "invalid YAML",
			Cause:   err,
		}
	}
	return nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Backend {
	case BackendSim, BackendLinux:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendSim, BackendLinux, cfg.Backend)
	}
	if cfg.Backend == BackendLinux && cfg.Interface == "" {
		return errors.New("linux backend needs an interface")
	}
	if cfg.Interactive && cfg.Backend != BackendSim {
		return errors.New("interactive mode needs the sim backend")
	}
	if cfg.Countdown < 0 {
		return fmt.Errorf("countdown must not be negative, got %d", cfg.Countdown)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if _, err := cfg.Sim.script(); err != nil {
		return err
	}
	return cfg.Station.Validate()
}

// script converts the sim settings into a sim.Script.
func (c SimConfig) script() (sim.Script, error) {
	script := sim.Script{
		FailAttempts: c.FailAttempts,
		AssocDelay:   c.AssocDelay,
	}
	if c.FailReason != "" {
		r, ok := wifi.ParseReason(c.FailReason)
		if !ok {
			return sim.Script{}, fmt.Errorf("unknown sim fail reason %q", c.FailReason)
		}
		script.FailReason = r
	}
	if c.Pool != "" {
		p, err := netip.ParsePrefix(c.Pool)
		if err != nil {
			return sim.Script{}, fmt.Errorf("sim pool: %w", err)
		}
		script.Pool = p
	}
	return script, nil
}

// accessPoints returns the simulated access points for station settings s.
func (c SimConfig) accessPoints(s wifi.Settings) []sim.AccessPoint {
	if len(c.AccessPoints) == 0 {
		ap := sim.AccessPoint{
			SSID:       s.SSID,
			Channel:    apChannel(s.Channel),
			Passphrase: s.Password,
			Auth:       wifi.AuthWPA2PSK,
		}
		if mac, ok := wifi.ParseMAC(s.BSSID); ok {
			ap.BSSID = mac
		}
		if s.Password == "" {
			ap.Auth = wifi.AuthOpen
		}
		return []sim.AccessPoint{ap}
	}

	aps := make([]sim.AccessPoint, 0, len(c.AccessPoints))
	for _, a := range c.AccessPoints {
		ap := sim.AccessPoint{
			SSID:       a.SSID,
			Channel:    apChannel(a.Channel),
			Passphrase: a.Passphrase,
			Auth:       wifi.AuthWPA2PSK,
		}
		if mac, ok := wifi.ParseMAC(a.BSSID); ok {
			ap.BSSID = mac
		}
		if a.Passphrase == "" {
			ap.Auth = wifi.AuthOpen
		}
		aps = append(aps, ap)
	}
	return aps
}

// apChannel puts simulated access points without a valid channel on
// channel 6.
func apChannel(ch int) uint8 {
	if c := wifi.ChannelOrAuto(ch); c != 0 {
		return c
	}
	return 6
}
