package wifi

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// Station limits from IEEE 802.11.
const (
	// MaxSSIDLen is the maximum SSID length in bytes.
	MaxSSIDLen = 32

	// MinPassphraseLen is the minimum WPA2 passphrase length.
	MinPassphraseLen = 8

	// MaxPassphraseLen is the maximum WPA2 passphrase length.
	MaxPassphraseLen = 63

	// MinChannel and MaxChannel bound the 2.4 GHz channels a fixed channel
	// may be set to. Anything outside this range means "scan all".
	MinChannel = 1
	MaxChannel = 13

	// pmkIterations and pmkLen are the WPA2 PBKDF2 parameters.
	pmkIterations = 4096
	pmkLen        = 32
)

// Settings is the static station configuration. It is resolved once, before
// the manager runs, from flags, a config file or build-time constants.
type Settings struct {
	// SSID is the network name to join.
	SSID string `yaml:"ssid"`

	// Password is the WPA2 passphrase. Empty for open networks.
	Password string `yaml:"password"`

	// BSSID optionally pins the access point ("aa:bb:cc:dd:ee:ff").
	// A malformed or all-zero value means "any access point".
	BSSID string `yaml:"bssid"`

	// Channel optionally pins the channel (1-13). Any other value means auto.
	Channel int `yaml:"channel"`

	// MaxRetries bounds the number of reconnect attempts after the initial
	// connect before the manager gives up.
	MaxRetries int `yaml:"max_retries"`

	// WaitTimeout bounds the wait for a terminal outcome. Zero waits forever.
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	// RetryBackoff delays reconnect attempts. The zero value reconnects
	// immediately.
	RetryBackoff BackoffConfig `yaml:"retry_backoff"`
}

// DefaultMaxRetries is the retry bound used when none is configured.
const DefaultMaxRetries = 5

// DefaultSettings returns Settings with the default retry bound and no timeout.
func DefaultSettings() Settings {
	return Settings{
		MaxRetries: DefaultMaxRetries,
	}
}

// Validate checks that the settings can be handed to a radio.
func (s *Settings) Validate() error {
	if len(s.SSID) > MaxSSIDLen {
		return fmt.Errorf("%w: ssid is %d bytes, max %d", ErrInvalidConfig, len(s.SSID), MaxSSIDLen)
	}
	if !validPassphrase(s.Password) {
		return fmt.Errorf("%w: passphrase must be empty, %d-%d characters or 64 hex digits",
			ErrInvalidConfig, MinPassphraseLen, MaxPassphraseLen)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative, got %d", ErrInvalidConfig, s.MaxRetries)
	}
	if s.WaitTimeout < 0 {
		return fmt.Errorf("%w: wait timeout must not be negative, got %v", ErrInvalidConfig, s.WaitTimeout)
	}
	return nil
}

func validPassphrase(p string) bool {
	switch {
	case p == "":
		return true
	case len(p) == 2*pmkLen:
		_, err := hex.DecodeString(p)
		return err == nil
	default:
		return len(p) >= MinPassphraseLen && len(p) <= MaxPassphraseLen
	}
}

// ScanMethod selects how the radio scans for the access point.
type ScanMethod uint8

const (
	// ScanFast stops at the first matching access point.
	ScanFast ScanMethod = iota

	// ScanAllChannels scans every channel before choosing.
	ScanAllChannels
)

// String returns the scan method name.
func (m ScanMethod) String() string {
	switch m {
	case ScanFast:
		return "FAST"
	case ScanAllChannels:
		return "ALL_CHANNELS"
	default:
		return "UNKNOWN"
	}
}

// SortMethod orders candidate access points.
type SortMethod uint8

const (
	// SortBySignal prefers the strongest signal.
	SortBySignal SortMethod = iota

	// SortBySecurity prefers the strongest security mode.
	SortBySecurity
)

// String returns the sort method name.
func (m SortMethod) String() string {
	switch m {
	case SortBySignal:
		return "SIGNAL"
	case SortBySecurity:
		return "SECURITY"
	default:
		return "UNKNOWN"
	}
}

// AuthMode is an access point authentication mode, ordered weakest first.
type AuthMode uint8

const (
	AuthOpen AuthMode = iota
	AuthWEP
	AuthWPAPSK
	AuthWPA2PSK
	AuthWPAWPA2PSK
	AuthWPA3PSK
)

// String returns the auth mode name.
func (a AuthMode) String() string {
	switch a {
	case AuthOpen:
		return "OPEN"
	case AuthWEP:
		return "WEP"
	case AuthWPAPSK:
		return "WPA_PSK"
	case AuthWPA2PSK:
		return "WPA2_PSK"
	case AuthWPAWPA2PSK:
		return "WPA_WPA2_PSK"
	case AuthWPA3PSK:
		return "WPA3_PSK"
	default:
		return "UNKNOWN"
	}
}

// Threshold is the weakest access point the station accepts.
type Threshold struct {
	RSSI     int8
	AuthMode AuthMode
}

// PMFConfig is the protected management frames policy.
type PMFConfig struct {
	Capable  bool
	Required bool
}

// StationConfig is the configuration applied to the station interface.
// It is built once by NewStationConfig and not modified afterwards.
type StationConfig struct {
	SSID           string
	Password       string
	ScanMethod     ScanMethod
	BSSIDSet       bool
	BSSID          MAC
	Channel        uint8
	ListenInterval uint16
	SortMethod     SortMethod
	Threshold      Threshold
	PMF            PMFConfig
}

// NewStationConfig resolves Settings into a StationConfig.
//
// The BSSID is applied only when it parses and is not all-zero; the channel
// only when it lies in 1-13. Scan, sort, security threshold and PMF follow a
// fixed policy: fast scan, strongest signal first, WPA2-PSK minimum, PMF
// capable but not required.
func NewStationConfig(s Settings) StationConfig {
	cfg := StationConfig{
		SSID:           s.SSID,
		Password:       s.Password,
		ScanMethod:     ScanFast,
		Channel:        ChannelOrAuto(s.Channel),
		ListenInterval: 0,
		SortMethod:     SortBySignal,
		Threshold: Threshold{
			RSSI:     0,
			AuthMode: AuthWPA2PSK,
		},
		PMF: PMFConfig{
			Capable:  true,
			Required: false,
		},
	}

	if mac, ok := ParseMAC(s.BSSID); ok && !mac.IsZero() {
		cfg.BSSID = mac
		cfg.BSSIDSet = true
	}

	return cfg
}

// ChannelOrAuto returns ch if it is a valid fixed channel, else 0 (auto).
func ChannelOrAuto(ch int) uint8 {
	if ch < MinChannel || ch > MaxChannel {
		return 0
	}
	return uint8(ch)
}

// PMK returns the WPA2 pairwise master key for the configured network.
// A 64-digit hex passphrase is the key itself. Open networks have no key.
func (c StationConfig) PMK() []byte {
	return DerivePMK(c.SSID, c.Password)
}

// DerivePMK derives a WPA2 pairwise master key from an SSID and passphrase.
func DerivePMK(ssid, passphrase string) []byte {
	if passphrase == "" {
		return nil
	}
	if len(passphrase) == 2*pmkLen {
		if key, err := hex.DecodeString(passphrase); err == nil {
			return key
		}
	}
	return pbkdf2.Key([]byte(passphrase), []byte(ssid), pmkIterations, pmkLen, sha1.New)
}
