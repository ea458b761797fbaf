package wifi

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelOrAuto(t *testing.T) {
	for ch := MinChannel; ch <= MaxChannel; ch++ {
		assert.Equal(t, uint8(ch), ChannelOrAuto(ch), "channel %d", ch)
	}
	for _, ch := range []int{0, -1, 14, 15, 255, 1000} {
		assert.Equal(t, uint8(0), ChannelOrAuto(ch), "channel %d", ch)
	}
}

func TestNewStationConfig(t *testing.T) {
	t.Run("Policy", func(t *testing.T) {
		cfg := NewStationConfig(Settings{SSID: "lab", Password: "password123"})

		assert.Equal(t, "lab", cfg.SSID)
		assert.Equal(t, "password123", cfg.Password)
		assert.Equal(t, ScanFast, cfg.ScanMethod)
		assert.Equal(t, SortBySignal, cfg.SortMethod)
		assert.Equal(t, Threshold{RSSI: 0, AuthMode: AuthWPA2PSK}, cfg.Threshold)
		assert.Equal(t, PMFConfig{Capable: true, Required: false}, cfg.PMF)
		assert.Equal(t, uint16(0), cfg.ListenInterval)
		assert.False(t, cfg.BSSIDSet)
		assert.Equal(t, uint8(0), cfg.Channel)
	})

	t.Run("BSSIDApplied", func(t *testing.T) {
		cfg := NewStationConfig(Settings{SSID: "lab", BSSID: "02:11:22:33:44:55", Channel: 6})

		assert.True(t, cfg.BSSIDSet)
		assert.Equal(t, MAC{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}, cfg.BSSID)
		assert.Equal(t, uint8(6), cfg.Channel)
	})

	t.Run("ZeroBSSIDIgnored", func(t *testing.T) {
		cfg := NewStationConfig(Settings{SSID: "lab", BSSID: "00:00:00:00:00:00"})
		assert.False(t, cfg.BSSIDSet)
		assert.True(t, cfg.BSSID.IsZero())
	})

	t.Run("MalformedBSSIDIgnored", func(t *testing.T) {
		cfg := NewStationConfig(Settings{SSID: "lab", BSSID: "zz:bb:cc:dd:ee:ff", Channel: 14})
		assert.False(t, cfg.BSSIDSet)
		assert.True(t, cfg.BSSID.IsZero())
		assert.Equal(t, uint8(0), cfg.Channel)
	})
}

func TestSettingsValidate(t *testing.T) {
	valid := Settings{SSID: "lab", Password: "password123", MaxRetries: 5}
	require.NoError(t, valid.Validate())

	open := Settings{SSID: "cafe"}
	assert.NoError(t, open.Validate())

	hexKey := Settings{SSID: "lab", Password: strings.Repeat("ab", 32)}
	assert.NoError(t, hexKey.Validate())

	empty := Settings{}
	assert.NoError(t, empty.Validate(), "an empty SSID is only warned about")

	tests := []struct {
		name string
		s    Settings
	}{
		{"LongSSID", Settings{SSID: strings.Repeat("x", MaxSSIDLen+1)}},
		{"ShortPassphrase", Settings{SSID: "lab", Password: "short"}},
		{"LongPassphrase", Settings{SSID: "lab", Password: strings.Repeat("p", 64)}},
		{"NegativeRetries", Settings{SSID: "lab", MaxRetries: -1}},
		{"NegativeTimeout", Settings{SSID: "lab", WaitTimeout: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestDerivePMK(t *testing.T) {
	// IEEE 802.11i-2004 H.4.1 test vector.
	want, err := hex.DecodeString("f42c6fc52df0ebef9ebb4b90b38a5f902e83fe1b135a70e23aed762e9710a12e")
	require.NoError(t, err)
	assert.Equal(t, want, DerivePMK("IEEE", "password"))

	cfg := NewStationConfig(Settings{SSID: "IEEE", Password: "password"})
	assert.Equal(t, want, cfg.PMK())

	raw := strings.Repeat("0f", 32)
	key := DerivePMK("any", raw)
	assert.Len(t, key, 32)
	assert.Equal(t, byte(0x0f), key[0])

	assert.Nil(t, DerivePMK("open", ""))
}
