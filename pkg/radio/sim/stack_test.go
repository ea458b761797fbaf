package sim

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderoni/tenderoni-go/pkg/nvs"
	"github.com/tenderoni/tenderoni-go/pkg/wifi"
)

var labAP = AccessPoint{
	SSID:       "lab",
	BSSID:      wifi.MAC{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
	Channel:    6,
	Passphrase: "password123",
	Auth:       wifi.AuthWPA2PSK,
}

func labSettings(maxRetries int) wifi.Settings {
	return wifi.Settings{
		SSID:        "lab",
		Password:    "password123",
		MaxRetries:  maxRetries,
		WaitTimeout: 5 * time.Second,
	}
}

func initialize(t *testing.T, stack *Stack, settings wifi.Settings) wifi.Result {
	t.Helper()
	t.Cleanup(func() { _ = stack.Close() })

	m := wifi.NewManager(stack, nvs.NewMemory(), wifi.Config{Settings: settings})
	res, err := m.Initialize(context.Background())
	require.NoError(t, err)
	return res
}

// Two rejections, then an address.
func TestStationConnectsAfterRetries(t *testing.T) {
	stack := New(nil, Script{FailAttempts: 2}, labAP)

	res := initialize(t, stack, labSettings(5))

	assert.Equal(t, wifi.OutcomeConnected, res.Outcome)
	assert.Equal(t, netip.MustParseAddr("192.168.4.2"), res.Address)
	assert.Equal(t, 2, res.Reconnects)
	assert.Zero(t, res.RetryCount)
	assert.Equal(t, 3, stack.Attempts())
}

// Every attempt rejected.
func TestStationFailsAfterMaxRetries(t *testing.T) {
	stack := New(nil, Script{FailAttempts: 100}, labAP)

	res := initialize(t, stack, labSettings(2))

	assert.Equal(t, wifi.OutcomeFailed, res.Outcome)
	assert.False(t, res.Address.IsValid())
	assert.Equal(t, 3, stack.Attempts())

	calls := stack.Calls()
	assert.Equal(t, 2, calls.RegisterHandler)
	assert.Equal(t, 2, calls.UnregisterHandler)
	assert.Equal(t, 1, calls.Start)
}

func TestStationAttemptsBounded(t *testing.T) {
	for maxRetries := 0; maxRetries <= 3; maxRetries++ {
		stack := New(nil, Script{FailAttempts: 100}, labAP)
		res := initialize(t, stack, labSettings(maxRetries))

		assert.Equal(t, wifi.OutcomeFailed, res.Outcome)
		assert.Equal(t, maxRetries+1, stack.Attempts(), "max retries %d", maxRetries)
	}
}

func TestStationSecondInitializeNoop(t *testing.T) {
	stack := New(nil, Script{}, labAP)
	t.Cleanup(func() { _ = stack.Close() })

	storage := nvs.NewMemory()
	m := wifi.NewManager(stack, storage, wifi.Config{Settings: labSettings(5)})

	first, err := m.Initialize(context.Background())
	require.NoError(t, err)
	before := stack.Calls()

	second, err := m.Initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, stack.Calls())
	assert.Equal(t, 1, before.Start)
	assert.Zero(t, storage.Erases())
}

func TestStationStorageErased(t *testing.T) {
	stack := New(nil, Script{}, labAP)
	t.Cleanup(func() { _ = stack.Close() })

	storage := nvs.NewMemory()
	storage.SetVersion(nvs.FormatVersion + 1)

	m := wifi.NewManager(stack, storage, wifi.Config{Settings: labSettings(5)})
	res, err := m.Initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, wifi.OutcomeConnected, res.Outcome)
	assert.Equal(t, 1, storage.Erases())
	assert.True(t, storage.Initialized())
}

func TestStationSelection(t *testing.T) {
	tests := []struct {
		name     string
		settings wifi.Settings
		aps      []AccessPoint
		want     wifi.Outcome
	}{
		{
			name:     "WrongPassphrase",
			settings: wifi.Settings{SSID: "lab", Password: "wrongpass"},
			aps:      []AccessPoint{labAP},
			want:     wifi.OutcomeFailed,
		},
		{
			name:     "UnknownSSID",
			settings: wifi.Settings{SSID: "elsewhere", Password: "password123"},
			aps:      []AccessPoint{labAP},
			want:     wifi.OutcomeFailed,
		},
		{
			name:     "BSSIDMismatch",
			settings: wifi.Settings{SSID: "lab", Password: "password123", BSSID: "02:00:00:00:00:99"},
			aps:      []AccessPoint{labAP},
			want:     wifi.OutcomeFailed,
		},
		{
			name:     "BSSIDMatch",
			settings: wifi.Settings{SSID: "lab", Password: "password123", BSSID: "02:00:00:00:00:01"},
			aps:      []AccessPoint{labAP},
			want:     wifi.OutcomeConnected,
		},
		{
			name:     "ZeroBSSIDMeansAny",
			settings: wifi.Settings{SSID: "lab", Password: "password123", BSSID: "00:00:00:00:00:00"},
			aps:      []AccessPoint{labAP},
			want:     wifi.OutcomeConnected,
		},
		{
			name:     "ChannelMismatch",
			settings: wifi.Settings{SSID: "lab", Password: "password123", Channel: 11},
			aps:      []AccessPoint{labAP},
			want:     wifi.OutcomeFailed,
		},
		{
			name:     "OutOfRangeChannelMeansAuto",
			settings: wifi.Settings{SSID: "lab", Password: "password123", Channel: 14},
			aps:      []AccessPoint{labAP},
			want:     wifi.OutcomeConnected,
		},
		{
			name:     "BelowThreshold",
			settings: wifi.Settings{SSID: "cafe"},
			aps:      []AccessPoint{{SSID: "cafe", Auth: wifi.AuthOpen}},
			want:     wifi.OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := New(nil, Script{}, tt.aps...)
			res := initialize(t, stack, tt.settings)
			assert.Equal(t, tt.want, res.Outcome)
		})
	}
}

func TestStationAssocDelay(t *testing.T) {
	stack := New(nil, Script{FailAttempts: 1, AssocDelay: 10 * time.Millisecond}, labAP)

	start := time.Now()
	res := initialize(t, stack, labSettings(5))

	assert.Equal(t, wifi.OutcomeConnected, res.Outcome)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestStationRetryBackoff(t *testing.T) {
	stack := New(nil, Script{FailAttempts: 2}, labAP)

	settings := labSettings(5)
	settings.RetryBackoff = wifi.BackoffConfig{Initial: 10 * time.Millisecond}

	start := time.Now()
	res := initialize(t, stack, settings)

	assert.Equal(t, wifi.OutcomeConnected, res.Outcome)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond, "10ms then 20ms")
}

func TestStationManual(t *testing.T) {
	stack := New(nil, Script{Manual: true}, labAP)
	t.Cleanup(func() { _ = stack.Close() })

	m := wifi.NewManager(stack, nvs.NewMemory(), wifi.Config{Settings: labSettings(3)})

	var (
		res wifi.Result
		err error
		wg  sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err = m.Initialize(context.Background())
	}()

	require.Eventually(t, func() bool { return stack.Attempts() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, stack.Disconnect(wifi.ReasonBeaconTimeout))
	require.Eventually(t, func() bool { return stack.Attempts() == 2 }, time.Second, time.Millisecond)

	addr := netip.MustParseAddr("10.1.2.3")
	require.NoError(t, stack.GotIP(addr))
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, wifi.OutcomeConnected, res.Outcome)
	assert.Equal(t, addr, res.Address)
	assert.Equal(t, addr, stack.Address())
}

func TestStackOrdering(t *testing.T) {
	s := New(nil, Script{})
	t.Cleanup(func() { _ = s.Close() })

	assert.ErrorIs(t, s.CreateDefaultStation(), ErrInvalidState)
	assert.ErrorIs(t, s.Start(), ErrInvalidState)
	assert.ErrorIs(t, s.Connect(), ErrInvalidState)
	_, err := s.RegisterHandler(wifi.WifiEvent, wifi.EventAnyID, func(wifi.Event) {})
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, s.NetifInit())
	require.NoError(t, s.CreateDefaultEventLoop())
	assert.ErrorIs(t, s.CreateDefaultEventLoop(), ErrInvalidState)
	require.NoError(t, s.CreateDefaultStation())
	require.NoError(t, s.Init(wifi.DefaultInitConfig()))
	assert.ErrorIs(t, s.SetConfig(wifi.InterfaceStation, wifi.StationConfig{}), ErrInvalidState)
	require.NoError(t, s.SetMode(wifi.ModeStation))
	require.NoError(t, s.SetConfig(wifi.InterfaceStation, wifi.StationConfig{SSID: "x"}))
	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrInvalidState)
}

func TestStackPoolExhausted(t *testing.T) {
	s := New(nil, Script{Pool: netip.MustParsePrefix("10.0.0.0/30")}, labAP)

	// A /30 has one usable station address after the gateway.
	addr, err := s.lease()
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), addr)

	s.address = netip.Addr{}
	_, err = s.lease()
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestPrefixMask(t *testing.T) {
	assert.Equal(t, netip.MustParseAddr("255.255.255.0"), prefixMask(netip.MustParsePrefix("192.168.4.0/24")))
	assert.Equal(t, netip.MustParseAddr("255.255.240.0"), prefixMask(netip.MustParsePrefix("10.0.0.0/20")))
	assert.False(t, prefixMask(netip.MustParsePrefix("fd00::/64")).IsValid())
}
