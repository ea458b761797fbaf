package wifi

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMAC(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		tests := []struct {
			in   string
			want MAC
		}{
			{"aa:bb:cc:dd:ee:ff", MAC{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}},
			{"AA:BB:CC:DD:EE:FF", MAC{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}},
			{"00:00:00:00:00:00", MAC{}},
			{"1:2:3:4:5:6", MAC{1, 2, 3, 4, 5, 6}},
			{"0a:B0:c:D:e0:F", MAC{0x0a, 0xb0, 0x0c, 0x0d, 0xe0, 0x0f}},
		}
		for _, tt := range tests {
			got, ok := ParseMAC(tt.in)
			require.True(t, ok, tt.in)
			assert.Equal(t, tt.want, got, tt.in)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, in := range []string{
			"",
			"zz:bb:cc:dd:ee:ff",
			"aa:bb:cc:dd:ee",
			"aa:bb:cc:dd:ee:ff:00",
			"aa:bb:cc:dd:ee:",
			":bb:cc:dd:ee:ff",
			"aa::cc:dd:ee:ff",
			"aab:bb:cc:dd:ee:ff",
			"aa-bb-cc-dd-ee-ff",
			"aabb.ccdd.eeff",
			" aa:bb:cc:dd:ee:ff",
			"aa:bb:cc:dd:ee:ff ",
			"aa:bb:cc:dd:ee:0x",
		} {
			_, ok := ParseMAC(in)
			assert.False(t, ok, "%q should be rejected", in)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		macs := []MAC{
			{},
			{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
			{0x02, 0x00, 0x5e, 0x10, 0x00, 0x01},
			{0xde, 0xad, 0xbe, 0xef, 0x00, 0x42},
		}
		for _, m := range macs {
			got, ok := ParseMAC(m.String())
			require.True(t, ok)
			assert.Equal(t, m, got)
		}
	})

	t.Run("NeverPanics", func(t *testing.T) {
		for i := 0; i < 256; i++ {
			s := fmt.Sprintf("%c%c:%c", i, 255-i, i/2)
			assert.NotPanics(t, func() { ParseMAC(s) })
		}
	})
}

func TestMACString(t *testing.T) {
	m := MAC{0xAA, 0x0B, 0x00, 0x01, 0xFE, 0x10}
	assert.Equal(t, "aa:0b:00:01:fe:10", m.String())
	assert.False(t, m.IsZero())
	assert.True(t, MAC{}.IsZero())
}
