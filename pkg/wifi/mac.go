package wifi

import (
	"fmt"
	"strings"
)

// MAC is a 6-byte hardware address.
type MAC [6]byte

// ParseMAC parses six colon-separated hex octets ("aa:bb:cc:dd:ee:ff").
// Each octet may have one or two hex digits in either case. The second
// return value reports whether the string was well formed; on failure the
// returned MAC must not be used.
func ParseMAC(s string) (MAC, bool) {
	var mac MAC

	tokens := strings.Split(s, ":")
	if len(tokens) != len(mac) {
		return mac, false
	}

	for i, tok := range tokens {
		if len(tok) == 0 || len(tok) > 2 {
			return mac, false
		}
		var b byte
		for j := 0; j < len(tok); j++ {
			v, ok := hexValue(tok[j])
			if !ok {
				return mac, false
			}
			b = b<<4 | v
		}
		mac[i] = b
	}

	return mac, true
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// IsZero reports whether all six octets are zero.
func (m MAC) IsZero() bool {
	return m == MAC{}
}

// String returns the address as lowercase colon-separated hex.
func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}
