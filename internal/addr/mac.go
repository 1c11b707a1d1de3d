package addr

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
)

// Mac is a six-octet Ethernet hardware address.
type Mac [6]byte

// ParseMac parses the colon-hex form "xx:xx:xx:xx:xx:xx".
func ParseMac(s string) (Mac, error) {
	var m Mac
	n, err := fmt.Sscanf(s, "%02x:%02x:%02x:%02x:%02x:%02x",
		&m[0], &m[1], &m[2], &m[3], &m[4], &m[5])
	if err != nil || n != 6 {
		return Mac{}, errors.Wrapf(ErrConfiguration, "parsing mac address %q failed", s)
	}
	return m, nil
}

func (m Mac) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// EncodedLen implements codec.Encoder.
func (m Mac) EncodedLen() int { return 6 }

// EncodeTo implements codec.Encoder.
func (m Mac) EncodeTo(buf []byte) { copy(buf[:6], m[:]) }

// ParseMacBytes reads a Mac from the front of buf.
func ParseMacBytes(buf []byte) (Mac, []byte, error) {
	if len(buf) < 6 {
		return Mac{}, nil, ErrShortBuffer
	}
	var m Mac
	copy(m[:], buf[:6])
	return m, buf[6:], nil
}

// RandomMac draws a locally-administered, unicast MAC address, used
// only for test fixtures -- production MAC addresses come from
// configuration or the TAP device.
func RandomMac(rng *rand.Rand) Mac {
	var m Mac
	rng.Read(m[:])
	m[0] = (m[0] &^ 0x01) | 0x02
	return m
}
