package addr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Ipv4 is a four-octet IPv4 address.
type Ipv4 [4]byte

// ParseIpv4 parses dotted-decimal notation where each part is "0" or a
// non-zero-leading decimal in 0..=255, matching
// original_source/src/protocols/ipv4.rs's address grammar (its Display
// renders hex-colon form, which is a bug relative to spec.md; this
// implementation's String below is dotted-decimal as spec.md
// requires).
func ParseIpv4(s string) (Ipv4, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return Ipv4{}, errors.Wrapf(ErrConfiguration, "ipv4 address %q must have 4 parts", s)
	}
	var a Ipv4
	for i, p := range parts {
		if p == "" || (len(p) > 1 && p[0] == '0') {
			return Ipv4{}, errors.Wrapf(ErrConfiguration, "parsing ipv4 address %q failed", s)
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return Ipv4{}, errors.Wrapf(ErrConfiguration, "parsing ipv4 address %q failed", s)
			}
		}
		v, err := strconv.ParseUint(p, 10, 16)
		if err != nil || v > 255 {
			return Ipv4{}, errors.Wrapf(ErrConfiguration, "parsing ipv4 address %q failed", s)
		}
		a[i] = byte(v)
	}
	return a, nil
}

func (a Ipv4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// EncodedLen implements codec.Encoder.
func (a Ipv4) EncodedLen() int { return 4 }

// EncodeTo implements codec.Encoder.
func (a Ipv4) EncodeTo(buf []byte) { copy(buf[:4], a[:]) }

// ParseIpv4Bytes reads an Ipv4 from the front of buf.
func ParseIpv4Bytes(buf []byte) (Ipv4, []byte, error) {
	if len(buf) < 4 {
		return Ipv4{}, nil, ErrShortBuffer
	}
	var a Ipv4
	copy(a[:], buf[:4])
	return a, buf[4:], nil
}
