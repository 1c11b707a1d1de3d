package addr

import (
	"fmt"
	"math/bits"
	"math/rand"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Ipv6 is an IPv6 address stored as eight 16-bit groups in network
// order, mirroring original_source/src/protocols/ipv6/address.rs's
// Address([u16; 8]).
type Ipv6 [8]uint16

// ParseIpv6 parses the RFC 2373 textual form: up to one "::"
// contraction, 1-4 hex digits per group, total groups (including the
// contraction's implied fill) equal to 8.
func ParseIpv6(s string) (Ipv6, error) {
	if strings.Count(s, "::") > 1 {
		return Ipv6{}, errors.Wrapf(ErrConfiguration, "ipv6 address %q cannot have more than one ::", s)
	}

	var groups []uint16
	if strings.Contains(s, "::") {
		halves := strings.SplitN(s, "::", 2)
		left, err := splitHexGroups(halves[0])
		if err != nil {
			return Ipv6{}, errors.Wrapf(ErrConfiguration, "parsing ipv6 address %q failed", s)
		}
		right, err := splitHexGroups(halves[1])
		if err != nil {
			return Ipv6{}, errors.Wrapf(ErrConfiguration, "parsing ipv6 address %q failed", s)
		}
		missing := 8 - len(left) - len(right)
		if missing < 0 {
			return Ipv6{}, errors.Wrapf(ErrConfiguration, "ipv6 address %q cannot have more than 8 parts", s)
		}
		groups = append(groups, left...)
		for i := 0; i < missing; i++ {
			groups = append(groups, 0)
		}
		groups = append(groups, right...)
	} else {
		parts, err := splitHexGroups(s)
		if err != nil {
			return Ipv6{}, errors.Wrapf(ErrConfiguration, "parsing ipv6 address %q failed", s)
		}
		groups = parts
	}

	if len(groups) != 8 {
		return Ipv6{}, errors.Wrapf(ErrConfiguration, "ipv6 address %q must have 8 parts or a double colon", s)
	}

	var a Ipv6
	copy(a[:], groups)
	return a, nil
}

func splitHexGroups(s string) ([]uint16, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ":")
	out := make([]uint16, len(parts))
	for i, p := range parts {
		if len(p) == 0 || len(p) > 4 {
			return nil, errors.New("invalid group")
		}
		v, err := strconv.ParseUint(p, 16, 32)
		if err != nil {
			return nil, err
		}
		out[i] = uint16(v)
	}
	return out, nil
}

// String renders the canonical lower-case form, eliding the single
// longest run of zero groups as "::" (earliest run wins ties), with no
// leading zeros within a group.
func (a Ipv6) String() string {
	bestStart, bestLen := -1, 0
	curStart, curLen := -1, 0
	for i := 0; i < 8; i++ {
		if a[i] == 0 {
			if curStart == -1 {
				curStart = i
			}
			curLen++
		} else {
			if curLen > bestLen {
				bestStart, bestLen = curStart, curLen
			}
			curStart, curLen = -1, 0
		}
	}
	if curLen > bestLen {
		bestStart, bestLen = curStart, curLen
	}
	if bestLen < 2 {
		bestStart, bestLen = -1, 0
	}

	var sb strings.Builder
	i := 0
	afterElision := false
	for i < 8 {
		if i == bestStart {
			sb.WriteString("::")
			i += bestLen
			afterElision = true
			continue
		}
		if i > 0 && !afterElision {
			sb.WriteString(":")
		}
		afterElision = false
		fmt.Fprintf(&sb, "%x", a[i])
		i++
	}
	return sb.String()
}

// EncodedLen implements codec.Encoder.
func (a Ipv6) EncodedLen() int { return 16 }

// EncodeTo implements codec.Encoder.
func (a Ipv6) EncodeTo(buf []byte) {
	for i := 0; i < 8; i++ {
		buf[i*2] = byte(a[i] >> 8)
		buf[i*2+1] = byte(a[i])
	}
}

// ParseIpv6Bytes reads an Ipv6 from the front of buf.
func ParseIpv6Bytes(buf []byte) (Ipv6, []byte, error) {
	if len(buf) < 16 {
		return Ipv6{}, nil, ErrShortBuffer
	}
	var a Ipv6
	for i := 0; i < 8; i++ {
		a[i] = uint16(buf[i*2])<<8 | uint16(buf[i*2+1])
	}
	return a, buf[16:], nil
}

func (a Ipv6) toU128() (hi, lo uint64) {
	hi = uint64(a[0])<<48 | uint64(a[1])<<32 | uint64(a[2])<<16 | uint64(a[3])
	lo = uint64(a[4])<<48 | uint64(a[5])<<32 | uint64(a[6])<<16 | uint64(a[7])
	return
}

func fromU128(hi, lo uint64) Ipv6 {
	var a Ipv6
	a[0], a[1], a[2], a[3] = uint16(hi>>48), uint16(hi>>32), uint16(hi>>16), uint16(hi)
	a[4], a[5], a[6], a[7] = uint16(lo>>48), uint16(lo>>32), uint16(lo>>16), uint16(lo)
	return a
}

func leadingZeros128(hi, lo uint64) int {
	if hi != 0 {
		return bits.LeadingZeros64(hi)
	}
	return 64 + bits.LeadingZeros64(lo)
}

func trailingZeros128(hi, lo uint64) int {
	if lo != 0 {
		return bits.TrailingZeros64(lo)
	}
	if hi != 0 {
		return 64 + bits.TrailingZeros64(hi)
	}
	return 128
}

// maskTop returns a 128-bit mask with the top n bits set.
func maskTop(n int) (hi, lo uint64) {
	switch {
	case n <= 0:
		return 0, 0
	case n >= 128:
		return ^uint64(0), ^uint64(0)
	case n <= 64:
		return ^uint64(0) << (64 - n), 0
	default:
		return ^uint64(0), ^uint64(0) << (128 - n)
	}
}

// maskBottom returns a 128-bit mask with the bottom n bits set.
func maskBottom(n int) (hi, lo uint64) {
	switch {
	case n <= 0:
		return 0, 0
	case n >= 128:
		return ^uint64(0), ^uint64(0)
	case n <= 64:
		return 0, ^uint64(0) >> (64 - n)
	default:
		return ^uint64(0) >> (128 - n), ^uint64(0)
	}
}

// Prefix masks to the high n bits (n=0 yields all-zero).
func (a Ipv6) Prefix(n int) Ipv6 {
	hi, lo := a.toU128()
	mh, ml := maskTop(n)
	return fromU128(hi&mh, lo&ml)
}

// Suffix masks to the low n bits (n=0 yields all-zero).
func (a Ipv6) Suffix(n int) Ipv6 {
	hi, lo := a.toU128()
	mh, ml := maskBottom(n)
	return fromU128(hi&mh, lo&ml)
}

// CombineSubnet OR-combines an interface-ID value (the receiver) with
// a subnet value, panicking if their set bits overlap -- the
// precondition is that the subnet's significant bits (from the MSB
// down to its last set bit) end before the interface ID's first set
// bit, mirroring address.rs's
// `assert!((128 - subnet_bits.trailing_zeros()) <= interface_bits.leading_zeros())`.
func (a Ipv6) CombineSubnet(subnet Ipv6) Ipv6 {
	hiA, loA := a.toU128()
	hiS, loS := subnet.toU128()
	tz := trailingZeros128(hiS, loS)
	lz := leadingZeros128(hiA, loA)
	if (128 - tz) > lz {
		panic("subnet and interface ID overlap")
	}
	return fromU128(hiA|hiS, loA|loS)
}

var solicitedNodePrefix = Ipv6{0xff02, 0, 0, 0, 0, 1, 0xff00, 0}

// SolicitedNodesMulticast derives the solicited-node multicast address
// for this unicast address: ff02::1:ff00:0/104 OR (low 24 bits of
// self).
func (a Ipv6) SolicitedNodesMulticast() Ipv6 {
	return a.Suffix(24).CombineSubnet(solicitedNodePrefix)
}

// MulticastEtherDest derives the RFC 2464 Ethernet multicast
// destination for this IPv6 multicast address: 33:33:<low 32 bits>.
func (a Ipv6) MulticastEtherDest() Mac {
	low32 := uint32(a[6])<<16 | uint32(a[7])
	return Mac{0x33, 0x33, byte(low32 >> 24), byte(low32 >> 16), byte(low32 >> 8), byte(low32)}
}

// RandomIpv6 draws a uniform 128-bit address.
func RandomIpv6(rng *rand.Rand) Ipv6 {
	var a Ipv6
	for i := range a {
		a[i] = uint16(rng.Intn(1 << 16))
	}
	return a
}

// Unspecified is ::.
var Unspecified = Ipv6{}
