// Package ipv6 implements IPv6 (RFC 8200) packet parsing/encoding with
// Hop-by-Hop extension headers and Router Alert (RFC 2711), grounded on
// original_source/src/protocols/ipv6/packet.rs, with the
// extension-header chain walk cross-checked against
// mistsys-tuntap/tun.go's IPProto().
package ipv6

import (
	"fmt"

	"github.com/mistsys/fakenet/internal/addr"
	"github.com/mistsys/fakenet/internal/codec"
	"github.com/pkg/errors"
)

// IpProtocol is the open upper-layer protocol-number enum: known
// values preserved by name, everything else preserved as
// Unknown(value).
type IpProtocol uint8

const (
	ProtoUdp     IpProtocol = 17
	ProtoIcmpv6  IpProtocol = 58
)

func (p IpProtocol) String() string {
	switch p {
	case ProtoUdp:
		return "Udp"
	case ProtoIcmpv6:
		return "Ipv6Icmp"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}

// NextHeaderKind discriminates the Ipv6NextHeader union.
type NextHeaderKind int

const (
	// NextHeaderUnset is the default-construction sentinel; encoding
	// it is a programmer error.
	NextHeaderUnset NextHeaderKind = iota
	NextHeaderHopByHop
	NextHeaderProtocol
)

// NextHeader is the Ipv6NextHeader discriminated union: HopByHopOptions
// | Protocol(IpProtocol) | Unset.
type NextHeader struct {
	Kind     NextHeaderKind
	Protocol IpProtocol
}

// Proto builds a NextHeader carrying an upper-layer protocol.
func Proto(p IpProtocol) NextHeader { return NextHeader{Kind: NextHeaderProtocol, Protocol: p} }

// HopByHop is the HopByHopOptions variant.
var HopByHop = NextHeader{Kind: NextHeaderHopByHop}

func (n NextHeader) String() string {
	switch n.Kind {
	case NextHeaderHopByHop:
		return "HopByHopOptions"
	case NextHeaderProtocol:
		return n.Protocol.String()
	default:
		return "Unset"
	}
}

// RouterAlertType is the Router Alert option's sub-type (RFC 2711).
type RouterAlertType uint16

const (
	RouterAlertMld            RouterAlertType = 0
	RouterAlertRsvp           RouterAlertType = 1
	RouterAlertActiveNetworks RouterAlertType = 2
)

func (r RouterAlertType) String() string {
	switch r {
	case RouterAlertMld:
		return "Mld"
	case RouterAlertRsvp:
		return "Rsvp"
	case RouterAlertActiveNetworks:
		return "ActiveNetworks"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(r))
	}
}

const (
	hbhOptPad1        = 0
	hbhOptPadN        = 1
	hbhOptRouterAlert = 5
)

// HopByHopOption is currently only the RouterAlert variant; Pad1/PadN
// options are consumed by the parser but never preserved.
type HopByHopOption struct {
	RouterAlert RouterAlertType
}

// EncodedLen is always 4: type(1) + length(1) + value(2).
func (o HopByHopOption) EncodedLen() int { return 4 }

func (o HopByHopOption) EncodeTo(buf []byte) {
	buf[0] = hbhOptRouterAlert
	buf[1] = 2
	codec.PutUint16(buf[2:4], uint16(o.RouterAlert))
}

// ExtensionHeader is currently only the HopByHopOptions variant: an
// ordered list of options.
type ExtensionHeader struct {
	Options []HopByHopOption
}

// encodedLen returns the total on-wire length of the extension header
// including its 2-byte next-header/length prefix, rounded up to the
// next multiple of 8.
func (e ExtensionHeader) encodedLen() int {
	body := 0
	for _, o := range e.Options {
		body += o.EncodedLen()
	}
	return codec.RoundUpToNext(2+body, 8)
}

// encodeTo writes the extension header into buf (which must be exactly
// encodedLen() bytes), using nextWire as the on-wire next-header byte
// for the header that follows this one in the chain (or the packet's
// final protocol, if this is the last extension header).
func (e ExtensionHeader) encodeTo(buf []byte, nextWire uint8) {
	total := len(buf)
	buf[0] = nextWire
	buf[1] = uint8(total/8 - 1)
	off := 2
	for _, o := range e.Options {
		o.EncodeTo(buf[off : off+o.EncodedLen()])
		off += o.EncodedLen()
	}
	pad := total - off
	switch {
	case pad == 1:
		buf[off] = hbhOptPad1
	case pad >= 2:
		buf[off] = hbhOptPadN
		buf[off+1] = uint8(pad - 2)
		// remaining bytes are implicitly zero (buf is freshly
		// allocated by the caller via codec.Encode/EncodeAll paths)
	}
}

// parseExtensionHeader parses exactly len(buf) bytes (the caller has
// already sliced to the declared 8*(hdrExtLen+1) length) and returns
// the header plus the on-wire next-header byte that followed it.
func parseExtensionHeader(buf []byte) (ExtensionHeader, uint8, error) {
	if len(buf) < 8 {
		return ExtensionHeader{}, 0, errors.Wrap(codec.ErrMalformed, "parsing ipv6 extension header failed: short header")
	}
	nextWire := buf[0]
	body := buf[2:]
	var opts []HopByHopOption
	off := 0
	for off < len(body) {
		switch body[off] {
		case hbhOptPad1:
			off++
		case hbhOptPadN:
			if off+1 >= len(body) {
				return ExtensionHeader{}, 0, errors.Wrap(codec.ErrMalformed, "parsing ipv6 extension header failed: truncated padn")
			}
			padLen := int(body[off+1])
			off += 2 + padLen
		case hbhOptRouterAlert:
			if off+4 > len(body) {
				return ExtensionHeader{}, 0, errors.Wrap(codec.ErrMalformed, "parsing ipv6 extension header failed: truncated router alert")
			}
			opts = append(opts, HopByHopOption{RouterAlert: RouterAlertType(codec.Uint16(body[off+2 : off+4]))})
			off += 4
		default:
			return ExtensionHeader{}, 0, errors.Wrapf(codec.ErrMalformed, "parsing ipv6 extension header failed: unhandled option type %d", body[off])
		}
	}
	return ExtensionHeader{Options: opts}, nextWire, nil
}

// Packet is a parsed IPv6 packet. NextHeader is the final upper-layer
// protocol (after any extension headers have been consumed) and is
// the value used as the dispatch key (C9 dispatches by
// Ipv6NextHeader).
type Packet struct {
	TrafficClass     uint8
	FlowLabel        uint32 // low 20 bits significant
	NextHeader       NextHeader
	HopLimit         uint8
	Src              addr.Ipv6
	Dest             addr.Ipv6
	ExtensionHeaders []ExtensionHeader
	Payload          []byte
}

// DispatchKey implements dispatch.Keyed[NextHeader].
func (p Packet) DispatchKey() NextHeader { return p.NextHeader }

const fixedHeaderLen = 40

// EncodedLen implements codec.Encoder.
func (p Packet) EncodedLen() int {
	n := fixedHeaderLen
	for _, eh := range p.ExtensionHeaders {
		n += eh.encodedLen()
	}
	return n + len(p.Payload)
}

// EncodeTo implements codec.Encoder. Panics if NextHeader is Unset,
// matching the Rust original's "attempt to encode unset next-header".
func (p Packet) EncodeTo(buf []byte) {
	if p.NextHeader.Kind != NextHeaderProtocol {
		panic("ipv6: attempt to encode unset next-header")
	}

	payloadLen := 0
	for _, eh := range p.ExtensionHeaders {
		payloadLen += eh.encodedLen()
	}
	payloadLen += len(p.Payload)

	prelude := uint32(6)<<28 | uint32(p.TrafficClass)<<20 | (p.FlowLabel & 0xfffff)
	codec.PutUint32(buf[0:4], prelude)
	codec.PutUint16(buf[4:6], uint16(payloadLen))

	if len(p.ExtensionHeaders) > 0 {
		buf[6] = 0 // first wire next-header is HopByHopOptions
	} else {
		buf[6] = uint8(p.NextHeader.Protocol)
	}
	buf[7] = p.HopLimit
	p.Src.EncodeTo(buf[8:24])
	p.Dest.EncodeTo(buf[24:40])

	off := fixedHeaderLen
	for i, eh := range p.ExtensionHeaders {
		var nextWire uint8
		if i+1 < len(p.ExtensionHeaders) {
			nextWire = 0
		} else {
			nextWire = uint8(p.NextHeader.Protocol)
		}
		l := eh.encodedLen()
		eh.encodeTo(buf[off:off+l], nextWire)
		off += l
	}
	copy(buf[off:], p.Payload)
}

// Encode is a convenience wrapper around codec.Encode.
func (p Packet) Encode() []byte { return codec.Encode(p) }

// Parse reads the 4-byte prelude, walks any Hop-by-Hop extension
// header chain, and returns the remaining bytes as Payload. Invariant:
// the sum of consumed extension-header bytes and payload bytes equals
// the declared payload-length field.
func Parse(buf []byte) (Packet, error) {
	if len(buf) < fixedHeaderLen {
		return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing ipv6 packet failed: short packet")
	}
	prelude := codec.Uint32(buf[0:4])
	version := prelude >> 28
	if version != 6 {
		return Packet{}, errors.Wrapf(codec.ErrMalformed, "parsing ipv6 packet failed: unexpected version %d", version)
	}
	trafficClass := uint8((prelude >> 20) & 0xff)
	flowLabel := prelude & 0xfffff
	remaining := int(codec.Uint16(buf[4:6]))
	nextByte := buf[6]
	hopLimit := buf[7]
	src, _, err := addr.ParseIpv6Bytes(buf[8:24])
	if err != nil {
		return Packet{}, errors.Wrap(err, "parsing ipv6 packet failed")
	}
	dest, _, err := addr.ParseIpv6Bytes(buf[24:40])
	if err != nil {
		return Packet{}, errors.Wrap(err, "parsing ipv6 packet failed")
	}

	rest := buf[fixedHeaderLen:]
	var extHeaders []ExtensionHeader
	for nextByte == 0 {
		if len(rest) < 8 {
			return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing ipv6 packet failed: truncated extension header")
		}
		hdrExtLen := int(rest[1])
		total := 8 * (hdrExtLen + 1)
		if total > len(rest) || total > remaining {
			return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing ipv6 packet failed: extension header overruns payload length")
		}
		eh, nw, err := parseExtensionHeader(rest[:total])
		if err != nil {
			return Packet{}, errors.Wrap(err, "parsing ipv6 packet failed")
		}
		extHeaders = append(extHeaders, eh)
		rest = rest[total:]
		remaining -= total
		nextByte = nw
	}

	if remaining > len(rest) {
		return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing ipv6 packet failed: payload length exceeds buffer")
	}
	payload := make([]byte, remaining)
	copy(payload, rest[:remaining])

	return Packet{
		TrafficClass:     trafficClass,
		FlowLabel:        flowLabel,
		NextHeader:       Proto(IpProtocol(nextByte)),
		HopLimit:         hopLimit,
		Src:              src,
		Dest:             dest,
		ExtensionHeaders: extHeaders,
		Payload:          payload,
	}, nil
}

// Builder assembles a Packet field by field, mirroring
// original_source/src/protocols/ipv6/packet.rs's PacketBuilder.
type Builder struct {
	pkt Packet
}

func NewBuilder() *Builder {
	return &Builder{pkt: Packet{NextHeader: NextHeader{Kind: NextHeaderUnset}}}
}

func (b *Builder) TrafficClass(v uint8) *Builder    { b.pkt.TrafficClass = v; return b }
func (b *Builder) FlowLabel(v uint32) *Builder      { b.pkt.FlowLabel = v & 0xfffff; return b }
func (b *Builder) Protocol(v IpProtocol) *Builder   { b.pkt.NextHeader = Proto(v); return b }
func (b *Builder) HopLimit(v uint8) *Builder        { b.pkt.HopLimit = v; return b }
func (b *Builder) Src(v addr.Ipv6) *Builder         { b.pkt.Src = v; return b }
func (b *Builder) Dest(v addr.Ipv6) *Builder        { b.pkt.Dest = v; return b }
func (b *Builder) ExtensionHeader(e ExtensionHeader) *Builder {
	b.pkt.ExtensionHeaders = append(b.pkt.ExtensionHeaders, e)
	return b
}
func (b *Builder) Payload(p []byte) *Builder { b.pkt.Payload = p; return b }
func (b *Builder) Build() Packet             { return b.pkt }
