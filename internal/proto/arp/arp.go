// Package arp implements the fixed 28-byte ARP-over-Ethernet/IPv4
// layout (RFC 826), grounded on
// original_source/src/protocols/arp.rs.
package arp

import (
	"fmt"

	"github.com/mistsys/fakenet/internal/addr"
	"github.com/mistsys/fakenet/internal/codec"
	"github.com/pkg/errors"
)

// Opcode is the ARP operation.
type Opcode uint16

const (
	OpRequest Opcode = 1
	OpReply   Opcode = 2
)

func (o Opcode) String() string {
	switch o {
	case OpRequest:
		return "Request"
	case OpReply:
		return "Reply"
	default:
		return fmt.Sprintf("Opcode(%d)", uint16(o))
	}
}

const (
	hardwareTypeEthernet = 1
	protocolTypeIpv4     = 0x0800
	hlen                 = 6
	plen                 = 4
	encodedLen           = 8 + 2*hlen + 2*plen // 28
)

// Packet is a parsed ARP packet.
type Packet struct {
	Opcode    Opcode
	SrcMac    addr.Mac
	SrcIpv4   addr.Ipv4
	DestMac   addr.Mac
	DestIpv4  addr.Ipv4
}

// EncodedLen implements codec.Encoder; always 28 bytes.
func (p Packet) EncodedLen() int { return encodedLen }

// EncodeTo implements codec.Encoder.
func (p Packet) EncodeTo(buf []byte) {
	codec.PutUint16(buf[0:2], hardwareTypeEthernet)
	codec.PutUint16(buf[2:4], protocolTypeIpv4)
	buf[4] = hlen
	buf[5] = plen
	codec.PutUint16(buf[6:8], uint16(p.Opcode))
	p.SrcMac.EncodeTo(buf[8:14])
	p.SrcIpv4.EncodeTo(buf[14:18])
	p.DestMac.EncodeTo(buf[18:24])
	p.DestIpv4.EncodeTo(buf[24:28])
}

// Encode is a convenience wrapper around codec.Encode.
func (p Packet) Encode() []byte { return codec.Encode(p) }

// Parse enforces hardware type=1, protocol type=0x0800, hlen=6,
// plen=4, rejecting any deviation.
func Parse(buf []byte) (Packet, error) {
	if len(buf) < encodedLen {
		return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing arp packet failed: short packet")
	}
	if codec.Uint16(buf[0:2]) != hardwareTypeEthernet {
		return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing arp packet failed: unsupported hardware type")
	}
	if codec.Uint16(buf[2:4]) != protocolTypeIpv4 {
		return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing arp packet failed: unsupported protocol type")
	}
	if buf[4] != hlen || buf[5] != plen {
		return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing arp packet failed: unexpected address lengths")
	}
	op := Opcode(codec.Uint16(buf[6:8]))
	if op != OpRequest && op != OpReply {
		return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing arp packet failed: unknown opcode")
	}
	srcMac, rest, _ := addr.ParseMacBytes(buf[8:])
	srcIpv4, rest, _ := addr.ParseIpv4Bytes(rest)
	destMac, rest, _ := addr.ParseMacBytes(rest)
	destIpv4, _, _ := addr.ParseIpv4Bytes(rest)
	return Packet{
		Opcode:   op,
		SrcMac:   srcMac,
		SrcIpv4:  srcIpv4,
		DestMac:  destMac,
		DestIpv4: destIpv4,
	}, nil
}
