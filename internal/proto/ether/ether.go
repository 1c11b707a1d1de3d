// Package ether implements Ethernet II framing: parse/encode and the
// EtherType dispatch key, grounded on
// original_source/src/protocols/ether.rs's Frame/Type and
// mistsys-tuntap/tun.go's ETH_P_* constants.
package ether

import (
	"fmt"

	"github.com/mistsys/fakenet/internal/addr"
	"github.com/mistsys/fakenet/internal/codec"
	"github.com/pkg/errors"
)

// Type is the closed EtherType enum spec.md names.
type Type uint16

const (
	TypeArp  Type = 0x0806
	TypeIpv4 Type = 0x0800
	TypeIpv6 Type = 0x86DD
)

func (t Type) String() string {
	switch t {
	case TypeArp:
		return "ARP"
	case TypeIpv4:
		return "IPv4"
	case TypeIpv6:
		return "IPv6"
	default:
		return fmt.Sprintf("EtherType(0x%04x)", uint16(t))
	}
}

// ParseType fails on any value outside the closed enum, matching
// spec.md's "Frames with unknown EtherType are rejected at parse
// time."
func ParseType(v uint16) (Type, error) {
	switch Type(v) {
	case TypeArp, TypeIpv4, TypeIpv6:
		return Type(v), nil
	default:
		return 0, errors.Wrapf(codec.ErrMalformed, "unknown ethertype 0x%04x", v)
	}
}

// minFrameLen is the minimum total Ethernet II frame length (header +
// payload), enforced by zero-padding on encode.
const minFrameLen = 60
const headerLen = 14

// Frame is a parsed Ethernet II frame with no FCS.
type Frame struct {
	Dest      addr.Mac
	Src       addr.Mac
	EtherType Type
	Payload   []byte
}

// DispatchKey implements dispatch.Keyed[Type].
func (f Frame) DispatchKey() Type { return f.EtherType }

// EncodedLen implements codec.Encoder; always at least minFrameLen.
func (f Frame) EncodedLen() int {
	n := headerLen + len(f.Payload)
	if n < minFrameLen {
		return minFrameLen
	}
	return n
}

// EncodeTo implements codec.Encoder, zero-padding short frames to 60
// bytes.
func (f Frame) EncodeTo(buf []byte) {
	f.Dest.EncodeTo(buf[0:6])
	f.Src.EncodeTo(buf[6:12])
	codec.PutUint16(buf[12:14], uint16(f.EtherType))
	copy(buf[14:], f.Payload)
	for i := 14 + len(f.Payload); i < len(buf); i++ {
		buf[i] = 0
	}
}

// Encode is a convenience wrapper around codec.Encode.
func (f Frame) Encode() []byte { return codec.Encode(f) }

// Parse strips the 14-byte header and returns the remaining bytes as
// Payload; the EtherType must be one of the closed enum values.
func Parse(buf []byte) (Frame, error) {
	if len(buf) < headerLen {
		return Frame{}, errors.Wrap(codec.ErrMalformed, "parsing ethernet frame failed: short frame")
	}
	dest, rest, err := addr.ParseMacBytes(buf)
	if err != nil {
		return Frame{}, errors.Wrap(err, "parsing ethernet frame failed")
	}
	src, rest, err := addr.ParseMacBytes(rest)
	if err != nil {
		return Frame{}, errors.Wrap(err, "parsing ethernet frame failed")
	}
	et, err := ParseType(codec.Uint16(rest[0:2]))
	if err != nil {
		return Frame{}, errors.Wrap(err, "parsing ethernet frame failed")
	}
	payload := make([]byte, len(rest)-2)
	copy(payload, rest[2:])
	return Frame{Dest: dest, Src: src, EtherType: et, Payload: payload}, nil
}
