// Package icmpv6 implements ICMPv6 (RFC 4443) message encode/decode
// with the RFC 8200 §8.1 pseudo-header checksum, Neighbor Discovery
// options (RFC 4861) and MLDv2 address records (RFC 3810), grounded on
// original_source/src/protocols/ipv6/icmpv6.rs.
package icmpv6

import (
	"fmt"

	"github.com/mistsys/fakenet/internal/addr"
	"github.com/mistsys/fakenet/internal/codec"
	"github.com/pkg/errors"
)

// Type is the ICMPv6 message type.
type Type uint8

const (
	TypeDestinationUnreachable Type = 1
	TypeTooBig                 Type = 2
	TypeExceeded               Type = 3
	TypeProblem                Type = 4
	TypeEchoRequest            Type = 128
	TypeEchoReply              Type = 129
	TypeRouterSolicitation     Type = 133
	TypeNeighborSolicitation   Type = 135
	TypeNeighborAdvertisement  Type = 136
	TypeMldV2Report            Type = 143
)

func (t Type) String() string {
	switch t {
	case TypeDestinationUnreachable:
		return "DestinationUnreachable"
	case TypeTooBig:
		return "TooBig"
	case TypeExceeded:
		return "Exceeded"
	case TypeProblem:
		return "Problem"
	case TypeEchoRequest:
		return "EchoRequest"
	case TypeEchoReply:
		return "EchoReply"
	case TypeRouterSolicitation:
		return "RouterSolicitation"
	case TypeNeighborSolicitation:
		return "NeighborSolicitation"
	case TypeNeighborAdvertisement:
		return "NeighborAdvertisement"
	case TypeMldV2Report:
		return "V2MulticastListenerReport"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// NDOptionKind is the Neighbor Discovery option type.
type NDOptionKind int

const (
	NDOptionSourceLinkLayerAddress NDOptionKind = iota
	NDOptionTargetLinkLayerAddress
	NDOptionNonce
)

const (
	ndOptTypeSourceLinkLayer = 1
	ndOptTypeTargetLinkLayer = 2
	ndOptTypeNonce           = 14
)

// NDOption is a Neighbor Discovery option:
// SourceLinkLayerAddress(MAC) | TargetLinkLayerAddress(MAC) |
// Nonce(raw bytes, preserved verbatim).
type NDOption struct {
	Kind  NDOptionKind
	Mac   addr.Mac
	Nonce []byte
}

func (o NDOption) encodedLen() int {
	switch o.Kind {
	case NDOptionSourceLinkLayerAddress, NDOptionTargetLinkLayerAddress:
		return 8
	case NDOptionNonce:
		return codec.RoundUpToNext(2+len(o.Nonce), 8)
	default:
		return 0
	}
}

func (o NDOption) encodeTo(buf []byte) {
	switch o.Kind {
	case NDOptionSourceLinkLayerAddress:
		buf[0], buf[1] = ndOptTypeSourceLinkLayer, 1
		o.Mac.EncodeTo(buf[2:8])
	case NDOptionTargetLinkLayerAddress:
		buf[0], buf[1] = ndOptTypeTargetLinkLayer, 1
		o.Mac.EncodeTo(buf[2:8])
	case NDOptionNonce:
		buf[0], buf[1] = ndOptTypeNonce, uint8(len(buf)/8)
		copy(buf[2:2+len(o.Nonce)], o.Nonce)
	}
}

func encodeOptions(opts []NDOption) []byte {
	total := 0
	for _, o := range opts {
		total += o.encodedLen()
	}
	buf := make([]byte, total)
	off := 0
	for _, o := range opts {
		l := o.encodedLen()
		o.encodeTo(buf[off : off+l])
		off += l
	}
	return buf
}

// parseOptions parses a sequence of 8-byte-aligned ND options,
// skipping to the next multiple of 8 after each, per spec.md's
// "Option-level padding to 8 bytes is applied by the parser by
// skipping to the next multiple of 8 after each option."
func parseOptions(buf []byte) ([]NDOption, error) {
	var opts []NDOption
	off := 0
	for off < len(buf) {
		if off+2 > len(buf) {
			return nil, errors.Wrap(codec.ErrMalformed, "parsing nd options failed: truncated option header")
		}
		typ := buf[off]
		units := int(buf[off+1])
		total := units * 8
		if total < 8 || off+total > len(buf) {
			return nil, errors.Wrap(codec.ErrMalformed, "parsing nd options failed: invalid option length")
		}
		body := buf[off+2 : off+total]
		switch typ {
		case ndOptTypeSourceLinkLayer:
			mac, _, err := addr.ParseMacBytes(body)
			if err != nil {
				return nil, errors.Wrap(err, "parsing nd options failed")
			}
			opts = append(opts, NDOption{Kind: NDOptionSourceLinkLayerAddress, Mac: mac})
		case ndOptTypeTargetLinkLayer:
			mac, _, err := addr.ParseMacBytes(body)
			if err != nil {
				return nil, errors.Wrap(err, "parsing nd options failed")
			}
			opts = append(opts, NDOption{Kind: NDOptionTargetLinkLayerAddress, Mac: mac})
		case ndOptTypeNonce:
			nonce := make([]byte, len(body))
			copy(nonce, body)
			opts = append(opts, NDOption{Kind: NDOptionNonce, Nonce: nonce})
		default:
			return nil, errors.Wrapf(codec.ErrMalformed, "parsing nd options failed: unknown option type %d", typ)
		}
		off += total
	}
	return opts, nil
}

// MldV2RecordType is the MLDv2 multicast address record type (RFC 3810 §5.2).
type MldV2RecordType uint8

const (
	MldV2CodeIsInclude         MldV2RecordType = 1
	MldV2CodeIsExclude         MldV2RecordType = 2
	MldV2ChangeToIncludeMode   MldV2RecordType = 3
	MldV2ChangeToExcludeMode   MldV2RecordType = 4
	MldV2AllowNewSources       MldV2RecordType = 5
	MldV2BlockOldSources       MldV2RecordType = 6
)

// MldV2AddressRecord carries no source addresses or auxiliary data.
type MldV2AddressRecord struct {
	RecordType MldV2RecordType
	Address    addr.Ipv6
}

const mldRecordLen = 20 // type(1) + auxDataLen(1)=0 + numSources(2)=0 + address(16)

func (r MldV2AddressRecord) encodeTo(buf []byte) {
	buf[0] = uint8(r.RecordType)
	buf[1] = 0
	codec.PutUint16(buf[2:4], 0)
	r.Address.EncodeTo(buf[4:20])
}

func parseMldRecord(buf []byte) (MldV2AddressRecord, error) {
	if len(buf) < mldRecordLen {
		return MldV2AddressRecord{}, errors.Wrap(codec.ErrMalformed, "parsing mldv2 record failed: short record")
	}
	addrVal, _, err := addr.ParseIpv6Bytes(buf[4:20])
	if err != nil {
		return MldV2AddressRecord{}, errors.Wrap(err, "parsing mldv2 record failed")
	}
	return MldV2AddressRecord{RecordType: MldV2RecordType(buf[0]), Address: addrVal}, nil
}

// Packet is the ICMPv6 tagged union spec.md names:
// RouterSolicitation | NeighborSolicitation{Target, Options} |
// NeighborAdvertisement{Target, Options} | MldV2Report(records).
type Packet struct {
	Type    Type
	Target  addr.Ipv6  // NeighborSolicitation / NeighborAdvertisement
	Options []NDOption // NeighborSolicitation / NeighborAdvertisement
	Records []MldV2AddressRecord
}

// PseudoHeader is the RFC 8200 §8.1 checksum pseudo-header: src, dest,
// the upper-layer (ICMPv6 message) length, 3 zero bytes, next-header=58.
type PseudoHeader struct {
	Src    addr.Ipv6
	Dest   addr.Ipv6
	Length uint32
}

const icmpv6NextHeader = 58

func (h PseudoHeader) encode() []byte {
	buf := make([]byte, 40)
	h.Src.EncodeTo(buf[0:16])
	h.Dest.EncodeTo(buf[16:32])
	codec.PutUint32(buf[32:36], h.Length)
	buf[36], buf[37], buf[38] = 0, 0, 0
	buf[39] = icmpv6NextHeader
	return buf
}

// encodeBody renders the message body (type/code/checksum=0/... /
// variant fields) without computing the checksum.
func encodeBody(p Packet) []byte {
	switch p.Type {
	case TypeRouterSolicitation:
		buf := make([]byte, 8)
		buf[0] = uint8(p.Type)
		return buf
	case TypeNeighborSolicitation:
		opts := encodeOptions(p.Options)
		buf := make([]byte, 8+16+len(opts))
		buf[0] = uint8(p.Type)
		p.Target.EncodeTo(buf[8:24])
		copy(buf[24:], opts)
		return buf
	case TypeNeighborAdvertisement:
		opts := encodeOptions(p.Options)
		buf := make([]byte, 8+16+len(opts))
		buf[0] = uint8(p.Type)
		// flags (4 bytes, including the 4-byte header remainder) left
		// zero: the Flags field is not modeled (spec.md open question).
		p.Target.EncodeTo(buf[8:24])
		copy(buf[24:], opts)
		return buf
	case TypeMldV2Report:
		buf := make([]byte, 8+len(p.Records)*mldRecordLen)
		buf[0] = uint8(p.Type)
		codec.PutUint16(buf[6:8], uint16(len(p.Records)))
		off := 8
		for _, r := range p.Records {
			r.encodeTo(buf[off : off+mldRecordLen])
			off += mldRecordLen
		}
		return buf
	default:
		panic(fmt.Sprintf("icmpv6: cannot encode message type %v", p.Type))
	}
}

// Encode computes length and checksum against pseudo (pseudo.Length is
// overwritten with the encoded message's length) and returns the
// complete ICMPv6 message bytes.
func Encode(pseudo PseudoHeader, p Packet) []byte {
	body := encodeBody(p)
	pseudo.Length = uint32(len(body))
	cs := codec.Checksum(append(pseudo.encode(), body...))
	codec.PutUint16(body[2:4], cs)
	return body
}

// Parse validates the checksum against pseudo (pseudo.Length is
// ignored and replaced with len(buf)) before decoding the variant, failing with an
// error containing "checksum" on mismatch, per spec.md §4.3.
func Parse(pseudo PseudoHeader, buf []byte) (Packet, error) {
	if len(buf) < 4 {
		return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing icmpv6 packet failed: short packet")
	}
	pseudo.Length = uint32(len(buf))
	if !codec.ValidateChecksum(append(pseudo.encode(), buf...)) {
		return Packet{}, errors.Wrapf(codec.ErrInvalidChecksum, "icmpv6 checksum invalid: %x", codec.Uint16(buf[2:4]))
	}

	t := Type(buf[0])
	switch t {
	case TypeRouterSolicitation:
		return Packet{Type: t}, nil
	case TypeNeighborSolicitation:
		if len(buf) < 24 {
			return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing icmpv6 packet failed: short neighbor solicitation")
		}
		target, _, err := addr.ParseIpv6Bytes(buf[8:24])
		if err != nil {
			return Packet{}, errors.Wrap(err, "parsing icmpv6 packet failed")
		}
		opts, err := parseOptions(buf[24:])
		if err != nil {
			return Packet{}, errors.Wrap(err, "parsing icmpv6 packet failed")
		}
		return Packet{Type: t, Target: target, Options: opts}, nil
	case TypeNeighborAdvertisement:
		if len(buf) < 24 {
			return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing icmpv6 packet failed: short neighbor advertisement")
		}
		target, _, err := addr.ParseIpv6Bytes(buf[8:24])
		if err != nil {
			return Packet{}, errors.Wrap(err, "parsing icmpv6 packet failed")
		}
		opts, err := parseOptions(buf[24:])
		if err != nil {
			return Packet{}, errors.Wrap(err, "parsing icmpv6 packet failed")
		}
		return Packet{Type: t, Target: target, Options: opts}, nil
	case TypeMldV2Report:
		if len(buf) < 8 {
			return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing icmpv6 packet failed: short mldv2 report")
		}
		numRecords := int(codec.Uint16(buf[6:8]))
		records := make([]MldV2AddressRecord, 0, numRecords)
		off := 8
		for i := 0; i < numRecords; i++ {
			if off+mldRecordLen > len(buf) {
				return Packet{}, errors.Wrap(codec.ErrMalformed, "parsing icmpv6 packet failed: truncated mldv2 records")
			}
			rec, err := parseMldRecord(buf[off : off+mldRecordLen])
			if err != nil {
				return Packet{}, errors.Wrap(err, "parsing icmpv6 packet failed")
			}
			records = append(records, rec)
			off += mldRecordLen
		}
		return Packet{Type: t, Records: records}, nil
	default:
		return Packet{}, errors.Wrapf(codec.ErrMalformed, "parsing icmpv6 packet failed: unhandled type %d", uint8(t))
	}
}
