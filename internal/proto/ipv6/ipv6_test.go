package ipv6

import (
	"testing"

	"github.com/mistsys/fakenet/internal/addr"
	"github.com/stretchr/testify/assert"
)

func mustIpv6(t *testing.T, s string) addr.Ipv6 {
	t.Helper()
	a, err := addr.ParseIpv6(s)
	assert.NoError(t, err)
	return a
}

func TestPacketEncodeDecodeRoundTripNoExtensionHeaders(t *testing.T) {
	p := NewBuilder().
		TrafficClass(0).
		FlowLabel(0).
		Protocol(ProtoUdp).
		HopLimit(64).
		Src(mustIpv6(t, "fe80::1")).
		Dest(mustIpv6(t, "ff02::1")).
		Payload([]byte{1, 2, 3, 4}).
		Build()

	encoded := p.Encode()
	got, err := Parse(encoded)
	assert.NoError(t, err)
	assert.Equal(t, p.Src, got.Src)
	assert.Equal(t, p.Dest, got.Dest)
	assert.Equal(t, p.HopLimit, got.HopLimit)
	assert.Equal(t, p.NextHeader, got.NextHeader)
	assert.Equal(t, p.Payload, got.Payload)
	assert.Empty(t, got.ExtensionHeaders)
}

func TestPacketEncodeDecodeRoundTripWithHopByHopRouterAlert(t *testing.T) {
	p := NewBuilder().
		Protocol(ProtoIcmpv6).
		HopLimit(1).
		Src(mustIpv6(t, "fe80::1")).
		Dest(mustIpv6(t, "ff02::16")).
		ExtensionHeader(ExtensionHeader{Options: []HopByHopOption{{RouterAlert: RouterAlertMld}}}).
		Payload([]byte{0x8f, 0, 0, 0}).
		Build()

	encoded := p.Encode()
	// first next-header byte points at hop-by-hop options (0)
	assert.Equal(t, byte(0), encoded[6])

	got, err := Parse(encoded)
	assert.NoError(t, err)
	assert.Equal(t, ProtoIcmpv6, got.NextHeader.Protocol)
	assert.Len(t, got.ExtensionHeaders, 1)
	assert.Equal(t, []HopByHopOption{{RouterAlert: RouterAlertMld}}, got.ExtensionHeaders[0].Options)
	assert.Equal(t, p.Payload, got.Payload)
}

func TestExtensionHeaderPaddedToEightBytes(t *testing.T) {
	eh := ExtensionHeader{Options: []HopByHopOption{{RouterAlert: RouterAlertMld}}}
	assert.Equal(t, 8, eh.encodedLen(), "2-byte prefix + one 4-byte option rounds up to 8")
}

func TestEncodeToPanicsOnUnsetNextHeader(t *testing.T) {
	p := NewBuilder().Src(mustIpv6(t, "::1")).Dest(mustIpv6(t, "::2")).Build()
	assert.Panics(t, func() { p.Encode() })
}

func TestParseRejectsWrongVersion(t *testing.T) {
	buf := make([]byte, fixedHeaderLen)
	buf[0] = 0x40 // version 4
	_, err := Parse(buf)
	assert.Error(t, err)
}

func TestParseRejectsTruncatedExtensionHeader(t *testing.T) {
	p := NewBuilder().
		Protocol(ProtoUdp).
		Src(mustIpv6(t, "::1")).
		Dest(mustIpv6(t, "::2")).
		ExtensionHeader(ExtensionHeader{Options: []HopByHopOption{{RouterAlert: RouterAlertMld}}}).
		Payload(nil).
		Build()
	buf := p.Encode()
	_, err := Parse(buf[:fixedHeaderLen+4])
	assert.Error(t, err)
}

func TestDispatchKeyIsNextHeader(t *testing.T) {
	p := NewBuilder().Protocol(ProtoUdp).Src(mustIpv6(t, "::1")).Dest(mustIpv6(t, "::2")).Build()
	assert.Equal(t, Proto(ProtoUdp), p.DispatchKey())
}
