package icmpv6

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

func testPseudo(t *testing.T) PseudoHeader {
	return PseudoHeader{Src: mustIpv6(t, "fe80::1"), Dest: mustIpv6(t, "fe80::2")}
}

func TestNeighborSolicitationEncodeDecodeRoundTrip(t *testing.T) {
	pseudo := testPseudo(t)
	target := mustIpv6(t, "fe80::2")
	p := Packet{
		Type:    TypeNeighborSolicitation,
		Target:  target,
		Options: []NDOption{{Kind: NDOptionSourceLinkLayerAddress, Mac: addr.Mac{0x02, 0, 0, 0, 0, 1}}},
	}
	encoded := Encode(pseudo, p)

	got, err := Parse(pseudo, encoded)
	assert.NoError(t, err)
	assert.Equal(t, TypeNeighborSolicitation, got.Type)
	assert.Equal(t, target, got.Target)
	assert.Equal(t, p.Options, got.Options)
}

func TestNeighborAdvertisementEncodeDecodeRoundTrip(t *testing.T) {
	pseudo := testPseudo(t)
	target := mustIpv6(t, "fe80::2")
	p := Packet{
		Type:    TypeNeighborAdvertisement,
		Target:  target,
		Options: []NDOption{{Kind: NDOptionTargetLinkLayerAddress, Mac: addr.Mac{0x02, 0, 0, 0, 0, 2}}},
	}
	encoded := Encode(pseudo, p)

	got, err := Parse(pseudo, encoded)
	assert.NoError(t, err)
	assert.Equal(t, target, got.Target)
	assert.Equal(t, p.Options, got.Options)
}

func TestMldV2ReportEncodeDecodeRoundTrip(t *testing.T) {
	pseudo := testPseudo(t)
	p := Packet{
		Type: TypeMldV2Report,
		Records: []MldV2AddressRecord{
			{RecordType: MldV2ChangeToExcludeMode, Address: mustIpv6(t, "ff02::16")},
			{RecordType: MldV2CodeIsExclude, Address: mustIpv6(t, "ff02::1:ff00:1")},
		},
	}
	encoded := Encode(pseudo, p)

	got, err := Parse(pseudo, encoded)
	assert.NoError(t, err)
	assert.Equal(t, p.Records, got.Records)
}

func TestRouterSolicitationEncodeDecodeRoundTrip(t *testing.T) {
	pseudo := testPseudo(t)
	p := Packet{Type: TypeRouterSolicitation}
	encoded := Encode(pseudo, p)

	got, err := Parse(pseudo, encoded)
	assert.NoError(t, err)
	assert.Equal(t, TypeRouterSolicitation, got.Type)
}

func TestParseRejectsCorruptedChecksum(t *testing.T) {
	pseudo := testPseudo(t)
	p := Packet{Type: TypeRouterSolicitation}
	encoded := Encode(pseudo, p)
	encoded[4] ^= 0xff // corrupt a reserved byte within the checksummed body

	_, err := Parse(pseudo, encoded)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}

func TestParseRejectsWrongPseudoHeader(t *testing.T) {
	pseudo := testPseudo(t)
	p := Packet{Type: TypeRouterSolicitation}
	encoded := Encode(pseudo, p)

	wrongPseudo := PseudoHeader{Src: mustIpv6(t, "fe80::99"), Dest: pseudo.Dest}
	_, err := Parse(wrongPseudo, encoded)
	assert.Error(t, err)
}

func TestNonceOptionRoundTrip(t *testing.T) {
	pseudo := testPseudo(t)
	p := Packet{
		Type:    TypeNeighborSolicitation,
		Target:  mustIpv6(t, "fe80::2"),
		Options: []NDOption{{Kind: NDOptionNonce, Nonce: []byte{1, 2, 3, 4, 5, 6}}},
	}
	encoded := Encode(pseudo, p)

	got, err := Parse(pseudo, encoded)
	assert.NoError(t, err)
	assert.Len(t, got.Options, 1)
	assert.Equal(t, NDOptionNonce, got.Options[0].Kind)
	assert.Equal(t, p.Options[0].Nonce, got.Options[0].Nonce)
}
