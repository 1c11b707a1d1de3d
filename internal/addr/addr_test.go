package addr

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMacParseAndString(t *testing.T) {
	m, err := ParseMac("aa:bb:cc:dd:ee:ff")
	assert.NoError(t, err)
	assert.Equal(t, Mac{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, m)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", m.String())
}

func TestMacParseRejectsMalformed(t *testing.T) {
	_, err := ParseMac("not-a-mac")
	assert.Error(t, err)
}

func TestMacRandomIsLocallyAdministeredUnicast(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := RandomMac(rng)
	assert.Equal(t, byte(0), m[0]&0x01, "unicast bit must be clear")
	assert.Equal(t, byte(0x02), m[0]&0x02, "locally-administered bit must be set")
}

func TestIpv4ParseAndString(t *testing.T) {
	a, err := ParseIpv4("192.168.0.1")
	assert.NoError(t, err)
	assert.Equal(t, Ipv4{192, 168, 0, 1}, a)
	assert.Equal(t, "192.168.0.1", a.String())
}

func TestIpv4RejectsLeadingZero(t *testing.T) {
	_, err := ParseIpv4("192.168.00.1")
	assert.Error(t, err)
}

func TestIpv4RejectsOutOfRange(t *testing.T) {
	_, err := ParseIpv4("192.168.0.256")
	assert.Error(t, err)
}

func TestIpv4RejectsWrongPartCount(t *testing.T) {
	_, err := ParseIpv4("192.168.1")
	assert.Error(t, err)
}

func TestIpv6ParseAndStringRoundTrip(t *testing.T) {
	cases := []string{
		"2001:db8::1",
		"::1",
		"fe80::",
		"::",
		"2001:db8:0:0:1:0:0:1",
	}
	for _, s := range cases {
		a, err := ParseIpv6(s)
		assert.NoError(t, err, s)
		back, err := ParseIpv6(a.String())
		assert.NoError(t, err, s)
		assert.Equal(t, a, back, s)
	}
}

func TestIpv6StringElidesLongestRun(t *testing.T) {
	a, err := ParseIpv6("2001:db8:0:0:1:0:0:1")
	assert.NoError(t, err)
	// Two runs of length 2 tie; the earlier one (index 2..4) wins.
	assert.Equal(t, "2001:db8::1:0:0:1", a.String())
}

func TestIpv6StringLeadingElision(t *testing.T) {
	a, err := ParseIpv6("::1")
	assert.NoError(t, err)
	assert.Equal(t, "::1", a.String())
}

func TestIpv6StringTrailingElision(t *testing.T) {
	a, err := ParseIpv6("fe80::")
	assert.NoError(t, err)
	assert.Equal(t, "fe80::", a.String())
}

func TestIpv6StringAllZero(t *testing.T) {
	assert.Equal(t, "::", Unspecified.String())
}

func TestIpv6ParseRejectsDoubleContraction(t *testing.T) {
	_, err := ParseIpv6("2001::db8::1")
	assert.Error(t, err)
}

func TestIpv6ParseRejectsTooManyGroups(t *testing.T) {
	_, err := ParseIpv6("1:2:3:4:5:6:7:8:9")
	assert.Error(t, err)
}

func TestIpv6EncodeDecodeRoundTrip(t *testing.T) {
	a, err := ParseIpv6("2001:db8::1")
	assert.NoError(t, err)
	buf := make([]byte, a.EncodedLen())
	a.EncodeTo(buf)
	got, rest, err := ParseIpv6Bytes(buf)
	assert.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, a, got)
}

func TestIpv6PrefixAndSuffix(t *testing.T) {
	a, err := ParseIpv6("2001:db8:1234:5678:9abc:def0:1234:5678")
	assert.NoError(t, err)

	prefix, err := ParseIpv6("2001:db8::")
	assert.NoError(t, err)
	assert.Equal(t, prefix, a.Prefix(32))

	suffix := a.Suffix(24)
	// low 24 bits of 0x...1234:5678 is 0x345678
	want, err := ParseIpv6("::34:5678")
	assert.NoError(t, err)
	assert.Equal(t, want, suffix)
}

func TestIpv6CombineSubnet(t *testing.T) {
	ifid, err := ParseIpv6("::1")
	assert.NoError(t, err)
	subnet, err := ParseIpv6("fe80::")
	assert.NoError(t, err)
	want, err := ParseIpv6("fe80::1")
	assert.NoError(t, err)
	assert.Equal(t, want, ifid.CombineSubnet(subnet))
}

func TestIpv6CombineSubnetPanicsOnOverlap(t *testing.T) {
	a, _ := ParseIpv6("::1:0:0:0:0")
	b, _ := ParseIpv6("fe80::1")
	assert.Panics(t, func() { a.CombineSubnet(b) })
}

func TestIpv6SolicitedNodesMulticast(t *testing.T) {
	a, err := ParseIpv6("2001:db8::1:2:3")
	assert.NoError(t, err)
	want, err := ParseIpv6("ff02::1:ff02:3")
	assert.NoError(t, err)
	assert.Equal(t, want, a.SolicitedNodesMulticast())
}

func TestIpv6MulticastEtherDest(t *testing.T) {
	a, err := ParseIpv6("ff02::1:ff02:3")
	assert.NoError(t, err)
	assert.Equal(t, Mac{0x33, 0x33, 0xff, 0x02, 0x00, 0x03}, a.MulticastEtherDest())
}
