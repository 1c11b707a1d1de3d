package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedEncoder struct{ b []byte }

func (f fixedEncoder) EncodedLen() int     { return len(f.b) }
func (f fixedEncoder) EncodeTo(buf []byte) { copy(buf, f.b) }

func TestEncode(t *testing.T) {
	e := fixedEncoder{b: []byte{1, 2, 3}}
	assert.Equal(t, []byte{1, 2, 3}, Encode(e))
}

func TestEncodeAll(t *testing.T) {
	a := fixedEncoder{b: []byte{1, 2}}
	b := fixedEncoder{b: []byte{3, 4, 5}}
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, EncodeAll(a, b))
}

func TestRoundUpToNext(t *testing.T) {
	cases := []struct{ n, a, want int }{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{3, 4, 4},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, RoundUpToNext(c.n, c.a))
	}
}

func TestChecksumRoundTrip(t *testing.T) {
	// A well-known example: RFC 1071's worked example header.
	data := []byte{0x45, 0x00, 0x00, 0x73, 0x00, 0x00, 0x40, 0x00, 0x40, 0x11, 0x00, 0x00, 0xc0, 0xa8, 0x00, 0x01, 0xc0, 0xa8, 0x00, 0xc7}
	cs := Checksum(data)
	PutUint16(data[10:12], cs)
	assert.True(t, ValidateChecksum(data))
}

func TestValidateChecksumRejectsCorruption(t *testing.T) {
	data := []byte{0x45, 0x00, 0x00, 0x73, 0x00, 0x00, 0x40, 0x00, 0x40, 0x11, 0x00, 0x00, 0xc0, 0xa8, 0x00, 0x01, 0xc0, 0xa8, 0x00, 0xc7}
	cs := Checksum(data)
	PutUint16(data[10:12], cs)
	data[0] ^= 0xff
	assert.False(t, ValidateChecksum(data))
}

func TestUint16Uint32RoundTrip(t *testing.T) {
	buf16 := make([]byte, 2)
	PutUint16(buf16, 0xbeef)
	assert.Equal(t, uint16(0xbeef), Uint16(buf16))

	buf32 := make([]byte, 4)
	PutUint32(buf32, 0xdeadbeef)
	assert.Equal(t, uint32(0xdeadbeef), Uint32(buf32))
}
