package config

import (
	"testing"

	"github.com/mistsys/fakenet/internal/addr"
	"github.com/stretchr/testify/assert"
)

func TestParseValidConfig(t *testing.T) {
	cfg, err := Parse([]string{
		"--ether-address", "02:01:02:03:04:05",
		"--ipv4-address", "10.0.0.1",
		"--ipv4-address", "10.0.0.2",
		"--log-level", "debug",
	})
	assert.NoError(t, err)
	assert.Equal(t, addr.Mac{0x02, 0x01, 0x02, 0x03, 0x04, 0x05}, cfg.EtherAddress)
	assert.Equal(t, []addr.Ipv4{{10, 0, 0, 1}, {10, 0, 0, 2}}, cfg.Ipv4Addresses)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "tap%d", cfg.Interface)
}

func TestParseRequiresEtherAddress(t *testing.T) {
	_, err := Parse([]string{"--ipv4-address", "10.0.0.1"})
	assert.ErrorIs(t, err, ErrMissingEtherAddress)
}

func TestParseRejectsInvalidMac(t *testing.T) {
	_, err := Parse([]string{"--ether-address", "not-a-mac"})
	assert.Error(t, err)
}

func TestParseRejectsInvalidIpv4(t *testing.T) {
	_, err := Parse([]string{"--ether-address", "02:01:02:03:04:05", "--ipv4-address", "999.0.0.1"})
	assert.Error(t, err)
}

func TestParseDefaultsWithNoAddresses(t *testing.T) {
	cfg, err := Parse([]string{"--ether-address", "02:01:02:03:04:05"})
	assert.NoError(t, err)
	assert.Empty(t, cfg.Ipv4Addresses)
}
