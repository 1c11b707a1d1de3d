// Package config parses the command-line configuration surface:
// the TAP device name pattern, the virtual interface's MAC address,
// the IPv4 addresses it should answer ARP for, and the ambient log
// level, following coredhcp/coredhcp's pflag-based flag parsing for a
// small single-binary daemon.
package config

import (
	"github.com/mistsys/fakenet/internal/addr"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config is the fully-parsed, validated configuration for one run of
// the daemon.
type Config struct {
	Interface     string
	EtherAddress  addr.Mac
	Ipv4Addresses []addr.Ipv4
	LogLevel      string
}

// ErrMissingEtherAddress marks a run invoked without the required
// --ether-address flag.
var ErrMissingEtherAddress = errors.New("--ether-address is required")

// Parse parses args (typically os.Args[1:]) into a Config, following
// spec.md §6's external configuration surface: one MAC address, zero
// or more IPv4 addresses to answer for, and a TAP device name
// pattern.
func Parse(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("fakenet", pflag.ContinueOnError)

	iface := fs.StringP("interface", "i", "tap%d", "TAP device name pattern passed to the kernel")
	mac := fs.StringP("ether-address", "m", "", "MAC address of the virtual interface (required)")
	ipv4s := fs.StringSliceP("ipv4-address", "a", nil, "IPv4 address to answer ARP requests for (repeatable)")
	level := fs.StringP("log-level", "l", "info", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "parsing command-line flags failed")
	}

	if *mac == "" {
		return nil, ErrMissingEtherAddress
	}
	etherAddress, err := addr.ParseMac(*mac)
	if err != nil {
		return nil, errors.Wrap(err, "parsing --ether-address failed")
	}

	ipv4Addresses := make([]addr.Ipv4, 0, len(*ipv4s))
	for _, s := range *ipv4s {
		a, err := addr.ParseIpv4(s)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing --ipv4-address %q failed", s)
		}
		ipv4Addresses = append(ipv4Addresses, a)
	}

	return &Config{
		Interface:     *iface,
		EtherAddress:  etherAddress,
		Ipv4Addresses: ipv4Addresses,
		LogLevel:      *level,
	}, nil
}
