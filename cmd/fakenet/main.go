// Command fakenet drives a userspace Ethernet/ARP/IPv6/ICMPv6/MLDv2
// stack over a Linux TAP device: it wires the configuration, the TAP
// interface adapter, and the ARP and IPv6 actors together and runs
// until signaled to stop.
package main

import (
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mistsys/fakenet/internal/arpserver"
	"github.com/mistsys/fakenet/internal/config"
	"github.com/mistsys/fakenet/internal/iface"
	"github.com/mistsys/fakenet/internal/ipv6actor"
	"github.com/mistsys/fakenet/internal/logging"
	"github.com/mistsys/fakenet/internal/proto/ether"
	"github.com/mistsys/fakenet/internal/proto/ipv6"
	"github.com/mistsys/fakenet/internal/status"
	"github.com/mistsys/fakenet/internal/udpstub"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString("fakenet: " + err.Error() + "\n")
		os.Exit(2)
	}

	log := logging.New(cfg.LogLevel)
	statusLog := logging.New(cfg.LogLevel)
	st := status.NewEmitter(statusLog)
	entry := log.WithField("component", "fakenet")

	fatal := func(err error) {
		entry.WithError(err).Error("fatal tap error")
		os.Exit(1)
	}

	tap, err := iface.Open(cfg.Interface, cfg.EtherAddress, entry, fatal)
	if err != nil {
		entry.WithError(err).Fatal("opening tap device failed")
	}
	defer tap.Close()

	entry = entry.WithField("interface", tap.Name())
	entry.WithField("mac", tap.MAC().String()).Info("tap device opened")

	arpInbound := make(chan ether.Frame, 64)
	tap.Register(ether.TypeArp, arpInbound)
	arp := arpserver.New(tap.MAC(), arpInbound, tap.Writer(), entry.WithField("actor", "arp"), st)
	for _, ip := range cfg.Ipv4Addresses {
		arp.Add(ip)
		netIP := net.IPv4(ip[0], ip[1], ip[2], ip[3])
		subnet := &net.IPNet{IP: netIP, Mask: net.CIDRMask(32, 32)}
		if err := tap.AddAddress(netIP, subnet); err != nil {
			entry.WithError(err).WithField("address", ip.String()).Warn("adding ipv4 address to tap device failed")
		}
	}
	go arp.Run()

	ipv6Inbound := make(chan ether.Frame, 64)
	tap.Register(ether.TypeIpv6, ipv6Inbound)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	v6 := ipv6actor.New(tap.MAC(), ipv6Inbound, tap.Writer(), rng, entry.WithField("actor", "ipv6"), st, tap.Addrs)

	udpInbound := make(chan ipv6.Packet, 64)
	v6.RegisterSubscriber(ipv6.Proto(ipv6.ProtoUdp), udpInbound)
	stub := udpstub.New(udpInbound, entry.WithField("actor", "udpstub"))
	go stub.Run()

	v6.Start()
	go v6.Run()

	// This program performs its own SLAAC; disable the kernel's so the
	// two don't race over the same link-local address. IPv6 itself
	// stays enabled (this adapter needs the kernel to pass ICMPv6/MLD
	// frames through to the TAP fd), with kernel forwarding off since
	// this stack never forwards.
	if err := tap.SetIPv6SLAAC(false); err != nil {
		entry.WithError(err).Warn("disabling kernel ipv6 autoconf failed")
	}
	if err := tap.SetIPv6Stack(true); err != nil {
		entry.WithError(err).Warn("configuring kernel ipv6 stack on tap device failed")
	}

	if err := tap.BringUp(); err != nil {
		entry.WithError(err).Fatal("bringing tap device up failed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	entry.Info("shutting down")
}
