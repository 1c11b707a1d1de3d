// Package udpstub is a demonstration subscriber (C11) registered
// under Ipv6NextHeader Proto(ProtoUdp): it discards every packet it
// receives. Grounded directly on
// original_source/src/protocols/udp.rs, which exists in the original
// purely to exercise the subscriber API, not to implement UDP.
package udpstub

import (
	"github.com/mistsys/fakenet/internal/proto/ipv6"
	"github.com/sirupsen/logrus"
)

// Stub discards every IPv6 packet it receives.
type Stub struct {
	inbound <-chan ipv6.Packet
	log     *logrus.Entry
}

// New constructs the stub. inbound must already be registered with an
// ipv6actor.Actor's subscriber map under ipv6.Proto(ipv6.ProtoUdp).
func New(inbound <-chan ipv6.Packet, log *logrus.Entry) *Stub {
	return &Stub{inbound: inbound, log: log}
}

// Run discards packets until inbound is closed.
func (s *Stub) Run() {
	for pkt := range s.inbound {
		s.log.WithField("src", pkt.Src.String()).Debug("udpstub: discarding packet")
	}
}
