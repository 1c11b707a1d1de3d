// Package arpserver implements the ARP responder actor (C8): it owns
// a set of IPv4 addresses to answer for and replies to ARP requests
// targeting them, grounded on
// original_source/src/protocols/arp.rs's ArpServer.
package arpserver

import (
	"sync"

	"github.com/mistsys/fakenet/internal/addr"
	"github.com/mistsys/fakenet/internal/proto/arp"
	"github.com/mistsys/fakenet/internal/proto/ether"
	"github.com/mistsys/fakenet/internal/status"
	"github.com/sirupsen/logrus"
)

// Server answers ARP requests for a configured, mutable set of IPv4
// addresses.
type Server struct {
	mac addr.Mac

	mu        sync.RWMutex
	addresses map[addr.Ipv4]struct{}

	inbound  <-chan ether.Frame
	outbound chan<- ether.Frame
	log      *logrus.Entry
	status   *status.Emitter
}

// New constructs the actor. inbound must already be registered with
// the caller's dispatcher under ether.TypeArp; outbound is typically
// the sender returned by an iface.Iface's Writer().
func New(mac addr.Mac, inbound <-chan ether.Frame, outbound chan<- ether.Frame, log *logrus.Entry, st *status.Emitter) *Server {
	return &Server{
		mac:       mac,
		addresses: make(map[addr.Ipv4]struct{}),
		inbound:   inbound,
		outbound:  outbound,
		log:       log,
		status:    st,
	}
}

// Add registers an IPv4 address this server should answer ARP
// requests for. Safe to call concurrently with Run.
func (s *Server) Add(ip addr.Ipv4) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[ip] = struct{}{}
	if s.status != nil {
		s.status.Build("arp.address_added").Field("address", ip.String()).Write()
	}
}

func (s *Server) answers(ip addr.Ipv4) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.addresses[ip]
	return ok
}

// Run blocks processing inbound ARP-tagged frames until inbound is
// closed, matching spec.md's ChannelClosed disposition: exit the actor
// loop cleanly.
func (s *Server) Run() {
	for frame := range s.inbound {
		req, err := arp.Parse(frame.Payload)
		if err != nil {
			s.log.WithError(err).Warn("arpserver: dropping malformed packet")
			continue
		}
		if req.Opcode != arp.OpRequest {
			continue
		}
		if !s.answers(req.DestIpv4) {
			continue
		}

		reply := arp.Packet{
			Opcode:   arp.OpReply,
			SrcMac:   s.mac,
			SrcIpv4:  req.DestIpv4,
			DestMac:  req.SrcMac,
			DestIpv4: req.SrcIpv4,
		}
		out := ether.Frame{
			Dest:      req.SrcMac,
			Src:       s.mac,
			EtherType: ether.TypeArp,
			Payload:   reply.Encode(),
		}
		s.outbound <- out
	}
}
