// Package ipv6actor implements the IPv6 actor (C9): SLAAC for a
// link-local address via a delay-queue-driven state machine, MLDv2
// group announcements, Neighbor Solicitation, and redispatch of
// non-ICMPv6 next headers to layer-3 subscribers. Grounded on
// original_source/src/protocols/ipv6/mod.rs's Ipv6Server (the older
// iteration, which confirms ICMPv6 is parsed for validation only) and
// spec.md §4.8 for the state machine the split sources leave implicit.
package ipv6actor

import (
	"math/rand"
	"net"
	"time"

	"github.com/mistsys/fakenet/internal/addr"
	"github.com/mistsys/fakenet/internal/delayqueue"
	"github.com/mistsys/fakenet/internal/dispatch"
	"github.com/mistsys/fakenet/internal/proto/ether"
	"github.com/mistsys/fakenet/internal/proto/icmpv6"
	"github.com/mistsys/fakenet/internal/proto/ipv6"
	"github.com/mistsys/fakenet/internal/status"
	"github.com/sirupsen/logrus"
)

// RFC 4861 timer constants governing the SLAAC state machine.
const (
	maxRtrSolicitationDelay = time.Second
	retransTimer            = time.Second
)

var linkLocalSubnet = addr.Ipv6{0xfe80, 0, 0, 0, 0, 0, 0, 0}
var allNodes = addr.Ipv6{0xff02, 0, 0, 0, 0, 0, 0, 1}
var allMldv2Routers = addr.Ipv6{0xff02, 0, 0, 0, 0, 0, 0, 0x16}

// AddressState is InterfaceAddress's lifecycle stage.
type AddressState int

const (
	StateNew AddressState = iota
	StateTentative
	StateValid
)

func (s AddressState) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateTentative:
		return "Tentative"
	case StateValid:
		return "Valid"
	default:
		return "Unknown"
	}
}

// InterfaceAddress pairs an address with its DAD lifecycle stage.
type InterfaceAddress struct {
	Address addr.Ipv6
	State   AddressState
}

// Actor owns the interface's IPv6 address state and the maintenance
// timer wheel driving it. Every field here is touched only from the
// Run goroutine -- per spec.md's concurrency model, the actor's
// interior state is exclusively owned by its own thread, no locking
// needed.
type Actor struct {
	mac addr.Mac

	inbound  <-chan ether.Frame
	outbound chan<- ether.Frame

	l3 *dispatch.Map[ipv6.NextHeader, ipv6.Packet]

	addresses map[addr.Ipv6]*InterfaceAddress
	queue     *delayqueue.DelayQueue[addr.Ipv6]

	rng       *rand.Rand
	log       *logrus.Entry
	status    *status.Emitter
	osAddrs   func() ([]net.IP, error)
}

// New constructs the actor. inbound must already be registered with
// the caller's dispatcher under ether.TypeIpv6; outbound is typically
// the sender returned by an iface.Iface's Writer(). rng drives both
// the random link-local derivation and the MAX_RTR_SOLICITATION_DELAY
// jitter -- pass a seeded *rand.Rand for deterministic tests. osAddrs,
// when non-nil, is consulted once at Start to notice an address the
// OS side of the TAP device already holds, so this actor does not run
// a redundant DAD cycle for an address the kernel has already
// validated; pass nil to always derive and probe a fresh address.
func New(mac addr.Mac, inbound <-chan ether.Frame, outbound chan<- ether.Frame, rng *rand.Rand, log *logrus.Entry, st *status.Emitter, osAddrs func() ([]net.IP, error)) *Actor {
	return &Actor{
		mac:       mac,
		inbound:   inbound,
		outbound:  outbound,
		l3:        dispatch.NewMap[ipv6.NextHeader, ipv6.Packet](log),
		addresses: make(map[addr.Ipv6]*InterfaceAddress),
		queue:     delayqueue.New[addr.Ipv6](),
		rng:       rng,
		log:       log,
		status:    st,
		osAddrs:   osAddrs,
	}
}

// RegisterSubscriber exposes the C11 registration façade for layer-3
// protocols riding over IPv6 (e.g. internal/udpstub).
func (a *Actor) RegisterSubscriber(key ipv6.NextHeader, ch chan ipv6.Packet) {
	a.l3.Register(key, ch)
}

// deriveLinkLocal draws a uniform 128-bit value, keeps its low 64
// bits as the interface ID, and combines it with fe80::/10.
func (a *Actor) deriveLinkLocal() addr.Ipv6 {
	return addr.RandomIpv6(a.rng).Suffix(64).CombineSubnet(linkLocalSubnet)
}

// Start performs step 1 of the lifecycle: derive the link-local
// address, record it as New, and schedule its first maintenance tick
// within MAX_RTR_SOLICITATION_DELAY. If the OS side of the TAP device
// already holds this exact address -- the kernel has already run its
// own DAD for it, typically a leftover from a prior run -- this actor
// skips straight to Valid instead of re-announcing and re-probing it.
func (a *Actor) Start() {
	ll := a.deriveLinkLocal()
	if a.hasOSAddress(ll) {
		a.addresses[ll] = &InterfaceAddress{Address: ll, State: StateValid}
		a.emitState(ll, StateValid)
		return
	}

	a.addresses[ll] = &InterfaceAddress{Address: ll, State: StateNew}
	a.emitState(ll, StateNew)

	delay := time.Duration(a.rng.Int63n(int64(maxRtrSolicitationDelay)))
	a.queue.PushAfter(delay, ll)
}

// hasOSAddress reports whether the OS already lists candidate among
// the TAP device's addresses.
func (a *Actor) hasOSAddress(candidate addr.Ipv6) bool {
	if a.osAddrs == nil {
		return false
	}
	osAddrs, err := a.osAddrs()
	if err != nil {
		a.log.WithError(err).Warn("ipv6actor: listing tap device addresses failed")
		return false
	}
	for _, ip := range osAddrs {
		if ip.To4() != nil {
			continue // IPv4 or IPv4-mapped; not comparable to an Ipv6
		}
		ip16 := ip.To16()
		if ip16 == nil {
			continue
		}
		parsed, _, err := addr.ParseIpv6Bytes(ip16)
		if err != nil {
			continue
		}
		if parsed == candidate {
			return true
		}
	}
	return false
}

func (a *Actor) emitState(address addr.Ipv6, state AddressState) {
	if a.status == nil {
		return
	}
	a.status.Build("ipv6.address_state").
		Field("address", address.String()).
		Field("state", state.String()).
		Write()
}

// Run is the actor's main loop: select between maintenance-queue pops
// and inbound Ethernet frames, until inbound is closed.
func (a *Actor) Run() {
	for {
		source, frame, _, ok := delayqueue.Select2(a.inbound, a.queue.Chan(), 0)
		if !ok {
			return // inbound closed: spec.md's ChannelClosed disposition
		}
		switch source {
		case delayqueue.FiredA:
			a.handleFrame(frame)
		case delayqueue.FiredB:
			maturedAddr, popped := a.queue.Pop()
			if !popped {
				continue // emptied racefully before pop; defensive no-op per spec.md §4.6
			}
			a.maintain(maturedAddr)
		}
	}
}

// maintain advances addr's state machine one step, per spec.md §4.8
// step 3.
func (a *Actor) maintain(address addr.Ipv6) {
	ia, ok := a.addresses[address]
	if !ok {
		return
	}
	switch ia.State {
	case StateNew:
		a.sendMldJoin(address)
		a.sendNeighborSolicitation(address)
		ia.State = StateTentative
		a.emitState(address, StateTentative)
		a.queue.PushAfter(retransTimer, address)
	case StateTentative:
		ia.State = StateValid
		a.emitState(address, StateValid)
	case StateValid:
		// no-op
	}
}

// sendMldJoin announces a group join with CHANGE_TO_EXCLUDE_MODE
// records -- a host joining a group reports a transition into exclude
// mode, not a steady-state MODE_IS_EXCLUDE.
func (a *Actor) sendMldJoin(address addr.Ipv6) {
	records := []icmpv6.MldV2AddressRecord{
		{RecordType: icmpv6.MldV2ChangeToExcludeMode, Address: allNodes},
		{RecordType: icmpv6.MldV2ChangeToExcludeMode, Address: address.SolicitedNodesMulticast()},
	}
	a.sendIcmpv6(address, allMldv2Routers, icmpv6.Packet{Type: icmpv6.TypeMldV2Report, Records: records})
}

func (a *Actor) sendNeighborSolicitation(address addr.Ipv6) {
	a.sendIcmpv6(addr.Unspecified, address.SolicitedNodesMulticast(), icmpv6.Packet{
		Type:   icmpv6.TypeNeighborSolicitation,
		Target: address,
	})
}

// sendIcmpv6 builds an IPv6 packet carrying msg, attaching a
// HopByHop Router-Alert(Mld) extension header iff msg is an MLDv2
// Report, and ships it.
func (a *Actor) sendIcmpv6(src, dest addr.Ipv6, msg icmpv6.Packet) {
	pseudo := icmpv6.PseudoHeader{Src: src, Dest: dest}
	body := icmpv6.Encode(pseudo, msg)

	b := ipv6.NewBuilder().
		Protocol(ipv6.ProtoIcmpv6).
		HopLimit(255).
		Src(src).
		Dest(dest).
		Payload(body)
	if msg.Type == icmpv6.TypeMldV2Report {
		b = b.ExtensionHeader(ipv6.ExtensionHeader{
			Options: []ipv6.HopByHopOption{{RouterAlert: ipv6.RouterAlertMld}},
		})
	}
	a.sendIpv6(b.Build())
}

func (a *Actor) sendIpv6(packet ipv6.Packet) {
	a.outbound <- ether.Frame{
		Dest:      packet.Dest.MulticastEtherDest(),
		Src:       a.mac,
		EtherType: ether.TypeIpv6,
		Payload:   packet.Encode(),
	}
}

// handleFrame parses an inbound Ethernet frame as IPv6 and either
// redispatches non-ICMPv6 next headers to layer-3 subscribers, or
// validates ICMPv6 (checksum only; DAD conflict handling and reactive
// replies are explicitly out of scope, see DESIGN.md's Open Question
// decisions).
func (a *Actor) handleFrame(frame ether.Frame) {
	pkt, err := ipv6.Parse(frame.Payload)
	if err != nil {
		a.log.WithError(err).Warn("ipv6actor: dropping unparseable packet")
		return
	}
	if pkt.NextHeader != ipv6.Proto(ipv6.ProtoIcmpv6) {
		a.l3.Dispatch(pkt)
		return
	}
	pseudo := icmpv6.PseudoHeader{Src: pkt.Src, Dest: pkt.Dest}
	if _, err := icmpv6.Parse(pseudo, pkt.Payload); err != nil {
		a.log.WithError(err).Warn("ipv6actor: dropping invalid icmpv6 packet")
	}
}
