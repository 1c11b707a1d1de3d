package ipv6actor

import (
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/mistsys/fakenet/internal/addr"
	"github.com/mistsys/fakenet/internal/proto/ether"
	"github.com/mistsys/fakenet/internal/proto/icmpv6"
	"github.com/mistsys/fakenet/internal/proto/ipv6"
	"github.com/mistsys/fakenet/internal/status"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// stateEvents is a logrus hook that captures every status event fired
// during a test as a channel, letting tests observe ipv6actor's state
// transitions without reaching into the actor's internals from another
// goroutine.
type stateEvents chan logrus.Fields

func (h stateEvents) Levels() []logrus.Level { return logrus.AllLevels }
func (h stateEvents) Fire(e *logrus.Entry) error {
	h <- e.Data
	return nil
}

func newTestActor() (*Actor, chan ether.Frame, chan ether.Frame, stateEvents) {
	inbound := make(chan ether.Frame, 8)
	outbound := make(chan ether.Frame, 8)
	mac := addr.Mac{0x02, 0x01, 0x02, 0x03, 0x04, 0x05}
	log := logrus.NewEntry(logrus.New())

	statusLog := logrus.New()
	events := make(stateEvents, 16)
	statusLog.AddHook(events)
	st := status.NewEmitter(statusLog)

	a := New(mac, inbound, outbound, rand.New(rand.NewSource(1)), log, st, nil)
	return a, inbound, outbound, events
}

// S3: an MLDv2 Report with two ExcludeMode records, wrapped in an IPv6
// packet carrying a HopByHop Router-Alert(Mld) extension header, round
// trips through encode/parse.
func TestMldv2ReportWithRouterAlertRoundTrip(t *testing.T) {
	group1 := addr.Ipv6{0xff05, 0, 0, 0, 0, 0, 1, 3}
	group2 := addr.Ipv6{0xff02, 0, 0, 0, 0, 0, 1, 2}

	report := icmpv6.Packet{
		Type: icmpv6.TypeMldV2Report,
		Records: []icmpv6.MldV2AddressRecord{
			{RecordType: icmpv6.MldV2CodeIsExclude, Address: group1},
			{RecordType: icmpv6.MldV2CodeIsExclude, Address: group2},
		},
	}
	pseudo := icmpv6.PseudoHeader{Src: addr.Unspecified, Dest: allMldv2Routers}
	body := icmpv6.Encode(pseudo, report)

	pkt := ipv6.NewBuilder().
		Protocol(ipv6.ProtoIcmpv6).
		HopLimit(1).
		Src(addr.Unspecified).
		Dest(allMldv2Routers).
		ExtensionHeader(ipv6.ExtensionHeader{Options: []ipv6.HopByHopOption{{RouterAlert: ipv6.RouterAlertMld}}}).
		Payload(body).
		Build()

	encoded := pkt.Encode()
	assert.Equal(t, uint8(0), encoded[6], "main header's next-header must signal HopByHopOptions")
	assert.Equal(t, uint8(0x3a), encoded[40], "extension header's next-header must be Ipv6Icmp (58)")

	parsed, err := ipv6.Parse(encoded)
	assert.NoError(t, err)
	assert.Equal(t, ipv6.Proto(ipv6.ProtoIcmpv6), parsed.NextHeader)
	assert.Len(t, parsed.ExtensionHeaders, 1)
	assert.Equal(t, ipv6.RouterAlertMld, parsed.ExtensionHeaders[0].Options[0].RouterAlert)

	parsedReport, err := icmpv6.Parse(icmpv6.PseudoHeader{Src: addr.Unspecified, Dest: allMldv2Routers}, parsed.Payload)
	assert.NoError(t, err)
	assert.Equal(t, icmpv6.TypeMldV2Report, parsedReport.Type)
	assert.Len(t, parsedReport.Records, 2)
	assert.Equal(t, group1, parsedReport.Records[0].Address)
	assert.Equal(t, group2, parsedReport.Records[1].Address)
}

// S4: a corrupted ICMPv6 message fails checksum validation with an
// error naming "checksum".
func TestIcmpv6ChecksumValidationFailure(t *testing.T) {
	msg := []byte{0x8f, 0x00, 0x11, 0x11, 0, 0, 0, 0}
	pseudo := icmpv6.PseudoHeader{Src: addr.Unspecified, Dest: addr.Unspecified}
	_, err := icmpv6.Parse(pseudo, msg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}

// handleFrame must silently validate-and-drop ICMPv6, leaving an
// inbound frame carrying a bad checksum with no observable side
// effect (no outbound traffic, no panic).
func TestHandleFrameDropsInvalidIcmpv6(t *testing.T) {
	a, _, outbound, _ := newTestActor()

	msg := []byte{0x8f, 0x00, 0x11, 0x11, 0, 0, 0, 0}
	pkt := ipv6.NewBuilder().
		Protocol(ipv6.ProtoIcmpv6).
		HopLimit(255).
		Src(addr.Unspecified).
		Dest(addr.Unspecified).
		Payload(msg).
		Build()
	frame := ether.Frame{EtherType: ether.TypeIpv6, Payload: pkt.Encode()}

	a.handleFrame(frame)

	select {
	case <-outbound:
		t.Fatal("an invalid icmpv6 packet must not produce outbound traffic")
	case <-time.After(20 * time.Millisecond):
	}
}

// S6: DAD sequence for the derived link-local address -- exactly one
// MLDv2 Report and one Neighbor Solicitation within
// MAX_RTR_SOLICITATION_DELAY, transition to Tentative, then to Valid
// after RETRANS_TIMER.
func TestDadSequenceForLinkLocal(t *testing.T) {
	a, inbound, outbound, events := newTestActor()
	a.Start()

	var ll addr.Ipv6
	for addrVal := range a.addresses {
		ll = addrVal
	}
	assert.Equal(t, uint16(0xfe80), ll[0]&0xffc0, "derived address must fall in fe80::/10")

	select {
	case fields := <-events:
		assert.Equal(t, "New", fields["state"])
		assert.Equal(t, ll.String(), fields["address"])
	case <-time.After(time.Second):
		t.Fatal("expected a New status event")
	}

	go a.Run()

	var sawReport, sawSolicitation bool
	deadline := time.After(2 * maxRtrSolicitationDelay)
	for i := 0; i < 2; i++ {
		select {
		case frame := <-outbound:
			assert.Equal(t, ether.TypeIpv6, frame.EtherType)
			pkt, err := ipv6.Parse(frame.Payload)
			assert.NoError(t, err)
			assert.Equal(t, ipv6.Proto(ipv6.ProtoIcmpv6), pkt.NextHeader)

			if pkt.Dest == allMldv2Routers {
				sawReport = true
				assert.Len(t, pkt.ExtensionHeaders, 1)
				msg, err := icmpv6.Parse(icmpv6.PseudoHeader{Src: pkt.Src, Dest: pkt.Dest}, pkt.Payload)
				assert.NoError(t, err)
				assert.Equal(t, icmpv6.TypeMldV2Report, msg.Type)
			} else {
				sawSolicitation = true
				assert.Equal(t, ll.SolicitedNodesMulticast(), pkt.Dest)
				msg, err := icmpv6.Parse(icmpv6.PseudoHeader{Src: pkt.Src, Dest: pkt.Dest}, pkt.Payload)
				assert.NoError(t, err)
				assert.Equal(t, icmpv6.TypeNeighborSolicitation, msg.Type)
				assert.Equal(t, ll, msg.Target)
			}
		case <-deadline:
			t.Fatal("expected both an MLDv2 report and a neighbor solicitation")
		}
	}
	assert.True(t, sawReport)
	assert.True(t, sawSolicitation)

	select {
	case fields := <-events:
		assert.Equal(t, "Tentative", fields["state"])
	case <-time.After(time.Second):
		t.Fatal("expected a Tentative status event")
	}

	select {
	case fields := <-events:
		assert.Equal(t, "Valid", fields["state"])
	case <-time.After(2 * retransTimer):
		t.Fatal("expected a Valid status event")
	}

	close(inbound)
}

// Start must notice when the OS side of the TAP device already holds
// the address it would otherwise derive and probe, and mark it Valid
// immediately instead of running a redundant MLDv2/NS/DAD cycle.
func TestStartSkipsDadWhenOSAlreadyHoldsAddress(t *testing.T) {
	mac := addr.Mac{0x02, 0x01, 0x02, 0x03, 0x04, 0x05}
	log := logrus.NewEntry(logrus.New())

	// A throwaway actor sharing the same rng seed tells us what Start
	// will derive, without consuming the seed the actor under test uses.
	probe := New(mac, nil, nil, rand.New(rand.NewSource(1)), log, nil, nil)
	expected := probe.deriveLinkLocal()
	buf := make([]byte, expected.EncodedLen())
	expected.EncodeTo(buf)

	osAddrs := func() ([]net.IP, error) {
		return []net.IP{net.IP(buf)}, nil
	}

	inbound := make(chan ether.Frame, 8)
	outbound := make(chan ether.Frame, 8)
	statusLog := logrus.New()
	events := make(stateEvents, 16)
	statusLog.AddHook(events)
	st := status.NewEmitter(statusLog)

	a := New(mac, inbound, outbound, rand.New(rand.NewSource(1)), log, st, osAddrs)
	a.Start()

	assert.Equal(t, StateValid, a.addresses[expected].State)

	select {
	case fields := <-events:
		assert.Equal(t, "Valid", fields["state"])
		assert.Equal(t, expected.String(), fields["address"])
	case <-time.After(time.Second):
		t.Fatal("expected a Valid status event")
	}

	select {
	case <-outbound:
		t.Fatal("an address the OS already holds must not trigger an MLDv2/NS probe")
	case <-time.After(20 * time.Millisecond):
	}

	close(inbound)
}
