package udpstub

import (
	"testing"
	"time"

	"github.com/mistsys/fakenet/internal/addr"
	"github.com/mistsys/fakenet/internal/proto/ipv6"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestStubDiscardsPackets(t *testing.T) {
	inbound := make(chan ipv6.Packet, 1)
	s := New(inbound, logrus.NewEntry(logrus.New()))

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	inbound <- ipv6.Packet{Src: addr.Ipv6{0x2001, 0xdb8}, NextHeader: ipv6.Proto(ipv6.ProtoUdp)}
	close(inbound)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after inbound closed")
	}
}

func TestStubDispatchKeyIsUdp(t *testing.T) {
	pkt := ipv6.Packet{NextHeader: ipv6.Proto(ipv6.ProtoUdp)}
	assert.Equal(t, ipv6.Proto(ipv6.ProtoUdp), pkt.DispatchKey())
}
