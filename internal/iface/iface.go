// Package iface implements the TAP interface adapter (C5): it bridges
// the TAP file descriptor to typed read/write channels. A reader
// thread decodes Ethernet frames and dispatches them; a writer path
// alerts the reader thread via a self-pipe so one OS thread remains
// the sole owner of (and sole blocking waiter on) the TAP fd. Grounded
// on original_source/src/protocols/ether.rs's TapInterface/start(),
// with the device itself opened through internal/tuntap (adapted from
// mistsys-tuntap).
package iface

import (
	"net"
	"runtime"

	"github.com/mistsys/fakenet/internal/addr"
	"github.com/mistsys/fakenet/internal/dispatch"
	"github.com/mistsys/fakenet/internal/proto/ether"
	"github.com/mistsys/fakenet/internal/tuntap"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// outboundCapacity is the bounded-channel convention spec.md §5 uses
// at every boundary.
const outboundCapacity = 1024

// Iface is an open TAP device bridged into the dispatcher world.
type Iface struct {
	tap        *tuntap.Interface
	mac        addr.Mac
	dispatcher *dispatch.Map[ether.Type, ether.Frame]
	log        *logrus.Entry

	outbound  chan ether.Frame
	pipeRead  int
	pipeWrite int
	fatal     func(error)
}

// Open opens the TAP device, sets its MTU to 1500 (FrameSize - 14) and
// optionally overrides its MAC address, and prepares (but does not yet
// start) the self-pipe bridge.
//
// fatal is invoked (and the reader loop exits) on a TAP read/write
// failure -- spec.md's FatalSystem disposition: the stack cannot
// operate without its TAP.
func Open(ifPattern string, mac addr.Mac, log *logrus.Entry, fatal func(error)) (*Iface, error) {
	tap, err := tuntap.Open(ifPattern)
	if err != nil {
		return nil, errors.Wrap(err, "iface: opening tap device failed")
	}
	if err := tap.SetMTU(tuntap.FrameSize - 14); err != nil {
		tap.Close()
		return nil, errors.Wrap(err, "iface: setting tap mtu failed")
	}
	if mac != (addr.Mac{}) {
		if err := tap.SetHWAddr(mac); err != nil {
			tap.Close()
			return nil, errors.Wrap(err, "iface: setting tap hardware address failed")
		}
	}
	hw, err := tap.HWAddr()
	if err != nil {
		tap.Close()
		return nil, errors.Wrap(err, "iface: reading tap hardware address failed")
	}

	var p [2]int
	if err := unixPipe(&p); err != nil {
		tap.Close()
		return nil, errors.Wrap(err, "iface: creating self-pipe failed")
	}
	if err := unix.SetNonblock(p[0], true); err != nil {
		tap.Close()
		return nil, errors.Wrap(err, "iface: setting self-pipe nonblocking failed")
	}

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if fatal == nil {
		fatal = func(err error) { log.WithError(err).Fatal("iface: fatal tap error") }
	}

	return &Iface{
		tap:        tap,
		mac:        hw,
		dispatcher: dispatch.NewMap[ether.Type, ether.Frame](log),
		log:        log,
		outbound:   make(chan ether.Frame, outboundCapacity),
		pipeRead:   p[0],
		pipeWrite:  p[1],
		fatal:      fatal,
	}, nil
}

func unixPipe(p *[2]int) error {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return err
	}
	p[0], p[1] = fds[0], fds[1]
	return nil
}

// Name is the OS-assigned TAP interface name.
func (t *Iface) Name() string { return t.tap.Name() }

// MAC is the TAP interface's hardware address.
func (t *Iface) MAC() addr.Mac { return t.mac }

// Addrs lists the addresses the OS currently holds on the TAP
// interface, passed through to internal/tuntap so internal/ipv6actor
// can notice a pre-existing address before running DAD for the same
// one.
func (t *Iface) Addrs() ([]net.IP, error) { return t.tap.Addrs() }

// SetIPv6SLAAC enables or disables the kernel's own IPv6 autoconf on
// the TAP device, passed through to internal/tuntap.
func (t *Iface) SetIPv6SLAAC(ctrl bool) error { return t.tap.SetIPv6SLAAC(ctrl) }

// SetIPv6Stack enables or disables IPv6 on the TAP device and, when
// enabling, disables kernel forwarding on it -- this stack runs its own
// address autoconfiguration (internal/ipv6actor) and never forwards, so
// the kernel's own forwarding has no job to do here.
func (t *Iface) SetIPv6Stack(enabled bool) error {
	if err := t.tap.SetIPv6Enabled(enabled); err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	return t.tap.SetIPv6Forwarding(false)
}

// AddAddress adds an IP address to the TAP device, passed through to
// internal/tuntap, so an address this stack answers ARP for is also
// reachable through the kernel's own IP stack on top of the
// TAP device.
func (t *Iface) AddAddress(ip net.IP, subnet *net.IPNet) error {
	return t.tap.AddAddress(ip, subnet)
}

// Register associates an EtherType with a channel of decoded frames,
// implementing the C11 subscriber façade for this layer.
func (t *Iface) Register(key ether.Type, ch chan ether.Frame) {
	t.dispatcher.Register(key, ch)
}

// Writer returns a fresh sender. Each call spawns a tiny relay
// goroutine that forwards frames from the returned channel into the
// adapter's internal outbound channel and wakes the reader thread by
// writing one byte into the self-pipe -- the "one byte per frame"
// invariant that keeps the self-pipe and the outbound channel in
// lock-step.
func (t *Iface) Writer() chan<- ether.Frame {
	alerter := make(chan ether.Frame, outboundCapacity)
	go func() {
		for frame := range alerter {
			t.outbound <- frame
			unix.Write(t.pipeWrite, []byte{0})
		}
	}()
	return alerter
}

// BringUp brings the TAP device up and starts the reader thread.
func (t *Iface) BringUp() error {
	if err := t.tap.Up(); err != nil {
		return errors.Wrap(err, "iface: bringing tap up failed")
	}
	go t.readLoop()
	return nil
}

// readLoop is the sole owner of (and sole blocking waiter on) the TAP
// fd: it selects on the TAP fd and the self-pipe's read end, matching
// spec.md's C5/§5 single-reader-thread design. This goroutine is
// pinned to an OS thread since it performs raw select(2)/read(2)/
// write(2) on file descriptors the Go runtime's netpoller does not
// otherwise manage for it.
func (t *Iface) readLoop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tapFd := int(t.tap.Fd())
	buf := make([]byte, tuntap.FrameSize)

	for {
		var rfds unix.FdSet
		rfds.Zero()
		rfds.Set(tapFd)
		rfds.Set(t.pipeRead)
		nfds := tapFd
		if t.pipeRead > nfds {
			nfds = t.pipeRead
		}
		_, err := unix.Select(nfds+1, &rfds, nil, nil, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			t.fatal(errors.Wrap(err, "iface: select on tap failed"))
			return
		}

		if rfds.IsSet(tapFd) {
			n, err := unix.Read(tapFd, buf)
			if err != nil {
				if err == unix.EAGAIN || err == unix.EINTR {
					// spurious wake, or a frame another reader
					// already drained; nothing to do.
				} else {
					t.fatal(errors.Wrap(err, "iface: reading tap frame failed"))
					return
				}
			} else if n > 0 {
				frame, perr := ether.Parse(buf[:n])
				if perr != nil {
					t.log.WithError(perr).Warn("iface: dropping unparseable frame")
				} else {
					t.dispatcher.Dispatch(frame)
				}
			}
		}

		if rfds.IsSet(t.pipeRead) {
			var ack [1]byte
			if _, err := unix.Read(t.pipeRead, ack[:]); err != nil && err != unix.EAGAIN {
				t.fatal(errors.Wrap(err, "iface: reading self-pipe failed"))
				return
			}
			select {
			case frame := <-t.outbound:
				if err := t.tap.WriteFrame(frame.Encode()); err != nil {
					t.fatal(errors.Wrap(err, "iface: writing tap frame failed"))
					return
				}
			default:
				// pipe byte observed before the frame was visible in
				// the channel; the next wake will pick it up.
			}
		}
	}
}

// Close shuts the TAP device and self-pipe down.
func (t *Iface) Close() error {
	unix.Close(t.pipeRead)
	unix.Close(t.pipeWrite)
	return t.tap.Close()
}
