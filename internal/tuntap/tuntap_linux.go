//-----------------------------------------------------------------------------
/*

Copyright Juniper Networks Inc. 2015-2022. All rights reserved.

*/
//-----------------------------------------------------------------------------

//go:build linux

package tuntap

import (
	"net"
	"os"
	"strings"
	"syscall"
	"unsafe"

	"github.com/mistsys/fakenet/internal/addr"
	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

const tunPath = "/dev/net/tun"

// createInterface opens /dev/net/tun and attaches it as a TAP device,
// adapted directly from mistsys-tuntap/tun_linux.go's createInterface
// (open-ioctl-nonblock-wrap sequence; see that file's comment on why
// the fd must be put in nonblocking mode before being wrapped in
// os.File for Go's netpoller to see it).
func createInterface(ifPattern string) (*Interface, error) {
	fd, err := unix.Open(tunPath, os.O_RDWR|syscall.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "tuntap: can't open %s", tunPath)
	}

	var req ifReq
	copy(req.Name[:15], ifPattern)
	req.Flags = unix.IFF_TAP | unix.IFF_NO_PI

	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(unix.TUNSETIFF), uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		unix.Close(fd)
		return nil, errors.Wrapf(errno, "tuntap: can't ioctl(TUNSETIFF) on %s", tunPath)
	}
	ifName := string(req.Name[:])
	if idx := strings.IndexByte(ifName, 0); idx >= 0 {
		ifName = ifName[:idx]
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "tuntap: can't set nonblocking mode on %s", tunPath)
	}

	file := os.NewFile(uintptr(fd), tunPath)

	return &Interface{name: ifName, file: file}, nil
}

// SetMTU sets the TAP interface's MTU, via netlink exactly as
// mistsys-tuntap/tun_linux.go's SetMTU does.
func (t *Interface) SetMTU(mtu int) error {
	link, err := netlink.LinkByName(t.Name())
	if err != nil {
		return err
	}
	return netlink.LinkSetMTU(link, mtu)
}

// Up brings the TAP interface up, via netlink exactly as
// mistsys-tuntap/tun_linux.go's Up does.
func (t *Interface) Up() error {
	link, err := netlink.LinkByName(t.Name())
	if err != nil {
		return err
	}
	return netlink.LinkSetUp(link)
}

// HWAddr returns the MAC address the kernel assigned (or that was
// configured) on the TAP interface.
func (t *Interface) HWAddr() (addr.Mac, error) {
	link, err := netlink.LinkByName(t.Name())
	if err != nil {
		return addr.Mac{}, err
	}
	hw := link.Attrs().HardwareAddr
	if len(hw) != 6 {
		return addr.Mac{}, errors.Errorf("tuntap: unexpected hardware address length %d", len(hw))
	}
	var m addr.Mac
	copy(m[:], hw)
	return m, nil
}

// SetHWAddr sets the TAP interface's link-layer address, used when
// the configured ether_address (spec.md §6) differs from the kernel's
// auto-assigned one.
func (t *Interface) SetHWAddr(mac addr.Mac) error {
	link, err := netlink.LinkByName(t.Name())
	if err != nil {
		return err
	}
	return netlink.LinkSetHardwareAddr(link, net.HardwareAddr(mac[:]))
}

// AddAddress adds an IP address to the TAP interface, unchanged from
// mistsys-tuntap/tun_linux.go's AddAddress.
func (t *Interface) AddAddress(ip net.IP, subnet *net.IPNet) error {
	link, err := netlink.LinkByName(t.Name())
	if err != nil {
		return err
	}
	return netlink.AddrAdd(link, &netlink.Addr{IPNet: &net.IPNet{IP: ip, Mask: subnet.Mask}})
}

// Addrs lists the addresses netlink currently reports for the TAP
// interface, kept from mistsys-tuntap/tun_linux.go's GetAddrList so
// internal/ipv6actor can check for a pre-existing OS-side address
// before starting DAD for the same one (supplemented feature, see
// SPEC_FULL.md §6).
func (t *Interface) Addrs() ([]net.IP, error) {
	link, err := netlink.LinkByName(t.Name())
	if err != nil {
		return nil, err
	}
	nlAddrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return nil, err
	}
	addrs := make([]net.IP, 0, len(nlAddrs))
	for _, a := range nlAddrs {
		addrs = append(addrs, a.IP)
	}
	return addrs, nil
}

func boolToByte(ctrl bool) byte {
	if ctrl {
		return '1'
	}
	return '0'
}

func writeProcSys(name, file string, value byte) error {
	path := "/proc/sys/net/ipv6/conf/" + name + "/" + file
	return os.WriteFile(path, []byte{value}, 0)
}

// SetIPv6SLAAC enables/disables the kernel's own SLAAC on the TAP
// device. internal/ipv6actor runs its own SLAAC, so cmd/fakenet
// disables the kernel's to avoid two independent actors racing over
// the same link-local address (SPEC_FULL.md §6).
func (t *Interface) SetIPv6SLAAC(ctrl bool) error {
	return writeProcSys(t.Name(), "autoconf", boolToByte(ctrl))
}

// SetIPv6Forwarding enables/disables IPv6 forwarding on the TAP
// device; internal/iface's SetIPv6Stack uses it to turn kernel
// forwarding off (routing is a spec.md Non-goal).
func (t *Interface) SetIPv6Forwarding(ctrl bool) error {
	return writeProcSys(t.Name(), "forwarding", boolToByte(ctrl))
}

// SetIPv6Enabled enables/disables IPv6 entirely on the TAP device.
func (t *Interface) SetIPv6Enabled(ctrl bool) error {
	return writeProcSys(t.Name(), "disable_ipv6", boolToByte(!ctrl))
}
