//go:build linux

package tuntap

// ifReq mirrors struct ifreq's TUNSETIFF-relevant prefix (linux/if.h).
// The teacher's types_linux.go defined this via a `// +build ignore`
// cgo-godefs template that was never actually compiled while
// tun_linux.go referenced it as a real type; this is a plain,
// always-compiled replacement with the same layout.
type ifReq struct {
	Name [16]byte
	Flags uint16
	pad   [22]byte // ifReq is sizeof(struct ifreq) == 40 bytes on amd64
}
