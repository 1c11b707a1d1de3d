//go:build !linux

package tuntap

import "errors"

var errNotImplemented = errors.New("tuntap: not implemented on this platform")

func createInterface(ifPattern string) (*Interface, error) {
	return nil, errNotImplemented
}

func (t *Interface) SetMTU(mtu int) error { return errNotImplemented }
func (t *Interface) Up() error            { return errNotImplemented }
