package addr

import "github.com/pkg/errors"

// ErrConfiguration marks an address string that failed to parse --
// spec.md's ConfigurationError category, surfaced to the caller at
// construction time.
var ErrConfiguration = errors.New("invalid address")

// ErrShortBuffer marks a wire buffer too short to contain the address
// being decoded.
var ErrShortBuffer = errors.New("short buffer")
