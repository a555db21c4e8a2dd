package asyncstream

import (
	"errors"
	"fmt"

	"github.com/stingraykit/toolkit/pkg/bytestream"
)

// Errors.
var (
	ErrInvalidConfiguration = errors.New("asyncstream: invalid configuration")
	ErrBackpressure         = errors.New("asyncstream: ring buffer full")
	ErrBroken               = errors.New("asyncstream: stream broken by a previous failure")
	ErrClosed               = bytestream.ErrClosed
	ErrNegativeSeek         = bytestream.ErrNegativeSeek
)

func brokenError(cause error) error {
	return fmt.Errorf("%w: %w", ErrBroken, cause)
}

func invalidConfig(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
