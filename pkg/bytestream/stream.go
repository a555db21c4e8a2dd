// Package bytestream defines the synchronous, seekable byte stream contract
// and a few concrete streams (file, memory, SQL pages).
package bytestream

import (
	"context"
	"errors"
	"fmt"
)

// SeekMode selects the origin of a Seek offset
type SeekMode int

const (
	// SeekBegin seeks relative to the start of the stream
	SeekBegin SeekMode = iota
	// SeekCurrent seeks relative to the current position
	SeekCurrent
	// SeekEnd seeks relative to the end of the stream
	SeekEnd
)

func (m SeekMode) String() string {
	switch m {
	case SeekBegin:
		return "begin"
	case SeekCurrent:
		return "current"
	case SeekEnd:
		return "end"
	default:
		return fmt.Sprintf("SeekMode(%d)", int(m))
	}
}

// ByteStream is a synchronous, seekable byte sink.
//
// Write may accept fewer bytes than offered without returning an error;
// callers retry the remainder. Write, Seek and Tell are not required to be
// safe for concurrent use.
type ByteStream interface {
	Write(ctx context.Context, p []byte) (int, error)
	Seek(offset int64, mode SeekMode) error
	Tell() (int64, error)
}

// Syncer is implemented by streams able to make written data durable
type Syncer interface {
	Sync(ctx context.Context) error
}

// Errors.
var (
	ErrNegativeSeek    = errors.New("bytestream: seek to a negative position")
	ErrInvalidSeekMode = errors.New("bytestream: invalid seek mode")
	ErrClosed          = errors.New("bytestream: stream closed")
)

// ResolveSeek computes the absolute position a Seek would move to
func ResolveSeek(offset int64, mode SeekMode, current, length int64) (int64, error) {
	var pos int64
	switch mode {
	case SeekBegin:
		pos = offset
	case SeekCurrent:
		pos = current + offset
	case SeekEnd:
		pos = length + offset
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidSeekMode, int(mode))
	}
	if pos < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeSeek, pos)
	}
	return pos, nil
}
