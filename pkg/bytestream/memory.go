package bytestream

import (
	"context"
	"sync"
)

// MemoryStream is a growable in-memory ByteStream.
// Writes past the end zero-fill the gap. Safe for concurrent use.
type MemoryStream struct {
	mu   sync.Mutex
	data []byte
	pos  int64

	writes int
	syncs  int
}

// NewMemoryStream returns a stream holding a copy of initial, positioned at 0
func NewMemoryStream(initial []byte) *MemoryStream {
	return &MemoryStream{data: append([]byte(nil), initial...)}
}

func (s *MemoryStream) Write(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.pos + int64(len(p))
	if end > int64(len(s.data)) {
		grown := make([]byte, end)
		copy(grown, s.data)
		s.data = grown
	}
	copy(s.data[s.pos:end], p)
	s.pos = end
	s.writes++
	return len(p), nil
}

func (s *MemoryStream) Seek(offset int64, mode SeekMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, err := ResolveSeek(offset, mode, s.pos, int64(len(s.data)))
	if err != nil {
		return err
	}
	s.pos = pos
	return nil
}

func (s *MemoryStream) Tell() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, nil
}

// Sync only counts the call
func (s *MemoryStream) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.syncs++
	s.mu.Unlock()
	return nil
}

// Bytes returns a copy of the stream contents
func (s *MemoryStream) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

// Len returns the stream length
func (s *MemoryStream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Writes returns the number of Write calls served
func (s *MemoryStream) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Syncs returns the number of Sync calls served
func (s *MemoryStream) Syncs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncs
}

var (
	_ ByteStream = (*MemoryStream)(nil)
	_ Syncer     = (*MemoryStream)(nil)
)
