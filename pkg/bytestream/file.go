package bytestream

import (
	"context"
	"io"
	"os"
)

// FileStream adapts an *os.File to ByteStream and Syncer
type FileStream struct {
	f *os.File
}

// NewFileStream wraps f. The stream does not take ownership beyond Close.
func NewFileStream(f *os.File) *FileStream {
	return &FileStream{f: f}
}

// OpenFile opens (creating if needed) path for read/write without truncation
func OpenFile(path string) (*FileStream, error) {
	// #nosec G304 -- path is provided by the caller.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileStream{f: f}, nil
}

// Write writes p at the current file offset
func (s *FileStream) Write(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.f.Write(p)
}

// Seek moves the file offset
func (s *FileStream) Seek(offset int64, mode SeekMode) error {
	var whence int
	switch mode {
	case SeekBegin:
		whence = io.SeekStart
	case SeekCurrent:
		whence = io.SeekCurrent
	case SeekEnd:
		whence = io.SeekEnd
	default:
		return ErrInvalidSeekMode
	}
	_, err := s.f.Seek(offset, whence)
	return err
}

// Tell returns the current file offset
func (s *FileStream) Tell() (int64, error) {
	return s.f.Seek(0, io.SeekCurrent)
}

// Sync flushes the file to stable storage
func (s *FileStream) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.f.Sync()
}

// File returns the wrapped file
func (s *FileStream) File() *os.File {
	return s.f
}

// Close closes the wrapped file
func (s *FileStream) Close() error {
	return s.f.Close()
}

var (
	_ ByteStream = (*FileStream)(nil)
	_ Syncer     = (*FileStream)(nil)
)
