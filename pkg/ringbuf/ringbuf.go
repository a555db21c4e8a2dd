// Package ringbuf provides a fixed-size single-producer/single-consumer
// circular byte buffer.
//
// One goroutine owns the writer side (Writer/Push), another owns the reader
// side (Reader/Pop). Cursors are monotonic atomic counters, so the two sides
// never need a shared lock. Both spans handed out are contiguous: a span never
// wraps around the end of the backing array, the caller simply asks again
// after consuming it.
//
// Memory is allocated once at construction time. Ranges into the buffer are
// expressed as (offset, size) pairs and resolved with Bytes, so holders of a
// range never keep a slice alive past the buffer itself.
package ringbuf

import (
	"sync/atomic"

	"github.com/stingraykit/toolkit/pkg/core/failfast"
)

// Buffer is a fixed-size circular byte buffer
type Buffer struct {
	id   uint64
	data []byte

	head atomic.Uint64 // total bytes pushed, advanced by the writer
	tail atomic.Uint64 // total bytes popped, advanced by the reader
}

// New allocates a buffer of size bytes. The id is opaque to the buffer and
// lets callers refer to it without holding a pointer.
func New(id uint64, size int) *Buffer {
	failfast.If(size > 0, "ring buffer size must be positive, got %d", size)
	return &Buffer{
		id:   id,
		data: make([]byte, size),
	}
}

// ID returns the id given to New
func (b *Buffer) ID() uint64 { return b.id }

// Size returns the capacity in bytes
func (b *Buffer) Size() int { return len(b.data) }

// Used returns the number of pushed but not yet popped bytes
func (b *Buffer) Used() int {
	return int(b.head.Load() - b.tail.Load())
}

// Free returns the total number of bytes that can still be pushed.
// Not all of them are necessarily contiguous, see Writer.
func (b *Buffer) Free() int {
	return len(b.data) - b.Used()
}

// Bytes resolves an (offset, size) range into a slice of the backing array
func (b *Buffer) Bytes(offset, size int) []byte {
	failfast.If(offset >= 0 && size >= 0 && offset+size <= len(b.data),
		"range [%d:%d] out of ring buffer bounds %d", offset, offset+size, len(b.data))
	return b.data[offset : offset+size : offset+size]
}

// Writer returns the contiguous free span at the writer cursor
func (b *Buffer) Writer() Writer {
	head := b.head.Load()
	free := len(b.data) - int(head-b.tail.Load())
	pos := int(head % uint64(len(b.data)))
	return Writer{b: b, offset: pos, size: min(free, len(b.data)-pos)}
}

// Reader returns the contiguous filled span at the reader cursor
func (b *Buffer) Reader() Reader {
	tail := b.tail.Load()
	used := int(b.head.Load() - tail)
	pos := int(tail % uint64(len(b.data)))
	return Reader{b: b, offset: pos, size: min(used, len(b.data)-pos)}
}

// Writer is a snapshot of the free span available to the producer
type Writer struct {
	b      *Buffer
	offset int
	size   int
}

// Offset is the position of the span inside the buffer
func (w Writer) Offset() int { return w.offset }

// Size is the number of contiguous free bytes
func (w Writer) Size() int { return w.size }

// Bytes returns the free span for filling
func (w Writer) Bytes() []byte { return w.b.Bytes(w.offset, w.size) }

// Push commits n bytes of the span, making them visible to the reader
func (w Writer) Push(n int) {
	failfast.If(n >= 0 && n <= w.size, "push of %d bytes exceeds writer span %d", n, w.size)
	w.b.head.Add(uint64(n))
}

// Reader is a snapshot of the filled span available to the consumer
type Reader struct {
	b      *Buffer
	offset int
	size   int
}

// Offset is the position of the span inside the buffer
func (r Reader) Offset() int { return r.offset }

// Size is the number of contiguous filled bytes
func (r Reader) Size() int { return r.size }

// Bytes returns the filled span
func (r Reader) Bytes() []byte { return r.b.Bytes(r.offset, r.size) }

// Pop releases n bytes of the span back to the writer
func (r Reader) Pop(n int) {
	failfast.If(n >= 0 && n <= r.size, "pop of %d bytes exceeds reader span %d", n, r.size)
	r.b.tail.Add(uint64(n))
}
