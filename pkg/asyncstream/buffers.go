package asyncstream

import (
	"github.com/stingraykit/toolkit/pkg/core/failfast"
	"github.com/stingraykit/toolkit/pkg/ringbuf"
)

// bufferSet is the deque of ring buffers. New writes reserve from the
// front (newest); the writer drains the back (oldest). A buffer is dropped
// only by a queued pop-buffer op, which runs after every write holding a
// range of it.
type bufferSet struct {
	bufs   []*ringbuf.Buffer
	nextID uint64
}

func (b *bufferSet) len() int { return len(b.bufs) }

func (b *bufferSet) empty() bool { return len(b.bufs) == 0 }

func (b *bufferSet) front() *ringbuf.Buffer {
	failfast.If(len(b.bufs) > 0, "no ring buffer allocated")
	return b.bufs[0]
}

func (b *bufferSet) back() *ringbuf.Buffer {
	failfast.If(len(b.bufs) > 0, "no ring buffer allocated")
	return b.bufs[len(b.bufs)-1]
}

// pushFront allocates a buffer of size bytes and makes it the front
func (b *bufferSet) pushFront(size int) *ringbuf.Buffer {
	b.nextID++
	buf := ringbuf.New(b.nextID, size)
	b.bufs = append([]*ringbuf.Buffer{buf}, b.bufs...)
	return buf
}

// popBack drops the drained back buffer
func (b *bufferSet) popBack() {
	failfast.If(len(b.bufs) > 1, "cannot drop the only ring buffer")
	last := b.bufs[len(b.bufs)-1]
	failfast.If(last.Used() == 0, "dropping ring buffer %d with %d pending bytes", last.ID(), last.Used())
	b.bufs[len(b.bufs)-1] = nil
	b.bufs = b.bufs[:len(b.bufs)-1]
}

// resolve finds a live buffer by id
func (b *bufferSet) resolve(id uint64) *ringbuf.Buffer {
	for _, buf := range b.bufs {
		if buf.ID() == id {
			return buf
		}
	}
	panic(&failfast.InvariantError{Message: "write op refers to a dropped ring buffer"})
}
