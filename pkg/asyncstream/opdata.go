package asyncstream

import (
	"fmt"

	"github.com/stingraykit/toolkit/pkg/core/failfast"
	"github.com/stingraykit/toolkit/pkg/ringbuf"
)

type opKind uint8

const (
	opWrite opKind = iota
	opSync
	opStop
	opPopBuffer
)

func (k opKind) String() string {
	switch k {
	case opWrite:
		return "write"
	case opSync:
		return "sync"
	case opStop:
		return "stop"
	case opPopBuffer:
		return "pop-buffer"
	default:
		return fmt.Sprintf("opKind(%d)", uint8(k))
	}
}

// opData is one queued operation for the writer goroutine.
//
// A write holds the range [offset, offset+size) of ring buffer bufferID.
// The first used bytes of the range carry data destined for stream offset
// arg; the rest is reserved slack later writes may merge into.
type opData struct {
	kind opKind

	bufferID uint64
	offset   int
	size     int
	used     int
	arg      int64

	ticket uint64
}

func newWriteOp(buf *ringbuf.Buffer, offset, size int, at int64) *opData {
	return &opData{kind: opWrite, bufferID: buf.ID(), offset: offset, size: size, arg: at}
}

func (o *opData) writeStart() int64 { return o.arg }

func (o *opData) writeEnd() int64 { return o.arg + int64(o.used) }

// free is the reserved capacity not yet filled
func (o *opData) free() int { return o.size - o.used }

// overlaps reports whether the pending bytes intersect [start, end)
func (o *opData) overlaps(start, end int64) bool {
	return o.writeStart() < end && start < o.writeEnd()
}

// pushWriteData copies as much of p as fits into the slack
func (o *opData) pushWriteData(buf *ringbuf.Buffer, p []byte) int {
	failfast.If(buf.ID() == o.bufferID, "write op of buffer %d resolved to buffer %d", o.bufferID, buf.ID())
	n := copy(buf.Bytes(o.offset+o.used, o.free()), p)
	o.used += n
	return n
}

// popWriteData drops n flushed bytes from the head of the range
func (o *opData) popWriteData(n int) {
	failfast.If(n >= 0 && n <= o.used, "pop of %d bytes from write op holding %d", n, o.used)
	o.offset += n
	o.size -= n
	o.used -= n
	o.arg += int64(n)
}

func (o *opData) String() string {
	switch o.kind {
	case opWrite:
		return fmt.Sprintf("write{buffer=%d range=[%d:%d) used=%d at=%d}", o.bufferID, o.offset, o.offset+o.size, o.used, o.arg)
	case opSync:
		return fmt.Sprintf("sync{ticket=%d}", o.ticket)
	default:
		return o.kind.String()
	}
}

// opQueue is the FIFO of pending operations. Retried writes go back to the
// front.
type opQueue struct {
	ops []*opData
}

func (q *opQueue) len() int { return len(q.ops) }

func (q *opQueue) pushBack(op *opData) {
	q.ops = append(q.ops, op)
}

func (q *opQueue) pushFront(op *opData) {
	q.ops = append(q.ops, nil)
	copy(q.ops[1:], q.ops)
	q.ops[0] = op
}

func (q *opQueue) popFront() *opData {
	op := q.ops[0]
	q.ops[0] = nil
	q.ops = q.ops[1:]
	if len(q.ops) == 0 {
		q.ops = q.ops[:0:0]
	}
	return op
}
