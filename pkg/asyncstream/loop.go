package asyncstream

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stingraykit/toolkit/pkg/bytestream"
	"github.com/stingraykit/toolkit/pkg/core/failfast"
)

// run is the writer goroutine body. Whatever stops the loop other than a
// stop op becomes the permanent broken cause.
func (s *Stream) run(ctx context.Context) {
	err := s.loop(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.exited = true
	if err != nil {
		s.broken = err
		s.logger.Errorf("writer stopped, stream is broken: %v (%s)", err, s.stats)
		s.observer.OnBroken(s.name, err)
	}
	s.syncCond.Broadcast()
	s.spaceCond.Broadcast()
}

func (s *Stream) loop(ctx context.Context) (err error) {
	defer failfast.Recover(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.queue.len() == 0 {
			s.stats.IdleWaits++
			s.wake.Wait(ctx, s.opts.idleWait)
			continue
		}

		op := s.queue.popFront()
		switch op.kind {
		case opWrite:
			if err := s.flushWrite(ctx, op); err != nil {
				return err
			}
		case opSync:
			if err := s.flushSync(ctx, op); err != nil {
				return err
			}
		case opPopBuffer:
			s.buffers.popBack()
			s.logger.Debugf("dropped drained ring buffer, %d left", s.buffers.len())
		case opStop:
			return nil
		default:
			return fmt.Errorf("asyncstream: unknown op %s", op)
		}
		s.observer.OnQueueDepth(s.name, s.queue.len())
	}
}

// unlocked runs fn with mu released. mu is re-acquired even if fn panics.
func (s *Stream) unlocked(fn func()) {
	s.mu.Unlock()
	defer s.mu.Lock()
	fn()
}

func (s *Stream) flushWrite(ctx context.Context, op *opData) error {
	buf := s.buffers.back()
	r := buf.Reader()
	failfast.If(op.bufferID == buf.ID() && op.offset == r.Offset(),
		"%s does not start at reader position %d of buffer %d", op, r.Offset(), buf.ID())

	if op.used == 0 {
		r.Pop(op.size)
		s.spaceCond.Broadcast()
		return nil
	}

	data := buf.Bytes(op.offset, op.used)
	at := op.writeStart()

	var (
		n    int
		err  error
		took time.Duration
	)
	s.unlocked(func() {
		n, took, err = s.writeInner(ctx, data, at)
	})
	if err != nil {
		return fmt.Errorf("asyncstream: write %d bytes at %d: %w", len(data), at, err)
	}
	failfast.If(n >= 0 && n <= len(data), "inner stream reported %d bytes written of %d", n, len(data))

	s.stats.Syscalls++
	s.stats.BytesWritten += uint64(n)
	partial := n < op.used
	s.observer.OnFlush(s.name, n, partial, took)

	if partial {
		s.stats.PartialWrites++
		if n == 0 {
			s.zeroWrites++
			if s.zeroWrites >= maxZeroWrites {
				return fmt.Errorf("asyncstream: %d empty writes at %d: %w", s.zeroWrites, at, io.ErrNoProgress)
			}
		} else {
			s.zeroWrites = 0
		}
		r.Pop(n)
		op.popWriteData(n)
		s.queue.pushFront(op)
	} else {
		s.zeroWrites = 0
		r.Pop(op.size)
	}

	s.spaceCond.Broadcast()
	s.maybeDumpStats()
	return nil
}

// writeInner positions the inner stream at the op offset and writes data.
// Called without mu.
func (s *Stream) writeInner(ctx context.Context, data []byte, at int64) (int, time.Duration, error) {
	ctx, span := s.tracer.Start(ctx, "asyncstream.write",
		trace.WithAttributes(
			attribute.String("stream.name", s.name),
			attribute.Int64("stream.offset", at),
			attribute.Int("stream.bytes", len(data)),
		))
	defer span.End()

	start := time.Now()
	if s.innerPos != at {
		if err := s.inner.Seek(at, bytestream.SeekBegin); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "seek failed")
			return 0, time.Since(start), err
		}
		s.innerPos = at
	}

	n, err := s.inner.Write(ctx, data)
	took := time.Since(start)
	if n > 0 {
		s.innerPos += int64(n)
	}
	span.SetAttributes(attribute.Int("stream.written", n))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
	}
	return n, took, err
}

func (s *Stream) flushSync(ctx context.Context, op *opData) error {
	var (
		err  error
		took time.Duration
	)
	if syncer, ok := s.inner.(bytestream.Syncer); ok {
		s.unlocked(func() {
			ctx, span := s.tracer.Start(ctx, "asyncstream.sync",
				trace.WithAttributes(
					attribute.String("stream.name", s.name),
					attribute.Int64("stream.sync_ticket", int64(op.ticket)),
				))
			defer span.End()

			start := time.Now()
			err = syncer.Sync(ctx)
			took = time.Since(start)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "sync failed")
			}
		})
	}
	if err != nil {
		return fmt.Errorf("asyncstream: sync ticket %d: %w", op.ticket, err)
	}

	s.syncDone = op.ticket
	s.stats.Syncs++
	s.observer.OnSync(s.name, took)
	s.syncCond.Broadcast()
	s.unlocked(runtime.Gosched)
	return nil
}

func (s *Stream) maybeDumpStats() {
	if s.opts.statsDumpPeriod == 0 || s.stats.BytesWritten < s.nextDump {
		return
	}
	s.logger.Infof("stats: %s", s.stats)
	for s.nextDump <= s.stats.BytesWritten {
		s.nextDump += s.opts.statsDumpPeriod
	}
}
