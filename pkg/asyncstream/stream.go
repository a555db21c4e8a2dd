package asyncstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stingraykit/toolkit/pkg/bytestream"
	"github.com/stingraykit/toolkit/pkg/core"
	"github.com/stingraykit/toolkit/pkg/core/concurrency"
	"github.com/stingraykit/toolkit/pkg/core/failfast"
)

// Stream is an asynchronous, write-coalescing wrapper around a synchronous
// bytestream.ByteStream. It is safe for concurrent use. After New the inner
// stream belongs to the stream's writer goroutine until Close returns.
type Stream struct {
	name     string
	inner    bytestream.ByteStream
	logger   core.Logger
	tracer   trace.Tracer
	observer Observer
	opts     options

	mu        sync.Mutex
	wake      *concurrency.Cond // writer waits for work
	syncCond  *concurrency.Cond // Sync waits for its ticket
	spaceCond *concurrency.Cond // WriteAll waits for ring buffer space

	queue   opQueue
	buffers bufferSet

	cfg          Config
	preallocSize int
	lowWater     int

	position int64
	length   int64

	syncNext uint64
	syncDone uint64

	stats  Stats
	broken error
	closed bool
	exited bool

	// owned by the writer goroutine
	innerPos   int64
	zeroWrites int
	nextDump   uint64

	thread *concurrency.Thread
}

// New wraps inner and starts the writer goroutine.
//
// The current inner position becomes the stream position; the inner length
// is found by seeking to the end, after which the position is restored. Any
// inner stream error is returned unchanged and nothing is left running. A nil
// cfg means NewConfig(). An empty name is replaced by a generated one.
func New(name string, inner bytestream.ByteStream, cfg *Config, opts ...Option) (*Stream, error) {
	if inner == nil {
		return nil, errors.New("asyncstream: inner stream is nil")
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if name == "" {
		name = core.GenerateName("asyncstream")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	position, err := inner.Tell()
	if err != nil {
		return nil, err
	}
	if err := inner.Seek(0, bytestream.SeekEnd); err != nil {
		return nil, err
	}
	length, err := inner.Tell()
	if err != nil {
		return nil, err
	}
	if err := inner.Seek(position, bytestream.SeekBegin); err != nil {
		return nil, err
	}

	s := &Stream{
		name:     name,
		inner:    inner,
		logger:   o.logger.With("stream", name),
		tracer:   o.tracer,
		observer: o.observer,
		opts:     o,
		position: position,
		length:   length,
		innerPos: position,
		nextDump: o.statsDumpPeriod,
	}
	s.wake = concurrency.NewCond(&s.mu)
	s.syncCond = concurrency.NewCond(&s.mu)
	s.spaceCond = concurrency.NewCond(&s.mu)
	s.applyConfig(*cfg)

	s.thread = concurrency.StartThread("asyncstream:"+name, s.logger, s.run)
	s.logger.Debugf("started at position %d, length %d, %s", position, length, &s.cfg)
	return s, nil
}

// Name returns the stream name
func (s *Stream) Name() string {
	return s.name
}

// Write buffers p for writing at the current position and advances it.
//
// Write never waits for I/O. It returns the number of bytes buffered, which
// is less than len(p) when the reservation could not hold all of it. When
// the ring buffer is completely full it returns ErrBackpressure and buffers
// nothing. ctx is only checked on entry.
func (s *Stream) Write(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	s.stats.WriteCalls++
	front := s.buffers.front()
	if front.Free() == 0 {
		s.stats.Failed++
		s.observer.OnWriteRejected(s.name)
		return 0, ErrBackpressure
	}
	s.stats.QueueDepthSum += uint64(s.queue.len())

	target := s.findMergeTarget(len(p))
	merged := target != nil
	if merged {
		s.stats.Appended++
	} else {
		w := front.Writer()
		reserve := min(w.Size(), max(s.preallocSize, len(p)))
		w.Push(reserve)
		target = newWriteOp(front, w.Offset(), reserve, s.position)
		s.queue.pushBack(target)
		s.stats.NotAppended++
	}

	n := target.pushWriteData(s.buffers.resolve(target.bufferID), p)
	if n < len(p) {
		s.stats.NonFully++
	}
	s.position += int64(n)
	s.length = max(s.length, s.position)

	s.observer.OnWriteAccepted(s.name, n, merged)
	s.observer.OnQueueDepth(s.name, s.queue.len())

	if front.Used() >= s.lowWater {
		s.wake.Broadcast()
	} else {
		s.stats.NotSignaled++
	}
	return n, nil
}

// findMergeTarget scans the queue from the tail for a write ending at the
// current position. The first such write decides: it is used when it has
// slack and no later queued write overlaps the bytes that would be appended.
func (s *Stream) findMergeTarget(want int) *opData {
	ops := s.queue.ops
	for i := len(ops) - 1; i >= 0; i-- {
		s.stats.SearchDepthSum++
		op := ops[i]
		if op.kind != opWrite || op.writeEnd() != s.position {
			continue
		}
		if op.free() == 0 {
			s.stats.FoundButFull++
			return nil
		}
		start := s.position
		end := start + int64(min(want, op.free()))
		for _, later := range ops[i+1:] {
			if later.kind == opWrite && later.overlaps(start, end) {
				s.stats.FoundButIntersects++
				return nil
			}
		}
		return op
	}
	return nil
}

// WriteAll writes all of p, waiting for ring buffer space whenever Write
// reports backpressure. It returns early when ctx ends or the stream fails.
func (s *Stream) WriteAll(ctx context.Context, p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n, err := s.Write(ctx, p)
		total += n
		p = p[n:]
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrBackpressure) {
			return total, err
		}
		if err := s.waitSpace(ctx); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Stream) waitSpace(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if err := s.usable(); err != nil {
			return err
		}
		if s.buffers.front().Free() > 0 {
			return nil
		}
		s.wake.Broadcast()
		if s.spaceCond.Wait(ctx, s.opts.idleWait) == concurrency.Cancelled {
			return ctx.Err()
		}
	}
}

// Writer adapts the stream to io.Writer using WriteAll with ctx
func (s *Stream) Writer(ctx context.Context) io.Writer {
	return streamWriter{s: s, ctx: ctx}
}

type streamWriter struct {
	s   *Stream
	ctx context.Context
}

func (w streamWriter) Write(p []byte) (int, error) {
	return w.s.WriteAll(w.ctx, p)
}

// Seek moves the logical position. SeekEnd is relative to the logical
// length, which includes buffered writes. No I/O is performed.
func (s *Stream) Seek(offset int64, mode bytestream.SeekMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}
	pos, err := bytestream.ResolveSeek(offset, mode, s.position, s.length)
	if err != nil {
		return err
	}
	s.position = pos
	return nil
}

// Tell returns the logical position
func (s *Stream) Tell() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return 0, err
	}
	return s.position, nil
}

// Length returns the logical length: the highest offset written so far,
// buffered or not
func (s *Stream) Length() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return 0, err
	}
	return s.length, nil
}

// Sync queues a barrier behind every accepted write and waits until the
// writer reaches it. With a non-blocking config it returns right after
// queueing. A ctx deadline or cancellation ends the wait with an error
// matching context.DeadlineExceeded or context.Canceled; the barrier itself
// stays queued.
func (s *Stream) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}

	s.syncNext++
	ticket := s.syncNext
	s.queue.pushBack(&opData{kind: opSync, ticket: ticket})
	s.wake.Broadcast()

	if s.cfg.nonBlockingSync {
		return nil
	}

	start := time.Now()
	for !ticketDone(s.syncDone, ticket) {
		if s.broken != nil {
			return brokenError(s.broken)
		}
		if s.exited {
			return ErrClosed
		}
		switch s.syncCond.Wait(ctx, s.opts.syncWarnPeriod) {
		case concurrency.Cancelled:
			return fmt.Errorf("asyncstream: sync ticket %d: %w", ticket, ctx.Err())
		case concurrency.TimedOut:
			s.logger.Warnf("sync ticket %d still pending after %s, queue depth %d",
				ticket, time.Since(start).Round(time.Millisecond), s.queue.len())
		}
	}
	return nil
}

// ticketDone reports whether done has reached ticket, modulo 2^64
func ticketDone(done, ticket uint64) bool {
	return int64(done-ticket) >= 0
}

// Reconfigure installs a new ring buffer sized by cfg. Writes already queued
// keep their ranges in the old buffer, which is dropped once they drain.
// An invalid cfg is rejected and leaves the stream unchanged.
func (s *Stream) Reconfigure(cfg *Config) error {
	if cfg == nil {
		return invalidConfig("nil config")
	}
	if err := cfg.Err(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}
	s.applyConfig(*cfg)
	s.stats.Reconfigures++
	s.logger.Infof("reconfigured: %s", &s.cfg)
	return nil
}

func (s *Stream) applyConfig(cfg Config) {
	failfast.Err(cfg.Validate())
	if !s.buffers.empty() {
		s.queue.pushBack(&opData{kind: opPopBuffer})
	}
	s.buffers.pushFront(cfg.bufferSize)
	s.cfg = cfg
	s.preallocSize = cfg.preallocationSize()
	s.lowWater = cfg.lowWater()

	s.observer.OnReconfigure(s.name, cfg.bufferSize)
	s.wake.Broadcast()
	s.spaceCond.Broadcast()
}

// Config returns a copy of the current configuration
func (s *Stream) Config() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.cfg
	return &cfg
}

// Stats returns a snapshot of the counters
func (s *Stream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close drains every operation queued before it and stops the writer.
// It returns the failure that broke the stream, if any. Calling Close again
// is a no-op; every other method returns ErrClosed afterwards.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.queue.pushBack(&opData{kind: opStop})
	s.wake.Broadcast()
	s.mu.Unlock()

	s.thread.Join()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Infof("closed: %s", s.stats)
	if s.broken != nil {
		return brokenError(s.broken)
	}
	return nil
}

// usable must be called with mu held
func (s *Stream) usable() error {
	if s.broken != nil {
		return brokenError(s.broken)
	}
	if s.closed {
		return ErrClosed
	}
	return nil
}

var (
	_ bytestream.ByteStream = (*Stream)(nil)
	_ bytestream.Syncer     = (*Stream)(nil)
)
