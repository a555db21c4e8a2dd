// Package asyncstream implements a write-behind byte stream.
//
// A Stream wraps a synchronous bytestream.ByteStream. Write copies caller
// data into a ring buffer and returns immediately; a single background
// goroutine drains a FIFO queue of pending operations into the inner stream.
//
// Contract summary:
//   - Write never blocks. When the ring buffer is full it fails fast with
//     ErrBackpressure; a short count with a nil error means only a prefix
//     was accepted.
//   - Writes landing right after a still-queued write are merged into it,
//     so small contiguous writes reach the inner stream as one call.
//   - Sync is a barrier: it returns once every write accepted before it has
//     been handed to the inner stream (and the inner stream synced, when it
//     implements bytestream.Syncer).
//   - Reconfigure swaps the ring buffer without stalling queued writes.
//   - Any inner-stream failure breaks the stream permanently. Every later
//     call returns an error matching ErrBroken and the original cause.
package asyncstream
