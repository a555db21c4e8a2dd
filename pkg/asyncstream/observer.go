package asyncstream

import "time"

// Observer receives Stream events. Calls are made with the stream's lock
// held, so implementations must be fast and must not call back into the
// stream.
type Observer interface {
	// OnWriteAccepted is called when Write buffered n bytes
	OnWriteAccepted(stream string, n int, merged bool)
	// OnWriteRejected is called when Write failed with ErrBackpressure
	OnWriteRejected(stream string)
	// OnQueueDepth reports the number of pending operations
	OnQueueDepth(stream string, depth int)
	// OnFlush is called after each inner write
	OnFlush(stream string, n int, partial bool, took time.Duration)
	// OnSync is called after a sync barrier completes
	OnSync(stream string, took time.Duration)
	// OnReconfigure is called when a new ring buffer is installed
	OnReconfigure(stream string, bufferSize int)
	// OnBroken is called once when the stream breaks
	OnBroken(stream string, err error)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) OnWriteAccepted(string, int, bool)        {}
func (NopObserver) OnWriteRejected(string)                   {}
func (NopObserver) OnQueueDepth(string, int)                 {}
func (NopObserver) OnFlush(string, int, bool, time.Duration) {}
func (NopObserver) OnSync(string, time.Duration)             {}
func (NopObserver) OnReconfigure(string, int)                {}
func (NopObserver) OnBroken(string, error)                   {}

var _ Observer = NopObserver{}
