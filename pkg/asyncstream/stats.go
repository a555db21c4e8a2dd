package asyncstream

import "fmt"

// Stats are advisory counters of a Stream
type Stats struct {
	// Write calls that reached the merge search
	WriteCalls uint64
	// Writes merged into a queued write
	Appended uint64
	// Writes that queued a new write
	NotAppended uint64
	// Merge candidates rejected for having no slack
	FoundButFull uint64
	// Merge candidates rejected for overlapping a later write
	FoundButIntersects uint64
	// Writes accepted only partially
	NonFully uint64
	// Writes rejected because the ring buffer was full
	Failed uint64
	// Writes that did not wake the writer
	NotSignaled uint64
	// Sum of queue lengths seen by writes
	QueueDepthSum uint64
	// Sum of queue entries visited by the merge search
	SearchDepthSum uint64

	// Bytes handed to the inner stream
	BytesWritten uint64
	// Inner stream write calls
	Syscalls uint64
	// Inner writes that returned a short count
	PartialWrites uint64
	// Completed sync barriers
	Syncs uint64
	// Reconfigure calls
	Reconfigures uint64
	// Times the writer found the queue empty and waited
	IdleWaits uint64
}

// AverageSearchDepth returns SearchDepthSum per write call
func (s Stats) AverageSearchDepth() float64 {
	if s.WriteCalls == 0 {
		return 0
	}
	return float64(s.SearchDepthSum) / float64(s.WriteCalls)
}

// AverageQueueDepth returns QueueDepthSum per write call
func (s Stats) AverageQueueDepth() float64 {
	if s.WriteCalls == 0 {
		return 0
	}
	return float64(s.QueueDepthSum) / float64(s.WriteCalls)
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"writes=%d appended=%d notAppended=%d foundButFull=%d foundButIntersects=%d nonFully=%d failed=%d notSignaled=%d "+
			"avgQueueDepth=%.2f avgSearchDepth=%.2f bytesWritten=%d syscalls=%d partialWrites=%d syncs=%d reconfigures=%d",
		s.WriteCalls, s.Appended, s.NotAppended, s.FoundButFull, s.FoundButIntersects, s.NonFully, s.Failed, s.NotSignaled,
		s.AverageQueueDepth(), s.AverageSearchDepth(), s.BytesWritten, s.Syscalls, s.PartialWrites, s.Syncs, s.Reconfigures)
}
