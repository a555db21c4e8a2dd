package concurrency

import (
	"context"
	"sync"
	"time"

	"github.com/stingraykit/toolkit/pkg/core/failfast"
)

// WaitResult tells why Cond.Wait returned
type WaitResult int

const (
	// Signalled means Broadcast was called while waiting
	Signalled WaitResult = iota
	// TimedOut means the wait timeout elapsed
	TimedOut
	// Cancelled means the context ended
	Cancelled
)

func (r WaitResult) String() string {
	switch r {
	case Signalled:
		return "signalled"
	case TimedOut:
		return "timed out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Cond is a condition variable whose Wait honours a context and a timeout.
//
// sync.Cond cannot be selected on, so every generation of waiters shares a
// channel that Broadcast closes and replaces. Both Wait and Broadcast must be
// called with L held.
type Cond struct {
	L  sync.Locker
	ch chan struct{}
}

// NewCond returns a Cond bound to l
func NewCond(l sync.Locker) *Cond {
	failfast.NotNil(l, "locker")
	return &Cond{L: l, ch: make(chan struct{})}
}

// Broadcast wakes all current waiters
func (c *Cond) Broadcast() {
	close(c.ch)
	c.ch = make(chan struct{})
}

// Wait atomically unlocks L and suspends until Broadcast, timeout or ctx end,
// then re-locks L before returning. A timeout <= 0 waits without a deadline.
// As with sync.Cond the caller must re-check its predicate after Wait.
func (c *Cond) Wait(ctx context.Context, timeout time.Duration) WaitResult {
	ch := c.ch
	c.L.Unlock()
	defer c.L.Lock()

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case <-ch:
		return Signalled
	case <-timerC:
		return TimedOut
	case <-ctx.Done():
		return Cancelled
	}
}
