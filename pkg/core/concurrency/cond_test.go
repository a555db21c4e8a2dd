package concurrency

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCond_BroadcastWakesAllWaiters(t *testing.T) {
	var mu sync.Mutex
	c := NewCond(&mu)
	ready := false

	const waiters = 4
	results := make(chan WaitResult, waiters)
	var started sync.WaitGroup
	started.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			mu.Lock()
			defer mu.Unlock()
			started.Done()
			for !ready {
				if r := c.Wait(context.Background(), 5*time.Second); r != Signalled {
					results <- r
					return
				}
			}
			results <- Signalled
		}()
	}
	started.Wait()

	mu.Lock()
	ready = true
	c.Broadcast()
	mu.Unlock()

	for i := 0; i < waiters; i++ {
		select {
		case r := <-results:
			if r != Signalled {
				t.Errorf("waiter %d: result = %v, want signalled", i, r)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter did not wake up")
		}
	}
}

func TestCond_Timeout(t *testing.T) {
	var mu sync.Mutex
	c := NewCond(&mu)

	mu.Lock()
	r := c.Wait(context.Background(), 10*time.Millisecond)
	mu.Unlock()

	if r != TimedOut {
		t.Errorf("Wait() = %v, want timed out", r)
	}
}

func TestCond_Cancelled(t *testing.T) {
	var mu sync.Mutex
	c := NewCond(&mu)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mu.Lock()
	r := c.Wait(ctx, 0)
	mu.Unlock()

	if r != Cancelled {
		t.Errorf("Wait() = %v, want cancelled", r)
	}
	if r.String() != "cancelled" {
		t.Errorf("String() = %q", r.String())
	}
}

func TestNewCond_NilLockerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewCond(nil) should panic")
		}
	}()
	NewCond(nil)
}
