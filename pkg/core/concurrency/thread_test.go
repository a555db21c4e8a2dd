package concurrency

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestThread_RunsBodyAndJoins(t *testing.T) {
	var ran int32
	th := StartThread("worker", nil, func(ctx context.Context) {
		atomic.StoreInt32(&ran, 1)
	})
	th.Join()

	if atomic.LoadInt32(&ran) != 1 {
		t.Error("body did not run before Join returned")
	}
	select {
	case <-th.Done():
	default:
		t.Error("Done() should be closed after Join")
	}
	if th.Name() != "worker" {
		t.Errorf("Name() = %q, want worker", th.Name())
	}
}

func TestThread_CancelReachesBody(t *testing.T) {
	th := StartThread("cancellable", nil, func(ctx context.Context) {
		<-ctx.Done()
	})
	th.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := th.JoinContext(ctx); err != nil {
		t.Fatalf("JoinContext() error = %v", err)
	}
}

func TestThread_PanicIsContained(t *testing.T) {
	th := StartThread("panicky", nil, func(ctx context.Context) {
		panic("boom")
	})
	th.Join()
}

func TestThread_JoinContextTimeout(t *testing.T) {
	release := make(chan struct{})
	th := StartThread("blocked", nil, func(ctx context.Context) {
		<-release
	})
	defer func() {
		close(release)
		th.Join()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := th.JoinContext(ctx); err != context.DeadlineExceeded {
		t.Errorf("JoinContext() error = %v, want deadline exceeded", err)
	}
}
