package concurrency

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/stingraykit/toolkit/pkg/core"
)

// Thread is a named, long-lived goroutine with join semantics.
// Hides go func() and its WaitGroup from callers.
type Thread struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	logger core.Logger
}

// StartThread starts body on its own goroutine.
// The context handed to body is cancelled only by Cancel; the thread's
// lifetime is otherwise governed by body returning.
// A panic escaping body is logged and swallowed so the process survives.
func StartThread(name string, logger core.Logger, body func(ctx context.Context)) *Thread {
	if logger == nil {
		logger = core.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Thread{
		name:   name,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger,
	}

	t.wg.Add(1)
	go t.run(body)
	return t
}

func (t *Thread) run(body func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Errorf("thread %s: panic: %v\n%s", t.name, r, debug.Stack())
		}
		close(t.done)
		t.wg.Done()
	}()
	body(t.ctx)
}

// Name returns the thread name
func (t *Thread) Name() string {
	return t.name
}

// Done is closed once the body has returned
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

// Cancel cancels the context handed to the body. It does not wait.
func (t *Thread) Cancel() {
	t.cancel()
}

// Join blocks until the body returns
func (t *Thread) Join() {
	t.wg.Wait()
	t.cancel()
}

// JoinContext waits for the body like Join but gives up when ctx ends
func (t *Thread) JoinContext(ctx context.Context) error {
	select {
	case <-t.done:
		t.cancel()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
