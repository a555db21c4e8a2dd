package asyncstream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/stingraykit/toolkit/pkg/core"
)

type recordingObserver struct {
	mu           sync.Mutex
	accepted     int
	merged       int
	rejected     int
	flushedBytes int
	partial      int
	syncs        int
	reconfigures []int
	broken       []error
}

func (o *recordingObserver) OnWriteAccepted(_ string, n int, merged bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.accepted += n
	if merged {
		o.merged++
	}
}

func (o *recordingObserver) OnWriteRejected(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected++
}

func (o *recordingObserver) OnQueueDepth(string, int) {}

func (o *recordingObserver) OnFlush(_ string, n int, partial bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flushedBytes += n
	if partial {
		o.partial++
	}
}

func (o *recordingObserver) OnSync(string, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.syncs++
}

func (o *recordingObserver) OnReconfigure(_ string, size int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reconfigures = append(o.reconfigures, size)
}

func (o *recordingObserver) OnBroken(_ string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.broken = append(o.broken, err)
}

func TestObserver_ReceivesEvents(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	inner := newFakeStream()
	inner.limits = []int{3}

	s := newParkedStream(t, inner, nil, WithObserver(obs))
	_, err := s.Write(ctx, []byte("hello"))
	require.NoError(t, err)
	_, err = s.Write(ctx, []byte(" world"))
	require.NoError(t, err)
	require.NoError(t, s.Sync(ctx))
	require.NoError(t, s.Reconfigure(NewConfig().BufferSize(1<<20)))
	require.NoError(t, s.Close())

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 11, obs.accepted)
	assert.Equal(t, 1, obs.merged)
	assert.Equal(t, 11, obs.flushedBytes)
	assert.Equal(t, 1, obs.partial)
	assert.Equal(t, 1, obs.syncs)
	assert.Equal(t, []int{DefaultBufferSize, 1 << 20}, obs.reconfigures)
	assert.Empty(t, obs.broken)
}

func TestObserver_Broken(t *testing.T) {
	obs := &recordingObserver{}
	inner := newFakeStream()
	inner.failErr = errors.New("gone")

	s, err := New("obs", inner, nil, WithObserver(obs))
	require.NoError(t, err)
	_, err = s.Write(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Error(t, s.Close())

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.broken, 1)
	assert.ErrorIs(t, obs.broken[0], inner.failErr)
}

func TestLogger_StatsDumpAndClose(t *testing.T) {
	obsCore, logs := observer.New(zap.InfoLevel)
	logger := core.NewZapLogger(zap.New(obsCore))

	s, err := New("logged", newFakeStream(), nil, WithLogger(logger), WithStatsDumpPeriod(4))
	require.NoError(t, err)
	_, err = s.Write(context.Background(), []byte("12345678"))
	require.NoError(t, err)
	require.NoError(t, s.Sync(context.Background()))
	require.NoError(t, s.Close())

	var dumps, closed int
	for _, e := range logs.All() {
		switch {
		case strings.HasPrefix(e.Message, "stats: "):
			dumps++
		case strings.HasPrefix(e.Message, "closed: "):
			closed++
		}
		assert.Equal(t, "logged", e.ContextMap()["stream"])
	}
	assert.Equal(t, 1, dumps)
	assert.Equal(t, 1, closed)
}

func TestTracer_SpansForWriteAndSync(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	s, err := New("traced", newFakeStream(), nil, WithTracer(provider.Tracer("test")))
	require.NoError(t, err)
	_, err = s.Write(context.Background(), []byte("span me"))
	require.NoError(t, err)
	require.NoError(t, s.Sync(context.Background()))
	require.NoError(t, s.Close())

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{"asyncstream.write", "asyncstream.sync"}, names)
}
