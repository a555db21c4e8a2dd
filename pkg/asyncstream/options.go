package asyncstream

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/stingraykit/toolkit/pkg/core"
)

const (
	tracerName = "github.com/stingraykit/toolkit/pkg/asyncstream"

	// DefaultStatsDumpPeriod is the amount of flushed bytes between stats log lines
	DefaultStatsDumpPeriod = 64 << 20 // 64MB

	idleWait       = time.Second
	syncWarnPeriod = 10 * time.Second

	// consecutive empty inner writes tolerated before giving up
	maxZeroWrites = 100
)

// Option configures a Stream
type Option func(*options)

type options struct {
	logger          core.Logger
	tracer          trace.Tracer
	observer        Observer
	statsDumpPeriod uint64
	idleWait        time.Duration
	syncWarnPeriod  time.Duration
}

func defaultOptions() options {
	return options{
		logger:          core.NewNopLogger(),
		tracer:          otel.Tracer(tracerName),
		observer:        NopObserver{},
		statsDumpPeriod: DefaultStatsDumpPeriod,
		idleWait:        idleWait,
		syncWarnPeriod:  syncWarnPeriod,
	}
}

// WithLogger sets the logger. The stream adds its name to every line.
func WithLogger(l core.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer used for inner write and sync spans.
// Defaults to the global otel tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithObserver sets the event observer
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithStatsDumpPeriod sets how many flushed bytes separate two stats log
// lines. Zero disables them.
func WithStatsDumpPeriod(bytes uint64) Option {
	return func(o *options) {
		o.statsDumpPeriod = bytes
	}
}
