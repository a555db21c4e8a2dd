package core

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging capabilities
// This abstraction allows swapping logging implementations
type Logger interface {
	// Error logs an error message
	Error(args ...interface{})

	// Errorf logs a formatted error message
	Errorf(format string, args ...interface{})

	// Warn logs a warning message
	Warn(args ...interface{})

	// Warnf logs a formatted warning message
	Warnf(format string, args ...interface{})

	// Info logs an informational message
	Info(args ...interface{})

	// Infof logs a formatted informational message
	Infof(format string, args ...interface{})

	// Debug logs a debug message
	Debug(args ...interface{})

	// Debugf logs a formatted debug message
	Debugf(format string, args ...interface{})

	// With returns a child logger carrying the given key/value pairs
	With(keysAndValues ...interface{}) Logger
}

// zapLogger implements Logger on top of a zap SugaredLogger
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps an existing zap logger
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	// Skip the wrapper frame so call sites point at the caller
	return &zapLogger{s: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// NewDefaultLogger creates a production zap logger writing JSON to stderr.
// Falls back to a no-op logger if zap cannot be built.
func NewDefaultLogger() Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return NewNopLogger()
	}
	return NewZapLogger(l)
}

// NewLevelLogger creates a production logger at the named level
// ("debug", "info", "warn", "error")
func NewLevelLogger(level string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, NewError(CodeInvalidConfig, "invalid log level "+level)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(l), nil
}

// NewDevelopmentLogger creates a human readable console logger at debug level
func NewDevelopmentLogger() Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return NewNopLogger()
	}
	return NewZapLogger(l)
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	return NewZapLogger(zap.NewNop())
}

func (l *zapLogger) Error(args ...interface{}) { l.s.Error(args...) }

func (l *zapLogger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }

func (l *zapLogger) Warn(args ...interface{}) { l.s.Warn(args...) }

func (l *zapLogger) Warnf(format string, args ...interface{}) { l.s.Warnf(format, args...) }

func (l *zapLogger) Info(args ...interface{}) { l.s.Info(args...) }

func (l *zapLogger) Infof(format string, args ...interface{}) { l.s.Infof(format, args...) }

func (l *zapLogger) Debug(args ...interface{}) { l.s.Debug(args...) }

func (l *zapLogger) Debugf(format string, args ...interface{}) { l.s.Debugf(format, args...) }

func (l *zapLogger) With(keysAndValues ...interface{}) Logger {
	return &zapLogger{s: l.s.With(keysAndValues...)}
}
