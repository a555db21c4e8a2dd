package main

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	clientprom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/crypto/blake2b"

	"github.com/stingraykit/toolkit/pkg/asyncstream"
	"github.com/stingraykit/toolkit/pkg/bytestream"
	"github.com/stingraykit/toolkit/pkg/config"
	"github.com/stingraykit/toolkit/pkg/core"
	"github.com/stingraykit/toolkit/pkg/db"
	"github.com/stingraykit/toolkit/pkg/observability/prometheus"
)

type options struct {
	configPath  string
	in          string
	out         string
	sqlDriver   string
	sqlDSN      string
	sqlStream   string
	chunk       int
	appendMode  bool
	metricsAddr string
	trace       bool
	writeConfig string
}

// result is what a finished copy reports
type result struct {
	Bytes  int64
	Digest []byte
	Stats  asyncstream.Stats
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	if opts.writeConfig != "" {
		if err := config.Save(opts.writeConfig, &settings); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(stdout, "settings written to %s\n", opts.writeConfig)
		return nil
	}

	logger, err := core.NewLevelLogger(settings.Observability.LogLevel)
	if err != nil {
		return err
	}

	input, err := openInput(opts.in)
	if err != nil {
		return err
	}
	defer input.Close()

	res, err := copyStream(ctx, settings, opts, input, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%x  %d bytes\n%s\n", res.Digest, res.Bytes, res.Stats)
	return nil
}

// loadSettings reads the settings file and environment, then lets flags win
func loadSettings(opts options) (config.StreamSettings, error) {
	settings, err := config.LoadStreamSettings(opts.configPath, config.EnvPrefix)
	if err != nil {
		return config.StreamSettings{}, err
	}
	if opts.out != "" {
		settings.Sink.Path = opts.out
	}
	if opts.sqlDriver != "" {
		settings.Sink.SQLDriver = opts.sqlDriver
	}
	if opts.sqlDSN != "" {
		settings.Sink.SQLDSN = opts.sqlDSN
	}
	if opts.sqlStream != "" {
		settings.Sink.SQLStream = opts.sqlStream
	}
	if opts.metricsAddr != "" {
		settings.Observability.MetricsAddr = opts.metricsAddr
	}
	if opts.trace {
		settings.Observability.Trace = true
	}
	if settings.Sink.Path == "" && settings.Sink.SQLDriver == "" {
		return config.StreamSettings{}, core.NewError(core.CodeInvalidConfig, "no sink: set -out or -sql-driver")
	}
	if err := settings.Validate(); err != nil {
		return config.StreamSettings{}, err
	}
	return settings, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	// #nosec G304 -- path is provided by the operator.
	return os.Open(path)
}

// copyStream pumps input through an asyncstream.Stream into the configured
// sink and waits for it to be durable
func copyStream(ctx context.Context, settings config.StreamSettings, opts options, input io.Reader, logger core.Logger) (res result, err error) {
	reg := clientprom.NewRegistry()
	metrics := prometheus.NewMetrics(reg)

	if addr := settings.Observability.MetricsAddr; addr != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		srvDone := make(chan error, 1)
		go func() {
			srvDone <- prometheus.NewServer(reg, logger).ListenAndServe(srvCtx, addr)
		}()
		defer func() {
			cancel()
			if srvErr := <-srvDone; srvErr != nil {
				logger.Warnf("metrics server: %v", srvErr)
			}
		}()
	}

	streamOpts := []asyncstream.Option{
		asyncstream.WithLogger(logger),
		asyncstream.WithObserver(metrics),
		asyncstream.WithStatsDumpPeriod(settings.Observability.StatsDumpPeriod),
	}
	if settings.Observability.Trace {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return res, fmt.Errorf("trace exporter: %w", err)
		}
		provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		defer func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				logger.Warnf("trace provider shutdown: %v", err)
			}
		}()
		streamOpts = append(streamOpts, asyncstream.WithTracer(provider.Tracer("streamcopy")))
	}

	sink, closeSink, err := openSink(ctx, settings.Sink, opts.appendMode, metrics)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := closeSink(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	cfg, err := settings.Buffer.StreamConfig()
	if err != nil {
		return res, err
	}
	stream, err := asyncstream.New(settings.Name, sink, cfg, streamOpts...)
	if err != nil {
		return res, err
	}

	digest, err := blake2b.New256(nil)
	if err != nil {
		return res, fmt.Errorf("digest: %w", err)
	}
	copied, copyErr := pump(ctx, stream, input, digest, opts.chunk)
	if copyErr == nil {
		syncCtx, cancel := context.WithTimeout(ctx, settings.Observability.SyncTimeout)
		copyErr = stream.Sync(syncCtx)
		cancel()
	}
	closeErr := stream.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return res, err
	}

	logger.Infof("copied %d bytes into %s", copied, stream.Name())
	return result{Bytes: copied, Digest: digest.Sum(nil), Stats: stream.Stats()}, nil
}

func pump(ctx context.Context, stream *asyncstream.Stream, input io.Reader, digest hash.Hash, chunk int) (int64, error) {
	if chunk <= 0 {
		chunk = 32 << 10
	}
	buf := make([]byte, chunk)
	var total int64
	for {
		n, rerr := input.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
			written, err := stream.WriteAll(ctx, buf[:n])
			total += int64(written)
			if err != nil {
				return total, err
			}
		}
		if errors.Is(rerr, io.EOF) {
			return total, nil
		}
		if rerr != nil {
			return total, fmt.Errorf("read input: %w", rerr)
		}
	}
}

// openSink opens the file or SQL stream selected by settings. Without
// appendMode either sink is truncated first.
func openSink(ctx context.Context, settings config.SinkSettings, appendMode bool, metrics *prometheus.Metrics) (bytestream.ByteStream, func() error, error) {
	var (
		sink    bytestream.ByteStream
		closeFn func() error
	)
	if settings.SQLDriver != "" {
		pool, err := db.NewPool(db.DefaultPoolConfig(settings.SQLDSN, settings.SQLDriver))
		if err != nil {
			return nil, nil, err
		}
		s, err := bytestream.NewSQLStream(ctx, pool, settings.SQLStream, settings.SQLPageSize)
		if err == nil && !appendMode {
			err = s.Truncate(ctx)
		}
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		sink = s
		closeFn = func() error {
			metrics.UpdateDatabasePool(pool.Stats())
			return pool.Close()
		}
	} else {
		f, err := bytestream.OpenFile(settings.Path)
		if err != nil {
			return nil, nil, err
		}
		if !appendMode {
			if err := f.File().Truncate(0); err != nil {
				f.Close()
				return nil, nil, err
			}
		}
		sink = f
		closeFn = f.Close
	}

	if appendMode {
		if err := sink.Seek(0, bytestream.SeekEnd); err != nil {
			closeFn()
			return nil, nil, err
		}
	}
	return sink, closeFn, nil
}
