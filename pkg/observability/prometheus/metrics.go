package prometheus

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stingraykit/toolkit/pkg/asyncstream"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "streamcopy"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics exports asyncstream events as Prometheus series labelled by
// stream name. It implements asyncstream.Observer.
type Metrics struct {
	// Write path
	WriteCalls    *prometheus.CounterVec
	WriteBytes    *prometheus.CounterVec
	WriteRejected *prometheus.CounterVec
	QueueDepth    *prometheus.GaugeVec

	// Writer goroutine
	FlushTotal    *prometheus.CounterVec
	FlushBytes    *prometheus.HistogramVec
	FlushDuration *prometheus.HistogramVec
	PartialWrites *prometheus.CounterVec
	SyncTotal     *prometheus.CounterVec
	SyncDuration  *prometheus.HistogramVec

	// Lifecycle
	BufferSize    *prometheus.GaugeVec
	Reconfigures  *prometheus.CounterVec
	BrokenStreams *prometheus.CounterVec

	// Database pool backing SQL sinks
	DatabaseConnectionsOpen  prometheus.Gauge
	DatabaseConnectionsIdle  prometheus.Gauge
	DatabaseConnectionsInUse prometheus.Gauge
	DatabaseConnectionsWait  prometheus.Gauge
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics registers the stream metrics with registerer
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}
	factory := promauto.With(registerer)
	stream := []string{"stream"}

	return &Metrics{
		WriteCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asyncstream_write_calls_total",
				Help: "Write calls that buffered data, by merge outcome",
			},
			[]string{"stream", "merged"},
		),
		WriteBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asyncstream_write_bytes_total",
				Help: "Bytes accepted into the ring buffer",
			},
			stream,
		),
		WriteRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asyncstream_write_rejected_total",
				Help: "Writes rejected because the ring buffer was full",
			},
			stream,
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "asyncstream_queue_depth",
				Help: "Operations waiting for the writer",
			},
			stream,
		),

		FlushTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asyncstream_flush_total",
				Help: "Writes issued to the inner stream",
			},
			stream,
		),
		FlushBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "asyncstream_flush_bytes",
				Help:    "Bytes written to the inner stream per call",
				Buckets: prometheus.ExponentialBuckets(512, 4, 8),
			},
			stream,
		),
		FlushDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "asyncstream_flush_duration_seconds",
				Help:    "Inner stream write latency",
				Buckets: prometheus.DefBuckets,
			},
			stream,
		),
		PartialWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asyncstream_partial_writes_total",
				Help: "Inner writes that consumed less than requested",
			},
			stream,
		),
		SyncTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asyncstream_sync_total",
				Help: "Completed sync barriers",
			},
			stream,
		),
		SyncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "asyncstream_sync_duration_seconds",
				Help:    "Inner stream sync latency",
				Buckets: prometheus.DefBuckets,
			},
			stream,
		),

		BufferSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "asyncstream_buffer_size_bytes",
				Help: "Size of the ring buffer accepting new writes",
			},
			stream,
		),
		Reconfigures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asyncstream_reconfigure_total",
				Help: "Ring buffers installed, including the initial one",
			},
			stream,
		),
		BrokenStreams: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asyncstream_broken_total",
				Help: "Streams stopped by an inner stream failure",
			},
			stream,
		),

		DatabaseConnectionsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "asyncstream_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DatabaseConnectionsIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "asyncstream_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DatabaseConnectionsInUse: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "asyncstream_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DatabaseConnectionsWait: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "asyncstream_db_connections_wait_count",
				Help: "Total number of waits for a database connection",
			},
		),
	}
}

func (m *Metrics) OnWriteAccepted(stream string, n int, merged bool) {
	label := "false"
	if merged {
		label = "true"
	}
	m.WriteCalls.WithLabelValues(stream, label).Inc()
	m.WriteBytes.WithLabelValues(stream).Add(float64(n))
}

func (m *Metrics) OnWriteRejected(stream string) {
	m.WriteRejected.WithLabelValues(stream).Inc()
}

func (m *Metrics) OnQueueDepth(stream string, depth int) {
	m.QueueDepth.WithLabelValues(stream).Set(float64(depth))
}

func (m *Metrics) OnFlush(stream string, n int, partial bool, took time.Duration) {
	m.FlushTotal.WithLabelValues(stream).Inc()
	m.FlushBytes.WithLabelValues(stream).Observe(float64(n))
	m.FlushDuration.WithLabelValues(stream).Observe(took.Seconds())
	if partial {
		m.PartialWrites.WithLabelValues(stream).Inc()
	}
}

func (m *Metrics) OnSync(stream string, took time.Duration) {
	m.SyncTotal.WithLabelValues(stream).Inc()
	m.SyncDuration.WithLabelValues(stream).Observe(took.Seconds())
}

func (m *Metrics) OnReconfigure(stream string, bufferSize int) {
	m.Reconfigures.WithLabelValues(stream).Inc()
	m.BufferSize.WithLabelValues(stream).Set(float64(bufferSize))
}

func (m *Metrics) OnBroken(stream string, err error) {
	m.BrokenStreams.WithLabelValues(stream).Inc()
}

// UpdateDatabasePool copies database/sql pool statistics into the gauges
func (m *Metrics) UpdateDatabasePool(stats sql.DBStats) {
	m.DatabaseConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DatabaseConnectionsIdle.Set(float64(stats.Idle))
	m.DatabaseConnectionsInUse.Set(float64(stats.InUse))
	m.DatabaseConnectionsWait.Set(float64(stats.WaitCount))
}

var _ asyncstream.Observer = (*Metrics)(nil)
