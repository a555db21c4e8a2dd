package config

import (
	"fmt"
	"time"

	"github.com/stingraykit/toolkit/pkg/asyncstream"
)

// EnvPrefix is the environment prefix of the streamcopy settings
const EnvPrefix = "STREAMCOPY"

// StreamSettings configures an asynchronous stream and where it writes to
type StreamSettings struct {
	Name          string                `yaml:"name" json:"name"`
	Buffer        BufferSettings        `yaml:"buffer" json:"buffer"`
	Sink          SinkSettings          `yaml:"sink" json:"sink"`
	Observability ObservabilitySettings `yaml:"observability" json:"observability"`
}

// BufferSettings mirrors asyncstream.Config
type BufferSettings struct {
	Size            int  `yaml:"size" json:"size"`
	PageSize        int  `yaml:"page_size" json:"page_size"`
	MergeablePages  int  `yaml:"mergeable_pages" json:"mergeable_pages"`
	SubStreams      int  `yaml:"sub_streams" json:"sub_streams"`
	NonBlockingSync bool `yaml:"non_blocking_sync" json:"non_blocking_sync"`
}

// SinkSettings selects the inner stream: a file at Path, or SQL pages when
// SQLDriver is set
type SinkSettings struct {
	Path        string `yaml:"path" json:"path"`
	SQLDriver   string `yaml:"sql_driver" json:"sql_driver"`
	SQLDSN      string `yaml:"sql_dsn" json:"sql_dsn"`
	SQLStream   string `yaml:"sql_stream" json:"sql_stream"`
	SQLPageSize int    `yaml:"sql_page_size" json:"sql_page_size"`
}

// ObservabilitySettings controls logging, metrics and tracing
type ObservabilitySettings struct {
	LogLevel        string        `yaml:"log_level" json:"log_level"`
	MetricsAddr     string        `yaml:"metrics_addr" json:"metrics_addr"`
	Trace           bool          `yaml:"trace" json:"trace"`
	StatsDumpPeriod uint64        `yaml:"stats_dump_period" json:"stats_dump_period"`
	SyncTimeout     time.Duration `yaml:"sync_timeout" json:"sync_timeout"`
}

// DefaultStreamSettings returns settings matching asyncstream.NewConfig
func DefaultStreamSettings() StreamSettings {
	return StreamSettings{
		Buffer: BufferSettings{
			Size:           asyncstream.DefaultBufferSize,
			PageSize:       asyncstream.DefaultPageSize,
			MergeablePages: asyncstream.DefaultMergeablePagesHint,
			SubStreams:     asyncstream.DefaultSubStreamsHint,
		},
		Sink: SinkSettings{
			SQLStream:   "streamcopy",
			SQLPageSize: 4096,
		},
		Observability: ObservabilitySettings{
			LogLevel:        "info",
			StatsDumpPeriod: asyncstream.DefaultStatsDumpPeriod,
			SyncTimeout:     time.Minute,
		},
	}
}

// LoadStreamSettings starts from the defaults, overlays the file at path (if
// any) and then STREAMCOPY_* style variables for prefix, and validates.
func LoadStreamSettings(path, prefix string) (StreamSettings, error) {
	if prefix == "" {
		prefix = EnvPrefix
	}
	settings := DefaultStreamSettings()
	if err := LoadWithEnv(path, prefix, &settings); err != nil {
		return StreamSettings{}, err
	}
	if err := settings.Validate(); err != nil {
		return StreamSettings{}, err
	}
	return settings, nil
}

// Validate checks ranges and the buffer sizing invariant
func (s *StreamSettings) Validate() error {
	err := Validate(s,
		RangeValidator("Buffer.Size", 1, 1<<40),
		RangeValidator("Buffer.PageSize", 1, 1<<30),
		RangeValidator("Buffer.MergeablePages", 1, 1<<20),
		RangeValidator("Buffer.SubStreams", 1, 1<<10),
		RangeValidator("Sink.SQLPageSize", 0, 1<<24),
		OneOfValidator("Sink.SQLDriver", "", "sqlite3", "postgres", "pgx"),
		OneOfValidator("Observability.LogLevel", "debug", "info", "warn", "error"),
	)
	if err != nil {
		return err
	}
	if s.Sink.SQLDriver != "" {
		if err := Validate(s, RequiredFields("Sink.SQLDSN", "Sink.SQLStream")); err != nil {
			return err
		}
	}
	_, err = s.Buffer.StreamConfig()
	return err
}

// StreamConfig builds the asyncstream configuration. The buffer is widened
// first so the intermediate builder steps hold the sizing invariant, and set
// to its final size last.
func (b BufferSettings) StreamConfig() (*asyncstream.Config, error) {
	cfg := asyncstream.NewConfig()
	wide := 2 * max(b.SubStreams, cfg.GetSubStreamsHint()) *
		max(b.PageSize, cfg.GetPageSize()) *
		max(b.MergeablePages, cfg.GetMergeablePagesHint())
	cfg.BufferSize(max(b.Size, cfg.GetBufferSize(), wide))
	cfg.PageSize(b.PageSize).MergeablePagesHint(b.MergeablePages).SubStreamsHint(b.SubStreams).BufferSize(b.Size)
	if b.NonBlockingSync {
		cfg.EnableNonBlockingSync()
	}
	if err := cfg.Err(); err != nil {
		return nil, fmt.Errorf("buffer settings: %w", err)
	}
	return cfg, nil
}
