package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stingraykit/toolkit/pkg/asyncstream"
)

func TestDefaultStreamSettings_Valid(t *testing.T) {
	s := DefaultStreamSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg, err := s.Buffer.StreamConfig()
	if err != nil {
		t.Fatalf("StreamConfig failed: %v", err)
	}
	def := asyncstream.NewConfig()
	if cfg.GetBufferSize() != def.GetBufferSize() || cfg.GetPageSize() != def.GetPageSize() {
		t.Errorf("Expected default geometry, got %s", cfg)
	}
}

func TestLoadStreamSettings_FileAndEnv(t *testing.T) {
	path := writeFile(t, "stream.yaml", `
name: nightly
buffer:
  size: 1048576
  page_size: 512
  mergeable_pages: 8
sink:
  sql_driver: sqlite3
  sql_dsn: file:pages.db
observability:
  log_level: debug
  sync_timeout: 5s
`)
	t.Setenv("STREAMCOPY_BUFFER_NON_BLOCKING_SYNC", "true")
	t.Setenv("STREAMCOPY_OBSERVABILITY_METRICS_ADDR", ":9102")

	s, err := LoadStreamSettings(path, "")
	if err != nil {
		t.Fatalf("LoadStreamSettings failed: %v", err)
	}
	if s.Name != "nightly" {
		t.Errorf("Name = %q", s.Name)
	}
	if s.Sink.SQLStream != "streamcopy" {
		t.Errorf("Sink.SQLStream should keep its default, got %q", s.Sink.SQLStream)
	}
	if s.Observability.MetricsAddr != ":9102" {
		t.Errorf("MetricsAddr = %q", s.Observability.MetricsAddr)
	}
	if s.Observability.SyncTimeout != 5*time.Second {
		t.Errorf("SyncTimeout = %v", s.Observability.SyncTimeout)
	}

	cfg, err := s.Buffer.StreamConfig()
	if err != nil {
		t.Fatalf("StreamConfig failed: %v", err)
	}
	if cfg.GetBufferSize() != 1<<20 || cfg.GetPageSize() != 512 || cfg.GetMergeablePagesHint() != 8 {
		t.Errorf("unexpected config %s", cfg)
	}
	if !cfg.NonBlockingSync() {
		t.Error("Expected non-blocking sync from env")
	}
}

func TestBufferSettings_LargePagesOnSmallerBuffer(t *testing.T) {
	b := BufferSettings{Size: 4 << 20, PageSize: 1 << 20, MergeablePages: 2, SubStreams: 1}
	cfg, err := b.StreamConfig()
	if err != nil {
		t.Fatalf("StreamConfig failed: %v", err)
	}
	if cfg.GetBufferSize() != 4<<20 {
		t.Errorf("BufferSize = %d", cfg.GetBufferSize())
	}
}

func TestStreamSettings_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *StreamSettings)
	}{
		{"buffer too small", func(s *StreamSettings) { s.Buffer.Size = 1024 }},
		{"zero page size", func(s *StreamSettings) { s.Buffer.PageSize = 0 }},
		{"unknown driver", func(s *StreamSettings) { s.Sink.SQLDriver = "mysql" }},
		{"sql without dsn", func(s *StreamSettings) { s.Sink.SQLDriver = "postgres" }},
		{"bad log level", func(s *StreamSettings) { s.Observability.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultStreamSettings()
			tt.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestStreamSettings_InvariantErrorIsTyped(t *testing.T) {
	b := BufferSettings{Size: 100, PageSize: 64, MergeablePages: 1, SubStreams: 1}
	_, err := b.StreamConfig()
	if !errors.Is(err, asyncstream.ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestStreamSettings_SaveAndReload(t *testing.T) {
	s := DefaultStreamSettings()
	s.Name = "saved"
	s.Sink.Path = "/tmp/out.bin"

	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := Save(path, &s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := LoadStreamSettings(path, "UNUSED_PREFIX")
	if err != nil {
		t.Fatalf("LoadStreamSettings failed: %v", err)
	}
	if got != s {
		t.Errorf("reloaded settings differ:\n got %+v\nwant %+v", got, s)
	}
}
