package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/stingraykit/toolkit/pkg/bytestream"
	"github.com/stingraykit/toolkit/pkg/config"
	"github.com/stingraykit/toolkit/pkg/core"
	"github.com/stingraykit/toolkit/pkg/db"
)

func writeInput(t *testing.T, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	rand.New(rand.NewSource(7)).Read(data)
	path := filepath.Join(t.TempDir(), "input.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path, data
}

func digestLine(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestRun_CopiesIntoFile(t *testing.T) {
	in, data := writeInput(t, 300<<10)
	out := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(out, bytes.Repeat([]byte("x"), 1<<20), 0o600))

	var stdout bytes.Buffer
	err := run(context.Background(), options{in: in, out: out, chunk: 1000}, &stdout)
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, got, "existing contents must be truncated")
	assert.True(t, strings.HasPrefix(stdout.String(), digestLine(data)+"  307200 bytes\n"), stdout.String())
	assert.Contains(t, stdout.String(), "writes=")
}

func TestRun_AppendKeepsExistingContents(t *testing.T) {
	in, data := writeInput(t, 5000)
	out := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(out, []byte("head:"), 0o600))

	err := run(context.Background(), options{in: in, out: out, appendMode: true}, &bytes.Buffer{})
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, append([]byte("head:"), data...), got)
}

func TestRun_CopiesIntoSQLite(t *testing.T) {
	in, data := writeInput(t, 70000)
	dsn := filepath.Join(t.TempDir(), "sink.db")

	var stdout bytes.Buffer
	err := run(context.Background(), options{
		in:        in,
		sqlDriver: "sqlite3",
		sqlDSN:    dsn,
		sqlStream: "copy",
		chunk:     4096,
	}, &stdout)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout.String(), digestLine(data)), stdout.String())

	pool, err := db.NewPool(db.DefaultPoolConfig(dsn, "sqlite3"))
	require.NoError(t, err)
	defer pool.Close()
	s, err := bytestream.NewSQLStream(context.Background(), pool, "copy", 0)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), s.Length())

	got := make([]byte, len(data))
	n, err := s.ReadAt(context.Background(), got, 0)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, got)
}

func TestRun_SQLiteOverwriteDropsOldTail(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "sink.db")
	long, _ := writeInput(t, 10000)
	short, shortData := writeInput(t, 100)
	opts := options{sqlDriver: "sqlite3", sqlDSN: dsn, sqlStream: "copy"}

	opts.in = long
	require.NoError(t, run(context.Background(), opts, &bytes.Buffer{}))
	opts.in = short
	require.NoError(t, run(context.Background(), opts, &bytes.Buffer{}))

	pool, err := db.NewPool(db.DefaultPoolConfig(dsn, "sqlite3"))
	require.NoError(t, err)
	defer pool.Close()
	s, err := bytestream.NewSQLStream(context.Background(), pool, "copy", 0)
	require.NoError(t, err)
	require.Equal(t, int64(len(shortData)), s.Length())

	got := make([]byte, len(shortData))
	_, err = s.ReadAt(context.Background(), got, 0)
	require.NoError(t, err)
	assert.Equal(t, shortData, got)
}

func TestRun_WriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamcopy.yaml")

	var stdout bytes.Buffer
	err := run(context.Background(), options{out: "ignored.bin", writeConfig: path, trace: true}, &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), path)

	settings, err := config.LoadStreamSettings(path, "STREAMCOPY_TEST_UNSET")
	require.NoError(t, err)
	assert.Equal(t, "ignored.bin", settings.Sink.Path)
	assert.True(t, settings.Observability.Trace)
}

func TestRun_RequiresSink(t *testing.T) {
	err := run(context.Background(), options{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, core.NewError(core.CodeInvalidConfig, ""))
}

func TestRun_CancelledContext(t *testing.T) {
	in, _ := writeInput(t, 1<<20)
	out := filepath.Join(t.TempDir(), "out.bin")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, options{in: in, out: out}, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
