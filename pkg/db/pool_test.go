package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func TestDefaultPoolConfig(t *testing.T) {
	config := DefaultPoolConfig("test-dsn", "postgres")

	if config.DSN != "test-dsn" {
		t.Errorf("DSN = %v, want test-dsn", config.DSN)
	}
	if config.DriverName != "postgres" {
		t.Errorf("DriverName = %v, want postgres", config.DriverName)
	}
	if config.MaxOpenConns != 25 {
		t.Errorf("MaxOpenConns = %v, want 25", config.MaxOpenConns)
	}
	if config.MaxIdleConns != 5 {
		t.Errorf("MaxIdleConns = %v, want 5", config.MaxIdleConns)
	}
	if config.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want 5m", config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime != 10*time.Minute {
		t.Errorf("ConnMaxIdleTime = %v, want 10m", config.ConnMaxIdleTime)
	}
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver string
		want   Dialect
		second string
	}{
		{"sqlite3", SQLite, "?"},
		{"postgres", Postgres, "$2"},
		{"pgx", Postgres, "$2"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := DialectFor(tt.driver)
			if err != nil {
				t.Fatalf("DialectFor() error = %v", err)
			}
			if d != tt.want {
				t.Errorf("DialectFor() = %+v, want %+v", d, tt.want)
			}
			if got := d.Placeholder(2); got != tt.second {
				t.Errorf("Placeholder(2) = %q, want %q", got, tt.second)
			}
		})
	}
}

func openSQLitePool(t *testing.T) *Pool {
	t.Helper()
	config := DefaultPoolConfig(filepath.Join(t.TempDir(), "pool.db"), "sqlite3")
	config.MaxOpenConns = 1
	config.MaxIdleConns = 1
	pool, err := NewPool(config)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func TestPool_SQLite_ExecAndQuery(t *testing.T) {
	pool := openSQLitePool(t)
	ctx := context.Background()

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, err := pool.Exec(ctx, "CREATE TABLE kv (k TEXT PRIMARY KEY, v INTEGER)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := pool.Exec(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "a", 1); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var v int
	if err := pool.QueryRow(ctx, "SELECT v FROM kv WHERE k = ?", "a").Scan(&v); err != nil {
		t.Fatalf("select: %v", err)
	}
	if v != 1 {
		t.Errorf("v = %d, want 1", v)
	}
	if pool.Dialect() != SQLite {
		t.Errorf("Dialect() = %+v, want sqlite", pool.Dialect())
	}
}

func TestPool_WithTx_RollsBackOnError(t *testing.T) {
	pool := openSQLitePool(t)
	ctx := context.Background()

	if _, err := pool.Exec(ctx, "CREATE TABLE kv (k TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	err := pool.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO kv (k) VALUES ('x')"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	var n int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM kv").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("rows = %d, want 0 after rollback", n)
	}

	if err := pool.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO kv (k) VALUES ('y')")
		return err
	}); err != nil {
		t.Fatalf("WithTx commit: %v", err)
	}
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM kv").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1 after commit", n)
	}
}
