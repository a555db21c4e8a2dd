package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stingraykit/toolkit/pkg/core"
)

// PoolConfig configures the database connection pool
type PoolConfig struct {
	// DSN is the database connection string
	DSN string `yaml:"dsn" json:"dsn"`

	// DriverName is the database/sql driver name ("sqlite3", "postgres", "pgx")
	DriverName string `yaml:"driver" json:"driver"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`

	// ConnMaxLifetime is the maximum amount of time a connection may be reused
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`

	// ConnMaxIdleTime is the maximum amount of time a connection may be idle
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultPoolConfig returns the default pool configuration
func DefaultPoolConfig(dsn string, driverName string) PoolConfig {
	return PoolConfig{
		DSN:             dsn,
		DriverName:      driverName,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// Validate checks the configuration without opening anything
func (c PoolConfig) Validate() error {
	switch {
	case c.DSN == "":
		return core.NewError(core.CodeInvalidConfig, "DSN cannot be empty")
	case c.DriverName == "":
		return core.NewError(core.CodeInvalidConfig, "DriverName cannot be empty")
	case c.MaxOpenConns <= 0:
		return core.NewError(core.CodeInvalidConfig, "MaxOpenConns must be positive")
	case c.MaxIdleConns < 0:
		return core.NewError(core.CodeInvalidConfig, "MaxIdleConns cannot be negative")
	case c.MaxIdleConns > c.MaxOpenConns:
		return core.NewError(core.CodeInvalidConfig, "MaxIdleConns cannot exceed MaxOpenConns")
	case c.ConnMaxLifetime < 0:
		return core.NewError(core.CodeInvalidConfig, "ConnMaxLifetime cannot be negative")
	case c.ConnMaxIdleTime < 0:
		return core.NewError(core.CodeInvalidConfig, "ConnMaxIdleTime cannot be negative")
	}
	if _, err := DialectFor(c.DriverName); err != nil {
		return err
	}
	return nil
}

// Pool is a database connection pool with its SQL dialect
type Pool struct {
	db      *sql.DB
	config  PoolConfig
	dialect Dialect
}

// NewPool opens and pings a connection pool
// Fail-fast: Validates configuration before creating pool
func NewPool(config PoolConfig) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	dialect, _ := DialectFor(config.DriverName)

	db, err := sql.Open(config.DriverName, config.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	// Test connection (fail-fast: verify connection works)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &Pool{
		db:      db,
		config:  config,
		dialect: dialect,
	}, nil
}

// DB returns the underlying *sql.DB
// Fail-fast: Panics if pool is nil (invalid state)
func (p *Pool) DB() *sql.DB {
	if p == nil || p.db == nil {
		panic("pool not initialized")
	}
	return p.db
}

// Dialect returns the SQL dialect of the configured driver
func (p *Pool) Dialect() Dialect {
	return p.dialect
}

// Close closes the connection pool
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return core.NewError(core.CodeInvalidState, "pool already closed")
	}
	return p.db.Close()
}

// Ping tests the connection
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.db.PingContext(ctx)
}

// Stats returns pool statistics
func (p *Pool) Stats() sql.DBStats {
	if p == nil || p.db == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}

// Exec executes a command
func (p *Pool) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, core.NewError(core.CodeInvalidInput, "query cannot be empty")
	}
	return p.db.ExecContext(ctx, query, args...)
}

// QueryRow executes a query that returns a single row
// Fail-fast: Panics on invalid inputs since *sql.Row cannot carry an error
func (p *Pool) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	if err := p.check(ctx); err != nil {
		panic(err)
	}
	if query == "" {
		panic("query cannot be empty")
	}
	return p.db.QueryRowContext(ctx, query, args...)
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise
func (p *Pool) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (p *Pool) check(ctx context.Context) error {
	if p == nil || p.db == nil {
		return core.NewError(core.CodeInvalidState, "pool not initialized")
	}
	if ctx == nil {
		return core.NewError(core.CodeInvalidInput, "context cannot be nil")
	}
	return nil
}
