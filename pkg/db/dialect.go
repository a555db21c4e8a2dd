package db

import (
	"strconv"

	"github.com/stingraykit/toolkit/pkg/core"
)

// Dialect captures the SQL differences between supported drivers
type Dialect struct {
	Name string
	// BlobType is the column type for binary payloads
	BlobType string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

var (
	// SQLite is the dialect of github.com/mattn/go-sqlite3
	SQLite = Dialect{Name: "sqlite3", BlobType: "BLOB"}
	// Postgres is the dialect of github.com/lib/pq and pgx/stdlib
	Postgres = Dialect{Name: "postgres", BlobType: "BYTEA", numbered: true}
)

// DialectFor maps a database/sql driver name to its dialect
func DialectFor(driverName string) (Dialect, error) {
	switch driverName {
	case "sqlite3":
		return SQLite, nil
	case "postgres", "pgx":
		return Postgres, nil
	default:
		return Dialect{}, core.NewError(core.CodeInvalidConfig, "unsupported driver "+strconv.Quote(driverName))
	}
}

// Placeholder returns the bind marker for the n-th (1-based) argument
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
