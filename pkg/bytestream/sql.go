package bytestream

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/stingraykit/toolkit/pkg/db"
)

// DefaultSQLPageSize is the page size used when none is given
const DefaultSQLPageSize = 4096

// SQLStream stores a named byte stream as fixed-size pages in a SQL table.
// Every Write is one transaction doing read-modify-write of the touched
// pages, so a returned Write is already committed.
type SQLStream struct {
	pool     *db.Pool
	dialect  db.Dialect
	name     string
	pageSize int

	mu     sync.Mutex
	pos    int64
	length int64
}

// NewSQLStream creates the schema if needed and opens stream name,
// positioned at 0. An existing stream keeps its length and contents.
func NewSQLStream(ctx context.Context, pool *db.Pool, name string, pageSize int) (*SQLStream, error) {
	if name == "" {
		return nil, errors.New("bytestream: sql stream name is required")
	}
	if pageSize <= 0 {
		pageSize = DefaultSQLPageSize
	}
	s := &SQLStream{
		pool:     pool,
		dialect:  pool.Dialect(),
		name:     name,
		pageSize: pageSize,
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	err := pool.QueryRow(ctx,
		"SELECT length FROM bytestream_meta WHERE stream = "+s.dialect.Placeholder(1), name,
	).Scan(&s.length)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bytestream: load length of %q: %w", name, err)
	}
	return s, nil
}

// EnsureSchema creates the page and meta tables
func (s *SQLStream) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS bytestream_pages (" +
			"stream TEXT NOT NULL, page BIGINT NOT NULL, data " + s.dialect.BlobType + " NOT NULL, " +
			"PRIMARY KEY (stream, page))",
		"CREATE TABLE IF NOT EXISTS bytestream_meta (" +
			"stream TEXT PRIMARY KEY, length BIGINT NOT NULL)",
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bytestream: create schema: %w", err)
		}
	}
	return nil
}

// Name returns the stream name
func (s *SQLStream) Name() string { return s.name }

// Write stores p at the current position
func (s *SQLStream) Write(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.pos
	end := pos + int64(len(p))
	length := max(s.length, end)

	err := s.pool.WithTx(ctx, func(tx *sql.Tx) error {
		rest := p
		off := pos
		for len(rest) > 0 {
			page := off / int64(s.pageSize)
			inPage := int(off % int64(s.pageSize))
			n := min(len(rest), s.pageSize-inPage)

			data, err := s.loadPage(ctx, tx, page)
			if err != nil {
				return err
			}
			if len(data) < inPage+n {
				grown := make([]byte, inPage+n)
				copy(grown, data)
				data = grown
			}
			copy(data[inPage:], rest[:n])
			if err := s.storePage(ctx, tx, page, data); err != nil {
				return err
			}
			rest = rest[n:]
			off += int64(n)
		}
		return s.storeLength(ctx, tx, length)
	})
	if err != nil {
		return 0, err
	}

	s.pos = end
	s.length = length
	return len(p), nil
}

// Truncate drops every page of the stream and resets its length and
// position to 0 in one transaction
func (s *SQLStream) Truncate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.pool.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM bytestream_pages WHERE stream = "+s.dialect.Placeholder(1), s.name,
		); err != nil {
			return err
		}
		return s.storeLength(ctx, tx, 0)
	})
	if err != nil {
		return fmt.Errorf("bytestream: truncate %q: %w", s.name, err)
	}
	s.pos = 0
	s.length = 0
	return nil
}

// Seek moves the position; SeekEnd is relative to the stored length
func (s *SQLStream) Seek(offset int64, mode SeekMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, err := ResolveSeek(offset, mode, s.pos, s.length)
	if err != nil {
		return err
	}
	s.pos = pos
	return nil
}

// Tell returns the position
func (s *SQLStream) Tell() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, nil
}

// Sync has nothing to flush: each Write commits its own transaction
func (s *SQLStream) Sync(ctx context.Context) error {
	return ctx.Err()
}

// Length returns the stored stream length
func (s *SQLStream) Length() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.length
}

// ReadAt reads len(p) bytes starting at off. Unwritten holes read as zeros.
// Returns io.EOF when fewer than len(p) bytes exist past off.
func (s *SQLStream) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	s.mu.Lock()
	length := s.length
	s.mu.Unlock()

	if off >= length {
		return 0, io.EOF
	}
	want := int(min(int64(len(p)), length-off))

	read := 0
	for read < want {
		cur := off + int64(read)
		page := cur / int64(s.pageSize)
		inPage := int(cur % int64(s.pageSize))
		n := min(want-read, s.pageSize-inPage)

		var data []byte
		err := s.pool.QueryRow(ctx,
			"SELECT data FROM bytestream_pages WHERE stream = "+s.dialect.Placeholder(1)+
				" AND page = "+s.dialect.Placeholder(2), s.name, page,
		).Scan(&data)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return read, err
		}
		dst := p[read : read+n]
		clear(dst)
		if inPage < len(data) {
			copy(dst, data[inPage:])
		}
		read += n
	}
	if read < len(p) {
		return read, io.EOF
	}
	return read, nil
}

func (s *SQLStream) loadPage(ctx context.Context, tx *sql.Tx, page int64) ([]byte, error) {
	var data []byte
	err := tx.QueryRowContext(ctx,
		"SELECT data FROM bytestream_pages WHERE stream = "+s.dialect.Placeholder(1)+
			" AND page = "+s.dialect.Placeholder(2), s.name, page,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return data, err
}

func (s *SQLStream) storePage(ctx context.Context, tx *sql.Tx, page int64, data []byte) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO bytestream_pages (stream, page, data) VALUES ("+
			s.dialect.Placeholder(1)+", "+s.dialect.Placeholder(2)+", "+s.dialect.Placeholder(3)+
			") ON CONFLICT (stream, page) DO UPDATE SET data = excluded.data",
		s.name, page, data,
	)
	return err
}

func (s *SQLStream) storeLength(ctx context.Context, tx *sql.Tx, length int64) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO bytestream_meta (stream, length) VALUES ("+
			s.dialect.Placeholder(1)+", "+s.dialect.Placeholder(2)+
			") ON CONFLICT (stream) DO UPDATE SET length = excluded.length",
		s.name, length,
	)
	return err
}

var (
	_ ByteStream = (*SQLStream)(nil)
	_ Syncer     = (*SQLStream)(nil)
)
