// Package postgres implements db.Store on PostgreSQL via lib/pq. Key fields
// are stored as BIGINT holding the two's-complement bits of the uint64.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kailas-cloud/tagfind/internal/db"
	"github.com/kailas-cloud/tagfind/internal/domain/record"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

const schema = `CREATE TABLE IF NOT EXISTS records (
	domain BIGINT NOT NULL,
	b      BIGINT NOT NULL,
	c      BIGINT NOT NULL,
	value  TEXT   NOT NULL,
	tags   TEXT[] NOT NULL DEFAULT '{}',
	PRIMARY KEY (domain, b, c)
)`

const (
	selectRecord = `SELECT value, tags FROM records WHERE domain = $1 AND b = $2 AND c = $3`
	selectKeys   = `SELECT domain, b, c FROM records`
	countRecords = `SELECT COUNT(*) FROM records`
	upsertRecord = `INSERT INTO records (domain, b, c, value, tags) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (domain, b, c) DO UPDATE SET value = EXCLUDED.value, tags = EXCLUDED.tags`
	appendTags = `UPDATE records SET tags = array_cat(tags, $4) WHERE domain = $1 AND b = $2 AND c = $3`
)

// Config holds connection parameters for a PostgreSQL store.
type Config struct {
	DSN string
}

// Store implements db.Store over a *sql.DB.
type Store struct {
	db *sql.DB
}

// NewStore opens a connection pool. It does not contact the server; call
// WaitForReady and Migrate before use.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	conn, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)
	return NewStoreFromDB(conn), nil
}

// NewStoreFromDB wraps an existing pool.
func NewStoreFromDB(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// Migrate creates the records table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the server responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Get returns the record at key.
func (s *Store) Get(ctx context.Context, key record.Key) (record.Record, error) {
	var value string
	var tags []string
	d, b, c := keyArgs(key)
	err := s.db.QueryRowContext(ctx, selectRecord, d, b, c).Scan(&value, pq.Array(&tags))
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, db.ErrKeyNotFound
	}
	if err != nil {
		return record.Record{}, &db.Error{Op: db.OpSelect, Err: err}
	}
	if len(tags) == 0 {
		tags = nil
	}
	return record.Record{Key: key, Value: value, Tags: tags}, nil
}

// Keys returns every stored key.
func (s *Store) Keys(ctx context.Context) ([]record.Key, error) {
	rows, err := s.db.QueryContext(ctx, selectKeys)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	defer rows.Close()

	var keys []record.Key
	for rows.Next() {
		var d, b, c int64
		if err := rows.Scan(&d, &b, &c); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		keys = append(keys, record.Key{Domain: uint64(d), B: uint64(b), C: uint64(c)})
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	return keys, nil
}

// Len counts stored records.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countRecords).Scan(&n); err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return n, nil
}

// Put upserts rec.
func (s *Store) Put(ctx context.Context, rec record.Record) error {
	return put(ctx, s.db, rec)
}

// AppendTags appends tags to an existing record.
func (s *Store) AppendTags(ctx context.Context, key record.Key, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	return appendTo(ctx, s.db, key, tags)
}

// Apply commits muts in one transaction.
func (s *Store) Apply(ctx context.Context, muts []db.Mutation) (err error) {
	if len(muts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpBegin, Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, m := range muts {
		switch m.Op {
		case db.MutationPut:
			err = put(ctx, tx, m.Record)
		case db.MutationAppendTags:
			if len(m.Tags) > 0 {
				err = appendTo(ctx, tx, m.Record.Key, m.Tags)
			}
		default:
			err = db.ErrUnknownOp
		}
		if err != nil {
			return fmt.Errorf("mutation %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func put(ctx context.Context, e execer, rec record.Record) error {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	d, b, c := keyArgs(rec.Key)
	if _, err := e.ExecContext(ctx, upsertRecord, d, b, c, rec.Value, pq.Array(tags)); err != nil {
		return &db.Error{Op: db.OpInsert, Err: err}
	}
	return nil
}

func appendTo(ctx context.Context, e execer, key record.Key, tags []string) error {
	d, b, c := keyArgs(key)
	res, err := e.ExecContext(ctx, appendTags, d, b, c, pq.Array(tags))
	if err != nil {
		return &db.Error{Op: db.OpUpdate, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &db.Error{Op: db.OpUpdate, Err: err}
	}
	if n == 0 {
		return fmt.Errorf("append tags to %s: %w", key, db.ErrKeyNotFound)
	}
	return nil
}

func keyArgs(k record.Key) (int64, int64, int64) {
	return int64(k.Domain), int64(k.B), int64(k.C)
}
