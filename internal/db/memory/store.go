// Package memory is an in-process db.Store used as the default host store
// and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kailas-cloud/tagfind/internal/db"
	"github.com/kailas-cloud/tagfind/internal/domain/record"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Store keeps records in a map guarded by a RWMutex. Records are copied on
// the way in and out.
type Store struct {
	mu      sync.RWMutex
	records map[record.Key]record.Record
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[record.Key]record.Record)}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately unless ctx is already done.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("timeout waiting for database: %w", err)
	}
	return nil
}

// Get returns a copy of the record at key.
func (s *Store) Get(_ context.Context, key record.Key) (record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return record.Record{}, db.ErrKeyNotFound
	}
	return rec.Clone(), nil
}

// Keys returns all stored keys.
func (s *Store) Keys(_ context.Context) ([]record.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]record.Key, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys, nil
}

// Len returns the number of stored records.
func (s *Store) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Put stores a copy of rec.
func (s *Store) Put(_ context.Context, rec record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Key] = rec.Clone()
	return nil
}

// AppendTags appends tags to an existing record.
func (s *Store) AppendTags(_ context.Context, key record.Key, tags ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(key, tags)
}

// Apply commits muts under a single lock. It stops at the first failing
// mutation; earlier mutations stay applied.
func (s *Store) Apply(_ context.Context, muts []db.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range muts {
		switch m.Op {
		case db.MutationPut:
			s.records[m.Record.Key] = m.Record.Clone()
		case db.MutationAppendTags:
			if err := s.appendLocked(m.Record.Key, m.Tags); err != nil {
				return fmt.Errorf("mutation %d: %w", i, err)
			}
		default:
			return fmt.Errorf("mutation %d: %w", i, db.ErrUnknownOp)
		}
	}
	return nil
}

func (s *Store) appendLocked(key record.Key, tags []string) error {
	rec, ok := s.records[key]
	if !ok {
		return fmt.Errorf("append tags to %s: %w", key, db.ErrKeyNotFound)
	}
	for _, t := range tags {
		rec.AppendTag(t)
	}
	s.records[key] = rec
	return nil
}
