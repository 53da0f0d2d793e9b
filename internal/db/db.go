package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/tagfind/internal/domain/record"
)

// Store is the main database facade combining all sub-interfaces.
type Store interface {
	Pinger
	RecordReader
	RecordWriter
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RecordReader provides read access to records.
type RecordReader interface {
	// Get returns the record at key or ErrKeyNotFound.
	Get(ctx context.Context, key record.Key) (record.Record, error)
	// Keys returns the keys of all stored records in unspecified order.
	Keys(ctx context.Context) ([]record.Key, error)
	Len(ctx context.Context) (int, error)
}

// RecordWriter provides write access to records.
type RecordWriter interface {
	// Put stores rec, replacing any record at the same key.
	Put(ctx context.Context, rec record.Record) error
	// AppendTags appends tags to the record at key.
	AppendTags(ctx context.Context, key record.Key, tags ...string) error
	// Apply commits a batch of mutations in order.
	Apply(ctx context.Context, muts []Mutation) error
}

// MutationOp identifies the kind of a journaled write.
type MutationOp int

const (
	// MutationPut stores a whole record.
	MutationPut MutationOp = iota
	// MutationAppendTags appends tags to an existing record.
	MutationAppendTags
)

// Mutation is a single journaled write.
type Mutation struct {
	Op     MutationOp
	Record record.Record // Key is used for MutationAppendTags, the whole record for MutationPut
	Tags   []string
}

// PutMutation journals storing rec.
func PutMutation(rec record.Record) Mutation {
	return Mutation{Op: MutationPut, Record: rec}
}

// AppendTagsMutation journals appending tags to key.
func AppendTagsMutation(key record.Key, tags ...string) Mutation {
	return Mutation{Op: MutationAppendTags, Record: record.Record{Key: key}, Tags: tags}
}
