package records

import (
	"context"

	"github.com/kailas-cloud/tagfind/internal/domain/record"
)

// Repository defines the storage contract for records.
type Repository interface {
	Get(ctx context.Context, key record.Key) (record.Record, error)
	Put(ctx context.Context, rec record.Record) error
	Keys(ctx context.Context) ([]record.Key, error)
}

// Processor runs the installed filters until the store settles.
type Processor interface {
	Process(ctx context.Context) (int, error)
}
