// Package filter defines the contract between the pipeline host and the
// filters it dispatches records to.
package filter

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/tagfind/internal/domain/record"
)

// Kind declares how a filter consumes records.
type Kind int

const (
	// SingleEntry filters are presented one record at a time.
	SingleEntry Kind = iota
	// GroupEntries filters operate on batches of records.
	GroupEntries
)

func (k Kind) String() string {
	switch k {
	case SingleEntry:
		return "single_entry"
	case GroupEntries:
		return "group_entries"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Host is the capability surface a filter uses to reach back into the store.
// Returned values are owned by the caller.
type Host interface {
	// LookupByKey resolves key to its value. ok is false when the record is
	// absent or could not be read.
	LookupByKey(ctx context.Context, key record.Key) (value string, ok bool)
	// AddTag appends tag to the record at key.
	AddTag(ctx context.Context, key record.Key, tag string)
	// CreateRecord persists a new record. The host copies its inputs.
	CreateRecord(ctx context.Context, tags []string, value string, key record.Key)
}

// Filter is a unit of pipeline logic.
type Filter interface {
	Name() string
	Kind() Kind
	// ShouldRun is a side-effect-free eligibility check. rec may be nil.
	ShouldRun(rec *record.Record) bool
	// Run executes the filter against an eligible record. Effects are only
	// observable through host calls.
	Run(ctx context.Context, host Host, rec *record.Record)
}

// Initializer is implemented by filters that need one-time setup.
type Initializer interface {
	Init(ctx context.Context) error
}

// Destroyer is implemented by filters that need one-time teardown.
type Destroyer interface {
	Destroy()
}
