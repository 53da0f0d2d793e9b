// Package find implements the "find" filter: every record outside the search
// domain is checked for the query text stored at QueryKey, matches are
// reported as new records in the search domain, and each processed record is
// tagged so the pipeline does not present it again.
package find

import (
	"context"

	"github.com/kailas-cloud/tagfind/internal/domain/record"
	"github.com/kailas-cloud/tagfind/internal/filter"
	"github.com/kailas-cloud/tagfind/internal/matcher"
)

const (
	// Name is the filter's registered name.
	Name = "find"
	// DoneTag marks a record the filter ran on, whether or not it matched.
	DoneTag = "find:done"
	// FailTag marks a record the filter could not process because the query
	// record was unavailable.
	FailTag = "find:fail"
	// SearchDomain is the key domain reserved for query and result records.
	SearchDomain uint64 = 99
)

// QueryKey is where the search text is stored.
var QueryKey = record.Key{Domain: SearchDomain, B: 0, C: 1}

// Compile-time check: Filter implements filter.Filter.
var _ filter.Filter = (*Filter)(nil)

// Filter is the find filter. It holds no per-record state.
type Filter struct {
	keys    KeyGenerator
	matcher *matcher.Matcher
}

// New creates a find filter. keys generates result record keys; m may be nil,
// in which case a matcher with the default cache size is used.
func New(keys KeyGenerator, m *matcher.Matcher) *Filter {
	if m == nil {
		m = matcher.New(matcher.DefaultCacheSize)
	}
	return &Filter{keys: keys, matcher: m}
}

// Name returns "find".
func (f *Filter) Name() string { return Name }

// Kind returns filter.SingleEntry.
func (f *Filter) Kind() filter.Kind { return filter.SingleEntry }

// ShouldRun reports whether rec is eligible: present, outside the search
// domain and not yet tagged done or failed.
func (f *Filter) ShouldRun(rec *record.Record) bool {
	if rec == nil {
		return false
	}
	if rec.Key.Domain == SearchDomain {
		return false
	}
	for _, tag := range rec.Tags {
		if tag == DoneTag || tag == FailTag {
			return false
		}
	}
	return true
}

// Run looks up the query, emits a result record when rec's value contains it
// and tags rec. Exactly one of FailTag or DoneTag is appended.
func (f *Filter) Run(ctx context.Context, host filter.Host, rec *record.Record) {
	if rec == nil || host == nil {
		return
	}

	query, ok := host.LookupByKey(ctx, QueryKey)
	if !ok {
		host.AddTag(ctx, rec.Key, FailTag)
		return
	}

	if f.matcher.Contains(rec.Value, query) {
		host.CreateRecord(ctx, nil, rec.Key.String(), f.keys.Next())
	}

	host.AddTag(ctx, rec.Key, DoneTag)
}
