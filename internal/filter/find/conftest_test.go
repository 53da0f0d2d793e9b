package find

import (
	"context"
	"testing"

	"github.com/kailas-cloud/tagfind/internal/domain/record"
)

type createdRecord struct {
	tags  []string
	value string
	key   record.Key
}

type addedTag struct {
	key record.Key
	tag string
}

// mockHost implements filter.Host and records every call.
type mockHost struct {
	lookupFn func(ctx context.Context, key record.Key) (string, bool)

	lookups []record.Key
	tags    []addedTag
	created []createdRecord
}

func (m *mockHost) LookupByKey(ctx context.Context, key record.Key) (string, bool) {
	m.lookups = append(m.lookups, key)
	if m.lookupFn != nil {
		return m.lookupFn(ctx, key)
	}
	return "", false
}

func (m *mockHost) AddTag(_ context.Context, key record.Key, tag string) {
	m.tags = append(m.tags, addedTag{key: key, tag: tag})
}

func (m *mockHost) CreateRecord(_ context.Context, tags []string, value string, key record.Key) {
	m.created = append(m.created, createdRecord{tags: tags, value: value, key: key})
}

// withQuery returns a host whose query record holds q.
func withQuery(q string) *mockHost {
	return &mockHost{
		lookupFn: func(_ context.Context, key record.Key) (string, bool) {
			if key != QueryKey {
				return "", false
			}
			return q, true
		},
	}
}

// fixedKeys returns keys from a fixed list, repeating the last one.
type fixedKeys struct {
	keys []record.Key
	n    int
}

func (f *fixedKeys) Next() record.Key {
	k := f.keys[min(f.n, len(f.keys)-1)]
	f.n++
	return k
}

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	return New(&fixedKeys{keys: []record.Key{{Domain: SearchDomain, B: 11, C: 22}}}, nil)
}
