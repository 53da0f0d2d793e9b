package pipeline

import (
	"context"
	"testing"

	"github.com/kailas-cloud/tagfind/internal/db"
	"github.com/kailas-cloud/tagfind/internal/db/memory"
	"github.com/kailas-cloud/tagfind/internal/domain/record"
	"github.com/kailas-cloud/tagfind/internal/filter"
	"github.com/kailas-cloud/tagfind/internal/filter/find"
)

// mockStore implements Store for error-path tests.
type mockStore struct {
	keysFn  func(ctx context.Context) ([]record.Key, error)
	getFn   func(ctx context.Context, key record.Key) (record.Record, error)
	applyFn func(ctx context.Context, muts []db.Mutation) error
}

func (m *mockStore) Keys(ctx context.Context) ([]record.Key, error) {
	if m.keysFn != nil {
		return m.keysFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) Get(ctx context.Context, key record.Key) (record.Record, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return record.Record{}, db.ErrKeyNotFound
}

func (m *mockStore) Len(_ context.Context) (int, error) { return 0, nil }

func (m *mockStore) Apply(ctx context.Context, muts []db.Mutation) error {
	if m.applyFn != nil {
		return m.applyFn(ctx, muts)
	}
	return nil
}

// lifecycleFilter counts lifecycle hook and Run calls.
type lifecycleFilter struct {
	name     string
	kind     filter.Kind
	initErr  error
	inits    int
	destroys int
	runs     int
	eligible bool
}

func (l *lifecycleFilter) Name() string                    { return l.name }
func (l *lifecycleFilter) Kind() filter.Kind               { return l.kind }
func (l *lifecycleFilter) ShouldRun(_ *record.Record) bool { return l.eligible }
func (l *lifecycleFilter) Run(_ context.Context, _ filter.Host, _ *record.Record) {
	l.runs++
}
func (l *lifecycleFilter) Init(_ context.Context) error { l.inits++; return l.initErr }
func (l *lifecycleFilter) Destroy()                     { l.destroys++ }

func newFindEngine(t *testing.T, recs ...record.Record) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	for _, r := range recs {
		if err := store.Put(ctx, r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	e := New(store, nil)
	e.Install(find.New(find.NewRandomKeys(1), nil))
	return e, store
}

func mustGet(t *testing.T, s *memory.Store, key record.Key) record.Record {
	t.Helper()
	rec, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return rec
}

// resultValues returns the values of all search-domain records except the query.
func resultValues(t *testing.T, s *memory.Store) map[string]int {
	t.Helper()
	ctx := context.Background()
	keys, _ := s.Keys(ctx)
	out := make(map[string]int)
	for _, k := range keys {
		if k.Domain != find.SearchDomain || k == find.QueryKey {
			continue
		}
		rec := mustGet(t, s, k)
		out[rec.Value]++
	}
	return out
}
