package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/tagfind/internal/db"
	"github.com/kailas-cloud/tagfind/internal/domain/record"
	"github.com/kailas-cloud/tagfind/internal/filter"
	"github.com/kailas-cloud/tagfind/internal/filter/find"
	"github.com/kailas-cloud/tagfind/internal/metrics"
)

func TestProcess_FindsMatches(t *testing.T) {
	e, store := newFindEngine(t,
		record.New(find.QueryKey, "somet"),
		record.New(record.Key{Domain: 5, B: 0, C: 0}, "there is something to search for in here..."),
		record.New(record.Key{Domain: 5, B: 0, C: 1}, "there is nothing to search for in here"),
		record.New(record.Key{Domain: 5, B: 0, C: 2}, "but sometimes it's good to search anyway"),
	)
	ctx := context.Background()

	passes, err := e.Process(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if passes != 2 {
		t.Fatalf("expected 2 passes (work + settle), got %d", passes)
	}
	if n, _ := store.Len(ctx); n != 6 {
		t.Fatalf("expected 6 records, got %d", n)
	}

	results := resultValues(t, store)
	if results["5:0:0"] != 1 || results["5:0:2"] != 1 || len(results) != 2 {
		t.Fatalf("unexpected results %v", results)
	}

	for _, c := range []uint64{0, 1, 2} {
		rec := mustGet(t, store, record.Key{Domain: 5, B: 0, C: c})
		if len(rec.Tags) != 1 || rec.Tags[0] != find.DoneTag {
			t.Errorf("record 5:0:%d: expected [%s], got %v", c, find.DoneTag, rec.Tags)
		}
	}
	if q := mustGet(t, store, find.QueryKey); len(q.Tags) != 0 || q.Value != "somet" {
		t.Fatalf("query record was modified: %+v", q)
	}
}

func TestProcess_QueryMissingFails(t *testing.T) {
	key := record.Key{Domain: 5, B: 0, C: 2}
	e, store := newFindEngine(t, record.New(key, "no query was given"))
	ctx := context.Background()

	if _, err := e.Process(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := store.Len(ctx); n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
	rec := mustGet(t, store, key)
	if len(rec.Tags) != 1 || rec.Tags[0] != find.FailTag {
		t.Fatalf("expected [%s], got %v", find.FailTag, rec.Tags)
	}
}

func TestProcess_Scenarios(t *testing.T) {
	matchKey := record.Key{Domain: 7, B: 1, C: 2}
	missKey := record.Key{Domain: 7, B: 1, C: 3}
	e, store := newFindEngine(t,
		record.New(find.QueryKey, "alpha"),
		record.New(matchKey, "xalphay"),
		record.New(missKey, "beta"),
	)
	if _, err := e.Process(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := resultValues(t, store)
	if len(results) != 1 || results["7:1:2"] != 1 {
		t.Fatalf("expected one result 7:1:2, got %v", results)
	}
	for _, k := range []record.Key{matchKey, missKey} {
		if rec := mustGet(t, store, k); !rec.HasTag(find.DoneTag) {
			t.Errorf("%s: expected done tag, got %v", k, rec.Tags)
		}
	}
}

func TestProcess_AlreadyProcessedIsSkipped(t *testing.T) {
	key := record.Key{Domain: 5, B: 1, C: 1}
	e, store := newFindEngine(t,
		record.New(find.QueryKey, "a"),
		record.New(key, "abc", find.DoneTag),
	)
	ran, err := e.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran {
		t.Fatal("expected no filter to run")
	}
	if rec := mustGet(t, store, key); len(rec.Tags) != 1 {
		t.Fatalf("expected tags untouched, got %v", rec.Tags)
	}
}

func TestProcess_IdempotentAcrossCalls(t *testing.T) {
	e, store := newFindEngine(t,
		record.New(find.QueryKey, "x"),
		record.New(record.Key{Domain: 1}, "xx"),
	)
	ctx := context.Background()
	_, _ = e.Process(ctx)
	first, _ := store.Len(ctx)
	_, _ = e.Process(ctx)
	second, _ := store.Len(ctx)
	if first != 3 || second != 3 {
		t.Fatalf("expected store to settle at 3 records, got %d then %d", first, second)
	}
}

func TestProcess_RecordsMetrics(t *testing.T) {
	e, _ := newFindEngine(t,
		record.New(find.QueryKey, "m"),
		record.New(record.Key{Domain: 3}, "m"),
		record.New(record.Key{Domain: 4}, "n"),
	)
	before := testutil.ToFloat64(metrics.FilterRecordsCreatedTotal.WithLabelValues(find.Name))
	doneBefore := testutil.ToFloat64(metrics.FilterTagsTotal.WithLabelValues(find.Name, find.DoneTag))

	if _, err := e.Process(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := testutil.ToFloat64(metrics.FilterRecordsCreatedTotal.WithLabelValues(find.Name)) - before; got != 1 {
		t.Errorf("expected 1 created record, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.FilterTagsTotal.WithLabelValues(find.Name, find.DoneTag)) - doneBefore; got != 2 {
		t.Errorf("expected 2 done tags, got %f", got)
	}
}

func TestProcess_MaxPasses(t *testing.T) {
	store := &mockStore{
		keysFn: func(_ context.Context) ([]record.Key, error) { return []record.Key{{Domain: 1}}, nil },
		getFn: func(_ context.Context, key record.Key) (record.Record, error) {
			return record.New(key, "v"), nil
		},
	}
	always := &lifecycleFilter{name: "always", eligible: true}
	e := New(store, nil).WithMaxPasses(3)
	e.Install(always)

	passes, err := e.Process(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if passes != 3 || always.runs != 3 {
		t.Fatalf("expected 3 passes and runs, got %d passes %d runs", passes, always.runs)
	}
}

func TestProcessOnce_SkipsGroupFilters(t *testing.T) {
	store := &mockStore{
		keysFn: func(_ context.Context) ([]record.Key, error) { return []record.Key{{Domain: 1}}, nil },
		getFn: func(_ context.Context, key record.Key) (record.Record, error) {
			return record.New(key, "v"), nil
		},
	}
	group := &lifecycleFilter{name: "group", kind: filter.GroupEntries, eligible: true}
	e := New(store, nil)
	e.Install(group)

	ran, err := e.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran || group.runs != 0 {
		t.Fatal("group filters must not be dispatched per record")
	}
}

func TestProcessOnce_KeysError(t *testing.T) {
	store := &mockStore{
		keysFn: func(_ context.Context) ([]record.Key, error) { return nil, errors.New("conn refused") },
	}
	e := New(store, nil)
	if _, err := e.ProcessOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestProcessOnce_SkipsVanishedRecords(t *testing.T) {
	store := &mockStore{
		keysFn: func(_ context.Context) ([]record.Key, error) { return []record.Key{{Domain: 1}}, nil },
	}
	f := &lifecycleFilter{name: "f", eligible: true}
	e := New(store, nil)
	e.Install(f)

	ran, err := e.ProcessOnce(context.Background())
	if err != nil || ran {
		t.Fatalf("expected silent skip, got ran=%v err=%v", ran, err)
	}
}

func TestProcessOnce_ApplyError(t *testing.T) {
	e, _ := newFindEngine(t)
	e.store = &mockStore{
		keysFn: func(_ context.Context) ([]record.Key, error) { return []record.Key{{Domain: 1}}, nil },
		getFn: func(_ context.Context, key record.Key) (record.Record, error) {
			return record.New(key, "v"), nil
		},
		applyFn: func(_ context.Context, _ []db.Mutation) error { return errors.New("read only") },
	}
	if _, err := e.ProcessOnce(context.Background()); err == nil {
		t.Fatal("expected commit error")
	}
}

func TestSession_LookupErrorIsFailure(t *testing.T) {
	var journal []db.Mutation
	store := &mockStore{
		keysFn: func(_ context.Context) ([]record.Key, error) { return []record.Key{{Domain: 1}}, nil },
		getFn: func(_ context.Context, key record.Key) (record.Record, error) {
			if key == find.QueryKey {
				return record.Record{}, &db.Error{Op: db.OpGet, Err: errors.New("timeout")}
			}
			return record.New(key, "v"), nil
		},
		applyFn: func(_ context.Context, muts []db.Mutation) error {
			journal = muts
			return nil
		},
	}
	e := New(store, nil)
	e.Install(find.New(find.NewRandomKeys(1), nil))

	if _, err := e.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(journal) != 1 || journal[0].Op != db.MutationAppendTags || journal[0].Tags[0] != find.FailTag {
		t.Fatalf("expected a single fail tag mutation, got %+v", journal)
	}
}

func TestInstall_ReplacesAndLists(t *testing.T) {
	e := New(&mockStore{}, nil)
	e.Install(&lifecycleFilter{name: "b"})
	e.Install(&lifecycleFilter{name: "a"})
	e.Install(&lifecycleFilter{name: "a"})
	names := e.Installed()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected installed filters %v", names)
	}
}

func TestInstallFromRegistry(t *testing.T) {
	reg, _ := filter.NewRegistry(find.New(find.NewRandomKeys(1), nil))
	e := New(&mockStore{}, nil)
	if err := e.InstallFromRegistry(reg, find.Name); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.InstallFromRegistry(reg, "missing"); err == nil {
		t.Fatal("expected error for unknown filter")
	}
}

func TestLifecycleHooks(t *testing.T) {
	f := &lifecycleFilter{name: "f"}
	e := New(&mockStore{}, nil)
	e.Install(f)
	if err := e.Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e.Destroy()
	if f.inits != 1 || f.destroys != 1 {
		t.Fatalf("expected one init and destroy, got %d/%d", f.inits, f.destroys)
	}

	bad := &lifecycleFilter{name: "bad", initErr: errors.New("boom")}
	e.Install(bad)
	if err := e.Init(context.Background()); err == nil {
		t.Fatal("expected init error")
	}
}
