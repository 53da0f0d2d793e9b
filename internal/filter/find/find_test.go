package find

import (
	"context"
	"testing"

	"github.com/kailas-cloud/tagfind/internal/domain/record"
	"github.com/kailas-cloud/tagfind/internal/filter"
)

// --- identity ---

func TestIdentity(t *testing.T) {
	f := newTestFilter(t)
	if f.Name() != "find" {
		t.Errorf("expected name find, got %s", f.Name())
	}
	if f.Kind() != filter.SingleEntry {
		t.Errorf("expected single entry kind, got %s", f.Kind())
	}
	if _, ok := any(f).(filter.Initializer); ok {
		t.Error("find should not declare an init hook")
	}
	if _, ok := any(f).(filter.Destroyer); ok {
		t.Error("find should not declare a destroy hook")
	}
}

// --- ShouldRun ---

func TestShouldRun_Nil(t *testing.T) {
	if newTestFilter(t).ShouldRun(nil) {
		t.Fatal("expected false for nil record")
	}
}

func TestShouldRun_UntaggedAndForeignTags(t *testing.T) {
	f := newTestFilter(t)
	for _, tags := range [][]string{nil, {"tag1", "tag2", "tag3"}, {"find:donex", "other:done"}} {
		rec := record.New(record.Key{Domain: 5}, "v", tags...)
		if !f.ShouldRun(&rec) {
			t.Errorf("expected eligible with tags %v", tags)
		}
	}
}

func TestShouldRun_AbsorbingTags(t *testing.T) {
	f := newTestFilter(t)
	for _, tags := range [][]string{
		{"tag1", DoneTag, "tag3"},
		{"tag1", FailTag, "tag3"},
		{DoneTag},
		{FailTag, DoneTag},
	} {
		rec := record.New(record.Key{Domain: 5}, "v", tags...)
		if f.ShouldRun(&rec) {
			t.Errorf("expected ineligible with tags %v", tags)
		}
		// appending more tags never re-enables the record
		rec.AppendTag("later")
		if f.ShouldRun(&rec) {
			t.Errorf("expected still ineligible after append with tags %v", rec.Tags)
		}
	}
}

func TestShouldRun_SearchDomainExcluded(t *testing.T) {
	f := newTestFilter(t)
	for _, rec := range []record.Record{
		record.New(QueryKey, "alpha"),
		record.New(record.Key{Domain: SearchDomain, B: 7, C: 9}, "1:2:3"),
		record.New(record.Key{Domain: SearchDomain}, "", "unrelated"),
	} {
		if f.ShouldRun(&rec) {
			t.Errorf("expected search domain record %s ineligible", rec.Key)
		}
	}
}

func TestShouldRun_Idempotent(t *testing.T) {
	f := newTestFilter(t)
	rec := record.New(record.Key{Domain: 1, B: 2, C: 3}, "v", "x")
	first := f.ShouldRun(&rec)
	for i := 0; i < 10; i++ {
		if f.ShouldRun(&rec) != first {
			t.Fatal("gate result changed without tag changes")
		}
	}
	if len(rec.Tags) != 1 {
		t.Fatalf("gate mutated tags: %v", rec.Tags)
	}
}

// --- Run ---

func TestRun_MatchEmitsResult(t *testing.T) {
	f := newTestFilter(t)
	host := withQuery("alpha")
	rec := record.New(record.Key{Domain: 7, B: 1, C: 2}, "xalphay")

	f.Run(context.Background(), host, &rec)

	if len(host.created) != 1 {
		t.Fatalf("expected 1 created record, got %d", len(host.created))
	}
	got := host.created[0]
	if got.value != "7:1:2" {
		t.Errorf("expected value 7:1:2, got %s", got.value)
	}
	if got.key.Domain != SearchDomain {
		t.Errorf("expected result in search domain, got %d", got.key.Domain)
	}
	if got.key != (record.Key{Domain: SearchDomain, B: 11, C: 22}) {
		t.Errorf("expected generated key, got %v", got.key)
	}
	if len(got.tags) != 0 {
		t.Errorf("expected result without tags, got %v", got.tags)
	}
	assertSingleTag(t, host, rec.Key, DoneTag)
}

func TestRun_NoMatch(t *testing.T) {
	f := newTestFilter(t)
	host := withQuery("alpha")
	rec := record.New(record.Key{Domain: 7, B: 1, C: 2}, "beta")

	f.Run(context.Background(), host, &rec)

	if len(host.created) != 0 {
		t.Fatalf("expected no created records, got %d", len(host.created))
	}
	assertSingleTag(t, host, rec.Key, DoneTag)
}

func TestRun_QueryMissing(t *testing.T) {
	f := newTestFilter(t)
	host := &mockHost{}
	rec := record.New(record.Key{Domain: 5, B: 0, C: 2}, "no query was given")

	f.Run(context.Background(), host, &rec)

	if len(host.created) != 0 {
		t.Fatalf("expected no created records, got %d", len(host.created))
	}
	assertSingleTag(t, host, rec.Key, FailTag)
	if len(host.lookups) != 1 || host.lookups[0] != QueryKey {
		t.Fatalf("expected one lookup of the query key, got %v", host.lookups)
	}
}

func TestRun_CaseSensitive(t *testing.T) {
	f := newTestFilter(t)
	host := withQuery("Alpha")
	rec := record.New(record.Key{Domain: 1}, "alpha")

	f.Run(context.Background(), host, &rec)

	if len(host.created) != 0 {
		t.Fatal("expected case-sensitive comparison")
	}
	assertSingleTag(t, host, rec.Key, DoneTag)
}

func TestRun_EmptyQueryMatchesEverything(t *testing.T) {
	f := newTestFilter(t)
	host := withQuery("")
	rec := record.New(record.Key{Domain: 1, B: 0, C: 0}, "")

	f.Run(context.Background(), host, &rec)

	if len(host.created) != 1 || host.created[0].value != "1:0:0" {
		t.Fatalf("expected one result for empty query, got %v", host.created)
	}
}

func TestRun_NilInputsAreNoOps(t *testing.T) {
	f := newTestFilter(t)
	host := withQuery("alpha")

	f.Run(context.Background(), host, nil)
	if len(host.lookups)+len(host.tags)+len(host.created) != 0 {
		t.Fatal("expected nil record to touch nothing")
	}

	rec := record.New(record.Key{Domain: 1}, "alpha")
	f.Run(context.Background(), nil, &rec)
}

func TestRun_DoesNotMutateRecord(t *testing.T) {
	f := newTestFilter(t)
	host := withQuery("a")
	rec := record.New(record.Key{Domain: 1}, "abc", "x")

	f.Run(context.Background(), host, &rec)

	if rec.Value != "abc" || len(rec.Tags) != 1 {
		t.Fatalf("run must only act through the host, record is %+v", rec)
	}
}

// Match correctness: a result is created iff the value contains the query.
func TestRun_MatchIffSubstring(t *testing.T) {
	cases := []struct {
		query, value string
		match        bool
	}{
		{"somet", "there is something to search for in here...", true},
		{"somet", "there is nothing to search for in here", false},
		{"somet", "but sometimes it's good to search anyway", true},
		{"abc", "ab", false},
		{"abc", "abc", true},
		{"b", "abc", true},
	}
	for _, tc := range cases {
		f := newTestFilter(t)
		host := withQuery(tc.query)
		rec := record.New(record.Key{Domain: 5, B: 1, C: 1}, tc.value)
		f.Run(context.Background(), host, &rec)

		if got := len(host.created) == 1; got != tc.match {
			t.Errorf("query %q value %q: created=%v want %v", tc.query, tc.value, got, tc.match)
		}
		assertSingleTag(t, host, rec.Key, DoneTag)
	}
}

func TestRandomKeys_DeterministicAndInDomain(t *testing.T) {
	a := NewRandomKeys(42)
	b := NewRandomKeys(42)
	seen := make(map[record.Key]struct{})
	for i := 0; i < 100; i++ {
		ka, kb := a.Next(), b.Next()
		if ka != kb {
			t.Fatalf("same seed produced different keys: %v vs %v", ka, kb)
		}
		if ka.Domain != SearchDomain {
			t.Fatalf("expected search domain, got %d", ka.Domain)
		}
		seen[ka] = struct{}{}
	}
	if len(seen) != 100 {
		t.Fatalf("expected 100 distinct keys, got %d", len(seen))
	}
}

func TestRandomKeys_ZeroSeed(t *testing.T) {
	k := NewRandomKeys(0).Next()
	if k.Domain != SearchDomain {
		t.Fatalf("expected search domain, got %d", k.Domain)
	}
}

func assertSingleTag(t *testing.T, host *mockHost, key record.Key, tag string) {
	t.Helper()
	if len(host.tags) != 1 {
		t.Fatalf("expected exactly one tag appended, got %v", host.tags)
	}
	if host.tags[0].key != key || host.tags[0].tag != tag {
		t.Fatalf("expected %s on %s, got %s on %s", tag, key, host.tags[0].tag, host.tags[0].key)
	}
}
