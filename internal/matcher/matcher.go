// Package matcher implements case-sensitive substring containment over
// compiled Aho-Corasick automatons.
package matcher

import (
	"sync"

	ac "github.com/petar-dambovaliev/aho-corasick"
)

// DefaultCacheSize is the number of compiled queries kept when none is configured.
const DefaultCacheSize = 64

// Matcher tests whether text contains a query as a contiguous substring.
// Compiled automatons are cached per query text. Safe for concurrent use.
type Matcher struct {
	mu      sync.Mutex
	size    int
	entries map[string]*compiled
	order   []string // insertion order, oldest first
}

type compiled struct {
	mu sync.Mutex // serializes searches on ac
	ac ac.AhoCorasick
}

// New creates a Matcher caching up to size compiled queries.
func New(size int) *Matcher {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Matcher{
		size:    size,
		entries: make(map[string]*compiled, size),
	}
}

// Contains reports whether text contains query. Comparison is byte-wise and
// case-sensitive; the empty query matches every text.
func (m *Matcher) Contains(text, query string) bool {
	if query == "" {
		return true
	}
	if len(query) > len(text) {
		return false
	}

	c := m.get(query)
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ac.FindAll(text)) > 0
}

// Len returns the number of cached automatons.
func (m *Matcher) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Matcher) get(query string) *compiled {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.entries[query]; ok {
		return c
	}

	builder := ac.NewAhoCorasickBuilder(ac.Opts{
		AsciiCaseInsensitive: false,
		MatchOnlyWholeWords:  false,
		MatchKind:            ac.LeftMostFirstMatch,
	})
	c := &compiled{ac: builder.Build([]string{query})}

	if len(m.order) >= m.size {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
	m.entries[query] = c
	m.order = append(m.order, query)
	return c
}
