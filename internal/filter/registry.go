package filter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/tagfind/internal/domain"
)

// Registry maps filter names to filters. It is built once at startup and
// handed to the host.
type Registry struct {
	mu      sync.RWMutex
	filters map[string]Filter
}

// NewRegistry creates a Registry pre-populated with filters.
func NewRegistry(filters ...Filter) (*Registry, error) {
	r := &Registry{filters: make(map[string]Filter, len(filters))}
	for _, f := range filters {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds f under its name.
func (r *Registry) Register(f Filter) error {
	if f == nil {
		return fmt.Errorf("register nil filter")
	}
	name := f.Name()
	if name == "" {
		return fmt.Errorf("filter name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.filters[name]; ok {
		return fmt.Errorf("filter %q: %w", name, domain.ErrDuplicateFilter)
	}
	r.filters[name] = f
	return nil
}

// Get returns the filter registered under name.
func (r *Registry) Get(name string) (Filter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.filters[name]
	if !ok {
		return nil, fmt.Errorf("filter %q: %w", name, domain.ErrUnknownFilter)
	}
	return f, nil
}

// Names returns the registered filter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.filters))
	for name := range r.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
