// Package pipeline is the sequential host loop: it presents every stored
// record to every installed single-entry filter, journals their writes and
// commits the journal at the end of each pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagfind/internal/db"
	"github.com/kailas-cloud/tagfind/internal/domain/record"
	"github.com/kailas-cloud/tagfind/internal/filter"
	"github.com/kailas-cloud/tagfind/internal/metrics"
)

// DefaultMaxPasses bounds Process when no limit is configured.
const DefaultMaxPasses = 16

// Store is the storage contract the engine needs.
type Store interface {
	db.RecordReader
	Apply(ctx context.Context, muts []db.Mutation) error
}

// Engine runs installed filters over a store. Process calls are serialized,
// so a record is presented to a filter at most once per pass and never to
// two invocations concurrently.
type Engine struct {
	store     Store
	logger    *zap.Logger
	maxPasses int

	mu      sync.Mutex // serializes passes and guards filters
	filters map[string]filter.Filter
}

// New creates an Engine over store.
func New(store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     store,
		logger:    logger,
		maxPasses: DefaultMaxPasses,
		filters:   make(map[string]filter.Filter),
	}
}

// WithMaxPasses configures the pass limit of Process.
func (e *Engine) WithMaxPasses(n int) *Engine {
	if n > 0 {
		e.maxPasses = n
	}
	return e
}

// Install adds f, replacing any installed filter with the same name.
func (e *Engine) Install(f filter.Filter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.filters[f.Name()]; ok {
		e.logger.Warn("filter already installed, replacing it", zap.String("filter", f.Name()))
	}
	e.filters[f.Name()] = f
}

// InstallFromRegistry installs the named filters from reg.
func (e *Engine) InstallFromRegistry(reg *filter.Registry, names ...string) error {
	for _, name := range names {
		f, err := reg.Get(name)
		if err != nil {
			return fmt.Errorf("install: %w", err)
		}
		e.Install(f)
	}
	return nil
}

// Installed returns installed filter names in sorted order.
func (e *Engine) Installed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.namesLocked()
}

// Init runs the Init hook of every installed filter that declares one.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range e.namesLocked() {
		if in, ok := e.filters[name].(filter.Initializer); ok {
			if err := in.Init(ctx); err != nil {
				return fmt.Errorf("init filter %q: %w", name, err)
			}
		}
	}
	return nil
}

// Destroy runs the Destroy hook of every installed filter that declares one.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range e.namesLocked() {
		if d, ok := e.filters[name].(filter.Destroyer); ok {
			d.Destroy()
		}
	}
}

// ProcessOnce runs one pass and reports whether any filter ran.
func (e *Engine) ProcessOnce(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processOnceLocked(ctx)
}

// Process runs passes until no filter runs or the pass limit is reached,
// returning the number of passes performed.
func (e *Engine) Process(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for passes := 1; passes <= e.maxPasses; passes++ {
		ran, err := e.processOnceLocked(ctx)
		if err != nil {
			return passes, err
		}
		if !ran {
			return passes, nil
		}
	}
	e.logger.Warn("pipeline did not settle", zap.Int("max_passes", e.maxPasses))
	return e.maxPasses, nil
}

func (e *Engine) processOnceLocked(ctx context.Context) (bool, error) {
	start := time.Now()

	keys, err := e.store.Keys(ctx)
	if err != nil {
		return false, fmt.Errorf("list keys: %w", err)
	}
	slices.SortFunc(keys, record.Compare)

	names := e.namesLocked()
	p := newPass()
	ran := false

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		rec, err := e.store.Get(ctx, key)
		if errors.Is(err, db.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("get %s: %w", key, err)
		}

		for _, name := range names {
			f := e.filters[name]
			if f.Kind() != filter.SingleEntry {
				continue
			}
			// filters get independent copies of the snapshot
			view := rec.Clone()
			if !f.ShouldRun(&view) {
				continue
			}
			ran = true
			p.stats(name).invocations++
			f.Run(ctx, &session{reader: e.store, pass: p, filter: name, logger: e.logger}, &view)
		}
	}

	if err := e.store.Apply(ctx, p.journal); err != nil {
		return ran, fmt.Errorf("commit pass: %w", err)
	}

	e.observe(p, time.Since(start))
	e.logger.Debug("pipeline pass",
		zap.Int("records", len(keys)),
		zap.Int("mutations", len(p.journal)),
		zap.Bool("ran", ran),
		zap.Duration("duration", time.Since(start)),
	)
	return ran, nil
}

func (e *Engine) observe(p *pass, d time.Duration) {
	metrics.PipelinePassesTotal.Inc()
	metrics.PipelinePassDuration.Observe(d.Seconds())
	for name, st := range p.byName {
		metrics.FilterInvocationsTotal.WithLabelValues(name).Add(float64(st.invocations))
		metrics.FilterRecordsCreatedTotal.WithLabelValues(name).Add(float64(st.created))
		for tag, n := range st.tags {
			metrics.FilterTagsTotal.WithLabelValues(name, tag).Add(float64(n))
		}
	}
}

func (e *Engine) namesLocked() []string {
	names := make([]string, 0, len(e.filters))
	for name := range e.filters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
