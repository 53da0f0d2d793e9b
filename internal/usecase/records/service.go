package records

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kailas-cloud/tagfind/internal/db"
	"github.com/kailas-cloud/tagfind/internal/domain"
	"github.com/kailas-cloud/tagfind/internal/domain/record"
	"github.com/kailas-cloud/tagfind/internal/filter/find"
)

// Service exposes record storage and on-demand processing.
type Service struct {
	repo Repository
	proc Processor
}

// New creates a records service. proc can be nil, which disables Process.
func New(repo Repository, proc Processor) *Service {
	return &Service{repo: repo, proc: proc}
}

// SetQuery stores the search text at the query key.
func (s *Service) SetQuery(ctx context.Context, query string) (record.Record, error) {
	rec := record.New(find.QueryKey, query)
	if err := s.repo.Put(ctx, rec); err != nil {
		return record.Record{}, fmt.Errorf("put query: %w", err)
	}
	return rec, nil
}

// Query returns the current search text.
func (s *Service) Query(ctx context.Context) (string, error) {
	rec, err := s.Get(ctx, find.QueryKey)
	if err != nil {
		return "", err
	}
	return rec.Value, nil
}

// Put validates and stores rec, replacing any existing record at its key.
func (s *Service) Put(ctx context.Context, rec record.Record) error {
	if slices.Contains(rec.Tags, "") {
		return fmt.Errorf("record %s has an empty tag: %w", rec.Key, domain.ErrInvalidRecord)
	}
	if err := s.repo.Put(ctx, rec); err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// Get loads the record at key.
func (s *Service) Get(ctx context.Context, key record.Key) (record.Record, error) {
	rec, err := s.repo.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return record.Record{}, fmt.Errorf("record %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// List returns stored keys in ascending order. A non-nil domainFilter keeps
// only keys in that domain.
func (s *Service) List(ctx context.Context, domainFilter *uint64) ([]record.Key, error) {
	keys, err := s.repo.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	if domainFilter != nil {
		keys = slices.DeleteFunc(keys, func(k record.Key) bool { return k.Domain != *domainFilter })
	}
	slices.SortFunc(keys, record.Compare)
	return keys, nil
}

// Results returns the result records emitted by the find filter.
func (s *Service) Results(ctx context.Context) ([]record.Record, error) {
	dom := find.SearchDomain
	keys, err := s.List(ctx, &dom)
	if err != nil {
		return nil, err
	}
	out := make([]record.Record, 0, len(keys))
	for _, k := range keys {
		if k == find.QueryKey {
			continue
		}
		rec, err := s.repo.Get(ctx, k)
		if errors.Is(err, db.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get result %s: %w", k, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Process runs the pipeline until it settles and returns the pass count.
func (s *Service) Process(ctx context.Context) (int, error) {
	if s.proc == nil {
		return 0, fmt.Errorf("processing: %w", domain.ErrNotImplemented)
	}
	passes, err := s.proc.Process(ctx)
	if err != nil {
		return passes, fmt.Errorf("process: %w", err)
	}
	return passes, nil
}
