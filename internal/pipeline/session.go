package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagfind/internal/db"
	"github.com/kailas-cloud/tagfind/internal/domain/record"
	"github.com/kailas-cloud/tagfind/internal/filter"
)

// Compile-time check: session implements filter.Host.
var _ filter.Host = (*session)(nil)

// session is the filter.Host handed to one filter invocation. Reads go to
// the committed store; writes are journaled into the pass.
type session struct {
	reader db.RecordReader
	pass   *pass
	filter string
	logger *zap.Logger
}

func (s *session) LookupByKey(ctx context.Context, key record.Key) (string, bool) {
	rec, err := s.reader.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			s.logger.Warn("lookup failed",
				zap.String("filter", s.filter),
				zap.Stringer("key", key),
				zap.Error(err),
			)
		}
		return "", false
	}
	return rec.Value, true
}

func (s *session) AddTag(_ context.Context, key record.Key, tag string) {
	s.pass.journal = append(s.pass.journal, db.AppendTagsMutation(key, tag))
	s.pass.stats(s.filter).tags[tag]++
}

func (s *session) CreateRecord(_ context.Context, tags []string, value string, key record.Key) {
	s.pass.journal = append(s.pass.journal, db.PutMutation(record.New(key, value, tags...)))
	s.pass.stats(s.filter).created++
}

// pass accumulates the journal and per-filter counters of one ProcessOnce.
type pass struct {
	journal []db.Mutation
	byName  map[string]*filterStats
}

type filterStats struct {
	invocations int
	created     int
	tags        map[string]int
}

func newPass() *pass {
	return &pass{byName: make(map[string]*filterStats)}
}

func (p *pass) stats(name string) *filterStats {
	st, ok := p.byName[name]
	if !ok {
		st = &filterStats{tags: make(map[string]int)}
		p.byName[name] = st
	}
	return st
}
