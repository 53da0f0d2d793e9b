package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/tagfind/internal/db"
	"github.com/kailas-cloud/tagfind/internal/domain/record"
)

func (s *Store) valueKey(k record.Key) string { return s.prefix + "rec:" + k.String() }
func (s *Store) tagsKey(k record.Key) string  { return s.prefix + "tags:" + k.String() }

// Get fetches the value and tags of a record in one round-trip.
func (s *Store) Get(ctx context.Context, key record.Key) (record.Record, error) {
	results := s.client.DoMulti(ctx,
		s.b().Get().Key(s.valueKey(key)).Build(),
		s.b().Lrange().Key(s.tagsKey(key)).Start(0).Stop(-1).Build(),
	)

	value, err := results[0].ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return record.Record{}, db.ErrKeyNotFound
		}
		return record.Record{}, &db.Error{Op: db.OpGet, Err: err}
	}
	tags, err := results[1].AsStrSlice()
	if err != nil {
		return record.Record{}, &db.Error{Op: db.OpLRange, Err: err}
	}
	if len(tags) == 0 {
		tags = nil
	}
	return record.Record{Key: key, Value: value, Tags: tags}, nil
}

// Keys scans all record value keys under the prefix.
func (s *Store) Keys(ctx context.Context) ([]record.Key, error) {
	raw, err := s.scan(ctx, s.prefix+"rec:*")
	if err != nil {
		return nil, err
	}
	keys := make([]record.Key, 0, len(raw))
	for _, r := range raw {
		k, err := record.ParseKey(strings.TrimPrefix(r, s.prefix+"rec:"))
		if err != nil {
			// foreign key under our prefix
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Len counts stored records.
func (s *Store) Len(ctx context.Context) (int, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Put replaces the record's value and tag list in a single DoMulti
// round-trip. The commands are pipelined, not transactional.
func (s *Store) Put(ctx context.Context, rec record.Record) error {
	return s.exec(ctx, s.putCmds(nil, rec))
}

// AppendTags RPUSHes tags onto an existing record's tag list.
func (s *Store) AppendTags(ctx context.Context, key record.Key, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	n, err := s.do(ctx, s.b().Exists().Key(s.valueKey(key)).Build()).AsInt64()
	if err != nil {
		return &db.Error{Op: db.OpExists, Err: err}
	}
	if n == 0 {
		return fmt.Errorf("append tags to %s: %w", key, db.ErrKeyNotFound)
	}
	cmd := s.b().Rpush().Key(s.tagsKey(key)).Element(tags...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpRPush, Err: err}
	}
	return nil
}

// Apply pipelines the whole journal through one DoMulti. Tag appends are
// not checked for record existence.
func (s *Store) Apply(ctx context.Context, muts []db.Mutation) error {
	if len(muts) == 0 {
		return nil
	}
	var cmds []rueidis.Completed
	for i, m := range muts {
		switch m.Op {
		case db.MutationPut:
			cmds = s.putCmds(cmds, m.Record)
		case db.MutationAppendTags:
			if len(m.Tags) == 0 {
				continue
			}
			cmds = append(cmds, s.b().Rpush().Key(s.tagsKey(m.Record.Key)).Element(m.Tags...).Build())
		default:
			return fmt.Errorf("mutation %d: %w", i, db.ErrUnknownOp)
		}
	}
	return s.exec(ctx, cmds)
}

func (s *Store) putCmds(cmds []rueidis.Completed, rec record.Record) []rueidis.Completed {
	tk := s.tagsKey(rec.Key)
	cmds = append(cmds, s.b().Del().Key(tk).Build())
	if len(rec.Tags) > 0 {
		cmds = append(cmds, s.b().Rpush().Key(tk).Element(rec.Tags...).Build())
	}
	return append(cmds, s.b().Set().Key(s.valueKey(rec.Key)).Value(rec.Value).Build())
}

func (s *Store) exec(ctx context.Context, cmds []rueidis.Completed) error {
	if len(cmds) == 0 {
		return nil
	}
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpMulti, Err: fmt.Errorf("command %d: %w", i, err)}
		}
	}
	return nil
}

// scan iterates keys matching a pattern.
func (s *Store) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}
