package record

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/tagfind/internal/domain"
)

// Key addresses a record: Domain groups keys into namespaces, B and C
// disambiguate within a domain.
type Key struct {
	Domain uint64
	B      uint64
	C      uint64
}

// String renders the key as "domain:b:c".
func (k Key) String() string {
	return strconv.FormatUint(k.Domain, 10) + ":" +
		strconv.FormatUint(k.B, 10) + ":" +
		strconv.FormatUint(k.C, 10)
}

// ParseKey parses a "domain:b:c" string produced by Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("key %q must have 3 parts: %w", s, domain.ErrInvalidKey)
	}
	var vals [3]uint64
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Key{}, fmt.Errorf("key %q part %d: %w", s, i, domain.ErrInvalidKey)
		}
		vals[i] = v
	}
	return Key{Domain: vals[0], B: vals[1], C: vals[2]}, nil
}

// Compare orders keys by Domain, then B, then C.
func Compare(a, b Key) int {
	if c := cmp.Compare(a.Domain, b.Domain); c != 0 {
		return c
	}
	if c := cmp.Compare(a.B, b.B); c != 0 {
		return c
	}
	return cmp.Compare(a.C, b.C)
}

// Record is a stored unit with a key, an opaque text value and an
// append-only tag sequence.
type Record struct {
	Key   Key
	Value string
	Tags  []string
}

// New creates a Record with a private copy of tags.
func New(key Key, value string, tags ...string) Record {
	return Record{Key: key, Value: value, Tags: cloneTags(tags)}
}

// HasTag reports whether tag is present in the tag sequence.
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AppendTag appends tag to the end of the tag sequence.
func (r *Record) AppendTag(tag string) {
	r.Tags = append(r.Tags, tag)
}

// Clone returns a deep copy.
func (r *Record) Clone() Record {
	return Record{Key: r.Key, Value: r.Value, Tags: cloneTags(r.Tags)}
}

func cloneTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
