package find

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kailas-cloud/tagfind/internal/domain/record"
)

// KeyGenerator produces keys for result records.
type KeyGenerator interface {
	Next() record.Key
}

// RandomKeys generates search-domain keys with random B and C fields.
// Collisions are improbable, not prevented.
type RandomKeys struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomKeys creates a generator seeded with seed. A zero seed is
// replaced with the current time.
func NewRandomKeys(seed uint64) *RandomKeys {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomKeys{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Next returns a fresh key in SearchDomain.
func (g *RandomKeys) Next() record.Key {
	g.mu.Lock()
	defer g.mu.Unlock()
	return record.Key{
		Domain: SearchDomain,
		B:      g.rng.Uint64(),
		C:      g.rng.Uint64(),
	}
}
