package rng

import (
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

type Mode int

const (
	Deterministic Mode = iota
	Real
)

// Stream names used by the synthetic dataset generator.
const (
	AddrPool  = "addr_pool"
	FromPick  = "from_pick"
	ToPick    = "to_pick"
	Amount    = "amount"
	TopicPick = "topic_pick"
	TopicAge  = "topic_age"
)

// Factory hands out named random streams. Each stream is seeded from the base seed
// and its name, so adding a new consumer does not shift the numbers other streams see.
type Factory struct {
	baseSeed int64
	mode     Mode

	mu      sync.Mutex
	streams map[string]*rand.Rand
}

func New(mode Mode, seed int64) *Factory {
	if mode == Real {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		baseSeed: seed,
		mode:     mode,
		streams:  make(map[string]*rand.Rand),
	}
}

func (f *Factory) Seed() int64 { return f.baseSeed }

// R returns the named stream, creating it on first use.
func (f *Factory) R(name string) *rand.Rand {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r, ok := f.streams[name]; ok {
		return r
	}
	r := rand.New(rand.NewSource(deriveSeed(f.baseSeed, name)))
	f.streams[name] = r
	return r
}

func deriveSeed(base int64, name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64()) ^ base
}
