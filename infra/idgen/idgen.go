// Package idgen provides 64-bit order identifier generators. All of them
// satisfy orderbook.IDGenerator.
package idgen

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Sequence hands out strictly increasing ids starting after start.
type Sequence struct {
	last atomic.Uint64
}

func NewSequence(start uint64) *Sequence {
	s := &Sequence{}
	s.last.Store(start)
	return s
}

func (s *Sequence) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued id.
func (s *Sequence) Current() uint64 {
	return s.last.Load()
}

// Reset moves the sequence so the next id is v+1.
func (s *Sequence) Reset(v uint64) {
	s.last.Store(v)
}

// Random draws ids from a seeded PCG source. Two generators with the same
// seeds yield the same ids.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(seed1, seed2 uint64) *Random {
	return &Random{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

func (r *Random) Next() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Uint64()
}

// UUID folds a random (v4) UUID into 64 bits.
type UUID struct{}

func (UUID) Next() uint64 {
	u := uuid.New()
	return binary.BigEndian.Uint64(u[:8]) ^ binary.BigEndian.Uint64(u[8:])
}

type Generator interface {
	Next() uint64
}

// Generator kinds accepted by New.
const (
	KindSequence = "seq"
	KindRandom   = "random"
	KindUUID     = "uuid"
)

// New builds a generator by kind. seed only affects KindRandom.
func New(kind string, seed uint64) (Generator, error) {
	switch kind {
	case KindSequence:
		return NewSequence(0), nil
	case KindRandom, "":
		return NewRandom(seed, seed^0x9e3779b97f4a7c15), nil
	case KindUUID:
		return UUID{}, nil
	default:
		return nil, fmt.Errorf("unknown id generator %q", kind)
	}
}
