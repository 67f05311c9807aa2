// Package rng centralizes every source of randomness scrollforge uses,
// so the engine and helper catalogue never touch math/rand directly.
package rng

import (
	"hash/fnv"
	"math/rand/v2"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Randomizer is the single randomness facade threaded through rolling,
// frame withdrawal, and collection picks. It is not safe for
// concurrent use; the store's single-writer discipline means only one
// goroutine ever drives generation at a time.
type Randomizer struct {
	r *rand.Rand
}

// New builds a Randomizer seeded from the runtime's entropy source.
func New() *Randomizer {
	return &Randomizer{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeeded builds a Randomizer with a fixed seed, for reproducible
// tests.
func NewSeeded(seed uint64) *Randomizer {
	return &Randomizer{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// UID returns an 8-character alphanumeric identifier.
func (z *Randomizer) UID() string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = alphanumeric[z.r.IntN(len(alphanumeric))]
	}
	return string(b)
}

// InRange returns an integer in [min, max], inclusive on both ends.
func (z *Randomizer) InRange(min, max int) int {
	if max <= min {
		return min
	}
	return min + z.r.IntN(max-min+1)
}

// Choose returns a uniformly random element of items. It panics on an
// empty slice, matching the original generator's contract: callers
// must never offer an empty choice set to the randomizer.
func Choose[T any](z *Randomizer, items []T) T {
	if len(items) == 0 {
		panic("rng: Choose called with no items")
	}
	return items[z.r.IntN(len(items))]
}

// Float64 returns a value in [0, 1).
func (z *Randomizer) Float64() float64 {
	return z.r.Float64()
}

// StableSeed derives a deterministic 64-bit seed from a string and an
// index, used by stable_dice so the same (uid, index) pair always
// rolls the same value across renders.
func StableSeed(key string, index int) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	sum := h.Sum64()
	return sum ^ (uint64(index) * 0x100000001b3)
}

// StableSource returns a deterministic Randomizer for the given seed,
// used by helpers.StableDice.
func StableSource(seed uint64) *Randomizer {
	return &Randomizer{r: rand.New(rand.NewPCG(seed, seed))}
}
