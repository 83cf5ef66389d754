// Package random provides a splittable, deterministic random key.
//
// A Key is an immutable value. Drawing from a key never changes it; callers
// derive fresh keys with Split or Fold and hand one key to each consumer, so
// no two consumers share a stream and results do not depend on call order.
package random

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// golden is the 64-bit golden ratio increment used by splitmix64.
const golden = 0x9e3779b97f4a7c15

// Key identifies an independent random stream.
type Key struct {
	state uint64
}

// NewKey returns the root key for seed.
func NewKey(seed int64) Key {
	return Key{state: mix(uint64(seed) + golden)}
}

func (k Key) String() string {
	return fmt.Sprintf("Key(%016x)", k.state)
}

// Uint64 exposes the key state, e.g. for checkpointing.
func (k Key) Uint64() uint64 {
	return k.state
}

// FromUint64 rebuilds a key from a value returned by Uint64.
func FromUint64(state uint64) Key {
	return Key{state: state}
}

// Fold derives the child key with index i.
func (k Key) Fold(i int) Key {
	return Key{state: mix(k.state ^ mix(uint64(i)*golden+golden))}
}

// Split returns n independent child keys.
func (k Key) Split(n int) []Key {
	keys := make([]Key, n)
	for i := range keys {
		keys[i] = k.Fold(i)
	}
	return keys
}

// Split2 is Split(2) without the slice.
func (k Key) Split2() (Key, Key) {
	return k.Fold(0), k.Fold(1)
}

// Source returns a fresh PCG source seeded from the key.
func (k Key) Source() rand.Source {
	src := &rand.PCGSource{}
	src.Seed(k.state)
	return src
}

// Rand returns a fresh generator for the key. Two calls on the same key
// produce identical sequences.
func (k Key) Rand() *rand.Rand {
	return rand.New(k.Source())
}

// mix is the splitmix64 finalizer.
func mix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
