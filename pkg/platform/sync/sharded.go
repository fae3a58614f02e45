// Package sync provides lock striping for in-process maps under concurrent load.
package sync

import (
	"hash/maphash"
	"sync"
)

const shardCount = 32

// Sharded spreads values of type T across independently locked shards so
// operations on unrelated keys do not contend on a single mutex.
type Sharded[T any] struct {
	seed   maphash.Seed
	shards [shardCount]struct {
		mu  sync.Mutex
		val T
	}
}

// NewSharded creates a Sharded, calling init once per shard.
func NewSharded[T any](init func() T) *Sharded[T] {
	s := &Sharded[T]{seed: maphash.MakeSeed()}
	for i := range s.shards {
		s.shards[i].val = init()
	}
	return s
}

// With runs fn with exclusive access to the shard that owns key.
func (s *Sharded[T]) With(key string, fn func(shard *T)) {
	sh := &s.shards[s.index(key)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fn(&sh.val)
}

// Each runs fn on every shard in turn, holding one shard lock at a time.
func (s *Sharded[T]) Each(fn func(shard *T)) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		fn(&sh.val)
		sh.mu.Unlock()
	}
}

// Shards returns the number of shards.
func (s *Sharded[T]) Shards() int { return shardCount }

func (s *Sharded[T]) index(key string) int {
	return int(maphash.String(s.seed, key) % shardCount)
}
