package statestore

import (
	"context"
	"sort"
	"strconv"
	"time"

	psync "github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/sync"
)

// DefaultMemoryCapacity bounds the in-process store.
const DefaultMemoryCapacity = 100_000

type memEntry struct {
	value     string
	members   map[string]struct{}
	expiresAt time.Time
}

type memShard struct {
	items map[string]*memEntry
}

// MemoryStore is an in-process Store used for tests, local development and
// as the per-instance fallback when the shared store is unreachable. It is
// bounded: once full, writes of new keys fail with ErrCapacity.
type MemoryStore struct {
	shards   *psync.Sharded[memShard]
	perShard int
	now      func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCapacity sets the maximum number of live keys.
func WithCapacity(n int) MemoryOption {
	return func(m *MemoryStore) {
		if n > 0 {
			m.perShard = max(1, n/m.shards.Shards())
		}
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		shards: psync.NewSharded(func() memShard {
			return memShard{items: make(map[string]*memEntry)}
		}),
		now: time.Now,
	}
	m.perShard = DefaultMemoryCapacity / m.shards.Shards()
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// live returns the entry for key, dropping it if expired. Caller holds the shard lock.
func (m *MemoryStore) live(sh *memShard, key string, now time.Time) *memEntry {
	e, ok := sh.items[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		delete(sh.items, key)
		return nil
	}
	return e
}

// reserve makes room for a new key in the shard. Caller holds the shard lock.
func (m *MemoryStore) reserve(sh *memShard, now time.Time) error {
	if len(sh.items) < m.perShard {
		return nil
	}
	for k, e := range sh.items {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(sh.items, k)
		}
	}
	if len(sh.items) >= m.perShard {
		return ErrCapacity
	}
	return nil
}

func (m *MemoryStore) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if err := validateTTL(window); err != nil {
		return 0, 0, err
	}
	var (
		count int64
		ttl   time.Duration
		err   error
	)
	now := m.now()
	m.shards.With(key, func(sh *memShard) {
		e := m.live(sh, key, now)
		if e == nil {
			if err = m.reserve(sh, now); err != nil {
				return
			}
			sh.items[key] = &memEntry{value: "1", expiresAt: now.Add(window)}
			count, ttl = 1, window
			return
		}
		if e.members != nil {
			err = ErrWrongType
			return
		}
		n, perr := strconv.ParseInt(e.value, 10, 64)
		if perr != nil {
			err = ErrWrongType
			return
		}
		count = n + 1
		e.value = strconv.FormatInt(count, 10)
		if e.expiresAt.IsZero() {
			e.expiresAt = now.Add(window)
		}
		ttl = e.expiresAt.Sub(now)
	})
	return count, ttl, err
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	var (
		value string
		err   = ErrNotFound
	)
	now := m.now()
	m.shards.With(key, func(sh *memShard) {
		if e := m.live(sh, key, now); e != nil {
			if e.members != nil {
				err = ErrWrongType
				return
			}
			value, err = e.value, nil
		}
	})
	return value, err
}

func (m *MemoryStore) SetEX(_ context.Context, key, value string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	var err error
	now := m.now()
	m.shards.With(key, func(sh *memShard) {
		if m.live(sh, key, now) == nil {
			if err = m.reserve(sh, now); err != nil {
				return
			}
		}
		sh.items[key] = &memEntry{value: value, expiresAt: now.Add(ttl)}
	})
	return err
}

func (m *MemoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.shards.With(key, func(sh *memShard) {
			delete(sh.items, key)
		})
	}
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	var found bool
	now := m.now()
	m.shards.With(key, func(sh *memShard) {
		found = m.live(sh, key, now) != nil
	})
	return found, nil
}

func (m *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	var (
		ttl time.Duration
		err = ErrNotFound
	)
	now := m.now()
	m.shards.With(key, func(sh *memShard) {
		e := m.live(sh, key, now)
		if e == nil {
			return
		}
		err = nil
		if e.expiresAt.IsZero() {
			ttl = NoExpiry
			return
		}
		ttl = e.expiresAt.Sub(now)
	})
	return ttl, err
}

func (m *MemoryStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	var deleted bool
	now := m.now()
	m.shards.With(key, func(sh *memShard) {
		e := m.live(sh, key, now)
		if e != nil && e.members == nil && e.value == expected {
			delete(sh.items, key)
			deleted = true
		}
	})
	return deleted, nil
}

func (m *MemoryStore) SAddEX(_ context.Context, key string, ttl time.Duration, members ...string) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	var err error
	now := m.now()
	m.shards.With(key, func(sh *memShard) {
		e := m.live(sh, key, now)
		if e == nil {
			if err = m.reserve(sh, now); err != nil {
				return
			}
			e = &memEntry{members: make(map[string]struct{})}
			sh.items[key] = e
		}
		if e.members == nil {
			err = ErrWrongType
			return
		}
		for _, member := range members {
			e.members[member] = struct{}{}
		}
		if exp := now.Add(ttl); e.expiresAt.Before(exp) {
			e.expiresAt = exp
		}
	})
	return err
}

func (m *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	var (
		out []string
		err error
	)
	now := m.now()
	m.shards.With(key, func(sh *memShard) {
		e := m.live(sh, key, now)
		if e == nil {
			return
		}
		if e.members == nil {
			err = ErrWrongType
			return
		}
		out = make([]string, 0, len(e.members))
		for member := range e.members {
			out = append(out, member)
		}
	})
	sort.Strings(out)
	return out, err
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of keys currently held, including expired keys not yet swept.
func (m *MemoryStore) Len() int {
	n := 0
	m.shards.Each(func(sh *memShard) { n += len(sh.items) })
	return n
}

// Sweep removes expired keys from every shard and returns how many it removed.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	removed := 0
	m.shards.Each(func(sh *memShard) {
		for k, e := range sh.items {
			if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
				delete(sh.items, k)
				removed++
			}
		}
	})
	return removed
}
