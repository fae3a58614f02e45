package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindowScript increments a counter and starts its window on first use.
// PTTL < 0 also covers counters whose expiry was lost.
var incrWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if count == 1 or ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

var compareAndDeleteScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// saddExtendScript adds members and only ever extends the set's expiry.
var saddExtendScript = redis.NewScript(`
for i = 2, #ARGV do
	redis.call('SADD', KEYS[1], ARGV[i])
end
if redis.call('PTTL', KEYS[1]) < tonumber(ARGV[1]) then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return 1
`)

// RedisStore implements Store on Redis. Every call runs under its own
// deadline so a slow store degrades into ErrUnavailable instead of stalling requests.
type RedisStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
	metrics   *Metrics
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithOpTimeout bounds every store call. Default is 250ms.
func WithOpTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithMetrics records per-operation latency and failures.
func WithMetrics(m *Metrics) RedisOption {
	return func(s *RedisStore) {
		s.metrics = m
	}
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	s := &RedisStore{client: client, opTimeout: 250 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisStore) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if s.metrics != nil {
		s.metrics.ObserveOp(op, time.Since(start), err != nil && !errors.Is(err, redis.Nil))
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

func (s *RedisStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if err := validateTTL(window); err != nil {
		return 0, 0, err
	}
	var count, ttlMs int64
	err := s.do(ctx, "incr_window", func(ctx context.Context) error {
		vals, err := incrWindowScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64Slice()
		if err != nil {
			return err
		}
		if len(vals) != 2 {
			return fmt.Errorf("unexpected script reply of length %d", len(vals))
		}
		count, ttlMs = vals[0], vals[1]
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return count, time.Duration(ttlMs) * time.Millisecond, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.do(ctx, "get", func(ctx context.Context) error {
		var err error
		value, err = s.client.Get(ctx, key).Result()
		return err
	})
	return value, err
}

func (s *RedisStore) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	return s.do(ctx, "set", func(ctx context.Context) error {
		return s.client.Set(ctx, key, value, ttl).Err()
	})
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.do(ctx, "del", func(ctx context.Context) error {
		return s.client.Del(ctx, keys...).Err()
	})
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := s.do(ctx, "exists", func(ctx context.Context) error {
		var err error
		n, err = s.client.Exists(ctx, key).Result()
		return err
	})
	return n > 0, err
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	var ttl time.Duration
	err := s.do(ctx, "ttl", func(ctx context.Context) error {
		var err error
		ttl, err = s.client.PTTL(ctx, key).Result()
		return err
	})
	if err != nil {
		return 0, err
	}
	// go-redis reports the raw -2 / -1 replies as nanosecond durations.
	switch ttl {
	case -2:
		return 0, ErrNotFound
	case -1:
		return NoExpiry, nil
	}
	return ttl, nil
}

func (s *RedisStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	var n int64
	err := s.do(ctx, "compare_and_delete", func(ctx context.Context) error {
		var err error
		n, err = compareAndDeleteScript.Run(ctx, s.client, []string{key}, expected).Int64()
		return err
	})
	return n == 1, err
}

func (s *RedisStore) SAddEX(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}
	args := make([]any, 0, len(members)+1)
	args = append(args, ttl.Milliseconds())
	for _, m := range members {
		args = append(args, m)
	}
	return s.do(ctx, "sadd", func(ctx context.Context) error {
		return saddExtendScript.Run(ctx, s.client, []string{key}, args...).Err()
	})
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	var members []string
	err := s.do(ctx, "smembers", func(ctx context.Context) error {
		var err error
		members, err = s.client.SMembers(ctx, key).Result()
		return err
	})
	return members, err
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.do(ctx, "ping", func(ctx context.Context) error {
		return s.client.Ping(ctx).Err()
	})
}
