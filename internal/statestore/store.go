// Package statestore is the shared key-value store that every gateway
// instance uses for rate-limit counters, lockout counters, session records,
// revocation markers and token families. Keys carry their own TTL.
package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("statestore: key not found")
	// ErrUnavailable wraps every transport or capacity failure of the store.
	ErrUnavailable = errors.New("statestore: unavailable")
	// ErrCapacity is returned by the in-process store when it is full.
	ErrCapacity = fmt.Errorf("%w: capacity exhausted", ErrUnavailable)
	// ErrWrongType is returned when a counter key holds a non-integer value.
	ErrWrongType = errors.New("statestore: value has wrong type")
)

// NoExpiry is returned by TTL for keys without an expiry.
const NoExpiry time.Duration = -1

// Store is the contract the security components rely on. Implementations
// must make IncrWindow and CompareAndDelete atomic across all callers that
// share the store.
type Store interface {
	// IncrWindow increments the counter at key. When the increment creates the
	// key (or finds it without expiry) the key expires after window. It returns
	// the new count and the remaining lifetime of the window.
	IncrWindow(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)

	Get(ctx context.Context, key string) (string, error)
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)

	// CompareAndDelete deletes key only if it currently holds expected.
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)

	// SAddEX adds members to the set at key and extends its expiry to at least ttl.
	SAddEX(ctx context.Context, key string, ttl time.Duration, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	Ping(ctx context.Context) error
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("statestore: ttl must be positive, got %s", ttl)
	}
	return nil
}
