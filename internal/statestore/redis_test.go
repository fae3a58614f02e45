package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisStoreRequiresClient(t *testing.T) {
	_, err := NewRedisStore(nil)
	require.Error(t, err)
}

func TestRedisStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	store, err := NewRedisStore(client, WithOpTimeout(100*time.Millisecond))
	require.NoError(t, err)

	ctx := context.Background()

	_, _, err = store.IncrWindow(ctx, "rl:x", time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Ping(ctx), ErrUnavailable)
}

func TestRedisStoreValidatesTTLBeforeCalling(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()
	store, err := NewRedisStore(client)
	require.NoError(t, err)

	err = store.SetEX(context.Background(), "k", "v", 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}
