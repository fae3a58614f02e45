package service

import (
	"context"
	"time"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/statestore"
)

// unreachableStore fails every lockout operation.
type unreachableStore struct{}

func (unreachableStore) IncrWindow(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, statestore.ErrUnavailable
}

func (unreachableStore) Get(context.Context, string) (string, error) {
	return "", statestore.ErrUnavailable
}

func (unreachableStore) TTL(context.Context, string) (time.Duration, error) {
	return 0, statestore.ErrUnavailable
}

func (unreachableStore) Del(context.Context, ...string) error {
	return statestore.ErrUnavailable
}
