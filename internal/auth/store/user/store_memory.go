package user

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/models"
)

// InMemoryUserStore keeps users in process. Used in local development and tests.
type InMemoryUserStore struct {
	mu         sync.RWMutex
	byUsername map[string]*models.User
}

// New constructs an empty in-memory user store.
func New() *InMemoryUserStore {
	return &InMemoryUserStore{byUsername: make(map[string]*models.User)}
}

func (s *InMemoryUserStore) Save(_ context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user is required")
	}
	key := normalizeUsername(user.Username)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byUsername[key]; ok && existing.ID != user.ID {
		return fmt.Errorf("username %q: %w", user.Username, ErrAlreadyExists)
	}
	s.byUsername[key] = clone(user)
	return nil
}

func (s *InMemoryUserStore) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.byUsername[normalizeUsername(username)]; ok {
		return clone(user), nil
	}
	return nil, fmt.Errorf("user not found: %w", ErrNotFound)
}

// clone keeps callers from mutating stored users.
func clone(u *models.User) *models.User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	return &c
}
