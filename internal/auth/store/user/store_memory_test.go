package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/models"
)

type InMemoryUserStoreSuite struct {
	suite.Suite
	store *InMemoryUserStore
}

func TestInMemoryUserStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryUserStoreSuite))
}

func (s *InMemoryUserStoreSuite) SetupTest() {
	s.store = New()
}

func (s *InMemoryUserStoreSuite) TestSaveAndFind() {
	ctx := context.Background()
	user := &models.User{
		ID:           "u-alice",
		Username:     "Alice",
		DisplayName:  "Alice Liddell",
		PasswordHash: "$2a$12$hash",
		Roles:        []string{"user"},
	}
	s.Require().NoError(s.store.Save(ctx, user))

	s.Run("lookup is case insensitive", func() {
		found, err := s.store.FindByUsername(ctx, "  aLiCe ")
		s.Require().NoError(err)
		s.Equal(user, found)
	})

	s.Run("returned users are copies", func() {
		found, err := s.store.FindByUsername(ctx, "alice")
		s.Require().NoError(err)
		found.Roles[0] = "admin"

		again, err := s.store.FindByUsername(ctx, "alice")
		s.Require().NoError(err)
		s.Equal([]string{"user"}, again.Roles)
	})

	s.Run("same user can be updated", func() {
		updated := *user
		updated.Disabled = true
		s.Require().NoError(s.store.Save(ctx, &updated))
		found, err := s.store.FindByUsername(ctx, "alice")
		s.Require().NoError(err)
		s.True(found.Disabled)
		s.False(found.CanAuthenticate())
	})

	s.Run("another user cannot take the name", func() {
		err := s.store.Save(ctx, &models.User{ID: "u-other", Username: "ALICE"})
		s.ErrorIs(err, ErrAlreadyExists)
	})
}

func (s *InMemoryUserStoreSuite) TestFindMissing() {
	_, err := s.store.FindByUsername(context.Background(), "nobody")
	s.ErrorIs(err, ErrNotFound)
}
