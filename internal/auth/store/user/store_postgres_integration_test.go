//go:build integration

package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/models"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/store/user"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *user.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = user.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "users"))
}

func (s *PostgresStoreSuite) TestSaveAndFindByUsername() {
	ctx := context.Background()
	u := &models.User{
		ID:           "u-alice",
		Username:     "Alice",
		DisplayName:  "Alice Liddell",
		PasswordHash: "$2a$12$hash",
		Roles:        []string{"admin", "user"},
	}
	s.Require().NoError(s.store.Save(ctx, u))

	found, err := s.store.FindByUsername(ctx, "ALICE")
	s.Require().NoError(err)
	s.Equal(u.ID, found.ID)
	s.Equal("Alice", found.Username)
	s.Equal("Alice Liddell", found.DisplayName)
	s.Equal([]string{"admin", "user"}, found.Roles)
	s.False(found.Disabled)
	s.False(found.CreatedAt.IsZero())
}

func (s *PostgresStoreSuite) TestUpsertUpdatesExistingRow() {
	ctx := context.Background()
	u := &models.User{ID: "u-bob", Username: "bob", PasswordHash: "h1"}
	s.Require().NoError(s.store.Save(ctx, u))

	u.PasswordHash = "h2"
	u.Disabled = true
	s.Require().NoError(s.store.Save(ctx, u))

	found, err := s.store.FindByUsername(ctx, "bob")
	s.Require().NoError(err)
	s.Equal("h2", found.PasswordHash)
	s.True(found.Disabled)
	s.Empty(found.Roles)
}

func (s *PostgresStoreSuite) TestUsernameUniqueness() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, &models.User{ID: "u-1", Username: "carol", PasswordHash: "h"}))

	err := s.store.Save(ctx, &models.User{ID: "u-2", Username: "Carol", PasswordHash: "h"})
	s.ErrorIs(err, user.ErrAlreadyExists)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByUsername(context.Background(), "nobody")
	s.ErrorIs(err, user.ErrNotFound)
}
