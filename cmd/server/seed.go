package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/models"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/service"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/store/user"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/config"
	id "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/secrets"
)

// demoNamespace derives stable demo user IDs so reseeding a database
// updates rows in place.
var demoNamespace = uuid.MustParse("8f2b6a1e-4c3d-4e5f-9a7b-2c1d0e9f8a6b")

type demoUser struct {
	username    string
	displayName string
	roles       []string
}

var demoUsers = []demoUser{
	{username: "admin", displayName: "Admin", roles: []string{"admin"}},
	{username: "alice", displayName: "Alice", roles: []string{"analyst"}},
	{username: "bob", displayName: "Bob", roles: []string{"user"}},
}

type userDirectory interface {
	service.UserStore
	Save(ctx context.Context, u *models.User) error
}

// newUserDirectory picks Postgres when DATABASE_URL is set and seeds demo
// accounts outside production.
func newUserDirectory(ctx context.Context, cfg config.Server, log *slog.Logger, infra *infrastructure) (userDirectory, error) {
	var users userDirectory = user.New()
	if infra.db != nil {
		users = user.NewPostgres(infra.db.DB())
	}
	if cfg.IsProduction() {
		return users, nil
	}

	password := cfg.Auth.DemoPassword
	if password == "" {
		if cfg.Environment != config.EnvLocal {
			log.Info("DEMO_PASSWORD not set, skipping demo users")
			return users, nil
		}
		generated, err := secrets.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate demo password: %w", err)
		}
		password = generated
		log.Warn("generated demo password for this process", "password", password)
	}

	if err := seedDemoUsers(ctx, users, password); err != nil {
		return nil, err
	}
	log.Info("seeded demo users", "count", len(demoUsers))
	return users, nil
}

func seedDemoUsers(ctx context.Context, users userDirectory, password string) error {
	hash, err := secrets.Hash(password)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	for _, d := range demoUsers {
		u := &models.User{
			ID:           id.PrincipalID(uuid.NewSHA1(demoNamespace, []byte(d.username)).String()),
			Username:     d.username,
			DisplayName:  d.displayName,
			PasswordHash: hash,
			Roles:        d.roles,
		}
		if err := users.Save(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", d.username, err)
		}
	}
	return nil
}
