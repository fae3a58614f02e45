package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/models"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain"
)

const (
	upsertUserSQL = `
INSERT INTO users (id, username, display_name, password_hash, roles, disabled, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
ON CONFLICT (id) DO UPDATE SET
	username      = EXCLUDED.username,
	display_name  = EXCLUDED.display_name,
	password_hash = EXCLUDED.password_hash,
	roles         = EXCLUDED.roles,
	disabled      = EXCLUDED.disabled,
	updated_at    = now()`

	findByUsernameSQL = `
SELECT id, username, display_name, password_hash, roles, disabled, created_at, updated_at
FROM users
WHERE lower(username) = $1`
)

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db    *sql.DB
	types *pgtype.Map
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, types: pgtype.NewMap()}
}

func (s *PostgresStore) Save(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user is required")
	}
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	_, err := s.db.ExecContext(ctx, upsertUserSQL,
		user.ID.String(),
		user.Username,
		user.DisplayName,
		user.PasswordHash,
		roles,
		user.Disabled,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username %q: %w", user.Username, ErrAlreadyExists)
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var (
		user  models.User
		rawID string
		roles []string
	)
	err := s.db.QueryRowContext(ctx, findByUsernameSQL, normalizeUsername(username)).Scan(
		&rawID,
		&user.Username,
		&user.DisplayName,
		&user.PasswordHash,
		s.types.SQLScanner(&roles),
		&user.Disabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	user.ID = domain.PrincipalID(rawID)
	user.Roles = roles
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
