// Package service orchestrates login, session refresh and logout on top of
// the lockout tracker, the user directory and the token lifecycle manager.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/metrics"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/models"
	id "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/secrets"
)

// UserStore is the credential directory.
// Error Contract: FindByUsername returns user.ErrNotFound when no user has the name.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// LockoutTracker counts failed logins per (username, origin) pair.
type LockoutTracker interface {
	IsLocked(ctx context.Context, identifier, ip string) (bool, error)
	RemainingLockSeconds(ctx context.Context, identifier, ip string) (int, error)
	RecordFailure(ctx context.Context, identifier, ip string) (int, error)
	Reset(ctx context.Context, identifier, ip string) error
	MaxAttempts() int
}

// TokenManager issues, rotates and revokes credential pairs.
type TokenManager interface {
	Issue(ctx context.Context, principal *id.Principal) (*models.CredentialPair, error)
	Rotate(ctx context.Context, sessionToken string) (*models.CredentialPair, error)
	Logout(ctx context.Context, sessionToken string) error
}

// PermissionResolver expands roles into permissions at issuance.
type PermissionResolver interface {
	Permissions(roles []string) []string
}

// PasswordVerifier checks a password against a stored hash. VerifyDummy
// performs the same work when there is no hash to check.
type PasswordVerifier interface {
	Verify(password, hash string) error
	VerifyDummy(password string)
}

type Service struct {
	users     UserStore
	lockout   LockoutTracker
	tokens    TokenManager
	roles     PermissionResolver
	passwords PasswordVerifier
	logger    *slog.Logger
	auditor   *audit.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditLogger(auditor *audit.Logger) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer overrides the tracer taken from the global otel provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithPasswordVerifier replaces bcrypt verification.
func WithPasswordVerifier(v PasswordVerifier) Option {
	return func(s *Service) {
		s.passwords = v
	}
}

func New(users UserStore, lockout LockoutTracker, tokens TokenManager, roles PermissionResolver, opts ...Option) *Service {
	svc := &Service{
		users:     users,
		lockout:   lockout,
		tokens:    tokens,
		roles:     roles,
		passwords: bcryptVerifier{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tracer == nil {
		svc.tracer = otel.Tracer("github.com/jasonachkar/secure-api-gateway-sub001/internal/auth")
	}
	return svc
}

type bcryptVerifier struct{}

func (bcryptVerifier) Verify(password, hash string) error { return secrets.Verify(password, hash) }
func (bcryptVerifier) VerifyDummy(password string)        { secrets.VerifyDummy(password) }
