// Package authlockout tracks failed authentication attempts per
// (username, origin) pair and reports when a pair is locked.
//
// A pair is locked once its counter reaches MaxAttempts. The counter expires
// one window after the first failure, which unlocks the pair. Unknown
// usernames are counted exactly like known ones. Store failures are treated
// as locked.
package authlockout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/config"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/metrics"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/models"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/statestore"
	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
)

// Store is the subset of the state store the tracker needs.
type Store interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Get(ctx context.Context, key string) (string, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Del(ctx context.Context, keys ...string) error
}

type Service struct {
	store   Store
	auditor *audit.Logger
	logger  *slog.Logger
	config  *config.AuthLockoutConfig
	metrics *metrics.Metrics
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

func WithConfig(cfg *config.AuthLockoutConfig) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("auth lockout store is required")
	}

	defaultCfg := config.DefaultConfig().AuthLockout
	svc := &Service{
		store:  store,
		config: &defaultCfg,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.config.MaxAttempts < 1 || svc.config.Window <= 0 {
		return nil, fmt.Errorf("invalid lockout config: max attempts %d, window %s",
			svc.config.MaxAttempts, svc.config.Window)
	}
	return svc, nil
}

// MaxAttempts returns the failure count at which a pair locks.
func (s *Service) MaxAttempts() int {
	return s.config.MaxAttempts
}

// Window returns the lockout window.
func (s *Service) Window() time.Duration {
	return s.config.Window
}

// RecordFailure counts one failed attempt and returns the new count. The
// window starts at the first failure and is not extended by later ones.
func (s *Service) RecordFailure(ctx context.Context, identifier, ip string) (int, error) {
	key := lockoutKey(identifier, ip)
	count, ttl, err := s.store.IncrWindow(ctx, key, s.config.Window)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record auth failure")
	}

	if s.metrics != nil {
		s.metrics.IncrementAuthFailures()
	}
	if int(count) == s.config.MaxAttempts {
		if s.metrics != nil {
			s.metrics.IncrementAuthLockouts()
		}
		s.auditor.Log(ctx, audit.ActionLockoutTriggered,
			"username", normalizeIdentifier(identifier),
			"reason", "max_attempts_reached",
			"failure_count", count,
			"locked_for_seconds", ceilSeconds(ttl),
		)
	}
	return int(count), nil
}

// IsLocked reports whether the pair has reached the failure limit. On store
// failure it returns true together with the error.
func (s *Service) IsLocked(ctx context.Context, identifier, ip string) (bool, error) {
	count, err := s.count(ctx, lockoutKey(identifier, ip))
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementLockoutCheckErrors()
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "lockout check failed, treating as locked",
				"error", err,
			)
		}
		return true, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check lockout")
	}
	return count >= s.config.MaxAttempts, nil
}

// RemainingLockSeconds returns the whole seconds until the pair's counter
// expires, rounded up. Zero when no counter exists. On store failure it
// returns the full window together with the error.
func (s *Service) RemainingLockSeconds(ctx context.Context, identifier, ip string) (int, error) {
	ttl, err := s.store.TTL(ctx, lockoutKey(identifier, ip))
	if errors.Is(err, statestore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return ceilSeconds(s.config.Window), dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read lockout expiry")
	}
	if ttl < 0 {
		// counter without expiry; report the configured window
		return ceilSeconds(s.config.Window), nil
	}
	return ceilSeconds(ttl), nil
}

// Reset clears the pair's counter. Called only after a successful login.
func (s *Service) Reset(ctx context.Context, identifier, ip string) error {
	if err := s.store.Del(ctx, lockoutKey(identifier, ip)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to reset lockout")
	}
	return nil
}

func (s *Service) count(ctx context.Context, key string) (int, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, statestore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: lockout counter %q", statestore.ErrWrongType, raw)
	}
	return n, nil
}

func lockoutKey(identifier, ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return models.NewAuthLockoutKey(normalizeIdentifier(identifier), ip)
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
