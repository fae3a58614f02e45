// Package requestlimit enforces fixed-window request budgets per scope.
//
// Counters live in the shared state store so every gateway instance sees
// the same count. When the store fails, a circuit breaker routes checks to
// bounded in-process counters; results produced that way are marked
// Degraded. The service never allows a request because a store call failed.
//
// Usage:
//
//	svc, _ := requestlimit.New(store, requestlimit.WithConfig(cfg))
//	result, _ := svc.CheckScopes(ctx,
//	    svc.AuthCheck("login", ip),
//	    svc.GlobalCheck(ip),
//	)
//	if !result.Allowed {
//	    // 429 with result.RetryAfter
//	}
package requestlimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/config"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/metrics"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/models"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/statestore"
	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/circuit"
)

// Counter is the subset of the state store the limiter needs.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Service checks request budgets. Safe for concurrent use.
type Service struct {
	store    Counter
	fallback Counter
	breaker  *circuit.Breaker
	auditor  *audit.Logger
	logger   *slog.Logger
	config   *config.Config
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditLogger sets the audit logger used for denials and degraded mode.
func WithAuditLogger(auditor *audit.Logger) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

// WithConfig overrides the default rate limit configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithFallback replaces the in-process fallback counter.
func WithFallback(c Counter) Option {
	return func(s *Service) {
		s.fallback = c
	}
}

// WithBreaker replaces the circuit breaker guarding the store.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

// WithClock overrides the time source used for ResetAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a limiter over the shared store.
func New(store Counter, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("rate limit store is required")
	}

	svc := &Service{
		store:  store,
		config: config.DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}

	fb := svc.config.Fallback
	if svc.fallback == nil {
		svc.fallback = statestore.NewMemoryStore(
			statestore.WithCapacity(fb.Capacity),
			statestore.WithClock(svc.now),
		)
	}
	if svc.breaker == nil {
		svc.breaker = circuit.New("ratelimit",
			circuit.WithFailureThreshold(fb.FailureThreshold),
			circuit.WithSuccessThreshold(fb.SuccessThreshold),
			circuit.WithProbeInterval(fb.ProbeInterval),
			circuit.WithClock(svc.now),
		)
	}
	return svc, nil
}

// GlobalCheck builds the per-origin check.
func (s *Service) GlobalCheck(ip string) models.ScopeCheck {
	return models.ScopeCheck{Scope: models.ScopeGlobal, Identifier: originKey(ip), Limit: s.config.Global}
}

// AuthCheck builds the per-route, per-origin check for authentication routes.
func (s *Service) AuthCheck(route, ip string) models.ScopeCheck {
	return models.ScopeCheck{Scope: models.ScopeAuth, Identifier: originKey(ip), Route: route, Limit: s.config.Auth}
}

// UserCheck builds the per-principal check.
func (s *Service) UserCheck(principalID string) models.ScopeCheck {
	return models.ScopeCheck{Scope: models.ScopeUser, Identifier: principalID, Limit: s.config.User}
}

// Check increments one counter and compares the post-increment count to the
// limit. The request that makes count equal max is the last one allowed;
// denied requests are still counted.
func (s *Service) Check(ctx context.Context, check models.ScopeCheck) (*models.RateLimitResult, error) {
	if check.Limit.Max <= 0 || check.Limit.Window <= 0 {
		return nil, dErrors.New(dErrors.CodeInternal, "rate limit not configured for scope "+string(check.Scope))
	}

	key := check.Key()
	count, ttl, degraded, err := s.increment(ctx, check.Scope, key, check.Limit.Window)
	if err != nil {
		return nil, err
	}

	result := buildResult(check, count, ttl, s.now())
	result.Degraded = degraded

	if s.metrics != nil {
		s.metrics.RecordDecision(string(check.Scope), result.Allowed)
	}
	if !result.Allowed {
		s.auditDenial(ctx, check, result)
	}
	return result, nil
}

// CheckScopes evaluates checks in order, most specific first, and stops at
// the first denial. It returns the denying result, or the result of the
// first check when all pass.
func (s *Service) CheckScopes(ctx context.Context, checks ...models.ScopeCheck) (*models.RateLimitResult, error) {
	if len(checks) == 0 {
		return nil, dErrors.New(dErrors.CodeInternal, "no rate limit scopes given")
	}

	var first *models.RateLimitResult
	for _, check := range checks {
		res, err := s.Check(ctx, check)
		if err != nil {
			return nil, err
		}
		if !res.Allowed {
			return res, nil
		}
		if first == nil {
			first = res
		}
	}
	return first, nil
}

// increment hits the store unless the breaker is open, in which case only a
// periodic probe reaches the store and every other call uses the fallback.
func (s *Service) increment(ctx context.Context, scope models.Scope, key string, window time.Duration) (int64, time.Duration, bool, error) {
	if s.breaker.Allow() {
		count, ttl, err := s.store.IncrWindow(ctx, key, window)
		if err == nil {
			if _, change := s.breaker.RecordSuccess(); change.Closed {
				s.onCircuitClosed(ctx)
			}
			return count, ttl, false, nil
		}
		if ctx.Err() != nil {
			return 0, 0, false, dErrors.Wrap(ctx.Err(), dErrors.CodeUnavailable, "rate limit check cancelled")
		}
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.onCircuitOpened(ctx, err)
		} else if s.logger != nil {
			s.logger.WarnContext(ctx, "rate limit store error, using fallback",
				"scope", string(scope),
				"error", err,
			)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordFallback(string(scope))
	}
	count, ttl, err := s.fallback.IncrWindow(ctx, key, window)
	if err != nil {
		return 0, 0, true, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit unavailable")
	}
	return count, ttl, true, nil
}

func (s *Service) onCircuitOpened(ctx context.Context, cause error) {
	if s.metrics != nil {
		s.metrics.SetCircuitOpen(true)
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "rate limit store circuit opened, serving from fallback",
			"breaker", s.breaker.Name(),
			"error", cause,
		)
	}
	s.auditor.Log(ctx, audit.ActionRateLimitDegraded, "reason", "circuit_opened")
}

func (s *Service) onCircuitClosed(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.SetCircuitOpen(false)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "rate limit store recovered, circuit closed",
			"breaker", s.breaker.Name(),
		)
	}
	s.auditor.Log(ctx, audit.ActionRateLimitDegraded, "reason", "circuit_closed")
}

func (s *Service) auditDenial(ctx context.Context, check models.ScopeCheck, result *models.RateLimitResult) {
	attrs := []any{
		"scope", string(check.Scope),
		"limit", check.Limit.Max,
		"window_seconds", int(check.Limit.Window.Seconds()),
		"reason", string(check.Scope) + "_limit_exceeded",
	}
	if check.Scope == models.ScopeUser {
		attrs = append(attrs, "principal_id", check.Identifier)
	}
	if check.Route != "" {
		attrs = append(attrs, "route", check.Route)
	}
	if result.Degraded {
		attrs = append(attrs, "degraded", true)
	}
	s.auditor.Log(ctx, audit.ActionRateLimitExceeded, attrs...)
}

func buildResult(check models.ScopeCheck, count int64, ttl time.Duration, now time.Time) *models.RateLimitResult {
	if ttl <= 0 {
		ttl = check.Limit.Window
	}
	max := int64(check.Limit.Max)
	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	result := &models.RateLimitResult{
		Scope:     check.Scope,
		Allowed:   count <= max,
		Limit:     check.Limit.Max,
		Remaining: int(remaining),
		ResetAt:   now.Add(ttl),
	}
	if !result.Allowed {
		result.RetryAfter = ttl
	}
	return result
}

// originKey buckets requests whose origin could not be resolved together.
func originKey(ip string) string {
	if ip == "" {
		return "unknown"
	}
	return ip
}
