package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/models"
	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/httputil"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/privacy"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

// RateLimiter evaluates scope checks. Satisfied by requestlimit.Service.
type RateLimiter interface {
	GlobalCheck(ip string) models.ScopeCheck
	AuthCheck(route, ip string) models.ScopeCheck
	UserCheck(principalID string) models.ScopeCheck
	CheckScopes(ctx context.Context, checks ...models.ScopeCheck) (*models.RateLimitResult, error)
}

// Throttle is the process-wide token bucket. Satisfied by globalthrottle.Service.
type Throttle interface {
	Allow(ctx context.Context) bool
}

// storeRetryAfter is advertised when no limiter decision could be made.
const storeRetryAfter = time.Second

type Middleware struct {
	limiter  RateLimiter
	throttle Throttle
	errs     *httputil.ErrorWriter
	logger   *slog.Logger
	now      func() time.Time
}

func New(limiter RateLimiter, throttle Throttle, errs *httputil.ErrorWriter, logger *slog.Logger) *Middleware {
	if errs == nil {
		errs = httputil.NewErrorWriter(logger, false)
	}
	return &Middleware{
		limiter:  limiter,
		throttle: throttle,
		errs:     errs,
		logger:   logger,
		now:      time.Now,
	}
}

// GlobalThrottle rejects requests with 503 while the process-wide bucket is empty.
func (m *Middleware) GlobalThrottle() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.throttle != nil && !m.throttle.Allow(r.Context()) {
				m.errs.Write(w, r, dErrors.NewRetryable(dErrors.CodeUnavailable,
					"service is temporarily overloaded", storeRetryAfter))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Global limits requests per client origin.
func (m *Middleware) Global() func(http.Handler) http.Handler {
	return m.limit("global", func(r *http.Request) []models.ScopeCheck {
		ip := requestcontext.ClientIP(r.Context())
		return []models.ScopeCheck{m.limiter.GlobalCheck(ip)}
	})
}

// Auth limits an authentication route per client origin, then applies the
// global origin limit.
func (m *Middleware) Auth(route string) func(http.Handler) http.Handler {
	return m.limit("auth", func(r *http.Request) []models.ScopeCheck {
		ip := requestcontext.ClientIP(r.Context())
		return []models.ScopeCheck{m.limiter.AuthCheck(route, ip), m.limiter.GlobalCheck(ip)}
	})
}

// User limits an authenticated request per principal, then per origin.
// Requests without a principal are limited per origin only. It must run
// after the authentication middleware has attached any principal, so a
// request the principal scope denies never spends the origin's budget.
func (m *Middleware) User() func(http.Handler) http.Handler {
	return m.limit("user", func(r *http.Request) []models.ScopeCheck {
		ip := requestcontext.ClientIP(r.Context())
		p := requestcontext.Principal(r.Context())
		if p == nil {
			return []models.ScopeCheck{m.limiter.GlobalCheck(ip)}
		}
		return []models.ScopeCheck{m.limiter.UserCheck(p.ID.String()), m.limiter.GlobalCheck(ip)}
	})
}

func (m *Middleware) limit(name string, checks func(r *http.Request) []models.ScopeCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scopeChecks := checks(r)
			if len(scopeChecks) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			result, err := m.limiter.CheckScopes(ctx, scopeChecks...)
			if err != nil {
				// No decision could be made; never let the request through.
				if m.logger != nil {
					m.logger.ErrorContext(ctx, "rate limit check failed",
						"limiter", name,
						"ip_prefix", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
						"request_id", requestcontext.RequestID(ctx),
						"error", err,
					)
				}
				m.errs.Write(w, r, dErrors.NewRetryable(dErrors.CodeUnavailable,
					"rate limiting is temporarily unavailable", storeRetryAfter))
				return
			}

			m.addRateLimitHeaders(w, result)

			if !result.Allowed {
				m.errs.Write(w, r, dErrors.NewRetryable(dErrors.CodeRateLimited,
					"too many requests, try again later", result.RetryAfter))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// addRateLimitHeaders writes both the IETF draft headers (reset in seconds)
// and the X-RateLimit-* headers (reset as a unix timestamp).
func (m *Middleware) addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	h := w.Header()
	limit := strconv.Itoa(result.Limit)
	remaining := strconv.Itoa(result.Remaining)

	h.Set("RateLimit-Limit", limit)
	h.Set("RateLimit-Remaining", remaining)
	h.Set("RateLimit-Reset", strconv.Itoa(secondsUntil(result.ResetAt, m.now())))
	h.Set("X-RateLimit-Limit", limit)
	h.Set("X-RateLimit-Remaining", remaining)
	h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if result.Degraded {
		h.Set("X-RateLimit-Status", "degraded")
	}
}

func secondsUntil(t, now time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
