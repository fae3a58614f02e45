package config

import (
	"time"

	platformconfig "github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/config"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/models"
)

// Config holds rate limiting and lockout configuration.
type Config struct {
	// Per-scope request budgets
	Global models.Limit
	Auth   models.Limit
	User   models.Limit

	// Process-wide throttle in front of all routes
	Instance InstanceLimit

	// Failed-authentication lockout
	AuthLockout AuthLockoutConfig

	// Behaviour while the shared store is unreachable
	Fallback FallbackConfig
}

// InstanceLimit is a token bucket local to one process. RPS 0 disables it.
type InstanceLimit struct {
	RPS   float64
	Burst int
}

// AuthLockoutConfig defines authentication lockout parameters.
type AuthLockoutConfig struct {
	MaxAttempts int           // failures before the pair is locked
	Window      time.Duration // counted from the first failure
}

// FallbackConfig sizes the in-process counters and the breaker guarding the store.
type FallbackConfig struct {
	Capacity         int
	FailureThreshold int
	SuccessThreshold int
	ProbeInterval    time.Duration
}

// DefaultConfig returns the defaults used when no environment is supplied.
func DefaultConfig() *Config {
	return &Config{
		Global: models.Limit{Max: 100, Window: time.Minute},
		Auth:   models.Limit{Max: 10, Window: time.Minute},
		User:   models.Limit{Max: 300, Window: time.Minute},
		Instance: InstanceLimit{
			RPS:   1000,
			Burst: 200,
		},
		AuthLockout: AuthLockoutConfig{
			MaxAttempts: 5,
			Window:      15 * time.Minute,
		},
		Fallback: FallbackConfig{
			Capacity:         100_000,
			FailureThreshold: 3,
			SuccessThreshold: 2,
			ProbeInterval:    250 * time.Millisecond,
		},
	}
}

// FromServer maps validated process configuration onto the rate limit config.
func FromServer(s platformconfig.Server) *Config {
	cfg := DefaultConfig()
	cfg.Global = models.Limit{Max: s.RateLimit.Global.Max, Window: s.RateLimit.Global.Window}
	cfg.Auth = models.Limit{Max: s.RateLimit.Auth.Max, Window: s.RateLimit.Auth.Window}
	cfg.User = models.Limit{Max: s.RateLimit.User.Max, Window: s.RateLimit.User.Window}
	cfg.Instance = InstanceLimit{RPS: s.RateLimit.InstanceRPS, Burst: s.RateLimit.InstanceBurst}
	cfg.AuthLockout = AuthLockoutConfig{MaxAttempts: s.Lockout.MaxAttempts, Window: s.Lockout.Window}
	return cfg
}

// LimitFor returns the budget configured for scope.
func (c *Config) LimitFor(scope models.Scope) (models.Limit, bool) {
	switch scope {
	case models.ScopeGlobal:
		return c.Global, true
	case models.ScopeAuth:
		return c.Auth, true
	case models.ScopeUser:
		return c.User, true
	}
	return models.Limit{}, false
}
