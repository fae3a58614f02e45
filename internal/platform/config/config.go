package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environments recognised by ENVIRONMENT.
const (
	EnvLocal       = "local"
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Rotation modes recognised by ROTATION_MODE.
const (
	RotationModeAccept = "accept"
	RotationModeCAS    = "cas"
)

// devSigningKey is used outside production when JWT_SIGNING_KEY is unset.
const devSigningKey = "dev-only-signing-key-change-me-in-production"

// minHMACKeyBytes is the minimum HS256 key length.
const minHMACKeyBytes = 32

// Server captures process-level configuration.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        string
	DiagnosticsMode bool
	ShutdownTimeout time.Duration
	TrustedProxies  string
	CookieSecure    bool

	Redis     RedisConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Lockout   LockoutConfig
	RateLimit RateLimitConfig
}

// RedisConfig configures the shared state store client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// OpTimeout bounds each store call made by the security components.
	OpTimeout time.Duration
}

// DatabaseConfig configures the optional Postgres user directory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// KafkaConfig configures the optional audit event sink.
type KafkaConfig struct {
	Brokers    string
	AuditTopic string
}

// AuthConfig configures token issuance and verification.
type AuthConfig struct {
	AccessTokenTTL      time.Duration
	SessionTokenTTL     time.Duration
	RotationGraceTTL    time.Duration
	RotationMode        string
	RotationReuseGrace  time.Duration
	JWTAlgorithm        string
	JWTSigningKey       string
	JWTPrivateKeyFile   string
	JWTIssuer           string
	RolePermissionsFile string
	DemoPassword        string
}

// LockoutConfig configures the credential lockout tracker.
type LockoutConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// Limit is a fixed-window limit.
type Limit struct {
	Max    int
	Window time.Duration
}

// RateLimitConfig configures the per-scope request limits.
type RateLimitConfig struct {
	Global        Limit
	Auth          Limit
	User          Limit
	InstanceRPS   float64
	InstanceBurst int
}

// IsProduction reports whether production hardening applies.
func (s Server) IsProduction() bool { return s.Environment == EnvProduction }

// FromEnv builds a Server config from environment variables and validates it.
// Every malformed variable is reported, not just the first.
func FromEnv() (Server, error) {
	p := &parser{}

	cfg := Server{
		Addr:            p.str("GATEWAY_ADDR", ":8080"),
		Environment:     strings.ToLower(p.str("ENVIRONMENT", EnvLocal)),
		LogLevel:        p.str("LOG_LEVEL", "info"),
		DiagnosticsMode: p.boolean("DIAGNOSTICS_MODE", false),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		TrustedProxies:  p.str("TRUSTED_PROXIES", ""),
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 20),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
			OpTimeout:    p.duration("REDIS_OP_TIMEOUT", 250*time.Millisecond),
		},
		Database: DatabaseConfig{
			URL:             p.str("DATABASE_URL", ""),
			MaxOpenConns:    p.integer("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    p.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: p.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: p.duration("DATABASE_CONN_MAX_IDLE_TIME", 5*time.Minute),
			PingTimeout:     p.duration("DATABASE_PING_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    p.str("KAFKA_BROKERS", ""),
			AuditTopic: p.str("AUDIT_TOPIC", "gateway.audit"),
		},
		Auth: AuthConfig{
			AccessTokenTTL:      p.duration("ACCESS_TOKEN_TTL", 15*time.Minute),
			SessionTokenTTL:     p.duration("SESSION_TOKEN_TTL", 7*24*time.Hour),
			RotationGraceTTL:    p.duration("ROTATION_GRACE_TTL", time.Hour),
			RotationMode:        strings.ToLower(p.str("ROTATION_MODE", RotationModeAccept)),
			RotationReuseGrace:  p.duration("ROTATION_REUSE_GRACE", 0),
			JWTAlgorithm:        strings.ToUpper(p.str("JWT_ALGORITHM", "HS256")),
			JWTSigningKey:       p.str("JWT_SIGNING_KEY", ""),
			JWTPrivateKeyFile:   p.str("JWT_PRIVATE_KEY_FILE", ""),
			JWTIssuer:           p.str("JWT_ISSUER", "secure-api-gateway"),
			RolePermissionsFile: p.str("ROLE_PERMISSIONS_FILE", ""),
			DemoPassword:        p.str("DEMO_PASSWORD", ""),
		},
		Lockout: LockoutConfig{
			MaxAttempts: p.integer("LOCKOUT_MAX_ATTEMPTS", 5),
			Window:      p.millis("LOCKOUT_WINDOW_MS", 15*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Global: Limit{
				Max:    p.integer("RATE_LIMIT_GLOBAL_MAX", 100),
				Window: p.millis("RATE_LIMIT_GLOBAL_WINDOW_MS", time.Minute),
			},
			Auth: Limit{
				Max:    p.integer("RATE_LIMIT_AUTH_MAX", 10),
				Window: p.millis("RATE_LIMIT_AUTH_WINDOW_MS", time.Minute),
			},
			User: Limit{
				Max:    p.integer("RATE_LIMIT_USER_MAX", 300),
				Window: p.millis("RATE_LIMIT_USER_WINDOW_MS", time.Minute),
			},
			InstanceRPS:   p.float("RATE_LIMIT_INSTANCE_RPS", 1000),
			InstanceBurst: p.integer("RATE_LIMIT_INSTANCE_BURST", 200),
		},
	}
	cfg.CookieSecure = p.boolean("COOKIE_SECURE", cfg.Environment != EnvLocal)

	if cfg.Auth.JWTAlgorithm == "HS256" && cfg.Auth.JWTSigningKey == "" && !cfg.IsProduction() {
		cfg.Auth.JWTSigningKey = devSigningKey
	}

	if err := errors.Join(append(p.errs, cfg.Validate())...); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (s Server) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch s.Environment {
	case EnvLocal, EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("ENVIRONMENT must be one of local, development, production; got %q", s.Environment))
	}

	check(s.Addr != "", "GATEWAY_ADDR must not be empty")
	check(s.ShutdownTimeout > 0, "SHUTDOWN_TIMEOUT must be positive")

	if s.Database.URL != "" {
		d := s.Database
		check(d.MaxOpenConns > 0, "DATABASE_MAX_OPEN_CONNS must be positive")
		check(d.MaxIdleConns >= 0 && d.MaxIdleConns <= d.MaxOpenConns,
			"DATABASE_MAX_IDLE_CONNS must be between 0 and DATABASE_MAX_OPEN_CONNS")
		check(d.PingTimeout > 0, "DATABASE_PING_TIMEOUT must be positive")
	}

	check(s.Lockout.MaxAttempts > 0, "LOCKOUT_MAX_ATTEMPTS must be positive")
	check(s.Lockout.Window >= time.Second, "LOCKOUT_WINDOW_MS must be at least 1000")

	for name, l := range map[string]Limit{"GLOBAL": s.RateLimit.Global, "AUTH": s.RateLimit.Auth, "USER": s.RateLimit.User} {
		check(l.Max > 0, "RATE_LIMIT_%s_MAX must be positive", name)
		check(l.Window > 0, "RATE_LIMIT_%s_WINDOW_MS must be positive", name)
	}
	// Zero disables the process-wide throttle.
	check(s.RateLimit.InstanceRPS >= 0, "RATE_LIMIT_INSTANCE_RPS must not be negative")
	check(s.RateLimit.InstanceRPS == 0 || s.RateLimit.InstanceBurst > 0, "RATE_LIMIT_INSTANCE_BURST must be positive")

	a := s.Auth
	check(a.AccessTokenTTL > 0, "ACCESS_TOKEN_TTL must be positive")
	check(a.SessionTokenTTL > a.AccessTokenTTL, "SESSION_TOKEN_TTL must exceed ACCESS_TOKEN_TTL")
	check(a.RotationGraceTTL > 0, "ROTATION_GRACE_TTL must be positive")
	check(a.RotationReuseGrace >= 0 && a.RotationReuseGrace < a.RotationGraceTTL,
		"ROTATION_REUSE_GRACE must be non-negative and shorter than ROTATION_GRACE_TTL")
	check(a.RotationMode == RotationModeAccept || a.RotationMode == RotationModeCAS,
		"ROTATION_MODE must be %q or %q", RotationModeAccept, RotationModeCAS)
	check(a.JWTIssuer != "", "JWT_ISSUER must not be empty")

	switch a.JWTAlgorithm {
	case "HS256":
		check(len(a.JWTSigningKey) >= minHMACKeyBytes, "JWT_SIGNING_KEY must be at least %d bytes for HS256", minHMACKeyBytes)
		check(!s.IsProduction() || a.JWTSigningKey != devSigningKey, "JWT_SIGNING_KEY must be set in production")
	case "RS256", "EDDSA":
		check(a.JWTPrivateKeyFile != "", "JWT_PRIVATE_KEY_FILE is required for %s", a.JWTAlgorithm)
	default:
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM must be HS256, RS256 or EdDSA; got %q", a.JWTAlgorithm))
	}

	if s.IsProduction() {
		check(s.Redis.URL != "", "REDIS_URL is required in production")
		check(s.CookieSecure, "COOKIE_SECURE cannot be disabled in production")
		check(!s.DiagnosticsMode, "DIAGNOSTICS_MODE cannot be enabled in production")
	}

	return errors.Join(errs...)
}

// parser reads typed environment variables and records malformed values.
type parser struct {
	errs []error
}

func (p *parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid number %q", key, raw))
		return def
	}
	return v
}

func (p *parser) boolean(key string, def bool) bool {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return def
	}
	return v
}

func (p *parser) millis(key string, def time.Duration) time.Duration {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid millisecond count %q", key, raw))
		return def
	}
	return time.Duration(v) * time.Millisecond
}
