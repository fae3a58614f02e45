package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	platformconfig "github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/config"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/models"
)

func TestFromServer(t *testing.T) {
	var s platformconfig.Server
	s.RateLimit.Global = platformconfig.Limit{Max: 7, Window: 2 * time.Second}
	s.RateLimit.Auth = platformconfig.Limit{Max: 3, Window: time.Second}
	s.RateLimit.User = platformconfig.Limit{Max: 9, Window: time.Minute}
	s.RateLimit.InstanceRPS = 50
	s.RateLimit.InstanceBurst = 5
	s.Lockout = platformconfig.LockoutConfig{MaxAttempts: 4, Window: time.Hour}

	cfg := FromServer(s)

	assert.Equal(t, models.Limit{Max: 7, Window: 2 * time.Second}, cfg.Global)
	assert.Equal(t, models.Limit{Max: 3, Window: time.Second}, cfg.Auth)
	assert.Equal(t, models.Limit{Max: 9, Window: time.Minute}, cfg.User)
	assert.Equal(t, InstanceLimit{RPS: 50, Burst: 5}, cfg.Instance)
	assert.Equal(t, AuthLockoutConfig{MaxAttempts: 4, Window: time.Hour}, cfg.AuthLockout)
	assert.Equal(t, DefaultConfig().Fallback, cfg.Fallback)
}

func TestLimitFor(t *testing.T) {
	cfg := DefaultConfig()
	l, ok := cfg.LimitFor(models.ScopeAuth)
	assert.True(t, ok)
	assert.Equal(t, cfg.Auth, l)

	_, ok = cfg.LimitFor(models.Scope("tenant"))
	assert.False(t, ok)
}
