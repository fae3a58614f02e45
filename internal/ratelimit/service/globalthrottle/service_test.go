package globalthrottle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/config"
)

func TestAllow(t *testing.T) {
	ctx := context.Background()

	t.Run("zero rps disables the throttle", func(t *testing.T) {
		svc := New(WithConfig(&config.InstanceLimit{RPS: 0}))
		assert.False(t, svc.Enabled())
		for i := 0; i < 1000; i++ {
			assert.True(t, svc.Allow(ctx))
		}
	})

	t.Run("burst is admitted then requests are shed", func(t *testing.T) {
		// one token per hour so nothing refills during the test
		svc := New(WithConfig(&config.InstanceLimit{RPS: 1.0 / 3600, Burst: 3}))
		assert.True(t, svc.Enabled())
		for i := 0; i < 3; i++ {
			assert.True(t, svc.Allow(ctx), "request %d within burst", i)
		}
		assert.False(t, svc.Allow(ctx))
	})

	t.Run("defaults enable the throttle", func(t *testing.T) {
		assert.True(t, New().Enabled())
	})
}
