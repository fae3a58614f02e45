// Package globalthrottle caps the request rate of one gateway process with a
// token bucket. It protects the process itself and is independent of the
// shared per-scope counters.
package globalthrottle

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/config"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/ratelimit/metrics"
)

// rejectionLogInterval spaces the warn lines emitted while the process is shedding load.
const rejectionLogInterval = 10 * time.Second

type Service struct {
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
	config  *config.InstanceLimit
	lastLog atomic.Int64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg *config.InstanceLimit) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates the throttle. An RPS of zero disables it.
func New(opts ...Option) *Service {
	defaultCfg := config.DefaultConfig().Instance
	svc := &Service{config: &defaultCfg}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.config.RPS > 0 {
		burst := svc.config.Burst
		if burst < 1 {
			burst = 1
		}
		svc.limiter = rate.NewLimiter(rate.Limit(svc.config.RPS), burst)
	}
	return svc
}

// Enabled reports whether the throttle limits anything.
func (s *Service) Enabled() bool {
	return s.limiter != nil
}

// Allow takes one token. It never blocks.
func (s *Service) Allow(ctx context.Context) bool {
	if s.limiter == nil {
		return true
	}
	if s.limiter.Allow() {
		return true
	}

	if s.metrics != nil {
		s.metrics.IncrementThrottleRejections()
	}
	s.logRejection(ctx)
	return false
}

func (s *Service) logRejection(ctx context.Context) {
	if s.logger == nil {
		return
	}
	now := time.Now().UnixNano()
	last := s.lastLog.Load()
	if now-last < int64(rejectionLogInterval) || !s.lastLog.CompareAndSwap(last, now) {
		return
	}
	s.logger.WarnContext(ctx, "instance throttle rejecting requests",
		"rps", s.config.RPS,
		"burst", s.config.Burst,
	)
}
