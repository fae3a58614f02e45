package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/config"
)

var (
	poolMetricsOnce sync.Once

	redisPoolHits       prometheus.Counter
	redisPoolMisses     prometheus.Counter
	redisPoolTimeouts   prometheus.Counter
	redisPoolTotalConns prometheus.Gauge
	redisPoolIdleConns  prometheus.Gauge
	redisPoolStaleConns prometheus.Counter
)

func registerPoolMetrics() {
	poolMetricsOnce.Do(func() {
		redisPoolHits = promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_redis_pool_hits_total",
			Help: "Number of times a connection was found in the pool",
		})
		redisPoolMisses = promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_redis_pool_misses_total",
			Help: "Number of times a connection was not found in the pool",
		})
		redisPoolTimeouts = promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_redis_pool_timeouts_total",
			Help: "Number of times a connection was not obtained due to timeout",
		})
		redisPoolTotalConns = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_redis_pool_total_conns",
			Help: "Number of total connections in the pool",
		})
		redisPoolIdleConns = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_redis_pool_idle_conns",
			Help: "Number of idle connections in the pool",
		})
		redisPoolStaleConns = promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_redis_pool_stale_conns_total",
			Help: "Number of stale connections removed from the pool",
		})
	})
}

// Client wraps the go-redis client with health checking and pool metrics.
type Client struct {
	*redis.Client

	mu        sync.Mutex
	lastStats *redis.PoolStats
}

// New creates a Redis client from cfg and verifies it with a ping.
// Returns nil if the URL is empty (Redis not configured).
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	// Timeouts come from the caller's context; the store adds its own per-op bound.
	opts.ContextTimeoutEnabled = true

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	registerPoolMetrics()
	return &Client{Client: client}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.Client.Close()
}

// RecordPoolStats updates Prometheus metrics with current pool statistics.
// Counters advance by the delta since the previous call.
func (c *Client) RecordPoolStats() {
	stats := c.PoolStats()

	c.mu.Lock()
	defer c.mu.Unlock()

	redisPoolTotalConns.Set(float64(stats.TotalConns))
	redisPoolIdleConns.Set(float64(stats.IdleConns))

	var prev redis.PoolStats
	if c.lastStats != nil {
		prev = *c.lastStats
	}
	addDelta(redisPoolHits, stats.Hits, prev.Hits)
	addDelta(redisPoolMisses, stats.Misses, prev.Misses)
	addDelta(redisPoolTimeouts, stats.Timeouts, prev.Timeouts)
	addDelta(redisPoolStaleConns, stats.StaleConns, prev.StaleConns)

	c.lastStats = stats
}

func addDelta(c prometheus.Counter, current, previous uint32) {
	if current > previous {
		c.Add(float64(current - previous))
	}
}
