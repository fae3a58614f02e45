package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/config"
)

// ErrNotConfigured is returned by Health when no directory database is in use.
var ErrNotConfigured = errors.New("database not configured")

var (
	poolMetricsOnce sync.Once

	dbOpenConns     prometheus.Gauge
	dbInUseConns    prometheus.Gauge
	dbIdleConns     prometheus.Gauge
	dbWaits         prometheus.Counter
	dbWaitSeconds   prometheus.Counter
	dbClosedIdle    prometheus.Counter
	dbClosedExpired prometheus.Counter
)

func registerPoolMetrics() {
	poolMetricsOnce.Do(func() {
		dbOpenConns = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_db_pool_open_conns",
			Help: "Established connections to the user directory database",
		})
		dbInUseConns = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_db_pool_in_use_conns",
			Help: "Connections currently serving a query",
		})
		dbIdleConns = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_db_pool_idle_conns",
			Help: "Idle connections held by the pool",
		})
		dbWaits = promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_db_pool_waits_total",
			Help: "Times a caller waited for a free connection",
		})
		dbWaitSeconds = promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_db_pool_wait_seconds_total",
			Help: "Total time callers spent waiting for a connection",
		})
		dbClosedIdle = promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_db_pool_closed_idle_total",
			Help: "Connections closed because the idle limit was reached",
		})
		dbClosedExpired = promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_db_pool_closed_expired_total",
			Help: "Connections closed because they reached their maximum lifetime or idle time",
		})
	})
}

// Pool is the user directory connection pool.
type Pool struct {
	db  *sql.DB
	cfg config.DatabaseConfig

	mu        sync.Mutex
	lastStats sql.DBStats
}

// New opens a pool for cfg.URL, verifies it with a ping bounded by
// cfg.PingTimeout and registers the pool metrics.
// Returns nil if the URL is empty (in-memory directory).
func New(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping database: %w", err)
	}

	registerPoolMetrics()
	return &Pool{db: db, cfg: cfg}, nil
}

// DB returns the underlying *sql.DB for the directory store and migrations.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Health pings the database with the configured ping timeout.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return ErrNotConfigured
	}
	if p.cfg.PingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.PingTimeout)
		defer cancel()
	}
	return p.db.PingContext(ctx)
}

// RecordPoolStats updates the pool gauges and advances the counters by the
// delta since the previous call.
func (p *Pool) RecordPoolStats() {
	if p == nil || p.db == nil {
		return
	}
	stats := p.db.Stats()

	p.mu.Lock()
	defer p.mu.Unlock()

	dbOpenConns.Set(float64(stats.OpenConnections))
	dbInUseConns.Set(float64(stats.InUse))
	dbIdleConns.Set(float64(stats.Idle))

	prev := p.lastStats
	addDelta(dbWaits, stats.WaitCount, prev.WaitCount)
	if stats.WaitDuration > prev.WaitDuration {
		dbWaitSeconds.Add((stats.WaitDuration - prev.WaitDuration).Seconds())
	}
	addDelta(dbClosedIdle, stats.MaxIdleClosed, prev.MaxIdleClosed)
	addDelta(dbClosedExpired, stats.MaxLifetimeClosed+stats.MaxIdleTimeClosed,
		prev.MaxLifetimeClosed+prev.MaxIdleTimeClosed)

	p.lastStats = stats
}

func addDelta(c prometheus.Counter, current, previous int64) {
	if current > previous {
		c.Add(float64(current - previous))
	}
}

// Close closes the pool. Safe on a nil Pool.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
