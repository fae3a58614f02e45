package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	auditsink "github.com/jasonachkar/secure-api-gateway-sub001/internal/audit"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/config"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/database"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/health"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/kafka/producer"
	redisclient "github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/redis"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/statestore"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit/publisher"
)

// memoryAuditRetention bounds the in-process audit trail used without Kafka.
const memoryAuditRetention = 10_000

// infrastructure holds the external resources the gateway talks to. Optional
// backends are nil when not configured.
type infrastructure struct {
	store     statestore.Store
	memory    *statestore.MemoryStore
	storeKind string

	redis     *redisclient.Client
	db        *database.Pool
	producer  *producer.Producer
	publisher *publisher.Publisher
	auditor   *audit.Logger
	health    *health.Handler
}

func newInfrastructure(ctx context.Context, cfg config.Server, log *slog.Logger) (infra *infrastructure, err error) {
	infra = &infrastructure{health: health.New(cfg.Environment)}
	defer func() {
		if err != nil {
			infra.Close() //nolint:errcheck // best-effort cleanup on init failure
			infra = nil
		}
	}()

	if err = infra.initStateStore(ctx, cfg, log); err != nil {
		return infra, err
	}
	if err = infra.initDatabase(ctx, cfg); err != nil {
		return infra, err
	}
	if err = infra.initAudit(cfg, log); err != nil {
		return infra, err
	}
	return infra, nil
}

func (i *infrastructure) initStateStore(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		log.Warn("REDIS_URL not set, using in-process state store; limits and sessions are not shared across instances")
		i.memory = statestore.NewMemoryStore()
		i.store = i.memory
		i.storeKind = "memory"
		i.health.RegisterCheck("state_store", i.memory.Ping)
		return nil
	}

	store, err := statestore.NewRedisStore(client.Client,
		statestore.WithOpTimeout(cfg.Redis.OpTimeout),
		statestore.WithMetrics(statestore.NewMetrics()),
	)
	if err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return fmt.Errorf("create redis state store: %w", err)
	}
	i.redis = client
	i.store = store
	i.storeKind = "redis"
	i.health.RegisterCheck("state_store", client.Health)
	return nil
}

func (i *infrastructure) initDatabase(ctx context.Context, cfg config.Server) error {
	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if pool == nil {
		return nil
	}
	i.db = pool
	if err := database.Migrate(pool.DB()); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	i.health.RegisterCheck("database", pool.Health)
	return nil
}

func (i *infrastructure) initAudit(cfg config.Server, log *slog.Logger) error {
	var sink publisher.Sink
	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(producer.DefaultConfig(cfg.Kafka.Brokers), log)
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		i.producer = p
		i.health.RegisterCheck("audit_stream", p.Healthy)
		sink = auditsink.NewKafkaSink(p, cfg.Kafka.AuditTopic)
	} else {
		sink = auditsink.NewMemorySink(memoryAuditRetention)
	}

	i.publisher = publisher.New(sink,
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics()),
	)
	i.auditor = audit.NewLogger(log, i.publisher)
	return nil
}

// Close drains the audit queue before closing the producer it writes to.
func (i *infrastructure) Close() error {
	var errs []error
	if i.publisher != nil {
		i.publisher.Close()
	}
	if i.producer != nil {
		if err := i.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
