package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/esledger/internal/adapter/http"
	"github.com/iho/esledger/internal/adapter/http/handler"
	"github.com/iho/esledger/internal/adapter/http/middleware"
	"github.com/iho/esledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/esledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/esledger/internal/adapter/repository/redis"
	"github.com/iho/esledger/internal/domain"
	"github.com/iho/esledger/internal/infrastructure/config"
	"github.com/iho/esledger/internal/infrastructure/eventbus"
	"github.com/iho/esledger/internal/infrastructure/eventpublisher"
	"github.com/iho/esledger/internal/infrastructure/logging"
	"github.com/iho/esledger/internal/infrastructure/metrics"
	"github.com/iho/esledger/internal/infrastructure/postgres"
	"github.com/iho/esledger/internal/infrastructure/redis"
	"github.com/iho/esledger/internal/infrastructure/retry"
	"github.com/iho/esledger/internal/usecase"
)

const (
	rateLimitCleanupInterval = time.Minute
	rateLimitMaxIdle         = 10 * time.Minute
)

// app is the wired server. Background work stops when close is called.
type app struct {
	handler http.Handler

	bus         *eventbus.InMemoryEventBus
	pool        *pgxpool.Pool
	redisClient *goredis.Client

	cancel context.CancelFunc
	relay  chan struct{}
	log    zerolog.Logger
}

// newApp connects to the configured backends and wires the ledger. On error
// everything opened so far is released.
func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, appLogger *logging.Logger) (a *app, err error) {
	bgCtx, cancel := context.WithCancel(context.Background())
	a = &app{cancel: cancel, log: log}
	defer func() {
		if err != nil {
			a.close(context.Background())
			a = nil
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a.bus = eventbus.NewInMemoryEventBus(eventbus.Config{
		QueueSize:  cfg.BusQueueSize,
		Logger:     appLogger,
		QueueDepth: m.BusQueueDepth,
	})

	var store domain.EventStore
	switch cfg.EventStoreDriver {
	case config.DriverPostgres:
		pgStore, err := a.openPostgres(ctx, cfg, appLogger)
		if err != nil {
			return a, err
		}
		store = pgStore

		publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: pgStore,
			Bus:        a.bus,
			Recorder:   m,
			Logger:     appLogger,
			BatchSize:  cfg.OutboxBatchSize,
			Interval:   cfg.OutboxPollInterval,
		})
		a.relay = make(chan struct{})
		go func() {
			defer close(a.relay)
			publisher.Start(bgCtx)
		}()
	default:
		store = usecase.NewPublishingEventStore(memory.NewEventStore(), a.bus, appLogger)
		log.Info().Msg("using in-memory event store")
	}

	a.bus.Register(usecase.NewTransferProcessManager(store, appLogger, m))
	a.bus.Register(eventpublisher.NewEventLogger(appLogger))

	var commandRetrier usecase.Retrier
	if cfg.CommandMaxRetries > 0 {
		commandRetrier = retry.New(retry.Config{
			MaxRetries: cfg.CommandMaxRetries,
			Retryable:  usecase.IsConflict,
			Logger:     appLogger,
			Name:       "command",
		})
	}
	accountUC := usecase.NewAccountUseCase(store, commandRetrier, usecase.WithMetricsRecorder(m))

	routerCfg := httpAdapter.RouterConfig{
		AccountHandler:  handler.NewAccountHandler(accountUC),
		TransferHandler: handler.NewTransferHandler(accountUC),
		Logger:          log,
		Metrics:         m,
		Gatherer:        reg,
	}

	var checks []handler.HealthCheck
	if a.pool != nil {
		pool := a.pool
		checks = append(checks, handler.HealthCheck{Name: "postgres", Check: pool.Ping})
	}

	if cfg.RedisURL != "" {
		client, err := redis.NewClientWithConfig(ctx, redis.Config{
			URL:          cfg.RedisURL,
			DialTimeout:  cfg.RedisDialTimeout,
			ReadTimeout:  cfg.RedisReadTimeout,
			WriteTimeout: cfg.RedisWriteTimeout,
			PoolSize:     cfg.RedisPoolSize,
		})
		if err != nil {
			return a, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redisClient = client
		log.Info().Msg("connected to redis")

		view := redisRepo.NewBalanceView(client)
		projector := usecase.NewBalanceProjector(store, view, appLogger)
		a.bus.Register(projector)

		routerCfg.BalanceHandler = handler.NewBalanceHandler(projector, usecase.NewReconciliationUseCase(store, view))
		routerCfg.Idempotency = middleware.NewIdempotencyMiddleware(redisRepo.NewIdempotencyStore(client), cfg.IdempotencyTTL, log)
		checks = append(checks, handler.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
	} else {
		log.Warn().Msg("REDIS_URL is empty: idempotency and balance read model disabled")
	}

	if cfg.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		go limiter.RunCleanup(bgCtx, rateLimitCleanupInterval, rateLimitMaxIdle)
		routerCfg.RateLimiter = limiter
	}

	routerCfg.HealthHandler = handler.NewHealthHandler(checks...)
	a.handler = httpAdapter.NewRouter(routerCfg)

	return a, nil
}

func (a *app) openPostgres(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*postgresRepo.EventStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	defer cancel()

	pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	a.pool = pool
	a.log.Info().Msg("connected to postgres")

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pgRetrier := retry.New(retry.Config{
		Retryable: postgresRepo.IsRetryableError,
		Logger:    logger,
		Name:      "postgres",
	})
	return postgresRepo.NewEventStore(pool, pgRetrier), nil
}

// close stops the relay, drains the bus and releases connections.
func (a *app) close(ctx context.Context) error {
	a.cancel()
	if a.relay != nil {
		select {
		case <-a.relay:
		case <-ctx.Done():
		}
	}

	var errs []error
	if a.bus != nil {
		if err := a.bus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain event bus: %w", err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
