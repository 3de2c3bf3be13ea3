package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-governor/internal/audit"
	"github.com/xela07ax/spaceai-governor/internal/console/handler"
	"github.com/xela07ax/spaceai-governor/internal/console/server"
	"github.com/xela07ax/spaceai-governor/internal/console/service"
	"github.com/xela07ax/spaceai-governor/internal/dispatch"
	"github.com/xela07ax/spaceai-governor/internal/engine"
	"github.com/xela07ax/spaceai-governor/internal/guardrail"
	"github.com/xela07ax/spaceai-governor/internal/infra"
	"github.com/xela07ax/spaceai-governor/internal/repository/postgres"
	"github.com/xela07ax/spaceai-governor/internal/schedule"
)

// app граф зависимостей. Без БД или Redis собирается в деградированном режиме.
type app struct {
	cfg    *infra.Config
	logger *zap.Logger

	db  *sql.DB
	rdb *redis.Client

	registry *prometheus.Registry
	metrics  *engine.Metrics
	sink     *audit.Sink

	killSwitch *engine.KillSwitchManager
	trustCache *engine.TrustCache
	evaluator  *guardrail.Evaluator
	limits     *guardrail.LimitChecker
	dispatcher *dispatch.Dispatcher
	refresher  *schedule.Refresher
	tasks      *postgres.TaskRepo
	agents     *postgres.AgentRepo
	trust      *postgres.TrustRepo
	location   *time.Location
}

func newApp(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = engine.NewMetrics(a.registry)

	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, fmt.Errorf("schedule timezone: %w", err)
	}
	a.location = loc

	// 1. Инфраструктура и ресурсы
	if cfg.Database.URL != "" {
		a.db, err = postgres.Open(ctx, cfg.Database.URL, postgres.PoolOptions{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnectAttempts: cfg.Database.ConnectAttempts,
		}, logger)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("database.url is empty: audit is a no-op, hard limits and dispatch are disabled")
	}

	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		err = retry.New(
			retry.Context(ctx),
			retry.Attempts(5),
			retry.Delay(500*time.Millisecond),
			retry.OnRetry(func(n uint, err error) {
				logger.Warn("redis is not reachable yet", zap.Uint("attempt", n+1), zap.Error(err))
			}),
		).Do(func() error { return a.rdb.Ping(ctx).Err() })
		if err != nil {
			a.close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	} else {
		logger.Warn("redis.addr is empty: kill-switch and trust cache are local to this instance")
	}

	// 2. Хранилища. Интерфейсы остаются nil, если БД нет
	var (
		auditStore   audit.Storage
		counter      guardrail.ActiveTaskCounter
		pausedAgents engine.PausedAgentsProvider
		trustRepo    engine.TrustRepository
	)
	if a.db != nil {
		a.tasks = postgres.NewTaskRepo(a.db)
		a.agents = postgres.NewAgentRepo(a.db)
		a.trust = postgres.NewTrustRepo(a.db)
		auditStore = postgres.NewAuditRepo(a.db)
		counter = a.tasks
		pausedAgents = a.agents
		trustRepo = a.trust
		a.refresher = schedule.NewRefresher(postgres.NewMilestoneRepo(a.db), a.tasks, logger)
	}

	// 3. Control Plane
	a.sink = audit.NewSink(auditStore, logger, a.metrics, audit.Options{
		BufferSize:         cfg.Engine.AuditBufferSize,
		BatchSize:          cfg.Engine.AuditBatchSize,
		FlushInterval:      cfg.Engine.AuditFlushInterval,
		WriteTimeout:       cfg.Engine.AuditWriteTimeout,
		MaxToolOutputBytes: cfg.Engine.MaxToolOutputBytes,
	})
	a.killSwitch = engine.NewKillSwitchManager(a.rdb, pausedAgents, logger)
	a.trustCache = engine.NewTrustCache(trustRepo, a.rdb, logger)
	a.evaluator = guardrail.NewEvaluator(a.sink, a.metrics, logger)
	a.limits = guardrail.NewLimitChecker(counter, logger)

	// 4. Execution Layer (Исполнение + Надежность)
	if a.db != nil && cfg.Dispatch.ExecutorURL != "" {
		executor := dispatch.NewReliableExecutor(
			dispatch.NewHTTPExecutor(cfg.Dispatch.ExecutorURL, cfg.Dispatch.ExecutorTimeout),
			dispatch.BreakerSettings{
				MaxRequests:         cfg.Engine.CBMaxRequests,
				Interval:            cfg.Engine.CBInterval,
				Timeout:             cfg.Engine.CBTimeout,
				ConsecutiveFailures: cfg.Engine.CBConsecutiveFailures,
			}, a.metrics, logger)
		a.dispatcher = dispatch.NewDispatcher(a.tasks, a.agents, executor, a.killSwitch, a.sink, a.metrics, logger,
			dispatch.Options{TaskDelay: cfg.Dispatch.TaskDelay})
	} else if a.db != nil {
		logger.Warn("dispatch.executor_url is empty: task dispatch is disabled")
	}

	return a, nil
}

// start поднимает фоновые компоненты: аудит, kill-switch и слушателей Pub/Sub.
func (a *app) start(ctx context.Context) error {
	a.sink.Start()
	if err := a.killSwitch.Init(ctx); err != nil {
		return fmt.Errorf("failed to init kill-switch manager: %w", err)
	}
	go a.killSwitch.StartListener(ctx)
	go a.trustCache.StartListener(ctx)
	return nil
}

func (a *app) handlers() server.Handlers {
	agents := service.NewAgentService(nil, a.killSwitch, a.logger)
	trust := service.NewTrustService(nil, a.trustCache, a.logger)
	var (
		queue     handler.QueueProcessor
		tasks     handler.TaskTransitioner
		refresher handler.MilestoneRefresher
	)
	if a.db != nil {
		agents = service.NewAgentService(a.agents, a.killSwitch, a.logger)
		trust = service.NewTrustService(a.trust, a.trustCache, a.logger)
		tasks = a.tasks
		refresher = a.refresher
	}
	if a.dispatcher != nil {
		queue = a.dispatcher
	}

	return server.Handlers{
		Guardrails: handler.NewGuardrailHandler(a.evaluator, a.limits, trust),
		Trust:      handler.NewTrustHandler(trust),
		Dispatch:   handler.NewDispatchHandler(queue, tasks),
		Agents:     handler.NewAgentHandler(agents),
		Schedule:   handler.NewScheduleHandler(refresher, a.location),
		Audit:      handler.NewAuditHandler(a.sink),
	}
}

// close останавливает аудит (со сбросом буфера) и закрывает соединения.
func (a *app) close() {
	if a.sink != nil {
		a.sink.Stop()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("database close failed", zap.Error(err))
		}
	}
}
