// Package app wires every subsystem together into the running control
// plane process: configuration, logging, metrics, the policy registry and
// engine, the cooldown/circuit-breaker state, the remediation queue, the
// action repository, the metric store, the remediator client, the worker
// pool, the periodic runner, and the debug HTTP server. cmd/appserver is a
// thin main() over this package.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/kestrelops/kestrel/internal/actions"
	"github.com/kestrelops/kestrel/internal/breaker"
	"github.com/kestrelops/kestrel/internal/config"
	"github.com/kestrelops/kestrel/internal/cooldown"
	"github.com/kestrelops/kestrel/internal/httpapi"
	"github.com/kestrelops/kestrel/internal/ingest"
	"github.com/kestrelops/kestrel/internal/metricstore"
	"github.com/kestrelops/kestrel/internal/policy"
	"github.com/kestrelops/kestrel/internal/queue"
	"github.com/kestrelops/kestrel/internal/ratelimit"
	"github.com/kestrelops/kestrel/internal/remediator"
	"github.com/kestrelops/kestrel/internal/resilience"
	"github.com/kestrelops/kestrel/internal/runner"
	"github.com/kestrelops/kestrel/internal/worker"
	"github.com/kestrelops/kestrel/pkg/logger"
	"github.com/kestrelops/kestrel/pkg/metrics"
)

// migrationsDir holds the goose-numbered SQL migrations applied against
// database_url at startup, relative to the process working directory.
const migrationsDir = "migrations"

// App owns every long-lived collaborator and their lifecycle.
type App struct {
	cfg *config.Config
	log *logger.Logger

	db *sqlx.DB

	registry *policy.Registry
	engine   *policy.Engine

	queue       queue.Queue
	actionsRepo actions.Repository
	metricStore metricstore.Repository

	producer *ingest.Producer
	pool     *worker.Pool
	run      *runner.Runner

	debugServer *http.Server

	closers []func() error
}

// New constructs every collaborator from cfg but does not start any
// goroutines or listeners; call Start for that.
func New(cfg *config.Config) (*App, error) {
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "text", Output: "stdout"})

	registry := policy.NewRegistry()
	cd := cooldown.New()
	engine := policy.NewEngine(registry, cd)
	br := breaker.New(breaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Window:           cfg.BreakerWindow(),
		Cooldown:         cfg.BreakerCooldown(),
	})

	a := &App{cfg: cfg, log: log, registry: registry, engine: engine}

	if cfg.DatabaseURL != "" {
		db, err := openPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := migratePostgres(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
	}

	q, err := a.buildQueue(cfg)
	if err != nil {
		return nil, fmt.Errorf("build queue: %w", err)
	}
	a.queue = q

	actionsRepo, err := a.buildActionsRepo(cfg)
	if err != nil {
		return nil, fmt.Errorf("build action repository: %w", err)
	}
	a.actionsRepo = actionsRepo

	metricStore, err := a.buildMetricStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("build metric store: %w", err)
	}
	a.metricStore = metricStore

	limiter := ratelimit.New(ratelimit.Config{
		PerSecond: cfg.IngestRateLimitPerSecond,
		Burst:     cfg.IngestRateLimitBurst,
	})
	a.producer = ingest.New(metricStore, engine, actionsRepo, q, limiter, metrics.Prom{}, log)

	client := remediator.New(cfg.RemediatorURL, cfg.ExecutionTimeout())
	a.pool = worker.New(worker.Config{
		MaxConcurrent:    cfg.MaxConcurrentWorkers,
		QueuePollTimeout: cfg.QueuePollTimeout(),
		ExecutionTimeout: cfg.ExecutionTimeout(),
		Backoff: resilience.BackoffConfig{
			MaxAttempts:     cfg.RetryMaxAttempts,
			BaseDelay:       cfg.RetryBaseDelay(),
			MaxDelay:        cfg.RetryMaxDelay(),
			ExponentialBase: cfg.RetryExponentialBase,
			JitterFraction:  0.2,
		},
	}, q, actionsRepo, br, client, metrics.Prom{}, log)

	a.run = runner.New(runner.Config{
		Enabled:   cfg.RunnerEnabled,
		Interval:  cfg.RunnerInterval(),
		BatchSize: cfg.RunnerBatchSize,
	}, metricStore, engine, a.producer, log)

	a.debugServer = httpapi.New(
		httpapi.Config{Addr: cfg.HTTPAddr, RequestTimeout: 5 * time.Second},
		metrics.Registry,
		log,
		metrics.Prom{},
		httpapi.Dependency{Name: "queue", Check: func() error {
			_, err := q.Length(context.Background())
			return err
		}},
	)

	return a, nil
}

// Ingest is the entry point for newly arriving metric samples, delegated
// straight to the ingest producer.
func (a *App) Ingest(ctx context.Context, sample metricstore.Sample) error {
	return a.producer.Ingest(ctx, sample)
}

// Registry exposes the policy registry for reload/administration.
func (a *App) Registry() *policy.Registry { return a.registry }

// LoadPolicies reads a declarative policy document from path and swaps it
// into the registry. A path pointing at a file that does not exist is
// treated as "start with no policies configured" rather than an error.
func (a *App) LoadPolicies(path string) error {
	return policy.LoadSourceInto(a.registry, path)
}

// Start launches the worker pool, the periodic runner, and the debug HTTP
// server. It returns immediately; use Stop for graceful shutdown.
func (a *App) Start(ctx context.Context) {
	a.pool.Start(ctx)
	a.run.Start(ctx)

	go func() {
		a.log.WithField("addr", a.debugServer.Addr).Info("debug server listening")
		if err := a.debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.WithError(err).Error("debug server stopped unexpectedly")
		}
	}()
}

// Stop drains in-flight work and closes every collaborator. It waits at
// most cfg.ShutdownTimeoutSeconds for in-flight dispatches to reach a
// terminal state: envelopes not yet claimed by the time the timeout
// elapses are simply left on the queue for the next process to pick up.
func (a *App) Stop(ctx context.Context) {
	timeout := a.cfg.ShutdownTimeout()

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	_ = httpapi.Shutdown(shutdownCtx, a.debugServer, timeout)
	cancel()

	a.run.Stop()

	if !a.pool.Wait(timeout) {
		a.log.Warn("shutdown timeout elapsed with workers still in flight")
	}

	for _, closer := range a.closers {
		if err := closer(); err != nil {
			a.log.WithError(err).Warn("error closing a resource during shutdown")
		}
	}
}

func (a *App) buildQueue(cfg *config.Config) (queue.Queue, error) {
	if cfg.QueueURL == "" {
		a.log.Warn("queue_url not set, using in-memory queue (not durable across restarts)")
		return queue.NewMemory(), nil
	}
	opts, err := redis.ParseURL(cfg.QueueURL)
	if err != nil {
		return nil, fmt.Errorf("parse queue_url: %w", err)
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, client.Close)
	return queue.NewRedis(client), nil
}

func (a *App) buildActionsRepo(cfg *config.Config) (actions.Repository, error) {
	if a.db == nil {
		a.log.Warn("database_url not set, using in-memory action repository (not durable across restarts)")
		return actions.NewMemory(), nil
	}
	return actions.NewPostgres(a.db), nil
}

func (a *App) buildMetricStore(cfg *config.Config) (metricstore.Repository, error) {
	if a.db == nil {
		return metricstore.NewMemory(), nil
	}
	return metricstore.NewPostgres(a.db, 5*time.Second), nil
}

func openPostgres(dsn string) (*sqlx.DB, error) {
	rawDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := rawDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return sqlx.NewDb(rawDB, "postgres"), nil
}

// migratePostgres applies every pending migration under migrationsDir
// in-process, so the schema is current before any repository built on db
// serves a request.
func migratePostgres(db *sqlx.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db.DB, migrationsDir)
}
