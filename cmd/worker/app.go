package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/workstreamhq/taskforge/internal/config"
	"github.com/workstreamhq/taskforge/internal/events"
	"github.com/workstreamhq/taskforge/internal/metrics"
	"github.com/workstreamhq/taskforge/internal/platform/memstore"
	"github.com/workstreamhq/taskforge/internal/platform/notify"
	"github.com/workstreamhq/taskforge/internal/platform/redisstore"
	"github.com/workstreamhq/taskforge/internal/store"
	"github.com/workstreamhq/taskforge/internal/task"
	"github.com/workstreamhq/taskforge/internal/triage"
)

// application wires every component of the worker daemon together.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Observability
	promRegistry *prometheus.Registry
	metrics      *metrics.Metrics

	// Storage
	store store.Store

	// Task handling
	tasks   *task.Registry
	queue   *task.Queue
	emitter *events.InMemoryEventEmitter
	triager *triage.Triager
	pool    *task.WorkerPool
}

// newApplication creates an application instance with all dependencies
// initialized. The context bounds slow external setup such as the redis
// connection check.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	app.promRegistry = prometheus.NewRegistry()
	app.promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.promRegistry)

	if err := app.setupStore(ctx); err != nil {
		return nil, err
	}

	app.tasks = task.NewRegistry()
	if err := registerBuiltinTasks(app.tasks); err != nil {
		return nil, fmt.Errorf("failed to register built-in tasks: %w", err)
	}

	app.queue = task.NewQueue(app.store, app.tasks, app.metrics, task.QueueConfig{
		Name:              cfg.Queue.Name,
		DefaultMaxRetries: cfg.Queue.MaxRetries,
	}, logger)

	app.emitter = events.NewInMemoryEventEmitter(logger)

	playbook := app.buildPlaybook()
	app.triager = triage.NewTriager(app.queue, playbook, app.metrics, triage.TriagerConfig{
		AutoRequeueErrorTypes: cfg.Triage.AutoRequeueErrorTypes,
		MaxAutoRequeues:       cfg.Triage.MaxAutoRequeues,
		AlertThreshold:        cfg.Triage.AlertThreshold,
		AlertWindow:           cfg.Triage.AlertWindow,
		AlertCooldown:         cfg.Triage.AlertCooldown,
	}, logger)
	app.emitter.RegisterHandler(app.triager)

	app.pool = task.NewWorkerPool(app.queue, app.tasks, app.emitter, task.WorkerPoolConfig{
		WorkerCount:    cfg.Worker.Count,
		PollInterval:   cfg.Worker.PollInterval,
		DefaultTimeout: cfg.Worker.DefaultTimeout,
		BackoffBase:    cfg.Worker.BackoffBase,
		BackoffMax:     cfg.Worker.BackoffMax,
		HeartbeatTTL:   cfg.Worker.HeartbeatTTL,
	}, logger)

	logger.Info("application initialized",
		"queue", cfg.Queue.Name,
		"backend", cfg.Store.Backend,
		"playbook", playbook.Name())
	return app, nil
}

// setupStore builds the configured storage backend.
func (app *application) setupStore(ctx context.Context) error {
	switch app.config.Store.Backend {
	case "redis":
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		client, err := redisstore.Connect(connectCtx, app.config.Store.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to set up redis store: %w", err)
		}

		app.store = redisstore.New(client, app.config.Store.Namespace, app.config.Queue.AuditMaxEntries)
		app.logger.Info("redis store connected",
			"addr", client.Options().Addr,
			"db", client.Options().DB)
	default:
		app.store = memstore.New(app.config.Queue.AuditMaxEntries)
		app.logger.Info("in-memory store initialized")
	}

	return nil
}

// registerBuiltinTasks adds the handlers every deployment gets. Real
// deployments register their own handlers here before the pool starts.
func registerBuiltinTasks(registry *task.Registry) error {
	return registry.Register("noop", func(_ context.Context, _ []any, _ map[string]any) (any, error) {
		return "ok", nil
	})
}

// buildPlaybook maps the configured playbook name to an implementation.
// Unknown names fall back to log_only with a warning so alerting keeps
// working on stale configuration.
func (app *application) buildPlaybook() triage.Playbook {
	cfg := app.config
	switch cfg.Triage.Playbook {
	case triage.PlaybookNotifySlack:
		client := notify.NewSlackClient(cfg.Notify.SlackToken)
		return triage.NewSlackPlaybook(client, cfg.Notify.SlackChannel, cfg.Triage.DryRun, app.logger)
	case triage.PlaybookWebhook:
		return triage.NewWebhookPlaybook(notify.NewWebhookClient(), cfg.Notify.WebhookURL, cfg.Triage.DryRun, app.logger)
	case triage.PlaybookNotifyPagerDuty:
		client := notify.NewPagerDutyClient(cfg.Notify.PagerDutyRoutingKey)
		return triage.NewPagerDutyPlaybook(client, cfg.Triage.DryRun, app.logger)
	case triage.PlaybookLogOnly:
		return triage.NewLogOnlyPlaybook(app.logger)
	default:
		app.logger.Warn("unknown playbook configured, falling back to log_only",
			"playbook", cfg.Triage.Playbook)
		return triage.NewLogOnlyPlaybook(app.logger)
	}
}

// Run starts the worker pool and serves the operational endpoints until a
// shutdown signal arrives or the context is canceled.
func (app *application) Run(ctx context.Context) error {
	app.pool.Start()

	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.pool != nil {
		app.pool.Stop()
	}

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Error("error closing store", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
