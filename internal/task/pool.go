package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/workstreamhq/taskforge/internal/domain"
	"github.com/workstreamhq/taskforge/internal/events"
	"github.com/workstreamhq/taskforge/internal/store"
)

// WorkerPoolConfig holds configuration options for the worker pool.
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent poller goroutines to start.
	// If zero or negative, defaults to 1.
	WorkerCount int

	// PollInterval is how long a poller sleeps after finding the queue
	// empty. If zero or negative, defaults to 100ms.
	PollInterval time.Duration

	// DefaultTimeout bounds a single task attempt when the task's retry
	// policy sets no timeout. If zero or negative, defaults to 5 minutes.
	DefaultTimeout time.Duration

	// BackoffBase is the exponential backoff base applied between retries
	// when the retry policy sets none. If not greater than zero, defaults
	// to 2.
	BackoffBase float64

	// BackoffMax caps the backoff delay when the retry policy sets no cap.
	// If zero or negative, defaults to 60 seconds.
	BackoffMax time.Duration

	// HeartbeatTTL is how long a worker's heartbeat stays visible after a
	// completed task. If zero or negative, defaults to 5 minutes.
	HeartbeatTTL time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable
// defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:    5,
		PollInterval:   100 * time.Millisecond,
		DefaultTimeout: 5 * time.Minute,
		BackoffBase:    2.0,
		BackoffMax:     60 * time.Second,
		HeartbeatTTL:   5 * time.Minute,
	}
}

// WorkerPool manages a pool of poller goroutines that drain the queue and
// execute tasks. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	// queue provides store access, metrics, and the queue name
	queue *Queue

	// registry resolves task names to handlers
	registry *Registry

	// emitter publishes dead-letter events for triage; may be nil
	emitter events.EventEmitter

	// config holds the normalized pool settings
	config WorkerPoolConfig

	// logger for structured logging
	logger *slog.Logger

	// id prefixes every worker ID so heartbeats distinguish pool restarts
	id string

	// ctx is used for cancellation and shutdown signaling
	ctx context.Context

	// cancel is the function to call to cancel the context
	cancel context.CancelFunc

	// wg tracks active poller goroutines for clean shutdown
	wg sync.WaitGroup
}

// NewWorkerPool creates a new worker pool with the specified configuration.
// The emitter may be nil when no triage is attached.
func NewWorkerPool(queue *Queue, registry *Registry, emitter events.EventEmitter, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	// Apply defaults for invalid config values
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 5 * time.Minute
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = 2.0
	}
	if config.BackoffMax <= 0 {
		config.BackoffMax = 60 * time.Second
	}
	if config.HeartbeatTTL <= 0 {
		config.HeartbeatTTL = 5 * time.Minute
	}

	// Create a cancelable context for shutdown coordination
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:    queue,
		registry: registry,
		emitter:  emitter,
		config:   config,
		logger:   logger.With("component", "worker_pool"),
		id:       uuid.New().String()[:8],
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the poller goroutines.
func (p *WorkerPool) Start() {
	p.logger.Info("starting worker pool",
		"worker_count", p.config.WorkerCount,
		"poll_interval", p.config.PollInterval,
		"registered_tasks", p.registry.Names())

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
}

// Stop cancels all pollers and awaits their completion. A task mid-execution
// is allowed to finish its attempt; a task mid-backoff is re-enqueued
// without further waiting. Stop is safe to call once Start has returned.
func (p *WorkerPool) Stop() {
	p.logger.Info("stopping worker pool")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// runWorker is one poller loop: pop, execute, settle, repeat until the pool
// shuts down.
func (p *WorkerPool) runWorker(index int) {
	defer p.wg.Done()

	workerID := fmt.Sprintf("%s-%d", p.id, index)
	logger := p.logger.With("worker_id", workerID)
	logger.Debug("starting worker")

	for {
		env, err := p.queue.store.Pop(p.ctx)
		switch {
		case err != nil && errors.Is(err, context.Canceled):
			logger.Debug("stopping worker")
			return

		case err != nil && errors.Is(err, store.ErrQueueEmpty):
			if !p.sleep(p.config.PollInterval) {
				logger.Debug("stopping worker")
				return
			}
			continue

		case err != nil:
			// A payload that cannot be decoded is logged and skipped; it
			// was already consumed from the queue.
			logger.Error("failed to pop task", "error", err)
			if !p.sleep(p.config.PollInterval) {
				logger.Debug("stopping worker")
				return
			}
			continue
		}

		p.processTask(workerID, logger, env)

		select {
		case <-p.ctx.Done():
			logger.Debug("stopping worker")
			return
		default:
		}
	}
}

// processTask handles one popped envelope end to end: resolve, execute
// under the effective policy, then settle the outcome.
func (p *WorkerPool) processTask(workerID string, logger *slog.Logger, env *domain.TaskEnvelope) {
	logger = logger.With("task_id", env.TaskID, "task_name", env.Name)

	handler, err := p.registry.Resolve(env.Name)
	if err != nil {
		logger.Error("no registered task callable", "error", err)
		p.recordMissingHandler(workerID, logger, env)
		return
	}

	// Policies are looked up fresh on every pop so operator changes apply
	// within one poll cycle.
	policy := p.queue.policyFor(p.ctx, env.Name)
	timeout := policy.EffectiveTimeout(p.config.DefaultTimeout)
	maxRetries := policy.EffectiveMaxRetries(env.MaxRetries)
	backoffBase := policy.EffectiveBackoffBase(p.config.BackoffBase)
	backoffMax := policy.EffectiveBackoffMax(p.config.BackoffMax)

	logger.Info("processing task", "attempt", env.RetryCount+1, "timeout", timeout)

	start := time.Now()
	value, execErr := p.execute(handler, env, timeout)
	latency := time.Since(start).Seconds()

	// Settlement writes descend from Background, not the pool context, so
	// shutdown never corrupts an outcome that already happened.
	ctx := context.Background()

	if execErr != nil {
		p.settleFailure(ctx, workerID, logger, env, execErr, maxRetries, backoffBase, backoffMax, latency)
		return
	}

	if err := p.queue.store.SetResult(ctx, env.TaskID, domain.NewCompletedResult(value)); err != nil {
		logger.Error("failed to persist task result", "error", err)
	}

	p.queue.metrics.TaskCompleted(p.queue.name, string(domain.TaskStatusCompleted))
	p.queue.metrics.TaskLatency(p.queue.name, latency)
	p.writeHeartbeat(ctx, workerID, logger, env)

	logger.Info("task completed", "duration_seconds", latency)
}

// execute runs one handler attempt under the effective timeout. The
// execution context descends from Background rather than the pool context,
// so a stopping pool lets the attempt finish. On deadline expiry the
// attempt is settled immediately; the handler goroutine lingers until it
// observes the context, and the buffered channel lets it exit unread.
func (p *WorkerPool) execute(handler Handler, env *domain.TaskEnvelope, timeout time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type attempt struct {
		value any
		err   error
	}

	done := make(chan attempt, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- attempt{err: &PanicError{Value: v, Stack: debug.Stack()}}
			}
		}()

		value, err := handler(ctx, env.Args, env.Kwargs)
		done <- attempt{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("task execution exceeded timeout of %s: %w", timeout, context.DeadlineExceeded)
	}
}

// settleFailure applies the retry policy to a failed attempt: re-enqueue
// with backoff while budget remains, dead-letter once it is spent.
func (p *WorkerPool) settleFailure(ctx context.Context, workerID string, logger *slog.Logger, env *domain.TaskEnvelope, execErr error, maxRetries int, backoffBase float64, backoffMax time.Duration, latency float64) {
	env.LastError = execErr.Error()

	if env.RetryCount < maxRetries {
		env.RetryCount++
		delay := BackoffDelay(backoffBase, env.RetryCount, backoffMax)

		logger.Error("task failed, scheduling retry",
			"error", execErr,
			"retry_count", env.RetryCount,
			"max_retries", maxRetries,
			"backoff", delay)

		// A pool stop cuts the backoff short; the task is re-enqueued
		// either way so it is never dropped.
		p.sleep(delay)

		if err := p.queue.store.Enqueue(ctx, env); err != nil {
			logger.Error("failed to re-enqueue task for retry", "error", err)
		}
		return
	}

	errorType := ClassifyError(execErr)
	logger.Error("task permanently failed",
		"error", execErr,
		"error_type", errorType,
		"retry_count", env.RetryCount)

	dl, err := domain.NewDeadLetter(*env, errorType, execErr.Error(), stackTraceOf(execErr), workerID)
	if err != nil {
		logger.Error("failed to build dead-letter record", "error", err)
		return
	}

	if !p.recordDeadLetter(ctx, logger, dl) {
		return
	}
	p.queue.metrics.TaskLatency(p.queue.name, latency)

	if p.emitter != nil {
		if err := p.emitter.EmitEvent(ctx, events.NewDeadLetterEvent(p.queue.name, *dl)); err != nil {
			logger.Error("dead-letter event handling failed", "error", err)
		}
	}
}

// recordMissingHandler dead-letters a task whose name has no registered
// handler. The task is never retried and never handed to triage.
func (p *WorkerPool) recordMissingHandler(workerID string, logger *slog.Logger, env *domain.TaskEnvelope) {
	message := fmt.Sprintf("task callable not registered: %s", env.Name)
	dl, err := domain.NewDeadLetter(*env, ErrorTypeMissingCallable, message, "", workerID)
	if err != nil {
		logger.Error("failed to build dead-letter record", "error", err)
		return
	}

	p.recordDeadLetter(context.Background(), logger, dl)
}

// recordDeadLetter persists the record, appends the audit line, and counts
// the terminal failure. Reports whether the record was stored.
func (p *WorkerPool) recordDeadLetter(ctx context.Context, logger *slog.Logger, dl *domain.DeadLetter) bool {
	if err := p.queue.store.RecordDeadLetter(ctx, dl); err != nil {
		logger.Error("failed to record dead letter", "error", err)
		return false
	}

	p.queue.appendAudit(ctx, domain.AuditEventRecorded, dl.TaskID)
	p.queue.metrics.DeadLetterRecorded(p.queue.name, dl.ErrorType)
	p.queue.metrics.TaskCompleted(p.queue.name, string(domain.TaskStatusFailed))
	return true
}

// writeHeartbeat records the worker's liveness after a completed task.
func (p *WorkerPool) writeHeartbeat(ctx context.Context, workerID string, logger *slog.Logger, env *domain.TaskEnvelope) {
	hb, err := domain.NewHeartbeat(workerID, env.TaskID, env.Name)
	if err != nil {
		logger.Error("failed to build heartbeat", "error", err)
		return
	}

	if err := p.queue.store.WriteHeartbeat(ctx, workerID, hb, p.config.HeartbeatTTL); err != nil {
		logger.Error("failed to write heartbeat", "error", err)
	}
}

// sleep waits for d or until the pool begins shutting down, whichever comes
// first. Reports whether the pool is still running.
func (p *WorkerPool) sleep(d time.Duration) bool {
	if d <= 0 {
		return p.ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-p.ctx.Done():
		return false
	}
}
