package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/workstreamhq/taskforge/internal/domain"
	"github.com/workstreamhq/taskforge/internal/metrics"
	"github.com/workstreamhq/taskforge/internal/store"
)

// DefaultQueueName labels the queue in metrics and logs when no name is
// configured.
const DefaultQueueName = "taskforge"

// Purge modes recorded on the purge metric.
const (
	purgeModeAll       = "all"
	purgeModeAgeFilter = "age_filter"
)

// QueueConfig holds configuration options for a Queue.
type QueueConfig struct {
	// Name labels this queue in metrics and logs.
	// If empty, defaults to DefaultQueueName.
	Name string

	// DefaultMaxRetries is the retry budget applied to tasks enqueued
	// without an explicit one. Negative values fall back to
	// domain.DefaultMaxRetries; zero is honored and means the first
	// failure is terminal.
	DefaultMaxRetries int
}

// DefaultQueueConfig returns a QueueConfig with reasonable defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Name:              DefaultQueueName,
		DefaultMaxRetries: domain.DefaultMaxRetries,
	}
}

// Queue is the engine's library surface: producers enqueue tasks through
// it, operators manage dead letters, retry policies, and heartbeats through
// it, and the worker pool drains it. Construct one per process at startup
// and pass it by reference; there is no package-level instance.
type Queue struct {
	store             store.Store
	registry          *Registry
	metrics           *metrics.Metrics
	logger            *slog.Logger
	name              string
	defaultMaxRetries int
}

// NewQueue creates a Queue over the given store. The registry must not be
// nil; processes that only produce tasks still pass one (it stays empty).
func NewQueue(s store.Store, registry *Registry, m *metrics.Metrics, config QueueConfig, logger *slog.Logger) *Queue {
	name := config.Name
	if name == "" {
		name = DefaultQueueName
	}

	defaultMaxRetries := config.DefaultMaxRetries
	if defaultMaxRetries < 0 {
		defaultMaxRetries = domain.DefaultMaxRetries
	}

	return &Queue{
		store:             s,
		registry:          registry,
		metrics:           m,
		logger:            logger.With("component", "task_queue"),
		name:              name,
		defaultMaxRetries: defaultMaxRetries,
	}
}

// Name returns the label this queue reports under in metrics and logs.
func (q *Queue) Name() string {
	return q.name
}

// enqueueOptions collects the per-call Enqueue settings.
type enqueueOptions struct {
	args       []any
	kwargs     map[string]any
	maxRetries int
	metadata   map[string]any
	handler    Handler
}

// EnqueueOption customizes a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

// WithArgs sets the positional arguments passed to the handler.
func WithArgs(args ...any) EnqueueOption {
	return func(o *enqueueOptions) {
		o.args = args
	}
}

// WithKwargs sets the keyword arguments passed to the handler.
func WithKwargs(kwargs map[string]any) EnqueueOption {
	return func(o *enqueueOptions) {
		o.kwargs = kwargs
	}
}

// WithMaxRetries overrides the queue's default retry budget for this task.
func WithMaxRetries(n int) EnqueueOption {
	return func(o *enqueueOptions) {
		o.maxRetries = n
	}
}

// WithMetadata merges the given keys into the task metadata.
func WithMetadata(metadata map[string]any) EnqueueOption {
	return func(o *enqueueOptions) {
		if o.metadata == nil {
			o.metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			o.metadata[k] = v
		}
	}
}

// WithWorkflowID tags the task with the workflow that produced it. Triage
// groups recurring failures by this value, and dead-letter listings can
// filter on it.
func WithWorkflowID(id string) EnqueueOption {
	return func(o *enqueueOptions) {
		if o.metadata == nil {
			o.metadata = make(map[string]any, 1)
		}
		o.metadata[domain.MetadataWorkflowID] = id
	}
}

// WithHandler registers the handler for the task name as part of the
// enqueue call. Registration normally happens once at process startup;
// this keeps single-process setups to one call.
func WithHandler(handler Handler) EnqueueOption {
	return func(o *enqueueOptions) {
		o.handler = handler
	}
}

// Enqueue appends a task to the tail of the queue and returns its envelope.
// The arguments must serialize to JSON; a serialization failure returns
// before anything is stored.
func (q *Queue) Enqueue(ctx context.Context, name string, opts ...EnqueueOption) (*domain.TaskEnvelope, error) {
	options := enqueueOptions{maxRetries: q.defaultMaxRetries}
	for _, opt := range opts {
		opt(&options)
	}

	if options.handler != nil {
		if err := q.registry.Register(name, options.handler); err != nil {
			return nil, fmt.Errorf("failed to register handler: %w", err)
		}
	}

	env, err := domain.NewTaskEnvelope(name, options.args, options.kwargs, options.maxRetries, options.metadata)
	if err != nil {
		return nil, err
	}

	if err := q.store.Enqueue(ctx, env); err != nil {
		return nil, err
	}

	q.metrics.TaskEnqueued(q.name)
	q.logger.Info("task enqueued", "task_id", env.TaskID, "task_name", name)
	return env, nil
}

// Result retrieves the stored outcome of a successfully completed task.
// Returns an error wrapping store.ErrResultNotFound while the task is still
// queued, retrying, or dead-lettered.
func (q *Queue) Result(ctx context.Context, taskID string) (*domain.Result, error) {
	return q.store.GetResult(ctx, taskID)
}

// ListPending returns a snapshot of up to limit waiting envelopes in queue
// order without consuming them. A non-positive limit returns the whole
// queue.
func (q *Queue) ListPending(ctx context.Context, limit int) ([]domain.TaskEnvelope, error) {
	return q.store.ListPending(ctx, limit)
}

// Len reports the number of waiting envelopes.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.store.Len(ctx)
}

// DeadLetters returns one page of dead-letter records matching the filter
// plus the total match count, and refreshes the active-records gauge with
// that total.
func (q *Queue) DeadLetters(ctx context.Context, filter store.DeadLetterFilter) ([]domain.DeadLetter, int, error) {
	items, total, err := q.store.ListDeadLetters(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	q.metrics.DeadLettersActive(q.name, total)
	return items, total, nil
}

// DeadLetter retrieves a single dead-letter record by task ID.
// Returns an error wrapping store.ErrDeadLetterNotFound when absent.
func (q *Queue) DeadLetter(ctx context.Context, taskID string) (*domain.DeadLetter, error) {
	return q.store.GetDeadLetter(ctx, taskID)
}

// DeleteDeadLetter discards a single dead-letter record without requeueing
// it. Deleting an absent record is not an error. Single deletes do not
// appear in the audit trail.
func (q *Queue) DeleteDeadLetter(ctx context.Context, taskID string) error {
	return q.store.DeleteDeadLetter(ctx, taskID)
}

// RequeueDeadLetter moves a dead-lettered task back onto the queue: the
// record is cleared, the retry budget starts over, the last error is
// dropped, and the envelope is stamped with the requeue time. automatic
// tags the metric and audit trail with whether triage or an operator
// initiated the requeue.
func (q *Queue) RequeueDeadLetter(ctx context.Context, taskID string, automatic bool) (*domain.TaskEnvelope, error) {
	dl, err := q.store.GetDeadLetter(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := q.store.DeleteDeadLetter(ctx, taskID); err != nil {
		return nil, err
	}

	env := dl.TaskEnvelope
	env.ResetForRequeue(time.Now())

	if err := q.store.Enqueue(ctx, &env); err != nil {
		return nil, fmt.Errorf("failed to re-enqueue dead letter %s: %w", taskID, err)
	}

	q.metrics.TaskEnqueued(q.name)
	q.metrics.DeadLetterRequeued(q.name, dl.ErrorType, automatic)

	event := domain.AuditEventRequeued
	if automatic {
		event = domain.AuditEventAutoRequeued
	}
	q.appendAudit(ctx, event, taskID)

	q.logger.Info("dead letter requeued",
		"task_id", taskID,
		"task_name", env.Name,
		"error_type", dl.ErrorType,
		"automatic", automatic)
	return &env, nil
}

// PurgeDeadLetters removes every dead-letter record and reports how many
// were removed.
func (q *Queue) PurgeDeadLetters(ctx context.Context) (int, error) {
	count, err := q.store.PurgeDeadLetters(ctx)
	if err != nil {
		return 0, err
	}

	q.finishPurge(ctx, purgeModeAll, count)
	return count, nil
}

// PurgeDeadLettersOlderThan removes dead-letter records recorded at least
// age ago and reports how many were removed.
func (q *Queue) PurgeDeadLettersOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-age)
	count, err := q.store.PurgeDeadLettersBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	q.finishPurge(ctx, purgeModeAgeFilter, count)
	return count, nil
}

// AuditTrail returns up to limit dead-letter audit entries, newest first.
func (q *Queue) AuditTrail(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return q.store.ListAudit(ctx, limit)
}

// RetryPolicy returns the retry policy stored for a task name.
// Returns an error wrapping store.ErrRetryPolicyNotFound when none is set.
func (q *Queue) RetryPolicy(ctx context.Context, taskName string) (*domain.RetryPolicy, error) {
	return q.store.GetRetryPolicy(ctx, taskName)
}

// SetRetryPolicy stores the retry policy for a task name, replacing any
// existing one. Workers look policies up fresh on every pop, so the change
// applies queue-wide within one poll cycle. Setting a nil policy removes
// the existing one.
func (q *Queue) SetRetryPolicy(ctx context.Context, taskName string, policy *domain.RetryPolicy) error {
	if err := q.store.SetRetryPolicy(ctx, taskName, policy); err != nil {
		return err
	}

	q.logger.Info("retry policy set", "task_name", taskName)
	return nil
}

// DeleteRetryPolicy removes the retry policy for a task name. Deleting a
// missing policy is not an error.
func (q *Queue) DeleteRetryPolicy(ctx context.Context, taskName string) error {
	if err := q.store.DeleteRetryPolicy(ctx, taskName); err != nil {
		return err
	}

	q.logger.Info("retry policy deleted", "task_name", taskName)
	return nil
}

// RetryPolicies returns all stored retry policies keyed by task name.
func (q *Queue) RetryPolicies(ctx context.Context) (map[string]domain.RetryPolicy, error) {
	return q.store.ListRetryPolicies(ctx)
}

// WorkerHeartbeats returns the live worker heartbeats keyed by worker ID.
// An absent worker either never completed a task or has not completed one
// within the heartbeat TTL.
func (q *Queue) WorkerHeartbeats(ctx context.Context) (map[string]domain.Heartbeat, error) {
	return q.store.ListHeartbeats(ctx)
}

// policyFor looks up the retry policy for a task name, returning nil when
// none is set. Lookup failures degrade to queue defaults rather than
// blocking the task.
func (q *Queue) policyFor(ctx context.Context, taskName string) *domain.RetryPolicy {
	policy, err := q.store.GetRetryPolicy(ctx, taskName)
	if err != nil {
		if !store.IsNotFoundError(err) {
			q.logger.Error("failed to load retry policy", "task_name", taskName, "error", err)
		}
		return nil
	}
	return policy
}

// appendAudit writes one line to the audit trail. Audit failures are logged
// and never block the change they describe; the trail is a diagnostic
// stream, not a source of truth.
func (q *Queue) appendAudit(ctx context.Context, event domain.AuditEvent, taskID string) {
	entry, err := domain.NewAuditEntry(event, taskID)
	if err != nil {
		q.logger.Error("failed to build audit entry", "event", event, "task_id", taskID, "error", err)
		return
	}

	if err := q.store.AppendAudit(ctx, entry); err != nil {
		q.logger.Error("failed to append audit entry", "event", event, "task_id", taskID, "error", err)
	}
}

// finishPurge records the purge metric, refreshes the active gauge from the
// surviving records, and appends the aggregate audit line.
func (q *Queue) finishPurge(ctx context.Context, mode string, count int) {
	q.metrics.DeadLetterPurged(q.name, mode, count)

	if remaining, err := q.store.CountDeadLetters(ctx); err == nil {
		q.metrics.DeadLettersActive(q.name, remaining)
	}

	if err := q.store.AppendAudit(ctx, domain.NewPurgeAuditEntry(count)); err != nil {
		q.logger.Error("failed to append audit entry", "event", domain.AuditEventPurged, "error", err)
	}

	q.logger.Info("dead letters purged", "mode", mode, "count", count)
}
