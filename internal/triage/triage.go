package triage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/workstreamhq/taskforge/internal/events"
	"github.com/workstreamhq/taskforge/internal/metrics"
	"github.com/workstreamhq/taskforge/internal/task"
)

// TriagerConfig controls automatic requeue and alerting behavior.
type TriagerConfig struct {
	// AutoRequeueErrorTypes lists the error types eligible for automatic
	// requeue. An empty list disables auto-requeue entirely.
	AutoRequeueErrorTypes []string

	// MaxAutoRequeues caps automatic requeues per error type and triage
	// identifier. Zero disables auto-requeue for whitelisted types too;
	// negative values fall back to the default of 3.
	MaxAutoRequeues int

	// AlertThreshold is the number of dead letters for one failure key
	// within AlertWindow that triggers the playbook. Defaults to 5.
	AlertThreshold int

	// AlertWindow is the sliding window failures are counted in.
	// Defaults to 5 minutes.
	AlertWindow time.Duration

	// AlertCooldown is the minimum gap between alerts for the same error
	// type. Defaults to 10 minutes.
	AlertCooldown time.Duration
}

// DefaultTriagerConfig returns the default triage settings.
func DefaultTriagerConfig() TriagerConfig {
	return TriagerConfig{
		AutoRequeueErrorTypes: nil,
		MaxAutoRequeues:       3,
		AlertThreshold:        5,
		AlertWindow:           5 * time.Minute,
		AlertCooldown:         10 * time.Minute,
	}
}

// Triager reacts to dead-letter events: it requeues whitelisted transient
// failures up to a budget and runs the alert playbook when an error type
// crosses the dead-letter threshold inside the sliding window.
//
// Requeue counters, failure windows, and alert cooldowns live in process
// memory. In a multi-process deployment each process tracks only the
// failures it dead-letters itself, so thresholds are evaluated against a
// share of the total traffic.
//
// It implements events.EventHandler and always returns nil; triage failures
// are logged and must never disturb task processing.
type Triager struct {
	queue    *task.Queue
	playbook Playbook
	metrics  *metrics.Metrics
	config   TriagerConfig
	logger   *slog.Logger

	autoRequeue map[string]struct{}
	window      *failureWindow

	mu            sync.Mutex
	requeueCounts map[failureKey]int
	lastAlert     map[string]time.Time
	now           func() time.Time
}

// NewTriager creates a triager acting on the given queue. The playbook and
// metrics must not be nil; use LogOnlyPlaybook when no alert channel is
// configured. Invalid config values are replaced with defaults.
func NewTriager(queue *task.Queue, playbook Playbook, m *metrics.Metrics, config TriagerConfig, logger *slog.Logger) *Triager {
	defaults := DefaultTriagerConfig()
	if config.MaxAutoRequeues < 0 {
		config.MaxAutoRequeues = defaults.MaxAutoRequeues
	}
	if config.AlertThreshold <= 0 {
		config.AlertThreshold = defaults.AlertThreshold
	}
	if config.AlertWindow <= 0 {
		config.AlertWindow = defaults.AlertWindow
	}
	if config.AlertCooldown <= 0 {
		config.AlertCooldown = defaults.AlertCooldown
	}

	autoRequeue := make(map[string]struct{}, len(config.AutoRequeueErrorTypes))
	for _, errorType := range config.AutoRequeueErrorTypes {
		autoRequeue[errorType] = struct{}{}
	}

	return &Triager{
		queue:         queue,
		playbook:      playbook,
		metrics:       m,
		config:        config,
		logger:        logger.With("component", "triage"),
		autoRequeue:   autoRequeue,
		window:        newFailureWindow(config.AlertWindow),
		requeueCounts: make(map[failureKey]int),
		lastAlert:     make(map[string]time.Time),
		now:           time.Now,
	}
}

// HandleEvent implements events.EventHandler.
func (t *Triager) HandleEvent(ctx context.Context, event *events.DeadLetterEvent) error {
	dl := event.DeadLetter
	key := failureKey{ErrorType: dl.ErrorType, Identifier: dl.TriageIdentifier()}
	logger := t.logger.With(
		"queue", event.Queue,
		"task_id", dl.TaskID,
		"task_name", dl.Name,
		"error_type", dl.ErrorType)

	t.maybeAutoRequeue(ctx, logger, key, dl.TaskID)

	if t.window.Record(key, t.config.AlertThreshold) {
		t.maybeAlert(ctx, logger, event)
	}

	return nil
}

// maybeAutoRequeue puts a whitelisted failure back on the queue unless its
// requeue budget is spent. The count is held under the lock across the
// check and the store round-trip so concurrent events cannot overshoot the
// budget.
func (t *Triager) maybeAutoRequeue(ctx context.Context, logger *slog.Logger, key failureKey, taskID string) {
	if _, ok := t.autoRequeue[key.ErrorType]; !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	count := t.requeueCounts[key]
	if count >= t.config.MaxAutoRequeues {
		logger.Warn("auto-requeue budget exhausted, leaving dead letter in place",
			"requeue_count", count,
			"max_auto_requeues", t.config.MaxAutoRequeues)
		return
	}

	if _, err := t.queue.RequeueDeadLetter(ctx, taskID, true); err != nil {
		logger.Error("failed to auto-requeue dead letter", "error", err)
		return
	}

	t.requeueCounts[key] = count + 1
	logger.Info("dead letter auto-requeued",
		"requeue_count", count+1,
		"max_auto_requeues", t.config.MaxAutoRequeues)
}

// maybeAlert runs the playbook unless the error type is still cooling down.
// The cooldown is marked before dispatch; a failing playbook consumes it.
func (t *Triager) maybeAlert(ctx context.Context, logger *slog.Logger, event *events.DeadLetterEvent) {
	dl := event.DeadLetter

	t.mu.Lock()
	now := t.now()
	if last, ok := t.lastAlert[dl.ErrorType]; ok && now.Sub(last) < t.config.AlertCooldown {
		t.mu.Unlock()
		logger.Debug("alert suppressed by cooldown", "last_alert", last)
		return
	}
	t.lastAlert[dl.ErrorType] = now
	t.mu.Unlock()

	t.metrics.AlertSent(event.Queue, dl.ErrorType)

	logger.Warn("dead-letter threshold exceeded, running playbook",
		"playbook", t.playbook.Name(),
		"threshold", t.config.AlertThreshold,
		"window", t.config.AlertWindow)

	alert := Alert{
		Queue:     event.Queue,
		ErrorType: dl.ErrorType,
		TaskName:  dl.Name,
		TaskID:    dl.TaskID,
		Metadata:  dl.Metadata,
	}
	if err := t.playbook.Execute(ctx, alert); err != nil {
		logger.Error("playbook execution failed",
			"playbook", t.playbook.Name(),
			"error", err)
	}
}
