package store

import (
	"context"
	"sort"
	"time"

	"github.com/workstreamhq/taskforge/internal/domain"
)

// DefaultDeadLetterLimit is the page size applied when a DeadLetterFilter
// does not set one.
const DefaultDeadLetterLimit = 100

// DefaultAuditMaxEntries is the audit-trail cap applied when a backend is
// constructed without one.
const DefaultAuditMaxEntries = 1000

// DeadLetterFilter narrows and pages a dead-letter listing. Matching is a
// full scan over the stored records: acceptable at dead-letter volumes,
// which are expected to stay small.
type DeadLetterFilter struct {
	// WorkflowID, when set, keeps only tasks whose metadata carries this
	// workflow identifier.
	WorkflowID string

	// ErrorType, when set, keeps only records with this failure class.
	ErrorType string

	// Limit caps the returned page. Zero or negative means
	// DefaultDeadLetterLimit.
	Limit int

	// Offset skips that many filtered records before the page starts.
	Offset int
}

// Matches reports whether a record passes the filter's workflow and
// error-type predicates.
func (f DeadLetterFilter) Matches(dl *domain.DeadLetter) bool {
	if f.WorkflowID != "" && dl.WorkflowID() != f.WorkflowID {
		return false
	}
	if f.ErrorType != "" && dl.ErrorType != f.ErrorType {
		return false
	}
	return true
}

// Page orders an already-filtered set by recording time (ties break on task
// ID, so pages stay stable across calls), applies the filter's offset and
// limit, and returns the page plus the total match count.
func (f DeadLetterFilter) Page(filtered []domain.DeadLetter) ([]domain.DeadLetter, int) {
	sort.SliceStable(filtered, func(i, j int) bool {
		if !filtered[i].RecordedAt.Equal(filtered[j].RecordedAt) {
			return filtered[i].RecordedAt.Before(filtered[j].RecordedAt)
		}
		return filtered[i].TaskID < filtered[j].TaskID
	})

	total := len(filtered)

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultDeadLetterLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.DeadLetter{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return filtered[offset:end], total
}

// QueueStore defines persistence for the task queue and its results.
// Version: 1.0
type QueueStore interface {
	// Enqueue appends the envelope to the tail of the queue. The envelope is
	// serialized before any write: a marshaling failure returns an error and
	// nothing is stored.
	Enqueue(ctx context.Context, env *domain.TaskEnvelope) error

	// Pop atomically removes and returns the head of the queue. Returns
	// ErrQueueEmpty when no task is waiting; callers poll on that.
	// A popped item is observed by exactly one caller.
	Pop(ctx context.Context) (*domain.TaskEnvelope, error)

	// ListPending returns a snapshot of up to limit waiting envelopes in
	// queue order, without consuming them. A non-positive limit returns the
	// whole queue.
	ListPending(ctx context.Context, limit int) ([]domain.TaskEnvelope, error)

	// Len reports the number of waiting envelopes.
	Len(ctx context.Context) (int64, error)

	// SetResult records the outcome of a completed task, keyed by task ID.
	SetResult(ctx context.Context, taskID string, result *domain.Result) error

	// GetResult retrieves the result for a task ID.
	// Returns ErrResultNotFound if no result has been recorded.
	GetResult(ctx context.Context, taskID string) (*domain.Result, error)
}

// DeadLetterStore defines persistence for quarantined tasks and their
// audit trail.
// Version: 1.0
type DeadLetterStore interface {
	// RecordDeadLetter stores the record keyed by its task ID, overwriting
	// any previous record for the same task.
	RecordDeadLetter(ctx context.Context, dl *domain.DeadLetter) error

	// GetDeadLetter retrieves a dead-letter record by task ID.
	// Returns ErrDeadLetterNotFound if the record does not exist.
	GetDeadLetter(ctx context.Context, taskID string) (*domain.DeadLetter, error)

	// ListDeadLetters returns one page of records matching the filter plus
	// the total number of matching records (not the page size). Records
	// that fail to decode are skipped.
	ListDeadLetters(ctx context.Context, filter DeadLetterFilter) ([]domain.DeadLetter, int, error)

	// DeleteDeadLetter removes a single record. Deleting a record that does
	// not exist is not an error.
	DeleteDeadLetter(ctx context.Context, taskID string) error

	// CountDeadLetters reports the number of stored records.
	CountDeadLetters(ctx context.Context) (int, error)

	// PurgeDeadLetters removes every record and returns how many were removed.
	PurgeDeadLetters(ctx context.Context) (int, error)

	// PurgeDeadLettersBefore removes records whose recorded_at is at or
	// before the cutoff and returns how many were removed. Records without
	// a readable recorded_at are left in place.
	PurgeDeadLettersBefore(ctx context.Context, cutoff time.Time) (int, error)

	// AppendAudit prepends one entry to the audit trail, trimming the
	// oldest entries beyond the store's configured cap.
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error

	// ListAudit returns up to limit audit entries, newest first.
	ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// RetryPolicyStore defines persistence for per-task-name retry policies.
// Version: 1.0
type RetryPolicyStore interface {
	// GetRetryPolicy retrieves the policy for a task name.
	// Returns ErrRetryPolicyNotFound if no policy is set; callers fall back
	// to queue defaults.
	GetRetryPolicy(ctx context.Context, taskName string) (*domain.RetryPolicy, error)

	// SetRetryPolicy stores the policy for a task name, replacing any
	// existing one. It takes effect on the next pop of that task name.
	SetRetryPolicy(ctx context.Context, taskName string, policy *domain.RetryPolicy) error

	// DeleteRetryPolicy removes the policy for a task name. Deleting a
	// missing policy is not an error.
	DeleteRetryPolicy(ctx context.Context, taskName string) error

	// ListRetryPolicies returns all stored policies keyed by task name.
	// Policies that fail to decode are skipped.
	ListRetryPolicies(ctx context.Context) (map[string]domain.RetryPolicy, error)
}

// HeartbeatStore defines persistence for worker liveness records.
// Version: 1.0
type HeartbeatStore interface {
	// WriteHeartbeat stores the heartbeat keyed by worker ID with the given
	// TTL. An entry that outlives its TTL disappears from ListHeartbeats.
	WriteHeartbeat(ctx context.Context, workerID string, hb *domain.Heartbeat, ttl time.Duration) error

	// ListHeartbeats returns the live heartbeats keyed by worker ID.
	// Entries that fail to decode are skipped.
	ListHeartbeats(ctx context.Context) (map[string]domain.Heartbeat, error)
}

// Store composes everything a queue backend provides. Implementations must
// be safe for concurrent use; the queue itself takes no locks around store
// calls.
type Store interface {
	QueueStore
	DeadLetterStore
	RetryPolicyStore
	HeartbeatStore

	// Close releases the backend's resources.
	Close() error
}
