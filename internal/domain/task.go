package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Task-specific validation errors
var (
	// ErrTaskIDEmpty is returned when a task ID is empty.
	ErrTaskIDEmpty = errors.New("task ID cannot be empty")

	// ErrTaskNameEmpty is returned when a task name is empty.
	ErrTaskNameEmpty = errors.New("task name cannot be empty")

	// ErrTaskMaxRetriesNegative is returned when a task's retry budget is negative.
	ErrTaskMaxRetriesNegative = errors.New("task max retries cannot be negative")

	// ErrTaskRetryCountNegative is returned when a task's retry count is negative.
	ErrTaskRetryCountNegative = errors.New("task retry count cannot be negative")

	// ErrTaskEnqueuedAtZero is returned when a task has no enqueue timestamp.
	ErrTaskEnqueuedAtZero = errors.New("task enqueued timestamp cannot be zero")
)

// DefaultMaxRetries is the retry budget applied when an envelope is created
// without an explicit one.
const DefaultMaxRetries = 3

// MetadataWorkflowID is the metadata key that links a task to the workflow
// that produced it. Triage groups recurring failures by this value.
const MetadataWorkflowID = "workflow_id"

// TaskEnvelope is the unit of work that travels through the queue. The
// struct is the wire format: envelopes are stored and re-enqueued as JSON,
// so every field that survives a retry round-trip lives here.
type TaskEnvelope struct {
	TaskID     string         `json:"task_id"`
	Name       string         `json:"name"`
	Args       []any          `json:"args"`
	Kwargs     map[string]any `json:"kwargs"`
	MaxRetries int            `json:"max_retries"`
	RetryCount int            `json:"retry_count"`
	Metadata   map[string]any `json:"metadata"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	LastError  string         `json:"last_error,omitempty"`
	RequeuedAt *time.Time     `json:"requeued_at,omitempty"`
}

// NewTaskEnvelope creates a new TaskEnvelope for the named task.
// It generates the task ID, stamps the enqueue time, and normalizes nil
// argument collections so the stored JSON always carries them.
// Returns an error if validation fails.
func NewTaskEnvelope(name string, args []any, kwargs map[string]any, maxRetries int, metadata map[string]any) (*TaskEnvelope, error) {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	env := &TaskEnvelope{
		TaskID:     uuid.New().String(),
		Name:       name,
		Args:       args,
		Kwargs:     kwargs,
		MaxRetries: maxRetries,
		RetryCount: 0,
		Metadata:   metadata,
		EnqueuedAt: time.Now().UTC(),
	}

	if err := env.Validate(); err != nil {
		return nil, err
	}

	return env, nil
}

// Validate checks if the TaskEnvelope has valid data.
// Returns an error if any field fails validation.
func (t *TaskEnvelope) Validate() error {
	if t.TaskID == "" {
		return ErrTaskIDEmpty
	}

	if t.Name == "" {
		return ErrTaskNameEmpty
	}

	if t.MaxRetries < 0 {
		return ErrTaskMaxRetriesNegative
	}

	if t.RetryCount < 0 {
		return ErrTaskRetryCountNegative
	}

	if t.EnqueuedAt.IsZero() {
		return ErrTaskEnqueuedAtZero
	}

	return nil
}

// WorkflowID returns the workflow identifier from the task metadata, or an
// empty string when the task does not belong to a workflow.
func (t *TaskEnvelope) WorkflowID() string {
	v, ok := t.Metadata[MetadataWorkflowID]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// ResetForRequeue prepares a dead-lettered envelope to re-enter the queue:
// the retry budget starts over and the failure bookkeeping is cleared.
func (t *TaskEnvelope) ResetForRequeue(now time.Time) {
	t.RetryCount = 0
	t.LastError = ""
	requeuedAt := now.UTC()
	t.RequeuedAt = &requeuedAt
}
