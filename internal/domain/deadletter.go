package domain

import (
	"errors"
	"time"
)

// Dead-letter-specific validation errors
var (
	// ErrDeadLetterErrorTypeEmpty is returned when a dead-letter record has no error type.
	ErrDeadLetterErrorTypeEmpty = errors.New("dead-letter error type cannot be empty")

	// ErrDeadLetterWorkerIDEmpty is returned when a dead-letter record has no worker ID.
	ErrDeadLetterWorkerIDEmpty = errors.New("dead-letter worker ID cannot be empty")

	// ErrDeadLetterRecordedAtZero is returned when a dead-letter record has no recording timestamp.
	ErrDeadLetterRecordedAtZero = errors.New("dead-letter recorded timestamp cannot be zero")
)

// DeadLetter quarantines a task whose retry budget is exhausted (or whose
// handler was never registered). The envelope is embedded so the stored
// JSON stays flat: a dead-letter entry is the task payload plus the
// failure fields, and requeueing recovers the envelope unchanged.
type DeadLetter struct {
	TaskEnvelope

	ErrorType    string    `json:"error_type"`
	ErrorMessage string    `json:"error_message"`
	StackTrace   string    `json:"stack_trace,omitempty"`
	WorkerID     string    `json:"worker_id"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// NewDeadLetter creates a DeadLetter for the given envelope and failure.
// It stamps the recording time. Returns an error if validation fails.
func NewDeadLetter(env TaskEnvelope, errorType, errorMessage, stackTrace, workerID string) (*DeadLetter, error) {
	dl := &DeadLetter{
		TaskEnvelope: env,
		ErrorType:    errorType,
		ErrorMessage: errorMessage,
		StackTrace:   stackTrace,
		WorkerID:     workerID,
		RecordedAt:   time.Now().UTC(),
	}

	if err := dl.Validate(); err != nil {
		return nil, err
	}

	return dl, nil
}

// Validate checks if the DeadLetter has valid data, including the embedded
// task envelope. Returns an error if any field fails validation.
func (d *DeadLetter) Validate() error {
	if err := d.TaskEnvelope.Validate(); err != nil {
		return err
	}

	if d.ErrorType == "" {
		return ErrDeadLetterErrorTypeEmpty
	}

	if d.WorkerID == "" {
		return ErrDeadLetterWorkerIDEmpty
	}

	if d.RecordedAt.IsZero() {
		return ErrDeadLetterRecordedAtZero
	}

	return nil
}

// TriageIdentifier returns the key triage uses to group recurring failures:
// the owning workflow when the task has one, otherwise the task name.
func (d *DeadLetter) TriageIdentifier() string {
	if id := d.WorkflowID(); id != "" {
		return id
	}
	return d.Name
}
