package domain

import (
	"errors"
	"time"
)

// Heartbeat-specific validation errors
var (
	// ErrHeartbeatWorkerIDEmpty is returned when a heartbeat has no worker ID.
	ErrHeartbeatWorkerIDEmpty = errors.New("heartbeat worker ID cannot be empty")

	// ErrHeartbeatTaskIDEmpty is returned when a heartbeat has no task ID.
	ErrHeartbeatTaskIDEmpty = errors.New("heartbeat task ID cannot be empty")

	// ErrHeartbeatCompletedAtZero is returned when a heartbeat has no completion timestamp.
	ErrHeartbeatCompletedAtZero = errors.New("heartbeat completed timestamp cannot be zero")
)

// Heartbeat is the liveness proof a worker writes after successfully
// completing a task. Entries carry a TTL in the store; an expired entry
// means the worker has not finished work recently and is presumed dead.
type Heartbeat struct {
	WorkerID    string    `json:"worker_id"`
	TaskID      string    `json:"task_id"`
	Name        string    `json:"name"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewHeartbeat creates a Heartbeat for the given worker and completed task.
// It stamps the completion time. Returns an error if validation fails.
func NewHeartbeat(workerID, taskID, name string) (*Heartbeat, error) {
	hb := &Heartbeat{
		WorkerID:    workerID,
		TaskID:      taskID,
		Name:        name,
		CompletedAt: time.Now().UTC(),
	}

	if err := hb.Validate(); err != nil {
		return nil, err
	}

	return hb, nil
}

// Validate checks if the Heartbeat has valid data.
// Returns an error if any field fails validation.
func (h *Heartbeat) Validate() error {
	if h.WorkerID == "" {
		return ErrHeartbeatWorkerIDEmpty
	}

	if h.TaskID == "" {
		return ErrHeartbeatTaskIDEmpty
	}

	if h.CompletedAt.IsZero() {
		return ErrHeartbeatCompletedAtZero
	}

	return nil
}
