package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/workstreamhq/taskforge/internal/domain"
)

// DeadLetterEvent announces that a task has exhausted its retry budget and
// been written to the dead-letter store. It carries the full record so
// handlers can triage without a store round trip.
type DeadLetterEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Queue is the namespace the task was consumed from
	Queue string `json:"queue"`

	// DeadLetter is the record as written to the store
	DeadLetter domain.DeadLetter `json:"dead_letter"`

	// EmittedAt is the timestamp when the event was created
	EmittedAt time.Time `json:"emitted_at"`
}

// NewDeadLetterEvent creates a new DeadLetterEvent for the given record.
func NewDeadLetterEvent(queue string, deadLetter domain.DeadLetter) *DeadLetterEvent {
	return &DeadLetterEvent{
		ID:         uuid.New(),
		Queue:      queue,
		DeadLetter: deadLetter,
		EmittedAt:  time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle
// dead-letter events. Handlers are responsible for processing events and
// taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *DeadLetterEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the worker pool to publish dead-letter events without direct
// knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *DeadLetterEvent) error
}
