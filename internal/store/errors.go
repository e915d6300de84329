package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is the generic version of the entity-specific not found errors
	// (e.g., ErrResultNotFound, ErrDeadLetterNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrQueueEmpty is returned by Pop when no task is waiting. Workers poll
	// on this rather than blocking in the store.
	ErrQueueEmpty = errors.New("task queue is empty")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// Entity-specific "not found" errors

	// ErrResultNotFound indicates that no result exists for the requested task ID.
	ErrResultNotFound = fmt.Errorf("%w: task result", ErrNotFound)

	// ErrDeadLetterNotFound indicates that the requested dead-letter record does not exist.
	ErrDeadLetterNotFound = fmt.Errorf("%w: dead letter", ErrNotFound)

	// ErrRetryPolicyNotFound indicates that no retry policy is set for the task name.
	ErrRetryPolicyNotFound = fmt.Errorf("%w: retry policy", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error,
// including the entity-specific variants, which all wrap ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "task", "dead letter")
	Operation string // The operation that failed (e.g., "enqueue", "purge")
	Message   string // Error message
	Err       error  // Underlying error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
