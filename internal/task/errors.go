package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error-type labels recorded on dead letters for failures the engine itself
// produces. Handler errors carry their own labels via ErrorType.
const (
	// ErrorTypeMissingCallable marks a task whose name had no registered
	// handler. Never retried.
	ErrorTypeMissingCallable = "MissingCallable"

	// ErrorTypeTimeout marks an attempt that exceeded its execution deadline.
	ErrorTypeTimeout = "TimeoutError"

	// ErrorTypePanic marks an attempt whose handler panicked with a
	// non-error value.
	ErrorTypePanic = "Panic"
)

// ErrMissingHandler is returned when a task name resolves to no registered
// handler.
var ErrMissingHandler = errors.New("no handler registered for task")

// Error is a handler failure with an explicit classification. Handlers
// return one when the dead-letter error_type should be a stable label
// rather than the Go type of the underlying error.
type Error struct {
	// Type is the classification recorded on the dead letter, e.g.
	// "RuntimeError".
	Type string

	// Message is the human-readable failure description.
	Message string

	// Err is the optional underlying cause.
	Err error
}

// NewError creates a classified task error.
func NewError(errorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
	}
}

// Errorf creates a classified task error with a formatted message.
// It supports the %w verb for wrapping an underlying cause.
func Errorf(errorType, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{
		Type:    errorType,
		Message: err.Error(),
		Err:     errors.Unwrap(err),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorType returns the classification label.
func (e *Error) ErrorType() string {
	return e.Type
}

// PanicError wraps a recovered handler panic so it flows through the retry
// path like any other failure, carrying the stack captured at recovery.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrorType classifies the panic by its value: a panic raised with an error
// is classified as that error would be, anything else is a plain Panic.
func (e *PanicError) ErrorType() string {
	if err, ok := e.Value.(error); ok {
		return ClassifyError(err)
	}
	return ErrorTypePanic
}

// classifier is implemented by errors that carry their own dead-letter
// classification.
type classifier interface {
	ErrorType() string
}

// ClassifyError maps an execution failure to the error_type recorded on its
// dead letter. Deadline expiry and unregistered handlers map to fixed
// labels; errors implementing ErrorType() string classify themselves;
// anything else falls back to the dynamic Go type name.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	if errors.Is(err, ErrMissingHandler) {
		return ErrorTypeMissingCallable
	}

	var c classifier
	if errors.As(err, &c) {
		if t := c.ErrorType(); t != "" {
			return t
		}
	}

	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// stackTraceOf extracts the captured stack when the failure came from a
// recovered panic. Ordinary Go errors carry no stack.
func stackTraceOf(err error) string {
	var pe *PanicError
	if errors.As(err, &pe) {
		return string(pe.Stack)
	}
	return ""
}
