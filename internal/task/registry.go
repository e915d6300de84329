package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Handler executes one task attempt. It receives the positional and keyword
// arguments carried by the envelope, exactly as they were enqueued (decoded
// from JSON). The context carries the attempt's execution deadline; handlers
// doing long work should honor it. The returned value is stored as the
// task's result on success.
type Handler func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Registry errors
var (
	// ErrRegistryNameEmpty is returned when registering a handler under an
	// empty name.
	ErrRegistryNameEmpty = errors.New("task name cannot be empty")

	// ErrRegistryHandlerNil is returned when registering a nil handler.
	ErrRegistryHandlerNil = errors.New("task handler cannot be nil")
)

// Registry maps task names to handlers. Every worker process must register
// the handlers for the task names it consumes before starting its pool; a
// popped name with no handler is dead-lettered as MissingCallable.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a task name, replacing any previous binding.
// Returns an error for an empty name or nil handler.
func (r *Registry) Register(name string, handler Handler) error {
	if name == "" {
		return ErrRegistryNameEmpty
	}
	if handler == nil {
		return ErrRegistryHandlerNil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
	return nil
}

// Resolve returns the handler bound to the task name.
// Returns an error wrapping ErrMissingHandler when the name is unbound.
func (r *Registry) Resolve(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingHandler, name)
	}
	return handler, nil
}

// Names returns the registered task names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
