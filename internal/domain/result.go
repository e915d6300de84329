package domain

// TaskStatus represents the terminal disposition of a task attempt.
type TaskStatus string

// Possible task status values
const (
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Result records the outcome of a completed task, keyed by task ID in the
// result store. Only successful completions produce a Result; exhausted
// failures land in the dead-letter store instead.
type Result struct {
	Status TaskStatus `json:"status"`
	Value  any        `json:"result"`
}

// NewCompletedResult creates a Result for a successfully completed task.
func NewCompletedResult(value any) *Result {
	return &Result{
		Status: TaskStatusCompleted,
		Value:  value,
	}
}
