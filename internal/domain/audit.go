package domain

import (
	"errors"
	"time"
)

// AuditEvent classifies a line in the dead-letter audit trail.
type AuditEvent string

// Possible audit event values
const (
	AuditEventRecorded     AuditEvent = "recorded"
	AuditEventRequeued     AuditEvent = "requeued"
	AuditEventAutoRequeued AuditEvent = "auto_requeued"
	AuditEventPurged       AuditEvent = "purged"
)

// Audit-specific validation errors
var (
	// ErrAuditEventInvalid is returned when an audit event is not one of the known values.
	ErrAuditEventInvalid = errors.New("invalid audit event")

	// ErrAuditTaskIDEmpty is returned when a per-task audit entry has no task ID.
	ErrAuditTaskIDEmpty = errors.New("audit task ID cannot be empty")

	// ErrAuditTimestampZero is returned when an audit entry has no timestamp.
	ErrAuditTimestampZero = errors.New("audit timestamp cannot be zero")
)

// AuditEntry is one line of the append-only dead-letter audit trail.
// Record and requeue entries reference a task; purge entries aggregate, so
// TaskID is empty and Count carries the number of purged records.
type AuditEntry struct {
	Timestamp time.Time  `json:"timestamp"`
	TaskID    string     `json:"task_id,omitempty"`
	Event     AuditEvent `json:"event"`
	Count     int        `json:"count,omitempty"`
}

// NewAuditEntry creates an AuditEntry for a single dead-letter record.
// Returns an error if validation fails.
func NewAuditEntry(event AuditEvent, taskID string) (*AuditEntry, error) {
	entry := &AuditEntry{
		Timestamp: time.Now().UTC(),
		TaskID:    taskID,
		Event:     event,
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	return entry, nil
}

// NewPurgeAuditEntry creates an AuditEntry summarizing a purge of count
// dead-letter records.
func NewPurgeAuditEntry(count int) *AuditEntry {
	return &AuditEntry{
		Timestamp: time.Now().UTC(),
		Event:     AuditEventPurged,
		Count:     count,
	}
}

// Validate checks if the AuditEntry has valid data.
// Returns an error if any field fails validation.
func (a *AuditEntry) Validate() error {
	if !isValidAuditEvent(a.Event) {
		return ErrAuditEventInvalid
	}

	if a.Event != AuditEventPurged && a.TaskID == "" {
		return ErrAuditTaskIDEmpty
	}

	if a.Timestamp.IsZero() {
		return ErrAuditTimestampZero
	}

	return nil
}

// isValidAuditEvent checks if the given event is a known AuditEvent.
func isValidAuditEvent(event AuditEvent) bool {
	switch event {
	case AuditEventRecorded, AuditEventRequeued, AuditEventAutoRequeued, AuditEventPurged:
		return true
	default:
		return false
	}
}
