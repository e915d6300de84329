package domain

import (
	"testing"
)

func TestNewAuditEntry(t *testing.T) {
	t.Parallel() // Enable parallel execution
	entry, err := NewAuditEntry(AuditEventRecorded, "t1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if entry.Event != AuditEventRecorded || entry.TaskID != "t1" {
		t.Errorf("Expected recorded entry for t1, got %+v", entry)
	}
	if entry.Timestamp.IsZero() {
		t.Error("Expected non-zero timestamp")
	}

	// Per-task events require a task ID
	_, err = NewAuditEntry(AuditEventRequeued, "")
	if err != ErrAuditTaskIDEmpty {
		t.Errorf("Expected error %v, got %v", ErrAuditTaskIDEmpty, err)
	}

	// Unknown events are rejected
	_, err = NewAuditEntry(AuditEvent("exploded"), "t1")
	if err != ErrAuditEventInvalid {
		t.Errorf("Expected error %v, got %v", ErrAuditEventInvalid, err)
	}
}

func TestNewPurgeAuditEntry(t *testing.T) {
	t.Parallel() // Enable parallel execution
	entry := NewPurgeAuditEntry(12)
	if entry.Event != AuditEventPurged {
		t.Errorf("Expected purged event, got %s", entry.Event)
	}
	if entry.TaskID != "" {
		t.Errorf("Expected empty task ID on purge entry, got %s", entry.TaskID)
	}
	if entry.Count != 12 {
		t.Errorf("Expected count 12, got %d", entry.Count)
	}
	if err := entry.Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestNewHeartbeat(t *testing.T) {
	t.Parallel() // Enable parallel execution
	hb, err := NewHeartbeat("pool-3", "t9", "sync_plan")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if hb.WorkerID != "pool-3" || hb.TaskID != "t9" || hb.Name != "sync_plan" {
		t.Errorf("Expected heartbeat fields to round through, got %+v", hb)
	}
	if hb.CompletedAt.IsZero() {
		t.Error("Expected non-zero CompletedAt time")
	}

	_, err = NewHeartbeat("", "t9", "sync_plan")
	if err != ErrHeartbeatWorkerIDEmpty {
		t.Errorf("Expected error %v, got %v", ErrHeartbeatWorkerIDEmpty, err)
	}

	_, err = NewHeartbeat("pool-3", "", "sync_plan")
	if err != ErrHeartbeatTaskIDEmpty {
		t.Errorf("Expected error %v, got %v", ErrHeartbeatTaskIDEmpty, err)
	}
}
