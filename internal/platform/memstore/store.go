package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/workstreamhq/taskforge/internal/domain"
	"github.com/workstreamhq/taskforge/internal/store"
)

// Store is an in-memory implementation of store.Store. It holds payloads in
// their marshaled form so both backends share one encode/decode path and
// callers never alias stored maps. A single mutex guards all state; the
// atomicity the queue contract requires falls out of that.
type Store struct {
	mu              sync.Mutex
	queue           [][]byte
	results         map[string][]byte
	deadLetters     map[string][]byte
	deadLetterOrder []string
	auditTrail      [][]byte
	auditMax        int
	policies        map[string][]byte
	heartbeats      map[string]heartbeatEntry

	// now is the clock used for heartbeat expiry. Tests override it.
	now func() time.Time
}

type heartbeatEntry struct {
	payload   []byte
	expiresAt time.Time // zero means the entry never expires
}

// Ensure Store satisfies the full backend contract.
var _ store.Store = (*Store)(nil)

// New creates an empty Store. auditMax caps the audit trail; a non-positive
// value falls back to store.DefaultAuditMaxEntries.
func New(auditMax int) *Store {
	if auditMax <= 0 {
		auditMax = store.DefaultAuditMaxEntries
	}
	return &Store{
		results:     make(map[string][]byte),
		deadLetters: make(map[string][]byte),
		policies:    make(map[string][]byte),
		heartbeats:  make(map[string]heartbeatEntry),
		auditMax:    auditMax,
		now:         time.Now,
	}
}

// Enqueue appends the envelope to the tail of the queue. Serialization
// happens before any state changes, so a marshaling failure leaves the
// queue untouched.
func (s *Store) Enqueue(_ context.Context, env *domain.TaskEnvelope) error {
	if err := env.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("serializing task %s: %w", env.TaskID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, data)
	return nil
}

// Pop removes and returns the head of the queue, or store.ErrQueueEmpty.
func (s *Store) Pop(_ context.Context) (*domain.TaskEnvelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil, store.ErrQueueEmpty
	}
	data := s.queue[0]
	s.queue = s.queue[1:]

	var env domain.TaskEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding queued task: %w", err)
	}
	return &env, nil
}

// ListPending returns up to limit waiting envelopes in queue order without
// consuming them. A non-positive limit returns the whole queue.
func (s *Store) ListPending(_ context.Context, limit int) ([]domain.TaskEnvelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.queue)
	if limit > 0 && limit < n {
		n = limit
	}
	pending := make([]domain.TaskEnvelope, 0, n)
	for _, data := range s.queue[:n] {
		var env domain.TaskEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		pending = append(pending, env)
	}
	return pending, nil
}

// Len reports the number of waiting envelopes.
func (s *Store) Len(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.queue)), nil
}

// SetResult records the outcome of a completed task.
func (s *Store) SetResult(_ context.Context, taskID string, result *domain.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("serializing result for task %s: %w", taskID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[taskID] = data
	return nil
}

// GetResult retrieves a result, or store.ErrResultNotFound.
func (s *Store) GetResult(_ context.Context, taskID string) (*domain.Result, error) {
	s.mu.Lock()
	data, ok := s.results[taskID]
	s.mu.Unlock()

	if !ok {
		return nil, store.ErrResultNotFound
	}
	var result domain.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding result for task %s: %w", taskID, err)
	}
	return &result, nil
}

// RecordDeadLetter stores the record keyed by task ID, keeping insertion
// order for deterministic listings.
func (s *Store) RecordDeadLetter(_ context.Context, dl *domain.DeadLetter) error {
	if err := dl.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("serializing dead letter %s: %w", dl.TaskID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.deadLetters[dl.TaskID]; !exists {
		s.deadLetterOrder = append(s.deadLetterOrder, dl.TaskID)
	}
	s.deadLetters[dl.TaskID] = data
	return nil
}

// GetDeadLetter retrieves a record, or store.ErrDeadLetterNotFound.
func (s *Store) GetDeadLetter(_ context.Context, taskID string) (*domain.DeadLetter, error) {
	s.mu.Lock()
	data, ok := s.deadLetters[taskID]
	s.mu.Unlock()

	if !ok {
		return nil, store.ErrDeadLetterNotFound
	}
	var dl domain.DeadLetter
	if err := json.Unmarshal(data, &dl); err != nil {
		return nil, fmt.Errorf("decoding dead letter %s: %w", taskID, err)
	}
	return &dl, nil
}

// ListDeadLetters filters the full set of records, then applies offset and
// limit. The returned total counts every match, not just the page.
func (s *Store) ListDeadLetters(_ context.Context, filter store.DeadLetterFilter) ([]domain.DeadLetter, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]domain.DeadLetter, 0, len(s.deadLetterOrder))
	for _, taskID := range s.deadLetterOrder {
		var dl domain.DeadLetter
		if err := json.Unmarshal(s.deadLetters[taskID], &dl); err != nil {
			continue
		}
		if !filter.Matches(&dl) {
			continue
		}
		filtered = append(filtered, dl)
	}

	page, total := filter.Page(filtered)
	return page, total, nil
}

// DeleteDeadLetter removes a single record. Missing records are not an error.
func (s *Store) DeleteDeadLetter(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeDeadLetterLocked(taskID)
	return nil
}

// CountDeadLetters reports the number of stored records.
func (s *Store) CountDeadLetters(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deadLetters), nil
}

// PurgeDeadLetters removes every record and returns how many were removed.
func (s *Store) PurgeDeadLetters(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.deadLetters)
	s.deadLetters = make(map[string][]byte)
	s.deadLetterOrder = nil
	return removed, nil
}

// PurgeDeadLettersBefore removes records recorded at or before the cutoff.
// Records without a readable recorded_at stay put.
func (s *Store) PurgeDeadLettersBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, taskID := range append([]string(nil), s.deadLetterOrder...) {
		var dl domain.DeadLetter
		if err := json.Unmarshal(s.deadLetters[taskID], &dl); err != nil {
			continue
		}
		if dl.RecordedAt.IsZero() || dl.RecordedAt.After(cutoff) {
			continue
		}
		s.removeDeadLetterLocked(taskID)
		removed++
	}
	return removed, nil
}

// AppendAudit prepends an entry and trims the trail to the configured cap.
func (s *Store) AppendAudit(_ context.Context, entry *domain.AuditEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("serializing audit entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditTrail = append([][]byte{data}, s.auditTrail...)
	if len(s.auditTrail) > s.auditMax {
		s.auditTrail = s.auditTrail[:s.auditMax]
	}
	return nil
}

// ListAudit returns up to limit entries, newest first. A non-positive limit
// returns the whole trail.
func (s *Store) ListAudit(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.auditTrail)
	if limit > 0 && limit < n {
		n = limit
	}
	entries := make([]domain.AuditEntry, 0, n)
	for _, data := range s.auditTrail[:n] {
		var entry domain.AuditEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetRetryPolicy retrieves the policy for a task name, or
// store.ErrRetryPolicyNotFound.
func (s *Store) GetRetryPolicy(_ context.Context, taskName string) (*domain.RetryPolicy, error) {
	s.mu.Lock()
	data, ok := s.policies[taskName]
	s.mu.Unlock()

	if !ok {
		return nil, store.ErrRetryPolicyNotFound
	}
	var policy domain.RetryPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("decoding retry policy for %s: %w", taskName, err)
	}
	return &policy, nil
}

// SetRetryPolicy stores the policy for a task name. A nil policy removes
// any existing one.
func (s *Store) SetRetryPolicy(ctx context.Context, taskName string, policy *domain.RetryPolicy) error {
	if policy == nil {
		return s.DeleteRetryPolicy(ctx, taskName)
	}
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	data, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("serializing retry policy for %s: %w", taskName, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[taskName] = data
	return nil
}

// DeleteRetryPolicy removes the policy for a task name.
func (s *Store) DeleteRetryPolicy(_ context.Context, taskName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, taskName)
	return nil
}

// ListRetryPolicies returns all stored policies keyed by task name.
func (s *Store) ListRetryPolicies(_ context.Context) (map[string]domain.RetryPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	policies := make(map[string]domain.RetryPolicy, len(s.policies))
	for name, data := range s.policies {
		var policy domain.RetryPolicy
		if err := json.Unmarshal(data, &policy); err != nil {
			continue
		}
		policies[name] = policy
	}
	return policies, nil
}

// WriteHeartbeat stores the heartbeat with a per-entry deadline. A
// non-positive ttl keeps the entry forever.
func (s *Store) WriteHeartbeat(_ context.Context, workerID string, hb *domain.Heartbeat, ttl time.Duration) error {
	if err := hb.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("serializing heartbeat for %s: %w", workerID, err)
	}

	entry := heartbeatEntry{payload: data}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats[workerID] = entry
	return nil
}

// ListHeartbeats returns the live heartbeats, dropping expired entries.
func (s *Store) ListHeartbeats(_ context.Context) (map[string]domain.Heartbeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	live := make(map[string]domain.Heartbeat, len(s.heartbeats))
	for workerID, entry := range s.heartbeats {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.heartbeats, workerID)
			continue
		}
		var hb domain.Heartbeat
		if err := json.Unmarshal(entry.payload, &hb); err != nil {
			continue
		}
		live[workerID] = hb
	}
	return live, nil
}

// Close releases nothing for the in-memory backend.
func (s *Store) Close() error {
	return nil
}

// removeDeadLetterLocked deletes a record and its order slot. Callers hold
// the mutex.
func (s *Store) removeDeadLetterLocked(taskID string) {
	if _, ok := s.deadLetters[taskID]; !ok {
		return
	}
	delete(s.deadLetters, taskID)
	for i, id := range s.deadLetterOrder {
		if id == taskID {
			s.deadLetterOrder = append(s.deadLetterOrder[:i], s.deadLetterOrder[i+1:]...)
			break
		}
	}
}

