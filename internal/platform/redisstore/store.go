package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/workstreamhq/taskforge/internal/domain"
	"github.com/workstreamhq/taskforge/internal/store"
)

// Store is the Redis-backed implementation of store.Store. Queue ownership
// comes from LPOP's atomicity: a popped envelope is observed by exactly one
// worker, across processes. No additional locking is used.
type Store struct {
	client   *redis.Client
	keys     keys
	auditMax int
}

// Ensure Store satisfies the full backend contract.
var _ store.Store = (*Store)(nil)

// Connect dials Redis at the given URL and verifies the connection with a
// ping before returning the client.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// New creates a Store over an existing client. namespace prefixes every key
// (empty means DefaultNamespace); auditMax caps the audit trail, with a
// non-positive value falling back to store.DefaultAuditMaxEntries.
func New(client *redis.Client, namespace string, auditMax int) *Store {
	if auditMax <= 0 {
		auditMax = store.DefaultAuditMaxEntries
	}
	return &Store{
		client:   client,
		keys:     newKeys(namespace),
		auditMax: auditMax,
	}
}

// Enqueue appends the envelope to the tail of the queue list. Serialization
// happens before the push, so a marshaling failure never reaches Redis.
func (s *Store) Enqueue(ctx context.Context, env *domain.TaskEnvelope) error {
	if err := env.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("serializing task %s: %w", env.TaskID, err)
	}
	if err := s.client.RPush(ctx, s.keys.tasks(), data).Err(); err != nil {
		return store.NewStoreError("task", "enqueue", "rpush failed", err)
	}
	return nil
}

// Pop atomically removes and returns the head of the queue list, or
// store.ErrQueueEmpty when the list is empty.
func (s *Store) Pop(ctx context.Context) (*domain.TaskEnvelope, error) {
	data, err := s.client.LPop(ctx, s.keys.tasks()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrQueueEmpty
	}
	if err != nil {
		return nil, store.NewStoreError("task", "pop", "lpop failed", err)
	}

	var env domain.TaskEnvelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, fmt.Errorf("decoding queued task: %w", err)
	}
	return &env, nil
}

// ListPending returns up to limit waiting envelopes in queue order without
// consuming them. A non-positive limit returns the whole queue.
func (s *Store) ListPending(ctx context.Context, limit int) ([]domain.TaskEnvelope, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	values, err := s.client.LRange(ctx, s.keys.tasks(), 0, stop).Result()
	if err != nil {
		return nil, store.NewStoreError("task", "list", "lrange failed", err)
	}

	pending := make([]domain.TaskEnvelope, 0, len(values))
	for _, value := range values {
		var env domain.TaskEnvelope
		if err := json.Unmarshal([]byte(value), &env); err != nil {
			continue
		}
		pending = append(pending, env)
	}
	return pending, nil
}

// Len reports the number of waiting envelopes.
func (s *Store) Len(ctx context.Context) (int64, error) {
	length, err := s.client.LLen(ctx, s.keys.tasks()).Result()
	if err != nil {
		return 0, store.NewStoreError("task", "len", "llen failed", err)
	}
	return length, nil
}

// SetResult records the outcome of a completed task.
func (s *Store) SetResult(ctx context.Context, taskID string, result *domain.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("serializing result for task %s: %w", taskID, err)
	}
	if err := s.client.HSet(ctx, s.keys.results(), taskID, data).Err(); err != nil {
		return store.NewStoreError("task result", "set", "hset failed", err)
	}
	return nil
}

// GetResult retrieves a result, or store.ErrResultNotFound.
func (s *Store) GetResult(ctx context.Context, taskID string) (*domain.Result, error) {
	data, err := s.client.HGet(ctx, s.keys.results(), taskID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrResultNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("task result", "get", "hget failed", err)
	}

	var result domain.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("decoding result for task %s: %w", taskID, err)
	}
	return &result, nil
}

// RecordDeadLetter stores the record keyed by its task ID.
func (s *Store) RecordDeadLetter(ctx context.Context, dl *domain.DeadLetter) error {
	if err := dl.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("serializing dead letter %s: %w", dl.TaskID, err)
	}
	if err := s.client.HSet(ctx, s.keys.deadLetter(), dl.TaskID, data).Err(); err != nil {
		return store.NewStoreError("dead letter", "record", "hset failed", err)
	}
	return nil
}

// GetDeadLetter retrieves a record, or store.ErrDeadLetterNotFound.
func (s *Store) GetDeadLetter(ctx context.Context, taskID string) (*domain.DeadLetter, error) {
	data, err := s.client.HGet(ctx, s.keys.deadLetter(), taskID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrDeadLetterNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("dead letter", "get", "hget failed", err)
	}

	var dl domain.DeadLetter
	if err := json.Unmarshal([]byte(data), &dl); err != nil {
		return nil, fmt.Errorf("decoding dead letter %s: %w", taskID, err)
	}
	return &dl, nil
}

// ListDeadLetters scans the full hash, filters, and pages. The scan is
// linear in the number of stored records, which dead-letter volumes keep
// small in practice.
func (s *Store) ListDeadLetters(ctx context.Context, filter store.DeadLetterFilter) ([]domain.DeadLetter, int, error) {
	values, err := s.client.HGetAll(ctx, s.keys.deadLetter()).Result()
	if err != nil {
		return nil, 0, store.NewStoreError("dead letter", "list", "hgetall failed", err)
	}

	filtered := make([]domain.DeadLetter, 0, len(values))
	for taskID, value := range values {
		var dl domain.DeadLetter
		if err := json.Unmarshal([]byte(value), &dl); err != nil {
			continue
		}
		if dl.TaskID == "" {
			dl.TaskID = taskID
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
func (s *Store) DeleteDeadLetter(ctx context.Context, taskID string) error {
	if err := s.client.HDel(ctx, s.keys.deadLetter(), taskID).Err(); err != nil {
		return store.NewStoreError("dead letter", "delete", "hdel failed", err)
	}
	return nil
}

// CountDeadLetters reports the number of stored records.
func (s *Store) CountDeadLetters(ctx context.Context) (int, error) {
	count, err := s.client.HLen(ctx, s.keys.deadLetter()).Result()
	if err != nil {
		return 0, store.NewStoreError("dead letter", "count", "hlen failed", err)
	}
	return int(count), nil
}

// PurgeDeadLetters drops the whole hash and returns how many records it held.
func (s *Store) PurgeDeadLetters(ctx context.Context) (int, error) {
	count, err := s.client.HLen(ctx, s.keys.deadLetter()).Result()
	if err != nil {
		return 0, store.NewStoreError("dead letter", "purge", "hlen failed", err)
	}
	if count == 0 {
		return 0, nil
	}
	if err := s.client.Del(ctx, s.keys.deadLetter()).Err(); err != nil {
		return 0, store.NewStoreError("dead letter", "purge", "del failed", err)
	}
	return int(count), nil
}

// PurgeDeadLettersBefore removes records recorded at or before the cutoff.
// Records without a readable recorded_at stay put.
func (s *Store) PurgeDeadLettersBefore(ctx context.Context, cutoff time.Time) (int, error) {
	values, err := s.client.HGetAll(ctx, s.keys.deadLetter()).Result()
	if err != nil {
		return 0, store.NewStoreError("dead letter", "purge", "hgetall failed", err)
	}

	expired := make([]string, 0, len(values))
	for taskID, value := range values {
		var dl domain.DeadLetter
		if err := json.Unmarshal([]byte(value), &dl); err != nil {
			continue
		}
		if dl.RecordedAt.IsZero() || dl.RecordedAt.After(cutoff) {
			continue
		}
		expired = append(expired, taskID)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	if err := s.client.HDel(ctx, s.keys.deadLetter(), expired...).Err(); err != nil {
		return 0, store.NewStoreError("dead letter", "purge", "hdel failed", err)
	}
	return len(expired), nil
}

// AppendAudit prepends an entry to the audit list and trims it to the cap.
func (s *Store) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("serializing audit entry: %w", err)
	}
	if err := s.client.LPush(ctx, s.keys.deadLetterAudit(), data).Err(); err != nil {
		return store.NewStoreError("audit", "append", "lpush failed", err)
	}
	if err := s.client.LTrim(ctx, s.keys.deadLetterAudit(), 0, int64(s.auditMax)-1).Err(); err != nil {
		return store.NewStoreError("audit", "append", "ltrim failed", err)
	}
	return nil
}

// ListAudit returns up to limit entries, newest first. A non-positive limit
// returns the whole trail.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	values, err := s.client.LRange(ctx, s.keys.deadLetterAudit(), 0, stop).Result()
	if err != nil {
		return nil, store.NewStoreError("audit", "list", "lrange failed", err)
	}

	entries := make([]domain.AuditEntry, 0, len(values))
	for _, value := range values {
		var entry domain.AuditEntry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetRetryPolicy retrieves the policy for a task name, or
// store.ErrRetryPolicyNotFound.
func (s *Store) GetRetryPolicy(ctx context.Context, taskName string) (*domain.RetryPolicy, error) {
	data, err := s.client.HGet(ctx, s.keys.retryPolicy(), taskName).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrRetryPolicyNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("retry policy", "get", "hget failed", err)
	}

	var policy domain.RetryPolicy
	if err := json.Unmarshal([]byte(data), &policy); err != nil {
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
	if err := s.client.HSet(ctx, s.keys.retryPolicy(), taskName, data).Err(); err != nil {
		return store.NewStoreError("retry policy", "set", "hset failed", err)
	}
	return nil
}

// DeleteRetryPolicy removes the policy for a task name.
func (s *Store) DeleteRetryPolicy(ctx context.Context, taskName string) error {
	if err := s.client.HDel(ctx, s.keys.retryPolicy(), taskName).Err(); err != nil {
		return store.NewStoreError("retry policy", "delete", "hdel failed", err)
	}
	return nil
}

// ListRetryPolicies returns all stored policies keyed by task name.
func (s *Store) ListRetryPolicies(ctx context.Context) (map[string]domain.RetryPolicy, error) {
	values, err := s.client.HGetAll(ctx, s.keys.retryPolicy()).Result()
	if err != nil {
		return nil, store.NewStoreError("retry policy", "list", "hgetall failed", err)
	}

	policies := make(map[string]domain.RetryPolicy, len(values))
	for name, value := range values {
		var policy domain.RetryPolicy
		if err := json.Unmarshal([]byte(value), &policy); err != nil {
			continue
		}
		policies[name] = policy
	}
	return policies, nil
}

// WriteHeartbeat stores the heartbeat and refreshes the TTL. The TTL sits
// on the whole hash, so every write extends the visibility of all entries;
// an idle fleet expires together.
func (s *Store) WriteHeartbeat(ctx context.Context, workerID string, hb *domain.Heartbeat, ttl time.Duration) error {
	if err := hb.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("serializing heartbeat for %s: %w", workerID, err)
	}
	if err := s.client.HSet(ctx, s.keys.heartbeats(), workerID, data).Err(); err != nil {
		return store.NewStoreError("heartbeat", "write", "hset failed", err)
	}
	if ttl > 0 {
		if err := s.client.Expire(ctx, s.keys.heartbeats(), ttl).Err(); err != nil {
			return store.NewStoreError("heartbeat", "write", "expire failed", err)
		}
	}
	return nil
}

// ListHeartbeats returns the live heartbeats keyed by worker ID.
func (s *Store) ListHeartbeats(ctx context.Context) (map[string]domain.Heartbeat, error) {
	values, err := s.client.HGetAll(ctx, s.keys.heartbeats()).Result()
	if err != nil {
		return nil, store.NewStoreError("heartbeat", "list", "hgetall failed", err)
	}

	heartbeats := make(map[string]domain.Heartbeat, len(values))
	for workerID, value := range values {
		var hb domain.Heartbeat
		if err := json.Unmarshal([]byte(value), &hb); err != nil {
			continue
		}
		heartbeats[workerID] = hb
	}
	return heartbeats, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
