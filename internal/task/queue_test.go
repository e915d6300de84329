package task

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workstreamhq/taskforge/internal/domain"
	"github.com/workstreamhq/taskforge/internal/metrics"
	"github.com/workstreamhq/taskforge/internal/platform/memstore"
	"github.com/workstreamhq/taskforge/internal/store"
)

// newTestQueue builds a Queue over a fresh in-memory store.
func newTestQueue(t *testing.T) (*Queue, *Registry, *memstore.Store) {
	t.Helper()

	st := memstore.New(store.DefaultAuditMaxEntries)
	registry := NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := NewQueue(st, registry, metrics.New(nil), DefaultQueueConfig(), logger)
	return q, registry, st
}

// seedDeadLetter records a dead letter directly in the store.
func seedDeadLetter(t *testing.T, st *memstore.Store, name, errorType string, retryCount int) *domain.DeadLetter {
	t.Helper()

	env, err := domain.NewTaskEnvelope(name, nil, nil, 3, nil)
	require.NoError(t, err)
	env.RetryCount = retryCount
	env.LastError = "boom"

	dl, err := domain.NewDeadLetter(*env, errorType, "boom", "", "worker-test")
	require.NoError(t, err)
	require.NoError(t, st.RecordDeadLetter(context.Background(), dl))
	return dl
}

func TestQueue_Enqueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("envelope defaults", func(t *testing.T) {
		t.Parallel()
		q, _, st := newTestQueue(t)

		env, err := q.Enqueue(ctx, "send_email")
		require.NoError(t, err)

		assert.NotEmpty(t, env.TaskID)
		assert.Equal(t, "send_email", env.Name)
		assert.Equal(t, domain.DefaultMaxRetries, env.MaxRetries)
		assert.Equal(t, 0, env.RetryCount)
		assert.Empty(t, env.Args)
		assert.Empty(t, env.Kwargs)

		n, err := st.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("fifo order", func(t *testing.T) {
		t.Parallel()
		q, _, st := newTestQueue(t)

		first, err := q.Enqueue(ctx, "send_email")
		require.NoError(t, err)
		second, err := q.Enqueue(ctx, "send_email")
		require.NoError(t, err)

		popped, err := st.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.TaskID, popped.TaskID)

		popped, err = st.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, second.TaskID, popped.TaskID)
	})

	t.Run("serialization failure leaves the queue untouched", func(t *testing.T) {
		t.Parallel()
		q, _, st := newTestQueue(t)

		_, err := q.Enqueue(ctx, "send_email", WithArgs(make(chan int)))
		require.Error(t, err)

		n, err := st.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("options shape the envelope", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newTestQueue(t)

		env, err := q.Enqueue(ctx, "send_email",
			WithArgs("alice@example.com", 7),
			WithKwargs(map[string]any{"template": "welcome"}),
			WithMaxRetries(1),
			WithMetadata(map[string]any{"tenant": "acme"}),
			WithWorkflowID("wf-42"),
		)
		require.NoError(t, err)

		assert.Equal(t, []any{"alice@example.com", 7}, env.Args)
		assert.Equal(t, map[string]any{"template": "welcome"}, env.Kwargs)
		assert.Equal(t, 1, env.MaxRetries)
		assert.Equal(t, "acme", env.Metadata["tenant"])
		assert.Equal(t, "wf-42", env.WorkflowID())
	})

	t.Run("handler option registers at enqueue time", func(t *testing.T) {
		t.Parallel()
		q, registry, _ := newTestQueue(t)

		_, err := q.Enqueue(ctx, "send_email", WithHandler(noopHandler))
		require.NoError(t, err)

		_, err = registry.Resolve("send_email")
		assert.NoError(t, err)
	})
}

func TestQueue_Result_NotFound(t *testing.T) {
	t.Parallel()
	q, _, _ := newTestQueue(t)

	_, err := q.Result(context.Background(), "no-such-task")
	require.Error(t, err)
	assert.True(t, store.IsNotFoundError(err))
}

func TestQueue_RequeueDeadLetter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("operator requeue resets the envelope", func(t *testing.T) {
		t.Parallel()
		q, _, st := newTestQueue(t)
		dl := seedDeadLetter(t, st, "send_email", "RuntimeError", 3)

		env, err := q.RequeueDeadLetter(ctx, dl.TaskID, false)
		require.NoError(t, err)

		assert.Equal(t, dl.TaskID, env.TaskID)
		assert.Equal(t, 0, env.RetryCount)
		assert.Empty(t, env.LastError)
		require.NotNil(t, env.RequeuedAt)
		assert.WithinDuration(t, time.Now(), *env.RequeuedAt, 2*time.Second)

		// The record is gone and the task is back on the queue.
		_, err = q.DeadLetter(ctx, dl.TaskID)
		assert.True(t, store.IsNotFoundError(err))

		n, err := q.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		entries, err := q.AuditTrail(ctx, 10)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.Equal(t, domain.AuditEventRequeued, entries[0].Event)
		assert.Equal(t, dl.TaskID, entries[0].TaskID)
	})

	t.Run("automatic requeue audits as auto_requeued", func(t *testing.T) {
		t.Parallel()
		q, _, st := newTestQueue(t)
		dl := seedDeadLetter(t, st, "send_email", "RuntimeError", 3)

		_, err := q.RequeueDeadLetter(ctx, dl.TaskID, true)
		require.NoError(t, err)

		entries, err := q.AuditTrail(ctx, 10)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.Equal(t, domain.AuditEventAutoRequeued, entries[0].Event)
	})

	t.Run("missing record", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newTestQueue(t)

		_, err := q.RequeueDeadLetter(ctx, "no-such-task", false)
		require.Error(t, err)
		assert.True(t, store.IsNotFoundError(err))
	})
}

func TestQueue_PurgeDeadLetters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("purge all reports the removed count", func(t *testing.T) {
		t.Parallel()
		q, _, st := newTestQueue(t)
		seedDeadLetter(t, st, "send_email", "RuntimeError", 3)
		seedDeadLetter(t, st, "sync_ledger", "ValueError", 1)
		seedDeadLetter(t, st, "warm_cache", "RuntimeError", 2)

		count, err := q.PurgeDeadLetters(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		_, total, err := q.DeadLetters(ctx, store.DeadLetterFilter{})
		require.NoError(t, err)
		assert.Zero(t, total)

		entries, err := q.AuditTrail(ctx, 10)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.Equal(t, domain.AuditEventPurged, entries[0].Event)
		assert.Equal(t, 3, entries[0].Count)
	})

	t.Run("age zero removes everything", func(t *testing.T) {
		t.Parallel()
		q, _, st := newTestQueue(t)
		seedDeadLetter(t, st, "send_email", "RuntimeError", 3)
		seedDeadLetter(t, st, "sync_ledger", "ValueError", 1)

		count, err := q.PurgeDeadLettersOlderThan(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("age in the future removes nothing", func(t *testing.T) {
		t.Parallel()
		q, _, st := newTestQueue(t)
		seedDeadLetter(t, st, "send_email", "RuntimeError", 3)

		count, err := q.PurgeDeadLettersOlderThan(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Zero(t, count)

		_, total, err := q.DeadLetters(ctx, store.DeadLetterFilter{})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})
}

func TestQueue_DeadLetters_Filter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, _, st := newTestQueue(t)

	seedDeadLetter(t, st, "send_email", "RuntimeError", 3)
	seedDeadLetter(t, st, "send_email", "ValueError", 1)
	seedDeadLetter(t, st, "sync_ledger", "RuntimeError", 2)

	items, total, err := q.DeadLetters(ctx, store.DeadLetterFilter{ErrorType: "RuntimeError"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, "RuntimeError", item.ErrorType)
	}
}

func TestQueue_RetryPolicies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, _, _ := newTestQueue(t)

	_, err := q.RetryPolicy(ctx, "send_email")
	require.Error(t, err)
	assert.True(t, store.IsNotFoundError(err))

	maxRetries := 1
	policy := &domain.RetryPolicy{Timeout: 30, MaxRetries: &maxRetries}
	require.NoError(t, q.SetRetryPolicy(ctx, "send_email", policy))

	got, err := q.RetryPolicy(ctx, "send_email")
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.Timeout)
	require.NotNil(t, got.MaxRetries)
	assert.Equal(t, 1, *got.MaxRetries)

	all, err := q.RetryPolicies(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, q.DeleteRetryPolicy(ctx, "send_email"))
	_, err = q.RetryPolicy(ctx, "send_email")
	assert.True(t, store.IsNotFoundError(err))
}

func TestQueue_DeleteDeadLetter_DoesNotAudit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, _, st := newTestQueue(t)
	dl := seedDeadLetter(t, st, "send_email", "RuntimeError", 3)

	require.NoError(t, q.DeleteDeadLetter(ctx, dl.TaskID))

	entries, err := q.AuditTrail(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
