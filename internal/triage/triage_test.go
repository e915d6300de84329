package triage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workstreamhq/taskforge/internal/domain"
	"github.com/workstreamhq/taskforge/internal/events"
	"github.com/workstreamhq/taskforge/internal/metrics"
	"github.com/workstreamhq/taskforge/internal/platform/memstore"
	"github.com/workstreamhq/taskforge/internal/store"
	"github.com/workstreamhq/taskforge/internal/task"
)

const testQueueName = "taskforge"

// spyPlaybook records the alerts it is asked to execute.
type spyPlaybook struct {
	mu     sync.Mutex
	err    error
	alerts []Alert
}

func (p *spyPlaybook) Name() string { return "spy" }

func (p *spyPlaybook) Execute(_ context.Context, alert Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alert)
	return p.err
}

func (p *spyPlaybook) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

func (p *spyPlaybook) last() Alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alerts[len(p.alerts)-1]
}

// newTestTriager builds a triager over a fresh in-memory queue.
func newTestTriager(t *testing.T, playbook Playbook, config TriagerConfig) (*Triager, *memstore.Store) {
	t.Helper()

	st := memstore.New(store.DefaultAuditMaxEntries)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := task.NewQueue(st, task.NewRegistry(), metrics.New(nil), task.DefaultQueueConfig(), logger)
	triager := NewTriager(queue, playbook, metrics.New(nil), config, logger)
	return triager, st
}

// seedDeadLetter records a fresh dead letter and returns its event.
func seedDeadLetter(t *testing.T, st *memstore.Store, name, errorType string) *events.DeadLetterEvent {
	t.Helper()

	env, err := domain.NewTaskEnvelope(name, nil, nil, 3, nil)
	require.NoError(t, err)
	env.RetryCount = env.MaxRetries
	env.LastError = "boom"

	dl, err := domain.NewDeadLetter(*env, errorType, "boom", "", "worker-test")
	require.NoError(t, err)
	require.NoError(t, st.RecordDeadLetter(context.Background(), dl))

	return events.NewDeadLetterEvent(testQueueName, *dl)
}

func TestTriager_AutoRequeuesWhitelistedError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	playbook := &spyPlaybook{}
	config := DefaultTriagerConfig()
	config.AutoRequeueErrorTypes = []string{"TimeoutError"}

	triager, st := newTestTriager(t, playbook, config)
	event := seedDeadLetter(t, st, "sync_calendar", "TimeoutError")

	require.NoError(t, triager.HandleEvent(ctx, event))

	_, err := st.GetDeadLetter(ctx, event.DeadLetter.TaskID)
	assert.ErrorIs(t, err, store.ErrDeadLetterNotFound)

	n, err := st.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	env, err := st.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sync_calendar", env.Name)
	assert.Equal(t, 0, env.RetryCount)
	assert.Empty(t, env.LastError)
}

func TestTriager_AutoRequeueStopsAtBudget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	playbook := &spyPlaybook{}
	config := DefaultTriagerConfig()
	config.AutoRequeueErrorTypes = []string{"TimeoutError"}
	config.MaxAutoRequeues = 2

	triager, st := newTestTriager(t, playbook, config)

	for i := 0; i < 2; i++ {
		event := seedDeadLetter(t, st, "sync_calendar", "TimeoutError")
		require.NoError(t, triager.HandleEvent(ctx, event))

		count, err := st.CountDeadLetters(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count, "whitelisted failure %d within budget should be requeued", i+1)
	}

	// Budget spent: the third failure stays dead-lettered.
	event := seedDeadLetter(t, st, "sync_calendar", "TimeoutError")
	require.NoError(t, triager.HandleEvent(ctx, event))

	count, err := st.CountDeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	n, err := st.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTriager_ZeroBudgetDisablesAutoRequeue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	playbook := &spyPlaybook{}
	config := DefaultTriagerConfig()
	config.AutoRequeueErrorTypes = []string{"TimeoutError"}
	config.MaxAutoRequeues = 0

	triager, st := newTestTriager(t, playbook, config)
	event := seedDeadLetter(t, st, "sync_calendar", "TimeoutError")

	require.NoError(t, triager.HandleEvent(ctx, event))

	count, err := st.CountDeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTriager_IgnoresNonWhitelistedError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	playbook := &spyPlaybook{}
	config := DefaultTriagerConfig()
	config.AutoRequeueErrorTypes = []string{"TimeoutError"}

	triager, st := newTestTriager(t, playbook, config)
	event := seedDeadLetter(t, st, "sync_calendar", "RuntimeError")

	require.NoError(t, triager.HandleEvent(ctx, event))

	count, err := st.CountDeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	n, err := st.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestTriager_AlertsOnThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	playbook := &spyPlaybook{}
	config := DefaultTriagerConfig()
	config.AlertThreshold = 3

	triager, st := newTestTriager(t, playbook, config)

	for i := 0; i < 2; i++ {
		event := seedDeadLetter(t, st, "cleanup", "RuntimeError")
		require.NoError(t, triager.HandleEvent(ctx, event))
	}
	assert.Equal(t, 0, playbook.count())

	event := seedDeadLetter(t, st, "cleanup", "RuntimeError")
	require.NoError(t, triager.HandleEvent(ctx, event))

	require.Equal(t, 1, playbook.count())
	alert := playbook.last()
	assert.Equal(t, testQueueName, alert.Queue)
	assert.Equal(t, "RuntimeError", alert.ErrorType)
	assert.Equal(t, "cleanup", alert.TaskName)
	assert.Equal(t, event.DeadLetter.TaskID, alert.TaskID)
}

func TestTriager_AlertCooldown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	playbook := &spyPlaybook{}
	config := DefaultTriagerConfig()
	config.AlertThreshold = 1
	config.AlertCooldown = 10 * time.Minute

	triager, st := newTestTriager(t, playbook, config)
	clock := newFakeClock()
	triager.now = clock.Now
	triager.window.now = clock.Now

	event := seedDeadLetter(t, st, "cleanup", "RuntimeError")
	require.NoError(t, triager.HandleEvent(ctx, event))
	assert.Equal(t, 1, playbook.count())

	// Same error type inside the cooldown window stays quiet.
	event = seedDeadLetter(t, st, "cleanup", "RuntimeError")
	require.NoError(t, triager.HandleEvent(ctx, event))
	assert.Equal(t, 1, playbook.count())

	// A different error type has its own cooldown.
	event = seedDeadLetter(t, st, "cleanup", "ValueError")
	require.NoError(t, triager.HandleEvent(ctx, event))
	assert.Equal(t, 2, playbook.count())

	clock.Advance(11 * time.Minute)

	event = seedDeadLetter(t, st, "cleanup", "RuntimeError")
	require.NoError(t, triager.HandleEvent(ctx, event))
	assert.Equal(t, 3, playbook.count())
}

func TestTriager_WindowExpiryResetsCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	playbook := &spyPlaybook{}
	config := DefaultTriagerConfig()
	config.AlertThreshold = 2
	config.AlertWindow = 5 * time.Minute

	triager, st := newTestTriager(t, playbook, config)
	clock := newFakeClock()
	triager.now = clock.Now
	triager.window.now = clock.Now

	event := seedDeadLetter(t, st, "cleanup", "RuntimeError")
	require.NoError(t, triager.HandleEvent(ctx, event))
	assert.Equal(t, 0, playbook.count())

	clock.Advance(6 * time.Minute)

	// The first failure aged out, so this one starts a new count.
	event = seedDeadLetter(t, st, "cleanup", "RuntimeError")
	require.NoError(t, triager.HandleEvent(ctx, event))
	assert.Equal(t, 0, playbook.count())

	event = seedDeadLetter(t, st, "cleanup", "RuntimeError")
	require.NoError(t, triager.HandleEvent(ctx, event))
	assert.Equal(t, 1, playbook.count())
}

func TestTriager_PlaybookFailureIsContained(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	playbook := &spyPlaybook{err: errors.New("slack is down")}
	config := DefaultTriagerConfig()
	config.AlertThreshold = 1

	triager, st := newTestTriager(t, playbook, config)

	event := seedDeadLetter(t, st, "cleanup", "RuntimeError")
	require.NoError(t, triager.HandleEvent(ctx, event))
	assert.Equal(t, 1, playbook.count())

	// The failed dispatch still consumed the cooldown.
	event = seedDeadLetter(t, st, "cleanup", "RuntimeError")
	require.NoError(t, triager.HandleEvent(ctx, event))
	assert.Equal(t, 1, playbook.count())
}
