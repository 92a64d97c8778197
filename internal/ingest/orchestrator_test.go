package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-task-ingest-go/internal/apperrors"
	"smart-task-ingest-go/internal/llm"
	"smart-task-ingest-go/internal/metrics"
	"smart-task-ingest-go/internal/model"
)

// Prometheus collectors register on the default registry, so the whole test
// binary shares one instance.
var testMetrics = metrics.NewMetrics()

// memStore is an in-memory Store mirroring the relational semantics the
// orchestrator relies on: verified-sender lookup, the dedup lock window, and
// owner-scoped task rows.
type memStore struct {
	owners map[string][]uint // verified email -> owner ids
	locks  map[string]time.Time
	tasks  []*model.Task
	nextID uint

	sentinelCalls int
	extractCalls  int
}

func newMemStore() *memStore {
	return &memStore{owners: map[string][]uint{}, locks: map[string]time.Time{}, nextID: 1}
}

func (m *memStore) VerifiedOwnerIDs(email string) ([]uint, error) {
	return m.owners[email], nil
}

func (m *memStore) IsLocked(messageID string, cutoff time.Time) (bool, error) {
	at, ok := m.locks[messageID]
	return ok && at.After(cutoff), nil
}

func (m *memStore) AcquireLock(messageID string, now time.Time) error {
	m.locks[messageID] = now
	return nil
}

func (m *memStore) CreateTask(task *model.Task) error {
	task.ID = m.nextID
	m.nextID++
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *memStore) UpdateTaskForOwner(ownerID, taskID uint, updates map[string]interface{}) (bool, error) {
	for _, task := range m.tasks {
		if task.ID == taskID && task.OwnerID == ownerID {
			if name, ok := updates["task_name"].(string); ok {
				task.TaskName = name
			}
			if done, ok := updates["is_completed"].(bool); ok {
				task.IsCompleted = done
			}
			return true, nil
		}
	}
	return false, nil
}

// countingSentinel embeds the call counter in the store so a single fixture
// tracks all pipeline activity.
type countingSentinel struct {
	store     *memStore
	malicious bool
}

func (c *countingSentinel) IsMalicious(_ context.Context, _ string) bool {
	c.store.sentinelCalls++
	return c.malicious
}

type scriptedEngine struct {
	store  *memStore
	result llm.ExtractionResult
}

func (s *scriptedEngine) Extract(_ context.Context, _ string) llm.ExtractionResult {
	s.store.extractCalls++
	return s.result
}

func newOrchestrator(store *memStore, malicious bool, result llm.ExtractionResult) *Orchestrator {
	sentinel := &countingSentinel{store: store, malicious: malicious}
	engine := &scriptedEngine{store: store, result: result}
	return New(store, sentinel, engine, testMetrics, 24*time.Hour)
}

func inbound(messageID string) model.InboundEmail {
	return model.InboundEmail{
		MessageID: messageID,
		Sender:    "Alice <alice@example.com>",
		Subject:   "Project kickoff",
		Body:      "Please schedule the kickoff meeting for Friday.",
	}
}

func TestProcessCreatesTasks(t *testing.T) {
	store := newMemStore()
	store.owners["alice@example.com"] = []uint{1}
	o := newOrchestrator(store, false, llm.ExtractionResult{
		Path: llm.PathPrimary,
		Raw:  `{"tasks": [{"intent": "create", "taskName": "Schedule kickoff", "dueDate": "2026-09-04"}]}`,
	})

	outcome, err := o.Process(context.Background(), inbound("msg-1"))
	require.NoError(t, err)
	assert.Equal(t, llm.PathPrimary, outcome.ModelPath)
	require.Len(t, outcome.Tasks, 1)
	assert.Equal(t, "created", outcome.Tasks[0].Action)

	require.Len(t, store.tasks, 1)
	task := store.tasks[0]
	assert.Equal(t, uint(1), task.OwnerID)
	assert.Equal(t, "Schedule kickoff", task.TaskName)
	require.NotNil(t, task.MessageID)
	assert.Equal(t, "msg-1", *task.MessageID)
	assert.Contains(t, task.OriginalRequest, "Project kickoff")
}

func TestProcessUnverifiedSenderRejected(t *testing.T) {
	store := newMemStore()
	o := newOrchestrator(store, false, llm.ExtractionResult{Path: llm.PathPrimary, Raw: `{"tasks": []}`})

	_, err := o.Process(context.Background(), inbound("msg-1"))
	assert.ErrorIs(t, err, apperrors.ErrSenderNotAuthorized)

	// Rejection happens before any model cost.
	assert.Equal(t, 0, store.sentinelCalls)
	assert.Equal(t, 0, store.extractCalls)
	assert.Empty(t, store.locks)
}

func TestProcessDuplicateSkipped(t *testing.T) {
	store := newMemStore()
	store.owners["alice@example.com"] = []uint{1}
	o := newOrchestrator(store, false, llm.ExtractionResult{
		Path: llm.PathPrimary,
		Raw:  `{"tasks": [{"intent": "create", "taskName": "Once"}]}`,
	})

	_, err := o.Process(context.Background(), inbound("msg-dup"))
	require.NoError(t, err)
	require.Len(t, store.tasks, 1)

	_, err = o.Process(context.Background(), inbound("msg-dup"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateMessage)
	assert.Len(t, store.tasks, 1, "duplicate must not create rows")
	assert.Equal(t, 1, store.sentinelCalls)
	assert.Equal(t, 1, store.extractCalls)
}

func TestProcessMissingMessageIDSkipsDedup(t *testing.T) {
	store := newMemStore()
	store.owners["alice@example.com"] = []uint{1}
	o := newOrchestrator(store, false, llm.ExtractionResult{
		Path: llm.PathPrimary,
		Raw:  `{"tasks": [{"intent": "create", "taskName": "Twice"}]}`,
	})

	for i := 0; i < 2; i++ {
		_, err := o.Process(context.Background(), inbound(""))
		require.NoError(t, err)
	}
	assert.Len(t, store.tasks, 2)
	assert.Empty(t, store.locks)
	require.NotNil(t, store.tasks[0])
	assert.Nil(t, store.tasks[0].MessageID)
}

func TestProcessFanOut(t *testing.T) {
	store := newMemStore()
	store.owners["alice@example.com"] = []uint{1, 2, 3}
	o := newOrchestrator(store, false, llm.ExtractionResult{
		Path: llm.PathPrimary,
		Raw: `{"tasks": [
			{"intent": "create", "taskName": "First"},
			{"intent": "create", "taskName": "Second"}
		]}`,
	})

	outcome, err := o.Process(context.Background(), inbound("msg-fan"))
	require.NoError(t, err)

	// 2 tasks x 3 owners, the expensive calls still run exactly once.
	assert.Len(t, outcome.Tasks, 6)
	assert.Len(t, store.tasks, 6)
	assert.Equal(t, 1, store.sentinelCalls)
	assert.Equal(t, 1, store.extractCalls)
}

func TestProcessSentinelBlock(t *testing.T) {
	store := newMemStore()
	store.owners["alice@example.com"] = []uint{1}
	o := newOrchestrator(store, true, llm.ExtractionResult{Path: llm.PathPrimary, Raw: `{"tasks": []}`})

	_, err := o.Process(context.Background(), inbound("msg-evil"))
	assert.ErrorIs(t, err, apperrors.ErrContentRejected)
	assert.Equal(t, 0, store.extractCalls, "blocked content must not reach extraction")
	assert.Empty(t, store.tasks)
	assert.Empty(t, store.locks, "rejected messages leave no lock")
}

func TestProcessInvalidOutputFallsBack(t *testing.T) {
	store := newMemStore()
	store.owners["alice@example.com"] = []uint{1}
	o := newOrchestrator(store, false, llm.ExtractionResult{
		Path: llm.PathPrimary,
		Raw:  `{"tasks": [{"intent": "create", "taskName": "x", "ownerId": 42}]}`,
	})

	outcome, err := o.Process(context.Background(), inbound("msg-bad"))
	require.NoError(t, err)
	assert.Equal(t, PathFallback, outcome.ModelPath)
	require.Len(t, store.tasks, 1)
	assert.Equal(t, "Review email from alice@example.com: Project kickoff", store.tasks[0].TaskName)
}

func TestProcessNoModelOutputFallsBack(t *testing.T) {
	store := newMemStore()
	store.owners["alice@example.com"] = []uint{1}
	o := newOrchestrator(store, false, llm.ExtractionResult{Path: llm.PathNone})

	outcome, err := o.Process(context.Background(), inbound("msg-none"))
	require.NoError(t, err)
	assert.Equal(t, PathFallback, outcome.ModelPath)
	require.Len(t, outcome.Tasks, 1)
	assert.Equal(t, "created", outcome.Tasks[0].Action)
}

func TestProcessEmptyTaskListCreatesNothing(t *testing.T) {
	store := newMemStore()
	store.owners["alice@example.com"] = []uint{1}
	o := newOrchestrator(store, false, llm.ExtractionResult{Path: llm.PathPrimary, Raw: `{"tasks": []}`})

	outcome, err := o.Process(context.Background(), inbound("msg-empty"))
	require.NoError(t, err)
	assert.Equal(t, llm.PathPrimary, outcome.ModelPath)
	assert.Empty(t, outcome.Tasks)
	assert.Empty(t, store.tasks)
	// The message is still locked so re-delivery stays a no-op.
	assert.Contains(t, store.locks, "msg-empty")
}

func TestProcessCompleteIntentOwnerScoped(t *testing.T) {
	store := newMemStore()
	store.owners["alice@example.com"] = []uint{1, 2}
	store.tasks = append(store.tasks, &model.Task{ID: 10, OwnerID: 1, TaskName: "Existing"})
	store.nextID = 11

	o := newOrchestrator(store, false, llm.ExtractionResult{
		Path: llm.PathPrimary,
		Raw:  `{"tasks": [{"intent": "complete", "taskName": "Existing", "targetTaskId": 10}]}`,
	})

	outcome, err := o.Process(context.Background(), inbound("msg-complete"))
	require.NoError(t, err)
	require.Len(t, outcome.Tasks, 2)

	byOwner := map[uint]string{}
	for _, res := range outcome.Tasks {
		byOwner[res.OwnerID] = res.Action
	}
	// Owner 1 holds task 10; owner 2's update matches nothing.
	assert.Equal(t, "updated", byOwner[1])
	assert.Equal(t, "skipped", byOwner[2])
	assert.True(t, store.tasks[0].IsCompleted)
}

func TestProcessLockWindowExpires(t *testing.T) {
	store := newMemStore()
	store.owners["alice@example.com"] = []uint{1}
	o := newOrchestrator(store, false, llm.ExtractionResult{
		Path: llm.PathPrimary,
		Raw:  `{"tasks": [{"intent": "create", "taskName": "Again"}]}`,
	})

	_, err := o.Process(context.Background(), inbound("msg-old"))
	require.NoError(t, err)

	// Push the clock past the lock window; the same id processes again.
	o.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = o.Process(context.Background(), inbound("msg-old"))
	require.NoError(t, err)
	assert.Len(t, store.tasks, 2)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "alice@example.com", normalizeAddress("Alice <Alice@Example.COM>"))
	assert.Equal(t, "bob@example.com", normalizeAddress("  BOB@example.com "))
}
