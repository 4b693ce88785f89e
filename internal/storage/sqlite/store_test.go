package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumar-shivang/work-tracker/internal/storage"
	"github.com/kumar-shivang/work-tracker/internal/storage/sqlite"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

const testDimension = 3

// newTestStore creates an in-memory store with a small embedding dimension.
func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:", testDimension)
	require.NoError(t, err, "Failed to open in-memory store")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testMemory(id string, vec []float32, createdAt time.Time) *types.Memory {
	return &types.Memory{
		ID:        id,
		Content:   "content for " + id,
		Vector:    vec,
		Type:      types.MemoryStatusUpdate,
		CreatedAt: createdAt,
	}
}

func TestStoreMemory_SelfSearchDistanceNearZero(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	vec := []float32{0.5, 0.1, -0.3}
	require.NoError(t, store.StoreMemory(ctx, testMemory("m1", vec, time.Now().UTC())))

	results, err := store.SearchMemories(ctx, vec, "", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].Memory.ID)
	assert.Less(t, results[0].Distance, 1e-4,
		"distance of a memory to its own vector must be approximately zero")
}

func TestStoreMemory_RejectsDimensionMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.StoreMemory(ctx, testMemory("m1", []float32{1, 2}, time.Now()))
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	_, err = store.SearchMemories(ctx, []float32{1, 2, 3, 4}, "", 5)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestStoreMemory_RejectsInvalidInput(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := testMemory("m1", []float32{1, 0, 0}, time.Now())
	mem.Content = ""
	assert.ErrorIs(t, store.StoreMemory(ctx, mem), storage.ErrInvalidInput)

	mem = testMemory("m2", []float32{1, 0, 0}, time.Now())
	mem.Type = "bogus"
	assert.ErrorIs(t, store.StoreMemory(ctx, mem), storage.ErrInvalidInput)

	mem = testMemory("", []float32{1, 0, 0}, time.Now())
	assert.ErrorIs(t, store.StoreMemory(ctx, mem), storage.ErrInvalidInput)
}

func TestSearchMemories_EmptyStore(t *testing.T) {
	store := newTestStore(t)

	results, err := store.SearchMemories(context.Background(), []float32{1, 0, 0}, "", 5)
	require.NoError(t, err, "empty store must not error")
	assert.Empty(t, results)
}

func TestSearchMemories_OrdersByDistance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// near is almost parallel to the query, far is orthogonal.
	require.NoError(t, store.StoreMemory(ctx, testMemory("far", []float32{0, 1, 0}, now)))
	require.NoError(t, store.StoreMemory(ctx, testMemory("near", []float32{0.9, 0.1, 0}, now)))

	results, err := store.SearchMemories(ctx, []float32{1, 0, 0}, "", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].Memory.ID)
	assert.Equal(t, "far", results[1].Memory.ID)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestSearchMemories_ReturnsStoredVector(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	vec := []float32{0.5, 0.1, -0.3}
	require.NoError(t, store.StoreMemory(ctx, testMemory("m1", vec, time.Now().UTC())))

	results, err := store.SearchMemories(ctx, vec, "", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, vec, results[0].Memory.Vector,
		"search results carry the stored embedding")
}

func TestSearchMemories_TiesBreakNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	vec := []float32{1, 0, 0}
	older := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	require.NoError(t, store.StoreMemory(ctx, testMemory("older", vec, older)))
	require.NoError(t, store.StoreMemory(ctx, testMemory("newer", vec, newer)))

	results, err := store.SearchMemories(ctx, vec, "", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "newer", results[0].Memory.ID,
		"equal distances must rank the newer memory first")
}

func TestSearchMemories_TypeFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	habit := testMemory("h1", []float32{1, 0, 0}, now)
	habit.Type = types.MemoryHabit
	require.NoError(t, store.StoreMemory(ctx, habit))
	require.NoError(t, store.StoreMemory(ctx, testMemory("s1", []float32{1, 0, 0}, now)))

	results, err := store.SearchMemories(ctx, []float32{1, 0, 0}, types.MemoryHabit, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "h1", results[0].Memory.ID)
}

func TestSearchMemories_LimitApplied(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		mem := testMemory(id, []float32{1, 0, 0}, time.Now().UTC().Add(time.Duration(i)*time.Second))
		require.NoError(t, store.StoreMemory(ctx, mem))
	}

	results, err := store.SearchMemories(ctx, []float32{1, 0, 0}, "", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrieveByRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.StoreMemory(ctx, testMemory("inside", []float32{1, 0, 0}, base)))
	require.NoError(t, store.StoreMemory(ctx, testMemory("before", []float32{1, 0, 0}, base.Add(-48*time.Hour))))

	got, err := store.RetrieveByRange(ctx, base.Add(-time.Hour), base.Add(time.Hour), "", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "inside", got[0].ID)
}

func TestReminders_PendingAndFired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	soon := &types.Reminder{ID: "r1", Content: "stand up", RemindAt: time.Now().Add(time.Minute)}
	later := &types.Reminder{ID: "r2", Content: "ship it", RemindAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.SaveReminder(ctx, later))
	require.NoError(t, store.SaveReminder(ctx, soon))

	pending, err := store.PendingReminders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "r1", pending[0].ID, "pending reminders must be ordered by remind_at ascending")

	require.NoError(t, store.MarkReminderFired(ctx, "r1"))
	pending, err = store.PendingReminders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r2", pending[0].ID)
}

func TestMarkReminderFired_UnknownID(t *testing.T) {
	store := newTestStore(t)
	err := store.MarkReminderFired(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordRanges_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	start, end := now.Add(-time.Hour), now.Add(time.Hour)

	require.NoError(t, store.SaveExpense(ctx, &types.Expense{
		ID: "e1", Amount: 250, Currency: "INR", Category: "food", Description: "lunch",
	}))
	require.NoError(t, store.SaveHabit(ctx, &types.Habit{ID: "h1", Name: "exercise"}))
	require.NoError(t, store.SaveJournal(ctx, &types.JournalEntry{
		ID: "j1", Content: "good day", Sentiment: "positive",
	}))
	require.NoError(t, store.SaveStatus(ctx, &types.StatusUpdate{
		ID: "s1", Content: "refactoring the parser", Source: "chat",
	}))
	require.NoError(t, store.SaveCommit(ctx, &types.Commit{
		ID: "c1", SHA: "abc123", Repo: "work-tracker",
		Summary: types.CommitSummary{
			FilesModified: []string{"main.go"},
			KeyChanges:    []string{"wire scheduler"},
			Purpose:       "wire the scheduler into main",
		},
	}))

	expenses, err := store.ExpensesByRange(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, 250.0, expenses[0].Amount)
	assert.Equal(t, "food", expenses[0].Category)

	habits, err := store.HabitsByRange(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, habits, 1)
	assert.Equal(t, "exercise", habits[0].Name)

	journals, err := store.JournalsByRange(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, journals, 1)
	assert.Equal(t, "positive", journals[0].Sentiment)

	statuses, err := store.StatusByRange(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "chat", statuses[0].Source)

	commits, err := store.CommitsByRange(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "wire the scheduler into main", commits[0].Summary.Purpose)
}

func TestLogCompletion_Persists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := &types.CompletionLog{
		ID:       "log1",
		Function: "classify_intent",
		Model:    "test-model",
		InputMessages: []map[string]string{
			{"role": "user", "content": "remind me at 5"},
		},
		OutputRaw:  `{"intent_type":"reminder"}`,
		DurationMS: 42,
	}
	require.NoError(t, store.LogCompletion(ctx, entry))

	// A second entry recording a failure must also be accepted.
	require.NoError(t, store.LogCompletion(ctx, &types.CompletionLog{
		ID:       "log2",
		Function: "extract_reminder",
		Error:    "circuit breaker is open",
	}))
}
