package executor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumar-shivang/work-tracker/internal/executor"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

// fakeRecords captures saved rows and can fail on demand.
type fakeRecords struct {
	saveErr   error
	reminders []*types.Reminder
	expenses  []*types.Expense
	habits    []*types.Habit
	journals  []*types.JournalEntry
	statuses  []*types.StatusUpdate
	commits   []*types.Commit
}

func (f *fakeRecords) SaveReminder(_ context.Context, r *types.Reminder) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.reminders = append(f.reminders, r)
	return nil
}

func (f *fakeRecords) SaveExpense(_ context.Context, e *types.Expense) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.expenses = append(f.expenses, e)
	return nil
}

func (f *fakeRecords) SaveHabit(_ context.Context, h *types.Habit) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.habits = append(f.habits, h)
	return nil
}

func (f *fakeRecords) SaveJournal(_ context.Context, j *types.JournalEntry) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.journals = append(f.journals, j)
	return nil
}

func (f *fakeRecords) SaveStatus(_ context.Context, s *types.StatusUpdate) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.statuses = append(f.statuses, s)
	return nil
}

func (f *fakeRecords) SaveCommit(_ context.Context, c *types.Commit) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.commits = append(f.commits, c)
	return nil
}

func (f *fakeRecords) PendingReminders(context.Context) ([]types.Reminder, error) { return nil, nil }
func (f *fakeRecords) MarkReminderFired(context.Context, string) error            { return nil }
func (f *fakeRecords) CommitsByRange(context.Context, time.Time, time.Time) ([]types.Commit, error) {
	return nil, nil
}
func (f *fakeRecords) ExpensesByRange(context.Context, time.Time, time.Time) ([]types.Expense, error) {
	return nil, nil
}
func (f *fakeRecords) HabitsByRange(context.Context, time.Time, time.Time) ([]types.Habit, error) {
	return nil, nil
}
func (f *fakeRecords) JournalsByRange(context.Context, time.Time, time.Time) ([]types.JournalEntry, error) {
	return nil, nil
}
func (f *fakeRecords) StatusByRange(context.Context, time.Time, time.Time) ([]types.StatusUpdate, error) {
	return nil, nil
}

// fakeDeriver counts derivations and can fail on demand.
type fakeDeriver struct {
	err   error
	calls int
}

func (f *fakeDeriver) derive() (*types.Memory, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.Memory{ID: "mem"}, nil
}

func (f *fakeDeriver) FromReminder(context.Context, *types.Reminder) (*types.Memory, error) {
	return f.derive()
}
func (f *fakeDeriver) FromExpense(context.Context, *types.Expense) (*types.Memory, error) {
	return f.derive()
}
func (f *fakeDeriver) FromHabit(context.Context, *types.Habit) (*types.Memory, error) {
	return f.derive()
}
func (f *fakeDeriver) FromJournal(context.Context, *types.JournalEntry) (*types.Memory, error) {
	return f.derive()
}
func (f *fakeDeriver) FromStatus(context.Context, *types.StatusUpdate) (*types.Memory, error) {
	return f.derive()
}

func TestExecute_ReminderFuture(t *testing.T) {
	records := &fakeRecords{}
	deriver := &fakeDeriver{}
	exec := executor.New(records, deriver, time.UTC)

	remindAt := time.Now().Add(2 * time.Hour).UTC()
	outcome, err := exec.Execute(context.Background(), types.ActionRecord{
		Kind:     types.ActionReminder,
		Content:  "review the PR",
		RemindAt: remindAt,
	}, "session-1")

	require.NoError(t, err)
	assert.Equal(t, types.ActionReminder, outcome.Kind)
	assert.NotEmpty(t, outcome.RecordID)
	assert.Contains(t, outcome.Text, "Reminder set for")

	require.Len(t, records.reminders, 1)
	saved := records.reminders[0]
	assert.Equal(t, "session-1", saved.SessionID)
	assert.WithinDuration(t, remindAt, saved.RemindAt, time.Second)
	assert.Equal(t, 1, deriver.calls, "memory derived from the saved reminder")
}

func TestExecute_ReminderInPastClampsToNow(t *testing.T) {
	records := &fakeRecords{}
	exec := executor.New(records, &fakeDeriver{}, time.UTC)

	outcome, err := exec.Execute(context.Background(), types.ActionRecord{
		Kind:     types.ActionReminder,
		Content:  "submit the report",
		RemindAt: time.Now().Add(-3 * time.Hour),
	}, "s1")

	require.NoError(t, err)
	assert.Contains(t, outcome.Text, "remind you now")
	require.Len(t, records.reminders, 1)
	assert.WithinDuration(t, time.Now().UTC(), records.reminders[0].RemindAt, 2*time.Second,
		"past target times become due immediately")
}

func TestExecute_StorageFailureIsFatal(t *testing.T) {
	records := &fakeRecords{saveErr: errors.New("disk full")}
	deriver := &fakeDeriver{}
	exec := executor.New(records, deriver, time.UTC)

	_, err := exec.Execute(context.Background(), types.ActionRecord{
		Kind:      types.ActionHabit,
		HabitName: "exercise",
	}, "s1")

	require.Error(t, err)
	assert.Equal(t, 0, deriver.calls, "no memory derivation when the domain write failed")
}

func TestExecute_DerivationFailureDoesNotFailAction(t *testing.T) {
	records := &fakeRecords{}
	deriver := &fakeDeriver{err: errors.New("embedding service down")}
	exec := executor.New(records, deriver, time.UTC)

	outcome, err := exec.Execute(context.Background(), types.ActionRecord{
		Kind:    types.ActionJournal,
		Content: "long day, good progress",
	}, "s1")

	require.NoError(t, err, "a failed memory derivation must not void the domain write")
	assert.NotEmpty(t, outcome.RecordID)
	assert.Len(t, records.journals, 1)
}

func TestExecute_InvalidRecordRejected(t *testing.T) {
	exec := executor.New(&fakeRecords{}, nil, time.UTC)

	_, err := exec.Execute(context.Background(), types.ActionRecord{
		Kind: types.ActionExpense, // missing amount and currency
	}, "s1")

	assert.ErrorIs(t, err, types.ErrInvalidAction)
}

func TestExecute_StatusDefaultsSourceToChat(t *testing.T) {
	records := &fakeRecords{}
	exec := executor.New(records, nil, time.UTC)

	_, err := exec.Execute(context.Background(), types.ActionRecord{
		Kind:    types.ActionStatusUpdate,
		Content: "wrapping up for the day",
	}, "s1")

	require.NoError(t, err)
	require.Len(t, records.statuses, 1)
	assert.Equal(t, "chat", records.statuses[0].Source)
}

func TestExecute_FallbackSourcePreserved(t *testing.T) {
	records := &fakeRecords{}
	exec := executor.New(records, nil, time.UTC)

	_, err := exec.Execute(context.Background(), types.StatusFallback("raw message"), "s1")

	require.NoError(t, err)
	require.Len(t, records.statuses, 1)
	assert.Equal(t, "fallback", records.statuses[0].Source)
	assert.Equal(t, "raw message", records.statuses[0].Content)
}

func TestExecute_NoneIsNoOp(t *testing.T) {
	records := &fakeRecords{}
	exec := executor.New(records, nil, time.UTC)

	outcome, err := exec.Execute(context.Background(), types.ActionRecord{Kind: types.ActionNone}, "s1")

	require.NoError(t, err)
	assert.Empty(t, outcome.RecordID)
	assert.Empty(t, records.statuses)
}
