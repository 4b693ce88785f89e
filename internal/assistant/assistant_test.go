package assistant_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumar-shivang/work-tracker/internal/assistant"
	"github.com/kumar-shivang/work-tracker/internal/conversation"
	"github.com/kumar-shivang/work-tracker/internal/executor"
	"github.com/kumar-shivang/work-tracker/internal/intent"
	"github.com/kumar-shivang/work-tracker/internal/llm"
	"github.com/kumar-shivang/work-tracker/internal/memory"
	"github.com/kumar-shivang/work-tracker/internal/pending"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

// scriptedCompleter answers by function name and keeps the prompts it saw.
type scriptedCompleter struct {
	responses map[string]string
	errs      map[string]error
	prompts   map[string][][]llm.Message
}

func (s *scriptedCompleter) Complete(_ context.Context, function string, messages []llm.Message, _ llm.Schema) (string, error) {
	if s.prompts == nil {
		s.prompts = make(map[string][][]llm.Message)
	}
	s.prompts[function] = append(s.prompts[function], messages)
	if err, ok := s.errs[function]; ok {
		return "", err
	}
	if resp, ok := s.responses[function]; ok {
		return resp, nil
	}
	return "", errors.New("unscripted function: " + function)
}

// fakeRecords is an in-memory record store.
type fakeRecords struct {
	reminders []*types.Reminder
	statuses  []*types.StatusUpdate
	expenses  []types.Expense
	journals  []types.JournalEntry
	dayStats  []types.StatusUpdate
}

func (f *fakeRecords) SaveReminder(_ context.Context, r *types.Reminder) error {
	f.reminders = append(f.reminders, r)
	return nil
}
func (f *fakeRecords) SaveExpense(context.Context, *types.Expense) error { return nil }
func (f *fakeRecords) SaveHabit(context.Context, *types.Habit) error     { return nil }
func (f *fakeRecords) SaveJournal(context.Context, *types.JournalEntry) error {
	return nil
}
func (f *fakeRecords) SaveStatus(_ context.Context, s *types.StatusUpdate) error {
	f.statuses = append(f.statuses, s)
	return nil
}
func (f *fakeRecords) SaveCommit(context.Context, *types.Commit) error            { return nil }
func (f *fakeRecords) PendingReminders(context.Context) ([]types.Reminder, error) { return nil, nil }
func (f *fakeRecords) MarkReminderFired(context.Context, string) error            { return nil }
func (f *fakeRecords) CommitsByRange(context.Context, time.Time, time.Time) ([]types.Commit, error) {
	return nil, nil
}
func (f *fakeRecords) ExpensesByRange(context.Context, time.Time, time.Time) ([]types.Expense, error) {
	return f.expenses, nil
}
func (f *fakeRecords) HabitsByRange(context.Context, time.Time, time.Time) ([]types.Habit, error) {
	return nil, nil
}
func (f *fakeRecords) JournalsByRange(context.Context, time.Time, time.Time) ([]types.JournalEntry, error) {
	return f.journals, nil
}
func (f *fakeRecords) StatusByRange(context.Context, time.Time, time.Time) ([]types.StatusUpdate, error) {
	return f.dayStats, nil
}

// captureSummaries records the daily summary writes.
type captureSummaries struct {
	date  time.Time
	text  string
	stats memory.SummaryStats
}

func (c *captureSummaries) DailySummary(_ context.Context, date time.Time, text string, stats memory.SummaryStats) (*types.Memory, error) {
	c.date, c.text, c.stats = date, text, stats
	return &types.Memory{ID: "summary"}, nil
}

func newAssistant(t *testing.T, completer llm.Completer, records *fakeRecords, allowed ...string) (*assistant.Assistant, *pending.Store) {
	t.Helper()
	pendingStore := pending.New()
	asst := assistant.New(assistant.Deps{
		Completer:       completer,
		Pipeline:        intent.NewPipeline(completer, time.UTC),
		Composer:        conversation.New(nil),
		Pending:         pendingStore,
		Executor:        executor.New(records, nil, time.UTC),
		Records:         records,
		Summaries:       &captureSummaries{},
		Currency:        "INR",
		AllowedSessions: allowed,
	})
	return asst, pendingStore
}

func TestHandleCommand_ProposesAction(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"classify_intent":  `{"intent_type":"reminder"}`,
		"extract_reminder": `{"content":"stretch","datetime":"2026-09-01T18:00:00Z"}`,
	}}
	records := &fakeRecords{}
	asst, pendingStore := newAssistant(t, completer, records)

	reply, err := asst.HandleCommand(context.Background(), "s1", "remind me to stretch at 6")
	require.NoError(t, err)
	require.NotEmpty(t, reply.PendingID)
	assert.Contains(t, reply.Text, "Confirm?")

	record, ok := pendingStore.Get(reply.PendingID)
	require.True(t, ok)
	assert.Equal(t, types.ActionReminder, record.Kind)
	assert.Empty(t, records.reminders, "nothing is persisted before confirmation")
}

func TestHandleCallback_ConfirmExecutesOnce(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"classify_intent":  `{"intent_type":"reminder"}`,
		"extract_reminder": `{"content":"stretch","datetime":"2099-01-01T10:00:00Z"}`,
	}}
	records := &fakeRecords{}
	asst, _ := newAssistant(t, completer, records)
	ctx := context.Background()

	reply, err := asst.HandleCommand(ctx, "s1", "remind me")
	require.NoError(t, err)

	confirmed, err := asst.HandleCallback(ctx, "s1", "confirm", reply.PendingID)
	require.NoError(t, err)
	assert.Contains(t, confirmed.Text, "Reminder set")
	require.Len(t, records.reminders, 1)

	// Second confirm on the same ticket must not execute again.
	again, err := asst.HandleCallback(ctx, "s1", "confirm", reply.PendingID)
	require.NoError(t, err)
	assert.Contains(t, again.Text, "expired or was already handled")
	assert.Len(t, records.reminders, 1)
}

func TestHandleCallback_CancelDiscards(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"classify_intent":  `{"intent_type":"reminder"}`,
		"extract_reminder": `{"content":"stretch","datetime":"2099-01-01T10:00:00Z"}`,
	}}
	records := &fakeRecords{}
	asst, _ := newAssistant(t, completer, records)
	ctx := context.Background()

	reply, err := asst.HandleCommand(ctx, "s1", "remind me")
	require.NoError(t, err)

	cancelled, err := asst.HandleCallback(ctx, "s1", "cancel", reply.PendingID)
	require.NoError(t, err)
	assert.Contains(t, cancelled.Text, "Cancelled")
	assert.Empty(t, records.reminders)

	// Cancel consumed the ticket; confirm finds nothing.
	after, err := asst.HandleCallback(ctx, "s1", "confirm", reply.PendingID)
	require.NoError(t, err)
	assert.Contains(t, after.Text, "expired or was already handled")
}

func TestHandleCallback_UnknownTicket(t *testing.T) {
	asst, _ := newAssistant(t, &scriptedCompleter{}, &fakeRecords{})

	reply, err := asst.HandleCallback(context.Background(), "s1", "confirm", "nope1234")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "expired or was already handled")
}

func TestHandleMessage_EmbeddedActionProposed(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"chat_response": `{"response_text":"Sure, logging that.","action":{"type":"expense","amount":120,"currency":"INR","category":"transport","content":"auto ride"}}`,
	}}
	asst, pendingStore := newAssistant(t, completer, &fakeRecords{})

	reply, err := asst.HandleMessage(context.Background(), "s1", "spent 120 on an auto")
	require.NoError(t, err)
	require.NotEmpty(t, reply.PendingID)
	assert.Contains(t, reply.Text, "Sure, logging that.")
	assert.Contains(t, reply.Text, "Confirm?")

	record, ok := pendingStore.Get(reply.PendingID)
	require.True(t, ok)
	assert.Equal(t, types.ActionExpense, record.Kind)
	assert.Equal(t, 120.0, record.Amount)
}

func TestHandleMessage_PromptCarriesUserTurnOnce(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"chat_response": `{"response_text":"Got it."}`,
	}}
	composer := conversation.New(nil)
	asst := assistant.New(assistant.Deps{
		Completer: completer,
		Pipeline:  intent.NewPipeline(completer, time.UTC),
		Composer:  composer,
		Pending:   pending.New(),
		Executor:  executor.New(&fakeRecords{}, nil, time.UTC),
		Records:   &fakeRecords{},
		Summaries: &captureSummaries{},
	})

	msg := "spent 120 on an auto"
	_, err := asst.HandleMessage(context.Background(), "s1", msg)
	require.NoError(t, err)

	require.Len(t, completer.prompts["chat_response"], 1)
	count := 0
	for _, m := range completer.prompts["chat_response"][0] {
		if m.Role == "user" && m.Content == msg {
			count++
		}
	}
	assert.Equal(t, 1, count, "the inbound message must appear in the prompt exactly once")

	// The turn still lands in history for the next exchange.
	turns := composer.History("s1")
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, msg, turns[0].Content)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)
}

func TestHandleMessage_NoActionIsPlainReply(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"chat_response": `{"response_text":"Hello! How is the day going?"}`,
	}}
	asst, pendingStore := newAssistant(t, completer, &fakeRecords{})

	reply, err := asst.HandleMessage(context.Background(), "s1", "hey")
	require.NoError(t, err)
	assert.Empty(t, reply.PendingID)
	assert.Equal(t, "Hello! How is the day going?", reply.Text)
	assert.Equal(t, 0, pendingStore.Len())
}

func TestHandleMessage_InvalidEmbeddedActionDropped(t *testing.T) {
	// The embedded expense is missing its amount; the reply must survive
	// without a proposal.
	completer := &scriptedCompleter{responses: map[string]string{
		"chat_response": `{"response_text":"Noted.","action":{"type":"expense","currency":"INR"}}`,
	}}
	asst, pendingStore := newAssistant(t, completer, &fakeRecords{})

	reply, err := asst.HandleMessage(context.Background(), "s1", "spent something")
	require.NoError(t, err)
	assert.Empty(t, reply.PendingID)
	assert.Equal(t, 0, pendingStore.Len())
}

func TestHandleMessage_DegradedPathLogsFallbackStatus(t *testing.T) {
	// Chat and both pipeline stages fail: the message must still land as a
	// fallback status update.
	completer := &scriptedCompleter{errs: map[string]error{
		"chat_response":         errors.New("down"),
		"classify_intent":       errors.New("down"),
		"extract_status_update": errors.New("down"),
	}}
	records := &fakeRecords{}
	asst, _ := newAssistant(t, completer, records)

	msg := "deployed the fix to staging"
	reply, err := asst.HandleMessage(context.Background(), "s1", msg)
	require.NoError(t, err)
	assert.Empty(t, reply.PendingID)

	require.Len(t, records.statuses, 1)
	assert.Equal(t, msg, records.statuses[0].Content, "the raw message is preserved verbatim")
	assert.Equal(t, "fallback", records.statuses[0].Source)
}

func TestAllowList_RejectsUnknownSession(t *testing.T) {
	asst, _ := newAssistant(t, &scriptedCompleter{}, &fakeRecords{}, "alice")

	_, err := asst.HandleMessage(context.Background(), "mallory", "hi")
	assert.ErrorIs(t, err, assistant.ErrSessionNotAllowed)

	_, err = asst.HandleCallback(context.Background(), "mallory", "confirm", "tick1234")
	assert.ErrorIs(t, err, assistant.ErrSessionNotAllowed)
}

func TestCheckIn_CannedOnFailure(t *testing.T) {
	completer := &scriptedCompleter{errs: map[string]error{"check_in": errors.New("down")}}
	asst, _ := newAssistant(t, completer, &fakeRecords{})

	text := asst.CheckIn(context.Background())
	assert.Contains(t, text, "check-in")
}

func TestRunDailySummary_AggregatesStats(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"daily_summary": `{"content":"A productive day with steady progress."}`,
	}}
	records := &fakeRecords{
		expenses: []types.Expense{
			{ID: "e1", Amount: 100, Currency: "INR"},
			{ID: "e2", Amount: 200, Currency: "INR"},
			{ID: "e3", Amount: 50, Currency: "USD"},
		},
		journals: []types.JournalEntry{{ID: "j1", Content: "good", Sentiment: "positive"}},
		dayStats: []types.StatusUpdate{{ID: "s1", Content: "shipped"}},
	}

	summaries := &captureSummaries{}
	pendingStore := pending.New()
	asst := assistant.New(assistant.Deps{
		Completer: completer,
		Pipeline:  intent.NewPipeline(completer, time.UTC),
		Composer:  conversation.New(nil),
		Pending:   pendingStore,
		Executor:  executor.New(records, nil, time.UTC),
		Records:   records,
		Summaries: summaries,
		Currency:  "INR",
	})

	text, err := asst.RunDailySummary(context.Background(), time.Date(2026, 9, 1, 23, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "A productive day with steady progress.", text)

	assert.Equal(t, 3, summaries.stats.NumExpenses)
	assert.Equal(t, 300.0, summaries.stats.TotalExpenses, "only the configured currency is totalled")
	assert.Equal(t, 1, summaries.stats.NumJournals)
	assert.Equal(t, 1, summaries.stats.NumStatus)
}
