// Package executor turns confirmed action records into durable effects: the
// authoritative domain row is written first, then a memory is derived from it
// best-effort. A memory derivation failure never rolls back or fails the
// domain write.
package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kumar-shivang/work-tracker/internal/storage"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

// MemoryDeriver is the slice of the memory service the executor uses to
// derive memories from persisted records.
type MemoryDeriver interface {
	FromReminder(ctx context.Context, r *types.Reminder) (*types.Memory, error)
	FromExpense(ctx context.Context, e *types.Expense) (*types.Memory, error)
	FromHabit(ctx context.Context, h *types.Habit) (*types.Memory, error)
	FromJournal(ctx context.Context, j *types.JournalEntry) (*types.Memory, error)
	FromStatus(ctx context.Context, s *types.StatusUpdate) (*types.Memory, error)
}

// Outcome reports what an execution did, in user-facing terms.
type Outcome struct {
	Kind     types.ActionKind
	RecordID string
	// Text is the conversational confirmation rendered for the user.
	Text string
}

// Executor applies validated action records against the record store.
type Executor struct {
	records  storage.RecordStore
	memories MemoryDeriver
	loc      *time.Location
	now      func() time.Time
}

// New creates an executor. memories may be nil, which disables memory
// derivation (used by tests that only exercise the domain writes).
func New(records storage.RecordStore, memories MemoryDeriver, loc *time.Location) *Executor {
	if loc == nil {
		loc = time.UTC
	}
	return &Executor{records: records, memories: memories, loc: loc, now: time.Now}
}

// Execute persists the record's domain effect and returns a conversational
// outcome. The record must already validate; a storage failure is fatal to
// the action and returned to the caller, while memory derivation failures are
// logged and swallowed.
func (e *Executor) Execute(ctx context.Context, record types.ActionRecord, sessionID string) (Outcome, error) {
	if err := record.Validate(); err != nil {
		return Outcome{}, err
	}

	switch record.Kind {
	case types.ActionReminder:
		return e.executeReminder(ctx, record, sessionID)
	case types.ActionExpense:
		return e.executeExpense(ctx, record)
	case types.ActionHabit:
		return e.executeHabit(ctx, record)
	case types.ActionJournal:
		return e.executeJournal(ctx, record)
	case types.ActionStatusUpdate:
		return e.executeStatus(ctx, record)
	case types.ActionNone:
		return Outcome{Kind: types.ActionNone}, nil
	default:
		return Outcome{}, fmt.Errorf("%w: unknown kind %q", types.ErrInvalidAction, record.Kind)
	}
}

func (e *Executor) executeReminder(ctx context.Context, record types.ActionRecord, sessionID string) (Outcome, error) {
	now := e.now().UTC()
	remindAt := record.RemindAt.UTC()

	// A target time already in the past means "remind now": the reminder is
	// stored due immediately rather than rejected or silently dropped.
	past := !remindAt.After(now)
	if past {
		remindAt = now
	}

	r := &types.Reminder{
		ID:        ulid.Make().String(),
		Content:   record.Content,
		RemindAt:  remindAt,
		SessionID: sessionID,
		CreatedAt: now,
	}
	if err := e.records.SaveReminder(ctx, r); err != nil {
		return Outcome{}, fmt.Errorf("executor: save reminder: %w", err)
	}
	e.derive(ctx, "reminder", func() error {
		_, err := e.memories.FromReminder(ctx, r)
		return err
	})

	text := fmt.Sprintf("Reminder set for %s: %s", remindAt.In(e.loc).Format("Mon, 02 Jan 2006 15:04"), r.Content)
	if past {
		text = fmt.Sprintf("That time has already passed, so I'll remind you now: %s", r.Content)
	}
	return Outcome{Kind: types.ActionReminder, RecordID: r.ID, Text: text}, nil
}

func (e *Executor) executeExpense(ctx context.Context, record types.ActionRecord) (Outcome, error) {
	exp := &types.Expense{
		ID:          ulid.Make().String(),
		Amount:      record.Amount,
		Currency:    record.Currency,
		Category:    record.Category,
		Description: record.Content,
		CreatedAt:   e.now().UTC(),
	}
	if err := e.records.SaveExpense(ctx, exp); err != nil {
		return Outcome{}, fmt.Errorf("executor: save expense: %w", err)
	}
	e.derive(ctx, "expense", func() error {
		_, err := e.memories.FromExpense(ctx, exp)
		return err
	})

	text := fmt.Sprintf("Logged expense: %.2f %s (%s)", exp.Amount, exp.Currency, exp.Category)
	if exp.Category == "" {
		text = fmt.Sprintf("Logged expense: %.2f %s", exp.Amount, exp.Currency)
	}
	return Outcome{Kind: types.ActionExpense, RecordID: exp.ID, Text: text}, nil
}

func (e *Executor) executeHabit(ctx context.Context, record types.ActionRecord) (Outcome, error) {
	now := e.now().UTC()
	h := &types.Habit{
		ID:        ulid.Make().String(),
		Name:      record.HabitName,
		LoggedAt:  now,
		CreatedAt: now,
	}
	if err := e.records.SaveHabit(ctx, h); err != nil {
		return Outcome{}, fmt.Errorf("executor: save habit: %w", err)
	}
	e.derive(ctx, "habit", func() error {
		_, err := e.memories.FromHabit(ctx, h)
		return err
	})
	return Outcome{
		Kind:     types.ActionHabit,
		RecordID: h.ID,
		Text:     fmt.Sprintf("Habit logged: %s", h.Name),
	}, nil
}

func (e *Executor) executeJournal(ctx context.Context, record types.ActionRecord) (Outcome, error) {
	j := &types.JournalEntry{
		ID:        ulid.Make().String(),
		Content:   record.Content,
		Sentiment: record.Sentiment,
		CreatedAt: e.now().UTC(),
	}
	if err := e.records.SaveJournal(ctx, j); err != nil {
		return Outcome{}, fmt.Errorf("executor: save journal: %w", err)
	}
	e.derive(ctx, "journal", func() error {
		_, err := e.memories.FromJournal(ctx, j)
		return err
	})
	return Outcome{
		Kind:     types.ActionJournal,
		RecordID: j.ID,
		Text:     "Journal entry saved.",
	}, nil
}

func (e *Executor) executeStatus(ctx context.Context, record types.ActionRecord) (Outcome, error) {
	source := record.Source
	if source == "" {
		source = "chat"
	}
	st := &types.StatusUpdate{
		ID:        ulid.Make().String(),
		Content:   record.Content,
		Source:    source,
		CreatedAt: e.now().UTC(),
	}
	if err := e.records.SaveStatus(ctx, st); err != nil {
		return Outcome{}, fmt.Errorf("executor: save status: %w", err)
	}
	e.derive(ctx, "status", func() error {
		_, err := e.memories.FromStatus(ctx, st)
		return err
	})
	return Outcome{
		Kind:     types.ActionStatusUpdate,
		RecordID: st.ID,
		Text:     "Status update logged.",
	}, nil
}

// derive runs a memory derivation best-effort. Failures are logged; the
// domain write already succeeded and stands regardless.
func (e *Executor) derive(ctx context.Context, what string, fn func() error) {
	if e.memories == nil {
		return
	}
	if err := fn(); err != nil {
		log.Printf("executor: %s memory derivation failed (record kept): %v", what, err)
	}
}
