package types

import (
	"errors"
	"fmt"
	"time"
)

// ActionKind identifies the variant of an ActionRecord.
type ActionKind string

const (
	ActionReminder     ActionKind = "reminder"
	ActionExpense      ActionKind = "expense"
	ActionHabit        ActionKind = "habit"
	ActionJournal      ActionKind = "journal"
	ActionStatusUpdate ActionKind = "status_update"
	ActionNone         ActionKind = "none"
)

// ErrInvalidAction indicates an action record whose required fields for its
// kind are missing or malformed. Such a record must never be executed.
var ErrInvalidAction = errors.New("invalid action record")

// ActionRecord is a typed, validated structured action extracted from a user
// message. Kind determines which other fields are required; Validate enforces
// the per-kind shape so the executor only ever sees well-formed records.
type ActionRecord struct {
	Kind    ActionKind `json:"type"`
	Content string     `json:"content,omitempty"`

	// Reminder fields
	RemindAt time.Time `json:"remind_at,omitempty"`

	// Expense fields
	Amount   float64 `json:"amount,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Category string  `json:"category,omitempty"`

	// Habit fields
	HabitName string `json:"habit_name,omitempty"`

	// Journal fields
	Sentiment string `json:"sentiment,omitempty"`

	// Status update fields
	Source string `json:"source,omitempty"`
}

// Validate checks the per-kind required fields. A nil return means the record
// is safe to hand to the executor.
func (r ActionRecord) Validate() error {
	switch r.Kind {
	case ActionReminder:
		if r.Content == "" {
			return fmt.Errorf("%w: reminder requires content", ErrInvalidAction)
		}
		if r.RemindAt.IsZero() {
			return fmt.Errorf("%w: reminder requires a target time", ErrInvalidAction)
		}
	case ActionExpense:
		if r.Amount <= 0 {
			return fmt.Errorf("%w: expense requires a positive amount", ErrInvalidAction)
		}
		if r.Currency == "" {
			return fmt.Errorf("%w: expense requires a currency", ErrInvalidAction)
		}
	case ActionHabit:
		if r.HabitName == "" {
			return fmt.Errorf("%w: habit requires a habit name", ErrInvalidAction)
		}
	case ActionJournal:
		if r.Content == "" {
			return fmt.Errorf("%w: journal requires content", ErrInvalidAction)
		}
	case ActionStatusUpdate:
		if r.Content == "" {
			return fmt.Errorf("%w: status update requires content", ErrInvalidAction)
		}
	case ActionNone:
		// Nothing to execute; always valid.
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, r.Kind)
	}
	return nil
}

// StatusFallback builds the synthetic status_update record used whenever
// intent resolution cannot produce a well-formed action. The raw message is
// carried verbatim so nothing the user said is silently discarded.
func StatusFallback(message string) ActionRecord {
	return ActionRecord{
		Kind:    ActionStatusUpdate,
		Content: message,
		Source:  "fallback",
	}
}
