// Package storage provides composable storage interfaces for the work-tracker
// core. The layer is split into small, focused interfaces so backends can be
// implemented independently and swapped behind the same contracts.
package storage

import (
	"context"
	"time"

	"github.com/kumar-shivang/work-tracker/pkg/types"
)

// MemoryStore is the vector memory store: an append-only log of embedded
// records answering nearest-neighbor and time-range queries. There is no
// update or delete path; this avoids consistency issues between the vector
// index and the row data.
type MemoryStore interface {
	// StoreMemory appends a new immutable memory. It fails with
	// ErrDimensionMismatch when the vector's length does not match the
	// store's fixed dimension, and with ErrInvalidInput for missing content
	// or an unknown memory type. Persistence failures are propagated, not
	// retried; retry policy belongs to the caller.
	StoreMemory(ctx context.Context, memory *types.Memory) error

	// SearchMemories returns up to limit memories ordered by ascending cosine
	// distance to the query vector, optionally restricted to typeFilter
	// (empty string means no filter). Ties are broken by most recent
	// created_at first. An empty store yields an empty slice, not an error.
	SearchMemories(ctx context.Context, query []float32, typeFilter types.MemoryType, limit int) ([]types.ScoredMemory, error)

	// RetrieveByRange returns memories with created_at in [start, end],
	// most recent first, capped at limit.
	RetrieveByRange(ctx context.Context, start, end time.Time, typeFilter types.MemoryType, limit int) ([]types.Memory, error)

	// Dimension returns the fixed embedding dimension of the store.
	Dimension() int
}

// RecordStore persists the authoritative domain rows that confirmed actions
// and webhook events produce.
type RecordStore interface {
	SaveReminder(ctx context.Context, r *types.Reminder) error
	SaveExpense(ctx context.Context, e *types.Expense) error
	SaveHabit(ctx context.Context, h *types.Habit) error
	SaveJournal(ctx context.Context, j *types.JournalEntry) error
	SaveStatus(ctx context.Context, s *types.StatusUpdate) error
	SaveCommit(ctx context.Context, c *types.Commit) error

	// PendingReminders returns unfired reminders ordered by remind_at
	// ascending, for the dispatcher to poll.
	PendingReminders(ctx context.Context) ([]types.Reminder, error)

	// MarkReminderFired flags a reminder as delivered.
	// Returns ErrNotFound when the id does not exist.
	MarkReminderFired(ctx context.Context, id string) error

	// Range queries used by the nightly summary aggregation.
	CommitsByRange(ctx context.Context, start, end time.Time) ([]types.Commit, error)
	ExpensesByRange(ctx context.Context, start, end time.Time) ([]types.Expense, error)
	HabitsByRange(ctx context.Context, start, end time.Time) ([]types.Habit, error)
	JournalsByRange(ctx context.Context, start, end time.Time) ([]types.JournalEntry, error)
	StatusByRange(ctx context.Context, start, end time.Time) ([]types.StatusUpdate, error)
}

// AuditLog records every completion-service call, success or failure.
type AuditLog interface {
	LogCompletion(ctx context.Context, entry *types.CompletionLog) error
}

// Store is the full durable-storage capability a backend must provide.
type Store interface {
	MemoryStore
	RecordStore
	AuditLog

	// Close releases any resources held by the store.
	Close() error
}
