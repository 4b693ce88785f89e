// Package memory implements the vector memory store service: it embeds text
// via the embedding capability, persists immutable memories, and answers
// semantic and time-range queries. Derivation helpers turn each domain
// record kind into the formatted memory content the retrieval side expects.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kumar-shivang/work-tracker/internal/llm"
	"github.com/kumar-shivang/work-tracker/internal/storage"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

const timestampLayout = "2006-01-02 15:04"

// Service is the vector memory store facade.
type Service struct {
	embedder llm.Embedder
	store    storage.MemoryStore
	loc      *time.Location
	now      func() time.Time
}

// NewService creates a memory service. loc controls the timestamps rendered
// into memory content; nil means UTC.
func NewService(embedder llm.Embedder, store storage.MemoryStore, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{embedder: embedder, store: store, loc: loc, now: time.Now}
}

// Remember embeds content and appends it as an immutable memory. IDs are
// ULIDs, so append order matches lexicographic id order.
func (s *Service) Remember(ctx context.Context, content string, memType types.MemoryType, metadata map[string]interface{}) (*types.Memory, error) {
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("memory: embedding failed: %w", err)
	}

	mem := &types.Memory{
		ID:        ulid.Make().String(),
		Content:   content,
		Vector:    vec,
		Type:      memType,
		Metadata:  metadata,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.StoreMemory(ctx, mem); err != nil {
		return nil, fmt.Errorf("memory: store failed: %w", err)
	}
	return mem, nil
}

// Search embeds the query text and returns up to limit memories ordered by
// ascending cosine distance, optionally restricted to typeFilter.
func (s *Service) Search(ctx context.Context, query string, typeFilter types.MemoryType, limit int) ([]types.ScoredMemory, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memory: query embedding failed: %w", err)
	}
	return s.store.SearchMemories(ctx, vec, typeFilter, limit)
}

// RetrieveByRange returns memories created in [start, end], newest first.
func (s *Service) RetrieveByRange(ctx context.Context, start, end time.Time, typeFilter types.MemoryType, limit int) ([]types.Memory, error) {
	return s.store.RetrieveByRange(ctx, start, end, typeFilter, limit)
}

// stamp renders a record timestamp in the service timezone.
func (s *Service) stamp(t time.Time) string {
	return t.In(s.loc).Format(timestampLayout)
}

// FromCommit derives and stores a memory from a commit with rich context.
func (s *Service) FromCommit(ctx context.Context, c *types.Commit) (*types.Memory, error) {
	content := fmt.Sprintf(`[%s] Commit: %s
Repository: %s
Branch: %s
Author: %s
Purpose: %s
Key Changes:
%s
Files: %s`,
		s.stamp(c.CreatedAt), c.Title, c.Repo, c.Branch, c.Author,
		c.Summary.Purpose,
		strings.Join(c.Summary.KeyChanges, "\n"),
		strings.Join(c.Summary.FilesModified, ", "))

	return s.Remember(ctx, content, types.MemoryCommit, map[string]interface{}{
		"repo":        c.Repo,
		"sha":         c.SHA,
		"branch":      c.Branch,
		"author":      c.Author,
		"files_count": len(c.Summary.FilesModified),
	})
}

// FromReminder derives and stores a memory from a reminder.
func (s *Service) FromReminder(ctx context.Context, r *types.Reminder) (*types.Memory, error) {
	content := fmt.Sprintf("[%s] Reminder: %s", s.stamp(r.RemindAt), r.Content)
	return s.Remember(ctx, content, types.MemoryReminder, map[string]interface{}{
		"session_id": r.SessionID,
		"fired":      r.Fired,
		"remind_at":  r.RemindAt.UTC().Format(time.RFC3339),
	})
}

// FromExpense derives and stores a memory from an expense.
func (s *Service) FromExpense(ctx context.Context, e *types.Expense) (*types.Memory, error) {
	content := fmt.Sprintf("[%s] Spent %.2f %s on %s: %s",
		s.stamp(e.CreatedAt), e.Amount, e.Currency, e.Category, e.Description)
	return s.Remember(ctx, content, types.MemoryExpense, map[string]interface{}{
		"amount":   e.Amount,
		"currency": e.Currency,
		"category": e.Category,
	})
}

// FromHabit derives and stores a memory from a habit log.
func (s *Service) FromHabit(ctx context.Context, h *types.Habit) (*types.Memory, error) {
	content := fmt.Sprintf("[%s] Completed habit: %s", s.stamp(h.LoggedAt), h.Name)
	return s.Remember(ctx, content, types.MemoryHabit, map[string]interface{}{
		"habit_name": h.Name,
	})
}

// FromJournal derives and stores a memory from a journal entry.
func (s *Service) FromJournal(ctx context.Context, j *types.JournalEntry) (*types.Memory, error) {
	content := fmt.Sprintf("[%s] Journal (%s): %s", s.stamp(j.CreatedAt), j.Sentiment, j.Content)
	return s.Remember(ctx, content, types.MemoryJournal, map[string]interface{}{
		"sentiment": j.Sentiment,
	})
}

// FromStatus derives and stores a memory from a status update.
func (s *Service) FromStatus(ctx context.Context, st *types.StatusUpdate) (*types.Memory, error) {
	content := fmt.Sprintf("[%s] Status: %s", s.stamp(st.CreatedAt), st.Content)
	return s.Remember(ctx, content, types.MemoryStatusUpdate, map[string]interface{}{
		"source": st.Source,
	})
}

// SummaryStats are the aggregate counts rendered into a daily summary.
type SummaryStats struct {
	NumCommits    int     `json:"num_commits"`
	NumExpenses   int     `json:"num_expenses"`
	TotalExpenses float64 `json:"total_expenses"`
	Currency      string  `json:"currency"`
	NumJournals   int     `json:"num_journals"`
	NumHabits     int     `json:"num_habits"`
	NumStatus     int     `json:"num_status"`
}

// DailySummary derives and stores a daily_summary memory from a generated
// summary text plus aggregate stats.
func (s *Service) DailySummary(ctx context.Context, date time.Time, summaryText string, stats SummaryStats) (*types.Memory, error) {
	content := fmt.Sprintf(`Daily Summary for %s

%s

Statistics:
- Commits: %d
- Expenses: %d (%.2f %s)
- Journal entries: %d
- Habits logged: %d
- Status updates: %d`,
		date.In(s.loc).Format("2006-01-02"), summaryText,
		stats.NumCommits, stats.NumExpenses, stats.TotalExpenses, stats.Currency,
		stats.NumJournals, stats.NumHabits, stats.NumStatus)

	return s.Remember(ctx, content, types.MemoryDailySummary, map[string]interface{}{
		"date":           date.In(s.loc).Format("2006-01-02"),
		"num_commits":    stats.NumCommits,
		"num_expenses":   stats.NumExpenses,
		"total_expenses": stats.TotalExpenses,
		"currency":       stats.Currency,
		"num_journals":   stats.NumJournals,
		"num_habits":     stats.NumHabits,
		"num_status":     stats.NumStatus,
	})
}
