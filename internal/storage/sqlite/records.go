package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kumar-shivang/work-tracker/internal/storage"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

// SaveReminder inserts a reminder row.
func (s *Store) SaveReminder(ctx context.Context, r *types.Reminder) error {
	if r == nil || r.ID == "" || r.Content == "" {
		return fmt.Errorf("%w: reminder requires id and content", storage.ErrInvalidInput)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, content, remind_at, session_id, fired, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Content, r.RemindAt.UTC(), r.SessionID, boolToInt(r.Fired), r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to save reminder: %w", err)
	}
	return nil
}

// PendingReminders returns unfired reminders ordered by remind_at ascending.
func (s *Store) PendingReminders(ctx context.Context) ([]types.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, remind_at, session_id, fired, created_at
		FROM reminders WHERE fired = 0 ORDER BY remind_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query pending reminders: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanReminders(rows)
}

// MarkReminderFired flags a reminder as delivered.
func (s *Store) MarkReminderFired(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET fired = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to mark reminder fired: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SaveExpense inserts an expense row.
func (s *Store) SaveExpense(ctx context.Context, e *types.Expense) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("%w: expense requires id", storage.ErrInvalidInput)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, amount, currency, category, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Amount, e.Currency, e.Category, e.Description, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to save expense: %w", err)
	}
	return nil
}

// SaveHabit inserts a habit log row.
func (s *Store) SaveHabit(ctx context.Context, h *types.Habit) error {
	if h == nil || h.ID == "" || h.Name == "" {
		return fmt.Errorf("%w: habit requires id and name", storage.ErrInvalidInput)
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	if h.LoggedAt.IsZero() {
		h.LoggedAt = h.CreatedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habits (id, name, logged_at, created_at)
		VALUES (?, ?, ?, ?)`,
		h.ID, h.Name, h.LoggedAt.UTC(), h.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to save habit: %w", err)
	}
	return nil
}

// SaveJournal inserts a journal entry row.
func (s *Store) SaveJournal(ctx context.Context, j *types.JournalEntry) error {
	if j == nil || j.ID == "" || j.Content == "" {
		return fmt.Errorf("%w: journal entry requires id and content", storage.ErrInvalidInput)
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, content, sentiment, created_at)
		VALUES (?, ?, ?, ?)`,
		j.ID, j.Content, j.Sentiment, j.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to save journal entry: %w", err)
	}
	return nil
}

// SaveStatus inserts a status update row.
func (s *Store) SaveStatus(ctx context.Context, st *types.StatusUpdate) error {
	if st == nil || st.ID == "" || st.Content == "" {
		return fmt.Errorf("%w: status update requires id and content", storage.ErrInvalidInput)
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO status_updates (id, content, source, created_at)
		VALUES (?, ?, ?, ?)`,
		st.ID, st.Content, st.Source, st.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to save status update: %w", err)
	}
	return nil
}

// SaveCommit inserts a commit row.
func (s *Store) SaveCommit(ctx context.Context, c *types.Commit) error {
	if c == nil || c.ID == "" || c.SHA == "" {
		return fmt.Errorf("%w: commit requires id and sha", storage.ErrInvalidInput)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	summaryJSON, err := json.Marshal(c.Summary)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal commit summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commits (id, sha, repo, branch, author, message, title, summary, diff_snippet, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SHA, c.Repo, c.Branch, c.Author, c.Message, c.Title,
		string(summaryJSON), c.DiffSnippet, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to save commit: %w", err)
	}
	return nil
}

// LogCompletion appends a completion audit row.
func (s *Store) LogCompletion(ctx context.Context, entry *types.CompletionLog) error {
	if entry == nil || entry.ID == "" || entry.Function == "" {
		return fmt.Errorf("%w: completion log requires id and function", storage.ErrInvalidInput)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	messagesJSON, err := json.Marshal(entry.InputMessages)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal input messages: %w", err)
	}
	var schemaJSON []byte
	if entry.InputSchema != nil {
		schemaJSON, err = json.Marshal(entry.InputSchema)
		if err != nil {
			return fmt.Errorf("sqlite: failed to marshal input schema: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO completion_logs (id, function_name, model, input_messages, input_schema, output_raw, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Function, entry.Model, string(messagesJSON), string(schemaJSON),
		entry.OutputRaw, entry.DurationMS, entry.Error, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to log completion: %w", err)
	}
	return nil
}

// CommitsByRange returns commits created in [start, end], newest first.
func (s *Store) CommitsByRange(ctx context.Context, start, end time.Time) ([]types.Commit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sha, repo, branch, author, message, title, summary, diff_snippet, created_at
		FROM commits WHERE created_at >= ? AND created_at <= ? ORDER BY created_at DESC`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query commits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var commits []types.Commit
	for rows.Next() {
		var (
			c                            types.Commit
			branch, author, msg          sql.NullString
			title, summaryJSON, diffSnip sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.SHA, &c.Repo, &branch, &author, &msg, &title, &summaryJSON, &diffSnip, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: commit scan failed: %w", err)
		}
		c.Branch, c.Author, c.Message = branch.String, author.String, msg.String
		c.Title, c.DiffSnippet = title.String, diffSnip.String
		if summaryJSON.Valid && summaryJSON.String != "" {
			_ = json.Unmarshal([]byte(summaryJSON.String), &c.Summary)
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

// ExpensesByRange returns expenses created in [start, end], newest first.
func (s *Store) ExpensesByRange(ctx context.Context, start, end time.Time) ([]types.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, currency, category, description, created_at
		FROM expenses WHERE created_at >= ? AND created_at <= ? ORDER BY created_at DESC`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var expenses []types.Expense
	for rows.Next() {
		var e types.Expense
		var category, description sql.NullString
		if err := rows.Scan(&e.ID, &e.Amount, &e.Currency, &category, &description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: expense scan failed: %w", err)
		}
		e.Category, e.Description = category.String, description.String
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// HabitsByRange returns habit logs created in [start, end], newest first.
func (s *Store) HabitsByRange(ctx context.Context, start, end time.Time) ([]types.Habit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, logged_at, created_at
		FROM habits WHERE created_at >= ? AND created_at <= ? ORDER BY created_at DESC`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query habits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var habits []types.Habit
	for rows.Next() {
		var h types.Habit
		if err := rows.Scan(&h.ID, &h.Name, &h.LoggedAt, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: habit scan failed: %w", err)
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// JournalsByRange returns journal entries created in [start, end], newest first.
func (s *Store) JournalsByRange(ctx context.Context, start, end time.Time) ([]types.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, sentiment, created_at
		FROM journal_entries WHERE created_at >= ? AND created_at <= ? ORDER BY created_at DESC`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query journal entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []types.JournalEntry
	for rows.Next() {
		var j types.JournalEntry
		var sentiment sql.NullString
		if err := rows.Scan(&j.ID, &j.Content, &sentiment, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: journal scan failed: %w", err)
		}
		j.Sentiment = sentiment.String
		entries = append(entries, j)
	}
	return entries, rows.Err()
}

// StatusByRange returns status updates created in [start, end], newest first.
func (s *Store) StatusByRange(ctx context.Context, start, end time.Time) ([]types.StatusUpdate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, source, created_at
		FROM status_updates WHERE created_at >= ? AND created_at <= ? ORDER BY created_at DESC`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query status updates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var updates []types.StatusUpdate
	for rows.Next() {
		var st types.StatusUpdate
		var source sql.NullString
		if err := rows.Scan(&st.ID, &st.Content, &source, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: status scan failed: %w", err)
		}
		st.Source = source.String
		updates = append(updates, st)
	}
	return updates, rows.Err()
}

func scanReminders(rows *sql.Rows) ([]types.Reminder, error) {
	var reminders []types.Reminder
	for rows.Next() {
		var r types.Reminder
		var sessionID sql.NullString
		var fired int
		if err := rows.Scan(&r.ID, &r.Content, &r.RemindAt, &sessionID, &fired, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: reminder scan failed: %w", err)
		}
		r.SessionID = sessionID.String
		r.Fired = fired != 0
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
