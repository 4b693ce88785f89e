package types

import "time"

// Domain records persisted by the record store. These are the authoritative
// rows; memories derived from them are a best-effort secondary index.

// Reminder is a scheduled reminder awaiting dispatch.
type Reminder struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	RemindAt  time.Time `json:"remind_at"`
	SessionID string    `json:"session_id,omitempty"` // chat session to deliver to
	Fired     bool      `json:"fired"`
	CreatedAt time.Time `json:"created_at"`
}

// Expense is a single logged expense.
type Expense struct {
	ID          string    `json:"id"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Habit is a single habit completion log.
type Habit struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	LoggedAt  time.Time `json:"logged_at"`
	CreatedAt time.Time `json:"created_at"`
}

// JournalEntry is a personal reflection with an optional sentiment label.
type JournalEntry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sentiment string    `json:"sentiment,omitempty"` // positive, neutral, negative
	CreatedAt time.Time `json:"created_at"`
}

// StatusUpdate is a work status check-in.
type StatusUpdate struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Source    string    `json:"source,omitempty"` // chat, webhook, fallback
	CreatedAt time.Time `json:"created_at"`
}

// CommitSummary is the structured summary extracted from a commit diff.
type CommitSummary struct {
	FilesModified []string `json:"files_modified"`
	KeyChanges    []string `json:"key_changes"`
	Purpose       string   `json:"purpose"`
}

// Commit is a summarized code-push commit.
type Commit struct {
	ID          string        `json:"id"`
	SHA         string        `json:"sha"`
	Repo        string        `json:"repo"`
	Branch      string        `json:"branch,omitempty"`
	Author      string        `json:"author,omitempty"`
	Message     string        `json:"message,omitempty"`
	Title       string        `json:"title,omitempty"`
	Summary     CommitSummary `json:"summary"`
	DiffSnippet string        `json:"diff_snippet,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// CompletionLog is one audit row for a completion-service call. Every call is
// recorded, success or failure; audit completeness is a correctness
// requirement independent of the caller's outcome.
type CompletionLog struct {
	ID            string                 `json:"id"`
	Function      string                 `json:"function"` // e.g. classify_intent, extract_reminder
	Model         string                 `json:"model"`
	InputMessages []map[string]string    `json:"input_messages,omitempty"`
	InputSchema   map[string]interface{} `json:"input_schema,omitempty"`
	OutputRaw     string                 `json:"output_raw,omitempty"`
	DurationMS    int64                  `json:"duration_ms"`
	Error         string                 `json:"error,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}
