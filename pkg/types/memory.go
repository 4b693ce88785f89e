package types

import "time"

// MemoryType identifies the kind of event a memory was derived from.
// The set is closed per deployment; Valid rejects anything else before
// it reaches storage.
type MemoryType string

const (
	MemoryCommit       MemoryType = "commit"
	MemoryReminder     MemoryType = "reminder"
	MemoryExpense      MemoryType = "expense"
	MemoryHabit        MemoryType = "habit"
	MemoryJournal      MemoryType = "journal"
	MemoryStatusUpdate MemoryType = "status_update"
	MemoryDailySummary MemoryType = "daily_summary"
)

// Valid reports whether t is one of the enumerated memory types.
func (t MemoryType) Valid() bool {
	switch t {
	case MemoryCommit, MemoryReminder, MemoryExpense, MemoryHabit,
		MemoryJournal, MemoryStatusUpdate, MemoryDailySummary:
		return true
	}
	return false
}

// Memory is a single embedded text record used for semantic retrieval.
// Memories are immutable once written; there is no update or delete path
// because the store is an append-only log.
type Memory struct {
	ID        string                 `json:"id"`                 // ULID, lexicographically ordered by creation time
	Content   string                 `json:"content"`            // Formatted text that was embedded
	Vector    []float32              `json:"vector,omitempty"`   // Embedding; length is fixed per deployment
	Type      MemoryType             `json:"memory_type"`        // One of the closed MemoryType set
	Metadata  map[string]interface{} `json:"metadata,omitempty"` // Extra context (source, amounts, tags, etc.)
	CreatedAt time.Time              `json:"created_at"`
}

// ScoredMemory pairs a memory with its cosine distance to a query vector.
// Distance is 1 - cosine_similarity, range [0, 2]; lower is more similar.
type ScoredMemory struct {
	Memory   Memory  `json:"memory"`
	Distance float64 `json:"distance"`
}
