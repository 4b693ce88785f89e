// Package conversation maintains bounded per-session dialogue history and
// composes it with retrieved memories into a single prompt context.
package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/kumar-shivang/work-tracker/internal/llm"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

const (
	// DefaultMaxHistory is the number of most-recent turns kept per session.
	DefaultMaxHistory = 5

	// memoryLimit is the maximum number of retrieved memories rendered into
	// the system turn.
	memoryLimit = 3

	// relevanceFloor is the cosine-distance ceiling for a memory to be
	// considered relevant (distance < 0.3, i.e. similarity > 0.7).
	relevanceFloor = 0.3
)

// MemorySearcher is the slice of the memory service the composer needs.
type MemorySearcher interface {
	Search(ctx context.Context, query string, typeFilter types.MemoryType, limit int) ([]types.ScoredMemory, error)
}

// Context manages per-session dialogue history and prompt composition.
// Histories are in-memory only; they are pruned continuously and never
// persisted.
type Context struct {
	mu         sync.Mutex
	sessions   map[string][]types.DialogueTurn
	maxHistory int

	memories     MemorySearcher
	loc          *time.Location
	capabilities string
	now          func() time.Time
}

// Option configures a Context.
type Option func(*Context)

// WithMaxHistory overrides the per-session history bound.
func WithMaxHistory(n int) Option {
	return func(c *Context) {
		if n > 0 {
			c.maxHistory = n
		}
	}
}

// WithLocation sets the timezone rendered into the system turn.
func WithLocation(loc *time.Location) Option {
	return func(c *Context) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Context) { c.now = now }
}

// New creates a composer. memories may be nil, in which case prompts are
// built without a memory block (the same degraded mode used when lookups
// fail).
func New(memories MemorySearcher, opts ...Option) *Context {
	c := &Context{
		sessions:     make(map[string][]types.DialogueTurn),
		maxHistory:   DefaultMaxHistory,
		memories:     memories,
		loc:          time.UTC,
		capabilities: defaultCapabilities,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddTurn appends a dialogue turn to a session's history, then truncates to
// the history bound, oldest dropped first.
func (c *Context) AddTurn(sessionID string, role types.Role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := append(c.sessions[sessionID], types.DialogueTurn{
		Role:      role,
		Content:   content,
		Timestamp: c.now(),
	})
	if len(turns) > c.maxHistory {
		turns = turns[len(turns)-c.maxHistory:]
	}
	c.sessions[sessionID] = turns
}

// History returns a copy of a session's history, oldest first.
func (c *Context) History(sessionID string) []types.DialogueTurn {
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := c.sessions[sessionID]
	out := make([]types.DialogueTurn, len(turns))
	copy(out, turns)
	return out
}

// Clear drops a session's history.
func (c *Context) Clear(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
}

// BuildPrompt constructs the full message context for one inbound message:
// a system turn (current time, capabilities, relevant memories), the
// session's history oldest-first, then the new user turn. Memory lookup
// failures are logged and swallowed; a missing memory context must never
// block the ability to respond, so BuildPrompt always returns a usable
// prompt.
func (c *Context) BuildPrompt(ctx context.Context, sessionID, message string) []llm.Message {
	memoryBlock := c.memoryContext(ctx, message)

	now := c.now().In(c.loc)
	system := fmt.Sprintf(`You are a personal assistant that helps track work, expenses, habits, journal entries, reminders, and summaries.

Current time: %s
Day: %s

%s

Respond naturally and conversationally. Be concise but friendly.
When you detect an actionable intent (reminder, expense, habit, journal, status_update), include it in your response.
When the user asks questions about their past activity, use the memory context provided.%s`,
		now.Format("2006-01-02 15:04 MST"), now.Format("Monday"), c.capabilities, memoryBlock)

	messages := []llm.Message{{Role: string(types.RoleSystem), Content: system}}
	for _, turn := range c.History(sessionID) {
		messages = append(messages, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}
	return append(messages, llm.Message{Role: string(types.RoleUser), Content: message})
}

// memoryContext renders up to memoryLimit relevant memories, or an empty
// string when nothing clears the relevance floor or the lookup fails.
func (c *Context) memoryContext(ctx context.Context, message string) string {
	if c.memories == nil {
		return ""
	}

	scored, err := c.memories.Search(ctx, message, "", memoryLimit)
	if err != nil {
		log.Printf("conversation: memory search failed (continuing without): %v", err)
		return ""
	}

	var items []string
	for _, sm := range scored {
		if sm.Distance < relevanceFloor {
			items = append(items, fmt.Sprintf("  [%s] %s", sm.Memory.Type, sm.Memory.Content))
		}
	}
	if len(items) == 0 {
		return ""
	}
	return "\n\nRelevant memories from your history:\n" + strings.Join(items, "\n")
}

const defaultCapabilities = `Your capabilities:
- Set reminders (parse natural language times)
- Log expenses (amount, currency, category)
- Track habits (exercise, reading, meditation, etc.)
- Journal entries (with sentiment)
- Status updates for work tracking
- Search past memories and activities
- Provide summaries of recent activity`
