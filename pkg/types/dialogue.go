package types

import "time"

// Role identifies the author of a dialogue turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DialogueTurn is one message in a session's bounded in-memory history.
// Turns are never persisted; they exist only for prompt composition.
type DialogueTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
