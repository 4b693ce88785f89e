// Package llm provides the external completion and embedding capabilities:
// an OpenRouter-compatible HTTP client with circuit breaking, outbound rate
// limiting, request-size caps, and unconditional audit logging, plus the
// tolerant JSON response parsing the intent pipeline depends on.
package llm

import "context"

// Message is one chat message sent to the completion service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema is a JSON schema passed as a structured-output constraint. A nil
// schema requests free-form text.
type Schema map[string]interface{}

// Completer is the single completion primitive every pipeline stage goes
// through. function names the call site for the audit log (e.g.
// "classify_intent"). Callers must treat non-conforming output as a soft
// failure, never a crash.
type Completer interface {
	Complete(ctx context.Context, function string, messages []Message, schema Schema) (string, error)
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
