package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/kumar-shivang/work-tracker/internal/storage"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

// ErrRequestTooLarge is returned when a serialized request exceeds the
// configured size cap. The request is never sent; callers should truncate
// their inputs (diff and report summarizers do) and retry.
var ErrRequestTooLarge = errors.New("request exceeds size limit")

// Config holds configuration for the API client. The wire format is the
// OpenAI-compatible chat completions + embeddings API, which is what
// OpenRouter exposes.
type Config struct {
	APIKey             string
	BaseURL            string        // default: https://openrouter.ai/api/v1
	Model              string        // completion model
	EmbeddingModel     string        // default: openai/text-embedding-3-small
	EmbeddingDimension int           // default: 1536
	Timeout            time.Duration // per-call timeout, default: 60s
	MaxRequestBytes    int           // serialized request cap, default: 256 KiB
	RequestsPerSecond  float64       // outbound pacing, default: 5
	MaxTokens          int           // default: 8096
	Referer            string        // HTTP-Referer header for OpenRouter
	Title              string        // X-Title header for OpenRouter
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://openrouter.ai/api/v1"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "openai/text-embedding-3-small"
	}
	if c.EmbeddingDimension == 0 {
		c.EmbeddingDimension = 1536
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRequestBytes == 0 {
		c.MaxRequestBytes = 256 * 1024
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 5
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 8096
	}
}

// Client talks to the completion and embedding endpoints. Every completion
// call is recorded to the audit log, success or failure; audit completeness
// is a correctness requirement independent of the caller's outcome.
type Client struct {
	cfg     Config
	client  *http.Client
	breaker *CircuitBreaker
	limiter *rate.Limiter
	audit   storage.AuditLog
}

var (
	_ Completer = (*Client)(nil)
	_ Embedder  = (*Client)(nil)
)

// NewClient creates an API client. audit may not be nil: the audit trail is
// part of the completion contract, not an optional extra.
func NewClient(cfg Config, audit storage.AuditLog) (*Client, error) {
	if audit == nil {
		return nil, errors.New("llm: audit log is required")
	}
	cfg.applyDefaults()
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: NewCircuitBreaker(),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1),
		audit:   audit,
	}, nil
}

// Dimension returns the embedding dimension the client is configured for.
func (c *Client) Dimension() int { return c.cfg.EmbeddingDimension }

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string `json:"name"`
	Strict bool   `json:"strict"`
	Schema Schema `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends messages to the chat completions endpoint and returns the
// raw response text. When schema is non-nil a strict structured-output
// constraint is attached; callers still must treat non-conforming output as
// a soft failure. The call is audited unconditionally in a defer.
func (c *Client) Complete(ctx context.Context, function string, messages []Message, schema Schema) (text string, err error) {
	start := time.Now()
	defer func() {
		c.logCall(function, messages, schema, text, time.Since(start), err)
	}()

	reqBody := chatRequest{
		Model:     c.cfg.Model,
		Messages:  messages,
		MaxTokens: c.cfg.MaxTokens,
	}
	if schema != nil {
		reqBody.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchema{Name: "user_intent", Strict: true, Schema: schema},
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llm: failed to marshal request: %w", err)
	}
	if len(jsonData) > c.cfg.MaxRequestBytes {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrRequestTooLarge, len(jsonData), c.cfg.MaxRequestBytes)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm: rate limiter: %w", err)
	}

	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.post(ctx, "/chat/completions", jsonData)
	})
	if err != nil {
		return "", err
	}

	var respData chatResponse
	if err := json.Unmarshal(result.([]byte), &respData); err != nil {
		return "", fmt.Errorf("llm: failed to decode response: %w", err)
	}
	if len(respData.Choices) == 0 {
		return "", errors.New("llm: no choices in response")
	}
	return respData.Choices[0].Message.Content, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed generates an embedding vector for text. The returned vector always
// has exactly Dimension components; anything else from the service is an
// error, not a silent shape change.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	jsonData, err := json.Marshal(embeddingRequest{Model: c.cfg.EmbeddingModel, Input: text})
	if err != nil {
		return nil, fmt.Errorf("llm: failed to marshal embedding request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm: rate limiter: %w", err)
	}

	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.post(ctx, "/embeddings", jsonData)
	})
	if err != nil {
		return nil, err
	}

	var respData embeddingResponse
	if err := json.Unmarshal(result.([]byte), &respData); err != nil {
		return nil, fmt.Errorf("llm: failed to decode embedding response: %w", err)
	}
	if len(respData.Data) == 0 {
		return nil, errors.New("llm: no embedding in response")
	}
	vec := respData.Data[0].Embedding
	if len(vec) != c.cfg.EmbeddingDimension {
		return nil, fmt.Errorf("llm: embedding dimension %d, expected %d", len(vec), c.cfg.EmbeddingDimension)
	}
	return vec, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm: %s returned status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// logCall writes the audit row. Audit failures are logged, never propagated:
// the completion outcome must not depend on the audit store.
func (c *Client) logCall(function string, messages []Message, schema Schema, output string, elapsed time.Duration, callErr error) {
	entry := &types.CompletionLog{
		ID:         ulid.Make().String(),
		Function:   function,
		Model:      c.cfg.Model,
		DurationMS: elapsed.Milliseconds(),
	}
	for _, m := range messages {
		entry.InputMessages = append(entry.InputMessages, map[string]string{
			"role": m.Role, "content": m.Content,
		})
	}
	if schema != nil {
		entry.InputSchema = map[string]interface{}(schema)
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	} else {
		entry.OutputRaw = output
	}

	// Audit writes use their own short deadline so a stuck store cannot
	// hold the caller's goroutine.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.audit.LogCompletion(ctx, entry); err != nil {
		log.Printf("llm: failed to write audit log for %s: %v", function, err)
	}
}
