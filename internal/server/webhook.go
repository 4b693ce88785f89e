package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/kumar-shivang/work-tracker/internal/llm"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

// maxDiffChars caps how much of a commit diff is sent to the summarizer.
// Large diffs are truncated, not rejected.
const maxDiffChars = 50_000

// DiffFetcher retrieves the diff text for one commit. Implementations talk to
// the forge's API; tests script it.
type DiffFetcher interface {
	FetchDiff(ctx context.Context, repo, sha string) (string, error)
}

// pushPayload is the inbound code-push webhook body.
type pushPayload struct {
	Repo    string `json:"repo"`
	Branch  string `json:"branch"`
	Commits []struct {
		SHA     string `json:"sha"`
		Message string `json:"message"`
		Author  string `json:"author"`
	} `json:"commits"`
}

var commitSummarySchema = llm.Schema{
	"type": "object",
	"properties": map[string]interface{}{
		"files_modified": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"key_changes": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"purpose": map[string]interface{}{
			"type":        "string",
			"description": "One sentence stating what the change accomplishes.",
		},
	},
	"required":             []string{"files_modified", "key_changes", "purpose"},
	"additionalProperties": false,
}

// handlePush ingests a code-push event: each commit's diff is fetched,
// summarized, persisted, and memorized. One bad commit does not abort the
// rest of the push.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.checkWebhookSecret(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var payload pushPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if payload.Repo == "" || len(payload.Commits) == 0 {
		http.Error(w, `{"error":"repo and commits are required"}`, http.StatusBadRequest)
		return
	}

	processed := 0
	for _, c := range payload.Commits {
		if err := s.processCommit(r.Context(), payload, c.SHA, c.Message, c.Author); err != nil {
			log.Printf("server: commit %s ingestion failed: %v", c.SHA, err)
			continue
		}
		processed++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"processed": processed, "received": len(payload.Commits)})
}

func (s *Server) processCommit(ctx context.Context, payload pushPayload, sha, message, author string) error {
	diff := ""
	if s.diffs != nil {
		var err error
		diff, err = s.diffs.FetchDiff(ctx, payload.Repo, sha)
		if err != nil {
			// The commit is still recorded; the summary just works from the
			// message alone.
			log.Printf("server: diff fetch failed for %s: %v", sha, err)
			diff = ""
		}
	}
	if len(diff) > maxDiffChars {
		diff = truncate(diff, maxDiffChars) + "\n... (truncated)"
	}

	summary, err := s.summarizeCommit(ctx, message, diff)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	title := message
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}

	commit := &types.Commit{
		ID:          ulid.Make().String(),
		SHA:         sha,
		Repo:        payload.Repo,
		Branch:      payload.Branch,
		Author:      author,
		Message:     message,
		Title:       title,
		Summary:     summary,
		DiffSnippet: truncate(diff, 2000),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.records.SaveCommit(ctx, commit); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	if s.commitMemories != nil {
		if _, err := s.commitMemories.FromCommit(ctx, commit); err != nil {
			log.Printf("server: commit memory derivation failed (record kept): %v", err)
		}
	}
	return nil
}

func (s *Server) summarizeCommit(ctx context.Context, message, diff string) (types.CommitSummary, error) {
	prompt := fmt.Sprintf(`Summarize this commit.

Commit message:
%s

Diff:
%s`, message, diff)

	messages := []llm.Message{
		{Role: "system", Content: "You are a code review assistant. Summarize the commit into files modified, key changes, and a one-line purpose. Output valid JSON."},
		{Role: "user", Content: prompt},
	}
	raw, err := s.completer.Complete(ctx, "summarize_commit", messages, commitSummarySchema)
	if err != nil {
		return types.CommitSummary{}, err
	}

	var summary types.CommitSummary
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &summary); err != nil {
		return types.CommitSummary{}, fmt.Errorf("decode summary: %w", err)
	}
	return summary, nil
}

func (s *Server) checkWebhookSecret(r *http.Request) bool {
	secret := s.cfg.Security.WebhookSecret
	if secret == "" {
		return true
	}
	got := r.Header.Get("X-Webhook-Secret")
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}

// truncate cuts s to at most n bytes, backing up to a rune boundary so the
// result is always valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
