// Package assistant is the orchestration layer: it routes inbound chat
// messages through the conversational model, routes explicit commands through
// the intent pipeline, holds proposed actions for confirmation, and runs the
// scheduled check-in and daily summary jobs.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kumar-shivang/work-tracker/internal/conversation"
	"github.com/kumar-shivang/work-tracker/internal/executor"
	"github.com/kumar-shivang/work-tracker/internal/intent"
	"github.com/kumar-shivang/work-tracker/internal/llm"
	"github.com/kumar-shivang/work-tracker/internal/memory"
	"github.com/kumar-shivang/work-tracker/internal/pending"
	"github.com/kumar-shivang/work-tracker/internal/storage"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

// ErrSessionNotAllowed is returned for sessions outside the allow-list.
var ErrSessionNotAllowed = errors.New("session not allowed")

// Reply is the assistant's response to one inbound message. When PendingID is
// non-empty the reply proposes an action awaiting confirm or cancel against
// that ticket.
type Reply struct {
	Text      string `json:"text"`
	PendingID string `json:"pending_id,omitempty"`
}

// SummaryWriter is the slice of the memory service the summary job uses.
type SummaryWriter interface {
	DailySummary(ctx context.Context, date time.Time, summaryText string, stats memory.SummaryStats) (*types.Memory, error)
}

// Assistant wires the conversational path, the command path, and the
// confirmation workflow together.
type Assistant struct {
	completer llm.Completer
	pipeline  *intent.Pipeline
	composer  *conversation.Context
	pending   *pending.Store
	exec      *executor.Executor
	records   storage.RecordStore
	summaries SummaryWriter

	loc      *time.Location
	currency string
	allowed  map[string]bool
	now      func() time.Time
}

// Deps collects the collaborators an Assistant needs.
type Deps struct {
	Completer llm.Completer
	Pipeline  *intent.Pipeline
	Composer  *conversation.Context
	Pending   *pending.Store
	Executor  *executor.Executor
	Records   storage.RecordStore
	Summaries SummaryWriter

	Location *time.Location
	Currency string
	// AllowedSessions restricts who may talk to the assistant. Empty means
	// any session is accepted.
	AllowedSessions []string
}

// New creates an assistant from its dependencies.
func New(d Deps) *Assistant {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	var allowed map[string]bool
	if len(d.AllowedSessions) > 0 {
		allowed = make(map[string]bool, len(d.AllowedSessions))
		for _, s := range d.AllowedSessions {
			allowed[s] = true
		}
	}
	return &Assistant{
		completer: d.Completer,
		pipeline:  d.Pipeline,
		composer:  d.Composer,
		pending:   d.Pending,
		exec:      d.Executor,
		records:   d.Records,
		summaries: d.Summaries,
		loc:       loc,
		currency:  d.Currency,
		allowed:   allowed,
		now:       time.Now,
	}
}

// chatResponseSchema shapes the conversational completion: a natural reply
// plus an optional embedded action in the same format the extraction stage
// produces.
var chatResponseSchema = llm.Schema{
	"type": "object",
	"properties": map[string]interface{}{
		"response_text": map[string]interface{}{
			"type":        "string",
			"description": "The conversational reply to the user.",
		},
		"action": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"type": map[string]interface{}{
					"type": "string",
					"enum": []string{"reminder", "expense", "habit", "journal", "status_update", "none"},
				},
				"content":    map[string]interface{}{"type": "string"},
				"datetime":   map[string]interface{}{"type": "string"},
				"amount":     map[string]interface{}{"type": "number"},
				"currency":   map[string]interface{}{"type": "string"},
				"category":   map[string]interface{}{"type": "string"},
				"habit_name": map[string]interface{}{"type": "string"},
				"sentiment":  map[string]interface{}{"type": "string"},
			},
			"required":             []string{"type"},
			"additionalProperties": false,
		},
	},
	"required":             []string{"response_text"},
	"additionalProperties": false,
}

// HandleMessage processes one free-form chat message: it composes the prompt
// context, asks the model for a reply plus an optional embedded action, and
// holds any detected action for confirmation. When the conversational call
// fails the message falls back to the intent pipeline, so an utterance is
// never lost.
func (a *Assistant) HandleMessage(ctx context.Context, sessionID, message string) (Reply, error) {
	if err := a.checkSession(sessionID); err != nil {
		return Reply{}, err
	}

	// BuildPrompt appends the new user turn itself, so the history must not
	// contain it yet. Record the turn after composing.
	prompt := a.composer.BuildPrompt(ctx, sessionID, message)
	a.composer.AddTurn(sessionID, types.RoleUser, message)

	raw, err := a.completer.Complete(ctx, "chat_response", prompt, chatResponseSchema)
	if err != nil {
		log.Printf("assistant: chat completion failed, using intent pipeline: %v", err)
		return a.handleDegraded(ctx, sessionID, message)
	}

	var parsed struct {
		ResponseText string          `json:"response_text"`
		Action       json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &parsed); err != nil {
		log.Printf("assistant: chat response unparseable, using intent pipeline: %v", err)
		return a.handleDegraded(ctx, sessionID, message)
	}

	reply := Reply{Text: parsed.ResponseText}
	if record, ok := a.decodeEmbeddedAction(parsed.Action); ok {
		reply.PendingID = a.pending.Put(record)
		reply.Text = strings.TrimSpace(parsed.ResponseText + "\n\n" + confirmPrompt(record))
	}

	a.composer.AddTurn(sessionID, types.RoleAssistant, reply.Text)
	return reply, nil
}

// handleDegraded is the no-conversational-model path: run the two-stage
// pipeline directly. Fallback records (the pipeline could not produce a
// well-formed action) are logged immediately as status updates rather than
// proposed, since there is nothing meaningful for the user to confirm.
func (a *Assistant) handleDegraded(ctx context.Context, sessionID, message string) (Reply, error) {
	result := a.pipeline.Parse(ctx, message, a.now())

	if result.Fallback {
		outcome, err := a.exec.Execute(ctx, result.Record, sessionID)
		if err != nil {
			return Reply{}, fmt.Errorf("assistant: fallback execution: %w", err)
		}
		reply := Reply{Text: "I couldn't fully process that right now, but I've saved it as a status note. " + outcome.Text}
		a.composer.AddTurn(sessionID, types.RoleAssistant, reply.Text)
		return reply, nil
	}
	if result.Record.Kind == types.ActionNone {
		reply := Reply{Text: "Noted. I'm having trouble generating a full reply right now."}
		a.composer.AddTurn(sessionID, types.RoleAssistant, reply.Text)
		return reply, nil
	}

	reply := Reply{
		Text:      confirmPrompt(result.Record),
		PendingID: a.pending.Put(result.Record),
	}
	a.composer.AddTurn(sessionID, types.RoleAssistant, reply.Text)
	return reply, nil
}

// HandleCommand processes an explicit command message through the two-stage
// intent pipeline and proposes the resolved action for confirmation.
func (a *Assistant) HandleCommand(ctx context.Context, sessionID, message string) (Reply, error) {
	if err := a.checkSession(sessionID); err != nil {
		return Reply{}, err
	}

	result := a.pipeline.Parse(ctx, message, a.now())
	if result.Record.Kind == types.ActionNone {
		return Reply{Text: "I didn't find anything actionable in that."}, nil
	}

	return Reply{
		Text:      confirmPrompt(result.Record),
		PendingID: a.pending.Put(result.Record),
	}, nil
}

// HandleCallback resolves a pending ticket. verdict is "confirm" or "cancel".
// A ticket that is expired, unknown, or already resolved yields a friendly
// expiry message; resolution is never an error for the caller.
func (a *Assistant) HandleCallback(ctx context.Context, sessionID, verdict, ticketID string) (Reply, error) {
	if err := a.checkSession(sessionID); err != nil {
		return Reply{}, err
	}

	record, ok := a.pending.Remove(ticketID)
	if !ok {
		return Reply{Text: "That action has expired or was already handled."}, nil
	}

	switch verdict {
	case "confirm":
		outcome, err := a.exec.Execute(ctx, record, sessionID)
		if err != nil {
			return Reply{}, fmt.Errorf("assistant: execute confirmed action: %w", err)
		}
		a.composer.AddTurn(sessionID, types.RoleAssistant, outcome.Text)
		return Reply{Text: outcome.Text}, nil
	case "cancel":
		return Reply{Text: "Cancelled, nothing was saved."}, nil
	default:
		return Reply{}, fmt.Errorf("assistant: unknown verdict %q", verdict)
	}
}

// CheckIn generates the hourly check-in prompt. The model call is decorated
// with today's status updates; on failure a canned message is returned so the
// check-in still goes out.
func (a *Assistant) CheckIn(ctx context.Context) string {
	const canned = "Quick check-in: what are you working on right now?"

	dayStart, _ := a.dayBounds(a.now())
	statuses, err := a.records.StatusByRange(ctx, dayStart, a.now().UTC())
	if err != nil {
		log.Printf("assistant: check-in status lookup failed: %v", err)
		statuses = nil
	}

	var recent []string
	for _, s := range statuses {
		recent = append(recent, "- "+s.Content)
	}
	context := "No status updates yet today."
	if len(recent) > 0 {
		context = "Status updates so far today:\n" + strings.Join(recent, "\n")
	}

	messages := []llm.Message{
		{Role: "system", Content: "You are a friendly work-tracking assistant. Write one short check-in message asking what the user is working on. Reference their recent activity when it helps. Output JSON with 'content'."},
		{Role: "user", Content: context},
	}
	raw, err := a.completer.Complete(ctx, "check_in", messages, checkInSchema)
	if err != nil {
		log.Printf("assistant: check-in generation failed: %v", err)
		return canned
	}

	var parsed struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &parsed); err != nil || parsed.Content == "" {
		return canned
	}
	return parsed.Content
}

var checkInSchema = llm.Schema{
	"type": "object",
	"properties": map[string]interface{}{
		"content": map[string]interface{}{"type": "string", "description": "The check-in message."},
	},
	"required":             []string{"content"},
	"additionalProperties": false,
}

// RunDailySummary aggregates the day's records, asks the model for a
// free-form narrative, and stores the result as a daily_summary memory.
// It returns the narrative text for delivery.
func (a *Assistant) RunDailySummary(ctx context.Context, date time.Time) (string, error) {
	start, end := a.dayBounds(date)

	commits, err := a.records.CommitsByRange(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("assistant: summary commits: %w", err)
	}
	expenses, err := a.records.ExpensesByRange(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("assistant: summary expenses: %w", err)
	}
	habits, err := a.records.HabitsByRange(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("assistant: summary habits: %w", err)
	}
	journals, err := a.records.JournalsByRange(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("assistant: summary journals: %w", err)
	}
	statuses, err := a.records.StatusByRange(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("assistant: summary statuses: %w", err)
	}

	stats := memory.SummaryStats{
		NumCommits:  len(commits),
		NumExpenses: len(expenses),
		Currency:    a.currency,
		NumJournals: len(journals),
		NumHabits:   len(habits),
		NumStatus:   len(statuses),
	}
	for _, e := range expenses {
		// Totals only make sense within one currency; mixed-currency days
		// report the configured currency's total.
		if e.Currency == a.currency {
			stats.TotalExpenses += e.Amount
		}
	}

	narrative, err := a.summaryNarrative(ctx, date, commits, expenses, habits, journals, statuses)
	if err != nil {
		return "", err
	}

	if _, err := a.summaries.DailySummary(ctx, date, narrative, stats); err != nil {
		// The narrative was produced; failing to memorize it should not void
		// the delivery.
		log.Printf("assistant: daily summary memory store failed: %v", err)
	}
	return narrative, nil
}

var summarySchema = llm.Schema{
	"type": "object",
	"properties": map[string]interface{}{
		"content": map[string]interface{}{"type": "string", "description": "The daily summary narrative."},
	},
	"required":             []string{"content"},
	"additionalProperties": false,
}

func (a *Assistant) summaryNarrative(ctx context.Context, date time.Time,
	commits []types.Commit, expenses []types.Expense, habits []types.Habit,
	journals []types.JournalEntry, statuses []types.StatusUpdate) (string, error) {

	var b strings.Builder
	fmt.Fprintf(&b, "Activity for %s:\n", date.In(a.loc).Format("2006-01-02"))
	for _, c := range commits {
		fmt.Fprintf(&b, "Commit [%s]: %s\n", c.Repo, c.Summary.Purpose)
	}
	for _, e := range expenses {
		fmt.Fprintf(&b, "Expense: %.2f %s on %s\n", e.Amount, e.Currency, e.Category)
	}
	for _, h := range habits {
		fmt.Fprintf(&b, "Habit: %s\n", h.Name)
	}
	for _, j := range journals {
		fmt.Fprintf(&b, "Journal (%s): %s\n", j.Sentiment, j.Content)
	}
	for _, s := range statuses {
		fmt.Fprintf(&b, "Status: %s\n", s.Content)
	}
	if len(commits)+len(expenses)+len(habits)+len(journals)+len(statuses) == 0 {
		b.WriteString("No recorded activity.\n")
	}

	messages := []llm.Message{
		{Role: "system", Content: "You are a work-tracking assistant. Write a concise end-of-day summary (3-6 sentences) of the user's activity. Mention work progress, spending, habits, and mood where present. Output JSON with 'content'."},
		{Role: "user", Content: b.String()},
	}
	raw, err := a.completer.Complete(ctx, "daily_summary", messages, summarySchema)
	if err != nil {
		return "", fmt.Errorf("assistant: summary generation: %w", err)
	}

	var parsed struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &parsed); err != nil {
		return "", fmt.Errorf("assistant: summary output unparseable: %w", err)
	}
	return parsed.Content, nil
}

// decodeEmbeddedAction turns the optional action object of a chat response
// into a validated record. Anything missing, malformed, or non-executable
// decodes to false; chat replies never fail because their embedded action
// was junk.
func (a *Assistant) decodeEmbeddedAction(raw json.RawMessage) (types.ActionRecord, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return types.ActionRecord{}, false
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.Type == "" || head.Type == "none" {
		return types.ActionRecord{}, false
	}

	record, err := intent.DecodeAction(intent.Label(head.Type), string(raw), a.loc)
	if err != nil {
		log.Printf("assistant: embedded action dropped: %v", err)
		return types.ActionRecord{}, false
	}
	if record.Kind == types.ActionNone {
		return types.ActionRecord{}, false
	}
	if err := record.Validate(); err != nil {
		log.Printf("assistant: embedded action invalid: %v", err)
		return types.ActionRecord{}, false
	}
	return record, true
}

// confirmPrompt renders the human-readable confirmation question for a
// proposed action.
func confirmPrompt(r types.ActionRecord) string {
	switch r.Kind {
	case types.ActionReminder:
		return fmt.Sprintf("Set a reminder for %s: %q. Confirm?", r.RemindAt.Format("Mon, 02 Jan 2006 15:04"), r.Content)
	case types.ActionExpense:
		return fmt.Sprintf("Log expense of %.2f %s (%s)? Confirm?", r.Amount, r.Currency, r.Category)
	case types.ActionHabit:
		return fmt.Sprintf("Log habit %q as done? Confirm?", r.HabitName)
	case types.ActionJournal:
		return fmt.Sprintf("Save journal entry (%s)? Confirm?", r.Sentiment)
	case types.ActionStatusUpdate:
		return fmt.Sprintf("Log status update: %q. Confirm?", r.Content)
	default:
		return "Confirm?"
	}
}

func (a *Assistant) checkSession(sessionID string) error {
	if a.allowed == nil {
		return nil
	}
	if !a.allowed[sessionID] {
		return fmt.Errorf("%w: %s", ErrSessionNotAllowed, sessionID)
	}
	return nil
}

// dayBounds returns the UTC instants bounding the local calendar day of t.
func (a *Assistant) dayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(a.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.loc)
	return start.UTC(), start.Add(24 * time.Hour).UTC()
}
