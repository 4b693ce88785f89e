// Package intent implements the two-stage natural-language intent resolution
// pipeline: classify a message into a closed label set, then extract a typed
// action record against the label's strict shape. The pipeline never fails
// outward: every classification, extraction, or transport error folds into
// a synthetic status_update carrying the raw message verbatim, so nothing a
// user says is silently dropped.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/kumar-shivang/work-tracker/internal/llm"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

// Pipeline resolves free-form messages into validated action records.
type Pipeline struct {
	completer llm.Completer
	loc       *time.Location
}

// NewPipeline creates a pipeline. loc is the timezone used to interpret
// extracted datetimes without an explicit offset; nil means UTC.
func NewPipeline(completer llm.Completer, loc *time.Location) *Pipeline {
	if loc == nil {
		loc = time.UTC
	}
	return &Pipeline{completer: completer, loc: loc}
}

// Result is the outcome of one pipeline run. Fallback marks records that
// were synthesized because a stage failed; Label is the stage-one
// classification that was used (status_update when classification itself
// fell back).
type Result struct {
	Record   types.ActionRecord
	Label    Label
	Fallback bool
}

// Parse runs both stages. The returned record always validates and its kind
// is always within the closed set; see package comment for the fallback
// contract.
func (p *Pipeline) Parse(ctx context.Context, message string, now time.Time) Result {
	label := p.classify(ctx, message)

	record, err := p.extract(ctx, label, message, now)
	if err != nil {
		log.Printf("intent: extraction failed for label %q: %v", label, err)
		return Result{Record: types.StatusFallback(message), Label: label, Fallback: true}
	}
	if err := record.Validate(); err != nil {
		log.Printf("intent: extracted record invalid for label %q: %v", label, err)
		return Result{Record: types.StatusFallback(message), Label: label, Fallback: true}
	}
	return Result{Record: record, Label: label}
}

// classify runs stage one. Any failure defaults to status_update: when
// uncertain, prefer capturing the utterance as a status log over dropping it.
func (p *Pipeline) classify(ctx context.Context, message string) Label {
	prompt := fmt.Sprintf(`Classify the following message into one of these categories:
- reminder (setting a reminder or alarm)
- expense (logging money spent)
- habit (logging a habit like exercise, reading, etc.)
- journal (personal reflection or diary entry)
- status_update (work status or progress update)
- question (asking about past data, activities, or summaries)
- chat (casual conversation, greetings, or general talk)
- other (doesn't fit any category)

Message: %q

Output a JSON object with 'intent_type'.`, message)

	messages := []llm.Message{
		{Role: "system", Content: "You are a helpful personal assistant. Output valid JSON."},
		{Role: "user", Content: prompt},
	}

	raw, err := p.completer.Complete(ctx, "classify_intent", messages, classificationSchema)
	if err != nil {
		log.Printf("intent: classification call failed: %v", err)
		return LabelStatusUpdate
	}

	var parsed struct {
		IntentType string `json:"intent_type"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &parsed); err != nil {
		log.Printf("intent: classification output unparseable: %v", err)
		return LabelStatusUpdate
	}
	label := Label(parsed.IntentType)
	if !validLabel(label) {
		return LabelStatusUpdate
	}
	return label
}

// extract runs stage two against the label's schema and decodes the output.
func (p *Pipeline) extract(ctx context.Context, label Label, message string, now time.Time) (types.ActionRecord, error) {
	prompt := fmt.Sprintf(`Extract details for the intent: %s

Current Time: %s
Message: %q

Output valid JSON matching the schema.`, label, now.In(p.loc).Format(time.RFC3339), message)

	messages := []llm.Message{
		{Role: "system", Content: "You are a helpful personal assistant. Output valid JSON."},
		{Role: "user", Content: prompt},
	}

	raw, err := p.completer.Complete(ctx, "extract_"+string(label), messages, schemaFor(label))
	if err != nil {
		return types.ActionRecord{}, err
	}
	return DecodeAction(label, raw, p.loc)
}

// extractionPayload is the superset of all per-label extraction shapes.
type extractionPayload struct {
	Content   string  `json:"content"`
	Datetime  string  `json:"datetime"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Category  string  `json:"category"`
	HabitName string  `json:"habit_name"`
	Sentiment string  `json:"sentiment"`
}

// DecodeAction decodes a structured extraction output into an action record.
// It is shared with the conversational path, which receives the same shapes
// embedded in a chat response. question/chat/other decode to ActionNone.
func DecodeAction(label Label, raw string, loc *time.Location) (types.ActionRecord, error) {
	if loc == nil {
		loc = time.UTC
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &payload); err != nil {
		return types.ActionRecord{}, fmt.Errorf("decode %s extraction: %w", label, err)
	}

	switch label {
	case LabelReminder:
		remindAt, err := parseDatetime(payload.Datetime, loc)
		if err != nil {
			return types.ActionRecord{}, fmt.Errorf("reminder datetime %q: %w", payload.Datetime, err)
		}
		return types.ActionRecord{
			Kind:     types.ActionReminder,
			Content:  payload.Content,
			RemindAt: remindAt,
		}, nil
	case LabelExpense:
		return types.ActionRecord{
			Kind:     types.ActionExpense,
			Content:  payload.Content,
			Amount:   payload.Amount,
			Currency: payload.Currency,
			Category: payload.Category,
		}, nil
	case LabelHabit:
		return types.ActionRecord{
			Kind:      types.ActionHabit,
			HabitName: payload.HabitName,
		}, nil
	case LabelJournal:
		return types.ActionRecord{
			Kind:      types.ActionJournal,
			Content:   payload.Content,
			Sentiment: payload.Sentiment,
		}, nil
	case LabelStatusUpdate:
		return types.ActionRecord{
			Kind:    types.ActionStatusUpdate,
			Content: payload.Content,
			Source:  "chat",
		}, nil
	default:
		// question/chat/other carry no executable action.
		return types.ActionRecord{Kind: types.ActionNone, Content: payload.Content}, nil
	}
}

// datetimeLayouts are tried in order when the extracted time is not strict
// RFC 3339. Models occasionally drop the offset or the T separator.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseDatetime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime format")
}
