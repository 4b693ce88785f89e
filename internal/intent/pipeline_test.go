package intent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumar-shivang/work-tracker/internal/intent"
	"github.com/kumar-shivang/work-tracker/internal/llm"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

// scriptedCompleter answers by function name and records the call order.
type scriptedCompleter struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (s *scriptedCompleter) Complete(_ context.Context, function string, _ []llm.Message, _ llm.Schema) (string, error) {
	s.calls = append(s.calls, function)
	if err, ok := s.errs[function]; ok {
		return "", err
	}
	if resp, ok := s.responses[function]; ok {
		return resp, nil
	}
	return "", errors.New("unscripted function: " + function)
}

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func TestParse_ReminderHappyPath(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"classify_intent":  `{"intent_type":"reminder"}`,
		"extract_reminder": `{"content":"call the dentist","datetime":"2026-09-01T17:30:00Z"}`,
	}}
	p := intent.NewPipeline(completer, time.UTC)

	result := p.Parse(context.Background(), "remind me to call the dentist at 5:30pm", testNow)

	assert.False(t, result.Fallback)
	assert.Equal(t, intent.LabelReminder, result.Label)
	assert.Equal(t, types.ActionReminder, result.Record.Kind)
	assert.Equal(t, "call the dentist", result.Record.Content)
	assert.Equal(t, time.Date(2026, 9, 1, 17, 30, 0, 0, time.UTC), result.Record.RemindAt.UTC())
	assert.Equal(t, []string{"classify_intent", "extract_reminder"}, completer.calls)
}

func TestParse_ExpenseHappyPath(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"classify_intent": `{"intent_type":"expense"}`,
		"extract_expense": `{"amount":450,"currency":"INR","category":"food","content":"team lunch"}`,
	}}
	p := intent.NewPipeline(completer, time.UTC)

	result := p.Parse(context.Background(), "spent 450 on team lunch", testNow)

	require.False(t, result.Fallback)
	assert.Equal(t, types.ActionExpense, result.Record.Kind)
	assert.Equal(t, 450.0, result.Record.Amount)
	assert.Equal(t, "INR", result.Record.Currency)
}

func TestParse_ClassificationFailureDefaultsToStatusUpdate(t *testing.T) {
	completer := &scriptedCompleter{
		errs: map[string]error{"classify_intent": errors.New("service down")},
		responses: map[string]string{
			"extract_status_update": `{"content":"working on the parser"}`,
		},
	}
	p := intent.NewPipeline(completer, time.UTC)

	result := p.Parse(context.Background(), "working on the parser", testNow)

	assert.Equal(t, intent.LabelStatusUpdate, result.Label,
		"classification failure must default to status_update")
	assert.Equal(t, types.ActionStatusUpdate, result.Record.Kind)
	assert.False(t, result.Fallback, "extraction still succeeded")
}

func TestParse_UnknownLabelDefaultsToStatusUpdate(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"classify_intent":       `{"intent_type":"banana"}`,
		"extract_status_update": `{"content":"whatever this was"}`,
	}}
	p := intent.NewPipeline(completer, time.UTC)

	result := p.Parse(context.Background(), "whatever this was", testNow)
	assert.Equal(t, intent.LabelStatusUpdate, result.Label)
}

func TestParse_ExtractionFailureFallsBack(t *testing.T) {
	completer := &scriptedCompleter{
		responses: map[string]string{"classify_intent": `{"intent_type":"reminder"}`},
		errs:      map[string]error{"extract_reminder": errors.New("timeout")},
	}
	p := intent.NewPipeline(completer, time.UTC)

	msg := "remind me to do the thing"
	result := p.Parse(context.Background(), msg, testNow)

	assert.True(t, result.Fallback)
	assert.Equal(t, types.ActionStatusUpdate, result.Record.Kind)
	assert.Equal(t, msg, result.Record.Content, "fallback carries the raw message verbatim")
	assert.Equal(t, "fallback", result.Record.Source)
	assert.NoError(t, result.Record.Validate(), "fallback records always validate")
}

func TestParse_MalformedExtractionFallsBack(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"classify_intent":  `{"intent_type":"reminder"}`,
		"extract_reminder": `not json at all`,
	}}
	p := intent.NewPipeline(completer, time.UTC)

	result := p.Parse(context.Background(), "remind me", testNow)
	assert.True(t, result.Fallback)
	assert.Equal(t, types.ActionStatusUpdate, result.Record.Kind)
}

func TestParse_InvalidExtractedRecordFallsBack(t *testing.T) {
	// Amount 0 fails expense validation even though the JSON is well-formed.
	completer := &scriptedCompleter{responses: map[string]string{
		"classify_intent": `{"intent_type":"expense"}`,
		"extract_expense": `{"amount":0,"currency":"INR","category":"food","content":"free lunch"}`,
	}}
	p := intent.NewPipeline(completer, time.UTC)

	result := p.Parse(context.Background(), "logged a free lunch", testNow)
	assert.True(t, result.Fallback)
	assert.Equal(t, types.ActionStatusUpdate, result.Record.Kind)
}

func TestParse_QuestionYieldsNoAction(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"classify_intent":  `{"intent_type":"question"}`,
		"extract_question": `{"content":"what did I spend last week?"}`,
	}}
	p := intent.NewPipeline(completer, time.UTC)

	result := p.Parse(context.Background(), "what did I spend last week?", testNow)
	assert.False(t, result.Fallback)
	assert.Equal(t, types.ActionNone, result.Record.Kind)
}

func TestParse_FencedJSONOutput(t *testing.T) {
	completer := &scriptedCompleter{responses: map[string]string{
		"classify_intent": "```json\n{\"intent_type\":\"habit\"}\n```",
		"extract_habit":   "```json\n{\"habit_name\":\"meditation\"}\n```",
	}}
	p := intent.NewPipeline(completer, time.UTC)

	result := p.Parse(context.Background(), "did my meditation", testNow)
	require.False(t, result.Fallback)
	assert.Equal(t, "meditation", result.Record.HabitName)
}

func TestDecodeAction_DatetimeLayouts(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "rfc3339 with offset",
			raw:  `{"content":"x","datetime":"2026-09-01T18:00:00+05:30"}`,
			want: time.Date(2026, 9, 1, 18, 0, 0, 0, loc),
		},
		{
			name: "no offset uses location",
			raw:  `{"content":"x","datetime":"2026-09-01T18:00:00"}`,
			want: time.Date(2026, 9, 1, 18, 0, 0, 0, loc),
		},
		{
			name: "space separator without seconds",
			raw:  `{"content":"x","datetime":"2026-09-01 18:00"}`,
			want: time.Date(2026, 9, 1, 18, 0, 0, 0, loc),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record, err := intent.DecodeAction(intent.LabelReminder, tc.raw, loc)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(record.RemindAt), "got %v, want %v", record.RemindAt, tc.want)
		})
	}
}

func TestDecodeAction_BadDatetime(t *testing.T) {
	_, err := intent.DecodeAction(intent.LabelReminder, `{"content":"x","datetime":"next tuesday"}`, time.UTC)
	assert.Error(t, err)
}
