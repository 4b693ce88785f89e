package intent

import "github.com/kumar-shivang/work-tracker/internal/llm"

// Label is an intent classification label. The set is closed: anything the
// classifier produces outside it is treated as a classification failure.
type Label string

const (
	LabelReminder     Label = "reminder"
	LabelExpense      Label = "expense"
	LabelHabit        Label = "habit"
	LabelJournal      Label = "journal"
	LabelStatusUpdate Label = "status_update"
	LabelQuestion     Label = "question"
	LabelChat         Label = "chat"
	LabelOther        Label = "other"
)

func validLabel(l Label) bool {
	switch l {
	case LabelReminder, LabelExpense, LabelHabit, LabelJournal,
		LabelStatusUpdate, LabelQuestion, LabelChat, LabelOther:
		return true
	}
	return false
}

// classificationSchema constrains stage one to a single intent_type field.
var classificationSchema = llm.Schema{
	"type": "object",
	"properties": map[string]interface{}{
		"intent_type": map[string]interface{}{
			"type": "string",
			"enum": []string{
				"reminder", "expense", "habit", "journal",
				"status_update", "question", "chat", "other",
			},
			"description": "The category the message belongs to.",
		},
	},
	"required":             []string{"intent_type"},
	"additionalProperties": false,
}

// Per-label extraction schemas. Each selects the strict shape required
// for that action kind.
var reminderSchema = llm.Schema{
	"type": "object",
	"properties": map[string]interface{}{
		"content": map[string]interface{}{
			"type":        "string",
			"description": "What to remind about, without the time phrase.",
		},
		"datetime": map[string]interface{}{
			"type":        "string",
			"description": "Target time as ISO 8601 (e.g. 2026-09-01T18:00:00+05:30).",
		},
	},
	"required":             []string{"content", "datetime"},
	"additionalProperties": false,
}

var expenseSchema = llm.Schema{
	"type": "object",
	"properties": map[string]interface{}{
		"amount":   map[string]interface{}{"type": "number", "description": "Amount spent."},
		"currency": map[string]interface{}{"type": "string", "description": "Currency code, e.g. INR, USD."},
		"category": map[string]interface{}{"type": "string", "description": "Spending category, e.g. food, transport."},
		"content":  map[string]interface{}{"type": "string", "description": "Short description of the expense."},
	},
	"required":             []string{"amount", "currency", "category", "content"},
	"additionalProperties": false,
}

var habitSchema = llm.Schema{
	"type": "object",
	"properties": map[string]interface{}{
		"habit_name": map[string]interface{}{
			"type":        "string",
			"description": "Name of the habit completed, e.g. exercise, reading.",
		},
	},
	"required":             []string{"habit_name"},
	"additionalProperties": false,
}

var journalSchema = llm.Schema{
	"type": "object",
	"properties": map[string]interface{}{
		"content": map[string]interface{}{"type": "string", "description": "The journal entry text."},
		"sentiment": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"positive", "neutral", "negative"},
			"description": "Overall sentiment of the entry.",
		},
	},
	"required":             []string{"content", "sentiment"},
	"additionalProperties": false,
}

var statusUpdateSchema = llm.Schema{
	"type": "object",
	"properties": map[string]interface{}{
		"content": map[string]interface{}{"type": "string", "description": "The status update text."},
	},
	"required":             []string{"content"},
	"additionalProperties": false,
}

var freeTextSchema = llm.Schema{
	"type": "object",
	"properties": map[string]interface{}{
		"content": map[string]interface{}{"type": "string", "description": "The message, cleaned up."},
	},
	"required":             []string{"content"},
	"additionalProperties": false,
}

// schemaFor maps a label to its extraction schema.
func schemaFor(label Label) llm.Schema {
	switch label {
	case LabelReminder:
		return reminderSchema
	case LabelExpense:
		return expenseSchema
	case LabelHabit:
		return habitSchema
	case LabelJournal:
		return journalSchema
	case LabelStatusUpdate:
		return statusUpdateSchema
	default:
		return freeTextSchema
	}
}
