package llm

import "strings"

// ExtractJSON extracts the first JSON object from a string that may contain
// extra text. LLMs add markdown fences and explanations around JSON despite
// instructions; this strips them and balance-matches braces so callers can
// hand the result straight to json.Unmarshal.
func ExtractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text // no object found, let the caller's parser fail
	}

	braceCount := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escape {
			escape = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escape = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				braceCount++
			}
		case '}':
			if !inString {
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return text[start:]
}
