package tool

import (
	"encoding/json"
	"strings"
)

var plainInputKeys = []string{"input", "query", "question", "topic", "__arg1"}

// plainInput normalizes the argument of a single-string tool. Models often
// quote it or wrap it in a one-field JSON object.
func plainInput(raw string) string {
	trimmed := strings.TrimSpace(raw)

	var s string
	if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
		return strings.TrimSpace(s)
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		for _, key := range plainInputKeys {
			if v, ok := obj[key].(string); ok {
				return strings.TrimSpace(v)
			}
		}
	}

	return trimmed
}
