package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const fence = "```"

// StripFences removes a surrounding fenced code block from a model response.
// A leading fence line (with or without a language tag) is dropped, then a
// trailing fence if present.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, fence) {
		return text
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	if strings.HasSuffix(text, fence) {
		text = text[:strings.LastIndex(text, fence)]
	}
	return strings.TrimSpace(text)
}

// ParseJSON normalizes text and decodes it into a generic JSON value.
func ParseJSON(text string) (any, error) {
	body := StripFences(text)
	if body == "" {
		return nil, fmt.Errorf("empty response")
	}
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, fmt.Errorf("decode model json: %w", err)
	}
	return v, nil
}
