package classify

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/llm"
)

const classifyPromptTemplate = `You are classifying a US tax document from an image of page 1.
Return JSON only.

Return:
{
  "doc_type": string,   // one of: %s
  "confidence": number, // 0 to 1
  "method": "vision"
}

Rules:
- Use "consolidated-1099" if you see evidence multiple 1099 types are included in the same statement.
- If unsure, return doc_type "unknown" with confidence <= 0.5.
`

func classifyPrompt() string {
	types := constants.FormTypeStrings()
	quoted := make([]string, len(types))
	for i, t := range types {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return fmt.Sprintf(classifyPromptTemplate, strings.Join(quoted, ", "))
}

var classificationSchema = llm.MustCompileSchema("classification.json", map[string]any{
	"type":     "object",
	"required": []any{"doc_type", "confidence", "method"},
	"properties": map[string]any{
		"doc_type":   map[string]any{"type": "string"},
		"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"method":     map[string]any{"const": "vision"},
	},
})
