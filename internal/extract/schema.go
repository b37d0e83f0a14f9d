package extract

import (
	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/llm"
)

var objectPageSchema = llm.MustCompileSchema("extract-page.json", map[string]any{
	"type": "object",
})

var daPageSchema = llm.MustCompileSchema("extract-page-1099-da.json", map[string]any{
	"type":     "object",
	"required": []any{"transactions"},
	"properties": map[string]any{
		"header": llm.NullableOf("object"),
		"transactions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"proceeds":   llm.NullableString(),
					"cost_basis": llm.NullableString(),
				},
			},
		},
	},
})

func pageSchemaFor(ft constants.FormType) *llm.Schema {
	if ft == constants.Form1099DA {
		return daPageSchema
	}
	return objectPageSchema
}
