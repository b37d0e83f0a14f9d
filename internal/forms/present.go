package forms

import (
	"encoding/json"
	"strings"
)

// Present returns the dotted paths of e that hold a usable value after
// coercion. Typed variants drop blank and wrongly shaped leaves, so a
// required field the model left as "" or {} is not present.
func Present(e Extraction) map[string]bool {
	var src any
	switch v := e.(type) {
	case nil:
		return map[string]bool{}
	case Generic:
		src = v.Fields
	default:
		raw, err := json.Marshal(e)
		if err != nil {
			return map[string]bool{}
		}
		if err := json.Unmarshal(raw, &src); err != nil {
			return map[string]bool{}
		}
	}

	out := map[string]bool{}
	for _, f := range Flatten(src) {
		if strings.TrimSpace(f.Value) != "" {
			out[f.Path] = true
		}
	}
	return out
}

// HasCompleteTransaction reports whether any transaction carries both
// proceeds and cost basis.
func (d DA) HasCompleteTransaction() bool {
	for _, t := range d.Transactions {
		if t.Proceeds.Valid && t.CostBasis.Valid {
			return true
		}
	}
	return false
}
