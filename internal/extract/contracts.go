package extract

import (
	"github.com/joseph-ayodele/taxdocs/constants"
)

// PagePolicy combines per-page model results, in page order, into one extraction.
type PagePolicy func(pages []any) any

// PolicyFor picks the page policy for a form type: digital-asset statements
// aggregate transactions across pages, everything else merges first-non-null.
func PolicyFor(ft constants.FormType) PagePolicy {
	if ft == constants.Form1099DA {
		return AggregateTransactions
	}
	return MergeFirstNonNull
}

// MergeFirstNonNull folds page objects into one. A key from a later page is
// taken only when the accumulated value is missing or null, so earlier pages
// win once they hold a value. A non-object first page is returned unchanged.
// Non-object later pages are skipped.
func MergeFirstNonNull(pages []any) any {
	merged := map[string]any{}
	for i, page := range pages {
		obj, ok := page.(map[string]any)
		if !ok {
			if i == 0 {
				return page
			}
			continue
		}
		for k, v := range obj {
			if cur, exists := merged[k]; !exists || cur == nil {
				merged[k] = v
			}
		}
	}
	return merged
}

// AggregateTransactions builds {header, transactions, is_multi_transaction}.
// The header comes from the first page that returns a non-empty header object.
// Transactions are concatenated in page order, then within-page order.
func AggregateTransactions(pages []any) any {
	var header map[string]any
	txns := []any{}
	for _, page := range pages {
		obj, ok := page.(map[string]any)
		if !ok {
			continue
		}
		if h, ok := obj["header"].(map[string]any); ok && header == nil && len(h) > 0 {
			header = h
		}
		if list, ok := obj["transactions"].([]any); ok {
			txns = append(txns, list...)
		}
	}
	if header == nil {
		header = map[string]any{}
	}
	return map[string]any{
		"header":               header,
		"transactions":         txns,
		"is_multi_transaction": len(txns) > 1,
	}
}
