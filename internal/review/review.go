// Package review scores an extraction and decides whether a human needs to look at it.
package review

import (
	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/forms"
)

const (
	pathTxnProceeds  = "transactions[].proceeds"
	pathTxnCostBasis = "transactions[].cost_basis"
)

var requiredFields = map[constants.FormType][]string{
	constants.FormW2:      {"employer_name", "wages", "federal_withheld"},
	constants.Form1099NEC: {"payer_name", "nonemployee_comp"},
	constants.Form1099INT: {"payer_name", "interest_income"},
	constants.Form1099DIV: {"payer_name", "total_ordinary_dividends"},
	constants.Form1099R:   {"payer_name", "gross_distribution"},
	constants.FormK1:      {"partnership_name", "partner_name"},
	constants.Form1099DA:  {"header.payer_name", pathTxnProceeds, pathTxnCostBasis},
}

// RequiredFields lists the paths a form type must carry, in report order.
func RequiredFields(ft constants.FormType) []string {
	return append([]string(nil), requiredFields[ft]...)
}

// Policy holds the thresholds and blend weights. Build it from config.
type Policy struct {
	MinOverallConfidence        float64
	MinClassificationConfidence float64
	ClassificationWeight        float64
	CompletenessWeight          float64
}

func NewPolicy(cfg common.ReviewConfig) Policy {
	return Policy{
		MinOverallConfidence:        cfg.MinOverallConfidence,
		MinClassificationConfidence: cfg.MinClassificationConfidence,
		ClassificationWeight:        cfg.ClassificationWeight,
		CompletenessWeight:          cfg.CompletenessWeight,
	}
}

// Outcome is the policy's verdict for one extraction.
type Outcome struct {
	Missing           []string
	Completeness      float64
	OverallConfidence float64
	NeedsReview       bool
}

// Evaluate runs all three checks.
func (p Policy) Evaluate(ft constants.FormType, extraction any, classificationConfidence float64) Outcome {
	missing := MissingRequiredFields(ft, extraction)
	completeness := Completeness(ft, missing)
	overall := p.OverallConfidence(classificationConfidence, completeness)
	return Outcome{
		Missing:           missing,
		Completeness:      completeness,
		OverallConfidence: overall,
		NeedsReview:       p.NeedsReview(classificationConfidence, overall, missing),
	}
}

// MissingRequiredFields returns the required paths the extraction does not
// carry. Presence is decided on the typed form variant, so null, blank and
// non-scalar values count as missing. For digital-asset statements the two
// transaction paths are satisfied only by one transaction that has both
// proceeds and cost_basis.
func MissingRequiredFields(ft constants.FormType, extraction any) []string {
	required := requiredFields[ft]
	if len(required) == 0 {
		return nil
	}
	decoded, err := forms.Decode(ft, extraction)
	if err != nil {
		return append([]string(nil), required...)
	}
	present := forms.Present(decoded)
	da, isDA := decoded.(forms.DA)
	txnComplete := isDA && da.HasCompleteTransaction()

	var missing []string
	for _, path := range required {
		switch path {
		case pathTxnProceeds, pathTxnCostBasis:
			if !txnComplete {
				missing = append(missing, path)
			}
		default:
			if !present[path] {
				missing = append(missing, path)
			}
		}
	}
	return missing
}

// Completeness is the fraction of required fields present. Forms with no
// required fields are complete.
func Completeness(ft constants.FormType, missing []string) float64 {
	total := len(requiredFields[ft])
	if total == 0 {
		return 1
	}
	return float64(total-len(missing)) / float64(total)
}

// OverallConfidence is the weighted mean of classification confidence and
// completeness, clamped to [0,1]. It never rises when either input falls.
func (p Policy) OverallConfidence(classificationConfidence, completeness float64) float64 {
	wc, wf := p.ClassificationWeight, p.CompletenessWeight
	if wc+wf <= 0 {
		wc, wf = 1, 1
	}
	score := (wc*clamp(classificationConfidence) + wf*clamp(completeness)) / (wc + wf)
	return clamp(score)
}

func (p Policy) NeedsReview(classificationConfidence, overall float64, missing []string) bool {
	return overall < p.MinOverallConfidence ||
		classificationConfidence < p.MinClassificationConfidence ||
		len(missing) > 0
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
