package classify

import (
	"sort"
	"strings"

	"github.com/joseph-ayodele/taxdocs/constants"
)

type signal struct {
	needle string
	form   constants.FormType
}

// textSignals pairs form titles and OMB control numbers with the form they identify.
var textSignals = []signal{
	{"1099-DA", constants.Form1099DA},
	{"OMB No. 1545-2298", constants.Form1099DA},
	{"W-2 Wage", constants.FormW2},
	{"Wage and Tax Statement", constants.FormW2},
	{"OMB No. 1545-0008", constants.FormW2},
	{"1099-NEC", constants.Form1099NEC},
	{"OMB No. 1545-0116", constants.Form1099NEC},
	{"1099-INT", constants.Form1099INT},
	{"OMB No. 1545-0112", constants.Form1099INT},
	{"1099-DIV", constants.Form1099DIV},
	{"OMB No. 1545-0110", constants.Form1099DIV},
	{"1099-R", constants.Form1099R},
	{"OMB No. 1545-0119", constants.Form1099R},
	{"1099-B", constants.Form1099B},
	{"OMB No. 1545-0715", constants.Form1099B},
	{"Schedule K-1", constants.FormK1},
	{"Form 1040", constants.Form1040},
}

const (
	consolidatedConfidence = 0.85
	singleHitConfidence    = 0.9
)

// MatchSignals runs the case-insensitive signal table over text. ok is false
// when nothing matched.
func MatchSignals(text string) (res Result, ok bool) {
	lower := strings.ToLower(text)
	seen := map[constants.FormType]bool{}
	for _, s := range textSignals {
		if strings.Contains(lower, strings.ToLower(s.needle)) {
			seen[s.form] = true
		}
	}
	if len(seen) == 0 {
		return Result{}, false
	}

	hits := make([]string, 0, len(seen))
	has1099 := false
	for f := range seen {
		hits = append(hits, string(f))
		if f.Is1099Family() {
			has1099 = true
		}
	}
	sort.Strings(hits)

	if len(hits) >= 2 && has1099 {
		return Result{DocType: constants.FormConsolidated1099, Confidence: consolidatedConfidence, Method: constants.MethodText}, true
	}
	// lexicographically first; arbitrary but stable
	return Result{DocType: constants.FormType(hits[0]), Confidence: singleHitConfidence, Method: constants.MethodText}, true
}
