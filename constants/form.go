package constants

import (
	"sort"
	"strings"
)

// FormType is the canonical form-type label stored on documents and extraction records.
type FormType string

const (
	FormW2               FormType = "W-2"
	Form1099DA           FormType = "1099-DA"
	Form1099NEC          FormType = "1099-NEC"
	Form1099INT          FormType = "1099-INT"
	Form1099DIV          FormType = "1099-DIV"
	Form1099R            FormType = "1099-R"
	Form1099B            FormType = "1099-B"
	FormK1               FormType = "K-1"
	Form1040             FormType = "1040"
	FormConsolidated1099 FormType = "consolidated-1099"
	FormUnknown          FormType = "unknown"
)

var allFormTypes = []FormType{
	FormW2,
	Form1099DA,
	Form1099NEC,
	Form1099INT,
	Form1099DIV,
	Form1099R,
	Form1099B,
	FormK1,
	Form1040,
	FormConsolidated1099,
	FormUnknown,
}

// FormTypes returns the closed set of supported form types, unknown included.
func FormTypes() []FormType {
	out := make([]FormType, len(allFormTypes))
	copy(out, allFormTypes)
	return out
}

// FormTypeStrings is FormTypes as plain strings, sorted.
func FormTypeStrings() []string {
	out := make([]string, 0, len(allFormTypes))
	for _, f := range allFormTypes {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

// ParseFormType matches s against the closed set, ignoring case and surrounding space.
func ParseFormType(s string) (FormType, bool) {
	s = strings.TrimSpace(s)
	for _, f := range allFormTypes {
		if strings.EqualFold(s, string(f)) {
			return f, true
		}
	}
	return FormUnknown, false
}

// Is1099Family reports whether the form belongs to the 1099 series.
func (f FormType) Is1099Family() bool {
	return strings.HasPrefix(string(f), "1099-")
}

// CryptoFormTypes are the forms that can carry digital-asset dispositions.
var CryptoFormTypes = []FormType{Form1099DA, Form1099B, FormConsolidated1099}
