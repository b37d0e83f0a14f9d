package render

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reHSpace     = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText collapses runs of horizontal whitespace, unifies line endings
// and squeezes blank lines to at most one. Line breaks are kept so phrases
// that a PDF splits across text runs still match.
func NormalizeText(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reHSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
