package catalog

import (
	"regexp"
	"strings"
)

// nonWordRegex matches runes that are neither letters, digits,
// whitespace nor underscores. Unicode letters count as word runes so
// labels like "Länge" keep their diacritics.
var nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}\s_]+`)

// separatorRegex matches runs of whitespace and underscores.
var separatorRegex = regexp.MustCompile(`[\s_]+`)

// NormalizeLabel converts a free-text spec label into a stable
// snake_case field identifier:
// 1. Trim leading/trailing whitespace, lowercase
// 2. Strip punctuation and symbols
// 3. Collapse whitespace/underscore runs to single underscores
//
// The result may be empty if the label was entirely punctuation; that
// is accepted, not special-cased. Same input always yields the same
// output, which keeps field names stable across discovery runs.
func NormalizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = nonWordRegex.ReplaceAllString(s, "")
	s = separatorRegex.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
