package catalog

import (
	"sort"
	"strings"
)

// MapSpecs produces a product's normalized spec map by matching each
// schema field's known labels against the product's raw labels. Exact
// matches are tried first across all of a field's labels, then a
// case-insensitive pass. Unmatched fields are simply absent from the
// result; no value is ever fabricated. Calling twice with identical
// inputs yields an identical result.
func MapSpecs(raw RawSpec, fields []DiscoveredField) NormalizedSpec {
	result := make(NormalizedSpec, len(fields))
	if len(raw) == 0 {
		return result
	}

	// Lowercased label → raw key, built lazily on the first
	// case-insensitive fallback.
	var folded map[string]string

	for _, f := range fields {
		value, ok := matchExact(raw, f.OriginalLabels)
		if !ok {
			if folded == nil {
				folded = foldKeys(raw)
			}
			value, ok = matchFolded(raw, folded, f.OriginalLabels)
		}
		if ok {
			result[f.FieldName] = value
		}
	}

	return result
}

func matchExact(raw RawSpec, labels []string) (string, bool) {
	for _, label := range labels {
		if value, ok := raw[label]; ok {
			return value, true
		}
	}
	return "", false
}

func matchFolded(raw RawSpec, folded map[string]string, labels []string) (string, bool) {
	for _, label := range labels {
		if key, ok := folded[strings.ToLower(label)]; ok {
			return raw[key], true
		}
	}
	return "", false
}

// foldKeys indexes raw keys by their lowercase form. When two raw keys
// differ only in case the lexicographically smaller one wins, keeping
// the fallback deterministic.
func foldKeys(raw RawSpec) map[string]string {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	folded := make(map[string]string, len(keys))
	for _, key := range keys {
		lower := strings.ToLower(key)
		if _, ok := folded[lower]; !ok {
			folded[lower] = key
		}
	}
	return folded
}
