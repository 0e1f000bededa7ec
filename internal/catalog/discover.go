package catalog

import (
	"sort"
	"strings"
)

// DefaultMinFrequency is the inclusion threshold used when the caller
// does not supply one.
const DefaultMinFrequency = 0.3

// MaxSampleValues caps the example values retained per field.
const MaxSampleValues = 3

// fieldStat accumulates per-field occurrence data during discovery.
type fieldStat struct {
	count   int      // number of samples containing at least one label for this field
	labels  []string // raw labels observed, first-seen order
	samples []string // up to MaxSampleValues non-empty values, first-seen order
}

// Discover computes a candidate field schema from a batch of raw spec
// maps sampled for one category. A label is counted at most once per
// sample; labels that normalize to the same field name are folded into
// one field so that field names stay unique. Fields whose frequency is
// below minFrequency are dropped. The result is sorted by descending
// frequency, ties broken by field name for a stable order.
//
// Empty samples yield an empty result; an empty result means no schema
// was discoverable, not an error.
func Discover(samples []RawSpec, minFrequency float64) []DiscoveredField {
	if len(samples) == 0 {
		return nil
	}

	stats := make(map[string]*fieldStat)
	for _, raw := range samples {
		counted := make(map[string]bool, len(raw))

		// Walk labels in sorted order so label and sample-value
		// accumulation is deterministic across runs.
		labels := make([]string, 0, len(raw))
		for label := range raw {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		for _, label := range labels {
			name := NormalizeLabel(label)
			if name == "" {
				continue
			}

			st := stats[name]
			if st == nil {
				st = &fieldStat{}
				stats[name] = st
			}
			if !containsLabel(st.labels, label) {
				st.labels = append(st.labels, label)
			}
			if !counted[name] {
				counted[name] = true
				st.count++
			}
			if value := strings.TrimSpace(raw[label]); value != "" && len(st.samples) < MaxSampleValues {
				st.samples = append(st.samples, value)
			}
		}
	}

	total := float64(len(samples))
	fields := make([]DiscoveredField, 0, len(stats))
	for name, st := range stats {
		frequency := float64(st.count) / total
		if frequency < minFrequency {
			continue
		}
		fields = append(fields, DiscoveredField{
			FieldName:      name,
			OriginalLabels: st.labels,
			Frequency:      frequency,
			SampleValues:   st.samples,
		})
	}

	sort.Slice(fields, func(i, j int) bool {
		if fields[i].Frequency != fields[j].Frequency {
			return fields[i].Frequency > fields[j].Frequency
		}
		return fields[i].FieldName < fields[j].FieldName
	})

	return fields
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
