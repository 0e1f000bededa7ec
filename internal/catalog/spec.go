// Package catalog holds the product catalog domain model and the spec
// field discovery/normalization algorithms. All functions in this
// package are pure; persistence belongs to callers.
package catalog

// RawSpec is the unnormalized label→value map scraped from one product
// detail page. Keys are free-text labels exactly as they appeared on
// the page ("Shell Material", "Gewicht", ...).
type RawSpec map[string]string

// DiscoveredField is one normalized spec dimension inferred for a
// product category.
type DiscoveredField struct {
	// FieldName is the stable snake_case identifier, unique per category
	FieldName string `json:"field_name"`

	// OriginalLabels are the raw labels known to map to this field,
	// in first-seen order
	OriginalLabels []string `json:"original_labels"`

	// Frequency is the fraction of sampled products in which one of
	// this field's labels appeared, at time of discovery
	Frequency float64 `json:"frequency"`

	// SampleValues holds up to 3 example raw values, first-seen order
	SampleValues []string `json:"sample_values,omitempty"`
}

// NormalizedSpec maps stable field names to spec values for one product.
type NormalizedSpec map[string]string
