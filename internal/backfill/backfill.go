// Package backfill drives field discovery and spec mapping over an
// existing product population. It is a one-shot sequential batch
// traversal; categories are independent and a storage failure in one
// category never aborts the rest of the run.
package backfill

import (
	"fmt"
	"sort"

	"github.com/tmoller/specdex/internal/catalog"
)

// ProductSpecs pairs a product id with its raw spec map.
type ProductSpecs struct {
	ProductID string
	Specs     catalog.RawSpec
}

// Storage is the persistence collaborator for a backfill run. The
// sqlite implementation lives in Store; tests inject failing fakes.
type Storage interface {
	// Categories lists all category keys with at least one product.
	Categories() ([]string, error)

	// RawSpecs returns all (product_id, raw spec) pairs for a category.
	RawSpecs(category string) ([]ProductSpecs, error)

	// DiscoveredFields returns the currently persisted schema for a category.
	DiscoveredFields(category string) ([]catalog.DiscoveredField, error)

	// ReplaceDiscoveredFields overwrites a category's schema atomically.
	ReplaceDiscoveredFields(category string, fields []catalog.DiscoveredField) error

	// UpsertNormalizedSpecs writes a product's normalized specs,
	// replacing prior values per (product_id, field_name).
	UpsertNormalizedSpecs(productID string, specs catalog.NormalizedSpec) error
}

// Options controls a backfill run.
type Options struct {
	// RunID identifies this run in reports and run history
	RunID string

	// Categories restricts the run to a subset; empty means all
	Categories []string

	// MinFrequency is the discovery inclusion threshold
	MinFrequency float64

	// SampleLimit caps how many products feed discovery per category;
	// 0 means all. Mapping always covers every product.
	SampleLimit int

	// ExtraLabels maps field_name to additional original labels
	// (the manual synonym hook)
	ExtraLabels map[string][]string
}

// CategoryResult reports the outcome for one category.
type CategoryResult struct {
	Category         string `json:"category"`
	FieldsDiscovered int    `json:"fields_discovered"`
	ProductsUpdated  int    `json:"products_updated"`
	Error            string `json:"error,omitempty"`
}

// Report summarizes a backfill run. It is informational only; callers
// detecting failure must inspect CategoriesFailed, not catch errors.
type Report struct {
	RunID               string           `json:"run_id,omitempty"`
	CategoriesProcessed int              `json:"categories_processed"`
	CategoriesFailed    int              `json:"categories_failed"`
	Results             []CategoryResult `json:"results"`
}

// Run discovers a field schema for each category and rewrites every
// product's normalized specs against it. Per category: discover from
// stored raw specs, merge previously persisted original labels by
// field name, apply configured extra labels, persist the schema, then
// map and upsert each product. Returns an error only when the category
// listing itself fails; per-category storage failures are recorded in
// the report and processing continues.
func Run(store Storage, opts Options) (*Report, error) {
	categories := opts.Categories
	if len(categories) == 0 {
		var err error
		categories, err = store.Categories()
		if err != nil {
			return nil, err
		}
	}

	minFrequency := opts.MinFrequency
	if minFrequency <= 0 {
		minFrequency = catalog.DefaultMinFrequency
	}

	report := &Report{
		RunID:   opts.RunID,
		Results: make([]CategoryResult, 0, len(categories)),
	}

	for _, category := range categories {
		result := runCategory(store, category, minFrequency, opts.SampleLimit, opts.ExtraLabels)
		if result.Error != "" {
			report.CategoriesFailed++
		} else {
			report.CategoriesProcessed++
		}
		report.Results = append(report.Results, result)
	}

	return report, nil
}

func runCategory(store Storage, category string, minFrequency float64, sampleLimit int, extraLabels map[string][]string) CategoryResult {
	result := CategoryResult{Category: category}

	products, err := store.RawSpecs(category)
	if err != nil {
		result.Error = fmt.Sprintf("read raw specs: %v", err)
		return result
	}
	if len(products) == 0 {
		return result
	}

	samples := make([]catalog.RawSpec, 0, len(products))
	for _, p := range products {
		samples = append(samples, p.Specs)
	}
	if sampleLimit > 0 && len(samples) > sampleLimit {
		samples = samples[:sampleLimit]
	}

	fields := catalog.Discover(samples, minFrequency)
	result.FieldsDiscovered = len(fields)
	if len(fields) == 0 {
		// No schema was discoverable; leave any existing schema alone.
		return result
	}

	existing, err := store.DiscoveredFields(category)
	if err != nil {
		result.Error = fmt.Sprintf("read discovered fields: %v", err)
		return result
	}
	fields = mergeFields(fields, existing)
	fields = applyExtraLabels(fields, extraLabels)

	if err := store.ReplaceDiscoveredFields(category, fields); err != nil {
		result.Error = fmt.Sprintf("replace discovered fields: %v", err)
		return result
	}

	for _, p := range products {
		specs := catalog.MapSpecs(p.Specs, fields)
		if len(specs) == 0 {
			continue
		}
		if err := store.UpsertNormalizedSpecs(p.ProductID, specs); err != nil {
			result.Error = fmt.Sprintf("upsert normalized specs for %s: %v", p.ProductID, err)
			return result
		}
		result.ProductsUpdated++
	}

	return result
}

// mergeFields unions the original labels of previously persisted fields
// into the freshly discovered schema, keyed by field name. Frequencies
// and sample values are snapshot statistics and come from the new
// discovery only. Previously persisted fields absent from the new
// discovery are dropped with the replace write.
func mergeFields(discovered, existing []catalog.DiscoveredField) []catalog.DiscoveredField {
	if len(existing) == 0 {
		return discovered
	}

	known := make(map[string][]string, len(existing))
	for _, f := range existing {
		known[f.FieldName] = f.OriginalLabels
	}

	for i := range discovered {
		discovered[i].OriginalLabels = unionLabels(discovered[i].OriginalLabels, known[discovered[i].FieldName])
	}
	return discovered
}

// applyExtraLabels appends configured synonym labels to their fields.
func applyExtraLabels(fields []catalog.DiscoveredField, extra map[string][]string) []catalog.DiscoveredField {
	if len(extra) == 0 {
		return fields
	}
	for i := range fields {
		if labels := extra[fields[i].FieldName]; len(labels) > 0 {
			fields[i].OriginalLabels = unionLabels(fields[i].OriginalLabels, labels)
		}
	}
	return fields
}

// unionLabels appends the entries of extra that are not already in
// labels, preserving order.
func unionLabels(labels, extra []string) []string {
	if len(extra) == 0 {
		return labels
	}
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		seen[l] = true
	}
	// Deterministic order for labels added from a map-backed source.
	sorted := append([]string(nil), extra...)
	sort.Strings(sorted)
	for _, l := range sorted {
		if !seen[l] {
			seen[l] = true
			labels = append(labels, l)
		}
	}
	return labels
}
