package ops

import (
	"database/sql"
	"fmt"

	"github.com/tmoller/specdex/internal/backfill"
	"github.com/tmoller/specdex/internal/catalog"
	"github.com/tmoller/specdex/internal/config"
	"github.com/tmoller/specdex/internal/db"
	"github.com/tmoller/specdex/internal/errors"
)

// DiscoverInput contains parameters for the Discover operation.
type DiscoverInput struct {
	Category     string  // required
	MinFrequency float64 // 0 = use config (default 0.3)
	SampleLimit  int     // 0 = use config (default all products)
	Persist      bool    // write the schema and normalized specs; false = preview
}

// DiscoverOutput contains the result of the Discover operation.
type DiscoverOutput struct {
	Category        string                    `json:"category"`
	Persisted       bool                      `json:"persisted"`
	SampleSize      int                       `json:"sample_size"`
	MinFrequency    float64                   `json:"min_frequency"`
	Fields          []catalog.DiscoveredField `json:"fields"`
	ProductsUpdated int                       `json:"products_updated,omitempty"`
}

// Discover runs field discovery for one category from its stored raw
// specs. Without Persist it is a preview: the computed schema is
// returned and nothing is written. With Persist it behaves like a
// single-category backfill, including label merging with the
// previously persisted schema and configured extra labels.
func Discover(database *sql.DB, cfg *config.Config, input DiscoverInput) (*DiscoverOutput, error) {
	category := cleanCategory(input.Category)
	if category == "" {
		return nil, errors.NewInvalidRequest("category is required")
	}

	minFrequency := resolveMinFrequency(input.MinFrequency, cfg)
	if minFrequency <= 0 || minFrequency > 1 {
		return nil, errors.NewInvalidRequest("min_frequency must be in (0, 1]")
	}
	sampleLimit := input.SampleLimit
	if sampleLimit <= 0 && cfg != nil {
		sampleLimit = cfg.SampleLimit
	}

	specs, err := db.GetRawSpecs(database, category, sampleLimit)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, errors.NewNotFound(fmt.Sprintf("no products in category %q", category))
	}

	output := &DiscoverOutput{
		Category:     category,
		Persisted:    input.Persist,
		SampleSize:   len(specs),
		MinFrequency: minFrequency,
	}

	if !input.Persist {
		samples := make([]catalog.RawSpec, 0, len(specs))
		for _, ps := range specs {
			samples = append(samples, ps.Specs)
		}
		output.Fields = catalog.Discover(samples, minFrequency)
		return output, nil
	}

	var extraLabels map[string][]string
	if cfg != nil {
		extraLabels = cfg.ExtraLabels
	}
	report, err := backfill.Run(backfill.NewStore(database), backfill.Options{
		Categories:   []string{category},
		MinFrequency: minFrequency,
		SampleLimit:  sampleLimit,
		ExtraLabels:  extraLabels,
	})
	if err != nil {
		return nil, err
	}
	for _, result := range report.Results {
		if result.Category != category {
			continue
		}
		if result.Error != "" {
			return nil, errors.NewStorage("discover "+category, fmt.Errorf("%s", result.Error))
		}
		output.ProductsUpdated = result.ProductsUpdated
	}

	output.Fields, err = db.GetDiscoveredFields(database, category)
	if err != nil {
		return nil, err
	}
	return output, nil
}

// resolveMinFrequency applies flag > config > built-in default.
func resolveMinFrequency(flag float64, cfg *config.Config) float64 {
	if flag > 0 {
		return flag
	}
	if cfg != nil && cfg.MinFrequency > 0 {
		return cfg.MinFrequency
	}
	return catalog.DefaultMinFrequency
}
