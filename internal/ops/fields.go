package ops

import (
	"database/sql"
	"fmt"

	"github.com/tmoller/specdex/internal/catalog"
	"github.com/tmoller/specdex/internal/db"
	"github.com/tmoller/specdex/internal/errors"
)

// FieldsInput contains parameters for the Fields operation.
type FieldsInput struct {
	Category string // required
}

// FieldsOutput contains the result of the Fields operation.
type FieldsOutput struct {
	Category string                    `json:"category"`
	Fields   []catalog.DiscoveredField `json:"fields"`
	Count    int                       `json:"count"`
}

// Fields lists the discovered field schema for a category, ordered by
// descending frequency.
func Fields(database *sql.DB, input FieldsInput) (*FieldsOutput, error) {
	category := cleanCategory(input.Category)
	if category == "" {
		return nil, errors.NewInvalidRequest("category is required")
	}

	fields, err := db.GetDiscoveredFields(database, category)
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		// Distinguish "no schema yet" from "unknown category".
		specs, err := db.GetRawSpecs(database, category, 1)
		if err != nil {
			return nil, err
		}
		if len(specs) == 0 {
			return nil, errors.NewNotFound(fmt.Sprintf("no products in category %q", category))
		}
	}

	return &FieldsOutput{
		Category: category,
		Fields:   fields,
		Count:    len(fields),
	}, nil
}
