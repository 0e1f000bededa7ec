package ops

import (
	"database/sql"
	"fmt"

	"github.com/tmoller/specdex/internal/db"
	"github.com/tmoller/specdex/internal/errors"
)

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	Category string // required
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Category string `json:"category"`
	Deleted  int    `json:"deleted"`
}

// Purge deletes all products in a category along with their specs and
// the category's discovered field schema.
func Purge(database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	category := cleanCategory(input.Category)
	if category == "" {
		return nil, errors.NewInvalidRequest("category is required")
	}

	deleted, err := db.DeleteCategory(database, category)
	if err != nil {
		return nil, err
	}
	if deleted == 0 {
		return nil, errors.NewNotFound(fmt.Sprintf("no products in category %q", category))
	}
	return &PurgeOutput{Category: category, Deleted: deleted}, nil
}
