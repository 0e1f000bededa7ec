package ops

import (
	"database/sql"

	"github.com/tmoller/specdex/internal/catalog"
	"github.com/tmoller/specdex/internal/db"
)

// CategoriesOutput contains the result of the Categories operation.
type CategoriesOutput struct {
	Categories []catalog.CategoryInfo `json:"categories"`
	Count      int                    `json:"count"`
}

// Categories lists all categories with product and field counts.
func Categories(database *sql.DB) (*CategoriesOutput, error) {
	categories, err := db.ListCategories(database)
	if err != nil {
		return nil, err
	}
	return &CategoriesOutput{
		Categories: categories,
		Count:      len(categories),
	}, nil
}
