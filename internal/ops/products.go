package ops

import (
	"database/sql"
	"strings"

	"github.com/tmoller/specdex/internal/catalog"
	"github.com/tmoller/specdex/internal/db"
	"github.com/tmoller/specdex/internal/errors"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Category string // required
	Query    string // optional name filter (substring, case-insensitive)
	Limit    int    // default 20, max 100
	Offset   int    // default 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Category   string            `json:"category"`
	Products   []catalog.Summary `json:"products"`
	Pagination Pagination        `json:"pagination"`
}

// List returns paginated product summaries for a category, newest
// first, optionally filtered by name.
func List(database *sql.DB, input ListInput) (*ListOutput, error) {
	category := cleanCategory(input.Category)
	if category == "" {
		return nil, errors.NewInvalidRequest("category is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	products, total, err := db.ListProducts(database, category, strings.TrimSpace(input.Query), limit, offset)
	if err != nil {
		return nil, err
	}

	return &ListOutput{
		Category: category,
		Products: products,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(products) < total,
			Total:   total,
		},
	}, nil
}

// GetInput contains parameters for the Get operation. Either ID or the
// (Category, SourceID) pair identifies the product.
type GetInput struct {
	ID       string
	Category string
	SourceID string
}

// GetOutput contains the result of the Get operation.
type GetOutput struct {
	Product *catalog.Product `json:"product"`
}

// Get retrieves one product including its raw and normalized specs.
func Get(database *sql.DB, input GetInput) (*GetOutput, error) {
	id := strings.TrimSpace(input.ID)
	category := cleanCategory(input.Category)
	sourceID := strings.TrimSpace(input.SourceID)

	var product *catalog.Product
	var err error
	switch {
	case id != "":
		product, err = db.GetProduct(database, id)
	case category != "" && sourceID != "":
		product, err = db.GetProductBySource(database, category, sourceID)
	default:
		return nil, errors.NewInvalidRequest("id or category and source_id are required")
	}
	if err != nil {
		return nil, err
	}
	return &GetOutput{Product: product}, nil
}

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query    string // required
	Category string // optional filter
	Limit    int    // default 20, max 50
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Query    string            `json:"query"`
	Products []catalog.Summary `json:"products"`
	Count    int               `json:"count"`
}

// Search finds products by case-insensitive name substring across all
// categories or within one.
func Search(database *sql.DB, input SearchInput) (*SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	products, err := db.SearchProducts(database, cleanCategory(input.Category), query, limit)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{
		Query:    query,
		Products: products,
		Count:    len(products),
	}, nil
}

// SpecsInput contains parameters for the Specs operation.
type SpecsInput struct {
	ID string // required
}

// SpecsOutput contains the result of the Specs operation.
type SpecsOutput struct {
	ProductID string                 `json:"product_id"`
	Specs     catalog.NormalizedSpec `json:"specs"`
}

// Specs returns the normalized specs for one product.
func Specs(database *sql.DB, input SpecsInput) (*SpecsOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	// Verify the product exists so an unknown id is NOT_FOUND rather
	// than an empty spec map.
	if _, err := db.GetProduct(database, id); err != nil {
		return nil, err
	}

	specs, err := db.GetNormalizedSpecs(database, id)
	if err != nil {
		return nil, err
	}
	return &SpecsOutput{ProductID: id, Specs: specs}, nil
}
