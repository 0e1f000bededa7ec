package backfill

import (
	"database/sql"

	"github.com/tmoller/specdex/internal/catalog"
	"github.com/tmoller/specdex/internal/db"
)

// Store is the sqlite-backed Storage implementation.
type Store struct {
	db *sql.DB
}

// NewStore wraps a database handle as backfill storage.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

func (s *Store) Categories() ([]string, error) {
	infos, err := db.ListCategories(s.db)
	if err != nil {
		return nil, err
	}
	categories := make([]string, 0, len(infos))
	for _, info := range infos {
		categories = append(categories, info.Category)
	}
	return categories, nil
}

func (s *Store) RawSpecs(category string) ([]ProductSpecs, error) {
	specs, err := db.GetRawSpecs(s.db, category, 0)
	if err != nil {
		return nil, err
	}
	result := make([]ProductSpecs, 0, len(specs))
	for _, ps := range specs {
		result = append(result, ProductSpecs{ProductID: ps.ProductID, Specs: ps.Specs})
	}
	return result, nil
}

func (s *Store) DiscoveredFields(category string) ([]catalog.DiscoveredField, error) {
	return db.GetDiscoveredFields(s.db, category)
}

func (s *Store) ReplaceDiscoveredFields(category string, fields []catalog.DiscoveredField) error {
	return db.ReplaceDiscoveredFields(s.db, category, fields)
}

func (s *Store) UpsertNormalizedSpecs(productID string, specs catalog.NormalizedSpec) error {
	return db.UpsertNormalizedSpecs(s.db, productID, specs)
}
