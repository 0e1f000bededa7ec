package db

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/tmoller/specdex/internal/catalog"
	"github.com/tmoller/specdex/internal/errors"
)

// testProduct builds a minimal product for query tests.
func testProduct(id, sourceID, category string) *catalog.Product {
	now := time.Now().Unix()
	return &catalog.Product{
		ID:          id,
		SourceID:    sourceID,
		Category:    category,
		Name:        "Test Saddle " + sourceID,
		URL:         "https://example.com/p/" + sourceID,
		Price:       "89.95",
		Description: "A **light** saddle.",
		RawSpecs:    catalog.RawSpec{"Width": "143mm", "Shell Material": "carbon"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func initTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestInsertAndGetProduct(t *testing.T) {
	database := initTestDB(t)

	p := testProduct("01TESTPRODUCT0000000000001", "sdl-1", "saddles")
	if err := InsertProduct(database, p); err != nil {
		t.Fatalf("InsertProduct() error = %v", err)
	}

	got, err := GetProduct(database, p.ID)
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if got.SourceID != "sdl-1" || got.Category != "saddles" {
		t.Errorf("got %+v, want source sdl-1 in saddles", got)
	}
	if got.RawSpecs["Width"] != "143mm" {
		t.Errorf("RawSpecs = %v, want Width=143mm", got.RawSpecs)
	}
	if len(got.NormalizedSpecs) != 0 {
		t.Errorf("NormalizedSpecs = %v, want empty before backfill", got.NormalizedSpecs)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	database := initTestDB(t)

	_, err := GetProduct(database, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetProduct() error = %v, want NOT_FOUND", err)
	}
}

func TestInsertProduct_UniqueConstraint(t *testing.T) {
	database := initTestDB(t)

	if err := InsertProduct(database, testProduct("01TESTPRODUCT0000000000001", "sdl-1", "saddles")); err != nil {
		t.Fatalf("first InsertProduct() error = %v", err)
	}

	err := InsertProduct(database, testProduct("01TESTPRODUCT0000000000002", "sdl-1", "saddles"))
	if err != ErrUniqueConstraint {
		t.Errorf("duplicate InsertProduct() error = %v, want ErrUniqueConstraint", err)
	}

	// Same source id in another category is fine
	if err := InsertProduct(database, testProduct("01TESTPRODUCT0000000000003", "sdl-1", "cassettes")); err != nil {
		t.Errorf("cross-category InsertProduct() error = %v", err)
	}
}

func TestUpsertProduct_ReplacesExisting(t *testing.T) {
	database := initTestDB(t)

	p := testProduct("01TESTPRODUCT0000000000001", "sdl-1", "saddles")
	if err := InsertProduct(database, p); err != nil {
		t.Fatalf("InsertProduct() error = %v", err)
	}

	replacement := testProduct("01TESTPRODUCT0000000000002", "sdl-1", "saddles")
	replacement.Name = "Renamed Saddle"
	replacement.RawSpecs = catalog.RawSpec{"Width": "155mm"}

	id, err := UpsertProduct(database, replacement)
	if err != nil {
		t.Fatalf("UpsertProduct() error = %v", err)
	}
	if id != p.ID {
		t.Errorf("upsert id = %q, want existing id %q", id, p.ID)
	}

	got, err := GetProduct(database, p.ID)
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if got.Name != "Renamed Saddle" {
		t.Errorf("Name = %q, want replaced name", got.Name)
	}
	if len(got.RawSpecs) != 1 || got.RawSpecs["Width"] != "155mm" {
		t.Errorf("RawSpecs = %v, want wholesale replacement", got.RawSpecs)
	}
}

func TestGetProductBySource(t *testing.T) {
	database := initTestDB(t)

	p := testProduct("01TESTPRODUCT0000000000001", "sdl-1", "saddles")
	if err := InsertProduct(database, p); err != nil {
		t.Fatalf("InsertProduct() error = %v", err)
	}

	got, err := GetProductBySource(database, "saddles", "sdl-1")
	if err != nil {
		t.Fatalf("GetProductBySource() error = %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("ID = %q, want %q", got.ID, p.ID)
	}

	if _, err := GetProductBySource(database, "saddles", "nope"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestListProducts_Pagination(t *testing.T) {
	database := initTestDB(t)

	for i := 0; i < 5; i++ {
		p := testProduct(fmt.Sprintf("01TESTPRODUCT000000000000%d", i), fmt.Sprintf("sdl-%d", i), "saddles")
		if err := InsertProduct(database, p); err != nil {
			t.Fatalf("InsertProduct() error = %v", err)
		}
	}

	page, total, err := ListProducts(database, "saddles", "", 2, 0)
	if err != nil {
		t.Fatalf("ListProducts() error = %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Errorf("page size = %d, want 2", len(page))
	}

	rest, _, err := ListProducts(database, "saddles", "", 10, 4)
	if err != nil {
		t.Fatalf("ListProducts() offset error = %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("offset page size = %d, want 1", len(rest))
	}
}

func TestListProducts_NameFilter(t *testing.T) {
	database := initTestDB(t)

	a := testProduct("01TESTPRODUCT0000000000001", "sdl-1", "saddles")
	a.Name = "Arione Carbon"
	b := testProduct("01TESTPRODUCT0000000000002", "sdl-2", "saddles")
	b.Name = "Toupe Expert"
	for _, p := range []*catalog.Product{a, b} {
		if err := InsertProduct(database, p); err != nil {
			t.Fatalf("InsertProduct() error = %v", err)
		}
	}

	page, total, err := ListProducts(database, "saddles", "arione", 10, 0)
	if err != nil {
		t.Fatalf("ListProducts() error = %v", err)
	}
	if total != 1 || len(page) != 1 || page[0].Name != "Arione Carbon" {
		t.Errorf("filtered list = %v (total %d), want only Arione Carbon", page, total)
	}
}

func TestListCategories(t *testing.T) {
	database := initTestDB(t)

	if err := InsertProduct(database, testProduct("01TESTPRODUCT0000000000001", "sdl-1", "saddles")); err != nil {
		t.Fatalf("InsertProduct() error = %v", err)
	}
	if err := InsertProduct(database, testProduct("01TESTPRODUCT0000000000002", "sdl-2", "saddles")); err != nil {
		t.Fatalf("InsertProduct() error = %v", err)
	}
	if err := InsertProduct(database, testProduct("01TESTPRODUCT0000000000003", "cas-1", "cassettes")); err != nil {
		t.Fatalf("InsertProduct() error = %v", err)
	}
	fields := []catalog.DiscoveredField{
		{FieldName: "width", OriginalLabels: []string{"Width"}, Frequency: 1.0},
	}
	if err := ReplaceDiscoveredFields(database, "saddles", fields); err != nil {
		t.Fatalf("ReplaceDiscoveredFields() error = %v", err)
	}

	infos, err := ListCategories(database)
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d categories, want 2", len(infos))
	}
	// Sorted by category name: cassettes, saddles
	if infos[0].Category != "cassettes" || infos[0].ProductCount != 1 || infos[0].FieldCount != 0 {
		t.Errorf("cassettes info = %+v", infos[0])
	}
	if infos[1].Category != "saddles" || infos[1].ProductCount != 2 || infos[1].FieldCount != 1 {
		t.Errorf("saddles info = %+v", infos[1])
	}
}

func TestGetRawSpecs(t *testing.T) {
	database := initTestDB(t)

	for i := 0; i < 3; i++ {
		p := testProduct(fmt.Sprintf("01TESTPRODUCT000000000000%d", i), fmt.Sprintf("sdl-%d", i), "saddles")
		if err := InsertProduct(database, p); err != nil {
			t.Fatalf("InsertProduct() error = %v", err)
		}
	}

	specs, err := GetRawSpecs(database, "saddles", 0)
	if err != nil {
		t.Fatalf("GetRawSpecs() error = %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("got %d entries, want 3", len(specs))
	}
	for _, ps := range specs {
		if ps.Specs["Width"] != "143mm" {
			t.Errorf("specs for %s = %v", ps.ProductID, ps.Specs)
		}
	}

	limited, err := GetRawSpecs(database, "saddles", 2)
	if err != nil {
		t.Fatalf("GetRawSpecs() limit error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited entries = %d, want 2", len(limited))
	}
}

func TestReplaceDiscoveredFields_RoundTrip(t *testing.T) {
	database := initTestDB(t)

	fields := []catalog.DiscoveredField{
		{FieldName: "width", OriginalLabels: []string{"Width"}, Frequency: 0.75, SampleValues: []string{"143mm"}},
		{FieldName: "shell_material", OriginalLabels: []string{"Shell Material"}, Frequency: 0.6},
	}
	if err := ReplaceDiscoveredFields(database, "saddles", fields); err != nil {
		t.Fatalf("ReplaceDiscoveredFields() error = %v", err)
	}

	got, err := GetDiscoveredFields(database, "saddles")
	if err != nil {
		t.Fatalf("GetDiscoveredFields() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d fields, want 2", len(got))
	}
	// Ordered by descending frequency
	if got[0].FieldName != "width" || got[0].Frequency != 0.75 {
		t.Errorf("got[0] = %+v, want width at 0.75", got[0])
	}
	if got[0].SampleValues[0] != "143mm" {
		t.Errorf("sample values = %v", got[0].SampleValues)
	}
	if len(got[1].SampleValues) != 0 {
		t.Errorf("shell_material samples = %v, want none", got[1].SampleValues)
	}

	// Replace overwrites the whole schema
	if err := ReplaceDiscoveredFields(database, "saddles", fields[:1]); err != nil {
		t.Fatalf("second ReplaceDiscoveredFields() error = %v", err)
	}
	got, err = GetDiscoveredFields(database, "saddles")
	if err != nil {
		t.Fatalf("GetDiscoveredFields() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("after replace got %d fields, want 1", len(got))
	}
}

func TestUpsertNormalizedSpecs_ReplacesNotDuplicates(t *testing.T) {
	database := initTestDB(t)

	p := testProduct("01TESTPRODUCT0000000000001", "sdl-1", "saddles")
	if err := InsertProduct(database, p); err != nil {
		t.Fatalf("InsertProduct() error = %v", err)
	}

	if err := UpsertNormalizedSpecs(database, p.ID, catalog.NormalizedSpec{"width": "143mm"}); err != nil {
		t.Fatalf("UpsertNormalizedSpecs() error = %v", err)
	}
	if err := UpsertNormalizedSpecs(database, p.ID, catalog.NormalizedSpec{"width": "155mm", "rails": "ti"}); err != nil {
		t.Fatalf("second UpsertNormalizedSpecs() error = %v", err)
	}

	specs, err := GetNormalizedSpecs(database, p.ID)
	if err != nil {
		t.Fatalf("GetNormalizedSpecs() error = %v", err)
	}
	if len(specs) != 2 {
		t.Errorf("got %d rows, want 2 (no duplicates for same product+field)", len(specs))
	}
	if specs["width"] != "155mm" {
		t.Errorf("width = %q, want replaced value 155mm", specs["width"])
	}

	var count int
	if err := database.QueryRow(`SELECT COUNT(*) FROM normalized_specs WHERE product_id = ? AND field_name = 'width'`, p.ID).Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 1 {
		t.Errorf("width rows = %d, want exactly 1", count)
	}
}

func TestInsertAndListRuns(t *testing.T) {
	database := initTestDB(t)

	for i := 0; i < 3; i++ {
		run := RunRecord{
			ID:         fmt.Sprintf("01TESTRUN000000000000000%02d", i),
			StartedAt:  int64(1000 + i),
			FinishedAt: int64(1001 + i),
			Report:     []byte(`{"categories_processed":1}`),
		}
		if err := InsertRun(database, run); err != nil {
			t.Fatalf("InsertRun() error = %v", err)
		}
	}

	runs, err := ListRuns(database, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	// Newest first
	if runs[0].StartedAt != 1002 {
		t.Errorf("runs[0].StartedAt = %d, want 1002", runs[0].StartedAt)
	}
}

func TestDeleteCategory(t *testing.T) {
	database := initTestDB(t)

	p := testProduct("01TESTPRODUCT0000000000001", "sdl-1", "saddles")
	if err := InsertProduct(database, p); err != nil {
		t.Fatalf("InsertProduct() error = %v", err)
	}
	if err := UpsertNormalizedSpecs(database, p.ID, catalog.NormalizedSpec{"width": "143mm"}); err != nil {
		t.Fatalf("UpsertNormalizedSpecs() error = %v", err)
	}
	if err := ReplaceDiscoveredFields(database, "saddles", []catalog.DiscoveredField{
		{FieldName: "width", OriginalLabels: []string{"Width"}, Frequency: 1.0},
	}); err != nil {
		t.Fatalf("ReplaceDiscoveredFields() error = %v", err)
	}
	other := testProduct("01TESTPRODUCT0000000000002", "cas-1", "cassettes")
	if err := InsertProduct(database, other); err != nil {
		t.Fatalf("InsertProduct() error = %v", err)
	}

	deleted, err := DeleteCategory(database, "saddles")
	if err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if _, err := GetProduct(database, p.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("product should be gone, got %v", err)
	}
	for _, table := range []string{"raw_specs", "normalized_specs"} {
		var count int
		if err := database.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE product_id = ?", p.ID).Scan(&count); err != nil {
			t.Fatalf("count %s error = %v", table, err)
		}
		if count != 0 {
			t.Errorf("%s rows = %d, want 0 (cascade delete)", table, count)
		}
	}
	fields, err := GetDiscoveredFields(database, "saddles")
	if err != nil {
		t.Fatalf("GetDiscoveredFields() error = %v", err)
	}
	if len(fields) != 0 {
		t.Errorf("fields = %v, want none after category delete", fields)
	}

	// Other category untouched
	if _, err := GetProduct(database, other.ID); err != nil {
		t.Errorf("cassettes product should survive, got %v", err)
	}
}
