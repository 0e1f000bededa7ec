package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/tmoller/specdex/internal/catalog"
	"github.com/tmoller/specdex/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.Error{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// ProductSpecs pairs a product id with its raw spec map.
type ProductSpecs struct {
	ProductID string
	Specs     catalog.RawSpec
}

// RunRecord is a persisted backfill run.
type RunRecord struct {
	ID         string          `json:"id"`
	StartedAt  int64           `json:"started_at"`
	FinishedAt int64           `json:"finished_at"`
	Report     json.RawMessage `json:"report"`
}

// InsertProduct stores a new product and its raw specs in one transaction.
// Fails with ErrUniqueConstraint if (category, source_id) already exists.
func InsertProduct(db *sql.DB, p *catalog.Product) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewStorage("begin insert product", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO products (id, source_id, category, name, url, price, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.SourceID, p.Category, p.Name, p.URL, p.Price, p.Description, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewStorage("insert product", err)
	}

	if err := insertRawSpecs(tx, p.ID, p.RawSpecs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorage("commit insert product", err)
	}
	return nil
}

// UpsertProduct stores a product, replacing any existing row with the
// same (category, source_id) along with its raw specs. Returns the id
// of the stored row (the existing id on replace).
func UpsertProduct(db *sql.DB, p *catalog.Product) (string, error) {
	tx, err := db.Begin()
	if err != nil {
		return "", errors.NewStorage("begin upsert product", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO products (id, source_id, category, name, url, price, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, source_id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			price = excluded.price,
			description = excluded.description,
			updated_at = excluded.updated_at
	`, p.ID, p.SourceID, p.Category, p.Name, p.URL, p.Price, p.Description, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return "", errors.NewStorage("upsert product", err)
	}

	// Resolve the id actually stored (pre-existing row keeps its id).
	var id string
	err = tx.QueryRow(`SELECT id FROM products WHERE category = ? AND source_id = ?`,
		p.Category, p.SourceID).Scan(&id)
	if err != nil {
		return "", errors.NewStorage("resolve upserted product id", err)
	}

	// Raw specs are replaced wholesale for the stored product.
	if _, err := tx.Exec(`DELETE FROM raw_specs WHERE product_id = ?`, id); err != nil {
		return "", errors.NewStorage("clear raw specs", err)
	}
	if err := insertRawSpecs(tx, id, p.RawSpecs); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", errors.NewStorage("commit upsert product", err)
	}
	return id, nil
}

func insertRawSpecs(tx *sql.Tx, productID string, specs catalog.RawSpec) error {
	if len(specs) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO raw_specs (product_id, label, value) VALUES (?, ?, ?)`)
	if err != nil {
		return errors.NewStorage("prepare raw spec insert", err)
	}
	defer stmt.Close()

	for label, value := range specs {
		if _, err := stmt.Exec(productID, label, value); err != nil {
			return errors.NewStorage("insert raw spec", err)
		}
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanProduct(row *sql.Row) (*catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.SourceID, &p.Category, &p.Name, &p.URL, &p.Price,
		&p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProduct retrieves a product by id, including raw and normalized specs.
func GetProduct(db *sql.DB, id string) (*catalog.Product, error) {
	row := db.QueryRow(`
		SELECT id, source_id, category, name, url, price, description, created_at, updated_at
		FROM products WHERE id = ?
	`, id)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if p.RawSpecs, err = rawSpecsFor(db, p.ID); err != nil {
		return nil, err
	}
	if p.NormalizedSpecs, err = GetNormalizedSpecs(db, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProductBySource retrieves a product by its category and source id.
func GetProductBySource(db *sql.DB, category, sourceID string) (*catalog.Product, error) {
	row := db.QueryRow(`
		SELECT id, source_id, category, name, url, price, description, created_at, updated_at
		FROM products WHERE category = ? AND source_id = ?
	`, category, sourceID)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(category + "/" + sourceID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if p.RawSpecs, err = rawSpecsFor(db, p.ID); err != nil {
		return nil, err
	}
	if p.NormalizedSpecs, err = GetNormalizedSpecs(db, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func rawSpecsFor(db *sql.DB, productID string) (catalog.RawSpec, error) {
	rows, err := db.Query(`SELECT label, value FROM raw_specs WHERE product_id = ?`, productID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	specs := make(catalog.RawSpec)
	for rows.Next() {
		var label, value string
		if err := rows.Scan(&label, &value); err != nil {
			return nil, errors.NewInternal(err)
		}
		specs[label] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return specs, nil
}

// ListProducts returns product summaries for a category, newest first,
// with an optional case-insensitive name filter.
func ListProducts(db *sql.DB, category, nameQuery string, limit, offset int) ([]catalog.Summary, int, error) {
	where := "WHERE category = ?"
	args := []any{category}
	if nameQuery != "" {
		where += " AND name LIKE ? COLLATE NOCASE"
		args = append(args, "%"+nameQuery+"%")
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM products "+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT p.id, p.source_id, p.category, p.name, p.price, p.updated_at,
			(SELECT COUNT(*) FROM normalized_specs ns WHERE ns.product_id = p.id)
		FROM products p ` + where + `
		ORDER BY p.updated_at DESC, p.id
		LIMIT ? OFFSET ?
	`
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	summaries := make([]catalog.Summary, 0, limit)
	for rows.Next() {
		var s catalog.Summary
		var price sql.NullString
		if err := rows.Scan(&s.ID, &s.SourceID, &s.Category, &s.Name, &price, &s.UpdatedAt, &s.SpecCount); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		s.Price = price.String
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return summaries, total, nil
}

// SearchProducts returns summaries matching a name substring across all
// categories (or one category if non-empty), newest first.
func SearchProducts(db *sql.DB, category, query string, limit int) ([]catalog.Summary, error) {
	where := "WHERE name LIKE ? COLLATE NOCASE"
	args := []any{"%" + query + "%"}
	if category != "" {
		where += " AND category = ?"
		args = append(args, category)
	}

	rows, err := db.Query(`
		SELECT p.id, p.source_id, p.category, p.name, p.price, p.updated_at,
			(SELECT COUNT(*) FROM normalized_specs ns WHERE ns.product_id = p.id)
		FROM products p `+where+`
		ORDER BY p.updated_at DESC, p.id
		LIMIT ?
	`, append(args, limit)...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	summaries := make([]catalog.Summary, 0, limit)
	for rows.Next() {
		var s catalog.Summary
		var price sql.NullString
		if err := rows.Scan(&s.ID, &s.SourceID, &s.Category, &s.Name, &price, &s.UpdatedAt, &s.SpecCount); err != nil {
			return nil, errors.NewInternal(err)
		}
		s.Price = price.String
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return summaries, nil
}

// ListCategories returns all categories with product and field counts.
func ListCategories(db *sql.DB) ([]catalog.CategoryInfo, error) {
	rows, err := db.Query(`
		SELECT p.category, COUNT(*),
			(SELECT COUNT(*) FROM discovered_fields df WHERE df.category = p.category)
		FROM products p
		GROUP BY p.category
		ORDER BY p.category
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	infos := make([]catalog.CategoryInfo, 0)
	for rows.Next() {
		var info catalog.CategoryInfo
		if err := rows.Scan(&info.Category, &info.ProductCount, &info.FieldCount); err != nil {
			return nil, errors.NewInternal(err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return infos, nil
}

// GetRawSpecs returns all (product_id, raw spec map) pairs for a
// category in insertion order. A limit of 0 means no limit.
func GetRawSpecs(db *sql.DB, category string, limit int) ([]ProductSpecs, error) {
	query := `SELECT id FROM products WHERE category = ? ORDER BY id`
	args := []any{category}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewInternal(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	result := make([]ProductSpecs, 0, len(ids))
	for _, id := range ids {
		specs, err := rawSpecsFor(db, id)
		if err != nil {
			return nil, err
		}
		result = append(result, ProductSpecs{ProductID: id, Specs: specs})
	}
	return result, nil
}

// GetDiscoveredFields returns the persisted field schema for a
// category, ordered by descending frequency.
func GetDiscoveredFields(db *sql.DB, category string) ([]catalog.DiscoveredField, error) {
	rows, err := db.Query(`
		SELECT field_name, original_labels, frequency, sample_values
		FROM discovered_fields
		WHERE category = ?
		ORDER BY frequency DESC, field_name
	`, category)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	fields := make([]catalog.DiscoveredField, 0)
	for rows.Next() {
		var f catalog.DiscoveredField
		var labelsJSON string
		var samplesJSON sql.NullString
		if err := rows.Scan(&f.FieldName, &labelsJSON, &f.Frequency, &samplesJSON); err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := json.Unmarshal([]byte(labelsJSON), &f.OriginalLabels); err != nil {
			return nil, errors.NewInternal(err)
		}
		if samplesJSON.Valid {
			if err := json.Unmarshal([]byte(samplesJSON.String), &f.SampleValues); err != nil {
				return nil, errors.NewInternal(err)
			}
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return fields, nil
}

// ReplaceDiscoveredFields overwrites the whole field schema for a
// category in one transaction.
func ReplaceDiscoveredFields(db *sql.DB, category string, fields []catalog.DiscoveredField) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewStorage("begin replace discovered fields", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM discovered_fields WHERE category = ?`, category); err != nil {
		return errors.NewStorage("clear discovered fields", err)
	}

	now := time.Now().Unix()
	stmt, err := tx.Prepare(`
		INSERT INTO discovered_fields (category, field_name, original_labels, frequency, sample_values, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewStorage("prepare discovered field insert", err)
	}
	defer stmt.Close()

	for _, f := range fields {
		labelsJSON, err := json.Marshal(f.OriginalLabels)
		if err != nil {
			return errors.NewInternal(err)
		}
		var samplesJSON sql.NullString
		if len(f.SampleValues) > 0 {
			data, err := json.Marshal(f.SampleValues)
			if err != nil {
				return errors.NewInternal(err)
			}
			samplesJSON = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := stmt.Exec(category, f.FieldName, string(labelsJSON), f.Frequency, samplesJSON, now); err != nil {
			return errors.NewStorage("insert discovered field", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorage("commit replace discovered fields", err)
	}
	return nil
}

// UpsertNormalizedSpecs writes a product's normalized spec values,
// replacing any prior value for the same (product_id, field_name).
func UpsertNormalizedSpecs(db *sql.DB, productID string, specs catalog.NormalizedSpec) error {
	if len(specs) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.NewStorage("begin upsert normalized specs", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	stmt, err := tx.Prepare(`
		INSERT INTO normalized_specs (product_id, field_name, field_value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(product_id, field_name) DO UPDATE SET
			field_value = excluded.field_value,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return errors.NewStorage("prepare normalized spec upsert", err)
	}
	defer stmt.Close()

	for name, value := range specs {
		if _, err := stmt.Exec(productID, name, value, now); err != nil {
			return errors.NewStorage("upsert normalized spec", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorage("commit upsert normalized specs", err)
	}
	return nil
}

// GetNormalizedSpecs returns a product's normalized spec map.
func GetNormalizedSpecs(db *sql.DB, productID string) (catalog.NormalizedSpec, error) {
	rows, err := db.Query(`SELECT field_name, field_value FROM normalized_specs WHERE product_id = ?`, productID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	specs := make(catalog.NormalizedSpec)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, errors.NewInternal(err)
		}
		specs[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return specs, nil
}

// InsertRun records a completed backfill run.
func InsertRun(db *sql.DB, run RunRecord) error {
	_, err := db.Exec(`
		INSERT INTO backfill_runs (id, started_at, finished_at, report)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.FinishedAt, string(run.Report))
	if err != nil {
		return errors.NewStorage("insert backfill run", err)
	}
	return nil
}

// ListRuns returns the most recent backfill runs, newest first.
func ListRuns(db *sql.DB, limit int) ([]RunRecord, error) {
	rows, err := db.Query(`
		SELECT id, started_at, finished_at, report
		FROM backfill_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		var run RunRecord
		var report string
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &report); err != nil {
			return nil, errors.NewInternal(err)
		}
		run.Report = json.RawMessage(report)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return runs, nil
}

// DeleteCategory removes a category's products; raw and normalized
// specs go with them via ON DELETE CASCADE. Discovered fields for the
// category are removed as well. Returns the number of products deleted.
func DeleteCategory(db *sql.DB, category string) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, errors.NewStorage("begin delete category", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM products WHERE category = ?`, category)
	if err != nil {
		return 0, errors.NewStorage("delete products", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	if _, err := tx.Exec(`DELETE FROM discovered_fields WHERE category = ?`, category); err != nil {
		return 0, errors.NewStorage("delete discovered fields", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewStorage("commit delete category", err)
	}
	return int(deleted), nil
}
