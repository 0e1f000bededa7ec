package ops

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tmoller/specdex/internal/catalog"
	"github.com/tmoller/specdex/internal/config"
	"github.com/tmoller/specdex/internal/db"
	"github.com/tmoller/specdex/internal/errors"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // default: fail the line on (category, source_id) collision
	ImportModeReplace ImportMode = "replace" // overwrite existing product and raw specs
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents an error that occurred on one import line.
type ImportError struct {
	Line     int    `json:"line"`
	SourceID string `json:"source_id,omitempty"`
	Category string `json:"category,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// importRecord is the JSONL line shape produced by the scraper.
type importRecord struct {
	SourceID    string          `json:"source_id"`
	Category    string          `json:"category"`
	Name        string          `json:"name"`
	URL         string          `json:"url,omitempty"`
	Price       string          `json:"price,omitempty"`
	Description string          `json:"description,omitempty"`
	Specs       json.RawMessage `json:"specs,omitempty"`
}

// Import loads scraped products from a JSONL file (one product per
// line). Malformed lines and malformed spec entries are tolerated and
// reported, never abort the batch.
func Import(database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}

	if err := ValidateImportPath(input.Path, cfg); err != nil {
		return nil, err
	}

	// ValidateImportPath checks directory components; O_NOFOLLOW at open
	// time closes the window where the final component is swapped for a
	// symlink after the check.
	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := err.(*errors.Error); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	output := &ImportOutput{Errors: []ImportError{}}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var record importRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			output.Skipped++
			output.Errors = append(output.Errors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		if lineErr := importOne(database, &record, input.Mode); lineErr != nil {
			lineErr.Line = lineNum
			output.Skipped++
			output.Errors = append(output.Errors, *lineErr)
			continue
		}
		output.Imported++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}

	return output, nil
}

// importOne validates and stores one record; returns a line error
// (without line number) on failure.
func importOne(database *sql.DB, record *importRecord, mode ImportMode) *ImportError {
	category := cleanCategory(record.Category)
	sourceID := strings.TrimSpace(record.SourceID)
	name := strings.TrimSpace(record.Name)

	lineError := func(code, message string) *ImportError {
		return &ImportError{
			SourceID: sourceID,
			Category: category,
			Code:     code,
			Message:  message,
		}
	}

	if sourceID == "" {
		return lineError("INVALID_REQUEST", "source_id is required")
	}
	if category == "" {
		return lineError("INVALID_REQUEST", "category is required")
	}
	if name == "" {
		return lineError("INVALID_REQUEST", "name is required")
	}

	id, err := generateULID()
	if err != nil {
		return lineError("INTERNAL", err.Error())
	}

	now := time.Now().Unix()
	product := &catalog.Product{
		ID:          id,
		SourceID:    sourceID,
		Category:    category,
		Name:        name,
		URL:         strings.TrimSpace(record.URL),
		Price:       strings.TrimSpace(record.Price),
		Description: record.Description,
		RawSpecs:    coerceSpecs(record.Specs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if mode == ImportModeReplace {
		if _, err := db.UpsertProduct(database, product); err != nil {
			return lineError("STORAGE", err.Error())
		}
		return nil
	}

	err = db.InsertProduct(database, product)
	if err == db.ErrUniqueConstraint {
		collision := errors.NewAlreadyExists(category, sourceID)
		return lineError(string(collision.Code), collision.Message)
	}
	if err != nil {
		return lineError("STORAGE", err.Error())
	}
	return nil
}

// coerceSpecs converts a raw specs JSON object into a string→string
// map. Scalars are coerced to strings; entries with object, array or
// null values are dropped, as is a non-object specs payload. The core
// assumes string labels and values throughout, so anything else is
// tolerated and ignored here at the boundary.
func coerceSpecs(raw json.RawMessage) catalog.RawSpec {
	if len(raw) == 0 {
		return nil
	}

	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}

	specs := make(catalog.RawSpec, len(values))
	for label, value := range values {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		switch v := value.(type) {
		case string:
			specs[label] = v
		case float64:
			specs[label] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			specs[label] = strconv.FormatBool(v)
		default:
			// objects, arrays, null
		}
	}
	if len(specs) == 0 {
		return nil
	}
	return specs
}
