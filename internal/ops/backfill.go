package ops

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/tmoller/specdex/internal/backfill"
	"github.com/tmoller/specdex/internal/config"
	"github.com/tmoller/specdex/internal/db"
	"github.com/tmoller/specdex/internal/errors"
)

// BackfillInput contains parameters for the Backfill operation.
type BackfillInput struct {
	Categories   []string // empty = all categories in the database
	MinFrequency float64  // 0 = use config (default 0.3)
	SampleLimit  int      // 0 = use config (default all products)
}

// BackfillOutput contains the result of the Backfill operation.
type BackfillOutput struct {
	RunID      string           `json:"run_id"`
	StartedAt  int64            `json:"started_at"`
	FinishedAt int64            `json:"finished_at"`
	Report     *backfill.Report `json:"report"`
}

// Backfill runs the discovery and normalization pipeline over stored
// categories and records the run. A failing category never aborts the
// run; its error is carried in the report.
func Backfill(database *sql.DB, cfg *config.Config, input BackfillInput) (*BackfillOutput, error) {
	minFrequency := resolveMinFrequency(input.MinFrequency, cfg)
	if minFrequency <= 0 || minFrequency > 1 {
		return nil, errors.NewInvalidRequest("min_frequency must be in (0, 1]")
	}
	sampleLimit := input.SampleLimit
	if sampleLimit <= 0 && cfg != nil {
		sampleLimit = cfg.SampleLimit
	}

	categories := make([]string, 0, len(input.Categories))
	for _, c := range input.Categories {
		if c = cleanCategory(c); c != "" {
			categories = append(categories, c)
		}
	}

	runID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var extraLabels map[string][]string
	if cfg != nil {
		extraLabels = cfg.ExtraLabels
	}

	startedAt := time.Now().Unix()
	report, err := backfill.Run(backfill.NewStore(database), backfill.Options{
		RunID:        runID,
		Categories:   categories,
		MinFrequency: minFrequency,
		SampleLimit:  sampleLimit,
		ExtraLabels:  extraLabels,
	})
	if err != nil {
		return nil, err
	}
	finishedAt := time.Now().Unix()

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := db.InsertRun(database, db.RunRecord{
		ID:         runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Report:     reportJSON,
	}); err != nil {
		return nil, err
	}

	return &BackfillOutput{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Report:     report,
	}, nil
}
