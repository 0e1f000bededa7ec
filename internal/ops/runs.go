package ops

import (
	"database/sql"
	"encoding/json"

	"github.com/tmoller/specdex/internal/db"
)

// RunsInput contains parameters for the Runs operation.
type RunsInput struct {
	Limit int // default 10, max 100
}

// RunSummary is one recorded backfill run with its report.
type RunSummary struct {
	ID         string          `json:"id"`
	StartedAt  int64           `json:"started_at"`
	FinishedAt int64           `json:"finished_at"`
	Report     json.RawMessage `json:"report"`
}

// RunsOutput contains the result of the Runs operation.
type RunsOutput struct {
	Runs  []RunSummary `json:"runs"`
	Count int          `json:"count"`
}

// Runs lists recent backfill runs, newest first.
func Runs(database *sql.DB, input RunsInput) (*RunsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultRunsLimit
	}
	if limit > MaxRunsLimit {
		limit = MaxRunsLimit
	}

	records, err := db.ListRuns(database, limit)
	if err != nil {
		return nil, err
	}

	runs := make([]RunSummary, 0, len(records))
	for _, r := range records {
		runs = append(runs, RunSummary{
			ID:         r.ID,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			Report:     r.Report,
		})
	}
	return &RunsOutput{Runs: runs, Count: len(runs)}, nil
}
