package stats

import (
	"fmt"
	"math"

	"pennant/internal/model"
	"pennant/internal/storage"
)

// DriftResult reports one year's drift check against the prior year.
type DriftResult struct {
	Year    int                    `json:"year"`
	Delta   float64                `json:"delta"`
	OK      bool                   `json:"ok"`
	Current *model.LeagueConstants `json:"-"`
	Prior   *model.LeagueConstants `json:"-"`
}

// CheckDrift recomputes the year's constants from committed data and
// compares the representative coefficient against the prior year's
// persisted value. An absent prior year means nothing to compare, so the
// check passes with delta 0.
func CheckDrift(db *storage.DB, year int, coefficient string, maxDelta float64) (DriftResult, error) {
	current, err := Compute(db, year)
	if err != nil {
		return DriftResult{}, err
	}

	prior, err := Load(db, year-1)
	if err != nil {
		return DriftResult{}, err
	}

	result := Compare(current, prior, coefficient, maxDelta)
	return result, nil
}

// Compare evaluates the drift of the representative coefficient between
// two computed constant sets. Exposed separately so synthetic constant
// pairs can be checked without a store.
func Compare(current, prior *model.LeagueConstants, coefficient string, maxDelta float64) DriftResult {
	result := DriftResult{
		Year:    current.Year,
		Current: current,
		Prior:   prior,
		OK:      true,
	}
	if prior == nil {
		return result
	}

	curVal, ok := current.Coefficient(coefficient)
	if !ok {
		curVal = current.RunsPerOut
	}
	priorVal, ok := prior.Coefficient(coefficient)
	if !ok {
		priorVal = prior.RunsPerOut
	}

	if priorVal == 0 {
		// Degenerate prior; any nonzero movement is suspect.
		if curVal != 0 {
			result.Delta = 1
			result.OK = false
		}
		return result
	}

	result.Delta = math.Abs(curVal-priorVal) / math.Abs(priorVal)
	result.OK = result.Delta <= maxDelta
	return result
}

// Describe renders a drift result for logs and reports.
func (r DriftResult) Describe(coefficient string) string {
	if r.Prior == nil {
		return fmt.Sprintf("year %d: no prior constants, drift check skipped", r.Year)
	}
	status := "ok"
	if !r.OK {
		status = "VIOLATION"
	}
	return fmt.Sprintf("year %d: %s moved %.2f%% vs %d (%s)",
		r.Year, coefficient, r.Delta*100, r.Year-1, status)
}
