// Package stats derives league-wide weighting constants from ingested
// season data and guards against year-over-year drift.
package stats

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"pennant/internal/model"
	"pennant/internal/storage"
)

// ErrNoSeasonData indicates a year has no batting data to derive
// constants from.
var ErrNoSeasonData = stderrors.New("no season data")

// Linear-weight offsets above the league run environment. Standard run
// values; the run environment itself (runs per PA / per out) is what
// moves year to year.
const (
	walkOffset  = 0.14
	hitOffset   = 0.47
	extraOffset = 0.78
)

// Compute derives the year's LeagueConstants from committed batting data.
func Compute(db *storage.DB, year int) (*model.LeagueConstants, error) {
	var atBats, runs, hits, doubles, triples, homers, walks, strikeouts sql.NullInt64
	err := db.QueryRow(`
		SELECT SUM(b.at_bats), SUM(b.runs), SUM(b.hits), SUM(b.doubles),
		       SUM(b.triples), SUM(b.home_runs), SUM(b.walks), SUM(b.strikeouts)
		FROM batting_lines b
		JOIN games g ON g.id = b.game_id
		WHERE substr(g.date, 1, 4) = ?
	`, fmt.Sprintf("%04d", year)).Scan(
		&atBats, &runs, &hits, &doubles, &triples, &homers, &walks, &strikeouts,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate year %d: %w", year, err)
	}

	outs := atBats.Int64 - hits.Int64
	pa := atBats.Int64 + walks.Int64
	if pa <= 0 || outs <= 0 {
		return nil, fmt.Errorf("year %d: %w", year, ErrNoSeasonData)
	}

	runsPerOut := float64(runs.Int64) / float64(outs)
	runsPerPA := float64(runs.Int64) / float64(pa)

	return &model.LeagueConstants{
		Year:        year,
		RunsPerOut:  runsPerOut,
		RunsPerPA:   runsPerPA,
		WalkWeight:  runsPerPA + walkOffset,
		HitWeight:   runsPerPA + hitOffset,
		ExtraWeight: runsPerPA + extraOffset,
		ComputedAt:  time.Now().UTC(),
	}, nil
}

// Store persists a year's constants, replacing any previous computation
// for that year. Constants are derived data, so recomputation is expected.
func Store(db *storage.DB, lc *model.LeagueConstants) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO league_constants
			(year, runs_per_out, runs_per_pa, walk_weight, hit_weight, extra_weight, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, lc.Year, lc.RunsPerOut, lc.RunsPerPA, lc.WalkWeight, lc.HitWeight, lc.ExtraWeight,
		lc.ComputedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store constants for %d: %w", lc.Year, err)
	}
	return nil
}

// Load reads the persisted constants for a year. Returns nil without
// error when the year has no record.
func Load(db *storage.DB, year int) (*model.LeagueConstants, error) {
	var lc model.LeagueConstants
	var computedAt string
	err := db.QueryRow(`
		SELECT year, runs_per_out, runs_per_pa, walk_weight, hit_weight, extra_weight, computed_at
		FROM league_constants WHERE year = ?
	`, year).Scan(
		&lc.Year, &lc.RunsPerOut, &lc.RunsPerPA, &lc.WalkWeight, &lc.HitWeight,
		&lc.ExtraWeight, &computedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load constants for %d: %w", year, err)
	}
	lc.ComputedAt, _ = time.Parse(time.RFC3339, computedAt)
	return &lc, nil
}
