package storage

import (
	"fmt"
	"strings"
	"time"

	"pennant/internal/model"
)

// Ingested table names.
const (
	TableGames    = "games"
	TableBatting  = "batting_lines"
	TablePitching = "pitching_lines"
)

// TableSpec declares the shape of one ingested table: its primary-key
// column and insert column list. The upsert engine consumes specs
// generically, so adding an ingested table means adding a spec here and a
// Row adapter below, nothing else.
type TableSpec struct {
	Name       string
	PrimaryKey string
	Columns    []string
}

var tables = map[string]TableSpec{
	TableGames: {
		Name:       TableGames,
		PrimaryKey: "id",
		Columns: []string{
			"id", "date", "home_team", "away_team", "home_score", "away_score",
			"venue", "status", "created_at", "updated_at",
		},
	},
	TableBatting: {
		Name:       TableBatting,
		PrimaryKey: "id",
		Columns: []string{
			"id", "game_id", "team", "player_id", "player_name", "at_bats",
			"runs", "hits", "doubles", "triples", "home_runs", "rbi",
			"walks", "strikeouts",
		},
	},
	TablePitching: {
		Name:       TablePitching,
		PrimaryKey: "id",
		Columns: []string{
			"id", "game_id", "team", "player_id", "player_name", "outs",
			"hits_allowed", "runs_allowed", "earned_runs", "walks", "strikeouts",
		},
	},
}

// Table looks up the spec for a registered table
func Table(name string) (TableSpec, error) {
	spec, ok := tables[name]
	if !ok {
		return TableSpec{}, fmt.Errorf("table %q is not registered for ingestion", name)
	}
	return spec, nil
}

// TableNames returns the registered ingestion tables in insert order
// (games before lines, so line rows never reference an uncommitted game
// within a transaction).
func TableNames() []string {
	return []string{TableGames, TableBatting, TablePitching}
}

// insertSQL builds the INSERT statement for a spec
func (s TableSpec) insertSQL() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(s.Columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.Name, strings.Join(s.Columns, ", "), placeholders)
}

// Row is one incoming row bound to a registered table: its primary key and
// the insert arguments in spec column order.
type Row interface {
	Key() string
	Args() []interface{}
}

type gameRow struct{ g model.Game }

func (r gameRow) Key() string { return r.g.ID }

func (r gameRow) Args() []interface{} {
	created := r.g.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	updated := r.g.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	return []interface{}{
		r.g.ID, r.g.Date, r.g.HomeTeam, r.g.AwayTeam, r.g.HomeScore, r.g.AwayScore,
		r.g.Venue, r.g.Status,
		created.Format(time.RFC3339), updated.Format(time.RFC3339),
	}
}

type battingRow struct{ l model.BattingLine }

func (r battingRow) Key() string { return r.l.ID }

func (r battingRow) Args() []interface{} {
	return []interface{}{
		r.l.ID, r.l.GameID, r.l.Team, r.l.PlayerID, r.l.PlayerName, r.l.AtBats,
		r.l.Runs, r.l.Hits, r.l.Doubles, r.l.Triples, r.l.HomeRuns, r.l.RBI,
		r.l.Walks, r.l.Strikeouts,
	}
}

type pitchingRow struct{ l model.PitchingLine }

func (r pitchingRow) Key() string { return r.l.ID }

func (r pitchingRow) Args() []interface{} {
	return []interface{}{
		r.l.ID, r.l.GameID, r.l.Team, r.l.PlayerID, r.l.PlayerName, r.l.Outs,
		r.l.HitsAllowed, r.l.RunsAllowed, r.l.EarnedRuns, r.l.Walks, r.l.Strikeouts,
	}
}

// GameRows adapts games for the upsert engine
func GameRows(games []model.Game) []Row {
	rows := make([]Row, len(games))
	for i, g := range games {
		rows[i] = gameRow{g}
	}
	return rows
}

// BattingRows adapts batting lines for the upsert engine
func BattingRows(lines []model.BattingLine) []Row {
	rows := make([]Row, len(lines))
	for i, l := range lines {
		rows[i] = battingRow{l}
	}
	return rows
}

// PitchingRows adapts pitching lines for the upsert engine
func PitchingRows(lines []model.PitchingLine) []Row {
	rows := make([]Row, len(lines))
	for i, l := range lines {
		rows[i] = pitchingRow{l}
	}
	return rows
}
