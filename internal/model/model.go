// Package model defines the row types ingested into the season stores.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Game status values. Transitions are an upstream-producer concern; the
// ingestion core never mutates a game after insert.
const (
	StatusScheduled = "scheduled"
	StatusLive      = "live"
	StatusFinal     = "final"
)

// lineNamespace is the fixed UUID namespace for surrogate line row ids.
// Deriving ids with NewSHA1 keeps them stable across producer runs, which
// is what makes the anti-join upsert idempotent for line tables.
var lineNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Game is one scheduled or played game.
type Game struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	HomeTeam  string    `json:"homeTeam"`
	AwayTeam  string    `json:"awayTeam"`
	HomeScore int       `json:"homeScore"`
	AwayScore int       `json:"awayScore"`
	Venue     string    `json:"venue"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GameID derives the deterministic game id from date and matchup,
// e.g. "20230415-BOS-NYY" for an April 15 2023 game at New York.
func GameID(date, awayTeam, homeTeam string) string {
	compact := strings.ReplaceAll(date, "-", "")
	return fmt.Sprintf("%s-%s-%s", compact, strings.ToUpper(awayTeam), strings.ToUpper(homeTeam))
}

// BattingLine is one batter's line in one game.
type BattingLine struct {
	ID         string `json:"id"`
	GameID     string `json:"gameId"`
	Team       string `json:"team"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	AtBats     int    `json:"atBats"`
	Runs       int    `json:"runs"`
	Hits       int    `json:"hits"`
	Doubles    int    `json:"doubles"`
	Triples    int    `json:"triples"`
	HomeRuns   int    `json:"homeRuns"`
	RBI        int    `json:"rbi"`
	Walks      int    `json:"walks"`
	Strikeouts int    `json:"strikeouts"`
}

// PitchingLine is one pitcher's line in one game. Outs is innings pitched
// in thirds (6.1 IP = 19 outs), avoiding the x.1/x.2 display convention.
type PitchingLine struct {
	ID          string `json:"id"`
	GameID      string `json:"gameId"`
	Team        string `json:"team"`
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	Outs        int    `json:"outs"`
	HitsAllowed int    `json:"hitsAllowed"`
	RunsAllowed int    `json:"runsAllowed"`
	EarnedRuns  int    `json:"earnedRuns"`
	Walks       int    `json:"walks"`
	Strikeouts  int    `json:"strikeouts"`
}

// LineID derives the surrogate row id for a batting or pitching line.
// The kind discriminator keeps a two-way player's batting and pitching
// rows for the same game distinct.
func LineID(kind, gameID, team, playerID string) string {
	return uuid.NewSHA1(lineNamespace, []byte(kind+"|"+gameID+"|"+team+"|"+playerID)).String()
}

// LeagueConstants holds the derived weighting coefficients for one year.
type LeagueConstants struct {
	Year        int       `json:"year"`
	RunsPerOut  float64   `json:"runsPerOut"`
	RunsPerPA   float64   `json:"runsPerPA"`
	WalkWeight  float64   `json:"walkWeight"`
	HitWeight   float64   `json:"hitWeight"`
	ExtraWeight float64   `json:"extraWeight"`
	ComputedAt  time.Time `json:"computedAt"`
}

// Coefficient returns the named coefficient value, used by the drift guard
// to select its representative.
func (lc *LeagueConstants) Coefficient(name string) (float64, bool) {
	switch name {
	case "runsPerOut":
		return lc.RunsPerOut, true
	case "runsPerPA":
		return lc.RunsPerPA, true
	case "walkWeight":
		return lc.WalkWeight, true
	case "hitWeight":
		return lc.HitWeight, true
	case "extraWeight":
		return lc.ExtraWeight, true
	default:
		return 0, false
	}
}

// IngestionBatch is the transient unit of ingestion for one (year, month).
// It lives for the duration of one transaction and is then discarded.
type IngestionBatch struct {
	Year     int            `json:"year"`
	Month    int            `json:"month"`
	Games    []Game         `json:"games"`
	Batting  []BattingLine  `json:"batting"`
	Pitching []PitchingLine `json:"pitching"`
}

// Empty reports whether the batch carries no rows at all. An empty batch
// is a valid producer response, not an error.
func (b *IngestionBatch) Empty() bool {
	return len(b.Games) == 0 && len(b.Batting) == 0 && len(b.Pitching) == 0
}

// AssignIDs fills in any missing deterministic ids on the batch rows.
func (b *IngestionBatch) AssignIDs() {
	for i := range b.Games {
		if b.Games[i].ID == "" {
			g := &b.Games[i]
			g.ID = GameID(g.Date, g.AwayTeam, g.HomeTeam)
		}
	}
	for i := range b.Batting {
		if b.Batting[i].ID == "" {
			l := &b.Batting[i]
			l.ID = LineID("bat", l.GameID, l.Team, l.PlayerID)
		}
	}
	for i := range b.Pitching {
		if b.Pitching[i].ID == "" {
			l := &b.Pitching[i]
			l.ID = LineID("pit", l.GameID, l.Team, l.PlayerID)
		}
	}
}
