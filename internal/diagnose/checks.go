package diagnose

import (
	"strconv"
	"time"

	"pennant/internal/config"
	"pennant/internal/errors"
	"pennant/internal/model"
	"pennant/internal/storage"
)

// teamSide aggregates one team's stored lines for a game.
type teamSide struct {
	team       string
	score      int
	runs       int
	hits       int
	atBats     int
	battingSO  int
	players    int
	pitchingSO int
	pitchers   int
}

// DebugGame runs all consistency checks for one game and returns the
// scored report. A missing game is a diagnostic finding, not an error;
// only store unavailability is returned as an error.
func DebugGame(router *storage.Router, gameID string, cfg config.DiagnosticsConfig, opts storage.ReadOptions) (*Report, error) {
	report := &Report{
		GameID:      gameID,
		GeneratedAt: time.Now().UTC(),
	}

	game, source, err := router.Game(gameID, opts)
	if err != nil {
		if errors.HasCode(err, errors.GameNotFound) {
			report.addIssue(CheckCompleteness, SeverityCritical, "game %s not found in any store", gameID)
			report.Score = 0
			report.Status = StatusError
			return report, nil
		}
		return nil, err
	}
	report.Source = source

	batting, _, err := router.BattingLines(gameID, opts)
	if err != nil {
		return nil, err
	}
	pitching, _, err := router.PitchingLines(gameID, opts)
	if err != nil {
		return nil, err
	}

	if _, ok := gameYear(game.Date); !ok {
		report.addIssue(CheckCompleteness, SeverityMedium,
			"game date %q is not parseable, using unadjusted tolerances", game.Date)
	}

	home, away := splitSides(game, batting, pitching)
	runTol, soTol := tolerances(game, cfg)

	checkBoxScore(report, home, away, runTol, soTol, cfg)
	checkAggregationHealth(report, home, away, cfg)
	checkCompleteness(report, home, away)

	report.finalize()
	return report, nil
}

// tolerances returns the year-adjusted run and strikeout tolerances.
// Seasons before the loose-era cutoff get a bonus on every tolerance.
func tolerances(game *model.Game, cfg config.DiagnosticsConfig) (int, int) {
	runTol := cfg.RunTolerance
	soTol := cfg.StrikeoutTolerance
	if year, ok := gameYear(game.Date); ok && year < cfg.LooseEraYear {
		runTol += cfg.LooseEraBonus
		soTol += cfg.LooseEraBonus
	}
	return runTol, soTol
}

// gameYear extracts the season year from a stored YYYY-MM-DD date. The
// ingestion path does not validate dates, so a stored game may carry a
// short or garbled one.
func gameYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0, false
	}
	return year, true
}

func splitSides(game *model.Game, batting []model.BattingLine, pitching []model.PitchingLine) (teamSide, teamSide) {
	home := teamSide{team: game.HomeTeam, score: game.HomeScore}
	away := teamSide{team: game.AwayTeam, score: game.AwayScore}

	for _, l := range batting {
		side := &away
		if l.Team == home.team {
			side = &home
		}
		side.players++
		side.runs += l.Runs
		side.hits += l.Hits
		side.atBats += l.AtBats
		side.battingSO += l.Strikeouts
	}
	for _, l := range pitching {
		side := &away
		if l.Team == home.team {
			side = &home
		}
		side.pitchers++
		side.pitchingSO += l.Strikeouts
	}
	return home, away
}

// checkBoxScore compares stored team scores to batting-run sums and
// cross-validates strikeouts against the opposing pitching lines.
func checkBoxScore(report *Report, home, away teamSide, runTol, soTol int, cfg config.DiagnosticsConfig) {
	for _, side := range []teamSide{home, away} {
		diff := abs(side.score - side.runs)
		switch {
		case diff > 2*runTol:
			report.addIssue(CheckBoxScore, SeverityCritical,
				"%s: stored score %d vs batting run sum %d (diff %d, tolerance %d)",
				side.team, side.score, side.runs, diff, runTol)
		case diff > runTol:
			report.addIssue(CheckBoxScore, SeverityHigh,
				"%s: stored score %d vs batting run sum %d (diff %d, tolerance %d)",
				side.team, side.score, side.runs, diff, runTol)
		}

		if side.hits < cfg.HitMin || side.hits > cfg.HitMax {
			report.addIssue(CheckBoxScore, SeverityMedium,
				"%s: team hit total %d outside plausible range %d-%d",
				side.team, side.hits, cfg.HitMin, cfg.HitMax)
		}
	}

	// A team's batters strike out against the other team's pitchers.
	pairs := []struct {
		batters  teamSide
		pitchers teamSide
	}{
		{home, away},
		{away, home},
	}
	for _, p := range pairs {
		if p.pitchers.pitchers == 0 {
			continue // completeness check reports the missing side
		}
		if diff := abs(p.batters.battingSO - p.pitchers.pitchingSO); diff > soTol {
			report.addIssue(CheckBoxScore, SeverityMedium,
				"%s batting strikeouts %d vs %s pitching strikeouts %d (diff %d, tolerance %d)",
				p.batters.team, p.batters.battingSO, p.pitchers.team, p.pitchers.pitchingSO, diff, soTol)
		}
	}
}

// checkAggregationHealth validates team-level plausibility of the lines.
func checkAggregationHealth(report *Report, home, away teamSide, cfg config.DiagnosticsConfig) {
	for _, side := range []teamSide{home, away} {
		if side.players == 0 {
			continue // completeness check reports the missing side
		}
		if side.players < cfg.PlayersMin || side.players > cfg.PlayersMax {
			report.addIssue(CheckAggregation, SeverityMedium,
				"%s: %d batters recorded, expected %d-%d",
				side.team, side.players, cfg.PlayersMin, cfg.PlayersMax)
		}
		if side.atBats < side.hits {
			report.addIssue(CheckAggregation, SeverityHigh,
				"%s: team at-bats %d below team hits %d", side.team, side.atBats, side.hits)
		}
	}
}

// checkCompleteness requires both teams to have batting and pitching rows.
func checkCompleteness(report *Report, home, away teamSide) {
	for _, side := range []teamSide{home, away} {
		if side.players == 0 {
			report.addIssue(CheckCompleteness, SeverityHigh,
				"%s: no batting lines recorded", side.team)
		}
		if side.pitchers == 0 {
			report.addIssue(CheckCompleteness, SeverityHigh,
				"%s: no pitching lines recorded", side.team)
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
