package storage

import (
	"database/sql"
	"fmt"
	"time"

	"pennant/internal/errors"
	"pennant/internal/logging"
	"pennant/internal/model"
)

// StoreName identifies which season store satisfied a request
type StoreName string

const (
	// StoreCurrent is the live-season store
	StoreCurrent StoreName = "current"
	// StoreHistory is the archival store
	StoreHistory StoreName = "history"
)

// ReadOptions controls read routing. By default reads try the current
// store first and fall back to history on a miss; PreferHistory flips
// that order.
type ReadOptions struct {
	PreferHistory bool
}

// Router resolves every read and write to one of the two season stores.
// It is constructed explicitly and passed down, so tests can wire
// isolated store pairs per case. Either store may be nil (unavailable);
// reads degrade to the remaining store, writes to a missing store fail.
type Router struct {
	current *DB
	history *DB
	logger  *logging.Logger
}

// NewRouter creates a router over the two season stores.
func NewRouter(current, history *DB, logger *logging.Logger) *Router {
	return &Router{current: current, history: history, logger: logger}
}

// Store returns the named store for an explicit write target.
func (r *Router) Store(name StoreName) (*DB, error) {
	var db *DB
	switch name {
	case StoreCurrent:
		db = r.current
	case StoreHistory:
		db = r.history
	default:
		return nil, fmt.Errorf("unknown store %q", name)
	}
	if db == nil {
		return nil, errors.New(errors.StoreUnavailable, fmt.Sprintf("%s store is not available", name))
	}
	return db, nil
}

// History returns the history store, the only store the ingestion core
// writes to.
func (r *Router) History() (*DB, error) {
	return r.Store(StoreHistory)
}

type routedStore struct {
	name StoreName
	db   *DB
}

func (r *Router) readOrder(opts ReadOptions) []routedStore {
	order := []routedStore{
		{StoreCurrent, r.current},
		{StoreHistory, r.history},
	}
	if opts.PreferHistory {
		order[0], order[1] = order[1], order[0]
	}
	return order
}

// Game reads one game by id, falling back to the other store on a miss.
// The returned StoreName tells the caller which store satisfied the read.
func (r *Router) Game(id string, opts ReadOptions) (*model.Game, StoreName, error) {
	reachable := 0
	for i, rs := range r.readOrder(opts) {
		if rs.db == nil {
			continue
		}
		reachable++
		game, err := scanGame(rs.db.QueryRow(`
			SELECT id, date, home_team, away_team, home_score, away_score,
			       venue, status, created_at, updated_at
			FROM games WHERE id = ?
		`, id))
		if err == sql.ErrNoRows {
			if i == 0 {
				r.logger.Debug("game miss, falling back", map[string]interface{}{
					"game":  id,
					"store": string(rs.name),
				})
			}
			continue
		}
		if err != nil {
			r.logger.Warn("store read failed, degrading", map[string]interface{}{
				"store": string(rs.name),
				"error": err.Error(),
			})
			continue
		}
		return game, rs.name, nil
	}
	if reachable == 0 {
		return nil, "", errors.New(errors.StoreUnavailable, "no season store is reachable")
	}
	return nil, "", errors.New(errors.GameNotFound, fmt.Sprintf("game %s not found in any store", id))
}

// BattingLines reads all batting lines for a game, with fallback on zero
// rows. An empty result from both stores is not an error.
func (r *Router) BattingLines(gameID string, opts ReadOptions) ([]model.BattingLine, StoreName, error) {
	var lastSource StoreName
	reachable := 0
	for _, rs := range r.readOrder(opts) {
		if rs.db == nil {
			continue
		}
		reachable++
		lastSource = rs.name
		lines, err := queryBattingLines(rs.db, `
			SELECT id, game_id, team, player_id, player_name, at_bats, runs, hits,
			       doubles, triples, home_runs, rbi, walks, strikeouts
			FROM batting_lines WHERE game_id = ? ORDER BY team, player_id
		`, gameID)
		if err != nil {
			r.logger.Warn("store read failed, degrading", map[string]interface{}{
				"store": string(rs.name),
				"error": err.Error(),
			})
			continue
		}
		if len(lines) > 0 {
			return lines, rs.name, nil
		}
	}
	if reachable == 0 {
		return nil, "", errors.New(errors.StoreUnavailable, "no season store is reachable")
	}
	return nil, lastSource, nil
}

// PitchingLines reads all pitching lines for a game, with fallback on
// zero rows.
func (r *Router) PitchingLines(gameID string, opts ReadOptions) ([]model.PitchingLine, StoreName, error) {
	var lastSource StoreName
	reachable := 0
	for _, rs := range r.readOrder(opts) {
		if rs.db == nil {
			continue
		}
		reachable++
		lastSource = rs.name
		lines, err := queryPitchingLines(rs.db, `
			SELECT id, game_id, team, player_id, player_name, outs, hits_allowed,
			       runs_allowed, earned_runs, walks, strikeouts
			FROM pitching_lines WHERE game_id = ? ORDER BY team, player_id
		`, gameID)
		if err != nil {
			r.logger.Warn("store read failed, degrading", map[string]interface{}{
				"store": string(rs.name),
				"error": err.Error(),
			})
			continue
		}
		if len(lines) > 0 {
			return lines, rs.name, nil
		}
	}
	if reachable == 0 {
		return nil, "", errors.New(errors.StoreUnavailable, "no season store is reachable")
	}
	return nil, lastSource, nil
}

// GameByTeamDate resolves a game id from a team name and date, checking
// both home and away sides.
func (r *Router) GameByTeamDate(team, date string, opts ReadOptions) (*model.Game, StoreName, error) {
	reachable := 0
	for _, rs := range r.readOrder(opts) {
		if rs.db == nil {
			continue
		}
		reachable++
		game, err := scanGame(rs.db.QueryRow(`
			SELECT id, date, home_team, away_team, home_score, away_score,
			       venue, status, created_at, updated_at
			FROM games WHERE date = ? AND (home_team = ? OR away_team = ?)
			LIMIT 1
		`, date, team, team))
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			r.logger.Warn("store read failed, degrading", map[string]interface{}{
				"store": string(rs.name),
				"error": err.Error(),
			})
			continue
		}
		return game, rs.name, nil
	}
	if reachable == 0 {
		return nil, "", errors.New(errors.StoreUnavailable, "no season store is reachable")
	}
	return nil, "", errors.New(errors.GameNotFound,
		fmt.Sprintf("no game for %s on %s in any store", team, date))
}

// LatestGames returns the n most recent games by date from the preferred
// store, falling back on zero rows.
func (r *Router) LatestGames(n int, opts ReadOptions) ([]model.Game, StoreName, error) {
	var lastSource StoreName
	reachable := 0
	for _, rs := range r.readOrder(opts) {
		if rs.db == nil {
			continue
		}
		reachable++
		lastSource = rs.name
		rows, err := rs.db.Query(`
			SELECT id, date, home_team, away_team, home_score, away_score,
			       venue, status, created_at, updated_at
			FROM games ORDER BY date DESC, id DESC LIMIT ?
		`, n)
		if err != nil {
			r.logger.Warn("store read failed, degrading", map[string]interface{}{
				"store": string(rs.name),
				"error": err.Error(),
			})
			continue
		}
		games, err := collectGames(rows)
		if err != nil {
			return nil, "", err
		}
		if len(games) > 0 {
			return games, rs.name, nil
		}
	}
	if reachable == 0 {
		return nil, "", errors.New(errors.StoreUnavailable, "no season store is reachable")
	}
	return nil, lastSource, nil
}

// BattingTotals is a season aggregate for one entity (player or team),
// consumed by the regression sample validator.
type BattingTotals struct {
	Rows       int
	AtBats     int
	Runs       int
	Hits       int
	Walks      int
	Strikeouts int
}

// BattingTotalsFor aggregates a year's batting lines for a player id or
// team code, with the usual miss-then-fallback routing.
func (r *Router) BattingTotalsFor(entityID string, year int, opts ReadOptions) (*BattingTotals, StoreName, error) {
	var lastSource StoreName
	reachable := 0
	for _, rs := range r.readOrder(opts) {
		if rs.db == nil {
			continue
		}
		reachable++
		lastSource = rs.name
		var t BattingTotals
		err := rs.db.QueryRow(`
			SELECT COUNT(*), COALESCE(SUM(b.at_bats), 0), COALESCE(SUM(b.runs), 0),
			       COALESCE(SUM(b.hits), 0), COALESCE(SUM(b.walks), 0),
			       COALESCE(SUM(b.strikeouts), 0)
			FROM batting_lines b
			JOIN games g ON g.id = b.game_id
			WHERE (b.player_id = ? OR b.team = ?) AND substr(g.date, 1, 4) = ?
		`, entityID, entityID, fmt.Sprintf("%04d", year)).Scan(
			&t.Rows, &t.AtBats, &t.Runs, &t.Hits, &t.Walks, &t.Strikeouts,
		)
		if err != nil {
			r.logger.Warn("store read failed, degrading", map[string]interface{}{
				"store": string(rs.name),
				"error": err.Error(),
			})
			continue
		}
		if t.Rows > 0 {
			return &t, rs.name, nil
		}
	}
	if reachable == 0 {
		return nil, "", errors.New(errors.StoreUnavailable, "no season store is reachable")
	}
	return nil, lastSource, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGame(row rowScanner) (*model.Game, error) {
	var g model.Game
	var createdAt, updatedAt string
	if err := row.Scan(
		&g.ID, &g.Date, &g.HomeTeam, &g.AwayTeam, &g.HomeScore, &g.AwayScore,
		&g.Venue, &g.Status, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	g.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &g, nil
}

func collectGames(rows *sql.Rows) ([]model.Game, error) {
	defer rows.Close()
	var games []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

func queryBattingLines(db *DB, query string, args ...interface{}) ([]model.BattingLine, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []model.BattingLine
	for rows.Next() {
		var l model.BattingLine
		if err := rows.Scan(
			&l.ID, &l.GameID, &l.Team, &l.PlayerID, &l.PlayerName, &l.AtBats,
			&l.Runs, &l.Hits, &l.Doubles, &l.Triples, &l.HomeRuns, &l.RBI,
			&l.Walks, &l.Strikeouts,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func queryPitchingLines(db *DB, query string, args ...interface{}) ([]model.PitchingLine, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []model.PitchingLine
	for rows.Next() {
		var l model.PitchingLine
		if err := rows.Scan(
			&l.ID, &l.GameID, &l.Team, &l.PlayerID, &l.PlayerName, &l.Outs,
			&l.HitsAllowed, &l.RunsAllowed, &l.EarnedRuns, &l.Walks, &l.Strikeouts,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
