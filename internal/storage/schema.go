package storage

import (
	"database/sql"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new season store
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createGamesTable(tx); err != nil {
			return err
		}
		if err := createBattingLinesTable(tx); err != nil {
			return err
		}
		if err := createPitchingLinesTable(tx); err != nil {
			return err
		}
		if err := createLeagueConstantsTable(tx); err != nil {
			return err
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Season store schema initialized", map[string]interface{}{
			"version": currentSchemaVersion,
		})

		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		return nil
	}

	db.logger.Info("Running store migrations", map[string]interface{}{
		"from_version": version,
		"to_version":   currentSchemaVersion,
	})

	// Migrations run sequentially as the schema evolves; none yet.

	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("DELETE FROM schema_version")
	if err != nil {
		return err
	}
	_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

func createGamesTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS games (
			id         TEXT PRIMARY KEY,
			date       TEXT NOT NULL,
			home_team  TEXT NOT NULL,
			away_team  TEXT NOT NULL,
			home_score INTEGER NOT NULL DEFAULT 0,
			away_score INTEGER NOT NULL DEFAULT 0,
			venue      TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL DEFAULT 'scheduled',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_games_date ON games(date)`); err != nil {
		return err
	}
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_games_teams ON games(home_team, away_team)`)
	return err
}

func createBattingLinesTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS batting_lines (
			id          TEXT PRIMARY KEY,
			game_id     TEXT NOT NULL,
			team        TEXT NOT NULL,
			player_id   TEXT NOT NULL,
			player_name TEXT NOT NULL DEFAULT '',
			at_bats     INTEGER NOT NULL DEFAULT 0,
			runs        INTEGER NOT NULL DEFAULT 0,
			hits        INTEGER NOT NULL DEFAULT 0,
			doubles     INTEGER NOT NULL DEFAULT 0,
			triples     INTEGER NOT NULL DEFAULT 0,
			home_runs   INTEGER NOT NULL DEFAULT 0,
			rbi         INTEGER NOT NULL DEFAULT 0,
			walks       INTEGER NOT NULL DEFAULT 0,
			strikeouts  INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_batting_game ON batting_lines(game_id)`); err != nil {
		return err
	}
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_batting_player ON batting_lines(player_id)`)
	return err
}

func createPitchingLinesTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS pitching_lines (
			id           TEXT PRIMARY KEY,
			game_id      TEXT NOT NULL,
			team         TEXT NOT NULL,
			player_id    TEXT NOT NULL,
			player_name  TEXT NOT NULL DEFAULT '',
			outs         INTEGER NOT NULL DEFAULT 0,
			hits_allowed INTEGER NOT NULL DEFAULT 0,
			runs_allowed INTEGER NOT NULL DEFAULT 0,
			earned_runs  INTEGER NOT NULL DEFAULT 0,
			walks        INTEGER NOT NULL DEFAULT 0,
			strikeouts   INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_pitching_game ON pitching_lines(game_id)`); err != nil {
		return err
	}
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_pitching_player ON pitching_lines(player_id)`)
	return err
}

func createLeagueConstantsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS league_constants (
			year         INTEGER PRIMARY KEY,
			runs_per_out REAL NOT NULL,
			runs_per_pa  REAL NOT NULL,
			walk_weight  REAL NOT NULL,
			hit_weight   REAL NOT NULL,
			extra_weight REAL NOT NULL,
			computed_at  TEXT NOT NULL
		)
	`)
	return err
}
