package storage

import (
	"path/filepath"
	"testing"

	"pennant/internal/logging"
	"pennant/internal/model"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

func testGame(id, date string) model.Game {
	return model.Game{
		ID:        id,
		Date:      date,
		HomeTeam:  "NYY",
		AwayTeam:  "BOS",
		HomeScore: 4,
		AwayScore: 2,
		Venue:     "Yankee Stadium",
		Status:    model.StatusFinal,
	}
}

func TestSchemaInitialization(t *testing.T) {
	db := setupTestDB(t)

	version, err := db.getSchemaVersion()
	if err != nil {
		t.Fatalf("Failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("Expected schema version %d, got %d", currentSchemaVersion, version)
	}

	for _, table := range TableNames() {
		if _, err := db.Count(table); err != nil {
			t.Errorf("table %s should exist after init: %v", table, err)
		}
	}
}

func TestReopenExistingStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	db, err := Open(dbPath, logging.Discard())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	spec, _ := Table(TableGames)
	if _, err := db.Upsert(spec, GameRows([]model.Game{testGame("20230415-BOS-NYY", "2023-04-15")}), false); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2, err := Open(dbPath, logging.Discard())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	n, err := db2.Count(TableGames)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 game after reopen, got %d", n)
	}
}

func TestUpsertAntiJoin(t *testing.T) {
	db := setupTestDB(t)
	spec, err := Table(TableGames)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}

	first := []model.Game{
		testGame("20230415-BOS-NYY", "2023-04-15"),
		testGame("20230416-BOS-NYY", "2023-04-16"),
	}
	result, err := db.Upsert(spec, GameRows(first), false)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if result.Inserted != 2 || result.Skipped != 0 {
		t.Errorf("first upsert = %+v, want inserted 2 skipped 0", result)
	}

	// Overlapping batch: one existing, one new
	second := []model.Game{
		testGame("20230416-BOS-NYY", "2023-04-16"),
		testGame("20230417-BOS-NYY", "2023-04-17"),
	}
	before, _ := db.Count(TableGames)
	result, err = db.Upsert(spec, GameRows(second), false)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if result.Inserted != 1 || result.Skipped != 1 {
		t.Errorf("second upsert = %+v, want inserted 1 skipped 1", result)
	}

	after, _ := db.Count(TableGames)
	if after != before+result.Inserted {
		t.Errorf("count invariant violated: before %d + inserted %d != after %d",
			before, result.Inserted, after)
	}

	// No primary key appears twice
	var dupes int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM (SELECT id FROM games GROUP BY id HAVING COUNT(*) > 1)
	`).Scan(&dupes)
	if err != nil {
		t.Fatalf("dupe check: %v", err)
	}
	if dupes != 0 {
		t.Errorf("found %d duplicated primary keys", dupes)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	db := setupTestDB(t)
	spec, _ := Table(TableBatting)

	lines := []model.BattingLine{
		{ID: "b1", GameID: "g1", Team: "BOS", PlayerID: "devers-r", AtBats: 4, Hits: 2, Runs: 1},
		{ID: "b2", GameID: "g1", Team: "BOS", PlayerID: "story-t", AtBats: 3, Hits: 0},
	}

	result, err := db.Upsert(spec, BattingRows(lines), false)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if result.Inserted != 2 {
		t.Fatalf("first upsert inserted %d, want 2", result.Inserted)
	}

	// Running the identical batch again must insert nothing
	result, err = db.Upsert(spec, BattingRows(lines), false)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if result.Inserted != 0 || result.Skipped != 2 {
		t.Errorf("re-run = %+v, want inserted 0 skipped 2", result)
	}
}

func TestUpsertDryRun(t *testing.T) {
	db := setupTestDB(t)
	spec, _ := Table(TablePitching)

	lines := []model.PitchingLine{
		{ID: "p1", GameID: "g1", Team: "NYY", PlayerID: "cole-g", Outs: 18, Strikeouts: 7},
	}

	result, err := db.Upsert(spec, PitchingRows(lines), true)
	if err != nil {
		t.Fatalf("dry-run upsert: %v", err)
	}
	if result.Inserted != 1 {
		t.Errorf("dry-run should count the pending insert, got %+v", result)
	}

	n, _ := db.Count(TablePitching)
	if n != 0 {
		t.Errorf("dry run must not insert, table has %d rows", n)
	}
}

func TestUpsertDedupesWithinBatch(t *testing.T) {
	db := setupTestDB(t)
	spec, _ := Table(TableGames)

	batch := []model.Game{
		testGame("20230415-BOS-NYY", "2023-04-15"),
		testGame("20230415-BOS-NYY", "2023-04-15"),
	}
	result, err := db.Upsert(spec, GameRows(batch), false)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if result.Inserted != 1 || result.Skipped != 1 {
		t.Errorf("in-batch duplicate = %+v, want inserted 1 skipped 1", result)
	}
}

func TestUnregisteredTable(t *testing.T) {
	if _, err := Table("standings"); err == nil {
		t.Error("unregistered table should error")
	}
}
