package storage

import (
	"path/filepath"
	"testing"

	"pennant/internal/errors"
	"pennant/internal/logging"
	"pennant/internal/model"
)

func setupRouterStores(t *testing.T) (*DB, *DB) {
	t.Helper()
	tmpDir := t.TempDir()

	current, err := Open(filepath.Join(tmpDir, "current.db"), logging.Discard())
	if err != nil {
		t.Fatalf("open current: %v", err)
	}
	history, err := Open(filepath.Join(tmpDir, "history.db"), logging.Discard())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() {
		current.Close()
		history.Close()
	})
	return current, history
}

func insertGame(t *testing.T, db *DB, g model.Game) {
	t.Helper()
	spec, _ := Table(TableGames)
	if _, err := db.Upsert(spec, GameRows([]model.Game{g}), false); err != nil {
		t.Fatalf("insert game: %v", err)
	}
}

func TestRouterPrefersCurrentByDefault(t *testing.T) {
	current, history := setupRouterStores(t)
	router := NewRouter(current, history, logging.Discard())

	g := testGame("20240601-BOS-NYY", "2024-06-01")
	insertGame(t, current, g)

	got, source, err := router.Game(g.ID, ReadOptions{})
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if source != StoreCurrent {
		t.Errorf("expected current store to satisfy read, got %q", source)
	}
	if got.HomeTeam != "NYY" {
		t.Errorf("unexpected game data: %+v", got)
	}
}

func TestRouterFallsBackToHistoryOnMiss(t *testing.T) {
	current, history := setupRouterStores(t)
	router := NewRouter(current, history, logging.Discard())

	g := testGame("19980915-BOS-NYY", "1998-09-15")
	insertGame(t, history, g)

	got, source, err := router.Game(g.ID, ReadOptions{})
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if source != StoreHistory {
		t.Errorf("expected history fallback annotation, got %q", source)
	}
	if got.ID != g.ID {
		t.Errorf("wrong game returned: %+v", got)
	}
}

func TestRouterPreferHistoryOption(t *testing.T) {
	current, history := setupRouterStores(t)
	router := NewRouter(current, history, logging.Discard())

	// Same id in both stores; preference decides which copy wins.
	g := testGame("20230415-BOS-NYY", "2023-04-15")
	insertGame(t, current, g)
	archived := g
	archived.Venue = "archived copy"
	insertGame(t, history, archived)

	got, source, err := router.Game(g.ID, ReadOptions{PreferHistory: true})
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if source != StoreHistory {
		t.Errorf("expected history to be preferred, got %q", source)
	}
	if got.Venue != "archived copy" {
		t.Errorf("expected the history copy, got venue %q", got.Venue)
	}
}

func TestRouterDegradesWithOneStoreDown(t *testing.T) {
	_, history := setupRouterStores(t)
	router := NewRouter(nil, history, logging.Discard())

	g := testGame("20230415-BOS-NYY", "2023-04-15")
	insertGame(t, history, g)

	got, source, err := router.Game(g.ID, ReadOptions{})
	if err != nil {
		t.Fatalf("expected degraded single-store read to succeed: %v", err)
	}
	if source != StoreHistory || got.ID != g.ID {
		t.Errorf("degraded read returned %q / %+v", source, got)
	}
}

func TestRouterBothStoresDown(t *testing.T) {
	router := NewRouter(nil, nil, logging.Discard())

	_, _, err := router.Game("20230415-BOS-NYY", ReadOptions{})
	if err == nil {
		t.Fatal("expected error with both stores down")
	}
	if !errors.HasCode(err, errors.StoreUnavailable) {
		t.Errorf("expected STORE_UNAVAILABLE, got %v", err)
	}
}

func TestRouterGameNotFound(t *testing.T) {
	current, history := setupRouterStores(t)
	router := NewRouter(current, history, logging.Discard())

	_, _, err := router.Game("20230415-XXX-YYY", ReadOptions{})
	if err == nil {
		t.Fatal("expected error for missing game")
	}
	if !errors.HasCode(err, errors.GameNotFound) {
		t.Errorf("expected GAME_NOT_FOUND, got %v", err)
	}
}

func TestRouterLinesFallback(t *testing.T) {
	current, history := setupRouterStores(t)
	router := NewRouter(current, history, logging.Discard())

	spec, _ := Table(TableBatting)
	lines := []model.BattingLine{
		{ID: "b1", GameID: "g1", Team: "BOS", PlayerID: "devers-r", AtBats: 4, Hits: 2},
	}
	if _, err := history.Upsert(spec, BattingRows(lines), false); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	got, source, err := router.BattingLines("g1", ReadOptions{})
	if err != nil {
		t.Fatalf("BattingLines: %v", err)
	}
	if source != StoreHistory {
		t.Errorf("expected history fallback, got %q", source)
	}
	if len(got) != 1 || got[0].PlayerID != "devers-r" {
		t.Errorf("unexpected lines: %+v", got)
	}

	// Zero rows in both stores is a valid empty result, not an error
	empty, _, err := router.BattingLines("no-such-game", ReadOptions{})
	if err != nil {
		t.Fatalf("empty read should not error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no lines, got %d", len(empty))
	}
}

func TestRouterWriteTargetsNamedStore(t *testing.T) {
	current, history := setupRouterStores(t)
	router := NewRouter(current, history, logging.Discard())

	db, err := router.History()
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if db.Path() != history.Path() {
		t.Error("History() should return the history store")
	}

	downRouter := NewRouter(current, nil, logging.Discard())
	if _, err := downRouter.History(); !errors.HasCode(err, errors.StoreUnavailable) {
		t.Errorf("write to missing store should be STORE_UNAVAILABLE, got %v", err)
	}
}

func TestRouterGameByTeamDate(t *testing.T) {
	current, history := setupRouterStores(t)
	router := NewRouter(current, history, logging.Discard())

	g := testGame("20230415-BOS-NYY", "2023-04-15")
	insertGame(t, history, g)

	got, _, err := router.GameByTeamDate("BOS", "2023-04-15", ReadOptions{})
	if err != nil {
		t.Fatalf("GameByTeamDate: %v", err)
	}
	if got.ID != g.ID {
		t.Errorf("resolved wrong game: %+v", got)
	}

	_, _, err = router.GameByTeamDate("BOS", "2023-04-16", ReadOptions{})
	if !errors.HasCode(err, errors.GameNotFound) {
		t.Errorf("expected GAME_NOT_FOUND, got %v", err)
	}
}

func TestRouterLatestGames(t *testing.T) {
	current, history := setupRouterStores(t)
	router := NewRouter(current, history, logging.Discard())

	insertGame(t, current, testGame("20240601-BOS-NYY", "2024-06-01"))
	insertGame(t, current, testGame("20240602-BOS-NYY", "2024-06-02"))
	insertGame(t, current, testGame("20240603-BOS-NYY", "2024-06-03"))

	games, source, err := router.LatestGames(2, ReadOptions{})
	if err != nil {
		t.Fatalf("LatestGames: %v", err)
	}
	if source != StoreCurrent {
		t.Errorf("expected current store, got %q", source)
	}
	if len(games) != 2 || games[0].Date != "2024-06-03" {
		t.Errorf("expected 2 newest games first, got %+v", games)
	}
}
