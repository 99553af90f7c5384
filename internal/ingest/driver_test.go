package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"pennant/internal/config"
	"pennant/internal/errors"
	"pennant/internal/logging"
	"pennant/internal/model"
	"pennant/internal/stats"
	"pennant/internal/storage"
)

func setupDriverStores(t *testing.T) (*storage.Router, *storage.DB) {
	t.Helper()
	tmpDir := t.TempDir()

	current, err := storage.Open(filepath.Join(tmpDir, "current.db"), logging.Discard())
	if err != nil {
		t.Fatalf("open current: %v", err)
	}
	history, err := storage.Open(filepath.Join(tmpDir, "history.db"), logging.Discard())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() {
		current.Close()
		history.Close()
	})
	return storage.NewRouter(current, history, logging.Discard()), history
}

func driverConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Producer.FetchDelayMs = 0
	return cfg
}

// monthBatch builds one month of internally consistent fixture data: two
// games with nine batters and one pitcher per side. runScale multiplies
// every run total, which shifts the league run environment for drift
// tests.
func monthBatch(year, month, runScale int) *model.IngestionBatch {
	batch := &model.IngestionBatch{Year: year, Month: month}

	for day := 10; day <= 11; day++ {
		date := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
		gameID := model.GameID(date, "BOS", "NYY")
		homeRuns := 4 * runScale
		awayRuns := 2 * runScale

		batch.Games = append(batch.Games, model.Game{
			Date: date, HomeTeam: "NYY", AwayTeam: "BOS",
			HomeScore: homeRuns, AwayScore: awayRuns,
			Status: model.StatusFinal,
		})

		for i := 0; i < 9; i++ {
			h := model.BattingLine{
				GameID: gameID, Team: "NYY", PlayerID: fmt.Sprintf("nyy-%d", i),
				AtBats: 4, Hits: 1, Strikeouts: 1,
			}
			if i == 0 {
				h.Runs = homeRuns
			}
			a := model.BattingLine{
				GameID: gameID, Team: "BOS", PlayerID: fmt.Sprintf("bos-%d", i),
				AtBats: 4, Hits: 1, Strikeouts: 1,
			}
			if i == 0 {
				a.Runs = awayRuns
			}
			batch.Batting = append(batch.Batting, h, a)
		}

		batch.Pitching = append(batch.Pitching,
			model.PitchingLine{GameID: gameID, Team: "NYY", PlayerID: "nyy-sp",
				Outs: 27, Strikeouts: 9, RunsAllowed: awayRuns},
			model.PitchingLine{GameID: gameID, Team: "BOS", PlayerID: "bos-sp",
				Outs: 24, Strikeouts: 9, RunsAllowed: homeRuns},
		)
	}
	return batch
}

type fakeProducer struct {
	batches map[string]*model.IngestionBatch
	errs    map[string]error
	calls   []string
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{
		batches: make(map[string]*model.IngestionBatch),
		errs:    make(map[string]error),
	}
}

func unitKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

func (p *fakeProducer) FetchMonth(ctx context.Context, year, month int) (*model.IngestionBatch, error) {
	key := unitKey(year, month)
	p.calls = append(p.calls, key)
	if err := p.errs[key]; err != nil {
		return nil, err
	}
	if batch, ok := p.batches[key]; ok {
		return batch, nil
	}
	return &model.IngestionBatch{Year: year, Month: month}, nil
}

func (p *fakeProducer) called(year, month int) bool {
	key := unitKey(year, month)
	for _, c := range p.calls {
		if c == key {
			return true
		}
	}
	return false
}

func TestBackfillEndToEndIdempotent(t *testing.T) {
	router, history := setupDriverStores(t)

	// Drop file on disk, read through the real file producer.
	dropDir := t.TempDir()
	batch := monthBatch(2023, 4, 1)
	data, err := json.Marshal(batch)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dropDir, "2023"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dropDir, "2023", "04.json"), data, 0644); err != nil {
		t.Fatalf("write drop: %v", err)
	}

	producer := NewFileProducer(dropDir, logging.Discard())
	driver := NewDriver(router, producer, driverConfig(), logging.Discard())
	opts := Options{StartYear: 2023, EndYear: 2023, Months: []int{4}}

	report, err := driver.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if report.Status != RunStatusOK {
		t.Fatalf("first run status %q: %+v", report.Status, report)
	}

	wantGames := len(batch.Games)
	gamesCounts := report.Years[0].Units[0].Tables[storage.TableGames]
	if gamesCounts.Inserted != wantGames {
		t.Errorf("first run inserted %d games, want %d", gamesCounts.Inserted, wantGames)
	}

	n, _ := history.Count(storage.TableGames)
	if n != wantGames {
		t.Errorf("history store has %d games, want %d", n, wantGames)
	}

	// Re-running the identical command inserts nothing.
	report, err = driver.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	gamesCounts = report.Years[0].Units[0].Tables[storage.TableGames]
	if gamesCounts.Inserted != 0 || gamesCounts.Skipped != wantGames {
		t.Errorf("re-run games = %+v, want inserted 0 skipped %d", gamesCounts, wantGames)
	}
	for _, table := range storage.TableNames() {
		counts := report.Years[0].Units[0].Tables[table]
		if counts.Inserted != 0 {
			t.Errorf("re-run inserted %d rows into %s, want 0", counts.Inserted, table)
		}
	}
}

func TestEmptyMonthIsNotError(t *testing.T) {
	router, _ := setupDriverStores(t)
	producer := newFakeProducer() // every month empty

	driver := NewDriver(router, producer, driverConfig(), logging.Discard())
	report, err := driver.Run(context.Background(), Options{
		StartYear: 2023, EndYear: 2023, Months: []int{4, 5},
	})
	if err != nil {
		t.Fatalf("empty months should not fail the run: %v", err)
	}
	if report.Status != RunStatusOK {
		t.Errorf("status %q, want ok", report.Status)
	}
	for _, unit := range report.Years[0].Units {
		if !unit.Empty || unit.Failed {
			t.Errorf("unit %+v should be empty and not failed", unit)
		}
	}
}

func TestProducerFailureSkipsUnitAndContinues(t *testing.T) {
	router, history := setupDriverStores(t)
	producer := newFakeProducer()
	producer.errs[unitKey(2023, 4)] = fmt.Errorf("upstream timeout")
	producer.batches[unitKey(2023, 5)] = monthBatch(2023, 5, 1)

	driver := NewDriver(router, producer, driverConfig(), logging.Discard())
	report, err := driver.Run(context.Background(), Options{
		StartYear: 2023, EndYear: 2023, Months: []int{4, 5},
	})
	if err != nil {
		t.Fatalf("per-unit failure should not fail the run: %v", err)
	}

	units := report.Years[0].Units
	if !units[0].Failed {
		t.Errorf("April should be recorded as failed: %+v", units[0])
	}
	if units[1].Failed || units[1].Tables[storage.TableGames].Inserted == 0 {
		t.Errorf("May should have committed: %+v", units[1])
	}

	n, _ := history.Count(storage.TableGames)
	if n == 0 {
		t.Error("May's games should be in the store despite April failing")
	}
}

func TestDriftViolationAbortsSubsequentYears(t *testing.T) {
	router, _ := setupDriverStores(t)
	producer := newFakeProducer()
	producer.batches[unitKey(2001, 4)] = monthBatch(2001, 4, 1)
	producer.batches[unitKey(2002, 4)] = monthBatch(2002, 4, 3) // triple the run environment
	producer.batches[unitKey(2003, 4)] = monthBatch(2003, 4, 1)

	driver := NewDriver(router, producer, driverConfig(), logging.Discard())
	report, err := driver.Run(context.Background(), Options{
		StartYear: 2001, EndYear: 2003, Months: []int{4},
	})
	if err == nil {
		t.Fatal("expected drift violation to abort the run")
	}
	if !errors.HasCode(err, errors.DriftViolation) {
		t.Errorf("expected DRIFT_VIOLATION, got %v", err)
	}
	if report.Status != RunStatusAborted {
		t.Errorf("status %q, want aborted", report.Status)
	}
	if producer.called(2003, 4) {
		t.Error("year after the violation must not be processed")
	}
	if len(report.Years) != 2 {
		t.Errorf("report should cover exactly the processed years, got %d", len(report.Years))
	}
	if report.Years[1].DriftOK {
		t.Errorf("2002 drift should have failed: %+v", report.Years[1])
	}
}

func TestDriftViolationDryRunContinues(t *testing.T) {
	router, history := setupDriverStores(t)

	// History already holds two committed years whose run environments
	// disagree wildly, plus the first year's constants. The dry run
	// re-evaluates the drift without mutating row data.
	seedCommittedMonth(t, history, monthBatch(2001, 4, 1))
	seedCommittedMonth(t, history, monthBatch(2002, 4, 3))
	prior, err := stats.Compute(history, 2001)
	if err != nil {
		t.Fatalf("compute 2001: %v", err)
	}
	if err := stats.Store(history, prior); err != nil {
		t.Fatalf("store 2001 constants: %v", err)
	}

	producer := newFakeProducer()
	driver := NewDriver(router, producer, driverConfig(), logging.Discard())
	report, err := driver.Run(context.Background(), Options{
		StartYear: 2002, EndYear: 2003, Months: []int{4}, DryRun: true,
	})
	if err != nil {
		t.Fatalf("dry run should not abort on drift: %v", err)
	}
	if report.Status != RunStatusOK {
		t.Errorf("status %q, want ok", report.Status)
	}
	if report.Years[0].DriftOK {
		t.Errorf("2002 drift should be recorded as violated: %+v", report.Years[0])
	}
	if !producer.called(2003, 4) {
		t.Error("dry run should continue into the next year")
	}
}

func TestCancellationStopsBeforeNextUnit(t *testing.T) {
	router, history := setupDriverStores(t)
	ctx, cancel := context.WithCancel(context.Background())

	producer := newFakeProducer()
	producer.batches[unitKey(2023, 4)] = monthBatch(2023, 4, 1)
	producer.batches[unitKey(2023, 5)] = monthBatch(2023, 5, 1)

	cancelling := &cancellingProducer{inner: producer, cancel: cancel}
	driver := NewDriver(router, cancelling, driverConfig(), logging.Discard())

	report, err := driver.Run(ctx, Options{
		StartYear: 2023, EndYear: 2023, Months: []int{4, 5},
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if report.Status != RunStatusCancelled {
		t.Errorf("status %q, want cancelled", report.Status)
	}
	if len(producer.calls) != 1 {
		t.Errorf("expected exactly one unit fetched, got %v", producer.calls)
	}

	// The interrupted unit's commit is intact; a re-run is safe.
	n, _ := history.Count(storage.TableGames)
	if n != len(producer.batches[unitKey(2023, 4)].Games) {
		t.Errorf("April's commit should survive cancellation, store has %d games", n)
	}
}

// cancellingProducer cancels the run context after the first successful
// fetch, simulating an interrupt arriving mid-unit.
type cancellingProducer struct {
	inner  Producer
	cancel context.CancelFunc
}

func (p *cancellingProducer) FetchMonth(ctx context.Context, year, month int) (*model.IngestionBatch, error) {
	batch, err := p.inner.FetchMonth(ctx, year, month)
	p.cancel()
	return batch, err
}

func seedCommittedMonth(t *testing.T, db *storage.DB, batch *model.IngestionBatch) {
	t.Helper()
	batch.AssignIDs()
	for _, table := range storage.TableNames() {
		spec, _ := storage.Table(table)
		if _, err := db.Upsert(spec, rowsForTable(table, batch), false); err != nil {
			t.Fatalf("seed %s: %v", table, err)
		}
	}
}
