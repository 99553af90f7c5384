package ingest

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"pennant/internal/config"
	"pennant/internal/errors"
	"pennant/internal/logging"
	"pennant/internal/model"
	"pennant/internal/stats"
	"pennant/internal/storage"
)

// Options controls one backfill run.
type Options struct {
	StartYear  int
	EndYear    int
	Months     []int
	DryRun     bool
	ReportPath string
}

// Driver runs month-by-month backfill: one transaction per (year, month)
// unit against the history store, drift-guarded per year. A single driver
// instance owns the history store for the duration of a run; there is no
// support for concurrent backfills against the same store.
type Driver struct {
	router     *storage.Router
	producer   Producer
	cfg        *config.Config
	logger     *logging.Logger
	fetchDelay time.Duration
}

// NewDriver constructs a backfill driver.
func NewDriver(router *storage.Router, producer Producer, cfg *config.Config, logger *logging.Logger) *Driver {
	return &Driver{
		router:     router,
		producer:   producer,
		cfg:        cfg,
		logger:     logger.With(map[string]interface{}{"component": "backfill"}),
		fetchDelay: time.Duration(cfg.Producer.FetchDelayMs) * time.Millisecond,
	}
}

// Run executes the backfill and returns the run report. The report is
// also written to Options.ReportPath (when set) on completion or abort.
// The returned error is the fatal condition that stopped the run, if any;
// per-unit failures are recorded in the report without failing the run.
func (d *Driver) Run(ctx context.Context, opts Options) (*RunReport, error) {
	history, err := d.router.History()
	if err != nil {
		return nil, err
	}

	months := append([]int(nil), opts.Months...)
	sort.Ints(months)

	report := &RunReport{
		StartedAt: time.Now().UTC(),
		DryRun:    opts.DryRun,
		StartYear: opts.StartYear,
		EndYear:   opts.EndYear,
		Months:    months,
	}

	runErr := d.run(ctx, history, months, opts, report)

	report.FinishedAt = time.Now().UTC()
	report.DurationMs = report.FinishedAt.Sub(report.StartedAt).Milliseconds()
	if runErr == nil {
		report.Status = RunStatusOK
	} else {
		report.Error = runErr.Error()
		if stderrors.Is(runErr, context.Canceled) {
			report.Status = RunStatusCancelled
		} else {
			report.Status = RunStatusAborted
		}
	}

	if opts.ReportPath != "" {
		if err := WriteReportFile(opts.ReportPath, report); err != nil {
			d.logger.Error("failed to write run report", map[string]interface{}{
				"path":  opts.ReportPath,
				"error": err.Error(),
			})
			if runErr == nil {
				runErr = err
			}
		}
	}

	return report, runErr
}

func (d *Driver) run(ctx context.Context, history *storage.DB, months []int, opts Options, report *RunReport) error {
	firstFetch := true
	for year := opts.StartYear; year <= opts.EndYear; year++ {
		yearResult := YearResult{Year: year}

		for _, month := range months {
			// An interrupt stops before the next unit starts; committed
			// months stay, and idempotent upserts make re-runs safe.
			if err := ctx.Err(); err != nil {
				report.Years = append(report.Years, yearResult)
				return err
			}

			if !firstFetch && d.fetchDelay > 0 {
				if err := sleepCtx(ctx, d.fetchDelay); err != nil {
					report.Years = append(report.Years, yearResult)
					return err
				}
			}
			firstFetch = false

			unit := d.ingestUnit(ctx, history, year, month, opts.DryRun)
			yearResult.Units = append(yearResult.Units, unit)
		}

		if err := d.guardYear(history, year, opts.DryRun, &yearResult); err != nil {
			report.Years = append(report.Years, yearResult)
			return err
		}

		report.Years = append(report.Years, yearResult)
	}
	return nil
}

// ingestUnit processes one (year, month): fetch from the producer, merge
// all three tables in one transaction. Failures are contained to the
// unit; the run continues.
func (d *Driver) ingestUnit(ctx context.Context, history *storage.DB, year, month int, dryRun bool) UnitResult {
	unit := UnitResult{Year: year, Month: month}

	batch, err := d.producer.FetchMonth(ctx, year, month)
	if err != nil {
		d.logger.Warn("producer fetch failed, skipping unit", map[string]interface{}{
			"year":  year,
			"month": month,
			"error": err.Error(),
		})
		unit.Failed = true
		unit.Error = errors.Wrap(errors.IngestionSourceError,
			fmt.Sprintf("fetch %04d-%02d", year, month), err).Error()
		return unit
	}

	batch.AssignIDs()

	if batch.Empty() {
		d.logger.Debug("empty batch for period", map[string]interface{}{
			"year":  year,
			"month": month,
		})
		unit.Empty = true
		return unit
	}

	counts := make(map[string]storage.UpsertResult, 3)
	err = history.WithTx(func(tx *sql.Tx) error {
		for _, table := range storage.TableNames() {
			spec, err := storage.Table(table)
			if err != nil {
				return err
			}
			rows := rowsForTable(table, batch)
			result, err := storage.UpsertTx(tx, spec, rows, dryRun)
			if err != nil {
				return err
			}
			counts[table] = result
		}
		return nil
	})
	if err != nil {
		// The month's transaction rolled back; committed months are
		// untouched and the failure is visible in the report.
		d.logger.Error("unit transaction failed", map[string]interface{}{
			"year":  year,
			"month": month,
			"error": err.Error(),
		})
		unit.Failed = true
		unit.Error = err.Error()
		return unit
	}

	unit.Tables = counts
	d.logger.Info("unit committed", map[string]interface{}{
		"year":     year,
		"month":    month,
		"games":    counts[storage.TableGames].Inserted,
		"batting":  counts[storage.TableBatting].Inserted,
		"pitching": counts[storage.TablePitching].Inserted,
		"dry_run":  dryRun,
	})
	return unit
}

// guardYear recomputes league constants for the year and checks drift
// against the prior year. Non-dry-run violations are fatal and stop
// subsequent years; dry-run violations are recorded as warnings.
func (d *Driver) guardYear(history *storage.DB, year int, dryRun bool, yearResult *YearResult) error {
	result, err := stats.CheckDrift(history, year, d.cfg.Drift.Coefficient, d.cfg.Drift.MaxDelta)
	if err != nil {
		if stderrors.Is(err, stats.ErrNoSeasonData) {
			yearResult.DriftNote = "no season data, drift check skipped"
			return nil
		}
		return err
	}

	yearResult.DriftChecked = result.Prior != nil
	yearResult.DriftDelta = result.Delta
	yearResult.DriftOK = result.OK

	// Constants are persisted for a passing (or dry-run-simulated)
	// computation so the next year has a prior to compare against. A
	// violating year's constants are not persisted: the run is aborted
	// and the year will be recomputed after the source is fixed.
	if result.OK || dryRun {
		if err := stats.Store(history, result.Current); err != nil {
			return err
		}
	}

	if !result.OK {
		note := result.Describe(d.cfg.Drift.Coefficient)
		yearResult.DriftNote = note
		if dryRun {
			d.logger.Warn("drift violation in dry run", map[string]interface{}{
				"year":  year,
				"delta": result.Delta,
			})
			return nil
		}
		return errors.New(errors.DriftViolation, note)
	}

	d.logger.Info("drift check passed", map[string]interface{}{
		"year":  year,
		"delta": result.Delta,
	})
	return nil
}

func rowsForTable(table string, batch *model.IngestionBatch) []storage.Row {
	switch table {
	case storage.TableGames:
		return storage.GameRows(batch.Games)
	case storage.TableBatting:
		return storage.BattingRows(batch.Batting)
	case storage.TablePitching:
		return storage.PitchingRows(batch.Pitching)
	default:
		return nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
