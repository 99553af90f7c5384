package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"pennant/internal/diagnose"
	"pennant/internal/ingest"
	"pennant/internal/storage"
)

var (
	backfillStart  int
	backfillEnd    int
	backfillMonths string
	backfillDryRun bool
	backfillReport string
	backfillGameID string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Ingest seasons month by month into the history store",
	Long: `Backfill pulls per-month batches from the upstream producer and merges
them into the history store with anti-join upserts, one transaction per
month. Re-running over the same months is idempotent: already-present
rows are skipped, never duplicated.

After each year commits, league constants are recomputed and checked
against the prior year. A drift beyond the configured ceiling aborts the
run (or is downgraded to a warning with --dry-run).

Example:
  pennant backfill --start 1998 --end 2004 --months all --report backfill.json
  pennant backfill --start 2023 --end 2023 --months 04,05 --dry-run`,
	RunE: runBackfill,
}

func init() {
	backfillCmd.Flags().IntVar(&backfillStart, "start", 0, "First year to ingest (required)")
	backfillCmd.Flags().IntVar(&backfillEnd, "end", 0, "Last year to ingest (required)")
	backfillCmd.Flags().StringVar(&backfillMonths, "months", "",
		`Months to ingest: list "4,5,6", range "4-9", or "all" (default from config)`)
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false,
		"Compute counts and drift without writing rows")
	backfillCmd.Flags().StringVar(&backfillReport, "report", "",
		"Write the run report to this path (.gz for compressed)")
	backfillCmd.Flags().StringVar(&backfillGameID, "game-id", "",
		"Run diagnostics for this game after the backfill completes")
	_ = backfillCmd.MarkFlagRequired("start")
	_ = backfillCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	if backfillStart > backfillEnd {
		return fmt.Errorf("--start %d is after --end %d", backfillStart, backfillEnd)
	}

	e, err := buildEnv()
	if err != nil {
		return err
	}
	defer e.close()

	months := e.cfg.Backfill.Months
	if backfillMonths != "" {
		months, err = parseMonths(backfillMonths)
		if err != nil {
			return err
		}
	}

	sourceDir := e.cfg.Producer.SourceDir
	producer := ingest.NewFileProducer(e.cfg.StorePath(dataDirFlag, sourceDir), e.logger)
	driver := ingest.NewDriver(e.router, producer, e.cfg, e.logger)

	// SIGINT stops cleanly before the next month unit.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := driver.Run(ctx, ingest.Options{
		StartYear:  backfillStart,
		EndYear:    backfillEnd,
		Months:     months,
		DryRun:     backfillDryRun,
		ReportPath: backfillReport,
	})

	if report != nil {
		printRunSummary(report)
	}
	if runErr != nil {
		return runErr
	}

	if backfillGameID != "" {
		diag, err := diagnose.DebugGame(e.router, backfillGameID, e.cfg.Diagnostics, storage.ReadOptions{PreferHistory: true})
		if err != nil {
			return err
		}
		printDiagnosticReport(diag)
		if diag.Status == diagnose.StatusError {
			return fmt.Errorf("post-backfill check: game %s is in error status", backfillGameID)
		}
	}

	return nil
}

// parseMonths accepts "all", a comma list "4,5,6", or a range "4-9".
func parseMonths(s string) ([]int, error) {
	if s == "all" {
		months := make([]int, 12)
		for i := range months {
			months[i] = i + 1
		}
		return months, nil
	}

	if strings.Contains(s, "-") {
		parts := strings.SplitN(s, "-", 2)
		lo, err := parseMonth(parts[0])
		if err != nil {
			return nil, err
		}
		hi, err := parseMonth(parts[1])
		if err != nil {
			return nil, err
		}
		if lo > hi {
			return nil, fmt.Errorf("month range %q is inverted", s)
		}
		var months []int
		for m := lo; m <= hi; m++ {
			months = append(months, m)
		}
		return months, nil
	}

	seen := make(map[int]bool)
	var months []int
	for _, part := range strings.Split(s, ",") {
		m, err := parseMonth(part)
		if err != nil {
			return nil, err
		}
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	sort.Ints(months)
	return months, nil
}

func parseMonth(s string) (int, error) {
	m, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || m < 1 || m > 12 {
		return 0, fmt.Errorf("invalid month %q", s)
	}
	return m, nil
}

func printRunSummary(report *ingest.RunReport) {
	mode := ""
	if report.DryRun {
		mode = " (dry run)"
	}
	fmt.Printf("Backfill %d-%d%s: %s in %dms\n",
		report.StartYear, report.EndYear, mode, report.Status, report.DurationMs)

	for _, yr := range report.Years {
		failed := 0
		empty := 0
		for _, unit := range yr.Units {
			if unit.Failed {
				failed++
			}
			if unit.Empty {
				empty++
			}
		}
		drift := "not checked"
		if yr.DriftChecked {
			drift = fmt.Sprintf("delta %.2f%% ok=%v", yr.DriftDelta*100, yr.DriftOK)
		}
		fmt.Printf("  %d: %d unit(s), %d empty, %d failed, drift %s\n",
			yr.Year, len(yr.Units), empty, failed, drift)
	}

	totals := report.Totals()
	for _, table := range storage.TableNames() {
		counts := totals[table]
		fmt.Printf("  %-14s inserted %d, skipped %d\n", table+":", counts.Inserted, counts.Skipped)
	}
}
