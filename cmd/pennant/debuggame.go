package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pennant/internal/diagnose"
	"pennant/internal/ingest"
	"pennant/internal/storage"
)

var (
	debugGameID    string
	debugTeam      string
	debugDate      string
	debugLatest    int
	debugReport    string
	debugSamples   string
	debugPreferHis bool
)

var debugGameCmd = &cobra.Command{
	Use:   "debug-game",
	Short: "Check a stored game's box score for internal consistency",
	Long: `Debug-game validates a game's stored box score against cross-table
invariants: team scores vs batting run sums, strikeout cross-validation,
player counts, and completeness of both teams' lines. Each game gets a
0-100 health score and a categorized issue list.

Select games with --game, --team plus --date, or --latest. Exits
non-zero if any analyzed game is in error status.

Example:
  pennant debug-game --game 20230415-BOS-NYY
  pennant debug-game --team BOS --date 2023-04-15
  pennant debug-game --latest 5 --report diag.json`,
	RunE: runDebugGame,
}

func init() {
	debugGameCmd.Flags().StringVar(&debugGameID, "game", "", "Game id to analyze")
	debugGameCmd.Flags().StringVar(&debugTeam, "team", "", "Team code (with --date)")
	debugGameCmd.Flags().StringVar(&debugDate, "date", "", "Game date YYYY-MM-DD (with --team)")
	debugGameCmd.Flags().IntVar(&debugLatest, "latest", 0, "Analyze the n most recent games")
	debugGameCmd.Flags().StringVar(&debugReport, "report", "",
		"Write the structured report to this path (.gz for compressed)")
	debugGameCmd.Flags().StringVar(&debugSamples, "samples", "",
		"Also run the curated regression samples from this YAML file")
	debugGameCmd.Flags().BoolVar(&debugPreferHis, "prefer-history", false,
		"Read from the history store first")
	rootCmd.AddCommand(debugGameCmd)
}

func runDebugGame(cmd *cobra.Command, args []string) error {
	e, err := buildEnv()
	if err != nil {
		return err
	}
	defer e.close()

	opts := storage.ReadOptions{PreferHistory: debugPreferHis}

	gameIDs, err := resolveGameIDs(e, opts)
	if err != nil {
		return err
	}

	var reports []*diagnose.Report
	errored := 0
	for _, id := range gameIDs {
		report, err := diagnose.DebugGame(e.router, id, e.cfg.Diagnostics, opts)
		if err != nil {
			return err
		}
		reports = append(reports, report)
		printDiagnosticReport(report)
		if report.Status == diagnose.StatusError {
			errored++
		}
	}

	var sampleOutcomes []diagnose.SampleOutcome
	if debugSamples != "" {
		samples, err := diagnose.LoadSamples(debugSamples)
		if err != nil {
			return err
		}
		sampleOutcomes, err = diagnose.RunSamples(e.router, samples, e.cfg.Sample, opts)
		if err != nil {
			return err
		}
		for _, outcome := range sampleOutcomes {
			printSampleOutcome(outcome)
			if !outcome.OK {
				errored++
			}
		}
	}

	if debugReport != "" {
		doc := struct {
			Reports []*diagnose.Report       `json:"reports"`
			Samples []diagnose.SampleOutcome `json:"samples,omitempty"`
		}{Reports: reports, Samples: sampleOutcomes}
		if err := ingest.WriteReportFile(debugReport, doc); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", debugReport)
	}

	if errored > 0 {
		return fmt.Errorf("%d check(s) in error status", errored)
	}
	return nil
}

func resolveGameIDs(e *env, opts storage.ReadOptions) ([]string, error) {
	switch {
	case debugGameID != "":
		return []string{debugGameID}, nil
	case debugTeam != "" && debugDate != "":
		game, _, err := e.router.GameByTeamDate(debugTeam, debugDate, opts)
		if err != nil {
			return nil, err
		}
		return []string{game.ID}, nil
	case debugLatest > 0:
		games, _, err := e.router.LatestGames(debugLatest, opts)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(games))
		for i, g := range games {
			ids[i] = g.ID
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("select games with --game, --team and --date, or --latest")
	}
}

func printDiagnosticReport(report *diagnose.Report) {
	fmt.Println(report.Summary())
	if report.Source != "" {
		fmt.Printf("  source: %s store\n", report.Source)
	}
	for _, issue := range report.Issues {
		fmt.Printf("  [%s] %s: %s\n", issue.Severity, issue.Check, issue.Message)
	}
}

func printSampleOutcome(outcome diagnose.SampleOutcome) {
	status := "ok"
	if outcome.Warning {
		status = "warn"
	} else if !outcome.OK {
		status = "FAIL"
	}
	fmt.Printf("sample %s/%d %s: %s (%s)\n",
		outcome.Sample.EntityID, outcome.Sample.Year, outcome.Sample.Metric,
		status, outcome.Reason)
}
