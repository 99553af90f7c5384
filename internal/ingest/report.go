package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"pennant/internal/storage"
)

// Run statuses recorded in the report.
const (
	RunStatusOK        = "ok"
	RunStatusAborted   = "aborted"
	RunStatusCancelled = "cancelled"
)

// UnitResult records one (year, month) ingestion unit.
type UnitResult struct {
	Year   int                             `json:"year"`
	Month  int                             `json:"month"`
	Tables map[string]storage.UpsertResult `json:"tables,omitempty"`
	Empty  bool                            `json:"empty,omitempty"`
	Failed bool                            `json:"failed,omitempty"`
	Error  string                          `json:"error,omitempty"`
}

// YearResult records one year's units and its drift check.
type YearResult struct {
	Year         int          `json:"year"`
	Units        []UnitResult `json:"units"`
	DriftChecked bool         `json:"driftChecked"`
	DriftDelta   float64      `json:"driftDelta"`
	DriftOK      bool         `json:"driftOK"`
	DriftNote    string       `json:"driftNote,omitempty"`
}

// RunReport is the durable record of one backfill run, written on
// completion or abort.
type RunReport struct {
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	DurationMs int64        `json:"durationMs"`
	DryRun     bool         `json:"dryRun"`
	StartYear  int          `json:"startYear"`
	EndYear    int          `json:"endYear"`
	Months     []int        `json:"months"`
	Years      []YearResult `json:"years"`
	Status     string       `json:"status"`
	Error      string       `json:"error,omitempty"`
}

// Totals sums inserted/skipped counts per table across the whole run.
func (r *RunReport) Totals() map[string]storage.UpsertResult {
	totals := make(map[string]storage.UpsertResult)
	for _, yr := range r.Years {
		for _, unit := range yr.Units {
			for table, counts := range unit.Tables {
				t := totals[table]
				t.Add(counts)
				totals[table] = t
			}
		}
	}
	return totals
}

// WriteReportFile serializes a report document as indented JSON. Paths
// ending in .gz are gzip-compressed.
func WriteReportFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	if !strings.HasSuffix(path, ".gz") {
		return os.WriteFile(path, data, 0644)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		return fmt.Errorf("write compressed report: %w", err)
	}
	return gz.Close()
}
