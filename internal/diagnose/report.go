// Package diagnose validates stored box scores against cross-table
// invariants and produces scored, categorized issue reports.
package diagnose

import (
	"fmt"
	"time"

	"pennant/internal/storage"
)

// Severity classifies one diagnostic issue
type Severity string

const (
	// SeverityLow is informational
	SeverityLow Severity = "low"
	// SeverityMedium is a plausibility concern
	SeverityMedium Severity = "medium"
	// SeverityHigh is a cross-table inconsistency
	SeverityHigh Severity = "high"
	// SeverityCritical is data that cannot be trusted at all
	SeverityCritical Severity = "critical"
)

// Check names, used to group issues in reports.
const (
	CheckBoxScore     = "box-score"
	CheckAggregation  = "aggregation-health"
	CheckCompleteness = "completeness"
)

// Report status values.
const (
	StatusHealthy = "healthy"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Issue is one typed diagnostic finding
type Issue struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Report is the per-game diagnostic output. It is generated on demand and
// never persisted as a system of record.
type Report struct {
	GameID      string            `json:"gameId"`
	Score       int               `json:"score"`
	Status      string            `json:"status"`
	Source      storage.StoreName `json:"source,omitempty"`
	Issues      []Issue           `json:"issues"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

var deductions = map[Severity]int{
	SeverityCritical: 40,
	SeverityHigh:     20,
	SeverityMedium:   10,
	SeverityLow:      0,
}

// finalize computes the score and status from the accumulated issues.
// Scoring starts at 100, deducts per issue, and floors at 0.
func (r *Report) finalize() {
	score := 100
	for _, issue := range r.Issues {
		score -= deductions[issue.Severity]
	}
	if score < 0 {
		score = 0
	}
	r.Score = score

	switch {
	case score >= 80:
		r.Status = StatusHealthy
	case score >= 60:
		r.Status = StatusWarning
	default:
		r.Status = StatusError
	}
}

func (r *Report) addIssue(check string, severity Severity, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{
		Check:    check,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Summary renders a one-line human-readable summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("%s: score %d (%s), %d issue(s)", r.GameID, r.Score, r.Status, len(r.Issues))
}
