package diagnose

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pennant/internal/config"
	"pennant/internal/storage"
)

// Sample is one curated regression check: an aggregated metric for a
// known player or team compared against an expected numeric range.
type Sample struct {
	EntityID   string  `yaml:"entity" json:"entity"`
	Year       int     `yaml:"year" json:"year"`
	Metric     string  `yaml:"metric" json:"metric"`
	Min        float64 `yaml:"min" json:"min"`
	Max        float64 `yaml:"max" json:"max"`
	SampleSize int     `yaml:"sampleSize" json:"sampleSize"`
}

// SampleOutcome reports one sample check.
type SampleOutcome struct {
	Sample  Sample  `json:"sample"`
	Value   float64 `json:"value"`
	Min     float64 `json:"widenedMin"`
	Max     float64 `json:"widenedMax"`
	OK      bool    `json:"ok"`
	Warning bool    `json:"warning"`
	Reason  string  `json:"reason"`
}

// CheckSample compares an aggregated metric against its expected range,
// widened for small samples so early-season variance does not produce
// false failures. Sentinel values used when upstream data is absent
// produce a warning outcome rather than a failure.
func CheckSample(router *storage.Router, sample Sample, cfg config.SampleConfig, opts storage.ReadOptions) (SampleOutcome, error) {
	outcome := SampleOutcome{Sample: sample}

	totals, _, err := router.BattingTotalsFor(sample.EntityID, sample.Year, opts)
	if err != nil {
		return outcome, err
	}

	value := metricValue(totals, sample.Metric)
	outcome.Value = value

	for _, sentinel := range cfg.SentinelValues {
		if value == sentinel {
			outcome.OK = true
			outcome.Warning = true
			outcome.Reason = fmt.Sprintf("metric %s for %s is the absent-data sentinel %v",
				sample.Metric, sample.EntityID, sentinel)
			return outcome, nil
		}
	}

	outcome.Min, outcome.Max = WidenRange(sample.Min, sample.Max, sample.SampleSize, cfg.FullSampleSize)

	if value < outcome.Min || value > outcome.Max {
		outcome.OK = false
		outcome.Reason = fmt.Sprintf("metric %s = %.4f outside [%.4f, %.4f] (range widened for sample size %d)",
			sample.Metric, value, outcome.Min, outcome.Max, sample.SampleSize)
		return outcome, nil
	}

	outcome.OK = true
	outcome.Reason = fmt.Sprintf("metric %s = %.4f within [%.4f, %.4f]",
		sample.Metric, value, outcome.Min, outcome.Max)
	return outcome, nil
}

// WidenRange scales the acceptance band about its midpoint by
// fullSample/sampleSize. At or above fullSample the factor clamps to 1,
// collapsing back to the original range.
func WidenRange(min, max float64, sampleSize, fullSample int) (float64, float64) {
	if sampleSize <= 0 {
		sampleSize = 1
	}
	factor := float64(fullSample) / float64(sampleSize)
	if factor < 1 {
		factor = 1
	}
	mid := (min + max) / 2
	halfSpan := (max - min) / 2 * factor
	return mid - halfSpan, mid + halfSpan
}

// metricValue computes the named aggregate metric. Absent data yields the
// conventional -1 sentinel.
func metricValue(totals *storage.BattingTotals, metric string) float64 {
	if totals == nil || totals.Rows == 0 {
		return -1
	}
	switch metric {
	case "avg":
		if totals.AtBats == 0 {
			return -1
		}
		return float64(totals.Hits) / float64(totals.AtBats)
	case "so_rate":
		if totals.AtBats == 0 {
			return -1
		}
		return float64(totals.Strikeouts) / float64(totals.AtBats)
	case "runs":
		return float64(totals.Runs)
	case "hits":
		return float64(totals.Hits)
	case "walks":
		return float64(totals.Walks)
	default:
		return -1
	}
}

// LoadSamples reads a curated sample set from a YAML file.
func LoadSamples(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sample file: %w", err)
	}
	var doc struct {
		Samples []Sample `yaml:"samples"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse sample file: %w", err)
	}
	return doc.Samples, nil
}

// RunSamples checks every sample in a curated set.
func RunSamples(router *storage.Router, samples []Sample, cfg config.SampleConfig, opts storage.ReadOptions) ([]SampleOutcome, error) {
	outcomes := make([]SampleOutcome, 0, len(samples))
	for _, s := range samples {
		outcome, err := CheckSample(router, s, cfg, opts)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}
