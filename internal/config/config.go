// Package config loads and validates pennant configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"pennant/internal/errors"
	"pennant/internal/model"
)

// Config represents the complete pennant configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Stores      StoresConfig      `json:"stores" mapstructure:"stores"`
	Producer    ProducerConfig    `json:"producer" mapstructure:"producer"`
	Backfill    BackfillConfig    `json:"backfill" mapstructure:"backfill"`
	Drift       DriftConfig       `json:"drift" mapstructure:"drift"`
	Diagnostics DiagnosticsConfig `json:"diagnostics" mapstructure:"diagnostics"`
	Sample      SampleConfig      `json:"sample" mapstructure:"sample"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
}

// StoresConfig names the two season store database files, relative to the
// data directory unless absolute.
type StoresConfig struct {
	CurrentPath string `json:"currentPath" mapstructure:"currentPath"`
	HistoryPath string `json:"historyPath" mapstructure:"historyPath"`
}

// ProducerConfig configures the upstream record producer.
type ProducerConfig struct {
	SourceDir    string `json:"sourceDir" mapstructure:"sourceDir"`
	FetchDelayMs int    `json:"fetchDelayMs" mapstructure:"fetchDelayMs"`
}

// BackfillConfig contains backfill driver defaults.
type BackfillConfig struct {
	Months []int `json:"months" mapstructure:"months"`
}

// DriftConfig contains the league-constant drift guard settings.
type DriftConfig struct {
	MaxDelta    float64 `json:"maxDelta" mapstructure:"maxDelta"`
	Coefficient string  `json:"coefficient" mapstructure:"coefficient"`
}

// DiagnosticsConfig contains per-metric tolerances for game diagnostics.
type DiagnosticsConfig struct {
	RunTolerance       int `json:"runTolerance" mapstructure:"runTolerance"`
	StrikeoutTolerance int `json:"strikeoutTolerance" mapstructure:"strikeoutTolerance"`
	HitMin             int `json:"hitMin" mapstructure:"hitMin"`
	HitMax             int `json:"hitMax" mapstructure:"hitMax"`
	PlayersMin         int `json:"playersMin" mapstructure:"playersMin"`
	PlayersMax         int `json:"playersMax" mapstructure:"playersMax"`
	LooseEraYear       int `json:"looseEraYear" mapstructure:"looseEraYear"`
	LooseEraBonus      int `json:"looseEraBonus" mapstructure:"looseEraBonus"`
}

// SampleConfig contains regression sample validator settings.
type SampleConfig struct {
	FullSampleSize int       `json:"fullSampleSize" mapstructure:"fullSampleSize"`
	SentinelValues []float64 `json:"sentinelValues" mapstructure:"sentinelValues"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Stores: StoresConfig{
			CurrentPath: "current.db",
			HistoryPath: "history.db",
		},
		Producer: ProducerConfig{
			SourceDir:    "drops",
			FetchDelayMs: 250,
		},
		Backfill: BackfillConfig{
			Months: []int{3, 4, 5, 6, 7, 8, 9, 10},
		},
		Drift: DriftConfig{
			MaxDelta:    0.07,
			Coefficient: "runsPerOut",
		},
		Diagnostics: DiagnosticsConfig{
			RunTolerance:       1,
			StrikeoutTolerance: 2,
			HitMin:             0,
			HitMax:             25,
			PlayersMin:         8,
			PlayersMax:         15,
			LooseEraYear:       1950,
			LooseEraBonus:      2,
		},
		Sample: SampleConfig{
			FullSampleSize: 100,
			SentinelValues: []float64{-1},
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from <dataDir>/config.json.
// A missing config file yields the defaults.
func LoadConfig(dataDir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(dataDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to <dataDir>/config.json
func (c *Config) Save(dataDir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, "config.json"), data, 0644)
}

// StorePath resolves a store path against the data directory.
func (c *Config) StorePath(dataDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dataDir, path)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Drift.MaxDelta <= 0 || c.Drift.MaxDelta >= 1 {
		return errors.New(errors.ConfigInvalid, "drift.maxDelta must be in (0, 1)")
	}
	if _, ok := (&model.LeagueConstants{}).Coefficient(c.Drift.Coefficient); !ok {
		return errors.New(errors.ConfigInvalid,
			fmt.Sprintf("drift.coefficient %q is not a known league constant", c.Drift.Coefficient))
	}
	if c.Sample.FullSampleSize <= 0 {
		return errors.New(errors.ConfigInvalid, "sample.fullSampleSize must be positive")
	}
	if len(c.Backfill.Months) == 0 {
		return errors.New(errors.ConfigInvalid, "backfill.months must not be empty")
	}
	for _, m := range c.Backfill.Months {
		if m < 1 || m > 12 {
			return errors.New(errors.ConfigInvalid, "backfill.months entries must be 1-12")
		}
	}
	if c.Diagnostics.PlayersMin > c.Diagnostics.PlayersMax {
		return errors.New(errors.ConfigInvalid, "diagnostics player count range is inverted")
	}
	return nil
}
