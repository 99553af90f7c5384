package main

import (
	"os"

	"github.com/spf13/cobra"

	"pennant/internal/config"
	"pennant/internal/logging"
	"pennant/internal/storage"
	"pennant/internal/version"
)

var (
	// dataDirFlag is the CLI --data-dir flag value
	dataDirFlag string
	// logLevelFlag is the CLI --log-level flag value
	logLevelFlag string
	// logFormatFlag is the CLI --log-format flag value
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "pennant",
	Short: "pennant - season stat warehouse",
	Long: `pennant ingests season data into a two-tier store (current season +
history archive) with idempotent month-by-month backfill, a league-constant
drift guard, and per-game box-score consistency diagnostics.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("pennant version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", ".pennant",
		"Data directory holding config and the season stores")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "",
		"Log format: human or json (default from config)")
}

// env bundles the wired dependencies every command needs.
type env struct {
	cfg    *config.Config
	logger *logging.Logger
	router *storage.Router

	current *storage.DB
	history *storage.DB
}

func (e *env) close() {
	if e.current != nil {
		_ = e.current.Close()
	}
	if e.history != nil {
		_ = e.history.Close()
	}
}

// buildEnv loads config, builds the logger, and opens whichever season
// stores are reachable. A store that fails to open degrades the router
// rather than failing the command; the router reports StoreUnavailable
// only when an operation finds no store at all.
func buildEnv() (*env, error) {
	cfg, err := config.LoadConfig(dataDirFlag)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	// CLI flag wins, then env var, then config.
	if env := os.Getenv("PENNANT_LOG_LEVEL"); logLevelFlag == "" && env != "" {
		level = env
	}
	format := cfg.Logging.Format
	if logFormatFlag != "" {
		format = logFormatFlag
	}

	logger := logging.NewLogger(logging.Config{
		Format: logging.ParseFormat(format),
		Level:  logging.ParseLevel(level),
	})

	e := &env{cfg: cfg, logger: logger}

	currentPath := cfg.StorePath(dataDirFlag, cfg.Stores.CurrentPath)
	if db, err := storage.Open(currentPath, logger); err != nil {
		logger.Warn("current store unavailable", map[string]interface{}{
			"path":  currentPath,
			"error": err.Error(),
		})
	} else {
		e.current = db
	}

	historyPath := cfg.StorePath(dataDirFlag, cfg.Stores.HistoryPath)
	if db, err := storage.Open(historyPath, logger); err != nil {
		logger.Warn("history store unavailable", map[string]interface{}{
			"path":  historyPath,
			"error": err.Error(),
		})
	} else {
		e.history = db
	}

	e.router = storage.NewRouter(e.current, e.history, logger)
	return e, nil
}
