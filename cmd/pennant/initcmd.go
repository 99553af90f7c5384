package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pennant/internal/config"
	"pennant/internal/logging"
	"pennant/internal/storage"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directory, default config, and empty stores",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(dataDirFlag, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	configPath := filepath.Join(dataDirFlag, "config.json")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(dataDirFlag); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	logger := logging.NewLogger(logging.Config{
		Format: logging.ParseFormat(cfg.Logging.Format),
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})

	// Opening the stores creates them with the full schema.
	for _, path := range []string{cfg.Stores.CurrentPath, cfg.Stores.HistoryPath} {
		db, err := storage.Open(cfg.StorePath(dataDirFlag, path), logger)
		if err != nil {
			return fmt.Errorf("initialize store %s: %w", path, err)
		}
		if err := db.Close(); err != nil {
			return err
		}
	}

	fmt.Printf("Initialized pennant data directory at %s\n", dataDirFlag)
	return nil
}
