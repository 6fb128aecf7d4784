package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/zakupnik/suggestd/internal/catalog"
	"github.com/zakupnik/suggestd/internal/config"
	"github.com/zakupnik/suggestd/internal/index"
	"github.com/zakupnik/suggestd/internal/logging"
	"github.com/zakupnik/suggestd/internal/replicate"
	"github.com/zakupnik/suggestd/internal/storage"
)

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the full-text index from the catalog",
		Long: `Drops the full-text index and rebuilds it from the product
catalog. The service must not be running; the index directory is
exclusively locked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config")
			return runReindex(cmd, configDir)
		},
	}
}

func runReindex(cmd *cobra.Command, configDir string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()
	logger := slog.Default()

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	cat, err := catalog.NewStore(db)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Index.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	lock := flock.New(cfg.Index.Path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("index %s is in use; stop suggestd before reindexing", cfg.Index.Path)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.RemoveAll(cfg.Index.Path); err != nil {
		return fmt.Errorf("failed to remove old index: %w", err)
	}

	idx, _, err := index.Open(cfg.Index.Path, logger)
	if err != nil {
		return err
	}
	defer idx.Close()

	rep := replicate.New(cat, idx, cfg.Index.QueueSize, logger)
	if err := rep.Bootstrap(cmd.Context()); err != nil {
		return err
	}

	count, err := idx.DocCount()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reindexed %d products into %s\n", count, cfg.Index.Path)
	return nil
}
