package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/zakupnik/suggestd/internal/access"
	"github.com/zakupnik/suggestd/internal/catalog"
	"github.com/zakupnik/suggestd/internal/config"
	"github.com/zakupnik/suggestd/internal/history"
	"github.com/zakupnik/suggestd/internal/index"
	"github.com/zakupnik/suggestd/internal/logging"
	"github.com/zakupnik/suggestd/internal/replicate"
	"github.com/zakupnik/suggestd/internal/server"
	"github.com/zakupnik/suggestd/internal/storage"
	"github.com/zakupnik/suggestd/internal/suggest"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the suggestion HTTP service",
		Long: `Starts the suggestd HTTP service: opens the catalog and history
stores, syncs the full-text index from the catalog, and serves the
suggestion API until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config")
			return runServe(cmd.Context(), configDir, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Override the configured HTTP port")
	return cmd
}

func runServe(ctx context.Context, configDir string, portOverride int) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	if portOverride != 0 {
		cfg.Server.Port = portOverride
	}
	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("SUGGESTD_JWT_SECRET must be set")
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
	hist, err := history.NewStore(db)
	if err != nil {
		return err
	}
	checker, err := access.NewChecker(db)
	if err != nil {
		return err
	}

	// One process owns the index directory at a time.
	if err := os.MkdirAll(filepath.Dir(cfg.Index.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	lock := flock.New(cfg.Index.Path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("index %s is locked by another suggestd process", cfg.Index.Path)
	}
	defer func() { _ = lock.Unlock() }()

	idx, created, err := index.Open(cfg.Index.Path, logger)
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The catalog is the source of truth; sync it fully before any
	// suggestion traffic is accepted.
	rep := replicate.New(cat, idx, cfg.Index.QueueSize, logger)
	if err := rep.Bootstrap(ctx); err != nil {
		return err
	}
	rep.Start(ctx)
	defer rep.Stop()

	engine := suggest.NewEngine(
		suggest.NewIndexProvider(idx),
		suggest.NewCatalogProvider(cat, cfg.Suggest.SimilarityThreshold),
		hist,
		suggest.Options{
			MinQueryLen:         cfg.Suggest.MinQueryLen,
			ProductLimit:        cfg.Suggest.ProductLimit,
			SourceLimit:         cfg.Suggest.SourceLimit,
			MergedLimit:         cfg.Suggest.MergedLimit,
			SimilarityThreshold: cfg.Suggest.SimilarityThreshold,
		},
		logger)

	srv := server.New(server.Deps{
		Engine:              engine,
		Estimator:           suggest.NewEstimator(hist, cat),
		Catalog:             cat,
		History:             hist,
		Replicator:          rep,
		Access:              checker,
		JWTSecret:           cfg.Server.JWTSecret,
		RequestTimeout:      cfg.Server.RequestTimeout,
		FrequentMinCount:    cfg.Suggest.FrequentMinCount,
		FrequentLimit:       cfg.Suggest.FrequentLimit,
		SimilarityThreshold: cfg.Suggest.SimilarityThreshold,
		MinQueryLen:         cfg.Suggest.MinQueryLen,
		Logger:              logger,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	logger.Info("suggestd listening",
		"port", cfg.Server.Port,
		"db", cfg.Storage.DBPath,
		"index", cfg.Index.Path,
		"index_created", created)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
