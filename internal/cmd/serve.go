package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tracelab/opexec/internal/config"
	"github.com/tracelab/opexec/internal/observability"
	"github.com/tracelab/opexec/internal/server"
	"github.com/tracelab/opexec/internal/server/handlers"
	"github.com/tracelab/opexec/pkg/detailstore"
	"github.com/tracelab/opexec/pkg/engine"
	"github.com/tracelab/opexec/pkg/entity"
	sqlitestore "github.com/tracelab/opexec/pkg/execstore/sqlite"
	"github.com/tracelab/opexec/pkg/operation"
	"github.com/tracelab/opexec/pkg/sweeper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the execution service",
	Long: `Start the HTTP service: the synchronous and asynchronous execution
endpoints, execution polling, health and metrics. The availability sweeper
runs in-process unless disabled in configuration.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadedCfg
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlitestore.Open(ctx, sqlitestore.Config{
		Path:      cfg.Store.Path,
		URL:       cfg.Store.URL,
		AuthToken: cfg.Store.AuthToken,
	})
	if err != nil {
		return fmt.Errorf("open execution store: %w", err)
	}
	defer db.Close()

	if err := sqlitestore.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate execution store: %w", err)
	}
	store := sqlitestore.New(db)

	details, err := buildDetailStore(ctx, cfg)
	if err != nil {
		return err
	}

	registry := operation.NewRegistry()
	entity.RegisterAll(registry)

	eng := engine.New(engine.Config{
		Workers:      cfg.Engine.Workers,
		QueueDepth:   cfg.Engine.QueueDepth,
		Availability: cfg.Availability.Engine(),
	}, registry, store, details, entity.NewStore(), observability.Logger)

	if cfg.Sweeper.Enabled {
		sw := sweeper.New(sweeper.Config{
			MarkInterval:   cfg.Sweeper.MarkInterval,
			PurgeInterval:  cfg.Sweeper.PurgeInterval,
			PurgePerSecond: cfg.Sweeper.PurgePerSecond,
		}, store, details, observability.Logger)
		go sw.Run(ctx)
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port, handlers.New(eng, registry))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	observability.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		observability.Logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		observability.Logger.Warn("engine shutdown incomplete", zap.Error(err))
	}
	return nil
}

func buildDetailStore(ctx context.Context, cfg *config.Config) (detailstore.Store, error) {
	switch cfg.Details.Backend {
	case "s3":
		store, err := detailstore.NewS3Store(ctx, detailstore.S3Config{
			Bucket:          cfg.Details.S3.Bucket,
			Prefix:          cfg.Details.S3.Prefix,
			Region:          cfg.Details.S3.Region,
			Endpoint:        cfg.Details.S3.Endpoint,
			Profile:         cfg.Details.S3.Profile,
			ForcePathStyle:  cfg.Details.S3.ForcePathStyle,
			AccessKeyID:     cfg.Details.S3.AccessKeyID,
			SecretAccessKey: cfg.Details.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("build s3 detail store: %w", err)
		}
		return store, nil
	default:
		return detailstore.NewFSStore(cfg.Details.Root), nil
	}
}
