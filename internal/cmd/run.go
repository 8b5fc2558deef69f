package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tracelab/opexec/internal/observability"
	"github.com/tracelab/opexec/pkg/detailstore"
	"github.com/tracelab/opexec/pkg/engine"
	"github.com/tracelab/opexec/pkg/entity"
	"github.com/tracelab/opexec/pkg/execstore"
	"github.com/tracelab/opexec/pkg/manifest"
	"github.com/tracelab/opexec/pkg/operation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a batch manifest against an ephemeral catalog",
	Long: `Execute a batch manifest locally. The catalog starts empty and is
discarded afterwards, which makes this a validation and rehearsal tool for
batches before submitting them to a service.

Example:
  opexec run --batch batch.yaml
  opexec run --batch batch.yaml --async
  opexec run --batch batch.yaml --json`,
	RunE: runBatch,
}

var (
	runBatchPath string
	runAsync     bool
	runJSON      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runBatchPath, "batch", "b", "", "Path to batch manifest (required)")
	runCmd.Flags().BoolVar(&runAsync, "async", false, "Submit asynchronously and poll to completion")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print results as JSON")

	_ = runCmd.MarkFlagRequired("batch")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	b, err := manifest.Load(runBatchPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load batch manifest",
			zap.String("path", runBatchPath),
			zap.Error(err))
		return err
	}

	registry := operation.NewRegistry()
	entity.RegisterAll(registry)

	ops, err := b.Decode(registry)
	if err != nil {
		return fmt.Errorf("decode batch: %w", err)
	}

	store := execstore.NewMemoryStore()
	details := detailstore.NewFSStore(os.TempDir())
	eng := engine.New(engine.Config{}, registry, store, details, entity.NewStore(), observability.Logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Shutdown(shutdownCtx)
	}()

	var results []operation.Result
	if runAsync {
		results, err = runBatchAsync(ctx, eng, store, ops, b.Options())
	} else {
		results, err = eng.ExecuteInOwnUnitOfWork(ctx, ops, b.Options())
	}
	if err != nil {
		return err
	}

	return printResults(results)
}

// runBatchAsync submits the batch and polls the execution record until it
// reaches a terminal state.
func runBatchAsync(ctx context.Context, eng *engine.Engine, store execstore.Store, ops []operation.Operation, opts engine.Options) ([]operation.Result, error) {
	id, err := eng.ExecuteAsynchronous(ctx, ops, opts)
	if err != nil {
		return nil, err
	}
	observability.CLILogger.Info("Batch submitted", zap.String("execution_id", id))

	for {
		rec, err := store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("poll execution %s: %w", id, err)
		}
		switch rec.State {
		case execstore.StateFinished:
			view, err := eng.GetExecution(ctx, id)
			if err != nil {
				return nil, err
			}
			if view.Details == nil {
				return nil, nil
			}
			results := make([]operation.Result, 0, len(view.Details.Results))
			for _, entry := range view.Details.Results {
				results = append(results, operation.Result{
					Kind:     operation.Kind(entry.Kind),
					ObjectID: entry.ObjectID,
					Message:  entry.Message,
				})
			}
			return results, nil
		case execstore.StateFailed:
			msg := "unknown failure"
			if rec.Summary != nil && rec.Summary.Error != "" {
				msg = rec.Summary.Error
			}
			return nil, fmt.Errorf("execution %s failed: %s", id, msg)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func printResults(results []operation.Result) error {
	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for i, res := range results {
		fmt.Printf("%3d  %s\n", i, res.String())
	}
	return nil
}
