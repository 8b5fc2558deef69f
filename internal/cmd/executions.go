package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/tracelab/opexec/pkg/detailstore"
	"github.com/tracelab/opexec/pkg/execstore"
	sqlitestore "github.com/tracelab/opexec/pkg/execstore/sqlite"
	"github.com/tracelab/opexec/pkg/sweeper"
)

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "Inspect and maintain execution records",
}

var executionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List execution records",
	Long: `List execution records from the configured store.

Example:
  opexec executions list
  opexec executions list --owner alice
  opexec executions list --match 'import-**' --json`,
	RunE: runExecutionsList,
}

var executionsGetCmd = &cobra.Command{
	Use:   "get <execution-id>",
	Short: "Show one execution record with its details",
	Args:  cobra.ExactArgs(1),
	RunE:  runExecutionsGet,
}

var executionsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one availability sweep pass",
	Long: `Run the availability sweeps once against the configured store:
mark expired facets as pending, then purge pending ones. Useful when the
in-process sweeper is disabled and expiry is driven externally.`,
	RunE: runExecutionsSweep,
}

var (
	executionsOwner string
	executionsMatch string
	executionsJSON  bool
	sweepMarkOnly   bool
	sweepPurgeOnly  bool
)

func init() {
	rootCmd.AddCommand(executionsCmd)
	executionsCmd.AddCommand(executionsListCmd)
	executionsCmd.AddCommand(executionsGetCmd)
	executionsCmd.AddCommand(executionsSweepCmd)

	executionsListCmd.Flags().StringVar(&executionsOwner, "owner", "", "Filter by owner")
	executionsListCmd.Flags().StringVar(&executionsMatch, "match", "", "Filter execution ids by glob pattern")
	executionsListCmd.Flags().BoolVar(&executionsJSON, "json", false, "Print records as JSON")

	executionsGetCmd.Flags().BoolVar(&executionsJSON, "json", false, "Print the record as JSON")

	executionsSweepCmd.Flags().BoolVar(&sweepMarkOnly, "mark", false, "Only mark expired facets")
	executionsSweepCmd.Flags().BoolVar(&sweepPurgeOnly, "purge", false, "Only purge pending facets")
}

// openStores opens the configured execution store and detail store.
func openStores(ctx context.Context) (*sql.DB, execstore.Store, detailstore.Store, error) {
	cfg := loadedCfg

	db, err := sqlitestore.Open(ctx, sqlitestore.Config{
		Path:      cfg.Store.Path,
		URL:       cfg.Store.URL,
		AuthToken: cfg.Store.AuthToken,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open execution store: %w", err)
	}
	if err := sqlitestore.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("migrate execution store: %w", err)
	}

	details, err := buildDetailStore(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return db, sqlitestore.New(db), details, nil
}

func runExecutionsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, store, _, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := store.List(ctx, executionsOwner)
	if err != nil {
		return fmt.Errorf("list executions: %w", err)
	}

	if executionsMatch != "" {
		filtered := records[:0]
		for _, rec := range records {
			ok, err := doublestar.Match(executionsMatch, rec.ID)
			if err != nil {
				return fmt.Errorf("invalid --match pattern: %w", err)
			}
			if ok {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	if executionsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EXECUTION ID\tSTATE\tOWNER\tCREATED\tAVAILABILITY")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.ID, rec.State, rec.Owner,
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			rec.RecordFacet.Availability)
	}
	return w.Flush()
}

func runExecutionsGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, store, details, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := store.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get execution %s: %w", args[0], err)
	}

	view := struct {
		Record  *execstore.Record     `json:"record"`
		Details *detailstore.Document `json:"details,omitempty"`
	}{Record: rec}

	if rec.DetailsRef != "" {
		doc, err := details.Get(ctx, rec.DetailsRef)
		if err == nil {
			view.Details = doc
		} else if err != detailstore.ErrNotFound {
			return fmt.Errorf("get execution details: %w", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func runExecutionsSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, store, details, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	sw := sweeper.New(sweeper.Config{
		PurgePerSecond: loadedCfg.Sweeper.PurgePerSecond,
	}, store, details, nil)

	if !sweepPurgeOnly {
		marked, err := sw.MarkPending(ctx)
		if err != nil {
			return fmt.Errorf("mark sweep: %w", err)
		}
		fmt.Printf("marked %d facet(s) pending\n", marked)
	}
	if !sweepMarkOnly {
		purged, err := sw.Purge(ctx)
		if err != nil {
			return fmt.Errorf("purge sweep: %w", err)
		}
		fmt.Printf("purged %d facet(s)\n", purged)
	}
	return nil
}
