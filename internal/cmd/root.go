// Package cmd implements the opexec command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracelab/opexec/internal/config"
	"github.com/tracelab/opexec/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	cfgFile   string
	logLevel  string
	logJSON   bool
	loadedCfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "opexec",
	Short: "Batch operation execution service for lab data",
	Long: `opexec executes heterogeneous batches of create, update and delete
operations against a lab data catalog, either synchronously or as durable
asynchronous executions that can be polled until their availability windows
expire.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if cmd.Root().PersistentFlags().Changed("json-logs") {
			cfg.Logging.JSON = logJSON
		}
		if err := observability.Init(cfg.Logging.Level, cfg.Logging.JSON); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		loadedCfg = cfg
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("opexec %s (commit %s, built %s)\n",
			versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
