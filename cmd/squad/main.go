package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codesquad/internal/config"
	"codesquad/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	// Shared state built in PersistentPreRunE
	logger *zap.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "squad",
	Short: "codeSQUAD - parallel coding agents over a checkpointed tool pipeline",
	Long: `codeSQUAD schedules multiple specialist agents against one task and runs
every side effect through a policy-gated tool dispatcher.

Each mutating tool call is approval-gated, snapshotted to a checkpoint, and
rolled back on failure. Agents run in parallel sandboxes and their results
are consensus-scored.

State lives under .squad/ in the workspace (config.yaml, checkpoints/,
sandboxes/, history.db, logs/).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workspace == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve working directory: %w", err)
			}
			workspace = cwd
		}

		path := configPath
		if path == "" {
			path = filepath.Join(workspace, ".squad", "config.yaml")
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := logging.Initialize(workspace); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAudit()
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .squad/config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(checkpointsCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
