package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"codesquad/internal/history"
)

var (
	historyLimit   int
	historySession string
	historyRuns    bool
)

// historyCmd shows recent execution history from SQLite
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent tool calls or agent runs",
	RunE:  showHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum rows to show")
	historyCmd.Flags().StringVar(&historySession, "session", "", "Filter tool calls by session id")
	historyCmd.Flags().BoolVar(&historyRuns, "runs", false, "Show agent runs instead of tool calls")
}

func showHistory(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	store, err := history.Open(filepath.Join(workspace, cfg.History.Path))
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer store.Close()

	if historyRuns {
		runs, err := store.RecentRuns(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No agent runs recorded.")
			return nil
		}
		for _, run := range runs {
			outcome := "ok"
			if !run.Success {
				outcome = "failed"
			}
			fmt.Fprintf(out, "%s  %-10s %-6s score %.2f  %6dms  %s\n",
				run.CreatedAt.Format("2006-01-02 15:04:05"), run.Role, outcome, run.Score, run.ExecutionMs, run.Task)
			if run.Error != "" {
				fmt.Fprintf(out, "  error: %s\n", run.Error)
			}
		}
		return nil
	}

	calls, err := store.RecentToolCalls(historySession, historyLimit)
	if err != nil {
		return err
	}
	if len(calls) == 0 {
		fmt.Fprintln(out, "No tool calls recorded.")
		return nil
	}
	for _, call := range calls {
		outcome := "ok"
		if !call.Success {
			outcome = "failed"
		}
		fmt.Fprintf(out, "%s  %-14s %-6s %5dms", call.CreatedAt.Format("2006-01-02 15:04:05"), call.Tool, outcome, call.DurationMs)
		if call.CheckpointID != "" {
			fmt.Fprintf(out, "  checkpoint %s", call.CheckpointID)
		}
		fmt.Fprintln(out)
		if call.Error != "" {
			fmt.Fprintf(out, "  error: %s\n", call.Error)
		}
	}
	return nil
}
