package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"codesquad/internal/checkpoint"
)

var checkpointsSession string

// checkpointsCmd manages working-tree checkpoints
var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "List or restore working-tree checkpoints",
	RunE:  listCheckpoints,
}

var checkpointsRestoreCmd = &cobra.Command{
	Use:   "restore [id]",
	Short: "Restore a checkpoint's snapshot into the working tree",
	Args:  cobra.ExactArgs(1),
	RunE:  restoreCheckpoint,
}

func init() {
	checkpointsCmd.PersistentFlags().StringVar(&checkpointsSession, "session", "", "Filter by session id")
	checkpointsCmd.AddCommand(checkpointsRestoreCmd)
}

func openCheckpoints() (*checkpoint.Store, error) {
	store, err := checkpoint.NewStore(workspace, filepath.Join(workspace, cfg.Checkpoints.Dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load checkpoints: %w", err)
	}
	return store, nil
}

func listCheckpoints(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	store, err := openCheckpoints()
	if err != nil {
		return err
	}

	infos := store.List(checkpointsSession)
	if len(infos) == 0 {
		fmt.Fprintln(out, "No checkpoints.")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(out, "%s  %s  %2d file(s)  %s\n",
			info.ID, info.CreatedAt.Format("2006-01-02 15:04:05"), info.FileCount, info.Description)
	}
	return nil
}

func restoreCheckpoint(cmd *cobra.Command, args []string) error {
	store, err := openCheckpoints()
	if err != nil {
		return err
	}

	if !store.Restore(args[0]) {
		return fmt.Errorf("checkpoint not found or already consumed: %s", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored checkpoint %s\n", args[0])
	return nil
}
