package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codesquad/cmd/squad/ui"
	"codesquad/internal/diff"
)

// diffCmd previews the difference between two files
var diffCmd = &cobra.Command{
	Use:   "diff [file-a] [file-b]",
	Short: "Render a colored line-level diff between two files",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	oldData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	newData, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[1], err)
	}

	fd := diff.ComputeDiff(args[0], args[1], string(oldData), string(newData))
	styles := ui.DefaultStyles()
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderFileDiff(styles, fd))

	added, removed := diff.Stats(fd.Hunks)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", styles.Muted.Render(fmt.Sprintf("%d added, %d removed", added, removed)))
	return nil
}
