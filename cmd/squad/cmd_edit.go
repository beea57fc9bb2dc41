package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"codesquad/cmd/squad/ui"
	"codesquad/internal/checkpoint"
	"codesquad/internal/diff"
)

var (
	editFile    string
	editOp      string
	editSearch  string
	editReplace string
	editLine    int
	editEndLine int
	editDryRun  bool
)

// editCmd applies a single edit operation through the checkpointed pipeline
var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Apply one edit operation to a file, with preview and checkpoint",
	Long: `Applies a single edit operation and prints the resulting diff.

Operations:
  replace  - replace occurrences of --search with --replace
  insert   - insert --replace before --line
  delete   - delete lines --line through --end-line
  append   - append --replace at the end of the file
  patch    - apply unified patch text from --search

With --dry-run the change is previewed but not written; otherwise a
checkpoint is captured first so the edit can be restored.

Example:
  squad edit --file main.go --op replace --search 'foo(' --replace 'bar(' --dry-run`,
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editFile, "file", "", "File to edit (required)")
	editCmd.Flags().StringVar(&editOp, "op", "replace", "Operation: replace, insert, delete, append, patch")
	editCmd.Flags().StringVar(&editSearch, "search", "", "Search pattern or patch text")
	editCmd.Flags().StringVar(&editReplace, "replace", "", "Replacement or inserted text")
	editCmd.Flags().IntVar(&editLine, "line", 0, "1-indexed line number for insert/delete")
	editCmd.Flags().IntVar(&editEndLine, "end-line", 0, "Inclusive end line for delete")
	editCmd.Flags().BoolVar(&editDryRun, "dry-run", false, "Preview the change without writing")
	editCmd.MarkFlagRequired("file")
}

func runEdit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	styles := ui.DefaultStyles()

	op := diff.EditOperation{
		Type:          diff.EditType(editOp),
		File:          editFile,
		SearchPattern: editSearch,
		Replacement:   editReplace,
		LineNumber:    editLine,
		EndLineNumber: editEndLine,
	}
	if err := op.Validate(); err != nil {
		return err
	}

	if editDryRun {
		path := editFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(workspace, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", editFile, err)
		}
		newContent, changes, err := diff.ApplyEdit(string(data), op)
		if err != nil {
			return err
		}
		if changes == 0 {
			fmt.Fprintln(out, "No changes.")
			return nil
		}
		fmt.Fprintf(out, "%s\n", styles.Warning.Render(fmt.Sprintf("[dry run] %d change(s) to %s", changes, editFile)))
		fmt.Fprint(out, ui.RenderHunks(styles, diff.Diff(string(data), newContent)))
		return nil
	}

	checkpoints, err := checkpoint.NewStore(workspace, filepath.Join(workspace, cfg.Checkpoints.Dir))
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	editor := diff.NewEditor(workspace, uuid.NewString(), checkpoints)

	target := editFile
	if !filepath.IsAbs(target) {
		target = filepath.Join(workspace, target)
	}
	before, err := os.ReadFile(target)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", editFile, err)
	}

	result, err := editor.MultiEdit([]diff.EditOperation{op})
	if err != nil {
		return err
	}
	if result.FailedFiles > 0 {
		for _, failure := range result.Failures {
			fmt.Fprintf(out, "%s %s: %s\n", styles.Failure.Render("✗"), failure.File, failure.Error)
		}
		return fmt.Errorf("edit failed")
	}

	after, err := os.ReadFile(target)
	if err == nil && string(after) != string(before) {
		fmt.Fprint(out, ui.RenderHunks(styles, diff.Diff(string(before), string(after))))
	}

	fmt.Fprintf(out, "%s edited %s", styles.Success.Render("✓"), editFile)
	if result.CheckpointID != "" {
		fmt.Fprintf(out, " (checkpoint %s)", result.CheckpointID)
	}
	fmt.Fprintln(out)
	return nil
}
