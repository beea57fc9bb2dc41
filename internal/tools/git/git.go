// Package git provides version control tools backed by the git binary.
//
// Tools:
//   - git_status: Working tree status
//   - git_diff: Unstaged or staged changes
//   - git_commit: Stage and commit changes (requires approval)
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"codesquad/internal/logging"
	"codesquad/internal/tools"
)

// StatusTool reports the working tree status.
func StatusTool() *tools.Tool {
	return &tools.Tool{
		Name:             "git_status",
		Description:      "Show the working tree status",
		Category:         tools.CategoryGit,
		RiskLevel:        tools.RiskLow,
		AllowedInSandbox: true,
		Priority:         80,
		Handler:          gitStatus,
		Schema: tools.Schema{
			Properties: map[string]tools.Property{
				"short": {
					Type:        "boolean",
					Description: "Use the short status format (default: true)",
					Default:     true,
				},
			},
		},
	}
}

func gitStatus(ctx context.Context, args map[string]any, tc *tools.Context) (string, error) {
	short := true
	if s, ok := args["short"].(bool); ok {
		short = s
	}

	gitArgs := []string{"status"}
	if short {
		gitArgs = append(gitArgs, "--short")
	}

	out, err := runGit(ctx, tc.WorkingDir, gitArgs...)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "working tree clean", nil
	}
	return out, nil
}

// DiffTool shows pending changes.
func DiffTool() *tools.Tool {
	return &tools.Tool{
		Name:             "git_diff",
		Description:      "Show unstaged or staged changes",
		Category:         tools.CategoryGit,
		RiskLevel:        tools.RiskLow,
		AllowedInSandbox: true,
		Priority:         80,
		Handler:          gitDiff,
		Schema: tools.Schema{
			Properties: map[string]tools.Property{
				"staged": {
					Type:        "boolean",
					Description: "Show staged changes instead of unstaged (default: false)",
					Default:     false,
				},
				"path": {
					Type:        "string",
					Description: "Limit the diff to one path",
				},
			},
		},
	}
}

func gitDiff(ctx context.Context, args map[string]any, tc *tools.Context) (string, error) {
	gitArgs := []string{"diff"}
	if staged, ok := args["staged"].(bool); ok && staged {
		gitArgs = append(gitArgs, "--cached")
	}
	if path, ok := args["path"].(string); ok && path != "" {
		gitArgs = append(gitArgs, "--", path)
	}

	out, err := runGit(ctx, tc.WorkingDir, gitArgs...)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "no changes", nil
	}
	return out, nil
}

// CommitTool stages the given paths and commits them.
func CommitTool() *tools.Tool {
	return &tools.Tool{
		Name:             "git_commit",
		Description:      "Stage files and create a commit",
		Category:         tools.CategoryGit,
		RiskLevel:        tools.RiskMedium,
		RequiresApproval: true,
		Mutating:         true,
		Priority:         60,
		Handler:          gitCommit,
		Schema: tools.Schema{
			Required: []string{"message"},
			Properties: map[string]tools.Property{
				"message": {
					Type:        "string",
					Description: "The commit message",
				},
				"paths": {
					Type:        "array",
					Description: "Paths to stage (default: all tracked changes)",
				},
			},
		},
	}
}

func gitCommit(ctx context.Context, args map[string]any, tc *tools.Context) (string, error) {
	message, _ := args["message"].(string)
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("message is required")
	}

	addArgs := []string{"add"}
	if raw, ok := args["paths"].([]any); ok && len(raw) > 0 {
		for _, p := range raw {
			if ps, ok := p.(string); ok && ps != "" {
				addArgs = append(addArgs, ps)
			}
		}
	} else {
		addArgs = append(addArgs, "-A")
	}

	if _, err := runGit(ctx, tc.WorkingDir, addArgs...); err != nil {
		return "", fmt.Errorf("stage failed: %w", err)
	}

	out, err := runGit(ctx, tc.WorkingDir, "commit", "-m", message)
	if err != nil {
		return "", fmt.Errorf("commit failed: %w", err)
	}

	logging.Tools("git_commit completed in %s", tc.WorkingDir)
	return out, nil
}

// runGit executes one git command in dir and returns combined output.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logging.ToolsDebug("git %s (dir=%s)", strings.Join(args, " "), dir)

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w\n%s", args[0], err, out.String())
	}
	return out.String(), nil
}

// RegisterAll registers the git tools with the given registry.
func RegisterAll(registry *tools.Registry) error {
	allTools := []*tools.Tool{
		StatusTool(),
		DiffTool(),
		CommitTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
