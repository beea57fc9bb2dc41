package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codesquad/internal/logging"
	"codesquad/internal/tools"
)

// resolve joins a relative path against the call's working directory.
// Absolute paths pass through untouched.
func resolve(tc *tools.Context, path string) string {
	if filepath.IsAbs(path) || tc == nil || tc.WorkingDir == "" {
		return path
	}
	return filepath.Join(tc.WorkingDir, path)
}

// ReadFileTool reads file contents, optionally a line range.
func ReadFileTool() *tools.Tool {
	return &tools.Tool{
		Name:             "read_file",
		Description:      "Read the contents of a file",
		Category:         tools.CategoryFile,
		RiskLevel:        tools.RiskLow,
		AllowedInSandbox: true,
		Priority:         90,
		Handler:          readFile,
		Schema: tools.Schema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "The file path to read",
				},
				"start_line": {
					Type:        "integer",
					Description: "Starting line number (1-indexed, optional)",
				},
				"end_line": {
					Type:        "integer",
					Description: "Ending line number (inclusive, optional)",
				},
			},
		},
	}
}

func readFile(ctx context.Context, args map[string]any, tc *tools.Context) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	path = resolve(tc, path)

	logging.ToolsDebug("read_file: path=%s", path)

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	result := string(content)

	startLine, hasStart := intArg(args, "start_line")
	endLine, hasEnd := intArg(args, "end_line")

	if hasStart || hasEnd {
		lines := strings.Split(result, "\n")

		if !hasStart {
			startLine = 1
		}
		if !hasEnd {
			endLine = len(lines)
		}

		startLine--
		if startLine < 0 {
			startLine = 0
		}
		if endLine > len(lines) {
			endLine = len(lines)
		}
		if startLine > endLine {
			startLine = endLine
		}

		result = strings.Join(lines[startLine:endLine], "\n")
	}

	logging.Tools("read_file completed: %s (%d bytes)", path, len(result))
	return result, nil
}

// intArg accepts both native ints and the float64 JSON decoding produces.
func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// WriteFileTool writes content to a file, creating it if needed.
func WriteFileTool() *tools.Tool {
	return &tools.Tool{
		Name:             "write_file",
		Description:      "Write content to a file, creating it if it doesn't exist",
		Category:         tools.CategoryFile,
		RiskLevel:        tools.RiskMedium,
		AllowedInSandbox: true,
		Mutating:         true,
		Priority:         80,
		Handler:          writeFile,
		Schema: tools.Schema{
			Required: []string{"path", "content"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "The file path to write",
				},
				"content": {
					Type:        "string",
					Description: "The content to write",
				},
				"create_dirs": {
					Type:        "boolean",
					Description: "Create parent directories if they don't exist (default: true)",
					Default:     true,
				},
			},
		},
	}
}

func writeFile(ctx context.Context, args map[string]any, tc *tools.Context) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	path = resolve(tc, path)

	content, _ := args["content"].(string)

	createDirs := true
	if cd, ok := args["create_dirs"].(bool); ok {
		createDirs = cd
	}

	logging.ToolsDebug("write_file: path=%s, size=%d", path, len(content))

	if createDirs {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("failed to create directories: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	tc.RecordFileChanged(path)
	logging.Tools("write_file completed: %s (%d bytes)", path, len(content))
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}

// EditFileTool replaces text within a file.
func EditFileTool() *tools.Tool {
	return &tools.Tool{
		Name:             "edit_file",
		Description:      "Edit a file by replacing text",
		Category:         tools.CategoryFile,
		RiskLevel:        tools.RiskMedium,
		AllowedInSandbox: true,
		Mutating:         true,
		Priority:         85,
		Handler:          editFile,
		Schema: tools.Schema{
			Required: []string{"path", "old_text", "new_text"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "The file path to edit",
				},
				"old_text": {
					Type:        "string",
					Description: "The text to find and replace",
				},
				"new_text": {
					Type:        "string",
					Description: "The replacement text",
				},
				"replace_all": {
					Type:        "boolean",
					Description: "Replace all occurrences (default: false, replaces first only)",
					Default:     false,
				},
			},
		},
	}
}

func editFile(ctx context.Context, args map[string]any, tc *tools.Context) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	path = resolve(tc, path)

	oldText, _ := args["old_text"].(string)
	if oldText == "" {
		return "", fmt.Errorf("old_text is required")
	}

	newText, _ := args["new_text"].(string)

	replaceAll := false
	if ra, ok := args["replace_all"].(bool); ok {
		replaceAll = ra
	}

	logging.ToolsDebug("edit_file: path=%s, old_len=%d, new_len=%d", path, len(oldText), len(newText))

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	contentStr := string(content)

	if !strings.Contains(contentStr, oldText) {
		return "", fmt.Errorf("old_text not found in file")
	}

	var newContent string
	var count int
	if replaceAll {
		count = strings.Count(contentStr, oldText)
		newContent = strings.ReplaceAll(contentStr, oldText, newText)
	} else {
		count = 1
		newContent = strings.Replace(contentStr, oldText, newText, 1)
	}

	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	tc.RecordFileChanged(path)
	logging.Tools("edit_file completed: %s (%d replacements)", path, count)
	return fmt.Sprintf("Replaced %d occurrence(s) in %s", count, path), nil
}

// DeleteFileTool removes a single file. Directories are refused.
func DeleteFileTool() *tools.Tool {
	return &tools.Tool{
		Name:             "delete_file",
		Description:      "Delete a file (requires explicit permission)",
		Category:         tools.CategoryFile,
		RiskLevel:        tools.RiskHigh,
		RequiresApproval: true,
		Mutating:         true,
		Priority:         50,
		Handler:          deleteFile,
		Schema: tools.Schema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "The file path to delete",
				},
			},
		},
	}
}

func deleteFile(ctx context.Context, args map[string]any, tc *tools.Context) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	path = resolve(tc, path)

	logging.ToolsDebug("delete_file: path=%s", path)

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("cannot delete directory with delete_file")
	}

	// Capture the contents first so the call's checkpoint can restore them.
	original, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file before delete: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to delete file: %w", err)
	}

	tc.RecordFileDeleted(path, string(original))
	tc.RecordFileChanged(path)
	logging.Tools("delete_file completed: %s", path)
	return fmt.Sprintf("Deleted %s", path), nil
}

// ListFilesTool lists directory contents, optionally recursive.
func ListFilesTool() *tools.Tool {
	return &tools.Tool{
		Name:             "list_files",
		Description:      "List files in a directory",
		Category:         tools.CategoryFile,
		RiskLevel:        tools.RiskLow,
		AllowedInSandbox: true,
		Priority:         85,
		Handler:          listFiles,
		Schema: tools.Schema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "The directory path to list",
				},
				"recursive": {
					Type:        "boolean",
					Description: "List recursively (default: false)",
					Default:     false,
				},
				"include_hidden": {
					Type:        "boolean",
					Description: "Include hidden files (default: false)",
					Default:     false,
				},
			},
		},
	}
}

func listFiles(ctx context.Context, args map[string]any, tc *tools.Context) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}
	path = resolve(tc, path)

	recursive := false
	if r, ok := args["recursive"].(bool); ok {
		recursive = r
	}

	includeHidden := false
	if ih, ok := args["include_hidden"].(bool); ok {
		includeHidden = ih
	}

	logging.ToolsDebug("list_files: path=%s, recursive=%v", path, recursive)

	var files []string

	if recursive {
		err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}

			name := info.Name()
			if !includeHidden && strings.HasPrefix(name, ".") {
				if info.IsDir() && p != path {
					return filepath.SkipDir
				}
				if !info.IsDir() {
					return nil
				}
			}

			relPath, _ := filepath.Rel(path, p)
			if relPath == "." {
				return nil
			}

			if info.IsDir() {
				files = append(files, relPath+"/")
			} else {
				files = append(files, relPath)
			}
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to walk directory: %w", err)
		}
	} else {
		entries, err := os.ReadDir(path)
		if err != nil {
			return "", fmt.Errorf("failed to read directory: %w", err)
		}

		for _, entry := range entries {
			name := entry.Name()
			if !includeHidden && strings.HasPrefix(name, ".") {
				continue
			}

			if entry.IsDir() {
				files = append(files, name+"/")
			} else {
				files = append(files, name)
			}
		}
	}

	logging.Tools("list_files completed: %s (%d entries)", path, len(files))
	return strings.Join(files, "\n"), nil
}
