package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codesquad/internal/tools"
)

func testContext(dir string) *tools.Context {
	return &tools.Context{WorkingDir: dir}
}

// =============================================================================
// READ FILE TOOL TESTS
// =============================================================================

func TestReadFileTool_Definition(t *testing.T) {
	t.Parallel()

	tool := ReadFileTool()

	if tool.Name != "read_file" {
		t.Errorf("Name mismatch: got %q", tool.Name)
	}
	if tool.Description == "" {
		t.Error("Description should not be empty")
	}
	if tool.Handler == nil {
		t.Error("Handler should be set")
	}
	if tool.Mutating {
		t.Error("read_file should not be mutating")
	}
	if !tool.AllowedInSandbox {
		t.Error("read_file should be allowed in sandboxes")
	}
}

func TestReadFileTool_MissingPath(t *testing.T) {
	t.Parallel()

	_, err := readFile(context.Background(), map[string]any{}, testContext(t.TempDir()))
	if err == nil {
		t.Error("expected error for missing path")
	}
}

func TestReadFileTool_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := readFile(context.Background(), map[string]any{
		"path": "/nonexistent/file.txt",
	}, testContext(t.TempDir()))
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestReadFileTool_Success(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	content := "Hello, World!\nSecond line."
	os.WriteFile(filepath.Join(tmpDir, "test.txt"), []byte(content), 0644)

	result, err := readFile(context.Background(), map[string]any{
		"path": "test.txt",
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != content {
		t.Errorf("content mismatch: got %q", result)
	}
}

func TestReadFileTool_LineRange(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "test.txt"), []byte("one\ntwo\nthree\nfour"), 0644)

	result, err := readFile(context.Background(), map[string]any{
		"path":       "test.txt",
		"start_line": 2,
		"end_line":   3,
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "two\nthree" {
		t.Errorf("line range mismatch: got %q", result)
	}
}

func TestReadFileTool_LineRangeFromJSON(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "test.txt"), []byte("one\ntwo\nthree"), 0644)

	// JSON decoding delivers numbers as float64.
	result, err := readFile(context.Background(), map[string]any{
		"path":       "test.txt",
		"start_line": float64(2),
		"end_line":   float64(2),
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "two" {
		t.Errorf("line range mismatch: got %q", result)
	}
}

// =============================================================================
// WRITE FILE TOOL TESTS
// =============================================================================

func TestWriteFileTool_Definition(t *testing.T) {
	t.Parallel()

	tool := WriteFileTool()

	if tool.Name != "write_file" {
		t.Errorf("Name mismatch: got %q", tool.Name)
	}
	if !tool.Mutating {
		t.Error("write_file should be mutating")
	}
	if !tool.AllowedInSandbox {
		t.Error("write_file should be allowed in sandboxes")
	}
}

func TestWriteFileTool_Success(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	tc := testContext(tmpDir)

	_, err := writeFile(context.Background(), map[string]any{
		"path":    "out.txt",
		"content": "payload",
	}, tc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "out.txt"))
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("content mismatch: got %q", data)
	}

	changed := tc.FilesChanged()
	if len(changed) != 1 {
		t.Fatalf("expected 1 changed file, got %d", len(changed))
	}
}

func TestWriteFileTool_CreatesParentDirs(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()

	_, err := writeFile(context.Background(), map[string]any{
		"path":    filepath.Join("a", "b", "out.txt"),
		"content": "nested",
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "a", "b", "out.txt")); err != nil {
		t.Errorf("nested file missing: %v", err)
	}
}

func TestWriteFileTool_MissingPath(t *testing.T) {
	t.Parallel()

	_, err := writeFile(context.Background(), map[string]any{
		"content": "x",
	}, testContext(t.TempDir()))
	if err == nil {
		t.Error("expected error for missing path")
	}
}

// =============================================================================
// EDIT FILE TOOL TESTS
// =============================================================================

func TestEditFileTool_ReplaceFirst(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "f.txt"), []byte("aaa bbb aaa"), 0644)

	result, err := editFile(context.Background(), map[string]any{
		"path":     "f.txt",
		"old_text": "aaa",
		"new_text": "zzz",
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, "1 occurrence") {
		t.Errorf("expected single replacement, got %q", result)
	}

	data, _ := os.ReadFile(filepath.Join(tmpDir, "f.txt"))
	if string(data) != "zzz bbb aaa" {
		t.Errorf("content mismatch: got %q", data)
	}
}

func TestEditFileTool_ReplaceAll(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "f.txt"), []byte("aaa bbb aaa"), 0644)

	_, err := editFile(context.Background(), map[string]any{
		"path":        "f.txt",
		"old_text":    "aaa",
		"new_text":    "zzz",
		"replace_all": true,
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(tmpDir, "f.txt"))
	if string(data) != "zzz bbb zzz" {
		t.Errorf("content mismatch: got %q", data)
	}
}

func TestEditFileTool_OldTextNotFound(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "f.txt"), []byte("content"), 0644)

	_, err := editFile(context.Background(), map[string]any{
		"path":     "f.txt",
		"old_text": "absent",
		"new_text": "x",
	}, testContext(tmpDir))
	if err == nil {
		t.Error("expected error when old_text is absent")
	}
}

// =============================================================================
// DELETE FILE TOOL TESTS
// =============================================================================

func TestDeleteFileTool_Definition(t *testing.T) {
	t.Parallel()

	tool := DeleteFileTool()

	if !tool.RequiresApproval {
		t.Error("delete_file should require approval")
	}
	if tool.RiskLevel != tools.RiskHigh {
		t.Errorf("risk mismatch: got %q", tool.RiskLevel)
	}
	if tool.AllowedInSandbox {
		t.Error("delete_file should stay blocked in sandboxes")
	}
}

func TestDeleteFileTool_Success(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "gone.txt"), []byte("x"), 0644)

	_, err := deleteFile(context.Background(), map[string]any{
		"path": "gone.txt",
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "gone.txt")); !os.IsNotExist(err) {
		t.Error("file should have been deleted")
	}
}

func TestDeleteFileTool_RefusesDirectory(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.Mkdir(filepath.Join(tmpDir, "sub"), 0755)

	_, err := deleteFile(context.Background(), map[string]any{
		"path": "sub",
	}, testContext(tmpDir))
	if err == nil {
		t.Error("expected error when deleting a directory")
	}
}

// =============================================================================
// LIST FILES TOOL TESTS
// =============================================================================

func TestListFilesTool_Flat(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "a.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(tmpDir, ".hidden"), []byte("x"), 0644)
	os.Mkdir(filepath.Join(tmpDir, "sub"), 0755)

	result, err := listFiles(context.Background(), map[string]any{
		"path": ".",
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result, "a.txt") {
		t.Errorf("missing a.txt in %q", result)
	}
	if !strings.Contains(result, "sub/") {
		t.Errorf("missing sub/ in %q", result)
	}
	if strings.Contains(result, ".hidden") {
		t.Errorf("hidden file should be excluded: %q", result)
	}
}

func TestListFilesTool_Recursive(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.MkdirAll(filepath.Join(tmpDir, "sub", "deep"), 0755)
	os.WriteFile(filepath.Join(tmpDir, "sub", "deep", "f.txt"), []byte("x"), 0644)

	result, err := listFiles(context.Background(), map[string]any{
		"path":      ".",
		"recursive": true,
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result, filepath.Join("sub", "deep", "f.txt")) {
		t.Errorf("recursive listing missing nested file: %q", result)
	}
}
