package core

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// =============================================================================
// GLOB TOOL TESTS
// =============================================================================

func TestGlobTool_Definition(t *testing.T) {
	t.Parallel()

	tool := GlobTool()

	if tool.Name != "glob" {
		t.Errorf("Name mismatch: got %q", tool.Name)
	}
	if tool.Handler == nil {
		t.Error("Handler should be set")
	}
	if !tool.AllowedInSandbox {
		t.Error("glob should be sandbox-safe")
	}
}

func TestGlobTool_MissingPattern(t *testing.T) {
	t.Parallel()

	_, err := globFiles(context.Background(), map[string]any{}, testContext(t.TempDir()))
	if err == nil {
		t.Error("expected error for missing pattern")
	}
}

func TestGlobTool_SimplePattern(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "a.go"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "b.go"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "c.txt"), []byte("x"), 0644)

	result, err := globFiles(context.Background(), map[string]any{
		"pattern": "*.go",
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result, "a.go") || !strings.Contains(result, "b.go") {
		t.Errorf("missing expected matches: %q", result)
	}
	if strings.Contains(result, "c.txt") {
		t.Errorf("unexpected match: %q", result)
	}
}

func TestGlobTool_RecursivePattern(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.MkdirAll(filepath.Join(tmpDir, "pkg", "sub"), 0755)
	os.WriteFile(filepath.Join(tmpDir, "pkg", "sub", "deep.go"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "top.go"), []byte("x"), 0644)

	result, err := globFiles(context.Background(), map[string]any{
		"pattern": "**/*.go",
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result, "deep.go") {
		t.Errorf("recursive pattern missed nested file: %q", result)
	}
}

func TestGlobTool_NoMatches(t *testing.T) {
	t.Parallel()

	result, err := globFiles(context.Background(), map[string]any{
		"pattern": "*.zig",
	}, testContext(t.TempDir()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, "No files found") {
		t.Errorf("expected no-match message, got %q", result)
	}
}

// =============================================================================
// GREP TOOL TESTS
// =============================================================================

func TestGrepTool_MissingPattern(t *testing.T) {
	t.Parallel()

	_, err := grepFiles(context.Background(), map[string]any{}, testContext(t.TempDir()))
	if err == nil {
		t.Error("expected error for missing pattern")
	}
}

func TestGrepTool_InvalidRegex(t *testing.T) {
	t.Parallel()

	_, err := grepFiles(context.Background(), map[string]any{
		"pattern": "[unclosed",
	}, testContext(t.TempDir()))
	if err == nil {
		t.Error("expected error for invalid regex")
	}
}

func TestGrepTool_FindsMatches(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "code.go"), []byte("func main() {\n\tprintln(\"hi\")\n}\n"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "other.txt"), []byte("nothing here\n"), 0644)

	result, err := grepFiles(context.Background(), map[string]any{
		"pattern": `func \w+`,
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result, "code.go:1") {
		t.Errorf("expected match location, got %q", result)
	}
}

func TestGrepTool_FilePattern(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "a.go"), []byte("target\n"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "b.txt"), []byte("target\n"), 0644)

	result, err := grepFiles(context.Background(), map[string]any{
		"pattern":      "target",
		"file_pattern": "*.go",
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result, "a.go") {
		t.Errorf("missing a.go match: %q", result)
	}
	if strings.Contains(result, "b.txt") {
		t.Errorf("b.txt should be filtered out: %q", result)
	}
}

func TestGrepTool_IgnoreCase(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "f.txt"), []byte("HELLO world\n"), 0644)

	result, err := grepFiles(context.Background(), map[string]any{
		"pattern":     "hello",
		"ignore_case": true,
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result, "HELLO world") {
		t.Errorf("case-insensitive match missing: %q", result)
	}
}

func TestGrepTool_NoMatches(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "f.txt"), []byte("plain\n"), 0644)

	result, err := grepFiles(context.Background(), map[string]any{
		"pattern": "absent",
	}, testContext(tmpDir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, "No matches") {
		t.Errorf("expected no-match message, got %q", result)
	}
}

// =============================================================================
// SEARCH FILE TESTS
// =============================================================================

func TestSearchFile_MaxMatches(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "many.txt")
	os.WriteFile(path, []byte(strings.Repeat("match\n", 20)), 0644)

	re := regexp.MustCompile("match")
	matches, err := searchFile(path, re, 0, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 5 {
		t.Errorf("expected 5 matches, got %d", len(matches))
	}
}

func TestSearchFile_ContextLines(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "ctx.txt")
	os.WriteFile(path, []byte("one\ntwo\nthree\nhit\nfive\n"), 0644)

	re := regexp.MustCompile("hit")
	matches, err := searchFile(path, re, 2, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if len(matches[0].Context) != 2 {
		t.Errorf("expected 2 context lines, got %d", len(matches[0].Context))
	}
}
