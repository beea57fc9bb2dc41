package diff

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

func TestApplyEdit_Replace(t *testing.T) {
	content := "foo bar foo baz"
	result, changes, err := ApplyEdit(content, EditOperation{
		Type:          EditReplace,
		SearchPattern: "foo",
		Replacement:   "qux",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "qux bar qux baz" {
		t.Errorf("expected global substitution, got %q", result)
	}
	if changes != 2 {
		t.Errorf("expected 2 changes, got %d", changes)
	}
}

func TestApplyEdit_ReplaceIsLiteral(t *testing.T) {
	// Regex metacharacters must be treated as plain text.
	content := "a.*b and more"
	result, changes, err := ApplyEdit(content, EditOperation{
		Type:          EditReplace,
		SearchPattern: "a.*b",
		Replacement:   "X",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "X and more" {
		t.Errorf("pattern applied as regex, got %q", result)
	}
	if changes != 1 {
		t.Errorf("expected 1 change, got %d", changes)
	}
}

func TestApplyEdit_ReplaceNotFound(t *testing.T) {
	content := "hello world"
	result, changes, err := ApplyEdit(content, EditOperation{
		Type:          EditReplace,
		SearchPattern: "missing",
		Replacement:   "x",
	})
	if !errors.Is(err, ErrPatternNotFound) {
		t.Errorf("expected ErrPatternNotFound, got %v", err)
	}
	if result != content || changes != 0 {
		t.Error("failed replace must leave content untouched")
	}
}

func TestApplyEdit_Insert(t *testing.T) {
	content := "line1\nline2\nline3"
	result, _, err := ApplyEdit(content, EditOperation{
		Type:        EditInsert,
		LineNumber:  2,
		Replacement: "inserted",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "line1\ninserted\nline2\nline3" {
		t.Errorf("insert misplaced: %q", result)
	}
}

func TestApplyEdit_InsertClampedPastEOF(t *testing.T) {
	content := "line1\nline2"
	result, _, err := ApplyEdit(content, EditOperation{
		Type:        EditInsert,
		LineNumber:  99,
		Replacement: "tail",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "line1\nline2\ntail" {
		t.Errorf("insert past EOF should append, got %q", result)
	}
}

func TestApplyEdit_Delete(t *testing.T) {
	content := "line1\nline2\nline3\nline4"
	result, changes, err := ApplyEdit(content, EditOperation{
		Type:          EditDelete,
		LineNumber:    2,
		EndLineNumber: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "line1\nline4" {
		t.Errorf("inclusive range delete failed: %q", result)
	}
	if changes != 2 {
		t.Errorf("expected 2 removed lines, got %d", changes)
	}
}

func TestApplyEdit_DeleteOutOfRange(t *testing.T) {
	content := "line1\nline2"
	_, _, err := ApplyEdit(content, EditOperation{
		Type:          EditDelete,
		LineNumber:    2,
		EndLineNumber: 5,
	})
	if !errors.Is(err, ErrLineOutOfRange) {
		t.Errorf("expected ErrLineOutOfRange, got %v", err)
	}
}

func TestApplyEdit_Append(t *testing.T) {
	result, _, err := ApplyEdit("content", EditOperation{
		Type:        EditAppend,
		Replacement: "// done",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "content\n// done" {
		t.Errorf("append failed: %q", result)
	}

	// A caller-supplied leading newline must not double up.
	result, _, err = ApplyEdit("content", EditOperation{
		Type:        EditAppend,
		Replacement: "\n// done",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "content\n// done" {
		t.Errorf("append doubled the separator: %q", result)
	}
}

func TestApplyEdit_Patch(t *testing.T) {
	oldText := "line1\nline2\nline3\n"
	newText := "line1\nCHANGED\nline3\n"

	dmp := diffmatchpatch.New()
	patchText := dmp.PatchToText(dmp.PatchMake(oldText, newText))

	result, changes, err := ApplyEdit(oldText, EditOperation{
		Type:          EditPatch,
		SearchPattern: patchText,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != newText {
		t.Errorf("patch application mismatch: %q", result)
	}
	if changes == 0 {
		t.Error("expected at least one applied hunk")
	}
}

func TestApplyEdit_PatchInvalidText(t *testing.T) {
	_, _, err := ApplyEdit("content", EditOperation{
		Type:          EditPatch,
		SearchPattern: "not a patch",
	})
	if err == nil {
		t.Fatal("malformed patch text must fail loudly")
	}
}

func TestApplyEdit_UnknownType(t *testing.T) {
	content := "unchanged"
	result, changes, err := ApplyEdit(content, EditOperation{Type: "teleport"})
	if !errors.Is(err, ErrUnknownEditType) {
		t.Errorf("expected ErrUnknownEditType, got %v", err)
	}
	if result != content || changes != 0 {
		t.Error("unknown op must be a no-op on content")
	}
}

func TestApplyEdit_InsertDeleteRoundTrip(t *testing.T) {
	original := "alpha\nbeta\ngamma"

	inserted, _, err := ApplyEdit(original, EditOperation{
		Type:        EditInsert,
		LineNumber:  2,
		Replacement: "temp",
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	restored, _, err := ApplyEdit(inserted, EditOperation{
		Type:          EditDelete,
		LineNumber:    2,
		EndLineNumber: 2,
	})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if restored != original {
		t.Errorf("round-trip mismatch: %q != %q", restored, original)
	}
}

func TestEditPipeline_ReplaceThenAppend(t *testing.T) {
	content := "foo baz"

	afterReplace, _, err := ApplyEdit(content, EditOperation{
		Type:          EditReplace,
		SearchPattern: "foo",
		Replacement:   "bar",
	})
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	final, _, err := ApplyEdit(afterReplace, EditOperation{
		Type:        EditAppend,
		Replacement: "\n// done",
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if final != "bar baz\n// done" {
		t.Errorf("expected %q, got %q", "bar baz\n// done", final)
	}

	replaceDiff := RenderUnified("f.txt", "f.txt", Diff(content, afterReplace))
	if strings.Count(replaceDiff, "\n-") != 1 || strings.Count(replaceDiff, "\n+") != 1 {
		t.Errorf("replace diff should contain one - and one + line:\n%s", replaceDiff)
	}

	appendDiff := RenderUnified("f.txt", "f.txt", Diff(afterReplace, final))
	if strings.Count(appendDiff, "\n+") != 1 {
		t.Errorf("append diff should contain one + line:\n%s", appendDiff)
	}
}

// stubCheckpointer records checkpoint calls for editor tests.
type stubCheckpointer struct {
	created  int
	restored []string
}

func (s *stubCheckpointer) Create(sessionID, description string) (string, error) {
	s.created++
	return "ckpt-1", nil
}

func (s *stubCheckpointer) Restore(id string) bool {
	s.restored = append(s.restored, id)
	return true
}

func TestEditor_MultiEdit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("foo baz"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	ckpt := &stubCheckpointer{}
	editor := NewEditor(dir, "session-1", ckpt)

	result, err := editor.MultiEdit([]EditOperation{
		{Type: EditReplace, File: "a.txt", SearchPattern: "foo", Replacement: "bar"},
		{Type: EditReplace, File: "b.txt", SearchPattern: "missing", Replacement: "x"},
		{Type: EditAppend, File: "a.txt", Replacement: "// done"},
	})
	if err != nil {
		t.Fatalf("MultiEdit returned error: %v", err)
	}

	if result.SuccessfulFiles != 1 {
		t.Errorf("expected 1 successful file, got %d", result.SuccessfulFiles)
	}
	if result.FailedFiles != 1 {
		t.Errorf("expected 1 failed file, got %d", result.FailedFiles)
	}
	if len(result.Failures) != 1 || result.Failures[0].File != "b.txt" {
		t.Errorf("unexpected failures: %+v", result.Failures)
	}

	// Exactly one pre-capture checkpoint; ordinary per-op failures never
	// trigger a restore.
	if ckpt.created != 1 {
		t.Errorf("expected 1 checkpoint, got %d", ckpt.created)
	}
	if len(ckpt.restored) != 0 {
		t.Errorf("per-op failures must not restore, got %v", ckpt.restored)
	}

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "bar baz\n// done" {
		t.Errorf("a.txt content: %q", string(data))
	}

	// b.txt untouched by its failed op.
	data, _ = os.ReadFile(filepath.Join(dir, "b.txt"))
	if string(data) != "hello" {
		t.Errorf("b.txt should be unchanged, got %q", string(data))
	}
}

func TestEditor_MultiEdit_Empty(t *testing.T) {
	editor := NewEditor(t.TempDir(), "session-1", &stubCheckpointer{})
	result, err := editor.MultiEdit(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SuccessfulFiles != 0 || result.FailedFiles != 0 {
		t.Error("empty batch should report zero files")
	}
}
