package diff

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codesquad/internal/logging"
)

// EditType identifies one edit operation kind.
type EditType string

const (
	EditReplace EditType = "replace"
	EditInsert  EditType = "insert"
	EditDelete  EditType = "delete"
	EditAppend  EditType = "append"
	EditPatch   EditType = "patch"
)

// EditOperation is one unit of the edit pipeline.
type EditOperation struct {
	Type          EditType `json:"type"`
	File          string   `json:"file"`
	SearchPattern string   `json:"search_pattern,omitempty"`
	Replacement   string   `json:"replacement,omitempty"`
	LineNumber    int      `json:"line_number,omitempty"`
	EndLineNumber int      `json:"end_line_number,omitempty"`
}

// Edit pipeline errors.
var (
	// ErrUnknownEditType is returned for an unrecognized operation type.
	ErrUnknownEditType = errors.New("unknown edit operation type")

	// ErrPatternNotFound is returned when a replace pattern has no occurrences.
	ErrPatternNotFound = errors.New("search pattern not found")

	// ErrLineOutOfRange is returned when a delete range exceeds the content.
	ErrLineOutOfRange = errors.New("line number out of range")
)

// Validate checks an operation's shape before execution.
func (op EditOperation) Validate() error {
	switch op.Type {
	case EditReplace:
		if op.SearchPattern == "" {
			return fmt.Errorf("replace operation requires a search pattern")
		}
	case EditInsert:
		if op.LineNumber < 1 {
			return fmt.Errorf("insert operation requires a 1-indexed line number, got %d", op.LineNumber)
		}
	case EditDelete:
		if op.LineNumber < 1 || op.EndLineNumber < op.LineNumber {
			return fmt.Errorf("delete operation requires a valid line range, got [%d, %d]", op.LineNumber, op.EndLineNumber)
		}
	case EditAppend:
		// Nothing to check; an empty replacement appends a blank line.
	case EditPatch:
		if op.SearchPattern == "" {
			return fmt.Errorf("patch operation requires patch text in the search pattern")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEditType, op.Type)
	}
	return nil
}

// ApplyEdit applies one operation to content, returning the new content and
// the number of changes made. Pure: no file I/O. Unknown or invalid
// operations return the content unchanged with a handled error.
func (e *Engine) ApplyEdit(content string, op EditOperation) (string, int, error) {
	if err := op.Validate(); err != nil {
		logging.DiffDebug("edit rejected: %v", err)
		return content, 0, err
	}

	switch op.Type {
	case EditReplace:
		count := strings.Count(content, op.SearchPattern)
		if count == 0 {
			return content, 0, fmt.Errorf("%w: %q", ErrPatternNotFound, op.SearchPattern)
		}
		// Global literal substitution, never regex.
		return strings.ReplaceAll(content, op.SearchPattern, op.Replacement), count, nil

	case EditInsert:
		lines := strings.Split(content, "\n")
		// Clamp to [1, len+1]: inserting past EOF appends a final line.
		pos := op.LineNumber
		if pos > len(lines)+1 {
			pos = len(lines) + 1
		}
		idx := pos - 1
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:idx]...)
		out = append(out, op.Replacement)
		out = append(out, lines[idx:]...)
		return strings.Join(out, "\n"), 1, nil

	case EditDelete:
		lines := strings.Split(content, "\n")
		if op.LineNumber > len(lines) || op.EndLineNumber > len(lines) {
			return content, 0, fmt.Errorf("%w: [%d, %d] in %d lines", ErrLineOutOfRange, op.LineNumber, op.EndLineNumber, len(lines))
		}
		removed := op.EndLineNumber - op.LineNumber + 1
		out := make([]string, 0, len(lines)-removed)
		out = append(out, lines[:op.LineNumber-1]...)
		out = append(out, lines[op.EndLineNumber:]...)
		return strings.Join(out, "\n"), removed, nil

	case EditAppend:
		// The result gains exactly one newline separator before the appended
		// text, whether or not the caller included it.
		text := strings.TrimPrefix(op.Replacement, "\n")
		return content + "\n" + text, 1, nil

	case EditPatch:
		patches, err := e.dmp.PatchFromText(op.SearchPattern)
		if err != nil {
			return content, 0, fmt.Errorf("invalid patch text: %w", err)
		}
		if len(patches) == 0 {
			return content, 0, fmt.Errorf("patch text contains no hunks")
		}
		patched, applied := e.dmp.PatchApply(patches, content)
		for i, ok := range applied {
			if !ok {
				return content, 0, fmt.Errorf("patch hunk %d/%d failed to apply", i+1, len(patches))
			}
		}
		return patched, len(patches), nil
	}

	// Unreachable: Validate rejects unknown types.
	return content, 0, fmt.Errorf("%w: %q", ErrUnknownEditType, op.Type)
}

// ApplyEdit is a convenience function using the default engine.
func ApplyEdit(content string, op EditOperation) (string, int, error) {
	return DefaultEngine.ApplyEdit(content, op)
}

// Checkpointer is the slice of the checkpoint store the editor needs.
type Checkpointer interface {
	Create(sessionID, description string) (string, error)
	Restore(id string) bool
}

// Editor applies edit operations to files under a working directory,
// protected by a single pre-capture checkpoint per batch.
type Editor struct {
	engine      *Engine
	workingDir  string
	sessionID   string
	checkpoints Checkpointer
}

// NewEditor creates a file-backed editor. checkpoints may be nil, in which
// case batches run unprotected (callers that already hold a checkpoint).
func NewEditor(workingDir, sessionID string, checkpoints Checkpointer) *Editor {
	return &Editor{
		engine:      DefaultEngine,
		workingDir:  workingDir,
		sessionID:   sessionID,
		checkpoints: checkpoints,
	}
}

// EditFailure records one skipped operation in a batch.
type EditFailure struct {
	File  string   `json:"file"`
	Type  EditType `json:"type"`
	Error string   `json:"error"`
}

// MultiEditResult reports a batch outcome per file.
type MultiEditResult struct {
	SuccessfulFiles int           `json:"successful_files"`
	FailedFiles     int           `json:"failed_files"`
	Failures        []EditFailure `json:"failures,omitempty"`
	CheckpointID    string        `json:"checkpoint_id,omitempty"`
}

// ApplyToFile applies one operation to the file it names and writes the
// result back. Returns the unified hunks describing the change.
func (ed *Editor) ApplyToFile(op EditOperation) ([]Hunk, error) {
	path := ed.resolve(op.File)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", op.File, err)
	}

	oldContent := string(data)
	newContent, changes, err := ed.engine.ApplyEdit(oldContent, op)
	if err != nil {
		return nil, err
	}
	if changes == 0 {
		return nil, nil
	}

	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", op.File, err)
	}

	logging.Diff("applied %s to %s (%d changes)", op.Type, op.File, changes)
	return ed.engine.Diff(oldContent, newContent), nil
}

// MultiEdit executes operations sequentially against a single pre-capture
// checkpoint. Individual operation failures are recorded and skipped; the
// checkpoint is restored wholesale only if a panic escapes the loop.
func (ed *Editor) MultiEdit(ops []EditOperation) (result *MultiEditResult, err error) {
	result = &MultiEditResult{}
	if len(ops) == 0 {
		return result, nil
	}

	timer := logging.StartTimer(logging.CategoryDiff, fmt.Sprintf("multi-edit of %d ops", len(ops)))
	defer timer.Stop()

	if ed.checkpoints != nil {
		id, cerr := ed.checkpoints.Create(ed.sessionID, fmt.Sprintf("multi-edit (%d ops)", len(ops)))
		if cerr != nil {
			return nil, fmt.Errorf("failed to capture checkpoint: %w", cerr)
		}
		result.CheckpointID = id
	}

	defer func() {
		if r := recover(); r != nil {
			if ed.checkpoints != nil && result.CheckpointID != "" {
				ed.checkpoints.Restore(result.CheckpointID)
			}
			err = fmt.Errorf("multi-edit aborted: %v", r)
		}
	}()

	failedByFile := make(map[string]bool)
	touchedFiles := make(map[string]bool)

	for _, op := range ops {
		touchedFiles[op.File] = true
		if _, opErr := ed.ApplyToFile(op); opErr != nil {
			logging.Get(logging.CategoryDiff).Warn("multi-edit op %s on %s failed: %v", op.Type, op.File, opErr)
			failedByFile[op.File] = true
			result.Failures = append(result.Failures, EditFailure{
				File:  op.File,
				Type:  op.Type,
				Error: opErr.Error(),
			})
		}
	}

	for file := range touchedFiles {
		if failedByFile[file] {
			result.FailedFiles++
		} else {
			result.SuccessfulFiles++
		}
	}

	return result, nil
}

// resolve joins a relative file path with the working directory.
func (ed *Editor) resolve(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(ed.workingDir, file)
}
