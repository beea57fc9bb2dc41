// Package tools provides the typed tool registry and the execution
// dispatcher. Tools are a closed set registered into the lookup table at
// startup; every call runs through the dispatcher's approval, checkpoint,
// dry-run, and sandbox-policy pipeline.
package tools

import (
	"context"
	"sync"

	"codesquad/internal/approval"
	"codesquad/internal/checkpoint"
)

// Category classifies tools for listing and allowlist filtering.
type Category string

const (
	// CategoryFile covers filesystem read/write/edit operations.
	CategoryFile Category = "file"

	// CategorySearch covers read-only search operations (glob, grep).
	CategorySearch Category = "search"

	// CategoryShell covers subprocess execution.
	CategoryShell Category = "shell"

	// CategoryGit covers version-control operations.
	CategoryGit Category = "git"
)

// RiskLevel drives whether a tool call requires human approval.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// NormalizeRisk maps unknown risk levels to medium.
func NormalizeRisk(r RiskLevel) RiskLevel {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return r
	}
	return RiskMedium
}

// riskRank orders risk levels for policy comparisons.
func riskRank(r RiskLevel) int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return 1
}

// RiskAtMost reports whether r is at or below the given threshold.
func RiskAtMost(r, threshold RiskLevel) bool {
	return riskRank(NormalizeRisk(r)) <= riskRank(NormalizeRisk(threshold))
}

// Property describes a single parameter property for the tool schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// Schema defines the expected arguments of a tool.
type Schema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// HandlerFunc is the signature for tool execution. The context carries the
// per-call timeout and the agent's cancellation; handlers must honor it.
type HandlerFunc func(ctx context.Context, args map[string]any, tc *Context) (string, error)

// Tool is one catalog entry: schema, risk classification, sandbox policy,
// and the handler invoked by the dispatcher.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string

	// Description explains what the tool does.
	Description string

	// Category classifies the tool for listing and allowlists.
	Category Category

	// Schema defines the expected arguments.
	Schema Schema

	// RiskLevel is the coarse risk classification. Unknown values are
	// normalized to medium at registration.
	RiskLevel RiskLevel

	// RequiresApproval forces a gate request before every call.
	RequiresApproval bool

	// AllowedInSandbox permits the tool under sandbox mode.
	AllowedInSandbox bool

	// Mutating marks tools that write to the working tree; the dispatcher
	// captures a checkpoint before invoking them.
	Mutating bool

	// TimeoutSeconds caps one call. Zero means the dispatcher's default
	// timeout applies.
	TimeoutSeconds int

	// Priority orders tools within a category (default 50, highest first).
	Priority int

	// Handler runs the tool.
	Handler HandlerFunc
}

// Validate checks the tool definition.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Handler == nil {
		return ErrToolHandlerNil
	}
	return nil
}

// Context is the per-call execution context handed to handlers.
type Context struct {
	// WorkingDir is the directory all relative paths resolve against.
	WorkingDir string

	// DryRun reports intended effects without mutating anything.
	DryRun bool

	// Sandbox restricts execution to tools with AllowedInSandbox set.
	Sandbox bool

	// SessionID correlates checkpoints and history rows.
	SessionID string

	// AgentID identifies the agent issuing the call, if any.
	AgentID string

	// Gate is asked for risky operations. May be nil (treated as denied
	// for approval-requiring tools).
	Gate approval.Gate

	// Checkpoints captures pre-call snapshots. May be nil (no rollback).
	Checkpoints *checkpoint.Store

	// MaxOutputSize truncates captured output beyond this many bytes
	// (0 means no cap).
	MaxOutputSize int

	// DeniedBinaries lists binaries shell tools refuse to run.
	DeniedBinaries []string

	mu           sync.Mutex
	filesChanged []string
	filesDeleted []deletedFile
}

type deletedFile struct {
	path    string
	content string
}

// RecordFileChanged notes a file the handler touched; the dispatcher copies
// the list into the ToolResult.
func (tc *Context) RecordFileChanged(path string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.filesChanged = append(tc.filesChanged, path)
}

// RecordFileDeleted captures a file's content before the handler removes it.
// The dispatcher folds these into the call's checkpoint so a restore rewrites
// the file, even when the pre-call snapshot never saw it as modified.
func (tc *Context) RecordFileDeleted(path, originalContent string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.filesDeleted = append(tc.filesDeleted, deletedFile{path: path, content: originalContent})
}

// drainDeletedFiles hands the recorded deletions to the dispatcher and resets
// the list for the next call.
func (tc *Context) drainDeletedFiles() []deletedFile {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := tc.filesDeleted
	tc.filesDeleted = nil
	return out
}

// FilesChanged returns the paths the handler recorded.
func (tc *Context) FilesChanged() []string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := make([]string, len(tc.filesChanged))
	copy(out, tc.filesChanged)
	return out
}

// Result wraps the outcome of one dispatched tool call.
type Result struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// Success is false for denials, policy failures, and handler errors.
	Success bool

	// Output is the string output from the tool.
	Output string

	// Error holds the failure text when Success is false.
	Error string

	// FilesChanged lists paths the handler reported touching.
	FilesChanged []string

	// CheckpointID is the pre-call snapshot, when one was captured.
	CheckpointID string

	// DurationMs is how long the call took.
	DurationMs int64
}
