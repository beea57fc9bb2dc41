package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"codesquad/internal/approval"
	"codesquad/internal/logging"
	"codesquad/internal/watch"
)

// AuditSink receives one record per dispatched call for durable history.
// Writes are best-effort: a sink failure never fails the call.
type AuditSink interface {
	RecordToolCall(rec ToolCallRecord) error
}

// ToolCallRecord is the durable audit row for one dispatched call.
type ToolCallRecord struct {
	SessionID    string
	AgentID      string
	Tool         string
	ArgsJSON     string
	Success      bool
	Output       string
	Error        string
	DurationMs   int64
	CheckpointID string
	CreatedAt    time.Time
}

// Dispatcher executes tool calls through the approval, checkpoint, dry-run,
// and sandbox-policy pipeline. One dispatcher serves all agents of a session;
// its bookkeeping is mutex-guarded.
type Dispatcher struct {
	registry       *Registry
	logger         *zap.Logger
	sink           AuditSink
	defaultTimeout time.Duration
	watchCreated   bool

	mu      sync.Mutex
	always  map[string]bool
	records []Result
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{
		registry:       registry,
		logger:         zap.NewNop(),
		defaultTimeout: 60 * time.Second,
		watchCreated:   true,
		always:         make(map[string]bool),
	}
}

// SetLogger installs a structured logger for dispatch decisions.
func (d *Dispatcher) SetLogger(logger *zap.Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// SetAuditSink installs the durable history sink.
func (d *Dispatcher) SetAuditSink(sink AuditSink) {
	d.sink = sink
}

// SetDefaultTimeout overrides the 60s per-call default for tools that do not
// declare their own.
func (d *Dispatcher) SetDefaultTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.defaultTimeout = timeout
	}
}

// SetWatchCreated toggles the created-file watcher around mutating calls.
func (d *Dispatcher) SetWatchCreated(enabled bool) {
	d.watchCreated = enabled
}

// Registry returns the underlying tool registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// History returns the in-memory execution history, oldest first.
func (d *Dispatcher) History() []Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Result, len(d.records))
	copy(out, d.records)
	return out
}

// Execute runs one tool call by name. The returned result is never nil;
// denials, policy failures, and handler errors are reported in it rather
// than as Go errors.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]any, tc *Context) *Result {
	start := time.Now()

	tool := d.registry.Get(name)
	if tool == nil {
		return d.finish(tc, args, &Result{
			ToolName: name,
			Error:    fmt.Sprintf("%v: %s", ErrToolNotFound, name),
		}, start)
	}

	if err := d.registry.ValidateArgs(tool, args); err != nil {
		return d.finish(tc, args, &Result{
			ToolName: name,
			Error:    err.Error(),
		}, start)
	}

	call := logging.WithCallID(logging.CategoryTools, fmt.Sprintf("%s-%d", name, start.UnixNano()))
	call.Debug("dispatching %s (risk=%s, dry_run=%v, sandbox=%v)", name, tool.RiskLevel, tc.DryRun, tc.Sandbox)

	// Step 1: approval. Denial returns before any checkpoint exists.
	if tool.RequiresApproval && !d.isPreApproved(name) {
		approved, err := d.requestApproval(ctx, tool, args, tc)
		if err != nil {
			return d.finish(tc, args, &Result{
				ToolName: name,
				Error:    fmt.Sprintf("approval request failed: %v", err),
			}, start)
		}
		if !approved {
			call.Info("denied by approval gate")
			return d.finish(tc, args, &Result{
				ToolName: name,
				Error:    "cancelled by user",
			}, start)
		}
	}

	// Step 3 is checked before the snapshot so a dry run never writes
	// checkpoint state; it reports intended effects only.
	if tc.DryRun {
		return d.finish(tc, args, &Result{
			ToolName: name,
			Success:  true,
			Output:   dryRunSummary(tool, args),
		}, start)
	}

	// Step 4: sandbox policy.
	if tc.Sandbox && !tool.AllowedInSandbox {
		return d.finish(tc, args, &Result{
			ToolName: name,
			Error:    fmt.Sprintf("tool %s is not allowed in sandbox mode", name),
		}, start)
	}

	// Step 2: working-tree-wide snapshot before any mutation.
	var checkpointID string
	var watcher *watch.Watcher
	if tool.Mutating && tc.Checkpoints != nil {
		id, err := tc.Checkpoints.Create(tc.SessionID, fmt.Sprintf("before %s", name))
		if err != nil {
			// Without a rollback guarantee the mutation must not run.
			return d.finish(tc, args, &Result{
				ToolName: name,
				Error:    fmt.Sprintf("failed to capture checkpoint: %v", err),
			}, start)
		}
		checkpointID = id
		call.Debug("checkpoint %s captured", id)

		if d.watchCreated {
			w, werr := watch.New(tc.WorkingDir)
			if werr != nil {
				logging.ToolsWarn("created-file watcher unavailable: %v", werr)
			} else if werr = w.Start(); werr != nil {
				logging.ToolsWarn("created-file watcher failed to start: %v", werr)
			} else {
				watcher = w
			}
		}
	}

	// Step 5: invoke the handler under the per-tool timeout.
	timeout := d.defaultTimeout
	if tool.TimeoutSeconds > 0 {
		timeout = time.Duration(tool.TimeoutSeconds) * time.Second
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	output, err := d.invoke(hctx, tool, args, tc)
	cancel()

	if watcher != nil {
		for _, created := range watcher.Stop() {
			tc.Checkpoints.RecordCreated(checkpointID, created)
		}
	}

	// Deletions reported by the handler join the checkpoint before any
	// restore so the removed files come back with their prior contents.
	deleted := tc.drainDeletedFiles()
	if checkpointID != "" && tc.Checkpoints != nil {
		for _, del := range deleted {
			tc.Checkpoints.RecordDeleted(checkpointID, del.path, del.content)
		}
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("tool %s timed out after %s", name, timeout)
		}
		if checkpointID != "" && tc.Checkpoints != nil {
			if tc.Checkpoints.Restore(checkpointID) {
				call.Info("restored checkpoint %s after failure", checkpointID)
			} else {
				logging.ToolsError("checkpoint %s could not be restored after %s failed", checkpointID, name)
			}
		}
		d.logger.Warn("tool call failed",
			zap.String("tool", name),
			zap.String("error", err.Error()),
			zap.Duration("elapsed", time.Since(start)))
		return d.finish(tc, args, &Result{
			ToolName:     name,
			Error:        err.Error(),
			CheckpointID: checkpointID,
		}, start)
	}

	if tc.MaxOutputSize > 0 && len(output) > tc.MaxOutputSize {
		output = output[:tc.MaxOutputSize] + "\n... [output truncated]"
	}

	d.logger.Debug("tool call succeeded",
		zap.String("tool", name),
		zap.Duration("elapsed", time.Since(start)))

	// Step 6 happens in finish: history append and audit sink.
	return d.finish(tc, args, &Result{
		ToolName:     name,
		Success:      true,
		Output:       output,
		FilesChanged: tc.FilesChanged(),
		CheckpointID: checkpointID,
	}, start)
}

// invoke runs the handler with panic containment so a misbehaving tool is
// reported as a failed call, not a crashed agent.
func (d *Dispatcher) invoke(ctx context.Context, tool *Tool, args map[string]any, tc *Context) (string, error) {
	type callResult struct {
		output string
		err    error
	}
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("tool %s panicked: %v", tool.Name, r)}
			}
		}()
		output, err := tool.Handler(ctx, args, tc)
		done <- callResult{output: output, err: err}
	}()

	select {
	case res := <-done:
		return res.output, res.err
	case <-ctx.Done():
		// The handler keeps the context and should unwind on its own; the
		// dispatcher stops waiting once the deadline passes. The buffered
		// channel lets the goroutine finish without anyone reading it.
		return "", ctx.Err()
	}
}

// requestApproval asks the gate and remembers session-wide "always" grants.
func (d *Dispatcher) requestApproval(ctx context.Context, tool *Tool, args map[string]any, tc *Context) (bool, error) {
	if tc.Gate == nil {
		return false, nil
	}

	decision, err := tc.Gate.Request(ctx, approval.Request{
		Tool:        tool.Name,
		Description: tool.Description,
		Operations:  describeOperations(tool, args),
		Risk:        string(tool.RiskLevel),
	})
	if err != nil {
		if errors.Is(err, approval.ErrTimeout) {
			return false, nil
		}
		return false, err
	}

	if decision.Approved && decision.Always {
		d.mu.Lock()
		d.always[tool.Name] = true
		d.mu.Unlock()
	}
	return decision.Approved, nil
}

func (d *Dispatcher) isPreApproved(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.always[name]
}

// finish stamps duration, appends the call to the in-memory history, and
// forwards it to the audit sink best-effort.
func (d *Dispatcher) finish(tc *Context, args map[string]any, result *Result, start time.Time) *Result {
	result.DurationMs = time.Since(start).Milliseconds()

	d.mu.Lock()
	d.records = append(d.records, *result)
	d.mu.Unlock()

	logging.Audit().ToolCall(result.ToolName, result.Success, result.DurationMs, result.Error)

	if d.sink != nil {
		argsJSON, _ := json.Marshal(args)
		rec := ToolCallRecord{
			SessionID:    tc.SessionID,
			AgentID:      tc.AgentID,
			Tool:         result.ToolName,
			ArgsJSON:     string(argsJSON),
			Success:      result.Success,
			Output:       result.Output,
			Error:        result.Error,
			DurationMs:   result.DurationMs,
			CheckpointID: result.CheckpointID,
			CreatedAt:    time.Now(),
		}
		if err := d.sink.RecordToolCall(rec); err != nil {
			logging.HistoryError("failed to record tool call %s: %v", result.ToolName, err)
		}
	}

	return result
}

// dryRunSummary describes what the call would have done.
func dryRunSummary(tool *Tool, args map[string]any) string {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		argsJSON = []byte("{}")
	}
	return fmt.Sprintf("[dry run] would execute %s (risk=%s) with args %s",
		tool.Name, tool.RiskLevel, argsJSON)
}

// describeOperations summarizes the call for the approval prompt.
func describeOperations(tool *Tool, args map[string]any) []string {
	ops := make([]string, 0, len(args)+1)
	ops = append(ops, fmt.Sprintf("%s (%s)", tool.Name, tool.Category))
	for key, value := range args {
		ops = append(ops, fmt.Sprintf("  %s = %v", key, value))
	}
	return ops
}
