package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codesquad/internal/approval"
	"codesquad/internal/checkpoint"
)

type stubGate struct {
	decision approval.Decision
	err      error
	calls    int
}

func (g *stubGate) Request(ctx context.Context, req approval.Request) (approval.Decision, error) {
	g.calls++
	return g.decision, g.err
}

type memorySink struct {
	records []ToolCallRecord
}

func (s *memorySink) RecordToolCall(rec ToolCallRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *Registry) {
	t.Helper()
	reg := NewRegistry()
	d := NewDispatcher(reg)
	d.SetWatchCreated(false)
	return d, reg
}

func newTestStore(t *testing.T, workingDir string) *checkpoint.Store {
	t.Helper()
	store, err := checkpoint.NewStore(workingDir, filepath.Join(workingDir, ".squad", "checkpoints"))
	if err != nil {
		t.Fatalf("checkpoint store: %v", err)
	}
	return store
}

func TestExecute_UnknownTool(t *testing.T) {
	d, _ := newTestDispatcher(t)

	result := d.Execute(context.Background(), "nope", nil, &Context{})
	if result.Success {
		t.Error("unknown tool should fail")
	}
	if !strings.Contains(result.Error, "nope") {
		t.Errorf("error should name the tool: %q", result.Error)
	}
}

func TestExecute_MissingRequiredArg(t *testing.T) {
	d, reg := newTestDispatcher(t)

	tool := stubTool("strict", CategoryFile)
	tool.Schema = Schema{Required: []string{"path"}}
	reg.MustRegister(tool)

	result := d.Execute(context.Background(), "strict", map[string]any{}, &Context{})
	if result.Success {
		t.Error("missing required arg should fail")
	}
	if !strings.Contains(result.Error, "path") {
		t.Errorf("error should name the missing arg: %q", result.Error)
	}
}

func TestExecute_Success(t *testing.T) {
	d, reg := newTestDispatcher(t)
	reg.MustRegister(stubTool("ok", CategoryFile))

	result := d.Execute(context.Background(), "ok", nil, &Context{})
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Output != "ok" {
		t.Errorf("output mismatch: %q", result.Output)
	}

	history := d.History()
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
}

func TestExecute_ApprovalDenied(t *testing.T) {
	d, reg := newTestDispatcher(t)

	tool := stubTool("risky", CategoryShell)
	tool.RequiresApproval = true
	tool.Mutating = true
	reg.MustRegister(tool)

	tmpDir := t.TempDir()
	store := newTestStore(t, tmpDir)

	gate := &stubGate{decision: approval.Decision{Approved: false}}
	result := d.Execute(context.Background(), "risky", nil, &Context{
		Gate:        gate,
		Checkpoints: store,
	})

	if result.Success {
		t.Error("denied call should fail")
	}
	if result.Error != "cancelled by user" {
		t.Errorf("error mismatch: %q", result.Error)
	}
	// Denial happens before the snapshot.
	if result.CheckpointID != "" {
		t.Error("denied call should not capture a checkpoint")
	}
	if len(store.List("")) != 0 {
		t.Error("no checkpoint should exist after denial")
	}
}

func TestExecute_ApprovalTimeoutDenies(t *testing.T) {
	d, reg := newTestDispatcher(t)

	tool := stubTool("slow_gate", CategoryShell)
	tool.RequiresApproval = true
	reg.MustRegister(tool)

	gate := &stubGate{err: approval.ErrTimeout}
	result := d.Execute(context.Background(), "slow_gate", nil, &Context{Gate: gate})

	if result.Success {
		t.Error("gate timeout should deny the call")
	}
}

func TestExecute_NilGateDenies(t *testing.T) {
	d, reg := newTestDispatcher(t)

	tool := stubTool("needs_gate", CategoryShell)
	tool.RequiresApproval = true
	reg.MustRegister(tool)

	result := d.Execute(context.Background(), "needs_gate", nil, &Context{})
	if result.Success {
		t.Error("approval tool without a gate should be denied")
	}
}

func TestExecute_AlwaysApproveSkipsGate(t *testing.T) {
	d, reg := newTestDispatcher(t)

	tool := stubTool("repeat", CategoryShell)
	tool.RequiresApproval = true
	reg.MustRegister(tool)

	gate := &stubGate{decision: approval.Decision{Approved: true, Always: true}}
	tc := &Context{Gate: gate}

	if result := d.Execute(context.Background(), "repeat", nil, tc); !result.Success {
		t.Fatalf("first call should succeed: %q", result.Error)
	}
	if result := d.Execute(context.Background(), "repeat", nil, tc); !result.Success {
		t.Fatalf("second call should succeed: %q", result.Error)
	}
	if gate.calls != 1 {
		t.Errorf("gate should be asked once, got %d", gate.calls)
	}
}

func TestExecute_DryRun(t *testing.T) {
	d, reg := newTestDispatcher(t)

	invoked := false
	tool := stubTool("mutator", CategoryFile)
	tool.Mutating = true
	tool.Handler = func(ctx context.Context, args map[string]any, tc *Context) (string, error) {
		invoked = true
		return "mutated", nil
	}
	reg.MustRegister(tool)

	tmpDir := t.TempDir()
	store := newTestStore(t, tmpDir)

	result := d.Execute(context.Background(), "mutator", map[string]any{"k": "v"}, &Context{
		DryRun:      true,
		Checkpoints: store,
	})

	if !result.Success {
		t.Fatalf("dry run should succeed: %q", result.Error)
	}
	if !strings.Contains(result.Output, "[dry run]") {
		t.Errorf("dry run output mismatch: %q", result.Output)
	}
	if invoked {
		t.Error("dry run must not invoke the handler")
	}
	if len(store.List("")) != 0 {
		t.Error("dry run must not write checkpoint state")
	}
}

func TestExecute_SandboxPolicy(t *testing.T) {
	d, reg := newTestDispatcher(t)

	tool := stubTool("host_only", CategoryShell)
	reg.MustRegister(tool)

	result := d.Execute(context.Background(), "host_only", nil, &Context{Sandbox: true})
	if result.Success {
		t.Error("sandbox should block disallowed tool")
	}
	if !strings.Contains(result.Error, "not allowed in sandbox") {
		t.Errorf("error mismatch: %q", result.Error)
	}

	allowed := stubTool("sandbox_ok", CategorySearch)
	allowed.AllowedInSandbox = true
	reg.MustRegister(allowed)

	if result := d.Execute(context.Background(), "sandbox_ok", nil, &Context{Sandbox: true}); !result.Success {
		t.Errorf("sandbox-safe tool should run: %q", result.Error)
	}
}

func TestExecute_RollbackOnFailure(t *testing.T) {
	d, reg := newTestDispatcher(t)

	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "data.txt")
	os.WriteFile(target, []byte("original"), 0644)

	tool := stubTool("clobber", CategoryFile)
	tool.Mutating = true
	tool.Handler = func(ctx context.Context, args map[string]any, tc *Context) (string, error) {
		os.WriteFile(target, []byte("clobbered"), 0644)
		return "", fmt.Errorf("handler exploded")
	}
	reg.MustRegister(tool)

	store := newTestStore(t, tmpDir)

	result := d.Execute(context.Background(), "clobber", nil, &Context{
		WorkingDir:  tmpDir,
		Checkpoints: store,
	})

	if result.Success {
		t.Fatal("handler error should fail the call")
	}
	if result.CheckpointID == "" {
		t.Fatal("mutating call should carry a checkpoint id")
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("target missing after rollback: %v", err)
	}
	if string(data) != "original" {
		t.Errorf("rollback did not restore content: %q", data)
	}
}

// A clean committed file is invisible to the pre-call snapshot, so recovering
// its deletion depends on the handler reporting the removed contents.
func TestExecute_RestoreRewritesDeletedFile(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	target := filepath.Join(dir, "keep.txt")
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	os.WriteFile(target, []byte("precious"), 0644)
	run("add", "-A")
	run("commit", "-m", "initial")

	d, reg := newTestDispatcher(t)
	store := newTestStore(t, dir)

	tool := stubTool("remover", CategoryFile)
	tool.Mutating = true
	tool.Handler = func(ctx context.Context, args map[string]any, tc *Context) (string, error) {
		data, err := os.ReadFile(target)
		if err != nil {
			return "", err
		}
		if err := os.Remove(target); err != nil {
			return "", err
		}
		tc.RecordFileDeleted(target, string(data))
		return "", fmt.Errorf("handler exploded after delete")
	}
	reg.MustRegister(tool)

	result := d.Execute(context.Background(), "remover", nil, &Context{
		WorkingDir:  dir,
		Checkpoints: store,
	})
	if result.Success {
		t.Fatal("handler error should fail the call")
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("deleted file not restored: %v", err)
	}
	if string(data) != "precious" {
		t.Errorf("restore rewrote wrong content: %q", data)
	}
}

func TestExecute_Timeout(t *testing.T) {
	d, reg := newTestDispatcher(t)

	tool := stubTool("sleeper", CategoryShell)
	tool.TimeoutSeconds = 1
	tool.Handler = func(ctx context.Context, args map[string]any, tc *Context) (string, error) {
		select {
		case <-time.After(5 * time.Second):
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	reg.MustRegister(tool)

	result := d.Execute(context.Background(), "sleeper", nil, &Context{})
	if result.Success {
		t.Fatal("timed-out call should fail")
	}
	if !strings.Contains(result.Error, "timed out after") {
		t.Errorf("error mismatch: %q", result.Error)
	}
}

// A handler that ignores its context and finishes after the deadline must not
// touch the result the dispatcher already returned.
func TestExecute_LateHandlerResultDiscarded(t *testing.T) {
	d, reg := newTestDispatcher(t)
	d.SetDefaultTimeout(50 * time.Millisecond)

	finished := make(chan struct{})
	tool := stubTool("straggler", CategoryShell)
	tool.Handler = func(ctx context.Context, args map[string]any, tc *Context) (string, error) {
		defer close(finished)
		time.Sleep(200 * time.Millisecond)
		return "late output", nil
	}
	reg.MustRegister(tool)

	result := d.Execute(context.Background(), "straggler", nil, &Context{})
	if result.Success {
		t.Fatal("call past its deadline should fail")
	}
	if !strings.Contains(result.Error, "timed out after 50ms") {
		t.Errorf("error mismatch: %q", result.Error)
	}
	if result.Output != "" {
		t.Errorf("late handler output leaked into result: %q", result.Output)
	}
	<-finished
}

// Tools that do not declare a timeout get the dispatcher default.
func TestExecute_DefaultTimeoutApplies(t *testing.T) {
	d, reg := newTestDispatcher(t)
	d.SetDefaultTimeout(50 * time.Millisecond)

	tool := stubTool("patient", CategoryShell)
	tool.Handler = func(ctx context.Context, args map[string]any, tc *Context) (string, error) {
		select {
		case <-time.After(5 * time.Second):
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	reg.MustRegister(tool)

	if got := reg.Get("patient").TimeoutSeconds; got != 0 {
		t.Fatalf("registration must not assign a timeout, got %d", got)
	}
	result := d.Execute(context.Background(), "patient", nil, &Context{})
	if result.Success {
		t.Fatal("call past the default deadline should fail")
	}
	if !strings.Contains(result.Error, "timed out after 50ms") {
		t.Errorf("error mismatch: %q", result.Error)
	}
}

func TestExecute_PanicContained(t *testing.T) {
	d, reg := newTestDispatcher(t)

	tool := stubTool("bomb", CategoryFile)
	tool.Handler = func(ctx context.Context, args map[string]any, tc *Context) (string, error) {
		panic("boom")
	}
	reg.MustRegister(tool)

	result := d.Execute(context.Background(), "bomb", nil, &Context{})
	if result.Success {
		t.Fatal("panicking tool should fail the call")
	}
	if !strings.Contains(result.Error, "panicked") {
		t.Errorf("error mismatch: %q", result.Error)
	}
}

func TestExecute_OutputTruncation(t *testing.T) {
	d, reg := newTestDispatcher(t)

	tool := stubTool("chatty", CategoryFile)
	tool.Handler = func(ctx context.Context, args map[string]any, tc *Context) (string, error) {
		return strings.Repeat("x", 100), nil
	}
	reg.MustRegister(tool)

	result := d.Execute(context.Background(), "chatty", nil, &Context{MaxOutputSize: 10})
	if !result.Success {
		t.Fatalf("unexpected failure: %q", result.Error)
	}
	if !strings.HasSuffix(result.Output, "[output truncated]") {
		t.Errorf("expected truncation marker: %q", result.Output)
	}
	if len(result.Output) >= 100 {
		t.Errorf("output not truncated: %d bytes", len(result.Output))
	}
}

func TestExecute_AuditSink(t *testing.T) {
	d, reg := newTestDispatcher(t)
	reg.MustRegister(stubTool("audited", CategoryFile))

	sink := &memorySink{}
	d.SetAuditSink(sink)

	d.Execute(context.Background(), "audited", map[string]any{"a": 1}, &Context{
		SessionID: "sess-1",
		AgentID:   "agent-1",
	})

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 sink record, got %d", len(sink.records))
	}
	rec := sink.records[0]
	if rec.Tool != "audited" || rec.SessionID != "sess-1" || rec.AgentID != "agent-1" {
		t.Errorf("record mismatch: %+v", rec)
	}
	if !rec.Success {
		t.Error("record should be marked successful")
	}
}
