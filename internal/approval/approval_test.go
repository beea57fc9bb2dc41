package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ApproveFlow(t *testing.T) {
	t.Parallel()

	m := NewManager(5 * time.Second)

	// Front end: approve whatever is announced.
	go func() {
		req := <-m.Pending()
		m.Respond(req.ID, true, false)
	}()

	decision, err := m.Request(context.Background(), Request{
		Tool: "run_command",
		Risk: "high",
	})
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.False(t, decision.Always)
}

func TestManager_DenyFlow(t *testing.T) {
	t.Parallel()

	m := NewManager(5 * time.Second)

	go func() {
		req := <-m.Pending()
		m.Respond(req.ID, false, false)
	}()

	decision, err := m.Request(context.Background(), Request{Tool: "delete_file"})
	require.NoError(t, err)
	assert.False(t, decision.Approved)
}

func TestManager_AlwaysGrant(t *testing.T) {
	t.Parallel()

	m := NewManager(5 * time.Second)

	go func() {
		req := <-m.Pending()
		m.Respond(req.ID, true, true)
	}()

	decision, err := m.Request(context.Background(), Request{Tool: "git_commit"})
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.True(t, decision.Always)
}

func TestManager_Timeout(t *testing.T) {
	t.Parallel()

	m := NewManager(50 * time.Millisecond)

	_, err := m.Request(context.Background(), Request{Tool: "run_command"})
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestManager_ContextCancel(t *testing.T) {
	t.Parallel()

	m := NewManager(0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := m.Request(ctx, Request{Tool: "run_command"})
		done <- err
	}()

	// Drain the announcement so the request is definitely registered.
	<-m.Pending()
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Request did not return on context cancel")
	}
}

func TestManager_RespondUnknownID(t *testing.T) {
	t.Parallel()

	m := NewManager(time.Second)
	err := m.Respond("no-such-id", true, false)
	assert.True(t, errors.Is(err, ErrRequestNotFound))
}

// =============================================================================
// POLICY TESTS
// =============================================================================

type recordingGate struct {
	decision Decision
	calls    int
}

func (g *recordingGate) Request(ctx context.Context, req Request) (Decision, error) {
	g.calls++
	return g.decision, nil
}

func TestPolicy_AllowlistShortCircuits(t *testing.T) {
	t.Parallel()

	inner := &recordingGate{}
	p := NewPolicy(inner, ModeAutoDeny, "low", []string{"read_file"})

	decision, err := p.Request(context.Background(), Request{Tool: "read_file", Risk: "critical"})
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Zero(t, inner.calls)
}

func TestPolicy_AutoDeny(t *testing.T) {
	t.Parallel()

	inner := &recordingGate{decision: Decision{Approved: true}}
	p := NewPolicy(inner, ModeAutoDeny, "low", nil)

	decision, err := p.Request(context.Background(), Request{Tool: "run_command", Risk: "low"})
	require.NoError(t, err)
	assert.False(t, decision.Approved)
	assert.Zero(t, inner.calls, "auto-deny must not consult the inner gate")
}

func TestPolicy_AutoApproveWithinThreshold(t *testing.T) {
	t.Parallel()

	inner := &recordingGate{}
	p := NewPolicy(inner, ModeAutoApprove, "medium", nil)

	decision, err := p.Request(context.Background(), Request{Tool: "write_file", Risk: "medium"})
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Zero(t, inner.calls)
}

func TestPolicy_AutoApproveDelegatesAboveThreshold(t *testing.T) {
	t.Parallel()

	inner := &recordingGate{decision: Decision{Approved: true}}
	p := NewPolicy(inner, ModeAutoApprove, "medium", nil)

	decision, err := p.Request(context.Background(), Request{Tool: "run_command", Risk: "high"})
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Equal(t, 1, inner.calls)
}

func TestPolicy_PromptDelegates(t *testing.T) {
	t.Parallel()

	inner := &recordingGate{decision: Decision{Approved: true, Always: true}}
	p := NewPolicy(inner, ModePrompt, "low", nil)

	decision, err := p.Request(context.Background(), Request{Tool: "run_command", Risk: "low"})
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.True(t, decision.Always)
	assert.Equal(t, 1, inner.calls)
}

func TestPolicy_NilInnerDenies(t *testing.T) {
	t.Parallel()

	p := NewPolicy(nil, ModePrompt, "low", nil)

	decision, err := p.Request(context.Background(), Request{Tool: "run_command"})
	require.NoError(t, err)
	assert.False(t, decision.Approved)
}

func TestRiskRank_UnknownIsMedium(t *testing.T) {
	t.Parallel()

	assert.True(t, riskAtMost("weird", "medium"))
	assert.False(t, riskAtMost("weird", "low"))
}
