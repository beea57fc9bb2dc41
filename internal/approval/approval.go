// Package approval provides the human approval gate consulted by the tool
// dispatcher before risky operations. The gate is UI-agnostic: the Manager
// brokers pending requests over channels so any front end (CLI prompt, IDE,
// test harness) can resolve them.
package approval

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"codesquad/internal/logging"
)

var (
	// ErrRequestNotFound is returned when responding to an unknown request.
	ErrRequestNotFound = errors.New("approval request not found")

	// ErrTimeout is returned when a pending request expires unanswered.
	ErrTimeout = errors.New("approval request timed out")
)

// Request describes one operation awaiting a decision.
type Request struct {
	// ID is assigned by the Manager when the request is registered.
	ID string

	// Tool names the tool asking for approval.
	Tool string

	// Description is the human-readable summary shown to the approver.
	Description string

	// Operations itemizes what the call will do.
	Operations []string

	// Risk is the tool's risk level (low, medium, high, critical).
	Risk string
}

// Decision is the approver's answer.
type Decision struct {
	// Approved permits the call.
	Approved bool

	// Always extends the approval to subsequent calls of the same tool
	// for the rest of the session.
	Always bool
}

// Gate is the capability the dispatcher blocks on for risky operations.
type Gate interface {
	Request(ctx context.Context, req Request) (Decision, error)
}

// Manager brokers pending approval requests. Request registers the request,
// announces it on the pending channel, and blocks until Respond resolves it,
// the context is cancelled, or the timeout passes (timeout denies).
type Manager struct {
	pending  sync.Map // id -> chan Decision
	announce chan Request
	timeout  time.Duration
}

// NewManager creates a request broker. Timeout <= 0 means wait forever.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		announce: make(chan Request, 16),
		timeout:  timeout,
	}
}

// Pending returns the channel on which new requests are announced.
// A front end consumes this channel and calls Respond.
func (m *Manager) Pending() <-chan Request {
	return m.announce
}

// Request implements Gate.
func (m *Manager) Request(ctx context.Context, req Request) (Decision, error) {
	req.ID = uuid.NewString()

	// Buffered so Respond never blocks on a caller that already gave up.
	ch := make(chan Decision, 1)
	m.pending.Store(req.ID, ch)
	defer m.pending.Delete(req.ID)

	select {
	case m.announce <- req:
	default:
		logging.ApprovalDebug("pending queue full, request %s not announced", req.ID)
	}

	logging.Approval("request %s: %s (risk=%s)", req.ID, req.Tool, req.Risk)

	var expire <-chan time.Time
	if m.timeout > 0 {
		t := time.NewTimer(m.timeout)
		defer t.Stop()
		expire = t.C
	}

	select {
	case decision := <-ch:
		logging.Approval("request %s resolved: approved=%v always=%v", req.ID, decision.Approved, decision.Always)
		return decision, nil
	case <-expire:
		logging.Approval("request %s timed out, denying", req.ID)
		return Decision{}, ErrTimeout
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}

// Respond resolves a pending request.
func (m *Manager) Respond(id string, approved, always bool) error {
	val, ok := m.pending.Load(id)
	if !ok {
		return ErrRequestNotFound
	}

	ch := val.(chan Decision)
	select {
	case ch <- Decision{Approved: approved, Always: always}:
		return nil
	default:
		return errors.New("request already resolved")
	}
}
