package approval

import (
	"context"

	"codesquad/internal/logging"
)

// Mode selects how the policy decides before consulting the inner gate.
type Mode string

const (
	// ModePrompt delegates every request to the inner gate.
	ModePrompt Mode = "prompt"

	// ModeAutoApprove approves requests at or below the risk threshold
	// without prompting; higher risk still goes to the inner gate.
	ModeAutoApprove Mode = "auto-approve"

	// ModeAutoDeny denies everything not on the allowlist.
	ModeAutoDeny Mode = "auto-deny"
)

// Policy wraps a Gate with automatic decisions: an allowlist of tools that
// never prompt, and mode-driven auto approval or denial.
type Policy struct {
	inner         Gate
	mode          Mode
	riskThreshold string
	allowed       map[string]bool
}

// NewPolicy builds a policy wrapper. inner may be nil for the auto modes;
// a nil inner under ModePrompt denies everything.
func NewPolicy(inner Gate, mode Mode, riskThreshold string, allowedTools []string) *Policy {
	allowed := make(map[string]bool, len(allowedTools))
	for _, tool := range allowedTools {
		allowed[tool] = true
	}
	if riskThreshold == "" {
		riskThreshold = "low"
	}
	return &Policy{
		inner:         inner,
		mode:          mode,
		riskThreshold: riskThreshold,
		allowed:       allowed,
	}
}

// Request implements Gate.
func (p *Policy) Request(ctx context.Context, req Request) (Decision, error) {
	if p.allowed[req.Tool] {
		logging.ApprovalDebug("policy: %s allowlisted", req.Tool)
		return Decision{Approved: true}, nil
	}

	switch p.mode {
	case ModeAutoDeny:
		logging.ApprovalDebug("policy: auto-deny %s", req.Tool)
		return Decision{}, nil

	case ModeAutoApprove:
		if riskAtMost(req.Risk, p.riskThreshold) {
			logging.ApprovalDebug("policy: auto-approve %s (risk=%s <= %s)", req.Tool, req.Risk, p.riskThreshold)
			return Decision{Approved: true}, nil
		}
	}

	if p.inner == nil {
		return Decision{}, nil
	}
	return p.inner.Request(ctx, req)
}

// riskAtMost compares coarse risk levels; unknown levels rank as medium.
func riskAtMost(risk, threshold string) bool {
	return riskRank(risk) <= riskRank(threshold)
}

func riskRank(risk string) int {
	switch risk {
	case "low":
		return 0
	case "medium":
		return 1
	case "high":
		return 2
	case "critical":
		return 3
	}
	return 1
}
