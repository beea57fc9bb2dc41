// Package scheduler orchestrates bounded-parallel multi-agent execution:
// sandbox allocation, per-agent timeouts with real cancellation, settle-all
// result collection, and deterministic consensus scoring.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codesquad/internal/roles"
)

// ProjectContext carries what an agent knows about the project it works on.
type ProjectContext struct {
	// RootDir is the project root the agent's paths resolve against.
	RootDir string

	// Summary is a short description of the project handed to the agent.
	Summary string
}

// Agent is one scheduled unit of role-specialized work. Agents are created
// per run, owned exclusively by the scheduler for their lifetime, and
// destroyed after result collection and sandbox cleanup.
type Agent struct {
	ID          string
	Role        roles.Role
	Task        string
	Context     ProjectContext
	SandboxPath string

	// Timeout is this agent's deadline; zero falls back to the run option.
	Timeout time.Duration
}

// AgentResult is produced exactly once per agent and immutable afterwards.
type AgentResult struct {
	AgentID         string   `json:"agent_id"`
	Role            string   `json:"role"`
	Success         bool     `json:"success"`
	Output          string   `json:"output"`
	ExecutionTimeMs int64    `json:"execution_time_ms"`
	Error           string   `json:"error,omitempty"`
	Artifacts       []string `json:"artifacts,omitempty"`
}

// ScoredResult augments an AgentResult with consensus scoring. Derived,
// never persisted with its full output.
type ScoredResult struct {
	AgentResult
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Options configure one scheduling run.
type Options struct {
	// MaxParallel bounds concurrent agents. Zero means len(agents).
	MaxParallel int

	// Timeout is the per-agent deadline for agents without their own.
	Timeout time.Duration

	// RequireConsensus applies the scoring algorithm; otherwise every
	// result gets score and confidence 1.
	RequireConsensus bool
}

// AgentFunc is the agent logic invoked per agent: typically a provider-driven
// tool loop. The context carries the agent's deadline; implementations must
// honor cancellation.
type AgentFunc func(ctx context.Context, agent *Agent) (*AgentResult, error)

// ErrNoAgents rejects a run with an empty agent list.
var ErrNoAgents = errors.New("at least one agent is required")

// TooManyAgentsError rejects a run exceeding the parallelism bound before
// any sandbox is allocated.
type TooManyAgentsError struct {
	Agents      int
	MaxParallel int
}

func (e *TooManyAgentsError) Error() string {
	return fmt.Sprintf("%d agents exceed max parallelism %d", e.Agents, e.MaxParallel)
}
