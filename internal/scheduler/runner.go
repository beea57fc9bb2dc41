package scheduler

import (
	"context"
	"fmt"
	"strings"

	"codesquad/internal/approval"
	"codesquad/internal/checkpoint"
	"codesquad/internal/logging"
	"codesquad/internal/provider"
	"codesquad/internal/roles"
	"codesquad/internal/tools"
)

// ToolLoop is the standard agent body: ask the provider for a tool plan,
// then dispatch each step through the tool pipeline. Its Run method
// satisfies AgentFunc.
type ToolLoop struct {
	catalog     *roles.Catalog
	chat        provider.Provider
	dispatcher  *tools.Dispatcher
	gate        approval.Gate
	checkpoints *checkpoint.Store

	workingDir     string
	sessionID      string
	model          string
	maxOutput      int
	deniedBinaries []string
	sandboxed      bool
	dryRun         bool
}

// NewToolLoop wires an agent body over the given provider and dispatcher.
func NewToolLoop(catalog *roles.Catalog, chat provider.Provider, dispatcher *tools.Dispatcher, workingDir string) *ToolLoop {
	return &ToolLoop{
		catalog:    catalog,
		chat:       chat,
		dispatcher: dispatcher,
		workingDir: workingDir,
	}
}

// SetSessionID correlates tool calls and checkpoints with a session.
func (l *ToolLoop) SetSessionID(id string) { l.sessionID = id }

// SetGate installs the approval gate handed to every tool call.
func (l *ToolLoop) SetGate(gate approval.Gate) { l.gate = gate }

// SetCheckpoints installs the checkpoint store for mutating tool calls.
func (l *ToolLoop) SetCheckpoints(store *checkpoint.Store) { l.checkpoints = store }

// SetModel pins the provider model for all agents.
func (l *ToolLoop) SetModel(model string) { l.model = model }

// SetMaxOutput caps captured tool output per call.
func (l *ToolLoop) SetMaxOutput(n int) { l.maxOutput = n }

// SetDeniedBinaries lists binaries shell tools must refuse.
func (l *ToolLoop) SetDeniedBinaries(names []string) { l.deniedBinaries = names }

// SetSandboxed restricts agents to sandbox-safe tools.
func (l *ToolLoop) SetSandboxed(v bool) { l.sandboxed = v }

// SetDryRun previews every tool call instead of executing it.
func (l *ToolLoop) SetDryRun(v bool) { l.dryRun = v }

// Run executes one agent: one provider round to obtain a plan, then one
// dispatch per step. A step outside the role's tool allowlist fails the
// agent without dispatching; a failed dispatch stops the plan there.
func (l *ToolLoop) Run(ctx context.Context, agent *Agent) (*AgentResult, error) {
	def, err := l.catalog.Create(agent.Role)
	if err != nil {
		return nil, err
	}

	messages := []provider.Message{
		{Role: "system", Content: def.SystemPrompt},
		{Role: "user", Content: l.userPrompt(agent)},
	}
	resp, err := l.chat.Chat(ctx, messages, provider.Options{Model: l.model})
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}

	plan, err := provider.ParsePlan(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("unusable plan: %w", err)
	}

	allowed := make(map[string]bool, len(def.AllowedTools))
	for _, name := range def.AllowedTools {
		allowed[name] = true
	}

	tc := &tools.Context{
		WorkingDir:     l.agentDir(agent),
		DryRun:         l.dryRun,
		Sandbox:        l.sandboxed,
		SessionID:      l.sessionID,
		AgentID:        agent.ID,
		Gate:           l.gate,
		Checkpoints:    l.checkpoints,
		MaxOutputSize:  l.maxOutput,
		DeniedBinaries: l.deniedBinaries,
	}

	var outputs []string
	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !allowed[step.Tool] {
			return &AgentResult{
				Output:    strings.Join(outputs, "\n"),
				Error:     fmt.Sprintf("tool %s is not allowed for role %s", step.Tool, agent.Role),
				Artifacts: tc.FilesChanged(),
			}, nil
		}

		res := l.dispatcher.Execute(ctx, step.Tool, step.Args, tc)
		logging.SchedulerDebug("agent %s step %d/%d %s: success=%v",
			agent.ID, i+1, len(plan.Steps), step.Tool, res.Success)
		if res.Output != "" {
			outputs = append(outputs, res.Output)
		}
		if !res.Success {
			return &AgentResult{
				Output:    strings.Join(outputs, "\n"),
				Error:     fmt.Sprintf("%s: %s", step.Tool, res.Error),
				Artifacts: tc.FilesChanged(),
			}, nil
		}
	}

	return &AgentResult{
		Success:   true,
		Output:    strings.Join(outputs, "\n"),
		Artifacts: tc.FilesChanged(),
	}, nil
}

func (l *ToolLoop) userPrompt(agent *Agent) string {
	var b strings.Builder
	b.WriteString(agent.Task)
	if agent.Context.Summary != "" {
		b.WriteString("\n\nProject context:\n")
		b.WriteString(agent.Context.Summary)
	}
	return b.String()
}

// agentDir prefers the agent's sandbox when one was allocated.
func (l *ToolLoop) agentDir(agent *Agent) string {
	if l.sandboxed && agent.SandboxPath != "" {
		return agent.SandboxPath
	}
	return l.workingDir
}
