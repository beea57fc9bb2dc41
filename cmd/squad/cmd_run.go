package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codesquad/cmd/squad/ui"
	"codesquad/internal/approval"
	"codesquad/internal/checkpoint"
	"codesquad/internal/events"
	"codesquad/internal/history"
	"codesquad/internal/provider"
	"codesquad/internal/roles"
	"codesquad/internal/sandbox"
	"codesquad/internal/scheduler"
	"codesquad/internal/tools"
	"codesquad/internal/tools/core"
	"codesquad/internal/tools/git"
	"codesquad/internal/tools/shell"
)

var (
	runAgents      []string
	runMaxParallel int
	runTimeout     time.Duration
	runConsensus   bool
	runDryRun      bool
	runSandbox     bool
	runYes         bool
	runReport      bool
	runPlanFile    string
)

// runCmd schedules agents against one task
var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Classify a task, recommend agent roles, and run them in parallel",
	Long: `Runs one task through the full pipeline:
  1. Classify the task and recommend agent roles (or take --agents)
  2. Allocate a sandbox per agent
  3. Execute each agent's tool plan through the gated dispatcher
  4. Score results and persist them to history

Without --plan the agents receive an empty plan and settle immediately;
use a plan file to drive scripted tool calls.

Examples:
  squad run "fix the failing parser test" --agents debugger,validator
  squad run "add input validation" --plan plan.json --consensus --report`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringSliceVar(&runAgents, "agents", nil, "Agent roles (default: recommended from the task)")
	runCmd.Flags().IntVar(&runMaxParallel, "max-parallel", 0, "Maximum concurrent agents (default: config)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-agent timeout (default: config)")
	runCmd.Flags().BoolVar(&runConsensus, "consensus", false, "Score results across agents")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Preview tool calls without executing them")
	runCmd.Flags().BoolVar(&runSandbox, "sandbox", false, "Restrict agents to sandbox-safe tools in their sandbox dirs")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Auto-approve all tool calls")
	runCmd.Flags().BoolVar(&runReport, "report", false, "Render a markdown run report")
	runCmd.Flags().StringVar(&runPlanFile, "plan", "", "JSON tool plan file executed by every agent")
}

func runTask(cmd *cobra.Command, args []string) error {
	task := strings.Join(args, " ")
	styles := ui.DefaultStyles()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	maxParallel := runMaxParallel
	if maxParallel <= 0 {
		maxParallel = cfg.Execution.MaxParallel
	}

	catalog := roles.NewCatalog()
	roleList, err := selectRoles(catalog, task, maxParallel)
	if err != nil {
		return err
	}

	// Tool registry and dispatcher
	registry := tools.NewRegistry()
	if err := core.RegisterAll(registry); err != nil {
		return err
	}
	if err := shell.RegisterAll(registry); err != nil {
		return err
	}
	if err := git.RegisterAll(registry); err != nil {
		return err
	}
	dispatcher := tools.NewDispatcher(registry)
	dispatcher.SetLogger(logger)
	dispatcher.SetDefaultTimeout(cfg.GetToolTimeout())

	// Checkpoints
	checkpoints, err := checkpoint.NewStore(workspace, filepath.Join(workspace, cfg.Checkpoints.Dir))
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	if err := checkpoints.Load(); err != nil {
		logger.Warn("failed to load existing checkpoints", zap.Error(err))
	}

	// History
	store, err := history.Open(filepath.Join(workspace, cfg.History.Path))
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer store.Close()
	dispatcher.SetAuditSink(store)
	if cfg.History.RetentionDays > 0 {
		if _, err := store.Prune(time.Duration(cfg.History.RetentionDays) * 24 * time.Hour); err != nil {
			logger.Warn("history prune failed", zap.Error(err))
		}
	}

	// Provider
	script := provider.NewScript()
	if runPlanFile != "" {
		plan, err := loadPlan(runPlanFile)
		if err != nil {
			return err
		}
		script.Fallback = plan
	}

	// Agent body
	sessionID := uuid.NewString()
	loop := scheduler.NewToolLoop(catalog, script, dispatcher, workspace)
	loop.SetSessionID(sessionID)
	loop.SetGate(buildGate())
	loop.SetCheckpoints(checkpoints)
	loop.SetMaxOutput(cfg.Execution.MaxOutputSize)
	loop.SetDeniedBinaries(cfg.Execution.DeniedBinaries)
	loop.SetSandboxed(runSandbox)
	loop.SetDryRun(runDryRun)

	// Scheduler
	sandboxes := sandbox.NewManager(filepath.Join(workspace, cfg.Sandbox.Dir))
	sandboxes.SetKeepOnFailure(cfg.Sandbox.KeepOnFailure)
	bus := events.NewBus()
	sched := scheduler.New(sandboxes, bus, loop.Run)
	sched.SetLogger(logger)
	sched.SetRunSink(store)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		renderProgress(cmd, styles, bus.SubscribeAll(0))
	}()

	agents := make([]*scheduler.Agent, len(roleList))
	for i, role := range roleList {
		agents[i] = &scheduler.Agent{Role: role, Task: task}
	}

	timeout := runTimeout
	if timeout <= 0 {
		timeout = cfg.GetAgentTimeout()
	}

	results, err := sched.Run(ctx, task, agents, scheduler.Options{
		MaxParallel:      maxParallel,
		Timeout:          timeout,
		RequireConsensus: runConsensus,
	})
	bus.Close()
	wg.Wait()
	if err != nil {
		return err
	}

	if cfg.Checkpoints.MaxPerSession > 0 {
		checkpoints.Prune(sessionID, cfg.Checkpoints.MaxPerSession)
	}

	if runReport {
		return renderReport(cmd, task, results)
	}
	printResults(cmd, styles, results)
	return nil
}

// selectRoles resolves --agents or falls back to task classification. The
// recommendation is capped at maxParallel so the scheduler accepts the batch.
func selectRoles(catalog *roles.Catalog, task string, maxParallel int) ([]roles.Role, error) {
	if len(runAgents) > 0 {
		list := make([]roles.Role, len(runAgents))
		for i, name := range runAgents {
			list[i] = roles.Role(strings.TrimSpace(name))
		}
		if vr := catalog.ValidateCombination(list); !vr.Valid {
			return nil, fmt.Errorf("invalid agent combination: %s", strings.Join(vr.Issues, "; "))
		}
		return list, nil
	}

	classification := catalog.Classify(task)
	fmt.Printf("Classified as %s (confidence %.2f): %s\n",
		classification.PrimaryRole, classification.Confidence, classification.Reasoning)
	limit := roles.MaxCombination
	if maxParallel > 0 && maxParallel < limit {
		limit = maxParallel
	}
	return catalog.Recommend(task, limit), nil
}

func buildGate() approval.Gate {
	if runYes {
		return approval.NewPolicy(nil, approval.ModeAutoApprove, "critical", nil)
	}

	// Requests flow policy -> manager -> terminal prompt. The manager owns
	// the configured timeout: an unanswered prompt denies the call instead
	// of stalling the agent forever.
	manager := approval.NewManager(cfg.GetApprovalTimeout())
	prompt := approval.NewPromptGate(os.Stdin, os.Stderr)
	go func() {
		for req := range manager.Pending() {
			decision, err := prompt.Request(context.Background(), req)
			if err != nil {
				decision = approval.Decision{}
			}
			_ = manager.Respond(req.ID, decision.Approved, decision.Always)
		}
	}()

	mode := approval.Mode(cfg.Approval.Mode)
	threshold := "low"
	if mode == approval.ModePrompt && cfg.Approval.AutoApproveLowRisk {
		// Low-risk calls skip the prompt; everything else still asks.
		mode = approval.ModeAutoApprove
	}
	return approval.NewPolicy(manager, mode, threshold, cfg.Approval.AllowedTools)
}

func loadPlan(path string) (provider.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return provider.Plan{}, fmt.Errorf("failed to read plan file: %w", err)
	}
	var plan provider.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return provider.Plan{}, fmt.Errorf("invalid plan file %s: %w", path, err)
	}
	return plan, nil
}

// renderProgress prints one line per lifecycle event until the bus closes.
func renderProgress(cmd *cobra.Command, styles ui.Styles, ch <-chan events.Event) {
	out := cmd.OutOrStdout()
	for ev := range ch {
		switch e := ev.(type) {
		case events.ExecutionStartedEvent:
			fmt.Fprintf(out, "%s run %s: %d agent(s)\n", styles.Header.Render("▶"), e.RunID[:8], e.AgentCount)
		case events.AgentStartedEvent:
			fmt.Fprintf(out, "  %s %s started\n", styles.Muted.Render("·"), e.Role)
		case events.AgentCompletedEvent:
			fmt.Fprintf(out, "  %s %s finished in %dms\n", styles.Success.Render("✓"), e.Role, e.ExecutionTimeMs)
		case events.AgentFailedEvent:
			fmt.Fprintf(out, "  %s %s failed after %dms: %s\n", styles.Failure.Render("✗"), e.Role, e.ExecutionTimeMs, e.Error)
		case events.ExecutionCompletedEvent:
			fmt.Fprintf(out, "%s run %s settled\n", styles.Header.Render("■"), e.RunID[:8])
		}
	}
}

func printResults(cmd *cobra.Command, styles ui.Styles, results []scheduler.ScoredResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	for _, r := range results {
		marker := styles.Success.Render("✓")
		if !r.Success {
			marker = styles.Failure.Render("✗")
		}
		fmt.Fprintf(out, "%s %-10s score %.2f confidence %.2f  %s\n",
			marker, r.Role, r.Score, r.Confidence, styles.Muted.Render(r.Reasoning))
		if r.Output != "" {
			for _, line := range strings.Split(strings.TrimSpace(r.Output), "\n") {
				fmt.Fprintf(out, "    %s\n", line)
			}
		}
		if len(r.Artifacts) > 0 {
			fmt.Fprintf(out, "    %s %s\n", styles.Muted.Render("changed:"), strings.Join(r.Artifacts, ", "))
		}
	}
}

// renderReport writes a glamour-rendered markdown summary of the run.
func renderReport(cmd *cobra.Command, task string, results []scheduler.ScoredResult) error {
	var b strings.Builder
	b.WriteString("# Run Report\n\n")
	b.WriteString(fmt.Sprintf("**Task:** %s\n\n", task))
	b.WriteString("| Agent | Role | Outcome | Score | Confidence | Time |\n")
	b.WriteString("|-------|------|---------|-------|------------|------|\n")
	for _, r := range results {
		outcome := "success"
		if !r.Success {
			outcome = "failed"
		}
		b.WriteString(fmt.Sprintf("| %.8s | %s | %s | %.2f | %.2f | %dms |\n",
			r.AgentID, r.Role, outcome, r.Score, r.Confidence, r.ExecutionTimeMs))
	}
	b.WriteString("\n")
	for _, r := range results {
		b.WriteString(fmt.Sprintf("## %s\n\n%s\n\n", r.Role, r.Reasoning))
		if r.Output != "" {
			b.WriteString("```\n" + strings.TrimSpace(r.Output) + "\n```\n\n")
		}
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// Fall back to raw markdown when the terminal renderer is unavailable.
		fmt.Fprint(cmd.OutOrStdout(), b.String())
		return nil
	}
	rendered, err := renderer.Render(b.String())
	if err != nil {
		fmt.Fprint(cmd.OutOrStdout(), b.String())
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}
