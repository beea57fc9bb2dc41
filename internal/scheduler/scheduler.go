package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"codesquad/internal/events"
	"codesquad/internal/history"
	"codesquad/internal/logging"
	"codesquad/internal/sandbox"
)

// RunSink persists settled agent runs. Writes are best-effort.
type RunSink interface {
	RecordAgentRun(run history.AgentRun) error
}

// Scheduler runs agents with bounded parallelism. Overlapping Run calls are
// safe: per-run bookkeeping is mutex-guarded while agent work itself
// proceeds in parallel.
type Scheduler struct {
	sandboxes *sandbox.Manager
	bus       *events.Bus
	runner    AgentFunc
	logger    *zap.Logger
	sink      RunSink

	// mu serializes scheduler-internal bookkeeping (id assignment, sandbox
	// allocation, run counters) across overlapping Run calls.
	mu      sync.Mutex
	runsSeen int
}

// New creates a scheduler. The runner is the per-agent logic; the bus may be
// nil to disable lifecycle events.
func New(sandboxes *sandbox.Manager, bus *events.Bus, runner AgentFunc) *Scheduler {
	return &Scheduler{
		sandboxes: sandboxes,
		bus:       bus,
		runner:    runner,
		logger:    zap.NewNop(),
	}
}

// SetLogger installs a structured logger.
func (s *Scheduler) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetRunSink installs the durable agent-run sink.
func (s *Scheduler) SetRunSink(sink RunSink) {
	s.sink = sink
}

// Runs reports how many scheduling runs this scheduler has started.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runsSeen
}

// Run executes all agents for one task and returns exactly one result per
// agent. A fully failed batch is still a successful call: callers inspect
// the results. Validation failures (empty list, parallelism bound) return
// before any sandbox exists.
func (s *Scheduler) Run(ctx context.Context, task string, agents []*Agent, opts Options) ([]ScoredResult, error) {
	if len(agents) == 0 {
		return nil, ErrNoAgents
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = len(agents)
	}
	if len(agents) > opts.MaxParallel {
		return nil, &TooManyAgentsError{Agents: len(agents), MaxParallel: opts.MaxParallel}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}

	runID := uuid.NewString()
	start := time.Now()

	// Bookkeeping under the lock: unique ids and sandbox allocation never
	// interleave between overlapping runs.
	s.mu.Lock()
	s.runsSeen++
	allocated := make([]*sandbox.Sandbox, 0, len(agents))
	for _, agent := range agents {
		if agent.ID == "" {
			agent.ID = uuid.NewString()
		}
		sb, err := s.sandboxes.Allocate(agent.ID)
		if err != nil {
			for _, prior := range allocated {
				s.sandboxes.Cleanup(prior)
			}
			s.mu.Unlock()
			return nil, fmt.Errorf("sandbox allocation failed: %w", err)
		}
		agent.SandboxPath = sb.Path
		allocated = append(allocated, sb)
	}
	s.mu.Unlock()

	// Every sandbox goes away regardless of outcome; failures are swallowed
	// inside Cleanup.
	defer func() {
		for _, sb := range allocated {
			s.sandboxes.Cleanup(sb)
		}
	}()

	s.publish(events.TopicExecution, events.ExecutionStartedEvent{
		RunID:      runID,
		Task:       task,
		AgentCount: len(agents),
		Timestamp:  time.Now(),
	})
	logging.Audit().SessionStart(runID, len(agents))
	logging.Scheduler("run %s: %d agents, max parallel %d", runID, len(agents), opts.MaxParallel)
	s.logger.Info("execution started",
		zap.String("run_id", runID),
		zap.Int("agents", len(agents)),
		zap.Int("max_parallel", opts.MaxParallel))

	results := make([]AgentResult, len(agents))
	g := new(errgroup.Group)
	g.SetLimit(opts.MaxParallel)

	for i, agent := range agents {
		i, agent := i, agent
		g.Go(func() error {
			results[i] = s.runAgent(ctx, runID, agent, opts)
			// Settle-all: a failed agent never aborts the group.
			return nil
		})
	}
	// The group never carries an error; Wait is for settling only.
	_ = g.Wait()

	scored := scoreResults(results, opts.RequireConsensus)

	failures := 0
	summaries := make([]events.ResultSummary, len(scored))
	for i, r := range scored {
		if !r.Success {
			failures++
		}
		summaries[i] = events.ResultSummary{
			AgentID:         r.AgentID,
			Role:            r.Role,
			Success:         r.Success,
			ExecutionTimeMs: r.ExecutionTimeMs,
			Error:           r.Error,
		}
		s.recordRun(runID, task, r)
	}

	s.publish(events.TopicExecution, events.ExecutionCompletedEvent{
		RunID:     runID,
		Results:   summaries,
		Timestamp: time.Now(),
	})
	logging.Audit().SessionEnd(runID, time.Since(start).Milliseconds(), failures)
	s.logger.Info("execution completed",
		zap.String("run_id", runID),
		zap.Int("failures", failures),
		zap.Duration("elapsed", time.Since(start)))

	return scored, nil
}

// runAgent executes one agent under its deadline. The deadline is real
// cancellation: the context flows into the provider call and every tool
// handler, so a timed-out agent's work is cancelled rather than orphaned.
func (s *Scheduler) runAgent(ctx context.Context, runID string, agent *Agent, opts Options) AgentResult {
	timeout := agent.Timeout
	if timeout <= 0 {
		timeout = opts.Timeout
	}

	start := time.Now()
	s.publish(events.TopicAgent, events.AgentStartedEvent{
		RunID:     runID,
		ID:        agent.ID,
		Role:      string(agent.Role),
		Timestamp: time.Now(),
	})
	logging.Audit().AgentStart(agent.ID, string(agent.Role))

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan AgentResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- AgentResult{
					AgentID:         agent.ID,
					Role:            string(agent.Role),
					ExecutionTimeMs: time.Since(start).Milliseconds(),
					Error:           fmt.Sprintf("agent panicked: %v", r),
				}
			}
		}()

		res, err := s.runner(actx, agent)
		switch {
		case err != nil:
			done <- AgentResult{
				AgentID:         agent.ID,
				Role:            string(agent.Role),
				ExecutionTimeMs: time.Since(start).Milliseconds(),
				Error:           err.Error(),
			}
		case res == nil:
			done <- AgentResult{
				AgentID:         agent.ID,
				Role:            string(agent.Role),
				ExecutionTimeMs: time.Since(start).Milliseconds(),
				Error:           "agent returned no result",
			}
		default:
			res.AgentID = agent.ID
			res.Role = string(agent.Role)
			res.ExecutionTimeMs = time.Since(start).Milliseconds()
			done <- *res
		}
	}()

	var result AgentResult
	select {
	case result = <-done:
		if errors.Is(actx.Err(), context.DeadlineExceeded) && result.Success {
			// The runner finished after the deadline fired; its result does
			// not count.
			result = AgentResult{
				AgentID:         agent.ID,
				Role:            string(agent.Role),
				ExecutionTimeMs: time.Since(start).Milliseconds(),
				Error:           fmt.Sprintf("timed out after %dms", timeout.Milliseconds()),
			}
		}
	case <-actx.Done():
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			result = AgentResult{
				AgentID:         agent.ID,
				Role:            string(agent.Role),
				ExecutionTimeMs: time.Since(start).Milliseconds(),
				Error:           fmt.Sprintf("timed out after %dms", timeout.Milliseconds()),
			}
		} else {
			result = AgentResult{
				AgentID:         agent.ID,
				Role:            string(agent.Role),
				ExecutionTimeMs: time.Since(start).Milliseconds(),
				Error:           "cancelled",
			}
		}
	}

	if result.Success {
		s.publish(events.TopicAgent, events.AgentCompletedEvent{
			RunID:           runID,
			ID:              agent.ID,
			Role:            string(agent.Role),
			ExecutionTimeMs: result.ExecutionTimeMs,
			Timestamp:       time.Now(),
		})
	} else {
		s.publish(events.TopicAgent, events.AgentFailedEvent{
			RunID:           runID,
			ID:              agent.ID,
			Role:            string(agent.Role),
			ExecutionTimeMs: result.ExecutionTimeMs,
			Error:           result.Error,
			Timestamp:       time.Now(),
		})
	}
	logging.Audit().AgentComplete(agent.ID, string(agent.Role), result.ExecutionTimeMs, result.Success, result.Error)
	logging.SchedulerDebug("agent %s settled: success=%v in %dms", agent.ID, result.Success, result.ExecutionTimeMs)

	return result
}

// publish is fire-and-forget; a nil bus disables events entirely.
func (s *Scheduler) publish(topic string, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(topic, event)
	}
}

// recordRun forwards one settled result to the sink, best-effort.
func (s *Scheduler) recordRun(runID, task string, r ScoredResult) {
	if s.sink == nil {
		return
	}
	err := s.sink.RecordAgentRun(history.AgentRun{
		SessionID:   runID,
		AgentID:     r.AgentID,
		Role:        r.Role,
		Task:        task,
		Success:     r.Success,
		Score:       r.Score,
		Confidence:  r.Confidence,
		ExecutionMs: r.ExecutionTimeMs,
		Error:       r.Error,
	})
	if err != nil {
		logging.HistoryError("failed to record agent run %s: %v", r.AgentID, err)
	}
}
