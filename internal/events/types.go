// Package events provides the lifecycle event bus for scheduler observers.
// Publishing is fire-and-forget: a slow subscriber drops events rather than
// blocking the scheduler.
package events

import (
	"time"
)

// Event is the base interface for all lifecycle events.
type Event interface {
	EventType() string
	AgentID() string
}

// Topic constants
const (
	TopicExecution = "execution"
	TopicAgent     = "agent"
)

// Event type constants
const (
	EventTypeExecutionStarted   = "execution-started"
	EventTypeAgentStarted       = "agent-started"
	EventTypeAgentCompleted     = "agent-completed"
	EventTypeAgentFailed        = "agent-failed"
	EventTypeExecutionCompleted = "execution-completed"
)

// ResultSummary is the compact per-agent outcome carried by
// ExecutionCompletedEvent. Kept here so observers do not need the
// scheduler's full result types.
type ResultSummary struct {
	AgentID         string
	Role            string
	Success         bool
	ExecutionTimeMs int64
	Error           string
}

// ExecutionStartedEvent is published once when a scheduling run begins.
type ExecutionStartedEvent struct {
	RunID      string
	Task       string
	AgentCount int
	Timestamp  time.Time
}

func (e ExecutionStartedEvent) EventType() string { return EventTypeExecutionStarted }
func (e ExecutionStartedEvent) AgentID() string   { return "" }

// AgentStartedEvent is published when one agent begins work.
type AgentStartedEvent struct {
	RunID     string
	ID        string
	Role      string
	Timestamp time.Time
}

func (e AgentStartedEvent) EventType() string { return EventTypeAgentStarted }
func (e AgentStartedEvent) AgentID() string   { return e.ID }

// AgentCompletedEvent is published when one agent finishes successfully.
type AgentCompletedEvent struct {
	RunID           string
	ID              string
	Role            string
	ExecutionTimeMs int64
	Timestamp       time.Time
}

func (e AgentCompletedEvent) EventType() string { return EventTypeAgentCompleted }
func (e AgentCompletedEvent) AgentID() string   { return e.ID }

// AgentFailedEvent is published when one agent fails or times out.
type AgentFailedEvent struct {
	RunID           string
	ID              string
	Role            string
	ExecutionTimeMs int64
	Error           string
	Timestamp       time.Time
}

func (e AgentFailedEvent) EventType() string { return EventTypeAgentFailed }
func (e AgentFailedEvent) AgentID() string   { return e.ID }

// ExecutionCompletedEvent is published once when a scheduling run finishes,
// after all agents have settled.
type ExecutionCompletedEvent struct {
	RunID     string
	Results   []ResultSummary
	Timestamp time.Time
}

func (e ExecutionCompletedEvent) EventType() string { return EventTypeExecutionCompleted }
func (e ExecutionCompletedEvent) AgentID() string   { return "" }
