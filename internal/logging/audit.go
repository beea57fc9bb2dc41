// Audit logging: structured JSONL events recording every tool call,
// checkpoint operation, approval decision, and agent lifecycle transition.
// One line per event under .squad/logs/, written only in debug mode.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType identifies one audit event kind.
type AuditEventType string

const (
	// Tool dispatch
	AuditToolCall AuditEventType = "tool_call"

	// Checkpoint subsystem
	AuditCheckpointCapture AuditEventType = "checkpoint_capture"
	AuditCheckpointRestore AuditEventType = "checkpoint_restore"

	// Approval gate
	AuditApprovalRequest AuditEventType = "approval_request"
	AuditApprovalGranted AuditEventType = "approval_granted"
	AuditApprovalDenied  AuditEventType = "approval_denied"

	// Agent lifecycle
	AuditAgentStart    AuditEventType = "agent_start"
	AuditAgentComplete AuditEventType = "agent_complete"
	AuditAgentFailed   AuditEventType = "agent_failed"

	// Session lifecycle
	AuditSessionStart AuditEventType = "session_start"
	AuditSessionEnd   AuditEventType = "session_end"

	// Sandbox lifecycle
	AuditSandboxAllocate AuditEventType = "sandbox_allocate"
	AuditSandboxCleanup  AuditEventType = "sandbox_cleanup"
)

// AuditEvent is one structured audit log entry.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"` // Unix milliseconds
	EventType  AuditEventType `json:"event"`
	SessionID  string         `json:"session,omitempty"`
	AgentID    string         `json:"agent,omitempty"`
	Target     string         `json:"target,omitempty"` // tool name, checkpoint id, sandbox path
	Success    bool           `json:"success"`
	DurationMs int64          `json:"dur_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Message    string         `json:"msg,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger writes structured audit events, optionally scoped to a session
// or agent for correlation.
type AuditLogger struct {
	sessionID string
	agentID   string
}

// InitAudit opens the audit log file. No-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	auditFile.WriteString(fmt.Sprintf("# Audit log started at %s\n", time.Now().Format(time.RFC3339)))
	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger.
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithSession creates an audit logger scoped to a session.
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// AuditWithAgent creates an audit logger scoped to a session and agent.
func AuditWithAgent(sessionID, agentID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID, agentID: agentID}
}

// Log writes an audit event.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.SessionID == "" {
		event.SessionID = a.sessionID
	}
	if event.AgentID == "" {
		event.AgentID = a.agentID
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// ToolCall records one dispatched tool call.
func (a *AuditLogger) ToolCall(tool string, success bool, durationMs int64, errMsg string) {
	a.Log(AuditEvent{
		EventType:  AuditToolCall,
		Target:     tool,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("tool %s (success=%v, %dms)", tool, success, durationMs),
	})
}

// CheckpointCapture records a checkpoint being taken.
func (a *AuditLogger) CheckpointCapture(id string, fileCount int) {
	a.Log(AuditEvent{
		EventType: AuditCheckpointCapture,
		Target:    id,
		Success:   true,
		Fields:    map[string]any{"files": fileCount},
		Message:   fmt.Sprintf("checkpoint %s captured (%d files)", id, fileCount),
	})
}

// CheckpointRestore records a checkpoint being restored.
func (a *AuditLogger) CheckpointRestore(id string, fileCount int) {
	a.Log(AuditEvent{
		EventType: AuditCheckpointRestore,
		Target:    id,
		Success:   true,
		Fields:    map[string]any{"files": fileCount},
		Message:   fmt.Sprintf("checkpoint %s restored (%d files)", id, fileCount),
	})
}

// ApprovalDecision records the outcome of an approval request.
func (a *AuditLogger) ApprovalDecision(tool, risk string, approved bool) {
	eventType := AuditApprovalGranted
	if !approved {
		eventType = AuditApprovalDenied
	}
	a.Log(AuditEvent{
		EventType: eventType,
		Target:    tool,
		Success:   approved,
		Fields:    map[string]any{"risk": risk},
		Message:   fmt.Sprintf("approval for %s (risk=%s): %v", tool, risk, approved),
	})
}

// AgentStart records an agent beginning work.
func (a *AuditLogger) AgentStart(agentID, role string) {
	a.Log(AuditEvent{
		EventType: AuditAgentStart,
		AgentID:   agentID,
		Success:   true,
		Fields:    map[string]any{"role": role},
		Message:   fmt.Sprintf("agent %s (%s) started", agentID, role),
	})
}

// AgentComplete records an agent settling, successfully or not.
func (a *AuditLogger) AgentComplete(agentID, role string, durationMs int64, success bool, errMsg string) {
	eventType := AuditAgentComplete
	if !success {
		eventType = AuditAgentFailed
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		AgentID:    agentID,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Fields:     map[string]any{"role": role},
		Message:    fmt.Sprintf("agent %s (%s) settled (success=%v, %dms)", agentID, role, success, durationMs),
	})
}

// SessionStart records a scheduling session beginning.
func (a *AuditLogger) SessionStart(sessionID string, agentCount int) {
	a.Log(AuditEvent{
		EventType: AuditSessionStart,
		SessionID: sessionID,
		Success:   true,
		Fields:    map[string]any{"agents": agentCount},
		Message:   fmt.Sprintf("session %s started (%d agents)", sessionID, agentCount),
	})
}

// SessionEnd records a scheduling session finishing.
func (a *AuditLogger) SessionEnd(sessionID string, durationMs int64, failures int) {
	a.Log(AuditEvent{
		EventType:  AuditSessionEnd,
		SessionID:  sessionID,
		Success:    failures == 0,
		DurationMs: durationMs,
		Fields:     map[string]any{"failures": failures},
		Message:    fmt.Sprintf("session %s ended (%dms, %d failures)", sessionID, durationMs, failures),
	})
}

// SandboxEvent records sandbox allocation or cleanup.
func (a *AuditLogger) SandboxEvent(eventType AuditEventType, agentID, path string, success bool) {
	a.Log(AuditEvent{
		EventType: eventType,
		AgentID:   agentID,
		Target:    path,
		Success:   success,
		Message:   fmt.Sprintf("%s for agent %s: %s", eventType, agentID, path),
	})
}
