// Package sandbox allocates isolated working directories for agents. A
// sandbox is directory-based isolation, not a security boundary: it keeps
// concurrent agents from interleaving writes in one tree.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"codesquad/internal/logging"
)

// Sandbox is one agent's isolated working directory.
type Sandbox struct {
	ID      string
	AgentID string
	Path    string
}

// Manager allocates and tears down sandboxes under a root directory.
type Manager struct {
	root string

	// keepOnFailure preserves directories for inspection instead of
	// removing them during cleanup.
	keepOnFailure bool

	mu     sync.Mutex
	active map[string]*Sandbox
}

// NewManager creates a sandbox manager rooted at root.
func NewManager(root string) *Manager {
	return &Manager{
		root:   root,
		active: make(map[string]*Sandbox),
	}
}

// SetKeepOnFailure preserves sandbox directories during CleanupAll.
func (m *Manager) SetKeepOnFailure(keep bool) {
	m.keepOnFailure = keep
}

// Allocate creates a fresh sandbox directory for an agent.
func (m *Manager) Allocate(agentID string) (*Sandbox, error) {
	path := filepath.Join(m.root, agentID)
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to allocate sandbox for %s: %w", agentID, err)
	}

	sb := &Sandbox{
		ID:      agentID,
		AgentID: agentID,
		Path:    path,
	}

	m.mu.Lock()
	m.active[sb.ID] = sb
	m.mu.Unlock()

	logging.Sandbox("allocated %s", path)
	logging.Audit().SandboxEvent(logging.AuditSandboxAllocate, agentID, path, true)
	return sb, nil
}

// Cleanup removes one sandbox, best-effort. Errors are logged, not returned.
func (m *Manager) Cleanup(sb *Sandbox) {
	if sb == nil {
		return
	}

	m.mu.Lock()
	delete(m.active, sb.ID)
	m.mu.Unlock()

	if err := os.RemoveAll(sb.Path); err != nil {
		logging.SandboxWarn("cleanup of %s failed: %v", sb.Path, err)
		logging.Audit().SandboxEvent(logging.AuditSandboxCleanup, sb.AgentID, sb.Path, false)
		return
	}
	logging.SandboxDebug("cleaned up %s", sb.Path)
	logging.Audit().SandboxEvent(logging.AuditSandboxCleanup, sb.AgentID, sb.Path, true)
}

// CleanupAll removes every active sandbox, best-effort. With keepOnFailure
// set, directories are left in place and only the bookkeeping is cleared.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	sandboxes := make([]*Sandbox, 0, len(m.active))
	for _, sb := range m.active {
		sandboxes = append(sandboxes, sb)
	}
	m.active = make(map[string]*Sandbox)
	m.mu.Unlock()

	for _, sb := range sandboxes {
		if m.keepOnFailure {
			logging.Sandbox("keeping %s for inspection", sb.Path)
			continue
		}
		if err := os.RemoveAll(sb.Path); err != nil {
			logging.SandboxWarn("cleanup of %s failed: %v", sb.Path, err)
		}
	}
}

// Active returns the number of live sandboxes.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
