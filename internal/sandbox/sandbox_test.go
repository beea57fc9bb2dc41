package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAllocateAndCleanup(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)

	sb, err := m.Allocate("agent-1")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if sb.Path != filepath.Join(root, "agent-1") {
		t.Errorf("path mismatch: %q", sb.Path)
	}
	if info, err := os.Stat(sb.Path); err != nil || !info.IsDir() {
		t.Fatalf("sandbox dir missing: %v", err)
	}
	if m.Active() != 1 {
		t.Errorf("expected 1 active, got %d", m.Active())
	}

	m.Cleanup(sb)
	if _, err := os.Stat(sb.Path); !os.IsNotExist(err) {
		t.Error("sandbox dir should be removed")
	}
	if m.Active() != 0 {
		t.Errorf("expected 0 active, got %d", m.Active())
	}
}

func TestCleanup_NilIsNoop(t *testing.T) {
	m := NewManager(t.TempDir())
	m.Cleanup(nil)
}

func TestCleanupAll(t *testing.T) {
	m := NewManager(t.TempDir())

	a, _ := m.Allocate("a")
	b, _ := m.Allocate("b")

	m.CleanupAll()

	if m.Active() != 0 {
		t.Errorf("expected 0 active, got %d", m.Active())
	}
	for _, sb := range []*Sandbox{a, b} {
		if _, err := os.Stat(sb.Path); !os.IsNotExist(err) {
			t.Errorf("sandbox %s should be removed", sb.Path)
		}
	}
}

func TestCleanupAll_KeepOnFailure(t *testing.T) {
	m := NewManager(t.TempDir())
	m.SetKeepOnFailure(true)

	sb, _ := m.Allocate("kept")
	m.CleanupAll()

	if m.Active() != 0 {
		t.Errorf("bookkeeping should be cleared, got %d active", m.Active())
	}
	if _, err := os.Stat(sb.Path); err != nil {
		t.Errorf("sandbox dir should be preserved: %v", err)
	}
}
