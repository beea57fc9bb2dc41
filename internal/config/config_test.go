package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "codeSQUAD" {
		t.Errorf("expected Name=codeSQUAD, got %s", cfg.Name)
	}
	if cfg.Execution.MaxParallel != 3 {
		t.Errorf("expected MaxParallel=3, got %d", cfg.Execution.MaxParallel)
	}
	if cfg.Approval.Mode != "prompt" {
		t.Errorf("expected approval mode=prompt, got %s", cfg.Approval.Mode)
	}
	if cfg.Checkpoints.Dir != filepath.Join(".squad", "checkpoints") {
		t.Errorf("unexpected checkpoint dir: %s", cfg.Checkpoints.Dir)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Execution.MaxParallel = 5
	cfg.Approval.Mode = "auto-approve"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Execution.MaxParallel != 5 {
		t.Errorf("expected MaxParallel=5, got %d", loaded.Execution.MaxParallel)
	}
	if loaded.Approval.Mode != "auto-approve" {
		t.Errorf("expected approval mode=auto-approve, got %s", loaded.Approval.Mode)
	}
}

func TestConfig_LoadMissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfg, err := Load(filepath.Join(tmpDir, "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file should return defaults, got error: %v", err)
	}
	if cfg.Execution.MaxParallel != DefaultConfig().Execution.MaxParallel {
		t.Error("missing config file should yield defaults")
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	os.Setenv("SQUAD_MAX_PARALLEL", "7")
	defer os.Unsetenv("SQUAD_MAX_PARALLEL")

	os.Setenv("SQUAD_APPROVAL_MODE", "auto-deny")
	defer os.Unsetenv("SQUAD_APPROVAL_MODE")

	os.Setenv("SQUAD_DEBUG", "true")
	defer os.Unsetenv("SQUAD_DEBUG")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Execution.MaxParallel != 7 {
		t.Errorf("expected MaxParallel=7, got %d", cfg.Execution.MaxParallel)
	}
	if cfg.Approval.Mode != "auto-deny" {
		t.Errorf("expected approval mode=auto-deny, got %s", cfg.Approval.Mode)
	}
	if !cfg.Logging.Debug {
		t.Error("expected Logging.Debug=true")
	}
}

func TestConfig_EnvOverrideInvalidValues(t *testing.T) {
	os.Setenv("SQUAD_MAX_PARALLEL", "not-a-number")
	defer os.Unsetenv("SQUAD_MAX_PARALLEL")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Execution.MaxParallel != 3 {
		t.Errorf("invalid env value should keep default, got %d", cfg.Execution.MaxParallel)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid, got: %v", err)
	}

	cfg.Execution.MaxParallel = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for max_parallel=0")
	}

	cfg = DefaultConfig()
	cfg.Approval.Mode = "ask-nicely"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid approval mode")
	}

	cfg = DefaultConfig()
	cfg.History.RetentionDays = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative retention")
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.GetAgentTimeout() != 5*time.Minute {
		t.Errorf("expected agent timeout 5m, got %v", cfg.GetAgentTimeout())
	}
	if cfg.GetToolTimeout() != 60*time.Second {
		t.Errorf("expected tool timeout 60s, got %v", cfg.GetToolTimeout())
	}

	cfg.Execution.ToolTimeout = "garbage"
	if cfg.GetToolTimeout() != 60*time.Second {
		t.Error("unparseable timeout should fall back to 60s")
	}
}
