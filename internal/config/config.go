package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all codeSQUAD configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Execution settings
	Execution ExecutionConfig `yaml:"execution"`

	// Approval gate settings
	Approval ApprovalConfig `yaml:"approval"`

	// Checkpoint storage
	Checkpoints CheckpointConfig `yaml:"checkpoints"`

	// Sandbox allocation
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Execution history store
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ExecutionConfig configures agent and tool execution.
type ExecutionConfig struct {
	// Maximum agents running concurrently
	MaxParallel int `yaml:"max_parallel"`

	// Default per-agent timeout
	AgentTimeout string `yaml:"agent_timeout"`

	// Default per-tool-call timeout
	ToolTimeout string `yaml:"tool_timeout"`

	// Maximum captured output per tool call, in bytes
	MaxOutputSize int `yaml:"max_output_size"`

	// Binaries shell tools refuse to run (destructive commands)
	DeniedBinaries []string `yaml:"denied_binaries"`

	// Environment variables passed through to subprocesses
	AllowedEnvVars []string `yaml:"allowed_env_vars"`

	// Working directory
	WorkingDirectory string `yaml:"working_directory"`
}

// ApprovalConfig configures the approval gate.
type ApprovalConfig struct {
	// Mode: prompt, auto-approve, auto-deny
	Mode string `yaml:"mode"`

	// Auto-approve low risk operations without prompting
	AutoApproveLowRisk bool `yaml:"auto_approve_low_risk"`

	// How long a pending request waits before being denied
	Timeout string `yaml:"timeout"`

	// Tools approved without prompting regardless of risk
	AllowedTools []string `yaml:"allowed_tools"`
}

// CheckpointConfig configures checkpoint storage.
type CheckpointConfig struct {
	// Directory for checkpoint JSON files (relative to workspace)
	Dir string `yaml:"dir"`

	// Oldest checkpoints beyond this count are pruned per session
	MaxPerSession int `yaml:"max_per_session"`
}

// SandboxConfig configures per-agent sandbox directories.
type SandboxConfig struct {
	// Root directory for sandboxes (relative to workspace)
	Dir string `yaml:"dir"`

	// Keep a failed agent's sandbox for inspection instead of removing it
	KeepOnFailure bool `yaml:"keep_on_failure"`
}

// HistoryConfig configures the execution history store.
type HistoryConfig struct {
	// SQLite database path (relative to workspace)
	Path string `yaml:"path"`

	// Rows older than this many days are pruned
	RetentionDays int `yaml:"retention_days"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	Debug      bool            `yaml:"debug"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "codeSQUAD",
		Version: "0.4.0",

		Execution: ExecutionConfig{
			MaxParallel:   3,
			AgentTimeout:  "5m",
			ToolTimeout:   "60s",
			MaxOutputSize: 50000,
			DeniedBinaries: []string{
				"rm", "rmdir", "dd", "mkfs", "shutdown", "reboot",
			},
			AllowedEnvVars:   []string{"PATH", "HOME", "GOPATH", "GOROOT", "LANG"},
			WorkingDirectory: ".",
		},

		Approval: ApprovalConfig{
			Mode:               "prompt",
			AutoApproveLowRisk: true,
			Timeout:            "120s",
			AllowedTools:       []string{},
		},

		Checkpoints: CheckpointConfig{
			Dir:           ".squad/checkpoints",
			MaxPerSession: 50,
		},

		Sandbox: SandboxConfig{
			Dir:           ".squad/sandboxes",
			KeepOnFailure: false,
		},

		History: HistoryConfig{
			Path:          ".squad/history.db",
			RetentionDays: 30,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default path to .squad/config.yaml.
func DefaultPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(".squad", "config.yaml")
	}
	return filepath.Join(cwd, ".squad", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SQUAD_MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Execution.MaxParallel = n
		}
	}
	if v := os.Getenv("SQUAD_AGENT_TIMEOUT"); v != "" {
		c.Execution.AgentTimeout = v
	}
	if v := os.Getenv("SQUAD_TOOL_TIMEOUT"); v != "" {
		c.Execution.ToolTimeout = v
	}
	if v := os.Getenv("SQUAD_APPROVAL_MODE"); v != "" {
		c.Approval.Mode = v
	}
	if v := os.Getenv("SQUAD_HISTORY_DB"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("SQUAD_SANDBOX_DIR"); v != "" {
		c.Sandbox.Dir = v
	}
	if v := os.Getenv("SQUAD_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.Debug = b
		}
	}
}

// GetAgentTimeout returns the default per-agent timeout as a duration.
func (c *Config) GetAgentTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.AgentTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetToolTimeout returns the default per-tool timeout as a duration.
func (c *Config) GetToolTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.ToolTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetApprovalTimeout returns the approval wait timeout as a duration.
func (c *Config) GetApprovalTimeout() time.Duration {
	d, err := time.ParseDuration(c.Approval.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// ValidApprovalModes lists all supported approval modes.
var ValidApprovalModes = []string{"prompt", "auto-approve", "auto-deny"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Execution.MaxParallel < 1 {
		return fmt.Errorf("execution.max_parallel must be at least 1, got %d", c.Execution.MaxParallel)
	}

	validMode := false
	for _, m := range ValidApprovalModes {
		if c.Approval.Mode == m {
			validMode = true
			break
		}
	}
	if !validMode {
		return fmt.Errorf("invalid approval mode: %s (valid: %v)", c.Approval.Mode, ValidApprovalModes)
	}

	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days cannot be negative, got %d", c.History.RetentionDays)
	}

	return nil
}
