package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"codesquad/internal/logging"
	"codesquad/internal/tools"
)

const maxCommandOutput = 50000

// RunCommandTool executes a shell command. Commands run through the
// platform shell, so pipes and redirects work.
func RunCommandTool() *tools.Tool {
	return &tools.Tool{
		Name:             "run_command",
		Description:      "Execute a shell command and return its output",
		Category:         tools.CategoryShell,
		RiskLevel:        tools.RiskHigh,
		RequiresApproval: true,
		Mutating:         true,
		Priority:         70,
		TimeoutSeconds:   60,
		Handler:          runCommand,
		Schema: tools.Schema{
			Required: []string{"command"},
			Properties: map[string]tools.Property{
				"command": {
					Type:        "string",
					Description: "The command to execute",
				},
				"working_dir": {
					Type:        "string",
					Description: "Working directory for the command (default: call working directory)",
				},
				"timeout_seconds": {
					Type:        "integer",
					Description: "Timeout in seconds (default: 60)",
					Default:     60,
				},
				"env": {
					Type:        "object",
					Description: "Additional environment variables",
				},
			},
		},
	}
}

func runCommand(ctx context.Context, args map[string]any, tc *tools.Context) (string, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}

	if denied := deniedBinary(command, tc.DeniedBinaries); denied != "" {
		return "", fmt.Errorf("command uses denied binary: %s", denied)
	}

	workingDir := tc.WorkingDir
	if wd, ok := args["working_dir"].(string); ok && wd != "" {
		if filepath.IsAbs(wd) {
			workingDir = wd
		} else {
			workingDir = filepath.Join(tc.WorkingDir, wd)
		}
	}

	timeout := 60
	switch t := args["timeout_seconds"].(type) {
	case int:
		if t > 0 {
			timeout = t
		}
	case float64:
		if t > 0 {
			timeout = int(t)
		}
	}

	logging.ToolsDebug("run_command: cmd=%s, dir=%s, timeout=%ds", command, workingDir, timeout)

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(execCtx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(execCtx, "sh", "-c", command)
	}
	cmd.Dir = workingDir

	cmd.Env = os.Environ()
	if envMap, ok := args["env"].(map[string]any); ok {
		for k, v := range envMap {
			if vs, ok := v.(string); ok {
				cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, vs))
			}
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n--- stderr ---\n"
		}
		output += stderr.String()
	}
	if len(output) > maxCommandOutput {
		output = output[:maxCommandOutput] + "\n...[truncated]"
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return output, fmt.Errorf("command timed out after %d seconds", timeout)
		}
		logging.Tools("run_command failed: %s (%v)", command, err)
		return output, fmt.Errorf("command failed: %w\nOutput:\n%s", err, output)
	}

	logging.Tools("run_command completed: %s (%d bytes output)", command, len(output))
	return output, nil
}

// deniedBinary reports the first token of the command that names a denied
// binary. Paths are reduced to their base name before comparison.
func deniedBinary(command string, denied []string) string {
	if len(denied) == 0 {
		return ""
	}
	blocked := make(map[string]bool, len(denied))
	for _, name := range denied {
		blocked[name] = true
	}
	for _, token := range strings.Fields(command) {
		base := filepath.Base(strings.Trim(token, `"'`))
		if blocked[base] {
			return base
		}
	}
	return ""
}

// RunBuildTool runs the project build, auto-detecting the command from
// the build files present.
func RunBuildTool() *tools.Tool {
	return &tools.Tool{
		Name:             "run_build",
		Description:      "Run the project build command",
		Category:         tools.CategoryShell,
		RiskLevel:        tools.RiskMedium,
		Mutating:         true,
		Priority:         75,
		TimeoutSeconds:   300,
		Handler:          runBuild,
		Schema: tools.Schema{
			Required: []string{},
			Properties: map[string]tools.Property{
				"working_dir": {
					Type:        "string",
					Description: "Project directory (default: call working directory)",
				},
				"command": {
					Type:        "string",
					Description: "Custom build command (auto-detected if not specified)",
				},
				"timeout_seconds": {
					Type:        "integer",
					Description: "Timeout in seconds (default: 300)",
					Default:     300,
				},
			},
		},
	}
}

func runBuild(ctx context.Context, args map[string]any, tc *tools.Context) (string, error) {
	workingDir := tc.WorkingDir
	if wd, ok := args["working_dir"].(string); ok && wd != "" {
		workingDir = wd
	}

	command, _ := args["command"].(string)
	if command == "" {
		command = detectBuildCommand(workingDir)
		if command == "" {
			return "", fmt.Errorf("could not detect build command, please specify one")
		}
	}

	logging.ToolsDebug("run_build: cmd=%s, dir=%s", command, workingDir)

	return runCommand(ctx, map[string]any{
		"command":         command,
		"working_dir":     workingDir,
		"timeout_seconds": args["timeout_seconds"],
	}, tc)
}

func detectBuildCommand(dir string) string {
	checks := []struct {
		file    string
		command string
	}{
		{"go.mod", "go build ./..."},
		{"Cargo.toml", "cargo build"},
		{"package.json", "npm run build"},
		{"Makefile", "make"},
		{"build.gradle", "./gradlew build"},
		{"pom.xml", "mvn package"},
		{"CMakeLists.txt", "cmake --build ."},
		{"pyproject.toml", "python -m build"},
	}

	for _, check := range checks {
		if _, err := os.Stat(filepath.Join(dir, check.file)); err == nil {
			return check.command
		}
	}
	return ""
}

// RunTestsTool runs the project test suite, auto-detecting the command.
func RunTestsTool() *tools.Tool {
	return &tools.Tool{
		Name:           "run_tests",
		Description:    "Run the project test suite",
		Category:       tools.CategoryShell,
		RiskLevel:      tools.RiskMedium,
		Mutating:       true,
		Priority:       75,
		TimeoutSeconds: 600,
		Handler:        runTests,
		Schema: tools.Schema{
			Required: []string{},
			Properties: map[string]tools.Property{
				"working_dir": {
					Type:        "string",
					Description: "Project directory (default: call working directory)",
				},
				"command": {
					Type:        "string",
					Description: "Custom test command (auto-detected if not specified)",
				},
				"pattern": {
					Type:        "string",
					Description: "Test pattern/filter to run specific tests",
				},
				"timeout_seconds": {
					Type:        "integer",
					Description: "Timeout in seconds (default: 600)",
					Default:     600,
				},
			},
		},
	}
}

func runTests(ctx context.Context, args map[string]any, tc *tools.Context) (string, error) {
	workingDir := tc.WorkingDir
	if wd, ok := args["working_dir"].(string); ok && wd != "" {
		workingDir = wd
	}

	command, _ := args["command"].(string)
	pattern, _ := args["pattern"].(string)

	if command == "" {
		command = detectTestCommand(workingDir)
		if command == "" {
			return "", fmt.Errorf("could not detect test command, please specify one")
		}
	}
	if pattern != "" {
		command = addTestPattern(command, pattern)
	}

	logging.ToolsDebug("run_tests: cmd=%s, dir=%s", command, workingDir)

	return runCommand(ctx, map[string]any{
		"command":         command,
		"working_dir":     workingDir,
		"timeout_seconds": args["timeout_seconds"],
	}, tc)
}

func detectTestCommand(dir string) string {
	checks := []struct {
		file    string
		command string
	}{
		{"go.mod", "go test ./..."},
		{"Cargo.toml", "cargo test"},
		{"package.json", "npm test"},
		{"pytest.ini", "pytest"},
		{"pyproject.toml", "pytest"},
		{"build.gradle", "./gradlew test"},
		{"pom.xml", "mvn test"},
	}

	for _, check := range checks {
		if _, err := os.Stat(filepath.Join(dir, check.file)); err == nil {
			return check.command
		}
	}
	return ""
}

func addTestPattern(command, pattern string) string {
	if strings.HasPrefix(command, "go test") {
		return command + " -run " + pattern
	}
	if strings.HasPrefix(command, "pytest") {
		return command + " -k " + pattern
	}
	if strings.HasPrefix(command, "npm test") {
		return command + " -- --grep " + pattern
	}
	return command + " " + pattern
}
