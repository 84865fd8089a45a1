package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// ExecTool runs shell commands with a wall-clock timeout. The child process
// is killed when the timeout elapses; stdout and stderr are captured and
// output is truncated above MaxOutput with a visible marker.
type ExecTool struct {
	Timeout             time.Duration
	WorkingDir          string
	RestrictToWorkspace bool
	MaxOutput           int

	denyPatterns []*regexp.Regexp
}

var defaultDenyPatterns = []string{
	`\brm\s+-[rf]{1,2}\b`,
	`\b(mkfs|diskpart)\b`,
	`\bdd\s+if=`,
	`>\s*/dev/sd`,
	`\b(shutdown|reboot|poweroff)\b`,
	`:\(\)\s*\{.*\};\s*:`,
}

// NewExecTool creates an ExecTool.
func NewExecTool(timeout time.Duration, workingDir string, restrict bool) *ExecTool {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	t := &ExecTool{
		Timeout:             timeout,
		WorkingDir:          workingDir,
		RestrictToWorkspace: restrict,
		MaxOutput:           10000,
	}
	for _, p := range defaultDenyPatterns {
		t.denyPatterns = append(t.denyPatterns, regexp.MustCompile(p))
	}
	return t
}

func (t *ExecTool) Name() string { return "exec" }
func (t *ExecTool) Description() string {
	return "Execute a shell command and return its output. Use with caution."
}

func (t *ExecTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command":     map[string]any{"type": "string", "description": "The shell command to execute"},
			"working_dir": map[string]any{"type": "string", "description": "Optional working directory for the command"},
		},
		"required": []string{"command"},
	}
}

func (t *ExecTool) Execute(args map[string]any) (string, error) {
	command, err := strArg(args, "command")
	if err != nil {
		return "", err
	}

	workingDir := t.WorkingDir
	if wd, ok := args["working_dir"].(string); ok && wd != "" {
		workingDir = expandPath(wd)
	}
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}

	if msg := t.guard(command); msg != "" {
		return msg, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = workingDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("Error: command timed out after %s", t.Timeout), nil
	}

	var sb strings.Builder
	sb.WriteString(stdout.String())
	if stderr.Len() > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\nSTDERR:\n")
		}
		sb.WriteString(stderr.String())
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			fmt.Fprintf(&sb, "\nExit code: %d", exitErr.ExitCode())
		} else {
			return fmt.Sprintf("Error executing command: %v", runErr), nil
		}
	}

	out := sb.String()
	if out == "" {
		out = "(no output)"
	}
	if len(out) > t.MaxOutput {
		out = out[:t.MaxOutput] + fmt.Sprintf("\n... (truncated, %d more chars)", len(out)-t.MaxOutput)
	}
	return out, nil
}

// guard returns a refusal string for obviously destructive commands, and
// for path traversal when the workspace restriction is on. Shell commands
// cannot be reliably parsed; this is a tripwire, not a sandbox.
func (t *ExecTool) guard(command string) string {
	lower := strings.ToLower(strings.TrimSpace(command))
	for _, p := range t.denyPatterns {
		if p.MatchString(lower) {
			return "Error: command blocked by safety guard (dangerous pattern detected)"
		}
	}
	if t.RestrictToWorkspace && (strings.Contains(command, "../") || strings.Contains(command, `..\`)) {
		return "Error: command blocked by safety guard (path traversal detected)"
	}
	return ""
}
