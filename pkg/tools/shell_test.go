package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecCapturesOutput(t *testing.T) {
	tool := NewExecTool(10*time.Second, t.TempDir(), false)

	out, err := tool.Execute(map[string]any{"command": "echo hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestExecStderrAndExitCode(t *testing.T) {
	tool := NewExecTool(10*time.Second, t.TempDir(), false)

	out, err := tool.Execute(map[string]any{"command": "echo out; echo err >&2; exit 3"})
	require.NoError(t, err)
	assert.Contains(t, out, "out\n")
	assert.Contains(t, out, "STDERR:\nerr\n")
	assert.Contains(t, out, "Exit code: 3")
}

func TestExecNoOutput(t *testing.T) {
	tool := NewExecTool(10*time.Second, t.TempDir(), false)

	out, err := tool.Execute(map[string]any{"command": "true"})
	require.NoError(t, err)
	assert.Equal(t, "(no output)", out)
}

func TestExecTimeout(t *testing.T) {
	tool := NewExecTool(200*time.Millisecond, t.TempDir(), false)

	out, err := tool.Execute(map[string]any{"command": "sleep 5"})
	require.NoError(t, err)
	assert.Contains(t, out, "timed out after 200ms")
}

func TestExecTruncation(t *testing.T) {
	tool := NewExecTool(10*time.Second, t.TempDir(), false)
	tool.MaxOutput = 50

	out, err := tool.Execute(map[string]any{"command": "yes x | head -n 100"})
	require.NoError(t, err)
	assert.Len(t, out, 50+len("\n... (truncated, 150 more chars)"))
	assert.Contains(t, out, "... (truncated,")
}

func TestGuardBlocksDangerousCommands(t *testing.T) {
	tool := NewExecTool(time.Second, t.TempDir(), true)

	for _, cmd := range []string{
		"rm -rf /",
		"sudo shutdown now",
		"dd if=/dev/zero of=/dev/sda",
	} {
		out, err := tool.Execute(map[string]any{"command": cmd})
		require.NoError(t, err)
		assert.Contains(t, out, "blocked by safety guard", "command: %s", cmd)
	}

	out, err := tool.Execute(map[string]any{"command": "cat ../secrets.txt"})
	require.NoError(t, err)
	assert.Contains(t, out, "path traversal")
}

func TestGuardAllowsTraversalWhenUnrestricted(t *testing.T) {
	tool := NewExecTool(time.Second, t.TempDir(), false)

	out, err := tool.Execute(map[string]any{"command": "echo ../fine"})
	require.NoError(t, err)
	assert.Equal(t, "../fine\n", out)
}
