package tools

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenbot/wren/pkg/cron"
)

func newCronTool(t *testing.T) *CronTool {
	t.Helper()
	svc := cron.NewService(filepath.Join(t.TempDir(), "jobs.json"), nil)
	return NewCronTool(svc)
}

func TestCronToolAddAndList(t *testing.T) {
	tool := newCronTool(t)
	tool.Bind("telegram", "42")

	out, err := tool.Execute(map[string]any{
		"action":        "add",
		"message":       "drink water",
		"every_seconds": float64(3600),
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Added job")

	out, err = tool.Execute(map[string]any{"action": "list"})
	require.NoError(t, err)
	assert.Contains(t, out, "drink water")
	assert.Contains(t, out, "every 1h0m0s")

	jobs := tool.Service.List(true)
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Payload.Deliver)
	assert.Equal(t, "telegram", jobs[0].Payload.Channel)
	assert.Equal(t, "42", jobs[0].Payload.To)
}

func TestCronToolAddOneShotDeletesAfterRun(t *testing.T) {
	tool := newCronTool(t)
	tool.Bind("cli", "direct")

	out, err := tool.Execute(map[string]any{
		"action":  "add",
		"message": "meeting starts",
		"at":      "2030-01-01T09:00:00Z",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Added job")

	jobs := tool.Service.List(true)
	require.Len(t, jobs, 1)
	assert.Equal(t, cron.KindAt, jobs[0].Schedule.Kind)
	assert.True(t, jobs[0].DeleteAfterRun)
}

func TestCronToolAddValidation(t *testing.T) {
	tool := newCronTool(t)
	tool.Bind("cli", "direct")

	out, err := tool.Execute(map[string]any{"action": "add", "message": "x"})
	require.NoError(t, err)
	assert.Contains(t, out, "exactly one of")

	out, err = tool.Execute(map[string]any{
		"action": "add", "message": "x",
		"every_seconds": float64(60), "cron": "0 9 * * *",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "exactly one of")

	out, err = tool.Execute(map[string]any{"action": "add", "message": "x", "at": "tomorrow"})
	require.NoError(t, err)
	assert.Contains(t, out, "invalid at time")

	out, err = tool.Execute(map[string]any{"action": "add", "every_seconds": float64(60)})
	require.NoError(t, err)
	assert.Contains(t, out, "requires a message")
}

func TestCronToolAddUnboundRefusesDelivery(t *testing.T) {
	tool := newCronTool(t)

	out, err := tool.Execute(map[string]any{
		"action": "add", "message": "x", "every_seconds": float64(60),
	})
	require.NoError(t, err)
	assert.Contains(t, out, "no chat is bound")

	// Without delivery the binding does not matter.
	out, err = tool.Execute(map[string]any{
		"action": "add", "message": "x", "every_seconds": float64(60), "deliver": false,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Added job")
}

func TestCronToolRemoveEnableDisable(t *testing.T) {
	tool := newCronTool(t)
	tool.Bind("cli", "direct")

	_, err := tool.Execute(map[string]any{
		"action": "add", "message": "tick", "every_seconds": float64(60),
	})
	require.NoError(t, err)
	id := tool.Service.List(true)[0].ID

	out, err := tool.Execute(map[string]any{"action": "disable", "job_id": id})
	require.NoError(t, err)
	assert.Contains(t, out, "Disabled job "+id)

	out, err = tool.Execute(map[string]any{"action": "enable", "job_id": id})
	require.NoError(t, err)
	assert.Contains(t, out, "Enabled job "+id)

	out, err = tool.Execute(map[string]any{"action": "remove", "job_id": id})
	require.NoError(t, err)
	assert.Contains(t, out, "Removed job "+id)

	out, err = tool.Execute(map[string]any{"action": "remove", "job_id": id})
	require.NoError(t, err)
	assert.Contains(t, out, "no job with ID")
}
