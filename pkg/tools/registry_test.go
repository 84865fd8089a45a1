package tools

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name   string
	result string
	err    error
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake tool" }
func (f *fakeTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (f *fakeTool) Execute(map[string]any) (string, error) { return f.result, f.err }

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "alpha", result: "a"})
	reg.Register(&fakeTool{name: "beta", result: "b"})

	got, ok := reg.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Name())

	_, ok = reg.Get("gamma")
	assert.False(t, ok)

	assert.Equal(t, []string{"alpha", "beta"}, reg.Names())
}

func TestRegistryExecuteNeverFails(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "ok", result: "done"})
	reg.Register(&fakeTool{name: "broken", err: errors.New("boom")})

	assert.Equal(t, "done", reg.Execute("ok", nil))
	assert.Equal(t, "Error: boom", reg.Execute("broken", nil))
	assert.Equal(t, "Error: unknown tool: nope", reg.Execute("nope", nil))
}

func TestDefinitionsShape(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "zeta"})
	reg.Register(&fakeTool{name: "alpha"})

	defs := reg.Definitions()
	require.Len(t, defs, 2)

	// Stable sorted order, OpenAI function format.
	first := defs[0]["function"].(map[string]any)
	assert.Equal(t, "function", defs[0]["type"])
	assert.Equal(t, "alpha", first["name"])
	assert.NotNil(t, first["parameters"])
}
