package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemPromptIdentity(t *testing.T) {
	c := NewContextBuilder(t.TempDir())
	prompt := c.BuildSystemPrompt()

	assert.Contains(t, prompt, "You are wren")
	assert.Contains(t, prompt, "## Current Time")
	assert.Contains(t, prompt, "## Workspace")
}

func TestBootstrapFilesLoadedInOrder(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "SOUL.md"), []byte("Be cheerful."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "AGENTS.md"), []byte("Follow the rules."), 0o644))
	// Not a bootstrap file, must not appear.
	require.NoError(t, os.WriteFile(filepath.Join(ws, "README.md"), []byte("ignore me"), 0o644))

	prompt := NewContextBuilder(ws).BuildSystemPrompt()

	iAgents := strings.Index(prompt, "## AGENTS.md")
	iSoul := strings.Index(prompt, "## SOUL.md")
	require.GreaterOrEqual(t, iAgents, 0)
	require.GreaterOrEqual(t, iSoul, 0)
	assert.Less(t, iAgents, iSoul, "AGENTS.md comes before SOUL.md")
	assert.NotContains(t, prompt, "ignore me")
}

func TestMemoryAppearsInPrompt(t *testing.T) {
	ws := t.TempDir()
	c := NewContextBuilder(ws)
	require.NoError(t, c.Memory.WriteLongTerm("User's name is Alice."))

	prompt := c.BuildSystemPrompt()
	assert.Contains(t, prompt, "# Memory")
	assert.Contains(t, prompt, "User's name is Alice.")
}

func TestBuildMessagesShape(t *testing.T) {
	c := NewContextBuilder(t.TempDir())

	history := []map[string]any{
		{"role": "user", "content": "earlier"},
		{"role": "assistant", "content": "earlier reply"},
	}
	messages := c.BuildMessages(history, "now", nil, "telegram", "42")

	require.Len(t, messages, 4)
	assert.Equal(t, "system", messages[0]["role"])
	assert.Contains(t, messages[0]["content"].(string), "Channel: telegram")
	assert.Contains(t, messages[0]["content"].(string), "Chat ID: 42")
	assert.Equal(t, "earlier", messages[1]["content"])
	assert.Equal(t, "now", messages[3]["content"])
}

func TestBuildMessagesWithImageMedia(t *testing.T) {
	ws := t.TempDir()
	img := filepath.Join(ws, "photo.png")
	require.NoError(t, os.WriteFile(img, []byte("fakepng"), 0o644))

	c := NewContextBuilder(ws)
	messages := c.BuildMessages(nil, "what's this?", []string{img}, "", "")

	user := messages[len(messages)-1]
	content, ok := user["content"].([]map[string]any)
	require.True(t, ok, "image media produces a content list")
	require.Len(t, content, 2)
	assert.Equal(t, "image_url", content[0]["type"])
	assert.Equal(t, "text", content[1]["type"])
}

func TestBuildMessagesNonImageMediaFallsBackToText(t *testing.T) {
	ws := t.TempDir()
	doc := filepath.Join(ws, "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("text"), 0o644))

	c := NewContextBuilder(ws)
	messages := c.BuildMessages(nil, "read this", []string{doc}, "", "")

	user := messages[len(messages)-1]
	assert.Equal(t, "read this", user["content"])
}
