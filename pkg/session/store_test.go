package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateRoundTrip(t *testing.T) {
	workspace := t.TempDir()
	st := NewStore(workspace)

	sess := st.GetOrCreate("telegram:42")
	sess.Append(UserTurn("hello"), AssistantTurn("hi", nil))
	require.NoError(t, st.Save(sess))

	// Fresh store re-reads from disk.
	loaded := NewStore(workspace).GetOrCreate("telegram:42")
	require.Len(t, loaded.History, 2)
	assert.Equal(t, "hello", loaded.History[0].Content)
	assert.Equal(t, RoleAssistant, loaded.History[1].Role)
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "telegram_42.json", SafeFilename("telegram:42"))
	assert.Equal(t, "a_b_c_d_e_f_g_h_i.json", SafeFilename(`a<b>c:d"e/f\g|h?i`))
}

func TestMalformedFileTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir)
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir, SafeFilename("cli:direct")), []byte("{not json"), 0o644))

	sess := st.GetOrCreate("cli:direct")
	assert.Empty(t, sess.History)

	// Next save overwrites the corrupt file.
	sess.Append(UserTurn("hi"))
	require.NoError(t, st.Save(sess))
	st2 := NewStore(dir)
	assert.Len(t, st2.GetOrCreate("cli:direct").History, 1)
}

func TestWireHistoryShape(t *testing.T) {
	sess := NewSession("cli:direct")
	sess.Append(
		UserTurn("read foo"),
		AssistantTurn("", []ToolCall{{ID: "t1", Name: "read_file", Arguments: map[string]any{"path": "foo.txt"}}}),
		ToolTurn("t1", "read_file", "CONTENTS"),
		AssistantTurn("got it", nil),
	)

	wire := sess.WireHistory(0)
	require.Len(t, wire, 4)

	calls, ok := wire[1]["tool_calls"].([]any)
	require.True(t, ok)
	require.Len(t, calls, 1)
	call := calls[0].(map[string]any)
	assert.Equal(t, "t1", call["id"])
	fn := call["function"].(map[string]any)
	assert.Equal(t, "read_file", fn["name"])
	// Arguments are a JSON string, not an object.
	assert.Equal(t, `{"path":"foo.txt"}`, fn["arguments"])

	assert.Equal(t, "t1", wire[2]["tool_call_id"])
	assert.Equal(t, "read_file", wire[2]["name"])
	assert.Equal(t, "CONTENTS", wire[2]["content"])
}

func TestWireHistoryRoundTripsThroughDisk(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir)
	sess := st.GetOrCreate("cli:direct")
	sess.Append(
		UserTurn("go"),
		AssistantTurn("", []ToolCall{{ID: "a", Name: "exec", Arguments: map[string]any{"command": "ls"}}}),
		ToolTurn("a", "exec", "out"),
		AssistantTurn("done", nil),
	)
	require.NoError(t, st.Save(sess))

	loaded := NewStore(dir).GetOrCreate("cli:direct")
	assert.Equal(t, sess.WireHistory(0), loaded.WireHistory(0))
}

func TestWireHistoryTruncationSkipsDanglingToolResult(t *testing.T) {
	sess := NewSession("cli:direct")
	sess.Append(
		UserTurn("one"),
		AssistantTurn("", []ToolCall{{ID: "t1", Name: "exec", Arguments: map[string]any{}}}),
		ToolTurn("t1", "exec", "x"),
		AssistantTurn("ok", nil),
	)

	// Truncating to the last 3 turns would start on a tool result, which the
	// provider rejects; the dangling turn must be dropped.
	wire := sess.WireHistory(3)
	require.NotEmpty(t, wire)
	assert.NotEqual(t, RoleTool, wire[0]["role"])
}
