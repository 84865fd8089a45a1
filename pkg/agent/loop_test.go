package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/config"
	"github.com/wrenbot/wren/pkg/providers"
	"github.com/wrenbot/wren/pkg/session"
)

// scriptedProvider returns canned responses in order and records every
// message list it was called with.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*providers.LLMResponse
	err       error
	calls     [][]map[string]any
}

func (p *scriptedProvider) Chat(_ context.Context, messages []map[string]any, _ []map[string]any, _ string) (*providers.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, messages)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return &providers.LLMResponse{Content: "default response", FinishReason: "stop"}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *scriptedProvider) DefaultModel() string { return "scripted" }

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestLoop(t *testing.T, provider providers.LLMProvider) (*AgentLoop, *bus.MessageBus) {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Workspace = workspace

	b := bus.NewMessageBus()
	return NewAgentLoop(b, provider, workspace, cfg, nil), b
}

func startLoop(t *testing.T, l *AgentLoop) {
	t.Helper()
	go l.Run()
	t.Cleanup(l.Stop)
}

func TestPlainChatTurn(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.LLMResponse{
		{Content: "Hello! How can I help?", FinishReason: "stop"},
	}}
	l, b := newTestLoop(t, provider)
	startLoop(t, l)

	b.PublishInbound(bus.InboundMessage{
		Channel: "telegram", SenderID: "alice", ChatID: "42", Content: "hi",
	})

	out, ok := b.ConsumeOutbound(5 * time.Second)
	require.True(t, ok)
	assert.Equal(t, "telegram", out.Channel)
	assert.Equal(t, "42", out.ChatID)
	assert.Equal(t, "Hello! How can I help?", out.Content)

	sess := l.Sessions.GetOrCreate("telegram:42")
	require.Len(t, sess.History, 2)
	assert.Equal(t, session.RoleUser, sess.History[0].Role)
	assert.Equal(t, "hi", sess.History[0].Content)
	assert.Equal(t, session.RoleAssistant, sess.History[1].Role)
}

func TestToolCallTurnPersistsFullTrace(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.LLMResponse{
		{
			ToolCalls: []providers.ToolCallRequest{
				{ID: "call_1", Name: "list_dir", Arguments: map[string]any{"path": "."}},
			},
			FinishReason: "tool_calls",
		},
		{Content: "Your workspace is empty.", FinishReason: "stop"},
	}}
	l, b := newTestLoop(t, provider)
	startLoop(t, l)

	b.PublishInbound(bus.InboundMessage{
		Channel: "cli", SenderID: "user", ChatID: "direct", Content: "what's in my workspace?",
	})

	out, ok := b.ConsumeOutbound(5 * time.Second)
	require.True(t, ok)
	assert.Equal(t, "Your workspace is empty.", out.Content)

	// Session carries the whole trace in order.
	sess := l.Sessions.GetOrCreate("cli:direct")
	require.Len(t, sess.History, 4)
	assert.Equal(t, session.RoleUser, sess.History[0].Role)
	assert.Equal(t, session.RoleAssistant, sess.History[1].Role)
	require.Len(t, sess.History[1].ToolCalls, 1)
	assert.Equal(t, "list_dir", sess.History[1].ToolCalls[0].Name)
	assert.Equal(t, session.RoleTool, sess.History[2].Role)
	assert.Equal(t, "call_1", sess.History[2].ToolCallID)
	assert.Equal(t, session.RoleAssistant, sess.History[3].Role)
	assert.Empty(t, sess.History[3].ToolCalls)
}

func TestNewTopicClearsSession(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.LLMResponse{
		{Content: "noted", FinishReason: "stop"},
	}}
	l, b := newTestLoop(t, provider)
	startLoop(t, l)

	b.PublishInbound(bus.InboundMessage{Channel: "telegram", SenderID: "a", ChatID: "7", Content: "remember this"})
	_, ok := b.ConsumeOutbound(5 * time.Second)
	require.True(t, ok)

	b.PublishInbound(bus.InboundMessage{Channel: "telegram", SenderID: "a", ChatID: "7", Content: "/new"})
	out, ok := b.ConsumeOutbound(5 * time.Second)
	require.True(t, ok)
	assert.Contains(t, out.Content, "new topic")

	// The clear command itself does not reach the model.
	assert.Equal(t, 1, provider.callCount())
	assert.Empty(t, l.Sessions.GetOrCreate("telegram:7").History)
}

func TestLLMErrorSendsApologyAndPersistsNothing(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("backend unavailable")}
	l, b := newTestLoop(t, provider)
	startLoop(t, l)

	b.PublishInbound(bus.InboundMessage{Channel: "discord", SenderID: "bob", ChatID: "9", Content: "hello"})

	out, ok := b.ConsumeOutbound(5 * time.Second)
	require.True(t, ok)
	assert.Equal(t, "discord", out.Channel)
	assert.Contains(t, out.Content, "Sorry, I encountered an error")
	assert.Contains(t, out.Content, "backend unavailable")

	assert.Empty(t, l.Sessions.GetOrCreate("discord:9").History)
}

func TestSubagentAnnounceRoutesToOrigin(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.LLMResponse{
		// Worker's own loop finishes in one shot.
		{Content: "Research finished: three findings.", FinishReason: "stop"},
		// Main agent summarizes the announce.
		{Content: "The background research is done: three findings.", FinishReason: "stop"},
	}}
	l, b := newTestLoop(t, provider)
	startLoop(t, l)

	ack := l.Subagents.Spawn("research the topic", "research", "telegram", "42")
	assert.Contains(t, ack, "started")

	out, ok := b.ConsumeOutbound(5 * time.Second)
	require.True(t, ok)
	assert.Equal(t, "telegram", out.Channel)
	assert.Equal(t, "42", out.ChatID)
	assert.Equal(t, "The background research is done: three findings.", out.Content)

	// The announce landed in the origin conversation's session.
	sess := l.Sessions.GetOrCreate("telegram:42")
	require.Len(t, sess.History, 2)
	assert.Contains(t, sess.History[0].Content, "[system: subagent]")
}

func TestSubagentConcurrencyCap(t *testing.T) {
	block := make(chan struct{})
	provider := &blockingProvider{block: block}
	l, _ := newTestLoop(t, provider)
	l.Subagents.MaxConcurrent = 2

	assert.Contains(t, l.Subagents.Spawn("a", "", "cli", "direct"), "started")
	assert.Contains(t, l.Subagents.Spawn("b", "", "cli", "direct"), "started")
	assert.Contains(t, l.Subagents.Spawn("c", "", "cli", "direct"), "already running")
	assert.Equal(t, 2, l.Subagents.RunningCount())

	close(block)
}

// blockingProvider parks every Chat call until released.
type blockingProvider struct {
	block chan struct{}
}

func (p *blockingProvider) Chat(context.Context, []map[string]any, []map[string]any, string) (*providers.LLMResponse, error) {
	<-p.block
	return &providers.LLMResponse{Content: "done", FinishReason: "stop"}, nil
}

func (p *blockingProvider) DefaultModel() string { return "blocking" }

func TestProcessDirectReturnsWithoutPublishing(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.LLMResponse{
		{Content: "Daily summary ready.", FinishReason: "stop"},
	}}
	l, b := newTestLoop(t, provider)

	resp, err := l.ProcessDirect("write my daily summary", "cron:job1")
	require.NoError(t, err)
	assert.Equal(t, "Daily summary ready.", resp)
	assert.Zero(t, b.OutboundPending())

	sess := l.Sessions.GetOrCreate("cron:job1")
	require.Len(t, sess.History, 2)
}

func TestIterationBudgetFallback(t *testing.T) {
	// The model asks for tools forever; the loop gives up after the budget
	// and falls back to a canned response.
	var responses []*providers.LLMResponse
	for i := 0; i < 30; i++ {
		responses = append(responses, &providers.LLMResponse{
			ToolCalls:    []providers.ToolCallRequest{{ID: "c", Name: "list_dir", Arguments: map[string]any{"path": "."}}},
			FinishReason: "tool_calls",
		})
	}
	provider := &scriptedProvider{responses: responses}
	l, _ := newTestLoop(t, provider)
	l.MaxIterations = 3

	resp, err := l.ProcessDirect("loop forever", "cli:direct")
	require.NoError(t, err)
	assert.Equal(t, fallbackResponse, resp)
	assert.Equal(t, 3, provider.callCount())
}
