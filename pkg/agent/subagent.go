package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/config"
	"github.com/wrenbot/wren/pkg/providers"
	"github.com/wrenbot/wren/pkg/tools"
)

// subagentMaxIterations bounds each worker's tool loop independently of the
// main agent's budget.
const subagentMaxIterations = 15

// SubagentManager runs background workers. Each worker gets its own message
// history and a reduced toolset: no message tool (workers report through the
// system channel) and no spawn tool (workers cannot fan out).
type SubagentManager struct {
	Provider      providers.LLMProvider
	Workspace     string
	Bus           *bus.MessageBus
	Model         string
	MaxConcurrent int
	BraveAPIKey   string
	ExecConfig    *config.ExecToolConfig

	mu      sync.Mutex
	running map[string]string // id -> label
}

// NewSubagentManager creates a SubagentManager.
func NewSubagentManager(provider providers.LLMProvider, workspace string, b *bus.MessageBus, model string, maxConcurrent int, braveAPIKey string, execConfig *config.ExecToolConfig) *SubagentManager {
	if model == "" && provider != nil {
		model = provider.DefaultModel()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	if execConfig == nil {
		execConfig = &config.ExecToolConfig{Timeout: 60, RestrictToWorkspace: true}
	}
	return &SubagentManager{
		Provider:      provider,
		Workspace:     workspace,
		Bus:           b,
		Model:         model,
		MaxConcurrent: maxConcurrent,
		BraveAPIKey:   braveAPIKey,
		ExecConfig:    execConfig,
		running:       make(map[string]string),
	}
}

// Spawn starts a worker for the task and returns an acknowledgment string.
// At the concurrency cap it refuses instead of queueing, so the model can
// tell the user to wait.
func (m *SubagentManager) Spawn(task, label, originChannel, originChatID string) string {
	if label == "" {
		label = task
		if len(label) > 30 {
			label = label[:30] + "..."
		}
	}

	m.mu.Lock()
	if len(m.running) >= m.MaxConcurrent {
		n := len(m.running)
		m.mu.Unlock()
		return fmt.Sprintf("Error: %d background tasks are already running. Wait for one to finish before spawning another.", n)
	}
	taskID := uuid.NewString()[:8]
	m.running[taskID] = label
	m.mu.Unlock()

	go m.runSubagent(taskID, task, label, originChannel, originChatID)

	slog.Info("spawned subagent", "id", taskID, "label", label)
	return fmt.Sprintf("Subagent [%s] started (id: %s). I'll notify you when it completes.", label, taskID)
}

// RunningCount returns the number of active workers.
func (m *SubagentManager) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

func (m *SubagentManager) runSubagent(taskID, task, label, originChannel, originChatID string) {
	defer func() {
		m.mu.Lock()
		delete(m.running, taskID)
		m.mu.Unlock()
	}()

	slog.Info("subagent starting", "id", taskID, "label", label)

	reg := m.buildRegistry()
	messages := []map[string]any{
		{"role": "system", "content": m.buildPrompt(task)},
		{"role": "user", "content": task},
	}

	var finalResult string
	for iteration := 0; iteration < subagentMaxIterations; iteration++ {
		resp, err := m.Provider.Chat(context.Background(), messages, reg.Definitions(), m.Model)
		if err != nil {
			slog.Error("subagent failed", "id", taskID, "error", err)
			m.announce(label, task, fmt.Sprintf("Error: %v", err), originChannel, originChatID, "failed")
			return
		}

		if !resp.HasToolCalls() {
			finalResult = resp.Content
			break
		}

		toolCalls := make([]any, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			toolCalls = append(toolCalls, map[string]any{
				"id":   tc.ID,
				"type": "function",
				"function": map[string]any{
					"name":      tc.Name,
					"arguments": marshalArgs(tc.Arguments),
				},
			})
		}
		messages = append(messages, map[string]any{
			"role":       "assistant",
			"content":    resp.Content,
			"tool_calls": toolCalls,
		})

		for _, tc := range resp.ToolCalls {
			slog.Info("subagent executing tool", "id", taskID, "tool", tc.Name)
			result := reg.Execute(tc.Name, tc.Arguments)
			messages = append(messages, map[string]any{
				"role":         "tool",
				"tool_call_id": tc.ID,
				"name":         tc.Name,
				"content":      result,
			})
		}
	}

	if finalResult == "" {
		finalResult = "Task completed but no final response was generated."
	}
	slog.Info("subagent completed", "id", taskID, "label", label)
	m.announce(label, task, finalResult, originChannel, originChatID, "completed successfully")
}

func (m *SubagentManager) buildRegistry() *tools.Registry {
	fileRoot := ""
	if m.ExecConfig.RestrictToWorkspace {
		fileRoot = m.Workspace
	}
	reg := tools.NewRegistry()
	reg.Register(&tools.ReadFileTool{Root: fileRoot})
	reg.Register(&tools.WriteFileTool{Root: fileRoot})
	reg.Register(&tools.AppendFileTool{Root: fileRoot})
	reg.Register(&tools.EditFileTool{Root: fileRoot})
	reg.Register(&tools.ListDirTool{Root: fileRoot})
	reg.Register(tools.NewExecTool(time.Duration(m.ExecConfig.Timeout)*time.Second, m.Workspace, m.ExecConfig.RestrictToWorkspace))
	reg.Register(tools.NewWebSearchTool(m.BraveAPIKey, 5))
	reg.Register(tools.NewWebFetchTool(50000))
	return reg
}

// announce feeds the worker's result back through the agent pipeline as a
// system-channel message so the main agent can summarize it in context.
func (m *SubagentManager) announce(label, task, result, originChannel, originChatID, status string) {
	content := fmt.Sprintf(`[Subagent '%s' %s]

Task: %s

Result:
%s

Summarize this naturally for the user. Keep it brief (1-2 sentences). Do not mention technical details like "subagent" or task IDs.`, label, status, task, result)

	m.Bus.PublishInbound(bus.InboundMessage{
		Channel:  bus.SystemChannel,
		SenderID: "subagent",
		ChatID:   bus.EncodeOrigin(originChannel, originChatID),
		Content:  content,
	})
}

func (m *SubagentManager) buildPrompt(task string) string {
	return fmt.Sprintf(`# Subagent

You are a subagent spawned by the main agent to complete a specific task.

## Your Task
%s

## Rules
1. Stay focused - complete only the assigned task, nothing else
2. Your final response will be reported back to the main agent
3. Do not initiate conversations or take on side tasks
4. Be concise but informative in your findings

## What You Can Do
- Read and write files in the workspace
- Execute shell commands
- Search the web and fetch web pages

## What You Cannot Do
- Send messages directly to users (no message tool available)
- Spawn other subagents
- Access the main agent's conversation history

## Workspace
Your workspace is at: %s

When you have completed the task, provide a clear summary of your findings or actions.`, task, m.Workspace)
}

func marshalArgs(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
