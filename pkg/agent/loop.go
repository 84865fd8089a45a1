package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/config"
	"github.com/wrenbot/wren/pkg/cron"
	"github.com/wrenbot/wren/pkg/providers"
	"github.com/wrenbot/wren/pkg/session"
	"github.com/wrenbot/wren/pkg/tools"
)

// fallbackResponse is persisted and delivered when the model produced no
// final text within the iteration budget.
const fallbackResponse = "I've completed processing but have no response to give."

// AgentLoop is the core engine: it consumes inbound messages one at a time,
// runs the reason/act loop against the LLM, and publishes responses. Serial
// consumption keeps session files free of interleaved turns.
type AgentLoop struct {
	Bus           *bus.MessageBus
	Provider      providers.LLMProvider
	Workspace     string
	Model         string
	MaxIterations int
	MaxHistory    int
	Config        *config.Config
	CronService   *cron.Service

	Context   *ContextBuilder
	Sessions  *session.Store
	Tools     *tools.Registry
	Subagents *SubagentManager

	stopChan chan struct{}
	done     chan struct{}
}

// NewAgentLoop wires the agent core from config.
func NewAgentLoop(b *bus.MessageBus, provider providers.LLMProvider, workspace string, cfg *config.Config, cronService *cron.Service) *AgentLoop {
	defaults := cfg.Agents.Defaults
	maxIterations := defaults.MaxToolIterations
	if maxIterations <= 0 {
		maxIterations = 20
	}
	maxHistory := defaults.MaxHistoryTurns
	if maxHistory <= 0 {
		maxHistory = 100
	}

	l := &AgentLoop{
		Bus:           b,
		Provider:      provider,
		Workspace:     workspace,
		Model:         defaults.Model,
		MaxIterations: maxIterations,
		MaxHistory:    maxHistory,
		Config:        cfg,
		CronService:   cronService,
		Context:       NewContextBuilder(workspace),
		Sessions:      session.NewStore(workspace),
		Tools:         tools.NewRegistry(),
		Subagents:     NewSubagentManager(provider, workspace, b, defaults.Model, defaults.MaxSubagents, cfg.Tools.Web.Search.APIKey, &cfg.Tools.Exec),
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
	l.registerDefaultTools()
	return l
}

func (l *AgentLoop) registerDefaultTools() {
	fileRoot := ""
	if l.Config.Tools.Exec.RestrictToWorkspace {
		fileRoot = l.Workspace
	}
	l.Tools.Register(&tools.ReadFileTool{Root: fileRoot})
	l.Tools.Register(&tools.WriteFileTool{Root: fileRoot})
	l.Tools.Register(&tools.AppendFileTool{Root: fileRoot})
	l.Tools.Register(&tools.EditFileTool{Root: fileRoot})
	l.Tools.Register(&tools.ListDirTool{Root: fileRoot})

	execTimeout := time.Duration(l.Config.Tools.Exec.Timeout) * time.Second
	l.Tools.Register(tools.NewExecTool(execTimeout, l.Workspace, l.Config.Tools.Exec.RestrictToWorkspace))

	l.Tools.Register(tools.NewWebSearchTool(l.Config.Tools.Web.Search.APIKey, l.Config.Tools.Web.Search.MaxResults))
	l.Tools.Register(tools.NewWebFetchTool(50000))

	l.Tools.Register(tools.NewSpawnTool(l.Subagents))
	l.Tools.Register(tools.NewMessageTool(l.Bus))
	if l.CronService != nil {
		l.Tools.Register(tools.NewCronTool(l.CronService))
	}
}

// Run consumes inbound messages until Stop is called. Messages are handled
// strictly one at a time, in arrival order.
func (l *AgentLoop) Run() {
	slog.Info("agent loop started", "model", l.Model)
	defer close(l.done)

	for {
		select {
		case <-l.stopChan:
			slog.Info("agent loop stopping")
			return
		default:
		}

		msg, ok := l.Bus.ConsumeInbound(time.Second)
		if !ok {
			continue
		}
		if err := l.processMessage(msg); err != nil {
			slog.Error("failed to process message", "channel", msg.Channel, "sender", msg.SenderID, "error", err)
			channel, chatID := msg.Channel, msg.ChatID
			if msg.IsSystem() {
				channel, chatID = bus.DecodeOrigin(msg.ChatID)
			}
			l.Bus.PublishOutbound(bus.OutboundMessage{
				Channel: channel,
				ChatID:  chatID,
				Content: fmt.Sprintf("Sorry, I encountered an error: %v", err),
			})
		}
	}
}

// Stop signals the loop and waits for the in-flight message to finish.
func (l *AgentLoop) Stop() {
	close(l.stopChan)
	<-l.done
}

func (l *AgentLoop) processMessage(msg bus.InboundMessage) error {
	if msg.IsSystem() {
		return l.processSystemMessage(msg)
	}

	slog.Info("processing message", "channel", msg.Channel, "sender", msg.SenderID)
	sessionKey := msg.SessionKey()

	if strings.TrimSpace(msg.Content) == "/new" {
		if err := l.Sessions.Clear(sessionKey); err != nil {
			slog.Warn("failed to clear session", "key", sessionKey, "error", err)
		}
		l.Bus.PublishOutbound(bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: "Started a new topic. The previous conversation has been cleared.",
		})
		return nil
	}

	l.bindTools(msg.Channel, msg.ChatID)

	sess := l.Sessions.GetOrCreate(sessionKey)
	messages := l.Context.BuildMessages(sess.WireHistory(l.MaxHistory), msg.Content, msg.Media, msg.Channel, msg.ChatID)

	final, turns, err := l.runToolLoop(context.Background(), messages, l.MaxIterations)
	if err != nil {
		// Nothing is persisted for a failed turn.
		return err
	}
	if final == "" {
		final = fallbackResponse
		turns = append(turns, session.AssistantTurn(final, nil))
	}

	allTurns := append([]session.Turn{session.UserTurn(msg.Content)}, turns...)
	if err := l.Sessions.Append(sessionKey, allTurns...); err != nil {
		slog.Error("failed to persist session", "key", sessionKey, "error", err)
	}

	l.Bus.PublishOutbound(bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: final,
	})
	return nil
}

// ProcessDirect runs one agent turn synchronously outside the bus, for the
// CLI, cron jobs and the heartbeat. sessionKey is "<channel>:<chat_id>"; the
// response is returned, not published.
func (l *AgentLoop) ProcessDirect(content, sessionKey string) (string, error) {
	channel, chatID := bus.DecodeOrigin(sessionKey)
	l.bindTools(channel, chatID)

	sess := l.Sessions.GetOrCreate(sessionKey)
	messages := l.Context.BuildMessages(sess.WireHistory(l.MaxHistory), content, nil, channel, chatID)

	final, turns, err := l.runToolLoop(context.Background(), messages, l.MaxIterations)
	if err != nil {
		return "", err
	}
	if final == "" {
		final = fallbackResponse
		turns = append(turns, session.AssistantTurn(final, nil))
	}

	allTurns := append([]session.Turn{session.UserTurn(content)}, turns...)
	if err := l.Sessions.Append(sessionKey, allTurns...); err != nil {
		slog.Error("failed to persist session", "key", sessionKey, "error", err)
	}
	return final, nil
}

// bindTools points the chat-scoped tools at the current conversation.
func (l *AgentLoop) bindTools(channel, chatID string) {
	if t, ok := l.Tools.Get("message"); ok {
		if mt, ok := t.(*tools.MessageTool); ok {
			mt.Bind(channel, chatID)
		}
	}
	if t, ok := l.Tools.Get("spawn"); ok {
		if st, ok := t.(*tools.SpawnTool); ok {
			st.Bind(channel, chatID)
		}
	}
	if t, ok := l.Tools.Get("cron"); ok {
		if ct, ok := t.(*tools.CronTool); ok {
			ct.Bind(channel, chatID)
		}
	}
}

// runToolLoop is the reason/act loop: call the model, execute requested
// tools, feed results back, repeat until the model answers in plain text or
// the iteration budget runs out. It returns the final text and the turns to
// persist; on LLM error nothing is returned and the caller persists nothing.
func (l *AgentLoop) runToolLoop(ctx context.Context, messages []map[string]any, maxIterations int) (string, []session.Turn, error) {
	var turns []session.Turn

	for iteration := 0; iteration < maxIterations; iteration++ {
		resp, err := l.Provider.Chat(ctx, messages, l.Tools.Definitions(), l.Model)
		if err != nil {
			return "", nil, fmt.Errorf("LLM error: %w", err)
		}

		if !resp.HasToolCalls() {
			if resp.Content == "" {
				return "", turns, nil
			}
			turns = append(turns, session.AssistantTurn(resp.Content, nil))
			return resp.Content, turns, nil
		}

		calls := make([]session.ToolCall, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			calls = append(calls, session.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		assistant := session.AssistantTurn(resp.Content, calls)
		turns = append(turns, assistant)
		messages = append(messages, assistant.Wire())

		for _, tc := range resp.ToolCalls {
			slog.Info("executing tool", "tool", tc.Name)
			result := l.Tools.Execute(tc.Name, tc.Arguments)
			toolTurn := session.ToolTurn(tc.ID, tc.Name, result)
			turns = append(turns, toolTurn)
			messages = append(messages, toolTurn.Wire())
		}
	}

	return "", turns, nil
}
