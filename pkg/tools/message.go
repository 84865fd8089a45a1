package tools

import (
	"fmt"

	"github.com/wrenbot/wren/pkg/bus"
)

// MessageTool lets the agent push a best-effort outbound message to the
// chat it is currently serving, distinct from the turn's final answer.
// The binding is set by the agent loop before each turn.
type MessageTool struct {
	Bus *bus.MessageBus

	channel string
	chatID  string
}

// NewMessageTool creates a MessageTool.
func NewMessageTool(b *bus.MessageBus) *MessageTool {
	return &MessageTool{Bus: b}
}

// Bind targets the tool at the current conversation.
func (t *MessageTool) Bind(channel, chatID string) {
	t.channel = channel
	t.chatID = chatID
}

func (t *MessageTool) Name() string { return "message" }
func (t *MessageTool) Description() string {
	return "Send a message to the user on the current chat channel. Use for proactive status updates; for normal replies just respond with text."
}

func (t *MessageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string", "description": "The message text"},
			"channel": map[string]any{"type": "string", "description": "Optional: override the target channel"},
			"chat_id": map[string]any{"type": "string", "description": "Optional: override the target chat ID"},
		},
		"required": []string{"content"},
	}
}

func (t *MessageTool) Execute(args map[string]any) (string, error) {
	content, err := strArg(args, "content")
	if err != nil {
		return "", err
	}

	channel := t.channel
	if c, ok := args["channel"].(string); ok && c != "" {
		channel = c
	}
	chatID := t.chatID
	if c, ok := args["chat_id"].(string); ok && c != "" {
		chatID = c
	}

	if channel == "" || chatID == "" {
		return "Error: no target chat is bound", nil
	}
	if channel == bus.SystemChannel {
		return "Error: cannot send to the system channel", nil
	}

	t.Bus.PublishOutbound(bus.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: content,
	})
	return fmt.Sprintf("Message sent to %s:%s", channel, chatID), nil
}
