package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/session"
)

// processSystemMessage handles results injected on the system channel
// (subagent announces). The origin conversation is encoded in the chat_id;
// the response goes back to that conversation and lands in its session.
func (l *AgentLoop) processSystemMessage(msg bus.InboundMessage) error {
	slog.Info("processing system message", "sender", msg.SenderID)

	originChannel, originChatID := bus.DecodeOrigin(msg.ChatID)
	sessionKey := originChannel + ":" + originChatID

	l.bindTools(originChannel, originChatID)

	labeled := fmt.Sprintf("[system: %s] %s", msg.SenderID, msg.Content)
	sess := l.Sessions.GetOrCreate(sessionKey)
	messages := l.Context.BuildMessages(sess.WireHistory(l.MaxHistory), labeled, nil, originChannel, originChatID)

	final, turns, err := l.runToolLoop(context.Background(), messages, l.MaxIterations)
	if err != nil {
		return err
	}
	if final == "" {
		final = "Background task completed."
		turns = append(turns, session.AssistantTurn(final, nil))
	}

	allTurns := append([]session.Turn{session.UserTurn(labeled)}, turns...)
	if err := l.Sessions.Append(sessionKey, allTurns...); err != nil {
		slog.Error("failed to persist session", "key", sessionKey, "error", err)
	}

	l.Bus.PublishOutbound(bus.OutboundMessage{
		Channel: originChannel,
		ChatID:  originChatID,
		Content: final,
	})
	return nil
}
