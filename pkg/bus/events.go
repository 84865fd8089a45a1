package bus

import (
	"strings"
	"time"
)

// SystemChannel is the reserved channel name used by subagents, cron and the
// heartbeat to feed results back through the agent pipeline. It is never a
// valid outbound target.
const SystemChannel = "system"

// InboundMessage is an event received from a chat channel (or injected by an
// internal service). Immutable once published.
type InboundMessage struct {
	Channel   string         `json:"channel"`
	SenderID  string         `json:"sender_id"`
	ChatID    string         `json:"chat_id"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Media     []string       `json:"media,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SessionKey returns the canonical conversation identity for this message.
func (m InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// IsSystem reports whether the message was injected on the system channel.
func (m InboundMessage) IsSystem() bool {
	return m.Channel == SystemChannel
}

// OutboundMessage is a response routed to a chat channel. The pair
// (Channel, ChatID) is the routing key.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

// EncodeOrigin packs a (channel, chat_id) pair into the chat_id of a
// system-channel message.
func EncodeOrigin(channel, chatID string) string {
	return channel + ":" + chatID
}

// DecodeOrigin unpacks an encoded origin. A value with no separator falls
// back to ("cli", raw).
func DecodeOrigin(encoded string) (channel, chatID string) {
	if ch, id, ok := strings.Cut(encoded, ":"); ok {
		return ch, id
	}
	return "cli", encoded
}
