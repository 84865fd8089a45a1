package channels

import (
	"strings"

	"github.com/wrenbot/wren/pkg/bus"
)

// Channel is one chat platform adapter. Start is non-blocking: adapters run
// their receive loops on their own goroutines.
type Channel interface {
	Name() string
	Start() error
	Stop() error
	Send(msg bus.OutboundMessage) error
}

// BaseChannel carries the bus handle and the sender allowlist shared by all
// adapters.
type BaseChannel struct {
	Bus       *bus.MessageBus
	AllowFrom []string
}

// IsAllowed reports whether a sender passes the allowlist. An empty list
// allows everyone. Composite IDs like "id|username" match if any part does.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.AllowFrom) == 0 {
		return true
	}
	for _, allowed := range c.AllowFrom {
		if allowed == senderID {
			return true
		}
		if strings.Contains(senderID, "|") {
			for _, part := range strings.Split(senderID, "|") {
				if part == allowed {
					return true
				}
			}
		}
	}
	return false
}

// HandleMessage applies the allowlist and publishes an inbound message.
func (c *BaseChannel) HandleMessage(channelName, senderID, chatID, content string, media []string, metadata map[string]any) {
	if !c.IsAllowed(senderID) {
		return
	}
	c.Bus.PublishInbound(bus.InboundMessage{
		Channel:  channelName,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
		Media:    media,
		Metadata: metadata,
	})
}
