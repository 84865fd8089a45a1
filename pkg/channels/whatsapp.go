package channels

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/config"
)

// WhatsAppChannel talks to a Node.js bridge over a websocket. The bridge
// owns the WhatsApp Web session; this side only exchanges JSON frames:
// {"type":"message","sender":...,"content":...} in,
// {"type":"send","to":...,"text":...} out.
type WhatsAppChannel struct {
	BaseChannel
	Config *config.WhatsAppConfig

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	running   bool
	stopChan  chan struct{}
}

// NewWhatsAppChannel creates a WhatsAppChannel.
func NewWhatsAppChannel(cfg *config.WhatsAppConfig, b *bus.MessageBus) *WhatsAppChannel {
	return &WhatsAppChannel{
		BaseChannel: BaseChannel{Bus: b, AllowFrom: cfg.AllowFrom},
		Config:      cfg,
		stopChan:    make(chan struct{}),
	}
}

func (c *WhatsAppChannel) Name() string { return "whatsapp" }

func (c *WhatsAppChannel) Start() error {
	if !c.Config.Enabled || c.Config.BridgeURL == "" {
		return nil
	}
	c.running = true
	go c.connectLoop()
	return nil
}

func (c *WhatsAppChannel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	c.running = false
	close(c.stopChan)
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	return nil
}

// connectLoop keeps a single bridge connection alive, reconnecting with a
// fixed 5s backoff.
func (c *WhatsAppChannel) connectLoop() {
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		slog.Info("connecting to whatsapp bridge", "url", c.Config.BridgeURL)
		conn, _, err := websocket.DefaultDialer.Dial(c.Config.BridgeURL, nil)
		if err != nil {
			slog.Warn("whatsapp bridge connection failed", "error", err)
		} else {
			c.mu.Lock()
			c.conn = conn
			c.connected = true
			c.mu.Unlock()
			slog.Info("connected to whatsapp bridge")

			c.readLoop(conn)

			c.mu.Lock()
			c.conn = nil
			c.connected = false
			c.mu.Unlock()
		}

		select {
		case <-c.stopChan:
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (c *WhatsAppChannel) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("whatsapp bridge read error", "error", err)
			return
		}
		c.handleBridgeMessage(raw)
	}
}

func (c *WhatsAppChannel) handleBridgeMessage(raw []byte) {
	var data struct {
		Type      string `json:"type"`
		Sender    string `json:"sender"`
		Content   string `json:"content"`
		ID        string `json:"id"`
		Timestamp int64  `json:"timestamp"`
		IsGroup   bool   `json:"isGroup"`
		Status    string `json:"status"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		slog.Warn("invalid JSON from whatsapp bridge", "raw", truncate(string(raw), 100))
		return
	}

	switch data.Type {
	case "message":
		// sender is a JID like <phone>@s.whatsapp.net; the phone number is
		// the identity, the full JID is the reply address.
		senderID := data.Sender
		if at := strings.Index(senderID, "@"); at >= 0 {
			senderID = senderID[:at]
		}
		content := data.Content
		if content == "[Voice Message]" {
			content = "[Voice Message: Transcription not available for WhatsApp yet]"
		}
		c.HandleMessage(c.Name(), senderID, data.Sender, content, nil, map[string]any{
			"message_id": data.ID,
			"timestamp":  data.Timestamp,
			"is_group":   data.IsGroup,
		})
	case "status":
		slog.Info("whatsapp status", "status", data.Status)
		c.mu.Lock()
		c.connected = data.Status == "connected"
		c.mu.Unlock()
	case "qr":
		slog.Info("scan the QR code in the bridge terminal to connect WhatsApp")
	case "error":
		slog.Error("whatsapp bridge error", "error", data.Error)
	}
}

func (c *WhatsAppChannel) Send(msg bus.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("whatsapp bridge not connected")
	}
	payload := map[string]string{
		"type": "send",
		"to":   msg.ChatID,
		"text": msg.Content,
	}
	return c.conn.WriteJSON(payload)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
