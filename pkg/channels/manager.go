package channels

import (
	"log/slog"
	"time"

	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/config"
)

// Manager owns the enabled channel adapters and the outbound dispatcher that
// routes agent responses to them.
type Manager struct {
	Config   *config.Config
	Bus      *bus.MessageBus
	Channels map[string]Channel

	stopChan chan struct{}
	done     chan struct{}
}

// NewManager creates a Manager and instantiates the enabled channels.
func NewManager(cfg *config.Config, b *bus.MessageBus) *Manager {
	m := &Manager{
		Config:   cfg,
		Bus:      b,
		Channels: make(map[string]Channel),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	m.initChannels()
	return m
}

func (m *Manager) initChannels() {
	if m.Config.Channels.Telegram.Enabled {
		m.Register(NewTelegramChannel(&m.Config.Channels.Telegram, m.Bus))
	}
	if m.Config.Channels.WhatsApp.Enabled {
		m.Register(NewWhatsAppChannel(&m.Config.Channels.WhatsApp, m.Bus))
	}
	if m.Config.Channels.Discord.Enabled {
		m.Register(NewDiscordChannel(&m.Config.Channels.Discord, m.Bus))
	}
	if m.Config.Channels.Lark.Enabled {
		m.Register(NewLarkChannel(&m.Config.Channels.Lark, m.Bus))
	}
	if m.Config.Channels.DingTalk.Enabled {
		m.Register(NewDingTalkChannel(&m.Config.Channels.DingTalk, m.Bus))
	}
}

// Register adds a channel adapter under its name.
func (m *Manager) Register(c Channel) {
	m.Channels[c.Name()] = c
	slog.Info("channel enabled", "channel", c.Name())
}

// EnabledChannels returns the names of registered channels.
func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.Channels))
	for name := range m.Channels {
		names = append(names, name)
	}
	return names
}

// Get returns a channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	c, ok := m.Channels[name]
	return c, ok
}

// StartAll starts the dispatcher and every channel. A channel that fails to
// start is logged and skipped; the rest keep running.
func (m *Manager) StartAll() {
	if len(m.Channels) == 0 {
		slog.Warn("no channels enabled")
	}
	go m.dispatchOutbound()

	for name, c := range m.Channels {
		if err := c.Start(); err != nil {
			slog.Error("failed to start channel", "channel", name, "error", err)
		}
	}
}

// StopAll stops the dispatcher first so no sends race the shutdown, then
// stops every channel best-effort.
func (m *Manager) StopAll() {
	close(m.stopChan)
	<-m.done

	for name, c := range m.Channels {
		if err := c.Stop(); err != nil {
			slog.Error("failed to stop channel", "channel", name, "error", err)
		}
	}
}

// dispatchOutbound routes agent responses to their channel. Messages for
// unknown channels are logged and dropped.
func (m *Manager) dispatchOutbound() {
	defer close(m.done)
	slog.Info("outbound dispatcher started")

	for {
		select {
		case <-m.stopChan:
			return
		default:
		}

		msg, ok := m.Bus.ConsumeOutbound(time.Second)
		if !ok {
			continue
		}
		c, found := m.Channels[msg.Channel]
		if !found {
			slog.Warn("outbound message for unknown channel", "channel", msg.Channel)
			continue
		}
		if err := c.Send(msg); err != nil {
			slog.Error("failed to send message", "channel", msg.Channel, "error", err)
		}
	}
}
