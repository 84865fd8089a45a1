package channels

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/config"
)

// discordMaxLen is Discord's hard message length limit.
const discordMaxLen = 2000

// DiscordChannel bridges Discord via the gateway API.
type DiscordChannel struct {
	BaseChannel
	Config *config.DiscordConfig

	session   *discordgo.Session
	botUserID string
}

// NewDiscordChannel creates a DiscordChannel.
func NewDiscordChannel(cfg *config.DiscordConfig, b *bus.MessageBus) *DiscordChannel {
	return &DiscordChannel{
		BaseChannel: BaseChannel{Bus: b, AllowFrom: cfg.AllowFrom},
		Config:      cfg,
	}
}

func (c *DiscordChannel) Name() string { return "discord" }

func (c *DiscordChannel) Start() error {
	if !c.Config.Enabled || c.Config.Token == "" {
		return nil
	}

	session, err := discordgo.New("Bot " + c.Config.Token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	session.AddHandler(c.handleMessage)

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	c.session = session

	user, err := session.User("@me")
	if err != nil {
		session.Close()
		return fmt.Errorf("failed to fetch discord bot identity: %w", err)
	}
	c.botUserID = user.ID
	slog.Info("discord bot connected", "username", user.Username)
	return nil
}

func (c *DiscordChannel) Stop() error {
	if c.session == nil {
		return nil
	}
	return c.session.Close()
}

// Send delivers a message, chunked to Discord's length limit.
func (c *DiscordChannel) Send(msg bus.OutboundMessage) error {
	if c.session == nil {
		return fmt.Errorf("discord session not initialized")
	}
	if msg.Content == "" {
		return nil
	}

	content := msg.Content
	for len(content) > 0 {
		chunk := content
		if len(chunk) > discordMaxLen {
			chunk = chunk[:discordMaxLen]
		}
		content = content[len(chunk):]
		if _, err := c.session.ChannelMessageSend(msg.ChatID, chunk); err != nil {
			return fmt.Errorf("failed to send discord message: %w", err)
		}
	}
	return nil
}

func (c *DiscordChannel) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == c.botUserID {
		return
	}
	content := m.Content
	if content == "" {
		return
	}

	senderID := m.Author.ID
	if m.Author.Username != "" {
		senderID = senderID + "|" + m.Author.Username
	}

	// Guild messages carry the sender's name, DMs don't need it.
	if m.GuildID != "" && m.Author.Username != "" {
		content = fmt.Sprintf("[%s]: %s", m.Author.Username, content)
	}

	c.HandleMessage(c.Name(), senderID, m.ChannelID, content, nil, nil)
}
