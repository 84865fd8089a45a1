package channels

import (
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/config"
)

// TelegramChannel bridges Telegram via long polling.
type TelegramChannel struct {
	BaseChannel
	Config *config.TelegramConfig

	bot     *tgbotapi.BotAPI
	running bool
}

// NewTelegramChannel creates a TelegramChannel.
func NewTelegramChannel(cfg *config.TelegramConfig, b *bus.MessageBus) *TelegramChannel {
	return &TelegramChannel{
		BaseChannel: BaseChannel{Bus: b, AllowFrom: cfg.AllowFrom},
		Config:      cfg,
	}
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Start() error {
	if !c.Config.Enabled || c.Config.Token == "" {
		return nil
	}

	var err error
	c.bot, err = tgbotapi.NewBotAPI(c.Config.Token)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	slog.Info("telegram bot authorized", "account", c.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)
	c.running = true

	go func() {
		for update := range updates {
			if !c.running {
				break
			}
			if update.Message == nil {
				continue
			}
			c.handleUpdate(update)
		}
	}()
	return nil
}

func (c *TelegramChannel) Stop() error {
	c.running = false
	if c.bot != nil {
		c.bot.StopReceivingUpdates()
	}
	return nil
}

func (c *TelegramChannel) Send(msg bus.OutboundMessage) error {
	if c.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %s", msg.ChatID)
	}
	if msg.Content == "" {
		return nil
	}
	_, err = c.bot.Send(tgbotapi.NewMessage(chatID, msg.Content))
	return err
}

func (c *TelegramChannel) handleUpdate(update tgbotapi.Update) {
	msg := update.Message

	// Composite sender ID so the allowlist matches either numeric ID or
	// username.
	senderID := strconv.FormatInt(msg.From.ID, 10)
	if msg.From.UserName != "" {
		senderID = senderID + "|" + msg.From.UserName
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	if msg.IsCommand() && msg.Command() == "start" {
		c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, "Hi! I'm wren.\n\nSend me a message and I'll respond."))
		return
	}

	content := msg.Text
	if msg.Caption != "" {
		content = msg.Caption
	}
	if msg.Photo != nil {
		content = "[Photo received]"
	} else if msg.Voice != nil {
		content = "[Voice received]"
	}
	if content == "" {
		return
	}

	// Group messages carry the sender's name so the model can address them.
	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		name := msg.From.FirstName
		if name == "" {
			name = msg.From.UserName
		}
		if name != "" {
			content = fmt.Sprintf("[%s]: %s", name, content)
		}
	}

	c.HandleMessage(c.Name(), senderID, chatID, content, nil, nil)
}
