package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkdispatcher "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/config"
)

// LarkChannel bridges Lark (Feishu) via the websocket event stream.
type LarkChannel struct {
	BaseChannel
	Config *config.LarkConfig

	client   *lark.Client
	wsClient *larkws.Client
	cancel   context.CancelFunc
}

// NewLarkChannel creates a LarkChannel.
func NewLarkChannel(cfg *config.LarkConfig, b *bus.MessageBus) *LarkChannel {
	return &LarkChannel{
		BaseChannel: BaseChannel{Bus: b, AllowFrom: cfg.AllowFrom},
		Config:      cfg,
	}
}

func (c *LarkChannel) Name() string { return "lark" }

func (c *LarkChannel) Start() error {
	if !c.Config.Enabled || c.Config.AppID == "" || c.Config.AppSecret == "" {
		return nil
	}

	c.client = lark.NewClient(c.Config.AppID, c.Config.AppSecret)

	handler := larkdispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			c.handleEvent(event)
			return nil
		})

	c.wsClient = larkws.NewClient(
		c.Config.AppID,
		c.Config.AppSecret,
		larkws.WithEventHandler(handler),
		larkws.WithLogLevel(larkcore.LogLevelWarn),
	)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func() {
		if err := c.wsClient.Start(ctx); err != nil {
			slog.Error("lark websocket error", "error", err)
		}
	}()

	slog.Info("lark bot started")
	return nil
}

func (c *LarkChannel) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *LarkChannel) handleEvent(event *larkim.P2MessageReceiveV1) {
	if event.Event == nil || event.Event.Message == nil || event.Event.Sender == nil {
		return
	}
	msg := event.Event.Message
	if msg.Content == nil || msg.ChatId == nil || event.Event.Sender.SenderId == nil || event.Event.Sender.SenderId.OpenId == nil {
		return
	}

	// Message content is JSON; plain text carries a "text" field, anything
	// richer is passed through raw.
	content := *msg.Content
	var textContent struct {
		Text string `json:"text"`
	}
	text := content
	if err := json.Unmarshal([]byte(content), &textContent); err == nil && textContent.Text != "" {
		text = textContent.Text
	}

	c.HandleMessage(c.Name(), *event.Event.Sender.SenderId.OpenId, *msg.ChatId, text, nil, nil)
}

func (c *LarkChannel) Send(msg bus.OutboundMessage) error {
	if c.client == nil {
		return fmt.Errorf("lark client not initialized")
	}
	if msg.Content == "" {
		return nil
	}

	receiveIDType := larkim.ReceiveIdTypeOpenId
	if strings.HasPrefix(msg.ChatID, "oc_") {
		receiveIDType = larkim.ReceiveIdTypeChatId
	}

	contentJSON, err := json.Marshal(map[string]string{"text": msg.Content})
	if err != nil {
		return err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(msg.ChatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.client.Im.Message.Create(context.Background(), req)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return fmt.Errorf("lark error: %d %s", resp.Code, resp.Msg)
	}
	return nil
}
