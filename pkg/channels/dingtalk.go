package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dingtalkoauth2 "github.com/alibabacloud-go/dingtalk/oauth2_1_0"
	dingtalkrobot "github.com/alibabacloud-go/dingtalk/robot_1_0"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/alibabacloud-go/tea/tea"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/chatbot"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/client"

	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/config"
)

// DingTalkChannel bridges DingTalk via the stream SDK for receive and the
// robot API for send.
type DingTalkChannel struct {
	BaseChannel
	Config *config.DingTalkConfig

	streamClient *client.StreamClient
	robotClient  *dingtalkrobot.Client
	oauthClient  *dingtalkoauth2.Client

	tokenMu       sync.RWMutex
	accessToken   string
	tokenExpireAt time.Time
}

// NewDingTalkChannel creates a DingTalkChannel.
func NewDingTalkChannel(cfg *config.DingTalkConfig, b *bus.MessageBus) *DingTalkChannel {
	return &DingTalkChannel{
		BaseChannel: BaseChannel{Bus: b, AllowFrom: cfg.AllowFrom},
		Config:      cfg,
	}
}

func (c *DingTalkChannel) Name() string { return "dingtalk" }

func (c *DingTalkChannel) Start() error {
	if !c.Config.Enabled || c.Config.ClientID == "" || c.Config.ClientSecret == "" {
		return nil
	}

	apiConfig := &openapi.Config{
		Protocol: tea.String("https"),
		RegionId: tea.String("central"),
	}

	robotClient, err := dingtalkrobot.NewClient(apiConfig)
	if err != nil {
		return fmt.Errorf("failed to init dingtalk robot client: %w", err)
	}
	c.robotClient = robotClient

	oauthClient, err := dingtalkoauth2.NewClient(apiConfig)
	if err != nil {
		return fmt.Errorf("failed to init dingtalk oauth client: %w", err)
	}
	c.oauthClient = oauthClient

	c.streamClient = client.NewStreamClient(
		client.WithAppCredential(client.NewAppCredentialConfig(c.Config.ClientID, c.Config.ClientSecret)))
	c.streamClient.RegisterChatBotCallbackRouter(c.onChatReceive)

	go func() {
		// Start blocks until the stream closes.
		if err := c.streamClient.Start(context.Background()); err != nil {
			slog.Error("dingtalk stream client error", "error", err)
		}
	}()

	slog.Info("dingtalk bot started")
	return nil
}

func (c *DingTalkChannel) Stop() error {
	if c.streamClient != nil {
		c.streamClient.Close()
	}
	return nil
}

func (c *DingTalkChannel) getAccessToken() (string, error) {
	c.tokenMu.RLock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpireAt) {
		defer c.tokenMu.RUnlock()
		return c.accessToken, nil
	}
	c.tokenMu.RUnlock()

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpireAt) {
		return c.accessToken, nil
	}

	resp, err := c.oauthClient.GetAccessToken(&dingtalkoauth2.GetAccessTokenRequest{
		AppKey:    tea.String(c.Config.ClientID),
		AppSecret: tea.String(c.Config.ClientSecret),
	})
	if err != nil {
		return "", err
	}
	if resp.Body == nil || resp.Body.AccessToken == nil {
		return "", fmt.Errorf("empty access token response")
	}

	c.accessToken = *resp.Body.AccessToken
	// ExpireIn is seconds; refresh a minute early.
	c.tokenExpireAt = time.Now().Add(time.Duration(*resp.Body.ExpireIn-60) * time.Second)
	return c.accessToken, nil
}

func (c *DingTalkChannel) onChatReceive(_ context.Context, data *chatbot.BotCallbackDataModel) ([]byte, error) {
	content := strings.TrimSpace(data.Text.Content)
	if content == "" {
		return nil, nil
	}

	senderID := data.SenderStaffId
	if senderID == "" {
		senderID = data.SenderId
	}
	if senderID == "" {
		slog.Warn("dingtalk message missing sender id")
		return nil, nil
	}

	// Group chats reply to the conversation, direct chats to the sender.
	chatID := senderID
	if data.ConversationType == "2" && data.ConversationId != "" {
		chatID = data.ConversationId
	}

	if data.ConversationType == "2" && data.SenderNick != "" {
		content = fmt.Sprintf("[%s]: %s", data.SenderNick, content)
	}

	c.HandleMessage(c.Name(), senderID, chatID, content, nil, map[string]any{
		"sender_name": data.SenderNick,
	})
	return nil, nil
}

type dingTalkTextParam struct {
	Content string `json:"content"`
}

func (c *DingTalkChannel) Send(msg bus.OutboundMessage) error {
	if c.robotClient == nil {
		return fmt.Errorf("dingtalk client not initialized")
	}
	if msg.Content == "" {
		return nil
	}

	token, err := c.getAccessToken()
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	// "cid" prefixed IDs are group conversations.
	if strings.HasPrefix(msg.ChatID, "cid") {
		return c.sendGroup(token, msg)
	}
	return c.sendOTO(token, msg)
}

func (c *DingTalkChannel) sendOTO(token string, msg bus.OutboundMessage) error {
	param, _ := json.Marshal(dingTalkTextParam{Content: msg.Content})
	req := &dingtalkrobot.BatchSendOTORequest{
		RobotCode: tea.String(c.Config.RobotCode),
		UserIds:   []*string{tea.String(msg.ChatID)},
		MsgKey:    tea.String("sampleText"),
		MsgParam:  tea.String(string(param)),
	}
	headers := &dingtalkrobot.BatchSendOTOHeaders{
		XAcsDingtalkAccessToken: tea.String(token),
	}
	_, err := c.robotClient.BatchSendOTOWithOptions(req, headers, &util.RuntimeOptions{})
	return err
}

func (c *DingTalkChannel) sendGroup(token string, msg bus.OutboundMessage) error {
	param, _ := json.Marshal(dingTalkTextParam{Content: msg.Content})
	req := &dingtalkrobot.OrgGroupSendRequest{
		RobotCode:          tea.String(c.Config.RobotCode),
		OpenConversationId: tea.String(msg.ChatID),
		MsgKey:             tea.String("sampleText"),
		MsgParam:           tea.String(string(param)),
	}
	headers := &dingtalkrobot.OrgGroupSendHeaders{
		XAcsDingtalkAccessToken: tea.String(token),
	}
	_, err := c.robotClient.OrgGroupSendWithOptions(req, headers, &util.RuntimeOptions{})
	return err
}
