package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
}

type WhatsAppConfig struct {
	Enabled   bool     `json:"enabled"`
	BridgeURL string   `json:"bridgeUrl"`
	AllowFrom []string `json:"allowFrom"`
}

type DiscordConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
}

type LarkConfig struct {
	Enabled   bool     `json:"enabled"`
	AppID     string   `json:"appId"`
	AppSecret string   `json:"appSecret"`
	AllowFrom []string `json:"allowFrom"`
}

type DingTalkConfig struct {
	Enabled      bool     `json:"enabled"`
	ClientID     string   `json:"clientId"`
	ClientSecret string   `json:"clientSecret"`
	RobotCode    string   `json:"robotCode"`
	AllowFrom    []string `json:"allowFrom"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Discord  DiscordConfig  `json:"discord"`
	Lark     LarkConfig     `json:"lark"`
	DingTalk DingTalkConfig `json:"dingtalk"`
}

type AgentDefaults struct {
	Workspace         string  `json:"workspace"`
	Model             string  `json:"model"`
	Provider          string  `json:"provider,omitempty"`
	MaxTokens         int     `json:"maxTokens"`
	Temperature       float64 `json:"temperature"`
	MaxToolIterations int     `json:"maxToolIterations"`
	MaxSubagents      int     `json:"maxSubagents"`
	MaxHistoryTurns   int     `json:"maxHistoryTurns"`
}

type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

type ProviderConfig struct {
	APIKey  string `json:"apiKey"`
	APIBase string `json:"apiBase,omitempty"`
}

type ProvidersConfig struct {
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
	DeepSeek   ProviderConfig `json:"deepseek"`
	Groq       ProviderConfig `json:"groq"`
	Gemini     ProviderConfig `json:"gemini"`
	VLLM       ProviderConfig `json:"vllm"`
}

type HeartbeatConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"intervalMinutes"`
}

type WebSearchConfig struct {
	APIKey     string `json:"apiKey"`
	MaxResults int    `json:"maxResults"`
}

type WebToolsConfig struct {
	Search WebSearchConfig `json:"search"`
}

type ExecToolConfig struct {
	Timeout             int  `json:"timeout"` // seconds
	RestrictToWorkspace bool `json:"restrictToWorkspace"`
}

type ToolsConfig struct {
	Web  WebToolsConfig `json:"web"`
	Exec ExecToolConfig `json:"exec"`
}

type Config struct {
	Agents    AgentsConfig    `json:"agents"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Tools     ToolsConfig     `json:"tools"`
}

// Dir returns the base directory holding config, workspace, sessions and
// cron state.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wren"
	}
	return filepath.Join(home, ".wren")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

// DefaultConfig returns the built-in defaults. Loading overlays the file on
// top of these, so absent keys keep their default.
func DefaultConfig() *Config {
	return &Config{
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Workspace:         filepath.Join(Dir(), "workspace"),
				Model:             "anthropic/claude-sonnet-4-5",
				MaxTokens:         8192,
				Temperature:       0.7,
				MaxToolIterations: 20,
				MaxSubagents:      8,
				MaxHistoryTurns:   100,
			},
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{BridgeURL: "ws://localhost:3001"},
		},
		Heartbeat: HeartbeatConfig{
			Enabled:         false,
			IntervalMinutes: 30,
		},
		Tools: ToolsConfig{
			Web: WebToolsConfig{
				Search: WebSearchConfig{MaxResults: 5},
			},
			Exec: ExecToolConfig{
				Timeout:             60,
				RestrictToWorkspace: false,
			},
		},
	}
}

// Load reads the config at path, overlaying it on the defaults. A missing
// file yields pure defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as indented JSON, creating the directory.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Workspace returns the agent workspace, creating it if missing.
func (c *Config) Workspace() (string, error) {
	ws := c.Agents.Defaults.Workspace
	if ws == "" {
		ws = filepath.Join(Dir(), "workspace")
	}
	if err := os.MkdirAll(ws, 0o755); err != nil {
		return "", fmt.Errorf("creating workspace %s: %w", ws, err)
	}
	return ws, nil
}
