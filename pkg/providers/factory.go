package providers

import (
	"fmt"
	"os"
	"strings"

	"github.com/wrenbot/wren/pkg/config"
)

// baseURLs for providers that expose OpenAI-compatible endpoints.
var compatBases = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"deepseek":   "https://api.deepseek.com",
	"groq":       "https://api.groq.com/openai/v1",
	"gemini":     "https://generativelanguage.googleapis.com/v1beta/openai/",
	"vllm":       "",
}

// NewProvider builds an LLM provider from config. An explicit
// agents.defaults.provider wins; otherwise the first section with an API key
// is used, in a fixed precedence order. Env vars fill in missing keys.
func NewProvider(cfg *config.Config) (LLMProvider, error) {
	defaults := cfg.Agents.Defaults

	build := func(name string, pc config.ProviderConfig, envKey string) (LLMProvider, error) {
		apiKey := pc.APIKey
		if apiKey == "" {
			apiKey = os.Getenv(envKey)
		}
		apiBase := pc.APIBase
		if apiBase == "" {
			apiBase = compatBases[name]
		}
		p := NewOpenAIProvider(apiKey, apiBase, defaults.Model)
		p.MaxTokens = defaults.MaxTokens
		p.Temperature = defaults.Temperature
		return p, nil
	}

	if explicit := strings.ToLower(defaults.Provider); explicit != "" {
		switch explicit {
		case "openai":
			return build("openai", cfg.Providers.OpenAI, "OPENAI_API_KEY")
		case "openrouter":
			return build("openrouter", cfg.Providers.OpenRouter, "OPENROUTER_API_KEY")
		case "deepseek":
			return build("deepseek", cfg.Providers.DeepSeek, "DEEPSEEK_API_KEY")
		case "groq":
			return build("groq", cfg.Providers.Groq, "GROQ_API_KEY")
		case "gemini":
			return build("gemini", cfg.Providers.Gemini, "GEMINI_API_KEY")
		case "vllm":
			return build("vllm", cfg.Providers.VLLM, "VLLM_API_KEY")
		}
		return nil, fmt.Errorf("unknown provider: %s", defaults.Provider)
	}

	candidates := []struct {
		name   string
		pc     config.ProviderConfig
		envKey string
	}{
		{"openrouter", cfg.Providers.OpenRouter, "OPENROUTER_API_KEY"},
		{"deepseek", cfg.Providers.DeepSeek, "DEEPSEEK_API_KEY"},
		{"openai", cfg.Providers.OpenAI, "OPENAI_API_KEY"},
		{"groq", cfg.Providers.Groq, "GROQ_API_KEY"},
		{"gemini", cfg.Providers.Gemini, "GEMINI_API_KEY"},
		{"vllm", cfg.Providers.VLLM, "VLLM_API_KEY"},
	}
	for _, c := range candidates {
		if c.pc.APIKey != "" || os.Getenv(c.envKey) != "" {
			return build(c.name, c.pc, c.envKey)
		}
	}
	return nil, fmt.Errorf("no API key configured for any provider")
}
