package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint:
// OpenAI, OpenRouter, DeepSeek, Groq, Gemini's compat layer, vLLM.
type OpenAIProvider struct {
	APIKey      string
	APIBase     string
	Model       string
	MaxTokens   int
	Temperature float64

	client *http.Client
}

// NewOpenAIProvider creates a provider for the given endpoint.
func NewOpenAIProvider(apiKey, apiBase, defaultModel string) *OpenAIProvider {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}
	return &OpenAIProvider{
		APIKey:  apiKey,
		APIBase: apiBase,
		Model:   defaultModel,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Chat sends one completion request and decodes the first choice.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []map[string]any, tools []map[string]any, model string) (*LLMResponse, error) {
	if model == "" {
		model = p.Model
	}

	reqBody := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if len(tools) > 0 {
		reqBody["tools"] = tools
	}
	if p.MaxTokens > 0 {
		reqBody["max_tokens"] = p.MaxTokens
	}
	if p.Temperature > 0 {
		reqBody["temperature"] = p.Temperature
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := strings.TrimRight(p.APIBase, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if strings.Contains(p.APIBase, "openrouter.ai") {
		req.Header.Set("HTTP-Referer", "https://github.com/wrenbot/wren")
		req.Header.Set("X-Title", "wren")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := response.Choices[0]
	out := &LLMResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: map[string]int{
			"prompt_tokens":     response.Usage.PromptTokens,
			"completion_tokens": response.Usage.CompletionTokens,
			"total_tokens":      response.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			// Some models emit malformed argument JSON; surface the call
			// anyway so the tool can report the problem.
			slog.Warn("unparseable tool call arguments", "tool", tc.Function.Name, "error", err)
			args = make(map[string]any)
		}
		out.ToolCalls = append(out.ToolCalls, ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

// DefaultModel returns the model used when a call does not name one.
func (p *OpenAIProvider) DefaultModel() string {
	return p.Model
}
