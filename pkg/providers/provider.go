package providers

import "context"

// ToolCallRequest is one tool invocation requested by the model.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// LLMResponse is a single completion from a provider.
type LLMResponse struct {
	Content      string            `json:"content,omitempty"`
	ToolCalls    []ToolCallRequest `json:"tool_calls,omitempty"`
	FinishReason string            `json:"finish_reason"`
	Usage        map[string]int    `json:"usage,omitempty"`
}

// HasToolCalls reports whether the model asked for tool execution.
func (r *LLMResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// LLMProvider is a stateless chat-completion backend. Messages carry the
// whole conversation every call.
type LLMProvider interface {
	Chat(ctx context.Context, messages []map[string]any, tools []map[string]any, model string) (*LLMResponse, error)
	DefaultModel() string
}
