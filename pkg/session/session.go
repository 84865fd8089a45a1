package session

import (
	"encoding/json"
	"time"
)

// Roles used in a session history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a tool invocation as emitted by the LLM. IDs are unique
// within one assistant turn.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Turn is one entry of a conversation history. Exactly one of the role
// shapes applies: user turns carry Content; assistant turns carry Content
// and optionally ToolCalls; tool turns carry ToolCallID, Name and Content.
type Turn struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// UserTurn builds a user turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds an assistant turn, optionally carrying tool calls.
func AssistantTurn(content string, calls []ToolCall) Turn {
	return Turn{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolTurn builds a tool-result turn referencing its originating call.
func ToolTurn(callID, name, result string) Turn {
	return Turn{Role: RoleTool, ToolCallID: callID, Name: name, Content: result}
}

// Session is a persistent conversation keyed by "<channel>:<chat_id>".
type Session struct {
	Key       string    `json:"key"`
	History   []Turn    `json:"history"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates an empty session.
func NewSession(key string) *Session {
	now := time.Now()
	return &Session{Key: key, CreatedAt: now, UpdatedAt: now}
}

// Append adds turns to the history.
func (s *Session) Append(turns ...Turn) {
	s.History = append(s.History, turns...)
	s.UpdatedAt = time.Now()
}

// WireHistory returns the most recent turns in the shape the LLM provider
// expects. Assistant tool calls are materialized with a JSON string encoding
// of their arguments; tool results reference the originating call by id.
// This shape round-trips losslessly through persistence.
func (s *Session) WireHistory(maxTurns int) []map[string]any {
	turns := s.History
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
		// Never start history on a dangling tool result.
		for len(turns) > 0 && turns[0].Role == RoleTool {
			turns = turns[1:]
		}
	}

	history := make([]map[string]any, 0, len(turns))
	for _, t := range turns {
		history = append(history, t.Wire())
	}
	return history
}

// Wire converts one turn to the provider message shape.
func (t Turn) Wire() map[string]any {
	msg := map[string]any{
		"role":    t.Role,
		"content": t.Content,
	}
	if t.Role == RoleTool {
		msg["tool_call_id"] = t.ToolCallID
		msg["name"] = t.Name
		return msg
	}
	if len(t.ToolCalls) > 0 {
		calls := make([]any, 0, len(t.ToolCalls))
		for _, tc := range t.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			calls = append(calls, map[string]any{
				"id":   tc.ID,
				"type": "function",
				"function": map[string]any{
					"name":      tc.Name,
					"arguments": string(args),
				},
			})
		}
		msg["tool_calls"] = calls
	}
	return msg
}
