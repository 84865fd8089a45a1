package tools

import (
	"fmt"
	"log/slog"
	"sort"
)

// Tool is one capability handed to the LLM. Parameter validation against
// the schema happens inside Execute, not in the registry.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(args map[string]any) (string, error)
}

// Schema projects a tool into the OpenAI function-calling format.
func Schema(t Tool) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		},
	}
}

// Registry maps tool names to tools. It is write-once at startup and
// read-only afterwards.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. A duplicate name replaces the previous entry.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the schema list handed to the LLM, in stable order.
func (r *Registry) Definitions() []map[string]any {
	defs := make([]map[string]any, 0, len(r.tools))
	for _, name := range r.Names() {
		defs = append(defs, Schema(r.tools[name]))
	}
	return defs
}

// Execute dispatches a call by name. It never fails: unknown tools and tool
// errors come back as human-readable strings so the LLM can observe them as
// tool results and react.
func (r *Registry) Execute(name string, args map[string]any) string {
	t, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool: %s", name)
	}

	result, err := t.Execute(args)
	if err != nil {
		slog.Warn("tool failed", "tool", name, "error", err)
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

// strArg extracts a required string argument.
func strArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s must be a non-empty string", key)
	}
	return v, nil
}
