package agent

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/wrenbot/wren/pkg/memory"
	"github.com/wrenbot/wren/pkg/skills"
)

// ContextBuilder assembles the system prompt and message list for each
// turn. The prompt is rebuilt per turn so memory and skills edits take
// effect immediately.
type ContextBuilder struct {
	Workspace string
	Memory    *memory.Store
	Skills    *skills.Loader
}

// NewContextBuilder creates a ContextBuilder for the workspace.
func NewContextBuilder(workspace string) *ContextBuilder {
	return &ContextBuilder{
		Workspace: workspace,
		Memory:    memory.NewStore(workspace),
		Skills:    skills.NewLoader(workspace),
	}
}

// BootstrapFiles are loaded from the workspace root into the system prompt,
// in this order, when present.
var BootstrapFiles = []string{"AGENTS.md", "SOUL.md", "USER.md", "TOOLS.md", "IDENTITY.md"}

// BuildSystemPrompt assembles the full system prompt.
func (c *ContextBuilder) BuildSystemPrompt() string {
	parts := []string{c.identity()}

	if bootstrap := c.loadBootstrapFiles(); bootstrap != "" {
		parts = append(parts, bootstrap)
	}
	if mem := c.Memory.Context(); mem != "" {
		parts = append(parts, "# Memory\n\n"+mem)
	}

	if always := c.Skills.AlwaysSkills(); len(always) > 0 {
		if content := c.Skills.LoadForContext(always); content != "" {
			parts = append(parts, "# Active Skills\n\n"+content)
		}
	}

	if summary := c.Skills.Summary(); summary != "" {
		parts = append(parts, fmt.Sprintf(`# Skills

The following skills extend your capabilities.
IMPORTANT: These are NOT native tools. You cannot call them directly.
To use a skill, first read its instruction file with the 'read_file' tool, then follow the instructions (usually via 'exec' or 'web_search').

**Guideline**:
1. If a user request matches a skill, use the skill.
2. Do NOT answer from general knowledge for things like weather or news when a skill covers them.
3. Actively execute the skill instructions. Do not just tell the user how to do it.

%s`, summary))
	}

	return strings.Join(parts, "\n\n---\n\n")
}

func (c *ContextBuilder) identity() string {
	now := time.Now().Format("2006-01-02 15:04 (Monday)")
	absWorkspace, _ := filepath.Abs(c.Workspace)
	sysInfo := fmt.Sprintf("%s %s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())

	return fmt.Sprintf(`# wren

You are wren, a personal AI assistant. You have access to tools that allow you to:
- Read, write, append, and edit files
- Execute shell commands
- Search the web and fetch web pages
- Send messages to users on chat channels
- Schedule reminders and recurring jobs
- Spawn background workers for complex tasks

## Current Time
%s

## Runtime
%s

## Workspace
Your workspace is at: %s
- Memory files: %s/memory/MEMORY.md
- Daily notes: %s/memory/YYYY-MM-DD.md
- Custom skills: %s/skills/{skill-name}/SKILL.md

IMPORTANT: When responding to direct questions or conversations, reply directly with your text response.
Only use the 'message' tool for proactive updates to a specific chat channel.
For normal conversation, just respond with text - do not call the message tool.
Do NOT write content to files unless explicitly requested by the user.

Always be helpful, accurate, and concise. When using tools, explain what you're doing.

## Memory Management
You have a long-term memory file at %s/memory/MEMORY.md.
When the user provides important personal information (name, location, preferences) or explicitly asks you to remember something, use the 'append_file' tool to save it to this file immediately. Saying "I will remember that" without writing the file loses the information.

## Identity & Behavior Management
You have a soul file at %s/SOUL.md.
When the user defines your persona, personality, or fundamental behavioral rules, save that definition to %s/SOUL.md with 'write_file' or 'append_file' so it persists across sessions.

## Conversation Handling
In group chats, user messages may be prefixed with '[Name]:' (e.g., '[Alice]: Hello').
- This indicates the sender's name; address the user by it when replying.
- Associate remembered facts with this name in your memory.`,
		now, sysInfo, absWorkspace, absWorkspace, absWorkspace, absWorkspace, absWorkspace, absWorkspace, absWorkspace)
}

func (c *ContextBuilder) loadBootstrapFiles() string {
	var parts []string
	for _, filename := range BootstrapFiles {
		content, err := os.ReadFile(filepath.Join(c.Workspace, filename))
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", filename, string(content)))
	}
	return strings.Join(parts, "\n\n")
}

// BuildMessages builds the complete message list for an LLM call: system
// prompt, persisted history, then the current user message.
func (c *ContextBuilder) BuildMessages(history []map[string]any, currentMessage string, media []string, channel, chatID string) []map[string]any {
	systemPrompt := c.BuildSystemPrompt()
	if channel != "" && chatID != "" {
		systemPrompt += fmt.Sprintf("\n\n## Current Session\nChannel: %s\nChat ID: %s", channel, chatID)
	}

	messages := make([]map[string]any, 0, len(history)+2)
	messages = append(messages, map[string]any{
		"role":    "system",
		"content": systemPrompt,
	})
	messages = append(messages, history...)
	messages = append(messages, map[string]any{
		"role":    "user",
		"content": c.buildUserContent(currentMessage, media),
	})
	return messages
}

// buildUserContent returns plain text, or the multimodal content list when
// image attachments are present.
func (c *ContextBuilder) buildUserContent(text string, media []string) any {
	if len(media) == 0 {
		return text
	}

	var content []map[string]any
	for _, path := range media {
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if !strings.HasPrefix(mimeType, "image/") {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content = append(content, map[string]any{
			"type": "image_url",
			"image_url": map[string]any{
				"url": fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)),
			},
		})
	}
	if len(content) == 0 {
		return text
	}

	content = append(content, map[string]any{
		"type": "text",
		"text": text,
	})
	return content
}
