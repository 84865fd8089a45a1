package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wrenbot/wren/pkg/config"
)

const agentsTemplate = `# Agent Instructions

You are wren, a personal AI assistant.

- Be concise and direct. Skip filler.
- Use your tools when they help; don't narrate tool use.
- Keep notes about the user and ongoing work in your memory files.
- If a task will take a while, spawn a background task and say so.
`

const soulTemplate = `# Soul

Warm, curious, a little dry. You care about getting things right more than
sounding impressive. You remember what matters to the people you talk to.
`

const userTemplate = `# User

Notes about the user go here: name, timezone, preferences, ongoing projects.
wren reads this file at the start of every conversation.
`

const memoryTemplate = `# Long-term Memory

Facts worth keeping across conversations.
`

const skillsReadme = `# Skills

Each skill lives in its own directory with a SKILL.md file. The file starts
with YAML frontmatter describing the skill, followed by instructions:

    ---
    name: weather
    description: Look up the weather
    wren:
      requires:
        env: [WEATHER_API_KEY]
    ---
    Use the API at ... to fetch the forecast.

Paths inside a skill can use {baseDir} to refer to the skill's directory.
`

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Create the config file and workspace templates",
		Run: func(cmd *cobra.Command, args []string) {
			runOnboard()
		},
	}
}

// seedFile writes content at path unless the file already exists.
func seedFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func runOnboard() {
	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.Save(config.DefaultConfig(), cfgPath); err != nil {
			fmt.Printf("Error creating config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created config at %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists at %s\n", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	workspace, err := cfg.Workspace()
	if err != nil {
		fmt.Printf("Error creating workspace: %v\n", err)
		os.Exit(1)
	}

	seeds := map[string]string{
		filepath.Join(workspace, "AGENTS.md"):           agentsTemplate,
		filepath.Join(workspace, "SOUL.md"):             soulTemplate,
		filepath.Join(workspace, "USER.md"):             userTemplate,
		filepath.Join(workspace, "memory", "MEMORY.md"): memoryTemplate,
		filepath.Join(workspace, "skills", "README.md"): skillsReadme,
	}
	for path, content := range seeds {
		if err := seedFile(path, content); err != nil {
			fmt.Printf("Error writing %s: %v\n", path, err)
		}
	}

	fmt.Printf("Workspace ready at %s\n", workspace)
	fmt.Println("Add an API key under \"providers\" in the config, then run 'wren'.")
}
