package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wrenbot/wren/pkg/agent"
	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/config"
	"github.com/wrenbot/wren/pkg/cron"
	"github.com/wrenbot/wren/pkg/providers"
)

func agentCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Chat with the assistant from the terminal",
		Run: func(cmd *cobra.Command, args []string) {
			runAgentCLI(message)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "send a single message and exit")
	return cmd
}

func runAgentCLI(message string) {
	setupLogging()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	workspace, err := cfg.Workspace()
	if err != nil {
		slog.Error("failed to prepare workspace", "error", err)
		os.Exit(1)
	}

	provider, err := providers.NewProvider(cfg)
	if err != nil {
		fmt.Printf("No AI provider configured: %v\n", err)
		fmt.Println("Run 'wren onboard' and add an API key to ~/.wren/config.json")
		os.Exit(1)
	}

	messageBus := bus.NewMessageBus()

	var loop *agent.AgentLoop
	cronStorePath := filepath.Join(config.Dir(), "cron", "jobs.json")
	cronService := cron.NewService(cronStorePath, func(job cron.Job) error {
		_, err := loop.ProcessDirect(job.Payload.Message, "cron:"+job.ID)
		return err
	})
	loop = agent.NewAgentLoop(messageBus, provider, workspace, cfg, cronService)

	if message != "" {
		reply, err := loop.ProcessDirect(message, "cli:direct")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(reply)
		return
	}

	fmt.Println("wren interactive session. Type 'exit' to quit, '/new' for a fresh topic.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		reply, err := loop.ProcessDirect(line, "cli:direct")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Println(reply)
	}
}
