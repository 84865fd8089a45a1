package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrenbot/wren/pkg/agent"
	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/channels"
	"github.com/wrenbot/wren/pkg/config"
	"github.com/wrenbot/wren/pkg/cron"
	"github.com/wrenbot/wren/pkg/heartbeat"
	"github.com/wrenbot/wren/pkg/providers"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the full assistant: channels, agent loop, cron and heartbeat",
		Run: func(cmd *cobra.Command, args []string) {
			runGateway()
		},
	}
}

func runGateway() {
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

	// The cron handler needs the loop and the loop needs the service, so the
	// closure captures the variable before the loop exists. Jobs cannot fire
	// until Start, which happens after the loop is built.
	var loop *agent.AgentLoop
	cronStorePath := filepath.Join(config.Dir(), "cron", "jobs.json")
	cronService := cron.NewService(cronStorePath, func(job cron.Job) error {
		result, err := loop.ProcessDirect(job.Payload.Message, "cron:"+job.ID)
		if err != nil {
			return err
		}
		if job.Payload.Deliver && job.Payload.Channel != "" && job.Payload.To != "" {
			messageBus.PublishOutbound(bus.OutboundMessage{
				Channel: job.Payload.Channel,
				ChatID:  job.Payload.To,
				Content: result,
			})
		}
		return nil
	})

	loop = agent.NewAgentLoop(messageBus, provider, workspace, cfg, cronService)

	hb := heartbeat.NewService(workspace,
		time.Duration(cfg.Heartbeat.IntervalMinutes)*time.Minute,
		func(prompt string) error {
			_, err := loop.ProcessDirect(prompt, "heartbeat")
			return err
		})
	hb.Enabled = cfg.Heartbeat.Enabled

	manager := channels.NewManager(cfg, messageBus)

	cronService.Start()
	if hb.Enabled {
		hb.Start()
	}
	go loop.Run()
	manager.StartAll()

	slog.Info("wren gateway running",
		"workspace", workspace,
		"model", cfg.Agents.Defaults.Model,
		"channels", manager.EnabledChannels(),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("shutting down")
	manager.StopAll()
	loop.Stop()
	if hb.Enabled {
		hb.Stop()
	}
	cronService.Stop()
}
