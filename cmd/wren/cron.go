package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrenbot/wren/pkg/agent"
	"github.com/wrenbot/wren/pkg/bus"
	"github.com/wrenbot/wren/pkg/config"
	"github.com/wrenbot/wren/pkg/cron"
	"github.com/wrenbot/wren/pkg/providers"
)

func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage scheduled jobs",
	}
	cmd.AddCommand(cronListCmd())
	cmd.AddCommand(cronAddCmd())
	cmd.AddCommand(cronRemoveCmd())
	cmd.AddCommand(cronEnableCmd(true))
	cmd.AddCommand(cronEnableCmd(false))
	cmd.AddCommand(cronRunCmd())
	return cmd
}

// openCronStore opens the job store without starting the scheduler loop, so
// the CLI can edit jobs while (or without) a gateway running.
func openCronStore() *cron.Service {
	storePath := filepath.Join(config.Dir(), "cron", "jobs.json")
	return cron.NewService(storePath, nil)
}

func cronListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Run: func(cmd *cobra.Command, args []string) {
			jobs := openCronStore().List(all)
			if len(jobs) == 0 {
				fmt.Println("No scheduled jobs.")
				return
			}
			for _, job := range jobs {
				state := "enabled"
				if !job.Enabled {
					state = "disabled"
				}
				next := "-"
				if job.State.NextRunAtMs > 0 {
					next = time.UnixMilli(job.State.NextRunAtMs).Format(time.RFC3339)
				}
				fmt.Printf("%s  %-20s %-9s next=%s  %q\n", job.ID, job.Name, state, next, job.Payload.Message)
				if job.State.LastStatus == "error" {
					fmt.Printf("    last run failed (%d consecutive): %s\n", job.State.ConsecutiveFailures, job.State.LastError)
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include disabled jobs")
	return cmd
}

func cronAddCmd() *cobra.Command {
	var (
		name    string
		message string
		every   time.Duration
		expr    string
		at      string
		channel string
		to      string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a scheduled job",
		Run: func(cmd *cobra.Command, args []string) {
			if message == "" {
				fmt.Println("--message is required")
				os.Exit(1)
			}

			var sched cron.Schedule
			switch {
			case every > 0:
				sched = cron.Schedule{Kind: cron.KindEvery, EveryMs: every.Milliseconds()}
			case expr != "":
				sched = cron.Schedule{Kind: cron.KindCron, Expr: expr}
			case at != "":
				ts, err := time.Parse(time.RFC3339, at)
				if err != nil {
					fmt.Printf("invalid --at time (want RFC 3339): %v\n", err)
					os.Exit(1)
				}
				sched = cron.Schedule{Kind: cron.KindAt, AtMs: ts.UnixMilli()}
			default:
				fmt.Println("one of --every, --cron or --at is required")
				os.Exit(1)
			}

			payload := cron.Payload{Message: message}
			if channel != "" && to != "" {
				payload.Deliver = true
				payload.Channel = channel
				payload.To = to
			}

			job, err := openCronStore().Add(name, sched, payload, false)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Added job %s (%s)\n", job.ID, job.Name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "job name")
	cmd.Flags().StringVar(&message, "message", "", "message the agent processes when the job fires")
	cmd.Flags().DurationVar(&every, "every", 0, "fixed interval, e.g. 30m or 24h")
	cmd.Flags().StringVar(&expr, "cron", "", "5-field cron expression, e.g. \"0 9 * * *\"")
	cmd.Flags().StringVar(&at, "at", "", "one-shot RFC 3339 time")
	cmd.Flags().StringVar(&channel, "channel", "", "deliver the response to this channel")
	cmd.Flags().StringVar(&to, "to", "", "deliver the response to this chat id")
	return cmd
}

func cronRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if openCronStore().Remove(args[0]) {
				fmt.Printf("Removed job %s\n", args[0])
			} else {
				fmt.Printf("No job with id %s\n", args[0])
				os.Exit(1)
			}
		},
	}
}

func cronEnableCmd(enable bool) *cobra.Command {
	use, verb := "enable <id>", "Enabled"
	if !enable {
		use, verb = "disable <id>", "Disabled"
	}
	return &cobra.Command{
		Use:   use,
		Short: verb + " a job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if _, ok := openCronStore().Enable(args[0], enable); ok {
				fmt.Printf("%s job %s\n", verb, args[0])
			} else {
				fmt.Printf("No job with id %s\n", args[0])
				os.Exit(1)
			}
		},
	}
}

// newCronRunner builds a cron service whose jobs run as direct agent turns,
// for one-off execution from the CLI. The scheduler loop is never started.
func newCronRunner(cfg *config.Config) (*cron.Service, func(), error) {
	workspace, err := cfg.Workspace()
	if err != nil {
		return nil, nil, err
	}
	provider, err := providers.NewProvider(cfg)
	if err != nil {
		return nil, nil, err
	}

	messageBus := bus.NewMessageBus()
	var loop *agent.AgentLoop
	storePath := filepath.Join(config.Dir(), "cron", "jobs.json")
	svc := cron.NewService(storePath, func(job cron.Job) error {
		result, err := loop.ProcessDirect(job.Payload.Message, "cron:"+job.ID)
		if err != nil {
			return err
		}
		fmt.Println(result)
		return nil
	})
	loop = agent.NewAgentLoop(messageBus, provider, workspace, cfg, svc)
	return svc, func() {}, nil
}

func cronRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Run a job immediately without touching its schedule",
		Run: func(cmd *cobra.Command, args []string) {
			setupLogging()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			svc, loopStop, err := newCronRunner(cfg)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			defer loopStop()

			if !svc.Run(args[0], true) {
				fmt.Printf("No job with id %s\n", args[0])
				os.Exit(1)
			}
			fmt.Println("Job executed.")
		},
		Args: cobra.ExactArgs(1),
	}
}
