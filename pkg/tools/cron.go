package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/wrenbot/wren/pkg/cron"
)

// CronTool lets the agent manage its own scheduled jobs. Reminders are
// delivered to the chat the tool is bound to when the job fires.
type CronTool struct {
	Service *cron.Service

	channel string
	chatID  string
}

// NewCronTool creates a CronTool.
func NewCronTool(service *cron.Service) *CronTool {
	return &CronTool{Service: service}
}

// Bind targets new jobs' delivery at the current conversation.
func (t *CronTool) Bind(channel, chatID string) {
	t.channel = channel
	t.chatID = chatID
}

func (t *CronTool) Name() string { return "cron" }
func (t *CronTool) Description() string {
	return "Manage scheduled jobs and reminders. Actions: list, add, remove, enable, disable. " +
		"For add, provide a message plus exactly one of every_seconds, cron (5-field expression), or at (RFC 3339 time)."
}

func (t *CronTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action":        map[string]any{"type": "string", "enum": []string{"list", "add", "remove", "enable", "disable"}},
			"name":          map[string]any{"type": "string", "description": "Short job name (for add)"},
			"message":       map[string]any{"type": "string", "description": "The prompt to run when the job fires (for add)"},
			"every_seconds": map[string]any{"type": "integer", "description": "Repeat interval in seconds"},
			"cron":          map[string]any{"type": "string", "description": "5-field cron expression, e.g. '0 9 * * *'"},
			"at":            map[string]any{"type": "string", "description": "One-shot time, RFC 3339, e.g. '2025-06-01T09:00:00Z'"},
			"deliver":       map[string]any{"type": "boolean", "description": "Send the job's response to the current chat (default true)"},
			"job_id":        map[string]any{"type": "string", "description": "Job ID (for remove/enable/disable)"},
		},
		"required": []string{"action"},
	}
}

func (t *CronTool) Execute(args map[string]any) (string, error) {
	action, err := strArg(args, "action")
	if err != nil {
		return "", err
	}

	switch action {
	case "list":
		return t.list(), nil
	case "add":
		return t.add(args), nil
	case "remove":
		id, err := strArg(args, "job_id")
		if err != nil {
			return "", err
		}
		if !t.Service.Remove(id) {
			return fmt.Sprintf("Error: no job with ID %s", id), nil
		}
		return fmt.Sprintf("Removed job %s", id), nil
	case "enable", "disable":
		id, err := strArg(args, "job_id")
		if err != nil {
			return "", err
		}
		job, ok := t.Service.Enable(id, action == "enable")
		if !ok {
			return fmt.Sprintf("Error: no job with ID %s", id), nil
		}
		if job.Enabled {
			return fmt.Sprintf("Enabled job %s (%s)", job.ID, job.Name), nil
		}
		return fmt.Sprintf("Disabled job %s (%s)", job.ID, job.Name), nil
	}
	return fmt.Sprintf("Error: unknown action: %s", action), nil
}

func (t *CronTool) list() string {
	jobs := t.Service.List(true)
	if len(jobs) == 0 {
		return "No scheduled jobs."
	}
	var sb strings.Builder
	sb.WriteString("Scheduled jobs:\n")
	for _, j := range jobs {
		state := "enabled"
		if !j.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(&sb, "- %s [%s] %s: %s (%s)", j.ID, state, j.Name, j.Payload.Message, describeSchedule(j.Schedule))
		if j.State.NextRunAtMs > 0 {
			fmt.Fprintf(&sb, ", next %s", time.UnixMilli(j.State.NextRunAtMs).Format(time.RFC3339))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (t *CronTool) add(args map[string]any) string {
	message, _ := args["message"].(string)
	if message == "" {
		return "Error: add requires a message"
	}
	name, _ := args["name"].(string)
	if name == "" {
		name = message
		if len(name) > 40 {
			name = name[:40]
		}
	}

	sched, errMsg := scheduleFromArgs(args)
	if errMsg != "" {
		return errMsg
	}

	deliver := true
	if d, ok := args["deliver"].(bool); ok {
		deliver = d
	}
	payload := cron.Payload{Message: message, Deliver: deliver}
	if deliver {
		if t.channel == "" || t.chatID == "" {
			return "Error: no chat is bound for delivery; set deliver to false or retry from a chat"
		}
		payload.Channel = t.channel
		payload.To = t.chatID
	}

	// One-shot reminders clean themselves up.
	job, err := t.Service.Add(name, sched, payload, sched.Kind == cron.KindAt)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Added job %s (%s), next run %s", job.ID, job.Name,
		time.UnixMilli(job.State.NextRunAtMs).Format(time.RFC3339))
}

func scheduleFromArgs(args map[string]any) (cron.Schedule, string) {
	var sched cron.Schedule
	set := 0

	if v, ok := args["every_seconds"].(float64); ok && v > 0 {
		sched = cron.Schedule{Kind: cron.KindEvery, EveryMs: int64(v * 1000)}
		set++
	}
	if expr, ok := args["cron"].(string); ok && expr != "" {
		sched = cron.Schedule{Kind: cron.KindCron, Expr: expr}
		set++
	}
	if at, ok := args["at"].(string); ok && at != "" {
		ts, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return cron.Schedule{}, fmt.Sprintf("Error: invalid at time %q (want RFC 3339)", at)
		}
		sched = cron.Schedule{Kind: cron.KindAt, AtMs: ts.UnixMilli()}
		set++
	}

	if set != 1 {
		return cron.Schedule{}, "Error: add requires exactly one of every_seconds, cron, or at"
	}
	return sched, ""
}

func describeSchedule(s cron.Schedule) string {
	switch s.Kind {
	case cron.KindEvery:
		return fmt.Sprintf("every %s", time.Duration(s.EveryMs)*time.Millisecond)
	case cron.KindCron:
		return fmt.Sprintf("cron %q", s.Expr)
	case cron.KindAt:
		return fmt.Sprintf("at %s", time.UnixMilli(s.AtMs).Format(time.RFC3339))
	}
	return s.Kind
}
