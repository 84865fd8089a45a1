package heartbeat

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// defaultPrompt is used when the workspace has no HEARTBEAT.md.
const defaultPrompt = `Heartbeat check-in. Review your memory and daily notes:
- Is there anything time-sensitive the user should be reminded of?
- Any pending follow-up you promised?
If there is something genuinely useful to do or say, do it (use the message tool to reach the user). Otherwise reply with just "ok".`

// Service wakes the agent periodically so it can act without being prompted.
// Beats run synchronously on the ticker goroutine, so at most one is in
// flight; a beat that overruns the interval simply delays the next one.
type Service struct {
	Workspace string
	Interval  time.Duration
	Enabled   bool

	// OnHeartbeat runs one agent turn with the heartbeat prompt.
	OnHeartbeat func(prompt string) error

	stopChan chan struct{}
	done     chan struct{}
}

// NewService creates a heartbeat service.
func NewService(workspace string, interval time.Duration, onHeartbeat func(string) error) *Service {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Service{
		Workspace:   workspace,
		Interval:    interval,
		Enabled:     true,
		OnHeartbeat: onHeartbeat,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Prompt returns the beat prompt: HEARTBEAT.md from the workspace when
// present, the built-in default otherwise.
func (s *Service) Prompt() string {
	data, err := os.ReadFile(filepath.Join(s.Workspace, "HEARTBEAT.md"))
	if err == nil && len(data) > 0 {
		return string(data)
	}
	return defaultPrompt
}

// Start begins ticking. The first beat fires after one full interval.
func (s *Service) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		slog.Info("heartbeat started", "interval", s.Interval)
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.beat()
			}
		}
	}()
}

// Stop halts the ticker and waits for an in-flight beat to finish.
func (s *Service) Stop() {
	close(s.stopChan)
	<-s.done
}

func (s *Service) beat() {
	if !s.Enabled || s.OnHeartbeat == nil {
		return
	}
	slog.Debug("heartbeat beat")
	if err := s.OnHeartbeat(s.Prompt()); err != nil {
		slog.Error("heartbeat failed", "error", err)
	}
}
