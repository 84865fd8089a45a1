package cron

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	robfig "github.com/robfig/cron/v3"
)

// Service owns a persistent job store and a cooperative scheduler loop.
// Firing a job invokes the injected OnJob callback; the host wires it to
// the agent's direct-turn entry.
type Service struct {
	StorePath string
	OnJob     func(Job) error

	now      func() time.Time
	mu       sync.Mutex
	store    *storeDoc
	running  bool
	stopChan chan struct{}
}

// NewService creates a cron service backed by the JSON document at
// storePath.
func NewService(storePath string, onJob func(Job) error) *Service {
	return &Service{
		StorePath: storePath,
		OnJob:     onJob,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

func (s *Service) nowMs() int64 {
	return s.now().UnixMilli()
}

var cronParser = robfig.NewParser(robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow)

// NextRun computes the next fire time in epoch ms as a pure function of
// the schedule and the current time. Zero means "never".
//
//   - every: now + interval, drift accepted, no catch-up
//   - cron:  first instant strictly after now matching the 5-field
//     expression, local timezone
//   - at:    the configured instant; past instants fire immediately
func NextRun(sched Schedule, nowMs int64) int64 {
	switch sched.Kind {
	case KindEvery:
		if sched.EveryMs <= 0 {
			return 0
		}
		return nowMs + sched.EveryMs
	case KindCron:
		spec, err := cronParser.Parse(sched.Expr)
		if err != nil {
			slog.Warn("invalid cron expression", "expr", sched.Expr, "error", err)
			return 0
		}
		return spec.Next(time.UnixMilli(nowMs)).UnixMilli()
	case KindAt:
		return sched.AtMs
	}
	return 0
}

// ValidateSchedule rejects malformed schedules before they enter the store.
func ValidateSchedule(sched Schedule) error {
	switch sched.Kind {
	case KindEvery:
		if sched.EveryMs <= 0 {
			return fmt.Errorf("every schedule needs a positive interval")
		}
	case KindCron:
		if _, err := cronParser.Parse(sched.Expr); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", sched.Expr, err)
		}
	case KindAt:
		if sched.AtMs <= 0 {
			return fmt.Errorf("at schedule needs a timestamp")
		}
	default:
		return fmt.Errorf("unknown schedule kind %q", sched.Kind)
	}
	return nil
}

func (s *Service) loadLocked() {
	if s.store != nil {
		return
	}
	s.store = &storeDoc{Version: 1}

	data, err := os.ReadFile(s.StorePath)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, s.store); err != nil {
		// Partial or corrupt document: start empty, the next save replaces it.
		slog.Warn("unreadable cron store, starting empty", "path", s.StorePath, "error", err)
		s.store = &storeDoc{Version: 1}
	}
}

// saveLocked rewrites the whole document and renames it into place so a
// crash never leaves a partial file behind.
func (s *Service) saveLocked() {
	if s.store == nil {
		return
	}
	dir := filepath.Dir(s.StorePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("failed to create cron store dir", "dir", dir, "error", err)
		return
	}
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		slog.Error("failed to marshal cron store", "error", err)
		return
	}
	tmp := s.StorePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		slog.Error("failed to write cron store", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, s.StorePath); err != nil {
		slog.Error("failed to replace cron store", "path", s.StorePath, "error", err)
	}
}

// Start loads the store, recomputes schedules and begins the tick loop.
func (s *Service) Start() {
	s.mu.Lock()
	s.loadLocked()
	now := s.nowMs()
	for i := range s.store.Jobs {
		job := &s.store.Jobs[i]
		if job.Enabled {
			job.State.NextRunAtMs = NextRun(job.Schedule, now)
		}
	}
	s.saveLocked()
	s.running = true
	jobs := len(s.store.Jobs)
	s.mu.Unlock()

	go s.loop()
	slog.Info("cron service started", "jobs", jobs)
}

// Stop halts the scheduler loop. In-flight callbacks run to completion.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()
	close(s.stopChan)
}

func (s *Service) loop() {
	for {
		delay := s.nextWakeDelay()
		select {
		case <-s.stopChan:
			return
		case <-time.After(delay):
			s.processDue()
		}
	}
}

func (s *Service) nextWakeDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Cap the sleep so jobs added while idle are noticed promptly.
	const maxDelay = time.Second
	next := s.nextWakeLocked()
	if next == 0 {
		return maxDelay
	}
	delay := time.Duration(next-s.nowMs()) * time.Millisecond
	if delay < 0 {
		return 0
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (s *Service) nextWakeLocked() int64 {
	if s.store == nil {
		return 0
	}
	var minNext int64
	for _, job := range s.store.Jobs {
		if job.Enabled && job.State.NextRunAtMs > 0 {
			if minNext == 0 || job.State.NextRunAtMs < minNext {
				minNext = job.State.NextRunAtMs
			}
		}
	}
	return minNext
}

// processDue fires every enabled job whose next run is in the past, then
// persists the new state before the next tick.
func (s *Service) processDue() {
	s.mu.Lock()
	now := s.nowMs()
	var due []Job
	for _, job := range s.store.Jobs {
		if job.Enabled && job.State.NextRunAtMs > 0 && now >= job.State.NextRunAtMs {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.fire(job, false)
	}
}

// fire runs one job's callback and updates its state. With force set the
// enabled flag and schedule are ignored.
func (s *Service) fire(job Job, force bool) {
	startMs := s.nowMs()
	slog.Info("cron: executing job", "id", job.ID, "name", job.Name)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		if s.OnJob != nil {
			err = s.OnJob(job)
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(job.ID)
	if idx < 0 {
		return // removed while running
	}
	j := &s.store.Jobs[idx]
	j.State.LastRunAtMs = startMs
	j.UpdatedAtMs = s.nowMs()
	if err != nil {
		j.State.LastStatus = "error"
		j.State.LastError = err.Error()
		j.State.ConsecutiveFailures++
		slog.Error("cron: job failed", "id", j.ID, "name", j.Name, "failures", j.State.ConsecutiveFailures, "error", err)
	} else {
		j.State.LastStatus = "ok"
		j.State.LastError = ""
		j.State.ConsecutiveFailures = 0
	}

	if j.Schedule.Kind == KindAt && !force {
		// One-shot: fired, now retire it.
		if j.DeleteAfterRun {
			s.store.Jobs = append(s.store.Jobs[:idx], s.store.Jobs[idx+1:]...)
		} else {
			j.Enabled = false
			j.State.NextRunAtMs = 0
		}
	} else if !force {
		j.State.NextRunAtMs = NextRun(j.Schedule, s.nowMs())
	}
	s.saveLocked()
}

func (s *Service) indexLocked(id string) int {
	for i := range s.store.Jobs {
		if s.store.Jobs[i].ID == id {
			return i
		}
	}
	return -1
}

// Add creates and persists a new enabled job.
func (s *Service) Add(name string, sched Schedule, payload Payload, deleteAfterRun bool) (Job, error) {
	if err := ValidateSchedule(sched); err != nil {
		return Job{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	now := s.nowMs()
	job := Job{
		ID:             uuid.NewString()[:8],
		Name:           name,
		Enabled:        true,
		Schedule:       sched,
		Payload:        payload,
		State:          JobState{NextRunAtMs: NextRun(sched, now)},
		CreatedAtMs:    now,
		UpdatedAtMs:    now,
		DeleteAfterRun: deleteAfterRun,
	}
	s.store.Jobs = append(s.store.Jobs, job)
	s.saveLocked()
	return job, nil
}

// Remove deletes a job by id.
func (s *Service) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	s.store.Jobs = append(s.store.Jobs[:idx], s.store.Jobs[idx+1:]...)
	s.saveLocked()
	return true
}

// Enable flips a job's enabled flag, recomputing its next run when
// re-enabling.
func (s *Service) Enable(id string, enabled bool) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	idx := s.indexLocked(id)
	if idx < 0 {
		return Job{}, false
	}
	j := &s.store.Jobs[idx]
	j.Enabled = enabled
	if enabled {
		j.State.NextRunAtMs = NextRun(j.Schedule, s.nowMs())
	} else {
		j.State.NextRunAtMs = 0
	}
	j.UpdatedAtMs = s.nowMs()
	s.saveLocked()
	return *j, true
}

// List returns jobs sorted by next run time. Disabled jobs are included
// only when requested.
func (s *Service) List(includeDisabled bool) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	jobs := make([]Job, 0, len(s.store.Jobs))
	for _, j := range s.store.Jobs {
		if j.Enabled || includeDisabled {
			jobs = append(jobs, j)
		}
	}
	sort.Slice(jobs, func(i, k int) bool {
		a, b := jobs[i].State.NextRunAtMs, jobs[k].State.NextRunAtMs
		if a == 0 {
			return false
		}
		if b == 0 {
			return true
		}
		return a < b
	})
	return jobs
}

// Get returns a job by id.
func (s *Service) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	idx := s.indexLocked(id)
	if idx < 0 {
		return Job{}, false
	}
	return s.store.Jobs[idx], true
}

// Run fires a job immediately. Disabled jobs fire only with force; a
// forced run does not disturb the regular schedule.
func (s *Service) Run(id string, force bool) bool {
	s.mu.Lock()
	s.loadLocked()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	job := s.store.Jobs[idx]
	s.mu.Unlock()

	if !job.Enabled && !force {
		return false
	}
	s.fire(job, true)
	return true
}

// ServiceStatus reports the scheduler state.
func (s *Service) ServiceStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	st := Status{Running: s.running, Jobs: len(s.store.Jobs), NextWakeMs: s.nextWakeLocked()}
	for _, j := range s.store.Jobs {
		if j.Enabled {
			st.Enabled++
		}
	}
	return st
}
