// Package scheduler fires cron-triggered heartbeat and named-job events
// into a submit function, decoupled from the Event Gateway it typically
// feeds.
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/kadirpekel/roshni/pkg/gateway"
)

// SubmitFunc accepts an event for dispatch — typically Gateway.Submit.
type SubmitFunc func(event *gateway.Event)

// PromptFunc returns a prompt string, evaluated at fire time, for a
// dynamic heartbeat.
type PromptFunc func() string

// Job is one named scheduled job definition.
type Job struct {
	ID       string
	Prompt   string
	Cron     string
	CallType string
	Channel  string
	Metadata map[string]any
	Enabled  bool
}

// Heartbeat is either a static prompt or a dynamic PromptFunc, evaluated
// when its cron trigger fires. PromptFunc takes precedence if both are
// set.
type Heartbeat struct {
	Cron          string
	Prompt        string
	PromptFunc    PromptFunc
	HeartbeatType string
	Channel       string
	Metadata      map[string]any
}

// Scheduler installs one cron trigger per registered heartbeat/job and
// submits the corresponding event via SubmitFunc when it fires.
type Scheduler struct {
	submit SubmitFunc
	log    *slog.Logger

	cron       *cron.Cron
	heartbeats []Heartbeat
	jobs       []Job
}

// New returns a Scheduler that fires triggers in the named timezone (e.g.
// "UTC", "America/Los_Angeles"). An empty timezone defaults to UTC.
func New(submit SubmitFunc, timezone string, log *slog.Logger) (*Scheduler, error) {
	loc, err := loadLocation(timezone)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		submit: submit,
		log:    log,
		cron:   cron.New(cron.WithLocation(loc)),
	}, nil
}

// AddHeartbeat registers a heartbeat. Construction happens before Start;
// registering after Start has no effect until the next Start.
func (s *Scheduler) AddHeartbeat(hb Heartbeat) {
	if hb.HeartbeatType == "" {
		hb.HeartbeatType = "heartbeat"
	}
	if hb.Channel == "" {
		hb.Channel = "heartbeat"
	}
	s.heartbeats = append(s.heartbeats, hb)
}

// AddJob registers a named job.
func (s *Scheduler) AddJob(job Job) {
	s.jobs = append(s.jobs, job)
}

// LoadConfig walks the config tree:
// scheduler.enabled, scheduler.timezone, scheduler.heartbeat.*,
// scheduler.jobs[]. A disabled top-level scheduler registers nothing.
func (s *Scheduler) LoadConfig(cfg Config) {
	if !cfg.Enabled {
		s.log.Info("scheduler disabled in config")
		return
	}

	if cfg.Heartbeat.Enabled && cfg.Heartbeat.Cron != "" {
		s.AddHeartbeat(Heartbeat{
			Cron:   cfg.Heartbeat.Cron,
			Prompt: firstNonEmpty(cfg.Heartbeat.Prompt, "[HEARTBEAT] Check in."),
		})
	}

	for _, jobCfg := range cfg.Jobs {
		if !jobCfg.Enabled {
			continue
		}
		s.AddJob(Job{
			ID:       jobCfg.ID,
			Prompt:   jobCfg.Prompt,
			Cron:     jobCfg.Cron,
			CallType: firstNonEmpty(jobCfg.CallType, "scheduled"),
			Channel:  firstNonEmpty(jobCfg.Channel, "scheduled"),
			Metadata: jobCfg.Metadata,
			Enabled:  true,
		})
	}
}

// Start installs every registered trigger and starts the cron driver.
func (s *Scheduler) Start() error {
	for i, hb := range s.heartbeats {
		hb := hb
		if _, err := s.cron.AddFunc(hb.Cron, func() { s.fireHeartbeat(hb) }); err != nil {
			return err
		}
		s.log.Info("registered heartbeat", "index", i, "cron", hb.Cron)
	}
	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Cron, func() { s.fireJob(job) }); err != nil {
			return err
		}
		s.log.Info("registered job", "id", job.ID, "cron", job.Cron)
	}
	s.cron.Start()
	s.log.Info("scheduler started", "heartbeats", len(s.heartbeats), "jobs", len(s.jobs))
	return nil
}

// Stop halts the cron driver and waits for any in-flight trigger to
// finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) fireHeartbeat(hb Heartbeat) {
	prompt := hb.Prompt
	if hb.PromptFunc != nil {
		prompt = hb.PromptFunc()
	}
	event := gateway.NewHeartbeatEvent(prompt, hb.HeartbeatType, hb.Channel)
	for k, v := range hb.Metadata {
		event.Metadata[k] = v
	}
	s.submit(event)
}

func (s *Scheduler) fireJob(job Job) {
	event := gateway.NewScheduledEvent(job.Prompt, job.ID, job.CallType, job.Channel)
	for k, v := range job.Metadata {
		event.Metadata[k] = v
	}
	s.submit(event)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
