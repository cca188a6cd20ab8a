package scheduler

import "time"

// Config is the scheduler section of the application config tree:
// `scheduler.enabled`, `scheduler.timezone`,
// `scheduler.heartbeat.*`, `scheduler.jobs[]`.
type Config struct {
	Enabled   bool            `yaml:"enabled"`
	Timezone  string          `yaml:"timezone"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Jobs      []JobConfig     `yaml:"jobs"`
}

// HeartbeatConfig is the `scheduler.heartbeat` subtree.
type HeartbeatConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	Prompt  string `yaml:"prompt"`
}

// JobConfig is one entry of `scheduler.jobs[]`.
type JobConfig struct {
	ID       string         `yaml:"id"`
	Prompt   string         `yaml:"prompt"`
	Cron     string         `yaml:"cron"`
	CallType string         `yaml:"call_type"`
	Channel  string         `yaml:"channel"`
	Enabled  bool           `yaml:"enabled"`
	Metadata map[string]any `yaml:"metadata"`
}

func loadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(timezone)
}
