package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/macrokit/macroguard/internal/macro"
)

// Config represents the complete macroguard configuration
type Config struct {
	Version   string          `yaml:"version"`
	Settings  Settings        `yaml:"settings"`
	Queue     QueueSettings   `yaml:"queue,omitempty"`
	Rules     []RuleConfig    `yaml:"rules,omitempty"`
	Resources ResourceConfig  `yaml:"resources,omitempty"`
	Alerts    AlertSettings   `yaml:"alerts,omitempty"`
	Daemon    DaemonSettings  `yaml:"daemon,omitempty"`
	History   HistorySettings `yaml:"history,omitempty"`
}

// Settings contains global configuration settings
type Settings struct {
	LogLevel   string `yaml:"log_level"`
	LogFile    string `yaml:"log_file,omitempty"`
	GuardLevel string `yaml:"guard_level"`
	// DecayHalfLife controls how quickly a macro's risk score decays
	DecayHalfLife string `yaml:"decay_half_life,omitempty"`
	// AutoResumeAfter, when set, resumes paused macros after the given
	// duration. Empty means manual resume only.
	AutoResumeAfter string `yaml:"auto_resume_after,omitempty"`
	// ControllerURL is the base URL of the macro interpreter's control
	// endpoint. Empty means interventions are logged but not enforced.
	ControllerURL string `yaml:"controller_url,omitempty"`
}

// QueueSettings controls the event ingestion queue
type QueueSettings struct {
	Shards   int `yaml:"shards,omitempty"`
	Capacity int `yaml:"capacity,omitempty"`
}

// RuleConfig is one dangerous-pattern rule definition as written in yaml
type RuleConfig struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description,omitempty"`
	Tier        string `yaml:"tier"`
	Pattern     string `yaml:"pattern"`
	Window      string `yaml:"window"`
	Threshold   int    `yaml:"threshold"`
	Action      string `yaml:"action"`
	Enabled     *bool  `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the rule is enabled. Rules default to enabled.
func (r *RuleConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// MetricThresholds holds warning and critical levels for one resource metric.
// Zero values disable the corresponding check.
type MetricThresholds struct {
	Warning  float64 `yaml:"warning,omitempty"`
	Critical float64 `yaml:"critical,omitempty"`
}

// ResourceConfig controls the resource monitor
type ResourceConfig struct {
	Interval  string           `yaml:"interval,omitempty"`
	Sustained string           `yaml:"sustained,omitempty"`
	History   int              `yaml:"history,omitempty"`
	MemoryPct MetricThresholds `yaml:"memory_pct,omitempty"`
	CPUPct    MetricThresholds `yaml:"cpu_pct,omitempty"`
	Threads   MetricThresholds `yaml:"threads,omitempty"`
	Handles   MetricThresholds `yaml:"handles,omitempty"`
}

// AlertSettings controls alert dispatch
type AlertSettings struct {
	RateLimitWindow string `yaml:"rate_limit_window,omitempty"`
}

// DaemonSettings controls the status/alert HTTP daemon
type DaemonSettings struct {
	// Enabled is a pointer so "not set" is distinguishable from an
	// explicit false, matching the rule enablement convention
	Enabled *bool `yaml:"enabled,omitempty"`
	Port    int   `yaml:"port,omitempty"`
}

// HistorySettings controls the sqlite alert history store
type HistorySettings struct {
	Enabled            bool    `yaml:"enabled,omitempty"`
	StoragePath        string  `yaml:"storage_path,omitempty"`
	Retention          string  `yaml:"retention,omitempty"`
	CleanupProbability float64 `yaml:"cleanup_probability,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Settings: Settings{
			LogLevel:      "info",
			GuardLevel:    string(macro.GuardMedium),
			DecayHalfLife: "30s",
		},
		Queue: QueueSettings{
			Shards:   4,
			Capacity: 256,
		},
		Resources: ResourceConfig{
			Interval:  "2s",
			Sustained: "5s",
			History:   120,
			MemoryPct: MetricThresholds{Warning: 75, Critical: 90},
			CPUPct:    MetricThresholds{Warning: 85, Critical: 97},
		},
		Alerts: AlertSettings{
			RateLimitWindow: "30s",
		},
		History: HistorySettings{
			Enabled:            true,
			Retention:          "168h",
			CleanupProbability: 0.05,
		},
		Daemon: DaemonSettings{
			Port: 8763,
		},
	}
}

// GuardLevel returns the parsed guard level, falling back to medium
func (c *Config) GuardLevel() macro.GuardLevel {
	level, err := macro.ParseGuardLevel(c.Settings.GuardLevel)
	if err != nil {
		return macro.GuardMedium
	}
	return level
}

// DecayHalfLife returns the parsed risk decay half-life
func (c *Config) DecayHalfLife() time.Duration {
	d, err := time.ParseDuration(c.Settings.DecayHalfLife)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// AutoResumeAfter returns the auto-resume delay, or zero when disabled
func (c *Config) AutoResumeAfter() time.Duration {
	if c.Settings.AutoResumeAfter == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Settings.AutoResumeAfter)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// RateLimitWindow returns the parsed alert rate-limit window
func (c *Config) RateLimitWindow() time.Duration {
	d, err := time.ParseDuration(c.Alerts.RateLimitWindow)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// DaemonEnabled reports whether the status daemon should run. The daemon is
// the supervisor's only query surface, so it defaults to on.
func (c *Config) DaemonEnabled() bool {
	return c.Daemon.Enabled == nil || *c.Daemon.Enabled
}

// Validate checks the configuration before the supervisor starts.
// Any invalid rule definition is fatal: supervising with a partially-loaded
// rule set is worse than refusing to start.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rule %d: missing id", i)
		}
		if seen[rule.ID] {
			return fmt.Errorf("rule %q: duplicate id", rule.ID)
		}
		seen[rule.ID] = true

		if _, err := macro.ParseTier(rule.Tier); err != nil {
			return fmt.Errorf("rule %q: %w", rule.ID, err)
		}
		if _, err := macro.ParseAction(rule.Action); err != nil {
			return fmt.Errorf("rule %q: %w", rule.ID, err)
		}
		if rule.Pattern == "" {
			return fmt.Errorf("rule %q: missing pattern", rule.ID)
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("rule %q: invalid pattern: %w", rule.ID, err)
		}
		window, err := time.ParseDuration(rule.Window)
		if err != nil {
			return fmt.Errorf("rule %q: invalid window: %w", rule.ID, err)
		}
		if window <= 0 {
			return fmt.Errorf("rule %q: window must be positive", rule.ID)
		}
		if rule.Threshold < 1 {
			return fmt.Errorf("rule %q: threshold must be at least 1", rule.ID)
		}
	}

	if c.Queue.Shards < 0 {
		return fmt.Errorf("queue: shards must not be negative")
	}
	if c.Queue.Capacity < 0 {
		return fmt.Errorf("queue: capacity must not be negative")
	}

	if c.Settings.GuardLevel != "" {
		if _, err := macro.ParseGuardLevel(c.Settings.GuardLevel); err != nil {
			return err
		}
	}

	return nil
}
