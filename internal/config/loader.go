package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	globalConfigDir  = ".macroguard"
	projectConfigDir = ".macroguard"
	configFileName   = "config.yaml"
)

// Loader handles loading and merging configuration files
type Loader struct {
	globalPath  string
	projectPath string
}

// NewLoader creates a new configuration loader
func NewLoader(projectDir string) (*Loader, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	if projectDir == "" {
		projectDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	return &Loader{
		globalPath:  filepath.Join(homeDir, globalConfigDir, configFileName),
		projectPath: filepath.Join(projectDir, projectConfigDir, configFileName),
	}, nil
}

// Load loads and merges configuration from all sources.
// The merged result is validated; an invalid rule set is a fatal error.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	globalCfg, err := l.loadFile(l.globalPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load global config: %w", err)
	}
	if globalCfg != nil {
		cfg = mergeConfigs(cfg, globalCfg)
	}

	projectCfg, err := l.loadFile(l.projectPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load project config: %w", err)
	}
	if projectCfg != nil {
		cfg = mergeConfigs(cfg, projectCfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile loads and validates configuration from a specific file
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	fileCfg, err := l.loadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := mergeConfigs(DefaultConfig(), fileCfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (l *Loader) loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// mergeConfigs merges two configurations, with override taking precedence
func mergeConfigs(base, override *Config) *Config {
	result := &Config{
		Version: coalesce(override.Version, base.Version),
		Settings: Settings{
			LogLevel:        coalesce(override.Settings.LogLevel, base.Settings.LogLevel),
			LogFile:         coalesce(override.Settings.LogFile, base.Settings.LogFile),
			GuardLevel:      coalesce(override.Settings.GuardLevel, base.Settings.GuardLevel),
			DecayHalfLife:   coalesce(override.Settings.DecayHalfLife, base.Settings.DecayHalfLife),
			AutoResumeAfter: coalesce(override.Settings.AutoResumeAfter, base.Settings.AutoResumeAfter),
			ControllerURL:   coalesce(override.Settings.ControllerURL, base.Settings.ControllerURL),
		},
		Queue: QueueSettings{
			Shards:   coalesceInt(override.Queue.Shards, base.Queue.Shards),
			Capacity: coalesceInt(override.Queue.Capacity, base.Queue.Capacity),
		},
		Rules:     mergeRules(base.Rules, override.Rules),
		Resources: mergeResources(base.Resources, override.Resources),
		Alerts: AlertSettings{
			RateLimitWindow: coalesce(override.Alerts.RateLimitWindow, base.Alerts.RateLimitWindow),
		},
		Daemon:  mergeDaemonSettings(base.Daemon, override.Daemon),
		History: mergeHistorySettings(base.History, override.History),
	}

	return result
}

// mergeRules combines rules from base and override.
// Rules with the same id are replaced, new rules are added.
func mergeRules(base, override []RuleConfig) []RuleConfig {
	if len(override) == 0 {
		return base
	}
	if len(base) == 0 {
		return override
	}

	index := make(map[string]int, len(base))
	result := make([]RuleConfig, len(base))
	copy(result, base)
	for i, r := range base {
		index[r.ID] = i
	}

	for _, r := range override {
		if i, ok := index[r.ID]; ok {
			result[i] = r
			continue
		}
		index[r.ID] = len(result)
		result = append(result, r)
	}

	return result
}

func mergeResources(base, override ResourceConfig) ResourceConfig {
	result := base

	if override.Interval != "" {
		result.Interval = override.Interval
	}
	if override.Sustained != "" {
		result.Sustained = override.Sustained
	}
	if override.History != 0 {
		result.History = override.History
	}
	result.MemoryPct = mergeThresholds(base.MemoryPct, override.MemoryPct)
	result.CPUPct = mergeThresholds(base.CPUPct, override.CPUPct)
	result.Threads = mergeThresholds(base.Threads, override.Threads)
	result.Handles = mergeThresholds(base.Handles, override.Handles)

	return result
}

func mergeThresholds(base, override MetricThresholds) MetricThresholds {
	if override.Warning != 0 || override.Critical != 0 {
		return override
	}
	return base
}

// mergeDaemonSettings merges daemon settings, with override taking precedence
// for set values. Enabled is a pointer, so an unset override keeps the base.
func mergeDaemonSettings(base, override DaemonSettings) DaemonSettings {
	result := base

	if override.Enabled != nil {
		result.Enabled = override.Enabled
	}
	if override.Port != 0 {
		result.Port = override.Port
	}

	return result
}

func mergeHistorySettings(base, override HistorySettings) HistorySettings {
	result := base

	if override.Enabled || override.StoragePath != "" || override.Retention != "" ||
		override.CleanupProbability != 0 {
		result.Enabled = override.Enabled
	}
	if override.StoragePath != "" {
		result.StoragePath = override.StoragePath
	}
	if override.Retention != "" {
		result.Retention = override.Retention
	}
	if override.CleanupProbability != 0 {
		result.CleanupProbability = override.CleanupProbability
	}

	return result
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func coalesceInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// GlobalConfigPath returns the path to the global config file
func (l *Loader) GlobalConfigPath() string {
	return l.globalPath
}

// ProjectConfigPath returns the path to the project config file
func (l *Loader) ProjectConfigPath() string {
	return l.projectPath
}

// Exists checks if a config file exists at the given path
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
