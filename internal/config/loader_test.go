package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	cfgDir := filepath.Join(dir, ".macroguard")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestLoadDefaultsWhenNoFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	loader, err := NewLoader(t.TempDir())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Settings.GuardLevel != "medium" {
		t.Errorf("guard level = %q, want medium", cfg.Settings.GuardLevel)
	}
	if cfg.Queue.Shards != 4 {
		t.Errorf("shards = %d, want 4", cfg.Queue.Shards)
	}
}

func TestLoadMergesProjectOverGlobal(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)

	writeConfig(t, home, `
version: "1"
settings:
  guard_level: low
  decay_half_life: 60s
rules:
  - id: mass-delete
    tier: high
    pattern: 'delete\s+all'
    window: 10s
    threshold: 3
    action: pause
  - id: rapid-send
    tier: medium
    pattern: 'send'
    window: 5s
    threshold: 10
    action: warn
`)

	writeConfig(t, project, `
settings:
  guard_level: high
rules:
  - id: mass-delete
    tier: critical
    pattern: 'delete\s+all'
    window: 8s
    threshold: 5
    action: stop
  - id: registry-write
    tier: high
    pattern: 'regwrite'
    window: 10s
    threshold: 2
    action: pause
`)

	loader, err := NewLoader(project)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Project overrides settings, global values survive where unset
	if cfg.Settings.GuardLevel != "high" {
		t.Errorf("guard level = %q, want high (project override)", cfg.Settings.GuardLevel)
	}
	if cfg.Settings.DecayHalfLife != "60s" {
		t.Errorf("decay half-life = %q, want 60s (global)", cfg.Settings.DecayHalfLife)
	}

	// Rules merge by id: overridden, inherited, and added
	if len(cfg.Rules) != 3 {
		t.Fatalf("got %d rules, want 3", len(cfg.Rules))
	}

	byID := make(map[string]RuleConfig)
	for _, r := range cfg.Rules {
		byID[r.ID] = r
	}

	if byID["mass-delete"].Tier != "critical" || byID["mass-delete"].Threshold != 5 {
		t.Errorf("mass-delete not overridden by project: %+v", byID["mass-delete"])
	}
	if byID["rapid-send"].Tier != "medium" {
		t.Errorf("rapid-send not inherited from global: %+v", byID["rapid-send"])
	}
	if _, ok := byID["registry-write"]; !ok {
		t.Error("registry-write from project config missing")
	}
}

func TestLoadMergesDaemonSettings(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)

	writeConfig(t, home, `
daemon:
  port: 9100
`)
	writeConfig(t, project, `
daemon:
  enabled: false
`)

	loader, err := NewLoader(project)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DaemonEnabled() {
		t.Error("project config disabled the daemon, merged config should report disabled")
	}
	if cfg.Daemon.Port != 9100 {
		t.Errorf("daemon port = %d, want 9100 (global, port-only override preserved)", cfg.Daemon.Port)
	}
}

// Supervising with a partially-loaded rule set is refused outright.
func TestLoadRejectsInvalidRules(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	writeConfig(t, home, `
rules:
  - id: broken
    tier: high
    pattern: '('
    window: 10s
    threshold: 3
    action: pause
`)

	loader, err := NewLoader(t.TempDir())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	if _, err := loader.Load(); err == nil {
		t.Fatal("Load must fail on invalid rule pattern")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := `
settings:
  guard_level: maximum
queue:
  shards: 8
  capacity: 512
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	cfg, err := loader.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Settings.GuardLevel != "maximum" {
		t.Errorf("guard level = %q, want maximum", cfg.Settings.GuardLevel)
	}
	if cfg.Queue.Shards != 8 || cfg.Queue.Capacity != 512 {
		t.Errorf("queue = %+v, want 8/512", cfg.Queue)
	}

	if _, err := loader.LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadFromFile must fail for missing file")
	}
}
