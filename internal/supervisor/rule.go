package supervisor

import (
	"fmt"
	"regexp"
	"time"

	"github.com/macrokit/macroguard/internal/config"
	"github.com/macrokit/macroguard/internal/logger"
	"github.com/macrokit/macroguard/internal/macro"
)

// Rule is one compiled dangerous-pattern rule. Rules are immutable after
// compilation; there is no runtime mutation path.
type Rule struct {
	ID          string
	Description string
	Tier        macro.Tier
	Pattern     *regexp.Regexp
	Window      time.Duration
	Threshold   int
	Action      macro.Action
}

// Registry is the immutable set of rules loaded at startup
type Registry struct {
	rules []*Rule
	// longestWindow bounds how long any event can stay relevant
	longestWindow time.Duration
}

// CompileRules builds the rule registry from validated configuration.
// A rule that fails to compile here is a configuration error: the registry
// must be complete or the supervisor must not start.
func CompileRules(cfgs []config.RuleConfig) (*Registry, error) {
	reg := &Registry{}

	for _, cfg := range cfgs {
		if !cfg.IsEnabled() {
			logger.Debug().Str("rule", cfg.ID).Msg("Rule disabled, skipping")
			continue
		}

		tier, err := macro.ParseTier(cfg.Tier)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", cfg.ID, err)
		}
		action, err := macro.ParseAction(cfg.Action)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", cfg.ID, err)
		}
		pattern, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: invalid pattern: %w", cfg.ID, err)
		}
		window, err := time.ParseDuration(cfg.Window)
		if err != nil || window <= 0 {
			return nil, fmt.Errorf("rule %q: invalid window %q", cfg.ID, cfg.Window)
		}
		if cfg.Threshold < 1 {
			return nil, fmt.Errorf("rule %q: threshold must be at least 1", cfg.ID)
		}

		rule := &Rule{
			ID:          cfg.ID,
			Description: cfg.Description,
			Tier:        tier,
			Pattern:     pattern,
			Window:      window,
			Threshold:   cfg.Threshold,
			Action:      action,
		}
		reg.rules = append(reg.rules, rule)

		if window > reg.longestWindow {
			reg.longestWindow = window
		}

		logger.Debug().
			Str("rule", rule.ID).
			Str("tier", string(rule.Tier)).
			Str("action", string(rule.Action)).
			Dur("window", rule.Window).
			Int("threshold", rule.Threshold).
			Msg("Compiled pattern rule")
	}

	logger.Info().
		Int("total", len(cfgs)).
		Int("compiled", len(reg.rules)).
		Msg("Loaded pattern rule registry")

	return reg, nil
}

// Rules returns the compiled rules
func (r *Registry) Rules() []*Rule {
	return r.rules
}

// Len returns the number of compiled rules
func (r *Registry) Len() int {
	return len(r.rules)
}

// LongestWindow returns the longest rule window in the registry
func (r *Registry) LongestWindow() time.Duration {
	return r.longestWindow
}
