package supervisor

import (
	"time"

	"github.com/macrokit/macroguard/internal/logger"
	"github.com/macrokit/macroguard/internal/macro"
)

// RuleMatch is the fact produced when a rule fires for a macro
type RuleMatch struct {
	MacroID     string
	Rule        *Rule
	Count       int
	WindowStart time.Time
}

// Matcher evaluates events against the rule registry. Matching itself is
// stateless; all state lives in the per-(macro, rule) windows owned by the
// caller, so macros can be sharded across workers without coordination.
type Matcher struct {
	registry *Registry
}

// NewMatcher creates a matcher over a compiled registry
func NewMatcher(registry *Registry) *Matcher {
	return &Matcher{registry: registry}
}

// Evaluate checks one event against every rule and returns the rules that
// fired. windows holds the caller-owned match windows keyed by rule id.
func (m *Matcher) Evaluate(windows map[string]*matchWindow, event macro.Event) []RuleMatch {
	var fired []RuleMatch

	for _, rule := range m.registry.rules {
		if !rule.Pattern.MatchString(event.Content) {
			continue
		}

		w, ok := windows[rule.ID]
		if !ok {
			w = newMatchWindow(rule.Threshold)
			windows[rule.ID] = w
		}

		ok, count, windowStart := w.observe(event.Timestamp, rule.Window)
		if !ok {
			logger.Debug().
				Str("macro", event.MacroID).
				Str("rule", rule.ID).
				Int("count", count).
				Int("threshold", rule.Threshold).
				Msg("Pattern matched below threshold")
			continue
		}

		logger.Info().
			Str("macro", event.MacroID).
			Str("rule", rule.ID).
			Str("tier", string(rule.Tier)).
			Int("count", count).
			Msg("Rule fired")

		fired = append(fired, RuleMatch{
			MacroID:     event.MacroID,
			Rule:        rule,
			Count:       count,
			WindowStart: windowStart,
		})
	}

	return fired
}
