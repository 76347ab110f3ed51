package supervisor

import (
	"github.com/macrokit/macroguard/internal/macro"
)

// Policy maps risk scores and firing rules onto macro state transitions
// under the configured guard level. Automatic transitions only ever move
// toward stricter states; the only way back from Paused is an explicit
// resume, and Stopped is terminal without re-registration.
type Policy struct {
	level      macro.GuardLevel
	thresholds macro.Thresholds
}

// NewPolicy creates a policy for the given guard level
func NewPolicy(level macro.GuardLevel) *Policy {
	return &Policy{
		level:      level,
		thresholds: level.Thresholds(),
	}
}

// Level returns the configured guard level
func (p *Policy) Level() macro.GuardLevel {
	return p.level
}

// Evaluate computes the target state for a macro given its current state,
// risk score, and the rules that fired on the last event.
//
// A single critical-tier match forces Stop regardless of aggregate score:
// one clearly dangerous action overrides aggregate caution. Otherwise the
// most severe prescribed action among firing rules and the score thresholds
// both act as floors, and the stricter of the two wins.
func (p *Policy) Evaluate(current macro.State, score float64, fired []RuleMatch) macro.State {
	if current.IsTerminal() {
		return current
	}

	target := p.stateForScore(score)

	for _, match := range fired {
		if match.Rule.Tier == macro.TierCritical {
			return macro.StateStopped
		}
		if prescribed := match.Rule.Action.TargetState(); prescribed.Rank() > target.Rank() {
			target = prescribed
		}
	}

	// Never relax automatically
	if target.Rank() <= current.Rank() {
		return current
	}

	return target
}

func (p *Policy) stateForScore(score float64) macro.State {
	switch {
	case score >= p.thresholds.Stop:
		return macro.StateStopped
	case score >= p.thresholds.Pause:
		return macro.StatePaused
	case score >= p.thresholds.Warn:
		return macro.StateWarned
	default:
		return macro.StateRunning
	}
}

// ActionFor maps a state transition onto the intervention that realizes it
func ActionFor(target macro.State) (macro.Action, bool) {
	switch target {
	case macro.StateWarned:
		return macro.ActionWarn, true
	case macro.StatePaused:
		return macro.ActionPause, true
	case macro.StateStopped:
		return macro.ActionStop, true
	default:
		return "", false
	}
}
