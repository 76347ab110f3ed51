package macro

import (
	"fmt"
	"time"
)

// State represents the lifecycle state of a monitored macro
type State string

// Macro lifecycle states, ordered from least to most restrictive
const (
	StateRunning State = "running"
	StateWarned  State = "warned"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// Rank returns the strictness ordering of a state. Higher is stricter.
func (s State) Rank() int {
	switch s {
	case StateRunning:
		return 0
	case StateWarned:
		return 1
	case StatePaused:
		return 2
	case StateStopped:
		return 3
	default:
		return -1
	}
}

// IsTerminal returns true for states that cannot be left without re-registration
func (s State) IsTerminal() bool {
	return s == StateStopped
}

// Tier classifies how dangerous a matched pattern is
type Tier string

// Risk tiers
const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// Weight returns the risk score increment contributed by one match of this tier
func (t Tier) Weight() float64 {
	switch t {
	case TierLow:
		return 0.1
	case TierMedium:
		return 0.3
	case TierHigh:
		return 0.5
	case TierCritical:
		return 0.8
	default:
		return 0
	}
}

// ParseTier parses a tier name from configuration
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierLow, TierMedium, TierHigh, TierCritical:
		return Tier(s), nil
	default:
		return "", fmt.Errorf("unknown risk tier %q", s)
	}
}

// Action is the intervention a rule or policy prescribes
type Action string

// Guard actions, ordered from least to most severe
const (
	ActionWarn  Action = "warn"
	ActionPause Action = "pause"
	ActionStop  Action = "stop"
)

// TargetState returns the macro state an action escalates to
func (a Action) TargetState() State {
	switch a {
	case ActionWarn:
		return StateWarned
	case ActionPause:
		return StatePaused
	case ActionStop:
		return StateStopped
	default:
		return StateRunning
	}
}

// ParseAction parses an action name from configuration
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionWarn, ActionPause, ActionStop:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown guard action %q", s)
	}
}

// GuardLevel is the system-wide strictness setting
type GuardLevel string

// Guard levels
const (
	GuardLow     GuardLevel = "low"
	GuardMedium  GuardLevel = "medium"
	GuardHigh    GuardLevel = "high"
	GuardMaximum GuardLevel = "maximum"
)

// Thresholds holds the risk scores at which the policy escalates
type Thresholds struct {
	Warn  float64
	Pause float64
	Stop  float64
}

// Thresholds returns the escalation thresholds for a guard level
func (g GuardLevel) Thresholds() Thresholds {
	switch g {
	case GuardLow:
		return Thresholds{Warn: 0.6, Pause: 0.85, Stop: 0.95}
	case GuardMedium:
		return Thresholds{Warn: 0.5, Pause: 0.75, Stop: 0.9}
	case GuardHigh:
		return Thresholds{Warn: 0.4, Pause: 0.6, Stop: 0.8}
	case GuardMaximum:
		return Thresholds{Warn: 0.25, Pause: 0.45, Stop: 0.65}
	default:
		return GuardMedium.Thresholds()
	}
}

// ParseGuardLevel parses a guard level name from configuration
func ParseGuardLevel(s string) (GuardLevel, error) {
	switch GuardLevel(s) {
	case GuardLow, GuardMedium, GuardHigh, GuardMaximum:
		return GuardLevel(s), nil
	default:
		return "", fmt.Errorf("unknown guard level %q", s)
	}
}

// Handle identifies one monitored macro for its monitoring lifetime
type Handle struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registered_at"`
	State        State     `json:"state"`
}

// Event is a single observed macro action
type Event struct {
	MacroID   string    `json:"macro_id"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
}

// MacroNotFoundError indicates an operation referenced an unregistered macro
type MacroNotFoundError struct {
	MacroID string
}

func (e *MacroNotFoundError) Error() string {
	return "macro not registered: " + e.MacroID
}

// MacroStoppedError indicates an operation is invalid because the macro is stopped
type MacroStoppedError struct {
	MacroID string
}

func (e *MacroStoppedError) Error() string {
	return "macro is stopped: " + e.MacroID
}

// NotPausedError indicates a resume was issued for a macro that is not paused
type NotPausedError struct {
	MacroID string
	State   State
}

func (e *NotPausedError) Error() string {
	return fmt.Sprintf("macro %s is %s, only paused macros can be resumed", e.MacroID, e.State)
}
