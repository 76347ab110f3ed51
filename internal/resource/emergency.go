package resource

import (
	"sync"
	"time"

	"github.com/macrokit/macroguard/internal/logger"
)

// Emergency is the single piece of process-wide emergency state, shared by
// the resource monitor and the intervention executor. Once set it is only
// cleared by an explicit recovery action, never by time passing.
type Emergency struct {
	mu          sync.Mutex
	active      bool
	reason      string
	triggeredAt time.Time
}

// NewEmergency creates the emergency handle in its initial, inactive state
func NewEmergency() *Emergency {
	return &Emergency{}
}

// Trigger sets emergency mode. Returns false if it was already active,
// so exactly one caller owns the transition.
func (e *Emergency) Trigger(reason string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active {
		return false
	}
	e.active = true
	e.reason = reason
	e.triggeredAt = time.Now()

	logger.Error().Str("reason", reason).Msg("Emergency mode engaged")
	return true
}

// Recover clears emergency mode. This is the only way out.
func (e *Emergency) Recover() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return
	}
	e.active = false
	e.reason = ""
	e.triggeredAt = time.Time{}

	logger.Info().Msg("Emergency mode cleared by recovery action")
}

// Active reports whether emergency mode is set
func (e *Emergency) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Reason returns why emergency mode was set and when
func (e *Emergency) Reason() (string, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reason, e.triggeredAt
}
