package supervisor

import (
	"math"
	"time"

	"github.com/macrokit/macroguard/internal/macro"
)

// ActiveMatch describes a rule currently firing for a macro, kept for
// diagnostic display until its window has passed.
type ActiveMatch struct {
	RuleID      string        `json:"rule_id"`
	Tier        macro.Tier    `json:"tier"`
	Count       int           `json:"count"`
	WindowStart time.Time     `json:"window_start"`
	LastFired   time.Time     `json:"last_fired"`
	Window      time.Duration `json:"-"`
}

// Health is the mutable per-macro risk state. One instance per registered
// macro, mutated only by the shard worker processing that macro's events.
type Health struct {
	Score              float64
	LastUpdated        time.Time
	ActiveMatches      map[string]ActiveMatch
	TotalWarnings      int
	TotalInterventions int
}

func newHealth(now time.Time) *Health {
	return &Health{
		LastUpdated:   now,
		ActiveMatches: make(map[string]ActiveMatch),
	}
}

// Scorer maintains decaying risk scores. Scores stay in [0,1]: tier weights
// are added per firing rule and clamped, and the score halves every half-life
// of inactivity so transient spikes are forgiven while sustained firing
// keeps the score high.
type Scorer struct {
	halfLife time.Duration
}

// NewScorer creates a scorer with the given decay half-life
func NewScorer(halfLife time.Duration) *Scorer {
	if halfLife <= 0 {
		halfLife = 30 * time.Second
	}
	return &Scorer{halfLife: halfLife}
}

// Observe decays the score for elapsed time, applies any fired rules, and
// prunes active matches whose windows have passed.
func (s *Scorer) Observe(h *Health, fired []RuleMatch, now time.Time) {
	s.decay(h, now)

	for _, match := range fired {
		h.Score += match.Rule.Tier.Weight()
		h.ActiveMatches[match.Rule.ID] = ActiveMatch{
			RuleID:      match.Rule.ID,
			Tier:        match.Rule.Tier,
			Count:       match.Count,
			WindowStart: match.WindowStart,
			LastFired:   now,
			Window:      match.Rule.Window,
		}
	}
	if h.Score > 1 {
		h.Score = 1
	}
	if h.Score < 0 {
		h.Score = 0
	}

	for id, active := range h.ActiveMatches {
		if now.Sub(active.LastFired) > active.Window {
			delete(h.ActiveMatches, id)
		}
	}

	h.LastUpdated = now
}

// CurrentRisk returns the decayed score as of now without recording an update
func (s *Scorer) CurrentRisk(h *Health, now time.Time) float64 {
	elapsed := now.Sub(h.LastUpdated)
	if elapsed <= 0 {
		return h.Score
	}
	return h.Score * math.Exp2(-elapsed.Seconds()/s.halfLife.Seconds())
}

func (s *Scorer) decay(h *Health, now time.Time) {
	elapsed := now.Sub(h.LastUpdated)
	if elapsed <= 0 {
		return
	}
	h.Score *= math.Exp2(-elapsed.Seconds() / s.halfLife.Seconds())
}
