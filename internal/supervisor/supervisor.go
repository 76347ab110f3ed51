package supervisor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/macrokit/macroguard/internal/logger"
	"github.com/macrokit/macroguard/internal/macro"
)

// Intervener carries out the external side of a policy decision. It is
// implemented by the intervention executor; tests substitute fakes.
type Intervener interface {
	Execute(action macro.Action, handle macro.Handle, reason string) error
	Resume(handle macro.Handle) error
}

// Options configures a Supervisor
type Options struct {
	GuardLevel    macro.GuardLevel
	DecayHalfLife time.Duration
	Shards        int
	QueueCapacity int
	// AutoResumeAfter re-opens paused macros after the given delay.
	// Zero (the default) means paused macros require an explicit resume.
	AutoResumeAfter time.Duration
}

// Status is the per-macro view exposed to the dashboard and CLI
type Status struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	State              macro.State   `json:"state"`
	RiskScore          float64       `json:"risk_score"`
	ActiveMatches      []ActiveMatch `json:"active_matches"`
	RegisteredAt       time.Time     `json:"registered_at"`
	LastUpdated        time.Time     `json:"last_updated"`
	TotalWarnings      int           `json:"total_warnings"`
	TotalInterventions int           `json:"total_interventions"`
}

// entry bundles everything the supervisor tracks for one macro. Health and
// windows are mutated only by the shard worker that owns the macro; the
// entry mutex covers the handful of cross-goroutine readers (Status, Resume).
type entry struct {
	mu       sync.Mutex
	handle   macro.Handle
	health   *Health
	windows  map[string]*matchWindow
	pausedAt time.Time
}

// Supervisor owns the full per-macro pipeline: ingestion shards, pattern
// matcher, risk scorer, and guard policy, handing transitions to the
// intervention executor.
type Supervisor struct {
	registry   *Registry
	matcher    *Matcher
	scorer     *Scorer
	policy     *Policy
	intervener Intervener
	autoResume time.Duration

	mu     sync.RWMutex
	macros map[string]*entry

	shards  []*shard
	closeMu sync.RWMutex
	closed  bool
	wg      sync.WaitGroup

	drops atomic.Uint64
}

// New creates a supervisor over a compiled rule registry and starts its
// shard workers.
func New(registry *Registry, intervener Intervener, opts Options) *Supervisor {
	s := &Supervisor{
		registry:   registry,
		matcher:    NewMatcher(registry),
		scorer:     NewScorer(opts.DecayHalfLife),
		policy:     NewPolicy(opts.GuardLevel),
		intervener: intervener,
		autoResume: opts.AutoResumeAfter,
		macros:     make(map[string]*entry),
		shards:     newShards(opts.Shards, opts.QueueCapacity),
	}

	for _, sh := range s.shards {
		s.wg.Add(1)
		go s.drain(sh)
	}

	logger.Info().
		Str("guard_level", string(opts.GuardLevel)).
		Int("shards", len(s.shards)).
		Int("rules", registry.Len()).
		Msg("Supervisor started")

	return s
}

// Register begins monitoring a macro. Re-registering a stopped macro
// replaces it with a fresh handle; re-registering a live one is an error.
func (s *Supervisor) Register(id, name string) (macro.Handle, error) {
	if id == "" {
		return macro.Handle{}, fmt.Errorf("macro id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.macros[id]; ok {
		existing.mu.Lock()
		stopped := existing.handle.State.IsTerminal()
		existing.mu.Unlock()
		if !stopped {
			return macro.Handle{}, fmt.Errorf("macro already registered: %s", id)
		}
	}

	now := time.Now()
	handle := macro.Handle{
		ID:           id,
		Name:         name,
		RegisteredAt: now,
		State:        macro.StateRunning,
	}
	s.macros[id] = &entry{
		handle:  handle,
		health:  newHealth(now),
		windows: make(map[string]*matchWindow),
	}

	logger.Info().Str("macro", id).Str("name", name).Msg("Macro registered")
	return handle, nil
}

// Unregister stops monitoring a macro and discards its state
func (s *Supervisor) Unregister(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.macros[id]; !ok {
		return &macro.MacroNotFoundError{MacroID: id}
	}
	delete(s.macros, id)

	logger.Info().Str("macro", id).Msg("Macro unregistered")
	return nil
}

// Submit ingests one macro action event. It never blocks the producer:
// under overload the oldest queued event is dropped. Events for stopped or
// unknown macros are discarded, not queued.
func (s *Supervisor) Submit(event macro.Event) {
	s.mu.RLock()
	e, ok := s.macros[event.MacroID]
	s.mu.RUnlock()
	if !ok {
		logger.Debug().Str("macro", event.MacroID).Msg("Event for unknown macro discarded")
		return
	}

	e.mu.Lock()
	stopped := e.handle.State.IsTerminal()
	e.mu.Unlock()
	if stopped {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return
	}

	if dropped := shardFor(s.shards, event.MacroID).offer(event); dropped > 0 {
		s.drops.Add(uint64(dropped))
	}
}

// Resume moves a paused macro back to running. This is the only path out
// of Paused short of the optional auto-resume policy.
func (s *Supervisor) Resume(id string) error {
	s.mu.RLock()
	e, ok := s.macros[id]
	s.mu.RUnlock()
	if !ok {
		return &macro.MacroNotFoundError{MacroID: id}
	}

	e.mu.Lock()
	if e.handle.State.IsTerminal() {
		e.mu.Unlock()
		return &macro.MacroStoppedError{MacroID: id}
	}
	if e.handle.State != macro.StatePaused {
		state := e.handle.State
		e.mu.Unlock()
		return &macro.NotPausedError{MacroID: id, State: state}
	}
	e.handle.State = macro.StateRunning
	e.pausedAt = time.Time{}
	handle := e.handle
	e.mu.Unlock()

	return s.intervener.Resume(handle)
}

// Status returns the monitoring view for one macro
func (s *Supervisor) Status(id string) (Status, error) {
	s.mu.RLock()
	e, ok := s.macros[id]
	s.mu.RUnlock()
	if !ok {
		return Status{}, &macro.MacroNotFoundError{MacroID: id}
	}
	return s.statusOf(e), nil
}

// ListStatuses returns the monitoring view for every registered macro
func (s *Supervisor) ListStatuses() []Status {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.macros))
	for _, e := range s.macros {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	statuses := make([]Status, 0, len(entries))
	for _, e := range entries {
		statuses = append(statuses, s.statusOf(e))
	}
	return statuses
}

func (s *Supervisor) statusOf(e *entry) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Risk is frozen once a macro is stopped
	risk := e.health.Score
	if !e.handle.State.IsTerminal() {
		risk = s.scorer.CurrentRisk(e.health, time.Now())
	}

	matches := make([]ActiveMatch, 0, len(e.health.ActiveMatches))
	for _, m := range e.health.ActiveMatches {
		matches = append(matches, m)
	}

	return Status{
		ID:                 e.handle.ID,
		Name:               e.handle.Name,
		State:              e.handle.State,
		RiskScore:          risk,
		ActiveMatches:      matches,
		RegisteredAt:       e.handle.RegisteredAt,
		LastUpdated:        e.health.LastUpdated,
		TotalWarnings:      e.health.TotalWarnings,
		TotalInterventions: e.health.TotalInterventions,
	}
}

// Drops returns the number of events dropped under ingestion overload
func (s *Supervisor) Drops() uint64 {
	return s.drops.Load()
}

// GuardLevel returns the active guard level
func (s *Supervisor) GuardLevel() macro.GuardLevel {
	return s.policy.Level()
}

// Rules returns the compiled rule registry
func (s *Supervisor) Rules() *Registry {
	return s.registry
}

// Close drains the shards and stops the workers. Submit becomes a no-op.
func (s *Supervisor) Close() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closed = true
	for _, sh := range s.shards {
		close(sh.ch)
	}
	s.closeMu.Unlock()

	s.wg.Wait()
	logger.Info().Msg("Supervisor stopped")
}

func (s *Supervisor) drain(sh *shard) {
	defer s.wg.Done()
	for event := range sh.ch {
		s.process(event)
	}
}

// process runs the matcher → scorer → policy pipeline for one event and
// hands any resulting transition to the intervention executor.
func (s *Supervisor) process(event macro.Event) {
	s.mu.RLock()
	e, ok := s.macros[event.MacroID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()

	if e.handle.State.IsTerminal() {
		e.mu.Unlock()
		return
	}

	// Optional, config-gated auto-resume: never silent by default
	if s.autoResume > 0 && e.handle.State == macro.StatePaused &&
		!e.pausedAt.IsZero() && event.Timestamp.Sub(e.pausedAt) >= s.autoResume {
		e.handle.State = macro.StateRunning
		e.pausedAt = time.Time{}
		handle := e.handle
		e.mu.Unlock()
		logger.Info().Str("macro", handle.ID).Msg("Auto-resume delay elapsed, resuming macro")
		if err := s.intervener.Resume(handle); err != nil {
			logger.Warn().Err(err).Str("macro", handle.ID).Msg("Auto-resume failed")
		}
		e.mu.Lock()
	}

	fired := s.matcher.Evaluate(e.windows, event)
	s.scorer.Observe(e.health, fired, event.Timestamp)

	current := e.handle.State
	target := s.policy.Evaluate(current, e.health.Score, fired)
	if target == current {
		e.mu.Unlock()
		return
	}

	e.handle.State = target
	switch target {
	case macro.StateWarned:
		e.health.TotalWarnings++
	case macro.StatePaused:
		e.health.TotalInterventions++
		e.pausedAt = event.Timestamp
	case macro.StateStopped:
		e.health.TotalInterventions++
	}
	handle := e.handle
	score := e.health.Score
	e.mu.Unlock()

	action, ok := ActionFor(target)
	if !ok {
		return
	}

	logger.Info().
		Str("macro", handle.ID).
		Str("from", string(current)).
		Str("to", string(target)).
		Float64("risk", score).
		Msg("Guard policy transition")

	if err := s.intervener.Execute(action, handle, transitionReason(score, fired)); err != nil {
		logger.Error().
			Err(err).
			Str("macro", handle.ID).
			Str("action", string(action)).
			Msg("Intervention failed")
	}
}

func transitionReason(score float64, fired []RuleMatch) string {
	if len(fired) == 0 {
		return fmt.Sprintf("risk score %.2f crossed guard threshold", score)
	}

	worst := fired[0]
	for _, match := range fired[1:] {
		if match.Rule.Tier.Weight() > worst.Rule.Tier.Weight() {
			worst = match
		}
	}
	return fmt.Sprintf("rule %q matched %d times within %s (risk %.2f)",
		worst.Rule.ID, worst.Count, worst.Rule.Window, score)
}
