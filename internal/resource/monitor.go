package resource

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/macrokit/macroguard/internal/logger"
)

// Alerter receives resource findings. Implemented by the intervention
// executor so warnings and emergencies flow through the same alert path
// as macro interventions.
type Alerter interface {
	ResourceWarning(metric string, value, threshold float64, message string)
	EmergencyShutdown(reason string)
}

// Thresholds holds the warning and critical levels for one metric.
// A zero level disables that check.
type Thresholds struct {
	Warning  float64
	Critical float64
}

// Options configures the resource monitor
type Options struct {
	Interval    time.Duration
	Sustained   time.Duration
	HistorySize int
	Thresholds  map[string]Thresholds
}

// Monitor periodically samples process resource usage, keeps a bounded
// snapshot history, and escalates sustained threshold violations. A single
// sample above a threshold never triggers anything: the excursion must
// cover the configured sustained duration.
type Monitor struct {
	sampler   Sampler
	history   *History
	emergency *Emergency
	alerter   Alerter

	interval   time.Duration
	sustained  time.Duration
	thresholds map[string]Thresholds

	// first continuous sample above each threshold, keyed by metric
	warnSince map[string]time.Time
	critSince map[string]time.Time
}

// NewMonitor creates a resource monitor
func NewMonitor(sampler Sampler, emergency *Emergency, alerter Alerter, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Sustained <= 0 {
		opts.Sustained = 5 * time.Second
	}

	return &Monitor{
		sampler:    sampler,
		history:    NewHistory(opts.HistorySize),
		emergency:  emergency,
		alerter:    alerter,
		interval:   opts.Interval,
		sustained:  opts.Sustained,
		thresholds: opts.Thresholds,
		warnSince:  make(map[string]time.Time),
		critSince:  make(map[string]time.Time),
	}
}

// History returns the bounded snapshot history
func (m *Monitor) History() *History {
	return m.history
}

// Run samples on the configured interval until the context is cancelled
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	logger.Info().
		Dur("interval", m.interval).
		Dur("sustained", m.sustained).
		Msg("Resource monitor started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Resource monitor stopped")
			return
		case <-ticker.C:
			snap, err := m.sampler.Sample()
			if err != nil {
				// A single failed sample is skipped; sustained tracking
				// only moves on real samples.
				logger.Debug().Err(err).Msg("Resource sample failed, skipping")
				continue
			}
			m.Observe(snap)
		}
	}
}

// Observe folds one snapshot into the history and threshold tracking.
// Exported so tests can drive the monitor with synthetic samples.
func (m *Monitor) Observe(snap Snapshot) {
	m.history.Push(snap)

	for metric, limits := range m.thresholds {
		value := snap.Value(metric)

		if limits.Critical > 0 {
			m.trackCritical(metric, value, limits.Critical, snap)
		}
		if limits.Warning > 0 {
			m.trackWarning(metric, value, limits.Warning, snap)
		}
	}
}

// sustainedFor treats each sample as covering one sampling interval, so
// three 2s-spaced samples above threshold count as 6s of excursion.
func (m *Monitor) sustainedFor(since time.Time, now time.Time) time.Duration {
	return now.Sub(since) + m.interval
}

func (m *Monitor) trackCritical(metric string, value, limit float64, snap Snapshot) {
	if value < limit {
		delete(m.critSince, metric)
		return
	}

	since, ok := m.critSince[metric]
	if !ok {
		m.critSince[metric] = snap.Timestamp
		return
	}

	if m.sustainedFor(since, snap.Timestamp) < m.sustained {
		return
	}

	reason := fmt.Sprintf("%s at %s exceeded critical threshold %s for %s",
		metric, formatMetric(metric, value, snap), formatMetric(metric, limit, Snapshot{}),
		m.sustained)

	// Trigger owns the transition: emergency mode engages exactly once
	// until an explicit recovery clears it.
	if m.emergency.Trigger(reason) {
		m.alerter.EmergencyShutdown(reason)
	}
}

func (m *Monitor) trackWarning(metric string, value, limit float64, snap Snapshot) {
	if value < limit {
		delete(m.warnSince, metric)
		return
	}

	since, ok := m.warnSince[metric]
	if !ok {
		m.warnSince[metric] = snap.Timestamp
		return
	}

	if m.sustainedFor(since, snap.Timestamp) < m.sustained {
		return
	}

	message := fmt.Sprintf("%s at %s above warning threshold %s for %s",
		metric, formatMetric(metric, value, snap), formatMetric(metric, limit, Snapshot{}),
		m.sustained)
	m.alerter.ResourceWarning(metric, value, limit, message)
}

// formatMetric renders a metric value for humans: percentages as such,
// memory with its byte figure attached, counts as plain integers.
func formatMetric(metric string, value float64, snap Snapshot) string {
	switch metric {
	case MetricMemoryPct:
		if snap.RSS > 0 {
			return fmt.Sprintf("%.1f%% (%s)", value, humanize.IBytes(snap.RSS))
		}
		return fmt.Sprintf("%.1f%%", value)
	case MetricCPUPct:
		return fmt.Sprintf("%.1f%%", value)
	default:
		return fmt.Sprintf("%.0f", value)
	}
}
