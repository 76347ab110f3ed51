package alert

import (
	"sync"
	"time"
)

// rateLimiter suppresses repeated identical alerts for the same subject
// within a configured window. EmergencyShutdown is exempt by the dispatcher.
type rateLimiter struct {
	window time.Duration
	mu     sync.Mutex
	last   map[limiterKey]time.Time
	now    func() time.Time
}

type limiterKey struct {
	subject string
	kind    Kind
}

func newRateLimiter(window time.Duration) *rateLimiter {
	return &rateLimiter{
		window: window,
		last:   make(map[limiterKey]time.Time),
		now:    time.Now,
	}
}

// allow reports whether an alert for this (subject, kind) pair may be
// delivered, and records the delivery time when it may.
func (r *rateLimiter) allow(subject string, kind Kind) bool {
	if r.window <= 0 {
		return true
	}

	key := limiterKey{subject: subject, kind: kind}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if last, ok := r.last[key]; ok && now.Sub(last) < r.window {
		return false
	}

	r.last[key] = now

	// Opportunistic cleanup of expired entries to keep the map bounded
	if len(r.last) > 1024 {
		for k, t := range r.last {
			if now.Sub(t) >= r.window {
				delete(r.last, k)
			}
		}
	}

	return true
}
