package supervisor

import (
	"time"
)

// matchWindow is a fixed-capacity ring of match timestamps for one
// (macro, rule) pair. Capacity equals the rule threshold: the rule fires
// exactly when the ring is full and its oldest entry is still inside the
// window, which keeps eviction O(1) and memory bounded.
type matchWindow struct {
	stamps []time.Time
	head   int // next write position
	size   int
}

func newMatchWindow(threshold int) *matchWindow {
	return &matchWindow{
		stamps: make([]time.Time, threshold),
	}
}

// observe records one matching event and reports whether the rule fires,
// along with the in-window count and the start of the matched window.
func (w *matchWindow) observe(ts time.Time, window time.Duration) (fired bool, count int, windowStart time.Time) {
	w.stamps[w.head] = ts
	w.head = (w.head + 1) % len(w.stamps)
	if w.size < len(w.stamps) {
		w.size++
	}

	cutoff := ts.Add(-window)
	oldest := time.Time{}
	for i := 0; i < w.size; i++ {
		idx := (w.head - w.size + i + len(w.stamps)) % len(w.stamps)
		if w.stamps[idx].Before(cutoff) {
			continue
		}
		if oldest.IsZero() {
			oldest = w.stamps[idx]
		}
		count++
	}

	fired = w.size == len(w.stamps) && count == len(w.stamps)
	return fired, count, oldest
}
