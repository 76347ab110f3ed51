package resource

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time sample of process-wide resource usage
type Snapshot struct {
	MemoryPct float64   `json:"memory_pct"`
	RSS       uint64    `json:"rss_bytes"`
	CPUPct    float64   `json:"cpu_pct"`
	Threads   int       `json:"threads"`
	Handles   int       `json:"handles"`
	Timestamp time.Time `json:"timestamp"`
}

// Metric names used in thresholds, alerts, and snapshots
const (
	MetricMemoryPct = "memory_pct"
	MetricCPUPct    = "cpu_pct"
	MetricThreads   = "threads"
	MetricHandles   = "handles"
)

// Value returns the named metric from the snapshot
func (s Snapshot) Value(metric string) float64 {
	switch metric {
	case MetricMemoryPct:
		return s.MemoryPct
	case MetricCPUPct:
		return s.CPUPct
	case MetricThreads:
		return float64(s.Threads)
	case MetricHandles:
		return float64(s.Handles)
	default:
		return 0
	}
}

// DefaultHistoryCapacity is the default bounded history length
const DefaultHistoryCapacity = 120

// History is a fixed-size ring buffer of snapshots. It is thread-safe and
// evicts the oldest sample once full.
type History struct {
	data     []Snapshot
	capacity int
	head     int // next write position
	size     int
	mu       sync.RWMutex
}

// NewHistory creates a history ring with the given capacity
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		data:     make([]Snapshot, capacity),
		capacity: capacity,
	}
}

// Push records a snapshot, evicting the oldest if at capacity
func (h *History) Push(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.data[h.head] = s
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// Recent returns the n most recent snapshots in chronological order
func (h *History) Recent(n int) []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || h.size == 0 {
		return nil
	}
	if n > h.size {
		n = h.size
	}

	result := make([]Snapshot, n)
	start := (h.head - n + h.capacity) % h.capacity
	for i := 0; i < n; i++ {
		result[i] = h.data[(start+i)%h.capacity]
	}
	return result
}

// All returns every retained snapshot in chronological order
func (h *History) All() []Snapshot {
	h.mu.RLock()
	n := h.size
	h.mu.RUnlock()
	return h.Recent(n)
}

// Latest returns the most recent snapshot, if any
func (h *History) Latest() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.size == 0 {
		return Snapshot{}, false
	}
	return h.data[(h.head-1+h.capacity)%h.capacity], true
}

// Len returns the number of retained snapshots
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}
