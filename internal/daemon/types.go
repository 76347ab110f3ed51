package daemon

import (
	"time"

	"github.com/macrokit/macroguard/internal/alert"
	"github.com/macrokit/macroguard/internal/resource"
	"github.com/macrokit/macroguard/internal/supervisor"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	StartedAt time.Time `json:"started_at"`
	Emergency bool      `json:"emergency"`
}

// MacrosResponse lists the monitoring view of every macro
type MacrosResponse struct {
	GuardLevel string              `json:"guard_level"`
	Macros     []supervisor.Status `json:"macros"`
	Dropped    uint64              `json:"dropped_events"`
}

// SystemResponse carries the bounded resource history and, when the history
// store is enabled, lifetime alert totals by kind
type SystemResponse struct {
	Emergency       bool                `json:"emergency"`
	EmergencyReason string              `json:"emergency_reason,omitempty"`
	Snapshots       []resource.Snapshot `json:"snapshots"`
	AlertCounts     map[alert.Kind]int  `json:"alert_counts,omitempty"`
}

// RegisterRequest registers a macro for supervision
type RegisterRequest struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// EventRequest submits one macro action event for evaluation
type EventRequest struct {
	MacroID   string    `json:"macro_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// SSEEvent represents a server-sent event
type SSEEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SSE event types
const (
	SSEAlert     = "alert"
	SSEHeartbeat = "heartbeat"
)
