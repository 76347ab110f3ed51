package alert

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies what an alert reports
type Kind string

// Alert kinds
const (
	KindPatternWarning      Kind = "pattern_warning"
	KindPatternIntervention Kind = "pattern_intervention"
	KindInterventionFailed  Kind = "intervention_failed"
	KindResourceWarning     Kind = "resource_warning"
	KindEmergencyShutdown   Kind = "emergency_shutdown"
)

// Severity grades an alert for downstream channels
type Severity string

// Alert severities
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SubjectSystem is the subject used for alerts not tied to a single macro
const SubjectSystem = "system"

// Event is an immutable record of an intervention or warning.
// Never mutated after creation.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Subject   string    `json:"subject"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an alert event stamped with a fresh id and the current time
func NewEvent(kind Kind, subject string, severity Severity, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Subject:   subject,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
	}
}
