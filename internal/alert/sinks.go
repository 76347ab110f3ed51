package alert

import (
	"github.com/macrokit/macroguard/internal/logger"
)

// LogSink writes alert events to the structured log
type LogSink struct{}

// Name identifies the sink in delivery diagnostics
func (LogSink) Name() string { return "log" }

// Deliver logs the alert at a level matching its severity
func (LogSink) Deliver(event Event) error {
	evt := logger.Info()
	switch event.Severity {
	case SeverityWarning:
		evt = logger.Warn()
	case SeverityCritical:
		evt = logger.Error()
	}

	evt.
		Str("alert_id", event.ID).
		Str("kind", string(event.Kind)).
		Str("subject", event.Subject).
		Time("at", event.Timestamp).
		Msg(event.Message)

	return nil
}

// FuncSink adapts a function into a Sink, used to wire the daemon's
// live feed and test doubles without extra types.
type FuncSink struct {
	SinkName string
	Fn       func(event Event) error
}

// Name identifies the sink in delivery diagnostics
func (s FuncSink) Name() string { return s.SinkName }

// Deliver invokes the wrapped function
func (s FuncSink) Deliver(event Event) error { return s.Fn(event) }
