package intervene

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/macrokit/macroguard/internal/alert"
	"github.com/macrokit/macroguard/internal/logger"
	"github.com/macrokit/macroguard/internal/macro"
	"github.com/macrokit/macroguard/internal/resource"
)

// Controller is the external macro interpreter the supervisor instructs.
// Each call returns an error when the interpreter refused or failed to act.
type Controller interface {
	Pause(macroID string) error
	Stop(macroID string) error
	Resume(macroID string) error
}

// InterventionFailedError reports that the controller could not carry out
// an action even after a retry.
type InterventionFailedError struct {
	MacroID string
	Action  string
	Err     error
}

func (e *InterventionFailedError) Error() string {
	return fmt.Sprintf("intervention %s on macro %s failed: %v", e.Action, e.MacroID, e.Err)
}

func (e *InterventionFailedError) Unwrap() error {
	return e.Err
}

// Executor carries out guard-policy transitions and resource emergencies
// against the controller, emitting exactly one alert per action taken,
// including when the action itself fails.
type Executor struct {
	controller Controller
	dispatcher *alert.Dispatcher
	emergency  *resource.Emergency
	// shutdown requests process-wide graceful shutdown; wired by the
	// caller to its run context.
	shutdown func()
}

// NewExecutor creates an intervention executor
func NewExecutor(controller Controller, dispatcher *alert.Dispatcher, emergency *resource.Emergency, shutdown func()) *Executor {
	if shutdown == nil {
		shutdown = func() {}
	}
	return &Executor{
		controller: controller,
		dispatcher: dispatcher,
		emergency:  emergency,
		shutdown:   shutdown,
	}
}

// Execute performs the action for a macro and emits its alert. Pause and
// Stop are retried once against the controller; a second failure produces
// an intervention-failed alert instead of the intervention alert.
func (e *Executor) Execute(action macro.Action, handle macro.Handle, reason string) error {
	switch action {
	case macro.ActionWarn:
		e.dispatcher.Publish(alert.NewEvent(
			alert.KindPatternWarning,
			handle.ID,
			alert.SeverityWarning,
			fmt.Sprintf("macro %q warned: %s", handle.Name, reason),
		))
		return nil

	case macro.ActionPause:
		return e.controlled(handle, action, reason, e.controller.Pause)

	case macro.ActionStop:
		return e.controlled(handle, action, reason, e.controller.Stop)

	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

// Resume instructs the controller to resume a paused macro
func (e *Executor) Resume(handle macro.Handle) error {
	if err := e.retryOnce(handle.ID, e.controller.Resume); err != nil {
		e.publishFailure(handle, "resume", err)
		return &InterventionFailedError{MacroID: handle.ID, Action: "resume", Err: err}
	}

	e.dispatcher.Publish(alert.NewEvent(
		alert.KindPatternIntervention,
		handle.ID,
		alert.SeverityInfo,
		fmt.Sprintf("macro %q resumed by operator", handle.Name),
	))
	return nil
}

// ResourceWarning emits a resource warning alert
func (e *Executor) ResourceWarning(metric string, value, threshold float64, message string) {
	e.dispatcher.Publish(alert.NewEvent(
		alert.KindResourceWarning,
		alert.SubjectSystem,
		alert.SeverityWarning,
		message,
	))
}

// EmergencyShutdown runs recovery: forced cleanup of process allocations
// and a graceful shutdown request, then the emergency alert. The caller
// (the resource monitor via the emergency handle) guarantees this runs at
// most once per emergency.
func (e *Executor) EmergencyShutdown(reason string) {
	logger.Error().Str("reason", reason).Msg("Running emergency recovery")

	// Forced cleanup before asking the process to wind down
	runtime.GC()
	debug.FreeOSMemory()

	e.shutdown()

	e.dispatcher.Publish(alert.NewEvent(
		alert.KindEmergencyShutdown,
		alert.SubjectSystem,
		alert.SeverityCritical,
		reason,
	))
}

// Recover clears emergency mode. Exposed as the explicit operator recovery
// action; emergency mode never clears on its own.
func (e *Executor) Recover() {
	e.emergency.Recover()
}

func (e *Executor) controlled(handle macro.Handle, action macro.Action, reason string, do func(string) error) error {
	if err := e.retryOnce(handle.ID, do); err != nil {
		e.publishFailure(handle, string(action), err)
		return &InterventionFailedError{MacroID: handle.ID, Action: string(action), Err: err}
	}

	e.dispatcher.Publish(alert.NewEvent(
		alert.KindPatternIntervention,
		handle.ID,
		severityFor(action),
		fmt.Sprintf("macro %q %s: %s", handle.Name, pastTense(action), reason),
	))
	return nil
}

// retryOnce tries the controller call, retrying a single time on failure
func (e *Executor) retryOnce(macroID string, do func(string) error) error {
	err := do(macroID)
	if err == nil {
		return nil
	}

	logger.Warn().
		Err(err).
		Str("macro", macroID).
		Msg("Controller call failed, retrying once")

	return do(macroID)
}

// publishFailure escalates a failed intervention to a human-visible
// critical alert. Silent failure is disallowed by design.
func (e *Executor) publishFailure(handle macro.Handle, action string, err error) {
	e.dispatcher.Publish(alert.NewEvent(
		alert.KindInterventionFailed,
		handle.ID,
		alert.SeverityCritical,
		fmt.Sprintf("failed to %s macro %q: %v", action, handle.Name, err),
	))
}

func severityFor(action macro.Action) alert.Severity {
	if action == macro.ActionStop {
		return alert.SeverityCritical
	}
	return alert.SeverityWarning
}

func pastTense(action macro.Action) string {
	switch action {
	case macro.ActionPause:
		return "paused"
	case macro.ActionStop:
		return "stopped"
	default:
		return string(action)
	}
}
