//go:build windows

package daemon

import (
	"os"
)

// processAlive reports whether a process exists. Windows has no null signal
// and Signal(os.Kill) would terminate the target, so this check is a no-op
// here; liveness comes from the HTTP health check instead.
func processAlive(process *os.Process) error {
	return nil
}

// termSignal returns the signal used for graceful shutdown.
// On Windows, os.Kill is the only signal Go can deliver.
func termSignal() os.Signal {
	return os.Kill
}
