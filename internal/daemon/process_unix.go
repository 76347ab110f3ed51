//go:build !windows

package daemon

import (
	"os"
	"syscall"
)

// processAlive checks whether a process exists without affecting it,
// using the null signal.
func processAlive(process *os.Process) error {
	return process.Signal(syscall.Signal(0))
}

// termSignal returns the signal used for graceful shutdown.
func termSignal() os.Signal {
	return syscall.SIGTERM
}
