package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/macrokit/macroguard/internal/config"
)

func newTestLifecycle(t *testing.T, port int) *Lifecycle {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return NewLifecycle(config.DaemonSettings{Port: port})
}

func TestIsRunningNoPIDFile(t *testing.T) {
	l := newTestLifecycle(t, 0)

	if l.IsRunning() {
		t.Error("expected IsRunning to be false without a PID file")
	}
}

func TestIsRunningInvalidPIDFile(t *testing.T) {
	l := newTestLifecycle(t, 0)

	if err := os.MkdirAll(filepath.Dir(l.PIDFile()), 0755); err != nil {
		t.Fatalf("failed to create pid dir: %v", err)
	}
	if err := os.WriteFile(l.PIDFile(), []byte("not-a-pid"), 0644); err != nil {
		t.Fatalf("failed to write pid file: %v", err)
	}

	if l.IsRunning() {
		t.Error("expected IsRunning to be false for garbage PID file")
	}
}

// The liveness check must never disturb the process it inspects. Pointing
// the PID file at this very test process and calling IsRunning exercises
// that: the process check passes harmlessly, the health check fails because
// nothing is listening, and the test is still alive to assert on it.
func TestIsRunningLeavesProcessUntouched(t *testing.T) {
	l := newTestLifecycle(t, 1) // port 1: health check cannot succeed

	if err := os.MkdirAll(filepath.Dir(l.PIDFile()), 0755); err != nil {
		t.Fatalf("failed to create pid dir: %v", err)
	}
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(l.PIDFile(), []byte(pid), 0644); err != nil {
		t.Fatalf("failed to write pid file: %v", err)
	}

	if l.IsRunning() {
		t.Error("expected IsRunning to be false when the health endpoint is unreachable")
	}

	// An existing process must not be mistaken for stale state
	if _, err := os.Stat(l.PIDFile()); err != nil {
		t.Errorf("PID file should survive a check against a live process: %v", err)
	}
}

func TestWriteAndRemovePID(t *testing.T) {
	l := newTestLifecycle(t, 0)

	if err := l.WritePID(); err != nil {
		t.Fatalf("WritePID failed: %v", err)
	}

	data, err := os.ReadFile(l.PIDFile())
	if err != nil {
		t.Fatalf("failed to read pid file: %v", err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		t.Fatalf("pid file content not numeric: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid file = %d, want %d", pid, os.Getpid())
	}

	if err := l.RemovePID(); err != nil {
		t.Fatalf("RemovePID failed: %v", err)
	}
	if _, err := os.Stat(l.PIDFile()); !os.IsNotExist(err) {
		t.Error("expected pid file to be removed")
	}
}

func TestPortDefault(t *testing.T) {
	l := newTestLifecycle(t, 0)
	if got := l.Port(); got != 8763 {
		t.Errorf("default port = %d, want 8763", got)
	}

	l = newTestLifecycle(t, 9000)
	if got := l.Port(); got != 9000 {
		t.Errorf("port = %d, want 9000", got)
	}
}
