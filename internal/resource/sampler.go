package resource

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Sampler produces resource snapshots. The process-backed implementation
// reads from the OS; tests inject deterministic fakes.
type Sampler interface {
	Sample() (Snapshot, error)
}

// ProcessSampler samples the current process via gopsutil
type ProcessSampler struct {
	proc *process.Process
}

// NewProcessSampler creates a sampler bound to the current process
func NewProcessSampler() (*ProcessSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open current process: %w", err)
	}
	return &ProcessSampler{proc: proc}, nil
}

// Sample reads memory, CPU, thread, and handle figures for the process.
// Memory is reported as a percentage of system memory so thresholds stay
// comparable across hosts.
func (s *ProcessSampler) Sample() (Snapshot, error) {
	snap := Snapshot{Timestamp: time.Now()}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read system memory: %w", err)
	}
	memInfo, err := s.proc.MemoryInfo()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read process memory: %w", err)
	}
	snap.RSS = memInfo.RSS
	if vm.Total > 0 {
		snap.MemoryPct = float64(memInfo.RSS) / float64(vm.Total) * 100
	}

	cpuPct, err := s.proc.CPUPercent()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	snap.CPUPct = cpuPct

	threads, err := s.proc.NumThreads()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read thread count: %w", err)
	}
	snap.Threads = int(threads)

	// Open handle counts are not available on every platform; a zero
	// reading disables handle thresholds rather than failing the sample.
	if fds, err := s.proc.NumFDs(); err == nil {
		snap.Handles = int(fds)
	}

	return snap, nil
}
