package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// ErrResourceLimit marks a governor cap breach; jobs failing with it are
// marked failed, never surfaced mid-request.
var ErrResourceLimit = errors.New("resource limit exceeded")

// ErrBusy is returned when admission control refuses a new job.
var ErrBusy = errors.New("resource governor refused job")

const (
	systemMemoryCeiling = 90.0 // percent
	systemCPUCeiling    = 90.0 // percent
	monitorInterval     = 2 * time.Second
)

// Limits caps one job's resource usage.
type Limits struct {
	MaxMemoryMB      int
	MaxCPUSeconds    int
	MaxRuntimeSeconds int
}

// Governor enforces per-job resource caps and process-wide admission
// control. Safe for concurrent use.
type Governor struct {
	limits            Limits
	maxConcurrentJobs int

	mu      sync.Mutex
	running int

	proc *process.Process
}

// NewGovernor builds a governor; zero limits take the 512MB/300s/600s
// defaults and maxConcurrent defaults to 2.
func NewGovernor(limits Limits, maxConcurrent int) *Governor {
	if limits.MaxMemoryMB <= 0 {
		limits.MaxMemoryMB = 512
	}
	if limits.MaxCPUSeconds <= 0 {
		limits.MaxCPUSeconds = 300
	}
	if limits.MaxRuntimeSeconds <= 0 {
		limits.MaxRuntimeSeconds = 600
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Printf("[Governor] process handle unavailable: %v", err)
	}
	return &Governor{limits: limits, maxConcurrentJobs: maxConcurrent, proc: proc}
}

// Limits returns the configured per-job caps.
func (g *Governor) Limits() Limits { return g.limits }

// TryAcquire admits a new job when concurrency and system headroom allow.
// The caller must Release() when the job ends.
func (g *Governor) TryAcquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running >= g.maxConcurrentJobs {
		return fmt.Errorf("%w: %d jobs already running", ErrBusy, g.running)
	}
	if !g.systemHeadroom() {
		return fmt.Errorf("%w: system under pressure", ErrBusy)
	}
	g.running++
	return nil
}

// Release frees one admission slot.
func (g *Governor) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running > 0 {
		g.running--
	}
}

// Running returns the number of admitted jobs.
func (g *Governor) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// systemHeadroom samples system memory and CPU. When sampling is
// unavailable the check degrades to concurrency-count-only.
func (g *Governor) systemHeadroom() bool {
	if vm, err := mem.VirtualMemory(); err == nil && vm.UsedPercent > systemMemoryCeiling {
		return false
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 && percents[0] > systemCPUCeiling {
		return false
	}
	return true
}

// WaitForResources blocks until admission succeeds or the timeout passes.
// Cooperative backpressure for batch submitters.
func (g *Governor) WaitForResources(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := g.TryAcquire(); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: timed out waiting for resources", ErrBusy)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Usage is one monitor sample.
type Usage struct {
	MemoryMB       float64
	CPUSeconds     float64
	RuntimeSeconds float64
}

// Monitor samples this process against the job caps until the context ends
// or a cap is breached; a breach is reported on the returned channel once.
func (g *Governor) Monitor(ctx context.Context, started time.Time) <-chan error {
	breach := make(chan error, 1)
	go func() {
		defer close(breach)
		ticker := time.NewTicker(monitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := g.Check(started); err != nil {
					breach <- err
					return
				}
			}
		}
	}()
	return breach
}

// Check samples current usage against the caps.
func (g *Governor) Check(started time.Time) error {
	usage := g.Sample(started)
	if usage.RuntimeSeconds > float64(g.limits.MaxRuntimeSeconds) {
		return fmt.Errorf("%w: runtime %.0fs over cap %ds", ErrResourceLimit, usage.RuntimeSeconds, g.limits.MaxRuntimeSeconds)
	}
	if usage.MemoryMB > float64(g.limits.MaxMemoryMB) {
		return fmt.Errorf("%w: memory %.0fMB over cap %dMB", ErrResourceLimit, usage.MemoryMB, g.limits.MaxMemoryMB)
	}
	if usage.CPUSeconds > float64(g.limits.MaxCPUSeconds) {
		return fmt.Errorf("%w: cpu %.0fs over cap %ds", ErrResourceLimit, usage.CPUSeconds, g.limits.MaxCPUSeconds)
	}
	return nil
}

// Sample reads current process usage. Unavailable probes report zero.
func (g *Governor) Sample(started time.Time) Usage {
	usage := Usage{RuntimeSeconds: time.Since(started).Seconds()}
	if g.proc == nil {
		return usage
	}
	if mi, err := g.proc.MemoryInfo(); err == nil && mi != nil {
		usage.MemoryMB = float64(mi.RSS) / (1024 * 1024)
	}
	if times, err := g.proc.Times(); err == nil && times != nil {
		usage.CPUSeconds = times.User + times.System
	}
	return usage
}
