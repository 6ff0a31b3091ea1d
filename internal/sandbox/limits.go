package sandbox

import (
	"context"
	"fmt"
)

// ResourceLimits caps what a single UID may consume inside the shared
// container. It is process-wide and constant for the dispatcher's lifetime.
type ResourceLimits struct {
	MaxProcesses   int
	MaxMemoryMB    int
	MaxCPUPercent  float64
	MaxDiskMB      int
	MaxFileSizeMB  int
}

// DefaultResourceLimits mirrors the conservative caps the original shell
// bot enforced per user.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxProcesses:  20,
		MaxMemoryMB:   512,
		MaxCPUPercent: 200,
		MaxDiskMB:     1024,
		MaxFileSizeMB: 100,
	}
}

// ProcessSnapshot is a read-only probe result for one process owned by a
// UID inside the container.
type ProcessSnapshot struct {
	PID        int
	Command    string
	CPUPercent float64
	MemoryMB   float64
	StartTime  string
}

// CheckLimits enforces ResourceLimits for ownerID's UID, probing the
// container for its live process count, aggregate CPU/RSS, and home
// directory disk usage.
func (d *Dispatcher) CheckLimits(ctx context.Context, ownerID, username string) (ok bool, reason string) {
	uid := d.uids.UID(ownerID)

	procs, err := d.runner.ListProcesses(ctx, uid)
	if err != nil {
		return false, fmt.Sprintf("unable to inspect processes: %v", err)
	}
	if len(procs) > d.limits.MaxProcesses {
		return false, fmt.Sprintf("process count %d exceeds limit %d", len(procs), d.limits.MaxProcesses)
	}

	var cpu, mem float64
	for _, p := range procs {
		cpu += p.CPUPercent
		mem += p.MemoryMB
	}
	if cpu > d.limits.MaxCPUPercent {
		return false, fmt.Sprintf("cpu usage %.1f%% exceeds limit %.1f%%", cpu, d.limits.MaxCPUPercent)
	}
	if mem > float64(d.limits.MaxMemoryMB) {
		return false, fmt.Sprintf("memory usage %.1fMB exceeds limit %dMB", mem, d.limits.MaxMemoryMB)
	}

	diskMB, err := d.runner.DiskUsageMB(ctx, d.homeDir(username))
	if err != nil {
		return false, fmt.Sprintf("unable to inspect disk usage: %v", err)
	}
	if diskMB > d.limits.MaxDiskMB {
		return false, fmt.Sprintf("disk usage %dMB exceeds limit %dMB", diskMB, d.limits.MaxDiskMB)
	}

	return true, ""
}
