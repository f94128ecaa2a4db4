package system

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot describes the host at a point in time.
type Snapshot struct {
	LogicalCPUs   int     `json:"logical_cpus"`
	TotalMemory   uint64  `json:"total_memory"`
	AvailMemory   uint64  `json:"available_memory"`
	MemoryUsedPct float64 `json:"memory_used_percent"`
	Load1         float64 `json:"load1"`
}

// TakeSnapshot samples CPU, memory and load. Fields that cannot be read on
// this platform are left zero.
func TakeSnapshot(ctx context.Context) Snapshot {
	s := Snapshot{LogicalCPUs: runtime.NumCPU()}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		s.LogicalCPUs = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.TotalMemory = vm.Total
		s.AvailMemory = vm.Available
		s.MemoryUsedPct = vm.UsedPercent
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		s.Load1 = avg.Load1
	}
	return s
}

// Per-job budget used when sizing concurrency from available memory.
const jobMemory = 2 << 30

// RecommendedWorkers sizes a job pool for the host. Engine renders are
// heavy, so it allows one job per two CPUs and per 2 GiB of free memory.
func (s Snapshot) RecommendedWorkers() int {
	n := s.LogicalCPUs / 2
	if s.AvailMemory > 0 {
		if byMem := int(s.AvailMemory / jobMemory); byMem < n {
			n = byMem
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}
