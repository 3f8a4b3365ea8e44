package monitor

import (
	"context"
	"os"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

type cpuReader struct{}

func (cpuReader) Name() string { return "cpu" }

// Read reports usage since the previous call. The first call measures
// since boot.
func (cpuReader) Read(ctx context.Context, s *State) error {
	cores, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return err
	}
	var total float64
	for _, c := range cores {
		total += c
	}
	s.CPU.Cores = cores
	if len(cores) > 0 {
		s.CPU.UsagePercent = total / float64(len(cores))
	}
	return nil
}

type memoryReader struct{}

func (memoryReader) Name() string { return "memory" }

func (memoryReader) Read(ctx context.Context, s *State) error {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return err
	}
	s.Memory = MemoryState{
		UsedBytes:      vm.Used,
		AvailableBytes: vm.Available,
		TotalBytes:     vm.Total,
		UsagePercent:   vm.UsedPercent,
	}
	return nil
}

type processCountReader struct{}

func (processCountReader) Name() string { return "processes" }

func (processCountReader) Read(ctx context.Context, s *State) error {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return err
	}
	s.Processes = len(pids)
	return nil
}

// selfReader keeps its process handle so CPUPercent measures between calls.
type selfReader struct {
	once sync.Once
	proc *process.Process
	err  error
}

func newSelfReader() *selfReader {
	return &selfReader{}
}

func (r *selfReader) Name() string { return "self" }

func (r *selfReader) Read(ctx context.Context, s *State) error {
	r.once.Do(func() {
		r.proc, r.err = process.NewProcessWithContext(ctx, int32(os.Getpid()))
	})
	if r.err != nil {
		return r.err
	}

	mi, err := r.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return err
	}
	s.Self.RSSBytes = mi.RSS

	// the process may report no threads on some platforms
	if n, err := r.proc.NumThreadsWithContext(ctx); err == nil {
		s.Self.Threads = int(n)
	}
	if pct, err := r.proc.PercentWithContext(ctx, 0); err == nil {
		s.Self.CPUPercent = pct
	}
	return nil
}
