// Package monitor samples host and process resource usage for the system
// metric group.
package monitor

import (
	"context"
	"errors"
	"time"
)

var ErrNoSample = errors.New("no reader produced a sample")

// Reader fills its part of a State.
type Reader interface {
	Name() string
	Read(ctx context.Context, s *State) error
}

type CPUState struct {
	UsagePercent float64   `json:"usage_percent"`
	Cores        []float64 `json:"cores"`
}

type MemoryState struct {
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	TotalBytes     uint64  `json:"total_bytes"`
	UsagePercent   float64 `json:"usage_percent"`
}

// SelfState is the footprint of the rai process itself.
type SelfState struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int     `json:"threads"`
}

// State is a point-in-time snapshot of the host.
type State struct {
	CPU       CPUState    `json:"cpu"`
	Memory    MemoryState `json:"memory"`
	Processes int         `json:"processes"`
	Self      SelfState   `json:"self"`
	Timestamp time.Time   `json:"timestamp"`
}

func (s *State) Clone() *State {
	clone := *s
	clone.CPU.Cores = append([]float64(nil), s.CPU.Cores...)
	return &clone
}

// Default returns the readers backing the system metric group.
func Default() []Reader {
	return []Reader{
		cpuReader{},
		memoryReader{},
		processCountReader{},
		newSelfReader(),
	}
}
