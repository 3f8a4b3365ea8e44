package groups

import (
	"github.com/haskel/raimetrics/internal/metric"
	"github.com/haskel/raimetrics/internal/monitor"
)

const SystemName = "system"

// Sampler provides the latest host resource snapshot.
type Sampler interface {
	Sample() (*monitor.State, error)
}

func SystemDescriptor(sampler Sampler) metric.Descriptor {
	return metric.Descriptor{
		Name:       SystemName,
		Complexity: metric.ComplexityConstant,
		Category:   CategorySystem,
		New: func(metric.Session) metric.Group {
			return NewSystem(sampler)
		},
	}
}

// System records host resource usage at the time of each measurement.
type System struct {
	metric.Base
	sampler Sampler
}

func NewSystem(sampler Sampler) *System {
	return &System{
		Base: metric.NewBase(SystemName, CategorySystem, metric.ComplexityConstant,
			metric.Declare("cpu_percent", "Host CPU utilisation").WithRange(metric.Bounded(0, 100)),
			metric.Declare("memory_percent", "Host memory utilisation").WithRange(metric.Bounded(0, 100)),
			metric.Declare("processes", "Number of running processes").WithRange(metric.AtLeast(0)),
			metric.Declare("rss_bytes", "Resident memory of the rai process").WithRange(metric.AtLeast(0)),
		),
		sampler: sampler,
	}
}

func (g *System) Compute(*metric.Batch) (metric.Values, error) {
	state, err := g.sampler.Sample()
	if err != nil {
		return nil, err
	}
	return metric.Values{
		"cpu_percent":    finite(state.CPU.UsagePercent),
		"memory_percent": finite(state.Memory.UsagePercent),
		"processes":      state.Processes,
		"rss_bytes":      float64(state.Self.RSSBytes),
	}, nil
}
