// Package groups holds the built-in metric groups and the default registry.
package groups

import (
	"math"

	"github.com/haskel/raimetrics/internal/metric"
)

// Categories used in exported metadata.
const (
	CategoryPerformance = "performance"
	CategoryFairness    = "fairness"
	CategoryStats       = "stats"
	CategorySystem      = "system"
)

// Options configures the default registry.
type Options struct {
	// Sampler backs the system group. Nil leaves the group out.
	Sampler Sampler
}

// Descriptors returns the built-in descriptors in registration order.
func Descriptors(opts Options) []metric.Descriptor {
	ds := []metric.Descriptor{
		BinaryPerformanceDescriptor(),
		MulticlassPerformanceDescriptor(),
		RegressionPerformanceDescriptor(),
		GroupFairnessDescriptor(),
		IndividualFairnessDescriptor(),
		DataStatsDescriptor(),
	}
	if opts.Sampler != nil {
		ds = append(ds, SystemDescriptor(opts.Sampler))
	}
	return ds
}

// Default builds the standard registry.
func Default(opts Options) (*metric.Registry, error) {
	return metric.NewRegistryBuilder().Register(Descriptors(opts)...).Build()
}

func requiresFairness(s metric.Session) bool {
	return s.Config().HasFairness()
}

// requiresProtectedFeature also needs the compared attribute to be a known
// feature when the session carries feature metadata.
func requiresProtectedFeature(s metric.Session) bool {
	if !requiresFairness(s) {
		return false
	}
	meta := s.Meta()
	if meta == nil || len(meta.Features) == 0 {
		return true
	}
	_, ok := meta.Feature(s.Config().Fairness.ProtectedAttributes[0])
	return ok
}

// positiveLabel is the configured positive class, 1 when no fairness
// configuration is present.
func positiveLabel(s metric.Session) float64 {
	if c := s.Config(); c.HasFairness() {
		return *c.Fairness.PositiveLabel
	}
	return 1
}

// finite maps NaN and infinities to nil so values stay JSON encodable.
func finite(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func ratio(num, den float64) any {
	if den == 0 {
		return nil
	}
	return finite(num / den)
}

func missing(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
