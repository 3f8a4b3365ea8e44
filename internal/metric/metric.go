package metric

import (
	"encoding/json"
	"fmt"
)

// Values maps metric names to their current values.
type Values map[string]any

// Range bounds a metric value. A nil bound is open.
type Range struct {
	Min *float64
	Max *float64
}

func Bounded(min, max float64) Range {
	return Range{Min: &min, Max: &max}
}

func AtLeast(min float64) Range {
	return Range{Min: &min}
}

// Contains reports whether v lies inside the closed range.
func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// MarshalJSON encodes the range as a two element array with null for open bounds.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*float64{r.Min, r.Max})
}

func (r *Range) UnmarshalJSON(b []byte) error {
	var pair [2]*float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("range: %w", err)
	}
	r.Min, r.Max = pair[0], pair[1]
	return nil
}

// Metric types reported in the schema.
const (
	TypeNumeric = "numeric"
	TypeVector  = "vector"
	TypeMatrix  = "matrix"
)

// Metric is one named statistic owned by a group.
type Metric struct {
	Name        string
	Explanation string
	Type        string
	HasRange    bool
	Range       Range
	Value       any

	baseline any
}

// Declare creates a numeric metric with no range and a nil baseline.
func Declare(name, explanation string) *Metric {
	return &Metric{Name: name, Explanation: explanation, Type: TypeNumeric}
}

func (m *Metric) WithRange(r Range) *Metric {
	m.HasRange = true
	m.Range = r
	return m
}

// WithBaseline sets the value the metric holds after construction and reset.
func (m *Metric) WithBaseline(v any) *Metric {
	m.baseline = v
	m.Value = v
	return m
}

func (m *Metric) OfType(t string) *Metric {
	m.Type = t
	return m
}

func (m *Metric) Baseline() any {
	return m.baseline
}

// Info is the schema record of a metric.
type Info struct {
	Name        string `json:"name"`
	HasRange    bool   `json:"has_range"`
	Range       *Range `json:"range"`
	Explanation string `json:"explanation"`
	Type        string `json:"type,omitempty"`
	Group       string `json:"group,omitempty"`
}

func (m *Metric) Info() Info {
	info := Info{
		Name:        m.Name,
		HasRange:    m.HasRange,
		Explanation: m.Explanation,
		Type:        m.Type,
	}
	if m.HasRange {
		r := m.Range
		info.Range = &r
	}
	return info
}
