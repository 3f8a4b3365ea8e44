package metric

import (
	"fmt"

	"github.com/haskel/raimetrics/internal/dataset"
)

// Group is a family of related metrics bound to one session.
//
// Compute must not mutate the group: it returns staged values which the
// caller applies with Commit once every group has succeeded. Update folds a
// single sample into running state and refreshes the metric values.
type Group interface {
	Name() string
	Category() string
	Complexity() Complexity
	Metrics() []*Metric
	Compute(batch *Batch) (Values, error)
	Commit(values Values)
	Update(sample dataset.Sample) error
	Reset()
	ExportValues() Values
}

// Base implements metric bookkeeping for concrete groups to embed.
type Base struct {
	name       string
	category   string
	complexity Complexity
	metrics    []*Metric
	index      map[string]*Metric
}

func NewBase(name, category string, complexity Complexity, metrics ...*Metric) Base {
	b := Base{
		name:       name,
		category:   category,
		complexity: complexity,
		metrics:    metrics,
		index:      make(map[string]*Metric, len(metrics)),
	}
	for _, m := range metrics {
		if _, dup := b.index[m.Name]; dup {
			panic(fmt.Sprintf("metric group %s declares %s twice", name, m.Name))
		}
		b.index[m.Name] = m
	}
	return b
}

func (b *Base) Name() string           { return b.name }
func (b *Base) Category() string       { return b.category }
func (b *Base) Complexity() Complexity { return b.complexity }

// Metrics returns copies of the declared metrics in declaration order.
func (b *Base) Metrics() []*Metric {
	out := make([]*Metric, len(b.metrics))
	for i, m := range b.metrics {
		c := *m
		out[i] = &c
	}
	return out
}

// Commit stores staged values. Names the group does not declare are ignored.
func (b *Base) Commit(values Values) {
	for name, v := range values {
		b.Set(name, v)
	}
}

func (b *Base) Set(name string, v any) {
	if m, ok := b.index[name]; ok {
		m.Value = v
	}
}

func (b *Base) Value(name string) (any, bool) {
	m, ok := b.index[name]
	if !ok {
		return nil, false
	}
	return m.Value, true
}

// Update is a no-op for groups that only support compute mode.
func (b *Base) Update(dataset.Sample) error {
	return nil
}

// Reset restores every metric to its baseline.
func (b *Base) Reset() {
	for _, m := range b.metrics {
		m.Value = m.baseline
	}
}

func (b *Base) ExportValues() Values {
	out := make(Values, len(b.metrics))
	for _, m := range b.metrics {
		out[m.Name] = m.Value
	}
	return out
}
