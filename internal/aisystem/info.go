package aisystem

import (
	"fmt"
	"time"

	"github.com/haskel/raimetrics/internal/certificate"
	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/metric"
)

// MetricInfo is the flattened schema of every metric across groups.
type MetricInfo struct {
	Metrics    map[string]metric.Info `json:"metrics"`
	Categories map[string][]string    `json:"categories"`
	// Order lists metric names group by group in registry order.
	Order []string `json:"-"`
}

type ProjectInfo struct {
	Name        string   `json:"name"`
	Task        string   `json:"task"`
	Model       string   `json:"model"`
	Description string   `json:"description,omitempty"`
	Groups      []string `json:"metric_groups"`
	SampleCount int64    `json:"sample_count"`
	RowCount    int64    `json:"row_count"`
	Timestamp   string   `json:"timestamp,omitempty"`
}

// Value is one metric value tagged with its group.
type Value struct {
	Group  string
	Metric string
	Value  any
}

// Snapshot is a consistent copy of everything publishers and exporters need,
// captured under a single read lock.
type Snapshot struct {
	System      string
	Task        metric.TaskType
	Date        time.Time
	Timestamp   string
	SampleCount int64
	RowCount    int64
	Values      map[string]metric.Values
	Flat        []Value
	Info        MetricInfo
	Model       dataset.ModelInfo
	Project     ProjectInfo
	// Certificates holds the outcome of every configured certificate.
	Certificates    map[string]certificate.Value
	CertificateInfo map[string]certificate.Info
}

func (s *System) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Groups returns the instantiated group names in registry order.
func (s *System) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groupNamesLocked()
}

func (s *System) groupNamesLocked() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.name
	}
	return out
}

// Metric returns the current value of one metric.
func (s *System) Metric(group, name string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.byName[group]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
	}
	values := g.ExportValues()
	v, ok := values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMetric, group, name)
	}
	return v, nil
}

// MetricValues returns every group's values keyed by group name.
func (s *System) MetricValues() map[string]metric.Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.valuesLocked()
}

func (s *System) valuesLocked() map[string]metric.Values {
	out := make(map[string]metric.Values, len(s.entries))
	for _, e := range s.entries {
		out[e.name] = e.group.ExportValues()
	}
	return out
}

// MetricInfo flattens every group's metric schema. Metric names are unique
// across groups because Initialize rejects collisions.
func (s *System) MetricInfo() MetricInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked()
}

func (s *System) infoLocked() MetricInfo {
	info := MetricInfo{
		Metrics:    make(map[string]metric.Info),
		Categories: make(map[string][]string),
	}
	for _, e := range s.entries {
		category := e.group.Category()
		for _, m := range e.group.Metrics() {
			mi := m.Info()
			mi.Group = e.name
			info.Metrics[m.Name] = mi
			info.Categories[category] = append(info.Categories[category], m.Name)
			info.Order = append(info.Order, m.Name)
		}
	}
	return info
}

func (s *System) ModelInfo() dataset.ModelInfo {
	return s.model.Info()
}

// Timestamp returns the formatted time of the last compute or update, or an
// empty string when nothing has been measured since the last reset.
func (s *System) Timestamp() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timestampLocked()
}

func (s *System) timestampLocked() string {
	if s.timestamp.IsZero() {
		return ""
	}
	return s.timestamp.Format(TimestampLayout)
}

// SampleCount counts compute and update calls since the last reset.
func (s *System) SampleCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sampleCount
}

// RowCount counts rows and samples processed since the last reset.
func (s *System) RowCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rowCount
}

func (s *System) ProjectInfo() ProjectInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectLocked()
}

func (s *System) projectLocked() ProjectInfo {
	return ProjectInfo{
		Name:        s.name,
		Task:        s.task.String(),
		Model:       s.model.Info().DisplayName,
		Description: s.description,
		Groups:      s.groupNamesLocked(),
		SampleCount: s.sampleCount,
		RowCount:    s.rowCount,
		Timestamp:   s.timestampLocked(),
	}
}

// Snapshot captures values, schema and metadata in one consistent view.
func (s *System) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.snapshotLocked(), nil
}

// snapshotLocked requires s.mu to be held.
func (s *System) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		System:          s.name,
		Task:            s.task,
		Date:            s.timestamp,
		Timestamp:       s.timestampLocked(),
		SampleCount:     s.sampleCount,
		RowCount:        s.rowCount,
		Values:          make(map[string]metric.Values, len(s.entries)),
		Info:            s.infoLocked(),
		Model:           s.model.Info(),
		Project:         s.projectLocked(),
		CertificateInfo: s.certs.Info(),
	}
	for _, e := range s.entries {
		values := e.group.ExportValues()
		snap.Values[e.name] = values
		for _, m := range e.group.Metrics() {
			snap.Flat = append(snap.Flat, Value{Group: e.name, Metric: m.Name, Value: values[m.Name]})
		}
	}
	snap.Certificates = s.certs.Evaluate(snap.Values)
	return snap
}

// CertificateInfo returns the schema of every configured certificate.
func (s *System) CertificateInfo() map[string]certificate.Info {
	return s.certs.Info()
}

// CertificateValues evaluates every certificate over the current values.
func (s *System) CertificateValues() map[string]certificate.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.certs.Evaluate(s.valuesLocked())
}

func (s *System) Certificate(name string) (certificate.Value, error) {
	d, ok := s.certs.Get(name)
	if !ok {
		return certificate.Value{}, fmt.Errorf("%w: %s", ErrUnknownCertificate, name)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return d.Evaluate(s.valuesLocked()), nil
}
