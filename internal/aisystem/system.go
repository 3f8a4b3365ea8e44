package aisystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/haskel/raimetrics/internal/certificate"
	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/metric"
)

// TimestampLayout formats the last-measurement marker.
const TimestampLayout = "2006-01-02-15:04:05"

// DataSource yields the full data of a named split.
type DataSource interface {
	Get(split dataset.Split) (*dataset.Data, error)
}

type entry struct {
	name  string
	group metric.Group
}

// System is one analysis session bound to a task, model, dataset and
// configuration. All methods are safe for concurrent use: Initialize,
// Compute, Update and Reset are exclusive, accessors share a read lock.
type System struct {
	name        string
	description string
	task        metric.TaskType
	model       *dataset.Model
	data        DataSource
	meta        *dataset.MetaDatabase
	config      *metric.UserConfig
	registry    *metric.Registry
	certs       *certificate.Set
	logger      *slog.Logger
	now         func() time.Time

	mu          sync.RWMutex
	initialized bool
	entries     []entry
	byName      map[string]metric.Group
	timestamp   time.Time
	sampleCount int64
	rowCount    int64
}

type Option func(*System)

func WithLogger(logger *slog.Logger) Option {
	return func(s *System) {
		s.logger = logger
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *System) {
		s.now = now
	}
}

func WithUserConfig(cfg *metric.UserConfig) Option {
	return func(s *System) {
		s.config = cfg
	}
}

// WithCertificates evaluates certs over the metric values.
func WithCertificates(certs *certificate.Set) Option {
	return func(s *System) {
		s.certs = certs
	}
}

func WithDescription(description string) Option {
	return func(s *System) {
		s.description = description
	}
}

func New(name string, task metric.TaskType, model *dataset.Model, data DataSource, meta *dataset.MetaDatabase, registry *metric.Registry, opts ...Option) (*System, error) {
	if name == "" {
		return nil, errors.New("system name is required")
	}
	if !task.IsValid() {
		return nil, fmt.Errorf("unknown task type %q", task)
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.New("data source is required")
	}
	if registry == nil {
		return nil, errors.New("metric registry is required")
	}

	s := &System{
		name:     name,
		task:     task,
		model:    model,
		data:     data,
		meta:     meta,
		registry: registry,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *System) Name() string                { return s.name }
func (s *System) Task() metric.TaskType       { return s.task }
func (s *System) Config() *metric.UserConfig  { return s.config }
func (s *System) Model() *dataset.Model       { return s.model }
func (s *System) Meta() *dataset.MetaDatabase { return s.meta }
func (s *System) Registry() *metric.Registry  { return s.registry }
func (s *System) Description() string         { return s.description }

func (s *System) Certificates() *certificate.Set { return s.certs }

// InitOptions restrict which registry entries Initialize attempts. Zero
// values attempt every entry.
type InitOptions struct {
	Groups        []string
	Pattern       string
	MaxComplexity metric.Complexity
}

type Skip struct {
	Group  string `json:"group"`
	Reason string `json:"reason"`
}

type InitReport struct {
	Created []string `json:"created"`
	Skipped []Skip   `json:"skipped,omitempty"`
	// Snapshot is the state right after initialization.
	Snapshot *Snapshot `json:"-"`
}

const (
	reasonNotAllowed   = "not in allow-list"
	reasonNoMatch      = "name does not match pattern"
	reasonTooComplex   = "complexity above ceiling"
	reasonIncompatible = "incompatible"
)

// Initialize instantiates every compatible registry entry that passes the
// filters, replacing any previous groups and discarding their state.
// On error the previous groups are kept.
func (s *System) Initialize(ctx context.Context, opts InitOptions) (*InitReport, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if s.config != nil && s.config.Fairness.Unresolved() {
		return nil, fmt.Errorf("%w: fairness categories are not resolved against the dataset", ErrInvalidConfig)
	}

	var pattern *regexp.Regexp
	if opts.Pattern != "" {
		re, err := regexp.Compile(opts.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
		}
		pattern = re
	}

	var allow map[string]bool
	if len(opts.Groups) > 0 {
		allow = make(map[string]bool, len(opts.Groups))
		for _, name := range opts.Groups {
			if _, ok := s.registry.Get(name); !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, name)
			}
			allow[name] = true
		}
	}

	ceiling := opts.MaxComplexity

	s.mu.Lock()
	defer s.mu.Unlock()

	report := &InitReport{}
	entries := make([]entry, 0, s.registry.Len())
	owner := make(map[string]string)

	for _, d := range s.registry.Descriptors() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		reason := ""
		switch {
		case allow != nil && !allow[d.Name]:
			reason = reasonNotAllowed
		case pattern != nil && !pattern.MatchString(d.Name):
			reason = reasonNoMatch
		case !d.Complexity.Within(ceiling):
			reason = reasonTooComplex
		}
		if reason != "" {
			s.logger.Debug("metric group filtered", "group", d.Name, "reason", reason)
			report.Skipped = append(report.Skipped, Skip{Group: d.Name, Reason: reason})
			continue
		}

		if !d.IsCompatible(s) {
			s.logger.Info("metric group skipped", "group", d.Name, "reason", reasonIncompatible)
			report.Skipped = append(report.Skipped, Skip{Group: d.Name, Reason: reasonIncompatible})
			continue
		}

		g := d.New(s)
		for _, m := range g.Metrics() {
			if prev, dup := owner[m.Name]; dup {
				return nil, fmt.Errorf("%w: %s is declared by %s and %s", ErrMetricCollision, m.Name, prev, d.Name)
			}
			owner[m.Name] = d.Name
		}

		entries = append(entries, entry{name: d.Name, group: g})
		report.Created = append(report.Created, d.Name)
		s.logger.Info("metric group created",
			"group", d.Name,
			"category", g.Category(),
			"metrics", len(g.Metrics()),
		)
	}

	s.entries = entries
	s.byName = make(map[string]metric.Group, len(entries))
	for _, e := range entries {
		s.byName[e.name] = e.group
	}
	s.initialized = true
	s.timestamp = time.Time{}
	s.sampleCount = 0
	s.rowCount = 0

	s.logger.Info("system initialized",
		"system", s.name,
		"task", s.task.String(),
		"groups", len(entries),
		"skipped", len(report.Skipped),
	)
	report.Snapshot = s.snapshotLocked()
	return report, nil
}

// ComputeOptions select the split and model outputs for a batch measurement.
type ComputeOptions struct {
	// Split defaults to train.
	Split         dataset.Split
	Predictions   []float64
	Probabilities [][]float64
	// Reset clears accumulated state and counters before committing.
	Reset bool
	// Isolate commits the groups that succeeded instead of aborting on the
	// first failure. Failures are listed in the report and returned joined.
	Isolate bool
}

type ComputeReport struct {
	Split     dataset.Split     `json:"split"`
	Rows      int               `json:"rows"`
	Computed  []string          `json:"computed"`
	Failed    map[string]string `json:"failed,omitempty"`
	Timestamp string            `json:"timestamp"`
	// Snapshot is the state this compute committed, captured before the
	// lock is released. Nil when nothing was committed.
	Snapshot *Snapshot `json:"-"`
}

// Compute recomputes every group from the full data of a split. Values are
// staged and committed only after every group has run, so a failure leaves
// the system unchanged unless Isolate is set.
func (s *System) Compute(ctx context.Context, opts ComputeOptions) (*ComputeReport, error) {
	split, err := dataset.ParseSplit(string(opts.Split))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	data, err := s.data.Get(split)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s data: %w", split, err)
	}

	batch := &metric.Batch{
		Split:         split,
		Data:          data,
		Predictions:   opts.Predictions,
		Probabilities: opts.Probabilities,
	}

	report := &ComputeReport{Split: split, Rows: data.Len()}
	staged := make([]metric.Values, len(s.entries))
	var failures []error

	for i, e := range s.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		values, err := e.group.Compute(batch)
		if err != nil {
			gerr := &GroupError{Group: e.name, Op: "compute", Sample: -1, Err: err}
			if !opts.Isolate {
				return nil, gerr
			}
			s.logger.Warn("metric group compute failed", "group", e.name, "error", err)
			if report.Failed == nil {
				report.Failed = make(map[string]string)
			}
			report.Failed[e.name] = err.Error()
			failures = append(failures, gerr)
			continue
		}
		staged[i] = values
	}

	if len(failures) > 0 && len(failures) == len(s.entries) {
		return report, errors.Join(failures...)
	}

	if opts.Reset {
		s.resetLocked()
	}
	for i, e := range s.entries {
		if staged[i] == nil {
			continue
		}
		e.group.Commit(staged[i])
		report.Computed = append(report.Computed, e.name)
	}

	s.timestamp = s.now()
	s.sampleCount++
	s.rowCount += int64(data.Len())
	report.Timestamp = s.timestamp.Format(TimestampLayout)
	report.Snapshot = s.snapshotLocked()

	s.logger.Debug("metrics computed",
		"split", split,
		"rows", data.Len(),
		"groups", len(report.Computed),
	)
	return report, errors.Join(failures...)
}

type UpdateReport struct {
	Samples   int    `json:"samples"`
	Timestamp string `json:"timestamp"`
	// Snapshot is the state after this update, captured under the same lock.
	Snapshot *Snapshot `json:"-"`
}

// Update feeds samples in order to every group. It is not atomic: when a
// group fails, earlier samples stay applied and groups ahead of the failing
// one in registry order have already seen the failing sample. Counters and
// the timestamp only move when every sample was applied.
func (s *System) Update(ctx context.Context, samples []dataset.Sample) (*UpdateReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	for i, sample := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, e := range s.entries {
			if err := e.group.Update(sample); err != nil {
				return nil, &GroupError{Group: e.name, Op: "update", Sample: i, Err: err}
			}
		}
	}

	s.timestamp = s.now()
	s.sampleCount++
	s.rowCount += int64(len(samples))
	return &UpdateReport{
		Samples:   len(samples),
		Timestamp: s.timestamp.Format(TimestampLayout),
		Snapshot:  s.snapshotLocked(),
	}, nil
}

// Reset restores every group to its baseline and zeroes the counters. The
// returned snapshot is the baseline state.
func (s *System) Reset() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	s.resetLocked()
	s.logger.Info("metrics reset", "system", s.name)
	return s.snapshotLocked(), nil
}

func (s *System) resetLocked() {
	for _, e := range s.entries {
		e.group.Reset()
	}
	s.timestamp = time.Time{}
	s.sampleCount = 0
	s.rowCount = 0
}
