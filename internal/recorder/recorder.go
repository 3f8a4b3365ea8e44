// Package recorder runs measurements on a system and fans the resulting
// snapshots out to history, publishers and file export.
package recorder

import (
	"context"
	"errors"
	"log/slog"

	"github.com/haskel/raimetrics/internal/aisystem"
	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/publish"
	"github.com/haskel/raimetrics/internal/storage"
)

// ErrExportDisabled is returned by Export when no exporter is configured.
var ErrExportDisabled = errors.New("export is not configured")

// History stores measurements.
type History interface {
	Append(m *storage.Measurement) *storage.Measurement
	List(tag string, limit int) []*storage.Measurement
	Latest() *storage.Measurement
	Clear()
}

// Exporter writes a snapshot to files.
type Exporter interface {
	Export(snap *aisystem.Snapshot) error
	Dir() string
}

type Recorder struct {
	system    *aisystem.System
	history   History
	publisher publish.Publisher
	exporter  Exporter
	logger    *slog.Logger
}

type Option func(*Recorder)

func WithHistory(h History) Option {
	return func(r *Recorder) {
		r.history = h
	}
}

func WithPublisher(p publish.Publisher) Option {
	return func(r *Recorder) {
		r.publisher = p
	}
}

func WithExporter(e Exporter) Option {
	return func(r *Recorder) {
		r.exporter = e
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func New(system *aisystem.System, opts ...Option) *Recorder {
	r := &Recorder{
		system: system,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) System() *aisystem.System {
	return r.system
}

// Result describes one recorded measurement.
type Result struct {
	Report      *aisystem.ComputeReport `json:"report,omitempty"`
	Update      *aisystem.UpdateReport  `json:"update,omitempty"`
	Measurement *storage.Measurement    `json:"measurement,omitempty"`
}

// Initialize initializes the system and publishes its metadata.
func (r *Recorder) Initialize(ctx context.Context, opts aisystem.InitOptions) (*aisystem.InitReport, error) {
	report, err := r.system.Initialize(ctx, opts)
	if err != nil {
		return nil, err
	}
	r.publishMetadata(ctx, report.Snapshot)
	return report, nil
}

// Compute runs a batch measurement and records it. A partial failure under
// Isolate is recorded and its error returned alongside the result.
func (r *Recorder) Compute(ctx context.Context, opts aisystem.ComputeOptions, tag string) (*Result, error) {
	report, err := r.system.Compute(ctx, opts)
	if report == nil || report.Snapshot == nil {
		return nil, err
	}

	m := r.record(ctx, report.Snapshot, string(report.Split), tag)
	return &Result{Report: report, Measurement: m}, err
}

// Update applies samples in update mode and records the result.
func (r *Recorder) Update(ctx context.Context, samples []dataset.Sample, tag string) (*Result, error) {
	report, err := r.system.Update(ctx, samples)
	if err != nil {
		return nil, err
	}
	m := r.record(ctx, report.Snapshot, "", tag)
	return &Result{Update: report, Measurement: m}, nil
}

// record stores and publishes snap, which must be the state produced by the
// call being recorded.
func (r *Recorder) record(ctx context.Context, snap *aisystem.Snapshot, split, tag string) *storage.Measurement {
	m := &storage.Measurement{
		System:       snap.System,
		Date:         snap.Timestamp,
		RecordedAt:   snap.Date,
		Tag:          tag,
		Split:        split,
		SampleCount:  snap.SampleCount,
		Values:       snap.Values,
		Certificates: snap.Certificates,
	}
	if r.history != nil {
		m = r.history.Append(m)
	}

	if r.publisher != nil {
		if err := r.publisher.AddMeasurement(ctx, snap, tag); err != nil {
			r.logger.Warn("failed to publish measurement", "system", snap.System, "error", err)
		}
	}
	return m
}

// Reset restores the system baseline and clears publisher history. Recorded
// measurements are dropped only when clearHistory is set.
func (r *Recorder) Reset(ctx context.Context, clearHistory bool) error {
	snap, err := r.system.Reset()
	if err != nil {
		return err
	}
	if clearHistory && r.history != nil {
		r.history.Clear()
		r.logger.Info("measurement history cleared", "system", snap.System)
	}
	if res, ok := r.publisher.(publish.Resetter); ok {
		if err := res.Reset(ctx, snap); err != nil {
			r.logger.Warn("failed to reset publisher", "system", snap.System, "error", err)
		}
	}
	return nil
}

// Export writes the current snapshot through the exporter and returns the
// export directory.
func (r *Recorder) Export() (string, error) {
	if r.exporter == nil {
		return "", ErrExportDisabled
	}
	snap, err := r.system.Snapshot()
	if err != nil {
		return "", err
	}
	if err := r.exporter.Export(snap); err != nil {
		return "", err
	}
	return r.exporter.Dir(), nil
}

// Latest returns the most recent measurement, or nil when none was recorded.
func (r *Recorder) Latest() *storage.Measurement {
	if r.history == nil {
		return nil
	}
	return r.history.Latest()
}

// Measurements lists recorded measurements, newest last.
func (r *Recorder) Measurements(tag string, limit int) []*storage.Measurement {
	if r.history == nil {
		return nil
	}
	return r.history.List(tag, limit)
}

func (r *Recorder) publishMetadata(ctx context.Context, snap *aisystem.Snapshot) {
	if r.publisher == nil || snap == nil {
		return
	}
	if err := r.publisher.ExportMetadata(ctx, snap); err != nil {
		r.logger.Warn("failed to publish metadata", "system", snap.System, "error", err)
	}
}
