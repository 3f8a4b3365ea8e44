package recorder

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/haskel/raimetrics/internal/aisystem"
	"github.com/haskel/raimetrics/internal/certificate"
	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/export"
	"github.com/haskel/raimetrics/internal/metric"
	"github.com/haskel/raimetrics/internal/metric/groups"
	"github.com/haskel/raimetrics/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakePublisher struct {
	metadata     int
	measurements []string
	resets       int
	err          error
}

func (f *fakePublisher) ExportMetadata(context.Context, *aisystem.Snapshot) error {
	f.metadata++
	return f.err
}

func (f *fakePublisher) AddMeasurement(_ context.Context, snap *aisystem.Snapshot, tag string) error {
	f.measurements = append(f.measurements, tag+"@"+snap.Timestamp)
	return f.err
}

func (f *fakePublisher) Reset(context.Context, *aisystem.Snapshot) error {
	f.resets++
	return f.err
}

func newSystem(t *testing.T) *aisystem.System {
	t.Helper()

	ds := dataset.New()
	err := ds.Set(dataset.SplitTest, &dataset.Data{
		Features: []string{"age", "sex"},
		X:        [][]float64{{30, 1}, {40, 0}, {50, math.NaN()}, {60, 0}},
		Y:        []float64{1, 0, 0, 1},
	})
	if err != nil {
		t.Fatalf("failed to set split: %v", err)
	}

	reg, err := groups.Default(groups.Options{})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	pos := 1.0
	cfg := &metric.UserConfig{Fairness: &metric.FairnessConfig{ProtectedAttributes: []string{"sex"}, PositiveLabel: &pos}}
	sys, err := aisystem.New("credit", metric.TaskBinaryClassification, &dataset.Model{Name: "credit", ModelClass: "LogisticRegression"}, ds, nil, reg,
		aisystem.WithUserConfig(cfg),
		aisystem.WithCertificates(certificate.Default()),
		aisystem.WithClock(func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC) }),
	)
	if err != nil {
		t.Fatalf("failed to create system: %v", err)
	}
	return sys
}

func newRecorder(t *testing.T, pub *fakePublisher) (*Recorder, *storage.Storage, string) {
	t.Helper()
	dir := t.TempDir()
	store := storage.New(dir, time.Hour, 0, testLogger())
	exportDir := filepath.Join(dir, "output")

	r := New(newSystem(t),
		WithHistory(store),
		WithPublisher(pub),
		WithExporter(export.New(exportDir, testLogger())),
		WithLogger(testLogger()),
	)
	if _, err := r.Initialize(context.Background(), aisystem.InitOptions{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return r, store, exportDir
}

func TestRecorder_InitializePublishesMetadata(t *testing.T) {
	pub := &fakePublisher{}
	newRecorder(t, pub)

	if pub.metadata != 1 {
		t.Errorf("expected metadata published once, got %d", pub.metadata)
	}
}

func TestRecorder_Compute(t *testing.T) {
	pub := &fakePublisher{}
	r, store, _ := newRecorder(t, pub)

	res, err := r.Compute(context.Background(), aisystem.ComputeOptions{
		Predictions: []float64{1, 0, 1, 1},
		Split:       dataset.SplitTest,
	}, "baseline")
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if res.Report.Rows != 4 {
		t.Errorf("expected 4 rows, got %d", res.Report.Rows)
	}
	m := res.Measurement
	if m.ID == "" || m.Tag != "baseline" || m.Split != "test" || m.Date != "2024-03-05-14:07:09" {
		t.Errorf("unexpected measurement %+v", m)
	}
	if m.Values[groups.BinaryPerformanceName]["accuracy"] != 0.75 {
		t.Errorf("unexpected values %v", m.Values[groups.BinaryPerformanceName])
	}

	if store.Len() != 1 {
		t.Errorf("expected 1 stored measurement, got %d", store.Len())
	}
	if len(pub.measurements) != 1 || pub.measurements[0] != "baseline@2024-03-05-14:07:09" {
		t.Errorf("unexpected published measurements %v", pub.measurements)
	}
}

func TestRecorder_ComputeFailureRecordsNothing(t *testing.T) {
	pub := &fakePublisher{}
	r, store, _ := newRecorder(t, pub)

	_, err := r.Compute(context.Background(), aisystem.ComputeOptions{Split: "nonexistent"}, "")
	if !errors.Is(err, aisystem.ErrUnknownSplit) {
		t.Fatalf("expected ErrUnknownSplit, got %v", err)
	}
	if store.Len() != 0 || len(pub.measurements) != 0 {
		t.Error("expected nothing recorded")
	}
}

func TestRecorder_PublishErrorIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	r, store, _ := newRecorder(t, pub)

	_, err := r.Compute(context.Background(), aisystem.ComputeOptions{Predictions: []float64{1, 0, 1, 1}, Split: dataset.SplitTest}, "")
	if err != nil {
		t.Fatalf("expected publish failure to be logged only, got %v", err)
	}
	if store.Len() != 1 {
		t.Error("expected measurement stored")
	}
}

func TestRecorder_Update(t *testing.T) {
	pub := &fakePublisher{}
	r, store, _ := newRecorder(t, pub)

	samples := []dataset.Sample{
		{X: []float64{30, 1}, Y: 1, Prediction: 1},
		{X: []float64{40, 0}, Y: 0, Prediction: 1},
	}
	res, err := r.Update(context.Background(), samples, "stream")
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if res.Measurement.SampleCount != 1 || res.Measurement.Tag != "stream" {
		t.Errorf("unexpected measurement %+v", res.Measurement)
	}
	if len(r.Measurements("stream", 0)) != 1 || store.Len() != 1 {
		t.Error("expected one stream measurement")
	}
}

func TestRecorder_Reset(t *testing.T) {
	pub := &fakePublisher{}
	r, store, _ := newRecorder(t, pub)

	if _, err := r.Compute(context.Background(), aisystem.ComputeOptions{Predictions: []float64{1, 0, 1, 1}, Split: dataset.SplitTest}, ""); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if err := r.Reset(context.Background(), false); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if pub.resets != 1 {
		t.Errorf("expected publisher reset, got %d", pub.resets)
	}
	if r.System().SampleCount() != 0 {
		t.Error("expected system reset")
	}
	if store.Len() != 1 {
		t.Error("expected history to be kept")
	}

	if err := r.Reset(context.Background(), true); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if store.Len() != 0 || r.Latest() != nil {
		t.Error("expected history to be cleared")
	}
}

func TestRecorder_Latest(t *testing.T) {
	r, _, _ := newRecorder(t, &fakePublisher{})
	if r.Latest() != nil {
		t.Fatal("expected no measurement yet")
	}

	for _, tag := range []string{"first", "second"} {
		if _, err := r.Compute(context.Background(), aisystem.ComputeOptions{Predictions: []float64{1, 0, 1, 1}, Split: dataset.SplitTest}, tag); err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
	}
	m := r.Latest()
	if m == nil || m.Tag != "second" || m.SampleCount != 2 {
		t.Errorf("unexpected latest measurement %+v", m)
	}
	if _, ok := m.Certificates["minimum_accuracy"]; !ok {
		t.Errorf("expected certificate outcomes, got %v", m.Certificates)
	}
}

// Each stored measurement must carry the state of its own call even when
// computes and updates interleave.
func TestRecorder_ConcurrentMeasurementsAreDistinct(t *testing.T) {
	pub := &lockedPublisher{}
	dir := t.TempDir()
	store := storage.New(dir, time.Hour, 10000, testLogger())
	r := New(newSystem(t), WithHistory(store), WithPublisher(pub), WithLogger(testLogger()))
	if _, err := r.Initialize(context.Background(), aisystem.InitOptions{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	const workers, calls = 4, 100
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				if _, err := r.Compute(context.Background(), aisystem.ComputeOptions{Predictions: []float64{1, 0, 1, 1}, Split: dataset.SplitTest}, "batch"); err != nil {
					t.Errorf("Compute failed: %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				if _, err := r.Update(context.Background(), []dataset.Sample{{X: []float64{30, 1}, Y: 1, Prediction: 1}}, "stream"); err != nil {
					t.Errorf("Update failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, m := range store.List("", 0) {
		if seen[m.SampleCount] {
			t.Errorf("sample count %d stored twice", m.SampleCount)
		}
		seen[m.SampleCount] = true
	}
	if len(seen) != 2*workers*calls {
		t.Errorf("expected %d distinct measurements, got %d", 2*workers*calls, len(seen))
	}
}

type lockedPublisher struct {
	mu    sync.Mutex
	count int
}

func (p *lockedPublisher) ExportMetadata(context.Context, *aisystem.Snapshot) error { return nil }

func (p *lockedPublisher) AddMeasurement(context.Context, *aisystem.Snapshot, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return nil
}

func TestRecorder_Export(t *testing.T) {
	r, _, exportDir := newRecorder(t, &fakePublisher{})

	if _, err := r.Compute(context.Background(), aisystem.ComputeOptions{Predictions: []float64{1, 0, 1, 1}, Split: dataset.SplitTest}, ""); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	dir, err := r.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if dir != exportDir {
		t.Errorf("expected %s, got %s", exportDir, dir)
	}
	if _, err := os.Stat(filepath.Join(dir, export.ValuesFile)); err != nil {
		t.Errorf("expected values file: %v", err)
	}
}

func TestRecorder_WithoutCollaborators(t *testing.T) {
	r := New(newSystem(t))
	ctx := context.Background()

	if _, err := r.Initialize(ctx, aisystem.InitOptions{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	res, err := r.Compute(ctx, aisystem.ComputeOptions{Predictions: []float64{1, 0, 1, 1}, Split: dataset.SplitTest}, "")
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if res.Measurement == nil || res.Measurement.ID != "" {
		t.Errorf("expected unsaved measurement without ID, got %+v", res.Measurement)
	}
	if _, err := r.Export(); !errors.Is(err, ErrExportDisabled) {
		t.Errorf("expected ErrExportDisabled, got %v", err)
	}
	if r.Measurements("", 0) != nil {
		t.Error("expected no measurements without history")
	}
	if err := r.Reset(ctx, true); err != nil {
		t.Errorf("Reset failed: %v", err)
	}
}
