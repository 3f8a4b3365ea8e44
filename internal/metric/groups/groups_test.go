package groups

import (
	"errors"
	"math"
	"testing"

	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/metric"
	"github.com/haskel/raimetrics/internal/monitor"
)

type session struct {
	task   metric.TaskType
	config *metric.UserConfig
	meta   *dataset.MetaDatabase
}

func (s session) Task() metric.TaskType       { return s.task }
func (s session) Config() *metric.UserConfig  { return s.config }
func (s session) Model() *dataset.Model       { return &dataset.Model{Name: "m"} }
func (s session) Meta() *dataset.MetaDatabase { return s.meta }

type fakeSampler struct {
	state *monitor.State
	err   error
}

func (f fakeSampler) Sample() (*monitor.State, error) {
	return f.state, f.err
}

func fairnessConfig() *metric.UserConfig {
	pos := 1.0
	return &metric.UserConfig{Fairness: &metric.FairnessConfig{
		ProtectedAttributes: []string{"sex"},
		PositiveLabel:       &pos,
	}}
}

// scenarioBatch is a four row test split with one missing protected value.
func scenarioBatch() *metric.Batch {
	return &metric.Batch{
		Split: dataset.SplitTest,
		Data: &dataset.Data{
			Features: []string{"age", "sex"},
			X:        [][]float64{{30, 1}, {40, 0}, {50, math.NaN()}, {60, 0}},
			Y:        []float64{1, 0, 0, 1},
		},
		Predictions: []float64{1, 0, 1, 1},
	}
}

func approx(t *testing.T, name string, got any, want float64) {
	t.Helper()
	v, ok := got.(float64)
	if !ok {
		t.Errorf("%s: expected float64, got %T (%v)", name, got, got)
		return
	}
	if math.Abs(v-want) > 1e-9 {
		t.Errorf("%s: expected %v, got %v", name, want, v)
	}
}

func TestDefault_Registry(t *testing.T) {
	reg, err := Default(Options{})
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	want := []string{BinaryPerformanceName, MulticlassPerformanceName, RegressionPerformanceName,
		GroupFairnessName, IndividualFairnessName, DataStatsName}
	names := reg.Names()
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], names[i])
		}
	}

	withSystem, err := Default(Options{Sampler: fakeSampler{}})
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if _, ok := withSystem.Get(SystemName); !ok {
		t.Error("expected system group when a sampler is supplied")
	}
}

func TestDescriptors_Compatibility(t *testing.T) {
	binary := session{task: metric.TaskBinaryClassification}
	binaryFair := session{task: metric.TaskBinaryClassification, config: fairnessConfig()}
	regression := session{task: metric.TaskRegression, config: fairnessConfig()}
	withSex := session{task: metric.TaskBinaryClassification, config: fairnessConfig(),
		meta: dataset.NewMetaDatabase(dataset.Feature{Name: "age"}, dataset.Feature{Name: "sex", Protected: true})}
	withoutSex := session{task: metric.TaskBinaryClassification, config: fairnessConfig(),
		meta: dataset.NewMetaDatabase(dataset.Feature{Name: "age"})}

	tests := []struct {
		desc metric.Descriptor
		sess session
		want bool
	}{
		{BinaryPerformanceDescriptor(), binary, true},
		{BinaryPerformanceDescriptor(), regression, false},
		{RegressionPerformanceDescriptor(), regression, true},
		{GroupFairnessDescriptor(), binary, false},
		{GroupFairnessDescriptor(), binaryFair, true},
		{GroupFairnessDescriptor(), regression, false},
		{GroupFairnessDescriptor(), withSex, true},
		{GroupFairnessDescriptor(), withoutSex, false},
		{IndividualFairnessDescriptor(), withoutSex, true},
		{IndividualFairnessDescriptor(), binaryFair, true},
		{DataStatsDescriptor(), regression, true},
		{DataStatsDescriptor(), binary, true},
	}

	for _, tt := range tests {
		if got := tt.desc.IsCompatible(tt.sess); got != tt.want {
			t.Errorf("%s with task %s: expected %v, got %v", tt.desc.Name, tt.sess.task, tt.want, got)
		}
	}
}

func TestBinaryPerformance_Compute(t *testing.T) {
	g := NewBinaryPerformance(1)

	values, err := g.Compute(scenarioBatch())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	approx(t, "accuracy", values["accuracy"], 0.75)
	approx(t, "precision", values["precision"], 2.0/3.0)
	approx(t, "recall", values["recall"], 1.0)
	approx(t, "f1", values["f1"], 0.8)

	if got := g.ExportValues()["accuracy"]; got != nil {
		t.Errorf("expected Compute not to commit, got %v", got)
	}
}

func TestBinaryPerformance_MissingPredictions(t *testing.T) {
	batch := scenarioBatch()
	batch.Predictions = nil

	if _, err := NewBinaryPerformance(1).Compute(batch); !errors.Is(err, metric.ErrMissingPredictions) {
		t.Errorf("expected ErrMissingPredictions, got %v", err)
	}
}

func TestBinaryPerformance_UpdateAccumulates(t *testing.T) {
	g := NewBinaryPerformance(1)

	samples := []dataset.Sample{
		{Y: 1, Prediction: 1},
		{Y: 0, Prediction: 0},
		{Y: 0, Prediction: 1},
		{Y: 1, Prediction: 1},
	}
	for _, s := range samples {
		if err := g.Update(s); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	approx(t, "accuracy", g.ExportValues()["accuracy"], 0.75)

	g.Reset()
	if got := g.ExportValues()["accuracy"]; got != nil {
		t.Errorf("expected baseline after reset, got %v", got)
	}

	if err := g.Update(dataset.Sample{Y: 1, Prediction: 0}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	approx(t, "accuracy after reset", g.ExportValues()["accuracy"], 0)
}

func TestMulticlassPerformance_Compute(t *testing.T) {
	g := NewMulticlassPerformance()
	batch := &metric.Batch{
		Data: &dataset.Data{
			Features: []string{"f"},
			X:        [][]float64{{0}, {0}, {0}, {0}},
			Y:        []float64{0, 1, 2, 2},
		},
		Predictions: []float64{0, 2, 2, 2},
	}

	values, err := g.Compute(batch)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	approx(t, "accuracy", values["accuracy"], 0.75)
	// precision: class0 1/1, class2 2/3; class1 never predicted
	approx(t, "macro_precision", values["macro_precision"], (1.0+2.0/3.0)/2)
	// recall: class0 1, class1 0, class2 1
	approx(t, "macro_recall", values["macro_recall"], 2.0/3.0)
	if values["classes"] != 3 {
		t.Errorf("expected 3 classes, got %v", values["classes"])
	}
}

func TestRegressionPerformance_ComputeMatchesUpdate(t *testing.T) {
	y := []float64{1, 2, 3}
	yhat := []float64{1, 2, 4}

	g := NewRegressionPerformance()
	values, err := g.Compute(&metric.Batch{
		Data:        &dataset.Data{Features: []string{"f"}, X: [][]float64{{0}, {0}, {0}}, Y: y},
		Predictions: yhat,
	})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	approx(t, "mse", values["mse"], 1.0/3.0)
	approx(t, "mae", values["mae"], 1.0/3.0)
	approx(t, "r2", values["r2"], 0.5)

	for i := range y {
		if err := g.Update(dataset.Sample{Y: y[i], Prediction: yhat[i]}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	streamed := g.ExportValues()
	approx(t, "streamed mse", streamed["mse"], 1.0/3.0)
	approx(t, "streamed r2", streamed["r2"], 0.5)
}

func TestGroupFairness_Compute(t *testing.T) {
	g := NewGroupFairness(fairnessConfig().Fairness)

	values, err := g.Compute(scenarioBatch())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// privileged (sex=1): row 0, rate 1; unprivileged (sex=0): rows 1 and 3, rate 0.5
	approx(t, "demographic_parity", values["demographic_parity"], -0.5)
	approx(t, "disparate_impact", values["disparate_impact"], 0.5)
	approx(t, "equal_opportunity_difference", values["equal_opportunity_difference"], 0)
}

func TestGroupFairness_MissingAttributeIgnored(t *testing.T) {
	g := NewGroupFairness(fairnessConfig().Fairness)

	batch := scenarioBatch()
	// flip the prediction on the row with a missing protected value
	batch.Predictions[2] = 0

	values, err := g.Compute(batch)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	approx(t, "demographic_parity", values["demographic_parity"], -0.5)
}

func TestGroupFairness_PrivGroups(t *testing.T) {
	cfg := fairnessConfig().Fairness
	cfg.PrivGroups = map[string]metric.PrivGroup{"sex": {Privileged: 0, Unprivileged: 1}}
	g := NewGroupFairness(cfg)

	values, err := g.Compute(scenarioBatch())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	approx(t, "demographic_parity", values["demographic_parity"], 0.5)
}

func TestGroupFairness_MissingColumn(t *testing.T) {
	cfg := fairnessConfig().Fairness
	cfg.ProtectedAttributes = []string{"race"}

	_, err := NewGroupFairness(cfg).Compute(scenarioBatch())
	if !errors.Is(err, metric.ErrMissingFeature) {
		t.Errorf("expected ErrMissingFeature, got %v", err)
	}
}

func TestIndividualFairness_Compute(t *testing.T) {
	g := NewIndividualFairness(1)

	values, err := g.Compute(scenarioBatch())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// benefits [1 1 2 1], mean 1.25
	r := []float64{0.8, 0.8, 1.6, 0.8}
	var theil float64
	for _, v := range r {
		theil += v * math.Log(v)
	}
	theil /= 4

	approx(t, "generalized_entropy_index", values["generalized_entropy_index"], 0.06)
	approx(t, "theil_index", values["theil_index"], theil)
	approx(t, "coefficient_of_variation", values["coefficient_of_variation"], 2*math.Sqrt(0.06))
}

func TestIndividualFairness_Update(t *testing.T) {
	g := NewIndividualFairness(1)

	for _, s := range []dataset.Sample{{Y: 1, Prediction: 1}, {Y: 0, Prediction: 0}, {Y: 0, Prediction: 1}, {Y: 1, Prediction: 1}} {
		if err := g.Update(s); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	approx(t, "generalized_entropy_index", g.ExportValues()["generalized_entropy_index"], 0.06)

	g.Reset()
	if got := g.ExportValues()["theil_index"]; got != nil {
		t.Errorf("expected nil after reset, got %v", got)
	}
}

func TestDataStats_Compute(t *testing.T) {
	g := NewDataStats(nil)

	values, err := g.Compute(scenarioBatch())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if values["row_count"] != 4 {
		t.Errorf("expected 4 rows, got %v", values["row_count"])
	}
	means := values["feature_mean"].(map[string]any)
	approx(t, "age mean", means["age"], 45)
	approx(t, "sex mean", means["sex"], 1.0/3.0)

	missingRate := values["missing_rate"].(map[string]any)
	approx(t, "sex missing", missingRate["sex"], 0.25)
	approx(t, "age missing", missingRate["age"], 0)
}

func TestDataStats_Update(t *testing.T) {
	meta := dataset.NewMetaDatabase(dataset.Feature{Name: "age"}, dataset.Feature{Name: "sex"})
	g := NewDataStats(meta)

	for _, row := range scenarioBatch().Data.X {
		if err := g.Update(dataset.Sample{X: row}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	values := g.ExportValues()
	if values["row_count"] != 4 {
		t.Errorf("expected 4 rows, got %v", values["row_count"])
	}
	means := values["feature_mean"].(map[string]any)
	approx(t, "age mean", means["age"], 45)
	stds := values["feature_std"].(map[string]any)
	approx(t, "age std", stds["age"], math.Sqrt(500.0/3.0))

	if err := g.Update(dataset.Sample{X: []float64{1}}); !errors.Is(err, metric.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}

	g.Reset()
	if values := g.ExportValues(); values["row_count"] != 0 || values["feature_mean"] != nil {
		t.Errorf("expected baseline after reset, got %v", values)
	}
}

func TestSystem_Compute(t *testing.T) {
	g := NewSystem(fakeSampler{state: &monitor.State{
		CPU:       monitor.CPUState{UsagePercent: 12.5},
		Memory:    monitor.MemoryState{UsagePercent: 40},
		Processes: 7,
		Self:      monitor.SelfState{RSSBytes: 1 << 20},
	}})

	values, err := g.Compute(scenarioBatch())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	approx(t, "cpu_percent", values["cpu_percent"], 12.5)
	approx(t, "memory_percent", values["memory_percent"], 40)
	if values["processes"] != 7 {
		t.Errorf("expected 7 processes, got %v", values["processes"])
	}
	approx(t, "rss_bytes", values["rss_bytes"], 1<<20)

	failing := NewSystem(fakeSampler{err: monitor.ErrNoSample})
	if _, err := failing.Compute(scenarioBatch()); !errors.Is(err, monitor.ErrNoSample) {
		t.Errorf("expected ErrNoSample, got %v", err)
	}
}
