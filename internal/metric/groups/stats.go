package groups

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/metric"
)

const DataStatsName = "data_stats"

func DataStatsDescriptor() metric.Descriptor {
	return metric.Descriptor{
		Name:       DataStatsName,
		Complexity: metric.ComplexityLinear,
		Category:   CategoryStats,
		New: func(s metric.Session) metric.Group {
			return NewDataStats(s.Meta())
		},
	}
}

// welford accumulates mean and variance in one pass.
type welford struct {
	n, missing float64
	mean, m2   float64
}

func (w *welford) add(v float64) {
	if math.IsNaN(v) {
		w.missing++
		return
	}
	w.n++
	d := v - w.mean
	w.mean += d / w.n
	w.m2 += d * (v - w.mean)
}

func (w welford) meanValue() any {
	if w.n == 0 {
		return nil
	}
	return finite(w.mean)
}

func (w welford) stdValue() any {
	if w.n < 2 {
		return nil
	}
	return finite(math.Sqrt(w.m2 / (w.n - 1)))
}

// DataStats describes the feature distribution of the evaluated data.
type DataStats struct {
	metric.Base
	meta    *dataset.MetaDatabase
	rows    int
	columns []welford
}

func NewDataStats(meta *dataset.MetaDatabase) *DataStats {
	return &DataStats{
		Base: metric.NewBase(DataStatsName, CategoryStats, metric.ComplexityLinear,
			metric.Declare("row_count", "Number of rows evaluated").WithRange(metric.AtLeast(0)).WithBaseline(0),
			metric.Declare("feature_mean", "Mean of each feature ignoring missing values").OfType(metric.TypeVector),
			metric.Declare("feature_std", "Sample standard deviation of each feature ignoring missing values").OfType(metric.TypeVector),
			metric.Declare("missing_rate", "Fraction of missing values per feature").OfType(metric.TypeVector),
		),
		meta: meta,
	}
}

func (g *DataStats) Compute(batch *metric.Batch) (metric.Values, error) {
	data := batch.Data
	means := make(map[string]any, len(data.Features))
	stds := make(map[string]any, len(data.Features))
	missingRate := make(map[string]any, len(data.Features))

	for _, name := range data.Features {
		col, _ := data.Column(name)
		vals := make([]float64, 0, len(col))
		for _, v := range col {
			if !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}

		means[name], stds[name] = nil, nil
		switch {
		case len(vals) >= 2:
			m, s := stat.MeanStdDev(vals, nil)
			means[name], stds[name] = finite(m), finite(s)
		case len(vals) == 1:
			means[name] = finite(vals[0])
		}
		missingRate[name] = ratio(float64(len(col)-len(vals)), float64(len(col)))
	}

	return metric.Values{
		"row_count":    data.Len(),
		"feature_mean": means,
		"feature_std":  stds,
		"missing_rate": missingRate,
	}, nil
}

func (g *DataStats) Update(s dataset.Sample) error {
	if g.columns == nil {
		g.columns = make([]welford, len(s.X))
	}
	if len(s.X) != len(g.columns) {
		return fmt.Errorf("%w: sample has %d features, want %d", metric.ErrShapeMismatch, len(s.X), len(g.columns))
	}
	for i, v := range s.X {
		g.columns[i].add(v)
	}
	g.rows++

	means := make(map[string]any, len(g.columns))
	stds := make(map[string]any, len(g.columns))
	missingRate := make(map[string]any, len(g.columns))
	for i, w := range g.columns {
		name := g.featureName(i)
		means[name] = w.meanValue()
		stds[name] = w.stdValue()
		missingRate[name] = ratio(w.missing, float64(g.rows))
	}

	g.Commit(metric.Values{
		"row_count":    g.rows,
		"feature_mean": means,
		"feature_std":  stds,
		"missing_rate": missingRate,
	})
	return nil
}

func (g *DataStats) Reset() {
	g.rows = 0
	g.columns = nil
	g.Base.Reset()
}

// featureName labels streamed columns with metadata names when the metadata
// covers every column.
func (g *DataStats) featureName(i int) string {
	if g.meta != nil && len(g.meta.Features) == len(g.columns) {
		return g.meta.Features[i].Name
	}
	return fmt.Sprintf("x%d", i)
}
