package groups

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/metric"
)

const RegressionPerformanceName = "regression_performance"

func RegressionPerformanceDescriptor() metric.Descriptor {
	return metric.Descriptor{
		Name:       RegressionPerformanceName,
		TaskType:   metric.TaskRegression,
		Complexity: metric.ComplexityLinear,
		Category:   CategoryPerformance,
		New: func(metric.Session) metric.Group {
			return NewRegressionPerformance()
		},
	}
}

// residuals holds running sums for streaming error metrics.
type residuals struct {
	n      float64
	sumSq  float64
	sumAbs float64
	sumY   float64
	sumY2  float64
}

func (r *residuals) add(y, yhat float64) {
	if missing(y, yhat) {
		return
	}
	d := yhat - y
	r.n++
	r.sumSq += d * d
	r.sumAbs += math.Abs(d)
	r.sumY += y
	r.sumY2 += y * y
}

func (r residuals) values() metric.Values {
	if r.n == 0 {
		return metric.Values{"mse": nil, "mae": nil, "r2": nil}
	}
	sst := r.sumY2 - r.sumY*r.sumY/r.n
	var r2 any
	if sst > 0 {
		r2 = finite(1 - r.sumSq/sst)
	}
	return metric.Values{
		"mse": finite(r.sumSq / r.n),
		"mae": finite(r.sumAbs / r.n),
		"r2":  r2,
	}
}

// RegressionPerformance scores predictions of a regression model.
type RegressionPerformance struct {
	metric.Base
	running residuals
}

func NewRegressionPerformance() *RegressionPerformance {
	return &RegressionPerformance{
		Base: metric.NewBase(RegressionPerformanceName, CategoryPerformance, metric.ComplexityLinear,
			metric.Declare("mse", "Mean squared error").WithRange(metric.AtLeast(0)),
			metric.Declare("mae", "Mean absolute error").WithRange(metric.AtLeast(0)),
			metric.Declare("r2", "Coefficient of determination"),
		),
	}
}

func (g *RegressionPerformance) Compute(batch *metric.Batch) (metric.Values, error) {
	y, yhat, err := batch.Supervised()
	if err != nil {
		return nil, err
	}

	var truth, pred []float64
	for i := range y {
		if missing(y[i], yhat[i]) {
			continue
		}
		truth = append(truth, y[i])
		pred = append(pred, yhat[i])
	}
	if len(truth) == 0 {
		return metric.Values{"mse": nil, "mae": nil, "r2": nil}, nil
	}

	diff := make([]float64, len(truth))
	floats.SubTo(diff, pred, truth)
	abs := make([]float64, len(diff))
	sq := make([]float64, len(diff))
	for i, d := range diff {
		abs[i] = math.Abs(d)
		sq[i] = d * d
	}

	var r2 any
	if stat.Variance(truth, nil) > 0 {
		r2 = finite(stat.RSquaredFrom(pred, truth, nil))
	}

	return metric.Values{
		"mse": finite(stat.Mean(sq, nil)),
		"mae": finite(stat.Mean(abs, nil)),
		"r2":  r2,
	}, nil
}

func (g *RegressionPerformance) Update(s dataset.Sample) error {
	g.running.add(s.Y, s.Prediction)
	g.Commit(g.running.values())
	return nil
}

func (g *RegressionPerformance) Reset() {
	g.running = residuals{}
	g.Base.Reset()
}
