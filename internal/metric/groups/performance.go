package groups

import (
	"sort"

	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/metric"
)

const BinaryPerformanceName = "binary_performance"

func BinaryPerformanceDescriptor() metric.Descriptor {
	return metric.Descriptor{
		Name:       BinaryPerformanceName,
		TaskType:   metric.TaskBinaryClassification,
		Complexity: metric.ComplexityLinear,
		Category:   CategoryPerformance,
		New: func(s metric.Session) metric.Group {
			return NewBinaryPerformance(positiveLabel(s))
		},
	}
}

type confusion struct {
	tp, fp, tn, fn int
}

func (c *confusion) add(y, yhat, pos float64) {
	if missing(y, yhat) {
		return
	}
	switch {
	case yhat == pos && y == pos:
		c.tp++
	case yhat == pos:
		c.fp++
	case y == pos:
		c.fn++
	default:
		c.tn++
	}
}

func (c confusion) values() metric.Values {
	tp, fp, tn, fn := float64(c.tp), float64(c.fp), float64(c.tn), float64(c.fn)
	precision := ratio(tp, tp+fp)
	recall := ratio(tp, tp+fn)

	var f1 any
	if p, ok := precision.(float64); ok {
		if r, ok := recall.(float64); ok {
			f1 = ratio(2*p*r, p+r)
		}
	}

	return metric.Values{
		"accuracy":  ratio(tp+tn, tp+fp+tn+fn),
		"precision": precision,
		"recall":    recall,
		"f1":        f1,
	}
}

// BinaryPerformance scores predictions of a binary classifier.
type BinaryPerformance struct {
	metric.Base
	positive float64
	counts   confusion
}

func NewBinaryPerformance(positive float64) *BinaryPerformance {
	return &BinaryPerformance{
		Base: metric.NewBase(BinaryPerformanceName, CategoryPerformance, metric.ComplexityLinear,
			metric.Declare("accuracy", "Fraction of predictions that match the ground truth").WithRange(metric.Bounded(0, 1)),
			metric.Declare("precision", "Fraction of positive predictions that are correct").WithRange(metric.Bounded(0, 1)),
			metric.Declare("recall", "Fraction of positive samples predicted positive").WithRange(metric.Bounded(0, 1)),
			metric.Declare("f1", "Harmonic mean of precision and recall").WithRange(metric.Bounded(0, 1)),
		),
		positive: positive,
	}
}

func (g *BinaryPerformance) Compute(batch *metric.Batch) (metric.Values, error) {
	y, yhat, err := batch.Supervised()
	if err != nil {
		return nil, err
	}
	var c confusion
	for i := range y {
		c.add(y[i], yhat[i], g.positive)
	}
	return c.values(), nil
}

func (g *BinaryPerformance) Update(s dataset.Sample) error {
	g.counts.add(s.Y, s.Prediction, g.positive)
	g.Commit(g.counts.values())
	return nil
}

func (g *BinaryPerformance) Reset() {
	g.counts = confusion{}
	g.Base.Reset()
}

const MulticlassPerformanceName = "multiclass_performance"

func MulticlassPerformanceDescriptor() metric.Descriptor {
	return metric.Descriptor{
		Name:       MulticlassPerformanceName,
		TaskType:   metric.TaskMulticlassClassification,
		Complexity: metric.ComplexityLinear,
		Category:   CategoryPerformance,
		New: func(metric.Session) metric.Group {
			return NewMulticlassPerformance()
		},
	}
}

// classCounts is a sparse confusion matrix keyed by (truth, prediction).
type classCounts map[[2]float64]int

func (c classCounts) add(y, yhat float64) {
	if missing(y, yhat) {
		return
	}
	c[[2]float64{y, yhat}]++
}

func (c classCounts) values() metric.Values {
	actual := make(map[float64]int)
	predicted := make(map[float64]int)
	correct := make(map[float64]int)
	var total, hits int
	for k, n := range c {
		actual[k[0]] += n
		predicted[k[1]] += n
		if k[0] == k[1] {
			correct[k[0]] += n
			hits += n
		}
		total += n
	}

	classes := make([]float64, 0, len(actual)+len(predicted))
	seen := make(map[float64]bool)
	for _, m := range []map[float64]int{actual, predicted} {
		for cls := range m {
			if !seen[cls] {
				seen[cls] = true
				classes = append(classes, cls)
			}
		}
	}
	sort.Float64s(classes)

	var precSum, recSum float64
	var precN, recN int
	for _, cls := range classes {
		if predicted[cls] > 0 {
			precSum += float64(correct[cls]) / float64(predicted[cls])
			precN++
		}
		if actual[cls] > 0 {
			recSum += float64(correct[cls]) / float64(actual[cls])
			recN++
		}
	}

	return metric.Values{
		"accuracy":        ratio(float64(hits), float64(total)),
		"macro_precision": ratio(precSum, float64(precN)),
		"macro_recall":    ratio(recSum, float64(recN)),
		"classes":         len(classes),
	}
}

// MulticlassPerformance scores predictions of a multiclass classifier.
type MulticlassPerformance struct {
	metric.Base
	counts classCounts
}

func NewMulticlassPerformance() *MulticlassPerformance {
	return &MulticlassPerformance{
		Base: metric.NewBase(MulticlassPerformanceName, CategoryPerformance, metric.ComplexityLinear,
			metric.Declare("accuracy", "Fraction of predictions that match the ground truth").WithRange(metric.Bounded(0, 1)),
			metric.Declare("macro_precision", "Unweighted mean of per-class precision").WithRange(metric.Bounded(0, 1)),
			metric.Declare("macro_recall", "Unweighted mean of per-class recall").WithRange(metric.Bounded(0, 1)),
			metric.Declare("classes", "Number of distinct classes observed").WithRange(metric.AtLeast(0)).WithBaseline(0),
		),
		counts: make(classCounts),
	}
}

func (g *MulticlassPerformance) Compute(batch *metric.Batch) (metric.Values, error) {
	y, yhat, err := batch.Supervised()
	if err != nil {
		return nil, err
	}
	c := make(classCounts)
	for i := range y {
		c.add(y[i], yhat[i])
	}
	return c.values(), nil
}

func (g *MulticlassPerformance) Update(s dataset.Sample) error {
	g.counts.add(s.Y, s.Prediction)
	g.Commit(g.counts.values())
	return nil
}

func (g *MulticlassPerformance) Reset() {
	g.counts = make(classCounts)
	g.Base.Reset()
}
