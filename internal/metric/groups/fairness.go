package groups

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/metric"
)

const GroupFairnessName = "group_fairness"

func GroupFairnessDescriptor() metric.Descriptor {
	return metric.Descriptor{
		Name:       GroupFairnessName,
		TaskType:   metric.TaskBinaryClassification,
		Complexity: metric.ComplexityLinear,
		Category:   CategoryFairness,
		Compatible: requiresProtectedFeature,
		New: func(s metric.Session) metric.Group {
			return NewGroupFairness(s.Config().Fairness)
		},
	}
}

// GroupFairness compares outcomes of the privileged and unprivileged groups
// of the first protected attribute. Rows where the attribute is missing or
// belongs to neither group are excluded.
type GroupFairness struct {
	metric.Base
	attribute string
	positive  float64
	groups    metric.PrivGroup
}

func NewGroupFairness(cfg *metric.FairnessConfig) *GroupFairness {
	attr := cfg.ProtectedAttributes[0]
	return &GroupFairness{
		Base: metric.NewBase(GroupFairnessName, CategoryFairness, metric.ComplexityLinear,
			metric.Declare("demographic_parity", "Positive prediction rate of the unprivileged group minus that of the privileged group").WithRange(metric.Bounded(-1, 1)),
			metric.Declare("disparate_impact", "Positive prediction rate of the unprivileged group divided by that of the privileged group").WithRange(metric.AtLeast(0)),
			metric.Declare("equal_opportunity_difference", "True positive rate of the unprivileged group minus that of the privileged group").WithRange(metric.Bounded(-1, 1)),
		),
		attribute: attr,
		positive:  *cfg.PositiveLabel,
		groups:    cfg.PrivGroupFor(attr),
	}
}

type outcomeRates struct {
	n, positive     float64
	actual, truePos float64
}

func (r outcomeRates) selection() any {
	return ratio(r.positive, r.n)
}

func (r outcomeRates) tpr() any {
	return ratio(r.truePos, r.actual)
}

func (g *GroupFairness) Compute(batch *metric.Batch) (metric.Values, error) {
	yhat, err := batch.Preds()
	if err != nil {
		return nil, err
	}
	col, ok := batch.Data.Column(g.attribute)
	if !ok {
		return nil, fmt.Errorf("%w: %s", metric.ErrMissingFeature, g.attribute)
	}
	y := batch.Data.Y

	var priv, unpriv outcomeRates
	for i, v := range col {
		if math.IsNaN(v) || math.IsNaN(yhat[i]) {
			continue
		}
		var r *outcomeRates
		switch v {
		case g.groups.Privileged:
			r = &priv
		case g.groups.Unprivileged:
			r = &unpriv
		default:
			continue
		}
		r.n++
		predPos := yhat[i] == g.positive
		if predPos {
			r.positive++
		}
		if len(y) > 0 && y[i] == g.positive {
			r.actual++
			if predPos {
				r.truePos++
			}
		}
	}

	return metric.Values{
		"demographic_parity":           difference(unpriv.selection(), priv.selection()),
		"disparate_impact":             quotient(unpriv.selection(), priv.selection()),
		"equal_opportunity_difference": difference(unpriv.tpr(), priv.tpr()),
	}, nil
}

func difference(a, b any) any {
	x, ok1 := a.(float64)
	y, ok2 := b.(float64)
	if !ok1 || !ok2 {
		return nil
	}
	return finite(x - y)
}

func quotient(a, b any) any {
	x, ok1 := a.(float64)
	y, ok2 := b.(float64)
	if !ok1 || !ok2 {
		return nil
	}
	return ratio(x, y)
}

const IndividualFairnessName = "individual_fairness"

func IndividualFairnessDescriptor() metric.Descriptor {
	return metric.Descriptor{
		Name:       IndividualFairnessName,
		TaskType:   metric.TaskBinaryClassification,
		Complexity: metric.ComplexityPolynomial,
		Category:   CategoryFairness,
		Compatible: requiresFairness,
		New: func(s metric.Session) metric.Group {
			return NewIndividualFairness(*s.Config().Fairness.PositiveLabel)
		},
	}
}

// IndividualFairness measures inequality of per-sample benefits
// b = yhat - y + 1 with outcomes binarised against the positive label.
type IndividualFairness struct {
	metric.Base
	positive float64
	benefits []float64
}

func NewIndividualFairness(positive float64) *IndividualFairness {
	return &IndividualFairness{
		Base: metric.NewBase(IndividualFairnessName, CategoryFairness, metric.ComplexityPolynomial,
			metric.Declare("generalized_entropy_index", "Generalized entropy of benefits with alpha = 2").WithRange(metric.AtLeast(0)),
			metric.Declare("theil_index", "Generalized entropy of benefits with alpha = 1").WithRange(metric.AtLeast(0)),
			metric.Declare("coefficient_of_variation", "Twice the square root of the generalized entropy index").WithRange(metric.AtLeast(0)),
		),
		positive: positive,
	}
}

func (g *IndividualFairness) benefit(y, yhat float64) float64 {
	return g.binary(yhat) - g.binary(y) + 1
}

func (g *IndividualFairness) binary(v float64) float64 {
	if v == g.positive {
		return 1
	}
	return 0
}

func (g *IndividualFairness) Compute(batch *metric.Batch) (metric.Values, error) {
	y, yhat, err := batch.Supervised()
	if err != nil {
		return nil, err
	}
	b := make([]float64, 0, len(y))
	for i := range y {
		if missing(y[i], yhat[i]) {
			continue
		}
		b = append(b, g.benefit(y[i], yhat[i]))
	}
	return inequality(b), nil
}

func (g *IndividualFairness) Update(s dataset.Sample) error {
	if missing(s.Y, s.Prediction) {
		return nil
	}
	g.benefits = append(g.benefits, g.benefit(s.Y, s.Prediction))
	g.Commit(inequality(g.benefits))
	return nil
}

func (g *IndividualFairness) Reset() {
	g.benefits = nil
	g.Base.Reset()
}

func inequality(b []float64) metric.Values {
	empty := metric.Values{"generalized_entropy_index": nil, "theil_index": nil, "coefficient_of_variation": nil}
	if len(b) == 0 {
		return empty
	}
	mu := stat.Mean(b, nil)
	if mu == 0 {
		return empty
	}

	gei := entropyIndex(b, mu, 2)
	return metric.Values{
		"generalized_entropy_index": finite(gei),
		"theil_index":               finite(entropyIndex(b, mu, 1)),
		"coefficient_of_variation":  finite(2 * math.Sqrt(gei)),
	}
}

// entropyIndex is the generalized entropy index GE(alpha) of b around mean mu.
func entropyIndex(b []float64, mu, alpha float64) float64 {
	terms := make([]float64, len(b))
	for i, v := range b {
		r := v / mu
		switch alpha {
		case 1:
			if r > 0 {
				terms[i] = r * math.Log(r)
			}
		case 0:
			terms[i] = -math.Log(r)
		default:
			terms[i] = math.Pow(r, alpha) - 1
		}
	}
	m := stat.Mean(terms, nil)
	if alpha == 0 || alpha == 1 {
		return m
	}
	return m / (alpha * (alpha - 1))
}
