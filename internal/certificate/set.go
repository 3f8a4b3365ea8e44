package certificate

import (
	"errors"
	"fmt"

	"github.com/haskel/raimetrics/internal/metric"
)

// Set is an immutable ordered collection of certificates.
type Set struct {
	entries []Descriptor
	index   map[string]int
}

// NewSet validates descs and rejects repeated names.
func NewSet(descs ...Descriptor) (*Set, error) {
	s := &Set{index: make(map[string]int, len(descs))}
	var errs []error
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := s.index[d.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicate, d.Name))
			continue
		}
		s.index[d.Name] = len(s.entries)
		s.entries = append(s.entries, d)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.entries))
	for i, d := range s.entries {
		out[i] = d.Name
	}
	return out
}

func (s *Set) Get(name string) (Descriptor, bool) {
	if s == nil {
		return Descriptor{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return s.entries[i], true
}

// Info returns the schema of every certificate keyed by name.
func (s *Set) Info() map[string]Info {
	out := make(map[string]Info, s.Len())
	if s == nil {
		return out
	}
	for _, d := range s.entries {
		out[d.Name] = d.Info()
	}
	return out
}

// Evaluate runs every certificate against values.
func (s *Set) Evaluate(values map[string]metric.Values) map[string]Value {
	out := make(map[string]Value, s.Len())
	if s == nil {
		return out
	}
	for _, d := range s.entries {
		out[d.Name] = d.Evaluate(values)
	}
	return out
}

// Defaults are the certificates used when none are configured.
func Defaults() []Descriptor {
	return []Descriptor{
		{
			Name:        "minimum_accuracy",
			DisplayName: "Minimum accuracy",
			Explanation: "Accuracy of the model is at least 0.7",
			Tags:        []string{"performance"},
			Level:       1,
			Condition: Condition{Terms: []Term{
				{Metric: "accuracy", Op: GreaterOrEqual, Value: 0.7},
			}},
		},
		{
			Name:        "balanced_f1",
			DisplayName: "Balanced F1",
			Explanation: "Precision and recall are balanced with an F1 score of at least 0.6",
			Tags:        []string{"performance"},
			Level:       2,
			Condition: Condition{Terms: []Term{
				{Metric: "f1", Op: GreaterOrEqual, Value: 0.6},
			}},
		},
		{
			Name:        "demographic_parity",
			DisplayName: "Demographic parity",
			Explanation: "Positive prediction rates of the protected groups differ by at most 0.1",
			Tags:        []string{"fairness"},
			Level:       1,
			Condition: Condition{Terms: []Term{
				{Metric: "demographic_parity", Op: LessOrEqual, Value: 0.1, Abs: true},
			}},
		},
		{
			Name:        "four_fifths_rule",
			DisplayName: "Four-fifths rule",
			Explanation: "Disparate impact lies between 0.8 and 1.25",
			Tags:        []string{"fairness"},
			Level:       2,
			Condition: Condition{Terms: []Term{
				{Metric: "disparate_impact", Op: GreaterOrEqual, Value: 0.8},
				{Metric: "disparate_impact", Op: LessOrEqual, Value: 1.25},
			}},
		},
	}
}

// Default builds the set of Defaults.
func Default() *Set {
	s, err := NewSet(Defaults()...)
	if err != nil {
		panic(err)
	}
	return s
}
