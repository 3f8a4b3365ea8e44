package certificate

import (
	"errors"
	"strings"
	"testing"

	"github.com/haskel/raimetrics/internal/metric"
)

func values() map[string]metric.Values {
	return map[string]metric.Values{
		"binary_performance": {"accuracy": 0.75, "f1": 0.5, "recall": nil},
		"group_fairness":     {"demographic_parity": -0.5, "disparate_impact": 0.9},
	}
}

func state(v Value) string {
	if v.Value == nil {
		return "undefined"
	}
	if *v.Value {
		return "passed"
	}
	return "failed"
}

func TestDescriptor_Evaluate(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		want string
	}{
		{"passes", Condition{Terms: []Term{{Metric: "accuracy", Op: GreaterOrEqual, Value: 0.7}}}, "passed"},
		{"fails", Condition{Terms: []Term{{Metric: "f1", Op: GreaterOrEqual, Value: 0.6}}}, "failed"},
		{"qualified name", Condition{Terms: []Term{{Metric: "binary_performance.accuracy", Op: Equal, Value: 0.75}}}, "passed"},
		{"absolute value", Condition{Terms: []Term{{Metric: "demographic_parity", Op: LessOrEqual, Value: 0.1, Abs: true}}}, "failed"},
		{"nil value is undefined", Condition{Terms: []Term{{Metric: "recall", Op: GreaterThan, Value: 0}}}, "undefined"},
		{"missing metric is undefined", Condition{Terms: []Term{{Metric: "mse", Op: LessThan, Value: 1}}}, "undefined"},
		{"and fails despite undefined term", Condition{Terms: []Term{
			{Metric: "mse", Op: LessThan, Value: 1},
			{Metric: "f1", Op: GreaterThan, Value: 0.9},
		}}, "failed"},
		{"and with undefined term", Condition{Terms: []Term{
			{Metric: "accuracy", Op: GreaterThan, Value: 0.5},
			{Metric: "mse", Op: LessThan, Value: 1},
		}}, "undefined"},
		{"range", Condition{Terms: []Term{
			{Metric: "disparate_impact", Op: GreaterOrEqual, Value: 0.8},
			{Metric: "disparate_impact", Op: LessOrEqual, Value: 1.25},
		}}, "passed"},
		{"or passes on one term", Condition{Op: "or", Terms: []Term{
			{Metric: "f1", Op: GreaterThan, Value: 0.9},
			{Metric: "accuracy", Op: GreaterThan, Value: 0.7},
		}}, "passed"},
		{"or passes despite undefined term", Condition{Op: "or", Terms: []Term{
			{Metric: "mse", Op: LessThan, Value: 1},
			{Metric: "accuracy", Op: NotEqual, Value: 0},
		}}, "passed"},
		{"or fails", Condition{Op: "or", Terms: []Term{
			{Metric: "f1", Op: GreaterThan, Value: 0.9},
			{Metric: "accuracy", Op: LessThan, Value: 0.5},
		}}, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Descriptor{Name: "c", Condition: tt.cond}
			got := d.Evaluate(values())
			if state(got) != tt.want {
				t.Errorf("expected %s, got %s (%s)", tt.want, state(got), got.Explanation)
			}
			if got.Explanation == "" {
				t.Error("expected explanation")
			}
		})
	}
}

func TestDescriptor_Validate(t *testing.T) {
	valid := Descriptor{Name: "c", Condition: Condition{Terms: []Term{{Metric: "accuracy", Op: GreaterThan, Value: 0.5}}}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid certificate: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Descriptor)
	}{
		{"empty name", func(d *Descriptor) { d.Name = "" }},
		{"no terms", func(d *Descriptor) { d.Condition.Terms = nil }},
		{"unknown comparator", func(d *Descriptor) { d.Condition.Terms = []Term{{Metric: "accuracy", Op: ">"}} }},
		{"unknown join", func(d *Descriptor) { d.Condition.Op = "xor" }},
		{"empty metric", func(d *Descriptor) { d.Condition.Terms = []Term{{Op: GreaterThan}} }},
		{"negative level", func(d *Descriptor) { d.Level = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			d.Condition.Terms = append([]Term(nil), valid.Condition.Terms...)
			tt.modify(&d)
			if err := d.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestDescriptor_Info(t *testing.T) {
	d := Defaults()[2]
	info := d.Info()
	if info.DisplayName != "Demographic parity" || info.Level != 1 {
		t.Errorf("unexpected info %+v", info)
	}
	if info.Condition != "|demographic_parity| <= 0.1" {
		t.Errorf("unexpected condition %q", info.Condition)
	}

	bare := Descriptor{Name: "bare", Condition: Condition{Op: "or", Terms: []Term{
		{Metric: "a", Op: GreaterThan, Value: 1},
		{Metric: "b", Op: NotEqual, Value: 0},
	}}}
	if got := bare.Info(); got.DisplayName != "bare" || got.Condition != "a > 1 or b != 0" {
		t.Errorf("unexpected info %+v", got)
	}
}

func TestNewSet(t *testing.T) {
	s, err := NewSet(Defaults()...)
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}
	if s.Len() != 4 || s.Names()[0] != "minimum_accuracy" {
		t.Errorf("unexpected set %v", s.Names())
	}
	if _, ok := s.Get("balanced_f1"); !ok {
		t.Error("expected balanced_f1")
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("expected missing certificate to be absent")
	}

	dup := Defaults()[0]
	_, err = NewSet(dup, dup, Descriptor{})
	if !errors.Is(err, ErrDuplicate) || !errors.Is(err, ErrInvalid) {
		t.Errorf("expected duplicate and invalid errors joined, got %v", err)
	}
}

func TestSet_Evaluate(t *testing.T) {
	got := Default().Evaluate(values())

	want := map[string]string{
		"minimum_accuracy":   "passed",
		"balanced_f1":        "failed",
		"demographic_parity": "failed",
		"four_fifths_rule":   "passed",
	}
	for name, w := range want {
		if state(got[name]) != w {
			t.Errorf("%s: expected %s, got %s", name, w, state(got[name]))
		}
	}
	if !got["minimum_accuracy"].Passed() || got["balanced_f1"].Passed() {
		t.Error("unexpected Passed results")
	}
	if !strings.Contains(got["balanced_f1"].Explanation, "f1 = 0.5") {
		t.Errorf("unexpected explanation %q", got["balanced_f1"].Explanation)
	}
}

func TestSet_Nil(t *testing.T) {
	var s *Set
	if s.Len() != 0 || len(s.Info()) != 0 || len(s.Evaluate(values())) != 0 {
		t.Error("expected nil set to be empty")
	}
}
