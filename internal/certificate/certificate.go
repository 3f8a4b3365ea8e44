// Package certificate evaluates threshold certificates over metric values.
//
// A certificate passes when its condition holds for the current values. It
// is undefined, rather than failed, while a referenced metric has no value.
package certificate

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/haskel/raimetrics/internal/metric"
)

var (
	ErrDuplicate = errors.New("certificate already defined")
	ErrInvalid   = errors.New("invalid certificate")
	ErrUnknown   = errors.New("unknown certificate")
)

var validate = validator.New()

// Comparator names a comparison in config files.
type Comparator string

const (
	GreaterThan    Comparator = "gt"
	GreaterOrEqual Comparator = "gte"
	LessThan       Comparator = "lt"
	LessOrEqual    Comparator = "lte"
	Equal          Comparator = "eq"
	NotEqual       Comparator = "ne"
)

var symbols = map[Comparator]string{
	GreaterThan:    ">",
	GreaterOrEqual: ">=",
	LessThan:       "<",
	LessOrEqual:    "<=",
	Equal:          "==",
	NotEqual:       "!=",
}

func (c Comparator) holds(x, y float64) bool {
	switch c {
	case GreaterThan:
		return x > y
	case GreaterOrEqual:
		return x >= y
	case LessThan:
		return x < y
	case LessOrEqual:
		return x <= y
	case Equal:
		return x == y
	case NotEqual:
		return x != y
	}
	return false
}

// Term compares one metric with a constant. Metric is either a metric name,
// unique across groups, or "group.metric".
type Term struct {
	Metric string     `yaml:"metric" json:"metric" validate:"required"`
	Op     Comparator `yaml:"op" json:"op" validate:"required,oneof=gt gte lt lte eq ne"`
	Value  float64    `yaml:"value" json:"value"`
	// Abs compares the absolute value of the metric.
	Abs bool `yaml:"abs" json:"abs,omitempty"`
}

func (t Term) String() string {
	name := t.Metric
	if t.Abs {
		name = "|" + name + "|"
	}
	return name + " " + symbols[t.Op] + " " + strconv.FormatFloat(t.Value, 'g', -1, 64)
}

// Condition joins its terms with "and" (the default) or "or".
type Condition struct {
	Op    string `yaml:"op" json:"op,omitempty" validate:"omitempty,oneof=and or"`
	Terms []Term `yaml:"terms" json:"terms" validate:"required,min=1,dive"`
}

func (c Condition) any() bool {
	return c.Op == "or"
}

func (c Condition) String() string {
	parts := make([]string, len(c.Terms))
	for i, t := range c.Terms {
		parts[i] = t.String()
	}
	sep := " and "
	if c.any() {
		sep = " or "
	}
	return strings.Join(parts, sep)
}

// Descriptor defines one certificate.
type Descriptor struct {
	Name        string    `yaml:"name" json:"name" validate:"required"`
	DisplayName string    `yaml:"display_name" json:"display_name,omitempty"`
	Explanation string    `yaml:"explanation" json:"explanation,omitempty"`
	Tags        []string  `yaml:"tags" json:"tags,omitempty"`
	Level       int       `yaml:"level" json:"level" validate:"gte=0"`
	Condition   Condition `yaml:"condition" json:"condition"`
}

func (d Descriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		name := d.Name
		if name == "" {
			name = "<unnamed>"
		}
		return fmt.Errorf("%w: %s: %w", ErrInvalid, name, err)
	}
	return nil
}

// Info is the exported schema of a certificate.
type Info struct {
	DisplayName string   `json:"display_name"`
	Explanation string   `json:"explanation"`
	Tags        []string `json:"tags,omitempty"`
	Level       int      `json:"level"`
	Condition   string   `json:"condition"`
}

func (d Descriptor) Info() Info {
	display := d.DisplayName
	if display == "" {
		display = d.Name
	}
	return Info{
		DisplayName: display,
		Explanation: d.Explanation,
		Tags:        append([]string(nil), d.Tags...),
		Level:       d.Level,
		Condition:   d.Condition.String(),
	}
}

// Value is the outcome of one certificate. A nil Value means undefined.
type Value struct {
	Value       *bool  `json:"value"`
	Explanation string `json:"explanation"`
}

// Passed reports a defined, passing outcome.
func (v Value) Passed() bool {
	return v.Value != nil && *v.Value
}

// Evaluate checks the condition against values keyed by group then metric.
func (d Descriptor) Evaluate(values map[string]metric.Values) Value {
	var parts []string
	undefined := false
	matched := false

	for _, t := range d.Condition.Terms {
		x, ok := lookup(values, t.Metric)
		if !ok {
			undefined = true
			parts = append(parts, t.Metric+" is not available")
			continue
		}
		shown := x
		if t.Abs {
			x = math.Abs(x)
		}
		holds := t.Op.holds(x, t.Value)
		parts = append(parts, fmt.Sprintf("%s = %s, want %s", t.Metric, strconv.FormatFloat(shown, 'g', 6, 64), t.String()))

		if d.Condition.any() && holds {
			matched = true
		}
		if !d.Condition.any() && !holds {
			return outcome(false, parts)
		}
	}

	switch {
	case matched:
		return outcome(true, parts)
	case undefined:
		return Value{Explanation: strings.Join(parts, "; ")}
	}
	return outcome(!d.Condition.any(), parts)
}

func outcome(passed bool, parts []string) Value {
	return Value{Value: &passed, Explanation: strings.Join(parts, "; ")}
}

// lookup resolves "group.metric" or a bare metric name to a finite number.
func lookup(values map[string]metric.Values, ref string) (float64, bool) {
	if group, name, ok := strings.Cut(ref, "."); ok {
		if gv, ok := values[group]; ok {
			if v, ok := gv[name]; ok {
				return number(v)
			}
		}
	}
	for _, gv := range values {
		if v, ok := gv[ref]; ok {
			return number(v)
		}
	}
	return 0, false
}

func number(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
