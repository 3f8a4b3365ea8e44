package metric

import (
	"fmt"
	"strings"
)

// TaskType restricts the tasks a metric group applies to.
type TaskType string

const (
	TaskAny                      TaskType = ""
	TaskBinaryClassification     TaskType = "binary_classification"
	TaskMulticlassClassification TaskType = "multiclass_classification"
	TaskRegression               TaskType = "regression"
)

func (t TaskType) IsValid() bool {
	switch t {
	case TaskAny, TaskBinaryClassification, TaskMulticlassClassification, TaskRegression:
		return true
	}
	return false
}

// Accepts reports whether a group restricted to t may run for task.
// TaskAny accepts every task.
func (t TaskType) Accepts(task TaskType) bool {
	return t == TaskAny || t == task
}

func (t TaskType) String() string {
	if t == TaskAny {
		return "any"
	}
	return string(t)
}

func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(strings.ToLower(strings.TrimSpace(s)))
	if t == "any" {
		return TaskAny, nil
	}
	if !t.IsValid() {
		return "", fmt.Errorf("unknown task type %q", s)
	}
	return t, nil
}

// Complexity is the time-complexity class a group declares. The zero value
// means unset and imposes no ceiling.
type Complexity int

const (
	ComplexityUnset Complexity = iota
	ComplexityConstant
	ComplexityLinear
	ComplexityPolynomial
	ComplexityExponential
)

var complexityNames = map[Complexity]string{
	ComplexityConstant:    "constant",
	ComplexityLinear:      "linear",
	ComplexityPolynomial:  "polynomial",
	ComplexityExponential: "exponential",
}

func (c Complexity) String() string {
	return complexityNames[c]
}

// Within reports whether c does not exceed ceiling.
func (c Complexity) Within(ceiling Complexity) bool {
	return ceiling == ComplexityUnset || c <= ceiling
}

func ParseComplexity(s string) (Complexity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ComplexityUnset, nil
	}
	for c, name := range complexityNames {
		if name == s {
			return c, nil
		}
	}
	return ComplexityUnset, fmt.Errorf("unknown complexity %q", s)
}
