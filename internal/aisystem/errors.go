package aisystem

import (
	"errors"
	"fmt"

	"github.com/haskel/raimetrics/internal/certificate"
	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/metric"
)

var (
	ErrNotInitialized  = errors.New("system not initialized")
	ErrUnknownGroup    = errors.New("unknown metric group")
	ErrUnknownMetric   = errors.New("unknown metric")
	ErrMetricCollision = errors.New("metric name used by more than one group")
	ErrInvalidPattern  = errors.New("invalid metric group pattern")

	ErrUnknownSplit  = dataset.ErrUnknownSplit
	ErrInvalidConfig = metric.ErrInvalidConfig

	ErrUnknownCertificate = certificate.ErrUnknown
)

// GroupError reports a metric group failing inside Compute or Update.
type GroupError struct {
	Group string
	Op    string
	// Sample is the index of the failing sample for updates, -1 otherwise.
	Sample int
	Err    error
}

func (e *GroupError) Error() string {
	if e.Sample >= 0 {
		return fmt.Sprintf("metric group %s: %s sample %d: %v", e.Group, e.Op, e.Sample, e.Err)
	}
	return fmt.Sprintf("metric group %s: %s: %v", e.Group, e.Op, e.Err)
}

func (e *GroupError) Unwrap() error {
	return e.Err
}
