package metric

import "errors"

var (
	ErrDuplicateGroup     = errors.New("metric group already registered")
	ErrInvalidDescriptor  = errors.New("invalid metric group descriptor")
	ErrInvalidConfig      = errors.New("invalid user config")
	ErrMissingPredictions = errors.New("predictions are required")
	ErrMissingLabels      = errors.New("ground truth labels are required")
	ErrShapeMismatch      = errors.New("batch shape mismatch")
	ErrMissingFeature     = errors.New("feature not present in data")
)
