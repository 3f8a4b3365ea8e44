package metric

import (
	"fmt"

	"github.com/haskel/raimetrics/internal/dataset"
)

// Batch is the container handed to Group.Compute: the full data of one split
// plus optional model outputs.
type Batch struct {
	Split         dataset.Split
	Data          *dataset.Data
	Predictions   []float64
	Probabilities [][]float64
}

func (b *Batch) Rows() int {
	return b.Data.Len()
}

// Preds returns the predictions, checking they cover every row.
func (b *Batch) Preds() ([]float64, error) {
	if b.Predictions == nil {
		return nil, ErrMissingPredictions
	}
	if len(b.Predictions) != b.Rows() {
		return nil, fmt.Errorf("%w: %d predictions for %d rows", ErrShapeMismatch, len(b.Predictions), b.Rows())
	}
	return b.Predictions, nil
}

func (b *Batch) Labels() ([]float64, error) {
	if !b.Data.HasLabels() {
		return nil, ErrMissingLabels
	}
	return b.Data.Y, nil
}

// Supervised returns labels and predictions of equal length.
func (b *Batch) Supervised() (y, yhat []float64, err error) {
	if y, err = b.Labels(); err != nil {
		return nil, nil, err
	}
	if yhat, err = b.Preds(); err != nil {
		return nil, nil, err
	}
	return y, yhat, nil
}
