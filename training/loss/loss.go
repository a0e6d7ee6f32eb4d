// Package loss implements closed-form training losses over float32 arrays.
//
// Every loss is stateless: construct once, call Forward from any number of
// goroutines. Forward never mutates its inputs.
package loss

import (
	"fmt"

	"github.com/amikos-tech/pure-paddle/ndarray"
)

// Loss computes a training loss from labels and predictions.
type Loss interface {
	// Name returns the display name of the loss, used in training logs.
	Name() string
	// Forward computes the loss. Batched losses return one value per
	// sample along the batch axis, full reductions return a scalar array.
	Forward(labels, predictions *ndarray.NDArray) (*ndarray.NDArray, error)
}

type base struct {
	name string
}

func (b base) Name() string { return b.name }

// reshapeLabels aligns the label array with the prediction shape. Labels
// frequently arrive as (batch) or (batch, 1) against (batch, 1) predictions.
func reshapeLabels(labels, predictions *ndarray.NDArray) (*ndarray.NDArray, error) {
	if labels.Shape().Equal(predictions.Shape()) {
		return labels, nil
	}
	reshaped, err := labels.Reshape(predictions.Shape())
	if err != nil {
		return nil, fmt.Errorf("labels %v do not align with predictions %v: %w",
			labels.Shape(), predictions.Shape(), err)
	}
	return reshaped, nil
}

// meanNonBatch averages over every axis except batchAxis, producing a
// per-sample loss of shape (batch).
func meanNonBatch(a *ndarray.NDArray, batchAxis int) (*ndarray.NDArray, error) {
	rank := len(a.Shape())
	if batchAxis < 0 {
		batchAxis += rank
	}
	if batchAxis < 0 || batchAxis >= rank {
		return nil, fmt.Errorf("batch axis %d out of range for shape %v", batchAxis, a.Shape())
	}

	out := a
	for axis := rank - 1; axis >= 0; axis-- {
		if axis == batchAxis {
			continue
		}
		reduced, err := out.MeanAxis(axis, false)
		if err != nil {
			return nil, err
		}
		out = reduced
	}
	if out == a {
		out = a.Clone()
	}
	return out, nil
}
