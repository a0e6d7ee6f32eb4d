package loss

import (
	"github.com/amikos-tech/pure-paddle/ndarray"
)

// HingeLoss computes hinge loss for binary classification with labels
// in {-1, +1}: relu(margin - label*pred), averaged per sample.
type HingeLoss struct {
	base
	margin    float32
	weight    float32
	batchAxis int
}

// NewHingeLoss returns a hinge loss with margin 1, weight 1 and batch axis 0.
func NewHingeLoss() *HingeLoss {
	return NewHingeLossWithOptions("HingeLoss", 1, 1, 0)
}

// NewHingeLossWithOptions returns a hinge loss with explicit parameters.
func NewHingeLossWithOptions(name string, margin, weight float32, batchAxis int) *HingeLoss {
	return &HingeLoss{
		base:      base{name: name},
		margin:    margin,
		weight:    weight,
		batchAxis: batchAxis,
	}
}

// Forward returns the per-sample hinge loss, shaped (batch).
func (h *HingeLoss) Forward(labels, predictions *ndarray.NDArray) (*ndarray.NDArray, error) {
	labels, err := reshapeLabels(labels, predictions)
	if err != nil {
		return nil, err
	}

	prod, err := labels.Mul(predictions)
	if err != nil {
		return nil, err
	}
	out := prod.Neg().AddScalar(h.margin).ReLU()
	if h.weight != 1 {
		out = out.MulScalar(h.weight)
	}
	return meanNonBatch(out, h.batchAxis)
}
