package loss

import (
	"github.com/amikos-tech/pure-paddle/ndarray"
)

// L1Loss computes weight * mean(|label - pred|) over all elements.
type L1Loss struct {
	base
	weight float32
}

// NewL1Loss returns an L1 loss with weight 1.
func NewL1Loss() *L1Loss {
	return NewL1LossWithOptions("L1Loss", 1)
}

// NewL1LossWithOptions returns an L1 loss with an explicit name and weight.
func NewL1LossWithOptions(name string, weight float32) *L1Loss {
	return &L1Loss{base: base{name: name}, weight: weight}
}

// Forward returns the mean absolute error as a scalar array.
func (l *L1Loss) Forward(labels, predictions *ndarray.NDArray) (*ndarray.NDArray, error) {
	labels, err := reshapeLabels(labels, predictions)
	if err != nil {
		return nil, err
	}
	diff, err := labels.Sub(predictions)
	if err != nil {
		return nil, err
	}
	return ndarray.Scalar(diff.Abs().Mean() * l.weight), nil
}

// L2Loss computes weight/2 * mean((label - pred)^2) over all elements.
// The 1/2 factor cancels against the derivative of the square term.
type L2Loss struct {
	base
	weight float32
}

// NewL2Loss returns an L2 loss with weight 1.
func NewL2Loss() *L2Loss {
	return NewL2LossWithOptions("L2Loss", 1)
}

// NewL2LossWithOptions returns an L2 loss with an explicit name and weight.
func NewL2LossWithOptions(name string, weight float32) *L2Loss {
	return &L2Loss{base: base{name: name}, weight: weight}
}

// Forward returns the scaled mean squared error as a scalar array.
func (l *L2Loss) Forward(labels, predictions *ndarray.NDArray) (*ndarray.NDArray, error) {
	labels, err := reshapeLabels(labels, predictions)
	if err != nil {
		return nil, err
	}
	diff, err := labels.Sub(predictions)
	if err != nil {
		return nil, err
	}
	return ndarray.Scalar(diff.Square().Mean() * l.weight / 2), nil
}
