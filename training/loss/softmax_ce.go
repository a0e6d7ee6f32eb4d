package loss

import (
	"fmt"

	"github.com/amikos-tech/pure-paddle/ndarray"
)

// SoftmaxCrossEntropyLoss computes cross-entropy from raw logits via
// log-softmax along the class axis. Labels are sparse class indices by
// default; with sparse disabled they are dense one-hot distributions.
type SoftmaxCrossEntropyLoss struct {
	base
	weight    float32
	classAxis int
	sparse    bool
}

// NewSoftmaxCrossEntropyLoss returns a sparse-label cross-entropy loss with
// weight 1 and the last axis as the class axis.
func NewSoftmaxCrossEntropyLoss() *SoftmaxCrossEntropyLoss {
	return NewSoftmaxCrossEntropyLossWithOptions("SoftmaxCrossEntropyLoss", 1, -1, true)
}

// NewSoftmaxCrossEntropyLossWithOptions returns a cross-entropy loss with
// explicit parameters.
func NewSoftmaxCrossEntropyLossWithOptions(name string, weight float32, classAxis int, sparse bool) *SoftmaxCrossEntropyLoss {
	return &SoftmaxCrossEntropyLoss{
		base:      base{name: name},
		weight:    weight,
		classAxis: classAxis,
		sparse:    sparse,
	}
}

// Forward returns the mean cross-entropy as a scalar array.
func (s *SoftmaxCrossEntropyLoss) Forward(labels, predictions *ndarray.NDArray) (*ndarray.NDArray, error) {
	logProbs, err := predictions.LogSoftmax(s.classAxis)
	if err != nil {
		return nil, err
	}

	var picked *ndarray.NDArray
	if s.sparse {
		rank := len(predictions.Shape())
		if axis := normalize(s.classAxis, rank); axis != rank-1 {
			return nil, fmt.Errorf("sparse labels require the class axis to be last, got axis %d for shape %v",
				s.classAxis, predictions.Shape())
		}
		picked, err = logProbs.Pick(labels)
		if err != nil {
			return nil, err
		}
	} else {
		weighted, mulErr := logProbs.Mul(labels)
		if mulErr != nil {
			return nil, mulErr
		}
		picked, err = weighted.SumAxis(s.classAxis, true)
		if err != nil {
			return nil, err
		}
	}

	return ndarray.Scalar(-picked.Mean() * s.weight), nil
}

func normalize(axis, rank int) int {
	if axis < 0 {
		return axis + rank
	}
	return axis
}
