package loss

import (
	"github.com/amikos-tech/pure-paddle/ndarray"
)

// epsilon bounds probabilities away from 0 and 1 on the post-sigmoid path.
// Sigmoid saturates to exactly 0 or 1 in float32 for |logit| over ~17, so
// the clamp must itself be representable in float32; 1e-12 would round away
// against 1 and leave log(0) reachable.
const epsilon = 1e-7

// SigmoidBCELoss computes binary cross-entropy. By default predictions are
// raw logits and the loss uses the overflow-free form
// relu(x) - x*z + log(1 + exp(-|x|)); with fromSigmoid the predictions are
// already probabilities and the textbook form applies.
type SigmoidBCELoss struct {
	base
	weight      float32
	batchAxis   int
	fromSigmoid bool
}

// NewSigmoidBCELoss returns a logit-input BCE loss with weight 1 and
// batch axis 0.
func NewSigmoidBCELoss() *SigmoidBCELoss {
	return NewSigmoidBCELossWithOptions("SigmoidBinaryCrossEntropyLoss", 1, 0, false)
}

// NewSigmoidBCELossWithOptions returns a BCE loss with explicit parameters.
func NewSigmoidBCELossWithOptions(name string, weight float32, batchAxis int, fromSigmoid bool) *SigmoidBCELoss {
	return &SigmoidBCELoss{
		base:        base{name: name},
		weight:      weight,
		batchAxis:   batchAxis,
		fromSigmoid: fromSigmoid,
	}
}

// Forward returns the per-sample binary cross-entropy, shaped (batch).
func (s *SigmoidBCELoss) Forward(labels, predictions *ndarray.NDArray) (*ndarray.NDArray, error) {
	labels, err := reshapeLabels(labels, predictions)
	if err != nil {
		return nil, err
	}

	var out *ndarray.NDArray
	if s.fromSigmoid {
		out, err = s.fromProbabilities(labels, predictions)
	} else {
		out, err = s.fromLogits(labels, predictions)
	}
	if err != nil {
		return nil, err
	}

	if s.weight != 1 {
		out = out.MulScalar(s.weight)
	}
	return meanNonBatch(out, s.batchAxis)
}

func (s *SigmoidBCELoss) fromLogits(labels, predictions *ndarray.NDArray) (*ndarray.NDArray, error) {
	xz, err := predictions.Mul(labels)
	if err != nil {
		return nil, err
	}
	out, err := predictions.ReLU().Sub(xz)
	if err != nil {
		return nil, err
	}
	softTerm := predictions.Abs().Neg().Exp().AddScalar(1).Log()
	return out.Add(softTerm)
}

func (s *SigmoidBCELoss) fromProbabilities(labels, predictions *ndarray.NDArray) (*ndarray.NDArray, error) {
	probabilities := predictions.Clip(epsilon, 1-epsilon)
	posTerm, err := probabilities.Log().Mul(labels)
	if err != nil {
		return nil, err
	}
	negTerm, err := probabilities.Neg().AddScalar(1).Log().Mul(labels.Neg().AddScalar(1))
	if err != nil {
		return nil, err
	}
	out, err := posTerm.Add(negTerm)
	if err != nil {
		return nil, err
	}
	return out.Neg(), nil
}
