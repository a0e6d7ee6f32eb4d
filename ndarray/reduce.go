package ndarray

import (
	"fmt"
	"math"
)

// Sum returns the sum of all elements.
func (a *NDArray) Sum() float32 {
	// Accumulate in float64 to keep long reductions stable.
	var total float64
	for _, x := range a.data {
		total += float64(x)
	}
	return float32(total)
}

// Mean returns the arithmetic mean of all elements.
func (a *NDArray) Mean() float32 {
	if len(a.data) == 0 {
		return 0
	}
	var total float64
	for _, x := range a.data {
		total += float64(x)
	}
	return float32(total / float64(len(a.data)))
}

// SumAxis sums along the given axis. With keepDims the reduced axis stays
// in the result shape with size 1, otherwise it is removed.
func (a *NDArray) SumAxis(axis int, keepDims bool) (*NDArray, error) {
	return a.reduceAxis(axis, keepDims, false)
}

// MeanAxis averages along the given axis. With keepDims the reduced axis
// stays in the result shape with size 1, otherwise it is removed.
func (a *NDArray) MeanAxis(axis int, keepDims bool) (*NDArray, error) {
	return a.reduceAxis(axis, keepDims, true)
}

func (a *NDArray) reduceAxis(axis int, keepDims, mean bool) (*NDArray, error) {
	axis, err := a.normalizeAxis(axis)
	if err != nil {
		return nil, err
	}

	outer, axisDim, inner := a.axisSpans(axis)

	outShape := make(Shape, 0, len(a.shape))
	for d, dim := range a.shape {
		if d == axis {
			if keepDims {
				outShape = append(outShape, 1)
			}
			continue
		}
		outShape = append(outShape, dim)
	}

	out := &NDArray{
		shape: outShape,
		data:  make([]float32, outer*inner),
	}
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			var total float64
			for k := 0; k < axisDim; k++ {
				total += float64(a.data[(o*axisDim+k)*inner+in])
			}
			if mean {
				total /= float64(axisDim)
			}
			out.data[o*inner+in] = float32(total)
		}
	}
	return out, nil
}

// LogSoftmax computes log(softmax(a)) along the given axis using the
// max-subtraction form, so large logits do not overflow exp.
func (a *NDArray) LogSoftmax(axis int) (*NDArray, error) {
	axis, err := a.normalizeAxis(axis)
	if err != nil {
		return nil, err
	}

	outer, axisDim, inner := a.axisSpans(axis)
	out := &NDArray{
		shape: a.shape.Clone(),
		data:  make([]float32, len(a.data)),
	}
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			maxVal := math.Inf(-1)
			for k := 0; k < axisDim; k++ {
				if v := float64(a.data[(o*axisDim+k)*inner+in]); v > maxVal {
					maxVal = v
				}
			}
			var sumExp float64
			for k := 0; k < axisDim; k++ {
				sumExp += math.Exp(float64(a.data[(o*axisDim+k)*inner+in]) - maxVal)
			}
			logSum := maxVal + math.Log(sumExp)
			for k := 0; k < axisDim; k++ {
				pos := (o*axisDim + k) * inner
				out.data[pos+in] = float32(float64(a.data[pos+in]) - logSum)
			}
		}
	}
	return out, nil
}

// Pick gathers one element per row along the last axis. indices holds the
// class index for each leading position, shaped like a with the last axis
// removed or collapsed to 1. The result keeps the last axis with size 1.
func (a *NDArray) Pick(indices *NDArray) (*NDArray, error) {
	if len(a.shape) == 0 {
		return nil, fmt.Errorf("cannot pick from a scalar array")
	}

	last := len(a.shape) - 1
	classes := a.shape[last]
	rows := a.NumElements() / classes

	if indices.NumElements() != rows {
		return nil, fmt.Errorf("index array with %d elements does not match %d rows of shape %v",
			indices.NumElements(), rows, a.shape)
	}

	outShape := a.shape.Clone()
	outShape[last] = 1

	out := &NDArray{
		shape: outShape,
		data:  make([]float32, rows),
	}
	for r := 0; r < rows; r++ {
		idx := int(indices.data[r])
		if float32(idx) != indices.data[r] || idx < 0 || idx >= classes {
			return nil, fmt.Errorf("index %v out of range for axis of size %d", indices.data[r], classes)
		}
		out.data[r] = a.data[r*classes+idx]
	}
	return out, nil
}

// axisSpans splits the flat layout around axis into (outer, axisDim, inner)
// extents, assuming axis is already normalized.
func (a *NDArray) axisSpans(axis int) (outer, axisDim, inner int) {
	outer, inner = 1, 1
	for d := 0; d < axis; d++ {
		outer *= a.shape[d]
	}
	for d := axis + 1; d < len(a.shape); d++ {
		inner *= a.shape[d]
	}
	return outer, a.shape[axis], inner
}

func (a *NDArray) normalizeAxis(axis int) (int, error) {
	rank := len(a.shape)
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return 0, fmt.Errorf("axis %d out of range for shape %v", axis, a.shape)
	}
	return axis, nil
}
