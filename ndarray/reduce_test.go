package ndarray

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSumMean(t *testing.T) {
	a := mustFromSlice(t, []float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.Equal(t, float32(21), a.Sum())
	require.InDelta(t, 3.5, a.Mean(), 1e-6)

	require.Equal(t, float32(7), Scalar(7).Sum())
	require.Equal(t, float32(7), Scalar(7).Mean())
}

func TestSumAxis(t *testing.T) {
	a := mustFromSlice(t, []float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})

	sum0, err := a.SumAxis(0, false)
	require.NoError(t, err)
	require.Equal(t, Shape{3}, sum0.Shape())
	require.Equal(t, []float32{5, 7, 9}, sum0.Data())

	sum1, err := a.SumAxis(1, false)
	require.NoError(t, err)
	require.Equal(t, Shape{2}, sum1.Shape())
	require.Equal(t, []float32{6, 15}, sum1.Data())

	keep, err := a.SumAxis(0, true)
	require.NoError(t, err)
	require.Equal(t, Shape{1, 3}, keep.Shape())

	neg, err := a.SumAxis(-1, false)
	require.NoError(t, err)
	require.Equal(t, []float32{6, 15}, neg.Data())

	_, err = a.SumAxis(2, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "axis 2 out of range")
}

func TestMeanAxis(t *testing.T) {
	a := mustFromSlice(t, []float32{2, 4, 6, 8, 10, 12}, Shape{2, 3})

	mean0, err := a.MeanAxis(0, false)
	require.NoError(t, err)
	require.Equal(t, []float32{5, 7, 9}, mean0.Data())

	mean1, err := a.MeanAxis(1, true)
	require.NoError(t, err)
	require.Equal(t, Shape{2, 1}, mean1.Shape())
	require.Equal(t, []float32{4, 10}, mean1.Data())
}

func TestSumAxisRankThree(t *testing.T) {
	a := mustFromSlice(t, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}, Shape{2, 2, 2})

	mid, err := a.SumAxis(1, false)
	require.NoError(t, err)
	require.Equal(t, Shape{2, 2}, mid.Shape())
	require.Equal(t, []float32{4, 6, 12, 14}, mid.Data())
}

func TestLogSoftmax(t *testing.T) {
	a := mustFromSlice(t, []float32{1, 2, 3}, Shape{1, 3})

	ls, err := a.LogSoftmax(-1)
	require.NoError(t, err)
	require.Equal(t, Shape{1, 3}, ls.Shape())

	// exp of log-softmax must sum to 1.
	var total float64
	for _, v := range ls.Data() {
		total += math.Exp(float64(v))
	}
	require.InDelta(t, 1.0, total, 1e-6)

	// Differences are preserved within a row.
	require.InDelta(t, 1.0, float64(ls.Data()[1]-ls.Data()[0]), 1e-6)
	require.InDelta(t, 1.0, float64(ls.Data()[2]-ls.Data()[1]), 1e-6)
}

func TestLogSoftmaxLargeLogits(t *testing.T) {
	// Without max subtraction exp(1000) overflows to +Inf.
	a := mustFromSlice(t, []float32{1000, 1001}, Shape{1, 2})

	ls, err := a.LogSoftmax(1)
	require.NoError(t, err)
	for _, v := range ls.Data() {
		require.False(t, math.IsInf(float64(v), 0))
		require.False(t, math.IsNaN(float64(v)))
	}
	require.InDelta(t, math.Log(1.0/(1.0+math.E)), float64(ls.Data()[0]), 1e-5)
}

func TestPick(t *testing.T) {
	logits := mustFromSlice(t, []float32{
		0.1, 0.2, 0.7,
		0.8, 0.1, 0.1,
	}, Shape{2, 3})
	labels := mustFromSlice(t, []float32{2, 0}, Shape{2, 1})

	picked, err := logits.Pick(labels)
	require.NoError(t, err)
	require.Equal(t, Shape{2, 1}, picked.Shape())
	require.Equal(t, []float32{0.7, 0.8}, picked.Data())

	flat := mustFromSlice(t, []float32{1, 1}, Shape{2})
	picked, err = logits.Pick(flat)
	require.NoError(t, err)
	require.Equal(t, []float32{0.2, 0.1}, picked.Data())
}

func TestPickErrors(t *testing.T) {
	logits := mustFromSlice(t, []float32{0.1, 0.9}, Shape{1, 2})

	_, err := Scalar(1).Pick(Scalar(0))
	require.Error(t, err)
	require.Contains(t, err.Error(), "scalar")

	_, err = logits.Pick(mustFromSlice(t, []float32{0, 1}, Shape{2}))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not match")

	_, err = logits.Pick(mustFromSlice(t, []float32{5}, Shape{1}))
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of range")

	_, err = logits.Pick(mustFromSlice(t, []float32{0.5}, Shape{1}))
	require.Error(t, err)
}
