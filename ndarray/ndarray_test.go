package ndarray

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	t.Run("zeros", func(t *testing.T) {
		a, err := Zeros(Shape{2, 3})
		require.NoError(t, err)
		require.Equal(t, Shape{2, 3}, a.Shape())
		require.Equal(t, []float32{0, 0, 0, 0, 0, 0}, a.Data())
	})

	t.Run("ones", func(t *testing.T) {
		a, err := Ones(Shape{2, 2})
		require.NoError(t, err)
		require.Equal(t, []float32{1, 1, 1, 1}, a.Data())
	})

	t.Run("full", func(t *testing.T) {
		a, err := Full(Shape{3}, 2.5)
		require.NoError(t, err)
		require.Equal(t, []float32{2.5, 2.5, 2.5}, a.Data())
	})

	t.Run("scalar", func(t *testing.T) {
		a := Scalar(7)
		require.Equal(t, Shape{}, a.Shape())
		require.Equal(t, 1, a.NumElements())
		require.Equal(t, []float32{7}, a.Data())
	})

	t.Run("invalid shape", func(t *testing.T) {
		_, err := Zeros(Shape{2, 0})
		require.Error(t, err)
	})
}

func TestFromSlice(t *testing.T) {
	a, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)
	require.Equal(t, Shape{2, 3}, a.Shape())
	require.Equal(t, 6, a.NumElements())

	_, err = FromSlice([]float32{1, 2, 3}, Shape{2, 3})
	require.Error(t, err)
	require.Contains(t, err.Error(), "requires 6 elements, but got 3")
}

func TestAtSetAt(t *testing.T) {
	a, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)

	v, err := a.At(1, 2)
	require.NoError(t, err)
	require.Equal(t, float32(6), v)

	require.NoError(t, a.SetAt(42, 0, 1))
	v, err = a.At(0, 1)
	require.NoError(t, err)
	require.Equal(t, float32(42), v)

	_, err = a.At(2, 0)
	require.Error(t, err)
	_, err = a.At(0)
	require.Error(t, err)
}

func TestClone(t *testing.T) {
	a, err := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2})
	require.NoError(t, err)

	b := a.Clone()
	require.Equal(t, a.Shape(), b.Shape())
	require.Equal(t, a.Data(), b.Data())

	require.NoError(t, b.SetAt(99, 0, 0))
	v, err := a.At(0, 0)
	require.NoError(t, err)
	require.Equal(t, float32(1), v)
}

func TestReshape(t *testing.T) {
	a, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)

	b, err := a.Reshape(Shape{3, 2})
	require.NoError(t, err)
	require.Equal(t, Shape{3, 2}, b.Shape())
	require.Equal(t, a.Data(), b.Data())

	// Reshape copies, so writes do not alias.
	require.NoError(t, b.SetAt(99, 0, 0))
	v, err := a.At(0, 0)
	require.NoError(t, err)
	require.Equal(t, float32(1), v)

	_, err = a.Reshape(Shape{4, 2})
	require.Error(t, err)
}
