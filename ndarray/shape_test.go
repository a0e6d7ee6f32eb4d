package ndarray

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		want  int
	}{
		{name: "scalar", shape: Shape{}, want: 1},
		{name: "vector", shape: Shape{5}, want: 5},
		{name: "matrix", shape: Shape{3, 4}, want: 12},
		{name: "rank three", shape: Shape{2, 3, 4}, want: 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.shape.NumElements())
		})
	}
}

func TestShapeValidate(t *testing.T) {
	require.NoError(t, Shape{}.Validate())
	require.NoError(t, Shape{2, 3}.Validate())
	require.Error(t, Shape{2, 0}.Validate())
	require.Error(t, Shape{-1, 3}.Validate())
}

func TestShapeEqual(t *testing.T) {
	require.True(t, Shape{2, 3}.Equal(Shape{2, 3}))
	require.True(t, Shape{}.Equal(Shape{}))
	require.False(t, Shape{2, 3}.Equal(Shape{3, 2}))
	require.False(t, Shape{2, 3}.Equal(Shape{2, 3, 1}))
}

func TestShapeClone(t *testing.T) {
	orig := Shape{2, 3}
	clone := orig.Clone()
	require.Equal(t, orig, clone)

	clone[0] = 99
	require.Equal(t, 2, orig[0])
}

func TestShapeComputeStrides(t *testing.T) {
	require.Equal(t, []int{12, 4, 1}, []int(Shape{2, 3, 4}.ComputeStrides()))
	require.Equal(t, []int{1}, []int(Shape{7}.ComputeStrides()))
	require.Empty(t, []int(Shape{}.ComputeStrides()))
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name           string
		a, b           Shape
		want           Shape
		needsBroadcast bool
		wantErr        bool
	}{
		{name: "identical", a: Shape{2, 3}, b: Shape{2, 3}, want: Shape{2, 3}},
		{name: "scalar left", a: Shape{}, b: Shape{2, 3}, want: Shape{2, 3}, needsBroadcast: true},
		{name: "row against matrix", a: Shape{3}, b: Shape{2, 3}, want: Shape{2, 3}, needsBroadcast: true},
		{name: "column against row", a: Shape{2, 1}, b: Shape{1, 3}, want: Shape{2, 3}, needsBroadcast: true},
		{name: "trailing one", a: Shape{2, 1}, b: Shape{2, 3}, want: Shape{2, 3}, needsBroadcast: true},
		{name: "incompatible", a: Shape{2, 3}, b: Shape{2, 4}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, needs, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "not compatible for broadcasting")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.needsBroadcast, needs)
		})
	}
}
