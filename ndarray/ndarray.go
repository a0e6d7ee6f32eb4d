// Package ndarray provides a minimal row-major float32 array with the
// element-wise algebra, broadcasting, and reductions the training losses
// need. It is support math, not a tensor framework: no autodiff, no devices,
// no dtype zoo.
package ndarray

import "fmt"

// NDArray is a dense row-major float32 array.
type NDArray struct {
	shape Shape
	data  []float32
}

// New creates a zero-filled array with the given shape.
func New(shape Shape) (*NDArray, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &NDArray{
		shape: shape.Clone(),
		data:  make([]float32, shape.NumElements()),
	}, nil
}

// Zeros creates an array filled with zeros.
func Zeros(shape Shape) (*NDArray, error) {
	return New(shape)
}

// Ones creates an array filled with ones.
func Ones(shape Shape) (*NDArray, error) {
	return Full(shape, 1)
}

// Full creates an array filled with the given value.
func Full(shape Shape, value float32) (*NDArray, error) {
	arr, err := New(shape)
	if err != nil {
		return nil, err
	}
	for i := range arr.data {
		arr.data[i] = value
	}
	return arr, nil
}

// FromSlice creates an array from a Go slice. The slice is copied.
func FromSlice(data []float32, shape Shape) (*NDArray, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	arr := &NDArray{
		shape: shape.Clone(),
		data:  make([]float32, len(data)),
	}
	copy(arr.data, data)
	return arr, nil
}

// Scalar creates a rank-0 array holding a single value.
func Scalar(value float32) *NDArray {
	return &NDArray{shape: Shape{}, data: []float32{value}}
}

// Shape returns the array's shape.
func (a *NDArray) Shape() Shape {
	return a.shape
}

// NumElements returns the total number of elements.
func (a *NDArray) NumElements() int {
	return a.shape.NumElements()
}

// Data returns the underlying flat storage. Mutating it mutates the array.
func (a *NDArray) Data() []float32 {
	return a.data
}

// Clone returns a deep copy of the array.
func (a *NDArray) Clone() *NDArray {
	clone := &NDArray{
		shape: a.shape.Clone(),
		data:  make([]float32, len(a.data)),
	}
	copy(clone.data, a.data)
	return clone
}

// Reshape returns a view-copy of the array with a new shape holding the same
// number of elements.
func (a *NDArray) Reshape(shape Shape) (*NDArray, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != a.NumElements() {
		return nil, fmt.Errorf("cannot reshape %v (%d elements) to %v (%d elements)",
			a.shape, a.NumElements(), shape, shape.NumElements())
	}

	out := a.Clone()
	out.shape = shape.Clone()
	return out, nil
}

// At returns the element at the given multi-index.
func (a *NDArray) At(indices ...int) (float32, error) {
	offset, err := a.flatOffset(indices)
	if err != nil {
		return 0, err
	}
	return a.data[offset], nil
}

// SetAt assigns the element at the given multi-index.
func (a *NDArray) SetAt(value float32, indices ...int) error {
	offset, err := a.flatOffset(indices)
	if err != nil {
		return err
	}
	a.data[offset] = value
	return nil
}

func (a *NDArray) flatOffset(indices []int) (int, error) {
	if len(indices) != len(a.shape) {
		return 0, fmt.Errorf("expected %d indices for shape %v, got %d", len(a.shape), a.shape, len(indices))
	}

	strides := a.shape.ComputeStrides()
	offset := 0
	for i, idx := range indices {
		if idx < 0 || idx >= a.shape[i] {
			return 0, fmt.Errorf("index %d out of range for dimension %d of size %d", idx, i, a.shape[i])
		}
		offset += idx * strides[i]
	}
	return offset, nil
}
