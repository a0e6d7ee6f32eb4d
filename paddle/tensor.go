package paddle

import (
	"fmt"
	"runtime"
	"unsafe"
)

// Tensor represents an input tensor with element type T.
//
// The tensor owns a native PD_PaddleTensor handle whose data buffer points
// directly at the Go backing array, which stays pinned for the tensor's
// lifetime. Mutating the slice passed to NewTensor mutates what the
// predictor reads, so buffers can be reused across Run calls.
type Tensor[T any] struct {
	shape  Shape
	data   []T
	handle uintptr         // Pointer to PD_PaddleTensor
	buf    uintptr         // Pointer to PD_PaddleBuf backing the tensor data
	pinner *runtime.Pinner // Pins the backing array while the runtime may access it.
}

// NewTensor creates a new input tensor with the given shape and data.
// Maps to PD_NewPaddleTensor + PD_SetPaddleTensorDType/Shape/Data in the
// Paddle inference C API.
func NewTensor[T any](shape Shape, data []T) (*Tensor[T], error) {
	elementType, elementSize, err := tensorElementType[T]()
	if err != nil {
		return nil, err
	}

	shapeCopy := cloneShape(shape)
	elementCount, err := shapeElementCount(shapeCopy)
	if err != nil {
		return nil, err
	}
	if len(data) != elementCount {
		return nil, fmt.Errorf("data length mismatch: got %d elements, expected %d for shape %v", len(data), elementCount, shapeCopy)
	}

	return newTensorFromData(shapeCopy, data, elementType, elementSize)
}

// NewEmptyTensor creates a new zero-filled input tensor with the given shape.
func NewEmptyTensor[T any](shape Shape) (*Tensor[T], error) {
	elementType, elementSize, err := tensorElementType[T]()
	if err != nil {
		return nil, err
	}

	shapeCopy := cloneShape(shape)
	elementCount, err := shapeElementCount(shapeCopy)
	if err != nil {
		return nil, err
	}

	data := make([]T, elementCount)

	return newTensorFromData(shapeCopy, data, elementType, elementSize)
}

func newTensorFromData[T any](shape Shape, data []T, elementType DataType, elementSize uintptr) (*Tensor[T], error) {
	dataBytes, err := tensorDataByteSize(len(data), elementSize)
	if err != nil {
		return nil, err
	}

	dims, err := shapeToInt32(shape)
	if err != nil {
		return nil, err
	}

	callMu.RLock()
	defer callMu.RUnlock()

	mu.Lock()
	if newTensorFunc == nil || deleteTensorFunc == nil || setTensorDTypeFunc == nil ||
		setTensorShapeFunc == nil || setTensorDataFunc == nil || newBufFunc == nil || bufResetFunc == nil {
		mu.Unlock()
		return nil, fmt.Errorf("Paddle inference runtime not initialized")
	}
	newTensor := newTensorFunc
	deleteTensor := deleteTensorFunc
	setDType := setTensorDTypeFunc
	setShape := setTensorShapeFunc
	setData := setTensorDataFunc
	newBuf := newBufFunc
	bufReset := bufResetFunc
	mu.Unlock()

	handle := newTensor()
	if handle == 0 {
		return nil, fmt.Errorf("failed to create tensor")
	}

	setDType(handle, int32(elementType))

	var dimsPtr uintptr
	if len(dims) > 0 {
		// #nosec G103 -- Required for CGO-free FFI; the runtime copies the
		// dimension vector synchronously during the call.
		dimsPtr = uintptr(unsafe.Pointer(unsafe.SliceData(dims)))
	}
	setShape(handle, dimsPtr, int32(len(dims)))
	runtime.KeepAlive(dims)

	buf := newBuf()
	if buf == 0 {
		deleteTensor(handle)
		return nil, fmt.Errorf("failed to create tensor buffer")
	}

	var dataPtr uintptr
	var pinner *runtime.Pinner
	if len(data) > 0 {
		pinner = &runtime.Pinner{}
		pinner.Pin(unsafe.SliceData(data))
		// #nosec G103 -- Backing array is pinned for the tensor lifetime via runtime.Pinner.
		dataPtr = uintptr(unsafe.Pointer(unsafe.SliceData(data)))
	}

	bufReset(buf, dataPtr, dataBytes)
	setData(handle, buf)

	tensor := &Tensor[T]{
		shape:  shape,
		data:   data,
		handle: handle,
		buf:    buf,
		pinner: pinner,
	}

	// Finalizer is a safety net to avoid leaking the native tensor if
	// callers forget Destroy().
	runtime.SetFinalizer(tensor, func(t *Tensor[T]) {
		_ = t.Destroy()
	})

	return tensor, nil
}

// GetData returns the tensor data.
// After Destroy() it returns nil. Calling on a nil receiver also returns nil.
func (t *Tensor[T]) GetData() []T {
	if t == nil {
		return nil
	}
	return t.data
}

// Shape returns the tensor shape.
func (t *Tensor[T]) Shape() Shape {
	if t == nil {
		return nil
	}
	return t.shape
}

// SetName sets the feed name the predictor matches this tensor against.
// Maps to PD_SetPaddleTensorName.
func (t *Tensor[T]) SetName(name string) error {
	if t == nil || t.handle == 0 {
		return fmt.Errorf("tensor has been destroyed")
	}

	callMu.RLock()
	defer callMu.RUnlock()

	mu.Lock()
	setName := setTensorNameFunc
	mu.Unlock()
	if setName == nil {
		return fmt.Errorf("Paddle inference runtime not initialized")
	}

	nameBytes, namePtr := GoToCstring(name)
	setName(t.handle, namePtr)
	runtime.KeepAlive(nameBytes)
	return nil
}

// Name returns the feed name currently set on the tensor.
// Maps to PD_GetPaddleTensorName.
func (t *Tensor[T]) Name() (string, error) {
	if t == nil || t.handle == 0 {
		return "", fmt.Errorf("tensor has been destroyed")
	}

	callMu.RLock()
	defer callMu.RUnlock()

	mu.Lock()
	getName := getTensorNameFunc
	mu.Unlock()
	if getName == nil {
		return "", fmt.Errorf("Paddle inference runtime not initialized")
	}

	return CstringToGo(getName(t.handle)), nil
}

func (t *Tensor[T]) tensorHandle() uintptr {
	if t == nil {
		return 0
	}
	return t.handle
}

// Destroy releases the native tensor. The matching C delete also tears down
// the tensor's internal buffer views, so the PaddleBuf handle is not deleted
// separately. Destroy is idempotent.
func (t *Tensor[T]) Destroy() error {
	if t == nil {
		return nil
	}

	// Lock order here is callMu -> mu.
	callMu.Lock()
	defer callMu.Unlock()

	var handle uintptr
	var deleteTensor func(uintptr)
	var pinner *runtime.Pinner

	mu.Lock()
	handle = t.handle
	deleteTensor = deleteTensorFunc
	pinner = t.pinner
	t.handle = 0
	t.buf = 0
	t.data = nil
	t.shape = nil
	t.pinner = nil
	runtime.SetFinalizer(t, nil)
	mu.Unlock()

	if handle != 0 && deleteTensor != nil {
		deleteTensor(handle)
	}
	if pinner != nil {
		pinner.Unpin()
	}

	return nil
}

func tensorDataByteSize(elementCount int, elementSize uintptr) (uintptr, error) {
	if elementCount < 0 {
		return 0, fmt.Errorf("element count cannot be negative: %d", elementCount)
	}
	if elementCount == 0 {
		return 0, nil
	}
	if elementSize == 0 {
		return 0, fmt.Errorf("element size cannot be zero")
	}

	count := uintptr(elementCount)
	if count > ^uintptr(0)/elementSize {
		return 0, fmt.Errorf("tensor data size overflow: %d elements with element size %d", elementCount, elementSize)
	}

	return count * elementSize, nil
}

// tensorElementType maps Go generic element type T to the PD_DataType tag.
// Supported types are float32, int32, int64, and uint8, matching the dtypes
// the C surface itself carries.
func tensorElementType[T any]() (DataType, uintptr, error) {
	var zero T

	switch any(zero).(type) {
	case float32:
		return DataTypeFloat32, unsafe.Sizeof(zero), nil
	case int32:
		return DataTypeInt32, unsafe.Sizeof(zero), nil
	case int64:
		return DataTypeInt64, unsafe.Sizeof(zero), nil
	case uint8:
		return DataTypeUint8, unsafe.Sizeof(zero), nil
	default:
		return DataTypeUnknown, 0, fmt.Errorf("unsupported tensor element type %T", zero)
	}
}
