package paddle

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"unsafe"
)

// OutputTensor wraps a fetch tensor handle allocated by the native runtime
// during Predictor.Run. Unlike Tensor, the data buffer is owned by the
// native side; accessors copy it out into Go memory.
type OutputTensor struct {
	handle uintptr // Pointer to PD_PaddleTensor
}

// adoptOutputTensor takes ownership of a runtime-allocated tensor handle.
func adoptOutputTensor(handle uintptr) *OutputTensor {
	t := &OutputTensor{handle: handle}
	runtime.SetFinalizer(t, func(t *OutputTensor) {
		_ = t.Destroy()
	})
	return t
}

// Name returns the fetch name of the output tensor.
// Maps to PD_GetPaddleTensorName.
func (t *OutputTensor) Name() (string, error) {
	if t == nil || t.handle == 0 {
		return "", fmt.Errorf("output tensor has been destroyed")
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

// DType returns the element type of the output tensor.
// Maps to PD_GetPaddleTensorDType.
func (t *OutputTensor) DType() (DataType, error) {
	if t == nil || t.handle == 0 {
		return DataTypeUnknown, fmt.Errorf("output tensor has been destroyed")
	}

	callMu.RLock()
	defer callMu.RUnlock()

	mu.Lock()
	getDType := getTensorDTypeFunc
	mu.Unlock()
	if getDType == nil {
		return DataTypeUnknown, fmt.Errorf("Paddle inference runtime not initialized")
	}

	return DataType(getDType(t.handle)), nil
}

// Shape returns the shape of the output tensor.
// Maps to PD_GetPaddleTensorShape, which reports dimensions as an int32
// vector together with its length.
func (t *OutputTensor) Shape() (Shape, error) {
	if t == nil || t.handle == 0 {
		return nil, fmt.Errorf("output tensor has been destroyed")
	}

	callMu.RLock()
	defer callMu.RUnlock()

	mu.Lock()
	getShape := getTensorShapeFunc
	mu.Unlock()
	if getShape == nil {
		return nil, fmt.Errorf("Paddle inference runtime not initialized")
	}

	var size int32
	dimsPtr := getShape(t.handle, &size)
	if size < 0 {
		return nil, fmt.Errorf("runtime reported negative shape rank %d", size)
	}
	if size == 0 {
		return Shape{}, nil
	}
	if dimsPtr == 0 {
		return nil, fmt.Errorf("runtime returned null shape for rank %d", size)
	}

	dims := unsafe.Slice((*int32)(unsafe.Pointer(dimsPtr)), int(size))
	shape := make(Shape, size)
	for i, dim := range dims {
		shape[i] = int64(dim)
	}
	return shape, nil
}

// Bytes copies the raw output buffer into Go memory.
// Maps to PD_GetPaddleTensorData + PD_PaddleBufData/PD_PaddleBufLength.
func (t *OutputTensor) Bytes() ([]byte, error) {
	if t == nil || t.handle == 0 {
		return nil, fmt.Errorf("output tensor has been destroyed")
	}

	callMu.RLock()
	defer callMu.RUnlock()

	mu.Lock()
	getData := getTensorDataFunc
	bufData := bufDataFunc
	bufLength := bufLengthFunc
	mu.Unlock()
	if getData == nil || bufData == nil || bufLength == nil {
		return nil, fmt.Errorf("Paddle inference runtime not initialized")
	}

	buf := getData(t.handle)
	if buf == 0 {
		return nil, fmt.Errorf("output tensor has no data buffer")
	}

	length := bufLength(buf)
	if length == 0 {
		return []byte{}, nil
	}

	ptr := bufData(buf)
	if ptr == 0 {
		return nil, fmt.Errorf("output tensor buffer is null")
	}

	out := make([]byte, length)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), length))
	return out, nil
}

// Float32s copies the output buffer out as float32 elements.
func (t *OutputTensor) Float32s() ([]float32, error) {
	raw, err := t.typedBytes(DataTypeFloat32)
	if err != nil {
		return nil, err
	}

	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.NativeEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// Int32s copies the output buffer out as int32 elements.
func (t *OutputTensor) Int32s() ([]int32, error) {
	raw, err := t.typedBytes(DataTypeInt32)
	if err != nil {
		return nil, err
	}

	out := make([]int32, len(raw)/4)
	for i := range out {
		out[i] = int32(binary.NativeEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// Int64s copies the output buffer out as int64 elements.
func (t *OutputTensor) Int64s() ([]int64, error) {
	raw, err := t.typedBytes(DataTypeInt64)
	if err != nil {
		return nil, err
	}

	out := make([]int64, len(raw)/8)
	for i := range out {
		out[i] = int64(binary.NativeEndian.Uint64(raw[i*8:]))
	}
	return out, nil
}

func (t *OutputTensor) typedBytes(want DataType) ([]byte, error) {
	dtype, err := t.DType()
	if err != nil {
		return nil, err
	}
	if dtype != want {
		return nil, fmt.Errorf("output tensor dtype is %s, not %s", dtype, want)
	}

	raw, err := t.Bytes()
	if err != nil {
		return nil, err
	}
	if size := want.Size(); size > 0 && len(raw)%size != 0 {
		return nil, fmt.Errorf("output buffer length %d is not a multiple of %s element size", len(raw), want)
	}
	return raw, nil
}

// Destroy releases the native output tensor. Destroy is idempotent.
func (t *OutputTensor) Destroy() error {
	if t == nil {
		return nil
	}

	callMu.Lock()
	defer callMu.Unlock()

	mu.Lock()
	handle := t.handle
	deleteTensor := deleteTensorFunc
	t.handle = 0
	runtime.SetFinalizer(t, nil)
	mu.Unlock()

	if handle != 0 && deleteTensor != nil {
		deleteTensor(handle)
	}

	return nil
}
