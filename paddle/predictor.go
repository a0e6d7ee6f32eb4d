package paddle

import (
	"fmt"
	"runtime"
	"unsafe"
)

// Predictor wraps a PD_Predictor handle bound to an AnalysisConfig.
// It consumes input tensors and produces runtime-allocated output tensors.
//
// A predictor must not be used after Destroy, and its config must stay
// alive for as long as the predictor runs.
type Predictor struct {
	handle uintptr // Pointer to PD_Predictor
	config *AnalysisConfig
}

// NewPredictor creates a predictor from a config.
// Maps to PD_NewPredictor in the Paddle inference C API.
func NewPredictor(config *AnalysisConfig) (*Predictor, error) {
	if !config.IsValid() {
		return nil, fmt.Errorf("analysis config is nil or destroyed")
	}

	callMu.RLock()
	defer callMu.RUnlock()

	mu.Lock()
	newPredictor := newPredictorFunc
	mu.Unlock()
	if newPredictor == nil {
		return nil, fmt.Errorf("Paddle inference runtime not initialized")
	}

	handle := newPredictor(config.handle)
	if handle == 0 {
		return nil, fmt.Errorf("failed to create predictor")
	}

	predictor := &Predictor{handle: handle, config: config}
	runtime.SetFinalizer(predictor, func(p *Predictor) {
		_ = p.Destroy()
	})

	return predictor, nil
}

// InputNum returns the number of feed tensors the model expects.
// Maps to PD_GetInputNum.
func (p *Predictor) InputNum() (int, error) {
	return p.countOf(func() func(uintptr) int32 {
		mu.Lock()
		defer mu.Unlock()
		return getInputNumFunc
	})
}

// InputName returns the feed name at the given index.
// Maps to PD_GetInputName.
func (p *Predictor) InputName(index int) (string, error) {
	return p.nameOf(index, func() func(uintptr, int32) uintptr {
		mu.Lock()
		defer mu.Unlock()
		return getInputNameFunc
	})
}

// OutputNum returns the number of fetch tensors the model produces.
// Maps to PD_GetOutputNum.
func (p *Predictor) OutputNum() (int, error) {
	return p.countOf(func() func(uintptr) int32 {
		mu.Lock()
		defer mu.Unlock()
		return getOutputNumFunc
	})
}

// OutputName returns the fetch name at the given index.
// Maps to PD_GetOutputName.
func (p *Predictor) OutputName(index int) (string, error) {
	return p.nameOf(index, func() func(uintptr, int32) uintptr {
		mu.Lock()
		defer mu.Unlock()
		return getOutputNameFunc
	})
}

// RunnableTensor is implemented by input tensors of any element type so a
// single Run call can mix dtypes.
type RunnableTensor interface {
	tensorHandle() uintptr
}

// Run executes inference and returns the runtime-allocated output tensors.
// Maps to PD_PredictorRun.
//
// The underlying C entry point takes the input tensors as one contiguous
// array and receives only its base pointer, so inputs created individually
// are forwarded through the first handle together with the input count.
// Callers own the returned tensors and must Destroy each of them.
func (p *Predictor) Run(inputs []RunnableTensor, batchSize int) ([]*OutputTensor, error) {
	if p == nil || p.handle == 0 {
		return nil, fmt.Errorf("predictor has been destroyed")
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one input tensor is required")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0, got %d", batchSize)
	}
	if !p.config.IsValid() {
		return nil, fmt.Errorf("analysis config has been destroyed")
	}
	for i, input := range inputs {
		if input == nil || input.tensorHandle() == 0 {
			return nil, fmt.Errorf("input tensor at index %d is nil or destroyed", i)
		}
	}

	callMu.RLock()
	defer callMu.RUnlock()

	mu.Lock()
	predictorRun := predictorRunFunc
	mu.Unlock()
	if predictorRun == nil {
		return nil, fmt.Errorf("Paddle inference runtime not initialized")
	}

	var outData uintptr
	var outSize int32
	ok := predictorRun(
		p.config.handle,
		inputs[0].tensorHandle(),
		int32(len(inputs)),
		&outData,
		&outSize,
		int32(batchSize),
	)
	runtime.KeepAlive(inputs)
	if !ok {
		return nil, fmt.Errorf("inference run failed")
	}

	if outSize < 0 {
		return nil, fmt.Errorf("runtime reported negative output count %d", outSize)
	}
	if outSize == 0 {
		return []*OutputTensor{}, nil
	}
	if outData == 0 {
		return nil, fmt.Errorf("runtime returned null output array for %d outputs", outSize)
	}

	handles := unsafe.Slice((*uintptr)(unsafe.Pointer(outData)), int(outSize))
	outputs := make([]*OutputTensor, 0, outSize)
	for _, handle := range handles {
		outputs = append(outputs, adoptOutputTensor(handle))
	}

	return outputs, nil
}

// Destroy releases the predictor. Maps to PD_DeletePredictor.
// Destroy is idempotent.
func (p *Predictor) Destroy() error {
	if p == nil {
		return nil
	}

	callMu.Lock()
	defer callMu.Unlock()

	mu.Lock()
	handle := p.handle
	deletePredictor := deletePredictorFunc
	p.handle = 0
	p.config = nil
	runtime.SetFinalizer(p, nil)
	mu.Unlock()

	if handle != 0 && deletePredictor != nil {
		deletePredictor(handle)
	}

	return nil
}

func (p *Predictor) countOf(get func() func(uintptr) int32) (int, error) {
	if p == nil || p.handle == 0 {
		return 0, fmt.Errorf("predictor has been destroyed")
	}

	callMu.RLock()
	defer callMu.RUnlock()

	fn := get()
	if fn == nil {
		return 0, fmt.Errorf("Paddle inference runtime not initialized")
	}

	return int(fn(p.handle)), nil
}

func (p *Predictor) nameOf(index int, get func() func(uintptr, int32) uintptr) (string, error) {
	if p == nil || p.handle == 0 {
		return "", fmt.Errorf("predictor has been destroyed")
	}
	if index < 0 {
		return "", fmt.Errorf("index cannot be negative: %d", index)
	}

	callMu.RLock()
	defer callMu.RUnlock()

	fn := get()
	if fn == nil {
		return "", fmt.Errorf("Paddle inference runtime not initialized")
	}

	// #nosec G115 -- validated non-negative above.
	return CstringToGo(fn(p.handle, int32(index))), nil
}
