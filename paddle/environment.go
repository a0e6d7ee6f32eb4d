package paddle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

// Package state guarded by mu. callMu serializes native calls against
// library teardown: operations take the read lock, DestroyEnvironment and
// Tensor/Predictor teardown take the write lock.
var (
	mu       sync.Mutex
	callMu   sync.RWMutex
	refCount int
	lib      uintptr
	libPath  string
)

// Registered entry points of the Paddle inference C API. Each variable is
// bound by InitializeEnvironment and reset to nil on final destroy.
var (
	newTensorFunc      func() uintptr
	deleteTensorFunc   func(uintptr)
	setTensorNameFunc  func(uintptr, uintptr)
	getTensorNameFunc  func(uintptr) uintptr
	setTensorDTypeFunc func(uintptr, int32)
	getTensorDTypeFunc func(uintptr) int32
	setTensorShapeFunc func(uintptr, uintptr, int32)
	getTensorShapeFunc func(uintptr, *int32) uintptr
	setTensorDataFunc  func(uintptr, uintptr)
	getTensorDataFunc  func(uintptr) uintptr

	newBufFunc    func() uintptr
	deleteBufFunc func(uintptr)
	bufResetFunc  func(uintptr, uintptr, uintptr)
	bufDataFunc   func(uintptr) uintptr
	bufLengthFunc func(uintptr) uintptr

	newConfigFunc               func() uintptr
	deleteConfigFunc            func(uintptr)
	disableGpuFunc              func(uintptr)
	enableUseGpuFunc            func(uintptr, int32, int32)
	setModelFunc                func(uintptr, uintptr, uintptr)
	modelDirFunc                func(uintptr) uintptr
	switchUseFeedFetchOpsFunc   func(uintptr, bool)
	switchSpecifyInputNamesFunc func(uintptr, bool)
	switchIrOptimFunc           func(uintptr, bool)
	enableMemoryOptimFunc       func(uintptr)
	enableMkldnnFunc            func(uintptr)
	setCpuMathThreadsFunc       func(uintptr, int32)

	newPredictorFunc    func(uintptr) uintptr
	deletePredictorFunc func(uintptr)
	getInputNumFunc     func(uintptr) int32
	getInputNameFunc    func(uintptr, int32) uintptr
	getOutputNumFunc    func(uintptr) int32
	getOutputNameFunc   func(uintptr, int32) uintptr
	predictorRunFunc    func(uintptr, uintptr, int32, *uintptr, *int32, int32) bool
)

// libFuncs maps C symbol names to the function variables they bind to.
// The list mirrors the PD_* surface of paddle_c_api.h.
var libFuncs = []struct {
	name string
	fptr any
}{
	{"PD_NewPaddleTensor", &newTensorFunc},
	{"PD_DeletePaddleTensor", &deleteTensorFunc},
	{"PD_SetPaddleTensorName", &setTensorNameFunc},
	{"PD_GetPaddleTensorName", &getTensorNameFunc},
	{"PD_SetPaddleTensorDType", &setTensorDTypeFunc},
	{"PD_GetPaddleTensorDType", &getTensorDTypeFunc},
	{"PD_SetPaddleTensorShape", &setTensorShapeFunc},
	{"PD_GetPaddleTensorShape", &getTensorShapeFunc},
	{"PD_SetPaddleTensorData", &setTensorDataFunc},
	{"PD_GetPaddleTensorData", &getTensorDataFunc},

	{"PD_NewPaddleBuf", &newBufFunc},
	{"PD_DeletePaddleBuf", &deleteBufFunc},
	{"PD_PaddleBufReset", &bufResetFunc},
	{"PD_PaddleBufData", &bufDataFunc},
	{"PD_PaddleBufLength", &bufLengthFunc},

	{"PD_NewAnalysisConfig", &newConfigFunc},
	{"PD_DeleteAnalysisConfig", &deleteConfigFunc},
	{"PD_DisableGpu", &disableGpuFunc},
	{"PD_EnableUseGpu", &enableUseGpuFunc},
	{"PD_SetModel", &setModelFunc},
	{"PD_ModelDir", &modelDirFunc},
	{"PD_SwitchUseFeedFetchOps", &switchUseFeedFetchOpsFunc},
	{"PD_SwitchSpecifyInputNames", &switchSpecifyInputNamesFunc},
	{"PD_SwitchIrOptim", &switchIrOptimFunc},
	{"PD_EnableMemoryOptim", &enableMemoryOptimFunc},
	{"PD_EnableMKLDNN", &enableMkldnnFunc},
	{"PD_SetCpuMathLibraryNumThreads", &setCpuMathThreadsFunc},

	{"PD_NewPredictor", &newPredictorFunc},
	{"PD_DeletePredictor", &deletePredictorFunc},
	{"PD_GetInputNum", &getInputNumFunc},
	{"PD_GetInputName", &getInputNameFunc},
	{"PD_GetOutputNum", &getOutputNumFunc},
	{"PD_GetOutputName", &getOutputNameFunc},
	{"PD_PredictorRun", &predictorRunFunc},
}

// SetSharedLibraryPath sets the path to the Paddle inference C shared library.
// Must be called before InitializeEnvironment; the path cannot change while
// the environment is live.
func SetSharedLibraryPath(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if refCount > 0 && libPath != path {
		return fmt.Errorf("cannot change library path after environment is initialized")
	}

	libPath = path
	return nil
}

// InitializeEnvironment loads the Paddle inference C library and registers
// every PD_* entry point the binding forwards to.
//
// Initialization is reference counted: each call must be paired with a
// DestroyEnvironment call, and the library is unloaded only when the count
// drops to zero.
func InitializeEnvironment() error {
	mu.Lock()
	defer mu.Unlock()

	if refCount > 0 {
		refCount++
		return nil
	}

	if libPath == "" {
		return errors.New("library path not set, call SetSharedLibraryPath first")
	}

	handle, err := loadLibrary(libPath)
	if err != nil {
		return fmt.Errorf("failed to load Paddle inference library %q: %w", libPath, err)
	}
	if handle == 0 {
		return fmt.Errorf("failed to load Paddle inference library %q", libPath)
	}

	for _, f := range libFuncs {
		addr, symErr := getSymbol(handle, f.name)
		if symErr != nil || addr == 0 {
			resetRegisteredFuncsLocked()
			_ = closeLibrary(handle)
			if symErr != nil {
				return fmt.Errorf("failed to resolve symbol %s: %w", f.name, symErr)
			}
			return fmt.Errorf("failed to resolve symbol %s", f.name)
		}
		purego.RegisterFunc(f.fptr, addr)
	}

	lib = handle
	refCount = 1
	return nil
}

// DestroyEnvironment releases one reference to the environment and unloads
// the shared library when the last reference is gone. Destroying an
// uninitialized environment is a no-op.
func DestroyEnvironment() error {
	mu.Lock()
	defer mu.Unlock()

	if refCount == 0 {
		return nil
	}

	refCount--
	if refCount > 0 {
		return nil
	}

	// Block in-flight native calls before pulling the library out from
	// under them. Lock order here is mu -> callMu, matching teardown in
	// Tensor.Destroy and Predictor.Destroy.
	callMu.Lock()
	defer callMu.Unlock()

	resetRegisteredFuncsLocked()

	handle := lib
	lib = 0
	if handle != 0 {
		if err := closeLibrary(handle); err != nil {
			return fmt.Errorf("failed to unload Paddle inference library: %w", err)
		}
	}

	return nil
}

// IsInitialized returns true if the environment is initialized.
func IsInitialized() bool {
	mu.Lock()
	defer mu.Unlock()
	return refCount > 0
}

// GetVersionString returns the runtime API generation the binding is built
// against. The legacy C surface has no version query, so the value is the
// compile-time constant once the environment is live.
func GetVersionString() string {
	mu.Lock()
	defer mu.Unlock()

	if refCount == 0 {
		return "0.0.0-dev"
	}
	return RuntimeAPIVersion
}

func resetRegisteredFuncsLocked() {
	newTensorFunc = nil
	deleteTensorFunc = nil
	setTensorNameFunc = nil
	getTensorNameFunc = nil
	setTensorDTypeFunc = nil
	getTensorDTypeFunc = nil
	setTensorShapeFunc = nil
	getTensorShapeFunc = nil
	setTensorDataFunc = nil
	getTensorDataFunc = nil
	newBufFunc = nil
	deleteBufFunc = nil
	bufResetFunc = nil
	bufDataFunc = nil
	bufLengthFunc = nil
	newConfigFunc = nil
	deleteConfigFunc = nil
	disableGpuFunc = nil
	enableUseGpuFunc = nil
	setModelFunc = nil
	modelDirFunc = nil
	switchUseFeedFetchOpsFunc = nil
	switchSpecifyInputNamesFunc = nil
	switchIrOptimFunc = nil
	enableMemoryOptimFunc = nil
	enableMkldnnFunc = nil
	setCpuMathThreadsFunc = nil
	newPredictorFunc = nil
	deletePredictorFunc = nil
	getInputNumFunc = nil
	getInputNameFunc = nil
	getOutputNumFunc = nil
	getOutputNameFunc = nil
	predictorRunFunc = nil
}
