package paddle

import (
	"fmt"
	"runtime"
)

// AnalysisConfig wraps a PD_AnalysisConfig handle. It controls device
// placement, model location, and feed/fetch behavior of predictors created
// from it.
//
// A config is created once, mutated through setters, and destroyed
// explicitly. It must outlive every predictor bound to it.
type AnalysisConfig struct {
	handle uintptr // Pointer to PD_AnalysisConfig
}

// NewAnalysisConfig creates an analysis config with runtime defaults.
// Maps to PD_NewAnalysisConfig in the Paddle inference C API.
func NewAnalysisConfig() (*AnalysisConfig, error) {
	callMu.RLock()
	defer callMu.RUnlock()

	mu.Lock()
	newConfig := newConfigFunc
	mu.Unlock()
	if newConfig == nil {
		return nil, fmt.Errorf("Paddle inference runtime not initialized")
	}

	handle := newConfig()
	if handle == 0 {
		return nil, fmt.Errorf("failed to create analysis config")
	}

	config := &AnalysisConfig{handle: handle}

	// Set finalizer to ensure cleanup even if Destroy() is not called
	runtime.SetFinalizer(config, func(c *AnalysisConfig) {
		_ = c.Destroy()
	})

	return config, nil
}

// SetModel points the config at a model directory and its combined
// parameters file. Maps to PD_SetModel.
func (c *AnalysisConfig) SetModel(modelDir, paramsPath string) error {
	return c.call(func() error {
		mu.Lock()
		setModel := setModelFunc
		mu.Unlock()
		if setModel == nil {
			return fmt.Errorf("Paddle inference runtime not initialized")
		}

		dirBytes, dirPtr := GoToCstring(modelDir)
		paramsBytes, paramsPtr := GoToCstring(paramsPath)
		setModel(c.handle, dirPtr, paramsPtr)
		runtime.KeepAlive(dirBytes)
		runtime.KeepAlive(paramsBytes)
		return nil
	})
}

// ModelDir returns the model directory recorded on the config.
// Maps to PD_ModelDir.
func (c *AnalysisConfig) ModelDir() (string, error) {
	var dir string
	err := c.call(func() error {
		mu.Lock()
		modelDir := modelDirFunc
		mu.Unlock()
		if modelDir == nil {
			return fmt.Errorf("Paddle inference runtime not initialized")
		}
		dir = CstringToGo(modelDir(c.handle))
		return nil
	})
	return dir, err
}

// DisableGPU places execution on CPU. Maps to PD_DisableGpu.
func (c *AnalysisConfig) DisableGPU() error {
	return c.callSimple(func() func(uintptr) {
		mu.Lock()
		defer mu.Unlock()
		return disableGpuFunc
	})
}

// EnableUseGPU places execution on a GPU device with an initial memory pool.
// Maps to PD_EnableUseGpu.
//
// memoryPoolInitSizeMB is the initial GPU memory pool in megabytes,
// deviceID selects the CUDA device.
func (c *AnalysisConfig) EnableUseGPU(memoryPoolInitSizeMB, deviceID int) error {
	if memoryPoolInitSizeMB < 0 {
		return fmt.Errorf("memory pool size cannot be negative: %d", memoryPoolInitSizeMB)
	}
	if deviceID < 0 {
		return fmt.Errorf("device ID cannot be negative: %d", deviceID)
	}

	return c.call(func() error {
		mu.Lock()
		enableUseGpu := enableUseGpuFunc
		mu.Unlock()
		if enableUseGpu == nil {
			return fmt.Errorf("Paddle inference runtime not initialized")
		}
		// #nosec G115 -- both values validated non-negative above.
		enableUseGpu(c.handle, int32(memoryPoolInitSizeMB), int32(deviceID))
		return nil
	})
}

// SwitchUseFeedFetchOps toggles the runtime's feed/fetch operators.
// Predictors fed through named tensors need this off.
// Maps to PD_SwitchUseFeedFetchOps.
func (c *AnalysisConfig) SwitchUseFeedFetchOps(enabled bool) error {
	return c.callBool(enabled, func() func(uintptr, bool) {
		mu.Lock()
		defer mu.Unlock()
		return switchUseFeedFetchOpsFunc
	})
}

// SwitchSpecifyInputNames toggles matching input tensors by name.
// Maps to PD_SwitchSpecifyInputNames.
func (c *AnalysisConfig) SwitchSpecifyInputNames(enabled bool) error {
	return c.callBool(enabled, func() func(uintptr, bool) {
		mu.Lock()
		defer mu.Unlock()
		return switchSpecifyInputNamesFunc
	})
}

// SwitchIrOptim toggles IR graph optimization passes.
// Maps to PD_SwitchIrOptim.
func (c *AnalysisConfig) SwitchIrOptim(enabled bool) error {
	return c.callBool(enabled, func() func(uintptr, bool) {
		mu.Lock()
		defer mu.Unlock()
		return switchIrOptimFunc
	})
}

// EnableMemoryOptim turns on memory reuse between operators.
// Maps to PD_EnableMemoryOptim.
func (c *AnalysisConfig) EnableMemoryOptim() error {
	return c.callSimple(func() func(uintptr) {
		mu.Lock()
		defer mu.Unlock()
		return enableMemoryOptimFunc
	})
}

// EnableMKLDNN turns on oneDNN acceleration for CPU execution.
// Maps to PD_EnableMKLDNN.
func (c *AnalysisConfig) EnableMKLDNN() error {
	return c.callSimple(func() func(uintptr) {
		mu.Lock()
		defer mu.Unlock()
		return enableMkldnnFunc
	})
}

// SetCPUMathLibraryNumThreads sets the math library thread count for CPU
// execution. Maps to PD_SetCpuMathLibraryNumThreads.
func (c *AnalysisConfig) SetCPUMathLibraryNumThreads(threads int) error {
	if threads <= 0 {
		return fmt.Errorf("thread count must be > 0, got %d", threads)
	}

	return c.call(func() error {
		mu.Lock()
		setThreads := setCpuMathThreadsFunc
		mu.Unlock()
		if setThreads == nil {
			return fmt.Errorf("Paddle inference runtime not initialized")
		}
		// #nosec G115 -- validated positive above.
		setThreads(c.handle, int32(threads))
		return nil
	})
}

// IsValid returns true if the config has a live handle.
func (c *AnalysisConfig) IsValid() bool {
	return c != nil && c.handle != 0
}

// Destroy releases the config. Maps to PD_DeleteAnalysisConfig.
// Destroy is idempotent; predictors created from the config must be
// destroyed first.
func (c *AnalysisConfig) Destroy() error {
	if c == nil {
		return nil
	}

	callMu.Lock()
	defer callMu.Unlock()

	mu.Lock()
	handle := c.handle
	deleteConfig := deleteConfigFunc
	c.handle = 0
	runtime.SetFinalizer(c, nil)
	mu.Unlock()

	if handle != 0 && deleteConfig != nil {
		deleteConfig(handle)
	}

	return nil
}

func (c *AnalysisConfig) call(fn func() error) error {
	if c == nil || c.handle == 0 {
		return fmt.Errorf("analysis config has been destroyed")
	}

	callMu.RLock()
	defer callMu.RUnlock()

	return fn()
}

func (c *AnalysisConfig) callSimple(get func() func(uintptr)) error {
	return c.call(func() error {
		fn := get()
		if fn == nil {
			return fmt.Errorf("Paddle inference runtime not initialized")
		}
		fn(c.handle)
		return nil
	})
}

func (c *AnalysisConfig) callBool(enabled bool, get func() func(uintptr, bool)) error {
	return c.call(func() error {
		fn := get()
		if fn == nil {
			return fmt.Errorf("Paddle inference runtime not initialized")
		}
		fn(c.handle, enabled)
		return nil
	})
}
