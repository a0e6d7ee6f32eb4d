package paddle

import (
	"os"
	"strings"
	"testing"
)

// mustModelDir returns the model directory for integration tests or skips.
func mustModelDir(t *testing.T) string {
	t.Helper()
	dir := os.Getenv("PADDLE_INFERENCE_MODEL_DIR")
	if dir == "" {
		t.Skip("Skipping integration test: PADDLE_INFERENCE_MODEL_DIR not set")
	}
	return dir
}

func TestNewPredictorRejectsInvalidConfig(t *testing.T) {
	resetEnvironmentState()

	_, err := NewPredictor(nil)
	if err == nil || !strings.Contains(err.Error(), "analysis config is nil or destroyed") {
		t.Errorf("expected invalid config error for nil config, got: %v", err)
	}

	_, err = NewPredictor(&AnalysisConfig{})
	if err == nil || !strings.Contains(err.Error(), "analysis config is nil or destroyed") {
		t.Errorf("expected invalid config error for destroyed config, got: %v", err)
	}

	resetEnvironmentState()
}

func TestNewPredictorWhenNotInitialized(t *testing.T) {
	resetEnvironmentState()

	_, err := NewPredictor(&AnalysisConfig{handle: 1})
	if err == nil {
		t.Fatal("expected error when runtime not initialized")
	}
	if !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("unexpected error message: %v", err)
	}

	resetEnvironmentState()
}

func TestPredictorDestroyedOperations(t *testing.T) {
	resetEnvironmentState()

	predictor := &Predictor{}

	if _, err := predictor.InputNum(); err == nil || !strings.Contains(err.Error(), "destroyed") {
		t.Errorf("expected destroyed error from InputNum, got: %v", err)
	}
	if _, err := predictor.OutputNum(); err == nil || !strings.Contains(err.Error(), "destroyed") {
		t.Errorf("expected destroyed error from OutputNum, got: %v", err)
	}
	if _, err := predictor.InputName(0); err == nil || !strings.Contains(err.Error(), "destroyed") {
		t.Errorf("expected destroyed error from InputName, got: %v", err)
	}
	if _, err := predictor.OutputName(0); err == nil || !strings.Contains(err.Error(), "destroyed") {
		t.Errorf("expected destroyed error from OutputName, got: %v", err)
	}
	if _, err := predictor.Run([]RunnableTensor{&Tensor[float32]{handle: 1}}, 1); err == nil || !strings.Contains(err.Error(), "destroyed") {
		t.Errorf("expected destroyed error from Run, got: %v", err)
	}

	resetEnvironmentState()
}

func TestPredictorNameIndexValidation(t *testing.T) {
	resetEnvironmentState()

	predictor := &Predictor{handle: 1, config: &AnalysisConfig{handle: 1}}

	if _, err := predictor.InputName(-1); err == nil || !strings.Contains(err.Error(), "index cannot be negative") {
		t.Errorf("expected index validation error, got: %v", err)
	}
	if _, err := predictor.OutputName(-3); err == nil || !strings.Contains(err.Error(), "index cannot be negative") {
		t.Errorf("expected index validation error, got: %v", err)
	}

	resetEnvironmentState()
}

func TestPredictorRunValidation(t *testing.T) {
	resetEnvironmentState()

	config := &AnalysisConfig{handle: 1}
	predictor := &Predictor{handle: 1, config: config}
	input := &Tensor[float32]{handle: 1}

	t.Run("no inputs", func(t *testing.T) {
		_, err := predictor.Run(nil, 1)
		if err == nil || !strings.Contains(err.Error(), "at least one input tensor is required") {
			t.Errorf("expected missing input error, got: %v", err)
		}
	})

	t.Run("zero batch size", func(t *testing.T) {
		_, err := predictor.Run([]RunnableTensor{input}, 0)
		if err == nil || !strings.Contains(err.Error(), "batch size must be > 0") {
			t.Errorf("expected batch size error, got: %v", err)
		}
	})

	t.Run("negative batch size", func(t *testing.T) {
		_, err := predictor.Run([]RunnableTensor{input}, -1)
		if err == nil || !strings.Contains(err.Error(), "batch size must be > 0") {
			t.Errorf("expected batch size error, got: %v", err)
		}
	})

	t.Run("destroyed config", func(t *testing.T) {
		orphan := &Predictor{handle: 1, config: &AnalysisConfig{}}
		_, err := orphan.Run([]RunnableTensor{input}, 1)
		if err == nil || !strings.Contains(err.Error(), "analysis config has been destroyed") {
			t.Errorf("expected destroyed config error, got: %v", err)
		}
	})

	t.Run("destroyed input tensor", func(t *testing.T) {
		_, err := predictor.Run([]RunnableTensor{&Tensor[float32]{}}, 1)
		if err == nil || !strings.Contains(err.Error(), "input tensor at index 0 is nil or destroyed") {
			t.Errorf("expected destroyed input error, got: %v", err)
		}
	})

	t.Run("nil input among valid", func(t *testing.T) {
		_, err := predictor.Run([]RunnableTensor{input, nil}, 1)
		if err == nil || !strings.Contains(err.Error(), "input tensor at index 1 is nil or destroyed") {
			t.Errorf("expected nil input error, got: %v", err)
		}
	})

	t.Run("not initialized", func(t *testing.T) {
		_, err := predictor.Run([]RunnableTensor{input}, 1)
		if err == nil || !strings.Contains(err.Error(), "not initialized") {
			t.Errorf("expected not initialized error, got: %v", err)
		}
	})

	resetEnvironmentState()
}

func TestPredictorRunMixedInputTypes(t *testing.T) {
	resetEnvironmentState()

	// Tensors of different element types satisfy RunnableTensor together.
	inputs := []RunnableTensor{
		&Tensor[float32]{handle: 1},
		&Tensor[int64]{handle: 2},
	}

	predictor := &Predictor{handle: 1, config: &AnalysisConfig{handle: 1}}
	_, err := predictor.Run(inputs, 1)
	// Input validation passes; the run stops at the uninitialized runtime.
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("expected not initialized error, got: %v", err)
	}

	resetEnvironmentState()
}

func TestPredictorDestroyIdempotent(t *testing.T) {
	resetEnvironmentState()

	var nilPredictor *Predictor
	if err := nilPredictor.Destroy(); err != nil {
		t.Errorf("expected nil predictor Destroy to be a no-op, got: %v", err)
	}

	predictor := &Predictor{handle: 1, config: &AnalysisConfig{handle: 1}}
	if err := predictor.Destroy(); err != nil {
		t.Fatalf("unexpected error on first destroy: %v", err)
	}
	if predictor.handle != 0 {
		t.Error("expected handle to be cleared after destroy")
	}
	if predictor.config != nil {
		t.Error("expected config reference to be released after destroy")
	}
	if err := predictor.Destroy(); err != nil {
		t.Fatalf("unexpected error on second destroy: %v", err)
	}

	resetEnvironmentState()
}

// TestPredictorWithActualModel runs a full config/predictor/tensor cycle when
// both a runtime library and a model directory are available.
func TestPredictorWithActualModel(t *testing.T) {
	modelDir := mustModelDir(t)
	requireRuntime(t)

	config, err := NewAnalysisConfig()
	if err != nil {
		t.Fatalf("failed to create analysis config: %v", err)
	}
	defer func() {
		_ = config.Destroy()
	}()

	if err := config.SetModel(modelDir, ""); err != nil {
		t.Fatalf("failed to set model: %v", err)
	}
	if err := config.DisableGPU(); err != nil {
		t.Fatalf("failed to disable GPU: %v", err)
	}
	if err := config.SwitchUseFeedFetchOps(false); err != nil {
		t.Fatalf("failed to switch feed/fetch ops: %v", err)
	}
	if err := config.SwitchSpecifyInputNames(true); err != nil {
		t.Fatalf("failed to switch specify input names: %v", err)
	}

	predictor, err := NewPredictor(config)
	if err != nil {
		t.Fatalf("failed to create predictor: %v", err)
	}
	defer func() {
		_ = predictor.Destroy()
	}()

	inputNum, err := predictor.InputNum()
	if err != nil {
		t.Fatalf("failed to read input count: %v", err)
	}
	if inputNum <= 0 {
		t.Fatalf("expected at least one model input, got %d", inputNum)
	}

	name, err := predictor.InputName(0)
	if err != nil {
		t.Fatalf("failed to read first input name: %v", err)
	}
	t.Logf("model expects %d inputs, first is %q", inputNum, name)
}
