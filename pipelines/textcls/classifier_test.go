package textcls

import (
	"math"
	"strings"
	"testing"

	"github.com/amikos-tech/pure-paddle/paddle"
)

func TestSoftmaxRow(t *testing.T) {
	probabilities := softmaxRow([]float32{1, 2, 3})

	var total float64
	for _, p := range probabilities {
		total += float64(p)
	}
	if math.Abs(total-1) > 1e-6 {
		t.Fatalf("softmax probabilities sum to %f, want 1", total)
	}
	if !(probabilities[2] > probabilities[1] && probabilities[1] > probabilities[0]) {
		t.Fatalf("softmax ordering not preserved: %v", probabilities)
	}
}

func TestSoftmaxRowLargeLogits(t *testing.T) {
	probabilities := softmaxRow([]float32{1000, 1001})
	for i, p := range probabilities {
		if math.IsNaN(float64(p)) || math.IsInf(float64(p), 0) {
			t.Fatalf("softmax overflowed at %d: %v", i, probabilities)
		}
	}
	if probabilities[1] <= probabilities[0] {
		t.Fatalf("softmax ordering not preserved: %v", probabilities)
	}
}

func TestSoftmaxRowUniform(t *testing.T) {
	probabilities := softmaxRow([]float32{5, 5, 5, 5})
	for i, p := range probabilities {
		if math.Abs(float64(p)-0.25) > 1e-6 {
			t.Fatalf("unexpected probability at %d: got %f, want 0.25", i, p)
		}
	}
}

func TestDeriveAttentionMask(t *testing.T) {
	dst := make([]int64, 4)
	deriveAttentionMask(dst, []int64{101, 2023, 0, 0})

	expected := []int64{1, 1, 0, 0}
	for i := range expected {
		if dst[i] != expected[i] {
			t.Fatalf("unexpected attention mask at %d: got %d, want %d", i, dst[i], expected[i])
		}
	}
}

func TestFillUint32AsInt64TruncatesToDestinationLength(t *testing.T) {
	dst := make([]int64, 3)
	fillUint32AsInt64(dst, []uint32{1, 2, 3, 4, 5})

	expected := []int64{1, 2, 3}
	for i := range expected {
		if dst[i] != expected[i] {
			t.Fatalf("unexpected dst[%d]: got %d, want %d", i, dst[i], expected[i])
		}
	}
}

func TestPredictionsFromLogits(t *testing.T) {
	classifier := &Classifier{labels: []string{"negative", "positive"}}

	predictions, err := classifier.predictionsFromLogits(
		[]float32{2, -1, -3, 4},
		paddle.NewShape(2, 2),
		2,
	)
	if err != nil {
		t.Fatalf("predictionsFromLogits failed: %v", err)
	}
	if len(predictions) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(predictions))
	}

	if predictions[0].Index != 0 || predictions[0].Label != "negative" {
		t.Fatalf("unexpected first prediction: %+v", predictions[0])
	}
	if predictions[1].Index != 1 || predictions[1].Label != "positive" {
		t.Fatalf("unexpected second prediction: %+v", predictions[1])
	}

	for i, prediction := range predictions {
		var total float64
		for _, p := range prediction.Probabilities {
			total += float64(p)
		}
		if math.Abs(total-1) > 1e-6 {
			t.Fatalf("prediction %d probabilities sum to %f, want 1", i, total)
		}
	}
}

func TestPredictionsFromLogitsWithoutLabels(t *testing.T) {
	classifier := &Classifier{}

	predictions, err := classifier.predictionsFromLogits([]float32{0, 1}, paddle.NewShape(1, 2), 1)
	if err != nil {
		t.Fatalf("predictionsFromLogits failed: %v", err)
	}
	if predictions[0].Index != 1 || predictions[0].Label != "" {
		t.Fatalf("unexpected prediction: %+v", predictions[0])
	}
}

func TestPredictionsFromLogitsValidation(t *testing.T) {
	classifier := &Classifier{labels: []string{"a", "b", "c"}}

	_, err := classifier.predictionsFromLogits([]float32{1, 2}, paddle.NewShape(1, 2, 1), 1)
	if err == nil || !strings.Contains(err.Error(), "unexpected output shape") {
		t.Fatalf("expected output shape error, got: %v", err)
	}

	_, err = classifier.predictionsFromLogits([]float32{1, 2, 3}, paddle.NewShape(1, 2), 1)
	if err == nil || !strings.Contains(err.Error(), "logits length mismatch") {
		t.Fatalf("expected logits length error, got: %v", err)
	}

	_, err = classifier.predictionsFromLogits([]float32{1, 2}, paddle.NewShape(1, 2), 1)
	if err == nil || !strings.Contains(err.Error(), "model has 2 classes") {
		t.Fatalf("expected label count error, got: %v", err)
	}
}

func TestOptionValidation(t *testing.T) {
	tests := []struct {
		name    string
		option  Option
		wantErr string
	}{
		{name: "zero sequence length", option: WithSequenceLength(0), wantErr: "sequence length must be > 0"},
		{name: "negative sequence length", option: WithSequenceLength(-1), wantErr: "sequence length must be > 0"},
		{name: "empty tokenizer path", option: WithTokenizerLibraryPath(""), wantErr: "cannot be empty"},
		{name: "empty input name", option: WithInputNames("", "attention_mask"), wantErr: "cannot be empty"},
		{name: "empty mask name", option: WithInputNames("input_ids", ""), wantErr: "cannot be empty"},
		{name: "empty labels", option: WithLabels(nil), wantErr: "labels cannot be empty"},
		{name: "zero threads", option: WithCPUThreads(0), wantErr: "thread count must be > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			err := tt.option(&cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestWithLabelsCopiesInput(t *testing.T) {
	labels := []string{"a", "b"}
	cfg := defaultConfig()
	if err := WithLabels(labels)(&cfg); err != nil {
		t.Fatalf("WithLabels failed: %v", err)
	}

	labels[0] = "mutated"
	if cfg.labels[0] != "a" {
		t.Fatalf("labels were not copied: %v", cfg.labels)
	}
}

func TestNewClassifierValidation(t *testing.T) {
	_, err := NewClassifier("", "", "tokenizer.json")
	if err == nil || !strings.Contains(err.Error(), "model dir cannot be empty") {
		t.Fatalf("expected model dir error, got: %v", err)
	}

	_, err = NewClassifier("model", "", "")
	if err == nil || !strings.Contains(err.Error(), "tokenizer path cannot be empty") {
		t.Fatalf("expected tokenizer path error, got: %v", err)
	}

	_, err = NewClassifier("does-not-exist", "", "also-does-not-exist")
	if err == nil || !strings.Contains(err.Error(), "is not usable") {
		t.Fatalf("expected unusable path error, got: %v", err)
	}
}

func TestClassifyNilClassifier(t *testing.T) {
	var classifier *Classifier
	_, err := classifier.ClassifyOne("test")
	if err == nil || !strings.Contains(err.Error(), "classifier is nil") {
		t.Fatalf("expected nil classifier error, got: %v", err)
	}
}

func TestCloseNilClassifier(t *testing.T) {
	var classifier *Classifier
	if err := classifier.Close(); err != nil {
		t.Fatalf("Close on nil classifier returned error: %v", err)
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	classifier := &Classifier{buffersByBatch: map[int]*batchBuffers{}}
	predictions, err := classifier.Classify(nil)
	if err != nil {
		t.Fatalf("Classify on empty input failed: %v", err)
	}
	if len(predictions) != 0 {
		t.Fatalf("expected no predictions, got %d", len(predictions))
	}
}
