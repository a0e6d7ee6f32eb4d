// Package textcls provides local text classification on top of the Paddle
// inference binding and the pure-tokenizers HuggingFace tokenizer.
//
// The caller must initialize the runtime via paddle.SetSharedLibraryPath and
// paddle.InitializeEnvironment (or paddle.InitializeEnvironmentWithBootstrap)
// before calling Classify.
package textcls

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	tokenizers "github.com/amikos-tech/pure-tokenizers"

	"github.com/amikos-tech/pure-paddle/internal/nativeutil"
	"github.com/amikos-tech/pure-paddle/paddle"
)

// DefaultSequenceLength matches the common ERNIE-style classification path.
const DefaultSequenceLength = 128

const (
	defaultInputIDsName      = "input_ids"
	defaultAttentionMaskName = "attention_mask"
)

// Option customizes classifier initialization.
type Option func(*config) error

type config struct {
	sequenceLength       int
	tokenizerLibraryPath string
	inputIDsName         string
	attentionMaskName    string
	labels               []string
	cpuThreads           int
}

func defaultConfig() config {
	return config{
		sequenceLength:    DefaultSequenceLength,
		inputIDsName:      defaultInputIDsName,
		attentionMaskName: defaultAttentionMaskName,
	}
}

// WithSequenceLength sets truncation and fixed padding length.
func WithSequenceLength(length int) Option {
	return func(cfg *config) error {
		if length <= 0 {
			return fmt.Errorf("sequence length must be > 0, got %d", length)
		}
		cfg.sequenceLength = length
		return nil
	}
}

// WithTokenizerLibraryPath sets the explicit pure-tokenizers shared library path.
func WithTokenizerLibraryPath(path string) Option {
	return func(cfg *config) error {
		if path == "" {
			return fmt.Errorf("tokenizer library path cannot be empty")
		}
		cfg.tokenizerLibraryPath = path
		return nil
	}
}

// WithInputNames overrides the model's feed names.
func WithInputNames(inputIDsName, attentionMaskName string) Option {
	return func(cfg *config) error {
		if inputIDsName == "" || attentionMaskName == "" {
			return fmt.Errorf("input names cannot be empty")
		}
		cfg.inputIDsName = inputIDsName
		cfg.attentionMaskName = attentionMaskName
		return nil
	}
}

// WithLabels attaches class labels to prediction indices. The label count
// must match the model's class axis at inference time.
func WithLabels(labels []string) Option {
	return func(cfg *config) error {
		if len(labels) == 0 {
			return fmt.Errorf("labels cannot be empty")
		}
		cfg.labels = append([]string(nil), labels...)
		return nil
	}
}

// WithCPUThreads sets the math library thread count of the predictor.
func WithCPUThreads(threads int) Option {
	return func(cfg *config) error {
		if threads <= 0 {
			return fmt.Errorf("thread count must be > 0, got %d", threads)
		}
		cfg.cpuThreads = threads
		return nil
	}
}

// Prediction is one classified input text.
type Prediction struct {
	// Index is the argmax class index.
	Index int
	// Label is the class label for Index, empty when no labels were configured.
	Label string
	// Probabilities holds the softmax distribution over all classes.
	Probabilities []float32
}

// Classifier runs a fixed-length text classification model.
type Classifier struct {
	sequenceLength int
	tokenizer      *tokenizers.Tokenizer
	labels         []string
	inputIDsName   string
	maskName       string

	analysisConfig *paddle.AnalysisConfig
	predictor      *paddle.Predictor
	buffersByBatch map[int]*batchBuffers
	runMu          sync.Mutex
}

type batchBuffers struct {
	inputIDs      []int64
	attentionMask []int64

	inputIDsTensor *paddle.Tensor[int64]
	maskTensor     *paddle.Tensor[int64]
}

// NewClassifier creates a classifier over a local inference model.
//
// modelDir must point to the exported inference model directory; paramsPath
// may be empty for models with per-variable parameter files. tokenizerPath
// must point to the local tokenizer.json file.
func NewClassifier(modelDir, paramsPath, tokenizerPath string, opts ...Option) (_ *Classifier, err error) {
	if modelDir == "" {
		return nil, fmt.Errorf("model dir cannot be empty")
	}
	if tokenizerPath == "" {
		return nil, fmt.Errorf("tokenizer path cannot be empty")
	}
	if _, statErr := os.Stat(modelDir); statErr != nil {
		return nil, fmt.Errorf("model dir %q is not usable: %w", modelDir, statErr)
	}
	if _, statErr := os.Stat(tokenizerPath); statErr != nil {
		return nil, fmt.Errorf("tokenizer path %q is not usable: %w", tokenizerPath, statErr)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	tokenizerOpts := []tokenizers.TokenizerOption{
		tokenizers.WithTruncation(
			uintptr(cfg.sequenceLength),
			tokenizers.TruncationDirectionRight,
			tokenizers.TruncationStrategyLongestFirst,
		),
		tokenizers.WithPadding(true, tokenizers.PaddingStrategy{
			Tag:       tokenizers.PaddingStrategyFixed,
			FixedSize: uintptr(cfg.sequenceLength),
		}),
	}
	if cfg.tokenizerLibraryPath != "" {
		tokenizerOpts = append(tokenizerOpts, tokenizers.WithLibraryPath(cfg.tokenizerLibraryPath))
	}

	tokenizer, err := tokenizers.FromFile(tokenizerPath, tokenizerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tokenizer.Close()
		}
	}()

	analysisConfig, predictor, err := newPredictor(modelDir, paramsPath, cfg.cpuThreads)
	if err != nil {
		return nil, err
	}

	return &Classifier{
		sequenceLength: cfg.sequenceLength,
		tokenizer:      tokenizer,
		labels:         cfg.labels,
		inputIDsName:   cfg.inputIDsName,
		maskName:       cfg.attentionMaskName,
		analysisConfig: analysisConfig,
		predictor:      predictor,
		buffersByBatch: make(map[int]*batchBuffers),
	}, nil
}

func newPredictor(modelDir, paramsPath string, cpuThreads int) (_ *paddle.AnalysisConfig, _ *paddle.Predictor, err error) {
	analysisConfig, err := paddle.NewAnalysisConfig()
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err != nil {
			_ = analysisConfig.Destroy()
		}
	}()

	if err = analysisConfig.SetModel(modelDir, paramsPath); err != nil {
		return nil, nil, err
	}
	if err = analysisConfig.DisableGPU(); err != nil {
		return nil, nil, err
	}
	if err = analysisConfig.SwitchUseFeedFetchOps(false); err != nil {
		return nil, nil, err
	}
	if err = analysisConfig.SwitchSpecifyInputNames(true); err != nil {
		return nil, nil, err
	}
	if err = analysisConfig.EnableMemoryOptim(); err != nil {
		return nil, nil, err
	}
	if cpuThreads > 0 {
		if err = analysisConfig.SetCPUMathLibraryNumThreads(cpuThreads); err != nil {
			return nil, nil, err
		}
	}

	predictor, err := paddle.NewPredictor(analysisConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create predictor: %w", err)
	}
	return analysisConfig, predictor, nil
}

// Close releases the tokenizer and all native predictor resources.
func (c *Classifier) Close() error {
	if c == nil {
		return nil
	}

	c.runMu.Lock()
	defer c.runMu.Unlock()

	var err error

	for batchSize, buffers := range c.buffersByBatch {
		if destroyErr := buffers.destroy(); destroyErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to destroy batch-%d input tensors: %w", batchSize, destroyErr))
		}
	}
	c.buffersByBatch = nil

	if destroyErr := nativeutil.DestroyAll(c.predictor, c.analysisConfig); destroyErr != nil {
		err = errors.Join(err, destroyErr)
	}
	c.predictor = nil
	c.analysisConfig = nil

	if c.tokenizer != nil {
		if closeErr := c.tokenizer.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		c.tokenizer = nil
	}

	return err
}

// Classify tokenizes the texts, runs inference and returns one prediction
// per input.
func (c *Classifier) Classify(texts []string) ([]Prediction, error) {
	if c == nil {
		return nil, fmt.Errorf("classifier is nil")
	}
	if len(texts) == 0 {
		return []Prediction{}, nil
	}

	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.tokenizer == nil || c.buffersByBatch == nil {
		return nil, fmt.Errorf("classifier has been closed")
	}
	if !paddle.IsInitialized() {
		return nil, fmt.Errorf("Paddle inference runtime not initialized: call paddle.SetSharedLibraryPath and paddle.InitializeEnvironment first")
	}

	buffers, err := c.buffersForBatchLocked(len(texts))
	if err != nil {
		return nil, err
	}

	if err := c.tokenizeInto(texts, buffers.inputIDs, buffers.attentionMask); err != nil {
		return nil, err
	}

	outputs, err := c.predictor.Run(
		[]paddle.RunnableTensor{buffers.inputIDsTensor, buffers.maskTensor},
		len(texts),
	)
	if err != nil {
		return nil, fmt.Errorf("classification inference failed: %w", err)
	}
	defer func() {
		resources := make([]nativeutil.Destroyer, len(outputs))
		for i, output := range outputs {
			resources[i] = output
		}
		_ = nativeutil.DestroyAll(resources...)
	}()

	if len(outputs) == 0 {
		return nil, fmt.Errorf("model produced no outputs")
	}

	logits, err := outputs[0].Float32s()
	if err != nil {
		return nil, fmt.Errorf("failed to read logits: %w", err)
	}
	outputShape, err := outputs[0].Shape()
	if err != nil {
		return nil, fmt.Errorf("failed to read output shape: %w", err)
	}

	return c.predictionsFromLogits(logits, outputShape, len(texts))
}

// ClassifyOne classifies a single text.
func (c *Classifier) ClassifyOne(text string) (Prediction, error) {
	predictions, err := c.Classify([]string{text})
	if err != nil {
		return Prediction{}, err
	}
	if len(predictions) != 1 {
		return Prediction{}, fmt.Errorf("unexpected prediction count: got %d, want 1", len(predictions))
	}
	return predictions[0], nil
}

func (c *Classifier) buffersForBatchLocked(batchSize int) (_ *batchBuffers, err error) {
	if buffers, ok := c.buffersByBatch[batchSize]; ok {
		return buffers, nil
	}

	totalTokens := batchSize * c.sequenceLength
	inputIDs := make([]int64, totalTokens)
	attentionMask := make([]int64, totalTokens)

	shape := paddle.NewShape(int64(batchSize), int64(c.sequenceLength))
	inputIDsTensor, err := paddle.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tensor: %w", c.inputIDsName, err)
	}
	defer func() {
		if err != nil {
			_ = inputIDsTensor.Destroy()
		}
	}()
	if err = inputIDsTensor.SetName(c.inputIDsName); err != nil {
		return nil, err
	}

	maskTensor, err := paddle.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tensor: %w", c.maskName, err)
	}
	if err = maskTensor.SetName(c.maskName); err != nil {
		_ = maskTensor.Destroy()
		return nil, err
	}

	buffers := &batchBuffers{
		inputIDs:       inputIDs,
		attentionMask:  attentionMask,
		inputIDsTensor: inputIDsTensor,
		maskTensor:     maskTensor,
	}
	c.buffersByBatch[batchSize] = buffers
	return buffers, nil
}

func (b *batchBuffers) destroy() error {
	if b == nil {
		return nil
	}
	err := nativeutil.DestroyAll(b.maskTensor, b.inputIDsTensor)
	b.inputIDs = nil
	b.attentionMask = nil
	b.inputIDsTensor = nil
	b.maskTensor = nil
	return err
}

func (c *Classifier) tokenizeInto(texts []string, inputIDs, attentionMask []int64) error {
	totalTokens := len(texts) * c.sequenceLength
	if len(inputIDs) != totalTokens || len(attentionMask) != totalTokens {
		return fmt.Errorf("token buffer length mismatch: got input_ids=%d attention_mask=%d, want %d",
			len(inputIDs), len(attentionMask), totalTokens)
	}

	clear(inputIDs)
	clear(attentionMask)

	for i, text := range texts {
		encoding, err := c.tokenizer.Encode(
			text,
			tokenizers.WithAddSpecialTokens(),
			tokenizers.WithReturnAttentionMask(),
		)
		if err != nil {
			return fmt.Errorf("failed to tokenize text %d: %w", i, err)
		}
		if encoding == nil {
			return fmt.Errorf("failed to tokenize text %d: empty tokenizer result", i)
		}

		rowStart := i * c.sequenceLength
		rowEnd := rowStart + c.sequenceLength
		fillUint32AsInt64(inputIDs[rowStart:rowEnd], encoding.IDs)

		if len(encoding.AttentionMask) > 0 {
			fillUint32AsInt64(attentionMask[rowStart:rowEnd], encoding.AttentionMask)
		} else {
			deriveAttentionMask(attentionMask[rowStart:rowEnd], inputIDs[rowStart:rowEnd])
		}
	}

	return nil
}

func (c *Classifier) predictionsFromLogits(logits []float32, outputShape paddle.Shape, batchSize int) ([]Prediction, error) {
	if len(outputShape) != 2 || int(outputShape[0]) != batchSize {
		return nil, fmt.Errorf("unexpected output shape %v for batch size %d", outputShape, batchSize)
	}
	classes := int(outputShape[1])
	if classes <= 0 || len(logits) != batchSize*classes {
		return nil, fmt.Errorf("logits length mismatch: got %d, want %d", len(logits), batchSize*classes)
	}
	if len(c.labels) > 0 && len(c.labels) != classes {
		return nil, fmt.Errorf("configured %d labels but model has %d classes", len(c.labels), classes)
	}

	predictions := make([]Prediction, batchSize)
	for row := 0; row < batchSize; row++ {
		probabilities := softmaxRow(logits[row*classes : (row+1)*classes])

		best := 0
		for i, p := range probabilities {
			if p > probabilities[best] {
				best = i
			}
		}

		prediction := Prediction{Index: best, Probabilities: probabilities}
		if len(c.labels) > 0 {
			prediction.Label = c.labels[best]
		}
		predictions[row] = prediction
	}
	return predictions, nil
}

func fillUint32AsInt64(dst []int64, src []uint32) {
	if len(dst) == 0 || len(src) == 0 {
		return
	}
	copyCount := len(dst)
	if len(src) < copyCount {
		copyCount = len(src)
	}
	for i := 0; i < copyCount; i++ {
		dst[i] = int64(src[i])
	}
}

func deriveAttentionMask(dst []int64, tokenIDs []int64) {
	for i := range dst {
		if tokenIDs[i] != 0 {
			dst[i] = 1
		}
	}
}

// softmaxRow computes a numerically stable softmax over one row of logits.
func softmaxRow(logits []float32) []float32 {
	probabilities := make([]float32, len(logits))

	maxLogit := float64(math.Inf(-1))
	for _, v := range logits {
		if float64(v) > maxLogit {
			maxLogit = float64(v)
		}
	}

	var denominator float64
	for i, v := range logits {
		e := math.Exp(float64(v) - maxLogit)
		probabilities[i] = float32(e)
		denominator += e
	}
	for i := range probabilities {
		probabilities[i] = float32(float64(probabilities[i]) / denominator)
	}
	return probabilities
}
