package ml

import (
	"sync"

	onnxruntime "github.com/yalue/onnxruntime_go"

	"crimewatch/pkg/errors"
)

// ONNXOptions names the graph tensors of an exported classifier.
type ONNXOptions struct {
	LibraryPath       string // onnxruntime shared library, empty uses the default lookup
	InputName         string
	LabelOutput       string
	ProbabilityOutput string
}

// DefaultONNXOptions matches a scikit-learn export with zipmap disabled
func DefaultONNXOptions() ONNXOptions {
	return ONNXOptions{
		InputName:         "input",
		LabelOutput:       "label",
		ProbabilityOutput: "probabilities",
	}
}

var envOnce sync.Once
var envErr error

func initONNXEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if onnxruntime.IsInitialized() {
			return
		}
		if libraryPath != "" {
			onnxruntime.SetSharedLibraryPath(libraryPath)
		}
		envErr = onnxruntime.InitializeEnvironment()
	})
	return envErr
}

// ONNXClassifier serves an externally exported model through onnxruntime.
type ONNXClassifier struct {
	session    *onnxruntime.DynamicAdvancedSession
	numClasses int
	numInputs  int
}

var _ Classifier = (*ONNXClassifier)(nil)

// LoadONNXClassifier creates a session from the serialized model bytes.
func LoadONNXClassifier(model []byte, numClasses int, opts ONNXOptions) (*ONNXClassifier, error) {
	if numClasses <= 0 {
		return nil, errors.Newf("onnx classifier: invalid class count %d", numClasses)
	}
	if err := initONNXEnvironment(opts.LibraryPath); err != nil {
		return nil, errors.Wrap(err, "failed to initialize ONNX runtime")
	}

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}
	defer options.Destroy()

	session, err := onnxruntime.NewDynamicAdvancedSessionWithONNXData(model,
		[]string{opts.InputName}, []string{opts.LabelOutput, opts.ProbabilityOutput}, options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load ONNX model")
	}

	return &ONNXClassifier{
		session:    session,
		numClasses: numClasses,
		numInputs:  len(FeatureOrder),
	}, nil
}

// NumClasses implements Classifier
func (c *ONNXClassifier) NumClasses() int { return c.numClasses }

// PredictProba runs one inference with a [1, n] float32 input
func (c *ONNXClassifier) PredictProba(x []float64) ([]float64, error) {
	if c.session == nil {
		return nil, errors.New("model session is nil")
	}
	if len(x) != c.numInputs {
		return nil, errors.Newf("feature vector has %d values, want %d", len(x), c.numInputs)
	}

	input := make([]float32, len(x))
	for i, v := range x {
		input[i] = float32(v)
	}
	inputTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(1, int64(len(input))), input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create input tensor")
	}
	defer inputTensor.Destroy()

	labelTensor, err := onnxruntime.NewEmptyTensor[int64](onnxruntime.NewShape(1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create label tensor")
	}
	defer labelTensor.Destroy()

	probTensor, err := onnxruntime.NewEmptyTensor[float32](onnxruntime.NewShape(1, int64(c.numClasses)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create probabilities tensor")
	}
	defer probTensor.Destroy()

	err = c.session.Run([]onnxruntime.Value{inputTensor}, []onnxruntime.Value{labelTensor, probTensor})
	if err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}

	raw := probTensor.GetData()
	out := make([]float64, len(raw))
	for i, p := range raw {
		out[i] = float64(p)
	}
	return out, nil
}

// Destroy releases the session
func (c *ONNXClassifier) Destroy() {
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
}
