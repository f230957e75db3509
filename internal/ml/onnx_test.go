package ml

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// ONNX protobuf element types
const (
	onnxFloat = 1
	onnxInt64 = 7
)

func onnxLibrary(t *testing.T) string {
	t.Helper()
	path := os.Getenv("ONNX_LIBRARY_PATH")
	if path == "" {
		t.Skip("Skipping onnxruntime test. Set ONNX_LIBRARY_PATH to run")
	}
	return path
}

func pbString(num protowire.Number, s string) []byte {
	b := protowire.AppendTag(nil, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func pbInt(num protowire.Number, v int64) []byte {
	b := protowire.AppendTag(nil, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func pbMessage(num protowire.Number, parts ...[]byte) []byte {
	var body []byte
	for _, p := range parts {
		body = append(body, p...)
	}
	b := protowire.AppendTag(nil, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func pbNode(op string, in, out []string, attrs ...[]byte) []byte {
	var parts [][]byte
	for _, s := range in {
		parts = append(parts, pbString(1, s))
	}
	for _, s := range out {
		parts = append(parts, pbString(2, s))
	}
	parts = append(parts, pbString(4, op))
	parts = append(parts, attrs...)
	return pbMessage(1, parts...)
}

func pbIntAttr(name string, v int64) []byte {
	return pbMessage(5, pbString(1, name), pbInt(3, v), pbInt(20, 2))
}

func pbValueInfo(num protowire.Number, name string, elem int64, dims ...int64) []byte {
	var shape [][]byte
	for _, d := range dims {
		shape = append(shape, pbMessage(1, pbInt(1, d)))
	}
	tensorType := pbMessage(1, pbInt(1, elem), pbMessage(2, shape...))
	return pbMessage(num, pbString(1, name), pbMessage(2, tensorType))
}

// softmaxModel serializes input[1,n] -> MatMul(W) -> Softmax -> probabilities
// with ArgMax(probabilities) as the label output.
func softmaxModel(numInputs, numClasses int) []byte {
	var weights []byte
	for i := 0; i < numInputs; i++ {
		for k := 0; k < numClasses; k++ {
			weights = protowire.AppendFixed32(weights, math.Float32bits(float32(i*(k+1))/10))
		}
	}
	w := pbMessage(5,
		pbInt(1, int64(numInputs)), pbInt(1, int64(numClasses)),
		pbInt(2, onnxFloat),
		protowire.AppendBytes(protowire.AppendTag(nil, 4, protowire.BytesType), weights),
		pbString(8, "W"),
	)

	graph := pbMessage(7,
		pbNode("MatMul", []string{"input", "W"}, []string{"logits"}),
		pbNode("Softmax", []string{"logits"}, []string{"probabilities"}, pbIntAttr("axis", 1)),
		pbNode("ArgMax", []string{"probabilities"}, []string{"label"}, pbIntAttr("axis", 1), pbIntAttr("keepdims", 0)),
		pbString(2, "softmax"),
		w,
		pbValueInfo(11, "input", onnxFloat, 1, int64(numInputs)),
		pbValueInfo(12, "label", onnxInt64, 1),
		pbValueInfo(12, "probabilities", onnxFloat, 1, int64(numClasses)),
	)

	var model []byte
	model = append(model, pbInt(1, 7)...)
	model = append(model, pbString(2, "crimewatch-test")...)
	model = append(model, graph...)
	model = append(model, pbMessage(8, pbInt(2, 13))...)
	return model
}

func loadSoftmax(t *testing.T, numClasses int) *ONNXClassifier {
	t.Helper()
	opts := DefaultONNXOptions()
	opts.LibraryPath = onnxLibrary(t)

	clf, err := LoadONNXClassifier(softmaxModel(len(FeatureOrder), numClasses), numClasses, opts)
	require.NoError(t, err)
	t.Cleanup(clf.Destroy)
	return clf
}

func TestONNXClassifier_DistributionWidth(t *testing.T) {
	clf := loadSoftmax(t, 4)
	assert.Equal(t, 4, clf.NumClasses())

	p, err := clf.PredictProba([]float64{1, 0, 2, 0, 1, 3})
	require.NoError(t, err)
	require.Len(t, p, 4)

	var sum float64
	for _, v := range p {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	// the last class carries the largest weights
	assert.Equal(t, 3, argMax(p))
}

func TestONNXClassifier_RejectsWrongWidth(t *testing.T) {
	clf := loadSoftmax(t, 3)

	for _, n := range []int{0, len(FeatureOrder) - 1, len(FeatureOrder) + 1} {
		_, err := clf.PredictProba(make([]float64, n))
		require.Error(t, err, "width %d", n)
		assert.Contains(t, err.Error(), "want 6")
	}
}

func TestONNXClassifier_WithoutSession(t *testing.T) {
	_, err := LoadONNXClassifier(nil, 0, DefaultONNXOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid class count")

	var clf ONNXClassifier
	_, err = clf.PredictProba(make([]float64, len(FeatureOrder)))
	require.Error(t, err)

	clf.Destroy()
}

func argMax(p []float64) int {
	best := 0
	for i, v := range p {
		if v > p[best] {
			best = i
		}
	}
	return best
}
