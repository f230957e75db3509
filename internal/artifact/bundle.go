package artifact

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"crimewatch/internal/ml"
	"crimewatch/pkg/errors"
)

// Classifier blob formats
const (
	FormatForest = "forest-gob"
	FormatONNX   = "onnx"
)

// ErrNotFound is returned by Store.Load when no bundle has been published
var ErrNotFound = errors.Wrap(errors.ErrNotFound, "model bundle")

// Store persists model bundles. Save must publish atomically: a concurrent
// Load observes either the previous bundle or the new one, never a mix.
type Store interface {
	Load(ctx context.Context) (*Bundle, error)
	Save(ctx context.Context, b *Bundle) error
}

// TrainingSummary is the headline of the training run stored with a bundle
type TrainingSummary struct {
	TrainRows     int      `json:"train_rows"`
	TestRows      int      `json:"test_rows"`
	SelectedTrees int      `json:"selected_trees"`
	HoldoutF1     float64  `json:"holdout_f1"`
	CVMeanF1      float64  `json:"cv_mean_f1"`
	CVStdF1       float64  `json:"cv_std_f1"`
	PrunedLabels  []string `json:"pruned_labels,omitempty"`
}

// Manifest describes a bundle
type Manifest struct {
	Version          string           `json:"version"`
	CreatedAt        time.Time        `json:"created_at"`
	ContractHash     string           `json:"contract_hash"`
	ClassifierFormat string           `json:"classifier_format"`
	NumClasses       int              `json:"num_classes"`
	FeatureOrder     []string         `json:"feature_order"`
	Training         *TrainingSummary `json:"training,omitempty"`
}

// Compatible reports whether the bundle was built for the current feature contract
func (m Manifest) Compatible() bool {
	return m.ContractHash == ml.ContractHash()
}

// Bundle is the unit of deployment: classifier and encoders trained together.
// RawClassifier keeps the serialized classifier for formats the process cannot
// re-encode itself (ONNX).
type Bundle struct {
	Manifest      Manifest
	Classifier    ml.Classifier
	Encoders      *ml.EncoderSet
	RawClassifier []byte
}

// NewForestBundle wraps a freshly trained forest
func NewForestBundle(forest *ml.Forest, encoders *ml.EncoderSet, summary *TrainingSummary) *Bundle {
	return &Bundle{
		Manifest:   newManifest(FormatForest, encoders.Label.Len(), summary),
		Classifier: forest,
		Encoders:   encoders,
	}
}

// NewONNXBundle packages an externally trained ONNX model with its encoders
func NewONNXBundle(model []byte, encoders *ml.EncoderSet) *Bundle {
	return &Bundle{
		Manifest:      newManifest(FormatONNX, encoders.Label.Len(), nil),
		Encoders:      encoders,
		RawClassifier: model,
	}
}

func newManifest(format string, numClasses int, summary *TrainingSummary) Manifest {
	return Manifest{
		Version:          uuid.NewString(),
		CreatedAt:        time.Now().UTC(),
		ContractHash:     ml.ContractHash(),
		ClassifierFormat: format,
		NumClasses:       numClasses,
		FeatureOrder:     ml.FeatureOrder,
		Training:         summary,
	}
}

// Codec converts bundles to and from their three named blobs.
type Codec struct {
	ONNX ml.ONNXOptions
}

type blobs struct {
	manifest   []byte
	classifier []byte
	encoders   []byte
}

func (c Codec) encode(b *Bundle) (blobs, error) {
	if b == nil || b.Encoders == nil {
		return blobs{}, errors.Wrap(errors.ErrInvalidInput, "bundle without encoders")
	}
	if b.Manifest.Version == "" {
		return blobs{}, errors.Wrap(errors.ErrInvalidInput, "bundle without version")
	}

	var out blobs
	var err error
	switch b.Manifest.ClassifierFormat {
	case FormatForest:
		forest, ok := b.Classifier.(*ml.Forest)
		if !ok {
			return blobs{}, errors.Newf("format %s needs a forest classifier, got %T", FormatForest, b.Classifier)
		}
		if out.classifier, err = forest.Encode(); err != nil {
			return blobs{}, err
		}
	case FormatONNX:
		if len(b.RawClassifier) == 0 {
			return blobs{}, errors.Wrap(errors.ErrInvalidInput, "onnx bundle without model bytes")
		}
		out.classifier = b.RawClassifier
	default:
		return blobs{}, errors.Newf("unknown classifier format %q", b.Manifest.ClassifierFormat)
	}

	if out.manifest, err = json.MarshalIndent(b.Manifest, "", "  "); err != nil {
		return blobs{}, errors.Wrap(err, "encode manifest")
	}
	if out.encoders, err = json.Marshal(b.Encoders); err != nil {
		return blobs{}, errors.Wrap(err, "encode encoders")
	}
	return out, nil
}

func (c Codec) decode(in blobs) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(in.manifest, &b.Manifest); err != nil {
		return nil, errors.Wrap(err, "decode manifest")
	}

	var enc ml.EncoderSet
	if err := json.Unmarshal(in.encoders, &enc); err != nil {
		return nil, errors.Wrap(err, "decode encoders")
	}
	if err := enc.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid encoders")
	}
	b.Encoders = &enc

	if b.Manifest.NumClasses != enc.Label.Len() {
		return nil, errors.Newf("manifest declares %d classes, label encoder has %d", b.Manifest.NumClasses, enc.Label.Len())
	}

	switch b.Manifest.ClassifierFormat {
	case FormatForest:
		forest, err := ml.DecodeForest(in.classifier)
		if err != nil {
			return nil, err
		}
		b.Classifier = forest
	case FormatONNX:
		model, err := ml.LoadONNXClassifier(in.classifier, b.Manifest.NumClasses, c.ONNX)
		if err != nil {
			return nil, err
		}
		b.Classifier = model
		b.RawClassifier = in.classifier
	default:
		return nil, errors.Newf("unknown classifier format %q", b.Manifest.ClassifierFormat)
	}

	if b.Classifier.NumClasses() != b.Manifest.NumClasses {
		return nil, errors.Newf("classifier has %d classes, manifest %d", b.Classifier.NumClasses(), b.Manifest.NumClasses)
	}
	return &b, nil
}
