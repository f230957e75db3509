package prediction

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"crimewatch/internal/artifact"
	"crimewatch/internal/domain/prediction"
	"crimewatch/internal/metrics"
	"crimewatch/internal/ml"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

// TopK is the number of ranked crime types in a result
const TopK = 3

// Input is one prediction request. Values are raw caller tokens.
type Input struct {
	City      string
	AgeGroup  string
	Gender    string
	TimeOfDay string
	Month     string
	DayOfWeek string
}

// tokens returns the trimmed inputs in ml.FeatureOrder
func (in Input) tokens() []string {
	return []string{
		strings.TrimSpace(in.City),
		strings.TrimSpace(in.AgeGroup),
		strings.TrimSpace(in.Gender),
		strings.TrimSpace(in.TimeOfDay),
		strings.TrimSpace(in.Month),
		strings.TrimSpace(in.DayOfWeek),
	}
}

// CrimeProbability is one ranked entry
type CrimeProbability struct {
	CrimeType   string  `json:"crime_type"`
	Probability float64 `json:"probability"`
}

// Result is a successful prediction
type Result struct {
	PredictedCrimeType string             `json:"predicted_crime_type"`
	TopCrimes          []CrimeProbability `json:"top_crimes"`
	Probabilities      map[string]float64 `json:"probabilities"`
	Confidence         float64            `json:"confidence"`
	BundleVersion      string             `json:"model_version"`
}

// Recorder receives successful predictions for auditing
type Recorder interface {
	Record(ctx context.Context, entry prediction.Log)
}

// Service maps six categorical inputs to a ranked crime-type distribution
type Service struct {
	cache    *BundleCache
	recorder Recorder
	log      *logger.Logger
}

// NewService creates a predictor. recorder may be nil.
func NewService(cache *BundleCache, recorder Recorder, log *logger.Logger) *Service {
	return &Service{
		cache:    cache,
		recorder: recorder,
		log:      log.With("service", "prediction"),
	}
}

// Predict scores one input against the cached bundle.
//
// Errors: ErrModelUnavailable when no compatible bundle can be loaded,
// *errors.UnknownCategoryError for the first field outside its vocabulary,
// ErrInferenceFailure when the classifier misbehaves.
func (s *Service) Predict(ctx context.Context, in Input) (result *Result, err error) {
	start := time.Now()
	defer func() { metrics.RecordPrediction(time.Since(start), err) }()

	bundle, err := s.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	tokens := in.tokens()
	vec, err := bundle.Encoders.Encode(tokens)
	if err != nil {
		return nil, err
	}

	probs, err := s.infer(bundle, vec)
	if err != nil {
		return nil, err
	}

	result, err = buildResult(bundle, probs)
	if err != nil {
		s.log.Errorw("Failed to decode prediction", "error", err, "version", bundle.Manifest.Version)
		return nil, errors.ErrInferenceFailure
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, prediction.Log{
			Timestamp:     start.UTC(),
			BundleVersion: bundle.Manifest.Version,
			City:          tokens[0],
			AgeGroup:      tokens[1],
			Gender:        tokens[2],
			TimeOfDay:     tokens[3],
			Month:         tokens[4],
			DayOfWeek:     tokens[5],
			Predicted:     result.PredictedCrimeType,
			Confidence:    result.Confidence,
			LatencyMicros: uint32(time.Since(start).Microseconds()),
		})
	}
	return result, nil
}

// infer runs the classifier, converting panics and malformed output into
// ErrInferenceFailure. Details are logged, never returned.
func (s *Service) infer(bundle *artifact.Bundle, vec []float64) (probs []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Classifier panicked", "panic", fmt.Sprint(r), "version", bundle.Manifest.Version)
			probs, err = nil, errors.ErrInferenceFailure
		}
	}()

	probs, err = bundle.Classifier.PredictProba(vec)
	if err != nil {
		s.log.Errorw("Classifier failed", "error", err, "version", bundle.Manifest.Version)
		return nil, errors.ErrInferenceFailure
	}
	if want := bundle.Encoders.Label.Len(); len(probs) != want {
		s.log.Errorw("Classifier returned wrong distribution width",
			"got", len(probs), "want", want, "version", bundle.Manifest.Version)
		return nil, errors.ErrInferenceFailure
	}
	for _, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			s.log.Errorw("Classifier returned invalid probability", "value", p, "version", bundle.Manifest.Version)
			return nil, errors.ErrInferenceFailure
		}
	}
	return probs, nil
}

// Rank returns label indices ordered by probability descending; equal
// probabilities keep ascending index order.
func Rank(probs []float64, k int) []int {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

func buildResult(bundle *artifact.Bundle, probs []float64) (*Result, error) {
	ranked := Rank(probs, TopK)
	res := &Result{
		TopCrimes:     make([]CrimeProbability, 0, len(ranked)),
		Probabilities: make(map[string]float64, len(ranked)),
		BundleVersion: bundle.Manifest.Version,
	}
	for _, code := range ranked {
		label, err := bundle.Encoders.Label.Decode(code)
		if err != nil {
			return nil, err
		}
		res.TopCrimes = append(res.TopCrimes, CrimeProbability{CrimeType: label, Probability: probs[code]})
		res.Probabilities[label] = probs[code]
	}
	res.PredictedCrimeType = res.TopCrimes[0].CrimeType

	for _, p := range probs {
		res.Confidence = math.Max(res.Confidence, p)
	}
	return res, nil
}

// Vocabulary lists the accepted tokens per field of the loaded bundle
func (s *Service) Vocabulary(ctx context.Context) (map[string][]string, error) {
	bundle, err := s.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(ml.FeatureOrder)+1)
	for _, name := range ml.FeatureOrder {
		out[name] = bundle.Encoders.Feature(name).Classes()
	}
	out[ml.LabelField] = bundle.Encoders.Label.Classes()
	return out, nil
}
