package ml

import (
	"bytes"
	"context"
	"encoding/gob"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"crimewatch/pkg/errors"
)

// Classifier scores one encoded feature vector into a distribution over label codes
type Classifier interface {
	PredictProba(x []float64) ([]float64, error)
	NumClasses() int
}

// ForestParams configures a bagged forest
type ForestParams struct {
	NumTrees       int
	MaxFeatures    int // 0 selects floor(sqrt(num features))
	MaxDepth       int
	MinSamplesLeaf int
	BalancedWeight bool
	Seed           int64
	Workers        int // 0 selects GOMAXPROCS
}

// Forest is a random forest of CART trees averaged by leaf distribution.
type Forest struct {
	Trees       []*Tree
	Classes     int
	NumFeatures int
}

var _ Classifier = (*Forest)(nil)

// FitForest trains params.NumTrees trees on bootstrap samples of (x, y).
// Tree i draws from a generator seeded with Seed+i, so the result does not
// depend on scheduling.
func FitForest(ctx context.Context, x [][]float64, y []int, numClasses int, params ForestParams) (*Forest, error) {
	if len(x) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "fit forest: no samples")
	}
	if len(x) != len(y) {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "fit forest: %d rows, %d labels", len(x), len(y))
	}
	if params.NumTrees <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "fit forest: num trees %d", params.NumTrees)
	}

	nFeatures := len(x[0])
	cards := make([]int, nFeatures)
	for _, row := range x {
		if len(row) != nFeatures {
			return nil, errors.Wrap(errors.ErrInvalidInput, "fit forest: ragged feature matrix")
		}
		for f, v := range row {
			if v < 0 || v != math.Trunc(v) {
				return nil, errors.Wrapf(errors.ErrInvalidInput, "fit forest: feature %d value %v is not a code", f, v)
			}
			cards[f] = max(cards[f], int(v)+1)
		}
	}
	for _, label := range y {
		if label < 0 || label >= numClasses {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "fit forest: label %d out of range", label)
		}
	}

	classWeight := ClassWeights(y, numClasses, params.BalancedWeight)

	treeParams := TreeParams{
		MaxFeatures:    params.MaxFeatures,
		MaxDepth:       params.MaxDepth,
		MinSamplesLeaf: params.MinSamplesLeaf,
	}
	if treeParams.MaxFeatures <= 0 {
		treeParams.MaxFeatures = max(1, int(math.Sqrt(float64(nFeatures))))
	}

	workers := params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	forest := &Forest{
		Trees:       make([]*Tree, params.NumTrees),
		Classes:     numClasses,
		NumFeatures: nFeatures,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range params.NumTrees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(params.Seed + int64(i)))
			samples, weights := bootstrap(y, classWeight, rng)
			forest.Trees[i] = fitTree(x, y, weights, samples, numClasses, cards, treeParams, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "fit forest")
	}
	return forest, nil
}

// ClassWeights returns per-class sample weights. Balanced weighting gives
// class c the weight n / (k * count_c), k being the number of classes present.
func ClassWeights(y []int, numClasses int, balanced bool) []float64 {
	weights := make([]float64, numClasses)
	if !balanced {
		for i := range weights {
			weights[i] = 1
		}
		return weights
	}

	counts := make([]int, numClasses)
	for _, label := range y {
		counts[label]++
	}
	present := 0
	for _, c := range counts {
		if c > 0 {
			present++
		}
	}
	for c, n := range counts {
		if n > 0 {
			weights[c] = float64(len(y)) / float64(present*n)
		}
	}
	return weights
}

// bootstrap draws len(y) rows with replacement. Rows drawn k times carry
// k times their class weight; undrawn rows are left out.
func bootstrap(y []int, classWeight []float64, rng *rand.Rand) ([]int, []float64) {
	n := len(y)
	draws := make([]int, n)
	for range n {
		draws[rng.Intn(n)]++
	}

	weights := make([]float64, n)
	samples := make([]int, 0, n)
	for i, k := range draws {
		if k == 0 {
			continue
		}
		weights[i] = float64(k) * classWeight[y[i]]
		samples = append(samples, i)
	}
	return samples, weights
}

// NumClasses implements Classifier
func (f *Forest) NumClasses() int { return f.Classes }

// PredictProba averages the leaf distributions of all trees
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.NumFeatures {
		return nil, errors.Newf("feature vector has %d values, want %d", len(x), f.NumFeatures)
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	out := make([]float64, f.Classes)
	for _, t := range f.Trees {
		t.accumulate(x, out)
	}
	n := float64(len(f.Trees))
	for i := range out {
		out[i] /= n
	}
	return out, nil
}

// Predict returns the code with the highest probability, lowest code on ties
func (f *Forest) Predict(x []float64) (int, error) {
	p, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return Argmax(p), nil
}

// Encode serializes the forest with gob
func (f *Forest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		return nil, errors.Wrap(err, "encode forest")
	}
	return buf.Bytes(), nil
}

// DecodeForest decodes a forest written by Encode
func DecodeForest(data []byte) (*Forest, error) {
	var f Forest
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode forest")
	}
	if len(f.Trees) == 0 || f.Classes <= 0 {
		return nil, errors.New("decode forest: empty model")
	}
	return &f, nil
}

// Argmax returns the index of the largest value, the first one on ties
func Argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
