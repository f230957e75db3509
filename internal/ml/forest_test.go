package ml

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable builds rows whose label equals feature 0; feature 1 is noise.
func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		label := i % 3
		x[i] = []float64{float64(label), float64(rng.Intn(4))}
		y[i] = label
	}
	return x, y
}

func TestFitForest_LearnsSeparableData(t *testing.T) {
	x, y := separable(300, 1)

	forest, err := FitForest(context.Background(), x, y, 3, ForestParams{NumTrees: 20, BalancedWeight: true, Seed: 42})
	require.NoError(t, err)
	assert.Len(t, forest.Trees, 20)

	for label := range 3 {
		for noise := range 4 {
			p, err := forest.PredictProba([]float64{float64(label), float64(noise)})
			require.NoError(t, err)
			require.Len(t, p, 3)

			var sum float64
			for _, v := range p {
				assert.GreaterOrEqual(t, v, 0.0)
				sum += v
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
			assert.Equal(t, label, Argmax(p))
		}
	}
}

func TestFitForest_DeterministicAcrossWorkers(t *testing.T) {
	x, y := separable(120, 7)
	for i := range x {
		if i%5 == 0 {
			y[i] = (y[i] + 1) % 3 // label noise forces deeper trees
		}
	}

	a, err := FitForest(context.Background(), x, y, 3, ForestParams{NumTrees: 8, Seed: 42, Workers: 1})
	require.NoError(t, err)
	b, err := FitForest(context.Background(), x, y, 3, ForestParams{NumTrees: 8, Seed: 42, Workers: 4})
	require.NoError(t, err)

	for _, row := range x {
		pa, _ := a.PredictProba(row)
		pb, _ := b.PredictProba(row)
		assert.Equal(t, pa, pb)
	}
}

func TestFitForest_EncodeDecode(t *testing.T) {
	x, y := separable(60, 3)
	forest, err := FitForest(context.Background(), x, y, 3, ForestParams{NumTrees: 5, Seed: 1})
	require.NoError(t, err)

	data, err := forest.Encode()
	require.NoError(t, err)
	back, err := DecodeForest(data)
	require.NoError(t, err)

	want, _ := forest.PredictProba(x[0])
	got, err := back.PredictProba(x[0])
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 3, back.NumClasses())
}

func TestFitForest_RejectsBadInput(t *testing.T) {
	ctx := context.Background()

	_, err := FitForest(ctx, nil, nil, 2, ForestParams{NumTrees: 1})
	assert.Error(t, err)

	_, err = FitForest(ctx, [][]float64{{0.5}}, []int{0}, 2, ForestParams{NumTrees: 1})
	assert.Error(t, err)

	_, err = FitForest(ctx, [][]float64{{0}}, []int{5}, 2, ForestParams{NumTrees: 1})
	assert.Error(t, err)

	_, err = FitForest(ctx, [][]float64{{0}}, []int{0}, 2, ForestParams{NumTrees: 0})
	assert.Error(t, err)
}

func TestFitForest_CancelledContext(t *testing.T) {
	x, y := separable(30, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FitForest(ctx, x, y, 3, ForestParams{NumTrees: 4, Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForest_PredictProbaWrongWidth(t *testing.T) {
	x, y := separable(30, 1)
	forest, err := FitForest(context.Background(), x, y, 3, ForestParams{NumTrees: 2})
	require.NoError(t, err)

	_, err = forest.PredictProba([]float64{0})
	assert.Error(t, err)
}

func TestClassWeights(t *testing.T) {
	w := ClassWeights([]int{0, 0, 0, 1}, 3, true)
	assert.InDelta(t, 4.0/6.0, w[0], 1e-12)
	assert.InDelta(t, 2.0, w[1], 1e-12)
	assert.Equal(t, 0.0, w[2])

	assert.Equal(t, []float64{1, 1}, ClassWeights([]int{0}, 2, false))
}

func TestTree_ImpureLeafWhenFeaturesIdentical(t *testing.T) {
	x := [][]float64{{0}, {0}, {0}, {0}}
	y := []int{0, 0, 0, 1}
	w := []float64{1, 1, 1, 1}

	tree := fitTree(x, y, w, []int{0, 1, 2, 3}, 2, []int{1}, TreeParams{}, rand.New(rand.NewSource(1)))
	require.Len(t, tree.Nodes, 1)
	p := tree.PredictProba([]float64{0})
	assert.InDelta(t, 0.75, p[0], 1e-12)
	assert.InDelta(t, 0.25, p[1], 1e-12)
	assert.Equal(t, 0, tree.Depth())
}

func TestGini(t *testing.T) {
	assert.InDelta(t, 0.5, gini([]float64{1, 1}, 2), 1e-12)
	assert.Equal(t, 0.0, gini([]float64{3, 0}, 3))
	assert.False(t, math.IsNaN(gini([]float64{0, 0}, 0)))
}
