package ml

import (
	"math"
	"math/rand"
	"slices"

	"crimewatch/pkg/errors"
)

func groupByClass(y []int) map[int][]int {
	groups := make(map[int][]int)
	for i, label := range y {
		groups[label] = append(groups[label], i)
	}
	return groups
}

func sortedKeys(m map[int][]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// StratifiedSplit partitions row indices so each class keeps roughly
// testRatio of its rows in the test set. A class with at least two rows
// always lands in both partitions.
func StratifiedSplit(y []int, testRatio float64, seed int64) (train, test []int, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, errors.Wrapf(errors.ErrInvalidInput, "test ratio %v not in (0,1)", testRatio)
	}
	rng := rand.New(rand.NewSource(seed))
	groups := groupByClass(y)

	for _, label := range sortedKeys(groups) {
		idx := groups[label]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := 0
		if len(idx) >= 2 {
			nTest = int(math.Round(float64(len(idx)) * testRatio))
			nTest = min(max(nTest, 1), len(idx)-1)
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	slices.Sort(train)
	slices.Sort(test)
	return train, test, nil
}

// Fold is one train/validation partition of a k-fold split
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold deals each shuffled class round-robin over k folds.
func StratifiedKFold(y []int, k int, seed int64) ([]Fold, error) {
	if k < 2 || k > len(y) {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "k-fold: k=%d with %d rows", k, len(y))
	}
	rng := rand.New(rand.NewSource(seed))
	groups := groupByClass(y)

	assign := make([]int, len(y))
	next := 0
	for _, label := range sortedKeys(groups) {
		idx := groups[label]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for _, row := range idx {
			assign[row] = next % k
			next++
		}
	}

	folds := make([]Fold, k)
	for row, fold := range assign {
		for f := range folds {
			if f == fold {
				folds[f].Test = append(folds[f].Test, row)
			} else {
				folds[f].Train = append(folds[f].Train, row)
			}
		}
	}
	return folds, nil
}

// Take selects rows by index
func Take[T any](rows []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}
