package ml

import (
	"math/rand"
)

// Node is one entry of a flattened decision tree. Feature < 0 marks a leaf,
// whose class distribution is stored sparsely in Classes/Probs.
type Node struct {
	Feature   int32
	Threshold float64
	Left      int32
	Right     int32
	Classes   []int32
	Probs     []float64
}

// Tree is a CART classifier over integer-coded categorical features.
// Samples with x[f] <= Threshold go left.
type Tree struct {
	Nodes      []Node
	NumClasses int
}

// TreeParams controls tree growth
type TreeParams struct {
	MaxFeatures    int // features inspected per split, <= 0 means all
	MaxDepth       int // 0 means unlimited
	MinSamplesLeaf int
}

type treeBuilder struct {
	x          [][]float64
	y          []int
	w          []float64
	numClasses int
	cards      []int
	params     TreeParams
	rng        *rand.Rand

	samples []int
	hist    []float64
	counts  []int
	left    []float64
}

// fitTree grows a tree on the rows listed in samples using per-row weights w.
// cards[f] is the number of distinct codes of feature f.
func fitTree(x [][]float64, y []int, w []float64, samples []int, numClasses int, cards []int, params TreeParams, rng *rand.Rand) *Tree {
	maxCard := 1
	for _, c := range cards {
		maxCard = max(maxCard, c)
	}
	if params.MinSamplesLeaf < 1 {
		params.MinSamplesLeaf = 1
	}
	if params.MaxFeatures <= 0 || params.MaxFeatures > len(cards) {
		params.MaxFeatures = len(cards)
	}

	b := &treeBuilder{
		x:          x,
		y:          y,
		w:          w,
		numClasses: numClasses,
		cards:      cards,
		params:     params,
		rng:        rng,
		samples:    samples,
		hist:       make([]float64, maxCard*numClasses),
		counts:     make([]int, maxCard),
		left:       make([]float64, numClasses),
	}

	t := &Tree{NumClasses: numClasses}
	b.grow(t, 0, len(samples), 0)
	return t
}

func (b *treeBuilder) grow(t *Tree, start, end, depth int) int32 {
	id := int32(len(t.Nodes))
	t.Nodes = append(t.Nodes, Node{Feature: -1})

	totals := make([]float64, b.numClasses)
	var weight float64
	for _, s := range b.samples[start:end] {
		totals[b.y[s]] += b.w[s]
		weight += b.w[s]
	}

	if b.isLeaf(totals, weight, end-start, depth) {
		t.Nodes[id] = leafNode(totals, weight)
		return id
	}

	feature, threshold, ok := b.bestSplit(start, end)
	if !ok {
		t.Nodes[id] = leafNode(totals, weight)
		return id
	}

	mid := b.partition(start, end, feature, threshold)
	left := b.grow(t, start, mid, depth+1)
	right := b.grow(t, mid, end, depth+1)

	t.Nodes[id] = Node{Feature: int32(feature), Threshold: threshold, Left: left, Right: right}
	return id
}

func (b *treeBuilder) isLeaf(totals []float64, weight float64, n, depth int) bool {
	if n < 2 || n < 2*b.params.MinSamplesLeaf {
		return true
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return true
	}
	return gini(totals, weight) <= 1e-12
}

// bestSplit scans up to MaxFeatures non-constant features in random order and
// returns the threshold maximizing the weighted Gini proxy.
func (b *treeBuilder) bestSplit(start, end int) (int, float64, bool) {
	k := b.numClasses
	n := end - start
	minLeaf := b.params.MinSamplesLeaf

	bestScore := -1.0
	bestFeature, bestThreshold := -1, 0.0
	visited := 0

	for _, f := range b.rng.Perm(len(b.cards)) {
		if visited >= b.params.MaxFeatures {
			break
		}
		card := b.cards[f]
		hist := b.hist[:card*k]
		counts := b.counts[:card]
		clear(hist)
		clear(counts)

		distinct := 0
		for _, s := range b.samples[start:end] {
			c := int(b.x[s][f])
			if counts[c] == 0 {
				distinct++
			}
			counts[c]++
			hist[c*k+b.y[s]] += b.w[s]
		}
		if distinct < 2 {
			continue
		}
		visited++

		var total float64
		right := make([]float64, k)
		for c := 0; c < card; c++ {
			for j := 0; j < k; j++ {
				right[j] += hist[c*k+j]
			}
		}
		for j := 0; j < k; j++ {
			total += right[j]
		}

		left := b.left
		clear(left)
		var leftW float64
		leftN, prev := 0, -1
		for c := 0; c < card; c++ {
			if counts[c] == 0 {
				continue
			}
			if prev >= 0 && leftN >= minLeaf && n-leftN >= minLeaf {
				score := sqSum(left)/leftW + sqSum(right)/(total-leftW)
				if score > bestScore {
					bestScore = score
					bestFeature = f
					bestThreshold = float64(prev+c) / 2
				}
			}
			for j := 0; j < k; j++ {
				v := hist[c*k+j]
				left[j] += v
				right[j] -= v
				leftW += v
			}
			leftN += counts[c]
			prev = c
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func (b *treeBuilder) partition(start, end, feature int, threshold float64) int {
	i, j := start, end-1
	for i <= j {
		if b.x[b.samples[i]][feature] <= threshold {
			i++
			continue
		}
		b.samples[i], b.samples[j] = b.samples[j], b.samples[i]
		j--
	}
	return i
}

// PredictProba returns the leaf distribution for x as a dense vector
func (t *Tree) PredictProba(x []float64) []float64 {
	out := make([]float64, t.NumClasses)
	t.accumulate(x, out)
	return out
}

func (t *Tree) accumulate(x []float64, out []float64) {
	n := &t.Nodes[0]
	for n.Feature >= 0 {
		if x[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	for i, c := range n.Classes {
		out[c] += n.Probs[i]
	}
}

// Depth returns the length of the longest root-to-leaf path
func (t *Tree) Depth() int {
	var walk func(id int32) int
	walk = func(id int32) int {
		n := t.Nodes[id]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

func leafNode(totals []float64, weight float64) Node {
	n := Node{Feature: -1, Left: -1, Right: -1}
	if weight <= 0 {
		return n
	}
	for c, v := range totals {
		if v > 0 {
			n.Classes = append(n.Classes, int32(c))
			n.Probs = append(n.Probs, v/weight)
		}
	}
	return n
}

func gini(totals []float64, weight float64) float64 {
	if weight <= 0 {
		return 0
	}
	return 1 - sqSum(totals)/(weight*weight)
}

func sqSum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}
