package analytics

import (
	"cmp"
	"slices"
)

// counter tallies occurrences of comparable keys
type counter[K cmp.Ordered] map[K]int

func (c counter[K]) add(k K) { c[k]++ }

// ranked returns keys by count descending, ties by key ascending
func (c counter[K]) ranked() []K {
	keys := make([]K, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b K) int {
		if c[a] != c[b] {
			return cmp.Compare(c[b], c[a])
		}
		return cmp.Compare(a, b)
	})
	return keys
}

// top returns at most n ranked keys
func (c counter[K]) top(n int) []K {
	r := c.ranked()
	if len(r) > n {
		r = r[:n]
	}
	return r
}

// mode returns the most frequent key; ok is false when empty
func (c counter[K]) mode() (k K, ok bool) {
	if len(c) == 0 {
		return k, false
	}
	return c.ranked()[0], true
}

// sortedKeys returns keys ascending
func (c counter[K]) sortedKeys() []K {
	keys := make([]K, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// asMap copies the counter for JSON output
func (c counter[K]) asMap() map[K]int {
	out := make(map[K]int, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
