package vector

import (
	"cmp"
	"math"
	"slices"
)

// Metric is the distance function used by every index in a deployment.
type Metric int

const (
	// Euclidean is the L2 distance. It is the only metric docchat uses;
	// mixing metrics within one corpus corrupts ranking.
	Euclidean Metric = iota
)

func (m Metric) String() string {
	if m == Euclidean {
		return "euclidean"
	}
	return "unknown"
}

// L2Distance computes the Euclidean distance between two vectors of equal
// length.
func L2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Ranked is a result with the insertion sequence used to break ties.
type Ranked struct {
	Result
	Seq int64
}

// SortRanked orders results by ascending distance, then by insertion
// sequence, and truncates to k.
func SortRanked(ranked []Ranked, k int) []Result {
	slices.SortFunc(ranked, func(a, b Ranked) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}

	out := make([]Result, len(ranked))
	for i, r := range ranked {
		out[i] = r.Result
	}
	return out
}
