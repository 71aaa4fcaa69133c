package bayes

import (
	"math"

	"github.com/montanaflynn/stats"
)

// splitRHat computes the split potential scale reduction factor for one
// parameter: each chain's retained draws are halved, and the usual
// between/within variance ratio is taken over the 2C half-sequences.
// Values near 1 indicate the chains agree; values above ~1.05 flag
// unreliable mixing.
func splitRHat(chains [][]float64) float64 {
	var halves [][]float64
	for _, draws := range chains {
		if len(draws) < 4 {
			continue
		}
		mid := len(draws) / 2
		halves = append(halves, draws[:mid], draws[mid:mid*2])
	}
	if len(halves) < 2 {
		return math.NaN()
	}

	n := float64(len(halves[0]))

	means := make([]float64, len(halves))
	vars := make([]float64, len(halves))
	for i, h := range halves {
		means[i], _ = stats.Mean(h)
		vars[i], _ = stats.SampleVariance(h)
	}

	w, _ := stats.Mean(vars)
	grandVar, _ := stats.SampleVariance(means)
	b := n * grandVar

	if w <= 0 {
		// Degenerate chains: identical draws within every half
		if b <= 0 {
			return 1
		}
		return math.Inf(1)
	}

	varPlus := (n-1)/n*w + b/n
	return math.Sqrt(varPlus / w)
}
