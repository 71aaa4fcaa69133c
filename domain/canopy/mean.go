package canopy

import (
	"math"
)

// Mean evaluates the saturating-exponential response mean 1 - exp(-k*x).
// For x = 0 the mean is exactly 0; for k > 0 and x > 0 it lies strictly
// inside (0,1). When the exponential underflows, the result is clamped
// to the largest float64 below 1 so downstream Beta parameterizations
// stay defined for saturated rows.
func Mean(k, x float64) float64 {
	return clampMean(1 - math.Exp(-k*x))
}

// MeanRow evaluates the mean for one design row: 1 - exp(-sum_j k_j*x_j).
// Since each row has exactly one nonzero entry this reduces to the
// single-group curve, but the general form keeps the contract honest.
func MeanRow(ks []float64, row []float64) float64 {
	var dot float64
	for j, x := range row {
		dot += ks[j] * x
	}
	return clampMean(1 - math.Exp(-dot))
}

func clampMean(mu float64) float64 {
	if mu >= 1 {
		return math.Nextafter(1, 0)
	}
	return mu
}

// MeanVector evaluates the mean for every observation in the design
func MeanVector(ks []float64, d *GroupedDesign) []float64 {
	out := make([]float64, d.NumObservations())
	for i := range out {
		out[i] = Mean(ks[d.GroupIndex(i)], d.Predictor(i))
	}
	return out
}
