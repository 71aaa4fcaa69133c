package objective

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"gocanopy/domain/canopy"
	"gocanopy/domain/fit"
)

// BetaShapes converts the mean/dispersion parameterization of the Beta
// distribution to its canonical shape parameters. The conversion is only
// valid while both shapes stay positive, which requires
// 0 < sigma2 < mu*(1-mu); outside that region ok is false and the caller
// must treat the evaluation as rejected.
func BetaShapes(mu, sigma2 float64) (alpha, beta float64, ok bool) {
	if mu <= 0 || mu >= 1 || sigma2 <= 0 {
		return 0, 0, false
	}
	alpha = (mu*mu - mu*mu*mu - mu*sigma2) / sigma2
	beta = (mu - 2*mu*mu + mu*mu*mu - sigma2 + mu*sigma2) / sigma2
	if alpha <= 0 || beta <= 0 || math.IsNaN(alpha) || math.IsNaN(beta) {
		return 0, 0, false
	}
	return alpha, beta, true
}

// invalidShapePenalty dominates any attainable likelihood value while
// staying finite. It scales with the constraint violation, so the line
// search sees a slope back toward the valid region instead of an
// infinite wall it cannot step across.
const invalidShapePenalty = 1e8

// BetaNLL is the Beta negative log-likelihood under the mean/dispersion
// parameterization. Parameters are log(k_1)..log(k_G) followed by
// log(sigma2): the log transforms keep both the coefficients and the
// dispersion positive while the optimizer stays unconstrained. Invalid
// shape regions evaluate to a large finite penalty, never NaN.
type BetaNLL struct {
	design *canopy.GroupedDesign
}

// NewBetaNLL creates the Beta likelihood objective
func NewBetaNLL(design *canopy.GroupedDesign) *BetaNLL {
	return &BetaNLL{design: design}
}

func (o *BetaNLL) Name() string       { return "beta_nll" }
func (o *BetaNLL) Method() fit.Method { return fit.MethodBetaML }
func (o *BetaNLL) Dim() int           { return o.design.NumGroups() + 1 }

func (o *BetaNLL) Eval(x []float64) float64 {
	g := o.design.NumGroups()
	sigma2 := math.Exp(x[g])
	if !isFinitePositive(sigma2) {
		return invalidShapePenalty * (1 + math.Abs(x[g]))
	}

	var nll float64
	for i := 0; i < o.design.NumObservations(); i++ {
		k := math.Exp(x[o.design.GroupIndex(i)])
		mu := canopy.Mean(k, o.design.Predictor(i))
		alpha, beta, ok := BetaShapes(mu, sigma2)
		if !ok {
			nll += invalidShapePenalty * (1 + sigma2 - mu*(1-mu))
			continue
		}
		lp := distuv.Beta{Alpha: alpha, Beta: beta}.LogProb(o.design.Response(i))
		if math.IsNaN(lp) || math.IsInf(lp, 0) {
			nll += invalidShapePenalty
			continue
		}
		nll -= lp
	}
	return nll
}

func (o *BetaNLL) Start(rng *rand.Rand, low, high float64) []float64 {
	x := make([]float64, 0, o.design.NumGroups()+1)
	for j := 0; j < o.design.NumGroups(); j++ {
		// Draw on the natural scale, optimize on the log scale
		x = append(x, math.Log(low+(high-low)*rng.Float64()))
	}
	// Dispersion start must satisfy sigma2 < mu*(1-mu) for typical mu
	return append(x, math.Log(startSigma2/2))
}

func (o *BetaNLL) GroupTransforms() []fit.Transform {
	labels := o.design.Groups().Labels()
	out := make([]fit.Transform, len(labels))
	for j, label := range labels {
		out[j] = fit.ExpTransform("k["+string(label)+"]", j)
	}
	return out
}
