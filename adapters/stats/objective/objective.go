package objective

import (
	"math"

	"golang.org/x/exp/rand"

	"gocanopy/domain/canopy"
	"gocanopy/domain/fit"
)

// Objective is a scalar function to minimize over an unconstrained
// parameter vector. Evaluations in regions where the model is undefined
// return a large or infinite penalty rather than NaN so the optimizer's
// line search backs off instead of propagating garbage.
type Objective interface {
	// Name identifies the objective for logging and diagnostics
	Name() string

	// Method names the estimation method this objective implements
	Method() fit.Method

	// Dim returns the optimizer parameter dimensionality
	Dim() int

	// Eval computes the objective value at x
	Eval(x []float64) float64

	// Start draws a random initial point on the optimizer scale.
	// Coefficients are drawn uniform over (low, high) on the natural
	// scale; the dispersion slot (when present) gets a small fixed start.
	Start(rng *rand.Rand, low, high float64) []float64

	// GroupTransforms returns the delta-method transforms mapping the
	// optimizer parameters back to the per-group coefficients
	GroupTransforms() []fit.Transform
}

// startSigma2 is the fixed dispersion starting value shared by the
// likelihood objectives
const startSigma2 = 0.01

// LeastSquares is the sum-of-squares loss over the grouped design.
// Parameters are the G coefficients on the natural scale; no
// distributional assumption is made.
type LeastSquares struct {
	design *canopy.GroupedDesign
}

// NewLeastSquares creates the least-squares objective
func NewLeastSquares(design *canopy.GroupedDesign) *LeastSquares {
	return &LeastSquares{design: design}
}

func (o *LeastSquares) Name() string       { return "least_squares" }
func (o *LeastSquares) Method() fit.Method { return fit.MethodLeastSquares }
func (o *LeastSquares) Dim() int           { return o.design.NumGroups() }

func (o *LeastSquares) Eval(x []float64) float64 {
	var ssr float64
	for i := 0; i < o.design.NumObservations(); i++ {
		mu := canopy.Mean(x[o.design.GroupIndex(i)], o.design.Predictor(i))
		r := o.design.Response(i) - mu
		ssr += r * r
	}
	if math.IsNaN(ssr) {
		return math.Inf(1)
	}
	return ssr
}

func (o *LeastSquares) Start(rng *rand.Rand, low, high float64) []float64 {
	return uniformCoefficients(rng, o.design.NumGroups(), low, high)
}

func (o *LeastSquares) GroupTransforms() []fit.Transform {
	return identityGroupTransforms(o.design.Groups())
}

// GaussianNLL is the Gaussian negative log-likelihood. Parameters are
// the G coefficients followed by log(sigma2); the log transform enforces
// a positive variance without constrained optimization.
type GaussianNLL struct {
	design *canopy.GroupedDesign
}

// NewGaussianNLL creates the Gaussian likelihood objective
func NewGaussianNLL(design *canopy.GroupedDesign) *GaussianNLL {
	return &GaussianNLL{design: design}
}

func (o *GaussianNLL) Name() string       { return "gaussian_nll" }
func (o *GaussianNLL) Method() fit.Method { return fit.MethodGaussianML }
func (o *GaussianNLL) Dim() int           { return o.design.NumGroups() + 1 }

func (o *GaussianNLL) Eval(x []float64) float64 {
	g := o.design.NumGroups()
	sigma2 := math.Exp(x[g])
	if !isFinitePositive(sigma2) {
		return math.Inf(1)
	}

	// -sum log N(y_i; mu_i, sigma2), written out to avoid allocating a
	// distribution value per observation
	n := float64(o.design.NumObservations())
	nll := 0.5 * n * math.Log(2*math.Pi*sigma2)
	for i := 0; i < o.design.NumObservations(); i++ {
		mu := canopy.Mean(x[o.design.GroupIndex(i)], o.design.Predictor(i))
		r := o.design.Response(i) - mu
		nll += r * r / (2 * sigma2)
	}
	if math.IsNaN(nll) {
		return math.Inf(1)
	}
	return nll
}

func (o *GaussianNLL) Start(rng *rand.Rand, low, high float64) []float64 {
	x := uniformCoefficients(rng, o.design.NumGroups(), low, high)
	return append(x, math.Log(startSigma2))
}

func (o *GaussianNLL) GroupTransforms() []fit.Transform {
	return identityGroupTransforms(o.design.Groups())
}

func uniformCoefficients(rng *rand.Rand, g int, low, high float64) []float64 {
	x := make([]float64, 0, g+1)
	for j := 0; j < g; j++ {
		x = append(x, low+(high-low)*rng.Float64())
	}
	return x
}

func identityGroupTransforms(groups *canopy.GroupSet) []fit.Transform {
	labels := groups.Labels()
	out := make([]fit.Transform, len(labels))
	for j, label := range labels {
		out[j] = fit.IdentityTransform("k["+string(label)+"]", j)
	}
	return out
}

func isFinitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1) && !math.IsNaN(v)
}
