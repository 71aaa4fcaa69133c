package fit

import (
	"math"

	"gocanopy/domain/canopy"
)

// Method names one of the independent estimation philosophies
type Method string

const (
	MethodLeastSquares Method = "least_squares"
	MethodGaussianML   Method = "gaussian_ml"
	MethodBetaML       Method = "beta_ml"
	MethodBayes        Method = "bayes"
)

// OptimizationResult is the frozen outcome of a single optimizer restart.
// Each restart owns its result exclusively; results are never shared or
// mutated across restarts.
type OptimizationResult struct {
	Seed      int64       `json:"seed"`
	Params    []float64   `json:"params"`
	Objective float64     `json:"objective"`
	Hessian   [][]float64 `json:"hessian,omitempty"`
	Converged bool        `json:"converged"`
}

// Dim returns the parameter dimensionality
func (r OptimizationResult) Dim() int {
	return len(r.Params)
}

// Transform is a scalar derived quantity of the parameter vector, used by
// the delta method. Grad is optional; when nil the gradient is estimated
// numerically. Analytic gradients keep simple transforms (identity on one
// coordinate) exact.
type Transform struct {
	Name  string
	Apply func(params []float64) float64
	Grad  func(params []float64) []float64
}

// IdentityTransform selects coordinate i of the parameter vector
func IdentityTransform(name string, i int) Transform {
	return Transform{
		Name:  name,
		Apply: func(p []float64) float64 { return p[i] },
		Grad: func(p []float64) []float64 {
			g := make([]float64, len(p))
			g[i] = 1
			return g
		},
	}
}

// ExpTransform maps log-parameterized coordinate i back to natural scale
func ExpTransform(name string, i int) Transform {
	return Transform{
		Name:  name,
		Apply: func(p []float64) float64 { return math.Exp(p[i]) },
		Grad: func(p []float64) []float64 {
			g := make([]float64, len(p))
			g[i] = math.Exp(p[i])
			return g
		},
	}
}

// EstimateRow is one per-group entry in the comparison table
type EstimateRow struct {
	Group    canopy.GroupLabel `json:"group"`
	Estimate float64           `json:"estimate"`
	StdErr   float64           `json:"std_err"`
	Lower    float64           `json:"lower"`
	Upper    float64           `json:"upper"`
}

// EstimateTable reports per-group point estimates with confidence
// intervals for one estimation method
type EstimateTable struct {
	Method      Method        `json:"method"`
	Level       float64       `json:"level"`
	Rows        []EstimateRow `json:"rows"`
	Diagnostics Diagnostics   `json:"diagnostics"`
}

// Diagnostics carries reliability signals alongside the estimates rather
// than hiding them
type Diagnostics struct {
	Restarts        int     `json:"restarts"`
	FailedRestarts  int     `json:"failed_restarts"`
	BestObjective   float64 `json:"best_objective"`
	ObjectiveSpread float64 `json:"objective_spread"`
	Multimodal      bool    `json:"multimodal"`
	HessianUsable   bool    `json:"hessian_usable"`
}
