package inference

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"gocanopy/domain/core"
	"gocanopy/domain/fit"
	"gocanopy/internal/errors"
)

// DefaultLevel is the documented confidence level for symmetric
// z-intervals
const DefaultLevel = 0.95

// Estimate is the delta-method output for one scalar transform
type Estimate struct {
	Name     string
	Value    float64
	StdErr   float64
	Lower    float64
	Upper    float64
	Gradient []float64
}

// DeltaMethod propagates the curvature of a single optimization result
// into confidence intervals for scalar transforms of the parameter
// vector via a first-order Taylor approximation.
type DeltaMethod struct {
	level float64
}

// NewDeltaMethod creates a delta-method engine at the given confidence
// level (e.g. 0.95)
func NewDeltaMethod(level float64) (*DeltaMethod, error) {
	if level <= 0 || level >= 1 {
		return nil, errors.ConfigInvalid("confidence level must lie in (0,1)")
	}
	return &DeltaMethod{level: level}, nil
}

// Level returns the configured confidence level
func (d *DeltaMethod) Level() float64 { return d.level }

// Intervals computes point estimates, standard errors and symmetric
// confidence intervals for each transform. The covariance matrix is the
// inverse Hessian; a missing, singular or indefinite Hessian fails with
// NON_INVERTIBLE_HESSIAN for this result without invalidating the point
// estimate itself.
func (d *DeltaMethod) Intervals(result fit.OptimizationResult, transforms []fit.Transform) ([]Estimate, error) {
	cov, err := Covariance(result)
	if err != nil {
		return nil, err
	}

	n := result.Dim()
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.5 + d.level/2)

	out := make([]Estimate, 0, len(transforms))
	for _, tr := range transforms {
		value := tr.Apply(result.Params)

		var grad []float64
		if tr.Grad != nil {
			grad = tr.Grad(result.Params)
		} else {
			grad = fd.Gradient(nil, tr.Apply, result.Params, nil)
		}
		if len(grad) != n {
			return nil, errors.WithCode(errors.CodeInternalError,
				fmt.Errorf("transform %s: %w", tr.Name, core.ErrDimensionMismatch))
		}

		variance := quadraticForm(grad, cov)
		if variance < 0 || math.IsNaN(variance) {
			return nil, errors.NonInvertibleHessian(
				fmt.Sprintf("transform %s: negative variance %g from curvature estimate", tr.Name, variance))
		}
		se := math.Sqrt(variance)

		out = append(out, Estimate{
			Name:     tr.Name,
			Value:    value,
			StdErr:   se,
			Lower:    value - z*se,
			Upper:    value + z*se,
			Gradient: grad,
		})
	}
	return out, nil
}

// Covariance inverts the Hessian after a positive-definiteness check.
// Cholesky factorization doubles as the check: an indefinite or singular
// curvature estimate signals an unreliable optimum and must surface,
// never produce silently wrong intervals.
func Covariance(result fit.OptimizationResult) (*mat.SymDense, error) {
	n := result.Dim()
	if result.Hessian == nil {
		return nil, errors.NonInvertibleHessian("no usable hessian for this result")
	}
	if len(result.Hessian) != n {
		return nil, errors.WithCode(errors.CodeInternalError, core.ErrDimensionMismatch)
	}

	// Symmetrize: finite differences leave small asymmetries
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(result.Hessian[i][j]+result.Hessian[j][i]))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, errors.WithCode(errors.CodeNonInvertibleHessian, core.ErrSingularHessian)
	}

	cov := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(cov); err != nil {
		return nil, errors.WithCode(errors.CodeNonInvertibleHessian,
			fmt.Errorf("%w: %v", core.ErrSingularHessian, err))
	}
	return cov, nil
}

// quadraticForm computes grad^T * cov * grad
func quadraticForm(grad []float64, cov *mat.SymDense) float64 {
	v := mat.NewVecDense(len(grad), grad)
	return mat.Inner(v, cov, v)
}
