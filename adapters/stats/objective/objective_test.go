package objective

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"gocanopy/domain/canopy"
	"gocanopy/domain/fit"
)

func testDesign(t *testing.T) *canopy.GroupedDesign {
	t.Helper()
	design, err := canopy.NewGroupedDesign([]canopy.Observation{
		{Response: 0.6, Predictor: 1, Group: "a"},
		{Response: 0.85, Predictor: 2, Group: "a"},
		{Response: 0.3, Predictor: 1, Group: "b"},
		{Response: 0.55, Predictor: 2, Group: "b"},
	})
	require.NoError(t, err)
	return design
}

func TestLeastSquares(t *testing.T) {
	design := testDesign(t)
	obj := NewLeastSquares(design)

	t.Run("metadata", func(t *testing.T) {
		assert.Equal(t, fit.MethodLeastSquares, obj.Method())
		assert.Equal(t, 2, obj.Dim())
	})

	t.Run("matches hand computed residuals", func(t *testing.T) {
		x := []float64{0.9, 0.4}
		var want float64
		for i := 0; i < design.NumObservations(); i++ {
			mu := canopy.Mean(x[design.GroupIndex(i)], design.Predictor(i))
			r := design.Response(i) - mu
			want += r * r
		}
		assert.InDelta(t, want, obj.Eval(x), 1e-12)
	})

	t.Run("start draws coefficients in range", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		x := obj.Start(rng, 0.2, 0.8)
		require.Len(t, x, 2)
		for _, v := range x {
			assert.Greater(t, v, 0.2)
			assert.Less(t, v, 0.8)
		}
	})

	t.Run("identity transforms name the groups", func(t *testing.T) {
		transforms := obj.GroupTransforms()
		require.Len(t, transforms, 2)
		assert.Equal(t, "k[a]", transforms[0].Name)
		assert.Equal(t, "k[b]", transforms[1].Name)
		assert.Equal(t, 0.9, transforms[0].Apply([]float64{0.9, 0.4}))
	})
}

func TestGaussianNLL(t *testing.T) {
	design := testDesign(t)
	obj := NewGaussianNLL(design)

	t.Run("has dispersion slot", func(t *testing.T) {
		assert.Equal(t, 3, obj.Dim())
	})

	t.Run("matches distuv normal log density", func(t *testing.T) {
		x := []float64{0.9, 0.4, math.Log(0.02)}
		sigma := math.Sqrt(0.02)

		var want float64
		for i := 0; i < design.NumObservations(); i++ {
			mu := canopy.Mean(x[design.GroupIndex(i)], design.Predictor(i))
			want -= distuv.Normal{Mu: mu, Sigma: sigma}.LogProb(design.Response(i))
		}
		assert.InDelta(t, want, obj.Eval(x), 1e-9)
	})

	t.Run("start fixes the dispersion slot", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		x := obj.Start(rng, 0.2, 0.8)
		require.Len(t, x, 3)
		assert.Equal(t, math.Log(0.01), x[2])
	})
}

func TestBetaShapes(t *testing.T) {
	t.Run("valid region gives positive shapes with matching mean", func(t *testing.T) {
		for _, tc := range []struct{ mu, sigma2 float64 }{
			{0.5, 0.1},
			{0.3, 0.01},
			{0.9, 0.005},
		} {
			alpha, beta, ok := BetaShapes(tc.mu, tc.sigma2)
			require.True(t, ok, "mu=%v sigma2=%v", tc.mu, tc.sigma2)
			assert.Greater(t, alpha, 0.0)
			assert.Greater(t, beta, 0.0)
			assert.InDelta(t, tc.mu, alpha/(alpha+beta), 1e-9)

			d := distuv.Beta{Alpha: alpha, Beta: beta}
			assert.InDelta(t, tc.sigma2, d.Variance(), 1e-9)
		}
	})

	t.Run("rejects outside the support", func(t *testing.T) {
		for _, tc := range []struct{ mu, sigma2 float64 }{
			{0.5, 0.25},  // sigma2 == mu*(1-mu)
			{0.5, 0.3},   // sigma2 too large
			{0, 0.01},    // boundary mean
			{1, 0.01},    // boundary mean
			{0.5, 0},     // zero variance
			{-0.1, 0.01}, // negative mean
		} {
			_, _, ok := BetaShapes(tc.mu, tc.sigma2)
			assert.False(t, ok, "mu=%v sigma2=%v must be rejected", tc.mu, tc.sigma2)
		}
	})
}

func TestBetaNLL(t *testing.T) {
	design := testDesign(t)
	obj := NewBetaNLL(design)

	t.Run("finite at a reasonable point", func(t *testing.T) {
		x := []float64{math.Log(0.9), math.Log(0.4), math.Log(0.005)}
		v := obj.Eval(x)
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))
	})

	t.Run("penalizes dispersion beyond the mean bound", func(t *testing.T) {
		valid := obj.Eval([]float64{math.Log(0.9), math.Log(0.4), math.Log(0.005)})
		mild := obj.Eval([]float64{math.Log(0.9), math.Log(0.4), math.Log(0.5)})
		severe := obj.Eval([]float64{math.Log(0.9), math.Log(0.4), math.Log(5.0)})

		// The penalty stays finite and slopes back toward the valid
		// region so a gradient-based line search can recover
		for _, v := range []float64{mild, severe} {
			assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))
		}
		assert.Greater(t, mild, valid+1e6)
		assert.Greater(t, severe, mild)
	})

	t.Run("zero predictor row is penalized, not infinite", func(t *testing.T) {
		d, err := canopy.NewGroupedDesign([]canopy.Observation{
			{Response: 0.5, Predictor: 0, Group: "a"},
		})
		require.NoError(t, err)
		// mu is exactly zero at x=0, so the Beta mean parameterization is undefined
		v := NewBetaNLL(d).Eval([]float64{math.Log(0.5), math.Log(0.005)})
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))
		assert.Greater(t, v, 1e6)
	})

	t.Run("start is on the log scale", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		x := obj.Start(rng, 0.2, 0.8)
		require.Len(t, x, 3)
		for _, v := range x[:2] {
			assert.Greater(t, v, math.Log(0.2))
			assert.Less(t, v, math.Log(0.8))
		}
		assert.Equal(t, math.Log(0.005), x[2])
	})

	t.Run("exp transforms recover the natural scale", func(t *testing.T) {
		transforms := obj.GroupTransforms()
		require.Len(t, transforms, 2)
		assert.Equal(t, "k[a]", transforms[0].Name)
		assert.InDelta(t, 0.9, transforms[0].Apply([]float64{math.Log(0.9), math.Log(0.4), 0}), 1e-12)
	})
}
