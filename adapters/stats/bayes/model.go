package bayes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gocanopy/domain/canopy"
	"gocanopy/domain/core"
)

// PredictivePoint is a new (group, predictor) pair at which posterior
// predictive draws are generated
type PredictivePoint struct {
	Group     canopy.GroupLabel `json:"group"`
	Predictor float64           `json:"predictor"`
}

// ModelSpec is the declarative hierarchical model handed to the sampling
// engine: priors, likelihood and generated quantities as data. The
// engine executes it; the spec never samples on its own.
//
// Priors: k_j ~ Uniform(0,2) for every group (a flat pooling choice, no
// shared hyperparameters beyond the prior family), kappa ~ Gamma(24,2)
// (shape/rate). Likelihood: y_i ~ BetaProportion(mu_i, kappa) with
// mu_i = 1 - exp(-k_group(i) * x_i).
type ModelSpec struct {
	Design     *canopy.GroupedDesign
	KPrior     distuv.Uniform
	KappaPrior distuv.Gamma
	Predictive []PredictivePoint

	predictiveIdx []int
}

// NewModelSpec builds the model over a validated design, resolving each
// predictive point against the design's group indexing
func NewModelSpec(design *canopy.GroupedDesign, predictive []PredictivePoint) (*ModelSpec, error) {
	idx := make([]int, len(predictive))
	for i, p := range predictive {
		j, ok := design.Groups().Index(p.Group)
		if !ok {
			return nil, fmt.Errorf("predictive point %d: %w: %q", i, core.ErrUnknownGroup, p.Group)
		}
		if p.Predictor < 0 {
			return nil, fmt.Errorf("predictive point %d: %w", i, core.ErrNegativePredictor)
		}
		idx[i] = j
	}
	return &ModelSpec{
		Design:        design,
		KPrior:        distuv.Uniform{Min: 0, Max: 2},
		KappaPrior:    distuv.Gamma{Alpha: 24, Beta: 2},
		Predictive:    predictive,
		predictiveIdx: idx,
	}, nil
}

// Dim returns the sampled parameter count: G coefficients plus kappa
func (m *ModelSpec) Dim() int {
	return m.Design.NumGroups() + 1
}

// ParamNames returns the parameter names in sampling order
func (m *ModelSpec) ParamNames() []string {
	labels := m.Design.Groups().Labels()
	names := make([]string, 0, len(labels)+1)
	for _, label := range labels {
		names = append(names, "k["+string(label)+"]")
	}
	return append(names, "kappa")
}

// LogPosterior evaluates the unnormalized log posterior at theta =
// (k_1..k_G, kappa). Outside the prior support or the likelihood domain
// it returns -Inf.
func (m *ModelSpec) LogPosterior(theta []float64) float64 {
	g := m.Design.NumGroups()
	kappa := theta[g]

	lp := 0.0
	for j := 0; j < g; j++ {
		v := m.KPrior.LogProb(theta[j])
		if math.IsInf(v, -1) {
			return math.Inf(-1)
		}
		lp += v
	}
	kv := m.KappaPrior.LogProb(kappa)
	if math.IsInf(kv, -1) || math.IsNaN(kv) {
		return math.Inf(-1)
	}
	lp += kv

	for i := 0; i < m.Design.NumObservations(); i++ {
		mu := canopy.Mean(theta[m.Design.GroupIndex(i)], m.Design.Predictor(i))
		v := logProbBetaProportion(m.Design.Response(i), mu, kappa)
		if math.IsInf(v, -1) || math.IsNaN(v) {
			return math.Inf(-1)
		}
		lp += v
	}
	return lp
}

// LogLikelihoods fills dst with the per-observation log density at
// theta, used for out-of-sample predictive accuracy estimation
func (m *ModelSpec) LogLikelihoods(theta, dst []float64) {
	g := m.Design.NumGroups()
	kappa := theta[g]
	for i := 0; i < m.Design.NumObservations(); i++ {
		mu := canopy.Mean(theta[m.Design.GroupIndex(i)], m.Design.Predictor(i))
		dst[i] = logProbBetaProportion(m.Design.Response(i), mu, kappa)
	}
}

// PredictiveMean returns mu at predictive point p under theta
func (m *ModelSpec) PredictiveMean(p int, theta []float64) float64 {
	return canopy.Mean(theta[m.predictiveIdx[p]], m.Predictive[p].Predictor)
}

// logProbBetaProportion evaluates the Beta density under its
// mean/precision parameterization: alpha = mu*kappa, beta = (1-mu)*kappa
func logProbBetaProportion(y, mu, kappa float64) float64 {
	if mu <= 0 || mu >= 1 || kappa <= 0 {
		return math.Inf(-1)
	}
	return distuv.Beta{Alpha: mu * kappa, Beta: (1 - mu) * kappa}.LogProb(y)
}
