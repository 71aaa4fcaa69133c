package bayes

import (
	"context"
	"fmt"
	"log"
	"math"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"gocanopy/domain/core"
	"gocanopy/domain/fit"
	"gocanopy/internal/errors"
)

// Config controls the MCMC execution: C parallel chains, W warm-up
// (adaptation) iterations discarded, S sampling iterations retained.
// Each chain derives its own random stream from BaseSeed + chain index.
type Config struct {
	Chains        int
	Warmup        int
	Samples       int
	BaseSeed      int64
	RHatThreshold float64
}

// DefaultConfig returns the documented sampler defaults
func DefaultConfig() Config {
	return Config{
		Chains:        4,
		Warmup:        1000,
		Samples:       1000,
		BaseSeed:      1,
		RHatThreshold: 1.05,
	}
}

func (c Config) validate() error {
	if c.Chains < 1 || c.Warmup < 0 || c.Samples < 1 {
		return errors.ConfigInvalid("sampler needs at least one chain and one retained draw")
	}
	if c.RHatThreshold <= 1 {
		return errors.ConfigInvalid("r-hat threshold must exceed 1")
	}
	return nil
}

// targetAccept is the per-coordinate acceptance rate the warm-up scale
// adaptation steers toward (optimal for one-dimensional Gaussian
// proposals)
const targetAccept = 0.44

// adaptWindow is the warm-up iteration count between scale adjustments
const adaptWindow = 50

// chainState holds one chain's retained draws and generated quantities.
// Owned by the chain that produced it; read only after the join.
type chainState struct {
	draws      [][]float64 // Samples x dim
	predictive [][]float64 // Samples x len(Predictive)
	logLik     [][]float64 // Samples x N
	accepted   int
	proposed   int
}

// Engine executes a declarative ModelSpec with an adaptive random-walk
// Metropolis kernel. Chains are independent parallel computations over
// the read-only model and design, joined only at summarization.
type Engine struct {
	cfg Config
}

// NewEngine creates a sampling engine
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Sample runs all chains, checks cross-chain agreement, and summarizes.
// Chain disagreement is surfaced as a warning with diagnostics while the
// results are still returned; only zero usable draws is fatal.
func (e *Engine) Sample(ctx context.Context, spec *ModelSpec) (*fit.Posterior, error) {
	if err := e.cfg.validate(); err != nil {
		return nil, err
	}

	states := make([]*chainState, e.cfg.Chains)
	grp, gctx := errgroup.WithContext(ctx)
	for c := 0; c < e.cfg.Chains; c++ {
		grp.Go(func() error {
			seed := e.cfg.BaseSeed + int64(c)
			state, err := e.runChain(gctx, spec, seed)
			if err != nil {
				log.Printf("[Sampler] chain %d (seed %d) failed: %v", c, seed, err)
				return nil // a dead chain is skipped, not fatal for the batch
			}
			states[c] = state
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	alive := states[:0:0]
	for _, s := range states {
		if s != nil {
			alive = append(alive, s)
		}
	}
	if len(alive) == 0 {
		return nil, errors.FitFailure("sampler produced no usable draws", core.ErrNoUsableDraws)
	}

	return e.summarize(spec, alive)
}

// runChain executes warm-up adaptation followed by the retained sampling
// phase for a single seeded chain
func (e *Engine) runChain(ctx context.Context, spec *ModelSpec, seed int64) (*chainState, error) {
	rng := rand.New(rand.NewSource(uint64(seed)))
	dim := spec.Dim()
	g := spec.Design.NumGroups()

	theta, lp, err := e.initPoint(spec, rng)
	if err != nil {
		return nil, err
	}

	scales := make([]float64, dim)
	for j := range scales {
		scales[j] = 0.1
	}
	winAccept := make([]int, dim)
	winProposed := make([]int, dim)

	state := &chainState{
		draws:      make([][]float64, 0, e.cfg.Samples),
		predictive: make([][]float64, 0, e.cfg.Samples),
		logLik:     make([][]float64, 0, e.cfg.Samples),
	}

	total := e.cfg.Warmup + e.cfg.Samples
	for iter := 0; iter < total; iter++ {
		if iter%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		warming := iter < e.cfg.Warmup

		// One Metropolis sweep: per-coordinate Gaussian proposals
		for j := 0; j < dim; j++ {
			old := theta[j]
			theta[j] = old + scales[j]*rng.NormFloat64()
			lpNew := spec.LogPosterior(theta)
			if math.Log(rng.Float64()) < lpNew-lp {
				lp = lpNew
				if warming {
					winAccept[j]++
				} else {
					state.accepted++
				}
			} else {
				theta[j] = old
			}
			if warming {
				winProposed[j]++
			} else {
				state.proposed++
			}
		}

		if warming {
			if (iter+1)%adaptWindow == 0 {
				adaptScales(scales, winAccept, winProposed)
			}
			continue
		}

		// Retained draw plus generated quantities; these never feed back
		// into the posterior
		draw := make([]float64, dim)
		copy(draw, theta)
		state.draws = append(state.draws, draw)

		kappa := theta[g]
		pred := make([]float64, len(spec.Predictive))
		for p := range spec.Predictive {
			mu := spec.PredictiveMean(p, theta)
			pred[p] = distuv.Beta{Alpha: mu * kappa, Beta: (1 - mu) * kappa, Src: rng}.Rand()
		}
		state.predictive = append(state.predictive, pred)

		ll := make([]float64, spec.Design.NumObservations())
		spec.LogLikelihoods(theta, ll)
		state.logLik = append(state.logLik, ll)
	}

	return state, nil
}

// initPoint draws an initial point inside the posterior support,
// retrying a bounded number of times
func (e *Engine) initPoint(spec *ModelSpec, rng *rand.Rand) ([]float64, float64, error) {
	dim := spec.Dim()
	g := spec.Design.NumGroups()
	for attempt := 0; attempt < 50; attempt++ {
		theta := make([]float64, dim)
		for j := 0; j < g; j++ {
			// Away from the Uniform(0,2) prior edges
			theta[j] = 0.2 + 1.6*rng.Float64()
		}
		// Around the Gamma(24,2) prior mean of 12
		theta[g] = 6 + 12*rng.Float64()

		lp := spec.LogPosterior(theta)
		if !math.IsInf(lp, -1) && !math.IsNaN(lp) {
			return theta, lp, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: no valid initial point found", core.ErrNoUsableDraws)
}

// adaptScales nudges each proposal scale toward the target acceptance
// rate and resets the adaptation window
func adaptScales(scales []float64, accept, proposed []int) {
	for j := range scales {
		if proposed[j] == 0 {
			continue
		}
		rate := float64(accept[j]) / float64(proposed[j])
		scales[j] *= math.Exp(rate - targetAccept)
		scales[j] = math.Min(math.Max(scales[j], 1e-4), 5)
		accept[j] = 0
		proposed[j] = 0
	}
}
