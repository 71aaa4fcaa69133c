package optimizer

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"gocanopy/adapters/stats/objective"
	"gocanopy/domain/core"
	"gocanopy/domain/fit"
	"gocanopy/internal/errors"
)

// Method selects the local optimization algorithm
type Method string

const (
	MethodBFGS       Method = "bfgs"
	MethodNelderMead Method = "neldermead"
)

// Config controls a multi-start run. Every restart gets an explicit seed
// (BaseSeed + restart index) so runs are reproducible without global
// random state and safe to execute in parallel.
type Config struct {
	Restarts   int
	BaseSeed   int64
	Method     Method
	InitLow    float64
	InitHigh   float64
	MaxWorkers int64
	MaxRuntime time.Duration

	// Methods overrides the algorithm per estimation method; objectives
	// without an entry use Method
	Methods map[fit.Method]Method
}

// DefaultConfig returns the documented defaults: 10 restarts, starts
// drawn uniform over (0.2, 0.8) per coefficient, BFGS with numerical
// gradients.
func DefaultConfig() Config {
	return Config{
		Restarts:   10,
		BaseSeed:   1,
		Method:     MethodBFGS,
		InitLow:    0.2,
		InitHigh:   0.8,
		MaxWorkers: 4,
		MaxRuntime: time.Minute,
	}
}

func (c Config) validate() error {
	if c.Restarts < 1 {
		return errors.ConfigInvalid("restarts must be at least 1")
	}
	if c.InitLow >= c.InitHigh {
		return errors.ConfigInvalid("initial draw range is empty")
	}
	if c.MaxWorkers < 1 {
		return errors.ConfigInvalid("max workers must be at least 1")
	}
	for m, alg := range c.Methods {
		if alg != MethodBFGS && alg != MethodNelderMead {
			return errors.ConfigInvalid(fmt.Sprintf("unknown optimizer method %q for %s", alg, m))
		}
	}
	return nil
}

// methodFor resolves the algorithm for one estimation method
func (c Config) methodFor(m fit.Method) Method {
	if override, ok := c.Methods[m]; ok {
		return override
	}
	return c.Method
}

// RestartOutcome pairs one restart's result with its failure, if any
type RestartOutcome struct {
	Seed   int64
	Result *fit.OptimizationResult
	Err    error
}

// MultiStartResult holds the selected optimum plus every restart for
// diagnostic comparison
type MultiStartResult struct {
	Best     fit.OptimizationResult
	Restarts []RestartOutcome

	// Multimodal is set when converged restarts disagree materially in
	// objective value or parameter estimate
	Multimodal      bool
	ObjectiveSpread float64
	FailedRestarts  int
}

// MultiStart runs R independent local optimizations of obj and keeps the
// best local optimum. Restarts are independent side-effect-free
// computations over the immutable design, so they run in parallel under
// a weighted semaphore; a single failed restart is skipped, and only all
// restarts failing is fatal.
type MultiStart struct {
	cfg Config
}

// NewMultiStart creates a multi-start optimizer
func NewMultiStart(cfg Config) *MultiStart {
	return &MultiStart{cfg: cfg}
}

// Run executes the configured restarts and reduces to the best result.
// Ties on the objective break to the first-found (lowest restart index).
func (m *MultiStart) Run(ctx context.Context, obj objective.Objective) (*MultiStartResult, error) {
	if err := m.cfg.validate(); err != nil {
		return nil, err
	}

	outcomes := make([]RestartOutcome, m.cfg.Restarts)
	sem := semaphore.NewWeighted(m.cfg.MaxWorkers)
	var wg sync.WaitGroup

	for r := 0; r < m.cfg.Restarts; r++ {
		seed := m.cfg.BaseSeed + int64(r)
		outcomes[r] = RestartOutcome{Seed: seed}

		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[r].Err = err
			continue
		}
		wg.Add(1)
		go func(r int, seed int64) {
			defer wg.Done()
			defer sem.Release(1)
			res, err := m.runOne(obj, seed)
			if err != nil {
				log.Printf("[MultiStart] %s restart %d (seed %d) failed: %v", obj.Name(), r, seed, err)
				outcomes[r].Err = err
				return
			}
			outcomes[r].Result = res
		}(r, seed)
	}
	wg.Wait()

	return m.reduce(obj, outcomes)
}

// runOne performs a single local optimization from a seeded start point
func (m *MultiStart) runOne(obj objective.Objective, seed int64) (result *fit.OptimizationResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("%w: optimizer panic: %v", core.ErrNonConvergence, rec)
		}
	}()

	rng := rand.New(rand.NewSource(uint64(seed)))
	start := obj.Start(rng, m.cfg.InitLow, m.cfg.InitHigh)
	if len(start) != obj.Dim() {
		return nil, core.ErrDimensionMismatch
	}
	if math.IsInf(obj.Eval(start), 1) {
		return nil, fmt.Errorf("%w: objective undefined at start point", core.ErrNonConvergence)
	}

	// Minimize does not estimate gradients on its own; BFGS needs an
	// explicit Grad, so central finite differences supply it. The
	// gradient threshold is relaxed accordingly: numerical gradients
	// near an optimum bottom out well above the exact-gradient default.
	problem := optimize.Problem{
		Func: obj.Eval,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, obj.Eval, x, nil)
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   500,
		Runtime:           m.cfg.MaxRuntime,
		GradientThreshold: 1e-6,
	}

	var method optimize.Method
	switch m.cfg.methodFor(obj.Method()) {
	case MethodNelderMead:
		method = &optimize.NelderMead{}
	default:
		method = &optimize.BFGS{}
	}

	opt, err := optimize.Minimize(problem, start, settings, method)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNonConvergence, err)
	}
	if err := opt.Status.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNonConvergence, err)
	}
	if math.IsNaN(opt.F) || math.IsInf(opt.F, 0) {
		return nil, fmt.Errorf("%w: non-finite optimum", core.ErrNonConvergence)
	}

	params := make([]float64, len(opt.X))
	copy(params, opt.X)

	return &fit.OptimizationResult{
		Seed:      seed,
		Params:    params,
		Objective: opt.F,
		Hessian:   m.hessianAt(obj, params),
		Converged: true,
	}, nil
}

// hessianAt estimates the curvature at the optimum by central finite
// differences. A NaN-contaminated Hessian is dropped; the point estimate
// stays usable and interval construction reports the failure instead.
func (m *MultiStart) hessianAt(obj objective.Objective, params []float64) [][]float64 {
	n := len(params)
	sym := mat.NewSymDense(n, nil)
	fd.Hessian(sym, obj.Eval, params, nil)

	h := make([][]float64, n)
	for i := 0; i < n; i++ {
		h[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			v := sym.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil
			}
			h[i][j] = v
		}
	}
	return h
}

// reduce selects the smallest objective among the successful restarts
// and computes the multimodality diagnostics
func (m *MultiStart) reduce(obj objective.Objective, outcomes []RestartOutcome) (*MultiStartResult, error) {
	res := &MultiStartResult{Restarts: outcomes}

	var succeeded []*fit.OptimizationResult
	for _, out := range outcomes {
		if out.Err != nil {
			res.FailedRestarts++
			continue
		}
		succeeded = append(succeeded, out.Result)
	}
	if len(succeeded) == 0 {
		return nil, errors.FitFailure(
			fmt.Sprintf("%s: all %d restarts failed", obj.Name(), m.cfg.Restarts),
			core.ErrAllRestartsFailed,
		)
	}

	best := succeeded[0]
	for _, r := range succeeded[1:] {
		if r.Objective < best.Objective {
			best = r
		}
	}
	res.Best = *best

	res.ObjectiveSpread, res.Multimodal = multimodality(best, succeeded)
	if res.Multimodal {
		log.Printf("[MultiStart] %s: converged restarts disagree (spread %.4g); fit may be multimodal", obj.Name(), res.ObjectiveSpread)
	}
	return res, nil
}

// multimodality compares the best restarts: near-equal objectives with
// distant parameter vectors, or a wide objective spread among the top
// results, both flag an unreliable surface.
func multimodality(best *fit.OptimizationResult, all []*fit.OptimizationResult) (spread float64, multimodal bool) {
	if len(all) < 2 {
		return 0, false
	}

	objs := make([]float64, len(all))
	for i, r := range all {
		objs[i] = r.Objective
	}
	sort.Float64s(objs)

	top := objs
	if len(top) > 3 {
		top = top[:3]
	}
	scale := 1 + math.Abs(best.Objective)
	spread = (top[len(top)-1] - top[0]) / scale
	if spread > 1e-2 {
		return spread, true
	}

	// Same optimum value reached at distant parameters
	for _, r := range all {
		if r == best {
			continue
		}
		if math.Abs(r.Objective-best.Objective)/scale < 1e-4 && paramDistance(r.Params, best.Params) > 0.05 {
			return spread, true
		}
	}
	return spread, false
}

func paramDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
