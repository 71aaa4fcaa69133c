package app

import (
	"context"
	"log"
	"time"

	"gocanopy/adapters/stats/bayes"
	"gocanopy/adapters/stats/inference"
	"gocanopy/adapters/stats/objective"
	"gocanopy/adapters/stats/optimizer"
	"gocanopy/domain/canopy"
	"gocanopy/domain/core"
	"gocanopy/domain/fit"
	"gocanopy/internal/errors"
	"gocanopy/ports"
)

// FitRequest defines the inputs for one complete estimation run
type FitRequest struct {
	Observations []canopy.Observation
	Optimizer    optimizer.Config
	Sampler      bayes.Config
	Level        float64
	Predictive   []bayes.PredictivePoint

	// RunBayes disables the sampler when false (the optimizer methods
	// are much cheaper and often all that is wanted)
	RunBayes bool
}

// FitOutcome contains the complete output of a run. The three
// likelihood-based methods and the sampler are independent: a failure in
// one is recorded in MethodErrors and the rest proceed.
type FitOutcome struct {
	RunID        core.RunID            `json:"run_id"`
	Tables       []fit.EstimateTable   `json:"tables"`
	Posterior    *fit.Posterior        `json:"posterior,omitempty"`
	MethodErrors map[fit.Method]string `json:"method_errors,omitempty"`
	Groups       []canopy.GroupLabel   `json:"groups"`
	RuntimeMs    int64                 `json:"runtime_ms"`
}

// FitService orchestrates design construction, the three estimation
// methods and the Bayesian sampler, and optional persistence
type FitService struct {
	repo ports.FitResultRepository // nil disables persistence
}

// NewFitService creates a fit service
func NewFitService(repo ports.FitResultRepository) *FitService {
	return &FitService{repo: repo}
}

// Run executes the full estimation pipeline for one dataset
func (s *FitService) Run(ctx context.Context, req FitRequest) (*FitOutcome, error) {
	startTime := time.Now()

	design, err := canopy.NewGroupedDesign(req.Observations)
	if err != nil {
		if core.IsInputError(err) {
			return nil, errors.WithCode(errors.CodeInvalidInput, err)
		}
		return nil, errors.Wrap(err, "failed to construct design")
	}

	level := req.Level
	if level == 0 {
		level = inference.DefaultLevel
	}
	delta, err := inference.NewDeltaMethod(level)
	if err != nil {
		return nil, err
	}

	outcome := &FitOutcome{
		RunID:        core.NewRunID(),
		Groups:       design.Groups().Labels(),
		MethodErrors: make(map[fit.Method]string),
	}

	objectives := []objective.Objective{
		objective.NewLeastSquares(design),
		objective.NewGaussianNLL(design),
		objective.NewBetaNLL(design),
	}
	ms := optimizer.NewMultiStart(req.Optimizer)

	labels := design.Groups().Labels()
	for _, obj := range objectives {
		table, err := s.fitOne(ctx, ms, delta, obj, labels)
		if err != nil {
			log.Printf("[FitService] %s failed: %v", obj.Name(), err)
			outcome.MethodErrors[obj.Method()] = err.Error()
			continue
		}
		outcome.Tables = append(outcome.Tables, *table)
	}

	if req.RunBayes {
		posterior, err := s.sample(ctx, design, req)
		if err != nil {
			log.Printf("[FitService] bayes failed: %v", err)
			outcome.MethodErrors[fit.MethodBayes] = err.Error()
		} else {
			outcome.Posterior = posterior
		}
	}

	if len(outcome.Tables) == 0 && outcome.Posterior == nil {
		return nil, errors.FitFailure("every estimation method failed", nil)
	}

	s.persist(ctx, outcome)
	outcome.RuntimeMs = time.Since(startTime).Milliseconds()
	return outcome, nil
}

// fitOne runs multi-start optimization for one objective and propagates
// the curvature into per-group intervals
func (s *FitService) fitOne(ctx context.Context, ms *optimizer.MultiStart, delta *inference.DeltaMethod, obj objective.Objective, labels []canopy.GroupLabel) (*fit.EstimateTable, error) {
	res, err := ms.Run(ctx, obj)
	if err != nil {
		return nil, err
	}

	table := &fit.EstimateTable{
		Method: obj.Method(),
		Level:  delta.Level(),
		Diagnostics: fit.Diagnostics{
			Restarts:        len(res.Restarts),
			FailedRestarts:  res.FailedRestarts,
			BestObjective:   res.Best.Objective,
			ObjectiveSpread: res.ObjectiveSpread,
			Multimodal:      res.Multimodal,
		},
	}

	transforms := obj.GroupTransforms()
	estimates, err := delta.Intervals(res.Best, transforms)
	if err != nil {
		// The point estimate survives a bad Hessian; intervals do not
		log.Printf("[FitService] %s: intervals unavailable: %v", obj.Name(), err)
		for j, tr := range transforms {
			table.Rows = append(table.Rows, fit.EstimateRow{
				Group:    labels[j],
				Estimate: tr.Apply(res.Best.Params),
			})
		}
		return table, nil
	}

	table.Diagnostics.HessianUsable = true
	for j, est := range estimates {
		table.Rows = append(table.Rows, fit.EstimateRow{
			Group:    labels[j],
			Estimate: est.Value,
			StdErr:   est.StdErr,
			Lower:    est.Lower,
			Upper:    est.Upper,
		})
	}
	return table, nil
}

// sample builds the declarative model and hands it to the MCMC engine
func (s *FitService) sample(ctx context.Context, design *canopy.GroupedDesign, req FitRequest) (*fit.Posterior, error) {
	spec, err := bayes.NewModelSpec(design, req.Predictive)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	engine := bayes.NewEngine(req.Sampler)
	result, err := engine.Sample(ctx, spec)
	if err != nil {
		return nil, err
	}
	for _, w := range result.Warnings {
		log.Printf("[FitService] sampler warning: %s", w)
	}
	return result, nil
}

// persist stores the outcome when a repository is configured; storage
// failures are logged, never fatal
func (s *FitService) persist(ctx context.Context, outcome *FitOutcome) {
	if s.repo == nil {
		return
	}
	if len(outcome.Tables) > 0 {
		if err := s.repo.SaveRun(ctx, outcome.RunID, outcome.Tables); err != nil {
			log.Printf("[FitService] failed to persist estimates: %v", err)
		}
	}
	if outcome.Posterior != nil {
		if err := s.repo.SavePosteriorSummaries(ctx, outcome.RunID, outcome.Posterior); err != nil {
			log.Printf("[FitService] failed to persist posterior summaries: %v", err)
		}
	}
}
