package ports

import (
	"context"

	"gocanopy/domain/core"
	"gocanopy/domain/fit"
)

// FitResultRepository persists estimation output for later comparison.
// Persistence is a thin external collaborator: failures here never
// invalidate the in-memory results.
type FitResultRepository interface {
	// SaveRun records a fit run and its per-method estimate tables
	SaveRun(ctx context.Context, runID core.RunID, tables []fit.EstimateTable) error

	// SavePosteriorSummaries records the Bayesian summary table for a run
	SavePosteriorSummaries(ctx context.Context, runID core.RunID, result *fit.Posterior) error

	// GetEstimates returns the stored estimate tables for a run
	GetEstimates(ctx context.Context, runID core.RunID) ([]fit.EstimateTable, error)

	// ListRuns returns the known run IDs, most recent first
	ListRuns(ctx context.Context, limit int) ([]core.RunID, error)
}
