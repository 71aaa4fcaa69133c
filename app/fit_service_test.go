package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocanopy/adapters/stats/bayes"
	"gocanopy/adapters/stats/optimizer"
	"gocanopy/domain/canopy"
	"gocanopy/domain/core"
	"gocanopy/domain/fit"
	"gocanopy/internal/errors"
	"gocanopy/internal/testkit"
)

// memoryRepository captures persistence calls for assertions
type memoryRepository struct {
	savedRuns      map[core.RunID][]fit.EstimateTable
	savedPosterior map[core.RunID]*fit.Posterior
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		savedRuns:      make(map[core.RunID][]fit.EstimateTable),
		savedPosterior: make(map[core.RunID]*fit.Posterior),
	}
}

func (m *memoryRepository) SaveRun(_ context.Context, runID core.RunID, tables []fit.EstimateTable) error {
	m.savedRuns[runID] = tables
	return nil
}

func (m *memoryRepository) SavePosteriorSummaries(_ context.Context, runID core.RunID, result *fit.Posterior) error {
	m.savedPosterior[runID] = result
	return nil
}

func (m *memoryRepository) GetEstimates(_ context.Context, runID core.RunID) ([]fit.EstimateTable, error) {
	return m.savedRuns[runID], nil
}

func (m *memoryRepository) ListRuns(_ context.Context, _ int) ([]core.RunID, error) {
	ids := make([]core.RunID, 0, len(m.savedRuns))
	for id := range m.savedRuns {
		ids = append(ids, id)
	}
	return ids, nil
}

func testObservations() []canopy.Observation {
	return testkit.NewGenerator(42).Generate(testkit.Scenario{
		TrueK: map[canopy.GroupLabel]float64{
			"dense":  0.9,
			"sparse": 0.4,
		},
		Kappa:      50,
		Predictors: []float64{0.5, 1, 2, 3},
		Replicates: 4,
	})
}

func smallRequest(observations []canopy.Observation) FitRequest {
	opt := optimizer.DefaultConfig()
	opt.Restarts = 3
	opt.MaxWorkers = 2
	return FitRequest{
		Observations: observations,
		Optimizer:    opt,
		Sampler: bayes.Config{
			Chains:        1,
			Warmup:        150,
			Samples:       150,
			BaseSeed:      1,
			RHatThreshold: 1.05,
		},
		Level:    0.95,
		RunBayes: true,
	}
}

func TestFitServiceRun(t *testing.T) {
	repo := newMemoryRepository()
	service := NewFitService(repo)

	outcome, err := service.Run(context.Background(), smallRequest(testObservations()))
	require.NoError(t, err)
	require.NotNil(t, outcome)

	t.Run("all three optimizer methods produce tables", func(t *testing.T) {
		require.Len(t, outcome.Tables, 3)
		assert.Empty(t, outcome.MethodErrors)

		methods := make(map[fit.Method]bool)
		for _, table := range outcome.Tables {
			methods[table.Method] = true
			require.Len(t, table.Rows, 2)
			assert.Equal(t, canopy.GroupLabel("dense"), table.Rows[0].Group)
			assert.Equal(t, canopy.GroupLabel("sparse"), table.Rows[1].Group)
			assert.Greater(t, table.Rows[0].Estimate, table.Rows[1].Estimate,
				"method %s must order the groups correctly", table.Method)
		}
		assert.True(t, methods[fit.MethodLeastSquares])
		assert.True(t, methods[fit.MethodGaussianML])
		assert.True(t, methods[fit.MethodBetaML])
	})

	t.Run("estimates land near the generating coefficients", func(t *testing.T) {
		for _, table := range outcome.Tables {
			assert.InDelta(t, 0.9, table.Rows[0].Estimate, 0.3, "method %s dense", table.Method)
			assert.InDelta(t, 0.4, table.Rows[1].Estimate, 0.3, "method %s sparse", table.Method)
		}
	})

	t.Run("intervals bracket the point estimates", func(t *testing.T) {
		for _, table := range outcome.Tables {
			if !table.Diagnostics.HessianUsable {
				continue
			}
			for _, row := range table.Rows {
				assert.Less(t, row.Lower, row.Estimate)
				assert.Greater(t, row.Upper, row.Estimate)
				assert.Greater(t, row.StdErr, 0.0)
			}
		}
	})

	t.Run("posterior is attached", func(t *testing.T) {
		require.NotNil(t, outcome.Posterior)
		summary, ok := outcome.Posterior.Summary("k[dense]")
		require.True(t, ok)
		assert.InDelta(t, 0.9, summary.Mean, 0.3)
	})

	t.Run("results are persisted under the run id", func(t *testing.T) {
		assert.Contains(t, repo.savedRuns, outcome.RunID)
		assert.Contains(t, repo.savedPosterior, outcome.RunID)
	})

	t.Run("groups are reported in design order", func(t *testing.T) {
		assert.Equal(t, []canopy.GroupLabel{"dense", "sparse"}, outcome.Groups)
	})
}

func TestFitServiceRunWithoutRepository(t *testing.T) {
	service := NewFitService(nil)

	req := smallRequest(testObservations())
	req.RunBayes = false

	outcome, err := service.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, outcome.Tables, 3)
	assert.Nil(t, outcome.Posterior)
}

func TestFitServiceRunInvalidInput(t *testing.T) {
	service := NewFitService(nil)

	t.Run("boundary response is rejected", func(t *testing.T) {
		req := smallRequest([]canopy.Observation{
			{Response: 1.0, Predictor: 1, Group: "a"},
		})
		_, err := service.Run(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	})

	t.Run("empty dataset is rejected", func(t *testing.T) {
		req := smallRequest(nil)
		_, err := service.Run(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	})
}

func TestFitServiceRunIsolatesSamplerFailure(t *testing.T) {
	service := NewFitService(nil)

	req := smallRequest(testObservations())
	// An unknown predictive group kills only the Bayesian method
	req.Predictive = []bayes.PredictivePoint{{Group: "missing", Predictor: 1}}

	outcome, err := service.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, outcome.Tables, 3)
	assert.Nil(t, outcome.Posterior)
	assert.Contains(t, outcome.MethodErrors, fit.MethodBayes)
}
