package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocanopy/domain/canopy"
)

func TestGenerate(t *testing.T) {
	t.Run("produces a valid dataset", func(t *testing.T) {
		observations := NewGenerator(42).Generate(DefaultScenario())
		require.Len(t, observations, 2*6*5)

		design, err := canopy.NewGroupedDesign(observations)
		require.NoError(t, err)
		assert.Equal(t, 2, design.NumGroups())

		for _, obs := range observations {
			assert.Greater(t, obs.Response, 0.0)
			assert.Less(t, obs.Response, 1.0)
		}
	})

	t.Run("same seed reproduces the sequence", func(t *testing.T) {
		first := NewGenerator(7).Generate(DefaultScenario())
		second := NewGenerator(7).Generate(DefaultScenario())
		assert.Equal(t, first, second)
	})

	t.Run("different seeds diverge", func(t *testing.T) {
		first := NewGenerator(1).Generate(DefaultScenario())
		second := NewGenerator(2).Generate(DefaultScenario())
		assert.NotEqual(t, first, second)
	})

	t.Run("zero predictor rows still terminate with valid responses", func(t *testing.T) {
		observations := NewGenerator(1).Generate(Scenario{
			TrueK:      map[canopy.GroupLabel]float64{"flat": 0.5},
			Kappa:      50,
			Predictors: []float64{0},
			Replicates: 5,
		})
		require.Len(t, observations, 5)
		for _, obs := range observations {
			assert.Greater(t, obs.Response, 0.0)
			assert.Less(t, obs.Response, 1.0)
		}
	})

	t.Run("denser canopy intercepts more on average", func(t *testing.T) {
		observations := NewGenerator(42).Generate(DefaultScenario())
		sums := map[canopy.GroupLabel]float64{}
		counts := map[canopy.GroupLabel]float64{}
		for _, obs := range observations {
			sums[obs.Group] += obs.Response
			counts[obs.Group]++
		}
		assert.Greater(t, sums["dense"]/counts["dense"], sums["sparse"]/counts["sparse"])
	})
}
