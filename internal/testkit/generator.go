package testkit

import (
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"gocanopy/domain/canopy"
)

// Scenario describes a synthetic canopy experiment: a true extinction
// coefficient per group, a shared precision, and the predictor grid each
// group is observed at
type Scenario struct {
	TrueK      map[canopy.GroupLabel]float64
	Kappa      float64
	Predictors []float64
	Replicates int
}

// DefaultScenario returns a two-group scenario with visibly different
// extinction coefficients
func DefaultScenario() Scenario {
	return Scenario{
		TrueK: map[canopy.GroupLabel]float64{
			"dense":  0.9,
			"sparse": 0.4,
		},
		Kappa:      50,
		Predictors: []float64{0.5, 1, 1.5, 2, 3, 4},
		Replicates: 5,
	}
}

// Generator produces seeded synthetic observations from a known model,
// for calibration tests and demo input. The same seed always produces
// the same observation sequence.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a seeded generator
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(uint64(seed)))}
}

// Generate draws Beta-proportion observations for the scenario. Groups
// are visited in sorted label order so generation order is stable.
func (g *Generator) Generate(sc Scenario) []canopy.Observation {
	labels := make([]canopy.GroupLabel, 0, len(sc.TrueK))
	for label := range sc.TrueK {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	var out []canopy.Observation
	for _, label := range labels {
		k := sc.TrueK[label]
		for _, x := range sc.Predictors {
			for r := 0; r < sc.Replicates; r++ {
				out = append(out, canopy.Observation{
					Response:  g.drawResponse(k, x, sc.Kappa),
					Predictor: x,
					Group:     label,
				})
			}
		}
	}
	return out
}

// minGeneratedMean floors the Beta mean for degenerate rows (x = 0
// gives mu = 0, an invalid shape whose draws would never land inside
// the open interval)
const minGeneratedMean = 1e-3

// drawResponse samples y ~ BetaProportion(mu, kappa), resampling the
// (measure-zero) boundary values that the open-interval domain rejects
func (g *Generator) drawResponse(k, x, kappa float64) float64 {
	mu := canopy.Mean(k, x)
	if mu < minGeneratedMean {
		mu = minGeneratedMean
	}
	dist := distuv.Beta{Alpha: mu * kappa, Beta: (1 - mu) * kappa, Src: g.rng}
	for {
		y := dist.Rand()
		if y > 0 && y < 1 {
			return y
		}
	}
}
