package bayes

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"gocanopy/domain/fit"
)

// summarize pools the surviving chains, computes split R-hat per
// parameter and the five-point quantile summaries
func (e *Engine) summarize(spec *ModelSpec, chains []*chainState) (*fit.Posterior, error) {
	names := spec.ParamNames()
	dim := spec.Dim()

	res := &fit.Posterior{
		Chains:        len(chains),
		DrawsPerChain: e.cfg.Samples,
	}

	var accepted, proposed int
	for _, c := range chains {
		accepted += c.accepted
		proposed += c.proposed
		res.Predictive = append(res.Predictive, c.predictive...)
		res.LogLik = append(res.LogLik, c.logLik...)
	}
	if proposed > 0 {
		res.AcceptRate = float64(accepted) / float64(proposed)
	}

	for j := 0; j < dim; j++ {
		perChain := make([][]float64, len(chains))
		var pooled []float64
		for ci, c := range chains {
			seq := make([]float64, len(c.draws))
			for i, draw := range c.draws {
				seq[i] = draw[j]
			}
			perChain[ci] = seq
			pooled = append(pooled, seq...)
		}

		mean, _ := stats.Mean(pooled)
		sd, _ := stats.StandardDeviationSample(pooled)
		q2_5, _ := stats.Percentile(pooled, 2.5)
		q25, _ := stats.Percentile(pooled, 25)
		q50, _ := stats.Percentile(pooled, 50)
		q75, _ := stats.Percentile(pooled, 75)
		q97_5, _ := stats.Percentile(pooled, 97.5)

		rhat := splitRHat(perChain)

		res.Summaries = append(res.Summaries, fit.ParamSummary{
			Name:  names[j],
			Mean:  mean,
			MCSE:  sd / math.Sqrt(float64(len(pooled))),
			SD:    sd,
			Q2_5:  q2_5,
			Q25:   q25,
			Q50:   q50,
			Q75:   q75,
			Q97_5: q97_5,
			RHat:  rhat,
		})

		if len(chains) > 1 && (math.IsNaN(rhat) || rhat > e.cfg.RHatThreshold) {
			res.Unreliable = true
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("chain disagreement on %s: split r-hat %.3f exceeds %.3f", names[j], rhat, e.cfg.RHatThreshold))
		}
	}

	if len(chains) < e.cfg.Chains {
		res.Unreliable = true
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d of %d chains produced no draws", e.cfg.Chains-len(chains), e.cfg.Chains))
	}

	return res, nil
}
