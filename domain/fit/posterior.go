package fit

// ParamSummary summarizes one parameter's pooled posterior draws
type ParamSummary struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	MCSE  float64 `json:"mcse"`
	SD    float64 `json:"sd"`
	Q2_5  float64 `json:"q2_5"`
	Q25   float64 `json:"q25"`
	Q50   float64 `json:"q50"`
	Q75   float64 `json:"q75"`
	Q97_5 float64 `json:"q97_5"`
	RHat  float64 `json:"r_hat"`
}

// Posterior holds the sampler output: per-parameter summaries, raw
// predictive draws and per-observation log-likelihoods (opaque arrays
// for downstream model-comparison tooling), and reliability diagnostics.
// Never mutated after sampling completes.
type Posterior struct {
	Summaries     []ParamSummary `json:"summaries"`
	Predictive    [][]float64    `json:"predictive,omitempty"`
	LogLik        [][]float64    `json:"log_lik,omitempty"`
	Chains        int            `json:"chains"`
	DrawsPerChain int            `json:"draws_per_chain"`
	AcceptRate    float64        `json:"accept_rate"`
	Unreliable    bool           `json:"unreliable"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// Summary returns the summary row for a named parameter
func (p *Posterior) Summary(name string) (ParamSummary, bool) {
	for _, s := range p.Summaries {
		if s.Name == name {
			return s, true
		}
	}
	return ParamSummary{}, false
}
