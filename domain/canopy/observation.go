package canopy

import (
	"gocanopy/domain/core"
)

// GroupLabel identifies a treatment group (e.g. a cultivar or canopy type)
type GroupLabel string

// Observation pairs a fractional light-interception response with a
// continuous predictor (typically leaf area index) for one group.
// Response must lie strictly inside (0,1); boundary values are rejected
// because the Beta likelihood is undefined there and clamping would
// silently bias the fit.
type Observation struct {
	Response  float64    `json:"response"`
	Predictor float64    `json:"predictor"`
	Group     GroupLabel `json:"group"`
}

// Validate checks the observation against the model domain
func (o Observation) Validate() error {
	if o.Predictor < 0 {
		return core.ErrNegativePredictor
	}
	if o.Response <= 0 || o.Response >= 1 {
		return core.ErrResponseOutOfRange
	}
	return nil
}
