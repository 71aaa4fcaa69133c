package ports

import (
	"context"

	"gocanopy/domain/canopy"
)

// ObservationReader loads raw observations from an external tabular
// source. Validation happens at design construction, not here.
type ObservationReader interface {
	ReadObservations(ctx context.Context) ([]canopy.Observation, error)
}
