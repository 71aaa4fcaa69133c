package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input validation errors
	ErrEmptyDataset       = errors.New("dataset contains no observations")
	ErrNegativePredictor  = errors.New("predictor must be nonnegative")
	ErrResponseOutOfRange = errors.New("response must lie strictly inside (0,1)")
	ErrUnknownGroup       = errors.New("unknown group label")

	// Estimation errors
	ErrNonConvergence       = errors.New("optimizer did not converge")
	ErrSingularHessian      = errors.New("hessian is singular or not positive definite")
	ErrAllRestartsFailed    = errors.New("all optimizer restarts failed")
	ErrNoUsableDraws        = errors.New("sampler produced no usable draws")
	ErrDimensionMismatch    = errors.New("parameter dimension mismatch")
	ErrInvalidConfiguration = errors.New("invalid estimation configuration")
)

// NewObservationError describes an invalid observation by position
func NewObservationError(index int, cause error) error {
	return fmt.Errorf("observation %d: %w", index, cause)
}

// IsInputError checks whether an error stems from malformed input data
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyDataset) ||
		errors.Is(err, ErrNegativePredictor) ||
		errors.Is(err, ErrResponseOutOfRange) ||
		errors.Is(err, ErrUnknownGroup)
}
