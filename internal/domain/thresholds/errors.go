package thresholds

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrEmptyExerciseID = errors.New("thresholds: empty exercise id")
	ErrNoSpecs         = errors.New("thresholds: no specs")
	ErrInvalidSpec     = errors.New("thresholds: invalid spec")
	ErrDuplicateSpec   = errors.New("thresholds: duplicate spec")
	ErrUnknownExercise = errors.New("thresholds: unknown exercise")
	ErrUncoveredJoint  = errors.New("thresholds: joint has no specs")
	ErrLoadTable       = errors.New("thresholds: load failed")
)
