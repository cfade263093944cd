package session

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNilTemplate      = errors.New("session: nil template")
	ErrNilThresholds    = errors.New("session: nil threshold table")
	ErrExerciseMismatch = errors.New("session: exercise mismatch")
	ErrNoUsableFrames   = errors.New("session: no usable template frames")
)
