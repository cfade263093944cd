package align

import "errors"

// Sentinel kinds for aligner construction.
var (
	ErrNilTemplate = errors.New("aligner requires a template")
	ErrUnknownMode = errors.New("unknown alignment mode")
)
