package template

import "errors"

// Sentinel kinds for template construction and access.
var (
	ErrEmptyExerciseID = errors.New("exercise id must not be empty")
	ErrNoFrames        = errors.New("template requires at least one frame")
	ErrUnorderedFrames = errors.New("template frames out of timestamp order")
	ErrIndexOutOfRange = errors.New("template index out of range")
)
