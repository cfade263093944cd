package pose

import "errors"

// Sentinel kinds for pose frame validation.
var (
	ErrMalformedFrame = errors.New("malformed pose frame")
)
