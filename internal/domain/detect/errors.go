package detect

import "errors"

// ErrNilTable is returned when a detector is constructed without thresholds.
var ErrNilTable = errors.New("detect: nil threshold table")
