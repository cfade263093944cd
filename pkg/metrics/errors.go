package metrics

import "errors"

// Sentinel kinds for metrics errors.
var (
	ErrMetricsDisabled = errors.New("metrics collection is disabled")
)
