package deviation

import "errors"

// ErrNilTemplate is returned when an engine is constructed without a template.
var ErrNilTemplate = errors.New("deviation: nil template")
