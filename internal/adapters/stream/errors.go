package stream

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNilBuffer  = errors.New("stream: nil frame buffer")
	ErrOutOfOrder = errors.New("stream: out-of-order frame")
	ErrClosed     = errors.New("stream: buffer closed")
)
