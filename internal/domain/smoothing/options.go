package smoothing

// Option applies a configuration option to the Smoother.
type Option func(*Smoother)

// WithMinCutoff sets the minimum cutoff frequency in Hz.
func WithMinCutoff(hz float64) Option {
	return func(s *Smoother) {
		if hz > 0 {
			s.minCutoff = hz
		}
	}
}

// WithBeta sets the speed coefficient that raises the cutoff with
// estimated signal speed.
func WithBeta(beta float64) Option {
	return func(s *Smoother) {
		if beta >= 0 {
			s.beta = beta
		}
	}
}

// WithDerivativeCutoff sets the cutoff frequency for the derivative
// estimate in Hz.
func WithDerivativeCutoff(hz float64) Option {
	return func(s *Smoother) {
		if hz > 0 {
			s.dCutoff = hz
		}
	}
}
