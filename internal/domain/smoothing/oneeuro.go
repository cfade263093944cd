// Package smoothing removes sensor and model jitter from landmark
// streams with a derivative-driven adaptive low-pass filter.
package smoothing

import "math"

// axisFilter is a One Euro filter for a single scalar series. The cutoff
// frequency rises with the estimated signal speed, so slow motion gets
// heavy smoothing and fast motion stays responsive.
type axisFilter struct {
	minCutoff float64 // Hz
	beta      float64 // speed coefficient
	dCutoff   float64 // Hz, cutoff for the derivative estimate

	initialized bool
	prevRaw     float64
	prevOut     float64
	prevDeriv   float64
}

func newAxisFilter(minCutoff, beta, dCutoff float64) *axisFilter {
	return &axisFilter{
		minCutoff: minCutoff,
		beta:      beta,
		dCutoff:   dCutoff,
	}
}

// smoothingFactor converts a cutoff frequency and sample period into the
// exponential smoothing coefficient.
func smoothingFactor(cutoff, dt float64) float64 {
	tau := 1.0 / (2.0 * math.Pi * cutoff)
	return 1.0 / (1.0 + tau/dt)
}

func exponential(alpha, x, prev float64) float64 {
	return alpha*x + (1.0-alpha)*prev
}

// filter advances the series by one sample. dt is the elapsed time in
// seconds since the previous sample and must be positive.
func (f *axisFilter) filter(x, dt float64) float64 {
	if !f.initialized {
		f.initialized = true
		f.prevRaw = x
		f.prevOut = x
		f.prevDeriv = 0
		return x
	}

	// Derivative of the signal, itself low-passed to stay stable.
	deriv := (x - f.prevRaw) / dt
	alphaD := smoothingFactor(f.dCutoff, dt)
	derivHat := exponential(alphaD, deriv, f.prevDeriv)

	// Speed-adaptive cutoff.
	cutoff := f.minCutoff + f.beta*math.Abs(derivHat)
	alpha := smoothingFactor(cutoff, dt)
	out := exponential(alpha, x, f.prevOut)

	f.prevRaw = x
	f.prevOut = out
	f.prevDeriv = derivHat
	return out
}

// reset clears the filter state so the next sample starts a new segment.
func (f *axisFilter) reset() {
	f.initialized = false
	f.prevRaw = 0
	f.prevOut = 0
	f.prevDeriv = 0
}
