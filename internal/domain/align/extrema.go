package align

// extremumKind distinguishes rep-boundary peaks from troughs.
type extremumKind int

const (
	kindPeak extremumKind = iota
	kindTrough
)

// extremum is a confirmed local peak or trough of a joint-angle series.
type extremum struct {
	timestampMS uint64
	value       float64
	kind        extremumKind
}

// extremumDetector finds alternating peaks and troughs online using a
// zigzag rule: an extremum is confirmed once the series has reversed by
// at least minProminence degrees. Works identically on the template
// (offline) and the live stream (incremental).
type extremumDetector struct {
	minProminence   float64
	minSeparationMS uint64

	started bool
	rising  bool
	settled bool // direction established

	highVal float64
	highTS  uint64
	lowVal  float64
	lowTS   uint64

	lastEmitTS  uint64
	everEmitted bool
}

func newExtremumDetector(minProminence float64, minSeparationMS uint64) *extremumDetector {
	return &extremumDetector{
		minProminence:   minProminence,
		minSeparationMS: minSeparationMS,
	}
}

// observe consumes the next sample and returns a confirmed extremum when
// a reversal completes.
func (d *extremumDetector) observe(timestampMS uint64, value float64) (extremum, bool) {
	if !d.started {
		d.started = true
		d.highVal, d.highTS = value, timestampMS
		d.lowVal, d.lowTS = value, timestampMS
		return extremum{}, false
	}

	if value > d.highVal {
		d.highVal, d.highTS = value, timestampMS
	}
	if value < d.lowVal {
		d.lowVal, d.lowTS = value, timestampMS
	}

	if !d.settled {
		// Direction unknown until the series moves a full prominence
		// from either running extreme.
		switch {
		case value <= d.highVal-d.minProminence:
			d.settled = true
			d.rising = false
		case value >= d.lowVal+d.minProminence:
			d.settled = true
			d.rising = true
		}
		if !d.settled {
			return extremum{}, false
		}
	}

	if d.rising && value <= d.highVal-d.minProminence {
		// Reversal down: the running high was a peak.
		ex := extremum{timestampMS: d.highTS, value: d.highVal, kind: kindPeak}
		d.rising = false
		d.lowVal, d.lowTS = value, timestampMS
		return d.emit(ex)
	}

	if !d.rising && value >= d.lowVal+d.minProminence {
		// Reversal up: the running low was a trough.
		ex := extremum{timestampMS: d.lowTS, value: d.lowVal, kind: kindTrough}
		d.rising = true
		d.highVal, d.highTS = value, timestampMS
		return d.emit(ex)
	}

	return extremum{}, false
}

// emit applies the minimum-separation debounce.
func (d *extremumDetector) emit(ex extremum) (extremum, bool) {
	if d.everEmitted && ex.timestampMS < d.lastEmitTS+d.minSeparationMS {
		return extremum{}, false
	}
	d.everEmitted = true
	d.lastEmitTS = ex.timestampMS
	return ex, true
}

// reset clears the detector for a new segment.
func (d *extremumDetector) reset() {
	*d = extremumDetector{
		minProminence:   d.minProminence,
		minSeparationMS: d.minSeparationMS,
	}
}
