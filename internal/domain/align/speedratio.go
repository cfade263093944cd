package align

import (
	"gonum.org/v1/gonum/stat"

	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/template"
)

// Default speed-ratio configuration constants.
const (
	defaultProminenceDeg  = 10.0 // reversal needed to confirm a rep boundary
	defaultSeparationMS   = 250  // debounce between rep boundaries
	defaultRatioWindow    = 6    // matched boundaries kept for the ratio estimate
	defaultStillEpsilon   = 0.35 // per-frame angle delta treated as stillness
	defaultStillAfter     = 8    // consecutive still frames before a hold
	minPaceRatio          = 0.5
	maxPaceRatio          = 1.5
	missingJointPenalty   = 0.5
	sharedJointFloorBoost = 0.5
)

// SpeedRatioAligner estimates a pace ratio between live and template
// elapsed time from matched peak/trough rep boundaries on a tracking
// joint, then maps live timestamps linearly. O(1) per frame.
type SpeedRatioAligner struct {
	tpl           *template.Template
	trackingJoint pose.JointKey
	prominence    float64
	separationMS  uint64
	ratioWindow   int
	stillEpsilon  float64
	stillAfter    int

	tplExtrema []extremum
	liveDet    *extremumDetector

	started   bool
	startTS   uint64
	lastTS    uint64
	pausedMS  uint64
	liveIndex int

	lastAngle     float64
	haveLastAngle bool
	stillCount    int

	nextMatch int
	ratios    []float64

	lastEntry Entry
	haveEntry bool
}

// SpeedRatioOption applies a configuration option to the SpeedRatioAligner.
type SpeedRatioOption func(*SpeedRatioAligner)

// WithTrackingJoint sets the joint whose rep boundaries drive the pace
// estimate. Defaults to the template's primary joint, falling back to
// the joint with the widest angular range in the template.
func WithTrackingJoint(key pose.JointKey) SpeedRatioOption {
	return func(a *SpeedRatioAligner) {
		if key.Valid() {
			a.trackingJoint = key
		}
	}
}

// WithProminence sets the reversal in degrees that confirms a rep boundary.
func WithProminence(deg float64) SpeedRatioOption {
	return func(a *SpeedRatioAligner) {
		if deg > 0 {
			a.prominence = deg
		}
	}
}

// WithBoundarySeparation sets the debounce between rep boundaries.
func WithBoundarySeparation(ms uint64) SpeedRatioOption {
	return func(a *SpeedRatioAligner) {
		a.separationMS = ms
	}
}

// WithRatioWindow sets how many matched boundaries feed the sliding
// pace estimate.
func WithRatioWindow(n int) SpeedRatioOption {
	return func(a *SpeedRatioAligner) {
		if n > 0 {
			a.ratioWindow = n
		}
	}
}

// NewSpeedRatio creates a speed-ratio aligner for the given template.
func NewSpeedRatio(tpl *template.Template, opts ...SpeedRatioOption) (*SpeedRatioAligner, error) {
	if tpl == nil {
		return nil, ErrNilTemplate
	}

	a := &SpeedRatioAligner{
		tpl:           tpl,
		trackingJoint: pickTrackingJoint(tpl),
		prominence:    defaultProminenceDeg,
		separationMS:  defaultSeparationMS,
		ratioWindow:   defaultRatioWindow,
		stillEpsilon:  defaultStillEpsilon,
		stillAfter:    defaultStillAfter,
		liveIndex:     -1,
	}

	// Apply all options
	for _, opt := range opts {
		opt(a)
	}

	a.tplExtrema = templateExtrema(tpl, a.trackingJoint, a.prominence, a.separationMS)
	a.liveDet = newExtremumDetector(a.prominence, a.separationMS)
	return a, nil
}

// Align maps the next live frame. Non-increasing timestamps return the
// previous entry unchanged.
func (a *SpeedRatioAligner) Align(live pose.AngleFrame) (Entry, error) {
	if a.haveEntry && live.TimestampMS <= a.lastTS {
		return a.lastEntry, nil
	}

	a.liveIndex++
	if !a.started {
		a.started = true
		a.startTS = live.TimestampMS
		a.lastTS = live.TimestampMS
	}

	dt := live.TimestampMS - a.lastTS
	a.lastTS = live.TimestampMS

	angle, tracked := live.Angle(a.trackingJoint)
	paused := a.updateStillness(angle, tracked, dt)

	elapsed := live.TimestampMS - a.startTS - a.pausedMS

	if tracked && !paused {
		if ex, emitted := a.liveDet.observe(elapsed, angle.Degrees); emitted {
			a.matchBoundary(ex)
		}
	}

	ratio := a.paceRatio()
	targetMS := a.tpl.StartMS() + uint64(float64(elapsed)*ratio)
	idx := a.tpl.NearestTime(targetMS)

	// Template progress never rewinds; a shrinking pace estimate holds
	// the last index until live time catches up.
	if a.haveEntry && idx < a.lastEntry.TemplateIndex {
		idx = a.lastEntry.TemplateIndex
	}

	entry := Entry{
		LiveIndex:     a.liveIndex,
		TemplateIndex: idx,
		Confidence:    a.confidence(&live, idx, tracked),
	}
	a.lastEntry = entry
	a.haveEntry = true
	return entry, nil
}

// Reset discards all alignment state.
func (a *SpeedRatioAligner) Reset() {
	a.liveDet.reset()
	a.started = false
	a.startTS = 0
	a.lastTS = 0
	a.pausedMS = 0
	a.liveIndex = -1
	a.haveLastAngle = false
	a.stillCount = 0
	a.nextMatch = 0
	a.ratios = a.ratios[:0]
	a.lastEntry = Entry{}
	a.haveEntry = false
}

// updateStillness tracks subject stillness and accumulates paused time
// so a held position does not drift the mapping forward.
func (a *SpeedRatioAligner) updateStillness(angle pose.Angle, tracked bool, dtMS uint64) bool {
	if !tracked {
		// Without the tracking joint the pace estimate cannot advance;
		// hold in place until it returns.
		a.pausedMS += dtMS
		a.haveLastAngle = false
		a.stillCount = 0
		return true
	}

	if a.haveLastAngle && absDelta(angle.Degrees, a.lastAngle) < a.stillEpsilon {
		a.stillCount++
	} else {
		a.stillCount = 0
	}
	a.lastAngle = angle.Degrees
	a.haveLastAngle = true

	if a.stillCount >= a.stillAfter {
		a.pausedMS += dtMS
		return true
	}
	return false
}

// matchBoundary pairs a confirmed live rep boundary with the next
// template boundary of the same kind and records the cumulative pace
// ratio it implies.
func (a *SpeedRatioAligner) matchBoundary(ex extremum) {
	for a.nextMatch < len(a.tplExtrema) && a.tplExtrema[a.nextMatch].kind != ex.kind {
		a.nextMatch++
	}
	if a.nextMatch >= len(a.tplExtrema) {
		return
	}

	tplElapsed := a.tplExtrema[a.nextMatch].timestampMS - a.tpl.StartMS()
	a.nextMatch++

	if ex.timestampMS == 0 {
		return
	}
	r := float64(tplElapsed) / float64(ex.timestampMS)
	a.ratios = append(a.ratios, r)
	if len(a.ratios) > a.ratioWindow {
		a.ratios = a.ratios[len(a.ratios)-a.ratioWindow:]
	}
}

// paceRatio is the clamped sliding-window mean of matched-boundary
// ratios, 1.0 until the first boundary is matched.
func (a *SpeedRatioAligner) paceRatio() float64 {
	if len(a.ratios) == 0 {
		return 1.0
	}
	return clamp(stat.Mean(a.ratios, nil), minPaceRatio, maxPaceRatio)
}

// confidence blends pace-estimate stability with joint coverage of the
// aligned pair.
func (a *SpeedRatioAligner) confidence(live *pose.AngleFrame, tplIndex int, tracked bool) float64 {
	conf := 1.0
	if len(a.ratios) >= 2 {
		conf = 1.0 / (1.0 + 2.0*stat.StdDev(a.ratios, nil))
	}

	if tplFrame, err := a.tpl.FrameAt(tplIndex); err == nil {
		shared := sharedJointFraction(live, &tplFrame)
		conf *= sharedJointFloorBoost + (1-sharedJointFloorBoost)*shared
	}

	if !tracked {
		conf *= missingJointPenalty
	}
	return clamp(conf, 0, 1)
}

// pickTrackingJoint prefers the template's primary joint, otherwise the
// joint with the widest angular range in the template.
func pickTrackingJoint(tpl *template.Template) pose.JointKey {
	if key, ok := tpl.PrimaryJoint(); ok {
		return key
	}

	best := pose.JointLeftKnee
	bestRange := -1.0
	for _, key := range pose.AllJoints() {
		lo, hi, seen := jointRange(tpl, key)
		if seen && hi-lo > bestRange {
			bestRange = hi - lo
			best = key
		}
	}
	return best
}

// jointRange scans the template for the min and max of one joint.
func jointRange(tpl *template.Template, key pose.JointKey) (lo, hi float64, seen bool) {
	for i := 0; i < tpl.Len(); i++ {
		frame, err := tpl.FrameAt(i)
		if err != nil {
			break
		}
		a, ok := frame.Angle(key)
		if !ok {
			continue
		}
		if !seen {
			lo, hi, seen = a.Degrees, a.Degrees, true
			continue
		}
		if a.Degrees < lo {
			lo = a.Degrees
		}
		if a.Degrees > hi {
			hi = a.Degrees
		}
	}
	return lo, hi, seen
}

// templateExtrema precomputes the reference rep boundaries.
func templateExtrema(tpl *template.Template, key pose.JointKey, prominence float64, separationMS uint64) []extremum {
	det := newExtremumDetector(prominence, separationMS)
	var out []extremum
	for i := 0; i < tpl.Len(); i++ {
		frame, err := tpl.FrameAt(i)
		if err != nil {
			break
		}
		a, ok := frame.Angle(key)
		if !ok {
			continue
		}
		if ex, emitted := det.observe(frame.TimestampMS, a.Degrees); emitted {
			out = append(out, ex)
		}
	}
	return out
}

func absDelta(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
