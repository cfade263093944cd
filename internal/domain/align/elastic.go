package align

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/template"
)

// Default elastic-matching configuration constants.
const (
	defaultWindowMS      = 2000 // matching window, keeps per-frame cost O(window)
	defaultSlopePenalty  = 0.5  // cost added for in-row skips
	defaultDistanceScale = 15.0 // degrees of mean deviation treated as "far"
	minBandFrames        = 3
	recentDistancesKept  = 30
)

// ElasticAligner finds, for each live frame, the template index that
// minimizes cumulative angular distance under a dynamic-programming warp
// bounded to a recent window. Tolerates irregular tempo and pauses while
// keeping per-frame cost independent of session length.
type ElasticAligner struct {
	tpl           *template.Template
	windowMS      uint64
	slopePenalty  float64
	distanceScale float64

	bandWidth int

	started   bool
	liveIndex int
	lastTS    uint64

	bandStart int
	prevCosts []float64 // cumulative DP row over [bandStart, bandStart+len)

	recentDists []float64

	lastEntry Entry
	haveEntry bool
}

// ElasticOption applies a configuration option to the ElasticAligner.
type ElasticOption func(*ElasticAligner)

// WithWindow bounds the matching window duration.
func WithWindow(ms uint64) ElasticOption {
	return func(a *ElasticAligner) {
		if ms > 0 {
			a.windowMS = ms
		}
	}
}

// WithSlopePenalty sets the cost added for in-row insertions, which
// discourages the warp from sprinting through the template.
func WithSlopePenalty(p float64) ElasticOption {
	return func(a *ElasticAligner) {
		if p >= 0 {
			a.slopePenalty = p
		}
	}
}

// WithDistanceScale sets the mean angular deviation, in degrees, mapped
// to the midpoint of the confidence range.
func WithDistanceScale(deg float64) ElasticOption {
	return func(a *ElasticAligner) {
		if deg > 0 {
			a.distanceScale = deg
		}
	}
}

// NewElastic creates an elastic aligner for the given template.
func NewElastic(tpl *template.Template, opts ...ElasticOption) (*ElasticAligner, error) {
	if tpl == nil {
		return nil, ErrNilTemplate
	}

	a := &ElasticAligner{
		tpl:           tpl,
		windowMS:      defaultWindowMS,
		slopePenalty:  defaultSlopePenalty,
		distanceScale: defaultDistanceScale,
		liveIndex:     -1,
	}

	// Apply all options
	for _, opt := range opts {
		opt(a)
	}

	a.bandWidth = bandFrames(tpl, a.windowMS)
	return a, nil
}

// bandFrames converts the window duration into a frame count using the
// template's mean frame interval.
func bandFrames(tpl *template.Template, windowMS uint64) int {
	n := tpl.Len()
	if n < 2 || tpl.DurationMS() == 0 {
		return minBandFrames
	}
	interval := float64(tpl.DurationMS()) / float64(n-1)
	w := int(float64(windowMS)/interval) + 1
	if w < minBandFrames {
		w = minBandFrames
	}
	if w > n {
		w = n
	}
	return w
}

// Align maps the next live frame. Non-increasing timestamps return the
// previous entry unchanged.
func (a *ElasticAligner) Align(live pose.AngleFrame) (Entry, error) {
	if a.haveEntry && live.TimestampMS <= a.lastTS {
		return a.lastEntry, nil
	}

	a.liveIndex++
	a.lastTS = live.TimestampMS

	band := a.bandBounds()
	dists, shared := a.bandDistances(&live, band)

	if shared == 0 {
		// Nothing measurable on both sides: hold the last index and
		// surface the degraded confidence instead of guessing.
		idx := 0
		if a.haveEntry {
			idx = a.lastEntry.TemplateIndex
		}
		entry := Entry{LiveIndex: a.liveIndex, TemplateIndex: idx, Confidence: 0}
		a.lastEntry = entry
		a.haveEntry = true
		return entry, nil
	}

	costs := a.advanceRow(dists, band)

	bestK := floats.MinIdx(costs)
	bestIdx := band.start + bestK

	// Normalize the row so cumulative cost stays bounded over long
	// sessions; relative ordering is all the next row needs.
	minCost := costs[bestK]
	for k := range costs {
		costs[k] -= minCost
	}

	a.prevCosts = costs
	a.bandStart = band.start

	a.recordDistance(dists[bestK])

	entry := Entry{
		LiveIndex:     a.liveIndex,
		TemplateIndex: bestIdx,
		Confidence:    a.confidence(dists[bestK], &live, bestIdx),
	}

	// Monotonic guard; the band anchor already prevents rewinds, this
	// keeps the invariant explicit.
	if a.haveEntry && entry.TemplateIndex < a.lastEntry.TemplateIndex {
		entry.TemplateIndex = a.lastEntry.TemplateIndex
	}

	a.lastEntry = entry
	a.haveEntry = true
	a.started = true
	return entry, nil
}

// Reset discards all alignment state.
func (a *ElasticAligner) Reset() {
	a.started = false
	a.liveIndex = -1
	a.lastTS = 0
	a.bandStart = 0
	a.prevCosts = nil
	a.recentDists = a.recentDists[:0]
	a.lastEntry = Entry{}
	a.haveEntry = false
}

type bandRange struct {
	start int
	width int
}

// bandBounds anchors the matching band at the last aligned index.
func (a *ElasticAligner) bandBounds() bandRange {
	start := 0
	if a.haveEntry {
		start = a.lastEntry.TemplateIndex
	}
	width := a.bandWidth
	if start+width > a.tpl.Len() {
		width = a.tpl.Len() - start
	}
	return bandRange{start: start, width: width}
}

// bandDistances computes the per-candidate angular distance row.
func (a *ElasticAligner) bandDistances(live *pose.AngleFrame, band bandRange) (dists []float64, maxShared int) {
	dists = make([]float64, band.width)
	for k := 0; k < band.width; k++ {
		frame, err := a.tpl.FrameAt(band.start + k)
		if err != nil {
			dists[k] = math.Inf(1)
			continue
		}
		d, shared := frameDistance(live, &frame)
		if shared == 0 {
			dists[k] = math.Inf(1)
			continue
		}
		if shared > maxShared {
			maxShared = shared
		}
		dists[k] = d
	}
	return dists, maxShared
}

// advanceRow applies the warp recurrence: each candidate may repeat the
// previous row's index, advance from its left neighbor in the previous
// row, or skip within the current row at a slope penalty.
func (a *ElasticAligner) advanceRow(dists []float64, band bandRange) []float64 {
	costs := make([]float64, band.width)
	for k := range dists {
		j := band.start + k
		best := math.Inf(1)

		if a.prevCosts == nil {
			best = 0
		} else {
			if c, ok := a.prevCost(j); ok && c < best {
				best = c // repeat the same template frame
			}
			if c, ok := a.prevCost(j - 1); ok && c < best {
				best = c // advance one frame
			}
			if k > 0 && costs[k-1]+a.slopePenalty < best {
				best = costs[k-1] + a.slopePenalty // in-row skip
			}
			if math.IsInf(best, 1) {
				// Band moved past the previous row entirely.
				best = 0
			}
		}

		costs[k] = best + dists[k]
	}
	return costs
}

// prevCost looks up the previous row's cumulative cost for an absolute
// template index.
func (a *ElasticAligner) prevCost(index int) (float64, bool) {
	k := index - a.bandStart
	if k < 0 || k >= len(a.prevCosts) {
		return 0, false
	}
	return a.prevCosts[k], true
}

func (a *ElasticAligner) recordDistance(d float64) {
	a.recentDists = append(a.recentDists, d)
	if len(a.recentDists) > recentDistancesKept {
		a.recentDists = a.recentDists[len(a.recentDists)-recentDistancesKept:]
	}
}

// confidence maps the current match distance and joint coverage into
// [0,1].
func (a *ElasticAligner) confidence(dist float64, live *pose.AngleFrame, tplIndex int) float64 {
	conf := 1.0 / (1.0 + dist/a.distanceScale)

	if tplFrame, err := a.tpl.FrameAt(tplIndex); err == nil {
		shared := sharedJointFraction(live, &tplFrame)
		conf *= sharedJointFloorBoost + (1-sharedJointFloorBoost)*shared
	}
	return clamp(conf, 0, 1)
}
