package smoothing

import (
	"github.com/ozkurt/formsense/internal/domain/pose"
)

// Default filter parameters, tuned for human-joint motion.
const (
	defaultMinCutoff = 1.0   // Hz
	defaultBeta      = 0.007 // speed coefficient
	defaultDCutoff   = 1.0   // Hz

	axesPerLandmark = 3 // x, y, z
	msPerSecond     = 1000.0
	nominalPeriodS  = 1.0 / 30.0 // until a second sample establishes dt
)

// Smoother filters each landmark coordinate independently. One filter
// instance exists per (landmark id, axis). It is owned by a single
// session pipeline and is not safe for concurrent use.
type Smoother struct {
	minCutoff float64
	beta      float64
	dCutoff   float64

	filters [pose.LandmarkCount][axesPerLandmark]*axisFilter

	lastTS      [pose.LandmarkCount]uint64
	lastOutputs [pose.LandmarkCount]pose.Landmark
	seen        [pose.LandmarkCount]bool
}

// New creates a Smoother with configuration options.
func New(opts ...Option) *Smoother {
	s := &Smoother{
		minCutoff: defaultMinCutoff,
		beta:      defaultBeta,
		dCutoff:   defaultDCutoff,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Smooth filters one landmark at the given capture timestamp. Timestamps
// must strictly increase per landmark; a stale or repeated timestamp
// returns the previous output unchanged so the derivative term never
// divides by zero.
func (s *Smoother) Smooth(lm pose.Landmark, timestampMS uint64) pose.Landmark {
	if !lm.ID.Valid() {
		return lm
	}

	if s.seen[lm.ID] && timestampMS <= s.lastTS[lm.ID] {
		return s.lastOutputs[lm.ID]
	}

	dt := nominalPeriodS
	if s.seen[lm.ID] {
		dt = float64(timestampMS-s.lastTS[lm.ID]) / msPerSecond
	}

	out := lm
	out.X = s.axis(lm.ID, 0).filter(lm.X, dt)
	out.Y = s.axis(lm.ID, 1).filter(lm.Y, dt)
	out.Z = s.axis(lm.ID, 2).filter(lm.Z, dt)

	s.seen[lm.ID] = true
	s.lastTS[lm.ID] = timestampMS
	s.lastOutputs[lm.ID] = out
	return out
}

// SmoothFrame filters every landmark of a frame.
func (s *Smoother) SmoothFrame(frame *pose.PoseFrame) *pose.PoseFrame {
	out := &pose.PoseFrame{
		TimestampMS: frame.TimestampMS,
		Landmarks:   make([]pose.Landmark, len(frame.Landmarks)),
		Source:      frame.Source,
	}
	for i := range frame.Landmarks {
		out.Landmarks[i] = s.Smooth(frame.Landmarks[i], frame.TimestampMS)
	}
	return out
}

// Reset clears all per-filter state. Called at session start and after
// tracking loss so the filter never smooths across discontinuous motion.
func (s *Smoother) Reset() {
	for id := range s.filters {
		for axis := range s.filters[id] {
			if s.filters[id][axis] != nil {
				s.filters[id][axis].reset()
			}
		}
		s.seen[id] = false
		s.lastTS[id] = 0
		s.lastOutputs[id] = pose.Landmark{}
	}
}

// axis returns the filter for one coordinate, creating it lazily.
func (s *Smoother) axis(id pose.LandmarkID, axis int) *axisFilter {
	if s.filters[id][axis] == nil {
		s.filters[id][axis] = newAxisFilter(s.minCutoff, s.beta, s.dCutoff)
	}
	return s.filters[id][axis]
}
