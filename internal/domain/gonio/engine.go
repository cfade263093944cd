package gonio

import (
	"math"

	"github.com/ozkurt/formsense/internal/domain/pose"
)

// Default engine configuration constants.
const (
	defaultVisibilityFloor = 0.5
	degreesPerRadian       = 180.0 / math.Pi
)

// Engine computes joint angles from a smoothed pose frame. It is a pure,
// deterministic transformation and is safe for concurrent use.
type Engine struct {
	visibilityFloor float64
	onUnreliable    func(pose.LandmarkID) // optional diagnostic hook
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithVisibilityFloor sets the minimum landmark confidence admitted into
// angle math.
func WithVisibilityFloor(floor float64) Option {
	return func(e *Engine) {
		if floor >= 0 && floor <= 1 {
			e.visibilityFloor = floor
		}
	}
}

// WithUnreliableHook installs a callback invoked for every landmark that
// falls below the visibility floor.
func WithUnreliableHook(hook func(pose.LandmarkID)) Option {
	return func(e *Engine) {
		e.onUnreliable = hook
	}
}

// New creates an Engine with configuration options.
func New(opts ...Option) *Engine {
	e := &Engine{
		visibilityFloor: defaultVisibilityFloor,
	}

	// Apply all options
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Compute derives every measurable joint angle from the frame. Joints
// whose defining landmarks are absent or below the visibility floor are
// omitted from the result rather than fabricated.
func (e *Engine) Compute(frame *pose.PoseFrame) pose.AngleFrame {
	out := pose.NewAngleFrame(frame.TimestampMS)

	for key, def := range limbJoints {
		prox, ok := e.reliable(frame, def.proximal)
		if !ok {
			continue
		}
		vertex, ok := e.reliable(frame, def.vertex)
		if !ok {
			continue
		}
		dist, ok := e.reliable(frame, def.distal)
		if !ok {
			continue
		}

		deg, ok := interiorAngle(prox, vertex, dist)
		if !ok {
			continue
		}
		out.Set(key, pose.Angle{
			Degrees:    deg,
			Confidence: min3(prox.Confidence, vertex.Confidence, dist.Confidence),
		})
	}

	if tilt, conf, ok := e.trunkTilt(frame); ok {
		out.Set(pose.JointTrunk, pose.Angle{Degrees: tilt, Confidence: conf})
	}

	return out
}

// reliable returns the landmark when present and at or above the floor.
func (e *Engine) reliable(frame *pose.PoseFrame, id pose.LandmarkID) (pose.Landmark, bool) {
	lm, ok := frame.Landmark(id)
	if !ok {
		return pose.Landmark{}, false
	}
	if lm.Confidence < e.visibilityFloor {
		if e.onUnreliable != nil {
			e.onUnreliable(id)
		}
		return pose.Landmark{}, false
	}
	return lm, true
}

// interiorAngle computes the angle at vertex between the segments toward
// prox and dist, in [0,180] degrees. Degenerate (zero-length) segments
// report no measurement.
func interiorAngle(prox, vertex, dist pose.Landmark) (float64, bool) {
	ux, uy, uz := prox.X-vertex.X, prox.Y-vertex.Y, prox.Z-vertex.Z
	vx, vy, vz := dist.X-vertex.X, dist.Y-vertex.Y, dist.Z-vertex.Z

	un := math.Sqrt(ux*ux + uy*uy + uz*uz)
	vn := math.Sqrt(vx*vx + vy*vy + vz*vz)
	if un == 0 || vn == 0 {
		return 0, false
	}

	cos := (ux*vx + uy*vy + uz*vz) / (un * vn)
	// Clamp against floating-point overshoot so acos never sees |cos|>1
	// in near-collinear configurations.
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * degreesPerRadian, true
}

// trunkTilt measures the signed lean of the shoulder-midpoint to
// hip-midpoint axis against vertical. Image coordinates grow downward,
// so an upright trunk reports 0.
func (e *Engine) trunkTilt(frame *pose.PoseFrame) (deg, conf float64, ok bool) {
	lms := make([]pose.Landmark, 0, len(trunkLandmarks))
	conf = 1.0
	for _, id := range trunkLandmarks {
		lm, reliable := e.reliable(frame, id)
		if !reliable {
			return 0, 0, false
		}
		lms = append(lms, lm)
		conf = math.Min(conf, lm.Confidence)
	}

	shoulderMidX := (lms[0].X + lms[1].X) / 2
	shoulderMidY := (lms[0].Y + lms[1].Y) / 2
	hipMidX := (lms[2].X + lms[3].X) / 2
	hipMidY := (lms[2].Y + lms[3].Y) / 2

	dx := shoulderMidX - hipMidX
	dy := shoulderMidY - hipMidY
	if dx == 0 && dy == 0 {
		return 0, 0, false
	}

	// atan2 of the lateral component against the upward component keeps
	// the sign: positive leans toward the subject's left.
	return math.Atan2(dx, -dy) * degreesPerRadian, conf, true
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}
