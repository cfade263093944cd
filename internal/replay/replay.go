// Package replay generates deterministic synthetic squat recordings at
// the landmark level. It drives demos and end-to-end tests without a
// camera or pose model: the same generator builds the reference
// recording and, with a speed factor or injected fault, the live
// stream to compare against it.
package replay

import (
	"math"
	"math/rand"

	"github.com/ozkurt/formsense/internal/domain/pose"
)

// Default generator configuration constants.
const (
	defaultRepDurationMS   = 1000
	defaultReps            = 5
	defaultFrameIntervalMS = 33

	standingKneeDeg = 170.0
	bottomKneeDeg   = 90.0
)

// Fault is a deviation injected into the generated knee angle over a
// window of the live timeline. The offset ramps in and out over RampMS
// so the injected motion stays physically plausible.
type Fault struct {
	Joint     pose.JointKey
	StartMS   uint64
	EndMS     uint64
	OffsetDeg float64
	RampMS    uint64
}

// Generator produces a squat performed at a configurable pace.
type Generator struct {
	repDurationMS   uint64
	reps            int
	frameIntervalMS uint64
	speed           float64
	source          pose.Source

	jitterAmp float64
	rng       *rand.Rand

	faults []Fault
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithSpeed scales the subject's pace relative to the reference, e.g.
// 0.5 performs the motion at half speed.
func WithSpeed(speed float64) Option {
	return func(g *Generator) {
		if speed > 0 {
			g.speed = speed
		}
	}
}

// WithReps sets the number of repetitions.
func WithReps(reps int) Option {
	return func(g *Generator) {
		if reps > 0 {
			g.reps = reps
		}
	}
}

// WithRepDuration sets the reference duration of one repetition.
func WithRepDuration(ms uint64) Option {
	return func(g *Generator) {
		if ms > 0 {
			g.repDurationMS = ms
		}
	}
}

// WithFrameInterval sets the capture interval.
func WithFrameInterval(ms uint64) Option {
	return func(g *Generator) {
		if ms > 0 {
			g.frameIntervalMS = ms
		}
	}
}

// WithSource marks the generated frames as template or live.
func WithSource(source pose.Source) Option {
	return func(g *Generator) {
		g.source = source
	}
}

// WithJitter adds seeded positional noise, normalized units.
func WithJitter(amplitude float64, seed int64) Option {
	return func(g *Generator) {
		if amplitude > 0 {
			g.jitterAmp = amplitude
			g.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic synthetic data, not crypto
		}
	}
}

// WithFault injects a deviation window into the generated motion.
func WithFault(f Fault) Option {
	return func(g *Generator) {
		if f.RampMS == 0 {
			f.RampMS = 200
		}
		g.faults = append(g.faults, f)
	}
}

// New creates a generator for a reference-paced squat.
func New(opts ...Option) *Generator {
	g := &Generator{
		repDurationMS:   defaultRepDurationMS,
		reps:            defaultReps,
		frameIntervalMS: defaultFrameIntervalMS,
		speed:           1.0,
		source:          pose.SourceLive,
	}

	// Apply all options
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DurationMS is the length of the generated stream on its own clock.
func (g *Generator) DurationMS() uint64 {
	return uint64(float64(g.repDurationMS*uint64(g.reps)) / g.speed)
}

// Frames generates the complete frame sequence.
func (g *Generator) Frames() []pose.PoseFrame {
	total := g.DurationMS()
	var out []pose.PoseFrame
	for ts := uint64(0); ts <= total; ts += g.frameIntervalMS {
		out = append(out, g.FrameAt(ts))
	}
	return out
}

// FrameAt generates the frame for one live-clock timestamp.
func (g *Generator) FrameAt(timestampMS uint64) pose.PoseFrame {
	motionMS := float64(timestampMS) * g.speed
	phase := 2 * math.Pi * math.Mod(motionMS, float64(g.repDurationMS)) / float64(g.repDurationMS)

	// Knee flexion sweeps standing to bottom and back once per rep.
	depth := (1 - math.Cos(phase)) / 2
	kneeDeg := standingKneeDeg - (standingKneeDeg-bottomKneeDeg)*depth

	leftKnee := kneeDeg + g.faultOffset(pose.JointLeftKnee, timestampMS)
	rightKnee := kneeDeg + g.faultOffset(pose.JointRightKnee, timestampMS)

	return g.skeleton(timestampMS, leftKnee, rightKnee, depth)
}

// faultOffset is the injected deviation for a joint at one timestamp,
// with linear ramps at the window edges.
func (g *Generator) faultOffset(joint pose.JointKey, ts uint64) float64 {
	var offset float64
	for _, f := range g.faults {
		if f.Joint != joint {
			continue
		}
		switch {
		case ts >= f.StartMS && ts <= f.EndMS:
			offset += f.OffsetDeg
		case ts < f.StartMS && ts+f.RampMS > f.StartMS:
			offset += f.OffsetDeg * float64(ts+f.RampMS-f.StartMS) / float64(f.RampMS)
		case ts > f.EndMS && ts < f.EndMS+f.RampMS:
			offset += f.OffsetDeg * float64(f.EndMS+f.RampMS-ts) / float64(f.RampMS)
		}
	}
	return offset
}

// skeleton places a 2D stick figure producing the requested knee
// angles. Coordinates are normalized with y growing downward.
func (g *Generator) skeleton(ts uint64, leftKneeDeg, rightKneeDeg, depth float64) pose.PoseFrame {
	hipY := 0.52 + 0.08*depth
	shoulderY := 0.28 + 0.06*depth

	leftHip := [2]float64{0.44, hipY}
	rightHip := [2]float64{0.56, hipY}
	leftKnee := [2]float64{0.44, 0.74}
	rightKnee := [2]float64{0.56, 0.74}
	leftShoulder := [2]float64{0.43, shoulderY}
	rightShoulder := [2]float64{0.57, shoulderY}

	leftAnkle := ankleFor(leftKnee, leftHip, leftKneeDeg)
	rightAnkle := ankleFor(rightKnee, rightHip, rightKneeDeg)

	leftElbow := [2]float64{leftShoulder[0] - 0.02, leftShoulder[1] + 0.13}
	rightElbow := [2]float64{rightShoulder[0] + 0.02, rightShoulder[1] + 0.13}
	leftWrist := [2]float64{leftElbow[0] - 0.01, leftElbow[1] + 0.13}
	rightWrist := [2]float64{rightElbow[0] + 0.01, rightElbow[1] + 0.13}

	lms := []pose.Landmark{
		g.landmark(pose.Nose, 0.5, shoulderY-0.12),
		g.landmark(pose.LeftShoulder, leftShoulder[0], leftShoulder[1]),
		g.landmark(pose.RightShoulder, rightShoulder[0], rightShoulder[1]),
		g.landmark(pose.LeftElbow, leftElbow[0], leftElbow[1]),
		g.landmark(pose.RightElbow, rightElbow[0], rightElbow[1]),
		g.landmark(pose.LeftWrist, leftWrist[0], leftWrist[1]),
		g.landmark(pose.RightWrist, rightWrist[0], rightWrist[1]),
		g.landmark(pose.LeftHip, leftHip[0], leftHip[1]),
		g.landmark(pose.RightHip, rightHip[0], rightHip[1]),
		g.landmark(pose.LeftKnee, leftKnee[0], leftKnee[1]),
		g.landmark(pose.RightKnee, rightKnee[0], rightKnee[1]),
		g.landmark(pose.LeftAnkle, leftAnkle[0], leftAnkle[1]),
		g.landmark(pose.RightAnkle, rightAnkle[0], rightAnkle[1]),
	}

	return pose.PoseFrame{
		TimestampMS: ts,
		Landmarks:   lms,
		Source:      g.source,
	}
}

func (g *Generator) landmark(id pose.LandmarkID, x, y float64) pose.Landmark {
	if g.rng != nil {
		x += (g.rng.Float64()*2 - 1) * g.jitterAmp
		y += (g.rng.Float64()*2 - 1) * g.jitterAmp
	}
	return pose.Landmark{ID: id, X: x, Y: y, Z: 0, Confidence: 0.95}
}

// ankleFor places the ankle so the interior angle at the knee, between
// the thigh and shank segments, equals kneeDeg.
func ankleFor(knee, hip [2]float64, kneeDeg float64) [2]float64 {
	const shankLen = 0.18

	thighX := hip[0] - knee[0]
	thighY := hip[1] - knee[1]
	thighLen := math.Hypot(thighX, thighY)
	ux, uy := thighX/thighLen, thighY/thighLen

	// Rotate the thigh direction by the interior angle.
	rad := kneeDeg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	dx := ux*cos - uy*sin
	dy := ux*sin + uy*cos

	return [2]float64{knee[0] + dx*shankLen, knee[1] + dy*shankLen}
}
