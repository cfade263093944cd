package smoothing_test

import (
	"math"
	"testing"

	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/smoothing"
	. "github.com/smartystreets/goconvey/convey"
)

const frameIntervalMS = 33 // ~30 fps

func TestSmootherConvergence(t *testing.T) {
	Convey("Given a smoother fed a constant landmark position", t, func() {
		s := smoothing.New()
		lm := pose.Landmark{ID: pose.LeftKnee, X: 0.42, Y: 0.77, Z: 0.1, Confidence: 0.9}

		var out pose.Landmark
		ts := uint64(0)
		for i := 0; i < 25; i++ {
			ts += frameIntervalMS
			out = s.Smooth(lm, ts)
		}

		Convey("Then the output converges to within 1% of the input", func() {
			So(math.Abs(out.X-lm.X), ShouldBeLessThan, 0.01*math.Abs(lm.X))
			So(math.Abs(out.Y-lm.Y), ShouldBeLessThan, 0.01*math.Abs(lm.Y))
		})

		Convey("Then confidence passes through untouched", func() {
			So(out.Confidence, ShouldEqual, 0.9)
		})
	})
}

func TestSmootherStepResponse(t *testing.T) {
	Convey("Given a smoother that has settled on one position", t, func() {
		s := smoothing.New()
		ts := uint64(0)
		for i := 0; i < 20; i++ {
			ts += frameIntervalMS
			s.Smooth(pose.Landmark{ID: pose.LeftWrist, X: 0.0, Confidence: 1}, ts)
		}

		Convey("When the input steps to a new position", func() {
			var out pose.Landmark
			for i := 0; i < 60; i++ {
				ts += frameIntervalMS
				out = s.Smooth(pose.Landmark{ID: pose.LeftWrist, X: 1.0, Confidence: 1}, ts)
			}

			Convey("Then the output settles near the new value within bounded time", func() {
				So(math.Abs(out.X-1.0), ShouldBeLessThan, 0.02)
			})
		})

		Convey("When the input jumps, the first filtered samples lag the raw value", func() {
			ts += frameIntervalMS
			out := s.Smooth(pose.Landmark{ID: pose.LeftWrist, X: 1.0, Confidence: 1}, ts)
			So(out.X, ShouldBeLessThan, 1.0)
			So(out.X, ShouldBeGreaterThan, 0.0)
		})
	})
}

func TestSmootherJitterAttenuation(t *testing.T) {
	Convey("Given a slowly varying signal with high-frequency jitter", t, func() {
		s := smoothing.New()
		ts := uint64(0)
		var maxExcursion float64
		for i := 0; i < 200; i++ {
			ts += frameIntervalMS
			jitter := 0.05
			if i%2 == 0 {
				jitter = -0.05
			}
			out := s.Smooth(pose.Landmark{ID: pose.Nose, X: 0.5 + jitter, Confidence: 1}, ts)
			if i > 30 {
				if d := math.Abs(out.X - 0.5); d > maxExcursion {
					maxExcursion = d
				}
			}
		}

		Convey("Then the filtered excursion is well below the raw jitter amplitude", func() {
			So(maxExcursion, ShouldBeLessThan, 0.025)
		})
	})
}

func TestSmootherTimestampGuard(t *testing.T) {
	Convey("Given a smoother with prior samples", t, func() {
		s := smoothing.New()
		first := s.Smooth(pose.Landmark{ID: pose.RightHip, X: 0.3, Confidence: 1}, 100)
		second := s.Smooth(pose.Landmark{ID: pose.RightHip, X: 0.4, Confidence: 1}, 133)

		Convey("When a repeated timestamp arrives", func() {
			out := s.Smooth(pose.Landmark{ID: pose.RightHip, X: 0.9, Confidence: 1}, 133)

			Convey("Then the previous output is returned unchanged", func() {
				So(out, ShouldResemble, second)
			})
		})

		Convey("When an older timestamp arrives", func() {
			out := s.Smooth(pose.Landmark{ID: pose.RightHip, X: 0.9, Confidence: 1}, 50)

			Convey("Then the previous output is returned unchanged", func() {
				So(out, ShouldResemble, second)
			})
		})

		Convey("Then the first sample passes through as-is", func() {
			So(first.X, ShouldEqual, 0.3)
		})
	})
}

func TestSmootherReset(t *testing.T) {
	Convey("Given a smoother with accumulated state", t, func() {
		s := smoothing.New()
		ts := uint64(0)
		for i := 0; i < 10; i++ {
			ts += frameIntervalMS
			s.Smooth(pose.Landmark{ID: pose.LeftAnkle, X: 0.8, Confidence: 1}, ts)
		}

		Convey("When the smoother is reset", func() {
			s.Reset()

			Convey("Then the next sample starts a fresh segment and is not blended", func() {
				out := s.Smooth(pose.Landmark{ID: pose.LeftAnkle, X: 0.1, Confidence: 1}, 10)
				So(out.X, ShouldEqual, 0.1)
			})
		})
	})
}

func TestSmoothFrame(t *testing.T) {
	Convey("Given a full pose frame", t, func() {
		s := smoothing.New(
			smoothing.WithMinCutoff(1.0),
			smoothing.WithBeta(0.007),
			smoothing.WithDerivativeCutoff(1.0),
		)
		frame := &pose.PoseFrame{
			TimestampMS: 33,
			Landmarks: []pose.Landmark{
				{ID: pose.LeftHip, X: 0.4, Y: 0.5, Confidence: 0.9},
				{ID: pose.LeftKnee, X: 0.4, Y: 0.7, Confidence: 0.8},
			},
			Source: pose.SourceLive,
		}

		out := s.SmoothFrame(frame)

		Convey("Then all landmarks, the timestamp and the source survive", func() {
			So(len(out.Landmarks), ShouldEqual, 2)
			So(out.TimestampMS, ShouldEqual, uint64(33))
			So(out.Source, ShouldEqual, pose.SourceLive)
		})

		Convey("Then the input frame is not mutated", func() {
			So(frame.Landmarks[0].X, ShouldEqual, 0.4)
		})
	})
}
