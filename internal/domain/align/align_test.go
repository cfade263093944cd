package align_test

import (
	"math"
	"testing"

	"github.com/ozkurt/formsense/internal/domain/align"
	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/template"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	frameIntervalMS = 33
	repPeriodMS     = 1000.0
	templateReps    = 4
)

// motionAngles models one squat-like cycle: knee and hip oscillate with
// a phase offset so frames within a rep are distinguishable.
func motionAngles(tMS float64) (knee, hip float64) {
	phase := 2 * math.Pi * tMS / repPeriodMS
	knee = 120 + 40*math.Sin(phase)
	hip = 100 + 30*math.Sin(phase+math.Pi/3)
	return knee, hip
}

func motionFrame(timestampMS uint64, motionMS float64) pose.AngleFrame {
	f := pose.NewAngleFrame(timestampMS)
	knee, hip := motionAngles(motionMS)
	f.Set(pose.JointLeftKnee, pose.Angle{Degrees: knee, Confidence: 0.9})
	f.Set(pose.JointLeftHip, pose.Angle{Degrees: hip, Confidence: 0.9})
	return f
}

// buildTemplate produces the reference performance.
func buildTemplate() *template.Template {
	durationMS := repPeriodMS * templateReps
	var frames []pose.AngleFrame
	for t := 0.0; t <= durationMS; t += frameIntervalMS {
		frames = append(frames, motionFrame(uint64(t), t))
	}
	tpl, err := template.Build("squat", frames, template.WithPrimaryJoint(pose.JointLeftKnee))
	if err != nil {
		panic(err)
	}
	return tpl
}

// replay feeds the template motion at the given speed through an aligner
// and returns every entry.
func replay(a align.Aligner, speed float64) []align.Entry {
	durationMS := repPeriodMS * templateReps
	var entries []align.Entry
	for ts := uint64(frameIntervalMS); ; ts += frameIntervalMS {
		motionMS := float64(ts) * speed
		if motionMS > durationMS {
			break
		}
		entry, err := a.Align(motionFrame(ts, motionMS))
		if err != nil {
			panic(err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func assertMonotonicToEnd(entries []align.Entry, tplLen int) {
	So(len(entries), ShouldBeGreaterThan, 0)
	prev := -1
	for _, e := range entries {
		So(e.TemplateIndex, ShouldBeGreaterThanOrEqualTo, prev)
		prev = e.TemplateIndex
	}
	final := entries[len(entries)-1].TemplateIndex
	So(final, ShouldBeGreaterThanOrEqualTo, tplLen-4) // within 3 frames of the end
	So(final, ShouldBeLessThan, tplLen)
}

func TestSpeedRatioAcrossPaces(t *testing.T) {
	Convey("Given a speed-ratio aligner over a 4-rep template", t, func() {
		tpl := buildTemplate()

		for _, speed := range []float64{0.5, 1.0, 1.5} {
			speed := speed
			Convey(replaySpeedName(speed), func() {
				a, err := align.NewSpeedRatio(tpl)
				So(err, ShouldBeNil)

				entries := replay(a, speed)

				Convey("Then the mapping is monotonic and lands at the template end", func() {
					assertMonotonicToEnd(entries, tpl.Len())
				})
			})
		}
	})
}

func TestElasticAcrossPaces(t *testing.T) {
	Convey("Given an elastic aligner over a 4-rep template", t, func() {
		tpl := buildTemplate()

		for _, speed := range []float64{0.5, 1.0, 1.5} {
			speed := speed
			Convey(replaySpeedName(speed), func() {
				a, err := align.NewElastic(tpl)
				So(err, ShouldBeNil)

				entries := replay(a, speed)

				Convey("Then the mapping is monotonic and lands at the template end", func() {
					assertMonotonicToEnd(entries, tpl.Len())
				})
			})
		}
	})
}

func replaySpeedName(speed float64) string {
	switch {
	case speed < 1:
		return "When the subject moves at half speed"
	case speed > 1:
		return "When the subject moves at one and a half speed"
	default:
		return "When the subject matches the template pace"
	}
}

func TestSpeedRatioPauseHold(t *testing.T) {
	Convey("Given a live stream that pauses mid-exercise", t, func() {
		tpl := buildTemplate()
		a, err := align.NewSpeedRatio(tpl)
		So(err, ShouldBeNil)

		// Play the first half normally.
		var last align.Entry
		ts := uint64(0)
		for ms := frameIntervalMS; ms <= int(repPeriodMS*templateReps)/2; ms += frameIntervalMS {
			ts = uint64(ms)
			last, err = a.Align(motionFrame(ts, float64(ms)))
			So(err, ShouldBeNil)
		}
		pausePoint := float64(ts)

		// Hold the pose for two seconds of frames.
		var held align.Entry
		for i := 0; i < 60; i++ {
			ts += frameIntervalMS
			held, err = a.Align(motionFrame(ts, pausePoint))
			So(err, ShouldBeNil)
		}

		Convey("Then the template index stops drifting once stillness settles", func() {
			driftTolerance := 12 // frames mapped before the stillness window engages
			So(held.TemplateIndex, ShouldBeLessThanOrEqualTo, last.TemplateIndex+driftTolerance)
		})

		Convey("Then resuming recovers and still reaches the template end", func() {
			var entries []align.Entry
			for m := pausePoint + frameIntervalMS; m <= repPeriodMS*templateReps; m += frameIntervalMS {
				ts += frameIntervalMS
				entry, err := a.Align(motionFrame(ts, m))
				So(err, ShouldBeNil)
				entries = append(entries, entry)
			}
			assertMonotonicToEnd(entries, tpl.Len())
		})
	})
}

func TestElasticPauseHold(t *testing.T) {
	Convey("Given an elastic aligner and a paused subject", t, func() {
		tpl := buildTemplate()
		a, err := align.NewElastic(tpl)
		So(err, ShouldBeNil)

		var last align.Entry
		ts := uint64(0)
		for ms := frameIntervalMS; ms <= 1000; ms += frameIntervalMS {
			ts = uint64(ms)
			last, err = a.Align(motionFrame(ts, float64(ms)))
			So(err, ShouldBeNil)
		}
		pausePoint := float64(ts)

		var held align.Entry
		for i := 0; i < 30; i++ {
			ts += frameIntervalMS
			held, err = a.Align(motionFrame(ts, pausePoint))
			So(err, ShouldBeNil)
		}

		Convey("Then the held pose keeps matching near the pause point", func() {
			So(held.TemplateIndex, ShouldBeLessThanOrEqualTo, last.TemplateIndex+3)
		})
	})
}

func TestAlignerMissingData(t *testing.T) {
	Convey("Given aligners fed frames with no measurable joints", t, func() {
		tpl := buildTemplate()

		Convey("When the speed-ratio aligner loses its tracking joint", func() {
			a, err := align.NewSpeedRatio(tpl)
			So(err, ShouldBeNil)

			full, err := a.Align(motionFrame(33, 33))
			So(err, ShouldBeNil)

			empty := pose.NewAngleFrame(66)
			degraded, err := a.Align(empty)
			So(err, ShouldBeNil)

			Convey("Then confidence degrades and is surfaced", func() {
				So(degraded.Confidence, ShouldBeLessThan, full.Confidence)
			})
		})

		Convey("When the elastic aligner sees an empty frame", func() {
			a, err := align.NewElastic(tpl)
			So(err, ShouldBeNil)

			first, err := a.Align(motionFrame(33, 33))
			So(err, ShouldBeNil)

			empty := pose.NewAngleFrame(66)
			degraded, err := a.Align(empty)
			So(err, ShouldBeNil)

			Convey("Then the last index is held with zero confidence", func() {
				So(degraded.TemplateIndex, ShouldEqual, first.TemplateIndex)
				So(degraded.Confidence, ShouldEqual, 0)
			})
		})
	})
}

func TestAlignerTimestampGuard(t *testing.T) {
	Convey("Given an aligner with prior entries", t, func() {
		tpl := buildTemplate()
		a, err := align.NewSpeedRatio(tpl)
		So(err, ShouldBeNil)

		_, err = a.Align(motionFrame(33, 33))
		So(err, ShouldBeNil)
		second, err := a.Align(motionFrame(66, 66))
		So(err, ShouldBeNil)

		Convey("When a stale timestamp arrives", func() {
			stale, err := a.Align(motionFrame(50, 50))
			So(err, ShouldBeNil)

			Convey("Then the previous entry is returned unchanged", func() {
				So(stale, ShouldResemble, second)
			})
		})
	})
}

func TestAlignerReset(t *testing.T) {
	Convey("Given an aligner mid-session", t, func() {
		tpl := buildTemplate()
		a, err := align.NewSpeedRatio(tpl)
		So(err, ShouldBeNil)

		for ms := frameIntervalMS; ms <= 2000; ms += frameIntervalMS {
			_, err = a.Align(motionFrame(uint64(ms), float64(ms)))
			So(err, ShouldBeNil)
		}

		Convey("When the aligner is reset", func() {
			a.Reset()
			entry, err := a.Align(motionFrame(33, 33))
			So(err, ShouldBeNil)

			Convey("Then alignment restarts from the template beginning", func() {
				So(entry.LiveIndex, ShouldEqual, 0)
				So(entry.TemplateIndex, ShouldBeLessThanOrEqualTo, 2)
			})
		})
	})
}

func TestModeFactory(t *testing.T) {
	Convey("Given the mode factory", t, func() {
		tpl := buildTemplate()

		Convey("When constructing by mode", func() {
			sr, err := align.New(align.ModeSpeedRatio, tpl)
			So(err, ShouldBeNil)
			So(sr, ShouldNotBeNil)

			el, err := align.New(align.ModeElastic, tpl)
			So(err, ShouldBeNil)
			So(el, ShouldNotBeNil)
		})

		Convey("When the mode is unknown", func() {
			_, err := align.New(align.Mode("dtw-unbounded"), tpl)
			So(err, ShouldNotBeNil)
		})

		Convey("When parsing mode strings", func() {
			m, ok := align.ParseMode("elastic")
			So(ok, ShouldBeTrue)
			So(m, ShouldEqual, align.ModeElastic)

			_, ok = align.ParseMode("psychic")
			So(ok, ShouldBeFalse)
		})
	})
}
