package template_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/template"
	. "github.com/smartystreets/goconvey/convey"
)

// frames builds n angle frames spaced intervalMS apart.
func frames(n int, intervalMS uint64) []pose.AngleFrame {
	out := make([]pose.AngleFrame, n)
	for i := range out {
		f := pose.NewAngleFrame(uint64(i) * intervalMS)
		f.Set(pose.JointLeftKnee, pose.Angle{Degrees: float64(90 + i), Confidence: 1})
		out[i] = f
	}
	return out
}

func TestBuild(t *testing.T) {
	Convey("Given ordered angle frames", t, func() {
		fs := frames(10, 33)

		Convey("When building a template", func() {
			tpl, err := template.Build("squat", fs)

			Convey("Then it freezes the sequence", func() {
				So(err, ShouldBeNil)
				So(tpl.ExerciseID(), ShouldEqual, "squat")
				So(tpl.Len(), ShouldEqual, 10)
				So(tpl.DurationMS(), ShouldEqual, uint64(9*33))
			})

			Convey("Then mutating the source slice does not reach the template", func() {
				So(err, ShouldBeNil)
				fs[0].Set(pose.JointLeftKnee, pose.Angle{Degrees: 0, Confidence: 0})
				got, ferr := tpl.FrameAt(0)
				So(ferr, ShouldBeNil)
				a, ok := got.Angle(pose.JointLeftKnee)
				So(ok, ShouldBeTrue)
				So(a.Degrees, ShouldEqual, 90.0)
			})
		})

		Convey("When building with a primary joint", func() {
			tpl, err := template.Build("squat", fs, template.WithPrimaryJoint(pose.JointLeftKnee))

			Convey("Then the primary joint is retained", func() {
				So(err, ShouldBeNil)
				key, ok := tpl.PrimaryJoint()
				So(ok, ShouldBeTrue)
				So(key, ShouldEqual, pose.JointLeftKnee)
			})
		})

		Convey("When the exercise id is empty", func() {
			_, err := template.Build("", fs)
			So(errors.Is(err, template.ErrEmptyExerciseID), ShouldBeTrue)
		})

		Convey("When there are no frames", func() {
			_, err := template.Build("squat", nil)
			So(errors.Is(err, template.ErrNoFrames), ShouldBeTrue)
		})

		Convey("When frames are out of order", func() {
			bad := frames(5, 33)
			bad[3].TimestampMS = 1
			_, err := template.Build("squat", bad)
			So(errors.Is(err, template.ErrUnorderedFrames), ShouldBeTrue)
		})
	})
}

func TestFrameAt(t *testing.T) {
	Convey("Given a built template", t, func() {
		tpl, err := template.Build("squat", frames(5, 100))
		So(err, ShouldBeNil)

		Convey("When accessing valid indices", func() {
			for i := 0; i < 5; i++ {
				f, ferr := tpl.FrameAt(i)
				So(ferr, ShouldBeNil)
				So(f.TimestampMS, ShouldEqual, uint64(i*100))
			}
		})

		Convey("When accessing out-of-range indices", func() {
			_, err := tpl.FrameAt(-1)
			So(errors.Is(err, template.ErrIndexOutOfRange), ShouldBeTrue)
			_, err = tpl.FrameAt(5)
			So(errors.Is(err, template.ErrIndexOutOfRange), ShouldBeTrue)
		})
	})
}

func TestNearest(t *testing.T) {
	Convey("Given a template spanning 0..900ms", t, func() {
		tpl, err := template.Build("squat", frames(10, 100))
		So(err, ShouldBeNil)

		Convey("When seeking by fraction", func() {
			So(tpl.Nearest(0), ShouldEqual, 0)
			So(tpl.Nearest(-0.5), ShouldEqual, 0)
			So(tpl.Nearest(1), ShouldEqual, 9)
			So(tpl.Nearest(2), ShouldEqual, 9)
			So(tpl.Nearest(0.5), ShouldEqual, 4) // 450ms is nearest 400ms
		})

		Convey("When seeking by time", func() {
			So(tpl.NearestTime(0), ShouldEqual, 0)
			So(tpl.NearestTime(149), ShouldEqual, 1)
			So(tpl.NearestTime(151), ShouldEqual, 2)
			So(tpl.NearestTime(5000), ShouldEqual, 9)
		})
	})
}

func TestConcurrentReads(t *testing.T) {
	Convey("Given a template shared by many readers", t, func() {
		tpl, err := template.Build("squat", frames(100, 10))
		So(err, ShouldBeNil)

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 1000; i++ {
					_, _ = tpl.FrameAt(i % tpl.Len())
					_ = tpl.Nearest(float64(i) / 1000)
				}
			}()
		}
		wg.Wait()

		Convey("Then concurrent access completes without contention issues", func() {
			So(tpl.Len(), ShouldEqual, 100)
		})
	})
}
