package deviation_test

import (
	"testing"

	"github.com/ozkurt/formsense/internal/domain/align"
	"github.com/ozkurt/formsense/internal/domain/deviation"
	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/template"
	. "github.com/smartystreets/goconvey/convey"
)

func angleFrame(ts uint64, angles map[pose.JointKey]float64) pose.AngleFrame {
	f := pose.NewAngleFrame(ts)
	for key, deg := range angles {
		f.Set(key, pose.Angle{Degrees: deg, Confidence: 0.9})
	}
	return f
}

func TestCompare(t *testing.T) {
	Convey("Given live and template angle frames", t, func() {
		tpl := angleFrame(0, map[pose.JointKey]float64{
			pose.JointLeftKnee:  90,
			pose.JointRightKnee: 90,
			pose.JointTrunk:     5,
		})

		Convey("When the live frame differs on measured joints", func() {
			live := angleFrame(100, map[pose.JointKey]float64{
				pose.JointLeftKnee:  78,
				pose.JointRightKnee: 95,
				pose.JointTrunk:     5,
			})

			values := deviation.Compare(&live, &tpl)

			Convey("Then each joint reports magnitude and direction", func() {
				left := values[pose.JointLeftKnee]
				So(left.Degrees, ShouldAlmostEqual, 12)
				So(left.Signed, ShouldAlmostEqual, -12)

				right := values[pose.JointRightKnee]
				So(right.Degrees, ShouldAlmostEqual, 5)
				So(right.Signed, ShouldAlmostEqual, 5)

				trunk := values[pose.JointTrunk]
				So(trunk.Degrees, ShouldAlmostEqual, 0)
			})
		})

		Convey("When a joint is missing on one side", func() {
			live := angleFrame(100, map[pose.JointKey]float64{
				pose.JointLeftKnee: 80,
			})

			values := deviation.Compare(&live, &tpl)

			Convey("Then absent joints produce no entry instead of a zero", func() {
				_, ok := values[pose.JointRightKnee]
				So(ok, ShouldBeFalse)
				_, ok = values[pose.JointTrunk]
				So(ok, ShouldBeFalse)
				So(len(values), ShouldEqual, 1)
			})
		})

		Convey("When the contributing confidences differ", func() {
			live := pose.NewAngleFrame(100)
			live.Set(pose.JointLeftKnee, pose.Angle{Degrees: 85, Confidence: 0.4})

			values := deviation.Compare(&live, &tpl)

			Convey("Then the weaker confidence wins", func() {
				So(values[pose.JointLeftKnee].Confidence, ShouldAlmostEqual, 0.4)
			})
		})
	})
}

func TestBilateralSymmetry(t *testing.T) {
	Convey("Given a template and a live frame with mirrored left/right errors", t, func() {
		tpl := angleFrame(0, map[pose.JointKey]float64{
			pose.JointLeftKnee:      100,
			pose.JointRightKnee:     100,
			pose.JointLeftHip:       110,
			pose.JointRightHip:      110,
			pose.JointLeftShoulder:  45,
			pose.JointRightShoulder: 45,
		})
		live := angleFrame(100, map[pose.JointKey]float64{
			pose.JointLeftKnee:      88,
			pose.JointRightKnee:     88,
			pose.JointLeftHip:       117,
			pose.JointRightHip:      117,
			pose.JointLeftShoulder:  45,
			pose.JointRightShoulder: 45,
		})

		Convey("When deviations are computed", func() {
			values := deviation.Compare(&live, &tpl)

			Convey("Then both sides report identical deviations", func() {
				for _, key := range pose.AllJoints() {
					left, ok := values[key]
					if !ok {
						continue
					}
					mirrored, ok := values[key.Mirror()]
					So(ok, ShouldBeTrue)
					So(mirrored.Degrees, ShouldAlmostEqual, left.Degrees)
					So(mirrored.Signed, ShouldAlmostEqual, left.Signed)
				}
			})
		})
	})
}

func TestEngineDeviate(t *testing.T) {
	Convey("Given an engine bound to a template", t, func() {
		frames := []pose.AngleFrame{
			angleFrame(0, map[pose.JointKey]float64{pose.JointLeftKnee: 170}),
			angleFrame(100, map[pose.JointKey]float64{pose.JointLeftKnee: 120}),
			angleFrame(200, map[pose.JointKey]float64{pose.JointLeftKnee: 90}),
		}
		tpl, err := template.Build("squat", frames)
		So(err, ShouldBeNil)

		engine, err := deviation.NewEngine(tpl)
		So(err, ShouldBeNil)

		Convey("When a live frame is compared at an aligned index", func() {
			live := angleFrame(250, map[pose.JointKey]float64{pose.JointLeftKnee: 102})
			frame, err := engine.Deviate(live, align.Entry{LiveIndex: 7, TemplateIndex: 2, Confidence: 0.8})
			So(err, ShouldBeNil)

			Convey("Then the frame carries the aligned context and values", func() {
				So(frame.TimestampMS, ShouldEqual, 250)
				So(frame.TemplateIndex, ShouldEqual, 2)
				So(frame.AlignConfidence, ShouldAlmostEqual, 0.8)

				v, ok := frame.Value(pose.JointLeftKnee)
				So(ok, ShouldBeTrue)
				So(v.Degrees, ShouldAlmostEqual, 12)
				So(frame.Len(), ShouldEqual, 1)
				So(frame.Joints(), ShouldResemble, []pose.JointKey{pose.JointLeftKnee})
			})
		})

		Convey("When the alignment index is out of range", func() {
			live := angleFrame(250, map[pose.JointKey]float64{pose.JointLeftKnee: 102})
			_, err := engine.Deviate(live, align.Entry{TemplateIndex: 99})
			So(err, ShouldNotBeNil)
		})

		Convey("When the template is nil", func() {
			_, err := deviation.NewEngine(nil)
			So(err, ShouldEqual, deviation.ErrNilTemplate)
		})
	})
}
