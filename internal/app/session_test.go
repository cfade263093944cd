package session_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ozkurt/formsense/internal/adapters/stream"
	session "github.com/ozkurt/formsense/internal/app"
	"github.com/ozkurt/formsense/internal/domain/align"
	"github.com/ozkurt/formsense/internal/domain/detect"
	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/thresholds"
	"github.com/ozkurt/formsense/internal/replay"
	"github.com/ozkurt/formsense/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func squatTable() *thresholds.Table {
	table, err := thresholds.NewTable("squat", []thresholds.Spec{
		{
			ErrorType:     thresholds.ErrorKneeValgus,
			Joint:         pose.JointLeftKnee,
			WarningValue:  8,
			CriticalValue: 10,
			Unit:          thresholds.UnitDegrees,
			PersistenceMS: 300,
		},
		{
			ErrorType:     thresholds.ErrorKneeValgus,
			Joint:         pose.JointRightKnee,
			WarningValue:  8,
			CriticalValue: 10,
			Unit:          thresholds.UnitDegrees,
			PersistenceMS: 300,
		},
		{
			ErrorType:     thresholds.ErrorTrunkLean,
			Joint:         pose.JointTrunk,
			WarningValue:  10,
			CriticalValue: 15,
			Unit:          thresholds.UnitDegrees,
			PersistenceMS: 400,
		},
	})
	if err != nil {
		panic(err)
	}
	return table
}

// collector gathers sink results across the pipeline goroutine.
type collector struct {
	mu      sync.Mutex
	results []session.Result
}

func (c *collector) sink(r session.Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

func (c *collector) snapshot() []session.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]session.Result, len(c.results))
	copy(out, c.results)
	return out
}

// drive submits every frame and waits for each to clear the pipeline so
// the latest-wins buffer never drops under test.
func drive(ctx context.Context, s *session.Session, frames []pose.PoseFrame) error {
	processed := s.Stats().FramesProcessed
	for i := range frames {
		if err := s.Submit(ctx, frames[i]); err != nil {
			return err
		}
		processed++
		deadline := time.Now().Add(2 * time.Second)
		for s.Stats().FramesProcessed < processed {
			if time.Now().After(deadline) {
				return errors.New("pipeline stalled")
			}
			time.Sleep(200 * time.Microsecond)
		}
	}
	return nil
}

func TestEndToEndKneeFault(t *testing.T) {
	Convey("Given a session comparing a faulty squat against its own reference", t, func() {
		ctx := context.Background()

		reference := replay.New(replay.WithReps(5), replay.WithSource(pose.SourceTemplate))
		tpl, err := session.BuildTemplate(ctx, "squat", reference.Frames(),
			session.WithPrimaryJoint(pose.JointLeftKnee))
		So(err, ShouldBeNil)

		live := replay.New(replay.WithReps(5), replay.WithFault(replay.Fault{
			Joint:     pose.JointLeftKnee,
			StartMS:   2100,
			EndMS:     2500,
			OffsetDeg: 12,
			RampMS:    200,
		}))

		col := &collector{}
		s, err := session.New(tpl, squatTable(), session.WithSink(col.sink))
		So(err, ShouldBeNil)
		So(s.Start(ctx), ShouldBeNil)
		defer s.Stop()

		Convey("When the five-second live stream plays through", func() {
			So(drive(ctx, s, live.Frames()), ShouldBeNil)

			Convey("Then exactly one left-knee event confirms", func() {
				history := s.History()
				So(len(history), ShouldEqual, 1)

				e := history[0]
				So(e.ErrorType, ShouldEqual, thresholds.ErrorKneeValgus)
				So(e.Joint, ShouldEqual, pose.JointLeftKnee)
				So(e.Severity, ShouldEqual, detect.SeverityCritical)
				So(e.PeakDeviation, ShouldBeGreaterThan, 10)

				Convey("And it confirms about 300ms into the breach", func() {
					So(e.ConfirmedMS-e.FirstDetectedMS, ShouldEqual, 300)
					So(e.ConfirmedMS, ShouldBeBetween, 2200, 2600)
				})

				Convey("And it resolves once the fault clears", func() {
					So(e.ResolvedMS, ShouldBeGreaterThan, e.ConfirmedMS)
					So(e.ResolvedMS, ShouldBeLessThan, 3100)
				})
			})

			Convey("Then the confirmed tick's feedback leads with that fault", func() {
				var confirmed *session.Result
				for _, r := range col.snapshot() {
					if len(r.Events) > 0 {
						confirmed = &r
						break
					}
				}
				So(confirmed, ShouldNotBeNil)
				So(len(confirmed.Feedback), ShouldEqual, 1)
				So(confirmed.Feedback[0].ErrorType, ShouldEqual, thresholds.ErrorKneeValgus)
				So(confirmed.Feedback[0].Joint, ShouldEqual, pose.JointLeftKnee)
				So(confirmed.Feedback[0].MessageKey, ShouldEqual, "knee_valgus.left_knee")
			})

			Convey("Then session stats reflect the run", func() {
				stats := s.Stats()
				So(stats.ExerciseID, ShouldEqual, "squat")
				So(stats.FramesProcessed, ShouldBeGreaterThan, 140)
				So(stats.ConfirmedTotal, ShouldEqual, 1)
				So(stats.ActiveFaults, ShouldEqual, 0)
			})
		})
	})
}

func TestCleanRunStaysQuiet(t *testing.T) {
	Convey("Given a session replaying the reference motion exactly", t, func() {
		ctx := context.Background()

		reference := replay.New(replay.WithReps(4), replay.WithSource(pose.SourceTemplate))
		tpl, err := session.BuildTemplate(ctx, "squat", reference.Frames())
		So(err, ShouldBeNil)

		live := replay.New(replay.WithReps(4))

		s, err := session.New(tpl, squatTable())
		So(err, ShouldBeNil)
		So(s.Start(ctx), ShouldBeNil)
		defer s.Stop()

		Convey("When the live stream plays through", func() {
			So(drive(ctx, s, live.Frames()), ShouldBeNil)

			Convey("Then no events confirm and feedback stays empty", func() {
				So(s.History(), ShouldBeEmpty)
				So(s.Feedback(), ShouldBeEmpty)
			})
		})
	})
}

func TestSessionLifecycle(t *testing.T) {
	Convey("Given a constructed session", t, func() {
		ctx := context.Background()

		reference := replay.New(replay.WithReps(2), replay.WithSource(pose.SourceTemplate))
		tpl, err := session.BuildTemplate(ctx, "squat", reference.Frames())
		So(err, ShouldBeNil)

		s, err := session.New(tpl, squatTable(), session.WithMode(align.ModeElastic))
		So(err, ShouldBeNil)
		So(s.ID(), ShouldNotBeEmpty)
		So(s.ExerciseID(), ShouldEqual, "squat")

		Convey("When started twice and stopped", func() {
			So(s.Start(ctx), ShouldBeNil)
			So(s.Start(ctx), ShouldBeNil)
			s.Stop()

			Convey("Then submits after stop are refused", func() {
				live := replay.New(replay.WithReps(1))
				err := s.Submit(ctx, live.FrameAt(0))
				So(errors.Is(err, stream.ErrClosed), ShouldBeTrue)
			})
		})

		Convey("When an out-of-order frame is submitted", func() {
			So(s.Start(ctx), ShouldBeNil)
			defer s.Stop()

			live := replay.New(replay.WithReps(1))
			So(drive(ctx, s, []pose.PoseFrame{live.FrameAt(0), live.FrameAt(33)}), ShouldBeNil)

			err := s.Submit(ctx, live.FrameAt(10))
			So(errors.Is(err, stream.ErrOutOfOrder), ShouldBeTrue)
		})
	})
}

func TestSessionConstruction(t *testing.T) {
	Convey("Given mismatched or missing configuration", t, func() {
		ctx := context.Background()
		reference := replay.New(replay.WithReps(1), replay.WithSource(pose.SourceTemplate))
		tpl, err := session.BuildTemplate(ctx, "lunge", reference.Frames())
		So(err, ShouldBeNil)

		Convey("Then a nil template fails fast", func() {
			_, err := session.New(nil, squatTable())
			So(err, ShouldEqual, session.ErrNilTemplate)
		})

		Convey("Then nil thresholds fail fast", func() {
			_, err := session.New(tpl, nil)
			So(err, ShouldEqual, session.ErrNilThresholds)
		})

		Convey("Then an exercise mismatch fails fast", func() {
			_, err := session.New(tpl, squatTable())
			So(errors.Is(err, session.ErrExerciseMismatch), ShouldBeTrue)
		})
	})
}

func TestResetTrackingPreservesHistory(t *testing.T) {
	Convey("Given a session with one confirmed fault", t, func() {
		ctx := context.Background()

		reference := replay.New(replay.WithReps(5), replay.WithSource(pose.SourceTemplate))
		tpl, err := session.BuildTemplate(ctx, "squat", reference.Frames())
		So(err, ShouldBeNil)

		live := replay.New(replay.WithReps(5), replay.WithFault(replay.Fault{
			Joint:     pose.JointLeftKnee,
			StartMS:   2100,
			EndMS:     2500,
			OffsetDeg: 12,
			RampMS:    200,
		}))

		s, err := session.New(tpl, squatTable())
		So(err, ShouldBeNil)
		So(s.Start(ctx), ShouldBeNil)
		defer s.Stop()

		frames := live.Frames()
		So(drive(ctx, s, frames[:100]), ShouldBeNil) // through the fault window

		So(s.Stats().ConfirmedTotal, ShouldEqual, 1)

		Convey("When tracking is reset", func() {
			s.ResetTracking(ctx)

			Convey("Then confirmed history survives for reporting", func() {
				So(s.Stats().ConfirmedTotal, ShouldEqual, 1)
				So(len(s.History()), ShouldEqual, 1)
			})
		})
	})
}
