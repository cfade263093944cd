package replay

import (
	"context"
	"fmt"
	"time"

	session "github.com/ozkurt/formsense/internal/app"
	"github.com/ozkurt/formsense/internal/domain/align"
	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/thresholds"
	"github.com/ozkurt/formsense/pkg/logger"
)

// RunConfig carries the offline replay parameters.
type RunConfig struct {
	ThresholdsPath string
	Exercise       string
	SkillTier      string
	AlignMode      string
	Speed          float64
	Reps           int
	JitterAmp      float64
	JitterSeed     int64
	FaultJoint     string
	FaultOffset    float64
	FaultStartMS   uint64
	FaultEndMS     uint64
	Verbose        bool
}

const (
	drainPoll     = 200 * time.Microsecond
	drainDeadline = 5 * time.Second
)

// Run replays a synthetic attempt against the reference template and
// reports every confirmed event plus the final feedback ranking.
func Run(ctx context.Context, cfg RunConfig) error {
	log := logger.Named("replay")

	table, err := thresholds.LoadFile(cfg.ThresholdsPath, cfg.Exercise, cfg.SkillTier)
	if err != nil {
		return fmt.Errorf("load thresholds: %w", err)
	}

	mode, ok := align.ParseMode(cfg.AlignMode)
	if !ok {
		return fmt.Errorf("unknown align mode %q", cfg.AlignMode)
	}

	reference := New(
		WithReps(cfg.Reps),
		WithSource(pose.SourceTemplate),
	)
	tpl, err := session.BuildTemplate(ctx, cfg.Exercise, reference.Frames(),
		session.WithPrimaryJoint(pose.JointLeftKnee),
	)
	if err != nil {
		return fmt.Errorf("build template: %w", err)
	}

	liveOpts := []Option{
		WithReps(cfg.Reps),
		WithSpeed(cfg.Speed),
	}
	if cfg.JitterAmp > 0 {
		liveOpts = append(liveOpts, WithJitter(cfg.JitterAmp, cfg.JitterSeed))
	}
	if cfg.FaultOffset != 0 {
		joint, ok := pose.ParseJointKey(cfg.FaultJoint)
		if !ok {
			return fmt.Errorf("unknown fault joint %q", cfg.FaultJoint)
		}
		liveOpts = append(liveOpts, WithFault(Fault{
			Joint:     joint,
			StartMS:   cfg.FaultStartMS,
			EndMS:     cfg.FaultEndMS,
			OffsetDeg: cfg.FaultOffset,
		}))
	}
	live := New(liveOpts...)

	sess, err := session.New(tpl, table,
		session.WithMode(mode),
		session.WithLogger(log.Named("session")),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.Stop()

	frames := live.Frames()
	submitted := 0
	for _, frame := range frames {
		if err := sess.Submit(ctx, frame); err != nil {
			return fmt.Errorf("submit frame at %dms: %w", frame.TimestampMS, err)
		}
		submitted++
		if err := waitProcessed(ctx, sess, uint64(submitted)); err != nil {
			return err
		}
		if cfg.Verbose {
			for _, item := range sess.Feedback() {
				log.Debug(ctx, "feedback",
					logger.Uint64("timestamp_ms", frame.TimestampMS),
					logger.String("message_key", item.MessageKey),
					logger.Float64("priority", item.PriorityScore),
				)
			}
		}
	}

	stats := sess.Stats()
	log.Info(ctx, "replay complete",
		logger.String("exercise", cfg.Exercise),
		logger.String("align_mode", cfg.AlignMode),
		logger.Float64("speed", cfg.Speed),
		logger.Uint64("frames", stats.FramesProcessed),
		logger.Int("confirmed_total", stats.ConfirmedTotal),
	)

	for _, e := range sess.History() {
		log.Info(ctx, "confirmed event",
			logger.String("error_type", string(e.ErrorType)),
			logger.String("joint", e.Joint.String()),
			logger.String("severity", e.Severity.String()),
			logger.Uint64("first_detected_ms", e.FirstDetectedMS),
			logger.Uint64("confirmed_ms", e.ConfirmedMS),
			logger.Uint64("resolved_ms", e.ResolvedMS),
			logger.Float64("peak_deviation", e.PeakDeviation),
		)
	}

	for i, item := range sess.Feedback() {
		log.Info(ctx, "final feedback",
			logger.Int("rank", i+1),
			logger.String("message_key", item.MessageKey),
			logger.Float64("priority", item.PriorityScore),
		)
	}
	return nil
}

// waitProcessed blocks until the session has consumed every submitted
// frame, keeping the replay deterministic despite the latest-wins
// buffer.
func waitProcessed(ctx context.Context, sess *session.Session, want uint64) error {
	deadline := time.Now().Add(drainDeadline)
	for sess.Stats().FramesProcessed < want {
		if time.Now().After(deadline) {
			return fmt.Errorf("pipeline stalled at frame %d", want)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(drainPoll):
		}
	}
	return nil
}
