package session

import (
	"context"
	"fmt"

	"github.com/ozkurt/formsense/internal/domain/gonio"
	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/smoothing"
	"github.com/ozkurt/formsense/internal/domain/template"
	"github.com/ozkurt/formsense/pkg/logger"
)

// BuildOption applies a configuration option to template building.
type BuildOption func(*builder)

// WithPrimaryJoint marks the joint the exercise is about.
func WithPrimaryJoint(key pose.JointKey) BuildOption {
	return func(b *builder) {
		if key.Valid() {
			b.primary = &key
		}
	}
}

// WithBuildVisibilityFloor sets the landmark confidence floor used
// while converting reference frames.
func WithBuildVisibilityFloor(floor float64) BuildOption {
	return func(b *builder) {
		if floor >= 0 && floor <= 1 {
			b.visibilityFloor = floor
		}
	}
}

type builder struct {
	primary         *pose.JointKey
	visibilityFloor float64
}

// BuildTemplate runs the offline half of the pipeline: it smooths a
// complete reference recording, derives joint angles, and freezes the
// result into a template. Frames that fail validation or yield no
// measurable joints are skipped.
func BuildTemplate(ctx context.Context, exerciseID string, frames []pose.PoseFrame, opts ...BuildOption) (*template.Template, error) {
	b := &builder{
		visibilityFloor: defaultVisibilityFloor,
	}

	// Apply all options
	for _, opt := range opts {
		opt(b)
	}

	log := logger.Named("template-builder")
	smoother := smoothing.New()
	angles := gonio.New(gonio.WithVisibilityFloor(b.visibilityFloor))

	var (
		angleFrames []pose.AngleFrame
		lastTS      uint64
		started     bool
		skipped     int
	)
	for i := range frames {
		frame := frames[i]
		if err := frame.Validate(); err != nil {
			skipped++
			continue
		}
		if started && frame.TimestampMS < lastTS {
			skipped++
			continue
		}
		started = true
		lastTS = frame.TimestampMS

		smoothed := smoother.SmoothFrame(&frame)
		af := angles.Compute(smoothed)
		if af.Len() == 0 {
			skipped++
			continue
		}
		angleFrames = append(angleFrames, af)
	}

	if len(angleFrames) == 0 {
		return nil, fmt.Errorf("%w: exercise %q", ErrNoUsableFrames, exerciseID)
	}

	var tplOpts []template.Option
	if b.primary != nil {
		tplOpts = append(tplOpts, template.WithPrimaryJoint(*b.primary))
	}
	tpl, err := template.Build(exerciseID, angleFrames, tplOpts...)
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "template built",
		logger.String("exercise_id", exerciseID),
		logger.Int("frames", tpl.Len()),
		logger.Int("skipped", skipped),
		logger.Uint64("duration_ms", tpl.DurationMS()),
	)
	return tpl, nil
}
