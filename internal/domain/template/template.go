// Package template holds the precomputed, randomly-seekable angle-frame
// sequence of a reference performance.
package template

import (
	"fmt"

	"github.com/ozkurt/formsense/internal/domain/pose"
)

// Template is an immutable reference performance. It is built exactly
// once per reference recording and never mutated afterwards, so it is
// safe for concurrent read access from any number of sessions.
type Template struct {
	exerciseID   string
	primaryJoint *pose.JointKey
	frames       []pose.AngleFrame
	durationMS   uint64
}

// Option applies a configuration option during Build.
type Option func(*Template)

// WithPrimaryJoint marks a joint of particular clinical interest for
// this exercise.
func WithPrimaryJoint(key pose.JointKey) Option {
	return func(t *Template) {
		if key.Valid() {
			k := key
			t.primaryJoint = &k
		}
	}
}

// Build validates and freezes an ordered angle-frame sequence into a
// Template. Frames must be in non-decreasing timestamp order. O(n).
func Build(exerciseID string, frames []pose.AngleFrame, opts ...Option) (*Template, error) {
	if exerciseID == "" {
		return nil, ErrEmptyExerciseID
	}
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	for i := 1; i < len(frames); i++ {
		if frames[i].TimestampMS < frames[i-1].TimestampMS {
			return nil, fmt.Errorf("%w: frame %d at %dms after frame %d at %dms",
				ErrUnorderedFrames, i, frames[i].TimestampMS, i-1, frames[i-1].TimestampMS)
		}
	}

	// Copy so later mutation of the caller's slice cannot reach us.
	owned := make([]pose.AngleFrame, len(frames))
	copy(owned, frames)

	t := &Template{
		exerciseID: exerciseID,
		frames:     owned,
		durationMS: owned[len(owned)-1].TimestampMS - owned[0].TimestampMS,
	}

	// Apply all options
	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// ExerciseID returns the exercise this template records.
func (t *Template) ExerciseID() string {
	return t.exerciseID
}

// PrimaryJoint returns the configured primary joint, if any.
func (t *Template) PrimaryJoint() (pose.JointKey, bool) {
	if t.primaryJoint == nil {
		return 0, false
	}
	return *t.primaryJoint, true
}

// DurationMS returns the template duration in milliseconds.
func (t *Template) DurationMS() uint64 {
	return t.durationMS
}

// Len returns the number of frames.
func (t *Template) Len() int {
	return len(t.frames)
}

// FrameAt returns the frame at the given index. O(1).
func (t *Template) FrameAt(index int) (pose.AngleFrame, error) {
	if index < 0 || index >= len(t.frames) {
		return pose.AngleFrame{}, fmt.Errorf("%w: index %d of %d", ErrIndexOutOfRange, index, len(t.frames))
	}
	return t.frames[index], nil
}

// StartMS returns the timestamp of the first frame.
func (t *Template) StartMS() uint64 {
	return t.frames[0].TimestampMS
}

// Nearest returns the index of the frame closest to the given fraction
// of the template duration, with fraction clamped to [0,1].
func (t *Template) Nearest(fraction float64) int {
	if fraction <= 0 {
		return 0
	}
	if fraction >= 1 {
		return len(t.frames) - 1
	}
	return t.NearestTime(t.frames[0].TimestampMS + uint64(fraction*float64(t.durationMS)))
}

// NearestTime returns the index of the frame whose timestamp is closest
// to the given template-relative timestamp. Binary search, O(log n).
func (t *Template) NearestTime(timestampMS uint64) int {
	lo, hi := 0, len(t.frames)-1
	if timestampMS <= t.frames[lo].TimestampMS {
		return lo
	}
	if timestampMS >= t.frames[hi].TimestampMS {
		return hi
	}

	for lo < hi-1 {
		mid := (lo + hi) / 2
		if t.frames[mid].TimestampMS <= timestampMS {
			lo = mid
		} else {
			hi = mid
		}
	}

	if timestampMS-t.frames[lo].TimestampMS <= t.frames[hi].TimestampMS-timestampMS {
		return lo
	}
	return hi
}
