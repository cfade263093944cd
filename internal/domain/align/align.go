// Package align maps each live angle-frame to a corresponding template
// angle-frame despite pace differences between subject and reference.
package align

import (
	"fmt"
	"math"

	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/template"
)

// Entry is one row of the alignment map. Live indices are strictly
// monotonic; template indices are non-decreasing but may repeat (subject
// slower than template) or skip (faster).
type Entry struct {
	LiveIndex     int
	TemplateIndex int
	Confidence    float64
}

// Aligner maps live angle frames onto template frame indices.
type Aligner interface {
	// Align consumes the next live frame and returns the alignment entry
	// for it.
	Align(live pose.AngleFrame) (Entry, error)

	// Reset discards all alignment state, e.g. after tracking loss.
	Reset()
}

// Mode selects the alignment strategy for an exercise.
type Mode string

const (
	// ModeSpeedRatio tracks a pace ratio from matched rep boundaries.
	// O(1) per frame; the default.
	ModeSpeedRatio Mode = "speed_ratio"
	// ModeElastic runs a bounded dynamic-programming warp over a recent
	// window, for exercises with irregular tempo or pauses.
	ModeElastic Mode = "elastic"
)

// ParseMode resolves a configuration string to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeSpeedRatio, ModeElastic:
		return Mode(s), true
	default:
		return "", false
	}
}

// New constructs the aligner for a mode with default options.
func New(mode Mode, tpl *template.Template) (Aligner, error) {
	switch mode {
	case ModeSpeedRatio:
		return NewSpeedRatio(tpl)
	case ModeElastic:
		return NewElastic(tpl)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// frameDistance is the mean absolute angular difference over the joints
// measured on both sides. The count of shared joints is returned so
// callers can degrade confidence when data is missing.
func frameDistance(a, b *pose.AngleFrame) (dist float64, shared int) {
	var sum float64
	for key, av := range a.Angles {
		bv, ok := b.Angles[key]
		if !ok {
			continue
		}
		sum += math.Abs(av.Degrees - bv.Degrees)
		shared++
	}
	if shared == 0 {
		return 0, 0
	}
	return sum / float64(shared), shared
}

// sharedJointFraction reports how much of the template frame's joint set
// the live frame also measured.
func sharedJointFraction(live, tmpl *pose.AngleFrame) float64 {
	if tmpl.Len() == 0 {
		return 0
	}
	shared := 0
	for key := range tmpl.Angles {
		if _, ok := live.Angles[key]; ok {
			shared++
		}
	}
	return float64(shared) / float64(tmpl.Len())
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
