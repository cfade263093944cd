// Package deviation compares aligned live and template angle frames and
// reports per-joint angular differences. Joints missing on either side
// produce no entry at all, so downstream detection can never mistake
// absent input for a zero-degree match.
package deviation

import (
	"math"

	"github.com/ozkurt/formsense/internal/domain/align"
	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/template"
)

// Value is one joint's measured difference against the template.
type Value struct {
	// Degrees is the magnitude of the difference.
	Degrees float64
	// Signed is live minus template, preserving direction.
	Signed float64
	// Confidence is the weaker of the two contributing measurements.
	Confidence float64
}

// Frame carries every measurable joint deviation for one aligned pair,
// plus the alignment context the detector needs.
type Frame struct {
	TimestampMS     uint64
	TemplateIndex   int
	AlignConfidence float64

	values map[pose.JointKey]Value
}

// NewFrame assembles a deviation frame from precomputed values.
func NewFrame(timestampMS uint64, templateIndex int, alignConfidence float64, values map[pose.JointKey]Value) Frame {
	return Frame{
		TimestampMS:     timestampMS,
		TemplateIndex:   templateIndex,
		AlignConfidence: alignConfidence,
		values:          values,
	}
}

// Value reports the deviation for a joint. The second return is false
// when the joint was not measurable on both sides.
func (f *Frame) Value(key pose.JointKey) (Value, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Joints lists the joints that produced a measurable deviation.
func (f *Frame) Joints() []pose.JointKey {
	out := make([]pose.JointKey, 0, len(f.values))
	for _, key := range pose.AllJoints() {
		if _, ok := f.values[key]; ok {
			out = append(out, key)
		}
	}
	return out
}

// Len is the number of measurable joint deviations.
func (f *Frame) Len() int {
	return len(f.values)
}

// Engine resolves alignment entries against a template and produces
// deviation frames.
type Engine struct {
	tpl *template.Template
}

// NewEngine creates a deviation engine bound to one template.
func NewEngine(tpl *template.Template) (*Engine, error) {
	if tpl == nil {
		return nil, ErrNilTemplate
	}
	return &Engine{tpl: tpl}, nil
}

// Deviate compares a live angle frame with the template frame its
// alignment entry points at. Every joint present on both sides is
// evaluated independently, left and right alike.
func (e *Engine) Deviate(live pose.AngleFrame, entry align.Entry) (Frame, error) {
	tplFrame, err := e.tpl.FrameAt(entry.TemplateIndex)
	if err != nil {
		return Frame{}, err
	}

	return Frame{
		TimestampMS:     live.TimestampMS,
		TemplateIndex:   entry.TemplateIndex,
		AlignConfidence: entry.Confidence,
		values:          Compare(&live, &tplFrame),
	}, nil
}

// Compare computes per-joint deviations between two angle frames. Only
// joints measurable in both frames contribute.
func Compare(live, tpl *pose.AngleFrame) map[pose.JointKey]Value {
	out := make(map[pose.JointKey]Value)
	for _, key := range pose.AllJoints() {
		la, ok := live.Angle(key)
		if !ok {
			continue
		}
		ta, ok := tpl.Angle(key)
		if !ok {
			continue
		}

		signed := la.Degrees - ta.Degrees
		out[key] = Value{
			Degrees:    math.Abs(signed),
			Signed:     signed,
			Confidence: math.Min(la.Confidence, ta.Confidence),
		}
	}
	return out
}
