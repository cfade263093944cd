// Package thresholds holds the clinical threshold tables that drive
// error detection. A table is loaded once at session start and never
// mutated; per-subject overrides build a new table instead.
package thresholds

import (
	"fmt"
	"sort"

	"github.com/ozkurt/formsense/internal/domain/pose"
)

// ErrorType names a detectable movement fault.
type ErrorType string

// Error types with established clinical threshold values.
const (
	ErrorKneeValgus        ErrorType = "knee_valgus"
	ErrorInsufficientDepth ErrorType = "insufficient_depth"
	ErrorTrunkLean         ErrorType = "trunk_lean"
	ErrorHipShift          ErrorType = "hip_shift"
	ErrorElbowFlare        ErrorType = "elbow_flare"
	ErrorShoulderShrug     ErrorType = "shoulder_shrug"
	ErrorAnkleCollapse     ErrorType = "ankle_collapse"
)

// Unit is the measurement unit a threshold is expressed in.
type Unit string

const (
	UnitDegrees     Unit = "deg"
	UnitCentimeters Unit = "cm"
)

// Valid reports whether the unit is a known measurement unit.
func (u Unit) Valid() bool {
	return u == UnitDegrees || u == UnitCentimeters
}

// Spec is one clinical threshold: the deviation values at which a
// joint's fault becomes a warning or a critical finding, and how long
// it must persist before it counts.
type Spec struct {
	ErrorType     ErrorType     `koanf:"error_type"`
	Joint         pose.JointKey `koanf:"-"`
	JointName     string        `koanf:"joint"`
	WarningValue  float64       `koanf:"warning_value"`
	CriticalValue float64       `koanf:"critical_value"`
	Unit          Unit          `koanf:"unit"`
	PersistenceMS uint64        `koanf:"persistence_ms"`
	Citation      string        `koanf:"citation"`
}

func (s *Spec) validate() error {
	if s.ErrorType == "" {
		return fmt.Errorf("%w: empty error_type", ErrInvalidSpec)
	}
	if !s.Joint.Valid() {
		return fmt.Errorf("%w: unknown joint %q for %s", ErrInvalidSpec, s.JointName, s.ErrorType)
	}
	if !s.Unit.Valid() {
		return fmt.Errorf("%w: unknown unit %q for %s/%s", ErrInvalidSpec, s.Unit, s.Joint, s.ErrorType)
	}
	if s.WarningValue <= 0 {
		return fmt.Errorf("%w: non-positive warning_value for %s/%s", ErrInvalidSpec, s.Joint, s.ErrorType)
	}
	if s.CriticalValue < s.WarningValue {
		return fmt.Errorf("%w: critical_value below warning_value for %s/%s", ErrInvalidSpec, s.Joint, s.ErrorType)
	}
	if s.PersistenceMS == 0 {
		return fmt.Errorf("%w: zero persistence_ms for %s/%s", ErrInvalidSpec, s.Joint, s.ErrorType)
	}
	return nil
}

type specKey struct {
	joint     pose.JointKey
	errorType ErrorType
}

// Table is an immutable threshold set for one exercise, optionally
// narrowed to a subject skill tier.
type Table struct {
	exerciseID string
	tier       string
	specs      map[specKey]Spec
}

// NewTable validates the given specs and freezes them into a table.
// Duplicate (joint, error_type) pairs and invalid values fail fast.
func NewTable(exerciseID string, specs []Spec, opts ...TableOption) (*Table, error) {
	if exerciseID == "" {
		return nil, ErrEmptyExerciseID
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: exercise %q", ErrNoSpecs, exerciseID)
	}

	t := &Table{
		exerciseID: exerciseID,
		specs:      make(map[specKey]Spec, len(specs)),
	}
	for _, opt := range opts {
		opt(t)
	}

	for i := range specs {
		s := specs[i]
		if s.JointName != "" {
			key, ok := pose.ParseJointKey(s.JointName)
			if !ok {
				return nil, fmt.Errorf("%w: unknown joint %q", ErrInvalidSpec, s.JointName)
			}
			s.Joint = key
		}
		if err := s.validate(); err != nil {
			return nil, err
		}

		key := specKey{joint: s.Joint, errorType: s.ErrorType}
		if _, dup := t.specs[key]; dup {
			return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateSpec, s.Joint, s.ErrorType)
		}
		t.specs[key] = s
	}
	return t, nil
}

// TableOption applies a configuration option to a Table under construction.
type TableOption func(*Table)

// WithSkillTier records the subject skill tier this table was narrowed to.
func WithSkillTier(tier string) TableOption {
	return func(t *Table) {
		t.tier = tier
	}
}

// ExerciseID returns the exercise this table belongs to.
func (t *Table) ExerciseID() string {
	return t.exerciseID
}

// SkillTier returns the skill tier the table was loaded for, empty for
// the exercise default.
func (t *Table) SkillTier() string {
	return t.tier
}

// Lookup returns the spec for a (joint, error type) pair.
func (t *Table) Lookup(joint pose.JointKey, errorType ErrorType) (Spec, bool) {
	s, ok := t.specs[specKey{joint: joint, errorType: errorType}]
	return s, ok
}

// Specs returns every spec in the table in a stable order.
func (t *Table) Specs() []Spec {
	out := make([]Spec, 0, len(t.specs))
	for _, s := range t.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Joint != out[j].Joint {
			return out[i].Joint < out[j].Joint
		}
		return out[i].ErrorType < out[j].ErrorType
	})
	return out
}

// Len is the number of specs in the table.
func (t *Table) Len() int {
	return len(t.specs)
}

// Validate reports whether every required joint is covered by at least
// one spec. A session must not start against a table missing its key
// joints.
func (t *Table) Validate(required ...pose.JointKey) error {
	for _, joint := range required {
		covered := false
		for key := range t.specs {
			if key.joint == joint {
				covered = true
				break
			}
		}
		if !covered {
			return fmt.Errorf("%w: %s (exercise %q)", ErrUncoveredJoint, joint, t.exerciseID)
		}
	}
	return nil
}

// Override builds a new table with the given specs replacing or
// extending the receiver's. The receiver is left untouched so sessions
// sharing it stay isolated.
func (t *Table) Override(overrides []Spec) (*Table, error) {
	merged := t.Specs()
	for _, o := range overrides {
		if o.JointName != "" {
			key, ok := pose.ParseJointKey(o.JointName)
			if !ok {
				return nil, fmt.Errorf("%w: unknown joint %q", ErrInvalidSpec, o.JointName)
			}
			o.Joint = key
		}
		replaced := false
		for i := range merged {
			if merged[i].Joint == o.Joint && merged[i].ErrorType == o.ErrorType {
				merged[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, o)
		}
	}
	return NewTable(t.exerciseID, merged, WithSkillTier(t.tier))
}
