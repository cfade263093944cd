package pose

// Angle is a measured joint angle with the confidence derived from its
// defining landmarks. A joint that could not be measured is represented
// by its absence from the AngleFrame, never by a zero Angle.
type Angle struct {
	Degrees    float64
	Confidence float64
}

// AngleFrame is the goniometric view of one PoseFrame.
type AngleFrame struct {
	TimestampMS uint64
	Angles      map[JointKey]Angle
}

// NewAngleFrame creates an empty angle frame for the given timestamp.
func NewAngleFrame(timestampMS uint64) AngleFrame {
	return AngleFrame{
		TimestampMS: timestampMS,
		Angles:      make(map[JointKey]Angle, JointCount),
	}
}

// Angle returns the measurement for a joint, if present. This is the
// only read path: callers must handle the missing case explicitly.
func (f *AngleFrame) Angle(key JointKey) (Angle, bool) {
	a, ok := f.Angles[key]
	return a, ok
}

// Set records a measurement for a joint.
func (f *AngleFrame) Set(key JointKey, a Angle) {
	f.Angles[key] = a
}

// Len returns the number of measured joints.
func (f *AngleFrame) Len() int {
	return len(f.Angles)
}
