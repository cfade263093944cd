package pose

// JointKey enumerates the bilateral joints the pipeline measures.
type JointKey int

const (
	JointLeftShoulder JointKey = iota
	JointRightShoulder
	JointLeftElbow
	JointRightElbow
	JointLeftHip
	JointRightHip
	JointLeftKnee
	JointRightKnee
	JointTrunk

	// JointCount is the number of measured joints.
	JointCount = 9
)

// jointNames is indexed by JointKey.
var jointNames = [JointCount]string{
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"trunk",
}

// String returns the stable joint name used in configuration and logs.
func (j JointKey) String() string {
	if j < 0 || j >= JointCount {
		return "unknown"
	}
	return jointNames[j]
}

// Valid reports whether the key names a measured joint.
func (j JointKey) Valid() bool {
	return j >= JointLeftShoulder && j < JointCount
}

// Mirror returns the contralateral joint. Trunk mirrors to itself.
func (j JointKey) Mirror() JointKey {
	switch j {
	case JointLeftShoulder:
		return JointRightShoulder
	case JointRightShoulder:
		return JointLeftShoulder
	case JointLeftElbow:
		return JointRightElbow
	case JointRightElbow:
		return JointLeftElbow
	case JointLeftHip:
		return JointRightHip
	case JointRightHip:
		return JointLeftHip
	case JointLeftKnee:
		return JointRightKnee
	case JointRightKnee:
		return JointLeftKnee
	default:
		return j
	}
}

// ParseJointKey resolves a configuration joint name to its key.
func ParseJointKey(name string) (JointKey, bool) {
	for i, n := range jointNames {
		if n == name {
			return JointKey(i), true
		}
	}
	return 0, false
}

// AllJoints returns every measured joint key in declaration order.
func AllJoints() []JointKey {
	keys := make([]JointKey, JointCount)
	for i := range keys {
		keys[i] = JointKey(i)
	}
	return keys
}
