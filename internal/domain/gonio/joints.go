// Package gonio converts smoothed landmark frames into named joint-angle
// measurements.
package gonio

import "github.com/ozkurt/formsense/internal/domain/pose"

// jointDef names the three landmarks whose two adjoining segments define
// a joint angle: proximal -> vertex and distal -> vertex.
type jointDef struct {
	proximal pose.LandmarkID
	vertex   pose.LandmarkID
	distal   pose.LandmarkID
}

// limbJoints maps every non-trunk joint to its defining landmarks. All
// limb angles are interior angles in [0,180] degrees. Trunk tilt is
// handled separately: it is the one signed joint, measured in
// [-180,180] degrees against the vertical axis, positive when leaning
// toward the subject's left.
var limbJoints = map[pose.JointKey]jointDef{
	pose.JointLeftShoulder:  {proximal: pose.LeftHip, vertex: pose.LeftShoulder, distal: pose.LeftElbow},
	pose.JointRightShoulder: {proximal: pose.RightHip, vertex: pose.RightShoulder, distal: pose.RightElbow},
	pose.JointLeftElbow:     {proximal: pose.LeftShoulder, vertex: pose.LeftElbow, distal: pose.LeftWrist},
	pose.JointRightElbow:    {proximal: pose.RightShoulder, vertex: pose.RightElbow, distal: pose.RightWrist},
	pose.JointLeftHip:       {proximal: pose.LeftShoulder, vertex: pose.LeftHip, distal: pose.LeftKnee},
	pose.JointRightHip:      {proximal: pose.RightShoulder, vertex: pose.RightHip, distal: pose.RightKnee},
	pose.JointLeftKnee:      {proximal: pose.LeftHip, vertex: pose.LeftKnee, distal: pose.LeftAnkle},
	pose.JointRightKnee:     {proximal: pose.RightHip, vertex: pose.RightKnee, distal: pose.RightAnkle},
}

// trunkLandmarks are the four landmarks whose midpoints define the trunk
// axis.
var trunkLandmarks = [4]pose.LandmarkID{
	pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip,
}
