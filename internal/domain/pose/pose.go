// Package pose contains the body-landmark and joint-angle domain models
// passed between pipeline stages.
package pose

import "fmt"

// LandmarkID identifies a tracked body keypoint. The ids follow the
// 33-point full-body topology; the 17-point COCO skeleton is a subset
// (nose, eyes, ears, shoulders, elbows, wrists, hips, knees, ankles)
// sharing the same ids, so both model families feed the same tables.
type LandmarkID int

// Full-body landmark ids.
const (
	Nose LandmarkID = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex

	// LandmarkCount is the size of the full topology.
	LandmarkCount = 33
)

// Valid reports whether the id is within the known topology.
func (id LandmarkID) Valid() bool {
	return id >= Nose && id < LandmarkCount
}

// Landmark is a single tracked body keypoint with position and confidence.
type Landmark struct {
	ID         LandmarkID
	X          float64
	Y          float64
	Z          float64
	Confidence float64 // [0,1]
}

// Source identifies which stream a frame belongs to.
type Source int

const (
	SourceTemplate Source = iota
	SourceLive
)

// String returns the stream name.
func (s Source) String() string {
	switch s {
	case SourceTemplate:
		return "template"
	case SourceLive:
		return "live"
	default:
		return "unknown"
	}
}

// PoseFrame is one timestamped landmark set from a single stream.
// Frames for one stream must arrive in non-decreasing timestamp order;
// ordering is enforced at the stream boundary, not here.
type PoseFrame struct {
	TimestampMS uint64
	Landmarks   []Landmark
	Source      Source
}

// Landmark returns the landmark with the given id, if present.
func (f *PoseFrame) Landmark(id LandmarkID) (Landmark, bool) {
	for i := range f.Landmarks {
		if f.Landmarks[i].ID == id {
			return f.Landmarks[i], true
		}
	}
	return Landmark{}, false
}

// Validate rejects malformed landmark sets: unknown ids, duplicate ids,
// or confidences outside [0,1].
func (f *PoseFrame) Validate() error {
	if len(f.Landmarks) == 0 {
		return fmt.Errorf("%w: empty landmark set", ErrMalformedFrame)
	}
	var seen [LandmarkCount]bool
	for i := range f.Landmarks {
		lm := &f.Landmarks[i]
		if !lm.ID.Valid() {
			return fmt.Errorf("%w: unknown landmark id %d", ErrMalformedFrame, lm.ID)
		}
		if seen[lm.ID] {
			return fmt.Errorf("%w: duplicate landmark id %d", ErrMalformedFrame, lm.ID)
		}
		seen[lm.ID] = true
		if lm.Confidence < 0 || lm.Confidence > 1 {
			return fmt.Errorf("%w: landmark %d confidence %f outside [0,1]", ErrMalformedFrame, lm.ID, lm.Confidence)
		}
	}
	return nil
}
