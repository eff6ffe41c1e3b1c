// Package pose holds the per-frame keypoint model and the joint-angle helpers
// the rep counter and form analyzer are built on.
package pose

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Keypoint names emitted by the pose-estimation model (COCO 17-point layout).
const (
	Nose          = "nose"
	LeftEye       = "left_eye"
	RightEye      = "right_eye"
	LeftEar       = "left_ear"
	RightEar      = "right_ear"
	LeftShoulder  = "left_shoulder"
	RightShoulder = "right_shoulder"
	LeftElbow     = "left_elbow"
	RightElbow    = "right_elbow"
	LeftWrist     = "left_wrist"
	RightWrist    = "right_wrist"
	LeftHip       = "left_hip"
	RightHip      = "right_hip"
	LeftKnee      = "left_knee"
	RightKnee     = "right_knee"
	LeftAnkle     = "left_ankle"
	RightAnkle    = "right_ankle"
)

// Names lists the known vocabulary in model output order.
var Names = []string{
	Nose, LeftEye, RightEye, LeftEar, RightEar,
	LeftShoulder, RightShoulder, LeftElbow, RightElbow, LeftWrist, RightWrist,
	LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle, RightAnkle,
}

// ErrDuplicateKeypoint is returned when a frame names the same landmark twice.
var ErrDuplicateKeypoint = errors.New("duplicate keypoint name")

// Keypoint is one named, confidence-scored landmark in image space.
type Keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// Pose is the set of keypoints for one subject in one frame.
// The zero value is an empty pose.
type Pose struct {
	points []Keypoint
	index  map[string]int
}

// New builds a Pose from the model output. Unknown names are kept but never
// looked up by the analyzers.
func New(kps []Keypoint) (Pose, error) {
	p := Pose{
		points: make([]Keypoint, len(kps)),
		index:  make(map[string]int, len(kps)),
	}
	copy(p.points, kps)
	for i, kp := range p.points {
		if _, dup := p.index[kp.Name]; dup {
			return Pose{}, fmt.Errorf("%w: %q", ErrDuplicateKeypoint, kp.Name)
		}
		p.index[kp.Name] = i
	}
	return p, nil
}

// MustNew is New for fixtures; it panics on duplicate names.
func MustNew(kps []Keypoint) Pose {
	p, err := New(kps)
	if err != nil {
		panic(err)
	}
	return p
}

// Get returns the keypoint with the given name.
func (p Pose) Get(name string) (Keypoint, bool) {
	i, ok := p.index[name]
	if !ok {
		return Keypoint{}, false
	}
	return p.points[i], true
}

// Visible reports whether name is present with a score strictly above minScore.
func (p Pose) Visible(name string, minScore float64) bool {
	kp, ok := p.Get(name)
	return ok && kp.Score > minScore
}

// Len returns the number of keypoints.
func (p Pose) Len() int {
	return len(p.points)
}

// Keypoints returns a copy of the keypoints in input order.
func (p Pose) Keypoints() []Keypoint {
	out := make([]Keypoint, len(p.points))
	copy(out, p.points)
	return out
}

// MarshalJSON encodes the pose as a keypoint array.
func (p Pose) MarshalJSON() ([]byte, error) {
	if p.points == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.points)
}

// UnmarshalJSON decodes a keypoint array, rejecting duplicate names.
func (p *Pose) UnmarshalJSON(data []byte) error {
	var kps []Keypoint
	if err := json.Unmarshal(data, &kps); err != nil {
		return err
	}
	parsed, err := New(kps)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
