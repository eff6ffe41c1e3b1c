package pose

import "math"

// Confidence gates. Different checks tolerate different uncertainty, so the
// gate is always a parameter; these are the values the analyzers use.
const (
	DefaultConfidence  = 0.3 // rep detection angles
	FormConfidence     = 0.4 // form-analysis angles
	FaceConfidence     = 0.2 // nose/ear neck check
	PresenceConfidence = 0.1 // visibility gate and coordinate averages
)

// Triple names the three keypoints of a joint angle; B is the vertex.
type Triple struct {
	A, B, C string
}

// Common joint triples.
var (
	LeftElbowAngle  = Triple{LeftShoulder, LeftElbow, LeftWrist}
	RightElbowAngle = Triple{RightShoulder, RightElbow, RightWrist}
	LeftKneeAngle   = Triple{LeftHip, LeftKnee, LeftAnkle}
	RightKneeAngle  = Triple{RightHip, RightKnee, RightAnkle}
	LeftHipAngle    = Triple{LeftShoulder, LeftHip, LeftKnee}
	RightHipAngle   = Triple{RightShoulder, RightHip, RightKnee}
)

// AngleAt returns the angle in degrees at vertex b between the rays b->a and
// b->c, in [0, 180]. ok is false when any point is absent (empty name), scores
// below minConfidence, or has a non-finite coordinate.
func AngleAt(a, b, c Keypoint, minConfidence float64) (deg float64, ok bool) {
	if !usable(a, minConfidence) || !usable(b, minConfidence) || !usable(c, minConfidence) {
		return 0, false
	}
	rad := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	deg = math.Abs(rad * 180 / math.Pi)
	if deg > 180 {
		deg = 360 - deg
	}
	return deg, true
}

// Angle looks up t in the pose and returns AngleAt for it.
func (p Pose) Angle(t Triple, minConfidence float64) (float64, bool) {
	a, okA := p.Get(t.A)
	b, okB := p.Get(t.B)
	c, okC := p.Get(t.C)
	if !okA || !okB || !okC {
		return 0, false
	}
	return AngleAt(a, b, c, minConfidence)
}

// BilateralAngle averages the left and right joint angles. When only one side
// is usable its value is returned alone; when neither is, ok is false.
func (p Pose) BilateralAngle(left, right Triple, minConfidence float64) (float64, bool) {
	l, okL := p.Angle(left, minConfidence)
	r, okR := p.Angle(right, minConfidence)
	return combine(l, okL, r, okR)
}

// AverageX averages the X coordinate of two keypoints with one-sided fallback.
func (p Pose) AverageX(left, right string, minConfidence float64) (float64, bool) {
	return p.average(left, right, minConfidence, func(k Keypoint) float64 { return k.X })
}

// AverageY averages the Y coordinate of two keypoints with one-sided fallback.
func (p Pose) AverageY(left, right string, minConfidence float64) (float64, bool) {
	return p.average(left, right, minConfidence, func(k Keypoint) float64 { return k.Y })
}

// Point returns the keypoint if it clears minConfidence.
func (p Pose) Point(name string, minConfidence float64) (Keypoint, bool) {
	kp, ok := p.Get(name)
	if !ok || !usable(kp, minConfidence) {
		return Keypoint{}, false
	}
	return kp, true
}

func (p Pose) average(left, right string, minConfidence float64, coord func(Keypoint) float64) (float64, bool) {
	var l, r float64
	lk, okL := p.Point(left, minConfidence)
	if okL {
		l = coord(lk)
	}
	rk, okR := p.Point(right, minConfidence)
	if okR {
		r = coord(rk)
	}
	return combine(l, okL, r, okR)
}

func combine(l float64, okL bool, r float64, okR bool) (float64, bool) {
	switch {
	case okL && okR:
		return (l + r) / 2, true
	case okL:
		return l, true
	case okR:
		return r, true
	default:
		return 0, false
	}
}

func usable(k Keypoint, minConfidence float64) bool {
	if k.Name == "" || !(k.Score >= minConfidence) {
		return false
	}
	return !math.IsNaN(k.X) && !math.IsNaN(k.Y) && !math.IsInf(k.X, 0) && !math.IsInf(k.Y, 0)
}
