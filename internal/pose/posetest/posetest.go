// Package posetest builds synthetic poses for tests. Limbs are laid out with
// exact joint angles so thresholds can be probed precisely.
package posetest

import (
	"math"
	"sort"

	"github.com/claude/posecoach/internal/pose"
)

// Polar returns the point at distance r from (cx, cy) in direction deg, measured
// in image space (Y down, so 90 points straight down).
func Polar(cx, cy, deg, r float64) (x, y float64) {
	rad := deg * math.Pi / 180
	return cx + r*math.Cos(rad), cy + r*math.Sin(rad)
}

// Builder accumulates keypoints by name.
type Builder struct {
	kps map[string]pose.Keypoint
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{kps: make(map[string]pose.Keypoint)}
}

// Set places a keypoint with full confidence.
func (b *Builder) Set(name string, x, y float64) *Builder {
	b.kps[name] = pose.Keypoint{Name: name, X: x, Y: y, Score: 1}
	return b
}

// Score overrides the confidence of the named keypoints.
func (b *Builder) Score(score float64, names ...string) *Builder {
	for _, n := range names {
		if kp, ok := b.kps[n]; ok {
			kp.Score = score
			b.kps[n] = kp
		}
	}
	return b
}

// Drop removes the named keypoints.
func (b *Builder) Drop(names ...string) *Builder {
	for _, n := range names {
		delete(b.kps, n)
	}
	return b
}

// Shift moves the named keypoints by (dx, dy).
func (b *Builder) Shift(dx, dy float64, names ...string) *Builder {
	for _, n := range names {
		if kp, ok := b.kps[n]; ok {
			kp.X += dx
			kp.Y += dy
			b.kps[n] = kp
		}
	}
	return b
}

// Pose returns the built pose, ordered by name for determinism.
func (b *Builder) Pose() pose.Pose {
	names := make([]string, 0, len(b.kps))
	for n := range b.kps {
		names = append(names, n)
	}
	sort.Strings(names)
	kps := make([]pose.Keypoint, 0, len(names))
	for _, n := range names {
		kps = append(kps, b.kps[n])
	}
	return pose.MustNew(kps)
}

// Arms lays out a front-facing subject with both elbows bent to angle degrees.
// Shoulders sit at (100,100) and (300,100), elbows 100px straight below them.
func Arms(angle float64) *Builder {
	b := New()
	b.Set(pose.LeftShoulder, 100, 100).Set(pose.LeftElbow, 100, 200)
	x, y := Polar(100, 200, -90+angle, 90)
	b.Set(pose.LeftWrist, x, y)

	b.Set(pose.RightShoulder, 300, 100).Set(pose.RightElbow, 300, 200)
	x, y = Polar(300, 200, -90-angle, 90)
	b.Set(pose.RightWrist, x, y)
	return b
}

// Legs lays out both legs with the knee bent to angle degrees. hipDir is the
// direction from knee to hip: -90 is straight up (standing), 180 puts the hip
// level with the knee.
func Legs(angle, hipDir float64) *Builder {
	b := New()
	for _, side := range []struct {
		hip, knee, ankle string
		kx               float64
	}{
		{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle, 100},
		{pose.RightHip, pose.RightKnee, pose.RightAnkle, 300},
	} {
		b.Set(side.knee, side.kx, 300)
		x, y := Polar(side.kx, 300, hipDir, 100)
		b.Set(side.hip, x, y)
		x, y = Polar(side.kx, 300, hipDir-angle, 100)
		b.Set(side.ankle, x, y)
	}
	return b
}

// Standing is Legs at full extension.
func Standing() *Builder {
	return Legs(175, -90)
}

// PushUp lays out a side-on push-up: shoulders at y=200, ankles at y=200, hips
// hipOffset pixels below the straight line (negative means above), elbows bent
// to elbowAngle.
func PushUp(elbowAngle, hipOffset float64) *Builder {
	b := New()
	for _, side := range [][4]string{
		{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, pose.LeftHip},
		{pose.RightShoulder, pose.RightElbow, pose.RightWrist, pose.RightHip},
	} {
		b.Set(side[1], 100, 260)
		b.Set(side[0], 100, 200)
		x, y := Polar(100, 260, -90+elbowAngle, 60)
		b.Set(side[2], x, y)
		b.Set(side[3], 300, 200+hipOffset)
	}
	b.Set(pose.LeftAnkle, 500, 200).Set(pose.RightAnkle, 500, 200)
	return b
}

// Plank lays out a forearm plank with hips hipOffset pixels below the
// shoulder-ankle line and the nose noseOffset pixels below the ears.
func Plank(hipOffset, noseOffset float64) *Builder {
	b := New()
	b.Set(pose.LeftShoulder, 100, 200).Set(pose.RightShoulder, 100, 200)
	b.Set(pose.LeftElbow, 100, 260).Set(pose.RightElbow, 100, 260)
	b.Set(pose.LeftHip, 300, 200+hipOffset).Set(pose.RightHip, 300, 200+hipOffset)
	b.Set(pose.LeftAnkle, 500, 200).Set(pose.RightAnkle, 500, 200)
	b.Set(pose.LeftEar, 60, 190).Set(pose.RightEar, 60, 190)
	b.Set(pose.Nose, 40, 190+noseOffset)
	return b
}
