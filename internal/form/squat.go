package form

import (
	"math"

	"github.com/claude/posecoach/internal/exercise"
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
)

const (
	MsgKneeAngleUnknown = "cannot determine knee angle accurately"
	MsgGreatDepth       = "great depth!"
	MsgAlmostParallel   = "almost parallel, go a little deeper"
	MsgSquatDeeper      = "squat deeper, hips to knee level"
	MsgStandTall        = "stand up fully at the top"
	MsgKneesForward     = "knees travelling too far past your toes"
	MsgChestUp          = "keep your chest up"
)

func squat(s *scorer, p pose.Pose, stage models.Stage, th exercise.Thresholds, opts Options) {
	angle, ok := p.BilateralAngle(pose.LeftKneeAngle, pose.RightKneeAngle, pose.FormConfidence)
	if !ok {
		s.deduct(unreadablePenalty, MsgKneeAngleUnknown)
	} else {
		switch stage {
		case models.StageDown:
			switch {
			case angle < th.FormDownAngle && hipAtKnee(p):
				s.note(MsgGreatDepth)
			case angle <= th.ParallelAngle:
				s.note(MsgAlmostParallel)
			default:
				s.deduct(3, MsgSquatDeeper)
			}
		case models.StageUp:
			if angle < th.FormUpAngle {
				s.deduct(2, MsgStandTall)
			}
		}
	}

	if !opts.SideViewChecks {
		return
	}
	if stage == models.StageDown && kneeTravel(p) > th.KneeTravelRatio {
		s.deduct(2, MsgKneesForward)
	}
	if lean, ok := trunkLean(p); ok && lean > th.TrunkLeanAngle {
		s.deduct(2, MsgChestUp)
	}
}

func hipAtKnee(p pose.Pose) bool {
	hipY, okH := p.AverageY(pose.LeftHip, pose.RightHip, pose.PresenceConfidence)
	kneeY, okK := p.AverageY(pose.LeftKnee, pose.RightKnee, pose.PresenceConfidence)
	return okH && okK && hipY >= kneeY
}

// kneeTravel is the horizontal knee-over-ankle offset as a fraction of shin
// length, worst side. Zero when no side is measurable.
func kneeTravel(p pose.Pose) float64 {
	worst := 0.0
	for _, side := range [][2]string{
		{pose.LeftKnee, pose.LeftAnkle},
		{pose.RightKnee, pose.RightAnkle},
	} {
		knee, okK := p.Point(side[0], pose.FormConfidence)
		ankle, okA := p.Point(side[1], pose.FormConfidence)
		if !okK || !okA {
			continue
		}
		shin := math.Hypot(knee.X-ankle.X, knee.Y-ankle.Y)
		if shin < 1 {
			continue
		}
		worst = math.Max(worst, math.Abs(knee.X-ankle.X)/shin)
	}
	return worst
}

// trunkLean is the angle in degrees between the hip-to-shoulder line and
// vertical.
func trunkLean(p pose.Pose) (float64, bool) {
	shX, okSX := p.AverageX(pose.LeftShoulder, pose.RightShoulder, pose.FormConfidence)
	shY, okSY := p.AverageY(pose.LeftShoulder, pose.RightShoulder, pose.FormConfidence)
	hipX, okHX := p.AverageX(pose.LeftHip, pose.RightHip, pose.FormConfidence)
	hipY, okHY := p.AverageY(pose.LeftHip, pose.RightHip, pose.FormConfidence)
	if !okSX || !okSY || !okHX || !okHY {
		return 0, false
	}
	return math.Atan2(math.Abs(shX-hipX), math.Abs(hipY-shY)) * 180 / math.Pi, true
}
