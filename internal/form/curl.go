package form

import (
	"math"

	"github.com/claude/posecoach/internal/exercise"
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
)

const (
	MsgCurlAngleUnknown = "cannot determine arm angle accurately"
	MsgElbowsDrifting   = "keep elbows stable at your sides"
	MsgExtendArms       = "extend arms fully at the bottom"
	MsgCurlHigher       = "curl higher"
	MsgShouldersUneven  = "keep shoulders level"
)

func curl(s *scorer, p pose.Pose, stage models.Stage, th exercise.Thresholds) {
	width, hasWidth := shoulderWidth(p)

	// Elbows should stay under the shoulders; tolerance scales with the
	// subject's apparent size.
	if hasWidth {
		limit := th.ElbowDriftRatio * width
		for _, side := range [][2]string{
			{pose.LeftShoulder, pose.LeftElbow},
			{pose.RightShoulder, pose.RightElbow},
		} {
			sh, okS := p.Point(side[0], pose.FormConfidence)
			el, okE := p.Point(side[1], pose.FormConfidence)
			if okS && okE && math.Abs(el.X-sh.X) > limit {
				s.deduct(3, MsgElbowsDrifting)
				break
			}
		}
	}

	angle, ok := p.BilateralAngle(pose.LeftElbowAngle, pose.RightElbowAngle, pose.FormConfidence)
	switch {
	case !ok:
		s.deduct(unreadablePenalty, MsgCurlAngleUnknown)
	case stage == models.StageDown && angle < th.FormDownAngle:
		s.deduct(2, MsgExtendArms)
	case stage == models.StageUp && angle > th.FormUpAngle:
		s.deduct(2, MsgCurlHigher)
	}

	if hasWidth {
		l, okL := p.Point(pose.LeftShoulder, pose.FormConfidence)
		r, okR := p.Point(pose.RightShoulder, pose.FormConfidence)
		if okL && okR && math.Abs(l.Y-r.Y) > th.ShoulderLevelRatio*width {
			s.deduct(2, MsgShouldersUneven)
		}
	}
}

// shoulderWidth is the horizontal shoulder span, used to scale tolerances.
// Widths under a pixel mean a side-on view where the ratio checks are
// meaningless.
func shoulderWidth(p pose.Pose) (float64, bool) {
	l, okL := p.Point(pose.LeftShoulder, pose.PresenceConfidence)
	r, okR := p.Point(pose.RightShoulder, pose.PresenceConfidence)
	if !okL || !okR {
		return 0, false
	}
	w := math.Abs(l.X - r.X)
	return w, w >= 1
}
