package form

import (
	"github.com/claude/posecoach/internal/exercise"
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
)

const (
	MsgElbowAngleUnknown = "cannot determine elbow angle accurately"
	MsgHipsSagging       = "hips sagging, engage core"
	MsgHipsPiking        = "hips too high, lower hips"
	MsgGoLower           = "go lower, chest toward the floor"
	MsgChestToFloor      = "chest to the floor, great depth!"
	MsgLockOut           = "extend arms fully at the top"
	MsgElbowsFlared      = "tuck elbows closer to your body"
)

func pushUp(s *scorer, p pose.Pose, stage models.Stage, th exercise.Thresholds, opts Options) {
	if dev, ok := hipDeviation(p); ok {
		switch {
		case dev > th.HipSagPx:
			s.deduct(3, MsgHipsSagging)
		case dev < -th.HipPikePx:
			s.deduct(3, MsgHipsPiking)
		}
	}

	angle, ok := p.BilateralAngle(pose.LeftElbowAngle, pose.RightElbowAngle, pose.FormConfidence)
	switch {
	case !ok:
		s.deduct(unreadablePenalty, MsgElbowAngleUnknown)
	case stage == models.StageDown:
		if angle > th.FormDownAngle {
			s.deduct(2, MsgGoLower)
		} else if angle <= th.DeepBonusAngle {
			s.note(MsgChestToFloor)
		}
	case stage == models.StageUp:
		if angle < th.FormUpAngle {
			s.deduct(2, MsgLockOut)
		}
	}

	if !opts.SideViewChecks {
		return
	}
	// Upper arm against torso, measured at the shoulder.
	flare, ok := p.BilateralAngle(
		pose.Triple{A: pose.LeftElbow, B: pose.LeftShoulder, C: pose.LeftHip},
		pose.Triple{A: pose.RightElbow, B: pose.RightShoulder, C: pose.RightHip},
		pose.FormConfidence,
	)
	if ok && flare > th.ElbowFlareAngle {
		s.deduct(2, MsgElbowsFlared)
	}
}
