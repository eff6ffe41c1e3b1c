package form

import (
	"github.com/claude/posecoach/internal/exercise"
	"github.com/claude/posecoach/internal/pose"
)

const (
	MsgAlignmentUnknown = "cannot determine body alignment accurately"
	MsgHeadBack         = "head tilted back, look at the floor"
	MsgChinTucked       = "chin tucked too far, keep neck neutral"
)

// plank has no stage: sagging hips are weighted heavier than piking because
// they load the lower back.
func plank(s *scorer, p pose.Pose, th exercise.Thresholds) {
	dev, ok := hipDeviation(p)
	switch {
	case !ok:
		s.deduct(unreadablePenalty, MsgAlignmentUnknown)
	case dev > th.HipSagPx:
		s.deduct(4, MsgHipsSagging)
	case dev < -th.HipPikePx:
		s.deduct(3, MsgHipsPiking)
	}

	// Neck check only when the face is reasonably visible.
	nose, okN := p.Point(pose.Nose, pose.FaceConfidence)
	earY, okE := p.AverageY(pose.LeftEar, pose.RightEar, pose.FaceConfidence)
	if !okN || !okE {
		return
	}
	switch offset := nose.Y - earY; {
	case offset < -th.HeadBackPx:
		s.deduct(2, MsgHeadBack)
	case offset > th.ChinTuckPx:
		s.deduct(1, MsgChinTucked)
	}
}
