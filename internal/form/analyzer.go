// Package form scores exercise posture one frame at a time. Each exercise has
// a rule set that starts from a perfect score and only ever deducts.
package form

import (
	"errors"
	"fmt"

	"github.com/claude/posecoach/internal/exercise"
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
)

// ErrAnalysis wraps a fault recovered while evaluating a rule set.
var ErrAnalysis = errors.New("form analysis failed")

// Messages shared across exercises.
const (
	MsgNotVisible  = "body part not clearly visible"
	MsgUnsupported = "form analysis not available for this exercise"
	MsgInternal    = "an error occurred during analysis"
	MsgGoodForm    = "good form!"
)

// Penalty for a central angle that is present but too uncertain to judge.
const unreadablePenalty = 4

// Options toggles optional rule groups.
type Options struct {
	// SideViewChecks enables knee travel, trunk lean and elbow flare. These
	// checks are only meaningful with a controlled side-on camera and misjudge
	// users filmed from the front, so they are off unless the setup is known.
	SideViewChecks bool `json:"side_view_checks" yaml:"side_view_checks"`
}

// Analyze scores p for kind at the caller's current stage.
//
// The visibility gate runs first: when a required body part is missing the
// result is a zero score with MsgNotVisible. Unsupported kinds get a zero
// score with MsgUnsupported. A fault inside a rule set is recovered into a
// zero score with MsgInternal and an error wrapping ErrAnalysis.
func Analyze(kind models.ExerciseKind, p pose.Pose, stage models.Stage, opts Options) (models.FormFeedback, error) {
	return safely(kind, func() models.FormFeedback {
		return analyze(kind, p, stage, opts)
	})
}

// safely runs fn, converting a panic into the internal-error feedback.
func safely(kind models.ExerciseKind, fn func() models.FormFeedback) (fb models.FormFeedback, err error) {
	defer func() {
		if r := recover(); r != nil {
			fb = failed(MsgInternal)
			err = fmt.Errorf("%w: %s: %v", ErrAnalysis, kind, r)
		}
	}()
	return fn(), nil
}

func analyze(kind models.ExerciseKind, p pose.Pose, stage models.Stage, opts Options) models.FormFeedback {
	prof := exercise.Lookup(kind)
	if !prof.Supported {
		return failed(MsgUnsupported)
	}
	if _, ok := prof.Visible(p); !ok {
		return failed(MsgNotVisible)
	}

	s := newScorer()
	th := prof.Thresholds
	switch kind {
	case models.BicepCurl:
		curl(s, p, stage, th)
	case models.Squat:
		squat(s, p, stage, th, opts)
	case models.PushUp:
		pushUp(s, p, stage, th, opts)
	case models.Plank:
		plank(s, p, th)
	default:
		return failed(MsgUnsupported)
	}
	return s.result()
}

func failed(msg string) models.FormFeedback {
	return models.FormFeedback{Score: models.MinFormScore, Messages: []string{msg}}
}

// scorer accumulates deductions for one evaluation. The score never rises and
// is floored at zero.
type scorer struct {
	score    int
	messages []string
	deducted bool
}

func newScorer() *scorer {
	return &scorer{score: models.MaxFormScore}
}

func (s *scorer) deduct(points int, msg string) {
	s.deducted = true
	s.score -= points
	if s.score < models.MinFormScore {
		s.score = models.MinFormScore
	}
	s.messages = append(s.messages, msg)
}

// note records feedback without a deduction.
func (s *scorer) note(msg string) {
	s.messages = append(s.messages, msg)
}

func (s *scorer) result() models.FormFeedback {
	msgs := s.messages
	if !s.deducted {
		msgs = append(msgs, MsgGoodForm)
	}
	return models.FormFeedback{
		Score:      s.score,
		Messages:   msgs,
		IsGoodForm: !s.deducted,
	}
}

// hipDeviation returns how far the hips sit below (positive) or above
// (negative) the midpoint of shoulder and ankle height.
func hipDeviation(p pose.Pose) (float64, bool) {
	shoulderY, okS := p.AverageY(pose.LeftShoulder, pose.RightShoulder, pose.PresenceConfidence)
	hipY, okH := p.AverageY(pose.LeftHip, pose.RightHip, pose.PresenceConfidence)
	ankleY, okA := p.AverageY(pose.LeftAnkle, pose.RightAnkle, pose.PresenceConfidence)
	if !okS || !okH || !okA {
		return 0, false
	}
	return hipY - (shoulderY+ankleY)/2, true
}
