// Package reps counts repetitions with a two-state hysteresis machine per
// exercise. Each detector is a pure function of (pose, current stage); the
// caller owns the stage and feeds the returned one back on the next frame.
package reps

import (
	"errors"
	"fmt"

	"github.com/claude/posecoach/internal/exercise"
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
)

// ErrDetection wraps a fault recovered while running a detector.
var ErrDetection = errors.New("rep detection failed")

// Detect advances the rep state machine for kind by one frame.
// When the tracked angle cannot be measured the stage is returned unchanged
// and no rep is counted. A fault inside a detector is recovered: the result
// is the unchanged stage and err wraps ErrDetection.
func Detect(kind models.ExerciseKind, p pose.Pose, stage models.Stage) (models.RepResult, error) {
	return safely(kind, stage, func() models.RepResult {
		return detect(kind, p, stage)
	})
}

// safely runs fn, converting a panic into an unchanged-stage result.
func safely(kind models.ExerciseKind, stage models.Stage, fn func() models.RepResult) (res models.RepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = hold(stage)
			err = fmt.Errorf("%w: %s: %v", ErrDetection, kind, r)
		}
	}()
	return fn(), nil
}

func detect(kind models.ExerciseKind, p pose.Pose, stage models.Stage) models.RepResult {
	th := exercise.Lookup(kind).Thresholds
	switch kind {
	case models.BicepCurl:
		return curl(p, stage, th)
	case models.Squat:
		return squat(p, stage, th)
	case models.PushUp:
		return pushUp(p, stage, th)
	case models.Plank:
		return hold(stage)
	default:
		return hold(stage)
	}
}

func hold(stage models.Stage) models.RepResult {
	return models.RepResult{Stage: stage}
}

// curl: Down is the extended arm. Up->Down once the elbow opens past
// DownAngle; Down->Up, the counted curl, once it closes under UpAngle.
func curl(p pose.Pose, stage models.Stage, th exercise.Thresholds) models.RepResult {
	angle, ok := p.BilateralAngle(pose.LeftElbowAngle, pose.RightElbowAngle, pose.DefaultConfidence)
	if !ok {
		return hold(stage)
	}
	switch {
	case stage == models.StageUp && angle > th.DownAngle:
		return models.RepResult{Stage: models.StageDown}
	case stage == models.StageDown && angle < th.UpAngle:
		return models.RepResult{Stage: models.StageUp, RepCompleted: true}
	}
	return hold(stage)
}

// squat: a rep counts on reaching depth, which needs both the knee angle and
// the hip at or below knee level (raw pixel Y, larger is lower).
func squat(p pose.Pose, stage models.Stage, th exercise.Thresholds) models.RepResult {
	angle, ok := p.BilateralAngle(pose.LeftKneeAngle, pose.RightKneeAngle, pose.DefaultConfidence)
	if !ok {
		return hold(stage)
	}
	switch stage {
	case models.StageUp:
		if angle < th.DownAngle && hipAtKnee(p) {
			return models.RepResult{Stage: models.StageDown, RepCompleted: true}
		}
	case models.StageDown:
		if angle > th.UpAngle {
			return models.RepResult{Stage: models.StageUp}
		}
	}
	return hold(stage)
}

func hipAtKnee(p pose.Pose) bool {
	hipY, okHip := p.AverageY(pose.LeftHip, pose.RightHip, pose.PresenceConfidence)
	kneeY, okKnee := p.AverageY(pose.LeftKnee, pose.RightKnee, pose.PresenceConfidence)
	return okHip && okKnee && hipY >= kneeY
}

// pushUp: a rep counts on the press back up.
func pushUp(p pose.Pose, stage models.Stage, th exercise.Thresholds) models.RepResult {
	angle, ok := p.BilateralAngle(pose.LeftElbowAngle, pose.RightElbowAngle, pose.DefaultConfidence)
	if !ok {
		return hold(stage)
	}
	switch {
	case stage == models.StageUp && angle < th.DownAngle:
		return models.RepResult{Stage: models.StageDown}
	case stage == models.StageDown && angle > th.UpAngle:
		return models.RepResult{Stage: models.StageUp, RepCompleted: true}
	}
	return hold(stage)
}
