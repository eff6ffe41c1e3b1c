package models

import (
	"fmt"
	"strings"
)

// ExerciseKind identifies an exercise the coach knows how to follow.
type ExerciseKind string

// Supported exercise kinds.
const (
	BicepCurl ExerciseKind = "bicep_curl"
	Squat     ExerciseKind = "squat"
	PushUp    ExerciseKind = "push_up"
	Plank     ExerciseKind = "plank"
)

// ExerciseKinds lists the supported kinds in catalog order.
var ExerciseKinds = []ExerciseKind{BicepCurl, Squat, PushUp, Plank}

// exerciseKindMap maps normalized spellings (lowercase, underscores) to the
// canonical kind. Covers the names used by the web client and common aliases.
var exerciseKindMap = map[string]ExerciseKind{
	"bicep_curl":   BicepCurl,
	"bicep_curls":  BicepCurl,
	"biceps_curl":  BicepCurl,
	"biceps_curls": BicepCurl,
	"curl":         BicepCurl,
	"curls":        BicepCurl,
	"squat":        Squat,
	"squats":       Squat,
	"push_up":      PushUp,
	"push_ups":     PushUp,
	"pushup":       PushUp,
	"pushups":      PushUp,
	"press_up":     PushUp,
	"plank":        Plank,
	"planks":       Plank,
	"plank_hold":   Plank,
}

// ParseExerciseKind maps a possibly free-form exercise name to its canonical
// kind. Returns the canonical kind and true if recognized, or the raw string
// as an ExerciseKind and false otherwise. Unknown kinds are still valid input:
// the coach answers them with a degraded response.
func ParseExerciseKind(raw string) (ExerciseKind, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if kind, ok := exerciseKindMap[key]; ok {
		return kind, true
	}
	return ExerciseKind(raw), false
}

// Supported reports whether k is one of the known kinds.
func (k ExerciseKind) Supported() bool {
	switch k {
	case BicepCurl, Squat, PushUp, Plank:
		return true
	default:
		return false
	}
}

// Stage is the phase of a repetition cycle. Its meaning is exercise-specific:
// for curls Down is the extended rest position, for squats and push-ups Up is
// the standing/extended position and Down the bottom.
type Stage string

const (
	StageUp   Stage = "Up"
	StageDown Stage = "Down"
)

// ParseStage parses "up"/"down" in any case. An empty string yields StageUp,
// the initial stage of every rep-countable exercise.
func ParseStage(raw string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "up":
		return StageUp, nil
	case "down":
		return StageDown, nil
	default:
		return "", fmt.Errorf("unknown stage %q", raw)
	}
}

// Valid reports whether s is Up or Down.
func (s Stage) Valid() bool {
	return s == StageUp || s == StageDown
}
