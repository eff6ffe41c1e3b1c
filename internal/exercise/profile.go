// Package exercise holds the per-exercise configuration shared by the rep
// counter and the form analyzer: which body parts must be visible and the
// numeric thresholds each rule uses.
package exercise

import (
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
)

// Requirement is a body part that must be visible before form analysis runs.
// It is satisfied when any of Names is present with a score above the presence
// gate, so a subject seen from one side still qualifies.
type Requirement struct {
	Part  string   `json:"part"`
	Names []string `json:"names"`
}

// Satisfied reports whether p shows the part.
func (r Requirement) Satisfied(p pose.Pose) bool {
	for _, n := range r.Names {
		if p.Visible(n, pose.PresenceConfidence) {
			return true
		}
	}
	return false
}

// Thresholds are the angle (degrees), pixel and ratio limits for one exercise.
// Fields that do not apply to an exercise are zero.
type Thresholds struct {
	// Rep state machine. DownAngle is the boundary for entering Down, UpAngle
	// for entering Up. Curls enter Down above DownAngle; squats and push-ups
	// enter Down below it.
	DownAngle float64 `json:"down_angle,omitempty"`
	UpAngle   float64 `json:"up_angle,omitempty"`

	// Form: stage targets.
	FormDownAngle  float64 `json:"form_down_angle,omitempty"`
	FormUpAngle    float64 `json:"form_up_angle,omitempty"`
	ParallelAngle  float64 `json:"parallel_angle,omitempty"`
	DeepBonusAngle float64 `json:"deep_bonus_angle,omitempty"`

	// Form: alignment.
	ElbowDriftRatio    float64 `json:"elbow_drift_ratio,omitempty"`
	ShoulderLevelRatio float64 `json:"shoulder_level_ratio,omitempty"`
	HipSagPx           float64 `json:"hip_sag_px,omitempty"`
	HipPikePx          float64 `json:"hip_pike_px,omitempty"`
	HeadBackPx         float64 `json:"head_back_px,omitempty"`
	ChinTuckPx         float64 `json:"chin_tuck_px,omitempty"`

	// Form: checks that need a side-on camera and are off by default.
	KneeTravelRatio float64 `json:"knee_travel_ratio,omitempty"`
	TrunkLeanAngle  float64 `json:"trunk_lean_angle,omitempty"`
	ElbowFlareAngle float64 `json:"elbow_flare_angle,omitempty"`
}

// Profile is the static configuration for one exercise kind.
type Profile struct {
	Kind        models.ExerciseKind `json:"kind"`
	DisplayName string              `json:"display_name"`
	Supported   bool                `json:"supported"`
	Countable   bool                `json:"countable"`
	Required    []Requirement       `json:"required"`
	Thresholds  Thresholds          `json:"thresholds"`
}

// InitialStage is the stage a fresh set starts in.
func (p Profile) InitialStage() models.Stage {
	return models.StageUp
}

// Visible reports whether ps shows every required part. When it does not,
// missing names the first absent part.
func (p Profile) Visible(ps pose.Pose) (missing string, ok bool) {
	for _, r := range p.Required {
		if !r.Satisfied(ps) {
			return r.Part, false
		}
	}
	return "", true
}

var (
	shoulders = Requirement{Part: "shoulders", Names: []string{pose.LeftShoulder, pose.RightShoulder}}
	elbows    = Requirement{Part: "elbows", Names: []string{pose.LeftElbow, pose.RightElbow}}
	wrists    = Requirement{Part: "wrists", Names: []string{pose.LeftWrist, pose.RightWrist}}
	hips      = Requirement{Part: "hips", Names: []string{pose.LeftHip, pose.RightHip}}
	knees     = Requirement{Part: "knees", Names: []string{pose.LeftKnee, pose.RightKnee}}
	ankles    = Requirement{Part: "ankles", Names: []string{pose.LeftAnkle, pose.RightAnkle}}
)

var profiles = map[models.ExerciseKind]Profile{
	models.BicepCurl: {
		Kind:        models.BicepCurl,
		DisplayName: "Bicep Curl",
		Supported:   true,
		Countable:   true,
		Required:    []Requirement{shoulders, elbows, wrists},
		Thresholds: Thresholds{
			DownAngle:          150,
			UpAngle:            65,
			FormDownAngle:      150,
			FormUpAngle:        70,
			ElbowDriftRatio:    0.15,
			ShoulderLevelRatio: 0.10,
		},
	},
	models.Squat: {
		Kind:        models.Squat,
		DisplayName: "Squat",
		Supported:   true,
		Countable:   true,
		Required:    []Requirement{hips, knees, ankles},
		Thresholds: Thresholds{
			DownAngle:       110,
			UpAngle:         165,
			FormDownAngle:   110,
			FormUpAngle:     165,
			ParallelAngle:   125,
			KneeTravelRatio: 0.35,
			TrunkLeanAngle:  45,
		},
	},
	models.PushUp: {
		Kind:        models.PushUp,
		DisplayName: "Push-Up",
		Supported:   true,
		Countable:   true,
		Required:    []Requirement{shoulders, elbows, wrists, hips, ankles},
		Thresholds: Thresholds{
			DownAngle:       95,
			UpAngle:         155,
			FormDownAngle:   100,
			FormUpAngle:     160,
			DeepBonusAngle:  70,
			HipSagPx:        30,
			HipPikePx:       30,
			ElbowFlareAngle: 75,
		},
	},
	models.Plank: {
		Kind:        models.Plank,
		DisplayName: "Plank",
		Supported:   true,
		Countable:   false,
		Required:    []Requirement{shoulders, hips, ankles},
		Thresholds: Thresholds{
			HipSagPx:   25,
			HipPikePx:  40,
			HeadBackPx: 15,
			ChinTuckPx: 35,
		},
	},
}

// Lookup returns the profile for kind. Unknown kinds get a profile with
// Supported and Countable false rather than an error.
func Lookup(kind models.ExerciseKind) Profile {
	if p, ok := profiles[kind]; ok {
		return p
	}
	return Profile{Kind: kind, DisplayName: string(kind)}
}

// Catalog returns the supported profiles in catalog order.
func Catalog() []Profile {
	out := make([]Profile, 0, len(models.ExerciseKinds))
	for _, k := range models.ExerciseKinds {
		out = append(out, profiles[k])
	}
	return out
}
