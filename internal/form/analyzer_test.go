package form

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
	"github.com/claude/posecoach/internal/pose/posetest"
)

type analyzeCase struct {
	name      string
	kind      models.ExerciseKind
	pose      pose.Pose
	stage     models.Stage
	opts      Options
	wantScore int
	wantMsgs  []string
	wantGood  bool
}

func runCases(t *testing.T, cases []analyzeCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fb, err := Analyze(tc.kind, tc.pose, tc.stage, tc.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fb.Score != tc.wantScore {
				t.Errorf("score = %d, want %d (messages %q)", fb.Score, tc.wantScore, fb.Messages)
			}
			if !slices.Equal(fb.Messages, tc.wantMsgs) {
				t.Errorf("messages = %q, want %q", fb.Messages, tc.wantMsgs)
			}
			if fb.IsGoodForm != tc.wantGood {
				t.Errorf("isGoodForm = %v, want %v", fb.IsGoodForm, tc.wantGood)
			}
		})
	}
}

// TestCurlRules covers each curl deduction in isolation.
func TestCurlRules(t *testing.T) {
	runCases(t, []analyzeCase{
		{
			name: "extended at bottom", kind: models.BicepCurl,
			pose: posetest.Arms(170).Pose(), stage: models.StageDown,
			wantScore: 10, wantMsgs: []string{MsgGoodForm}, wantGood: true,
		},
		{
			name: "full curl at top", kind: models.BicepCurl,
			pose: posetest.Arms(50).Pose(), stage: models.StageUp,
			wantScore: 10, wantMsgs: []string{MsgGoodForm}, wantGood: true,
		},
		{
			name: "arm not extended", kind: models.BicepCurl,
			pose: posetest.Arms(120).Pose(), stage: models.StageDown,
			wantScore: 8, wantMsgs: []string{MsgExtendArms},
		},
		{
			name: "curl not high enough", kind: models.BicepCurl,
			pose: posetest.Arms(100).Pose(), stage: models.StageUp,
			wantScore: 8, wantMsgs: []string{MsgCurlHigher},
		},
		{
			// Elbow 40px out on a 200px shoulder span; the arm stays extended.
			name: "elbow drifting", kind: models.BicepCurl,
			pose:  posetest.Arms(170).Shift(40, 0, pose.LeftElbow, pose.LeftWrist).Pose(),
			stage: models.StageDown, wantScore: 7, wantMsgs: []string{MsgElbowsDrifting},
		},
		{
			name: "shoulders uneven", kind: models.BicepCurl,
			pose:  posetest.Arms(170).Shift(0, 30, pose.RightShoulder).Pose(),
			stage: models.StageDown, wantScore: 8, wantMsgs: []string{MsgShouldersUneven},
		},
		{
			name: "wrists too uncertain for the angle", kind: models.BicepCurl,
			pose:  posetest.Arms(170).Score(0.35, pose.LeftWrist, pose.RightWrist).Pose(),
			stage: models.StageDown, wantScore: 6, wantMsgs: []string{MsgCurlAngleUnknown},
		},
	})
}

// TestSquatRules covers the depth tiers and the standing check.
func TestSquatRules(t *testing.T) {
	runCases(t, []analyzeCase{
		{
			name: "below parallel", kind: models.Squat,
			pose: posetest.Legs(100, 180).Pose(), stage: models.StageDown,
			wantScore: 10, wantMsgs: []string{MsgGreatDepth, MsgGoodForm}, wantGood: true,
		},
		{
			name: "almost parallel", kind: models.Squat,
			pose: posetest.Legs(120, -120).Pose(), stage: models.StageDown,
			wantScore: 10, wantMsgs: []string{MsgAlmostParallel, MsgGoodForm}, wantGood: true,
		},
		{
			name: "too shallow", kind: models.Squat,
			pose: posetest.Legs(140, -120).Pose(), stage: models.StageDown,
			wantScore: 7, wantMsgs: []string{MsgSquatDeeper},
		},
		{
			name: "standing tall", kind: models.Squat,
			pose: posetest.Standing().Pose(), stage: models.StageUp,
			wantScore: 10, wantMsgs: []string{MsgGoodForm}, wantGood: true,
		},
		{
			name: "not fully up", kind: models.Squat,
			pose: posetest.Legs(150, -90).Pose(), stage: models.StageUp,
			wantScore: 8, wantMsgs: []string{MsgStandTall},
		},
		{
			name: "knees too uncertain for the angle", kind: models.Squat,
			pose:  posetest.Standing().Score(0.2, pose.LeftKnee, pose.RightKnee).Pose(),
			stage: models.StageUp, wantScore: 6, wantMsgs: []string{MsgKneeAngleUnknown},
		},
	})
}

// TestPushUpRules covers alignment, depth and lockout.
func TestPushUpRules(t *testing.T) {
	runCases(t, []analyzeCase{
		{
			name: "locked out", kind: models.PushUp,
			pose: posetest.PushUp(170, 0).Pose(), stage: models.StageUp,
			wantScore: 10, wantMsgs: []string{MsgGoodForm}, wantGood: true,
		},
		{
			name: "chest to floor", kind: models.PushUp,
			pose: posetest.PushUp(60, 0).Pose(), stage: models.StageDown,
			wantScore: 10, wantMsgs: []string{MsgChestToFloor, MsgGoodForm}, wantGood: true,
		},
		{
			name: "not low enough", kind: models.PushUp,
			pose: posetest.PushUp(120, 0).Pose(), stage: models.StageDown,
			wantScore: 8, wantMsgs: []string{MsgGoLower},
		},
		{
			name: "not locked out", kind: models.PushUp,
			pose: posetest.PushUp(140, 0).Pose(), stage: models.StageUp,
			wantScore: 8, wantMsgs: []string{MsgLockOut},
		},
		{
			name: "hips sagging", kind: models.PushUp,
			pose: posetest.PushUp(170, 50).Pose(), stage: models.StageUp,
			wantScore: 7, wantMsgs: []string{MsgHipsSagging},
		},
		{
			name: "hips piking", kind: models.PushUp,
			pose: posetest.PushUp(170, -50).Pose(), stage: models.StageUp,
			wantScore: 7, wantMsgs: []string{MsgHipsPiking},
		},
		{
			name: "sagging and shallow", kind: models.PushUp,
			pose: posetest.PushUp(120, 50).Pose(), stage: models.StageDown,
			wantScore: 5, wantMsgs: []string{MsgHipsSagging, MsgGoLower},
		},
	})
}

// TestPlankRules covers hip alignment and the neck check.
func TestPlankRules(t *testing.T) {
	runCases(t, []analyzeCase{
		{
			name: "straight line", kind: models.Plank,
			pose: posetest.Plank(0, 0).Pose(), stage: models.StageUp,
			wantScore: 10, wantMsgs: []string{MsgGoodForm}, wantGood: true,
		},
		{
			name: "hips sagging", kind: models.Plank,
			pose: posetest.Plank(40, 0).Pose(), stage: models.StageUp,
			wantScore: 6, wantMsgs: []string{MsgHipsSagging},
		},
		{
			name: "hips piking", kind: models.Plank,
			pose: posetest.Plank(-50, 0).Pose(), stage: models.StageUp,
			wantScore: 7, wantMsgs: []string{MsgHipsPiking},
		},
		{
			name: "head back", kind: models.Plank,
			pose: posetest.Plank(0, -20).Pose(), stage: models.StageUp,
			wantScore: 8, wantMsgs: []string{MsgHeadBack},
		},
		{
			name: "chin tucked", kind: models.Plank,
			pose: posetest.Plank(0, 40).Pose(), stage: models.StageUp,
			wantScore: 9, wantMsgs: []string{MsgChinTucked},
		},
		{
			name: "face too uncertain skips neck", kind: models.Plank,
			pose:  posetest.Plank(0, -20).Score(0.15, pose.Nose).Pose(),
			stage: models.StageUp, wantScore: 10, wantMsgs: []string{MsgGoodForm}, wantGood: true,
		},
		{
			name: "stage is ignored", kind: models.Plank,
			pose: posetest.Plank(40, 0).Pose(), stage: models.StageDown,
			wantScore: 6, wantMsgs: []string{MsgHipsSagging},
		},
	})
}

// TestVisibilityGate verifies a missing required part yields a zero score and
// no other feedback.
func TestVisibilityGate(t *testing.T) {
	runCases(t, []analyzeCase{
		{
			name: "curl without wrists", kind: models.BicepCurl,
			pose:  posetest.Arms(170).Drop(pose.LeftWrist, pose.RightWrist).Pose(),
			stage: models.StageDown, wantScore: 0, wantMsgs: []string{MsgNotVisible},
		},
		{
			name: "squat with faint ankles", kind: models.Squat,
			pose:  posetest.Standing().Score(0.05, pose.LeftAnkle, pose.RightAnkle).Pose(),
			stage: models.StageUp, wantScore: 0, wantMsgs: []string{MsgNotVisible},
		},
		{
			name: "plank without hips", kind: models.Plank,
			pose:  posetest.Plank(0, 0).Drop(pose.LeftHip, pose.RightHip).Pose(),
			stage: models.StageUp, wantScore: 0, wantMsgs: []string{MsgNotVisible},
		},
		{
			name: "empty pose", kind: models.PushUp,
			pose: pose.Pose{}, stage: models.StageUp,
			wantScore: 0, wantMsgs: []string{MsgNotVisible},
		},
	})
}

// TestUnsupportedKind verifies unknown exercises are reported, not guessed.
func TestUnsupportedKind(t *testing.T) {
	fb, err := Analyze(models.ExerciseKind("deadlift"), posetest.Standing().Pose(), models.StageUp, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.Score != 0 || fb.IsGoodForm || !slices.Equal(fb.Messages, []string{MsgUnsupported}) {
		t.Errorf("feedback = %+v, want zero score with %q", fb, MsgUnsupported)
	}
}

// TestSideViewChecksOffByDefault verifies view-dependent rules only run when
// enabled.
func TestSideViewChecksOffByDefault(t *testing.T) {
	// Deep squat with the torso pitched well forward of the hips.
	leaning := posetest.Legs(100, 180).
		Set(pose.LeftShoulder, 300, 150).
		Set(pose.RightShoulder, 300, 150).
		Pose()

	runCases(t, []analyzeCase{
		{
			name: "squat lean ignored", kind: models.Squat,
			pose: leaning, stage: models.StageDown,
			wantScore: 10, wantMsgs: []string{MsgGreatDepth, MsgGoodForm}, wantGood: true,
		},
		{
			name: "squat lean checked", kind: models.Squat,
			pose: leaning, stage: models.StageDown, opts: Options{SideViewChecks: true},
			wantScore: 8, wantMsgs: []string{MsgGreatDepth, MsgChestUp},
		},
		{
			// Upper arm perpendicular to the torso.
			name: "push-up flare checked", kind: models.PushUp,
			pose: posetest.PushUp(170, 0).Pose(), stage: models.StageUp, opts: Options{SideViewChecks: true},
			wantScore: 8, wantMsgs: []string{MsgElbowsFlared},
		},
	})
}

// TestKneeTravel verifies the side-view knee check compares knee and ankle X
// relative to shin length.
func TestKneeTravel(t *testing.T) {
	// Shin pitched 30 degrees off vertical: sin(30) = 0.5 > 0.35.
	b := posetest.Legs(100, 180)
	for _, side := range []struct {
		knee, ankle string
		kx          float64
	}{
		{pose.LeftKnee, pose.LeftAnkle, 100},
		{pose.RightKnee, pose.RightAnkle, 300},
	} {
		x, y := posetest.Polar(side.kx, 300, 120, 100)
		b.Set(side.ankle, x, y)
	}
	p := b.Pose()

	if got := kneeTravel(p); got < 0.49 || got > 0.51 {
		t.Errorf("kneeTravel = %.3f, want 0.5", got)
	}
	fb, err := Analyze(models.Squat, p, models.StageDown, Options{SideViewChecks: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Contains(fb.Messages, MsgKneesForward) {
		t.Errorf("messages = %q, want %q", fb.Messages, MsgKneesForward)
	}
}

// TestScorerFloorsAtZero verifies stacked deductions never go negative and the
// running score never rises.
func TestScorerFloorsAtZero(t *testing.T) {
	s := newScorer()
	prev := s.score
	for range 5 {
		s.deduct(unreadablePenalty, "x")
		if s.score > prev {
			t.Fatalf("score rose from %d to %d", prev, s.score)
		}
		prev = s.score
	}
	fb := s.result()
	if fb.Score != 0 {
		t.Errorf("score = %d, want 0", fb.Score)
	}
	if fb.IsGoodForm || slices.Contains(fb.Messages, MsgGoodForm) {
		t.Errorf("feedback = %+v, want no good-form marker", fb)
	}
}

// TestScoreBounds throws random poses at every exercise and checks the score
// range and the good-form marker invariant.
func TestScoreBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	kinds := append(slices.Clone(models.ExerciseKinds), "unknown")

	for i := 0; i < 500; i++ {
		kps := make([]pose.Keypoint, 0, len(pose.Names))
		for _, name := range pose.Names {
			if rng.Intn(8) == 0 {
				continue
			}
			kps = append(kps, pose.Keypoint{
				Name:  name,
				X:     rng.Float64() * 640,
				Y:     rng.Float64() * 480,
				Score: rng.Float64(),
			})
		}
		p := pose.MustNew(kps)
		for _, kind := range kinds {
			for _, stage := range []models.Stage{models.StageUp, models.StageDown} {
				fb, err := Analyze(kind, p, stage, Options{SideViewChecks: i%2 == 0})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if fb.Score < models.MinFormScore || fb.Score > models.MaxFormScore {
					t.Fatalf("%s: score %d out of range", kind, fb.Score)
				}
				if len(fb.Messages) == 0 {
					t.Fatalf("%s: no feedback", kind)
				}
				if fb.IsGoodForm {
					if fb.Score != models.MaxFormScore || fb.Messages[len(fb.Messages)-1] != MsgGoodForm {
						t.Fatalf("%s: good form with %+v", kind, fb)
					}
				}
			}
		}
	}
}

// TestPanicRecovered verifies a faulting rule set degrades to the internal
// error feedback.
func TestPanicRecovered(t *testing.T) {
	fb, err := safely(models.Squat, func() models.FormFeedback {
		panic("boom")
	})
	if !errors.Is(err, ErrAnalysis) {
		t.Fatalf("err = %v, want ErrAnalysis", err)
	}
	if fb.Score != 0 || !slices.Equal(fb.Messages, []string{MsgInternal}) {
		t.Errorf("feedback = %+v, want internal error", fb)
	}
}

// TestMessagesDistinct verifies no two feedback messages share text, so a
// client can tell the checks apart.
func TestMessagesDistinct(t *testing.T) {
	msgs := []string{
		MsgNotVisible, MsgUnsupported, MsgInternal, MsgGoodForm,
		MsgCurlAngleUnknown, MsgElbowsDrifting, MsgExtendArms, MsgCurlHigher, MsgShouldersUneven,
		MsgAlignmentUnknown, MsgHeadBack, MsgChinTucked,
		MsgElbowAngleUnknown, MsgHipsSagging, MsgHipsPiking, MsgGoLower, MsgChestToFloor, MsgLockOut, MsgElbowsFlared,
		MsgKneeAngleUnknown, MsgGreatDepth, MsgAlmostParallel, MsgSquatDeeper, MsgStandTall, MsgKneesForward, MsgChestUp,
	}
	seen := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		if seen[m] {
			t.Errorf("message %q is used by more than one check", m)
		}
		seen[m] = true
	}
}
