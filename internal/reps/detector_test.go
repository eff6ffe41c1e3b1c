package reps

import (
	"errors"
	"testing"

	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
	"github.com/claude/posecoach/internal/pose/posetest"
)

type frame struct {
	pose      pose.Pose
	wantStage models.Stage
	wantRep   bool
}

func run(t *testing.T, kind models.ExerciseKind, start models.Stage, frames []frame) int {
	t.Helper()
	stage := start
	count := 0
	for i, f := range frames {
		res, err := Detect(kind, f.pose, stage)
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if res.Stage != f.wantStage {
			t.Errorf("frame %d: stage = %s, want %s", i, res.Stage, f.wantStage)
		}
		if res.RepCompleted != f.wantRep {
			t.Errorf("frame %d: repCompleted = %v, want %v", i, res.RepCompleted, f.wantRep)
		}
		if res.RepCompleted {
			count++
		}
		stage = res.Stage
	}
	return count
}

// TestCurlSequence feeds 170-160-60-50-170 from Up and expects exactly one rep,
// on the first frame under 65 degrees after the arm was extended.
func TestCurlSequence(t *testing.T) {
	frames := []frame{
		{posetest.Arms(170).Pose(), models.StageDown, false},
		{posetest.Arms(160).Pose(), models.StageDown, false},
		{posetest.Arms(60).Pose(), models.StageUp, true},
		{posetest.Arms(50).Pose(), models.StageUp, false},
		{posetest.Arms(170).Pose(), models.StageDown, false},
	}
	if n := run(t, models.BicepCurl, models.StageUp, frames); n != 1 {
		t.Errorf("reps = %d, want 1", n)
	}
}

// TestCurlHysteresis verifies angles between the two thresholds never toggle
// the stage, however often they repeat.
func TestCurlHysteresis(t *testing.T) {
	var frames []frame
	for _, a := range []float64{100, 140, 70, 149, 66, 120} {
		frames = append(frames, frame{posetest.Arms(a).Pose(), models.StageDown, false})
	}
	run(t, models.BicepCurl, models.StageDown, frames)
}

// TestSquatSequence reaches depth with the hip at knee level, then stands.
func TestSquatSequence(t *testing.T) {
	frames := []frame{
		{posetest.Standing().Pose(), models.StageUp, false},
		{posetest.Legs(100, 180).Pose(), models.StageDown, true},
		{posetest.Legs(95, 180).Pose(), models.StageDown, false},
		{posetest.Legs(170, -90).Pose(), models.StageUp, false},
	}
	if n := run(t, models.Squat, models.StageUp, frames); n != 1 {
		t.Errorf("reps = %d, want 1", n)
	}
}

// TestSquatNeedsHipDepth verifies a small knee angle with the hip still above
// the knee does not count.
func TestSquatNeedsHipDepth(t *testing.T) {
	// Knee at 100 degrees but hip pointing up-left, well above knee level.
	p := posetest.Legs(100, -130).Pose()
	res, err := Detect(models.Squat, p, models.StageUp)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stage != models.StageUp || res.RepCompleted {
		t.Errorf("result = %+v, want Up with no rep", res)
	}
}

// TestSquatDepthUnknown verifies a missing depth condition never guesses.
func TestSquatDepthUnknown(t *testing.T) {
	// Hips under both gates: neither the angle nor the depth check can run.
	p := posetest.Legs(100, 180).Score(0.05, pose.LeftHip, pose.RightHip).Pose()
	res, _ := Detect(models.Squat, p, models.StageUp)
	if res.Stage != models.StageUp || res.RepCompleted {
		t.Errorf("result = %+v, want Up with no rep", res)
	}
}

// TestPushUpSequence counts on the press back up.
func TestPushUpSequence(t *testing.T) {
	frames := []frame{
		{posetest.PushUp(170, 0).Pose(), models.StageUp, false},
		{posetest.PushUp(90, 0).Pose(), models.StageDown, false},
		{posetest.PushUp(120, 0).Pose(), models.StageDown, false},
		{posetest.PushUp(160, 0).Pose(), models.StageUp, true},
		{posetest.PushUp(170, 0).Pose(), models.StageUp, false},
	}
	if n := run(t, models.PushUp, models.StageUp, frames); n != 1 {
		t.Errorf("reps = %d, want 1", n)
	}
}

// TestPlankNeverCounts verifies the hold exercise leaves the stage alone.
func TestPlankNeverCounts(t *testing.T) {
	for _, stage := range []models.Stage{models.StageUp, models.StageDown} {
		res, err := Detect(models.Plank, posetest.Plank(0, 0).Pose(), stage)
		if err != nil {
			t.Fatal(err)
		}
		if res.Stage != stage || res.RepCompleted {
			t.Errorf("plank from %s = %+v", stage, res)
		}
	}
}

// TestMissingAngleHoldsStage verifies low-confidence limbs leave the stage
// unchanged for every countable exercise.
func TestMissingAngleHoldsStage(t *testing.T) {
	cases := []struct {
		kind models.ExerciseKind
		pose pose.Pose
	}{
		{models.BicepCurl, posetest.Arms(170).Score(0.2, pose.LeftElbow, pose.RightElbow).Pose()},
		{models.Squat, posetest.Legs(100, 180).Drop(pose.LeftKnee, pose.RightKnee).Pose()},
		{models.PushUp, posetest.PushUp(80, 0).Score(0.1, pose.LeftWrist, pose.RightWrist).Pose()},
	}
	for _, tc := range cases {
		for _, stage := range []models.Stage{models.StageUp, models.StageDown} {
			res, err := Detect(tc.kind, tc.pose, stage)
			if err != nil {
				t.Fatal(err)
			}
			if res.Stage != stage || res.RepCompleted {
				t.Errorf("%s from %s = %+v, want unchanged", tc.kind, stage, res)
			}
		}
	}
}

// TestUnknownKind verifies unsupported exercises pass the stage through.
func TestUnknownKind(t *testing.T) {
	res, err := Detect("deadlift", posetest.Arms(50).Pose(), models.StageDown)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stage != models.StageDown || res.RepCompleted {
		t.Errorf("result = %+v", res)
	}
}

// TestPanicRecovered verifies a faulting detector holds the stage and reports
// ErrDetection.
func TestPanicRecovered(t *testing.T) {
	res, err := safely(models.Squat, models.StageDown, func() models.RepResult {
		panic("boom")
	})
	if !errors.Is(err, ErrDetection) {
		t.Fatalf("err = %v, want ErrDetection", err)
	}
	if res.Stage != models.StageDown || res.RepCompleted {
		t.Errorf("result = %+v, want Down with no rep", res)
	}
}
