package models

import "testing"

// TestParseExerciseKind_Canonical verifies canonical names pass through.
func TestParseExerciseKind_Canonical(t *testing.T) {
	for _, k := range ExerciseKinds {
		got, known := ParseExerciseKind(string(k))
		if !known {
			t.Errorf("ParseExerciseKind(%q): expected known=true", k)
		}
		if got != k {
			t.Errorf("ParseExerciseKind(%q) = %q", k, got)
		}
	}
}

// TestParseExerciseKind_Aliases verifies the spellings clients actually send
// (display names, hyphens, plurals) resolve to the right kind.
func TestParseExerciseKind_Aliases(t *testing.T) {
	cases := []struct {
		input string
		want  ExerciseKind
	}{
		{"Bicep Curl", BicepCurl},
		{"bicep-curls", BicepCurl},
		{"  SQUAT ", Squat},
		{"Squats", Squat},
		{"push-up", PushUp},
		{"Pushups", PushUp},
		{"Push Up", PushUp},
		{"Plank", Plank},
	}
	for _, tc := range cases {
		got, known := ParseExerciseKind(tc.input)
		if !known {
			t.Errorf("ParseExerciseKind(%q): expected known=true", tc.input)
		}
		if got != tc.want {
			t.Errorf("ParseExerciseKind(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

// TestParseExerciseKind_Unknown verifies unknown names come back unchanged
// with known=false, and are reported unsupported.
func TestParseExerciseKind_Unknown(t *testing.T) {
	got, known := ParseExerciseKind("Deadlift")
	if known {
		t.Error("expected known=false for deadlift")
	}
	if got != "Deadlift" {
		t.Errorf("expected original string returned, got %q", got)
	}
	if got.Supported() {
		t.Error("deadlift should not be supported")
	}
}

// TestParseStage verifies stage parsing and the Up default.
func TestParseStage(t *testing.T) {
	cases := []struct {
		input   string
		want    Stage
		wantErr bool
	}{
		{"", StageUp, false},
		{"Up", StageUp, false},
		{"DOWN", StageDown, false},
		{" down ", StageDown, false},
		{"sideways", "", true},
	}
	for _, tc := range cases {
		got, err := ParseStage(tc.input)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseStage(%q) err = %v, wantErr %v", tc.input, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseStage(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
