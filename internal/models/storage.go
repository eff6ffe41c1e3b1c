package models

import (
	"time"

	"github.com/google/uuid"
)

// CoachSessionRow is a row of the coach_sessions table: one finished exercise
// set.
type CoachSessionRow struct {
	ID             uuid.UUID    `json:"id"`
	SessionID      uuid.UUID    `json:"session_id"`
	UserID         int          `json:"user_id"`
	Exercise       ExerciseKind `json:"exercise"`
	StartedAt      time.Time    `json:"started_at"`
	EndedAt        time.Time    `json:"ended_at"`
	Reps           int          `json:"reps"`
	Frames         int          `json:"frames"`
	GoodFormFrames int          `json:"good_form_frames"`
	AvgFormScore   float64      `json:"avg_form_score"`
	Source         string       `json:"source"`
}

// CoachRepRow is a row of the coach_reps table.
type CoachRepRow struct {
	SessionID   uuid.UUID `json:"session_id"`
	RepNumber   int       `json:"rep_number"`
	CompletedAt time.Time `json:"completed_at"`
	FormScore   int       `json:"form_score"`
}

// Session sources.
const (
	SourceLive   = "live"
	SourceReplay = "replay"
)
