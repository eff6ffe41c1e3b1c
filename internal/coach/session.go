package coach

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/posecoach/internal/exercise"
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
)

// ErrSessionEnded is returned when a frame arrives for a session that has
// already been ended or reaped.
var ErrSessionEnded = errors.New("session ended")

// RepEvent records one completed repetition. FormScore judges the completing
// frame against the stage the rep reached.
type RepEvent struct {
	Number    int       `json:"number"`
	At        time.Time `json:"at"`
	FormScore int       `json:"form_score"`
}

// FrameResult is the outcome of one processed frame.
type FrameResult struct {
	Stage        models.Stage        `json:"stage"`
	RepCompleted bool                `json:"rep_completed"`
	Reps         int                 `json:"reps"`
	Feedback     models.FormFeedback `json:"feedback"`
}

// Summary is a snapshot of one exercise set. SetID identifies the set for
// storage; a session that switches exercise produces one summary per set.
type Summary struct {
	SetID          uuid.UUID            `json:"set_id"`
	SessionID      uuid.UUID            `json:"session_id"`
	UserID         int                  `json:"user_id"`
	Exercise       models.ExerciseKind  `json:"exercise"`
	Supported      bool                 `json:"supported"`
	Stage          models.Stage         `json:"stage"`
	Reps           int                  `json:"reps"`
	Frames         int                  `json:"frames"`
	GoodFormFrames int                  `json:"good_form_frames"`
	AvgFormScore   float64              `json:"avg_form_score"`
	LastFeedback   *models.FormFeedback `json:"last_feedback,omitempty"`
	RepEvents      []RepEvent           `json:"rep_events"`
	StartedAt      time.Time            `json:"started_at"`
	LastSeen       time.Time            `json:"last_seen"`
}

// Session is one user's live workout. Frames are serialized by the session
// mutex; distinct sessions run independently.
type Session struct {
	id     uuid.UUID
	userID int
	engine *Engine
	now    func() time.Time

	mu       sync.Mutex
	ended    bool
	lastSeen time.Time
	set      setState
}

type setState struct {
	id        uuid.UUID
	kind      models.ExerciseKind
	stage     models.Stage
	reps      int
	frames    int
	goodForm  int
	scoreSum  int
	last      *models.FormFeedback
	events    []RepEvent
	startedAt time.Time
}

// NewSession starts a session for userID on kind.
func NewSession(engine *Engine, userID int, kind models.ExerciseKind, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	t := now()
	return &Session{
		id:       uuid.New(),
		userID:   userID,
		engine:   engine,
		now:      now,
		lastSeen: t,
		set:      newSet(kind, t),
	}
}

func newSet(kind models.ExerciseKind, t time.Time) setState {
	return setState{
		id:        uuid.New(),
		kind:      kind,
		stage:     exercise.Lookup(kind).InitialStage(),
		startedAt: t,
		events:    []RepEvent{},
	}
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// UserID returns the owning user.
func (s *Session) UserID() int { return s.userID }

// Process evaluates one frame and folds the result into the session.
func (s *Session) Process(p pose.Pose) (FrameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return FrameResult{}, ErrSessionEnded
	}

	t := s.now()
	s.lastSeen = t
	set := &s.set

	rep, fb := s.engine.EvaluateFrame(set.kind, p, set.stage)
	set.stage = rep.Stage
	set.frames++
	set.scoreSum += fb.Score
	if fb.IsGoodForm {
		set.goodForm++
	}
	set.last = &fb
	if rep.RepCompleted {
		set.reps++
		score := s.engine.RepScore(set.kind, p, rep.Stage)
		set.events = append(set.events, RepEvent{Number: set.reps, At: t, FormScore: score})
	}

	return FrameResult{
		Stage:        rep.Stage,
		RepCompleted: rep.RepCompleted,
		Reps:         set.reps,
		Feedback:     fb,
	}, nil
}

// SwitchExercise closes the current set and starts a new one on kind at its
// initial stage. The closed set's summary is returned when it saw any frames.
func (s *Session) SwitchExercise(kind models.ExerciseKind) (closed *Summary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, ErrSessionEnded
	}

	t := s.now()
	if s.set.frames > 0 {
		sum := s.summaryLocked()
		closed = &sum
	}
	s.lastSeen = t
	s.set = newSet(kind, t)
	return closed, nil
}

// Summary returns a snapshot of the current set.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

// LastSeen returns the time of the last frame or exercise switch.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// end marks the session finished and returns the final snapshot.
func (s *Session) end() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	return s.summaryLocked()
}

func (s *Session) summaryLocked() Summary {
	set := s.set
	sum := Summary{
		SetID:          set.id,
		SessionID:      s.id,
		UserID:         s.userID,
		Exercise:       set.kind,
		Supported:      exercise.Lookup(set.kind).Supported,
		Stage:          set.stage,
		Reps:           set.reps,
		Frames:         set.frames,
		GoodFormFrames: set.goodForm,
		RepEvents:      append([]RepEvent(nil), set.events...),
		StartedAt:      set.startedAt,
		LastSeen:       s.lastSeen,
	}
	if sum.RepEvents == nil {
		sum.RepEvents = []RepEvent{}
	}
	if set.frames > 0 {
		sum.AvgFormScore = float64(set.scoreSum) / float64(set.frames)
	}
	if set.last != nil {
		fb := *set.last
		fb.Messages = append([]string(nil), fb.Messages...)
		sum.LastFeedback = &fb
	}
	return sum
}

// Rows converts the summary to storage rows. The set ends at its last frame.
func (s Summary) Rows(source string) (models.CoachSessionRow, []models.CoachRepRow) {
	row := models.CoachSessionRow{
		ID:             s.SetID,
		SessionID:      s.SessionID,
		UserID:         s.UserID,
		Exercise:       s.Exercise,
		StartedAt:      s.StartedAt,
		EndedAt:        s.LastSeen,
		Reps:           s.Reps,
		Frames:         s.Frames,
		GoodFormFrames: s.GoodFormFrames,
		AvgFormScore:   s.AvgFormScore,
		Source:         source,
	}
	reps := make([]models.CoachRepRow, 0, len(s.RepEvents))
	for _, e := range s.RepEvents {
		reps = append(reps, models.CoachRepRow{
			SessionID:   s.SetID,
			RepNumber:   e.Number,
			CompletedAt: e.At,
			FormScore:   e.FormScore,
		})
	}
	return row, reps
}
