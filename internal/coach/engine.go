// Package coach combines rep counting and form analysis into the per-frame
// engine, and layers live workout sessions on top of it.
package coach

import (
	"log/slog"

	"github.com/claude/posecoach/internal/form"
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
	"github.com/claude/posecoach/internal/reps"
)

// Observer receives per-frame outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveFrame(kind models.ExerciseKind, rep models.RepResult, fb models.FormFeedback)
	ObserveFailure(kind models.ExerciseKind)
}

// Engine evaluates single frames. It holds no per-workout state and is safe
// for concurrent use; the caller owns the stage.
type Engine struct {
	log       *slog.Logger
	opts      form.Options
	observers []Observer
}

// NewEngine creates an Engine.
func NewEngine(log *slog.Logger, opts form.Options, observers ...Observer) *Engine {
	return &Engine{log: log, opts: opts, observers: observers}
}

// Options returns the form options the engine was built with.
func (e *Engine) Options() form.Options {
	return e.opts
}

// EvaluateFrame runs the rep state machine and the form analyzer on one pose.
// Both see the caller's current stage, so on a transition frame the form
// rules judge the stage being left. Internal faults are logged and come back
// as the degraded result; no error is returned.
func (e *Engine) EvaluateFrame(kind models.ExerciseKind, p pose.Pose, stage models.Stage) (models.RepResult, models.FormFeedback) {
	rep, err := reps.Detect(kind, p, stage)
	if err != nil {
		e.log.Error("rep detection failed", "exercise", kind, "stage", stage, "error", err)
		e.failure(kind)
	}

	fb, err := form.Analyze(kind, p, stage, e.opts)
	if err != nil {
		e.log.Error("form analysis failed", "exercise", kind, "stage", stage, "error", err)
		e.failure(kind)
	}

	for _, o := range e.observers {
		o.ObserveFrame(kind, rep, fb)
	}
	return rep, fb
}

// RepScore scores the frame that completed a rep against the stage the rep
// lands in, so a clean rep is not marked down for the stage it left.
// Observers are not notified.
func (e *Engine) RepScore(kind models.ExerciseKind, p pose.Pose, landed models.Stage) int {
	fb, err := form.Analyze(kind, p, landed, e.opts)
	if err != nil {
		e.log.Error("rep scoring failed", "exercise", kind, "stage", landed, "error", err)
	}
	return fb.Score
}

func (e *Engine) failure(kind models.ExerciseKind) {
	for _, o := range e.observers {
		o.ObserveFailure(kind)
	}
}
