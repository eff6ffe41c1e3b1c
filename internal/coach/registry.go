package coach

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/posecoach/internal/models"
)

// ErrSessionNotFound is returned for unknown or already ended session ids.
var ErrSessionNotFound = errors.New("session not found")

// Registry tracks live sessions.
type Registry struct {
	engine *Engine
	log    *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	onChange func(active int)
}

// NewRegistry creates an empty registry whose sessions evaluate with engine.
func NewRegistry(engine *Engine, log *slog.Logger) *Registry {
	return &Registry{
		engine:   engine,
		log:      log,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// OnChange registers fn to be called with the live session count after each
// create, end or reap. It must be set before the registry is shared.
func (r *Registry) OnChange(fn func(active int)) {
	r.onChange = fn
}

// Engine returns the engine sessions evaluate with.
func (r *Registry) Engine() *Engine {
	return r.engine
}

// Create starts and registers a new session.
func (r *Registry) Create(userID int, kind models.ExerciseKind) *Session {
	s := NewSession(r.engine, userID, kind, r.now)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.log.Info("session started", "session", s.ID(), "user", userID, "exercise", kind)
	r.changed(n)
	return s
}

// Get returns a live session.
func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// End removes a session and returns its final summary.
func (r *Registry) End(id uuid.UUID) (Summary, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return Summary{}, ErrSessionNotFound
	}
	sum := s.end()
	r.log.Info("session ended", "session", id, "exercise", sum.Exercise, "reps", sum.Reps, "frames", sum.Frames)
	r.changed(n)
	return sum, nil
}

// Reap ends every session idle for longer than idle and returns their
// summaries.
func (r *Registry) Reap(idle time.Duration) []Summary {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if len(stale) == 0 {
		return nil
	}
	out := make([]Summary, 0, len(stale))
	for _, s := range stale {
		sum := s.end()
		r.log.Info("session reaped", "session", s.ID(), "idle_since", sum.LastSeen)
		out = append(out, sum)
	}
	r.changed(n)
	return out
}

// Drain ends every live session and returns their summaries.
func (r *Registry) Drain() []Summary {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	out := make([]Summary, 0, len(all))
	for _, s := range all {
		out = append(out, s.end())
	}
	r.changed(0)
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// RunReaper reaps idle sessions every interval until ctx is cancelled, passing
// each reaped summary to onReap.
func (r *Registry) RunReaper(ctx context.Context, interval, idle time.Duration, onReap func(Summary)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sum := range r.Reap(idle) {
				if onReap != nil {
					onReap(sum)
				}
			}
		}
	}
}

func (r *Registry) changed(n int) {
	if r.onChange != nil {
		r.onChange(n)
	}
}
