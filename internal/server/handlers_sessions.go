package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/posecoach/internal/coach"
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
)

type exerciseRequest struct {
	Exercise string `json:"exercise"`
}

type frameRequest struct {
	Keypoints pose.Pose `json:"keypoints"`
}

// EndResponse is returned when a live session ends.
type EndResponse struct {
	Summary coach.Summary `json:"summary"`
	Stored  bool          `json:"stored"`
}

// SwitchResponse is returned when a live session changes exercise.
type SwitchResponse struct {
	Closed  *coach.Summary `json:"closed,omitempty"`
	Stored  bool           `json:"stored"`
	Current coach.Summary  `json:"current"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var req exerciseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Exercise == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise is required"})
		return
	}

	kind, _ := models.ParseExerciseKind(req.Exercise)
	sess := s.coach.Create(uid, kind)
	writeJSON(w, http.StatusCreated, sess.Summary())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req frameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	res, err := sess.Process(req.Keypoints)
	if errors.Is(err, coach.ErrSessionEnded) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSwitchExercise(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req exerciseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Exercise == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise is required"})
		return
	}

	kind, _ := models.ParseExerciseKind(req.Exercise)
	closed, err := sess.SwitchExercise(kind)
	if errors.Is(err, coach.ErrSessionEnded) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := SwitchResponse{Closed: closed, Current: sess.Summary()}
	if closed != nil {
		stored, err := s.Persist(r.Context(), *closed, models.SourceLive)
		if err != nil {
			s.log.Error("storing closed set", "session", sess.ID(), "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storing closed set"})
			return
		}
		resp.Stored = stored
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	sum, err := s.coach.End(sess.ID())
	if errors.Is(err, coach.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	stored, err := s.Persist(r.Context(), sum, models.SourceLive)
	if err != nil {
		s.log.Error("storing session", "session", sess.ID(), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storing session"})
		return
	}
	writeJSON(w, http.StatusOK, EndResponse{Summary: sum, Stored: stored})
}

// sessionFromRequest resolves {id} to a live session owned by the caller.
// Sessions of other users are reported as missing.
func (s *Server) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*coach.Session, bool) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return nil, false
	}
	sess, err := s.coach.Get(id)
	if err != nil || sess.UserID() != uid {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return nil, false
	}
	return sess, true
}
