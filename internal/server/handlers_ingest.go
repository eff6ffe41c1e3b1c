package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/claude/posecoach/internal/coach"
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/storage"
)

// IngestRequest carries finished sets recorded elsewhere, such as by the
// replay tool.
type IngestRequest struct {
	Source   string          `json:"source"`
	User     string          `json:"user,omitempty"`
	Sessions []coach.Summary `json:"sessions"`
}

// IngestResult reports what an ingest request stored.
type IngestResult struct {
	SessionsReceived int `json:"sessions_received"`
	SessionsInserted int `json:"sessions_inserted"`
	Duplicates       int `json:"duplicates"`
	RepsReceived     int `json:"reps_received"`
}

func (s *Server) handleIngestSessions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req IngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Source == "" {
		req.Source = models.SourceReplay
	}
	for i := range req.Sessions {
		if err := validateIngested(&req.Sessions[i]); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("session %d: %v", i, err)})
			return
		}
	}

	uid := 1
	if req.User != "" {
		var err error
		uid, err = s.db.GetOrCreateUser(r.Context(), req.User, "")
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}

	result := IngestResult{SessionsReceived: len(req.Sessions)}
	var ingestErr error
	for _, sum := range req.Sessions {
		sum.UserID = uid
		result.RepsReceived += len(sum.RepEvents)
		inserted, err := s.Persist(r.Context(), sum, req.Source)
		if err != nil {
			ingestErr = err
			break
		}
		if inserted {
			result.SessionsInserted++
		} else {
			result.Duplicates++
		}
	}

	s.logIngest(uid, req.Source, result, ingestErr, int(time.Since(start).Milliseconds()))

	if ingestErr != nil {
		s.log.Error("ingest failed", "source", req.Source, "error", ingestErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": ingestErr.Error()})
		return
	}
	s.log.Info("ingest complete", "source", req.Source, "received", result.SessionsReceived,
		"inserted", result.SessionsInserted, "duplicates", result.Duplicates)
	writeJSON(w, http.StatusOK, result)
}

// validateIngested normalizes the exercise name and rejects summaries that
// could not have come from a session.
func validateIngested(sum *coach.Summary) error {
	if sum.SetID == uuid.Nil {
		return fmt.Errorf("set_id is required")
	}
	if sum.SessionID == uuid.Nil {
		sum.SessionID = sum.SetID
	}
	if sum.Frames <= 0 {
		return fmt.Errorf("frames must be positive")
	}
	if sum.Reps < 0 || sum.GoodFormFrames < 0 || sum.GoodFormFrames > sum.Frames {
		return fmt.Errorf("inconsistent counters")
	}
	if sum.AvgFormScore < models.MinFormScore || sum.AvgFormScore > models.MaxFormScore {
		return fmt.Errorf("avg_form_score out of range")
	}
	if sum.StartedAt.IsZero() || sum.LastSeen.Before(sum.StartedAt) {
		return fmt.Errorf("invalid time range")
	}
	if len(sum.RepEvents) != sum.Reps {
		return fmt.Errorf("reps = %d but %d rep_events", sum.Reps, len(sum.RepEvents))
	}
	seen := make(map[int]bool, len(sum.RepEvents))
	for _, e := range sum.RepEvents {
		if e.Number < 1 || e.Number > sum.Reps || seen[e.Number] {
			return fmt.Errorf("rep_events: bad rep number %d", e.Number)
		}
		seen[e.Number] = true
		if e.FormScore < models.MinFormScore || e.FormScore > models.MaxFormScore {
			return fmt.Errorf("rep %d: form_score out of range", e.Number)
		}
	}
	sum.Exercise, _ = models.ParseExerciseKind(string(sum.Exercise))
	return nil
}

func (s *Server) handleIngestLogs(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.db.QueryIngestLogs(r.Context(), uid, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// logIngest records an ingest request's result to the ingest_logs table.
func (s *Server) logIngest(uid int, source string, result IngestResult, ingestErr error, durationMs int) {
	status := "success"
	var errMsg *string
	if ingestErr != nil {
		status = "error"
		msg := ingestErr.Error()
		errMsg = &msg
	}

	var meta *json.RawMessage
	if result.Duplicates > 0 {
		raw := json.RawMessage(fmt.Sprintf(`{"duplicates":%d}`, result.Duplicates))
		meta = &raw
	}

	log := storage.IngestLog{
		UserID:           uid,
		Source:           source,
		Status:           status,
		SessionsReceived: result.SessionsReceived,
		SessionsInserted: result.SessionsInserted,
		RepsReceived:     result.RepsReceived,
		DurationMs:       &durationMs,
		ErrorMessage:     errMsg,
		Metadata:         meta,
	}

	ctx, cancel := contextWithTimeout()
	defer cancel()

	if _, err := s.db.InsertIngestLog(ctx, log); err != nil {
		s.log.Error("failed to log ingest", "source", source, "error", err)
	}
}

// contextWithTimeout returns a background context with a 5-second timeout for async logging.
func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd
}
