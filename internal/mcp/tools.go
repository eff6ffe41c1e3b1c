package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/posecoach/internal/exercise"
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
	"github.com/claude/posecoach/internal/storage"
)

// defaultTimeRange returns start/end defaulting to the last 7 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -7)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List supported exercises with their rep-counting and form thresholds (joint angles in degrees, pixel bands)."),
)

var toolEvaluatePose = mcp.NewTool("evaluate_pose",
	mcp.WithDescription("Evaluate one frame of pose keypoints for an exercise. Returns the next rep stage, whether a rep was completed, and a 0-10 form score with feedback messages. Image Y grows downward."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise name (e.g. 'bicep curl', 'squat', 'push-up', 'plank'). Unknown names get a degraded answer.")),
	mcp.WithString("keypoints", mcp.Required(), mcp.Description(`JSON array of keypoints: [{"name":"left_elbow","x":120,"y":240,"score":0.9}, ...]. Names are unique.`)),
	mcp.WithString("stage", mcp.Description("Current rep stage before this frame. Defaults to 'up'."), mcp.Enum("up", "down")),
)

var toolGetCoachSessions = mcp.NewTool("get_coach_sessions",
	mcp.WithDescription("Query stored coaching sets with optional exercise filter. Returns reps, frame counts, good-form frames and average form score per set."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise (e.g. 'squat')")),
)

var toolGetCoachSession = mcp.NewTool("get_coach_session",
	mcp.WithDescription("Get one stored coaching set with its per-rep events and form scores."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Set ID (UUID) as returned by get_coach_sessions")),
)

var toolGetExerciseStats = mcp.NewTool("get_exercise_stats",
	mcp.WithDescription("Aggregate totals per exercise: sets, reps, frames, good-form percentage and frame-weighted average form score."),
)

// EvaluateResult is the evaluate_pose payload.
type EvaluateResult struct {
	Exercise  models.ExerciseKind `json:"exercise"`
	Supported bool                `json:"supported"`
	Rep       models.RepResult    `json:"rep"`
	Feedback  models.FormFeedback `json:"feedback"`
}

// --- Tool handlers ---

func (h *handlers) listExercises(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(exercise.Catalog())
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) evaluatePose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	raw, err := req.RequireString("keypoints")
	if err != nil {
		return mcp.NewToolResultError("keypoints parameter is required"), nil
	}

	var p pose.Pose
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return mcp.NewToolResultError("invalid keypoints: " + err.Error()), nil
	}
	stage, err := models.ParseStage(req.GetString("stage", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	kind, supported := models.ParseExerciseKind(name)
	rep, fb := h.engine.EvaluateFrame(kind, p, stage)

	result, err := mcp.NewToolResultJSON(EvaluateResult{
		Exercise:  kind,
		Supported: supported,
		Rep:       rep,
		Feedback:  fb,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getCoachSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	var filter models.ExerciseKind
	if raw := req.GetString("exercise", ""); raw != "" {
		filter, _ = models.ParseExerciseKind(raw)
	}
	uid := UserIDFromContext(ctx)

	sessions, err := h.ds.QueryCoachSessions(ctx, start, end, uid, filter)
	if err != nil {
		h.log.Error("mcp get_coach_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getCoachSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError("invalid id: " + err.Error()), nil
	}

	detail, err := h.ds.GetCoachSession(ctx, id, UserIDFromContext(ctx))
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError("session not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_coach_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(detail)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getExerciseStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.ds.GetExerciseStats(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_exercise_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
