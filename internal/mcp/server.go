package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/posecoach/internal/coach"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered.
// Stored history comes from ds; pose evaluation runs on engine in-process.
func New(ds DataSource, engine *coach.Engine, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("PoseCoach", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("PoseCoach exercise form server. Evaluate pose keypoints for bicep curls, squats, push-ups and planks, and query stored coaching sessions. All stored data is scoped to the authenticated user."),
	)

	h := &handlers{ds: ds, engine: engine, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolEvaluatePose, Handler: h.evaluatePose},
		server.ServerTool{Tool: toolGetCoachSessions, Handler: h.getCoachSessions},
		server.ServerTool{Tool: toolGetCoachSession, Handler: h.getCoachSession},
		server.ServerTool{Tool: toolGetExerciseStats, Handler: h.getExerciseStats},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resExerciseCatalog, Handler: h.exerciseCatalog},
		server.ServerResource{Resource: resRecentSessions, Handler: h.recentSessions},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds     DataSource
	engine *coach.Engine
	log    *slog.Logger
}

// --- Resource definitions ---

var resExerciseCatalog = mcp.NewResource(
	"posecoach://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("Supported exercises with their joint-angle thresholds and tracked keypoints"),
	mcp.WithMIMEType("application/json"),
)

var resRecentSessions = mcp.NewResource(
	"posecoach://recent_sessions",
	"Recent Sessions",
	mcp.WithResourceDescription("Coaching sets stored in the last 14 days"),
	mcp.WithMIMEType("application/json"),
)
