package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	QueryCoachSessions(ctx context.Context, start, end time.Time, userID int, exercise models.ExerciseKind) ([]models.CoachSessionRow, error)
	GetCoachSession(ctx context.Context, id uuid.UUID, userID int) (*storage.CoachSessionDetail, error)
	GetExerciseStats(ctx context.Context, userID int) (*storage.CoachStats, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
