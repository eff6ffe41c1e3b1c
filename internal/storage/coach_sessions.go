package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/claude/posecoach/internal/models"
)

// InsertCoachSession stores a finished set and its reps in one transaction.
// Returns true if inserted, false if a set with the same ID already exists.
func (db *DB) InsertCoachSession(ctx context.Context, row models.CoachSessionRow, reps []models.CoachRepRow) (bool, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	tag, err := tx.Exec(ctx,
		`INSERT INTO coach_sessions (id, session_id, user_id, exercise, started_at, ended_at,
		 reps, frames, good_form_frames, avg_form_score, source)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 ON CONFLICT (id) DO NOTHING`,
		row.ID, row.SessionID, row.UserID, string(row.Exercise), row.StartedAt, row.EndedAt,
		row.Reps, row.Frames, row.GoodFormFrames, row.AvgFormScore, row.Source)
	if err != nil {
		return false, fmt.Errorf("inserting coach session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := insertCoachReps(ctx, tx, row.ID, reps); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing coach session: %w", err)
	}
	return true, nil
}

func insertCoachReps(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, reps []models.CoachRepRow) error {
	if len(reps) == 0 {
		return nil
	}

	query := `INSERT INTO coach_reps (session_id, rep_number, completed_at, form_score) VALUES `
	args := make([]any, 0, len(reps)*4)
	valueStrings := make([]string, 0, len(reps))

	for i, r := range reps {
		base := i * 4
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4,
		))
		args = append(args, sessionID, r.RepNumber, r.CompletedAt, r.FormScore)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING"

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting coach reps: %w", err)
	}
	return nil
}

// CoachSessionDetail is a stored set with its rep events.
type CoachSessionDetail struct {
	models.CoachSessionRow
	RepEvents []models.CoachRepRow `json:"rep_events"`
}

// QueryCoachSessions retrieves sets started in [start, end). An empty
// exercise matches every kind.
func (db *DB) QueryCoachSessions(ctx context.Context, start, end time.Time, userID int, exercise models.ExerciseKind) ([]models.CoachSessionRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, session_id, user_id, exercise, started_at, ended_at,
		 reps, frames, good_form_frames, avg_form_score, source
		 FROM coach_sessions
		 WHERE started_at >= $1 AND started_at < $2 AND user_id = $3
		   AND ($4 = '' OR exercise = $4)
		 ORDER BY started_at DESC`,
		start, end, userID, string(exercise))
	if err != nil {
		return nil, fmt.Errorf("querying coach sessions: %w", err)
	}
	defer rows.Close()

	return scanCoachSessionRows(rows)
}

// GetCoachSession retrieves a single set with its reps.
func (db *DB) GetCoachSession(ctx context.Context, id uuid.UUID, userID int) (*CoachSessionDetail, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, session_id, user_id, exercise, started_at, ended_at,
		 reps, frames, good_form_frames, avg_form_score, source
		 FROM coach_sessions
		 WHERE id = $1 AND user_id = $2`,
		id, userID)

	var s models.CoachSessionRow
	if err := scanCoachSession(row, &s); err != nil {
		return nil, notFound(err, "coach session")
	}

	detail := &CoachSessionDetail{CoachSessionRow: s, RepEvents: []models.CoachRepRow{}}

	repRows, err := db.Pool.Query(ctx,
		`SELECT session_id, rep_number, completed_at, form_score
		 FROM coach_reps
		 WHERE session_id = $1
		 ORDER BY rep_number ASC`,
		id)
	if err != nil {
		return nil, fmt.Errorf("querying coach reps: %w", err)
	}
	defer repRows.Close()

	for repRows.Next() {
		var r models.CoachRepRow
		if err := repRows.Scan(&r.SessionID, &r.RepNumber, &r.CompletedAt, &r.FormScore); err != nil {
			return nil, fmt.Errorf("scanning coach rep: %w", err)
		}
		detail.RepEvents = append(detail.RepEvents, r)
	}

	return detail, repRows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCoachSession(row scanner, s *models.CoachSessionRow) error {
	var exercise string
	if err := row.Scan(&s.ID, &s.SessionID, &s.UserID, &exercise, &s.StartedAt, &s.EndedAt,
		&s.Reps, &s.Frames, &s.GoodFormFrames, &s.AvgFormScore, &s.Source); err != nil {
		return err
	}
	s.Exercise = models.ExerciseKind(exercise)
	return nil
}

func scanCoachSessionRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]models.CoachSessionRow, error) {
	result := []models.CoachSessionRow{}
	for rows.Next() {
		var s models.CoachSessionRow
		if err := scanCoachSession(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning coach session: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
