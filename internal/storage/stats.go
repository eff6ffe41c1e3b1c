package storage

import (
	"context"
	"fmt"
	"time"
)

// CoachStats holds aggregate statistics about a user's stored sets.
type CoachStats struct {
	TotalSessions int64          `json:"total_sessions"`
	TotalReps     int64          `json:"total_reps"`
	TotalFrames   int64          `json:"total_frames"`
	EarliestData  *time.Time     `json:"earliest_data"`
	LatestData    *time.Time     `json:"latest_data"`
	ByExercise    []ExerciseStat `json:"by_exercise"`
}

// ExerciseStat holds summary stats for a single exercise kind.
type ExerciseStat struct {
	Exercise     string     `json:"exercise"`
	Sessions     int64      `json:"sessions"`
	Reps         int64      `json:"reps"`
	Frames       int64      `json:"frames"`
	GoodFormPct  float64    `json:"good_form_pct"`
	AvgFormScore *float64   `json:"avg_form_score"`
	LastSession  *time.Time `json:"last_session"`
}

// GetExerciseStats returns aggregate statistics for a user's stored sets.
// The average form score is weighted by frame count.
func (db *DB) GetExerciseStats(ctx context.Context, userID int) (*CoachStats, error) {
	stats := &CoachStats{ByExercise: []ExerciseStat{}}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(reps), 0), COALESCE(SUM(frames), 0),
		 MIN(started_at), MAX(started_at)
		 FROM coach_sessions WHERE user_id = $1`, userID,
	).Scan(&stats.TotalSessions, &stats.TotalReps, &stats.TotalFrames, &stats.EarliestData, &stats.LatestData)
	if err != nil {
		return nil, fmt.Errorf("counting coach sessions: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT exercise, COUNT(*), COALESCE(SUM(reps), 0), COALESCE(SUM(frames), 0),
		 COALESCE(SUM(good_form_frames), 0),
		 SUM(avg_form_score * frames) / NULLIF(SUM(frames), 0),
		 MAX(started_at)
		 FROM coach_sessions
		 WHERE user_id = $1
		 GROUP BY exercise
		 ORDER BY COUNT(*) DESC, exercise`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying stats by exercise: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s ExerciseStat
		var goodForm int64
		if err := rows.Scan(&s.Exercise, &s.Sessions, &s.Reps, &s.Frames, &goodForm,
			&s.AvgFormScore, &s.LastSession); err != nil {
			return nil, fmt.Errorf("scanning exercise stat: %w", err)
		}
		s.GoodFormPct = goodFormPct(goodForm, s.Frames)
		stats.ByExercise = append(stats.ByExercise, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

func goodFormPct(good, frames int64) float64 {
	if frames == 0 {
		return 0
	}
	return float64(good) / float64(frames) * 100
}
