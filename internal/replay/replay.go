// Package replay runs recorded pose sessions through the coach offline and
// uploads the resulting sets to a PoseCoach server.
//
// A recording is a JSON Lines file. The first line is a header naming the
// exercise and the wall-clock start; every following line is one frame with
// its offset from the start. A frame line may carry "exercise" instead of
// keypoints to switch exercise mid-recording, which closes the current set.
//
//	{"exercise": "squat", "started_at": "2026-02-01T08:00:00Z"}
//	{"t_ms": 0, "keypoints": [{"name": "left_hip", "x": 210, "y": 300, "score": 0.9}, ...]}
//	{"t_ms": 33, "keypoints": [...]}
//	{"t_ms": 60000, "exercise": "plank"}
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claude/posecoach/internal/coach"
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
)

// Ext is the file extension of recordings.
const Ext = ".jsonl"

// maxLineBytes bounds a single recording line.
const maxLineBytes = 1 << 20

// Header is the first line of a recording.
type Header struct {
	Exercise  string    `json:"exercise"`
	StartedAt time.Time `json:"started_at"`
}

// Frame is one recorded line after the header.
type Frame struct {
	TMs       int64     `json:"t_ms"`
	Exercise  string    `json:"exercise,omitempty"`
	Keypoints pose.Pose `json:"keypoints"`
}

// Stats tracks replay progress.
type Stats struct {
	FilesTotal    int
	FilesReplayed int
	FilesSkipped  int
	FilesErrored  int

	Sets   int
	Frames int
	Reps   int

	SetsInserted int
	Duplicates   int
}

// namespace seeds deterministic set IDs so re-uploading the same recording
// is recognized by the server as a duplicate.
var namespace = uuid.MustParse("6f1c1c52-8d3e-4d0b-9a53-2f0f5a6a4c11")

// Replay reads one recording and returns the summary of every set that saw
// at least one frame, in order. key seeds the set IDs; recordings with the
// same key produce the same IDs.
func Replay(engine *coach.Engine, r io.Reader, key string) ([]coach.Summary, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		return nil, errors.New("empty recording")
	}
	var hdr Header
	if err := json.Unmarshal(sc.Bytes(), &hdr); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if hdr.Exercise == "" {
		return nil, errors.New("header: exercise is required")
	}
	if hdr.StartedAt.IsZero() {
		return nil, errors.New("header: started_at is required")
	}

	now := hdr.StartedAt
	clock := func() time.Time { return now }
	kind, _ := models.ParseExerciseKind(hdr.Exercise)
	sess := coach.NewSession(engine, 0, kind, clock)

	var sets []coach.Summary
	line := 1
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var f Frame
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if f.TMs < 0 {
			return nil, fmt.Errorf("line %d: negative t_ms", line)
		}
		now = hdr.StartedAt.Add(time.Duration(f.TMs) * time.Millisecond)

		if f.Exercise != "" {
			next, _ := models.ParseExerciseKind(f.Exercise)
			closed, err := sess.SwitchExercise(next)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if closed != nil {
				sets = append(sets, *closed)
			}
			continue
		}
		if _, err := sess.Process(f.Keypoints); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}

	if last := sess.Summary(); last.Frames > 0 {
		sets = append(sets, last)
	}

	sessionID := uuid.NewSHA1(namespace, []byte(key))
	for i := range sets {
		sets[i].SessionID = sessionID
		sets[i].SetID = uuid.NewSHA1(namespace, fmt.Appendf(nil, "%s/%d", key, i))
	}
	return sets, nil
}

// Replayer walks a directory of recordings, replays new ones and uploads
// their sets.
type Replayer struct {
	client *Client
	state  *StateDB
	engine *coach.Engine
	root   string
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates a Replayer. client may be nil in dry-run mode.
func New(client *Client, state *StateDB, engine *coach.Engine, root string, dryRun bool, log *slog.Logger) *Replayer {
	return &Replayer{
		client: client,
		state:  state,
		engine: engine,
		root:   root,
		dryRun: dryRun,
		log:    log,
	}
}

// Run replays every recording under the root (or the root itself when it is
// a file). Per-file problems are logged and counted; only upload failures
// and cancellation stop the run.
func (r *Replayer) Run(ctx context.Context) (*Stats, error) {
	files, err := r.recordings()
	if err != nil {
		return &r.stats, err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &r.stats, err
		}
		if err := r.processFile(ctx, f); err != nil {
			return &r.stats, err
		}
	}
	return &r.stats, nil
}

func (r *Replayer) recordings() ([]string, error) {
	info, err := os.Stat(r.root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", r.root, err)
	}
	if !info.IsDir() {
		return []string{r.root}, nil
	}

	var files []string
	err = filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), Ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", r.root, err)
	}
	return files, nil
}

// processFile replays one recording. Returns an error only for failures that
// should stop the run.
func (r *Replayer) processFile(ctx context.Context, path string) error {
	r.stats.FilesTotal++

	relPath, err := filepath.Rel(r.root, path)
	if err != nil || relPath == "." {
		relPath = filepath.Base(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		r.log.Warn("stat failed", "file", path, "error", err)
		r.stats.FilesErrored++
		return nil
	}
	hash, err := HashFile(path)
	if err != nil {
		r.log.Warn("hash failed", "file", path, "error", err)
		r.stats.FilesErrored++
		return nil
	}

	if !r.dryRun {
		done, err := r.state.IsReplayed(relPath, info.Size(), hash)
		if err != nil {
			r.log.Warn("state check failed", "file", path, "error", err)
			r.stats.FilesErrored++
			return nil
		}
		if done {
			r.stats.FilesSkipped++
			return nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		r.log.Warn("open failed", "file", path, "error", err)
		r.stats.FilesErrored++
		return nil
	}
	sets, err := Replay(r.engine, f, hash)
	f.Close()
	if err != nil {
		r.log.Warn("replay failed", "file", path, "error", err)
		r.stats.FilesErrored++
		return nil
	}

	for _, s := range sets {
		r.stats.Sets++
		r.stats.Frames += s.Frames
		r.stats.Reps += s.Reps
		r.log.Info("set replayed", "file", relPath, "exercise", s.Exercise,
			"reps", s.Reps, "frames", s.Frames, "avg_form_score", s.AvgFormScore)
	}

	if r.dryRun {
		r.stats.FilesReplayed++
		return nil
	}

	if len(sets) > 0 {
		result, err := r.client.SendSessions(ctx, sets)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", relPath, err)
		}
		r.stats.SetsInserted += result.SessionsInserted
		r.stats.Duplicates += result.Duplicates
	}

	if err := r.state.MarkReplayed(relPath, info.Size(), hash, len(sets)); err != nil {
		r.log.Warn("marking replayed failed", "file", path, "error", err)
	}
	r.stats.FilesReplayed++
	return nil
}
