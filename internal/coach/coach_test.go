package coach

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/claude/posecoach/internal/form"
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/pose"
	"github.com/claude/posecoach/internal/pose/posetest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingObserver struct {
	mu       sync.Mutex
	frames   int
	reps     int
	failures int
}

func (o *recordingObserver) ObserveFrame(_ models.ExerciseKind, rep models.RepResult, _ models.FormFeedback) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames++
	if rep.RepCompleted {
		o.reps++
	}
}

func (o *recordingObserver) ObserveFailure(models.ExerciseKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func curlSet() []pose.Pose {
	var out []pose.Pose
	for _, a := range []float64{170, 160, 60, 50, 170, 60} {
		out = append(out, posetest.Arms(a).Pose())
	}
	return out
}

func TestEngine_EvaluateFrame_Idempotent(t *testing.T) {
	e := NewEngine(discardLogger(), form.Options{})
	p := posetest.PushUp(120, 50).Pose()

	rep1, fb1 := e.EvaluateFrame(models.PushUp, p, models.StageDown)
	rep2, fb2 := e.EvaluateFrame(models.PushUp, p, models.StageDown)
	assert.Equal(t, rep1, rep2)
	assert.Equal(t, fb1, fb2)
}

func TestEngine_EvaluateFrame_Unsupported(t *testing.T) {
	e := NewEngine(discardLogger(), form.Options{})

	rep, fb := e.EvaluateFrame("yoga", posetest.Standing().Pose(), models.StageDown)
	assert.Equal(t, models.RepResult{Stage: models.StageDown}, rep)
	assert.Equal(t, 0, fb.Score)
	assert.False(t, fb.IsGoodForm)
	assert.Equal(t, []string{form.MsgUnsupported}, fb.Messages)
}

func TestEngine_EvaluateFrame_FormSeesCurrentStage(t *testing.T) {
	e := NewEngine(discardLogger(), form.Options{})

	// Arm closes to 60 degrees from Down: the rep completes on this frame and
	// the curl is judged against the Down targets it is leaving.
	rep, fb := e.EvaluateFrame(models.BicepCurl, posetest.Arms(60).Pose(), models.StageDown)
	assert.True(t, rep.RepCompleted)
	assert.Equal(t, models.StageUp, rep.Stage)
	assert.Contains(t, fb.Messages, form.MsgExtendArms)
}

func TestEngine_Observers(t *testing.T) {
	obs := &recordingObserver{}
	e := NewEngine(discardLogger(), form.Options{}, obs)

	stage := models.StageUp
	for _, p := range curlSet() {
		rep, _ := e.EvaluateFrame(models.BicepCurl, p, stage)
		stage = rep.Stage
	}
	assert.Equal(t, 6, obs.frames)
	assert.Equal(t, 2, obs.reps)
	assert.Zero(t, obs.failures)
}

func TestSession_Process(t *testing.T) {
	clock := newFakeClock()
	s := NewSession(NewEngine(discardLogger(), form.Options{}), 7, models.BicepCurl, clock.Now)

	var last FrameResult
	for _, p := range curlSet() {
		clock.Advance(time.Second)
		res, err := s.Process(p)
		require.NoError(t, err)
		last = res
	}
	assert.Equal(t, 2, last.Reps)
	assert.True(t, last.RepCompleted)

	sum := s.Summary()
	assert.Equal(t, s.ID(), sum.SessionID)
	assert.Equal(t, 7, sum.UserID)
	assert.Equal(t, models.BicepCurl, sum.Exercise)
	assert.True(t, sum.Supported)
	assert.Equal(t, models.StageUp, sum.Stage)
	assert.Equal(t, 2, sum.Reps)
	assert.Equal(t, 6, sum.Frames)
	require.Len(t, sum.RepEvents, 2)
	assert.Equal(t, 1, sum.RepEvents[0].Number)
	assert.Equal(t, 2, sum.RepEvents[1].Number)
	assert.True(t, sum.RepEvents[0].At.Before(sum.RepEvents[1].At))
	assert.Equal(t, clock.Now(), sum.LastSeen)
	require.NotNil(t, sum.LastFeedback)
	assert.GreaterOrEqual(t, sum.AvgFormScore, 0.0)
	assert.LessOrEqual(t, sum.AvgFormScore, 10.0)
}

func TestSession_CleanRepsScoreFull(t *testing.T) {
	tests := []struct {
		kind    models.ExerciseKind
		frames  []pose.Pose
		leaving string
	}{
		{
			kind:    models.BicepCurl,
			frames:  []pose.Pose{posetest.Arms(170).Pose(), posetest.Arms(50).Pose()},
			leaving: form.MsgExtendArms,
		},
		{
			kind:    models.Squat,
			frames:  []pose.Pose{posetest.Standing().Pose(), posetest.Legs(100, 180).Pose()},
			leaving: form.MsgStandTall,
		},
		{
			kind: models.PushUp,
			frames: []pose.Pose{
				posetest.PushUp(170, 0).Pose(),
				posetest.PushUp(80, 0).Pose(),
				posetest.PushUp(170, 0).Pose(),
			},
			leaving: form.MsgGoLower,
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			s := NewSession(NewEngine(discardLogger(), form.Options{}), 1, tt.kind, nil)

			var last FrameResult
			for _, p := range tt.frames {
				res, err := s.Process(p)
				require.NoError(t, err)
				last = res
			}
			require.True(t, last.RepCompleted)
			// The live feedback still judges the stage being left.
			assert.Contains(t, last.Feedback.Messages, tt.leaving)

			sum := s.Summary()
			require.Len(t, sum.RepEvents, 1)
			assert.Equal(t, models.MaxFormScore, sum.RepEvents[0].FormScore)
		})
	}
}

func TestSession_SummaryIsSnapshot(t *testing.T) {
	s := NewSession(NewEngine(discardLogger(), form.Options{}), 1, models.Plank, nil)
	_, err := s.Process(posetest.Plank(40, 0).Pose())
	require.NoError(t, err)

	sum := s.Summary()
	sum.LastFeedback.Messages[0] = "changed"
	sum.RepEvents = append(sum.RepEvents, RepEvent{Number: 99})

	again := s.Summary()
	assert.Equal(t, form.MsgHipsSagging, again.LastFeedback.Messages[0])
	assert.Empty(t, again.RepEvents)
}

func TestSession_SwitchExercise(t *testing.T) {
	s := NewSession(NewEngine(discardLogger(), form.Options{}), 1, models.BicepCurl, nil)

	closed, err := s.SwitchExercise(models.Squat)
	require.NoError(t, err)
	assert.Nil(t, closed, "empty set should not produce a summary")

	s2 := NewSession(NewEngine(discardLogger(), form.Options{}), 1, models.BicepCurl, nil)
	for _, p := range curlSet()[:3] {
		_, err := s2.Process(p)
		require.NoError(t, err)
	}
	before := s2.Summary()

	closed, err = s2.SwitchExercise(models.Squat)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, before.SetID, closed.SetID)
	assert.Equal(t, models.BicepCurl, closed.Exercise)
	assert.Equal(t, 1, closed.Reps)

	after := s2.Summary()
	assert.NotEqual(t, before.SetID, after.SetID)
	assert.Equal(t, before.SessionID, after.SessionID)
	assert.Equal(t, models.Squat, after.Exercise)
	assert.Equal(t, models.StageUp, after.Stage)
	assert.Zero(t, after.Reps)
	assert.Zero(t, after.Frames)
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry(NewEngine(discardLogger(), form.Options{}), discardLogger())
	var counts []int
	r.OnChange(func(n int) { counts = append(counts, n) })

	s := r.Create(3, models.Squat)
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = s.Process(posetest.Standing().Pose())
	require.NoError(t, err)

	sum, err := r.End(s.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Frames)
	assert.Zero(t, r.Len())

	_, err = r.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.End(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = s.Process(posetest.Standing().Pose())
	assert.ErrorIs(t, err, ErrSessionEnded)
	_, err = s.SwitchExercise(models.Plank)
	assert.ErrorIs(t, err, ErrSessionEnded)

	assert.Equal(t, []int{1, 0}, counts)
}

func TestRegistry_Reap(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(NewEngine(discardLogger(), form.Options{}), discardLogger())
	r.now = clock.Now

	idle := r.Create(1, models.Plank)
	active := r.Create(2, models.Plank)

	clock.Advance(10 * time.Minute)
	_, err := active.Process(posetest.Plank(0, 0).Pose())
	require.NoError(t, err)
	clock.Advance(6 * time.Minute)

	reaped := r.Reap(15 * time.Minute)
	require.Len(t, reaped, 1)
	assert.Equal(t, idle.ID(), reaped[0].SessionID)
	assert.Equal(t, 1, r.Len())

	_, err = r.Get(active.ID())
	assert.NoError(t, err)
	assert.Empty(t, r.Reap(15*time.Minute))
}

func TestRegistry_Drain(t *testing.T) {
	r := NewRegistry(NewEngine(discardLogger(), form.Options{}), discardLogger())
	var active []int
	r.OnChange(func(n int) { active = append(active, n) })

	a := r.Create(1, models.Squat)
	r.Create(2, models.Plank)

	drained := r.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, []int{1, 2, 0}, active)

	_, err := a.Process(posetest.Standing().Pose())
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestRegistry_RunReaperStops(t *testing.T) {
	r := NewRegistry(NewEngine(discardLogger(), form.Options{}), discardLogger())
	r.Create(1, models.Squat)

	ctx, cancel := context.WithCancel(context.Background())
	reaped := make(chan Summary, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.RunReaper(ctx, 5*time.Millisecond, 0, func(s Summary) { reaped <- s })
	}()

	select {
	case sum := <-reaped:
		assert.Equal(t, models.Squat, sum.Exercise)
	case <-time.After(2 * time.Second):
		t.Fatal("reaper never ran")
	}
	cancel()
	<-done
	assert.Zero(t, r.Len())
}

func TestRegistry_ConcurrentSessions(t *testing.T) {
	obs := &recordingObserver{}
	r := NewRegistry(NewEngine(discardLogger(), form.Options{}, obs), discardLogger())

	const users = 8
	sessions := make([]*Session, users)
	for i := range sessions {
		sessions[i] = r.Create(i+1, models.BicepCurl)
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			for range 5 {
				for _, p := range curlSet()[:4] {
					_, err := s.Process(p)
					assert.NoError(t, err)
				}
			}
		}(s)
	}
	wg.Wait()

	// Each pass of 170,160,60,50 from Up completes exactly one curl.
	for _, s := range sessions {
		sum := s.Summary()
		assert.Equal(t, 5, sum.Reps)
		assert.Equal(t, 20, sum.Frames)
	}
	assert.Equal(t, users*20, obs.frames)
	assert.Equal(t, users*5, obs.reps)
}

func TestSession_ConcurrentFramesSerialized(t *testing.T) {
	s := NewSession(NewEngine(discardLogger(), form.Options{}), 1, models.Plank, nil)
	p := posetest.Plank(0, 0).Pose()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				_, err := s.Process(p)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	sum := s.Summary()
	assert.Equal(t, 400, sum.Frames)
	assert.Equal(t, 400, sum.GoodFormFrames)
	assert.InDelta(t, 10.0, sum.AvgFormScore, 1e-9)
}
