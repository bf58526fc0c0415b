package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type firedJob struct {
	group   string
	payload string
}

type callbackRecorder struct {
	mu    sync.Mutex
	fired []firedJob
	done  chan firedJob
}

func newCallbackRecorder() *callbackRecorder {
	return &callbackRecorder{done: make(chan firedJob, 16)}
}

func (r *callbackRecorder) callback(ctx context.Context, group, payload string) error {
	r.mu.Lock()
	j := firedJob{group: group, payload: payload}
	r.fired = append(r.fired, j)
	r.mu.Unlock()
	r.done <- j
	return nil
}

func (r *callbackRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func (r *callbackRecorder) wait(t *testing.T) firedJob {
	t.Helper()
	select {
	case j := <-r.done:
		return j
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job to fire")
		return firedJob{}
	}
}

func startedScheduler(t *testing.T, rec *callbackRecorder) *TimerScheduler {
	t.Helper()
	s := NewTimerScheduler(rec.callback, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestScheduleOneShot_Fires(t *testing.T) {
	rec := newCallbackRecorder()
	s := startedScheduler(t, rec)

	err := s.ScheduleOneShot(context.Background(), "job-1", "group-a", time.Now().Add(10*time.Millisecond), "payload-1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.JobCount())

	fired := rec.wait(t)
	assert.Equal(t, "group-a", fired.group)
	assert.Equal(t, "payload-1", fired.payload)
	assert.Equal(t, 0, s.JobCount(), "fired job should be removed")
}

func TestScheduleOneShot_PastFireTimeFiresImmediately(t *testing.T) {
	rec := newCallbackRecorder()
	s := startedScheduler(t, rec)

	err := s.ScheduleOneShot(context.Background(), "job-1", "group-a", time.Now().Add(-time.Minute), "late")
	require.NoError(t, err)

	fired := rec.wait(t)
	assert.Equal(t, "late", fired.payload)
}

func TestScheduleOneShot_RescheduleReplacesTimer(t *testing.T) {
	rec := newCallbackRecorder()
	s := startedScheduler(t, rec)

	// First schedule far out, then replace with one that fires now
	require.NoError(t, s.ScheduleOneShot(context.Background(), "job-1", "group-a", time.Now().Add(time.Hour), "old"))
	require.NoError(t, s.ScheduleOneShot(context.Background(), "job-1", "group-a", time.Now(), "new"))
	assert.Equal(t, 1, s.JobCount(), "same identity must not duplicate the job")

	fired := rec.wait(t)
	assert.Equal(t, "new", fired.payload)
	assert.Equal(t, 1, rec.count())
}

func TestScheduleOneShot_SameIDDifferentGroups(t *testing.T) {
	rec := newCallbackRecorder()
	s := startedScheduler(t, rec)

	require.NoError(t, s.ScheduleOneShot(context.Background(), "job-1", "group-a", time.Now().Add(time.Hour), "a"))
	require.NoError(t, s.ScheduleOneShot(context.Background(), "job-1", "group-b", time.Now().Add(time.Hour), "b"))
	assert.Equal(t, 2, s.JobCount())
}

func TestScheduleOneShot_NotRunning(t *testing.T) {
	s := NewTimerScheduler(newCallbackRecorder().callback, zap.NewNop())

	err := s.ScheduleOneShot(context.Background(), "job-1", "group-a", time.Now(), "p")
	assert.Error(t, err)
}

func TestDeleteJob(t *testing.T) {
	rec := newCallbackRecorder()
	s := startedScheduler(t, rec)

	require.NoError(t, s.ScheduleOneShot(context.Background(), "job-1", "group-a", time.Now().Add(50*time.Millisecond), "p"))
	require.NoError(t, s.DeleteJob(context.Background(), "job-1", "group-a"))
	assert.Equal(t, 0, s.JobCount())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rec.count(), "deleted job must not fire")
}

func TestDeleteJob_UnknownIsNoop(t *testing.T) {
	s := startedScheduler(t, newCallbackRecorder())

	assert.NoError(t, s.DeleteJob(context.Background(), "nope", "group-a"))
}

func TestStop_DisarmsPendingJobs(t *testing.T) {
	rec := newCallbackRecorder()
	s := NewTimerScheduler(rec.callback, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.ScheduleOneShot(context.Background(), "job-1", "group-a", time.Now().Add(20*time.Millisecond), "p"))
	require.NoError(t, s.Stop())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, rec.count(), "jobs must not fire after Stop")

	err := s.ScheduleOneShot(context.Background(), "job-2", "group-a", time.Now(), "p")
	assert.Error(t, err, "stopped scheduler must reject new jobs")
}

func TestStop_WaitsForInFlightCallback(t *testing.T) {
	// Races Stop against a job firing at the same moment. Stop must not
	// return while a callback is mid-flight, whichever side wins.
	for i := 0; i < 100; i++ {
		var started, finished atomic.Int32
		s := NewTimerScheduler(func(ctx context.Context, group, payload string) error {
			started.Add(1)
			time.Sleep(time.Millisecond)
			finished.Add(1)
			return nil
		}, zap.NewNop())
		require.NoError(t, s.Start(context.Background()))

		require.NoError(t, s.ScheduleOneShot(context.Background(), "job-1", "group-a", time.Now(), "p"))
		require.NoError(t, s.Stop())

		require.Equal(t, started.Load(), finished.Load(),
			"Stop returned with a callback still running")
	}
}

func TestStartTwice(t *testing.T) {
	s := NewTimerScheduler(newCallbackRecorder().callback, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	assert.Error(t, s.Start(context.Background()))
}
