// Package scheduler provides an in-process one-shot job scheduler backed
// by runtime timers. Jobs do not survive a restart; the expiry sweeper
// worker picks up anything that was lost.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/process-engine/internal/application/port"
)

// Callback is invoked when a scheduled job fires. The group identifies
// which subsystem owns the job so one callback can route for all of them.
type Callback func(ctx context.Context, group, payload string) error

type jobKey struct {
	id    string
	group string
}

type job struct {
	timer   *time.Timer
	payload string
}

// TimerScheduler implements port.Scheduler with in-memory timers.
// Scheduling under an existing (jobID, group) replaces the earlier
// timer, so re-scheduling is idempotent.
type TimerScheduler struct {
	callback Callback
	logger   *zap.Logger

	mu        sync.Mutex
	jobs      map[jobKey]*job
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewTimerScheduler creates a scheduler that invokes callback when a
// job fires
func NewTimerScheduler(callback Callback, logger *zap.Logger) *TimerScheduler {
	return &TimerScheduler{
		callback: callback,
		logger:   logger,
		jobs:     make(map[jobKey]*job),
	}
}

// Name identifies the scheduler to the worker manager
func (s *TimerScheduler) Name() string {
	return "timer-scheduler"
}

// Start makes the scheduler accept jobs
func (s *TimerScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("timer scheduler is already running")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.isRunning = true

	s.logger.Info("TimerScheduler started")
	return nil
}

// Stop cancels all armed timers and waits for in-flight callbacks
func (s *TimerScheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	for key, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, key)
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("TimerScheduler stopped")
	return nil
}

// ScheduleOneShot arms a timer that fires the callback once at fireAt.
// A fire time in the past fires immediately.
func (s *TimerScheduler) ScheduleOneShot(ctx context.Context, jobID, group string, fireAt time.Time, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("timer scheduler is not running")
	}

	key := jobKey{id: jobID, group: group}
	if existing, ok := s.jobs[key]; ok {
		existing.timer.Stop()
		s.logger.Info("Replacing scheduled job",
			zap.String("job_id", jobID),
			zap.String("group", group))
	}

	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	j := &job{payload: payload}
	j.timer = time.AfterFunc(delay, func() {
		s.fire(key, payload)
	})
	s.jobs[key] = j

	s.logger.Info("Scheduled one-shot job",
		zap.String("job_id", jobID),
		zap.String("group", group),
		zap.Time("fire_at", fireAt))
	return nil
}

// DeleteJob disarms a scheduled job. Deleting an unknown job is a no-op.
func (s *TimerScheduler) DeleteJob(ctx context.Context, jobID, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := jobKey{id: jobID, group: group}
	if j, ok := s.jobs[key]; ok {
		j.timer.Stop()
		delete(s.jobs, key)
		s.logger.Info("Deleted scheduled job",
			zap.String("job_id", jobID),
			zap.String("group", group))
	}
	return nil
}

// JobCount returns the number of armed jobs
func (s *TimerScheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *TimerScheduler) fire(key jobKey, payload string) {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, key)
	ctx := s.ctx
	// Add must happen under the lock, before Stop can observe
	// isRunning=false and start waiting on a zero counter.
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Job callback panicked",
				zap.String("job_id", key.id),
				zap.String("group", key.group),
				zap.Any("panic", r))
		}
	}()

	if err := s.callback(ctx, key.group, payload); err != nil {
		s.logger.Error("Job callback failed",
			zap.String("job_id", key.id),
			zap.String("group", key.group),
			zap.Error(err))
	}
}

// Verify interface compliance
var _ port.Scheduler = (*TimerScheduler)(nil)
