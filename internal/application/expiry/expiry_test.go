package expiry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/process-engine/internal/domain/event"
	"github.com/garyjia/process-engine/internal/domain/process"
)

type mockScheduler struct {
	scheduled []scheduledJob
	deleted   []string
}

type scheduledJob struct {
	jobID   string
	group   string
	fireAt  time.Time
	payload string
}

func (m *mockScheduler) ScheduleOneShot(ctx context.Context, jobID, group string, fireAt time.Time, payload string) error {
	m.scheduled = append(m.scheduled, scheduledJob{jobID, group, fireAt, payload})
	return nil
}

func (m *mockScheduler) DeleteJob(ctx context.Context, jobID, group string) error {
	m.deleted = append(m.deleted, jobID)
	return nil
}

type mockRouter struct {
	raised []process.Event
	actors []uuid.UUID
	err    error
}

func (m *mockRouter) ProcessEvent(ctx context.Context, processID uuid.UUID, ev process.Event, actorID uuid.UUID) (process.State, error) {
	m.raised = append(m.raised, ev)
	m.actors = append(m.actors, actorID)
	if m.err != nil {
		return "", m.err
	}
	return process.StateExpired, nil
}

type noopLogger struct{}

func (noopLogger) Info(msg string, fields ...interface{})  {}
func (noopLogger) Warn(msg string, fields ...interface{})  {}
func (noopLogger) Error(msg string, fields ...interface{}) {}

func TestHandleProcessCreated_SchedulesTypeTimeout(t *testing.T) {
	sched := &mockScheduler{}
	l := NewListener(sched, &mockRouter{}, noopLogger{})
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	processID := uuid.New()
	evt := event.NewProcessCreated(processID, process.TypePasswordReset, uuid.New())

	if err := l.HandleProcessCreated(context.Background(), evt); err != nil {
		t.Fatalf("HandleProcessCreated() error = %v", err)
	}

	if len(sched.scheduled) != 1 {
		t.Fatalf("scheduled %d jobs, want 1", len(sched.scheduled))
	}
	job := sched.scheduled[0]
	if job.jobID != JobID(processID) || job.group != JobGroup {
		t.Errorf("job identity = %s/%s", job.group, job.jobID)
	}
	if want := base.Add(process.TypePasswordReset.Timeout()); !job.fireAt.Equal(want) {
		t.Errorf("fireAt = %v, want %v", job.fireAt, want)
	}
	if job.payload != processID.String() {
		t.Errorf("payload = %q, want the process id", job.payload)
	}
}

func TestHandleProcessCreated_OverrideWins(t *testing.T) {
	sched := &mockScheduler{}
	l := NewListener(sched, &mockRouter{}, noopLogger{})
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	evt := event.NewProcessCreated(uuid.New(), process.TypePasswordReset, uuid.New()).
		WithPayload(event.PayloadTimeoutOverrideSeconds, int64(45))

	if err := l.HandleProcessCreated(context.Background(), evt); err != nil {
		t.Fatalf("HandleProcessCreated() error = %v", err)
	}

	if want := base.Add(45 * time.Second); !sched.scheduled[0].fireAt.Equal(want) {
		t.Errorf("fireAt = %v, want the 45s override", sched.scheduled[0].fireAt)
	}
}

func TestHandleProcessCreated_NoTimeoutSkips(t *testing.T) {
	sched := &mockScheduler{}
	l := NewListener(sched, &mockRouter{}, noopLogger{})

	evt := event.NewProcessCreated(uuid.New(), process.TypeDefault, uuid.New())
	if err := l.HandleProcessCreated(context.Background(), evt); err != nil {
		t.Fatalf("HandleProcessCreated() error = %v", err)
	}
	if len(sched.scheduled) != 0 {
		t.Errorf("scheduled %d jobs for a type without timeout", len(sched.scheduled))
	}
}

func TestHandleProcessCreated_IgnoresOtherEventTypes(t *testing.T) {
	sched := &mockScheduler{}
	l := NewListener(sched, &mockRouter{}, noopLogger{})

	evt := event.NewStateChanged(uuid.New(), process.TypePasswordReset, process.StatePending, process.StateComplete, uuid.New())
	if err := l.HandleProcessCreated(context.Background(), evt); err != nil {
		t.Fatalf("HandleProcessCreated() error = %v", err)
	}
	if len(sched.scheduled) != 0 {
		t.Error("scheduled a job for a non-creation event")
	}
}

func TestHandleTimeout(t *testing.T) {
	router := &mockRouter{}
	l := NewListener(&mockScheduler{}, router, noopLogger{})
	processID := uuid.New()

	if err := l.HandleTimeout(context.Background(), processID.String()); err != nil {
		t.Fatalf("HandleTimeout() error = %v", err)
	}

	if len(router.raised) != 1 || router.raised[0] != process.EventProcessExpired {
		t.Fatalf("raised %v, want PROCESS_EXPIRED", router.raised)
	}
	if router.actors[0] != process.SystemActorID {
		t.Error("expiry not raised on behalf of the system actor")
	}
}

func TestHandleTimeout_RacesAreBenign(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"process already settled", fmt.Errorf("wrap: %w", process.ErrInvalidTransition)},
		{"process gone", fmt.Errorf("wrap: %w", process.ErrNotFound)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewListener(&mockScheduler{}, &mockRouter{err: tt.err}, noopLogger{})
			if err := l.HandleTimeout(context.Background(), uuid.New().String()); err != nil {
				t.Errorf("HandleTimeout() error = %v, want nil for a lost race", err)
			}
		})
	}
}

func TestHandleTimeout_RealFailurePropagates(t *testing.T) {
	routerErr := errors.New("database unavailable")
	l := NewListener(&mockScheduler{}, &mockRouter{err: routerErr}, noopLogger{})

	if err := l.HandleTimeout(context.Background(), uuid.New().String()); !errors.Is(err, routerErr) {
		t.Errorf("HandleTimeout() error = %v, want the router failure", err)
	}
}

func TestHandleTimeout_BadPayload(t *testing.T) {
	router := &mockRouter{}
	l := NewListener(&mockScheduler{}, router, noopLogger{})

	if err := l.HandleTimeout(context.Background(), "not-a-uuid"); err == nil {
		t.Fatal("HandleTimeout() accepted a malformed payload")
	}
	if len(router.raised) != 0 {
		t.Error("an event was raised for a malformed payload")
	}
}
