// Package expiry schedules one-shot timeout jobs for newly created
// processes and feeds expiry callbacks back into the engine.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/process-engine/internal/application/port"
	"github.com/garyjia/process-engine/internal/domain/event"
	"github.com/garyjia/process-engine/internal/domain/process"
)

// JobGroup names the scheduler group that holds all process timeout jobs.
const JobGroup = "process-expiry"

// JobID returns the scheduler job identity for a process. One job per
// process: rescheduling with the same ID overwrites the previous timer.
func JobID(processID uuid.UUID) string {
	return fmt.Sprintf("expire-%s", processID)
}

// EventRouter is the slice of the orchestrator the listener needs to
// raise timeout events.
type EventRouter interface {
	ProcessEvent(ctx context.Context, processID uuid.UUID, ev process.Event, actorID uuid.UUID) (process.State, error)
}

// Logger captures the logging calls used by the listener.
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Listener wires process lifecycle events to the timeout scheduler.
type Listener struct {
	scheduler port.Scheduler
	router    EventRouter
	logger    Logger
	now       func() time.Time
}

// NewListener creates an expiry listener.
func NewListener(scheduler port.Scheduler, router EventRouter, logger Logger) *Listener {
	return &Listener{
		scheduler: scheduler,
		router:    router,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleProcessCreated schedules a one-shot expiry job for the new
// process. Types without a timeout are skipped. A per-process override
// in the event payload wins over the type default.
func (l *Listener) HandleProcessCreated(ctx context.Context, evt *event.Event) error {
	if evt.Type != event.TypeProcessCreated {
		return nil
	}

	timeout := evt.ProcessType.Timeout()
	if override := evt.GetPayloadInt(event.PayloadTimeoutOverrideSeconds); override > 0 {
		timeout = time.Duration(override) * time.Second
	}
	if timeout == process.NoTimeout || timeout <= 0 {
		l.logger.Info("process type has no timeout, skipping expiry scheduling",
			"process_id", evt.ProcessID.String(),
			"process_type", evt.ProcessType.String())
		return nil
	}

	fireAt := l.now().Add(timeout)
	if err := l.scheduler.ScheduleOneShot(ctx, JobID(evt.ProcessID), JobGroup, fireAt, evt.ProcessID.String()); err != nil {
		l.logger.Error("failed to schedule expiry job",
			"process_id", evt.ProcessID.String(),
			"error", err)
		return fmt.Errorf("schedule expiry for process %s: %w", evt.ProcessID, err)
	}

	l.logger.Info("scheduled process expiry",
		"process_id", evt.ProcessID.String(),
		"fire_at", fireAt.Format(time.RFC3339))
	return nil
}

// HandleTimeout is the scheduler callback. It raises PROCESS_EXPIRED on
// behalf of the system actor. A process that already reached a terminal
// state rejects the transition; that is the normal race between
// completion and the timer and is logged as a no-op.
func (l *Listener) HandleTimeout(ctx context.Context, payload string) error {
	processID, err := uuid.Parse(payload)
	if err != nil {
		l.logger.Error("expiry job carried an invalid process id", "payload", payload, "error", err)
		return fmt.Errorf("parse expiry payload %q: %w", payload, err)
	}

	newState, err := l.router.ProcessEvent(ctx, processID, process.EventProcessExpired, process.SystemActorID)
	if err != nil {
		if errors.Is(err, process.ErrInvalidTransition) || errors.Is(err, process.ErrNotFound) {
			l.logger.Info("expiry fired after process left pending state",
				"process_id", processID.String())
			return nil
		}
		l.logger.Error("failed to expire process",
			"process_id", processID.String(),
			"error", err)
		return err
	}

	l.logger.Info("process expired",
		"process_id", processID.String(),
		"new_state", newState.String())
	return nil
}
