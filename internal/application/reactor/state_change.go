// Package reactor reacts to committed process state changes: terminal
// states fan out to user notifications and cancel the pending expiry
// timer. Everything here is best effort; a failed reaction is logged
// and never rolls back the transition it reacted to.
package reactor

import (
	"context"

	"github.com/garyjia/process-engine/internal/application/expiry"
	"github.com/garyjia/process-engine/internal/application/port"
	"github.com/garyjia/process-engine/internal/domain/event"
	"github.com/garyjia/process-engine/internal/domain/process"
)

// Logger captures the logging calls used by the reactor.
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// StateChangeReactor dispatches terminal state changes to the notifier
// and removes the expiry job once a process can no longer time out.
type StateChangeReactor struct {
	notifier  port.Notifier
	scheduler port.Scheduler
	logger    Logger
}

// NewStateChangeReactor creates a reactor over the given notifier and
// scheduler.
func NewStateChangeReactor(notifier port.Notifier, scheduler port.Scheduler, logger Logger) *StateChangeReactor {
	return &StateChangeReactor{
		notifier:  notifier,
		scheduler: scheduler,
		logger:    logger,
	}
}

// HandleStateChanged inspects a state change event and, for terminal
// outcomes, notifies and drops the expiry timer. Non-terminal changes
// and self transitions are ignored.
func (r *StateChangeReactor) HandleStateChanged(ctx context.Context, evt *event.Event) error {
	if evt.Type != event.TypeProcessStateChanged {
		return nil
	}
	if !evt.NewState.IsTerminal() {
		return nil
	}

	processID := evt.ProcessID.String()
	processType := evt.ProcessType.String()

	var err error
	switch evt.NewState {
	case process.StateComplete:
		err = r.notifier.NotifyCompleted(ctx, processID, processType)
	case process.StateFailed:
		err = r.notifier.NotifyFailed(ctx, processID, processType)
	case process.StateExpired:
		err = r.notifier.NotifyExpired(ctx, processID, processType)
	case process.StateCancelled:
		// No notification for explicit cancellation.
	}
	if err != nil {
		r.logger.Warn("terminal state notification failed",
			"process_id", processID,
			"new_state", evt.NewState.String(),
			"error", err)
	}

	if evt.NewState != process.StateExpired {
		if err := r.scheduler.DeleteJob(ctx, expiry.JobID(evt.ProcessID), expiry.JobGroup); err != nil {
			r.logger.Warn("failed to delete expiry job for terminal process",
				"process_id", processID,
				"error", err)
		}
	}

	r.logger.Info("handled terminal state change",
		"process_id", processID,
		"process_type", processType,
		"new_state", evt.NewState.String())
	return nil
}
