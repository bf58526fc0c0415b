package container

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/process-engine/internal/application/expiry"
	"github.com/garyjia/process-engine/internal/application/service"
	"github.com/garyjia/process-engine/internal/domain/process"
)

// routeScheduledJob dispatches fired scheduler jobs to the subsystem
// owning the job group. The scheduler is created before the listeners,
// so routing resolves through the container at fire time.
func (c *Container) routeScheduledJob(ctx context.Context, group, payload string) error {
	switch group {
	case expiry.JobGroup:
		if c.expiryListener == nil {
			return fmt.Errorf("expiry listener not initialized")
		}
		return c.expiryListener.HandleTimeout(ctx, payload)
	case service.StatusCheckGroup:
		return c.handleStatusCheck(ctx, payload)
	default:
		return fmt.Errorf("unknown job group: %s", group)
	}
}

// handleStatusCheck runs a transaction status re-check. Status lookup
// against the payment provider happens through the REMOTE_PAYMENT_RESULT
// path; a re-check firing without a result recorded in the meantime
// counts as another failed check, which backs off and eventually fails
// the transaction.
func (c *Container) handleStatusCheck(ctx context.Context, payload string) error {
	processID, err := uuid.Parse(payload)
	if err != nil {
		return fmt.Errorf("parse status check payload %q: %w", payload, err)
	}

	_, err = c.orchestrator.ProcessEvent(ctx, processID, process.EventStatusCheckFailed, process.SystemActorID)
	if err != nil {
		// The process settled between the job being armed and firing.
		if errors.Is(err, process.ErrInvalidTransition) || errors.Is(err, process.ErrNotFound) {
			c.logger.Info("Status check fired after process settled",
				zap.String("process_id", processID.String()))
			return nil
		}
		return err
	}
	return nil
}
