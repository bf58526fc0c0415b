package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/process-engine/internal/application/port"
	"github.com/garyjia/process-engine/internal/domain/process"
)

// StatusCheckGroup names the scheduler group holding transaction status
// re-check jobs.
const StatusCheckGroup = "transaction-status-check"

// StatusCheckJobID returns the scheduler job identity for a
// transaction's status re-check. One job per process.
func StatusCheckJobID(processID uuid.UUID) string {
	return fmt.Sprintf("status-check-%s", processID)
}

// TransactionCoordinator implements the side conditions of the
// transaction workflow. Status verification against the payment
// provider happens out of band; the coordinator sequences the retry
// schedule and cleans up when the transaction settles either way.
type TransactionCoordinator struct {
	scheduler port.Scheduler
	logger    Logger
	now       func() time.Time

	statusCheckDelay time.Duration
	maxStatusChecks  int
}

// NewTransactionCoordinator creates a coordinator with default retry
// tuning
func NewTransactionCoordinator(scheduler port.Scheduler, logger Logger) *TransactionCoordinator {
	return &TransactionCoordinator{
		scheduler:        scheduler,
		logger:           logger,
		now:              time.Now,
		statusCheckDelay: 30 * time.Second,
		maxStatusChecks:  5,
	}
}

// InitiatePending runs when authentication succeeds and the payment
// enters its pending phase.
func (c *TransactionCoordinator) InitiatePending(ctx context.Context, p *process.Process) error {
	amount, err := p.DataValue(process.DataTransactionAmount)
	if err != nil {
		return err
	}
	c.logger.Info("Transaction initiated",
		"process_id", p.PublicID.String(),
		"amount", amount,
	)
	return nil
}

// CompletePending settles the transaction and drops any outstanding
// status re-check job.
func (c *TransactionCoordinator) CompletePending(ctx context.Context, p *process.Process) error {
	if err := c.scheduler.DeleteJob(ctx, StatusCheckJobID(p.PublicID), StatusCheckGroup); err != nil {
		c.logger.Error("Failed to drop status check job on completion",
			"process_id", p.PublicID.String(), "error", err)
	}
	c.logger.Info("Transaction settled", "process_id", p.PublicID.String())
	return nil
}

// ReversePending reverses the transaction and drops any outstanding
// status re-check job.
func (c *TransactionCoordinator) ReversePending(ctx context.Context, p *process.Process) error {
	if err := c.scheduler.DeleteJob(ctx, StatusCheckJobID(p.PublicID), StatusCheckGroup); err != nil {
		c.logger.Error("Failed to drop status check job on reversal",
			"process_id", p.PublicID.String(), "error", err)
	}
	c.logger.Info("Transaction reversed", "process_id", p.PublicID.String())
	return nil
}

// RescheduleStatusCheck arms the next status re-check with linear
// backoff. After the retry budget is spent it fails the transition,
// which lands the process in FAILED through compensation.
func (c *TransactionCoordinator) RescheduleStatusCheck(ctx context.Context, p *process.Process) error {
	attempts := c.statusCheckAttempts(p)
	if attempts >= c.maxStatusChecks {
		return fmt.Errorf("status check retries exhausted for process %s after %d attempts",
			p.PublicID, attempts)
	}

	fireAt := c.now().Add(c.statusCheckDelay * time.Duration(attempts+1))
	if err := c.scheduler.ScheduleOneShot(ctx, StatusCheckJobID(p.PublicID), StatusCheckGroup, fireAt, p.PublicID.String()); err != nil {
		return fmt.Errorf("failed to schedule status check: %w", err)
	}

	c.logger.Info("Rescheduled transaction status check",
		"process_id", p.PublicID.String(),
		"attempt", attempts+1,
		"fire_at", fireAt.Format(time.RFC3339),
	)
	return nil
}

// MarkManualReconciliation hands the transaction to an operator and
// stops automated re-checks.
func (c *TransactionCoordinator) MarkManualReconciliation(ctx context.Context, p *process.Process) error {
	if err := c.scheduler.DeleteJob(ctx, StatusCheckJobID(p.PublicID), StatusCheckGroup); err != nil {
		c.logger.Error("Failed to drop status check job for manual reconciliation",
			"process_id", p.PublicID.String(), "error", err)
	}
	c.logger.Info("Transaction flagged for manual reconciliation",
		"process_id", p.PublicID.String())
	return nil
}

// HandleExpiry runs when the transaction times out
func (c *TransactionCoordinator) HandleExpiry(ctx context.Context, p *process.Process) error {
	if err := c.scheduler.DeleteJob(ctx, StatusCheckJobID(p.PublicID), StatusCheckGroup); err != nil {
		c.logger.Error("Failed to drop status check job on expiry",
			"process_id", p.PublicID.String(), "error", err)
	}
	c.logger.Info("Transaction expired before settlement",
		"process_id", p.PublicID.String())
	return nil
}

// statusCheckAttempts counts failed status checks already on the audit
// trail. The transition being processed is not yet appended when the
// action runs, so the count is the number of earlier attempts.
func (c *TransactionCoordinator) statusCheckAttempts(p *process.Process) int {
	attempts := 0
	for _, tr := range p.Transitions {
		if tr.Event == process.EventStatusCheckFailed {
			attempts++
		}
	}
	return attempts
}
