package port

import (
	"context"
	"time"
)

// Scheduler registers one-shot timeout callbacks with the generic job
// scheduler. Scheduling under an existing (jobID, group) identity
// replaces the earlier registration, so re-scheduling is idempotent.
type Scheduler interface {
	ScheduleOneShot(ctx context.Context, jobID, group string, fireAt time.Time, payload string) error
	DeleteJob(ctx context.Context, jobID, group string) error
}

// Notifier delivers user facing notifications for terminal process
// outcomes. Delivery is best effort; failures never affect the
// committed transition.
type Notifier interface {
	NotifyCompleted(ctx context.Context, processID string, processType string) error
	NotifyFailed(ctx context.Context, processID string, processType string) error
	NotifyExpired(ctx context.Context, processID string, processType string) error
}
