package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/process-engine/internal/domain/process"
)

// ProcessRepository defines persistence operations for the Process aggregate
type ProcessRepository interface {
	// Create persists a new process with its seed request and initial transition
	Create(ctx context.Context, p *process.Process) error

	// FindByPublicID loads the full aggregate (requests, data, stakeholders,
	// transitions) by its public identifier. Returns nil when absent.
	FindByPublicID(ctx context.Context, publicID uuid.UUID) (*process.Process, error)

	// FindPendingByExternalReference loads a pending process by its caller
	// supplied correlation key. Returns nil when absent.
	FindPendingByExternalReference(ctx context.Context, externalReference string) (*process.Process, error)

	// FindPendingByTypesAndExternalReference narrows the correlation lookup
	// to a set of process types. Returns nil when absent.
	FindPendingByTypesAndExternalReference(ctx context.Context, types []process.Type, externalReference string) (*process.Process, error)

	// FindRecentPendingByTypeAndForUser returns pending processes of the
	// given type where the FOR_USER stakeholder matches, newest first,
	// created at or after since.
	FindRecentPendingByTypeAndForUser(ctx context.Context, procType process.Type, userID string, since time.Time) ([]*process.Process, error)

	// FindLatestPendingByTypeAndForUser returns the most recent pending
	// process of the given type for the user, or nil.
	FindLatestPendingByTypeAndForUser(ctx context.Context, procType process.Type, userID string) (*process.Process, error)

	// Save persists state changes plus any newly appended requests and
	// transitions. The update is guarded on the state the aggregate had
	// when loaded; a concurrent writer surfaces as process.ErrConflict.
	Save(ctx context.Context, p *process.Process, loadedState process.State) error

	// UpdateStateIfInState moves a process to newState only if it is
	// currently in currentState. Returns the number of rows changed.
	UpdateStateIfInState(ctx context.Context, publicID uuid.UUID, newState, currentState process.State) (int64, error)

	// FindTransitionsByProcessID returns the audit trail ordered oldest first
	FindTransitionsByProcessID(ctx context.Context, publicID uuid.UUID) ([]*process.Transition, error)

	// FindPendingExpiring returns pending processes whose deadline passed
	// before the given instant, oldest deadline first, capped at limit.
	// Used by the expiry sweeper to catch timers lost across restarts.
	FindPendingExpiring(ctx context.Context, before time.Time, limit int) ([]*process.Process, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
