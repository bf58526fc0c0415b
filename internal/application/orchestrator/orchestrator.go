package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/process-engine/internal/application/dispatcher"
	"github.com/garyjia/process-engine/internal/application/port"
	"github.com/garyjia/process-engine/internal/application/strategy"
	"github.com/garyjia/process-engine/internal/domain/event"
	"github.com/garyjia/process-engine/internal/domain/process"
)

// Orchestrator drives processes through their state machines. It is the
// only writer of process state: every mutation goes through ProcessEvent,
// which validates the transition against the type's strategy, appends an
// audit record, persists atomically and publishes a state change
// notification. An unexpected failure mid-transition drives a
// non-terminal process to FAILED so nothing is left stuck open.
type Orchestrator struct {
	repo       port.ProcessRepository
	txManager  port.TransactionManager
	strategies *strategy.Registry
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures the orchestrator
type Option func(*Orchestrator)

// WithClock overrides the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates a process orchestrator
func New(
	repo port.ProcessRepository,
	txManager port.TransactionManager,
	strategies *strategy.Registry,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		repo:       repo,
		txManager:  txManager,
		strategies: strategies,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// ProcessEvent loads the process by public id and routes the event
// through its strategy. Returns the confirmed state after the event, or
// an error: process.ErrNotFound, process.ErrInvalidTransition (process
// untouched), or the original failure after the compensating FAILED
// transition has been applied.
func (o *Orchestrator) ProcessEvent(ctx context.Context, processID uuid.UUID, ev process.Event, actorID uuid.UUID) (process.State, error) {
	o.logger.Info("Processing event",
		zap.String("process_id", processID.String()),
		zap.String("event", ev.String()))

	p, err := o.repo.FindByPublicID(ctx, processID)
	if err != nil {
		return "", fmt.Errorf("failed to load process %s: %w", processID, err)
	}
	if p == nil {
		return "", fmt.Errorf("%w: %s", process.ErrNotFound, processID)
	}

	return o.Apply(ctx, p, ev, actorID)
}

// Apply routes an event through the strategy of an already loaded
// aggregate. Callers that appended a request to the aggregate use this
// so the request and the transition share one transactional boundary.
func (o *Orchestrator) Apply(ctx context.Context, p *process.Process, ev process.Event, actorID uuid.UUID) (process.State, error) {
	// The aggregate itself is the per-call read model. It is local to
	// this invocation and discarded afterwards, so there is no shared
	// cache to invalidate.
	oldState := p.State
	loadedTransitions := len(p.Transitions)

	strat, err := o.strategies.Resolve(p.Type)
	if err != nil {
		return o.compensate(ctx, p, oldState, loadedTransitions, actorID, err)
	}

	expected := strat.CalculateExpectedState(oldState, ev)
	if !strat.IsValidTransition(oldState, ev, expected) {
		return "", fmt.Errorf("%w: %s -> %s -> %s", process.ErrInvalidTransition, oldState, ev, expected)
	}

	newState, err := strat.ProcessEvent(ctx, p, ev)
	if err != nil {
		return o.compensate(ctx, p, oldState, loadedTransitions, actorID, err)
	}

	p.AddTransition(oldState, newState, ev, actorID, o.now())
	if newState != oldState {
		p.UpdateState(newState)
	}

	err = o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return o.repo.Save(txCtx, p, oldState)
	})
	if err != nil {
		return o.compensate(ctx, p, oldState, loadedTransitions, actorID, err)
	}

	if newState != oldState {
		o.dispatcher.DispatchAsync(ctx, event.NewStateChanged(p.PublicID, p.Type, oldState, newState, actorID))
		o.logger.Info("Process state changed",
			zap.String("process_id", p.PublicID.String()),
			zap.String("old_state", oldState.String()),
			zap.String("new_state", newState.String()))
	} else {
		o.logger.Info("Process event applied without state change",
			zap.String("process_id", p.PublicID.String()),
			zap.String("event", ev.String()),
			zap.String("state", oldState.String()))
	}

	return newState, nil
}

// compensate drives a non-terminal process to FAILED after an unexpected
// failure, then returns the original error. A process that was already
// terminal when the failure happened is left untouched. The compensating
// write is best effort: its own failure is logged, never propagated over
// the original error.
func (o *Orchestrator) compensate(ctx context.Context, p *process.Process, oldState process.State, loadedTransitions int, actorID uuid.UUID, cause error) (process.State, error) {
	o.logger.Error("Error processing event",
		zap.String("process_id", p.PublicID.String()),
		zap.Error(cause))

	if oldState.IsTerminal() {
		return "", cause
	}

	// Discard whatever the failed attempt staged on the aggregate before
	// writing the compensation.
	p.Transitions = p.Transitions[:loadedTransitions]
	p.State = oldState

	p.AddTransition(oldState, process.StateFailed, process.EventProcessFailed, actorID, o.now())
	p.UpdateState(process.StateFailed)

	err := o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return o.repo.Save(txCtx, p, oldState)
	})
	if err != nil {
		o.logger.Error("Compensating write failed",
			zap.String("process_id", p.PublicID.String()),
			zap.Error(err))
		return "", cause
	}

	o.dispatcher.DispatchAsync(ctx, event.NewStateChanged(p.PublicID, p.Type, oldState, process.StateFailed, actorID))

	o.logger.Info("Process driven to FAILED after error",
		zap.String("process_id", p.PublicID.String()),
		zap.String("old_state", oldState.String()))

	return "", cause
}
