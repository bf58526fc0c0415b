package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/process-engine/internal/application/dispatcher"
	"github.com/garyjia/process-engine/internal/application/port"
	"github.com/garyjia/process-engine/internal/domain/event"
	"github.com/garyjia/process-engine/internal/domain/process"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// EventRouter routes an event through the strategy of an already loaded
// aggregate. Satisfied by the orchestrator.
type EventRouter interface {
	Apply(ctx context.Context, p *process.Process, ev process.Event, actorID uuid.UUID) (process.State, error)
}

// CreateProcessInput describes a new process and its seed request
type CreateProcessInput struct {
	PublicID          uuid.UUID // generated when zero
	Type              process.Type
	ActorID           uuid.UUID
	Channel           process.Channel
	ExternalReference string
	TimeoutOverride   *time.Duration
	Data              map[process.RequestDataName]string
	Stakeholders      map[process.StakeholderType]string
}

// MakeRequestInput describes a follow-up request routed through the engine
type MakeRequestInput struct {
	ProcessID    uuid.UUID
	ActorID      uuid.UUID
	RequestType  process.RequestType
	RequestState process.State
	Channel      process.Channel
	Event        process.Event
	Data         map[process.RequestDataName]string
	Stakeholders map[process.StakeholderType]string
}

// ProcessService is the workflow facing surface around the engine:
// creation, follow-up requests, correlation lookups and the transition
// history query.
type ProcessService interface {
	CreateProcess(ctx context.Context, input CreateProcessInput) (*process.Process, error)
	MakeRequest(ctx context.Context, input MakeRequestInput) error

	GetProcess(ctx context.Context, id uuid.UUID) (*process.Process, error)
	FindPendingByPublicID(ctx context.Context, id uuid.UUID) (*process.Process, error)
	FindPendingByExternalReference(ctx context.Context, externalReference string) (*process.Process, error)
	FindPendingByTypeAndExternalReference(ctx context.Context, procType process.Type, externalReference string) (*process.Process, error)
	FindPendingByTypesAndExternalReference(ctx context.Context, types []process.Type, externalReference string) (*process.Process, error)
	FindRecentPendingByTypeAndForUser(ctx context.Context, procType process.Type, userID string, since time.Time) ([]*process.Process, error)
	FindLatestPendingByTypeAndForUser(ctx context.Context, procType process.Type, userID string) (*process.Process, error)

	GetProcessTransitions(ctx context.Context, id uuid.UUID) ([]*process.Transition, error)

	CompleteProcess(ctx context.Context, id uuid.UUID) error
	FailProcess(ctx context.Context, id uuid.UUID) error
	ExpireProcess(ctx context.Context, id uuid.UUID) error
}

type processServiceImpl struct {
	repo       port.ProcessRepository
	txManager  port.TransactionManager
	router     EventRouter
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// NewProcessService creates a new ProcessService
func NewProcessService(
	repo port.ProcessRepository,
	txManager port.TransactionManager,
	router EventRouter,
	d dispatcher.Dispatcher,
	logger Logger,
) ProcessService {
	return &processServiceImpl{
		repo:       repo,
		txManager:  txManager,
		router:     router,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateProcess persists a new pending process with its seed request and
// the INITIAL -> PENDING creation transition, then publishes
// process.created for the expiry scheduler and other listeners.
func (s *processServiceImpl) CreateProcess(ctx context.Context, input CreateProcessInput) (*process.Process, error) {
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("unknown process type: %s", input.Type)
	}

	publicID := input.PublicID
	if publicID == uuid.Nil {
		publicID = uuid.New()
	}

	now := s.now()
	p := process.New(publicID, input.Type, input.Channel, input.ExternalReference, now)
	if input.TimeoutOverride != nil {
		p.Expiry = now.Add(*input.TimeoutOverride)
	}

	seed := process.NewRequest(input.ActorID, process.RequestTypeCreateNewProcess, process.StateComplete, input.Channel)
	seed.CreatedAt = now
	for name, value := range input.Data {
		seed.SetData(name, value)
	}
	for st, id := range input.Stakeholders {
		seed.SetStakeholder(st, id)
	}
	p.AddRequest(seed)

	p.AddTransition(process.StateInitial, process.StatePending, process.EventProcessCreated, input.ActorID, now)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.Create(txCtx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create process: %w", err)
	}

	created := event.NewProcessCreated(p.PublicID, p.Type, input.ActorID)
	if input.TimeoutOverride != nil {
		created = created.WithPayload(event.PayloadTimeoutOverrideSeconds, int64(input.TimeoutOverride.Seconds()))
	}
	s.dispatcher.DispatchAsync(ctx, created)

	s.logger.Info("Process created",
		"process_id", p.PublicID.String(),
		"process_type", p.Type.String(),
		"external_reference", p.ExternalReference,
	)

	return p, nil
}

// MakeRequest appends a request to the process and routes its event
// through the engine in the same transactional boundary.
func (s *processServiceImpl) MakeRequest(ctx context.Context, input MakeRequestInput) error {
	p, err := s.repo.FindByPublicID(ctx, input.ProcessID)
	if err != nil {
		return fmt.Errorf("failed to load process %s: %w", input.ProcessID, err)
	}
	if p == nil {
		return fmt.Errorf("%w: %s", process.ErrNotFound, input.ProcessID)
	}

	req := process.NewRequest(input.ActorID, input.RequestType, input.RequestState, input.Channel)
	req.CreatedAt = s.now()
	for name, value := range input.Data {
		req.SetData(name, value)
	}
	for st, id := range input.Stakeholders {
		req.SetStakeholder(st, id)
	}
	p.AddRequest(req)

	_, err = s.router.Apply(ctx, p, input.Event, input.ActorID)
	return err
}

// GetProcess loads the full aggregate regardless of state, or
// ErrNotFound when it does not exist.
func (s *processServiceImpl) GetProcess(ctx context.Context, id uuid.UUID) (*process.Process, error) {
	p, err := s.repo.FindByPublicID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", process.ErrNotFound, id)
	}
	return p, nil
}

// FindPendingByPublicID returns the pending process, treating a pending
// row past its deadline as already gone.
func (s *processServiceImpl) FindPendingByPublicID(ctx context.Context, id uuid.UUID) (*process.Process, error) {
	p, err := s.repo.FindByPublicID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.pendingOnly(p), nil
}

func (s *processServiceImpl) FindPendingByExternalReference(ctx context.Context, externalReference string) (*process.Process, error) {
	p, err := s.repo.FindPendingByExternalReference(ctx, externalReference)
	if err != nil {
		return nil, err
	}
	return s.pendingOnly(p), nil
}

func (s *processServiceImpl) FindPendingByTypeAndExternalReference(ctx context.Context, procType process.Type, externalReference string) (*process.Process, error) {
	return s.FindPendingByTypesAndExternalReference(ctx, []process.Type{procType}, externalReference)
}

func (s *processServiceImpl) FindPendingByTypesAndExternalReference(ctx context.Context, types []process.Type, externalReference string) (*process.Process, error) {
	p, err := s.repo.FindPendingByTypesAndExternalReference(ctx, types, externalReference)
	if err != nil {
		return nil, err
	}
	return s.pendingOnly(p), nil
}

func (s *processServiceImpl) FindRecentPendingByTypeAndForUser(ctx context.Context, procType process.Type, userID string, since time.Time) ([]*process.Process, error) {
	return s.repo.FindRecentPendingByTypeAndForUser(ctx, procType, userID, since)
}

func (s *processServiceImpl) FindLatestPendingByTypeAndForUser(ctx context.Context, procType process.Type, userID string) (*process.Process, error) {
	return s.repo.FindLatestPendingByTypeAndForUser(ctx, procType, userID)
}

// GetProcessTransitions returns the audit trail oldest first
func (s *processServiceImpl) GetProcessTransitions(ctx context.Context, id uuid.UUID) ([]*process.Transition, error) {
	return s.repo.FindTransitionsByProcessID(ctx, id)
}

// CompleteProcess moves a pending process directly to COMPLETE.
// The guard makes it a no-op on processes no longer pending.
func (s *processServiceImpl) CompleteProcess(ctx context.Context, id uuid.UUID) error {
	return s.updateGuarded(ctx, id, process.StateComplete)
}

// FailProcess moves a pending process directly to FAILED
func (s *processServiceImpl) FailProcess(ctx context.Context, id uuid.UUID) error {
	return s.updateGuarded(ctx, id, process.StateFailed)
}

// ExpireProcess moves a pending process directly to EXPIRED
func (s *processServiceImpl) ExpireProcess(ctx context.Context, id uuid.UUID) error {
	return s.updateGuarded(ctx, id, process.StateExpired)
}

func (s *processServiceImpl) updateGuarded(ctx context.Context, id uuid.UUID, newState process.State) error {
	affected, err := s.repo.UpdateStateIfInState(ctx, id, newState, process.StatePending)
	if err != nil {
		return fmt.Errorf("failed to update process %s: %w", id, err)
	}
	if affected == 0 {
		s.logger.Info("Guarded state update skipped, process not pending",
			"process_id", id.String(),
			"target_state", newState.String(),
		)
	}
	return nil
}

func (s *processServiceImpl) pendingOnly(p *process.Process) *process.Process {
	if p == nil || p.State != process.StatePending || p.HasExpired(s.now()) {
		return nil
	}
	return p
}
