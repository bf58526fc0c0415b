package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/process-engine/internal/application/port"
	"github.com/garyjia/process-engine/internal/domain/process"
)

// EventRouter is the slice of the orchestrator the sweeper needs to
// raise expiry events.
type EventRouter interface {
	ProcessEvent(ctx context.Context, processID uuid.UUID, ev process.Event, actorID uuid.UUID) (process.State, error)
}

// ExpirySweeper periodically scans for pending processes whose deadline
// has passed and raises PROCESS_EXPIRED for each. The in-memory timer
// scheduler handles the common case; the sweeper is the safety net for
// timers lost to a restart.
type ExpirySweeper struct {
	repo   port.ProcessRepository
	router EventRouter
	logger *zap.Logger

	sweepInterval time.Duration
	batchSize     int

	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(repo port.ProcessRepository, router EventRouter, logger *zap.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		repo:          repo,
		router:        router,
		logger:        logger,
		sweepInterval: 60 * time.Second,
		batchSize:     100,
	}
}

// SetSweepInterval overrides the default scan interval
func (s *ExpirySweeper) SetSweepInterval(d time.Duration) {
	s.sweepInterval = d
}

// SetBatchSize overrides the default per-pass scan cap
func (s *ExpirySweeper) SetBatchSize(n int) {
	s.batchSize = n
}

// Name identifies the sweeper to the worker manager
func (s *ExpirySweeper) Name() string {
	return "expiry-sweeper"
}

// Start starts the background sweep loop
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("expiry sweeper is already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.isRunning = true

	s.logger.Info("ExpirySweeper started",
		zap.Duration("sweep_interval", s.sweepInterval),
		zap.Int("batch_size", s.batchSize))

	s.wg.Add(1)
	go s.sweepLoop()

	return nil
}

// Stop stops the sweep loop and waits for the current pass to finish
func (s *ExpirySweeper) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("ExpirySweeper stopped")
	return nil
}

func (s *ExpirySweeper) sweepLoop() {
	defer s.wg.Done()

	// Run one pass immediately so a restart catches up without waiting
	// a full interval.
	s.sweepOnce()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

// SweepOnce runs a single scan pass. Exposed for tests and manual runs.
func (s *ExpirySweeper) SweepOnce() {
	s.sweepOnce()
}

func (s *ExpirySweeper) sweepOnce() {
	overdue, err := s.repo.FindPendingExpiring(s.ctx, time.Now(), s.batchSize)
	if err != nil {
		s.logger.Error("Expiry sweep query failed", zap.Error(err))
		return
	}
	if len(overdue) == 0 {
		return
	}

	s.logger.Info("Expiry sweep found overdue processes", zap.Int("count", len(overdue)))

	for _, p := range overdue {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_, err := s.router.ProcessEvent(s.ctx, p.PublicID, process.EventProcessExpired, process.SystemActorID)
		if err != nil {
			// A process completed between the scan and the event is the
			// normal race, not a sweep failure.
			if errors.Is(err, process.ErrInvalidTransition) || errors.Is(err, process.ErrNotFound) {
				continue
			}
			s.logger.Error("Failed to expire overdue process",
				zap.String("process_id", p.PublicID.String()),
				zap.Error(err))
			continue
		}
		s.logger.Info("Expired overdue process",
			zap.String("process_id", p.PublicID.String()),
			zap.String("process_type", p.Type.String()))
	}
}
