// Package container provides dependency injection and lifecycle
// management for the process engine.
package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/process-engine/internal/application/dispatcher"
	"github.com/garyjia/process-engine/internal/application/expiry"
	"github.com/garyjia/process-engine/internal/application/orchestrator"
	"github.com/garyjia/process-engine/internal/application/port"
	"github.com/garyjia/process-engine/internal/application/reactor"
	"github.com/garyjia/process-engine/internal/application/service"
	"github.com/garyjia/process-engine/internal/application/strategy"
	"github.com/garyjia/process-engine/internal/config"
	"github.com/garyjia/process-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/process-engine/internal/infrastructure/scheduler"
	"github.com/garyjia/process-engine/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in
// reverse order.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	sqlDB      *sql.DB
	db         *sqlite.DB
	repository port.ProcessRepository
	scheduler  *scheduler.TimerScheduler
	notifier   port.Notifier

	// Application
	dispatcher     dispatcher.Dispatcher
	strategies     *strategy.Registry
	orchestrator   *orchestrator.Orchestrator
	processService service.ProcessService
	coordinator    *service.TransactionCoordinator
	expiryListener *expiry.Listener

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repository
// 2. Dispatcher and strategies
// 3. Orchestrator and services
// 4. Event listeners
// 5. Scheduler and workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initEngine(); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	c.logger.Info("Engine initialized")

	if err := c.initListeners(); err != nil {
		return fmt.Errorf("failed to initialize listeners: %w", err)
	}
	c.logger.Info("Event listeners initialized")

	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	// Stop workers first so no new events enter the engine
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Close dispatcher and wait for in-flight async handlers
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Close database last
	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Ping(); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.workers != nil {
		status.Components["workers"] = ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()),
		}
		if !c.workers.IsRunning() {
			status.Overall = false
		}
	} else {
		status.Components["workers"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	return status
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr
	c.repository = ProvideRepository(c.sqlDB, c.logger)
	return nil
}

func (c *Container) initEngine() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	// The scheduler routes fired jobs back into components created
	// after it, so the callback resolves through the container.
	c.scheduler = scheduler.NewTimerScheduler(c.routeScheduledJob, c.logger)

	c.coordinator = service.NewTransactionCoordinator(c.scheduler, &zapLoggerAdapter{logger: c.logger})

	strategies, err := ProvideStrategies(c.coordinator, c.logger)
	if err != nil {
		return err
	}
	c.strategies = strategies

	c.orchestrator = orchestrator.New(c.repository, c.db, c.strategies, c.dispatcher, c.logger)

	c.processService = service.NewProcessService(
		c.repository,
		c.db,
		c.orchestrator,
		c.dispatcher,
		&zapLoggerAdapter{logger: c.logger},
	)

	c.notifier = ProvideNotifier(&c.config.Notifier, c.logger)
	return nil
}

func (c *Container) initListeners() error {
	c.expiryListener = expiry.NewListener(c.scheduler, c.orchestrator, &zapLoggerAdapter{logger: c.logger})

	stateReactor := reactor.NewStateChangeReactor(c.notifier, c.scheduler, &zapLoggerAdapter{logger: c.logger})

	RegisterEventHandlers(c.dispatcher, c.expiryListener, stateReactor)
	return nil
}

func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Repository:   c.repository,
		Orchestrator: c.orchestrator,
		Scheduler:    c.scheduler,
		EngineCfg:    &c.config.Engine,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repository returns the process repository.
func (c *Container) Repository() port.ProcessRepository {
	return c.repository
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Orchestrator returns the process orchestrator.
func (c *Container) Orchestrator() *orchestrator.Orchestrator {
	return c.orchestrator
}

// ProcessService returns the process service.
func (c *Container) ProcessService() service.ProcessService {
	return c.processService
}

// Scheduler returns the job scheduler.
func (c *Container) Scheduler() port.Scheduler {
	return c.scheduler
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the minimal key-value logger
// interfaces the application packages declare.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
