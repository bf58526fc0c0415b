package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/process-engine/internal/application/dispatcher"
	"github.com/garyjia/process-engine/internal/application/expiry"
	"github.com/garyjia/process-engine/internal/application/port"
	"github.com/garyjia/process-engine/internal/application/reactor"
	"github.com/garyjia/process-engine/internal/application/strategy"
	"github.com/garyjia/process-engine/internal/config"
	"github.com/garyjia/process-engine/internal/domain/event"
	"github.com/garyjia/process-engine/internal/domain/process"
	"github.com/garyjia/process-engine/internal/infrastructure/notifier"
	"github.com/garyjia/process-engine/internal/infrastructure/persistence/repository"
	"github.com/garyjia/process-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/process-engine/internal/infrastructure/worker"
	"github.com/garyjia/process-engine/pkg/database"

	_ "github.com/mattn/go-sqlite3"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase creates the database connection and transaction
// manager, and runs any pending migrations.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.MigrationsDir != "" {
		migrator := database.NewMigrator(db, logger)
		if err := migrator.RunMigrations(cfg.MigrationsDir); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepository creates the process repository.
func ProvideRepository(sqlDB *sql.DB, logger *zap.Logger) port.ProcessRepository {
	return repository.NewProcessRepository(sqlDB, logger)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger})), nil
}

// ProvideStrategies creates the strategy registry with the default and
// transaction strategies bound under their type-facing names.
func ProvideStrategies(actions strategy.TransactionActions, logger *zap.Logger) (*strategy.Registry, error) {
	if actions == nil {
		return nil, fmt.Errorf("transaction actions are required")
	}

	registry := strategy.NewRegistry(logger)
	registry.Register(process.StrategyNameDefault, strategy.NewDefault(logger))
	registry.Register(process.StrategyNameTransaction, strategy.NewTransaction(actions, logger))
	return registry, nil
}

// ProvideNotifier creates the terminal state notifier.
func ProvideNotifier(cfg *config.NotifierConfig, logger *zap.Logger) port.Notifier {
	return notifier.NewWebhookNotifier(cfg.WebhookURL, cfg.Timeout, logger)
}

// RegisterEventHandlers subscribes the engine's listeners on the
// dispatcher.
func RegisterEventHandlers(d dispatcher.Dispatcher, listener *expiry.Listener, stateReactor *reactor.StateChangeReactor) {
	d.SubscribeNamed(event.TypeProcessCreated, "expiry-scheduler", listener.HandleProcessCreated)
	d.SubscribeNamed(event.TypeProcessStateChanged, "terminal-state-reactor", stateReactor.HandleStateChanged)
}

// WorkerDeps holds dependencies for worker creation.
type WorkerDeps struct {
	Repository   port.ProcessRepository
	Orchestrator worker.EventRouter
	Scheduler    worker.Worker
	EngineCfg    *config.EngineConfig
	Logger       *zap.Logger
}

// ProvideWorkers creates and registers all background workers.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.Repository == nil || deps.Orchestrator == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}

	manager := worker.NewWorkerManager(deps.Logger)

	// The scheduler participates in the worker lifecycle so its timers
	// stop cleanly on shutdown.
	manager.Register(deps.Scheduler)

	sweeper := worker.NewExpirySweeper(deps.Repository, deps.Orchestrator, deps.Logger)
	if deps.EngineCfg != nil {
		if deps.EngineCfg.SweepInterval > 0 {
			sweeper.SetSweepInterval(deps.EngineCfg.SweepInterval)
		}
		if deps.EngineCfg.SweepBatchSize > 0 {
			sweeper.SetBatchSize(deps.EngineCfg.SweepBatchSize)
		}
	}
	manager.Register(sweeper)

	return manager, nil
}
