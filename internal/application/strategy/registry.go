package strategy

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/process-engine/internal/domain/process"
)

// Registry resolves a process type to its strategy through the name
// binding carried on the type. Resolution results are cached per type;
// a type with no usable binding is a configuration fault surfaced as
// process.ErrNoStrategy, not a crash.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Strategy
	cache  map[process.Type]Strategy
	logger *zap.Logger
}

// NewRegistry creates an empty strategy registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byName: make(map[string]Strategy),
		cache:  make(map[process.Type]Strategy),
		logger: logger,
	}
}

// Register binds a strategy under a name. Registered at startup, before
// any resolution happens.
func (r *Registry) Register(name string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = s
}

// Resolve returns the strategy governing the given process type
func (r *Registry) Resolve(procType process.Type) (Strategy, error) {
	r.mu.RLock()
	if s, ok := r.cache[procType]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	name := procType.StrategyName()
	if name == "" {
		return nil, fmt.Errorf("%w: %s", process.ErrNoStrategy, procType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byName[name]
	if !ok {
		r.logger.Error("Strategy binding not registered",
			zap.String("process_type", procType.String()),
			zap.String("strategy_name", name))
		return nil, fmt.Errorf("%w: %s (binding %q)", process.ErrNoStrategy, procType, name)
	}

	r.cache[procType] = s
	return s, nil
}
