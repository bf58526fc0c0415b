package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/process-engine/internal/domain/process"
)

// Strategy implements the transition table for one process type.
// The three methods must agree for the same inputs; TableStrategy
// guarantees this by deriving all of them from a single table.
type Strategy interface {
	// CalculateExpectedState returns what the state should become for the
	// (state, event) pair, or the current state unchanged when the pair
	// has no mapped effect.
	CalculateExpectedState(current process.State, ev process.Event) process.State

	// IsValidTransition confirms the triple is in the type's allow-list.
	// Evaluated before any change is applied.
	IsValidTransition(current process.State, ev process.Event, expected process.State) bool

	// ProcessEvent performs the transition, running any side conditions,
	// and returns the authoritative new state. An unmapped pair fails
	// with process.ErrInvalidTransition rather than silently no-op-ing.
	ProcessEvent(ctx context.Context, p *process.Process, ev process.Event) (process.State, error)
}

// TransitionKey identifies one row of a transition table
type TransitionKey struct {
	From process.State
	On   process.Event
}

// Table is the declarative mapping from (state, event) to next state.
// Validation and application are both derived from it, so they cannot
// drift apart.
type Table map[TransitionKey]process.State

// Action runs workflow specific side conditions while a transition is
// being applied. A returned error aborts the transition.
type Action func(ctx context.Context, p *process.Process) error

// TableStrategy is the shared table-driven strategy implementation.
// Concrete strategies embed it with their own table and optional
// per-row actions.
type TableStrategy struct {
	name    string
	table   Table
	actions map[TransitionKey]Action
	logger  *zap.Logger
}

// NewTableStrategy creates a strategy driven by the given table
func NewTableStrategy(name string, table Table, logger *zap.Logger) *TableStrategy {
	return &TableStrategy{
		name:    name,
		table:   table,
		actions: make(map[TransitionKey]Action),
		logger:  logger,
	}
}

// On attaches an action to a table row. Attaching to a row that is not
// in the table panics: it would be dead configuration.
func (s *TableStrategy) On(from process.State, ev process.Event, action Action) *TableStrategy {
	key := TransitionKey{From: from, On: ev}
	if _, ok := s.table[key]; !ok {
		panic(fmt.Sprintf("strategy %s: action attached to unmapped transition %s -> %s", s.name, from, ev))
	}
	s.actions[key] = action
	return s
}

// Name returns the registered name of the strategy
func (s *TableStrategy) Name() string {
	return s.name
}

// CalculateExpectedState returns the mapped next state, or the current
// state unchanged when the pair has no mapped effect
func (s *TableStrategy) CalculateExpectedState(current process.State, ev process.Event) process.State {
	if next, ok := s.table[TransitionKey{From: current, On: ev}]; ok {
		return next
	}
	return current
}

// IsValidTransition confirms the (state, event, expected) triple matches
// a table row exactly
func (s *TableStrategy) IsValidTransition(current process.State, ev process.Event, expected process.State) bool {
	next, ok := s.table[TransitionKey{From: current, On: ev}]
	return ok && next == expected
}

// ProcessEvent applies the table row for the pair, running its action if
// one is attached
func (s *TableStrategy) ProcessEvent(ctx context.Context, p *process.Process, ev process.Event) (process.State, error) {
	key := TransitionKey{From: p.State, On: ev}

	next, ok := s.table[key]
	if !ok {
		s.logger.Warn("Rejected transition",
			zap.String("strategy", s.name),
			zap.String("process_id", p.PublicID.String()),
			zap.String("state", p.State.String()),
			zap.String("event", ev.String()))
		return "", fmt.Errorf("%w: from %s with event %s", process.ErrInvalidTransition, p.State, ev)
	}

	if action, ok := s.actions[key]; ok {
		if err := action(ctx, p); err != nil {
			return "", fmt.Errorf("action for %s -> %s failed: %w", p.State, ev, err)
		}
	}

	if next == p.State {
		s.logger.Info("Event processed without state change",
			zap.String("strategy", s.name),
			zap.String("process_id", p.PublicID.String()),
			zap.String("event", ev.String()),
			zap.String("state", p.State.String()))
	}

	return next, nil
}
