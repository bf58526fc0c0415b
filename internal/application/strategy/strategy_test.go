package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/process-engine/internal/domain/process"
)

func newProcess(state process.State) *process.Process {
	p := process.New(uuid.New(), process.TypePasswordReset, process.ChannelWeb, "", time.Now())
	p.State = state
	return p
}

func TestDefaultStrategy_CalculateExpectedState(t *testing.T) {
	s := NewDefault(zap.NewNop())

	tests := []struct {
		name     string
		current  process.State
		event    process.Event
		expected process.State
	}{
		{"pending completes", process.StatePending, process.EventProcessCompleted, process.StateComplete},
		{"pending fails", process.StatePending, process.EventProcessFailed, process.StateFailed},
		{"pending expires", process.StatePending, process.EventProcessExpired, process.StateExpired},
		{"token resend stays pending", process.StatePending, process.EventAuthTokenResend, process.StatePending},
		{"status verified stays pending", process.StatePending, process.EventPendingTxStatusVerified, process.StatePending},
		{"unmapped pair keeps state", process.StateComplete, process.EventProcessCompleted, process.StateComplete},
		{"terminal state unchanged", process.StateFailed, process.EventProcessExpired, process.StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.CalculateExpectedState(tt.current, tt.event); got != tt.expected {
				t.Errorf("CalculateExpectedState(%s, %s) = %v, want %v", tt.current, tt.event, got, tt.expected)
			}
		})
	}
}

func TestDefaultStrategy_IsValidTransition(t *testing.T) {
	s := NewDefault(zap.NewNop())

	tests := []struct {
		name     string
		current  process.State
		event    process.Event
		expected process.State
		valid    bool
	}{
		{"mapped row", process.StatePending, process.EventProcessCompleted, process.StateComplete, true},
		{"self transition row", process.StatePending, process.EventAuthTokenResend, process.StatePending, true},
		{"wrong target", process.StatePending, process.EventProcessCompleted, process.StateFailed, false},
		{"unmapped pair", process.StateComplete, process.EventProcessFailed, process.StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsValidTransition(tt.current, tt.event, tt.expected); got != tt.valid {
				t.Errorf("IsValidTransition() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestDefaultStrategy_ProcessEvent_UnmappedPairFails(t *testing.T) {
	s := NewDefault(zap.NewNop())
	p := newProcess(process.StateComplete)

	_, err := s.ProcessEvent(context.Background(), p, process.EventProcessCompleted)
	if !errors.Is(err, process.ErrInvalidTransition) {
		t.Errorf("ProcessEvent() error = %v, want ErrInvalidTransition", err)
	}
}

func TestDefaultStrategy_ProcessEvent_SelfTransition(t *testing.T) {
	s := NewDefault(zap.NewNop())
	p := newProcess(process.StatePending)

	next, err := s.ProcessEvent(context.Background(), p, process.EventAuthTokenResend)
	if err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}
	if next != process.StatePending {
		t.Errorf("ProcessEvent() = %v, want PENDING", next)
	}
}

// recordingActions counts which transaction actions ran.
type recordingActions struct {
	initiated  int
	completed  int
	reversed   int
	rescheduled int
	manual     int
	expired    int
	failWith   error
}

func (a *recordingActions) InitiatePending(ctx context.Context, p *process.Process) error {
	a.initiated++
	return a.failWith
}
func (a *recordingActions) CompletePending(ctx context.Context, p *process.Process) error {
	a.completed++
	return a.failWith
}
func (a *recordingActions) ReversePending(ctx context.Context, p *process.Process) error {
	a.reversed++
	return a.failWith
}
func (a *recordingActions) RescheduleStatusCheck(ctx context.Context, p *process.Process) error {
	a.rescheduled++
	return a.failWith
}
func (a *recordingActions) MarkManualReconciliation(ctx context.Context, p *process.Process) error {
	a.manual++
	return a.failWith
}
func (a *recordingActions) HandleExpiry(ctx context.Context, p *process.Process) error {
	a.expired++
	return a.failWith
}

func TestTransactionStrategy_ReversalFromSettledStates(t *testing.T) {
	actions := &recordingActions{}
	s := NewTransaction(actions, zap.NewNop())

	tests := []struct {
		name    string
		current process.State
		event   process.Event
		next    process.State
	}{
		{"reverse settled payment", process.StateComplete, process.EventReverseTransaction, process.StateFailed},
		{"reverse timed out payment", process.StateExpired, process.EventReverseTransaction, process.StateFailed},
		{"reverse pending funds", process.StatePending, process.EventReversePendingFunds, process.StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProcess(tt.current)
			next, err := s.ProcessEvent(context.Background(), p, tt.event)
			if err != nil {
				t.Fatalf("ProcessEvent() error = %v", err)
			}
			if next != tt.next {
				t.Errorf("ProcessEvent() = %v, want %v", next, tt.next)
			}
		})
	}

	if actions.reversed != 3 {
		t.Errorf("ReversePending ran %d times, want 3", actions.reversed)
	}
}

func TestTransactionStrategy_ActionErrorAbortsTransition(t *testing.T) {
	actions := &recordingActions{failWith: errors.New("provider unreachable")}
	s := NewTransaction(actions, zap.NewNop())
	p := newProcess(process.StatePending)

	_, err := s.ProcessEvent(context.Background(), p, process.EventRemotePaymentCompleted)
	if err == nil {
		t.Fatal("ProcessEvent() error = nil, want action failure")
	}
	if errors.Is(err, process.ErrInvalidTransition) {
		t.Error("action failure reported as invalid transition")
	}
}

func TestTransactionStrategy_SettlementPaths(t *testing.T) {
	actions := &recordingActions{}
	s := NewTransaction(actions, zap.NewNop())

	for _, ev := range []process.Event{
		process.EventRemotePaymentCompleted,
		process.EventPendingTxStatusVerified,
		process.EventProcessCompleted,
	} {
		p := newProcess(process.StatePending)
		next, err := s.ProcessEvent(context.Background(), p, ev)
		if err != nil {
			t.Fatalf("ProcessEvent(%s) error = %v", ev, err)
		}
		if next != process.StateComplete {
			t.Errorf("ProcessEvent(%s) = %v, want COMPLETE", ev, next)
		}
	}

	if actions.completed != 3 {
		t.Errorf("CompletePending ran %d times, want 3", actions.completed)
	}
}

func TestOn_PanicsForUnmappedRow(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("On() did not panic for an unmapped transition")
		}
	}()

	s := NewTableStrategy("test", Table{}, zap.NewNop())
	s.On(process.StatePending, process.EventProcessCompleted, func(ctx context.Context, p *process.Process) error {
		return nil
	})
}

func TestRegistry_Resolve(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	registry.Register(process.StrategyNameDefault, NewDefault(zap.NewNop()))
	registry.Register(process.StrategyNameTransaction, NewTransaction(&recordingActions{}, zap.NewNop()))

	s, err := registry.Resolve(process.TypePasswordReset)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ts, ok := s.(*TableStrategy); !ok || ts.Name() != process.StrategyNameDefault {
		t.Errorf("Resolve() returned wrong strategy for default-bound type")
	}

	s, err = registry.Resolve(process.TypeTransaction)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ts, ok := s.(*TableStrategy); !ok || ts.Name() != process.StrategyNameTransaction {
		t.Errorf("Resolve() returned wrong strategy for transaction type")
	}

	// Cached resolution returns the same instance
	again, err := registry.Resolve(process.TypeTransaction)
	if err != nil {
		t.Fatalf("Resolve() second call error = %v", err)
	}
	if again != s {
		t.Error("Resolve() did not return cached strategy")
	}
}

func TestRegistry_ResolveMissingBinding(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	_, err := registry.Resolve(process.TypeTransaction)
	if !errors.Is(err, process.ErrNoStrategy) {
		t.Errorf("Resolve() error = %v, want ErrNoStrategy", err)
	}
}
