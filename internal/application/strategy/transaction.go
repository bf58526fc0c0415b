package strategy

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/process-engine/internal/domain/process"
)

// TransactionActions are the side conditions the transaction workflow
// runs while transitions are applied. Implementations live with the
// payment subsystem; the strategy only sequences them.
type TransactionActions interface {
	InitiatePending(ctx context.Context, p *process.Process) error
	CompletePending(ctx context.Context, p *process.Process) error
	ReversePending(ctx context.Context, p *process.Process) error
	RescheduleStatusCheck(ctx context.Context, p *process.Process) error
	MarkManualReconciliation(ctx context.Context, p *process.Process) error
	HandleExpiry(ctx context.Context, p *process.Process) error
}

// transactionTable allows reversal out of COMPLETE and EXPIRED: a settled
// or timed-out payment can still be reversed, landing in FAILED.
var transactionTable = Table{
	{process.StatePending, process.EventAuthSucceeded}:              process.StatePending,
	{process.StatePending, process.EventCreditRatingOffersReceived}: process.StatePending,
	{process.StatePending, process.EventRemotePaymentResult}:        process.StatePending,
	{process.StatePending, process.EventStatusCheckFailed}:          process.StatePending,
	{process.StatePending, process.EventManualReconciliation}:       process.StatePending,
	{process.StatePending, process.EventRemotePaymentCompleted}:     process.StateComplete,
	{process.StatePending, process.EventPendingTxStatusVerified}:    process.StateComplete,
	{process.StatePending, process.EventProcessCompleted}:           process.StateComplete,
	{process.StatePending, process.EventProcessFailed}:              process.StateFailed,
	{process.StatePending, process.EventReverseTransaction}:         process.StateFailed,
	{process.StatePending, process.EventReversePendingFunds}:        process.StateFailed,
	{process.StateComplete, process.EventReverseTransaction}:        process.StateFailed,
	{process.StateExpired, process.EventReverseTransaction}:         process.StateFailed,
	{process.StatePending, process.EventProcessExpired}:             process.StateExpired,
}

// NewTransaction creates the strategy governing payment transaction
// processes
func NewTransaction(actions TransactionActions, logger *zap.Logger) *TableStrategy {
	s := NewTableStrategy(process.StrategyNameTransaction, transactionTable, logger)

	s.On(process.StatePending, process.EventAuthSucceeded, actions.InitiatePending)
	s.On(process.StatePending, process.EventRemotePaymentCompleted, actions.CompletePending)
	s.On(process.StatePending, process.EventPendingTxStatusVerified, actions.CompletePending)
	s.On(process.StatePending, process.EventProcessCompleted, actions.CompletePending)
	s.On(process.StatePending, process.EventStatusCheckFailed, actions.RescheduleStatusCheck)
	s.On(process.StatePending, process.EventManualReconciliation, actions.MarkManualReconciliation)
	s.On(process.StatePending, process.EventProcessFailed, actions.ReversePending)
	s.On(process.StatePending, process.EventReverseTransaction, actions.ReversePending)
	s.On(process.StatePending, process.EventReversePendingFunds, actions.ReversePending)
	s.On(process.StateComplete, process.EventReverseTransaction, actions.ReversePending)
	s.On(process.StateExpired, process.EventReverseTransaction, actions.ReversePending)
	s.On(process.StatePending, process.EventProcessExpired, actions.HandleExpiry)

	return s
}
