package strategy

import (
	"go.uber.org/zap"

	"github.com/garyjia/process-engine/internal/domain/process"
)

// defaultTable is the generic transition table shared by process types
// with no custom logic. The two PENDING self-transitions record resend
// and verification attempts in the audit trail without moving the state.
var defaultTable = Table{
	{process.StatePending, process.EventProcessCompleted}:        process.StateComplete,
	{process.StatePending, process.EventProcessFailed}:           process.StateFailed,
	{process.StatePending, process.EventProcessExpired}:          process.StateExpired,
	{process.StatePending, process.EventAuthTokenResend}:         process.StatePending,
	{process.StatePending, process.EventPendingTxStatusVerified}: process.StatePending,
}

// NewDefault creates the strategy used by every process type that needs
// no workflow specific behavior
func NewDefault(logger *zap.Logger) *TableStrategy {
	return NewTableStrategy(process.StrategyNameDefault, defaultTable, logger)
}
