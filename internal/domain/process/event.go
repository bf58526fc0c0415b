package process

// Event is a named trigger that may cause a state transition
type Event string

const (
	EventProcessCreated             Event = "PROCESS_CREATED"
	EventProcessCompleted           Event = "PROCESS_COMPLETED"
	EventProcessFailed              Event = "PROCESS_FAILED"
	EventProcessExpired             Event = "PROCESS_EXPIRED"
	EventAuthSucceeded              Event = "AUTH_SUCCEEDED"
	EventAuthTokenResend            Event = "AUTH_TOKEN_RESEND"
	EventRemotePaymentCompleted     Event = "REMOTE_PAYMENT_COMPLETED"
	EventRemotePaymentResult        Event = "REMOTE_PAYMENT_RESULT"
	EventPendingTxStatusVerified    Event = "PENDING_TRANSACTION_STATUS_VERIFIED"
	EventReversePendingFunds        Event = "REVERSE_PENDING_FUNDS"
	EventReverseTransaction         Event = "REVERSE_TRANSACTION"
	EventStatusCheckFailed          Event = "STATUS_CHECK_FAILED"
	EventManualReconciliation       Event = "MANUAL_RECONCILIATION_CONFIRMED"
	EventCreditRatingOffersReceived Event = "CREDIT_RATING_OFFERS_RECEIVED"
)

// String returns the string representation of the event
func (e Event) String() string {
	return string(e)
}
