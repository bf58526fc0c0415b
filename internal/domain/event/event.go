package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/process-engine/internal/domain/process"
)

// PayloadTimeoutOverrideSeconds carries an explicit expiry override on
// the process.created notification.
const PayloadTimeoutOverrideSeconds = "timeout_override_seconds"

// Event is a notification published after something happened to a
// process. It is a projection of committed state, never the source of
// truth; consumers must tolerate at-least-once delivery.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	ProcessID     uuid.UUID              `json:"process_id"`
	ProcessType   process.Type           `json:"process_type"`
	OldState      process.State          `json:"old_state,omitempty"`
	NewState      process.State          `json:"new_state,omitempty"`
	ActorID       uuid.UUID              `json:"actor_id"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewProcessCreated builds the notification published after a process
// has been created and persisted.
func NewProcessCreated(processID uuid.UUID, processType process.Type, actorID uuid.UUID) *Event {
	return &Event{
		ID:            generateID(),
		Type:          TypeProcessCreated,
		ProcessID:     processID,
		ProcessType:   processType,
		NewState:      process.StatePending,
		ActorID:       actorID,
		Timestamp:     time.Now(),
		CorrelationID: generateID(),
	}
}

// NewStateChanged builds the notification published after a transition
// that changed the process state has committed.
func NewStateChanged(processID uuid.UUID, processType process.Type, oldState, newState process.State, actorID uuid.UUID) *Event {
	return &Event{
		ID:            generateID(),
		Type:          TypeProcessStateChanged,
		ProcessID:     processID,
		ProcessType:   processType,
		OldState:      oldState,
		NewState:      newState,
		ActorID:       actorID,
		Timestamp:     time.Now(),
		CorrelationID: generateID(),
	}
}

// WithPayload returns a copy of the event with an added payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	clone := *e
	clone.Payload = newPayload
	return &clone
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// generateID creates a unique ID using timestamp and random bytes
func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
