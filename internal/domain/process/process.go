package process

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SystemActorID is the well known actor recorded on engine initiated
// events such as timeout expiry.
var SystemActorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Process is a persisted instance of a business workflow tracked through
// states. It is mutated only through the orchestrator and never deleted;
// a finished process stays in its terminal state for audit.
type Process struct {
	ID                int64     `json:"id"`
	PublicID          uuid.UUID `json:"public_id"`
	Type              Type      `json:"type"`
	Description       string    `json:"description"`
	State             State     `json:"state"`
	Channel           Channel   `json:"channel"`
	Expiry            time.Time `json:"expiry,omitempty"`
	ExternalReference string    `json:"external_reference,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Requests    []*Request    `json:"requests,omitempty"`
	Transitions []*Transition `json:"transitions,omitempty"`
}

// Transition is an immutable audit record of one processed event.
// One is appended for every processed event, including self-transitions,
// so the trail is a complete history of attempts, not only state changes.
type Transition struct {
	ID        int64     `json:"id"`
	ProcessID int64     `json:"process_id"`
	Event     Event     `json:"event"`
	ActorID   uuid.UUID `json:"actor_id"`
	OldState  State     `json:"old_state"`
	NewState  State     `json:"new_state"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates a process in the given initial state with its expiry
// computed from the type's timeout. A type with NoTimeout leaves the
// expiry zero.
func New(publicID uuid.UUID, procType Type, channel Channel, externalReference string, now time.Time) *Process {
	p := &Process{
		PublicID:          publicID,
		Type:              procType,
		Description:       procType.Description(),
		State:             StatePending,
		Channel:           channel,
		ExternalReference: externalReference,
		CreatedAt:         now,
	}
	if timeout := procType.Timeout(); timeout != NoTimeout {
		p.Expiry = now.Add(timeout)
	}
	return p
}

// AddRequest appends a request to the process
func (p *Process) AddRequest(req *Request) {
	req.ProcessID = p.ID
	p.Requests = append(p.Requests, req)
}

// AddTransition appends an audit record for a processed event
func (p *Process) AddTransition(oldState, newState State, event Event, actorID uuid.UUID, at time.Time) {
	p.Transitions = append(p.Transitions, &Transition{
		ProcessID: p.ID,
		Event:     event,
		ActorID:   actorID,
		OldState:  oldState,
		NewState:  newState,
		CreatedAt: at,
	})
}

// UpdateState moves the process to a new state
func (p *Process) UpdateState(newState State) {
	p.State = newState
}

// SeedRequest returns the CREATE_NEW_PROCESS request every process is
// created with, or nil if the aggregate was loaded without children.
func (p *Process) SeedRequest() *Request {
	for _, req := range p.Requests {
		if req.Type == RequestTypeCreateNewProcess {
			return req
		}
	}
	return nil
}

// HasExpired reports whether the process deadline has passed.
// Processes without a deadline never expire.
func (p *Process) HasExpired(now time.Time) bool {
	return !p.Expiry.IsZero() && p.Expiry.Before(now)
}

// DataValue returns the value stored under the given key, scanning
// requests newest first. It fails loudly when the key was never
// populated so strategy bugs surface instead of propagating zero values.
func (p *Process) DataValue(name RequestDataName) (string, error) {
	for i := len(p.Requests) - 1; i >= 0; i-- {
		if v, ok := p.Requests[i].Data[name]; ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s for process %s", ErrMissingData, name, p.PublicID)
}

// StakeholderID returns the identifier recorded for a stakeholder role,
// scanning requests newest first.
func (p *Process) StakeholderID(st StakeholderType) (string, bool) {
	for i := len(p.Requests) - 1; i >= 0; i-- {
		if v, ok := p.Requests[i].Stakeholders[st]; ok {
			return v, true
		}
	}
	return "", false
}
