package process

// State represents the lifecycle stage of a process
type State string

const (
	StateInitial   State = "INITIAL"
	StatePending   State = "PENDING"
	StateComplete  State = "COMPLETE"
	StateFailed    State = "FAILED"
	StateExpired   State = "EXPIRED"
	StateCancelled State = "CANCELLED"
	StateUnknown   State = "UNKNOWN"
)

var validStates = map[State]bool{
	StateInitial:   true,
	StatePending:   true,
	StateComplete:  true,
	StateFailed:    true,
	StateExpired:   true,
	StateCancelled: true,
	StateUnknown:   true,
}

var terminalStates = map[State]bool{
	StateComplete:  true,
	StateFailed:    true,
	StateExpired:   true,
	StateCancelled: true,
}

// IsTerminal returns true if the state admits no further transitions
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if the state is a known process state
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}
